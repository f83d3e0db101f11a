package workflow

import (
	"github.com/mmdatafocus/beergame_backend/config"
	"github.com/mmdatafocus/beergame_backend/models"
	"github.com/mmdatafocus/beergame_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// shipQuantities is the conservation arithmetic of one role's weekly
// shipment. Backlog is owed demand, so the shippable amount is everything
// owed plus what arrived this week, capped by stock on hand. All results are
// non-negative by construction.
func shipQuantities(inventory, backlog, incomingOrder int) (shipped, newBacklog, newInventory int) {
	demand := incomingOrder + backlog
	shipped = demand
	if inventory < shipped {
		shipped = inventory
	}
	newBacklog = demand - shipped
	newInventory = inventory - shipped
	return shipped, newBacklog, newInventory
}

// resolveShipmentsTx ships from every role against this week's demand and
// appends the in-transit ledger entries. Roles are independent here: each one
// reads only its own ledger row plus the game's lead times. Runs inside the
// settlement transaction.
func resolveShipmentsTx(tx *gorm.DB, logger *logrus.Logger, game *models.Game, players []*models.Player) error {
	for _, player := range players {
		shipped, newBacklog, newInventory := shipQuantities(player.Inventory, player.Backlog, player.IncomingOrder)

		err := tx.Model(&models.Player{}).
			Where("id = ?", player.ID).
			Updates(map[string]interface{}{
				"inventory":                newInventory,
				"backlog":                  newBacklog,
				"outgoing_shipment":        shipped,
				"total_outgoing_shipments": player.TotalOutgoingShipments + shipped,
				"total_backorders":         player.TotalBackorders + newBacklog,
			}).Error
		if err != nil {
			config.LogError(logger, "shipmentWorkflow.go", "resolveShipmentsTx", "update player", player.Role, err)
			return err
		}
		player.Inventory = newInventory
		player.Backlog = newBacklog
		player.OutgoingShipment = shipped
		player.TotalOutgoingShipments += shipped
		player.TotalBackorders += newBacklog

		leadTime := game.LeadTime(player.Role)
		toRole := player.Role.DownstreamRecipient()
		entry := models.ShipmentOrder{
			GameId:        game.ID,
			FromRole:      string(player.Role),
			ToRole:        toRole,
			Quantity:      shipped,
			WeekPlaced:    game.CurrentWeek,
			WeekDelivered: game.CurrentWeek + leadTime,
			IsDelivered:   utils.NewFalse(),
		}
		if err := tx.Create(&entry).Error; err != nil {
			config.LogError(logger, "shipmentWorkflow.go", "resolveShipmentsTx", "create shipment entry", player.Role, err)
			return err
		}

		// A one-week lead time means this shipment is the recipient's
		// next-week lookahead.
		if toRole != models.EndpointCustomer && leadTime == 1 {
			if err := tx.Model(&models.Player{}).
				Where("game_id = ? AND role = ?", game.ID, toRole).
				Update("next_week_incoming_shipment", shipped).Error; err != nil {
				config.LogError(logger, "shipmentWorkflow.go", "resolveShipmentsTx", "update recipient lookahead", toRole, err)
				return err
			}
		}
	}

	// Factory production: the factory always fulfills exactly what the
	// manufacturer ordered, after the manufacturer's lead time.
	for _, player := range players {
		if player.Role != models.RoleManufacturer {
			continue
		}
		quantity := 0
		if player.OutgoingOrder != nil {
			quantity = *player.OutgoingOrder
		}
		leadTime := game.LeadTime(models.RoleManufacturer)
		entry := models.ShipmentOrder{
			GameId:        game.ID,
			FromRole:      models.EndpointFactory,
			ToRole:        string(models.RoleManufacturer),
			Quantity:      quantity,
			WeekPlaced:    game.CurrentWeek,
			WeekDelivered: game.CurrentWeek + leadTime,
			IsDelivered:   utils.NewFalse(),
		}
		if err := tx.Create(&entry).Error; err != nil {
			config.LogError(logger, "shipmentWorkflow.go", "resolveShipmentsTx", "create factory entry", quantity, err)
			return err
		}
		if leadTime == 1 {
			if err := tx.Model(&models.Player{}).
				Where("id = ?", player.ID).
				Update("next_week_incoming_shipment", quantity).Error; err != nil {
				config.LogError(logger, "shipmentWorkflow.go", "resolveShipmentsTx", "update manufacturer lookahead", quantity, err)
				return err
			}
		}
	}
	return nil
}
