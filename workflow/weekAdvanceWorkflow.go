package workflow

import (
	"github.com/mmdatafocus/beergame_backend/config"
	"github.com/mmdatafocus/beergame_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// advanceWeekTx moves the game to the next week. Deliveries due in the new
// week are applied to inventories and their ledger entries flipped in the
// same transaction, so each entry is counted exactly once no matter how many
// settlement attempts race. Every role's outgoing_order is reset to NULL,
// re-opening intake for the new week.
//
// Callers pass the player rows as they stood when the settled week's orders
// were recorded; the incoming order for the new week is read from that
// snapshot, not from the rows after reset.
func advanceWeekTx(tx *gorm.DB, logger *logrus.Logger, game *models.Game, players []*models.Player) error {
	nextWeek := game.CurrentWeek + 1
	demand := models.NextDemand(game, nextWeek)

	err := tx.Model(&models.Game{}).
		Where("id = ?", game.ID).
		Updates(map[string]interface{}{
			"current_week":   nextWeek,
			"current_demand": demand,
		}).Error
	if err != nil {
		config.LogError(logger, "weekAdvanceWorkflow.go", "advanceWeekTx", "update game week", game.ID, err)
		return err
	}
	game.CurrentWeek = nextWeek
	game.CurrentDemand = demand

	byRole := make(map[models.PlayerRole]*models.Player, len(players))
	for _, p := range players {
		byRole[p.Role] = p
	}

	// Apply due deliveries first for every role, so that pipeline recomputes
	// below never see an entry that is about to flip.
	incoming := make(map[models.PlayerRole]int, len(players))
	for _, player := range players {
		due, err := models.DueDeliveriesTx(tx, game.ID, string(player.Role), nextWeek)
		if err != nil {
			config.LogError(logger, "weekAdvanceWorkflow.go", "advanceWeekTx", "load due deliveries", player.Role, err)
			return err
		}
		sum := 0
		ids := make([]int, 0, len(due))
		for _, entry := range due {
			sum += entry.Quantity
			ids = append(ids, entry.ID)
		}
		if err := models.MarkDeliveredTx(tx, ids); err != nil {
			config.LogError(logger, "weekAdvanceWorkflow.go", "advanceWeekTx", "mark delivered", player.Role, err)
			return err
		}
		incoming[player.Role] = sum
	}

	// The external customer absorbs retailer shipments; flip those entries
	// too so the retailer's pipeline sum stays bounded.
	customerDue, err := models.DueDeliveriesTx(tx, game.ID, models.EndpointCustomer, nextWeek)
	if err != nil {
		config.LogError(logger, "weekAdvanceWorkflow.go", "advanceWeekTx", "load customer deliveries", game.ID, err)
		return err
	}
	customerIds := make([]int, 0, len(customerDue))
	for _, entry := range customerDue {
		customerIds = append(customerIds, entry.ID)
	}
	if err := models.MarkDeliveredTx(tx, customerIds); err != nil {
		config.LogError(logger, "weekAdvanceWorkflow.go", "advanceWeekTx", "mark customer deliveries", game.ID, err)
		return err
	}

	for _, player := range players {
		// The new week's incoming order: external demand for the retailer,
		// otherwise whatever the downstream role ordered in the settled week.
		incomingOrder := demand
		if downstream, ok := player.Role.DownstreamRole(); ok {
			incomingOrder = game.FixedDemand
			if d := byRole[downstream]; d != nil && d.OutgoingOrder != nil {
				incomingOrder = *d.OutgoingOrder
			}
		}

		pipeline, err := models.PipelineInventoryTx(tx, game.ID, player.Role)
		if err != nil {
			config.LogError(logger, "weekAdvanceWorkflow.go", "advanceWeekTx", "recompute pipeline", player.Role, err)
			return err
		}

		lookahead, err := models.IncomingShipmentLookaheadTx(tx, game.ID, string(player.Role), nextWeek+1)
		if err != nil {
			config.LogError(logger, "weekAdvanceWorkflow.go", "advanceWeekTx", "lookahead", player.Role, err)
			return err
		}

		newInventory := player.Inventory + incoming[player.Role]
		err = tx.Model(&models.Player{}).
			Where("id = ?", player.ID).
			Updates(map[string]interface{}{
				"inventory":                   newInventory,
				"incoming_shipment":           incoming[player.Role],
				"next_week_incoming_shipment": lookahead,
				"incoming_order":              incomingOrder,
				"pipeline_inventory":          pipeline,
				"outgoing_order":              gorm.Expr("NULL"),
				"total_inventory":             player.TotalInventory + newInventory,
			}).Error
		if err != nil {
			config.LogError(logger, "weekAdvanceWorkflow.go", "advanceWeekTx", "update player", player.Role, err)
			return err
		}
		player.Inventory = newInventory
		player.IncomingShipment = incoming[player.Role]
		player.NextWeekIncomingShipment = lookahead
		player.IncomingOrder = incomingOrder
		player.PipelineInventory = pipeline
		player.OutgoingOrder = nil
		player.TotalInventory += newInventory
	}
	return nil
}
