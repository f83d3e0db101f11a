package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/beergame_backend/config"
	"gorm.io/gorm"
)

// GameWeek is the read-only audit snapshot written once per settled week.
// Dashboards and the bullwhip charts consume it; the engine never reads it
// back.
type GameWeek struct {
	ID                    int       `gorm:"primary_key" json:"id"`
	GameId                uuid.UUID `gorm:"uniqueIndex:idx_game_week;not null" json:"game_id"`
	WeekNumber            int       `gorm:"uniqueIndex:idx_game_week;not null" json:"week_number"`
	RetailerInventory     int       `gorm:"not null" json:"retailer_inventory"`
	RetailerBacklog       int       `gorm:"not null" json:"retailer_backlog"`
	RetailerOrder         int       `gorm:"not null" json:"retailer_order"`
	RetailerShipment      int       `gorm:"not null" json:"retailer_shipment"`
	WholesalerInventory   int       `gorm:"not null" json:"wholesaler_inventory"`
	WholesalerBacklog     int       `gorm:"not null" json:"wholesaler_backlog"`
	WholesalerOrder       int       `gorm:"not null" json:"wholesaler_order"`
	WholesalerShipment    int       `gorm:"not null" json:"wholesaler_shipment"`
	DistributorInventory  int       `gorm:"not null" json:"distributor_inventory"`
	DistributorBacklog    int       `gorm:"not null" json:"distributor_backlog"`
	DistributorOrder      int       `gorm:"not null" json:"distributor_order"`
	DistributorShipment   int       `gorm:"not null" json:"distributor_shipment"`
	ManufacturerInventory int       `gorm:"not null" json:"manufacturer_inventory"`
	ManufacturerBacklog   int       `gorm:"not null" json:"manufacturer_backlog"`
	ManufacturerOrder     int       `gorm:"not null" json:"manufacturer_order"`
	ManufacturerShipment  int       `gorm:"not null" json:"manufacturer_shipment"`
	CustomerDemand        int       `gorm:"not null" json:"customer_demand"`
	CreatedAt             time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// RecordGameWeekTx snapshots the current week inside the caller's
// transaction. Requires all four roles to be seated.
func RecordGameWeekTx(tx *gorm.DB, game *Game) error {
	players, err := getPlayersTx(tx, game.ID)
	if err != nil {
		return err
	}
	byRole := make(map[PlayerRole]*Player, len(players))
	for _, p := range players {
		byRole[p.Role] = p
	}
	for _, role := range AllRoles {
		if byRole[role] == nil {
			// Lobby not full yet; nothing to snapshot.
			return nil
		}
	}

	orderOf := func(p *Player) int {
		if p.OutgoingOrder == nil {
			return 0
		}
		return *p.OutgoingOrder
	}

	week := GameWeek{
		GameId:                game.ID,
		WeekNumber:            game.CurrentWeek,
		RetailerInventory:     byRole[RoleRetailer].Inventory,
		RetailerBacklog:       byRole[RoleRetailer].Backlog,
		RetailerOrder:         orderOf(byRole[RoleRetailer]),
		RetailerShipment:      byRole[RoleRetailer].OutgoingShipment,
		WholesalerInventory:   byRole[RoleWholesaler].Inventory,
		WholesalerBacklog:     byRole[RoleWholesaler].Backlog,
		WholesalerOrder:       orderOf(byRole[RoleWholesaler]),
		WholesalerShipment:    byRole[RoleWholesaler].OutgoingShipment,
		DistributorInventory:  byRole[RoleDistributor].Inventory,
		DistributorBacklog:    byRole[RoleDistributor].Backlog,
		DistributorOrder:      orderOf(byRole[RoleDistributor]),
		DistributorShipment:   byRole[RoleDistributor].OutgoingShipment,
		ManufacturerInventory: byRole[RoleManufacturer].Inventory,
		ManufacturerBacklog:   byRole[RoleManufacturer].Backlog,
		ManufacturerOrder:     orderOf(byRole[RoleManufacturer]),
		ManufacturerShipment:  byRole[RoleManufacturer].OutgoingShipment,
		CustomerDemand:        game.CurrentDemand,
	}
	return tx.Create(&week).Error
}

// GetGameHistory returns all settled week snapshots in week order.
func GetGameHistory(ctx context.Context, gameId string) ([]*GameWeek, error) {
	db := config.GetDB()
	var weeks []*GameWeek
	err := db.WithContext(ctx).
		Where("game_id = ?", gameId).
		Order("week_number ASC").
		Find(&weeks).Error
	if err != nil {
		return nil, err
	}
	return weeks, nil
}
