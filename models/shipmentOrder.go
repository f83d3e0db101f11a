package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ShipmentOrder is one pipeline ledger entry: goods or an order moving
// between two stages. The ledger is append-only for the life of a game.
// Order placements transmit instantly (week_delivered == week_placed,
// is_delivered true from birth); shipments ride the lead time and are applied
// to the recipient's inventory exactly once, when week advancement reaches
// their delivery week and flips is_delivered.
//
// Lookups never scan the whole ledger: due deliveries and pipeline totals go
// through the composite indexes below, so only entries within a lead time of
// "now" are ever touched.
type ShipmentOrder struct {
	ID            int       `gorm:"primary_key" json:"id"`
	GameId        uuid.UUID `gorm:"index:idx_due,priority:1;index:idx_outbound,priority:1;not null" json:"game_id"`
	FromRole      string    `gorm:"index:idx_outbound,priority:2;size:20;not null" json:"from_role"`
	ToRole        string    `gorm:"index:idx_due,priority:2;size:20;not null" json:"to_role"`
	Quantity      int       `gorm:"not null" json:"quantity"`
	WeekPlaced    int       `gorm:"not null" json:"week_placed"`
	WeekDelivered int       `gorm:"index:idx_due,priority:3;not null" json:"week_delivered"`
	IsDelivered   *bool     `gorm:"index:idx_due,priority:4;index:idx_outbound,priority:3;not null;default:false" json:"is_delivered"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// DueDeliveriesTx returns the undelivered entries addressed to a role that
// fall due in the given week.
func DueDeliveriesTx(tx *gorm.DB, gameId uuid.UUID, toRole string, week int) ([]*ShipmentOrder, error) {
	var entries []*ShipmentOrder
	err := tx.
		Where("game_id = ? AND to_role = ? AND week_delivered = ? AND is_delivered = ?", gameId, toRole, week, false).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// IncomingShipmentLookaheadTx sums the undelivered quantity addressed to a
// role for a single future week. Display only; delivery application never
// reads it.
func IncomingShipmentLookaheadTx(tx *gorm.DB, gameId uuid.UUID, toRole string, week int) (int, error) {
	var total *int
	err := tx.Model(&ShipmentOrder{}).
		Select("SUM(quantity)").
		Where("game_id = ? AND to_role = ? AND week_delivered = ? AND is_delivered = ?", gameId, toRole, week, false).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

// PipelineInventoryTx sums a role's own undelivered outbound entries.
func PipelineInventoryTx(tx *gorm.DB, gameId uuid.UUID, role PlayerRole) (int, error) {
	var total *int
	err := tx.Model(&ShipmentOrder{}).
		Select("SUM(quantity)").
		Where("game_id = ? AND from_role = ? AND is_delivered = ?", gameId, string(role), false).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

// MarkDeliveredTx flips entries to delivered; callers pair this with the
// inventory application inside the same transaction so an entry can never be
// summed twice.
func MarkDeliveredTx(tx *gorm.DB, entryIds []int) error {
	if len(entryIds) == 0 {
		return nil
	}
	return tx.Model(&ShipmentOrder{}).
		Where("id IN ?", entryIds).
		Update("is_delivered", true).Error
}
