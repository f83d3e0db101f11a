package models

import (
	"context"

	"github.com/mmdatafocus/beergame_backend/config"
	"github.com/mmdatafocus/beergame_backend/utils"
	"gorm.io/gorm"
)

// SubmitOrder records one role's replenishment order for the current week.
//
// At-most-once per role per week: the write is a conditional update guarded
// by "outgoing_order IS NULL", so of N concurrent submissions exactly one
// lands. The losers see the already-set value and return accepted=false with
// no error (idempotent success): no duplicated statistics, no duplicate
// ledger entry.
//
// The caller is expected to follow an accepted submission with an
// asynchronous settlement check; ordering correctness never depends on it.
func SubmitOrder(ctx context.Context, gameId string, role PlayerRole, quantity int) (bool, error) {
	if !role.Valid() {
		return false, utils.ErrorRoleNotFound
	}
	if quantity < 0 {
		return false, utils.ErrorInvalidQuantity
	}

	db := config.GetDB()
	accepted := false
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		game, err := getGameForUpdate(tx, gameId)
		if err != nil {
			return err
		}
		if game.Status != GameStatusActive {
			return utils.ErrorGameNotActive
		}
		accepted, err = SubmitOrderTx(tx, game, role, quantity)
		return err
	})
	if err != nil {
		return false, err
	}
	return accepted, nil
}

// SubmitOrderTx is the recording half of order intake, shared by the public
// entry point and by the settlement workflow when it fills in AI orders.
// It must run inside a transaction.
func SubmitOrderTx(tx *gorm.DB, game *Game, role PlayerRole, quantity int) (bool, error) {
	if quantity < 0 {
		return false, utils.ErrorInvalidQuantity
	}

	var player Player
	err := tx.Where("game_id = ? AND role = ?", game.ID, role).First(&player).Error
	if err == gorm.ErrRecordNotFound {
		return false, utils.ErrorRoleNotFound
	}
	if err != nil {
		return false, err
	}

	// Already submitted this week: idempotent no-op.
	if player.OutgoingOrder != nil {
		return false, nil
	}

	minOrder := player.MinOrder
	if quantity < minOrder {
		minOrder = quantity
	}
	maxOrder := player.MaxOrder
	if quantity > maxOrder {
		maxOrder = quantity
	}
	// One order per settled week, so the prior order count is the number of
	// weeks already settled.
	priorOrders := game.CurrentWeek - 1
	priorMean := 0.0
	if priorOrders > 0 {
		priorMean = float64(player.TotalOutgoingOrders) / float64(priorOrders)
	}
	variability := NextOrderVariability(player.OrderVariability, priorOrders, priorMean, quantity)

	result := tx.Model(&Player{}).
		Where("id = ? AND outgoing_order IS NULL", player.ID).
		Updates(map[string]interface{}{
			"outgoing_order":        quantity,
			"total_outgoing_orders": player.TotalOutgoingOrders + quantity,
			"min_order":             minOrder,
			"max_order":             maxOrder,
			"order_variability":     variability,
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		// Lost the race to a concurrent duplicate; treat as already placed.
		return false, nil
	}

	// Orders transmit instantly; only shipments ride the lead time.
	toRole := role.UpstreamRecipient()
	entry := ShipmentOrder{
		GameId:        game.ID,
		FromRole:      string(role),
		ToRole:        toRole,
		Quantity:      quantity,
		WeekPlaced:    game.CurrentWeek,
		WeekDelivered: game.CurrentWeek,
		IsDelivered:   utils.NewTrue(),
	}
	if err := tx.Create(&entry).Error; err != nil {
		return false, err
	}

	if toRole != EndpointFactory {
		if err := tx.Model(&Player{}).
			Where("game_id = ? AND role = ?", game.ID, toRole).
			Updates(map[string]interface{}{
				"incoming_order": quantity,
				"total_orders":   gorm.Expr("total_orders + ?", quantity),
			}).Error; err != nil {
			return false, err
		}
	}
	return true, nil
}
