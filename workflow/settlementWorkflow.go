package workflow

import (
	"context"
	"errors"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/beergame_backend/config"
	"github.com/mmdatafocus/beergame_backend/models"
	"github.com/mmdatafocus/beergame_backend/utils"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("beergame-settlement")

// CheckAndSettle runs the weekly settlement for a game if and only if every
// role has an order on record: humans must have submitted, AI roles are
// filled in here. It is safe to fire from anywhere, any number of times,
// concurrently: callers race on the persisted is_settling flag and all losers
// return nil without touching game state.
//
// Winning path, in one transaction: AI orders -> shipment resolution ->
// either week advancement, cost accrual and the week snapshot, or, on the
// final week, cost accrual and completion. The outbox row for the state
// change commits with it.
func CheckAndSettle(ctx context.Context, gameId string) error {
	ctx, span := tracer.Start(ctx, "CheckAndSettle")
	defer span.End()

	logger := config.GetLogger()
	db := config.GetDB()

	// Best-effort shortcut so a burst of submissions doesn't hammer MySQL
	// with doomed CAS attempts. Mutual exclusion never depends on it: when
	// redis is down we proceed straight to the persisted flag.
	lock, err := utils.ObtainGameLock(ctx, gameId, "settle", "settlementWorkflow.go", "CheckAndSettle")
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil
	}
	if lock != nil {
		defer lock.Release(context.Background())
	}

	// The persisted settlement gate. Exactly one concurrent caller flips the
	// flag; everyone else sees RowsAffected == 0 and walks away.
	claim := db.WithContext(ctx).Model(&models.Game{}).
		Where("id = ? AND is_settling = ? AND status = ?", gameId, false, models.GameStatusActive).
		Update("is_settling", true)
	if claim.Error != nil {
		return utils.NewSettlementError(gameId, claim.Error)
	}
	if claim.RowsAffected == 0 {
		return nil
	}
	defer func() {
		// Release on every exit path, including errors. Uses a fresh context
		// so a cancelled request cannot leave the flag stuck.
		err := db.WithContext(context.Background()).Model(&models.Game{}).
			Where("id = ?", gameId).
			Update("is_settling", false).Error
		if err != nil {
			config.LogError(logger, "settlementWorkflow.go", "CheckAndSettle", "release settlement flag", gameId, err)
		}
	}()

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Serializes against settlements of the same game from other
		// instances that bypassed the redis shortcut.
		if err := AcquireGameSettlementLock(tx, gameId); err != nil {
			return err
		}
		defer ReleaseGameSettlementLock(tx, gameId)

		var game models.Game
		if err := tx.Where("id = ?", gameId).First(&game).Error; err != nil {
			return err
		}
		if game.Status != models.GameStatusActive {
			return nil
		}

		var players []*models.Player
		if err := tx.Where("game_id = ?", game.ID).Find(&players).Error; err != nil {
			return err
		}
		if len(players) < len(models.AllRoles) {
			return nil
		}

		// Not every human order is in yet; settlement waits.
		for _, p := range players {
			if p.OutgoingOrder == nil && (p.IsAI == nil || !*p.IsAI) {
				return nil
			}
		}

		for _, p := range players {
			if p.OutgoingOrder != nil || p.IsAI == nil || !*p.IsAI {
				continue
			}
			quantity := aiPolicy(&game, p)
			if _, err := models.SubmitOrderTx(tx, &game, p.Role, quantity); err != nil {
				return err
			}
		}

		// AI submissions above changed incoming orders; settle from a fresh
		// read.
		players = nil
		if err := tx.Where("game_id = ?", game.ID).Find(&players).Error; err != nil {
			return err
		}

		if err := resolveShipmentsTx(tx, logger, &game, players); err != nil {
			return err
		}

		if game.CurrentWeek >= game.TotalWeeks {
			// Final week: costs accrue on the post-shipment position, then
			// the game closes and intake stays shut for good.
			if err := accrueCostsTx(tx, logger, &game, players); err != nil {
				return err
			}
			err := tx.Model(&models.Game{}).
				Where("id = ?", game.ID).
				Updates(map[string]interface{}{
					"status":      models.GameStatusCompleted,
					"is_settling": false,
				}).Error
			if err != nil {
				return err
			}
			game.Status = models.GameStatusCompleted
			return models.PublishToGameFeed(ctx, tx, &game, models.GameEventGameCompleted)
		}

		if err := advanceWeekTx(tx, logger, &game, players); err != nil {
			return err
		}
		if err := accrueCostsTx(tx, logger, &game, players); err != nil {
			return err
		}
		if err := models.RecordGameWeekTx(tx, &game); err != nil {
			return err
		}
		return models.PublishToGameFeed(ctx, tx, &game, models.GameEventWeekSettled)
	})
	if err != nil {
		config.LogError(logger, "settlementWorkflow.go", "CheckAndSettle", "settlement transaction", gameId, err)
		return utils.NewSettlementError(gameId, err)
	}
	return nil
}
