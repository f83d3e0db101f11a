package workflow

import (
	"context"
	"time"

	"github.com/mmdatafocus/beergame_backend/config"
	"github.com/mmdatafocus/beergame_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OutboxDispatcher drains committed GameEventRecord rows to the per-game
// redis channel. Rows are claimed with SKIP LOCKED plus a locked_at lease, so
// multiple instances can run a dispatcher without double-publishing in the
// common case; a crashed dispatcher's claims are reclaimed after the lease
// expires. Delivery to subscribers remains at-least-once.
type OutboxDispatcher struct {
	DB     *gorm.DB
	Logger *logrus.Logger

	BatchSize    int
	PollInterval time.Duration
	LockTimeout  time.Duration
}

func NewOutboxDispatcher(db *gorm.DB, logger *logrus.Logger) *OutboxDispatcher {
	return &OutboxDispatcher{
		DB:           db,
		Logger:       logger,
		BatchSize:    50,
		PollInterval: 500 * time.Millisecond,
		LockTimeout:  30 * time.Second,
	}
}

func (d *OutboxDispatcher) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.dispatchOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

func (d *OutboxDispatcher) dispatchOnce(ctx context.Context) {
	db := d.DB
	if db == nil {
		return
	}
	now := time.Now().UTC()
	staleBefore := now.Add(-d.LockTimeout)

	var claimed []models.GameEventRecord
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.
			Where("is_published = 0").
			Where("locked_at IS NULL OR locked_at <= ?", staleBefore).
			Order("id ASC").
			Limit(d.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}
		ids := make([]int, 0, len(claimed))
		for _, rec := range claimed {
			ids = append(ids, rec.ID)
		}
		return tx.Model(&models.GameEventRecord{}).
			Where("id IN ?", ids).
			Update("locked_at", &now).Error
	})
	if err != nil {
		config.LogError(d.Logger, "outboxDispatcher.go", "dispatchOnce", "claim outbox rows", nil, err)
		return
	}

	for _, rec := range claimed {
		if err := config.PublishGameFeed(ctx, rec.GameId.String(), rec.Payload); err != nil {
			// Drop the lease so the row is retried after LockTimeout.
			d.releaseClaim(ctx, rec.ID)
			config.LogError(d.Logger, "outboxDispatcher.go", "dispatchOnce", "publish game event", rec.GameId, err)
			continue
		}
		d.markPublished(ctx, rec.ID)
	}
}

func (d *OutboxDispatcher) markPublished(ctx context.Context, recordId int) {
	err := d.DB.WithContext(ctx).Model(&models.GameEventRecord{}).
		Where("id = ?", recordId).
		Updates(map[string]interface{}{
			"is_published": true,
			"locked_at":    nil,
		}).Error
	if err != nil {
		config.LogError(d.Logger, "outboxDispatcher.go", "markPublished", "mark outbox row", recordId, err)
	}
}

func (d *OutboxDispatcher) releaseClaim(ctx context.Context, recordId int) {
	_ = d.DB.WithContext(ctx).Model(&models.GameEventRecord{}).
		Where("id = ?", recordId).
		Update("locked_at", nil).Error
}
