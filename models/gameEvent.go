package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/beergame_backend/utils"
	"gorm.io/gorm"
)

type GameEventType string

const (
	GameEventWeekSettled   GameEventType = "week_settled"
	GameEventGameCompleted GameEventType = "game_completed"
)

// GameEventRecord is a transactional outbox row. The settlement transaction
// writes it alongside the state it describes but does NOT publish; the outbox
// dispatcher publishes to the per-game redis channel after commit. Clients
// that miss a publish still converge by polling, so delivery is at-least-once
// and best-effort.
type GameEventRecord struct {
	ID            int           `gorm:"primary_key" json:"id"`
	GameId        uuid.UUID     `gorm:"index;not null" json:"game_id"`
	EventType     GameEventType `gorm:"size:30;not null" json:"event_type"`
	Week          int           `gorm:"not null" json:"week"`
	Payload       []byte        `gorm:"type:json" json:"payload"`
	IsPublished   *bool         `gorm:"index;not null;default:false" json:"is_published"`
	LockedAt      *time.Time    `json:"locked_at"`
	CorrelationId string        `gorm:"size:64" json:"correlation_id"`
	CreatedAt     time.Time     `gorm:"autoCreateTime" json:"created_at"`
}

// GameEventPayload is what subscribers receive on the game channel.
type GameEventPayload struct {
	GameId        string        `json:"game_id"`
	EventType     GameEventType `json:"event_type"`
	Week          int           `json:"week"`
	Status        GameStatus    `json:"status"`
	CurrentDemand int           `json:"current_demand"`
	TotalTeamCost string        `json:"total_team_cost"`
}

// PublishToGameFeed writes the outbox row inside the caller's settlement
// transaction. Publication happens asynchronously after commit.
func PublishToGameFeed(ctx context.Context, tx *gorm.DB, game *Game, eventType GameEventType) error {
	payload := GameEventPayload{
		GameId:        game.ID.String(),
		EventType:     eventType,
		Week:          game.CurrentWeek,
		Status:        game.Status,
		CurrentDemand: game.CurrentDemand,
		TotalTeamCost: game.TotalTeamCost.String(),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	record := GameEventRecord{
		GameId:        game.ID,
		EventType:     eventType,
		Week:          game.CurrentWeek,
		Payload:       raw,
		IsPublished:   utils.NewFalse(),
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return tx.Create(&record).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}
