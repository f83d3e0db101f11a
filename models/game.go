package models

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/beergame_backend/config"
	"github.com/mmdatafocus/beergame_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type GameStatus string

const (
	GameStatusWaiting   GameStatus = "waiting"
	GameStatusActive    GameStatus = "active"
	GameStatusCompleted GameStatus = "completed"
)

type DemandPattern string

const (
	DemandPatternFixed   DemandPattern = "fixed"
	DemandPatternRandom  DemandPattern = "random"
	DemandPatternStep    DemandPattern = "step"
	DemandPatternPoisson DemandPattern = "poisson"
)

// Game is one simulation instance. current_week only moves forward and is
// bounded by [1, total_weeks]; status transitions waiting -> active ->
// completed and never backward. IsSettling is the persisted settlement gate:
// it is flipped with a conditional update so concurrent settlement checks for
// the same week collapse to exactly one winner.
type Game struct {
	ID                   uuid.UUID       `gorm:"primary_key" json:"id"`
	GameCode             string          `gorm:"uniqueIndex;size:10;not null" json:"game_code"`
	Status               GameStatus      `gorm:"type:enum('waiting','active','completed');default:waiting;not null" json:"status"`
	CurrentWeek          int             `gorm:"not null;default:1" json:"current_week"`
	TotalWeeks           int             `gorm:"not null" json:"total_weeks"`
	InitialInventory     int             `gorm:"not null" json:"initial_inventory"`
	InitialBacklog       int             `gorm:"not null" json:"initial_backlog"`
	RetailerLeadTime     int             `gorm:"not null;default:2" json:"retailer_lead_time"`
	WholesalerLeadTime   int             `gorm:"not null;default:2" json:"wholesaler_lead_time"`
	DistributorLeadTime  int             `gorm:"not null;default:2" json:"distributor_lead_time"`
	ManufacturerLeadTime int             `gorm:"not null;default:2" json:"manufacturer_lead_time"`
	DemandPattern        DemandPattern   `gorm:"type:enum('fixed','random','step','poisson');default:fixed;not null" json:"demand_pattern"`
	FixedDemand          int             `gorm:"not null;default:4" json:"fixed_demand"`
	RandomDemandMean     float64         `gorm:"not null;default:8" json:"random_demand_mean"`
	RandomDemandVariance float64         `gorm:"not null;default:4" json:"random_demand_variance"`
	StepWeek             int             `gorm:"not null;default:5" json:"step_week"`
	StepAmount           int             `gorm:"not null;default:4" json:"step_amount"`
	HoldingCost          decimal.Decimal `gorm:"type:decimal(12,4);not null" json:"holding_cost"`
	BackorderCost        decimal.Decimal `gorm:"type:decimal(12,4);not null" json:"backorder_cost"`
	CurrentDemand        int             `gorm:"not null" json:"current_demand"`
	TotalTeamCost        decimal.Decimal `gorm:"type:decimal(16,4);not null;default:0" json:"total_team_cost"`
	IsSettling           *bool           `gorm:"not null;default:false" json:"is_settling"`
	CreatedAt            time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewGameLeadTimes struct {
	Retailer     int `json:"retailer" binding:"required,gte=1"`
	Wholesaler   int `json:"wholesaler" binding:"required,gte=1"`
	Distributor  int `json:"distributor" binding:"required,gte=1"`
	Manufacturer int `json:"manufacturer" binding:"required,gte=1"`
}

type NewGame struct {
	Weeks                int              `json:"weeks" binding:"required,gte=1"`
	InitialInventory     int              `json:"initial_inventory" binding:"gte=0"`
	InitialBacklog       int              `json:"initial_backlog" binding:"gte=0"`
	LeadTimes            NewGameLeadTimes `json:"lead_times" binding:"required"`
	DemandPattern        DemandPattern    `json:"demand_pattern" binding:"required,oneof=fixed random step poisson"`
	FixedDemand          int              `json:"fixed_demand" binding:"gte=0"`
	RandomDemandMean     float64          `json:"random_demand_mean" binding:"gte=0"`
	RandomDemandVariance float64          `json:"random_demand_variance" binding:"gte=0"`
	StepWeek             int              `json:"step_week"`
	StepAmount           int              `json:"step_amount"`
	HoldingCost          decimal.Decimal  `json:"holding_cost"`
	BackorderCost        decimal.Decimal  `json:"backorder_cost"`
	AIPlayers            []PlayerRole     `json:"ai_players"`
}

func (input *NewGame) validate() error {
	for _, role := range input.AIPlayers {
		if !role.Valid() {
			return utils.ErrorRoleNotFound
		}
	}
	if input.HoldingCost.IsNegative() || input.BackorderCost.IsNegative() {
		return errors.New("cost rates must be non-negative")
	}
	return nil
}

// LeadTime returns the configured lead time for a role in weeks.
func (g *Game) LeadTime(role PlayerRole) int {
	switch role {
	case RoleRetailer:
		return g.RetailerLeadTime
	case RoleWholesaler:
		return g.WholesalerLeadTime
	case RoleDistributor:
		return g.DistributorLeadTime
	default:
		return g.ManufacturerLeadTime
	}
}

// CreateGame creates a waiting game plus any configured AI players (each AI
// join also pre-seeds its in-flight pipeline, see AddPlayer). Returns the
// shareable game code.
func CreateGame(ctx context.Context, input *NewGame) (*Game, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	if input.StepWeek <= 0 {
		input.StepWeek = 5
	}
	if input.StepAmount == 0 {
		input.StepAmount = 4
	}

	game := Game{
		ID:                   uuid.New(),
		GameCode:             utils.GenerateGameCode(),
		Status:               GameStatusWaiting,
		CurrentWeek:          1,
		TotalWeeks:           input.Weeks,
		InitialInventory:     input.InitialInventory,
		InitialBacklog:       input.InitialBacklog,
		RetailerLeadTime:     input.LeadTimes.Retailer,
		WholesalerLeadTime:   input.LeadTimes.Wholesaler,
		DistributorLeadTime:  input.LeadTimes.Distributor,
		ManufacturerLeadTime: input.LeadTimes.Manufacturer,
		DemandPattern:        input.DemandPattern,
		FixedDemand:          input.FixedDemand,
		RandomDemandMean:     input.RandomDemandMean,
		RandomDemandVariance: input.RandomDemandVariance,
		StepWeek:             input.StepWeek,
		StepAmount:           input.StepAmount,
		HoldingCost:          input.HoldingCost,
		BackorderCost:        input.BackorderCost,
		IsSettling:           utils.NewFalse(),
	}
	game.CurrentDemand = InitialDemand(&game)

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&game).Error; err != nil {
			return err
		}
		for _, role := range input.AIPlayers {
			if err := addPlayerTx(tx, &game, role, "AI "+string(role), true); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &game, nil
}

// StartGame moves a waiting game to active and records the opening week
// snapshot. Starting an already active or completed game is a no-op.
func StartGame(ctx context.Context, gameId string) error {
	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		game, err := getGameForUpdate(tx, gameId)
		if err != nil {
			return err
		}
		if game.Status != GameStatusWaiting {
			return nil
		}
		if err := tx.Model(&Game{}).Where("id = ?", game.ID).
			Update("status", GameStatusActive).Error; err != nil {
			return err
		}
		game.Status = GameStatusActive
		return RecordGameWeekTx(tx, game)
	})
}

// GetGameById loads a game or reports ErrorGameNotFound.
func GetGameById(ctx context.Context, gameId string) (*Game, error) {
	db := config.GetDB()
	var game Game
	err := db.WithContext(ctx).Where("id = ?", gameId).First(&game).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorGameNotFound
	}
	if err != nil {
		return nil, err
	}
	return &game, nil
}

// GetGameByCode resolves the human-shareable join code.
func GetGameByCode(ctx context.Context, gameCode string) (*Game, error) {
	db := config.GetDB()
	var game Game
	err := db.WithContext(ctx).Where("game_code = ?", gameCode).First(&game).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorGameNotFound
	}
	if err != nil {
		return nil, err
	}
	return &game, nil
}

func getGameForUpdate(tx *gorm.DB, gameId string) (*Game, error) {
	var game Game
	err := tx.Where("id = ?", gameId).First(&game).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorGameNotFound
	}
	if err != nil {
		return nil, err
	}
	return &game, nil
}
