package models

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/beergame_backend/config"
	"github.com/mmdatafocus/beergame_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Player is the mutable role ledger: exactly one row per Game x PlayerRole.
// OutgoingOrder is nullable on purpose: NULL means "no order submitted this
// week yet", and the weekly settlement may only run once every human row is
// non-NULL. It is reset to NULL exactly once per week transition.
type Player struct {
	ID                       uuid.UUID       `gorm:"primary_key" json:"id"`
	GameId                   uuid.UUID       `gorm:"uniqueIndex:idx_game_role;not null" json:"game_id"`
	Role                     PlayerRole      `gorm:"uniqueIndex:idx_game_role;type:enum('retailer','wholesaler','distributor','manufacturer');not null" json:"role"`
	Name                     string          `gorm:"size:100;not null" json:"name"`
	IsAI                     *bool           `gorm:"not null;default:false" json:"is_ai"`
	Inventory                int             `gorm:"not null" json:"inventory"`
	Backlog                  int             `gorm:"not null" json:"backlog"`
	PipelineInventory        int             `gorm:"not null" json:"pipeline_inventory"`
	IncomingOrder            int             `gorm:"not null" json:"incoming_order"`
	OutgoingOrder            *int            `json:"outgoing_order"`
	IncomingShipment         int             `gorm:"not null" json:"incoming_shipment"`
	OutgoingShipment         int             `gorm:"not null" json:"outgoing_shipment"`
	NextWeekIncomingShipment int             `gorm:"not null" json:"next_week_incoming_shipment"`
	WeeklyHoldingCost        decimal.Decimal `gorm:"type:decimal(16,4);not null;default:0" json:"weekly_holding_cost"`
	WeeklyBackorderCost      decimal.Decimal `gorm:"type:decimal(16,4);not null;default:0" json:"weekly_backorder_cost"`
	TotalHoldingCost         decimal.Decimal `gorm:"type:decimal(16,4);not null;default:0" json:"total_holding_cost"`
	TotalBackorderCost       decimal.Decimal `gorm:"type:decimal(16,4);not null;default:0" json:"total_backorder_cost"`
	TotalCost                decimal.Decimal `gorm:"type:decimal(16,4);not null;default:0" json:"total_cost"`
	TotalOrders              int             `gorm:"not null;default:0" json:"total_orders"`
	TotalBackorders          int             `gorm:"not null;default:0" json:"total_backorders"`
	TotalInventory           int             `gorm:"not null;default:0" json:"total_inventory"`
	TotalOutgoingOrders      int             `gorm:"not null;default:0" json:"total_outgoing_orders"`
	TotalOutgoingShipments   int             `gorm:"not null;default:0" json:"total_outgoing_shipments"`
	OrderVariability         float64         `gorm:"not null;default:0" json:"order_variability"`
	MinOrder                 int             `gorm:"not null;default:0" json:"min_order"`
	MaxOrder                 int             `gorm:"not null;default:0" json:"max_order"`
	CreatedAt                time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// AddPlayer seats a player (human or AI) on a role and pre-seeds the role's
// in-flight pipeline so week-1 shipments are already on the road: one entry
// per lead-time week at the configured fixed demand, plus the factory
// production queue for the manufacturer.
func AddPlayer(ctx context.Context, gameId string, role PlayerRole, name string, isAI bool) (*Player, error) {
	if !role.Valid() {
		return nil, utils.ErrorRoleNotFound
	}
	db := config.GetDB()
	var player *Player
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		game, err := getGameForUpdate(tx, gameId)
		if err != nil {
			return err
		}
		if game.Status == GameStatusCompleted {
			return utils.ErrorGameNotActive
		}
		if err := addPlayerTx(tx, game, role, name, isAI); err != nil {
			return err
		}
		return tx.Where("game_id = ? AND role = ?", game.ID, role).First(&player).Error
	})
	if err != nil {
		return nil, err
	}
	return player, nil
}

func addPlayerTx(tx *gorm.DB, game *Game, role PlayerRole, name string, isAI bool) error {
	var taken int64
	if err := tx.Model(&Player{}).
		Where("game_id = ? AND role = ?", game.ID, role).
		Count(&taken).Error; err != nil {
		return err
	}
	if taken > 0 {
		return errors.New("role is already taken")
	}

	leadTime := game.LeadTime(role)
	holding := game.HoldingCost.Mul(decimal.NewFromInt(int64(game.InitialInventory)))
	backorder := game.BackorderCost.Mul(decimal.NewFromInt(int64(game.InitialBacklog)))

	// The week-1 arrival is already baked into the seeded state, so the
	// pipeline holds the remaining lead-time slots.
	player := Player{
		ID:                       uuid.New(),
		GameId:                   game.ID,
		Role:                     role,
		Name:                     name,
		IsAI:                     &isAI,
		Inventory:                game.InitialInventory,
		Backlog:                  game.InitialBacklog,
		PipelineInventory:        (leadTime - 1) * game.FixedDemand,
		IncomingOrder:            game.FixedDemand,
		OutgoingOrder:            nil,
		IncomingShipment:         game.FixedDemand,
		OutgoingShipment:         game.FixedDemand,
		NextWeekIncomingShipment: game.FixedDemand,
		WeeklyHoldingCost:        holding,
		WeeklyBackorderCost:      backorder,
		TotalHoldingCost:         holding,
		TotalBackorderCost:       backorder,
		TotalCost:                holding.Add(backorder),
		TotalOrders:              game.FixedDemand,
		TotalBackorders:          game.InitialBacklog,
		TotalInventory:           game.InitialInventory,
		TotalOutgoingOrders:      0,
		TotalOutgoingShipments:   game.FixedDemand,
		OrderVariability:         0,
		MinOrder:                 game.FixedDemand,
		MaxOrder:                 game.FixedDemand,
	}
	if err := tx.Create(&player).Error; err != nil {
		return err
	}

	// In-flight shipments placed "before week 1". The oldest is the seeded
	// week-1 arrival: its goods already sit in the player's opening state,
	// so it is born delivered and week advancement never re-applies it.
	for i := 1; i <= leadTime; i++ {
		weekDelivered := 1 + (leadTime - i)
		entry := ShipmentOrder{
			GameId:        game.ID,
			FromRole:      string(role),
			ToRole:        role.DownstreamRecipient(),
			Quantity:      game.FixedDemand,
			WeekPlaced:    1 - i,
			WeekDelivered: weekDelivered,
			IsDelivered:   utils.NewFalse(),
		}
		if weekDelivered <= 1 {
			entry.IsDelivered = utils.NewTrue()
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
	}
	if role == RoleManufacturer {
		for i := 1; i <= leadTime; i++ {
			weekDelivered := 1 + (leadTime - i)
			entry := ShipmentOrder{
				GameId:        game.ID,
				FromRole:      EndpointFactory,
				ToRole:        string(role),
				Quantity:      game.FixedDemand,
				WeekPlaced:    1 - i,
				WeekDelivered: weekDelivered,
				IsDelivered:   utils.NewFalse(),
			}
			if weekDelivered <= 1 {
				entry.IsDelivered = utils.NewTrue()
			}
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// GetPlayer loads one role ledger row.
func GetPlayer(ctx context.Context, gameId string, role PlayerRole) (*Player, error) {
	if !role.Valid() {
		return nil, utils.ErrorRoleNotFound
	}
	db := config.GetDB()
	var player Player
	err := db.WithContext(ctx).
		Where("game_id = ? AND role = ?", gameId, role).
		First(&player).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRoleNotFound
	}
	if err != nil {
		return nil, err
	}
	return &player, nil
}

func getPlayersTx(tx *gorm.DB, gameId uuid.UUID) ([]*Player, error) {
	var players []*Player
	if err := tx.Where("game_id = ?", gameId).Find(&players).Error; err != nil {
		return nil, err
	}
	return players, nil
}

// GetGamePlayers maps each role to the seated player name, nil when open.
func GetGamePlayers(ctx context.Context, gameId string) (map[PlayerRole]*string, error) {
	db := config.GetDB()
	var players []*Player
	if err := db.WithContext(ctx).
		Select("role", "name").
		Where("game_id = ?", gameId).
		Find(&players).Error; err != nil {
		return nil, err
	}
	result := map[PlayerRole]*string{
		RoleRetailer:     nil,
		RoleWholesaler:   nil,
		RoleDistributor:  nil,
		RoleManufacturer: nil,
	}
	for _, p := range players {
		name := p.Name
		result[p.Role] = &name
	}
	return result, nil
}

// CheckRoleAvailable reports whether a seat is still open.
func CheckRoleAvailable(ctx context.Context, gameId string, role PlayerRole) (bool, error) {
	if !role.Valid() {
		return false, utils.ErrorRoleNotFound
	}
	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&Player{}).
		Where("game_id = ? AND role = ?", gameId, role).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count == 0, nil
}

// ResetPlayerOrder is the administrative escape hatch: it clears a role's
// submitted order back to NULL, re-opening order intake for that role.
func ResetPlayerOrder(ctx context.Context, gameId string, role PlayerRole) (bool, error) {
	if !role.Valid() {
		return false, utils.ErrorRoleNotFound
	}
	db := config.GetDB()
	result := db.WithContext(ctx).Model(&Player{}).
		Where("game_id = ? AND role = ?", gameId, role).
		Update("outgoing_order", gorm.Expr("NULL"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// NextOrderVariability folds one more submitted order into the running
// standard deviation of a player's order stream. priorOrders is how many
// orders are already folded in and priorMean their running average.
func NextOrderVariability(currentVariability float64, priorOrders int, priorMean float64, newOrder int) float64 {
	// A stream of one carries no spread.
	if priorOrders <= 1 {
		return 0
	}
	n := float64(priorOrders)
	avgOrder := (n*priorMean + float64(newOrder)) / (n + 1)
	variance := (currentVariability*currentVariability*(n-1) + math.Pow(float64(newOrder)-avgOrder, 2)) / n
	return math.Sqrt(variance)
}
