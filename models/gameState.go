package models

import (
	"context"

	"github.com/mmdatafocus/beergame_backend/config"
)

// GameState is the read-only projection handed to clients: the game row plus
// all four role ledgers.
type GameState struct {
	Game         *Game   `json:"game"`
	Retailer     *Player `json:"retailer"`
	Wholesaler   *Player `json:"wholesaler"`
	Distributor  *Player `json:"distributor"`
	Manufacturer *Player `json:"manufacturer"`
}

func buildGameState(game *Game, players []*Player) *GameState {
	state := &GameState{Game: game}
	for _, p := range players {
		switch p.Role {
		case RoleRetailer:
			state.Retailer = p
		case RoleWholesaler:
			state.Wholesaler = p
		case RoleDistributor:
			state.Distributor = p
		case RoleManufacturer:
			state.Manufacturer = p
		}
	}
	return state
}

// GetGameState loads the projection by game id.
func GetGameState(ctx context.Context, gameId string) (*GameState, error) {
	game, err := GetGameById(ctx, gameId)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	var players []*Player
	if err := db.WithContext(ctx).Where("game_id = ?", game.ID).Find(&players).Error; err != nil {
		return nil, err
	}
	return buildGameState(game, players), nil
}

// GetGameStateByCode loads the projection by join code.
func GetGameStateByCode(ctx context.Context, gameCode string) (*GameState, error) {
	game, err := GetGameByCode(ctx, gameCode)
	if err != nil {
		return nil, err
	}
	return GetGameState(ctx, game.ID.String())
}

// GameDebugReport diagnoses a stuck game: which roles still owe an order and
// whether the settlement flag was left set.
type GameDebugReport struct {
	Game          *Game            `json:"game"`
	Players       []*Player        `json:"players"`
	PendingOrders []*ShipmentOrder `json:"pending_orders"`
	StuckRoles    []PlayerRole     `json:"stuck_roles"`
	FlagReset     bool             `json:"flag_reset"`
}

// DebugGame inspects a game and, when the settlement flag is set while a
// human order is still missing, resets the flag so intake can recover.
func DebugGame(ctx context.Context, gameId string) (*GameDebugReport, error) {
	game, err := GetGameById(ctx, gameId)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()

	var players []*Player
	if err := db.WithContext(ctx).Where("game_id = ?", game.ID).Find(&players).Error; err != nil {
		return nil, err
	}

	report := &GameDebugReport{Game: game, Players: players}
	for _, p := range players {
		if p.OutgoingOrder == nil && p.IsAI != nil && !*p.IsAI && game.Status == GameStatusActive {
			report.StuckRoles = append(report.StuckRoles, p.Role)
		}
	}

	if len(report.StuckRoles) > 0 && game.IsSettling != nil && *game.IsSettling {
		result := db.WithContext(ctx).Model(&Game{}).
			Where("id = ? AND is_settling = ?", game.ID, true).
			Update("is_settling", false)
		if result.Error == nil && result.RowsAffected > 0 {
			report.FlagReset = true
		}
	}

	var pending []*ShipmentOrder
	if err := db.WithContext(ctx).
		Where("game_id = ? AND is_delivered = ?", game.ID, false).
		Order("week_delivered ASC").
		Find(&pending).Error; err != nil {
		return nil, err
	}
	report.PendingOrders = pending
	return report, nil
}
