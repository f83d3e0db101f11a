package workflow

import (
	"github.com/mmdatafocus/beergame_backend/models"
)

// OrderPolicy decides what an AI role orders this week. Policies must be
// deterministic given the role state and never return a negative quantity.
type OrderPolicy func(game *models.Game, player *models.Player) int

// MatchIncomingPolicy is the reference policy: order exactly what was ordered
// from you. It neither amplifies nor dampens the order stream.
func MatchIncomingPolicy(game *models.Game, player *models.Player) int {
	if player.IncomingOrder < 0 {
		return 0
	}
	return player.IncomingOrder
}

// BaseStockPolicy targets a base-stock position of forecast * (leadTime + 1):
// it orders the gap between that target and the current inventory position
// (on hand minus backlog plus in transit), clamped at zero.
func BaseStockPolicy(game *models.Game, player *models.Player) int {
	forecast := player.IncomingOrder
	if forecast < 0 {
		forecast = 0
	}
	leadTime := game.LeadTime(player.Role)
	targetPosition := forecast * (leadTime + 1)
	inventoryPosition := player.Inventory - player.Backlog + player.PipelineInventory

	order := targetPosition - inventoryPosition
	if order < 0 {
		return 0
	}
	return order
}

// aiPolicy is the policy used by settlement for AI roles. Replaceable in
// tests and by the harness.
var aiPolicy OrderPolicy = MatchIncomingPolicy

// SetAIPolicy swaps the AI ordering policy and returns the previous one.
func SetAIPolicy(policy OrderPolicy) OrderPolicy {
	prev := aiPolicy
	if policy != nil {
		aiPolicy = policy
	}
	return prev
}
