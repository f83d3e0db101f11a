package workflow

import (
	"testing"

	"github.com/mmdatafocus/beergame_backend/models"
)

func TestMatchIncomingPolicy(t *testing.T) {
	game := &models.Game{RetailerLeadTime: 2}
	p := &models.Player{Role: models.RoleRetailer, IncomingOrder: 7}
	if got := MatchIncomingPolicy(game, p); got != 7 {
		t.Fatalf("MatchIncomingPolicy = %d, want 7", got)
	}
	p.IncomingOrder = -1
	if got := MatchIncomingPolicy(game, p); got != 0 {
		t.Fatalf("negative incoming order should clamp to 0; got %d", got)
	}
}

func TestBaseStockPolicy(t *testing.T) {
	game := &models.Game{WholesalerLeadTime: 2}
	cases := []struct {
		name   string
		player models.Player
		want   int
	}{
		{
			// target 4*(2+1)=12, position 12-0+0=12 -> order 0
			"at target",
			models.Player{Role: models.RoleWholesaler, IncomingOrder: 4, Inventory: 12},
			0,
		},
		{
			// target 12, position 5-3+2=4 -> order 8
			"below target",
			models.Player{Role: models.RoleWholesaler, IncomingOrder: 4, Inventory: 5, Backlog: 3, PipelineInventory: 2},
			8,
		},
		{
			// target 12, position 20 -> clamped at 0, never a negative order
			"above target",
			models.Player{Role: models.RoleWholesaler, IncomingOrder: 4, Inventory: 20},
			0,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := BaseStockPolicy(game, &tc.player); got != tc.want {
				t.Fatalf("BaseStockPolicy = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestSetAIPolicy(t *testing.T) {
	orig := SetAIPolicy(BaseStockPolicy)
	defer SetAIPolicy(orig)

	game := &models.Game{DistributorLeadTime: 2}
	p := &models.Player{Role: models.RoleDistributor, IncomingOrder: 4, Inventory: 4}
	if got := aiPolicy(game, p); got != 8 {
		t.Fatalf("swapped policy not in effect: got %d, want 8", got)
	}

	// nil leaves the policy unchanged.
	prev := SetAIPolicy(nil)
	if got := prev(game, p); got != 8 {
		t.Fatalf("SetAIPolicy(nil) should return the active policy; got %d, want 8", got)
	}
	if got := aiPolicy(game, p); got != 8 {
		t.Fatalf("SetAIPolicy(nil) should leave the policy unchanged; got %d, want 8", got)
	}
}
