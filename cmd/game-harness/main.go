package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mmdatafocus/beergame_backend/config"
	"github.com/mmdatafocus/beergame_backend/models"
	"github.com/mmdatafocus/beergame_backend/utils"
	"github.com/mmdatafocus/beergame_backend/workflow"
	"github.com/shopspring/decimal"
)

// game-harness runs a full all-AI game end to end against a real database,
// printing the per-week snapshots. Useful for demand-pattern tuning and for
// reproducing settlement bugs without a frontend.
//
// Example:
//   go run ./cmd/game-harness \
//     --weeks=26 --demand_pattern=step --fixed_demand=4 --step_week=5 \
//     --holding_cost=0.5 --backorder_cost=1.0 --policy=base-stock
func main() {
	var (
		weeks         = flag.Int("weeks", 26, "total weeks")
		inventory     = flag.Int("initial_inventory", 12, "initial inventory per role")
		backlog       = flag.Int("initial_backlog", 0, "initial backlog per role")
		leadTime      = flag.Int("lead_time", 2, "lead time for all roles")
		demandPattern = flag.String("demand_pattern", "fixed", "fixed | random | step | poisson")
		fixedDemand   = flag.Int("fixed_demand", 4, "fixed / baseline demand")
		demandMean    = flag.Float64("demand_mean", 8, "mean for random/poisson demand")
		demandVar     = flag.Float64("demand_variance", 4, "variance for random demand")
		stepWeek      = flag.Int("step_week", 5, "week the step pattern jumps")
		stepAmount    = flag.Int("step_amount", 4, "size of the step jump")
		holdingCost   = flag.Float64("holding_cost", 0.5, "holding cost per unit per week")
		backorderCost = flag.Float64("backorder_cost", 1.0, "backorder cost per unit per week")
		policy        = flag.String("policy", "match", "AI policy: match | base-stock")
		sleepMS       = flag.Int("sleep_ms", 0, "sleep between weeks (ms)")
	)
	flag.Parse()

	switch *policy {
	case "match":
		workflow.SetAIPolicy(workflow.MatchIncomingPolicy)
	case "base-stock":
		workflow.SetAIPolicy(workflow.BaseStockPolicy)
	default:
		fmt.Fprintf(os.Stderr, "unknown --policy: %s\n", *policy)
		os.Exit(2)
	}

	// Connect to DB/Redis using env config (same as server).
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx := utils.SetCorrelationIdInContext(context.Background(),
		fmt.Sprintf("game-harness-%d", time.Now().UnixNano()))

	input := &models.NewGame{
		Weeks:            *weeks,
		InitialInventory: *inventory,
		InitialBacklog:   *backlog,
		LeadTimes: models.NewGameLeadTimes{
			Retailer:     *leadTime,
			Wholesaler:   *leadTime,
			Distributor:  *leadTime,
			Manufacturer: *leadTime,
		},
		DemandPattern:        models.DemandPattern(*demandPattern),
		FixedDemand:          *fixedDemand,
		RandomDemandMean:     *demandMean,
		RandomDemandVariance: *demandVar,
		StepWeek:             *stepWeek,
		StepAmount:           *stepAmount,
		HoldingCost:          decimal.NewFromFloat(*holdingCost),
		BackorderCost:        decimal.NewFromFloat(*backorderCost),
		AIPlayers:            models.AllRoles,
	}

	game, err := models.CreateGame(ctx, input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create game: %v\n", err)
		os.Exit(1)
	}
	if err := models.StartGame(ctx, game.ID.String()); err != nil {
		fmt.Fprintf(os.Stderr, "start game: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("game %s (code %s): %d weeks, pattern=%s policy=%s\n",
		game.ID, game.GameCode, *weeks, *demandPattern, *policy)

	for week := 1; week <= *weeks; week++ {
		if err := workflow.CheckAndSettle(ctx, game.ID.String()); err != nil {
			fmt.Fprintf(os.Stderr, "week %d settle: %v\n", week, err)
			os.Exit(1)
		}
		state, err := models.GetGameState(ctx, game.ID.String())
		if err != nil {
			fmt.Fprintf(os.Stderr, "week %d state: %v\n", week, err)
			os.Exit(1)
		}
		fmt.Printf("week=%02d status=%s demand=%d retailer(inv=%d bo=%d) manufacturer(inv=%d bo=%d) team_cost=%s\n",
			week, state.Game.Status, state.Game.CurrentDemand,
			state.Retailer.Inventory, state.Retailer.Backlog,
			state.Manufacturer.Inventory, state.Manufacturer.Backlog,
			state.Game.TotalTeamCost.StringFixed(2))
		if state.Game.Status == models.GameStatusCompleted {
			break
		}
		if *sleepMS > 0 {
			time.Sleep(time.Duration(*sleepMS) * time.Millisecond)
		}
	}

	final, err := models.GetGameState(ctx, game.ID.String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "final state: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nRESULT: status=%s weeks=%d team_cost=%s\n",
		final.Game.Status, final.Game.CurrentWeek, final.Game.TotalTeamCost.StringFixed(2))
	for _, p := range []*models.Player{final.Retailer, final.Wholesaler, final.Distributor, final.Manufacturer} {
		fmt.Printf("  %-12s cost=%s holding=%s backorder=%s min=%d max=%d variability=%.2f\n",
			p.Role, p.TotalCost.StringFixed(2), p.TotalHoldingCost.StringFixed(2),
			p.TotalBackorderCost.StringFixed(2), p.MinOrder, p.MaxOrder, p.OrderVariability)
	}
}
