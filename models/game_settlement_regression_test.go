package models_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mmdatafocus/beergame_backend/config"
	"github.com/mmdatafocus/beergame_backend/models"
	"github.com/mmdatafocus/beergame_backend/utils"
	"github.com/mmdatafocus/beergame_backend/workflow"
	"github.com/shopspring/decimal"
)

// startGameTestEnv spins up redis + mysql containers, wires env for the
// config.Connect* helpers and migrates a fresh schema.
func startGameTestEnv(t *testing.T) context.Context {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "beergame_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	return utils.SetCorrelationIdInContext(context.Background(), "settlement-test")
}

func createStartedGame(t *testing.T, ctx context.Context, weeks int) *models.Game {
	t.Helper()
	game, err := models.CreateGame(ctx, &models.NewGame{
		Weeks:            weeks,
		InitialInventory: 12,
		InitialBacklog:   0,
		LeadTimes: models.NewGameLeadTimes{
			Retailer: 2, Wholesaler: 2, Distributor: 2, Manufacturer: 2,
		},
		DemandPattern: models.DemandPatternFixed,
		FixedDemand:   4,
		HoldingCost:   decimal.NewFromFloat(0.5),
		BackorderCost: decimal.NewFromFloat(1.0),
	})
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	for _, role := range models.AllRoles {
		if _, err := models.AddPlayer(ctx, game.ID.String(), role, "Human "+string(role), false); err != nil {
			t.Fatalf("AddPlayer(%s): %v", role, err)
		}
	}
	if err := models.StartGame(ctx, game.ID.String()); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	return game
}

func submitAllOrders(t *testing.T, ctx context.Context, gameId string, quantity int) {
	t.Helper()
	for _, role := range models.AllRoles {
		accepted, err := models.SubmitOrder(ctx, gameId, role, quantity)
		if err != nil {
			t.Fatalf("SubmitOrder(%s): %v", role, err)
		}
		if !accepted {
			t.Fatalf("SubmitOrder(%s): expected accepted", role)
		}
	}
}

func TestSingleWeekGameSettlesAndCompletes(t *testing.T) {
	ctx := startGameTestEnv(t)
	game := createStartedGame(t, ctx, 1)
	gameId := game.ID.String()

	submitAllOrders(t, ctx, gameId, 4)

	if err := workflow.CheckAndSettle(ctx, gameId); err != nil {
		t.Fatalf("CheckAndSettle: %v", err)
	}

	state, err := models.GetGameState(ctx, gameId)
	if err != nil {
		t.Fatalf("GetGameState: %v", err)
	}
	if state.Game.Status != models.GameStatusCompleted {
		t.Fatalf("expected completed game; got %s", state.Game.Status)
	}
	if state.Game.CurrentWeek != 1 {
		t.Fatalf("final week should stay at total_weeks; got %d", state.Game.CurrentWeek)
	}

	// Each role ships min(4, 12) = 4 and ends on inventory 8, no backlog.
	// Weekly holding cost 8 * 0.5 = 4.0 per role, team total 16.0.
	for _, p := range []*models.Player{state.Retailer, state.Wholesaler, state.Distributor, state.Manufacturer} {
		if p.Inventory != 8 || p.Backlog != 0 {
			t.Fatalf("%s: expected inventory=8 backlog=0; got inventory=%d backlog=%d", p.Role, p.Inventory, p.Backlog)
		}
		if p.OutgoingShipment != 4 {
			t.Fatalf("%s: expected outgoing_shipment=4; got %d", p.Role, p.OutgoingShipment)
		}
		if p.WeeklyHoldingCost.Cmp(decimal.NewFromFloat(4.0)) != 0 {
			t.Fatalf("%s: expected weekly_holding_cost=4.0; got %s", p.Role, p.WeeklyHoldingCost.String())
		}
		if !p.WeeklyBackorderCost.IsZero() {
			t.Fatalf("%s: expected weekly_backorder_cost=0; got %s", p.Role, p.WeeklyBackorderCost.String())
		}
	}
	if state.Game.TotalTeamCost.Cmp(decimal.NewFromFloat(16.0)) != 0 {
		t.Fatalf("expected team total 16.0; got %s", state.Game.TotalTeamCost.String())
	}

	// Completed games accept no further orders.
	if _, err := models.SubmitOrder(ctx, gameId, models.RoleRetailer, 4); err != utils.ErrorGameNotActive {
		t.Fatalf("expected ErrorGameNotActive after completion; got %v", err)
	}

	// Completion event sits in the outbox for the dispatcher.
	db := config.GetDB()
	var event models.GameEventRecord
	if err := db.WithContext(ctx).
		Where("game_id = ? AND event_type = ?", game.ID, models.GameEventGameCompleted).
		First(&event).Error; err != nil {
		t.Fatalf("expected game_completed outbox record: %v", err)
	}
}

func TestSubmitOrderIsIdempotent(t *testing.T) {
	ctx := startGameTestEnv(t)
	game := createStartedGame(t, ctx, 4)
	gameId := game.ID.String()

	accepted, err := models.SubmitOrder(ctx, gameId, models.RoleRetailer, 4)
	if err != nil || !accepted {
		t.Fatalf("first submit: accepted=%v err=%v", accepted, err)
	}

	// The duplicate must not overwrite the order, bump statistics, or create
	// a second ledger entry.
	accepted, err = models.SubmitOrder(ctx, gameId, models.RoleRetailer, 99)
	if err != nil {
		t.Fatalf("duplicate submit should be an error-free no-op: %v", err)
	}
	if accepted {
		t.Fatalf("duplicate submit must not be accepted")
	}

	retailer, err := models.GetPlayer(ctx, gameId, models.RoleRetailer)
	if err != nil {
		t.Fatalf("GetPlayer: %v", err)
	}
	if retailer.OutgoingOrder == nil || *retailer.OutgoingOrder != 4 {
		t.Fatalf("expected outgoing_order=4; got %v", retailer.OutgoingOrder)
	}
	if retailer.MaxOrder != 4 {
		t.Fatalf("max_order must not see the rejected 99; got %d", retailer.MaxOrder)
	}
	if retailer.TotalOutgoingOrders != 4 {
		t.Fatalf("expected total_outgoing_orders=4; got %d", retailer.TotalOutgoingOrders)
	}

	db := config.GetDB()
	var entries int64
	if err := db.WithContext(ctx).Model(&models.ShipmentOrder{}).
		Where("game_id = ? AND from_role = ? AND week_placed = ?", game.ID, "retailer", 1).
		Count(&entries).Error; err != nil {
		t.Fatalf("count ledger entries: %v", err)
	}
	if entries != 1 {
		t.Fatalf("expected exactly one ledger entry for the retailer's week-1 order; got %d", entries)
	}

	// Negative quantities are rejected outright.
	if _, err := models.SubmitOrder(ctx, gameId, models.RoleWholesaler, -1); err != utils.ErrorInvalidQuantity {
		t.Fatalf("expected ErrorInvalidQuantity; got %v", err)
	}
}

func TestConcurrentSettlementAdvancesExactlyOneWeek(t *testing.T) {
	ctx := startGameTestEnv(t)
	game := createStartedGame(t, ctx, 10)
	gameId := game.ID.String()

	submitAllOrders(t, ctx, gameId, 4)

	const attempts = 8
	var wg sync.WaitGroup
	errCh := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errCh <- workflow.CheckAndSettle(context.Background(), gameId)
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			t.Fatalf("CheckAndSettle: %v", err)
		}
	}

	state, err := models.GetGameState(ctx, gameId)
	if err != nil {
		t.Fatalf("GetGameState: %v", err)
	}
	if state.Game.Status != models.GameStatusActive {
		t.Fatalf("expected active game; got %s", state.Game.Status)
	}
	if state.Game.CurrentWeek != 2 {
		t.Fatalf("%d concurrent settles must advance exactly one week; got week %d", attempts, state.Game.CurrentWeek)
	}
	if state.Game.IsSettling == nil || *state.Game.IsSettling {
		t.Fatalf("settlement flag must be released")
	}

	// Pre-seeded deliveries due in week 2 carry 4 units per role: inventory
	// 12 - 4 shipped + 4 delivered = 12, applied exactly once.
	for _, p := range []*models.Player{state.Retailer, state.Wholesaler, state.Distributor, state.Manufacturer} {
		if p.Inventory != 12 {
			t.Fatalf("%s: expected inventory=12 after one settled week; got %d", p.Role, p.Inventory)
		}
		if p.IncomingShipment != 4 {
			t.Fatalf("%s: expected incoming_shipment=4; got %d", p.Role, p.IncomingShipment)
		}
		if p.OutgoingOrder != nil {
			t.Fatalf("%s: outgoing_order must be reset to NULL; got %d", p.Role, *p.OutgoingOrder)
		}
	}

	// A settle with no orders on record is a no-op and never re-applies
	// delivered entries.
	if err := workflow.CheckAndSettle(ctx, gameId); err != nil {
		t.Fatalf("CheckAndSettle(no orders): %v", err)
	}
	again, err := models.GetGameState(ctx, gameId)
	if err != nil {
		t.Fatalf("GetGameState: %v", err)
	}
	if again.Game.CurrentWeek != 2 || again.Retailer.Inventory != 12 {
		t.Fatalf("no-op settle changed state: week=%d inventory=%d", again.Game.CurrentWeek, again.Retailer.Inventory)
	}

	db := config.GetDB()
	var snapshots int64
	if err := db.WithContext(ctx).Model(&models.GameWeek{}).
		Where("game_id = ?", game.ID).
		Count(&snapshots).Error; err != nil {
		t.Fatalf("count snapshots: %v", err)
	}
	// Week 1 at start, week 2 after the settlement.
	if snapshots != 2 {
		t.Fatalf("expected 2 week snapshots; got %d", snapshots)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("beergame-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("beergame-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=beergame_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
