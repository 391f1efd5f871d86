package liquidation

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/RubyEDE/ls-demo-be-sub000/internal/ledger"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/markets"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/orderbook"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/positions"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/types"
)

type testEnv struct {
	monitor   *Monitor
	positions *positions.Service
	ledger    *ledger.Service
	markets   *markets.Service
	db        *gorm.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&types.Market{}, &types.Position{},
		&ledger.Balance{}, &ledger.BalanceChange{}, &Liquidation{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	market := &types.Market{
		Symbol:                "BTC-PERP",
		MaintenanceMarginRate: 0.05,
		MaxLeverage:           20,
		IndexPrice:            100,
		Active:                true,
	}
	if err := db.Create(market).Error; err != nil {
		t.Fatalf("create market: %v", err)
	}

	ledgerService := ledger.NewService(db, nil)
	marketService := markets.NewService(db, orderbook.NewManager())
	positionService := positions.NewService(db, ledgerService, marketService, nil)

	return &testEnv{
		monitor:   NewMonitor(db, positionService, marketService, time.Second),
		positions: positionService,
		ledger:    ledgerService,
		markets:   marketService,
		db:        db,
	}
}

// openLong opens a 1 BTC long at 100 with 10 margin. With a 5% maintenance
// rate the liquidation price is 95.
func openLong(t *testing.T, env *testEnv, clientID string) *types.Position {
	t.Helper()
	if err := env.ledger.Credit(clientID, 1000, "deposit", ""); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := env.ledger.Lock(clientID, 10, "margin_lock", ""); err != nil {
		t.Fatalf("lock: %v", err)
	}
	position, err := env.positions.OnTrade(clientID, "BTC-PERP", types.SideBuy, 1, 100, 10, "ORD_seed")
	if err != nil {
		t.Fatalf("open position: %v", err)
	}
	return position
}

func reload(t *testing.T, env *testEnv, positionID string) *types.Position {
	t.Helper()
	position := &types.Position{}
	if err := env.db.Where("position_id = ?", positionID).First(position).Error; err != nil {
		t.Fatalf("reload position: %v", err)
	}
	return position
}

func TestTick_LiquidatesBreachedPosition(t *testing.T) {
	env := newTestEnv(t)
	position := openLong(t, env, "C1")

	if math.Abs(position.LiquidationPrice-95) > 1e-9 {
		t.Fatalf("expected liquidation price 95, got %v", position.LiquidationPrice)
	}

	// Empty book: mark follows the index. 94 breaches the 95 threshold.
	if err := env.markets.SetIndexPrice("BTC-PERP", 94); err != nil {
		t.Fatalf("set index: %v", err)
	}
	env.monitor.Tick(time.Now())

	refreshed := reload(t, env, position.PositionID)
	if refreshed.Status != types.PositionStatusLiquidated {
		t.Fatalf("expected status LIQUIDATED, got %s", refreshed.Status)
	}
	if math.Abs(refreshed.RealizedPnl+6) > 1e-9 {
		t.Fatalf("expected realized pnl -6 at mark 94, got %v", refreshed.RealizedPnl)
	}

	// The 6 loss is taken from the 10 locked margin; the rest returns.
	balance, err := env.ledger.GetBalance("C1")
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if math.Abs(balance.Free-994) > 1e-9 || math.Abs(balance.Locked) > 1e-9 {
		t.Fatalf("expected free=994 locked=0, got %+v", balance)
	}

	var record Liquidation
	if err := env.db.Where("position_id = ?", position.PositionID).First(&record).Error; err != nil {
		t.Fatalf("load liquidation record: %v", err)
	}
	if record.ClientID != "C1" || record.Side != types.PositionLong {
		t.Fatalf("unexpected record: %+v", record)
	}
	if math.Abs(record.MarkPrice-94) > 1e-9 || math.Abs(record.Notional-94) > 1e-9 {
		t.Fatalf("expected mark 94 notional 94, got %+v", record)
	}
}

func TestTick_LeavesHealthyPositionsAlone(t *testing.T) {
	env := newTestEnv(t)
	position := openLong(t, env, "C1")

	// Above the threshold, even close to it, nothing happens.
	if err := env.markets.SetIndexPrice("BTC-PERP", 96); err != nil {
		t.Fatalf("set index: %v", err)
	}
	env.monitor.Tick(time.Now())

	refreshed := reload(t, env, position.PositionID)
	if refreshed.Status != types.PositionStatusOpen {
		t.Fatalf("expected position still OPEN, got %s", refreshed.Status)
	}

	count, _, err := env.monitor.db.Aggregate("BTC-PERP")
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no liquidation records, got %d", count)
	}
}

func TestTick_PausedDoesNothing(t *testing.T) {
	env := newTestEnv(t)
	position := openLong(t, env, "C1")

	if err := env.markets.SetIndexPrice("BTC-PERP", 50); err != nil {
		t.Fatalf("set index: %v", err)
	}

	env.monitor.Pause()
	if env.monitor.Running() {
		t.Fatal("expected monitor paused")
	}
	env.monitor.Tick(time.Now())

	refreshed := reload(t, env, position.PositionID)
	if refreshed.Status != types.PositionStatusOpen {
		t.Fatalf("expected position untouched while paused, got %s", refreshed.Status)
	}

	env.monitor.Resume()
	env.monitor.Tick(time.Now())
	refreshed = reload(t, env, position.PositionID)
	if refreshed.Status != types.PositionStatusLiquidated {
		t.Fatalf("expected liquidation after resume, got %s", refreshed.Status)
	}
}

func TestTick_SkipsMarketWithoutPrice(t *testing.T) {
	env := newTestEnv(t)
	position := openLong(t, env, "C1")

	// Zero out the index directly: SetIndexPrice rejects non-positive values.
	if err := env.db.Model(&types.Market{}).
		Where("symbol = ?", "BTC-PERP").
		Update("index_price", 0).Error; err != nil {
		t.Fatalf("clear index: %v", err)
	}
	env.monitor.Tick(time.Now())

	refreshed := reload(t, env, position.PositionID)
	if refreshed.Status != types.PositionStatusOpen {
		t.Fatalf("expected position skipped without a price, got %s", refreshed.Status)
	}
}

func TestStats(t *testing.T) {
	env := newTestEnv(t)
	openLong(t, env, "C1")
	openLong(t, env, "C2")

	if err := env.markets.SetIndexPrice("BTC-PERP", 90); err != nil {
		t.Fatalf("set index: %v", err)
	}
	env.monitor.Tick(time.Now())

	stats, err := env.monitor.Stats("btc-perp")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Symbol != "BTC-PERP" || stats.Count != 2 {
		t.Fatalf("expected 2 liquidations, got %+v", stats)
	}
	if math.Abs(stats.TotalNotional-180) > 1e-9 {
		t.Fatalf("expected total notional 180 at mark 90, got %v", stats.TotalNotional)
	}
	if stats.LastAt == nil {
		t.Fatal("expected last liquidation timestamp")
	}
	if len(stats.Recent) != 2 {
		t.Fatalf("expected 2 recent records, got %d", len(stats.Recent))
	}

	if _, err := env.monitor.Stats("NOPE-PERP"); err == nil {
		t.Fatal("expected error for unknown market")
	}
}
