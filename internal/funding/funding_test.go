package funding

import (
	"fmt"
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
	engine    *Engine
	positions *positions.Service
	ledger    *ledger.Service
	markets   *markets.Service
	books     *orderbook.Manager
	db        *gorm.DB
}

func newTestEnv(t *testing.T, market *types.Market) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&types.Market{}, &types.Position{},
		&ledger.Balance{}, &ledger.BalanceChange{}, &FundingEvent{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := db.Create(market).Error; err != nil {
		t.Fatalf("create market: %v", err)
	}

	books := orderbook.NewManager()
	ledgerService := ledger.NewService(db, nil)
	marketService := markets.NewService(db, books)
	positionService := positions.NewService(db, ledgerService, marketService, nil)

	return &testEnv{
		engine:    NewEngine(db, positionService, marketService, nil, time.Second),
		positions: positionService,
		ledger:    ledgerService,
		markets:   marketService,
		books:     books,
		db:        db,
	}
}

func dueMarket(indexPrice float64) *types.Market {
	return &types.Market{
		Symbol:                "BTC-PERP",
		MaintenanceMarginRate: 0.05,
		FundingIntervalHours:  8,
		NextFundingTime:       time.Now().Add(-time.Minute),
		IndexPrice:            indexPrice,
		Active:                true,
	}
}

func openPosition(t *testing.T, env *testEnv, clientID, side string, size, price, margin float64) *types.Position {
	t.Helper()
	if err := env.ledger.Credit(clientID, 1000, "deposit", ""); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := env.ledger.Lock(clientID, margin, "margin_lock", ""); err != nil {
		t.Fatalf("lock: %v", err)
	}
	orderSide := types.SideBuy
	if side == types.PositionShort {
		orderSide = types.SideSell
	}
	position, err := env.positions.OnTrade(clientID, "BTC-PERP", orderSide, size, price, margin, "ORD_seed")
	if err != nil {
		t.Fatalf("open position: %v", err)
	}
	return position
}

func TestComputeRate(t *testing.T) {
	// 1% premium dampened by 0.1 gives 0.1% per round.
	if got := ComputeRate(101, 100); math.Abs(got-0.001) > 1e-12 {
		t.Fatalf("expected rate 0.001, got %v", got)
	}
	// Discount flips the sign.
	if got := ComputeRate(99, 100); math.Abs(got+0.001) > 1e-12 {
		t.Fatalf("expected rate -0.001, got %v", got)
	}
	// Extreme premium clamps at the cap.
	if got := ComputeRate(200, 100); got != 0.01 {
		t.Fatalf("expected clamped rate 0.01, got %v", got)
	}
	if got := ComputeRate(10, 100); got != -0.01 {
		t.Fatalf("expected clamped rate -0.01, got %v", got)
	}
	if got := ComputeRate(100, 100); got != 0 {
		t.Fatalf("expected zero rate at par, got %v", got)
	}
}

func TestPaymentFor_LongsPayOnPositiveRate(t *testing.T) {
	long := &types.Position{Side: types.PositionLong, Size: 10}
	short := &types.Position{Side: types.PositionShort, Size: 10}

	// 1000 notional at 0.1%: longs pay 1.00, shorts receive 1.00.
	longPayment := PaymentFor(long, 100, 0.001)
	shortPayment := PaymentFor(short, 100, 0.001)
	if math.Abs(longPayment+1) > 1e-9 {
		t.Fatalf("expected long payment -1.00, got %v", longPayment)
	}
	if math.Abs(shortPayment-1) > 1e-9 {
		t.Fatalf("expected short payment +1.00, got %v", shortPayment)
	}

	// Negative rate reverses the flow.
	if got := PaymentFor(long, 100, -0.001); math.Abs(got-1) > 1e-9 {
		t.Fatalf("expected long credit +1.00 on negative rate, got %v", got)
	}
}

func TestTick_SettlesDueMarket(t *testing.T) {
	env := newTestEnv(t, dueMarket(100))

	// Mark price equals index (no book): rate 0, but the round still runs
	// and the schedule advances.
	openPosition(t, env, "L", types.PositionLong, 10, 100, 100)
	openPosition(t, env, "S", types.PositionShort, 10, 100, 100)

	now := time.Now()
	env.engine.Tick(now)

	market, err := env.markets.GetMarket("BTC-PERP")
	if err != nil {
		t.Fatalf("get market: %v", err)
	}
	if !market.NextFundingTime.After(now) {
		t.Fatalf("expected schedule advanced past now, got %v", market.NextFundingTime)
	}

	rounds, err := env.engine.db.CountRounds("BTC-PERP")
	if err != nil {
		t.Fatalf("count rounds: %v", err)
	}
	if rounds != 1 {
		t.Fatalf("expected 1 recorded round, got %d", rounds)
	}
}

func TestTick_SkipsMarketNotYetDue(t *testing.T) {
	market := dueMarket(100)
	market.NextFundingTime = time.Now().Add(time.Hour)
	env := newTestEnv(t, market)

	env.engine.Tick(time.Now())

	rounds, _ := env.engine.db.CountRounds("BTC-PERP")
	if rounds != 0 {
		t.Fatalf("expected no rounds before the funding time, got %d", rounds)
	}
}

func TestTick_PausedDoesNothing(t *testing.T) {
	env := newTestEnv(t, dueMarket(100))

	env.engine.Pause()
	env.engine.Tick(time.Now())

	rounds, _ := env.engine.db.CountRounds("BTC-PERP")
	if rounds != 0 {
		t.Fatalf("expected no rounds while paused, got %d", rounds)
	}

	env.engine.Resume()
	if !env.engine.Running() {
		t.Fatal("expected engine running after resume")
	}
	env.engine.Tick(time.Now())
	rounds, _ = env.engine.db.CountRounds("BTC-PERP")
	if rounds != 1 {
		t.Fatalf("expected 1 round after resume, got %d", rounds)
	}
}

func TestTriggerMarket_ZeroRateMovesNothing(t *testing.T) {
	env := newTestEnv(t, dueMarket(100))

	openPosition(t, env, "L", types.PositionLong, 10, 100, 100)
	openPosition(t, env, "S", types.PositionShort, 10, 100, 100)

	// With an empty book the mark follows the index, so the premium is zero.
	if err := env.engine.TriggerMarket("BTC-PERP"); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	lBalance, _ := env.ledger.GetBalance("L")
	sBalance, _ := env.ledger.GetBalance("S")
	if math.Abs((lBalance.Free+lBalance.Locked)-1000) > 1e-9 {
		t.Fatalf("expected long balance unchanged at par, got %+v", lBalance)
	}
	if math.Abs((sBalance.Free+sBalance.Locked)-1000) > 1e-9 {
		t.Fatalf("expected short balance unchanged at par, got %+v", sBalance)
	}

	rounds, _ := env.engine.db.CountRounds("BTC-PERP")
	if rounds != 1 {
		t.Fatalf("expected 1 round, got %d", rounds)
	}
}

func TestSettle_PositionsAccumulateFunding(t *testing.T) {
	env := newTestEnv(t, dueMarket(100))

	long := openPosition(t, env, "L", types.PositionLong, 10, 100, 100)
	short := openPosition(t, env, "S", types.PositionShort, 10, 100, 100)

	// Drive a premium through the book: bid/ask straddling 101 while the
	// index stays at 100. The blend is 0.7*101 + 0.3*100 = 100.7.
	book := env.books.GetOrCreate("BTC-PERP")
	book.AddLevel(types.SideBuy, 100.5, 1)
	book.AddLevel(types.SideSell, 101.5, 1)

	if err := env.engine.TriggerMarket("BTC-PERP"); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	// rate = 0.1 * (100.7-100)/100 = 0.0007; longs pay size*mark*rate.
	rate := ComputeRate(100.7, 100)
	wantLong := -10 * 100.7 * rate

	// Fresh destination per reload: gorm treats a populated primary key in
	// the destination as an extra query condition.
	reloadedLong := &types.Position{}
	if err := env.db.Where("position_id = ?", long.PositionID).First(reloadedLong).Error; err != nil {
		t.Fatalf("reload long: %v", err)
	}
	if math.Abs(reloadedLong.AccumulatedFunding-wantLong) > 1e-9 {
		t.Fatalf("expected long accumulated funding %v, got %v", wantLong, reloadedLong.AccumulatedFunding)
	}

	reloadedShort := &types.Position{}
	if err := env.db.Where("position_id = ?", short.PositionID).First(reloadedShort).Error; err != nil {
		t.Fatalf("reload short: %v", err)
	}
	if math.Abs(reloadedShort.AccumulatedFunding+wantLong) > 1e-9 {
		t.Fatalf("expected short accumulated funding %v, got %v", -wantLong, reloadedShort.AccumulatedFunding)
	}

	// Zero-sum between the two sides.
	lBalance, _ := env.ledger.GetBalance("L")
	sBalance, _ := env.ledger.GetBalance("S")
	total := lBalance.Free + lBalance.Locked + sBalance.Free + sBalance.Locked
	if math.Abs(total-2000) > 1e-9 {
		t.Fatalf("funding must be zero-sum, total balance %v", total)
	}
}

func TestAdvanceSchedule_CatchesUpMissedRounds(t *testing.T) {
	market := dueMarket(100)
	// Three intervals behind.
	market.NextFundingTime = time.Now().Add(-25 * time.Hour)
	env := newTestEnv(t, market)

	now := time.Now()
	env.engine.Tick(now)

	refreshed, _ := env.markets.GetMarket("BTC-PERP")
	if !refreshed.NextFundingTime.After(now) {
		t.Fatalf("expected next funding after now, got %v", refreshed.NextFundingTime)
	}
	// Exactly one round settles regardless of how far behind the schedule was.
	rounds, _ := env.engine.db.CountRounds("BTC-PERP")
	if rounds != 1 {
		t.Fatalf("expected a single catch-up round, got %d", rounds)
	}
}

func TestSettle_NoPriceSkipsButAdvances(t *testing.T) {
	// No index price, no book: the round cannot settle but must not spin.
	env := newTestEnv(t, dueMarket(0))

	now := time.Now()
	env.engine.Tick(now)

	refreshed, _ := env.markets.GetMarket("BTC-PERP")
	if !refreshed.NextFundingTime.After(now) {
		t.Fatalf("expected schedule advanced despite missing price, got %v", refreshed.NextFundingTime)
	}
	rounds, _ := env.engine.db.CountRounds("BTC-PERP")
	if rounds != 0 {
		t.Fatalf("expected no settled rounds without a price, got %d", rounds)
	}
}

func TestEventHistoryPruned(t *testing.T) {
	env := newTestEnv(t, dueMarket(100))

	for i := 0; i < historyLimit+10; i++ {
		event := &FundingEvent{
			EventID:   fmt.Sprintf("FND_test_%03d", i),
			Symbol:    "BTC-PERP",
			CreatedAt: time.Now(),
		}
		if err := env.engine.db.CreateEvent(event); err != nil {
			t.Fatalf("create event %d: %v", i, err)
		}
	}

	rounds, err := env.engine.db.CountRounds("BTC-PERP")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if rounds != historyLimit {
		t.Fatalf("expected history capped at %d, got %d", historyLimit, rounds)
	}
}
