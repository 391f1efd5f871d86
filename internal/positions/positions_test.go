package positions

import (
	"math"
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/RubyEDE/ls-demo-be-sub000/internal/ledger"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/markets"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/orderbook"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/types"
)

type testEnv struct {
	positions *Service
	ledger    *ledger.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(&types.Market{}, &types.Position{}, &ledger.Balance{}, &ledger.BalanceChange{})
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	market := &types.Market{
		Symbol:                "BTC-PERP",
		LotSize:               0.001,
		MinOrderSize:          0.001,
		MaxOrderSize:          100,
		MaxLeverage:           20,
		MaintenanceMarginRate: 0.05,
		Active:                true,
	}
	if err := db.Create(market).Error; err != nil {
		t.Fatalf("create market: %v", err)
	}

	ledgerService := ledger.NewService(db, nil)
	marketService := markets.NewService(db, orderbook.NewManager())

	return &testEnv{
		positions: NewService(db, ledgerService, marketService, nil),
		ledger:    ledgerService,
	}
}

func fund(t *testing.T, env *testEnv, clientID string, amount float64) {
	t.Helper()
	if err := env.ledger.Credit(clientID, amount, "deposit", ""); err != nil {
		t.Fatalf("credit: %v", err)
	}
}

func lockMargin(t *testing.T, env *testEnv, clientID string, amount float64) {
	t.Helper()
	if err := env.ledger.Lock(clientID, amount, "margin_lock", ""); err != nil {
		t.Fatalf("lock: %v", err)
	}
}

func checkBalance(t *testing.T, env *testEnv, clientID string, free, locked float64) {
	t.Helper()
	balance, err := env.ledger.GetBalance(clientID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if math.Abs(balance.Free-free) > 1e-9 || math.Abs(balance.Locked-locked) > 1e-9 {
		t.Fatalf("expected free=%v locked=%v, got free=%v locked=%v",
			free, locked, balance.Free, balance.Locked)
	}
}

func TestLiquidationPrice(t *testing.T) {
	long := &types.Position{Side: types.PositionLong, Size: 1, EntryPrice: 100, Margin: 10}
	// Maintenance margin 5, so 5 of the 10 margin absorbs the move: liq at 95.
	if got := LiquidationPrice(long, 0.05); math.Abs(got-95) > 1e-9 {
		t.Fatalf("expected long liquidation price 95, got %v", got)
	}

	short := &types.Position{Side: types.PositionShort, Size: 1, EntryPrice: 100, Margin: 10}
	if got := LiquidationPrice(short, 0.05); math.Abs(got-105) > 1e-9 {
		t.Fatalf("expected short liquidation price 105, got %v", got)
	}

	// Over-collateralized long cannot be liquidated above zero.
	rich := &types.Position{Side: types.PositionLong, Size: 1, EntryPrice: 100, Margin: 200}
	if got := LiquidationPrice(rich, 0.05); got != 0 {
		t.Fatalf("expected clamped liquidation price 0, got %v", got)
	}

	if got := LiquidationPrice(&types.Position{Size: 0}, 0.05); got != 0 {
		t.Fatalf("expected 0 for empty position, got %v", got)
	}
}

func TestUnrealizedPnl(t *testing.T) {
	long := &types.Position{Side: types.PositionLong, Size: 2, EntryPrice: 100}
	if got := UnrealizedPnl(long, 110); math.Abs(got-20) > 1e-9 {
		t.Fatalf("expected +20, got %v", got)
	}
	if got := UnrealizedPnl(long, 90); math.Abs(got+20) > 1e-9 {
		t.Fatalf("expected -20, got %v", got)
	}

	short := &types.Position{Side: types.PositionShort, Size: 2, EntryPrice: 100}
	if got := UnrealizedPnl(short, 90); math.Abs(got-20) > 1e-9 {
		t.Fatalf("expected +20 for short on a drop, got %v", got)
	}
}

func TestWouldBeLiquidated(t *testing.T) {
	long := &types.Position{
		Side: types.PositionLong, Size: 1, EntryPrice: 100,
		LiquidationPrice: 95, Status: types.PositionStatusOpen,
	}
	if WouldBeLiquidated(long, 96) {
		t.Fatal("long above liquidation price must survive")
	}
	if !WouldBeLiquidated(long, 95) {
		t.Fatal("long at liquidation price must be liquidated")
	}

	short := &types.Position{
		Side: types.PositionShort, Size: 1, EntryPrice: 100,
		LiquidationPrice: 105, Status: types.PositionStatusOpen,
	}
	if !WouldBeLiquidated(short, 106) {
		t.Fatal("short above liquidation price must be liquidated")
	}

	closed := &types.Position{
		Side: types.PositionLong, LiquidationPrice: 95,
		Status: types.PositionStatusClosed,
	}
	if WouldBeLiquidated(closed, 90) {
		t.Fatal("closed position must never liquidate")
	}
}

func TestOnTrade_OpensPosition(t *testing.T) {
	env := newTestEnv(t)
	fund(t, env, "C1", 100)
	lockMargin(t, env, "C1", 10)

	position, err := env.positions.OnTrade("C1", "BTC-PERP", types.SideBuy, 1, 100, 10, "ORD_1")
	if err != nil {
		t.Fatalf("on trade: %v", err)
	}

	if position.Side != types.PositionLong || position.Size != 1 {
		t.Fatalf("expected long size 1, got %s size %v", position.Side, position.Size)
	}
	if position.EntryPrice != 100 || position.Margin != 10 {
		t.Fatalf("expected entry=100 margin=10, got entry=%v margin=%v", position.EntryPrice, position.Margin)
	}
	if math.Abs(position.LiquidationPrice-95) > 1e-9 {
		t.Fatalf("expected liquidation price 95, got %v", position.LiquidationPrice)
	}
	if math.Abs(position.Leverage-10) > 1e-9 {
		t.Fatalf("expected effective leverage 10, got %v", position.Leverage)
	}
}

func TestOnTrade_IncreaseUsesVolumeWeightedEntry(t *testing.T) {
	env := newTestEnv(t)
	fund(t, env, "C1", 1000)
	lockMargin(t, env, "C1", 21)

	if _, err := env.positions.OnTrade("C1", "BTC-PERP", types.SideBuy, 1, 100, 10, "ORD_1"); err != nil {
		t.Fatalf("first trade: %v", err)
	}
	position, err := env.positions.OnTrade("C1", "BTC-PERP", types.SideBuy, 1, 110, 11, "ORD_2")
	if err != nil {
		t.Fatalf("second trade: %v", err)
	}

	if position.Size != 2 || math.Abs(position.EntryPrice-105) > 1e-9 {
		t.Fatalf("expected size=2 entry=105, got size=%v entry=%v", position.Size, position.EntryPrice)
	}
	if math.Abs(position.Margin-21) > 1e-9 {
		t.Fatalf("expected margin 21, got %v", position.Margin)
	}
}

func TestOnTrade_CloseWithProfit(t *testing.T) {
	env := newTestEnv(t)
	fund(t, env, "C1", 100)
	lockMargin(t, env, "C1", 10)

	if _, err := env.positions.OnTrade("C1", "BTC-PERP", types.SideBuy, 1, 100, 10, "ORD_1"); err != nil {
		t.Fatalf("open: %v", err)
	}

	// Reduce-only close: no fresh reservation, so marginDelta is 0.
	position, err := env.positions.OnTrade("C1", "BTC-PERP", types.SideSell, 1, 110, 0, "ORD_2")
	if err != nil {
		t.Fatalf("close: %v", err)
	}

	if position.Status != types.PositionStatusClosed || position.Size != 0 {
		t.Fatalf("expected closed position, got status=%s size=%v", position.Status, position.Size)
	}
	if math.Abs(position.RealizedPnl-10) > 1e-9 {
		t.Fatalf("expected realized pnl 10, got %v", position.RealizedPnl)
	}

	// 100 deposited, 10 margin returned, 10 profit credited.
	checkBalance(t, env, "C1", 110, 0)
}

func TestOnTrade_CloseWithLossDrawsMargin(t *testing.T) {
	env := newTestEnv(t)
	fund(t, env, "C1", 100)
	lockMargin(t, env, "C1", 10)

	if _, err := env.positions.OnTrade("C1", "BTC-PERP", types.SideBuy, 1, 100, 10, "ORD_1"); err != nil {
		t.Fatalf("open: %v", err)
	}
	position, err := env.positions.OnTrade("C1", "BTC-PERP", types.SideSell, 1, 94, 0, "ORD_2")
	if err != nil {
		t.Fatalf("close: %v", err)
	}

	if math.Abs(position.RealizedPnl+6) > 1e-9 {
		t.Fatalf("expected realized pnl -6, got %v", position.RealizedPnl)
	}
	// Loss of 6 comes out of the 10 locked margin, remainder returned free.
	checkBalance(t, env, "C1", 94, 0)
}

func TestOnTrade_PartialCloseReleasesProRataMargin(t *testing.T) {
	env := newTestEnv(t)
	fund(t, env, "C1", 100)
	lockMargin(t, env, "C1", 10)

	if _, err := env.positions.OnTrade("C1", "BTC-PERP", types.SideBuy, 2, 100, 10, "ORD_1"); err != nil {
		t.Fatalf("open: %v", err)
	}
	position, err := env.positions.OnTrade("C1", "BTC-PERP", types.SideSell, 1, 100, 0, "ORD_2")
	if err != nil {
		t.Fatalf("partial close: %v", err)
	}

	if position.Status != types.PositionStatusOpen || position.Size != 1 {
		t.Fatalf("expected open size 1, got status=%s size=%v", position.Status, position.Size)
	}
	if math.Abs(position.Margin-5) > 1e-9 {
		t.Fatalf("expected margin 5 after half close, got %v", position.Margin)
	}
	checkBalance(t, env, "C1", 95, 5)
}

func TestOnTrade_FlipOpensOppositePosition(t *testing.T) {
	env := newTestEnv(t)
	fund(t, env, "C1", 1000)
	lockMargin(t, env, "C1", 10)

	if _, err := env.positions.OnTrade("C1", "BTC-PERP", types.SideBuy, 1, 100, 10, "ORD_1"); err != nil {
		t.Fatalf("open long: %v", err)
	}

	// Sell 3 against a long of 1: closes 1, flips short 2. The order locked
	// 30, of which the closing third is handed straight back.
	lockMargin(t, env, "C1", 30)
	position, err := env.positions.OnTrade("C1", "BTC-PERP", types.SideSell, 3, 100, 30, "ORD_2")
	if err != nil {
		t.Fatalf("flip: %v", err)
	}

	if position.Side != types.PositionShort || position.Size != 2 {
		t.Fatalf("expected short size 2, got %s size %v", position.Side, position.Size)
	}
	if math.Abs(position.EntryPrice-100) > 1e-9 || math.Abs(position.Margin-20) > 1e-9 {
		t.Fatalf("expected entry=100 margin=20, got entry=%v margin=%v", position.EntryPrice, position.Margin)
	}

	// Flat pnl: 1000 - 10 - 30 locked, then 10 (closing share) + 10 (old
	// margin) unlocked. 20 stays locked behind the short.
	checkBalance(t, env, "C1", 980, 20)
}

func TestApplyFunding_CreditAndDebit(t *testing.T) {
	env := newTestEnv(t)
	fund(t, env, "C1", 100)
	lockMargin(t, env, "C1", 10)

	position, err := env.positions.OnTrade("C1", "BTC-PERP", types.SideBuy, 1, 100, 10, "ORD_1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	market := &types.Market{Symbol: "BTC-PERP", MaintenanceMarginRate: 0.05}

	if err := env.positions.ApplyFunding(position, 2, market); err != nil {
		t.Fatalf("funding credit: %v", err)
	}
	checkBalance(t, env, "C1", 92, 10)

	if err := env.positions.ApplyFunding(position, -5, market); err != nil {
		t.Fatalf("funding debit: %v", err)
	}
	if math.Abs(position.AccumulatedFunding+3) > 1e-9 {
		t.Fatalf("expected accumulated funding -3, got %v", position.AccumulatedFunding)
	}
}

func TestLiquidate_SettlesAtMarkPrice(t *testing.T) {
	env := newTestEnv(t)
	fund(t, env, "C1", 100)
	lockMargin(t, env, "C1", 10)

	position, err := env.positions.OnTrade("C1", "BTC-PERP", types.SideBuy, 1, 100, 10, "ORD_1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	realized, err := env.positions.Liquidate(position, 94)
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	if math.Abs(realized+6) > 1e-9 {
		t.Fatalf("expected realized -6, got %v", realized)
	}

	current, err := env.positions.GetOpenPosition("C1", "BTC-PERP")
	if err != nil {
		t.Fatalf("get open: %v", err)
	}
	if current != nil {
		t.Fatalf("expected no open position after liquidation, got %+v", current)
	}

	// Loss of 6 taken from margin, 4 returned.
	checkBalance(t, env, "C1", 94, 0)

	// A second liquidation attempt finds nothing and is a no-op.
	realized, err = env.positions.Liquidate(position, 90)
	if err != nil || realized != 0 {
		t.Fatalf("expected idempotent liquidation, got realized=%v err=%v", realized, err)
	}
}
