package orderbook

import (
	"math"
	"testing"

	"github.com/RubyEDE/ls-demo-be-sub000/internal/types"
)

func TestBook_BestPricesAndMid(t *testing.T) {
	b := NewBook("BTC-PERP")

	if _, found := b.BestBid(); found {
		t.Fatal("empty book should have no best bid")
	}
	if _, found := b.Mid(); found {
		t.Fatal("empty book should have no mid")
	}

	b.AddLevel(types.SideBuy, 99, 1)
	b.AddLevel(types.SideBuy, 100, 2)
	b.AddLevel(types.SideSell, 101, 1)
	b.AddLevel(types.SideSell, 102, 3)

	bid, found := b.BestBid()
	if !found || bid != 100 {
		t.Fatalf("expected best bid 100, got %v (found=%v)", bid, found)
	}
	ask, found := b.BestAsk()
	if !found || ask != 101 {
		t.Fatalf("expected best ask 101, got %v (found=%v)", ask, found)
	}
	mid, found := b.Mid()
	if !found || mid != 100.5 {
		t.Fatalf("expected mid 100.5, got %v (found=%v)", mid, found)
	}
}

func TestBook_AddLevelAggregates(t *testing.T) {
	b := NewBook("BTC-PERP")

	b.AddLevel(types.SideBuy, 100, 1)
	b.AddLevel(types.SideBuy, 100, 2.5)

	snap := b.Snapshot(0)
	if len(snap.Bids) != 1 {
		t.Fatalf("expected one bid level, got %d", len(snap.Bids))
	}
	lvl := snap.Bids[0]
	if lvl.Quantity != 3.5 || lvl.Orders != 2 {
		t.Fatalf("expected quantity=3.5 orders=2, got quantity=%v orders=%d", lvl.Quantity, lvl.Orders)
	}
	if lvl.Total != 350 {
		t.Fatalf("expected total 350, got %v", lvl.Total)
	}
}

func TestBook_RemoveQtyDeletesDrainedLevels(t *testing.T) {
	b := NewBook("BTC-PERP")

	b.AddLevel(types.SideSell, 101, 2)
	b.AddLevel(types.SideSell, 101, 1)

	// Partial consumption keeps the level alive.
	b.RemoveQty(types.SideSell, 101, 1.5, false)
	snap := b.Snapshot(0)
	if len(snap.Asks) != 1 || math.Abs(snap.Asks[0].Quantity-1.5) > 1e-9 {
		t.Fatalf("expected one ask level with quantity 1.5, got %+v", snap.Asks)
	}

	// Draining the remaining quantity removes the level entirely.
	b.RemoveQty(types.SideSell, 101, 1.5, true)
	snap = b.Snapshot(0)
	if len(snap.Asks) != 0 {
		t.Fatalf("expected empty ask side, got %+v", snap.Asks)
	}

	// Removing from a missing level is a no-op.
	b.RemoveQty(types.SideSell, 101, 1, true)
}

func TestBook_SnapshotOrderingAndDepth(t *testing.T) {
	b := NewBook("BTC-PERP")

	for _, price := range []float64{98, 100, 99} {
		b.AddLevel(types.SideBuy, price, 1)
	}
	for _, price := range []float64{103, 101, 102} {
		b.AddLevel(types.SideSell, price, 1)
	}

	snap := b.Snapshot(2)
	if len(snap.Bids) != 2 || len(snap.Asks) != 2 {
		t.Fatalf("expected 2 levels per side, got %d bids %d asks", len(snap.Bids), len(snap.Asks))
	}
	if snap.Bids[0].Price != 100 || snap.Bids[1].Price != 99 {
		t.Fatalf("bids not descending: %+v", snap.Bids)
	}
	if snap.Asks[0].Price != 101 || snap.Asks[1].Price != 102 {
		t.Fatalf("asks not ascending: %+v", snap.Asks)
	}
}

func TestManager_GetOrCreateNormalizesSymbol(t *testing.T) {
	m := NewManager()

	a := m.GetOrCreate("btc-perp")
	b := m.GetOrCreate("BTC-PERP")
	if a != b {
		t.Fatal("expected the same book for case-variant symbols")
	}
}

func TestManager_RebuildFromOpenOrders(t *testing.T) {
	m := NewManager()

	// Seed a stale level that the rebuild must discard.
	m.GetOrCreate("BTC-PERP").AddLevel(types.SideBuy, 90, 5)

	orders := []types.Order{
		{Side: types.SideBuy, Price: 100, RemainingQuantity: 1, Status: types.OrderStatusOpen},
		{Side: types.SideBuy, Price: 100, RemainingQuantity: 0.5, Status: types.OrderStatusPartial},
		{Side: types.SideSell, Price: 101, RemainingQuantity: 2, Status: types.OrderStatusOpen},
		// Terminal and empty orders must not reappear in the book.
		{Side: types.SideSell, Price: 105, RemainingQuantity: 1, Status: types.OrderStatusFilled},
		{Side: types.SideBuy, Price: 99, RemainingQuantity: 0, Status: types.OrderStatusOpen},
	}
	m.Rebuild("BTC-PERP", orders)

	snap := m.GetOrCreate("BTC-PERP").Snapshot(0)
	if len(snap.Bids) != 1 || len(snap.Asks) != 1 {
		t.Fatalf("expected 1 level per side, got %d bids %d asks", len(snap.Bids), len(snap.Asks))
	}
	if snap.Bids[0].Price != 100 || math.Abs(snap.Bids[0].Quantity-1.5) > 1e-9 || snap.Bids[0].Orders != 2 {
		t.Fatalf("unexpected bid level: %+v", snap.Bids[0])
	}
	if snap.Asks[0].Price != 101 || snap.Asks[0].Quantity != 2 {
		t.Fatalf("unexpected ask level: %+v", snap.Asks[0])
	}
}
