package orderbook

import (
	"sort"
	"sync"

	"github.com/RubyEDE/ls-demo-be-sub000/internal/types"
)

// Level is one aggregated price level: total resting quantity and the
// number of orders contributing to it. The book never holds individual
// order queues; time priority within a level is the matching engine's
// job, enforced by processing resting orders in creation order.
type Level struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
	Orders   int     `json:"orders"`
	Total    float64 `json:"total"` // price * quantity
}

// Depth is a point-in-time snapshot: bids sorted descending, asks
// ascending, both truncated to the requested depth.
type Depth struct {
	Symbol string  `json:"symbol"`
	Bids   []Level `json:"bids"`
	Asks   []Level `json:"asks"`
}

type level struct {
	quantity float64
	orders   int
}

// Book is the in-memory aggregated order book for one market. It is a
// derived, rebuildable cache: the orders table is the system of record,
// and Rebuild on the manager reconstructs it after a restart.
type Book struct {
	symbol string
	mu     sync.RWMutex
	bids   map[float64]*level
	asks   map[float64]*level
}

func NewBook(symbol string) *Book {
	return &Book{
		symbol: symbol,
		bids:   make(map[float64]*level),
		asks:   make(map[float64]*level),
	}
}

func (b *Book) side(orderSide string) map[float64]*level {
	if orderSide == types.SideBuy {
		return b.bids
	}
	return b.asks
}

// AddLevel merges quantity into the level at price, creating it if absent.
func (b *Book) AddLevel(orderSide string, price, quantity float64) {
	if quantity <= 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	levels := b.side(orderSide)
	lvl, exists := levels[price]
	if !exists {
		lvl = &level{}
		levels[price] = lvl
	}
	lvl.quantity += quantity
	lvl.orders++
}

// RemoveQty decrements the level at price, dropping the order count when
// the resting order is fully consumed. The level is deleted once either
// quantity or order count reaches zero.
func (b *Book) RemoveQty(orderSide string, price, quantity float64, orderDone bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	levels := b.side(orderSide)
	lvl, exists := levels[price]
	if !exists {
		return
	}

	lvl.quantity -= quantity
	if orderDone {
		lvl.orders--
	}
	if lvl.quantity <= 1e-9 || lvl.orders <= 0 {
		delete(levels, price)
	}
}

// BestBid returns the highest bid price, or false when the side is empty.
func (b *Book) BestBid() (float64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	best, found := 0.0, false
	for price := range b.bids {
		if !found || price > best {
			best, found = price, true
		}
	}
	return best, found
}

// BestAsk returns the lowest ask price, or false when the side is empty.
func (b *Book) BestAsk() (float64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	best, found := 0.0, false
	for price := range b.asks {
		if !found || price < best {
			best, found = price, true
		}
	}
	return best, found
}

// Mid returns the midpoint of best bid and best ask, or false when either
// side is empty. Feeds the mark-price blend.
func (b *Book) Mid() (float64, bool) {
	bid, haveBid := b.BestBid()
	ask, haveAsk := b.BestAsk()
	if !haveBid || !haveAsk {
		return 0, false
	}
	return (bid + ask) / 2, true
}

// Snapshot returns the current depth, truncated to the given number of
// levels per side. depth <= 0 returns all levels.
func (b *Book) Snapshot(depth int) *Depth {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snapshot := &Depth{
		Symbol: b.symbol,
		Bids:   collectLevels(b.bids, depth, true),
		Asks:   collectLevels(b.asks, depth, false),
	}
	return snapshot
}

// Clear drops all levels on both sides.
func (b *Book) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bids = make(map[float64]*level)
	b.asks = make(map[float64]*level)
}

func collectLevels(levels map[float64]*level, depth int, descending bool) []Level {
	prices := make([]float64, 0, len(levels))
	for price := range levels {
		prices = append(prices, price)
	}
	sort.Slice(prices, func(i, j int) bool {
		if descending {
			return prices[i] > prices[j]
		}
		return prices[i] < prices[j]
	})

	if depth > 0 && len(prices) > depth {
		prices = prices[:depth]
	}

	out := make([]Level, 0, len(prices))
	for _, price := range prices {
		lvl := levels[price]
		out = append(out, Level{
			Price:    price,
			Quantity: lvl.quantity,
			Orders:   lvl.orders,
			Total:    price * lvl.quantity,
		})
	}
	return out
}
