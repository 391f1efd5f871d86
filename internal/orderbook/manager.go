package orderbook

import (
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/RubyEDE/ls-demo-be-sub000/internal/types"
)

// Manager owns one Book per market symbol. Constructed once at startup and
// injected into the services that need book access, so tests can build
// isolated instances.
type Manager struct {
	mu    sync.RWMutex
	books map[string]*Book
}

func NewManager() *Manager {
	return &Manager{
		books: make(map[string]*Book),
	}
}

// GetOrCreate retrieves the book for a symbol, creating it on first use.
func (m *Manager) GetOrCreate(symbol string) *Book {
	symbol = strings.ToUpper(symbol)

	m.mu.RLock()
	book, exists := m.books[symbol]
	m.mu.RUnlock()
	if exists {
		return book
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Re-check: another goroutine may have created it between the locks.
	book, exists = m.books[symbol]
	if exists {
		return book
	}

	book = NewBook(symbol)
	m.books[symbol] = book
	return book
}

// Rebuild reconstructs a market's book from the open order rows. Invoked on
// process start; the in-memory book is never authoritative across restarts.
func (m *Manager) Rebuild(symbol string, openOrders []types.Order) {
	book := m.GetOrCreate(symbol)
	book.Clear()

	for _, order := range openOrders {
		if order.Status != types.OrderStatusOpen && order.Status != types.OrderStatusPartial {
			continue
		}
		if order.RemainingQuantity <= 0 {
			continue
		}
		book.AddLevel(order.Side, order.Price, order.RemainingQuantity)
	}

	log.Info().
		Str("component", "orderbook").
		Str("symbol", symbol).
		Int("orders", len(openOrders)).
		Msg("rebuilt order book from open orders")
}
