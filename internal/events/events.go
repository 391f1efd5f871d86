package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the core services.
const (
	TypeOrderUpdate    = "order_update"
	TypeTradeExecuted  = "trade_executed"
	TypePositionUpdate = "position_update"
	TypeBalanceChange  = "balance_change"
	TypeFundingSettled = "funding_settled"
	TypeLiquidation    = "liquidation"
)

// Event is a discrete, serializable notification handed to the transport
// layer. The core emits these fire-and-forget; delivery guarantees are the
// sink's problem.
type Event struct {
	EventID   string      `json:"event_id"`
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// Sink receives published events. Deliver must not block: sinks that fan
// out over slow transports should buffer and drop internally.
type Sink interface {
	Deliver(event Event)
}

// Dispatcher fans events out to registered sinks. A nil dispatcher is valid
// and drops everything, which keeps the domain services testable without a
// live transport.
type Dispatcher struct {
	mu    sync.RWMutex
	sinks []Sink
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Register adds a sink to the fan-out set.
func (d *Dispatcher) Register(sink Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks = append(d.sinks, sink)
}

// Publish builds an event and hands it to every registered sink.
func (d *Dispatcher) Publish(eventType string, payload interface{}) {
	if d == nil {
		return
	}

	event := Event{
		EventID:   uuid.New().String(),
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, sink := range d.sinks {
		sink.Deliver(event)
	}
}
