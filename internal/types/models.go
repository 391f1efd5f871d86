package types

import (
	"time"

	"gorm.io/gorm"
)

// Order sides
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Order types
const (
	OrderTypeLimit  = "LIMIT"
	OrderTypeMarket = "MARKET"
)

// Order statuses
const (
	OrderStatusPending   = "PENDING"
	OrderStatusOpen      = "OPEN"
	OrderStatusPartial   = "PARTIAL"
	OrderStatusFilled    = "FILLED"
	OrderStatusCancelled = "CANCELLED"
)

// Position sides
const (
	PositionLong  = "LONG"
	PositionShort = "SHORT"
)

// Position statuses
const (
	PositionStatusOpen       = "OPEN"
	PositionStatusClosed     = "CLOSED"
	PositionStatusLiquidated = "LIQUIDATED"
)

// Order represents a resting or executed order. The orders table is the
// system of record for the in-memory book: the book is rebuilt from all
// OPEN/PARTIAL rows on startup.
type Order struct {
	gorm.Model        `json:"-"`
	OrderID           string  `gorm:"uniqueIndex" json:"order_id"`
	ClientID          string  `gorm:"index" json:"client_id,omitempty"` // empty for synthetic liquidity orders
	Symbol            string  `gorm:"index" json:"symbol"`
	Side              string  `json:"side"`       // BUY or SELL
	OrderType         string  `json:"order_type"` // LIMIT or MARKET
	Price             float64 `json:"price"`      // 0 for market orders
	Quantity          float64 `json:"quantity"`
	FilledQuantity    float64 `json:"filled_quantity"`
	RemainingQuantity float64 `json:"remaining_quantity"`
	AveragePrice      float64 `json:"average_price"`
	Leverage          float64 `json:"leverage"`
	// LockedMargin is the ledger reservation still held for this order.
	// Consumed into position margin on fills, released on cancel or
	// reconciliation. Must reach zero exactly once per order.
	LockedMargin float64   `json:"locked_margin"`
	PostOnly     bool      `json:"post_only"`
	ReduceOnly   bool      `json:"reduce_only"`
	Synthetic    bool      `json:"synthetic"`
	Status       string    `json:"status"` // PENDING, OPEN, PARTIAL, FILLED, CANCELLED
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Trade is the immutable execution record emitted by the matching engine.
// Positions and candles downstream are derived from these rows.
type Trade struct {
	gorm.Model    `json:"-"`
	TradeID       string    `gorm:"uniqueIndex" json:"trade_id"`
	Symbol        string    `gorm:"index" json:"symbol"`
	MakerOrderID  string    `json:"maker_order_id"`
	MakerClientID string    `json:"maker_client_id,omitempty"`
	TakerOrderID  string    `json:"taker_order_id"`
	TakerClientID string    `json:"taker_client_id,omitempty"`
	Side          string    `json:"side"` // taker's side
	Price         float64   `json:"price"`
	Quantity      float64   `json:"quantity"`
	QuoteQuantity float64   `json:"quote_quantity"`
	MakerFee      float64   `json:"maker_fee"`
	TakerFee      float64   `json:"taker_fee"`
	CreatedAt     time.Time `json:"created_at"`
}

// Position is a client's net exposure in one market. At most one OPEN row
// exists per (client, symbol) pair.
type Position struct {
	gorm.Model         `json:"-"`
	PositionID         string  `gorm:"uniqueIndex" json:"position_id"`
	ClientID           string  `gorm:"index" json:"client_id"`
	Symbol             string  `gorm:"index" json:"symbol"`
	Side               string  `json:"side"` // LONG or SHORT
	Size               float64 `json:"size"`
	EntryPrice         float64 `json:"entry_price"` // volume-weighted
	Margin             float64 `json:"margin"`
	Leverage           float64 `json:"leverage"`
	RealizedPnl        float64 `json:"realized_pnl"`
	LiquidationPrice   float64 `json:"liquidation_price"`
	AccumulatedFunding float64 `json:"accumulated_funding"`
	// UnrealizedPnl is recomputed from the mark price on demand, never stored.
	UnrealizedPnl float64   `gorm:"-" json:"unrealized_pnl"`
	Status        string    `json:"status"` // OPEN, CLOSED, LIQUIDATED
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Market holds per-symbol trading configuration. Read-mostly: the funding
// engine advances the funding fields and the oracle intake writes IndexPrice.
type Market struct {
	gorm.Model            `json:"-"`
	Symbol                string    `gorm:"uniqueIndex" json:"symbol"`
	TickSize              float64   `json:"tick_size"`
	LotSize               float64   `json:"lot_size"`
	MinOrderSize          float64   `json:"min_order_size"`
	MaxOrderSize          float64   `json:"max_order_size"`
	MaxLeverage           float64   `json:"max_leverage"`
	InitialMarginRate     float64   `json:"initial_margin_rate"`
	MaintenanceMarginRate float64   `json:"maintenance_margin_rate"`
	MakerFeeRate          float64   `json:"maker_fee_rate"`
	TakerFeeRate          float64   `json:"taker_fee_rate"`
	FundingIntervalHours  int       `json:"funding_interval_hours"`
	FundingRate           float64   `json:"funding_rate"`
	NextFundingTime       time.Time `json:"next_funding_time"`
	IndexPrice            float64   `json:"index_price"` // written by the external oracle poller
	Active                bool      `json:"active"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// PositionDirection returns +1 for longs and -1 for shorts.
func PositionDirection(side string) float64 {
	if side == PositionShort {
		return -1
	}
	return 1
}

// PositionSideForOrder maps an order side to the position side it opens.
func PositionSideForOrder(orderSide string) string {
	if orderSide == SideSell {
		return PositionShort
	}
	return PositionLong
}
