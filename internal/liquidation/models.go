package liquidation

import (
	"time"

	"gorm.io/gorm"
)

// Liquidation records one force-closed position.
type Liquidation struct {
	gorm.Model    `json:"-"`
	LiquidationID string    `gorm:"uniqueIndex" json:"liquidation_id"`
	PositionID    string    `json:"position_id"`
	ClientID      string    `json:"client_id"`
	Symbol        string    `gorm:"index" json:"symbol"`
	Side          string    `json:"side"`
	Size          float64   `json:"size"`
	MarkPrice     float64   `json:"mark_price"`
	Notional      float64   `json:"notional"`
	RealizedPnl   float64   `json:"realized_pnl"`
	CreatedAt     time.Time `json:"created_at"`
}

// Stats aggregates a market's liquidation history.
type Stats struct {
	Symbol        string        `json:"symbol"`
	Count         int64         `json:"count"`
	TotalNotional float64       `json:"total_notional"`
	LastAt        *time.Time    `json:"last_at,omitempty"`
	Recent        []Liquidation `json:"recent"`
}
