package funding

import (
	"time"

	"gorm.io/gorm"
)

// FundingEvent is the aggregate record of one settlement round in one
// market. A bounded rolling history is retained per market.
type FundingEvent struct {
	gorm.Model        `json:"-"`
	EventID           string    `gorm:"uniqueIndex" json:"event_id"`
	Symbol            string    `gorm:"index" json:"symbol"`
	Rate              float64   `json:"rate"`
	MarkPrice         float64   `json:"mark_price"`
	IndexPrice        float64   `json:"index_price"`
	TotalLongPayment  float64   `json:"total_long_payment"`  // net paid by longs (positive = longs paid)
	TotalShortPayment float64   `json:"total_short_payment"` // net paid by shorts
	PositionCount     int       `json:"position_count"`
	CreatedAt         time.Time `json:"created_at"`
}

// Stats summarizes a market's funding history.
type Stats struct {
	Symbol        string         `json:"symbol"`
	CurrentRate   float64        `json:"current_rate"`
	RoundCount    int64          `json:"round_count"`
	TotalSettled  float64        `json:"total_settled"`
	RecentHistory []FundingEvent `json:"recent_history"`
}
