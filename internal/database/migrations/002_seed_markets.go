package migrations

import (
	"time"

	"gorm.io/gorm"

	"github.com/RubyEDE/ls-demo-be-sub000/internal/types"
)

// SeedMarkets inserts the default demo markets on first boot. Existing rows
// are left untouched so operator edits survive restarts.
func SeedMarkets(db *gorm.DB) error {
	defaults := []types.Market{
		{
			Symbol:                "BTC-PERP",
			TickSize:              0.5,
			LotSize:               0.001,
			MinOrderSize:          0.001,
			MaxOrderSize:          100,
			MaxLeverage:           20,
			InitialMarginRate:     0.05,
			MaintenanceMarginRate: 0.025,
			MakerFeeRate:          0.0002,
			TakerFeeRate:          0.0005,
			FundingIntervalHours:  8,
			IndexPrice:            50000,
			Active:                true,
		},
		{
			Symbol:                "ETH-PERP",
			TickSize:              0.05,
			LotSize:               0.01,
			MinOrderSize:          0.01,
			MaxOrderSize:          1000,
			MaxLeverage:           20,
			InitialMarginRate:     0.05,
			MaintenanceMarginRate: 0.025,
			MakerFeeRate:          0.0002,
			TakerFeeRate:          0.0005,
			FundingIntervalHours:  8,
			IndexPrice:            3000,
			Active:                true,
		},
		{
			Symbol:                "SOL-PERP",
			TickSize:              0.001,
			LotSize:               0.1,
			MinOrderSize:          0.1,
			MaxOrderSize:          10000,
			MaxLeverage:           10,
			InitialMarginRate:     0.1,
			MaintenanceMarginRate: 0.05,
			MakerFeeRate:          0.0002,
			TakerFeeRate:          0.0005,
			FundingIntervalHours:  8,
			IndexPrice:            150,
			Active:                true,
		},
	}

	now := time.Now()
	for i := range defaults {
		market := &defaults[i]

		var count int64
		if err := db.Model(&types.Market{}).
			Where("symbol = ?", market.Symbol).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}

		market.NextFundingTime = now.Add(time.Duration(market.FundingIntervalHours) * time.Hour)
		if err := db.Create(market).Error; err != nil {
			return err
		}
	}

	return nil
}
