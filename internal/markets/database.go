package markets

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/RubyEDE/ls-demo-be-sub000/internal/types"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) GetMarket(symbol string) (*types.Market, error) {
	var market types.Market
	if err := d.db.Where("symbol = ?", symbol).First(&market).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrMarketNotFound
		}
		return nil, err
	}
	return &market, nil
}

func (d *Database) ListActive() ([]types.Market, error) {
	var markets []types.Market
	if err := d.db.Where("active = ?", true).Find(&markets).Error; err != nil {
		return nil, err
	}
	return markets, nil
}

func (d *Database) ListAll() ([]types.Market, error) {
	var markets []types.Market
	if err := d.db.Find(&markets).Error; err != nil {
		return nil, err
	}
	return markets, nil
}

func (d *Database) Save(market *types.Market) error {
	return d.db.Save(market).Error
}

func (d *Database) Create(market *types.Market) error {
	return d.db.Create(market).Error
}

// UpdateFundingState persists the funding fields written by the funding
// engine after a settlement round.
func (d *Database) UpdateFundingState(symbol string, rate float64, nextFundingTime time.Time) error {
	return d.db.Model(&types.Market{}).
		Where("symbol = ?", symbol).
		Updates(map[string]interface{}{
			"funding_rate":      rate,
			"next_funding_time": nextFundingTime,
		}).Error
}

// UpdateIndexPrice persists the oracle price written by the price intake.
func (d *Database) UpdateIndexPrice(symbol string, price float64) error {
	return d.db.Model(&types.Market{}).
		Where("symbol = ?", symbol).
		Update("index_price", price).Error
}
