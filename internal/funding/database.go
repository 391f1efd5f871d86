package funding

import (
	"gorm.io/gorm"
)

// historyLimit bounds the rolling funding history kept per market.
const historyLimit = 100

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// CreateEvent appends a settlement record and prunes the market's history
// beyond the rolling limit.
func (d *Database) CreateEvent(event *FundingEvent) error {
	if err := d.db.Create(event).Error; err != nil {
		return err
	}

	// Delete everything older than the newest historyLimit rows.
	var cutoff FundingEvent
	err := d.db.Where("symbol = ?", event.Symbol).
		Order("id desc").
		Offset(historyLimit - 1).
		First(&cutoff).Error
	if err != nil {
		// Fewer rows than the limit, nothing to prune.
		return nil
	}
	return d.db.Where("symbol = ? AND id < ?", event.Symbol, cutoff.ID).
		Delete(&FundingEvent{}).Error
}

// GetRecent returns the latest settlement records for a market.
func (d *Database) GetRecent(symbol string, limit int) ([]FundingEvent, error) {
	var fundingEvents []FundingEvent
	err := d.db.Where("symbol = ?", symbol).
		Order("id desc").
		Limit(limit).
		Find(&fundingEvents).Error
	if err != nil {
		return nil, err
	}
	return fundingEvents, nil
}

// CountRounds returns how many settlement rounds are on record for a market.
func (d *Database) CountRounds(symbol string) (int64, error) {
	var count int64
	err := d.db.Model(&FundingEvent{}).Where("symbol = ?", symbol).Count(&count).Error
	return count, err
}
