package liquidation

import (
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) Create(record *Liquidation) error {
	return d.db.Create(record).Error
}

func (d *Database) GetRecent(symbol string, limit int) ([]Liquidation, error) {
	var records []Liquidation
	err := d.db.Where("symbol = ?", symbol).
		Order("id desc").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Aggregate returns the count and total notional liquidated for a market.
func (d *Database) Aggregate(symbol string) (int64, float64, error) {
	var count int64
	if err := d.db.Model(&Liquidation{}).Where("symbol = ?", symbol).Count(&count).Error; err != nil {
		return 0, 0, err
	}

	var total struct {
		Notional float64
	}
	err := d.db.Model(&Liquidation{}).
		Select("COALESCE(SUM(notional), 0) as notional").
		Where("symbol = ?", symbol).
		Scan(&total).Error
	if err != nil {
		return 0, 0, err
	}
	return count, total.Notional, nil
}
