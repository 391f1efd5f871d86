package positions

import (
	"errors"

	"gorm.io/gorm"

	"github.com/RubyEDE/ls-demo-be-sub000/internal/types"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// GetOpen returns the single open position for a (client, market) pair, or
// nil when the client has no exposure there.
func (d *Database) GetOpen(clientID, symbol string) (*types.Position, error) {
	var position types.Position
	err := d.db.Where("client_id = ? AND symbol = ? AND status = ?", clientID, symbol, types.PositionStatusOpen).
		First(&position).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &position, nil
}

// GetOpenByMarket returns every open position in a market. The liquidation
// monitor and funding engine scan these; the status filter is what keeps an
// already closed or liquidated position from being processed twice.
func (d *Database) GetOpenByMarket(symbol string) ([]types.Position, error) {
	var positions []types.Position
	err := d.db.Where("symbol = ? AND status = ?", symbol, types.PositionStatusOpen).
		Find(&positions).Error
	if err != nil {
		return nil, err
	}
	return positions, nil
}

// GetOpenByClient returns a client's open positions across all markets.
func (d *Database) GetOpenByClient(clientID string) ([]types.Position, error) {
	var positions []types.Position
	err := d.db.Where("client_id = ? AND status = ?", clientID, types.PositionStatusOpen).
		Find(&positions).Error
	if err != nil {
		return nil, err
	}
	return positions, nil
}

func (d *Database) Create(position *types.Position) error {
	return d.db.Create(position).Error
}

func (d *Database) Save(position *types.Position) error {
	return d.db.Save(position).Error
}
