package ledger

import (
	"errors"

	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// GetOrCreateBalance fetches the balance row for a client, creating a zero
// balance on first touch.
func (d *Database) GetOrCreateBalance(clientID string) (*Balance, error) {
	var balance Balance
	err := d.db.Where("client_id = ?", clientID).First(&balance).Error
	if err == nil {
		return &balance, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	balance = Balance{ClientID: clientID}
	if err := d.db.Create(&balance).Error; err != nil {
		return nil, err
	}
	return &balance, nil
}

// SaveWithChanges persists the mutated balance together with its change
// records in one transaction, keeping the audit log consistent with the
// running totals.
func (d *Database) SaveWithChanges(balance *Balance, changes ...*BalanceChange) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Save(balance).Error; err != nil {
		tx.Rollback()
		return err
	}

	for _, change := range changes {
		if err := tx.Create(change).Error; err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit().Error
}

// GetChanges returns the change log for a client, oldest first.
func (d *Database) GetChanges(clientID string, limit int) ([]BalanceChange, error) {
	var changes []BalanceChange
	query := d.db.Where("client_id = ?", clientID).Order("id asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&changes).Error; err != nil {
		return nil, err
	}
	return changes, nil
}
