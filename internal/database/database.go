package database

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/RubyEDE/ls-demo-be-sub000/internal/database/migrations"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/funding"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/ledger"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/liquidation"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/types"
)

// NewDatabase initializes and returns a new GORM DB connection
func NewDatabase(path string) (*gorm.DB, error) {
	if path == "" {
		path = "exchange.db"
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(
		&types.Market{},
		&types.Order{},
		&types.Trade{},
		&types.Position{},
		&ledger.Balance{},
		&ledger.BalanceChange{},
		&funding.FundingEvent{},
		&liquidation.Liquidation{},
	)
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := migrations.AddMatchingIndexes(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := migrations.SeedMarkets(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}
