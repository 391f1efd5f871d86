package migrations

import (
	"gorm.io/gorm"
)

// AddMatchingIndexes creates the indexes the matching engine depends on.
// The resting-order scan sorts by (price, created_at, id), so a covering
// index keeps price-time priority queries off a full table scan.
func AddMatchingIndexes(db *gorm.DB) error {
	// Using raw SQL for index creation to have more control over index types
	indexes := []string{
		// Composite index for resting-order scans (price-time priority)
		`CREATE INDEX IF NOT EXISTS idx_orders_resting
		 ON orders(symbol, side, status, price, created_at)`,

		// Index for per-client open order lookups
		`CREATE INDEX IF NOT EXISTS idx_orders_client_status
		 ON orders(client_id, status)`,

		// Index for the trade tape
		`CREATE INDEX IF NOT EXISTS idx_trades_symbol_created_at
		 ON trades(symbol, created_at)`,

		// Index for open position scans by market
		`CREATE INDEX IF NOT EXISTS idx_positions_symbol_status
		 ON positions(symbol, status)`,

		// Index for balance change history
		`CREATE INDEX IF NOT EXISTS idx_balance_changes_client
		 ON balance_changes(client_id, created_at)`,
	}

	// Execute each index creation
	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
