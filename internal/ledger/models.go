package ledger

import (
	"time"

	"gorm.io/gorm"
)

// Balance change kinds
const (
	KindCredit = "CREDIT"
	KindDebit  = "DEBIT"
	KindLock   = "LOCK"
	KindUnlock = "UNLOCK"
)

// Balance tracks a client's free and locked collateral. Created lazily on
// the first balance-touching operation, never deleted.
type Balance struct {
	gorm.Model   `json:"-"`
	ClientID     string    `gorm:"uniqueIndex" json:"client_id"`
	Free         float64   `json:"free"`
	Locked       float64   `json:"locked"`
	TotalCredits float64   `json:"total_credits"`
	TotalDebits  float64   `json:"total_debits"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// BalanceChange is the append-only audit record. Replaying all changes for
// a client reconstructs the current balance:
//
//	free   = credits + unlocks - debits - locks
//	locked = locks - unlocks
type BalanceChange struct {
	gorm.Model  `json:"-"`
	ChangeID    string    `gorm:"uniqueIndex" json:"change_id"`
	ClientID    string    `gorm:"index" json:"client_id"`
	Kind        string    `json:"kind"` // CREDIT, DEBIT, LOCK, UNLOCK
	Amount      float64   `json:"amount"`
	Reason      string    `json:"reason"`
	ReferenceID string    `json:"reference_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
