package types

import "errors"

// Business-rule failures returned by the core services. Placement and
// cancellation fail routinely (insufficient funds, racing cancels), so
// callers are expected to branch on these rather than treat them as fatal.
var (
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrMarketNotFound      = errors.New("market not found")
	ErrMarketInactive      = errors.New("market is not active")
	ErrPostOnlyWouldMatch  = errors.New("post-only order would match immediately")
	ErrOrderNotFound       = errors.New("order not found")
	ErrNotOwner            = errors.New("order does not belong to caller")
	ErrNotCancellable      = errors.New("order is not cancellable")
	ErrNoPriceAvailable    = errors.New("no price available")
	ErrInvalidQuantity     = errors.New("invalid order quantity")
	ErrInvalidPrice        = errors.New("invalid order price")
	ErrInvalidLeverage     = errors.New("invalid leverage")
)
