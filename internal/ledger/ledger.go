package ledger

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/RubyEDE/ls-demo-be-sub000/internal/events"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/types"
	"github.com/RubyEDE/ls-demo-be-sub000/pkg/response"
)

// FaucetAmount is the demo credit handed out per faucet request.
const FaucetAmount = 10000.0

// Service owns all balance mutations. Every mutation appends exactly one
// change record per movement and updates the running totals, so the change
// log replays to the current balance.
type Service struct {
	db     *Database
	events *events.Dispatcher

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-client serialization
}

func NewService(gormDB *gorm.DB, dispatcher *events.Dispatcher) *Service {
	return &Service{
		db:     NewDatabase(gormDB),
		events: dispatcher,
		locks:  make(map[string]*sync.Mutex),
	}
}

// clientLock returns the mutex serializing mutations for one client.
func (s *Service) clientLock(clientID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, exists := s.locks[clientID]
	if !exists {
		lock = &sync.Mutex{}
		s.locks[clientID] = lock
	}
	return lock
}

// Credit adds funds to the client's free balance.
func (s *Service) Credit(clientID string, amount float64, reason, referenceID string) error {
	if amount <= 0 {
		return types.ErrInvalidAmount
	}

	lock := s.clientLock(clientID)
	lock.Lock()
	defer lock.Unlock()

	balance, err := s.db.GetOrCreateBalance(clientID)
	if err != nil {
		return err
	}

	balance.Free += amount
	balance.TotalCredits += amount

	if err := s.db.SaveWithChanges(balance, s.newChange(clientID, KindCredit, amount, reason, referenceID)); err != nil {
		return err
	}

	s.publish(balance, KindCredit, amount, reason)
	return nil
}

// Debit removes funds from the client's free balance.
func (s *Service) Debit(clientID string, amount float64, reason, referenceID string) error {
	if amount <= 0 {
		return types.ErrInvalidAmount
	}

	lock := s.clientLock(clientID)
	lock.Lock()
	defer lock.Unlock()

	balance, err := s.db.GetOrCreateBalance(clientID)
	if err != nil {
		return err
	}
	if balance.Free < amount {
		return types.ErrInsufficientBalance
	}

	balance.Free -= amount
	balance.TotalDebits += amount

	if err := s.db.SaveWithChanges(balance, s.newChange(clientID, KindDebit, amount, reason, referenceID)); err != nil {
		return err
	}

	s.publish(balance, KindDebit, amount, reason)
	return nil
}

// Lock reserves free funds for an open order or margin.
func (s *Service) Lock(clientID string, amount float64, reason, referenceID string) error {
	if amount <= 0 {
		return types.ErrInvalidAmount
	}

	lock := s.clientLock(clientID)
	lock.Lock()
	defer lock.Unlock()

	balance, err := s.db.GetOrCreateBalance(clientID)
	if err != nil {
		return err
	}
	if balance.Free < amount {
		return types.ErrInsufficientBalance
	}

	balance.Free -= amount
	balance.Locked += amount

	if err := s.db.SaveWithChanges(balance, s.newChange(clientID, KindLock, amount, reason, referenceID)); err != nil {
		return err
	}

	s.publish(balance, KindLock, amount, reason)
	return nil
}

// Unlock releases reserved funds back to the free balance.
func (s *Service) Unlock(clientID string, amount float64, reason, referenceID string) error {
	if amount <= 0 {
		return types.ErrInvalidAmount
	}

	lock := s.clientLock(clientID)
	lock.Lock()
	defer lock.Unlock()

	balance, err := s.db.GetOrCreateBalance(clientID)
	if err != nil {
		return err
	}
	if balance.Locked < amount {
		return types.ErrInsufficientBalance
	}

	balance.Locked -= amount
	balance.Free += amount

	if err := s.db.SaveWithChanges(balance, s.newChange(clientID, KindUnlock, amount, reason, referenceID)); err != nil {
		return err
	}

	s.publish(balance, KindUnlock, amount, reason)
	return nil
}

// DebitLocked is the specialized loss debit: it draws from locked funds
// first and spills the remainder into free. Used for realized losses and
// funding payments, which can exceed what was locked for a single position.
// Recorded as an unlock of the drawn portion followed by a free debit, so
// the change log still replays exactly.
func (s *Service) DebitLocked(clientID string, amount float64, reason, referenceID string) error {
	if amount <= 0 {
		return types.ErrInvalidAmount
	}

	lock := s.clientLock(clientID)
	lock.Lock()
	defer lock.Unlock()

	balance, err := s.db.GetOrCreateBalance(clientID)
	if err != nil {
		return err
	}
	if balance.Free+balance.Locked < amount {
		return types.ErrInsufficientBalance
	}

	fromLocked := amount
	if balance.Locked < fromLocked {
		fromLocked = balance.Locked
	}

	changes := make([]*BalanceChange, 0, 2)
	if fromLocked > 0 {
		balance.Locked -= fromLocked
		balance.Free += fromLocked
		changes = append(changes, s.newChange(clientID, KindUnlock, fromLocked, reason, referenceID))
	}
	balance.Free -= amount
	balance.TotalDebits += amount
	changes = append(changes, s.newChange(clientID, KindDebit, amount, reason, referenceID))

	if err := s.db.SaveWithChanges(balance, changes...); err != nil {
		return err
	}

	s.publish(balance, KindDebit, amount, reason)
	return nil
}

// GetBalance returns the current balance for a client, creating it if this
// is the first touch.
func (s *Service) GetBalance(clientID string) (*Balance, error) {
	return s.db.GetOrCreateBalance(clientID)
}

// GetHistory returns the change log for a client.
func (s *Service) GetHistory(clientID string, limit int) ([]BalanceChange, error) {
	return s.db.GetChanges(clientID, limit)
}

// Replay reconstructs a balance from its change log. Used by the audit
// endpoint and tests to verify the log is sufficient to rebuild state.
func (s *Service) Replay(clientID string) (*Balance, error) {
	changes, err := s.db.GetChanges(clientID, 0)
	if err != nil {
		return nil, err
	}

	replayed := &Balance{ClientID: clientID}
	for _, change := range changes {
		switch change.Kind {
		case KindCredit:
			replayed.Free += change.Amount
			replayed.TotalCredits += change.Amount
		case KindDebit:
			replayed.Free -= change.Amount
			replayed.TotalDebits += change.Amount
		case KindLock:
			replayed.Free -= change.Amount
			replayed.Locked += change.Amount
		case KindUnlock:
			replayed.Locked -= change.Amount
			replayed.Free += change.Amount
		}
	}
	return replayed, nil
}

func (s *Service) newChange(clientID, kind string, amount float64, reason, referenceID string) *BalanceChange {
	return &BalanceChange{
		ChangeID:    "BAL_" + uuid.New().String(),
		ClientID:    clientID,
		Kind:        kind,
		Amount:      amount,
		Reason:      reason,
		ReferenceID: referenceID,
		CreatedAt:   time.Now(),
	}
}

func (s *Service) publish(balance *Balance, kind string, amount float64, reason string) {
	s.events.Publish(events.TypeBalanceChange, gin.H{
		"client_id": balance.ClientID,
		"kind":      kind,
		"amount":    amount,
		"reason":    reason,
		"free":      balance.Free,
		"locked":    balance.Locked,
	})
}

// GinHandlers contains HTTP handlers for balance endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// GetBalanceHandler handles GET requests for the caller's balance
func (h *GinHandlers) GetBalanceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := c.GetString("clientID")
		if clientID == "" {
			response.Unauthorized(c, "Missing client ID")
			return
		}

		balance, err := h.service.GetBalance(clientID)
		response.Handle(c, balance, err)
	}
}

// GetHistoryHandler handles GET requests for the caller's balance change log
func (h *GinHandlers) GetHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := c.GetString("clientID")
		if clientID == "" {
			response.Unauthorized(c, "Missing client ID")
			return
		}

		changes, err := h.service.GetHistory(clientID, 500)
		response.Handle(c, changes, err)
	}
}

// FaucetHandler handles POST requests crediting demo funds to the caller
func (h *GinHandlers) FaucetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := c.GetString("clientID")
		if clientID == "" {
			response.Unauthorized(c, "Missing client ID")
			return
		}

		logger := log.With().Str("service", "ledger").Str("client_id", clientID).Logger()
		if err := h.service.Credit(clientID, FaucetAmount, "faucet", ""); err != nil {
			logger.Error().Err(err).Msg("faucet credit failed")
			response.Handle(c, nil, err)
			return
		}
		logger.Info().Float64("amount", FaucetAmount).Msg("faucet credit issued")

		balance, err := h.service.GetBalance(clientID)
		response.Handle(c, balance, err)
	}
}

// ReplayHandler handles GET requests reconstructing a balance from its log.
// Admin audit surface: flags drift between the stored row and the log.
func (h *GinHandlers) ReplayHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := c.Param("client_id")
		if clientID == "" {
			response.BadRequest(c, "client ID is required")
			return
		}

		stored, err := h.service.GetBalance(clientID)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		replayed, err := h.service.Replay(clientID)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		response.Success(c, gin.H{
			"stored":   stored,
			"replayed": replayed,
		})
	}
}
