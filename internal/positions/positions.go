package positions

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/RubyEDE/ls-demo-be-sub000/internal/events"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/ledger"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/markets"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/types"
	"github.com/RubyEDE/ls-demo-be-sub000/pkg/response"
)

const sizeEpsilon = 1e-9

// Service derives and maintains per-(client, market) net positions from
// trade executions, and settles realized PnL and margin into the ledger.
type Service struct {
	db      *Database
	ledger  *ledger.Service
	markets *markets.Service
	events  *events.Dispatcher

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-(client, symbol) serialization
}

func NewService(gormDB *gorm.DB, ledgerService *ledger.Service, marketService *markets.Service, dispatcher *events.Dispatcher) *Service {
	return &Service{
		db:      NewDatabase(gormDB),
		ledger:  ledgerService,
		markets: marketService,
		events:  dispatcher,
		locks:   make(map[string]*sync.Mutex),
	}
}

// positionLock serializes trade execution, funding and liquidation updates
// for one (client, market) position.
func (s *Service) positionLock(clientID, symbol string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := clientID + ":" + symbol
	lock, exists := s.locks[key]
	if !exists {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}

// OnTrade applies one trade execution to the client's position in the
// market. marginDelta is the slice of the order's locked reservation that
// this fill consumed; it becomes position margin when the fill opens or
// increases exposure and is released when the fill reduces it.
func (s *Service) OnTrade(clientID, symbol, orderSide string, quantity, price, marginDelta float64, referenceID string) (*types.Position, error) {
	lock := s.positionLock(clientID, symbol)
	lock.Lock()
	defer lock.Unlock()

	market, err := s.markets.GetMarket(symbol)
	if err != nil {
		return nil, err
	}

	position, err := s.db.GetOpen(clientID, symbol)
	if err != nil {
		return nil, err
	}

	tradeSide := types.PositionSideForOrder(orderSide)

	switch {
	case position == nil:
		return s.openPosition(clientID, symbol, tradeSide, quantity, price, marginDelta, market)

	case position.Side == tradeSide:
		return s.increasePosition(position, quantity, price, marginDelta, market)

	default:
		return s.reducePosition(position, quantity, price, marginDelta, market, referenceID)
	}
}

func (s *Service) openPosition(clientID, symbol, side string, quantity, price, margin float64, market *types.Market) (*types.Position, error) {
	position := &types.Position{
		PositionID: "POS_" + uuid.New().String(),
		ClientID:   clientID,
		Symbol:     symbol,
		Side:       side,
		Size:       quantity,
		EntryPrice: price,
		Margin:     margin,
		Status:     types.PositionStatusOpen,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	s.refreshDerived(position, market)

	if err := s.db.Create(position); err != nil {
		return nil, err
	}

	s.publish(position)
	return position, nil
}

func (s *Service) increasePosition(position *types.Position, quantity, price, marginDelta float64, market *types.Market) (*types.Position, error) {
	// Volume-weighted average entry across the old and new exposure.
	position.EntryPrice = (position.EntryPrice*position.Size + price*quantity) / (position.Size + quantity)
	position.Size += quantity
	position.Margin += marginDelta
	position.UpdatedAt = time.Now()
	s.refreshDerived(position, market)

	if err := s.db.Save(position); err != nil {
		return nil, err
	}

	s.publish(position)
	return position, nil
}

// reducePosition handles a trade on the opposite side: partial close, full
// close, or close-and-flip when the trade is larger than the position.
func (s *Service) reducePosition(position *types.Position, quantity, price, marginDelta float64, market *types.Market, referenceID string) (*types.Position, error) {
	closeQty := math.Min(quantity, position.Size)
	excessQty := quantity - closeQty

	// The reservation consumed for the closing share of the fill is not
	// needed as new margin: it reduced exposure, so hand it straight back.
	if marginDelta > 0 && closeQty > 0 {
		releaseShare := marginDelta * (closeQty / quantity)
		if err := s.ledger.Unlock(position.ClientID, releaseShare, "margin_release", referenceID); err != nil {
			log.Warn().Err(err).
				Str("service", "positions").
				Str("position_id", position.PositionID).
				Float64("amount", releaseShare).
				Msg("failed to release closing-share reservation")
		}
		marginDelta -= releaseShare
	}

	direction := types.PositionDirection(position.Side)
	realized := (price - position.EntryPrice) * closeQty * direction
	marginShare := position.Margin * (closeQty / position.Size)

	if err := s.settleClose(position.ClientID, realized, marginShare, "position_close", referenceID); err != nil {
		return nil, err
	}

	position.RealizedPnl += realized
	position.Size -= closeQty
	position.Margin -= marginShare
	position.UpdatedAt = time.Now()

	if position.Size <= sizeEpsilon {
		position.Size = 0
		position.Margin = 0
		position.LiquidationPrice = 0
		position.Leverage = 0
		position.Status = types.PositionStatusClosed
	} else {
		s.refreshDerived(position, market)
	}

	if err := s.db.Save(position); err != nil {
		return nil, err
	}
	s.publish(position)

	// Trade larger than the position: the excess opens a fresh position on
	// the other side, carrying the pro-rated remainder of the reservation.
	if excessQty > sizeEpsilon {
		newSide := types.PositionLong
		if position.Side == types.PositionLong {
			newSide = types.PositionShort
		}
		return s.openPosition(position.ClientID, position.Symbol, newSide, excessQty, price, marginDelta, market)
	}

	return position, nil
}

// settleClose moves a closed slice's margin and realized PnL through the
// ledger: one credit stream when the net is positive, otherwise a debit
// drawing locked funds first.
func (s *Service) settleClose(clientID string, realized, marginShare float64, reason, referenceID string) error {
	if realized >= 0 {
		if marginShare > 0 {
			if err := s.ledger.Unlock(clientID, marginShare, reason, referenceID); err != nil {
				return fmt.Errorf("failed to release margin: %w", err)
			}
		}
		if realized > 0 {
			if err := s.ledger.Credit(clientID, realized, reason, referenceID); err != nil {
				return fmt.Errorf("failed to credit realized pnl: %w", err)
			}
		}
		return nil
	}

	loss := -realized
	if returnable := marginShare - loss; returnable > 0 {
		if err := s.ledger.Unlock(clientID, returnable, reason, referenceID); err != nil {
			return fmt.Errorf("failed to release margin: %w", err)
		}
	}

	err := s.ledger.DebitLocked(clientID, loss, reason, referenceID)
	if err == types.ErrInsufficientBalance {
		// The loss exceeds everything the client has. Forfeit what is
		// there rather than failing the close.
		balance, balErr := s.ledger.GetBalance(clientID)
		if balErr != nil {
			return balErr
		}
		available := balance.Free + balance.Locked
		if available <= 0 {
			return nil
		}
		log.Warn().
			Str("service", "positions").
			Str("client_id", clientID).
			Float64("loss", loss).
			Float64("available", available).
			Msg("loss exceeds total balance, forfeiting remainder")
		return s.ledger.DebitLocked(clientID, available, reason, referenceID)
	}
	return err
}

// refreshDerived recomputes leverage and liquidation price after any size
// or margin change.
func (s *Service) refreshDerived(position *types.Position, market *types.Market) {
	notional := position.EntryPrice * position.Size
	if position.Margin > 0 {
		position.Leverage = notional / position.Margin
	} else {
		position.Leverage = 0
	}
	position.LiquidationPrice = LiquidationPrice(position, market.MaintenanceMarginRate)
}

// LiquidationPrice derives the mark price at which the position's margin
// no longer covers maintenance margin plus the adverse move.
func LiquidationPrice(position *types.Position, maintenanceMarginRate float64) float64 {
	if position.Size <= 0 {
		return 0
	}

	maintenanceMargin := position.EntryPrice * position.Size * maintenanceMarginRate
	availableForLoss := position.Margin - maintenanceMargin
	priceMovement := availableForLoss / position.Size

	if position.Side == types.PositionLong {
		return math.Max(0, position.EntryPrice-priceMovement)
	}
	return position.EntryPrice + priceMovement
}

// UnrealizedPnl computes the open PnL at the given mark price.
func UnrealizedPnl(position *types.Position, markPrice float64) float64 {
	return (markPrice - position.EntryPrice) * position.Size * types.PositionDirection(position.Side)
}

// WouldBeLiquidated reports whether the mark price has crossed the
// position's liquidation price.
func WouldBeLiquidated(position *types.Position, markPrice float64) bool {
	if position.Status != types.PositionStatusOpen {
		return false
	}
	if position.Side == types.PositionLong {
		return markPrice <= position.LiquidationPrice
	}
	return markPrice >= position.LiquidationPrice
}

// ApplyFunding settles one funding payment against the position. Negative
// payments debit the owner drawing locked margin first; when even that
// fails, the payment is taken out of the position's margin directly and the
// liquidation price is recomputed with the reduced collateral.
func (s *Service) ApplyFunding(position *types.Position, payment float64, market *types.Market) error {
	lock := s.positionLock(position.ClientID, position.Symbol)
	lock.Lock()
	defer lock.Unlock()

	referenceID := position.PositionID

	if payment >= 0 {
		if payment > 0 {
			if err := s.ledger.Credit(position.ClientID, payment, "funding", referenceID); err != nil {
				return err
			}
		}
	} else {
		charge := -payment
		err := s.ledger.DebitLocked(position.ClientID, charge, "funding", referenceID)
		if err == types.ErrInsufficientBalance {
			// Documented fallback: reduce the position's margin instead of
			// failing the funding round.
			log.Warn().
				Str("service", "positions").
				Str("position_id", position.PositionID).
				Float64("charge", charge).
				Msg("funding debit failed, reducing position margin")
			position.Margin = math.Max(0, position.Margin-charge)
			s.refreshDerived(position, market)
		} else if err != nil {
			return err
		}
	}

	position.AccumulatedFunding += payment
	position.UpdatedAt = time.Now()

	if err := s.db.Save(position); err != nil {
		return err
	}
	s.publish(position)
	return nil
}

// Liquidate force-closes a position at the mark price through the same
// settle path as a regular close, tagging it LIQUIDATED. Returns the
// realized PnL of the close.
func (s *Service) Liquidate(position *types.Position, markPrice float64) (float64, error) {
	lock := s.positionLock(position.ClientID, position.Symbol)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock: a racing trade or a previous scan may have
	// closed it already.
	current, err := s.db.GetOpen(position.ClientID, position.Symbol)
	if err != nil {
		return 0, err
	}
	if current == nil || current.PositionID != position.PositionID {
		return 0, nil
	}
	position = current

	realized := UnrealizedPnl(position, markPrice)
	if err := s.settleClose(position.ClientID, realized, position.Margin, "liquidation", position.PositionID); err != nil {
		return 0, err
	}

	position.RealizedPnl += realized
	position.Size = 0
	position.Margin = 0
	position.Leverage = 0
	position.LiquidationPrice = 0
	position.Status = types.PositionStatusLiquidated
	position.UpdatedAt = time.Now()

	if err := s.db.Save(position); err != nil {
		return 0, err
	}

	s.events.Publish(events.TypeLiquidation, position)
	return realized, nil
}

// GetOpenPosition returns the open position for a (client, market) pair.
func (s *Service) GetOpenPosition(clientID, symbol string) (*types.Position, error) {
	return s.db.GetOpen(clientID, symbol)
}

// OpenByMarket returns all open positions in a market.
func (s *Service) OpenByMarket(symbol string) ([]types.Position, error) {
	return s.db.GetOpenByMarket(symbol)
}

// OpenByClient returns a client's open positions with live unrealized PnL.
func (s *Service) OpenByClient(clientID string) ([]types.Position, error) {
	positions, err := s.db.GetOpenByClient(clientID)
	if err != nil {
		return nil, err
	}

	for i := range positions {
		market, err := s.markets.GetMarket(positions[i].Symbol)
		if err != nil {
			continue
		}
		markPrice, err := s.markets.MarkPrice(market)
		if err != nil {
			continue
		}
		positions[i].UnrealizedPnl = UnrealizedPnl(&positions[i], markPrice)
	}
	return positions, nil
}

func (s *Service) publish(position *types.Position) {
	s.events.Publish(events.TypePositionUpdate, position)
}

// GinHandlers contains HTTP handlers for position endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// ListPositionsHandler handles GET requests for the caller's open positions
func (h *GinHandlers) ListPositionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := c.GetString("clientID")
		if clientID == "" {
			response.Unauthorized(c, "Missing client ID")
			return
		}

		positions, err := h.service.OpenByClient(clientID)
		response.Handle(c, positions, err)
	}
}
