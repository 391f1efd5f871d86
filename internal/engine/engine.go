package engine

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/RubyEDE/ls-demo-be-sub000/internal/events"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/ledger"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/markets"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/orderbook"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/positions"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/types"
	"github.com/RubyEDE/ls-demo-be-sub000/pkg/response"
)

const qtyEpsilon = 1e-9

// PlaceOrderRequest is the order placement payload.
type PlaceOrderRequest struct {
	Symbol     string  `json:"symbol" binding:"required"`
	Side       string  `json:"side" binding:"required,oneof=BUY SELL"`
	OrderType  string  `json:"order_type" binding:"required,oneof=LIMIT MARKET"`
	Price      float64 `json:"price"`
	Quantity   float64 `json:"quantity" binding:"required"`
	Leverage   float64 `json:"leverage"`
	PostOnly   bool    `json:"post_only"`
	ReduceOnly bool    `json:"reduce_only"`
}

// PlaceOrderResult pairs the final order state with the trades it produced.
type PlaceOrderResult struct {
	Order  *types.Order   `json:"order"`
	Trades []*types.Trade `json:"trades"`
}

// Service is the matching engine: it accepts orders, matches them against
// the resting book under price-time priority, and drives the ledger and
// position manager on every fill.
type Service struct {
	db        *Database
	ledger    *ledger.Service
	positions *positions.Service
	markets   *markets.Service
	books     *orderbook.Manager
	events    *events.Dispatcher

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-market serialization
}

func NewService(
	gormDB *gorm.DB,
	ledgerService *ledger.Service,
	positionService *positions.Service,
	marketService *markets.Service,
	books *orderbook.Manager,
	dispatcher *events.Dispatcher,
) *Service {
	return &Service{
		db:        NewDatabase(gormDB),
		ledger:    ledgerService,
		positions: positionService,
		markets:   marketService,
		books:     books,
		events:    dispatcher,
		locks:     make(map[string]*sync.Mutex),
	}
}

// marketLock returns the mutex serializing all trade-producing operations
// against one market's book. Held across the whole match-and-commit
// sequence; concurrent matching against the same book is the primary
// correctness hazard.
func (s *Service) marketLock(symbol string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, exists := s.locks[symbol]
	if !exists {
		lock = &sync.Mutex{}
		s.locks[symbol] = lock
	}
	return lock
}

// RebuildBooks reconstructs every active market's in-memory book from the
// open order rows. Called once on process start.
func (s *Service) RebuildBooks() error {
	activeMarkets, err := s.markets.ListActive()
	if err != nil {
		return fmt.Errorf("failed to list markets for rebuild: %w", err)
	}

	for _, market := range activeMarkets {
		orders, err := s.db.GetOpenOrdersByMarket(market.Symbol)
		if err != nil {
			return fmt.Errorf("failed to load open orders for %s: %w", market.Symbol, err)
		}
		s.books.Rebuild(market.Symbol, orders)
	}
	return nil
}

// PlaceOrder validates, reserves margin, matches, and rests the remainder.
// clientID is empty for synthetic liquidity orders, which skip all balance
// and position accounting.
func (s *Service) PlaceOrder(clientID string, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	symbol := strings.ToUpper(req.Symbol)
	side := strings.ToUpper(req.Side)
	orderType := strings.ToUpper(req.OrderType)

	logger := log.With().
		Str("service", "engine").
		Str("symbol", symbol).
		Str("client_id", clientID).
		Str("side", side).
		Str("order_type", orderType).
		Logger()

	market, err := s.markets.GetActiveMarket(symbol)
	if err != nil {
		return nil, err
	}

	if err := validateQuantity(req.Quantity, market); err != nil {
		return nil, err
	}
	if orderType == types.OrderTypeLimit && req.Price <= 0 {
		return nil, types.ErrInvalidPrice
	}

	leverage := req.Leverage
	if leverage == 0 {
		leverage = 1
	}
	if leverage < 1 || leverage > market.MaxLeverage {
		return nil, types.ErrInvalidLeverage
	}

	lock := s.marketLock(symbol)
	lock.Lock()
	defer lock.Unlock()

	quantity := req.Quantity
	synthetic := clientID == ""

	// Reduce-only orders are capped to the open size in the closing
	// direction; they never lock fresh margin and never flip exposure.
	if req.ReduceOnly && !synthetic {
		position, err := s.positions.GetOpenPosition(clientID, symbol)
		if err != nil {
			return nil, err
		}
		if position == nil || position.Side == types.PositionSideForOrder(side) {
			return nil, types.ErrInvalidQuantity
		}
		quantity = math.Min(quantity, position.Size)
	}

	orderID := "ORD_" + uuid.New().String()
	book := s.books.GetOrCreate(symbol)

	// Margin is reserved before the order can touch the book, and released
	// exactly once: on fill reconciliation, cancel, or rejection below.
	var lockedMargin float64
	if !synthetic && !req.ReduceOnly {
		estimate, err := s.reservationPrice(orderType, side, req.Price, market, book)
		if err != nil {
			return nil, err
		}
		lockedMargin = estimate * quantity / leverage
		if err := s.ledger.Lock(clientID, lockedMargin, "margin_lock", orderID); err != nil {
			return nil, err
		}
	}

	releaseReservation := func() {
		if lockedMargin > qtyEpsilon {
			if err := s.ledger.Unlock(clientID, lockedMargin, "margin_release", orderID); err != nil {
				logger.Error().Err(err).Float64("amount", lockedMargin).Msg("failed to release reservation")
			}
		}
	}

	// Post-only orders must rest: reject rather than match.
	if req.PostOnly && orderType == types.OrderTypeLimit && s.wouldMatch(side, req.Price, book) {
		releaseReservation()
		return nil, types.ErrPostOnlyWouldMatch
	}

	order := &types.Order{
		OrderID:           orderID,
		ClientID:          clientID,
		Symbol:            symbol,
		Side:              side,
		OrderType:         orderType,
		Price:             req.Price,
		Quantity:          quantity,
		RemainingQuantity: quantity,
		Leverage:          leverage,
		LockedMargin:      lockedMargin,
		PostOnly:          req.PostOnly,
		ReduceOnly:        req.ReduceOnly,
		Synthetic:         synthetic,
		Status:            types.OrderStatusPending,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
	if orderType == types.OrderTypeMarket {
		order.Price = 0
	}

	if err := s.db.CreateOrder(order); err != nil {
		releaseReservation()
		return nil, err
	}

	trades, err := s.match(order, market, book)
	if err != nil {
		// Fills already committed stay committed; the failure is surfaced
		// with whatever state the order reached.
		logger.Error().Err(err).Str("order_id", order.OrderID).Msg("matching aborted")
		return nil, err
	}

	s.finalizeRemainder(order, book, logger)

	if err := s.db.SaveOrder(order); err != nil {
		return nil, err
	}
	s.events.Publish(events.TypeOrderUpdate, order)

	logger.Info().
		Str("order_id", order.OrderID).
		Float64("quantity", order.Quantity).
		Float64("filled", order.FilledQuantity).
		Int("trades", len(trades)).
		Str("status", order.Status).
		Msg("order placed")

	return &PlaceOrderResult{Order: order, Trades: trades}, nil
}

func validateQuantity(quantity float64, market *types.Market) error {
	if quantity <= 0 {
		return types.ErrInvalidQuantity
	}
	if quantity < market.LotSize || quantity < market.MinOrderSize {
		return types.ErrInvalidQuantity
	}
	if market.MaxOrderSize > 0 && quantity > market.MaxOrderSize {
		return types.ErrInvalidQuantity
	}
	return nil
}

// reservationPrice estimates the price used to size the up-front margin
// lock. Limit orders reserve at their own limit; market orders reserve at
// the best opposite price, falling back to the mark price.
func (s *Service) reservationPrice(orderType, side string, limitPrice float64, market *types.Market, book *orderbook.Book) (float64, error) {
	if orderType == types.OrderTypeLimit {
		return limitPrice, nil
	}

	if side == types.SideBuy {
		if ask, ok := book.BestAsk(); ok {
			return ask, nil
		}
	} else {
		if bid, ok := book.BestBid(); ok {
			return bid, nil
		}
	}
	return s.markets.MarkPrice(market)
}

// wouldMatch reports whether a limit order at price crosses the opposite
// side of the book.
func (s *Service) wouldMatch(side string, price float64, book *orderbook.Book) bool {
	if side == types.SideBuy {
		ask, ok := book.BestAsk()
		return ok && ask <= price
	}
	bid, ok := book.BestBid()
	return ok && bid >= price
}

// match walks the resting side in price-time priority and fills against it.
// Fills happen at the resting order's price: price improvement always goes
// to the taker.
func (s *Service) match(order *types.Order, market *types.Market, book *orderbook.Book) ([]*types.Trade, error) {
	oppositeSide := types.SideSell
	if order.Side == types.SideSell {
		oppositeSide = types.SideBuy
	}

	resting, err := s.db.GetRestingOrders(order.Symbol, oppositeSide)
	if err != nil {
		return nil, err
	}

	trades := make([]*types.Trade, 0)
	for i := range resting {
		if order.RemainingQuantity <= qtyEpsilon {
			break
		}

		maker := &resting[i]
		if !crosses(order, maker) {
			break
		}

		// Re-check resting reduce-only orders against the live position:
		// the position may have been closed or reduced since they rested,
		// and filling past it would open unbacked exposure.
		if maker.ReduceOnly && !maker.Synthetic {
			capacity, err := s.reduceOnlyCapacity(maker)
			if err != nil {
				return trades, err
			}
			if capacity <= qtyEpsilon {
				if err := s.cancelStaleReduceOnly(maker, book); err != nil {
					return trades, err
				}
				continue
			}
			if maker.RemainingQuantity > capacity+qtyEpsilon {
				s.shrinkReduceOnly(maker, capacity, book)
			}
		}

		trade, err := s.fill(order, maker, market, book)
		if err != nil {
			return trades, err
		}
		trades = append(trades, trade)
	}
	return trades, nil
}

// crosses reports whether the incoming order's limit allows matching the
// resting order. Market orders cross any price.
func crosses(order *types.Order, maker *types.Order) bool {
	if order.OrderType == types.OrderTypeMarket {
		return true
	}
	if order.Side == types.SideBuy {
		return maker.Price <= order.Price
	}
	return maker.Price >= order.Price
}

// reduceOnlyCapacity returns how much of a resting reduce-only order can
// still execute: the owner's open size in the closing direction, or zero
// when the position is gone or points the same way as the order.
func (s *Service) reduceOnlyCapacity(maker *types.Order) (float64, error) {
	position, err := s.positions.GetOpenPosition(maker.ClientID, maker.Symbol)
	if err != nil {
		return 0, err
	}
	if position == nil || position.Side == types.PositionSideForOrder(maker.Side) {
		return 0, nil
	}
	return position.Size, nil
}

// cancelStaleReduceOnly removes a resting reduce-only order with nothing
// left to close. Reduce-only orders hold no reservation, so there is
// nothing to release.
func (s *Service) cancelStaleReduceOnly(maker *types.Order, book *orderbook.Book) error {
	book.RemoveQty(maker.Side, maker.Price, maker.RemainingQuantity, true)
	maker.Status = types.OrderStatusCancelled
	maker.UpdatedAt = time.Now()
	if err := s.db.SaveOrder(maker); err != nil {
		return err
	}
	s.events.Publish(events.TypeOrderUpdate, maker)

	log.Info().
		Str("service", "engine").
		Str("order_id", maker.OrderID).
		Str("client_id", maker.ClientID).
		Msg("cancelled reduce-only order with no open position")
	return nil
}

// shrinkReduceOnly trims a resting reduce-only order down to the size it
// can still close. The order row is persisted by the fill that follows.
func (s *Service) shrinkReduceOnly(maker *types.Order, capacity float64, book *orderbook.Book) {
	excess := maker.RemainingQuantity - capacity
	book.RemoveQty(maker.Side, maker.Price, excess, false)
	maker.Quantity -= excess
	maker.RemainingQuantity = capacity
	maker.UpdatedAt = time.Now()
}

// fill executes one match between the incoming order and a resting maker.
func (s *Service) fill(order, maker *types.Order, market *types.Market, book *orderbook.Book) (*types.Trade, error) {
	fillQty := math.Min(order.RemainingQuantity, maker.RemainingQuantity)
	tradePrice := maker.Price

	applyFill(maker, fillQty, tradePrice)
	applyFill(order, fillQty, tradePrice)

	// Reservation consumption is arithmetic on the order rows, committed
	// together with the fill below. The ledger is only touched once the
	// fill is durable, so a rolled-back fill leaves no balance movement.
	makerMarginDelta := consumeReservation(maker, fillQty, tradePrice)
	takerMarginDelta := consumeReservation(order, fillQty, tradePrice)

	trade := &types.Trade{
		TradeID:       "TRD_" + uuid.New().String(),
		Symbol:        order.Symbol,
		MakerOrderID:  maker.OrderID,
		MakerClientID: maker.ClientID,
		TakerOrderID:  order.OrderID,
		TakerClientID: order.ClientID,
		Side:          order.Side,
		Price:         tradePrice,
		Quantity:      fillQty,
		QuoteQuantity: tradePrice * fillQty,
		CreatedAt:     time.Now(),
	}

	if err := s.db.ExecuteFill(trade, maker, order); err != nil {
		return nil, err
	}

	trade.MakerFee = s.collectFee(maker, tradePrice*fillQty*market.MakerFeeRate)
	trade.TakerFee = s.collectFee(order, tradePrice*fillQty*market.TakerFeeRate)
	if trade.MakerFee > 0 || trade.TakerFee > 0 {
		if err := s.db.SaveTradeFees(trade); err != nil {
			log.Warn().
				Str("service", "engine").
				Str("trade_id", trade.TradeID).
				Err(err).
				Msg("failed to record trade fees")
		}
	}

	s.releaseMakerResidual(maker)

	book.RemoveQty(maker.Side, maker.Price, fillQty, maker.Status == types.OrderStatusFilled)

	// Position updates run synchronously with the fill, inside the market
	// lock, so trade execution and position state cannot interleave.
	if !maker.Synthetic {
		if _, err := s.positions.OnTrade(maker.ClientID, maker.Symbol, maker.Side, fillQty, tradePrice, makerMarginDelta, trade.TradeID); err != nil {
			return nil, fmt.Errorf("maker position update failed: %w", err)
		}
	}
	if !order.Synthetic {
		if _, err := s.positions.OnTrade(order.ClientID, order.Symbol, order.Side, fillQty, tradePrice, takerMarginDelta, trade.TradeID); err != nil {
			return nil, fmt.Errorf("taker position update failed: %w", err)
		}
	}

	s.events.Publish(events.TypeTradeExecuted, trade)
	s.events.Publish(events.TypeOrderUpdate, maker)

	return trade, nil
}

// applyFill updates an order's fill accounting for one execution.
func applyFill(order *types.Order, fillQty, price float64) {
	order.AveragePrice = (order.AveragePrice*order.FilledQuantity + price*fillQty) / (order.FilledQuantity + fillQty)
	order.FilledQuantity += fillQty
	order.RemainingQuantity = order.Quantity - order.FilledQuantity
	order.UpdatedAt = time.Now()

	if order.RemainingQuantity <= qtyEpsilon {
		order.RemainingQuantity = 0
		order.Status = types.OrderStatusFilled
	} else {
		order.Status = types.OrderStatusPartial
	}
}

// collectFee debits a trading fee from the party's free balance. A party
// that cannot pay has the fee waived rather than failing the fill.
func (s *Service) collectFee(order *types.Order, fee float64) float64 {
	if order.Synthetic || fee <= qtyEpsilon {
		return 0
	}
	if err := s.ledger.Debit(order.ClientID, fee, "trading_fee", order.OrderID); err != nil {
		log.Warn().
			Str("service", "engine").
			Str("order_id", order.OrderID).
			Float64("fee", fee).
			Err(err).
			Msg("fee debit failed, waiving fee")
		return 0
	}
	return fee
}

// consumeReservation consumes the reservation slice backing one fill and
// returns the consumed amount. The taker reserved at its limit (or an
// estimate) while the fill runs at the maker's price, so price improvement
// leaves an excess behind; it is released once the order reaches a
// terminal state, in finalizeRemainder.
func consumeReservation(order *types.Order, fillQty, tradePrice float64) float64 {
	if order.Synthetic || order.ReduceOnly {
		return 0
	}
	delta := math.Min(order.LockedMargin, tradePrice*fillQty/order.Leverage)
	order.LockedMargin -= delta
	return delta
}

// releaseMakerResidual returns whatever reservation a fully filled maker
// still holds. The maker locked at its own limit price, so this is
// normally rounding dust; the stored row is refreshed so the ledger and
// the order agree.
func (s *Service) releaseMakerResidual(maker *types.Order) {
	if maker.Synthetic || maker.Status != types.OrderStatusFilled || maker.LockedMargin <= qtyEpsilon {
		return
	}
	if err := s.ledger.Unlock(maker.ClientID, maker.LockedMargin, "margin_release", maker.OrderID); err != nil {
		log.Error().
			Str("service", "engine").
			Str("order_id", maker.OrderID).
			Err(err).
			Msg("failed to release maker residual margin")
		return
	}
	maker.LockedMargin = 0
	if err := s.db.SaveOrder(maker); err != nil {
		log.Error().
			Str("service", "engine").
			Str("order_id", maker.OrderID).
			Err(err).
			Msg("failed to store maker after residual release")
	}
}

// finalizeRemainder rests or discards whatever the match loop left over.
func (s *Service) finalizeRemainder(order *types.Order, book *orderbook.Book, logger zerolog.Logger) {
	switch {
	case order.OrderType == types.OrderTypeLimit && order.RemainingQuantity > qtyEpsilon:
		if order.FilledQuantity > qtyEpsilon {
			order.Status = types.OrderStatusPartial
		} else {
			order.Status = types.OrderStatusOpen
		}
		book.AddLevel(order.Side, order.Price, order.RemainingQuantity)

	case order.OrderType == types.OrderTypeMarket && order.RemainingQuantity > qtyEpsilon:
		// Modeled simplification carried over from the original venue: the
		// unmatched remainder of a market order is discarded, and the order
		// records only the executed portion. Intentionally non-standard.
		if order.FilledQuantity > qtyEpsilon {
			order.Quantity = order.FilledQuantity
			order.RemainingQuantity = 0
			order.Status = types.OrderStatusFilled
		} else {
			order.Status = types.OrderStatusCancelled
		}
		s.releaseResidualMargin(order, logger)

	default:
		// Fully filled.
		order.Status = types.OrderStatusFilled
		s.releaseResidualMargin(order, logger)
	}
}

func (s *Service) releaseResidualMargin(order *types.Order, logger zerolog.Logger) {
	if order.Synthetic || order.LockedMargin <= qtyEpsilon {
		return
	}
	if err := s.ledger.Unlock(order.ClientID, order.LockedMargin, "margin_release", order.OrderID); err != nil {
		logger.Error().Err(err).
			Str("order_id", order.OrderID).
			Float64("amount", order.LockedMargin).
			Msg("failed to release residual margin")
		return
	}
	order.LockedMargin = 0
}

// CancelOrder cancels a live order: releases the remaining reservation,
// removes the remaining quantity from the book, and marks it CANCELLED.
// Racing a concurrent match is resolved under the market lock: whichever
// commits first wins, and the loser observes the updated order state.
func (s *Service) CancelOrder(orderID, clientID string) (*types.Order, error) {
	order, err := s.db.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order.ClientID != clientID {
		return nil, types.ErrNotOwner
	}

	lock := s.marketLock(order.Symbol)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock: a match may have committed while we waited.
	order, err = s.db.GetOrder(orderID)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case types.OrderStatusOpen, types.OrderStatusPartial:
	default:
		return nil, types.ErrNotCancellable
	}

	if order.OrderType == types.OrderTypeLimit && order.RemainingQuantity > qtyEpsilon {
		s.books.GetOrCreate(order.Symbol).RemoveQty(order.Side, order.Price, order.RemainingQuantity, true)
	}

	logger := log.With().Str("service", "engine").Str("order_id", order.OrderID).Logger()
	s.releaseResidualMargin(order, logger)

	order.Status = types.OrderStatusCancelled
	order.UpdatedAt = time.Now()
	if err := s.db.SaveOrder(order); err != nil {
		return nil, err
	}

	s.events.Publish(events.TypeOrderUpdate, order)
	logger.Info().Str("symbol", order.Symbol).Msg("order cancelled")
	return order, nil
}

// GetOrder returns an order owned by the caller.
func (s *Service) GetOrder(orderID, clientID string) (*types.Order, error) {
	order, err := s.db.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order.ClientID != clientID {
		return nil, types.ErrNotOwner
	}
	return order, nil
}

// OpenOrders returns the caller's live orders.
func (s *Service) OpenOrders(clientID string) ([]types.Order, error) {
	return s.db.GetOpenOrdersByClient(clientID)
}

// BookSnapshot returns the aggregated depth for a market.
func (s *Service) BookSnapshot(symbol string, depth int) (*orderbook.Depth, error) {
	if _, err := s.markets.GetMarket(symbol); err != nil {
		return nil, err
	}
	return s.books.GetOrCreate(strings.ToUpper(symbol)).Snapshot(depth), nil
}

// RecentTrades returns the latest executions for a market.
func (s *Service) RecentTrades(symbol string, limit int) ([]types.Trade, error) {
	if _, err := s.markets.GetMarket(symbol); err != nil {
		return nil, err
	}
	return s.db.GetRecentTrades(strings.ToUpper(symbol), limit)
}

// GinHandlers contains HTTP handlers for trading endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// PlaceOrderHandler handles POST requests to place orders
func (h *GinHandlers) PlaceOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := c.GetString("clientID")
		if clientID == "" {
			response.Unauthorized(c, "Missing client ID")
			return
		}

		var req PlaceOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		result, err := h.service.PlaceOrder(clientID, req)
		response.Handle(c, result, err)
	}
}

// CancelOrderHandler handles DELETE requests to cancel orders
func (h *GinHandlers) CancelOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := c.GetString("clientID")
		if clientID == "" {
			response.Unauthorized(c, "Missing client ID")
			return
		}

		order, err := h.service.CancelOrder(c.Param("order_id"), clientID)
		response.Handle(c, order, err)
	}
}

// GetOrderHandler handles GET requests for a single order
func (h *GinHandlers) GetOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := c.GetString("clientID")
		if clientID == "" {
			response.Unauthorized(c, "Missing client ID")
			return
		}

		order, err := h.service.GetOrder(c.Param("order_id"), clientID)
		response.Handle(c, order, err)
	}
}

// ListOpenOrdersHandler handles GET requests for the caller's live orders
func (h *GinHandlers) ListOpenOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := c.GetString("clientID")
		if clientID == "" {
			response.Unauthorized(c, "Missing client ID")
			return
		}

		orders, err := h.service.OpenOrders(clientID)
		response.Handle(c, orders, err)
	}
}

// BookSnapshotHandler handles GET requests for a market's depth
func (h *GinHandlers) BookSnapshotHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		depth := 20
		if raw := c.Query("depth"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
				depth = parsed
			}
		}

		snapshot, err := h.service.BookSnapshot(c.Param("symbol"), depth)
		response.Handle(c, snapshot, err)
	}
}

// RecentTradesHandler handles GET requests for a market's latest trades
func (h *GinHandlers) RecentTradesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		trades, err := h.service.RecentTrades(c.Param("symbol"), 100)
		response.Handle(c, trades, err)
	}
}
