package funding

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/RubyEDE/ls-demo-be-sub000/internal/events"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/markets"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/positions"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/types"
	"github.com/RubyEDE/ls-demo-be-sub000/pkg/response"
)

// Funding rate parameters: the premium over index is dampened and the
// resulting rate clamped symmetrically.
const (
	rateDampener = 0.1
	rateCap      = 0.01
)

// Engine periodically computes a funding rate from mark/index divergence
// and transfers payments between longs and shorts.
type Engine struct {
	db        *Database
	positions *positions.Service
	markets   *markets.Service
	events    *events.Dispatcher

	checkInterval time.Duration
	paused        atomic.Bool
	inFlight      atomic.Bool // guards against overlapping rounds
}

func NewEngine(
	gormDB *gorm.DB,
	positionService *positions.Service,
	marketService *markets.Service,
	dispatcher *events.Dispatcher,
	checkInterval time.Duration,
) *Engine {
	if checkInterval <= 0 {
		checkInterval = time.Minute
	}
	return &Engine{
		db:            NewDatabase(gormDB),
		positions:     positionService,
		markets:       marketService,
		events:        dispatcher,
		checkInterval: checkInterval,
	}
}

// Start runs the settlement loop until the context is cancelled. The timer
// runs independently of the request path; each tick only touches markets
// whose funding time has arrived.
func (e *Engine) Start(ctx context.Context) {
	logger := log.With().Str("component", "funding_engine").Logger()
	logger.Info().Dur("check_interval", e.checkInterval).Msg("starting funding engine")

	ticker := time.NewTicker(e.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down funding engine")
			return
		case <-ticker.C:
			e.Tick(time.Now())
		}
	}
}

// Pause stops settlement rounds without stopping the timer.
func (e *Engine) Pause() { e.paused.Store(true) }

// Resume re-enables settlement rounds.
func (e *Engine) Resume() { e.paused.Store(false) }

// Running reports whether the engine is settling.
func (e *Engine) Running() bool { return !e.paused.Load() }

// Tick settles every active market whose funding time has arrived. Safe
// against concurrent invocation: a round already in flight makes this a
// no-op.
func (e *Engine) Tick(now time.Time) {
	if e.paused.Load() {
		return
	}
	if !e.inFlight.CompareAndSwap(false, true) {
		return
	}
	defer e.inFlight.Store(false)

	logger := log.With().Str("component", "funding_engine").Logger()

	activeMarkets, err := e.markets.ListActive()
	if err != nil {
		logger.Error().Err(err).Msg("failed to list markets")
		return
	}

	for i := range activeMarkets {
		market := &activeMarkets[i]
		if market.NextFundingTime.After(now) {
			continue
		}
		if err := e.settleMarket(market, now); err != nil {
			// Soft failure: skip this market this round, try again next tick.
			logger.Warn().Err(err).Str("symbol", market.Symbol).Msg("skipping funding round")
		}
	}
}

// TriggerMarket forces an immediate settlement round for one market,
// regardless of its schedule. Admin surface.
func (e *Engine) TriggerMarket(symbol string) error {
	market, err := e.markets.GetActiveMarket(symbol)
	if err != nil {
		return err
	}
	return e.settleMarket(market, time.Now())
}

// settleMarket runs one funding round: compute the rate, pay every open
// position, advance the schedule, record the aggregate.
func (e *Engine) settleMarket(market *types.Market, now time.Time) error {
	logger := log.With().
		Str("component", "funding_engine").
		Str("symbol", market.Symbol).
		Logger()

	// The schedule advances whether or not any positions exist, so a
	// market without a price does not retry every tick forever; a missing
	// price only skips the round.
	markPrice, err := e.markets.MarkPrice(market)
	if err != nil || market.IndexPrice <= 0 {
		e.advanceSchedule(market, now)
		if err == nil {
			err = types.ErrNoPriceAvailable
		}
		return err
	}

	rate := ComputeRate(markPrice, market.IndexPrice)

	openPositions, err := e.positions.OpenByMarket(market.Symbol)
	if err != nil {
		return err
	}

	var totalLongPaid, totalShortPaid float64
	for i := range openPositions {
		position := &openPositions[i]
		payment := PaymentFor(position, markPrice, rate)

		if err := e.positions.ApplyFunding(position, payment, market); err != nil {
			logger.Error().Err(err).
				Str("position_id", position.PositionID).
				Msg("failed to apply funding payment")
			continue
		}

		if position.Side == types.PositionLong {
			totalLongPaid -= payment
		} else {
			totalShortPaid -= payment
		}
	}

	market.FundingRate = rate
	e.advanceSchedule(market, now)

	fundingEvent := &FundingEvent{
		EventID:           "FND_" + uuid.New().String(),
		Symbol:            market.Symbol,
		Rate:              rate,
		MarkPrice:         markPrice,
		IndexPrice:        market.IndexPrice,
		TotalLongPayment:  totalLongPaid,
		TotalShortPayment: totalShortPaid,
		PositionCount:     len(openPositions),
		CreatedAt:         now,
	}
	if err := e.db.CreateEvent(fundingEvent); err != nil {
		return err
	}

	e.events.Publish(events.TypeFundingSettled, fundingEvent)
	logger.Info().
		Float64("rate", rate).
		Float64("mark_price", markPrice).
		Float64("index_price", market.IndexPrice).
		Int("positions", len(openPositions)).
		Msg("funding round settled")
	return nil
}

func (e *Engine) advanceSchedule(market *types.Market, now time.Time) {
	interval := time.Duration(market.FundingIntervalHours) * time.Hour
	if interval <= 0 {
		interval = 8 * time.Hour
	}
	next := market.NextFundingTime
	if next.IsZero() {
		next = now
	}
	for !next.After(now) {
		next = next.Add(interval)
	}
	market.NextFundingTime = next

	if err := e.markets.UpdateFundingState(market); err != nil {
		log.Error().Err(err).
			Str("component", "funding_engine").
			Str("symbol", market.Symbol).
			Msg("failed to persist funding state")
	}
}

// ComputeRate derives the funding rate from the mark premium over index,
// dampened and clamped to the symmetric cap.
func ComputeRate(markPrice, indexPrice float64) float64 {
	premium := (markPrice - indexPrice) / indexPrice
	rate := rateDampener * premium
	return math.Max(-rateCap, math.Min(rateCap, rate))
}

// PaymentFor computes one position's funding payment at the given rate.
// Positive rate means longs pay shorts: a long's payment is negative
// (debit), a short's positive (credit).
func PaymentFor(position *types.Position, markPrice, rate float64) float64 {
	positionValue := position.Size * markPrice
	return -positionValue * rate * types.PositionDirection(position.Side)
}

// Stats summarizes the funding history for one market.
func (e *Engine) Stats(symbol string) (*Stats, error) {
	market, err := e.markets.GetMarket(symbol)
	if err != nil {
		return nil, err
	}

	history, err := e.db.GetRecent(market.Symbol, 25)
	if err != nil {
		return nil, err
	}
	rounds, err := e.db.CountRounds(market.Symbol)
	if err != nil {
		return nil, err
	}

	var totalSettled float64
	for _, event := range history {
		totalSettled += math.Abs(event.TotalLongPayment) + math.Abs(event.TotalShortPayment)
	}

	return &Stats{
		Symbol:        market.Symbol,
		CurrentRate:   market.FundingRate,
		RoundCount:    rounds,
		TotalSettled:  totalSettled,
		RecentHistory: history,
	}, nil
}

// GinHandlers contains HTTP handlers for the funding admin surface
type GinHandlers struct {
	engine *Engine
}

func NewGinHandlers(engine *Engine) *GinHandlers {
	return &GinHandlers{
		engine: engine,
	}
}

// TriggerHandler handles POST requests forcing a funding round for a market
func (h *GinHandlers) TriggerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		symbol := c.Param("symbol")
		if err := h.engine.TriggerMarket(symbol); err != nil {
			if errors.Is(err, types.ErrNoPriceAvailable) {
				response.BadRequest(c, err.Error())
				return
			}
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, gin.H{"symbol": symbol, "triggered": true})
	}
}

// StatsHandler handles GET requests for a market's funding statistics
func (h *GinHandlers) StatsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := h.engine.Stats(c.Param("symbol"))
		response.Handle(c, stats, err)
	}
}

// StartHandler handles POST requests resuming settlement rounds
func (h *GinHandlers) StartHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		h.engine.Resume()
		response.Success(c, gin.H{"running": true})
	}
}

// StopHandler handles POST requests pausing settlement rounds
func (h *GinHandlers) StopHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		h.engine.Pause()
		response.Success(c, gin.H{"running": false})
	}
}
