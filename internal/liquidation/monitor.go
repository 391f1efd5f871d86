package liquidation

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/RubyEDE/ls-demo-be-sub000/internal/markets"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/positions"
	"github.com/RubyEDE/ls-demo-be-sub000/pkg/response"
)

// Monitor scans open positions against the mark price and force-closes any
// that breach maintenance margin.
type Monitor struct {
	db        *Database
	positions *positions.Service
	markets   *markets.Service

	scanInterval time.Duration
	paused       atomic.Bool
	inFlight     atomic.Bool
}

func NewMonitor(
	gormDB *gorm.DB,
	positionService *positions.Service,
	marketService *markets.Service,
	scanInterval time.Duration,
) *Monitor {
	if scanInterval <= 0 {
		scanInterval = 5 * time.Second
	}
	return &Monitor{
		db:           NewDatabase(gormDB),
		positions:    positionService,
		markets:      marketService,
		scanInterval: scanInterval,
	}
}

// Start runs the scan loop until the context is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	logger := log.With().Str("component", "liquidation_monitor").Logger()
	logger.Info().Dur("scan_interval", m.scanInterval).Msg("starting liquidation monitor")

	ticker := time.NewTicker(m.scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down liquidation monitor")
			return
		case <-ticker.C:
			m.Tick(time.Now())
		}
	}
}

// Pause stops scanning without stopping the timer.
func (m *Monitor) Pause() { m.paused.Store(true) }

// Resume re-enables scanning.
func (m *Monitor) Resume() { m.paused.Store(false) }

// Running reports whether the monitor is scanning.
func (m *Monitor) Running() bool { return !m.paused.Load() }

// Tick scans every active market once. Only OPEN positions are considered,
// so a position closed or liquidated by an earlier scan is never processed
// twice. Overlapping invocations no-op on the in-flight guard.
func (m *Monitor) Tick(now time.Time) {
	if m.paused.Load() {
		return
	}
	if !m.inFlight.CompareAndSwap(false, true) {
		return
	}
	defer m.inFlight.Store(false)

	logger := log.With().Str("component", "liquidation_monitor").Logger()

	activeMarkets, err := m.markets.ListActive()
	if err != nil {
		logger.Error().Err(err).Msg("failed to list markets")
		return
	}

	for i := range activeMarkets {
		market := &activeMarkets[i]

		markPrice, err := m.markets.MarkPrice(market)
		if err != nil {
			// No price this round: soft skip, not fatal.
			continue
		}

		openPositions, err := m.positions.OpenByMarket(market.Symbol)
		if err != nil {
			logger.Error().Err(err).Str("symbol", market.Symbol).Msg("failed to load positions")
			continue
		}

		for j := range openPositions {
			position := &openPositions[j]
			if !positions.WouldBeLiquidated(position, markPrice) {
				continue
			}

			realized, err := m.positions.Liquidate(position, markPrice)
			if err != nil {
				logger.Error().Err(err).
					Str("position_id", position.PositionID).
					Msg("failed to liquidate position")
				continue
			}

			record := &Liquidation{
				LiquidationID: "LIQ_" + uuid.New().String(),
				PositionID:    position.PositionID,
				ClientID:      position.ClientID,
				Symbol:        position.Symbol,
				Side:          position.Side,
				Size:          position.Size,
				MarkPrice:     markPrice,
				Notional:      position.Size * markPrice,
				RealizedPnl:   realized,
				CreatedAt:     now,
			}
			if err := m.db.Create(record); err != nil {
				logger.Error().Err(err).
					Str("position_id", position.PositionID).
					Msg("failed to record liquidation")
			}

			logger.Info().
				Str("position_id", position.PositionID).
				Str("client_id", position.ClientID).
				Str("symbol", position.Symbol).
				Float64("mark_price", markPrice).
				Float64("size", position.Size).
				Float64("realized_pnl", realized).
				Msg("position liquidated")
		}
	}
}

// Stats aggregates the liquidation history for one market.
func (m *Monitor) Stats(symbol string) (*Stats, error) {
	market, err := m.markets.GetMarket(symbol)
	if err != nil {
		return nil, err
	}

	count, totalNotional, err := m.db.Aggregate(market.Symbol)
	if err != nil {
		return nil, err
	}
	recent, err := m.db.GetRecent(market.Symbol, 25)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		Symbol:        market.Symbol,
		Count:         count,
		TotalNotional: totalNotional,
		Recent:        recent,
	}
	if len(recent) > 0 {
		stats.LastAt = &recent[0].CreatedAt
	}
	return stats, nil
}

// GinHandlers contains HTTP handlers for the liquidation admin surface
type GinHandlers struct {
	monitor *Monitor
}

func NewGinHandlers(monitor *Monitor) *GinHandlers {
	return &GinHandlers{
		monitor: monitor,
	}
}

// StatsHandler handles GET requests for a market's liquidation statistics
func (h *GinHandlers) StatsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := h.monitor.Stats(c.Param("symbol"))
		response.Handle(c, stats, err)
	}
}

// StartHandler handles POST requests resuming liquidation scans
func (h *GinHandlers) StartHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		h.monitor.Resume()
		response.Success(c, gin.H{"running": true})
	}
}

// StopHandler handles POST requests pausing liquidation scans
func (h *GinHandlers) StopHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		h.monitor.Pause()
		response.Success(c, gin.H{"running": false})
	}
}
