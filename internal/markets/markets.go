package markets

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/RubyEDE/ls-demo-be-sub000/internal/orderbook"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/types"
	"github.com/RubyEDE/ls-demo-be-sub000/pkg/response"
)

// Mark price blend weights: order-book mid versus index price, when both
// exist.
const (
	midWeight   = 0.7
	indexWeight = 0.3
)

// Service is the market registry: per-symbol trading configuration plus the
// mark-price blend shared by the funding engine and liquidation monitor.
type Service struct {
	db    *Database
	books *orderbook.Manager
}

func NewService(gormDB *gorm.DB, books *orderbook.Manager) *Service {
	return &Service{
		db:    NewDatabase(gormDB),
		books: books,
	}
}

// GetMarket returns the market config for a symbol.
func (s *Service) GetMarket(symbol string) (*types.Market, error) {
	return s.db.GetMarket(strings.ToUpper(symbol))
}

// GetActiveMarket returns the market only if it is accepting orders.
func (s *Service) GetActiveMarket(symbol string) (*types.Market, error) {
	market, err := s.GetMarket(symbol)
	if err != nil {
		return nil, err
	}
	if !market.Active {
		return nil, types.ErrMarketInactive
	}
	return market, nil
}

// ListActive returns all markets currently accepting orders.
func (s *Service) ListActive() ([]types.Market, error) {
	return s.db.ListActive()
}

// SetIndexPrice is the oracle intake: an external price poller pushes the
// reference price here. The core never fetches prices itself.
func (s *Service) SetIndexPrice(symbol string, price float64) error {
	if price <= 0 {
		return types.ErrInvalidPrice
	}
	symbol = strings.ToUpper(symbol)
	if _, err := s.db.GetMarket(symbol); err != nil {
		return err
	}
	return s.db.UpdateIndexPrice(symbol, price)
}

// UpdateFundingState persists a funding round's outcome on the market row.
func (s *Service) UpdateFundingState(market *types.Market) error {
	return s.db.UpdateFundingState(market.Symbol, market.FundingRate, market.NextFundingTime)
}

// MarkPrice computes the price used for PnL and liquidation: a weighted
// blend of order-book mid and index price when both exist, else whichever
// exists. Returns ErrNoPriceAvailable when neither does; callers treat that
// as a soft skip, not a failure.
func (s *Service) MarkPrice(market *types.Market) (float64, error) {
	mid, haveMid := s.books.GetOrCreate(market.Symbol).Mid()
	haveIndex := market.IndexPrice > 0

	switch {
	case haveMid && haveIndex:
		return midWeight*mid + indexWeight*market.IndexPrice, nil
	case haveMid:
		return mid, nil
	case haveIndex:
		return market.IndexPrice, nil
	default:
		return 0, types.ErrNoPriceAvailable
	}
}

// GinHandlers contains HTTP handlers for market endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// ListMarketsHandler handles GET requests listing active markets
func (h *GinHandlers) ListMarketsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		markets, err := h.service.ListActive()
		response.Handle(c, markets, err)
	}
}

// GetMarketHandler handles GET requests for a single market
func (h *GinHandlers) GetMarketHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		market, err := h.service.GetMarket(c.Param("symbol"))
		response.Handle(c, market, err)
	}
}

// SetIndexPriceHandler handles POST requests from the oracle poller pushing
// a new index price. Internal surface.
func (h *GinHandlers) SetIndexPriceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		symbol := c.Param("symbol")

		var request struct {
			Price float64 `json:"price" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		if err := h.service.SetIndexPrice(symbol, request.Price); err != nil {
			response.Handle(c, nil, err)
			return
		}

		log.Info().
			Str("service", "markets").
			Str("symbol", strings.ToUpper(symbol)).
			Float64("index_price", request.Price).
			Msg("index price updated")

		response.Success(c, gin.H{"symbol": strings.ToUpper(symbol), "index_price": request.Price})
	}
}
