package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/RubyEDE/ls-demo-be-sub000/internal/auth"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/config"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/database"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/engine"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/events"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/funding"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/ledger"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/liquidation"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/markets"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/orderbook"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/positions"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/ws"
	"github.com/RubyEDE/ls-demo-be-sub000/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// logSink mirrors every published event onto the debug log, which keeps the
// event stream observable without a connected WebSocket client.
type logSink struct{}

func (logSink) Deliver(event events.Event) {
	zlog.Debug().
		Str("event_type", event.Type).
		Interface("payload", event.Payload).
		Msg("event published")
}

// main initializes and runs the exchange API server with graceful shutdown
// support. It wires the ledger, matching engine, position manager, funding
// engine and liquidation monitor onto a shared database and event dispatcher.
func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil && os.Getenv("DEBUG") != "true" {
		zerolog.SetGlobalLevel(level)
	}

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Background workers share one cancellation scope
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	// Event fan-out: WebSocket feed plus the debug log
	dispatcher := events.NewDispatcher()
	hub := ws.NewHub()
	dispatcher.Register(hub)
	dispatcher.Register(logSink{})
	go hub.Run(workerCtx)

	// Initialize services and handlers
	authService := auth.NewService(cfg.Auth.JWTSecret)
	authHandlers := auth.NewGinHandlers(authService)
	// Register demo credentials
	authService.RegisterAPICredentials(cfg.Auth.APIKey, cfg.Auth.APISecret)

	books := orderbook.NewManager()

	ledgerService := ledger.NewService(db, dispatcher)
	ledgerHandlers := ledger.NewGinHandlers(ledgerService)

	marketService := markets.NewService(db, books)
	marketHandlers := markets.NewGinHandlers(marketService)

	positionService := positions.NewService(db, ledgerService, marketService, dispatcher)
	positionHandlers := positions.NewGinHandlers(positionService)

	engineService := engine.NewService(db, ledgerService, positionService, marketService, books, dispatcher)
	engineHandlers := engine.NewGinHandlers(engineService)

	// Restore in-memory books from the resting orders on disk
	if err := engineService.RebuildBooks(); err != nil {
		zlog.Fatal().Err(err).Msg("Failed to rebuild order books")
	}

	fundingEngine := funding.NewEngine(db, positionService, marketService, dispatcher, cfg.FundingCheckInterval())
	fundingHandlers := funding.NewGinHandlers(fundingEngine)
	go fundingEngine.Start(workerCtx)

	liquidationMonitor := liquidation.NewMonitor(db, positionService, marketService, cfg.LiquidationScanInterval())
	liquidationHandlers := liquidation.NewGinHandlers(liquidationMonitor)
	go liquidationMonitor.Start(workerCtx)

	// Initialize router
	router := gin.Default()

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, cfg, routeHandlers{
		auth:        authHandlers,
		ledger:      ledgerHandlers,
		markets:     marketHandlers,
		positions:   positionHandlers,
		engine:      engineHandlers,
		funding:     fundingHandlers,
		liquidation: liquidationHandlers,
		hub:         hub,
	})

	// Create server
	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.Server.Port),
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Stop the background workers before refusing new requests
	workerCancel()

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

type routeHandlers struct {
	auth        *auth.GinHandlers
	ledger      *ledger.GinHandlers
	markets     *markets.GinHandlers
	positions   *positions.GinHandlers
	engine      *engine.GinHandlers
	funding     *funding.GinHandlers
	liquidation *liquidation.GinHandlers
	hub         *ws.Hub
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoints for authentication
// - Market data routes: Public, read-only
// - Trading routes: Protected by JWT authentication
// - Internal routes: Protected by internal network authentication
func setupRoutes(router *gin.Engine, cfg *config.Config, h routeHandlers) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", h.auth.GenerateTokenHandler())
		}

		// Public market data routes
		marketGroup := v1.Group("/markets")
		{
			marketGroup.GET("", h.markets.ListMarketsHandler())
			marketGroup.GET("/:symbol", h.markets.GetMarketHandler())
			marketGroup.GET("/:symbol/book", h.engine.BookSnapshotHandler())
			marketGroup.GET("/:symbol/trades", h.engine.RecentTradesHandler())
		}

		// Order routes
		orders := v1.Group("/orders")
		orders.Use(middleware.JWTAuth(cfg.Auth.JWTSecret))
		{
			orders.POST("", h.engine.PlaceOrderHandler())
			orders.GET("", h.engine.ListOpenOrdersHandler())
			orders.GET("/:order_id", h.engine.GetOrderHandler())
			orders.DELETE("/:order_id", h.engine.CancelOrderHandler())
		}

		// Account routes
		account := v1.Group("/account")
		account.Use(middleware.JWTAuth(cfg.Auth.JWTSecret))
		{
			account.GET("/balance", h.ledger.GetBalanceHandler())
			account.GET("/balance/history", h.ledger.GetHistoryHandler())
			account.POST("/faucet", h.ledger.FaucetHandler())
			account.GET("/positions", h.positions.ListPositionsHandler())
		}

		// Public event feed
		v1.GET("/ws", h.hub.Handler())

		// Internal routes (should be protected by internal network)
		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth(cfg.Auth.JWTSecret))
		{
			internal.POST("/markets/:symbol/index-price", h.markets.SetIndexPriceHandler())
			internal.POST("/funding/:symbol/trigger", h.funding.TriggerHandler())
			internal.GET("/funding/:symbol/stats", h.funding.StatsHandler())
			internal.POST("/funding/start", h.funding.StartHandler())
			internal.POST("/funding/stop", h.funding.StopHandler())
			internal.GET("/liquidation/:symbol/stats", h.liquidation.StatsHandler())
			internal.POST("/liquidation/start", h.liquidation.StartHandler())
			internal.POST("/liquidation/stop", h.liquidation.StopHandler())
			internal.GET("/ledger/:client_id/replay", h.ledger.ReplayHandler())
		}
	}
}
