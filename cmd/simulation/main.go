package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/RubyEDE/ls-demo-be-sub000/internal/auth"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/database"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/engine"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/events"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/funding"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/ledger"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/liquidation"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/markets"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/orderbook"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/positions"
	"github.com/RubyEDE/ls-demo-be-sub000/internal/types"
	"github.com/RubyEDE/ls-demo-be-sub000/pkg/middleware"
)

const (
	minOrders     = 20
	maxOrders     = 120
	numWorkers    = 4
	serverAddress = "http://localhost:8080"
	jwtSecret     = "simulation-secret"
	simAPISecret  = "sim-secret"

	// Synthetic market maker settings
	mmQuoteInterval = 250 * time.Millisecond
	mmLevels        = 3
)

var symbols = []string{"BTC-PERP", "ETH-PERP", "SOL-PERP"}

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	// Configure pretty logging
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
	mu         sync.Mutex
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

func (rs *routeStats) addFailure() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.failures++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	// Sort durations for percentile calculations
	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	// Calculate mean
	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))

	// Calculate median
	median = rs.durations[len(rs.durations)/2]

	// Calculate percentiles
	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simulationClient handles HTTP communication with the exchange API on
// behalf of one trading participant.
type simulationClient struct {
	baseURL   string
	apiKey    string
	authToken string
	client    *http.Client
	stats     map[string]*routeStats
}

// newSimulationClient authenticates one participant and prepares
// performance tracking. Stats are shared across workers.
func newSimulationClient(apiKey string, stats map[string]*routeStats) (*simulationClient, error) {
	sc := &simulationClient{
		baseURL: serverAddress,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
		stats:   stats,
	}

	token, err := sc.authenticate()
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	sc.authToken = token

	return sc, nil
}

func newStats() map[string]*routeStats {
	return map[string]*routeStats{
		"auth":      {name: "Authentication"},
		"faucet":    {name: "Faucet"},
		"place":     {name: "Place Order"},
		"cancel":    {name: "Cancel Order"},
		"positions": {name: "List Positions"},
		"book":      {name: "Book Snapshot"},
	}
}

// authenticate performs API authentication and returns a JWT token
func (sc *simulationClient) authenticate() (string, error) {
	start := time.Now()
	defer func() {
		sc.stats["auth"].addDuration(time.Since(start))
	}()

	credentials := map[string]string{
		"api_key":    sc.apiKey,
		"api_secret": simAPISecret,
	}

	body, err := json.Marshal(credentials)
	if err != nil {
		return "", err
	}

	resp, err := sc.client.Post(
		fmt.Sprintf("%s/api/v1/auth/token", sc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("authentication failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			Token string `json:"jwt_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	return result.Data.Token, nil
}

// faucet credits the participant's demo account
func (sc *simulationClient) faucet() error {
	start := time.Now()
	defer func() {
		sc.stats["faucet"].addDuration(time.Since(start))
	}()

	respBody, status, err := sc.do("POST", "/api/v1/account/faucet", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return fmt.Errorf("faucet failed with status %d: %s", status, string(respBody))
	}
	return nil
}

// placeOrder submits a new order and returns the resulting order state
func (sc *simulationClient) placeOrder(req engine.PlaceOrderRequest) (*types.Order, []types.Trade, error) {
	start := time.Now()
	defer func() {
		sc.stats["place"].addDuration(time.Since(start))
	}()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, nil, err
	}

	respBody, status, err := sc.do("POST", "/api/v1/orders", body)
	if err != nil {
		return nil, nil, err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		sc.stats["place"].addFailure()
		return nil, nil, fmt.Errorf("place order failed with status %d: %s", status, string(respBody))
	}
	log.Debug().Str("response", string(respBody)).Msg("Place order response")

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			Order  types.Order   `json:"order"`
			Trades []types.Trade `json:"trades"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}

	if result.Data.Order.OrderID == "" {
		return nil, nil, fmt.Errorf("no order ID in response: %s", string(respBody))
	}

	return &result.Data.Order, result.Data.Trades, nil
}

// cancelOrder cancels a resting order
func (sc *simulationClient) cancelOrder(orderID string) error {
	start := time.Now()
	defer func() {
		sc.stats["cancel"].addDuration(time.Since(start))
	}()

	respBody, status, err := sc.do("DELETE", "/api/v1/orders/"+orderID, nil)
	if err != nil {
		return err
	}
	// Conflict means the order filled before the cancel landed, which is a
	// normal race in a busy market.
	if status == http.StatusConflict {
		return nil
	}
	if status != http.StatusOK {
		sc.stats["cancel"].addFailure()
		return fmt.Errorf("cancel order failed with status %d: %s", status, string(respBody))
	}
	return nil
}

// listPositions retrieves the participant's open positions
func (sc *simulationClient) listPositions() ([]types.Position, error) {
	start := time.Now()
	defer func() {
		sc.stats["positions"].addDuration(time.Since(start))
	}()

	respBody, status, err := sc.do("GET", "/api/v1/account/positions", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("list positions failed with status %d: %s", status, string(respBody))
	}

	var result struct {
		Success bool             `json:"success"`
		Data    []types.Position `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	return result.Data, nil
}

// bookSnapshot fetches the current depth for a market
func (sc *simulationClient) bookSnapshot(symbol string) (*orderbook.Depth, error) {
	start := time.Now()
	defer func() {
		sc.stats["book"].addDuration(time.Since(start))
	}()

	respBody, status, err := sc.do("GET", "/api/v1/markets/"+symbol+"/book", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("book snapshot failed with status %d: %s", status, string(respBody))
	}

	var result struct {
		Success bool           `json:"success"`
		Data    orderbook.Depth `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	return &result.Data, nil
}

func (sc *simulationClient) do(method, path string, body []byte) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewBuffer(body)
	}

	req, err := http.NewRequest(method, sc.baseURL+path, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+sc.authToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := sc.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	return respBody, resp.StatusCode, nil
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func printPerformanceStats(stats map[string]*routeStats) {
	fmt.Println("\nAPI Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	for _, rs := range stats {
		min, max, mean, median, p95, p99 := rs.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			rs.name,
			rs.totalCalls,
			rs.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond),
			p95.Round(time.Millisecond),
			p99.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 100))
}

// simStats aggregates the outcome of the whole run
type simStats struct {
	mu            sync.Mutex
	TotalOrders   int
	FilledOrders  int
	RestingOrders int
	Cancelled     int
	Rejected      int
	TradeCount    int
	TradedValue   float64
	Symbols       map[string]int
	Sides         map[string]int
	StartTime     time.Time
}

// main runs the exchange simulation: it starts a local API server, floods it
// with synthetic maker liquidity, and has a pool of takers trade against it.
func main() {
	services, err := startServer()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}

	// Wait for server to start
	time.Sleep(2 * time.Second)

	// Synthetic market maker keeps both sides of every book quoted
	mmCtx, mmCancel := context.WithCancel(context.Background())
	defer mmCancel()
	go runMarketMaker(mmCtx, services.engine, services.markets)

	// Let the maker lay down some liquidity before takers arrive
	time.Sleep(1 * time.Second)

	stats := &simStats{
		StartTime: time.Now(),
		Symbols:   make(map[string]int),
		Sides:     make(map[string]int),
	}
	perf := newStats()

	targetOrders := rand.Intn(maxOrders-minOrders) + minOrders
	log.Info().Int("target_orders", targetOrders).Msg("Starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			runTrader(workerID, targetOrders/numWorkers, perf, stats)
		}(i)
	}
	wg.Wait()

	// Let funding and liquidation scans observe the final state
	time.Sleep(1 * time.Second)
	mmCancel()

	printSummary(stats, perf)
}

// runTrader drives one participant: faucet, then a random mix of limit and
// market orders with occasional cancels.
func runTrader(workerID, numOrders int, perf map[string]*routeStats, stats *simStats) {
	apiKey := fmt.Sprintf("SIM_CLIENT_%d", workerID)
	client, err := newSimulationClient(apiKey, perf)
	if err != nil {
		log.Error().Err(err).Int("worker_id", workerID).Msg("Failed to initialize client")
		return
	}

	if err := client.faucet(); err != nil {
		log.Error().Err(err).Int("worker_id", workerID).Msg("Faucet failed")
		return
	}

	var restingOrders []string

	for i := 0; i < numOrders; i++ {
		symbol := symbols[rand.Intn(len(symbols))]

		depth, err := client.bookSnapshot(symbol)
		if err != nil {
			log.Error().Err(err).Str("symbol", symbol).Msg("Failed to fetch book")
			continue
		}

		req := randomOrder(symbol, depth)

		order, trades, err := client.placeOrder(req)

		stats.mu.Lock()
		stats.TotalOrders++
		stats.Symbols[symbol]++
		stats.Sides[req.Side]++
		if err != nil {
			stats.Rejected++
		} else {
			stats.TradeCount += len(trades)
			for _, t := range trades {
				stats.TradedValue += t.QuoteQuantity
			}
			switch order.Status {
			case types.OrderStatusFilled:
				stats.FilledOrders++
			case types.OrderStatusOpen, types.OrderStatusPartial:
				stats.RestingOrders++
			}
		}
		stats.mu.Unlock()

		if err != nil {
			log.Warn().Err(err).
				Int("worker_id", workerID).
				Str("symbol", symbol).
				Msg("Order rejected")
			continue
		}

		log.Info().
			Int("worker_id", workerID).
			Str("order_id", order.OrderID).
			Str("symbol", symbol).
			Str("side", order.Side).
			Str("status", order.Status).
			Float64("filled", order.FilledQuantity).
			Int("trades", len(trades)).
			Msg("Order placed")

		if order.Status == types.OrderStatusOpen || order.Status == types.OrderStatusPartial {
			restingOrders = append(restingOrders, order.OrderID)
		}

		// Occasionally pull a stale resting order
		if len(restingOrders) > 3 && rand.Float64() < 0.3 {
			victim := restingOrders[0]
			restingOrders = restingOrders[1:]
			if err := client.cancelOrder(victim); err != nil {
				log.Warn().Err(err).Str("order_id", victim).Msg("Cancel failed")
			} else {
				stats.mu.Lock()
				stats.Cancelled++
				stats.mu.Unlock()
			}
		}

		// Random sleep between orders
		time.Sleep(time.Duration(rand.Intn(200)) * time.Millisecond)
	}

	positions, err := client.listPositions()
	if err != nil {
		log.Error().Err(err).Int("worker_id", workerID).Msg("Failed to list positions")
		return
	}
	for _, p := range positions {
		log.Info().
			Int("worker_id", workerID).
			Str("symbol", p.Symbol).
			Str("side", p.Side).
			Float64("size", p.Size).
			Float64("entry_price", p.EntryPrice).
			Float64("unrealized_pnl", p.UnrealizedPnl).
			Msg("Final position")
	}
}

// randomOrder builds a plausible order near the current book. Limit prices
// straddle the mid so some rest and some cross.
func randomOrder(symbol string, depth *orderbook.Depth) engine.PlaceOrderRequest {
	side := types.SideBuy
	if rand.Float64() < 0.5 {
		side = types.SideSell
	}

	mid := referencePrice(symbol, depth)

	req := engine.PlaceOrderRequest{
		Symbol:    symbol,
		Side:      side,
		OrderType: types.OrderTypeLimit,
		Quantity:  baseQuantity(symbol) * float64(rand.Intn(5)+1),
		Leverage:  float64(rand.Intn(5) + 1),
	}

	if rand.Float64() < 0.25 {
		req.OrderType = types.OrderTypeMarket
		return req
	}

	// Skew within +/-0.5% of the reference price
	skew := (rand.Float64() - 0.5) * 0.01
	req.Price = roundPrice(symbol, mid*(1+skew))
	return req
}

func referencePrice(symbol string, depth *orderbook.Depth) float64 {
	if depth != nil && len(depth.Bids) > 0 && len(depth.Asks) > 0 {
		return (depth.Bids[0].Price + depth.Asks[0].Price) / 2
	}
	switch symbol {
	case "BTC-PERP":
		return 50000
	case "ETH-PERP":
		return 3000
	default:
		return 150
	}
}

func baseQuantity(symbol string) float64 {
	switch symbol {
	case "BTC-PERP":
		return 0.001
	case "ETH-PERP":
		return 0.01
	default:
		return 0.1
	}
}

func roundPrice(symbol string, price float64) float64 {
	tick := 0.001
	switch symbol {
	case "BTC-PERP":
		tick = 0.5
	case "ETH-PERP":
		tick = 0.05
	}
	return math.Round(price/tick) * tick
}

// runMarketMaker continuously quotes both sides of every market with
// synthetic liquidity placed directly through the engine. Synthetic orders
// carry no client account, so they cannot distort any participant's ledger.
func runMarketMaker(ctx context.Context, engineService *engine.Service, marketService *markets.Service) {
	ticker := time.NewTicker(mmQuoteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			activeMarkets, err := marketService.ListActive()
			if err != nil {
				log.Error().Err(err).Msg("market maker failed to list markets")
				continue
			}

			for _, market := range activeMarkets {
				quoteMarket(engineService, &market)
			}
		}
	}
}

func quoteMarket(engineService *engine.Service, market *types.Market) {
	mid := market.IndexPrice
	if mid <= 0 {
		return
	}

	for level := 1; level <= mmLevels; level++ {
		spread := float64(level) * 0.0005
		qty := market.MinOrderSize * float64(rand.Intn(10)+5)

		bid := engine.PlaceOrderRequest{
			Symbol:    market.Symbol,
			Side:      types.SideBuy,
			OrderType: types.OrderTypeLimit,
			Price:     math.Round(mid*(1-spread)/market.TickSize) * market.TickSize,
			Quantity:  qty,
		}
		ask := engine.PlaceOrderRequest{
			Symbol:    market.Symbol,
			Side:      types.SideSell,
			OrderType: types.OrderTypeLimit,
			Price:     math.Round(mid*(1+spread)/market.TickSize) * market.TickSize,
			Quantity:  qty,
		}

		// Empty client ID marks the orders as synthetic liquidity
		if _, err := engineService.PlaceOrder("", bid); err != nil {
			log.Debug().Err(err).Str("symbol", market.Symbol).Msg("synthetic bid rejected")
		}
		if _, err := engineService.PlaceOrder("", ask); err != nil {
			log.Debug().Err(err).Str("symbol", market.Symbol).Msg("synthetic ask rejected")
		}
	}
}

func printSummary(stats *simStats, perf map[string]*routeStats) {
	duration := time.Since(stats.StartTime)
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("EXCHANGE SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Printf(`
Order Statistics
----------------
Total Orders:   %d
Filled:         %d
Resting:        %d
Cancelled:      %d
Rejected:       %d
Trades:         %d
Traded Value:   $%.2f
Duration:       %v

Symbol Distribution
-------------------
`, stats.TotalOrders, stats.FilledOrders, stats.RestingOrders, stats.Cancelled,
		stats.Rejected, stats.TradeCount, stats.TradedValue, duration.Round(time.Millisecond))

	maxSymbolCount := 0
	for _, count := range stats.Symbols {
		if count > maxSymbolCount {
			maxSymbolCount = count
		}
	}
	for symbol, count := range stats.Symbols {
		barLength := 0
		if maxSymbolCount > 0 {
			barLength = int(float64(count) / float64(maxSymbolCount) * 20)
		}
		fmt.Printf("%-10s: %s (%d)\n", symbol, strings.Repeat("#", barLength), count)
	}

	fmt.Println("\nSide Distribution")
	fmt.Println("-----------------")
	for side, count := range stats.Sides {
		barLength := 0
		if stats.TotalOrders > 0 {
			barLength = int(float64(count) / float64(stats.TotalOrders) * 20)
		}
		fmt.Printf("%-4s: %s (%d)\n", side, strings.Repeat("#", barLength), count)
	}

	fmt.Println("\n" + strings.Repeat("=", 80))

	printPerformanceStats(perf)
}

// simServices exposes the in-process handles the simulation needs alongside
// the HTTP surface.
type simServices struct {
	engine  *engine.Service
	markets *markets.Service
}

// startServer initializes and starts the exchange API server in-process.
// Sets up all required services, handlers and routes.
func startServer() (*simServices, error) {
	// Fresh database per run
	dbPath := fmt.Sprintf("simulation_%d.db", time.Now().Unix())
	db, err := database.NewDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	dispatcher := events.NewDispatcher()
	books := orderbook.NewManager()

	authService := auth.NewService(jwtSecret)
	for i := 0; i < numWorkers; i++ {
		authService.RegisterAPICredentials(fmt.Sprintf("SIM_CLIENT_%d", i), simAPISecret)
	}

	ledgerService := ledger.NewService(db, dispatcher)
	marketService := markets.NewService(db, books)
	positionService := positions.NewService(db, ledgerService, marketService, dispatcher)
	engineService := engine.NewService(db, ledgerService, positionService, marketService, books, dispatcher)

	if err := engineService.RebuildBooks(); err != nil {
		return nil, fmt.Errorf("failed to rebuild books: %w", err)
	}

	// Background engines run on short intervals so the run exercises them
	workerCtx := context.Background()
	fundingEngine := funding.NewEngine(db, positionService, marketService, dispatcher, 5*time.Second)
	go fundingEngine.Start(workerCtx)
	liquidationMonitor := liquidation.NewMonitor(db, positionService, marketService, 2*time.Second)
	go liquidationMonitor.Start(workerCtx)

	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()

	authHandlers := auth.NewGinHandlers(authService)
	ledgerHandlers := ledger.NewGinHandlers(ledgerService)
	marketHandlers := markets.NewGinHandlers(marketService)
	positionHandlers := positions.NewGinHandlers(positionService)
	engineHandlers := engine.NewGinHandlers(engineService)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/auth/token", authHandlers.GenerateTokenHandler())

		v1.GET("/markets", marketHandlers.ListMarketsHandler())
		v1.GET("/markets/:symbol", marketHandlers.GetMarketHandler())
		v1.GET("/markets/:symbol/book", engineHandlers.BookSnapshotHandler())
		v1.GET("/markets/:symbol/trades", engineHandlers.RecentTradesHandler())

		orders := v1.Group("/orders")
		orders.Use(middleware.JWTAuth(jwtSecret))
		{
			orders.POST("", engineHandlers.PlaceOrderHandler())
			orders.GET("/:order_id", engineHandlers.GetOrderHandler())
			orders.DELETE("/:order_id", engineHandlers.CancelOrderHandler())
		}

		account := v1.Group("/account")
		account.Use(middleware.JWTAuth(jwtSecret))
		{
			account.GET("/balance", ledgerHandlers.GetBalanceHandler())
			account.POST("/faucet", ledgerHandlers.FaucetHandler())
			account.GET("/positions", positionHandlers.ListPositionsHandler())
		}
	}

	go func() {
		if err := router.Run(":8080"); err != nil {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	return &simServices{engine: engineService, markets: marketService}, nil
}
