package main

import (
	"bytes"
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
	"github.com/teawars/teawars-api/internal/auth"
	"github.com/teawars/teawars-api/internal/database"
	"github.com/teawars/teawars-api/internal/finance"
	"github.com/teawars/teawars-api/internal/game"
	"github.com/teawars/teawars-api/internal/market"
	"github.com/teawars/teawars-api/internal/production"
	"github.com/teawars/teawars-api/internal/round"
	"github.com/teawars/teawars-api/internal/types"
)

const (
	numPlayers    = 4
	serverAddress = "http://localhost:8080"
	jwtSecret     = "simulation-secret-key"
)

var (
	nicknames = []string{"Boba Baron", "Pearl Jam", "Oolong Gone", "Chai Roller", "Matcha Point", "Steep Inc"}
	materials = []string{"tea", "milk", "fruit", "ingredient"}
)

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
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
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

// simPlayer is one simulated shop owner's session state
type simPlayer struct {
	playerID string
	nickname string
	token    string
	products []types.PlayerProduct
}

// simulationClient handles HTTP communication with the game API
type simulationClient struct {
	baseURL string
	client  *http.Client
	stats   map[string]*routeStats
	mu      sync.Mutex
}

// newSimulationClient creates and initializes a new simulation client
func newSimulationClient() *simulationClient {
	return &simulationClient{
		baseURL: serverAddress,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		stats: map[string]*routeStats{
			"create":    {name: "Create Game"},
			"join":      {name: "Join Game"},
			"materials": {name: "Buy Materials"},
			"ad":        {name: "Ad Campaign"},
			"plan":      {name: "Submit Plan"},
			"advance":   {name: "Advance Round"},
			"finance":   {name: "Finance Record"},
			"summary":   {name: "Profit Summary"},
		},
	}
}

// doJSON executes one request against the API, records its latency under
// the given stats key, and decodes the envelope's data field into out.
func (sc *simulationClient) doJSON(statsKey, method, path, token string, payload, out interface{}) error {
	start := time.Now()
	defer func() {
		sc.mu.Lock()
		sc.stats[statsKey].addDuration(time.Since(start))
		sc.mu.Unlock()
	}()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(raw)
	}

	req, err := http.NewRequest(method, sc.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	}

	resp, err := sc.client.Do(req)
	if err != nil {
		sc.mu.Lock()
		sc.stats[statsKey].failures++
		sc.mu.Unlock()
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("path", path).Str("response", string(respBody)).Msg("API response")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		sc.mu.Lock()
		sc.stats[statsKey].failures++
		sc.mu.Unlock()
		return fmt.Errorf("%s %s failed with status %d: %s", method, path, resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}

	return json.Unmarshal(envelope.Data, out)
}

// createGame creates a fresh game and returns its public ID
func (sc *simulationClient) createGame(name string) (string, error) {
	var created types.Game
	err := sc.doJSON("create", "POST", "/api/v1/games", "", map[string]string{"name": name}, &created)
	if err != nil {
		return "", err
	}
	if created.GameID == "" {
		return "", fmt.Errorf("no game ID in response")
	}
	return created.GameID, nil
}

// joinGame registers one player and captures their session token and products
func (sc *simulationClient) joinGame(gameID, nickname string) (*simPlayer, error) {
	var joined struct {
		Player   *types.Player         `json:"player"`
		Products []types.PlayerProduct `json:"products"`
		Token    string                `json:"session_token"`
	}
	err := sc.doJSON("join", "POST", fmt.Sprintf("/api/v1/games/%s/join", gameID), "", map[string]string{"nickname": nickname}, &joined)
	if err != nil {
		return nil, err
	}
	if joined.Player == nil || joined.Token == "" {
		return nil, fmt.Errorf("incomplete join response for %s", nickname)
	}

	return &simPlayer{
		playerID: joined.Player.PlayerID,
		nickname: nickname,
		token:    joined.Token,
		products: joined.Products,
	}, nil
}

// buyMaterials purchases a random basket of raw materials for the round
func (sc *simulationClient) buyMaterials(p *simPlayer) error {
	basket := make(map[string]int)
	for _, m := range materials {
		if rand.Intn(3) > 0 {
			basket[m] = rand.Intn(80) + 10
		}
	}
	if len(basket) == 0 {
		basket["tea"] = 20
	}

	var result market.PurchaseResult
	return sc.doJSON("materials", "POST",
		fmt.Sprintf("/api/v1/market/players/%s/materials", p.playerID),
		p.token, map[string]interface{}{"materials": basket}, &result)
}

// runAdCampaign buys one round of advertising for a random unlocked product
func (sc *simulationClient) runAdCampaign(p *simPlayer) error {
	unlocked := unlockedProducts(p)
	if len(unlocked) == 0 {
		return nil
	}
	target := unlocked[rand.Intn(len(unlocked))]

	return sc.doJSON("ad", "POST",
		fmt.Sprintf("/api/v1/market/players/%s/advertisement", p.playerID),
		p.token, map[string]string{"product_id": target.ProductID}, nil)
}

// submitPlan submits a production plan covering each unlocked product
func (sc *simulationClient) submitPlan(p *simPlayer) error {
	unlocked := unlockedProducts(p)
	if len(unlocked) == 0 {
		return fmt.Errorf("player %s has no unlocked products", p.playerID)
	}

	items := make([]production.PlanItem, 0, len(unlocked))
	for _, prod := range unlocked {
		items = append(items, production.PlanItem{
			ProductID: prod.ProductID,
			Quantity:  rand.Intn(20) + 5,
			Price:     float64(rand.Intn(8) + 8),
		})
	}

	var records []types.ProductionRecord
	return sc.doJSON("plan", "POST",
		fmt.Sprintf("/api/v1/production/%s/plan", p.playerID),
		p.token, map[string]interface{}{"items": items}, &records)
}

// advanceRound settles the current round and moves the game forward
func (sc *simulationClient) advanceRound(gameID, token string) (*types.AdvanceRoundResult, error) {
	var result types.AdvanceRoundResult
	err := sc.doJSON("advance", "POST",
		fmt.Sprintf("/api/v1/rounds/%s/advance", gameID), token, nil, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// generateFinanceRecord builds the player's ledger entry for a settled round
func (sc *simulationClient) generateFinanceRecord(p *simPlayer, roundNumber int) (*finance.FinanceRecord, error) {
	var record finance.FinanceRecord
	err := sc.doJSON("finance", "POST",
		fmt.Sprintf("/api/v1/finance/players/%s/records/%d", p.playerID, roundNumber),
		p.token, nil, &record)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// getProfitSummary fetches the game leaderboard
func (sc *simulationClient) getProfitSummary(gameID, token string) (*finance.ProfitSummary, error) {
	var summary finance.ProfitSummary
	err := sc.doJSON("summary", "GET",
		fmt.Sprintf("/api/v1/finance/games/%s/summary", gameID), token, nil, &summary)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

func unlockedProducts(p *simPlayer) []types.PlayerProduct {
	var unlocked []types.PlayerProduct
	for _, prod := range p.products {
		if prod.IsUnlocked {
			unlocked = append(unlocked, prod)
		}
	}
	return unlocked
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\n📊 API Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	for _, stats := range sc.stats {
		min, max, mean, median, p95, p99 := stats.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			stats.name,
			stats.totalCalls,
			stats.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond),
			p95.Round(time.Millisecond),
			p99.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 100))
}

// main runs a full season of the game
// It starts a local API server, joins a table of players, and plays every
// round end to end: buy materials, plan production, advance, settle ledgers
func main() {
	// Start the server in a goroutine
	go func() {
		if err := startServer(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for server to start
	time.Sleep(2 * time.Second)

	simClient := newSimulationClient()

	// Create the game
	gameID, err := simClient.createGame(fmt.Sprintf("Simulated Season %d", rand.Intn(1000)))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create game")
	}
	log.Info().Str("game_id", gameID).Msg("Game created")

	// Join all players concurrently
	playersChan := make(chan *simPlayer, numPlayers)
	var wg sync.WaitGroup
	for i := 0; i < numPlayers; i++ {
		wg.Add(1)
		go func(nickname string) {
			defer wg.Done()
			player, err := simClient.joinGame(gameID, nickname)
			if err != nil {
				log.Error().Err(err).Str("nickname", nickname).Msg("Failed to join game")
				return
			}
			playersChan <- player
			log.Info().Str("player_id", player.playerID).Str("nickname", nickname).Msg("Player joined")
		}(nicknames[i%len(nicknames)])
	}
	wg.Wait()
	close(playersChan)

	var players []*simPlayer
	for p := range playersChan {
		players = append(players, p)
	}
	if len(players) == 0 {
		log.Fatal().Msg("No players joined, aborting")
	}

	// Collect statistics during the season
	stats := struct {
		RoundsPlayed     int
		HighTierServed   int
		LowTierServed    int
		TotalRevenue     float64
		FailedPlans      int
		FailedPurchases  int
		FailedFinance    int
		RecordsGenerated int
		StartTime        time.Time
		RevenueByRound   map[int]float64
	}{
		StartTime:      time.Now(),
		RevenueByRound: make(map[int]float64),
	}

	// Play every round
	for {
		// Each player shops and plans
		for _, p := range players {
			if err := simClient.buyMaterials(p); err != nil {
				log.Error().Err(err).Str("player_id", p.playerID).Msg("Failed to buy materials")
				stats.FailedPurchases++
			}

			// Roughly half the players advertise each round
			if rand.Intn(2) == 0 {
				if err := simClient.runAdCampaign(p); err != nil {
					log.Error().Err(err).Str("player_id", p.playerID).Msg("Failed to run ad campaign")
				}
			}

			if err := simClient.submitPlan(p); err != nil {
				log.Error().Err(err).Str("player_id", p.playerID).Msg("Failed to submit plan")
				stats.FailedPlans++
			}
		}

		// Settle the round
		result, err := simClient.advanceRound(gameID, players[0].token)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to advance round")
		}

		stats.RoundsPlayed++
		if result.AllocationResult != nil {
			stats.HighTierServed += result.AllocationResult.HighTierServed
			stats.LowTierServed += result.AllocationResult.LowTierServed
			stats.TotalRevenue += result.AllocationResult.TotalRevenue
			stats.RevenueByRound[result.PreviousRound] = result.AllocationResult.TotalRevenue

			log.Info().
				Int("round", result.PreviousRound).
				Int("high_tier_served", result.AllocationResult.HighTierServed).
				Int("low_tier_served", result.AllocationResult.LowTierServed).
				Float64("revenue", result.AllocationResult.TotalRevenue).
				Bool("finished", result.GameFinished).
				Msg("Round settled")
		}

		// Build each player's ledger for the settled round
		for _, p := range players {
			record, err := simClient.generateFinanceRecord(p, result.PreviousRound)
			if err != nil {
				log.Error().Err(err).Str("player_id", p.playerID).Msg("Failed to generate finance record")
				stats.FailedFinance++
				continue
			}
			stats.RecordsGenerated++
			log.Info().
				Str("player_id", p.playerID).
				Int("round", result.PreviousRound).
				Float64("round_profit", record.RoundProfit).
				Float64("cumulative_profit", record.CumulativeProfit).
				Msg("Ledger entry created")
		}

		if result.GameFinished {
			break
		}
	}

	// Fetch the final leaderboard
	summary, err := simClient.getProfitSummary(gameID, players[0].token)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to fetch profit summary")
	}

	// Print summary
	duration := time.Since(stats.StartTime)
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("🧋 SEASON SUMMARY")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Printf(`
📊 Season Statistics
-------------------
Players:           %d
Rounds Played:     %d
High Tier Served:  %d
Low Tier Served:   %d
Total Revenue:     $%.2f
Ledger Entries:    %d
Failed Plans:      %d
Failed Purchases:  %d
Failed Ledgers:    %d
Duration:          %v

📈 Revenue By Round
------------------
`, len(players), stats.RoundsPlayed, stats.HighTierServed, stats.LowTierServed,
		stats.TotalRevenue, stats.RecordsGenerated,
		stats.FailedPlans, stats.FailedPurchases, stats.FailedFinance,
		duration.Round(time.Millisecond))

	// Print revenue by round with simple ASCII bar chart
	maxRevenue := 0.0
	for _, revenue := range stats.RevenueByRound {
		if revenue > maxRevenue {
			maxRevenue = revenue
		}
	}
	for r := 1; r <= stats.RoundsPlayed; r++ {
		barLength := 0
		if maxRevenue > 0 {
			barLength = int(stats.RevenueByRound[r] / maxRevenue * 20)
		}
		bar := strings.Repeat("█", barLength)
		fmt.Printf("R%-4d: %s ($%.2f)\n", r, bar, stats.RevenueByRound[r])
	}

	fmt.Println("\n🏆 Final Leaderboard")
	fmt.Println("-------------------")
	for _, ranking := range summary.Players {
		fmt.Printf("#%d %-16s profit: $%10.2f cash: $%10.2f\n",
			ranking.Rank, ranking.Nickname, ranking.TotalProfit, ranking.Cash)
	}

	fmt.Println("\n" + strings.Repeat("=", 80))

	log.Info().
		Int("rounds", stats.RoundsPlayed).
		Float64("total_revenue", stats.TotalRevenue).
		Dur("duration", duration).
		Msg("Simulation completed")

	simClient.printPerformanceStats()
}

// startServer initializes and starts the game API server
// Sets up all required services, handlers and routes
func startServer() error {
	// Initialize database
	db, err := database.NewDatabase("simulation.db")
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize services
	authService := auth.NewService(jwtSecret)
	gameService := game.NewService(db, authService)
	productionService := production.NewService(db)
	marketService := market.NewService(db)
	roundService := round.NewService(db)
	financeService := finance.NewService(db)

	// Initialize router
	router := gin.Default()
	gameHandlers := game.NewGinHandlers(gameService)
	productionHandlers := production.NewGinHandlers(productionService)
	marketHandlers := market.NewGinHandlers(marketService)
	roundHandlers := round.NewGinHandlers(roundService)
	financeHandlers := finance.NewGinHandlers(financeService)

	// Setup routes
	setupRoutes(router, gameHandlers, productionHandlers, marketHandlers, roundHandlers, financeHandlers)

	// Start the server
	return router.Run(":8080")
}

// setupRoutes configures all API endpoints and their handlers
// Groups routes by functionality; auth middleware is skipped so the
// simulation exercises the handlers directly
func setupRoutes(
	router *gin.Engine,
	gameHandlers *game.GinHandlers,
	productionHandlers *production.GinHandlers,
	marketHandlers *market.GinHandlers,
	roundHandlers *round.GinHandlers,
	financeHandlers *finance.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		games := v1.Group("/games")
		{
			games.POST("", gameHandlers.CreateGameHandler())
			games.GET("", gameHandlers.ListGamesHandler())
			games.GET("/:game_id", gameHandlers.GetGameStateHandler())
			games.POST("/:game_id/join", gameHandlers.JoinGameHandler())
		}

		players := v1.Group("/players")
		{
			players.GET("/:player_id", gameHandlers.GetPlayerStateHandler())
			players.POST("/:player_id/employees", gameHandlers.HireEmployeeHandler())
			players.DELETE("/:player_id/employees/:employee_id", gameHandlers.FireEmployeeHandler())
		}

		prod := v1.Group("/production")
		{
			prod.POST("/:player_id/plan", productionHandlers.SubmitPlanHandler())
			prod.GET("/:player_id/plan/:round_number", productionHandlers.GetPlanHandler())
			prod.POST("/:player_id/research", productionHandlers.ResearchProductHandler())
		}

		marketGroup := v1.Group("/market")
		{
			marketGroup.GET("/quote", marketHandlers.QuoteMaterialsHandler())
			marketGroup.POST("/players/:player_id/materials", marketHandlers.PurchaseMaterialsHandler())
			marketGroup.POST("/players/:player_id/advertisement", marketHandlers.RunAdCampaignHandler())
			marketGroup.POST("/players/:player_id/research", marketHandlers.MarketResearchHandler())
			marketGroup.POST("/players/:player_id/decoration", marketHandlers.DecorateShopHandler())
		}

		rounds := v1.Group("/rounds")
		{
			rounds.POST("/:game_id/advance", roundHandlers.AdvanceRoundHandler())
			rounds.GET("/:game_id/summary/:round_number", roundHandlers.GetRoundSummaryHandler())
		}

		financeGroup := v1.Group("/finance")
		{
			financeGroup.POST("/players/:player_id/records/:round_number", financeHandlers.GenerateFinanceRecordHandler())
			financeGroup.GET("/players/:player_id/records/:round_number", financeHandlers.GetFinanceRecordHandler())
			financeGroup.GET("/players/:player_id/records", financeHandlers.GetAllFinanceRecordsHandler())
			financeGroup.GET("/games/:game_id/summary", financeHandlers.GetProfitSummaryHandler())
			financeGroup.GET("/players/:player_id/report", financeHandlers.GetDetailedReportHandler())
			financeGroup.GET("/players/:player_id/report/:round_number", financeHandlers.GetDetailedRoundReportHandler())
		}
	}
}
