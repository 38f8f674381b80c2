package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/teawars/teawars-api/internal/auth"
	"github.com/teawars/teawars-api/internal/config"
	"github.com/teawars/teawars-api/internal/database"
	"github.com/teawars/teawars-api/internal/finance"
	"github.com/teawars/teawars-api/internal/game"
	"github.com/teawars/teawars-api/internal/market"
	"github.com/teawars/teawars-api/internal/production"
	"github.com/teawars/teawars-api/internal/round"
	"github.com/teawars/teawars-api/pkg/middleware"

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

// main initializes and runs the game API server with graceful shutdown support
// It sets up all required services, database connections, and API routes
func main() {
	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize database
	db, err := database.NewDatabase(cfg.DatabasePath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Initialize router
	router := gin.Default()

	// Initialize services and handlers
	authService := auth.NewService(cfg.JWTSecret)

	gameService := game.NewService(db, authService)
	gameHandlers := game.NewGinHandlers(gameService)

	productionService := production.NewService(db)
	productionHandlers := production.NewGinHandlers(productionService)

	marketService := market.NewService(db)
	marketHandlers := market.NewGinHandlers(marketService)

	roundService := round.NewService(db)
	roundHandlers := round.NewGinHandlers(roundService)

	financeService := finance.NewService(db)
	financeHandlers := finance.NewGinHandlers(financeService)

	gameDB := game.NewDatabase(db)

	// Create and start the idle-player cleanup loop
	cleanup := game.NewCleanup(gameDB, cfg.CleanupInterval, cfg.InactiveAfter)
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanup.Start(cleanupCtx)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, middleware.SessionAuth(authService, gameDB), gameHandlers, productionHandlers, marketHandlers, roundHandlers, financeHandlers)

	// Create server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
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

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Game routes: Public endpoints for creating, joining and inspecting games
// - Player action routes: Protected by the session token issued on join,
//   with the token's player bound to the player_id path parameter
// - Finance routes: Protected read-only reporting endpoints
func setupRoutes(
	router *gin.Engine,
	sessionAuth gin.HandlerFunc,
	gameHandlers *game.GinHandlers,
	productionHandlers *production.GinHandlers,
	marketHandlers *market.GinHandlers,
	roundHandlers *round.GinHandlers,
	financeHandlers *finance.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Game routes
		games := v1.Group("/games")
		{
			games.POST("", gameHandlers.CreateGameHandler())
			games.GET("", gameHandlers.ListGamesHandler())
			games.GET("/:game_id", gameHandlers.GetGameStateHandler())
			games.POST("/:game_id/join", gameHandlers.JoinGameHandler())
		}

		// Player routes
		players := v1.Group("/players")
		players.Use(sessionAuth, middleware.RequirePlayer())
		{
			players.GET("/:player_id", gameHandlers.GetPlayerStateHandler())
			players.POST("/:player_id/employees", gameHandlers.HireEmployeeHandler())
			players.DELETE("/:player_id/employees/:employee_id", gameHandlers.FireEmployeeHandler())
		}

		// Production routes
		prod := v1.Group("/production")
		prod.Use(sessionAuth, middleware.RequirePlayer())
		{
			prod.POST("/:player_id/plan", productionHandlers.SubmitPlanHandler())
			prod.GET("/:player_id/plan/:round_number", productionHandlers.GetPlanHandler())
			prod.POST("/:player_id/research", productionHandlers.ResearchProductHandler())
		}

		// Market routes
		marketGroup := v1.Group("/market")
		marketGroup.Use(sessionAuth, middleware.RequirePlayer())
		{
			marketGroup.GET("/quote", marketHandlers.QuoteMaterialsHandler())
			marketGroup.POST("/players/:player_id/materials", marketHandlers.PurchaseMaterialsHandler())
			marketGroup.POST("/players/:player_id/advertisement", marketHandlers.RunAdCampaignHandler())
			marketGroup.POST("/players/:player_id/research", marketHandlers.MarketResearchHandler())
			marketGroup.POST("/players/:player_id/decoration", marketHandlers.DecorateShopHandler())
		}

		// Round routes
		rounds := v1.Group("/rounds")
		rounds.Use(sessionAuth)
		{
			rounds.POST("/:game_id/advance", roundHandlers.AdvanceRoundHandler())
			rounds.GET("/:game_id/summary/:round_number", roundHandlers.GetRoundSummaryHandler())
		}

		// Finance routes
		financeGroup := v1.Group("/finance")
		financeGroup.Use(sessionAuth, middleware.RequirePlayer())
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
