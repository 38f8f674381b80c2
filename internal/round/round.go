package round

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/teawars/teawars-api/internal/allocation"
	"github.com/teawars/teawars-api/internal/config"
	"github.com/teawars/teawars-api/internal/types"
	"github.com/teawars/teawars-api/pkg/response"
	"gorm.io/gorm"
)

// Service drives the round-advancement state machine: validate readiness,
// fix the round's customer flow, run the allocation, credit revenue and
// move the round counter.
type Service struct {
	gormDB    *gorm.DB
	db        *Database
	allocator *allocation.Service
}

// NewService creates a new round service with the given database connection
func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		gormDB:    gormDB,
		db:        NewDatabase(gormDB),
		allocator: allocation.NewService(gormDB),
	}
}

// AdvanceRound settles the game's current round and moves to the next one.
// Callers must serialize invocations per game; the service itself assumes
// at most one in-flight settlement per (game, round). All writes commit as
// a single transaction: a failure anywhere leaves no partial state.
func (s *Service) AdvanceRound(gameID string) (*types.AdvanceRoundResult, error) {
	logger := log.With().
		Str("game_id", gameID).
		Str("service", "round").
		Logger()

	logger.Info().Msg("starting round advancement")

	var result *types.AdvanceRoundResult
	err := s.gormDB.Transaction(func(tx *gorm.DB) error {
		db := s.db.WithTx(tx)

		game, err := db.GetGame(gameID)
		if err != nil {
			return err
		}
		if game.Status != types.GameStatusInProgress {
			return fmt.Errorf("%w: game is not in progress (current status: %s)", response.ErrValidation, game.Status)
		}

		currentRound := game.CurrentRound

		players, err := db.GetActivePlayers(gameID)
		if err != nil {
			return err
		}
		if err := s.verifyAllPlayersSubmitted(db, players, currentRound); err != nil {
			return err
		}

		flow, err := s.getOrCreateCustomerFlow(db, gameID, currentRound)
		if err != nil {
			return err
		}

		allocationResult, err := s.allocator.AllocateTx(tx, gameID, currentRound)
		if err != nil {
			return err
		}

		if err := s.creditRoundRevenue(db, players, currentRound); err != nil {
			return err
		}

		game.CurrentRound++
		finished := false
		if game.CurrentRound > game.TotalRounds {
			game.Status = types.GameStatusFinished
			finished = true
		}
		if err := db.SaveGame(game); err != nil {
			return err
		}

		result = &types.AdvanceRoundResult{
			PreviousRound:    currentRound,
			CurrentRound:     game.CurrentRound,
			CustomerFlow:     flow,
			AllocationResult: allocationResult,
			GameFinished:     finished,
		}
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Msg("round advancement failed")
		return nil, err
	}

	logger.Info().
		Int("previous_round", result.PreviousRound).
		Int("current_round", result.CurrentRound).
		Bool("game_finished", result.GameFinished).
		Float64("total_revenue", result.AllocationResult.TotalRevenue).
		Msg("round advancement completed")

	return result, nil
}

// verifyAllPlayersSubmitted fails fast, naming the first player without a
// production plan for the round. Partial advancement is disallowed.
func (s *Service) verifyAllPlayersSubmitted(db *Database, players []types.Player, roundNumber int) error {
	for _, player := range players {
		count, err := db.CountProductions(player.PlayerID, roundNumber)
		if err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("%w: player %s (%s) has not submitted a production plan for round %d",
				response.ErrValidation, player.Nickname, player.PlayerID, roundNumber)
		}
	}
	return nil
}

// getOrCreateCustomerFlow is idempotent against the fixed round-indexed
// script. A round outside the script's range is a configuration error,
// not a retryable condition.
func (s *Service) getOrCreateCustomerFlow(db *Database, gameID string, roundNumber int) (*types.CustomerFlow, error) {
	existing, err := db.GetCustomerFlow(gameID, roundNumber)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	entry, ok := config.CustomerFlowScript[roundNumber]
	if !ok {
		return nil, fmt.Errorf("%w: round %d is outside the customer flow script (1-%d)",
			response.ErrValidation, roundNumber, config.TotalRounds)
	}

	flow := &types.CustomerFlow{
		GameID:            gameID,
		RoundNumber:       roundNumber,
		HighTierCustomers: entry.High,
		LowTierCustomers:  entry.Low,
	}
	if err := db.CreateCustomerFlow(flow); err != nil {
		return nil, err
	}
	return flow, nil
}

// creditRoundRevenue increases each active player's cash by the sum of
// their settled production revenue for the round.
func (s *Service) creditRoundRevenue(db *Database, players []types.Player, roundNumber int) error {
	for _, player := range players {
		productions, err := db.GetProductionsForRound(player.PlayerID, roundNumber)
		if err != nil {
			return err
		}

		total := 0.0
		for _, prod := range productions {
			total += prod.Revenue
		}
		if total == 0 {
			continue
		}
		if err := db.CreditPlayerCash(player.PlayerID, total); err != nil {
			return err
		}
	}
	return nil
}

// PlayerRoundSummary is one player's rollup within a round summary.
type PlayerRoundSummary struct {
	PlayerID     string                   `json:"player_id"`
	Nickname     string                   `json:"nickname"`
	Productions  []types.ProductionRecord `json:"productions"`
	TotalRevenue float64                  `json:"total_revenue"`
	TotalSold    int                      `json:"total_sold"`
}

// RoundSummary is the per-round rollup of customer flow and sales.
type RoundSummary struct {
	RoundNumber  int                  `json:"round_number"`
	CustomerFlow *types.CustomerFlow  `json:"customer_flow"`
	Players      []PlayerRoundSummary `json:"players"`
}

// GetRoundSummary reports a settled round: its customer flow and every
// active player's productions, sales and revenue.
func (s *Service) GetRoundSummary(gameID string, roundNumber int) (*RoundSummary, error) {
	flow, err := s.db.GetCustomerFlow(gameID, roundNumber)
	if err != nil {
		return nil, err
	}
	if flow == nil {
		return nil, fmt.Errorf("%w: no customer flow data for game %s round %d", response.ErrNotFound, gameID, roundNumber)
	}

	players, err := s.db.GetActivePlayers(gameID)
	if err != nil {
		return nil, err
	}

	summaries := make([]PlayerRoundSummary, 0, len(players))
	for _, player := range players {
		productions, err := s.db.GetProductionsForRound(player.PlayerID, roundNumber)
		if err != nil {
			return nil, err
		}

		totalRevenue := 0.0
		totalSold := 0
		for _, prod := range productions {
			totalRevenue += prod.Revenue
			totalSold += prod.SoldQuantity
		}

		summaries = append(summaries, PlayerRoundSummary{
			PlayerID:     player.PlayerID,
			Nickname:     player.Nickname,
			Productions:  productions,
			TotalRevenue: totalRevenue,
			TotalSold:    totalSold,
		})
	}

	return &RoundSummary{
		RoundNumber:  roundNumber,
		CustomerFlow: flow,
		Players:      summaries,
	}, nil
}

// GinHandlers contains HTTP handlers for round endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// AdvanceRoundHandler handles POST requests to settle and advance a round
// URL parameter: game_id
func (h *GinHandlers) AdvanceRoundHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		gameID := c.Param("game_id")

		result, err := h.service.AdvanceRound(gameID)
		response.Handle(c, result, err)
	}
}

func (h *GinHandlers) GetRoundSummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		gameID := c.Param("game_id")
		roundNumber, err := strconv.Atoi(c.Param("round_number"))
		if err != nil {
			response.BadRequest(c, "invalid round number")
			return
		}

		summary, err := h.service.GetRoundSummary(gameID, roundNumber)
		response.Handle(c, summary, err)
	}
}
