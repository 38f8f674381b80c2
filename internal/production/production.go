package production

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/teawars/teawars-api/internal/types"
	"github.com/teawars/teawars-api/pkg/response"
	"gorm.io/gorm"
)

// Service handles per-round production plans and product research.
type Service struct {
	gormDB *gorm.DB
	db     *Database
}

// NewService creates a new production service with the given database connection
func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		gormDB: gormDB,
		db:     NewDatabase(gormDB),
	}
}

// PlanItem is one product's line in a production submission.
type PlanItem struct {
	ProductID string  `json:"product_id" binding:"required"`
	Quantity  int     `json:"quantity" binding:"required"`
	Price     float64 `json:"price" binding:"required"`
}

// SubmitPlan records a player's production for the game's current round.
// Each product can be planned once per round; quantities and prices must
// be positive and the product must be an unlocked product of the player.
// The resulting rows are the allocator's input at settlement.
func (s *Service) SubmitPlan(playerID string, items []PlanItem) ([]types.ProductionRecord, error) {
	logger := log.With().
		Str("player_id", playerID).
		Str("service", "production").
		Logger()

	if len(items) == 0 {
		return nil, fmt.Errorf("%w: production plan is empty", response.ErrValidation)
	}

	var records []types.ProductionRecord
	err := s.gormDB.Transaction(func(tx *gorm.DB) error {
		db := s.db.WithTx(tx)

		player, err := db.GetPlayer(playerID)
		if err != nil {
			return err
		}
		if !player.IsActive {
			return fmt.Errorf("%w: player %s is not active", response.ErrValidation, playerID)
		}

		game, err := db.GetGame(player.GameID)
		if err != nil {
			return err
		}
		if game.Status != types.GameStatusInProgress {
			return fmt.Errorf("%w: game is not in progress (current status: %s)", response.ErrValidation, game.Status)
		}
		roundNumber := game.CurrentRound

		for _, item := range items {
			if item.Quantity <= 0 {
				return fmt.Errorf("%w: quantity for product %s must be positive", response.ErrValidation, item.ProductID)
			}
			if item.Price <= 0 {
				return fmt.Errorf("%w: price for product %s must be positive", response.ErrValidation, item.ProductID)
			}

			product, err := db.GetPlayerProduct(item.ProductID)
			if err != nil {
				return err
			}
			if product.PlayerID != playerID {
				return fmt.Errorf("%w: product %s does not belong to player %s", response.ErrValidation, item.ProductID, playerID)
			}
			if !product.IsUnlocked {
				return fmt.Errorf("%w: product %s is not unlocked", response.ErrValidation, item.ProductID)
			}

			existing, err := db.GetProduction(playerID, roundNumber, item.ProductID)
			if err != nil {
				return err
			}
			if existing != nil {
				return fmt.Errorf("%w: production for product %s already submitted in round %d",
					response.ErrValidation, item.ProductID, roundNumber)
			}

			record := types.ProductionRecord{
				ProductionID:     "PRN_" + uuid.New().String(),
				PlayerID:         playerID,
				RoundNumber:      roundNumber,
				ProductID:        item.ProductID,
				ProducedQuantity: item.Quantity,
				Price:            item.Price,
			}
			if err := db.CreateProduction(&record); err != nil {
				return err
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Msg("production submission failed")
		return nil, err
	}

	logger.Info().Int("products", len(records)).Msg("production plan submitted")
	return records, nil
}

// GetPlan returns a player's production records for a round.
func (s *Service) GetPlan(playerID string, roundNumber int) ([]types.ProductionRecord, error) {
	if _, err := s.db.GetPlayer(playerID); err != nil {
		return nil, err
	}
	return s.db.GetProductionsForRound(playerID, roundNumber)
}

// ResearchProduct unlocks a locked recipe for the player at its research
// cost. The cost is deducted from cash immediately and logged for the
// round's product-research expense.
func (s *Service) ResearchProduct(playerID, recipeID string) (*types.PlayerProduct, error) {
	logger := log.With().
		Str("player_id", playerID).
		Str("recipe_id", recipeID).
		Str("service", "production").
		Logger()

	var product *types.PlayerProduct
	err := s.gormDB.Transaction(func(tx *gorm.DB) error {
		db := s.db.WithTx(tx)

		player, err := db.GetPlayer(playerID)
		if err != nil {
			return err
		}
		if !player.IsActive {
			return fmt.Errorf("%w: player %s is not active", response.ErrValidation, playerID)
		}

		game, err := db.GetGame(player.GameID)
		if err != nil {
			return err
		}
		if game.Status != types.GameStatusInProgress {
			return fmt.Errorf("%w: game is not in progress (current status: %s)", response.ErrValidation, game.Status)
		}

		recipe, err := db.GetRecipe(recipeID)
		if err != nil {
			return err
		}
		if recipe.GameID != player.GameID {
			return fmt.Errorf("%w: recipe %s is not part of game %s", response.ErrValidation, recipeID, player.GameID)
		}

		product, err = db.GetProductByRecipe(playerID, recipeID)
		if err != nil {
			return err
		}
		if product == nil {
			return fmt.Errorf("%w: product for recipe %s", response.ErrNotFound, recipeID)
		}
		if product.IsUnlocked {
			return fmt.Errorf("%w: recipe %s is already unlocked", response.ErrValidation, recipeID)
		}

		if player.Cash < recipe.ResearchCost {
			return fmt.Errorf("%w: insufficient cash (%.2f needed, %.2f available)",
				response.ErrValidation, recipe.ResearchCost, player.Cash)
		}
		player.Cash -= recipe.ResearchCost
		if err := db.SavePlayer(player); err != nil {
			return err
		}

		product.IsUnlocked = true
		if err := db.SaveProduct(product); err != nil {
			return err
		}

		return db.CreateResearchLog(&types.ResearchLog{
			PlayerID:    playerID,
			RoundNumber: game.CurrentRound,
			RecipeID:    recipeID,
			Cost:        recipe.ResearchCost,
		})
	})
	if err != nil {
		logger.Error().Err(err).Msg("product research failed")
		return nil, err
	}

	logger.Info().Str("product_id", product.ProductID).Msg("product researched")
	return product, nil
}

// GinHandlers contains HTTP handlers for production endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// SubmitPlanHandler handles POST requests to submit a production plan
// Request body: {"items": [{"product_id": "...", "quantity": 8, "price": 10}]}
func (h *GinHandlers) SubmitPlanHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		playerID := c.Param("player_id")
		var request struct {
			Items []PlanItem `json:"items" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		records, err := h.service.SubmitPlan(playerID, request.Items)
		response.Handle(c, records, err)
	}
}

func (h *GinHandlers) GetPlanHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		playerID := c.Param("player_id")
		roundNumber, err := strconv.Atoi(c.Param("round_number"))
		if err != nil {
			response.BadRequest(c, "invalid round number")
			return
		}

		records, err := h.service.GetPlan(playerID, roundNumber)
		response.Handle(c, records, err)
	}
}

func (h *GinHandlers) ResearchProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		playerID := c.Param("player_id")
		var request struct {
			RecipeID string `json:"recipe_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		product, err := h.service.ResearchProduct(playerID, request.RecipeID)
		response.Handle(c, product, err)
	}
}
