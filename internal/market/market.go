package market

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/teawars/teawars-api/internal/config"
	"github.com/teawars/teawars-api/internal/types"
	"github.com/teawars/teawars-api/pkg/response"
	"gorm.io/gorm"
)

// Service handles raw-material purchasing and paid market actions
// (advertising, market research, shop decoration).
type Service struct {
	gormDB *gorm.DB
	db     *Database
}

// NewService creates a new market service with the given database connection
func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		gormDB: gormDB,
		db:     NewDatabase(gormDB),
	}
}

// PurchaseResult reports a completed bulk purchase.
type PurchaseResult struct {
	RoundNumber int                      `json:"round_number"`
	Purchases   []types.MaterialPurchase `json:"purchases"`
	TotalCost   float64                  `json:"total_cost"`
	CashAfter   float64                  `json:"cash_after"`
}

// PurchaseMaterials buys raw materials for the player's current round at
// volume-discounted prices. Each material can be bought once per round;
// cash is deducted immediately and the purchase rows feed the finance
// ledger's material breakdown.
func (s *Service) PurchaseMaterials(playerID string, items map[string]int) (*PurchaseResult, error) {
	logger := log.With().
		Str("player_id", playerID).
		Str("service", "market").
		Logger()

	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no materials requested", response.ErrValidation)
	}

	var result *PurchaseResult
	err := s.gormDB.Transaction(func(tx *gorm.DB) error {
		db := s.db.WithTx(tx)

		player, game, err := s.activePlayerGame(db, playerID)
		if err != nil {
			return err
		}
		roundNumber := game.CurrentRound

		purchases := make([]types.MaterialPurchase, 0, len(items))
		totalCost := 0.0
		for material, quantity := range items {
			basePrice, ok := config.MaterialBasePrices[material]
			if !ok {
				return fmt.Errorf("%w: unknown material %q", response.ErrValidation, material)
			}
			if quantity <= 0 {
				return fmt.Errorf("%w: quantity for %s must be positive", response.ErrValidation, material)
			}

			existing, err := db.GetPurchase(playerID, roundNumber, material)
			if err != nil {
				return err
			}
			if existing != nil {
				return fmt.Errorf("%w: %s already purchased in round %d", response.ErrValidation, material, roundNumber)
			}

			rate := DiscountRate(quantity)
			unitPrice := basePrice * rate
			cost := float64(quantity) * unitPrice

			purchases = append(purchases, types.MaterialPurchase{
				PlayerID:     playerID,
				RoundNumber:  roundNumber,
				MaterialType: material,
				Quantity:     quantity,
				UnitPrice:    unitPrice,
				DiscountRate: rate,
				TotalCost:    cost,
			})
			totalCost += cost
		}

		if player.Cash < totalCost {
			return fmt.Errorf("%w: insufficient cash (%.2f needed, %.2f available)",
				response.ErrValidation, totalCost, player.Cash)
		}

		for i := range purchases {
			if err := db.CreatePurchase(&purchases[i]); err != nil {
				return err
			}
		}

		player.Cash -= totalCost
		if err := db.SavePlayer(player); err != nil {
			return err
		}

		result = &PurchaseResult{
			RoundNumber: roundNumber,
			Purchases:   purchases,
			TotalCost:   totalCost,
			CashAfter:   player.Cash,
		}
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Msg("material purchase failed")
		return nil, err
	}

	logger.Info().
		Int("round", result.RoundNumber).
		Int("materials", len(result.Purchases)).
		Float64("total_cost", result.TotalCost).
		Msg("materials purchased")

	return result, nil
}

// RunAdCampaign spends a fixed fee to raise one product's advertising
// score, which feeds directly into its reputation next allocation.
func (s *Service) RunAdCampaign(playerID, productID string) (*types.MarketAction, error) {
	var action *types.MarketAction
	err := s.gormDB.Transaction(func(tx *gorm.DB) error {
		db := s.db.WithTx(tx)

		player, game, err := s.activePlayerGame(db, playerID)
		if err != nil {
			return err
		}

		product, err := db.GetPlayerProduct(productID)
		if err != nil {
			return err
		}
		if product.PlayerID != playerID {
			return fmt.Errorf("%w: product %s does not belong to player %s", response.ErrValidation, productID, playerID)
		}
		if !product.IsUnlocked {
			return fmt.Errorf("%w: product %s is not unlocked", response.ErrValidation, productID)
		}

		if err := s.debit(db, player, config.AdCampaignCost); err != nil {
			return err
		}

		product.CurrentAdScore += config.AdScorePerCampaign
		if err := db.SaveProduct(product); err != nil {
			return err
		}

		action = &types.MarketAction{
			ActionID:    "ACT_" + uuid.New().String(),
			PlayerID:    playerID,
			RoundNumber: game.CurrentRound,
			ActionType:  types.ActionAdvertisement,
			ProductID:   productID,
			Cost:        config.AdCampaignCost,
		}
		return db.CreateMarketAction(action)
	})
	if err != nil {
		return nil, err
	}
	return action, nil
}

// MarketResearchResult reveals the current round's customer volumes.
type MarketResearchResult struct {
	Action            *types.MarketAction `json:"action"`
	RoundNumber       int                 `json:"round_number"`
	HighTierCustomers int                 `json:"high_tier_customers"`
	LowTierCustomers  int                 `json:"low_tier_customers"`
}

// PerformMarketResearch pays for a preview of the current round's customer
// flow from the fixed script.
func (s *Service) PerformMarketResearch(playerID string) (*MarketResearchResult, error) {
	var result *MarketResearchResult
	err := s.gormDB.Transaction(func(tx *gorm.DB) error {
		db := s.db.WithTx(tx)

		player, game, err := s.activePlayerGame(db, playerID)
		if err != nil {
			return err
		}

		entry, ok := config.CustomerFlowScript[game.CurrentRound]
		if !ok {
			return fmt.Errorf("%w: round %d is outside the customer flow script", response.ErrValidation, game.CurrentRound)
		}

		if err := s.debit(db, player, config.MarketResearchCost); err != nil {
			return err
		}

		action := &types.MarketAction{
			ActionID:    "ACT_" + uuid.New().String(),
			PlayerID:    playerID,
			RoundNumber: game.CurrentRound,
			ActionType:  types.ActionMarketResearch,
			Cost:        config.MarketResearchCost,
		}
		if err := db.CreateMarketAction(action); err != nil {
			return err
		}

		result = &MarketResearchResult{
			Action:            action,
			RoundNumber:       game.CurrentRound,
			HighTierCustomers: entry.High,
			LowTierCustomers:  entry.Low,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DecorateShop pays to raise the shop's decoration level. The cost lands
// in the round's decoration expense.
func (s *Service) DecorateShop(playerID string) (*types.Shop, error) {
	var shop *types.Shop
	err := s.gormDB.Transaction(func(tx *gorm.DB) error {
		db := s.db.WithTx(tx)

		player, game, err := s.activePlayerGame(db, playerID)
		if err != nil {
			return err
		}

		shop, err = db.GetShopByPlayer(playerID)
		if err != nil {
			return err
		}

		if err := s.debit(db, player, config.DecorationCost); err != nil {
			return err
		}

		shop.DecorationLevel++
		if err := db.SaveShop(shop); err != nil {
			return err
		}

		action := &types.MarketAction{
			ActionID:    "ACT_" + uuid.New().String(),
			PlayerID:    playerID,
			RoundNumber: game.CurrentRound,
			ActionType:  types.ActionDecoration,
			Cost:        config.DecorationCost,
		}
		return db.CreateMarketAction(action)
	})
	if err != nil {
		return nil, err
	}
	return shop, nil
}

// QuoteMaterials prices a prospective purchase without committing it.
func (s *Service) QuoteMaterials(items map[string]int) *MaterialCostReport {
	return MaterialCosts(items)
}

func (s *Service) activePlayerGame(db *Database, playerID string) (*types.Player, *types.Game, error) {
	player, err := db.GetPlayer(playerID)
	if err != nil {
		return nil, nil, err
	}
	if !player.IsActive {
		return nil, nil, fmt.Errorf("%w: player %s is not active", response.ErrValidation, playerID)
	}
	game, err := db.GetGame(player.GameID)
	if err != nil {
		return nil, nil, err
	}
	if game.Status != types.GameStatusInProgress {
		return nil, nil, fmt.Errorf("%w: game is not in progress (current status: %s)", response.ErrValidation, game.Status)
	}
	return player, game, nil
}

func (s *Service) debit(db *Database, player *types.Player, amount float64) error {
	if player.Cash < amount {
		return fmt.Errorf("%w: insufficient cash (%.2f needed, %.2f available)",
			response.ErrValidation, amount, player.Cash)
	}
	player.Cash -= amount
	return db.SavePlayer(player)
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

// PurchaseMaterialsHandler handles POST requests to buy materials
// Request body: {"materials": {"tea": 120, "milk": 40}}
func (h *GinHandlers) PurchaseMaterialsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		playerID := c.Param("player_id")
		var request struct {
			Materials map[string]int `json:"materials" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		result, err := h.service.PurchaseMaterials(playerID, request.Materials)
		response.Handle(c, result, err)
	}
}

func (h *GinHandlers) QuoteMaterialsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var request struct {
			Materials map[string]int `json:"materials" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		response.Success(c, h.service.QuoteMaterials(request.Materials))
	}
}

func (h *GinHandlers) RunAdCampaignHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		playerID := c.Param("player_id")
		var request struct {
			ProductID string `json:"product_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		action, err := h.service.RunAdCampaign(playerID, request.ProductID)
		response.Handle(c, action, err)
	}
}

func (h *GinHandlers) MarketResearchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		playerID := c.Param("player_id")

		result, err := h.service.PerformMarketResearch(playerID)
		response.Handle(c, result, err)
	}
}

func (h *GinHandlers) DecorateShopHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		playerID := c.Param("player_id")

		shop, err := h.service.DecorateShop(playerID)
		response.Handle(c, shop, err)
	}
}
