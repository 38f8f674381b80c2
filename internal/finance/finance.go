package finance

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/teawars/teawars-api/pkg/response"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Service builds the per-player-per-round financial ledger and serves
// aggregate reports.
type Service struct {
	gormDB *gorm.DB
	db     *Database
}

// NewService creates a new finance service with the given database connection
func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		gormDB: gormDB,
		db:     NewDatabase(gormDB),
	}
}

// GenerateFinanceRecord creates the ledger entry for (player, round).
// Idempotent: if the record already exists it is returned unchanged and
// nothing is written. Otherwise revenue, itemized expenses, round profit
// and the cumulative-profit chain are computed and persisted together
// with the player's running total, in one transaction.
func (s *Service) GenerateFinanceRecord(playerID string, roundNumber int) (*FinanceRecord, error) {
	logger := log.With().
		Str("player_id", playerID).
		Int("round", roundNumber).
		Str("service", "finance").
		Logger()

	var record *FinanceRecord
	err := s.gormDB.Transaction(func(tx *gorm.DB) error {
		db := s.db.WithTx(tx)

		player, err := db.GetPlayer(playerID)
		if err != nil {
			return err
		}

		existing, err := db.GetRecord(playerID, roundNumber)
		if err != nil {
			return err
		}
		if existing != nil {
			logger.Debug().Str("record_id", existing.RecordID).Msg("finance record already exists")
			record = existing
			return nil
		}

		totalRevenue, revenueItems, err := s.calculateRevenue(db, playerID, roundNumber)
		if err != nil {
			return err
		}

		expenses, err := calculateRoundExpenses(db, player, roundNumber)
		if err != nil {
			return err
		}

		roundProfit := totalRevenue - expenses.Total

		// Cumulative profit chains strictly off the previous round's
		// stored value, never by re-summing the whole history.
		previousCumulative := 0.0
		previous, err := db.GetRecord(playerID, roundNumber-1)
		if err != nil {
			return err
		}
		if previous != nil {
			previousCumulative = previous.CumulativeProfit
		}
		cumulativeProfit := previousCumulative + roundProfit

		productDetails, err := s.calculateProductDetails(db, playerID, roundNumber)
		if err != nil {
			return err
		}

		purchases, err := db.GetPurchases(playerID, roundNumber)
		if err != nil {
			return err
		}
		purchaseDetails := make(map[string]PurchaseDetail, len(purchases))
		for _, purchase := range purchases {
			purchaseDetails[purchase.MaterialType] = PurchaseDetail{
				Quantity:     purchase.Quantity,
				UnitPrice:    round2(purchase.UnitPrice),
				DiscountRate: purchase.DiscountRate,
				TotalCost:    round2(purchase.TotalCost),
			}
		}

		revenueJSON, err := json.Marshal(revenueItems)
		if err != nil {
			return err
		}
		purchasesJSON, err := json.Marshal(purchaseDetails)
		if err != nil {
			return err
		}
		detailsJSON, err := json.Marshal(productDetails)
		if err != nil {
			return err
		}

		record = &FinanceRecord{
			RecordID:    "FIN_" + uuid.New().String(),
			PlayerID:    playerID,
			RoundNumber: roundNumber,

			TotalRevenue:     totalRevenue,
			RevenueBreakdown: datatypes.JSON(revenueJSON),

			RentExpense:            expenses.Rent,
			SalaryExpense:          expenses.Salary,
			MaterialExpense:        expenses.Material,
			DecorationExpense:      expenses.Decoration,
			MarketResearchExpense:  expenses.MarketResearch,
			AdExpense:              expenses.Advertisement,
			ProductResearchExpense: expenses.ProductResearch,
			TotalExpense:           expenses.Total,

			RoundProfit:      roundProfit,
			CumulativeProfit: cumulativeProfit,

			MaterialPurchases: datatypes.JSON(purchasesJSON),
			ProductDetails:    datatypes.JSON(detailsJSON),
		}
		if err := db.CreateRecord(record); err != nil {
			return err
		}

		player.TotalProfit = cumulativeProfit
		if err := db.SavePlayer(player); err != nil {
			return err
		}

		logger.Info().
			Str("record_id", record.RecordID).
			Float64("revenue", totalRevenue).
			Float64("expenses", expenses.Total).
			Float64("round_profit", roundProfit).
			Float64("cumulative_profit", cumulativeProfit).
			Msg("finance record generated")

		return nil
	})
	if err != nil {
		logger.Error().Err(err).Msg("finance record generation failed")
		return nil, err
	}
	return record, nil
}

// GetFinanceRecord retrieves an existing ledger entry.
func (s *Service) GetFinanceRecord(playerID string, roundNumber int) (*FinanceRecord, error) {
	record, err := s.db.GetRecord(playerID, roundNumber)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%w: finance record for player %s round %d", response.ErrNotFound, playerID, roundNumber)
	}
	return record, nil
}

// GetAllFinanceRecords returns a player's ledger entries, round ascending.
func (s *Service) GetAllFinanceRecords(playerID string) ([]FinanceRecord, error) {
	if _, err := s.db.GetPlayer(playerID); err != nil {
		return nil, err
	}
	return s.db.GetRecordsByPlayer(playerID)
}

// GetProfitSummary ranks a game's active players by cumulative profit
// descending. Equal profits tie-break on ascending player ID so the
// leaderboard is reproducible.
func (s *Service) GetProfitSummary(gameID string) (*ProfitSummary, error) {
	game, err := s.db.GetGame(gameID)
	if err != nil {
		return nil, err
	}

	players, err := s.db.GetActivePlayers(gameID)
	if err != nil {
		return nil, err
	}

	rankings := make([]PlayerRanking, 0, len(players))
	for _, player := range players {
		rankings = append(rankings, PlayerRanking{
			PlayerID:    player.PlayerID,
			Nickname:    player.Nickname,
			TotalProfit: player.TotalProfit,
			Cash:        player.Cash,
		})
	}

	sort.Slice(rankings, func(i, j int) bool {
		if rankings[i].TotalProfit != rankings[j].TotalProfit {
			return rankings[i].TotalProfit > rankings[j].TotalProfit
		}
		return rankings[i].PlayerID < rankings[j].PlayerID
	})
	for i := range rankings {
		rankings[i].Rank = i + 1
	}

	return &ProfitSummary{
		GameID:       gameID,
		CurrentRound: game.CurrentRound,
		Players:      rankings,
	}, nil
}

// GetDetailedReport returns a player's full round-ascending series of
// revenue, expenses, profit and cumulative profit.
func (s *Service) GetDetailedReport(playerID string) (*DetailedReport, error) {
	player, err := s.db.GetPlayer(playerID)
	if err != nil {
		return nil, err
	}

	records, err := s.db.GetRecordsByPlayer(playerID)
	if err != nil {
		return nil, err
	}

	rounds := make([]RoundReport, 0, len(records))
	for _, record := range records {
		rounds = append(rounds, RoundReport{
			Round:            record.RoundNumber,
			Revenue:          record.TotalRevenue,
			Expenses:         record.TotalExpense,
			Profit:           record.RoundProfit,
			CumulativeProfit: record.CumulativeProfit,
		})
	}

	return &DetailedReport{
		PlayerID:    player.PlayerID,
		Nickname:    player.Nickname,
		CurrentCash: player.Cash,
		TotalProfit: player.TotalProfit,
		Rounds:      rounds,
	}, nil
}

// GetDetailedRoundReport expands one round's ledger entry into the
// sectioned report with per-product revenue and grouped expenses.
func (s *Service) GetDetailedRoundReport(playerID string, roundNumber int) (*RoundDetailReport, error) {
	record, err := s.GetFinanceRecord(playerID, roundNumber)
	if err != nil {
		return nil, err
	}

	var products []ProductDetail
	if len(record.ProductDetails) > 0 {
		if err := json.Unmarshal(record.ProductDetails, &products); err != nil {
			return nil, fmt.Errorf("invalid product details for record %s: %w", record.RecordID, err)
		}
	}

	purchased := make(map[string]PurchaseDetail)
	if len(record.MaterialPurchases) > 0 {
		if err := json.Unmarshal(record.MaterialPurchases, &purchased); err != nil {
			return nil, fmt.Errorf("invalid material purchases for record %s: %w", record.RecordID, err)
		}
	}

	report := &RoundDetailReport{
		PlayerID:    record.PlayerID,
		RoundNumber: record.RoundNumber,
		Revenue: RoundRevenueDetail{
			Total:    record.TotalRevenue,
			Products: products,
		},
		Profit: RoundProfitSnapshot{
			Round:      record.RoundProfit,
			Cumulative: record.CumulativeProfit,
		},
	}

	report.Expenses.Fixed.Rent = record.RentExpense
	report.Expenses.Fixed.Salary = record.SalaryExpense
	report.Expenses.Fixed.Total = record.RentExpense + record.SalaryExpense
	report.Expenses.Materials.Purchased = purchased
	report.Expenses.Materials.Total = record.MaterialExpense
	report.Expenses.Temporary.Decoration = record.DecorationExpense
	report.Expenses.Temporary.MarketResearch = record.MarketResearchExpense
	report.Expenses.Temporary.Advertisement = record.AdExpense
	report.Expenses.Temporary.ProductResearch = record.ProductResearchExpense
	report.Expenses.Temporary.Total = record.DecorationExpense + record.MarketResearchExpense +
		record.AdExpense + record.ProductResearchExpense
	report.Expenses.Total = record.TotalExpense

	return report, nil
}

// calculateRevenue sums a round's settled production revenue with a
// per-product breakdown.
func (s *Service) calculateRevenue(db *Database, playerID string, roundNumber int) (float64, []RevenueItem, error) {
	productions, err := db.GetProductionsForRound(playerID, roundNumber)
	if err != nil {
		return 0, nil, err
	}

	total := 0.0
	items := make([]RevenueItem, 0, len(productions))
	for _, prod := range productions {
		total += prod.Revenue

		productName := "Unknown"
		product, err := db.GetPlayerProduct(prod.ProductID)
		if err != nil {
			return 0, nil, err
		}
		if product != nil {
			recipe, err := db.GetRecipe(product.RecipeID)
			if err != nil {
				return 0, nil, err
			}
			if recipe != nil {
				productName = recipe.Name
			}
		}

		items = append(items, RevenueItem{
			ProductName: productName,
			Quantity:    prod.SoldQuantity,
			Price:       prod.Price,
			Revenue:     prod.Revenue,
		})
	}

	return total, items, nil
}

// calculateProductDetails costs out each produced product by joining its
// recipe's material requirements with the unit prices the player actually
// paid that round.
func (s *Service) calculateProductDetails(db *Database, playerID string, roundNumber int) ([]ProductDetail, error) {
	productions, err := db.GetProductionsForRound(playerID, roundNumber)
	if err != nil {
		return nil, err
	}

	purchases, err := db.GetPurchases(playerID, roundNumber)
	if err != nil {
		return nil, err
	}
	materialPrices := make(map[string]float64, len(purchases))
	for _, purchase := range purchases {
		materialPrices[purchase.MaterialType] = purchase.UnitPrice
	}

	details := make([]ProductDetail, 0, len(productions))
	for _, prod := range productions {
		product, err := db.GetPlayerProduct(prod.ProductID)
		if err != nil {
			return nil, err
		}
		if product == nil {
			continue
		}
		recipe, err := db.GetRecipe(product.RecipeID)
		if err != nil {
			return nil, err
		}
		if recipe == nil {
			continue
		}

		var requirements map[string]int
		if len(recipe.Materials) > 0 {
			if err := json.Unmarshal(recipe.Materials, &requirements); err != nil {
				return nil, fmt.Errorf("invalid materials for recipe %s: %w", recipe.RecipeID, err)
			}
		}

		materialCost := 0.0
		used := make(map[string]MaterialUsage, len(requirements))
		for material, perUnit := range requirements {
			totalUnits := perUnit * prod.ProducedQuantity
			unitPrice := materialPrices[material]
			lineTotal := float64(totalUnits) * unitPrice

			used[material] = MaterialUsage{
				Quantity: totalUnits,
				UnitCost: unitPrice,
				Total:    round2(lineTotal),
			}
			materialCost += lineTotal
		}

		details = append(details, ProductDetail{
			ProductID:        prod.ProductID,
			ProductName:      recipe.Name,
			Price:            prod.Price,
			ProducedQuantity: prod.ProducedQuantity,
			SoldQuantity:     prod.SoldQuantity,
			SoldToHighTier:   prod.SoldToHighTier,
			SoldToLowTier:    prod.SoldToLowTier,
			Revenue:          prod.Revenue,
			MaterialCost:     round2(materialCost),
			Profit:           round2(prod.Revenue - materialCost),
			MaterialsUsed:    used,
		})
	}

	return details, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// GinHandlers contains HTTP handlers for finance endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// GenerateFinanceRecordHandler handles POST requests to generate a ledger
// entry for (player, round). Safe to retry: generation is idempotent.
func (h *GinHandlers) GenerateFinanceRecordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		playerID := c.Param("player_id")
		roundNumber, err := strconv.Atoi(c.Param("round_number"))
		if err != nil {
			response.BadRequest(c, "invalid round number")
			return
		}

		record, err := h.service.GenerateFinanceRecord(playerID, roundNumber)
		response.Handle(c, record, err)
	}
}

func (h *GinHandlers) GetFinanceRecordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		playerID := c.Param("player_id")
		roundNumber, err := strconv.Atoi(c.Param("round_number"))
		if err != nil {
			response.BadRequest(c, "invalid round number")
			return
		}

		record, err := h.service.GetFinanceRecord(playerID, roundNumber)
		response.Handle(c, record, err)
	}
}

func (h *GinHandlers) GetAllFinanceRecordsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		playerID := c.Param("player_id")

		records, err := h.service.GetAllFinanceRecords(playerID)
		response.Handle(c, records, err)
	}
}

func (h *GinHandlers) GetProfitSummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		gameID := c.Param("game_id")

		summary, err := h.service.GetProfitSummary(gameID)
		response.Handle(c, summary, err)
	}
}

func (h *GinHandlers) GetDetailedReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		playerID := c.Param("player_id")

		report, err := h.service.GetDetailedReport(playerID)
		response.Handle(c, report, err)
	}
}

func (h *GinHandlers) GetDetailedRoundReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		playerID := c.Param("player_id")
		roundNumber, err := strconv.Atoi(c.Param("round_number"))
		if err != nil {
			response.BadRequest(c, "invalid round number")
			return
		}

		report, err := h.service.GetDetailedRoundReport(playerID, roundNumber)
		response.Handle(c, report, err)
	}
}
