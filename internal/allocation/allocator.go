package allocation

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/teawars/teawars-api/internal/types"
	"gorm.io/gorm"
)

// Service distributes each round's two customer pools across all eligible
// product listings and commits the resulting sales.
type Service struct {
	gormDB *gorm.DB
	db     *Database
}

// NewService creates a new allocation service with the given database connection
func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		gormDB: gormDB,
		db:     NewDatabase(gormDB),
	}
}

// Allocate runs one round's customer allocation in its own transaction.
// The CustomerFlow row for (game, round) must already exist; its absence
// is a NotFound failure, never auto-generated here.
func (s *Service) Allocate(gameID string, roundNumber int) (*types.AllocationResult, error) {
	var result *types.AllocationResult
	err := s.gormDB.Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = s.AllocateTx(tx, gameID, roundNumber)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AllocateTx runs the allocation inside the caller's transaction so the
// round service can settle, credit revenue and advance the round as one
// atomic unit.
func (s *Service) AllocateTx(tx *gorm.DB, gameID string, roundNumber int) (*types.AllocationResult, error) {
	logger := log.With().
		Str("game_id", gameID).
		Int("round", roundNumber).
		Str("service", "allocation").
		Logger()

	db := s.db.WithTx(tx)

	flow, err := db.GetCustomerFlow(gameID, roundNumber)
	if err != nil {
		logger.Error().Err(err).Msg("failed to fetch customer flow")
		return nil, err
	}

	listings, err := s.buildListings(db, gameID, roundNumber)
	if err != nil {
		logger.Error().Err(err).Msg("failed to build listing set")
		return nil, err
	}

	if len(listings) == 0 {
		logger.Info().Msg("no eligible listings, returning empty allocation")
		return &types.AllocationResult{SalesDetails: []types.SalesDetail{}}, nil
	}

	logger.Info().
		Int("listings", len(listings)).
		Int("high_tier_pool", flow.HighTierCustomers).
		Int("low_tier_pool", flow.LowTierCustomers).
		Msg("starting customer allocation")

	highServed := s.allocateHighTier(listings, flow.HighTierCustomers)
	lowServed := s.allocateLowTier(listings, flow.LowTierCustomers)

	totalRevenue, err := s.commitSales(db, listings)
	if err != nil {
		logger.Error().Err(err).Msg("failed to commit sales")
		return nil, err
	}

	details := make([]types.SalesDetail, 0, len(listings))
	for _, l := range listings {
		details = append(details, types.SalesDetail{
			ProductionID: l.productionID,
			PlayerID:     l.playerID,
			PlayerName:   l.playerName,
			ProductName:  l.productName,
			Reputation:   l.reputation,
			Price:        l.price,
			Available:    l.available,
			SoldHigh:     l.soldHigh,
			SoldLow:      l.soldLow,
		})
	}

	logger.Info().
		Int("high_tier_served", highServed).
		Int("low_tier_served", lowServed).
		Float64("total_revenue", totalRevenue).
		Msg("customer allocation completed")

	return &types.AllocationResult{
		HighTierServed: highServed,
		LowTierServed:  lowServed,
		TotalRevenue:   totalRevenue,
		SalesDetails:   details,
	}, nil
}

// buildListings assembles the round's working set: every active player's
// every positive-quantity production referencing an unlocked product.
// Dangling or locked product references are skipped, not errors.
func (s *Service) buildListings(db *Database, gameID string, roundNumber int) ([]*listing, error) {
	players, err := db.GetActivePlayers(gameID)
	if err != nil {
		return nil, err
	}

	var listings []*listing
	for _, player := range players {
		productions, err := db.GetProductionsForRound(player.PlayerID, roundNumber)
		if err != nil {
			return nil, err
		}

		for _, prod := range productions {
			if prod.ProducedQuantity <= 0 {
				continue
			}

			product, err := db.GetPlayerProduct(prod.ProductID)
			if err != nil {
				return nil, err
			}
			if product == nil || !product.IsUnlocked {
				continue
			}

			recipe, err := db.GetRecipe(product.RecipeID)
			if err != nil {
				return nil, err
			}
			if recipe == nil {
				continue
			}

			listings = append(listings, &listing{
				productionID: prod.ProductionID,
				productID:    product.ProductID,
				playerID:     player.PlayerID,
				playerName:   player.Nickname,
				productName:  recipe.Name,
				reputation:   Reputation(product, recipe),
				price:        prod.Price,
				available:    prod.ProducedQuantity,
			})
		}
	}

	return listings, nil
}

// allocateHighTier serves the high purchasing-power pool. Listings are
// ranked by reputation descending, then price ascending, then production
// ID ascending; the ID tie-break keeps the walk deterministic regardless
// of input ordering.
func (s *Service) allocateHighTier(listings []*listing, pool int) int {
	sorted := make([]*listing, len(listings))
	copy(sorted, listings)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.reputation != b.reputation {
			return a.reputation > b.reputation
		}
		if a.price != b.price {
			return a.price < b.price
		}
		return a.productionID < b.productionID
	})

	remaining := pool
	for _, l := range sorted {
		if remaining <= 0 {
			break
		}
		sold := min(l.available, remaining)
		l.soldHigh = sold
		l.available -= sold
		remaining -= sold
	}
	return pool - remaining
}

// allocateLowTier serves the low purchasing-power pool on the stock left
// over from the high-tier pass. Ranking is price ascending, then
// reputation descending, then production ID ascending. Low-tier customers
// never buy from a listing whose reputation is zero or negative.
func (s *Service) allocateLowTier(listings []*listing, pool int) int {
	sorted := make([]*listing, len(listings))
	copy(sorted, listings)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.price != b.price {
			return a.price < b.price
		}
		if a.reputation != b.reputation {
			return a.reputation > b.reputation
		}
		return a.productionID < b.productionID
	})

	remaining := pool
	for _, l := range sorted {
		if remaining <= 0 {
			break
		}
		if l.reputation <= 0 {
			continue
		}
		sold := min(l.available, remaining)
		l.soldLow = sold
		l.available -= sold
		remaining -= sold
	}
	return pool - remaining
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// commitSales persists each listing's sold counts, tier split and revenue
// onto its production row and advances the product's cumulative sales
// counter, which feeds next round's reputation.
func (s *Service) commitSales(db *Database, listings []*listing) (float64, error) {
	totalRevenue := 0.0
	for _, l := range listings {
		sold := l.soldHigh + l.soldLow
		revenue := float64(sold) * l.price

		if err := db.SaveSales(l.productionID, l.soldHigh, l.soldLow, revenue); err != nil {
			return 0, fmt.Errorf("failed to save sales for production %s: %w", l.productionID, err)
		}
		if sold > 0 {
			if err := db.IncrementProductTotalSold(l.productID, sold); err != nil {
				return 0, fmt.Errorf("failed to update total sold for product %s: %w", l.productID, err)
			}
		}

		totalRevenue += revenue
	}
	return totalRevenue, nil
}
