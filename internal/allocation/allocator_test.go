package allocation

import (
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teawars/teawars-api/internal/types"
	"github.com/teawars/teawars-api/pkg/response"
	"gorm.io/gorm"
)

func setupAllocationTest(t *testing.T) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&types.Game{},
		&types.Player{},
		&types.Recipe{},
		&types.PlayerProduct{},
		&types.ProductionRecord{},
		&types.CustomerFlow{},
	))
	return NewService(db), db
}

type seedListing struct {
	productionID string
	adScore      float64
	totalSold    int
	fanRate      float64
	price        float64
	quantity     int
}

// seedRound creates one player per listing so each listing has its own
// product, recipe and production row for the given round.
func seedRound(t *testing.T, db *gorm.DB, gameID string, round int, listings []seedListing) {
	t.Helper()
	for _, l := range listings {
		playerID := gameID + "-player-" + l.productionID
		require.NoError(t, db.Create(&types.Player{
			PlayerID: playerID,
			GameID:   gameID,
			Nickname: "Player " + l.productionID,
			IsActive: true,
		}).Error)

		recipeID := gameID + "-recipe-" + l.productionID
		require.NoError(t, db.Create(&types.Recipe{
			RecipeID:    recipeID,
			GameID:      gameID,
			Name:        "Tea " + l.productionID,
			BaseFanRate: l.fanRate,
		}).Error)

		productID := gameID + "-product-" + l.productionID
		require.NoError(t, db.Create(&types.PlayerProduct{
			ProductID:      productID,
			PlayerID:       playerID,
			RecipeID:       recipeID,
			IsUnlocked:     true,
			CurrentAdScore: l.adScore,
			TotalSold:      l.totalSold,
		}).Error)

		require.NoError(t, db.Create(&types.ProductionRecord{
			ProductionID:     l.productionID,
			PlayerID:         playerID,
			RoundNumber:      round,
			ProductID:        productID,
			ProducedQuantity: l.quantity,
			Price:            l.price,
		}).Error)
	}
}

func seedFlow(t *testing.T, db *gorm.DB, gameID string, round, high, low int) {
	t.Helper()
	require.NoError(t, db.Create(&types.CustomerFlow{
		GameID:            gameID,
		RoundNumber:       round,
		HighTierCustomers: high,
		LowTierCustomers:  low,
	}).Error)
}

// Two listings with equal reputation: the high tier buys cheapest first,
// the low tier picks over what is left.
func TestAllocate_TwoTierSplit(t *testing.T) {
	svc, db := setupAllocationTest(t)
	seedFlow(t, db, "g1", 1, 10, 5)
	seedRound(t, db, "g1", 1, []seedListing{
		{productionID: "PRN_A", adScore: 5, price: 10, quantity: 8},
		{productionID: "PRN_B", adScore: 5, price: 8, quantity: 8},
	})

	result, err := svc.Allocate("g1", 1)
	require.NoError(t, err)

	assert.Equal(t, 10, result.HighTierServed)
	assert.Equal(t, 5, result.LowTierServed)
	assert.InDelta(t, 134.0, result.TotalRevenue, 1e-9)

	byID := make(map[string]types.SalesDetail)
	for _, d := range result.SalesDetails {
		byID[d.ProductionID] = d
	}
	// B is cheaper, so the high tier drains it first.
	assert.Equal(t, 8, byID["PRN_B"].SoldHigh)
	assert.Equal(t, 0, byID["PRN_B"].SoldLow)
	assert.Equal(t, 2, byID["PRN_A"].SoldHigh)
	assert.Equal(t, 5, byID["PRN_A"].SoldLow)

	// Sales are persisted on the production rows.
	var prodA types.ProductionRecord
	require.NoError(t, db.Where("production_id = ?", "PRN_A").First(&prodA).Error)
	assert.Equal(t, 7, prodA.SoldQuantity)
	assert.Equal(t, 2, prodA.SoldToHighTier)
	assert.Equal(t, 5, prodA.SoldToLowTier)
	assert.InDelta(t, 70.0, prodA.Revenue, 1e-9)

	// Cumulative sales counter feeds the next round's reputation.
	var productB types.PlayerProduct
	require.NoError(t, db.Where("product_id = ?", "g1-product-PRN_B").First(&productB).Error)
	assert.Equal(t, 8, productB.TotalSold)
}

// The high tier ranks by reputation first, even when the reputable
// listing is more expensive.
func TestAllocate_HighTierPrefersReputation(t *testing.T) {
	svc, db := setupAllocationTest(t)
	seedFlow(t, db, "g1", 1, 5, 0)
	seedRound(t, db, "g1", 1, []seedListing{
		{productionID: "PRN_A", adScore: 1, price: 5, quantity: 10},
		{productionID: "PRN_B", adScore: 9, price: 20, quantity: 10},
	})

	result, err := svc.Allocate("g1", 1)
	require.NoError(t, err)

	byID := make(map[string]types.SalesDetail)
	for _, d := range result.SalesDetails {
		byID[d.ProductionID] = d
	}
	assert.Equal(t, 5, byID["PRN_B"].SoldHigh)
	assert.Equal(t, 0, byID["PRN_A"].SoldHigh)
}

// Reputation combines the ad score with fan rate scaled cumulative sales.
func TestAllocate_ReputationUsesSalesHistory(t *testing.T) {
	svc, db := setupAllocationTest(t)
	seedFlow(t, db, "g1", 1, 3, 0)
	seedRound(t, db, "g1", 1, []seedListing{
		// 1 + (10/100)*40 = 5
		{productionID: "PRN_A", adScore: 1, totalSold: 40, fanRate: 10, price: 10, quantity: 10},
		// 4 + 0 = 4
		{productionID: "PRN_B", adScore: 4, price: 10, quantity: 10},
	})

	result, err := svc.Allocate("g1", 1)
	require.NoError(t, err)

	byID := make(map[string]types.SalesDetail)
	for _, d := range result.SalesDetails {
		byID[d.ProductionID] = d
	}
	assert.InDelta(t, 5.0, byID["PRN_A"].Reputation, 1e-9)
	assert.Equal(t, 3, byID["PRN_A"].SoldHigh)
	assert.Equal(t, 0, byID["PRN_B"].SoldHigh)
}

// Low-tier customers never buy from a listing without positive reputation,
// even when stock goes unsold.
func TestAllocate_LowTierSkipsZeroReputation(t *testing.T) {
	svc, db := setupAllocationTest(t)
	seedFlow(t, db, "g1", 1, 0, 10)
	seedRound(t, db, "g1", 1, []seedListing{
		{productionID: "PRN_A", adScore: 0, price: 5, quantity: 10},
		{productionID: "PRN_B", adScore: 2, price: 9, quantity: 4},
	})

	result, err := svc.Allocate("g1", 1)
	require.NoError(t, err)

	byID := make(map[string]types.SalesDetail)
	for _, d := range result.SalesDetails {
		byID[d.ProductionID] = d
	}
	assert.Equal(t, 0, byID["PRN_A"].SoldLow)
	assert.Equal(t, 4, byID["PRN_B"].SoldLow)
	assert.Equal(t, 4, result.LowTierServed)
}

// Demand above total stock leaves customers unserved rather than
// overselling any listing.
func TestAllocate_DemandExceedsStock(t *testing.T) {
	svc, db := setupAllocationTest(t)
	seedFlow(t, db, "g1", 1, 100, 50)
	seedRound(t, db, "g1", 1, []seedListing{
		{productionID: "PRN_A", adScore: 3, price: 10, quantity: 6},
	})

	result, err := svc.Allocate("g1", 1)
	require.NoError(t, err)

	assert.Equal(t, 6, result.HighTierServed)
	assert.Equal(t, 0, result.LowTierServed)
	assert.InDelta(t, 60.0, result.TotalRevenue, 1e-9)
}

// Ties on reputation and price resolve on production ID so re-running a
// round with the same inputs always splits sales the same way.
func TestAllocate_DeterministicTieBreak(t *testing.T) {
	svc, db := setupAllocationTest(t)
	seedFlow(t, db, "g1", 1, 3, 0)
	seedRound(t, db, "g1", 1, []seedListing{
		{productionID: "PRN_ZZZ", adScore: 5, price: 10, quantity: 10},
		{productionID: "PRN_AAA", adScore: 5, price: 10, quantity: 10},
	})

	result, err := svc.Allocate("g1", 1)
	require.NoError(t, err)

	byID := make(map[string]types.SalesDetail)
	for _, d := range result.SalesDetails {
		byID[d.ProductionID] = d
	}
	assert.Equal(t, 3, byID["PRN_AAA"].SoldHigh)
	assert.Equal(t, 0, byID["PRN_ZZZ"].SoldHigh)
}

// Listings for locked products are ignored entirely.
func TestAllocate_SkipsLockedProducts(t *testing.T) {
	svc, db := setupAllocationTest(t)
	seedFlow(t, db, "g1", 1, 5, 5)
	seedRound(t, db, "g1", 1, []seedListing{
		{productionID: "PRN_A", adScore: 5, price: 10, quantity: 10},
	})
	require.NoError(t, db.Model(&types.PlayerProduct{}).
		Where("product_id = ?", "g1-product-PRN_A").
		Update("is_unlocked", false).Error)

	result, err := svc.Allocate("g1", 1)
	require.NoError(t, err)
	assert.Equal(t, 0, result.HighTierServed)
	assert.Empty(t, result.SalesDetails)
}

// A round with no productions settles to a zero result, not an error.
func TestAllocate_NoListings(t *testing.T) {
	svc, db := setupAllocationTest(t)
	seedFlow(t, db, "g1", 1, 8, 15)

	result, err := svc.Allocate("g1", 1)
	require.NoError(t, err)
	assert.Equal(t, 0, result.HighTierServed)
	assert.Equal(t, 0, result.LowTierServed)
	assert.Zero(t, result.TotalRevenue)
	assert.Empty(t, result.SalesDetails)
}

// The customer flow row must exist; allocation never invents one.
func TestAllocate_MissingFlow(t *testing.T) {
	svc, _ := setupAllocationTest(t)

	_, err := svc.Allocate("g1", 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, response.ErrNotFound))
}
