package finance

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teawars/teawars-api/internal/types"
	"github.com/teawars/teawars-api/pkg/response"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func setupFinanceTest(t *testing.T) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&types.Game{},
		&types.Player{},
		&types.Shop{},
		&types.Employee{},
		&types.Recipe{},
		&types.PlayerProduct{},
		&types.ProductionRecord{},
		&types.MaterialPurchase{},
		&types.MarketAction{},
		&types.ResearchLog{},
		&FinanceRecord{},
	))
	return NewService(db), db
}

func seedLedgerPlayer(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Create(&types.Game{
		GameID:       "g1",
		Status:       types.GameStatusInProgress,
		CurrentRound: 2,
		TotalRounds:  10,
	}).Error)
	require.NoError(t, db.Create(&types.Player{
		PlayerID: "p1",
		GameID:   "g1",
		Nickname: "Pearl",
		Cash:     10000,
		IsActive: true,
	}).Error)
	require.NoError(t, db.Create(&types.Shop{
		ShopID:   "s1",
		PlayerID: "p1",
		Rent:     300,
	}).Error)
}

// seedSettledProduction writes a production row as the allocator leaves it
// after settlement.
func seedSettledProduction(t *testing.T, db *gorm.DB, round int, revenue float64) {
	t.Helper()
	materials, err := json.Marshal(map[string]int{"tea": 1, "milk": 1})
	require.NoError(t, err)
	db.Where("recipe_id = ?", "rcp1").FirstOrCreate(&types.Recipe{
		RecipeID:  "rcp1",
		GameID:    "g1",
		Name:      "Classic Milk Tea",
		Materials: datatypes.JSON(materials),
	})
	db.Where("product_id = ?", "prd1").FirstOrCreate(&types.PlayerProduct{
		ProductID:  "prd1",
		PlayerID:   "p1",
		RecipeID:   "rcp1",
		IsUnlocked: true,
	})
	sold := int(revenue / 10)
	require.NoError(t, db.Create(&types.ProductionRecord{
		ProductionID:     "prn-r" + string(rune('0'+round)),
		PlayerID:         "p1",
		RoundNumber:      round,
		ProductID:        "prd1",
		ProducedQuantity: sold,
		Price:            10,
		SoldQuantity:     sold,
		SoldToHighTier:   sold,
		Revenue:          revenue,
	}).Error)
}

func TestGenerateFinanceRecord(t *testing.T) {
	svc, db := setupFinanceTest(t)
	seedLedgerPlayer(t, db)
	seedSettledProduction(t, db, 1, 450)
	require.NoError(t, db.Create(&types.MaterialPurchase{
		PlayerID:     "p1",
		RoundNumber:  1,
		MaterialType: "tea",
		Quantity:     50,
		UnitPrice:    5.4,
		DiscountRate: 0.9,
		TotalCost:    270,
	}).Error)
	require.NoError(t, db.Create(&types.MarketAction{
		ActionID:    "a1",
		PlayerID:    "p1",
		RoundNumber: 1,
		ActionType:  types.ActionAdvertisement,
		Cost:        200,
	}).Error)

	record, err := svc.GenerateFinanceRecord("p1", 1)
	require.NoError(t, err)

	assert.InDelta(t, 450.0, record.TotalRevenue, 1e-9)
	assert.InDelta(t, 300.0, record.RentExpense, 1e-9)
	assert.InDelta(t, 270.0, record.MaterialExpense, 1e-9)
	assert.InDelta(t, 200.0, record.AdExpense, 1e-9)
	assert.InDelta(t, 770.0, record.TotalExpense, 1e-9)
	assert.InDelta(t, -320.0, record.RoundProfit, 1e-9)
	assert.InDelta(t, -320.0, record.CumulativeProfit, 1e-9)

	// The revenue breakdown names the product through its recipe.
	var items []RevenueItem
	require.NoError(t, json.Unmarshal(record.RevenueBreakdown, &items))
	require.Len(t, items, 1)
	assert.Equal(t, "Classic Milk Tea", items[0].ProductName)

	// Material costing joins recipe requirements with paid unit prices:
	// 45 units produced, 1 tea each at 5.4 = 243; milk was never bought.
	var details []ProductDetail
	require.NoError(t, json.Unmarshal(record.ProductDetails, &details))
	require.Len(t, details, 1)
	assert.InDelta(t, 243.0, details[0].MaterialCost, 1e-9)
	assert.InDelta(t, 207.0, details[0].Profit, 1e-9)

	// The running total lands on the player row.
	var player types.Player
	require.NoError(t, db.Where("player_id = ?", "p1").First(&player).Error)
	assert.InDelta(t, -320.0, player.TotalProfit, 1e-9)
}

// Generating twice returns the stored record without writing anything new.
func TestGenerateFinanceRecord_Idempotent(t *testing.T) {
	svc, db := setupFinanceTest(t)
	seedLedgerPlayer(t, db)
	seedSettledProduction(t, db, 1, 450)

	first, err := svc.GenerateFinanceRecord("p1", 1)
	require.NoError(t, err)

	// Mutate the inputs; a second call must not recompute.
	require.NoError(t, db.Model(&types.ProductionRecord{}).
		Where("player_id = ?", "p1").
		Update("revenue", 9999).Error)

	second, err := svc.GenerateFinanceRecord("p1", 1)
	require.NoError(t, err)
	assert.Equal(t, first.RecordID, second.RecordID)
	assert.InDelta(t, first.TotalRevenue, second.TotalRevenue, 1e-9)

	var count int64
	require.NoError(t, db.Model(&FinanceRecord{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

// Cumulative profit chains off the previous round's stored value.
func TestGenerateFinanceRecord_CumulativeChain(t *testing.T) {
	svc, db := setupFinanceTest(t)
	seedLedgerPlayer(t, db)
	seedSettledProduction(t, db, 1, 450) // profit 450 - 300 rent = 150
	seedSettledProduction(t, db, 2, 450)

	r1, err := svc.GenerateFinanceRecord("p1", 1)
	require.NoError(t, err)
	assert.InDelta(t, 150.0, r1.RoundProfit, 1e-9)
	assert.InDelta(t, 150.0, r1.CumulativeProfit, 1e-9)

	r2, err := svc.GenerateFinanceRecord("p1", 2)
	require.NoError(t, err)
	assert.InDelta(t, 150.0, r2.RoundProfit, 1e-9)
	assert.InDelta(t, 300.0, r2.CumulativeProfit, 1e-9)

	var player types.Player
	require.NoError(t, db.Where("player_id = ?", "p1").First(&player).Error)
	assert.InDelta(t, 300.0, player.TotalProfit, 1e-9)
}

// Round 1 has no predecessor: the chain starts at zero.
func TestGenerateFinanceRecord_FirstRoundBaseline(t *testing.T) {
	svc, db := setupFinanceTest(t)
	seedLedgerPlayer(t, db)
	seedSettledProduction(t, db, 1, 300)

	record, err := svc.GenerateFinanceRecord("p1", 1)
	require.NoError(t, err)
	assert.InDelta(t, record.RoundProfit, record.CumulativeProfit, 1e-9)
}

func TestGenerateFinanceRecord_UnknownPlayer(t *testing.T) {
	svc, _ := setupFinanceTest(t)

	_, err := svc.GenerateFinanceRecord("nope", 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, response.ErrNotFound))
}

func TestGetFinanceRecord_Missing(t *testing.T) {
	svc, db := setupFinanceTest(t)
	seedLedgerPlayer(t, db)

	_, err := svc.GetFinanceRecord("p1", 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, response.ErrNotFound))
}

// Rankings sort by profit descending; equal profits resolve on ascending
// player ID so the leaderboard never shuffles between reads.
func TestGetProfitSummary_Ranking(t *testing.T) {
	svc, db := setupFinanceTest(t)
	require.NoError(t, db.Create(&types.Game{
		GameID:       "g1",
		Status:       types.GameStatusInProgress,
		CurrentRound: 5,
		TotalRounds:  10,
	}).Error)
	for _, p := range []types.Player{
		{PlayerID: "p-b", GameID: "g1", Nickname: "B", TotalProfit: 500, IsActive: true},
		{PlayerID: "p-a", GameID: "g1", Nickname: "A", TotalProfit: 500, IsActive: true},
		{PlayerID: "p-c", GameID: "g1", Nickname: "C", TotalProfit: 300, IsActive: true},
		{PlayerID: "p-d", GameID: "g1", Nickname: "D", TotalProfit: 900, IsActive: false},
	} {
		require.NoError(t, db.Create(&p).Error)
	}

	summary, err := svc.GetProfitSummary("g1")
	require.NoError(t, err)
	assert.Equal(t, 5, summary.CurrentRound)

	// Inactive players stay off the board.
	require.Len(t, summary.Players, 3)
	assert.Equal(t, "p-a", summary.Players[0].PlayerID)
	assert.Equal(t, 1, summary.Players[0].Rank)
	assert.Equal(t, "p-b", summary.Players[1].PlayerID)
	assert.Equal(t, 2, summary.Players[1].Rank)
	assert.Equal(t, "p-c", summary.Players[2].PlayerID)
	assert.Equal(t, 3, summary.Players[2].Rank)
}

func TestGetDetailedReport(t *testing.T) {
	svc, db := setupFinanceTest(t)
	seedLedgerPlayer(t, db)
	seedSettledProduction(t, db, 1, 450)
	seedSettledProduction(t, db, 2, 450)

	_, err := svc.GenerateFinanceRecord("p1", 1)
	require.NoError(t, err)
	_, err = svc.GenerateFinanceRecord("p1", 2)
	require.NoError(t, err)

	report, err := svc.GetDetailedReport("p1")
	require.NoError(t, err)
	require.Len(t, report.Rounds, 2)
	assert.Equal(t, 1, report.Rounds[0].Round)
	assert.Equal(t, 2, report.Rounds[1].Round)
	assert.InDelta(t, 300.0, report.Rounds[1].CumulativeProfit, 1e-9)
	assert.InDelta(t, 300.0, report.TotalProfit, 1e-9)
}

// The per-round detail report reconstructs the sectioned breakdown from
// the stored ledger entry.
func TestGetDetailedRoundReport(t *testing.T) {
	svc, db := setupFinanceTest(t)
	seedLedgerPlayer(t, db)
	seedSettledProduction(t, db, 1, 450)
	require.NoError(t, db.Create(&types.MaterialPurchase{
		PlayerID:     "p1",
		RoundNumber:  1,
		MaterialType: "tea",
		Quantity:     50,
		UnitPrice:    5.4,
		DiscountRate: 0.9,
		TotalCost:    270,
	}).Error)
	require.NoError(t, db.Create(&types.MarketAction{
		ActionID:    "a1",
		PlayerID:    "p1",
		RoundNumber: 1,
		ActionType:  types.ActionAdvertisement,
		Cost:        200,
	}).Error)

	_, err := svc.GenerateFinanceRecord("p1", 1)
	require.NoError(t, err)

	report, err := svc.GetDetailedRoundReport("p1", 1)
	require.NoError(t, err)

	assert.Equal(t, "p1", report.PlayerID)
	assert.Equal(t, 1, report.RoundNumber)

	assert.InDelta(t, 450.0, report.Revenue.Total, 1e-9)
	require.Len(t, report.Revenue.Products, 1)
	assert.Equal(t, "Classic Milk Tea", report.Revenue.Products[0].ProductName)

	assert.InDelta(t, 300.0, report.Expenses.Fixed.Rent, 1e-9)
	assert.InDelta(t, 300.0, report.Expenses.Fixed.Total, 1e-9)
	assert.InDelta(t, 270.0, report.Expenses.Materials.Total, 1e-9)
	require.Contains(t, report.Expenses.Materials.Purchased, "tea")
	assert.Equal(t, 50, report.Expenses.Materials.Purchased["tea"].Quantity)
	assert.InDelta(t, 200.0, report.Expenses.Temporary.Advertisement, 1e-9)
	assert.InDelta(t, 200.0, report.Expenses.Temporary.Total, 1e-9)
	assert.InDelta(t, 770.0, report.Expenses.Total, 1e-9)

	assert.InDelta(t, -320.0, report.Profit.Round, 1e-9)
	assert.InDelta(t, -320.0, report.Profit.Cumulative, 1e-9)
}

func TestGetDetailedRoundReport_Missing(t *testing.T) {
	svc, db := setupFinanceTest(t)
	seedLedgerPlayer(t, db)

	_, err := svc.GetDetailedRoundReport("p1", 3)
	assert.True(t, errors.Is(err, response.ErrNotFound))
}

// The report route serves the full series, and the round-numbered
// sub-route serves the single-round detail.
func TestReportRoutes(t *testing.T) {
	svc, db := setupFinanceTest(t)
	seedLedgerPlayer(t, db)
	seedSettledProduction(t, db, 1, 450)
	_, err := svc.GenerateFinanceRecord("p1", 1)
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	handlers := NewGinHandlers(svc)
	router.GET("/players/:player_id/report", handlers.GetDetailedReportHandler())
	router.GET("/players/:player_id/report/:round_number", handlers.GetDetailedRoundReportHandler())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/players/p1/report", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"rounds"`)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/players/p1/report/1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"temporary"`)
	assert.Contains(t, w.Body.String(), `"cumulative"`)
}
