package round

import (
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teawars/teawars-api/internal/config"
	"github.com/teawars/teawars-api/internal/types"
	"github.com/teawars/teawars-api/pkg/response"
	"gorm.io/gorm"
)

func setupRoundTest(t *testing.T) (*Service, *gorm.DB) {
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

func seedGame(t *testing.T, db *gorm.DB, currentRound int) {
	t.Helper()
	require.NoError(t, db.Create(&types.Game{
		GameID:       "g1",
		Status:       types.GameStatusInProgress,
		CurrentRound: currentRound,
		TotalRounds:  config.TotalRounds,
	}).Error)
}

// seedPlayerWithPlan creates an active player with one unlocked product and
// a production plan for the given round.
func seedPlayerWithPlan(t *testing.T, db *gorm.DB, playerID string, round, quantity int, price, adScore float64) {
	t.Helper()
	require.NoError(t, db.Create(&types.Player{
		PlayerID: playerID,
		GameID:   "g1",
		Nickname: "Nick " + playerID,
		Cash:     config.StartingCash,
		IsActive: true,
	}).Error)
	require.NoError(t, db.Create(&types.Recipe{
		RecipeID:    "rcp-" + playerID,
		GameID:      "g1",
		Name:        "Tea " + playerID,
		BaseFanRate: 5,
	}).Error)
	require.NoError(t, db.Create(&types.PlayerProduct{
		ProductID:      "prd-" + playerID,
		PlayerID:       playerID,
		RecipeID:       "rcp-" + playerID,
		IsUnlocked:     true,
		CurrentAdScore: adScore,
	}).Error)
	require.NoError(t, db.Create(&types.ProductionRecord{
		ProductionID:     "prn-" + playerID,
		PlayerID:         playerID,
		RoundNumber:      round,
		ProductID:        "prd-" + playerID,
		ProducedQuantity: quantity,
		Price:            price,
	}).Error)
}

func TestAdvanceRound(t *testing.T) {
	svc, db := setupRoundTest(t)
	seedGame(t, db, 1)
	seedPlayerWithPlan(t, db, "p1", 1, 30, 10, 2)
	seedPlayerWithPlan(t, db, "p2", 1, 30, 12, 1)

	result, err := svc.AdvanceRound("g1")
	require.NoError(t, err)

	assert.Equal(t, 1, result.PreviousRound)
	assert.Equal(t, 2, result.CurrentRound)
	assert.False(t, result.GameFinished)

	// The flow comes from the round-1 script entry.
	assert.Equal(t, config.CustomerFlowScript[1].High, result.CustomerFlow.HighTierCustomers)
	assert.Equal(t, config.CustomerFlowScript[1].Low, result.CustomerFlow.LowTierCustomers)

	// All 23 customers fit within the 60 units of stock.
	require.NotNil(t, result.AllocationResult)
	assert.Equal(t, 8, result.AllocationResult.HighTierServed)
	assert.Equal(t, 15, result.AllocationResult.LowTierServed)

	var game types.Game
	require.NoError(t, db.Where("game_id = ?", "g1").First(&game).Error)
	assert.Equal(t, 2, game.CurrentRound)
	assert.Equal(t, types.GameStatusInProgress, game.Status)

	// Each player's cash grew by exactly their settled revenue.
	for _, playerID := range []string{"p1", "p2"} {
		var prod types.ProductionRecord
		require.NoError(t, db.Where("production_id = ?", "prn-"+playerID).First(&prod).Error)
		var player types.Player
		require.NoError(t, db.Where("player_id = ?", playerID).First(&player).Error)
		assert.InDelta(t, config.StartingCash+prod.Revenue, player.Cash, 1e-9, "player %s", playerID)
	}
}

// A pre-seeded flow row wins over the script: advancement must not
// overwrite or duplicate it.
func TestAdvanceRound_ReusesExistingFlow(t *testing.T) {
	svc, db := setupRoundTest(t)
	seedGame(t, db, 1)
	seedPlayerWithPlan(t, db, "p1", 1, 30, 10, 2)
	require.NoError(t, db.Create(&types.CustomerFlow{
		GameID:            "g1",
		RoundNumber:       1,
		HighTierCustomers: 3,
		LowTierCustomers:  1,
	}).Error)

	result, err := svc.AdvanceRound("g1")
	require.NoError(t, err)
	assert.Equal(t, 3, result.CustomerFlow.HighTierCustomers)
	assert.Equal(t, 4, result.AllocationResult.HighTierServed+result.AllocationResult.LowTierServed)

	var count int64
	require.NoError(t, db.Model(&types.CustomerFlow{}).
		Where("game_id = ? AND round_number = ?", "g1", 1).
		Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

// Advancement refuses to start while any active player has no plan, and
// the error names the missing player.
func TestAdvanceRound_MissingSubmission(t *testing.T) {
	svc, db := setupRoundTest(t)
	seedGame(t, db, 1)
	seedPlayerWithPlan(t, db, "p1", 1, 30, 10, 2)
	require.NoError(t, db.Create(&types.Player{
		PlayerID: "p2",
		GameID:   "g1",
		Nickname: "Laggard",
		IsActive: true,
	}).Error)

	_, err := svc.AdvanceRound("g1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, response.ErrValidation))
	assert.Contains(t, err.Error(), "Laggard")

	// Nothing moved.
	var game types.Game
	require.NoError(t, db.Where("game_id = ?", "g1").First(&game).Error)
	assert.Equal(t, 1, game.CurrentRound)
}

// Inactive players do not block advancement.
func TestAdvanceRound_IgnoresInactivePlayers(t *testing.T) {
	svc, db := setupRoundTest(t)
	seedGame(t, db, 1)
	seedPlayerWithPlan(t, db, "p1", 1, 30, 10, 2)
	require.NoError(t, db.Create(&types.Player{
		PlayerID: "p2",
		GameID:   "g1",
		Nickname: "Ghost",
		IsActive: false,
	}).Error)

	_, err := svc.AdvanceRound("g1")
	require.NoError(t, err)
}

// Settling the last scripted round finishes the game.
func TestAdvanceRound_FinalRoundFinishesGame(t *testing.T) {
	svc, db := setupRoundTest(t)
	seedGame(t, db, config.TotalRounds)
	seedPlayerWithPlan(t, db, "p1", config.TotalRounds, 30, 10, 2)

	result, err := svc.AdvanceRound("g1")
	require.NoError(t, err)
	assert.True(t, result.GameFinished)
	assert.Equal(t, config.TotalRounds+1, result.CurrentRound)

	var game types.Game
	require.NoError(t, db.Where("game_id = ?", "g1").First(&game).Error)
	assert.Equal(t, types.GameStatusFinished, game.Status)
}

// A finished game cannot advance again.
func TestAdvanceRound_FinishedGame(t *testing.T) {
	svc, db := setupRoundTest(t)
	require.NoError(t, db.Create(&types.Game{
		GameID:       "g1",
		Status:       types.GameStatusFinished,
		CurrentRound: config.TotalRounds + 1,
		TotalRounds:  config.TotalRounds,
	}).Error)

	_, err := svc.AdvanceRound("g1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, response.ErrValidation))
}

func TestAdvanceRound_UnknownGame(t *testing.T) {
	svc, _ := setupRoundTest(t)

	_, err := svc.AdvanceRound("nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, response.ErrNotFound))
}

func TestGetRoundSummary(t *testing.T) {
	svc, db := setupRoundTest(t)
	seedGame(t, db, 1)
	seedPlayerWithPlan(t, db, "p1", 1, 30, 10, 2)

	_, err := svc.AdvanceRound("g1")
	require.NoError(t, err)

	summary, err := svc.GetRoundSummary("g1", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.RoundNumber)
	require.Len(t, summary.Players, 1)
	assert.Equal(t, "p1", summary.Players[0].PlayerID)
	assert.Equal(t, 23, summary.Players[0].TotalSold)
	assert.InDelta(t, 230.0, summary.Players[0].TotalRevenue, 1e-9)
}

func TestGetRoundSummary_UnsettledRound(t *testing.T) {
	svc, db := setupRoundTest(t)
	seedGame(t, db, 1)

	_, err := svc.GetRoundSummary("g1", 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, response.ErrNotFound))
}
