package allocation

import (
	"errors"
	"fmt"

	"github.com/teawars/teawars-api/internal/types"
	"github.com/teawars/teawars-api/pkg/response"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// WithTx returns a Database bound to the given transaction handle so a
// caller can run the allocator inside its own atomic unit.
func (d *Database) WithTx(tx *gorm.DB) *Database {
	return &Database{db: tx}
}

func (d *Database) GetCustomerFlow(gameID string, roundNumber int) (*types.CustomerFlow, error) {
	var flow types.CustomerFlow
	if err := d.db.Where("game_id = ? AND round_number = ?", gameID, roundNumber).First(&flow).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: customer flow for game %s round %d", response.ErrNotFound, gameID, roundNumber)
		}
		return nil, err
	}
	return &flow, nil
}

func (d *Database) GetActivePlayers(gameID string) ([]types.Player, error) {
	var players []types.Player
	if err := d.db.Where("game_id = ? AND is_active = ?", gameID, true).Find(&players).Error; err != nil {
		return nil, err
	}
	return players, nil
}

func (d *Database) GetProductionsForRound(playerID string, roundNumber int) ([]types.ProductionRecord, error) {
	var productions []types.ProductionRecord
	if err := d.db.Where("player_id = ? AND round_number = ?", playerID, roundNumber).Find(&productions).Error; err != nil {
		return nil, err
	}
	return productions, nil
}

// GetPlayerProduct returns nil without error when the product does not
// exist; the allocator silently skips dangling production references.
func (d *Database) GetPlayerProduct(productID string) (*types.PlayerProduct, error) {
	var product types.PlayerProduct
	if err := d.db.Where("product_id = ?", productID).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

func (d *Database) GetRecipe(recipeID string) (*types.Recipe, error) {
	var recipe types.Recipe
	if err := d.db.Where("recipe_id = ?", recipeID).First(&recipe).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &recipe, nil
}

// SaveSales writes a listing's settlement outcome to its production row
// and bumps the product's cumulative sales counter.
func (d *Database) SaveSales(productionID string, soldHigh, soldLow int, revenue float64) error {
	totalSold := soldHigh + soldLow
	result := d.db.Model(&types.ProductionRecord{}).
		Where("production_id = ?", productionID).
		Updates(map[string]interface{}{
			"sold_quantity":     totalSold,
			"sold_to_high_tier": soldHigh,
			"sold_to_low_tier":  soldLow,
			"revenue":           revenue,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("production %s not found while saving sales", productionID)
	}
	return nil
}

func (d *Database) IncrementProductTotalSold(productID string, sold int) error {
	return d.db.Model(&types.PlayerProduct{}).
		Where("product_id = ?", productID).
		Update("total_sold", gorm.Expr("total_sold + ?", sold)).Error
}
