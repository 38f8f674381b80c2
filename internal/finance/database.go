package finance

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

func (d *Database) WithTx(tx *gorm.DB) *Database {
	return &Database{db: tx}
}

func (d *Database) GetPlayer(playerID string) (*types.Player, error) {
	var player types.Player
	if err := d.db.Where("player_id = ?", playerID).First(&player).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: player %s", response.ErrNotFound, playerID)
		}
		return nil, err
	}
	return &player, nil
}

func (d *Database) GetGame(gameID string) (*types.Game, error) {
	var game types.Game
	if err := d.db.Where("game_id = ?", gameID).First(&game).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: game %s", response.ErrNotFound, gameID)
		}
		return nil, err
	}
	return &game, nil
}

func (d *Database) GetActivePlayers(gameID string) ([]types.Player, error) {
	var players []types.Player
	if err := d.db.Where("game_id = ? AND is_active = ?", gameID, true).Find(&players).Error; err != nil {
		return nil, err
	}
	return players, nil
}

// GetRecord returns nil without error when no ledger row exists yet for
// the (player, round) pair.
func (d *Database) GetRecord(playerID string, roundNumber int) (*FinanceRecord, error) {
	var record FinanceRecord
	err := d.db.Where("player_id = ? AND round_number = ?", playerID, roundNumber).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (d *Database) GetRecordsByPlayer(playerID string) ([]FinanceRecord, error) {
	var records []FinanceRecord
	if err := d.db.Where("player_id = ?", playerID).Order("round_number ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (d *Database) CreateRecord(record *FinanceRecord) error {
	return d.db.Create(record).Error
}

func (d *Database) SavePlayer(player *types.Player) error {
	return d.db.Save(player).Error
}

func (d *Database) GetProductionsForRound(playerID string, roundNumber int) ([]types.ProductionRecord, error) {
	var productions []types.ProductionRecord
	if err := d.db.Where("player_id = ? AND round_number = ?", playerID, roundNumber).Find(&productions).Error; err != nil {
		return nil, err
	}
	return productions, nil
}

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

func (d *Database) GetShopByPlayer(playerID string) (*types.Shop, error) {
	var shop types.Shop
	if err := d.db.Where("player_id = ?", playerID).First(&shop).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &shop, nil
}

func (d *Database) GetActiveEmployees(shopID string) ([]types.Employee, error) {
	var employees []types.Employee
	if err := d.db.Where("shop_id = ? AND is_active = ?", shopID, true).Find(&employees).Error; err != nil {
		return nil, err
	}
	return employees, nil
}

func (d *Database) GetMarketActions(playerID string, roundNumber int) ([]types.MarketAction, error) {
	var actions []types.MarketAction
	if err := d.db.Where("player_id = ? AND round_number = ?", playerID, roundNumber).Find(&actions).Error; err != nil {
		return nil, err
	}
	return actions, nil
}

func (d *Database) GetResearchLogs(playerID string, roundNumber int) ([]types.ResearchLog, error) {
	var logs []types.ResearchLog
	if err := d.db.Where("player_id = ? AND round_number = ?", playerID, roundNumber).Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

func (d *Database) GetPurchases(playerID string, roundNumber int) ([]types.MaterialPurchase, error) {
	var purchases []types.MaterialPurchase
	if err := d.db.Where("player_id = ? AND round_number = ?", playerID, roundNumber).Find(&purchases).Error; err != nil {
		return nil, err
	}
	return purchases, nil
}
