package production

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

func (d *Database) GetPlayerProduct(productID string) (*types.PlayerProduct, error) {
	var product types.PlayerProduct
	if err := d.db.Where("product_id = ?", productID).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: product %s", response.ErrNotFound, productID)
		}
		return nil, err
	}
	return &product, nil
}

func (d *Database) GetProductByRecipe(playerID, recipeID string) (*types.PlayerProduct, error) {
	var product types.PlayerProduct
	err := d.db.Where("player_id = ? AND recipe_id = ?", playerID, recipeID).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

func (d *Database) SaveProduct(product *types.PlayerProduct) error {
	return d.db.Save(product).Error
}

func (d *Database) GetRecipe(recipeID string) (*types.Recipe, error) {
	var recipe types.Recipe
	if err := d.db.Where("recipe_id = ?", recipeID).First(&recipe).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: recipe %s", response.ErrNotFound, recipeID)
		}
		return nil, err
	}
	return &recipe, nil
}

func (d *Database) GetProduction(playerID string, roundNumber int, productID string) (*types.ProductionRecord, error) {
	var production types.ProductionRecord
	err := d.db.Where("player_id = ? AND round_number = ? AND product_id = ?", playerID, roundNumber, productID).
		First(&production).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &production, nil
}

func (d *Database) GetProductionsForRound(playerID string, roundNumber int) ([]types.ProductionRecord, error) {
	var productions []types.ProductionRecord
	if err := d.db.Where("player_id = ? AND round_number = ?", playerID, roundNumber).Find(&productions).Error; err != nil {
		return nil, err
	}
	return productions, nil
}

func (d *Database) CreateProduction(production *types.ProductionRecord) error {
	return d.db.Create(production).Error
}

func (d *Database) SavePlayer(player *types.Player) error {
	return d.db.Save(player).Error
}

func (d *Database) CreateResearchLog(entry *types.ResearchLog) error {
	return d.db.Create(entry).Error
}
