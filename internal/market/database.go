package market

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

func (d *Database) GetShopByPlayer(playerID string) (*types.Shop, error) {
	var shop types.Shop
	if err := d.db.Where("player_id = ?", playerID).First(&shop).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: shop for player %s", response.ErrNotFound, playerID)
		}
		return nil, err
	}
	return &shop, nil
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

func (d *Database) GetPurchase(playerID string, roundNumber int, material string) (*types.MaterialPurchase, error) {
	var purchase types.MaterialPurchase
	err := d.db.Where("player_id = ? AND round_number = ? AND material_type = ?", playerID, roundNumber, material).
		First(&purchase).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &purchase, nil
}

func (d *Database) CreatePurchase(purchase *types.MaterialPurchase) error {
	return d.db.Create(purchase).Error
}

func (d *Database) CreateMarketAction(action *types.MarketAction) error {
	return d.db.Create(action).Error
}

func (d *Database) SavePlayer(player *types.Player) error {
	return d.db.Save(player).Error
}

func (d *Database) SaveShop(shop *types.Shop) error {
	return d.db.Save(shop).Error
}

func (d *Database) SaveProduct(product *types.PlayerProduct) error {
	return d.db.Save(product).Error
}
