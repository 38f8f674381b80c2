package game

import (
	"errors"
	"fmt"
	"time"

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

func (d *Database) CreateGame(game *types.Game) error {
	return d.db.Create(game).Error
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

func (d *Database) ListGames() ([]types.Game, error) {
	var games []types.Game
	if err := d.db.Order("created_at DESC").Find(&games).Error; err != nil {
		return nil, err
	}
	return games, nil
}

func (d *Database) CreateRecipe(recipe *types.Recipe) error {
	return d.db.Create(recipe).Error
}

func (d *Database) GetRecipesByGame(gameID string) ([]types.Recipe, error) {
	var recipes []types.Recipe
	if err := d.db.Where("game_id = ?", gameID).Find(&recipes).Error; err != nil {
		return nil, err
	}
	return recipes, nil
}

func (d *Database) CreatePlayer(player *types.Player) error {
	return d.db.Create(player).Error
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

func (d *Database) GetPlayersByGame(gameID string) ([]types.Player, error) {
	var players []types.Player
	if err := d.db.Where("game_id = ?", gameID).Find(&players).Error; err != nil {
		return nil, err
	}
	return players, nil
}

func (d *Database) SavePlayer(player *types.Player) error {
	return d.db.Save(player).Error
}

func (d *Database) TouchPlayer(playerID string) error {
	return d.db.Model(&types.Player{}).
		Where("player_id = ?", playerID).
		Update("last_seen_at", time.Now()).Error
}

// GetInactivePlayers returns active players in running games whose last
// activity predates the cutoff.
func (d *Database) GetInactivePlayers(cutoff time.Time) ([]types.Player, error) {
	var players []types.Player
	err := d.db.
		Joins("JOIN games ON games.game_id = players.game_id").
		Where("players.is_active = ? AND games.status = ? AND players.last_seen_at < ?",
			true, types.GameStatusInProgress, cutoff).
		Find(&players).Error
	if err != nil {
		return nil, err
	}
	return players, nil
}

func (d *Database) CreateShop(shop *types.Shop) error {
	return d.db.Create(shop).Error
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

func (d *Database) CreateEmployee(employee *types.Employee) error {
	return d.db.Create(employee).Error
}

func (d *Database) GetEmployee(employeeID string) (*types.Employee, error) {
	var employee types.Employee
	if err := d.db.Where("employee_id = ?", employeeID).First(&employee).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: employee %s", response.ErrNotFound, employeeID)
		}
		return nil, err
	}
	return &employee, nil
}

func (d *Database) GetEmployeesByShop(shopID string) ([]types.Employee, error) {
	var employees []types.Employee
	if err := d.db.Where("shop_id = ?", shopID).Find(&employees).Error; err != nil {
		return nil, err
	}
	return employees, nil
}

func (d *Database) SaveEmployee(employee *types.Employee) error {
	return d.db.Save(employee).Error
}

func (d *Database) CreatePlayerProduct(product *types.PlayerProduct) error {
	return d.db.Create(product).Error
}

func (d *Database) GetProductsByPlayer(playerID string) ([]types.PlayerProduct, error) {
	var products []types.PlayerProduct
	if err := d.db.Where("player_id = ?", playerID).Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}
