package round

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

func (d *Database) CountProductions(playerID string, roundNumber int) (int64, error) {
	var count int64
	err := d.db.Model(&types.ProductionRecord{}).
		Where("player_id = ? AND round_number = ?", playerID, roundNumber).
		Count(&count).Error
	return count, err
}

func (d *Database) GetProductionsForRound(playerID string, roundNumber int) ([]types.ProductionRecord, error) {
	var productions []types.ProductionRecord
	if err := d.db.Where("player_id = ? AND round_number = ?", playerID, roundNumber).Find(&productions).Error; err != nil {
		return nil, err
	}
	return productions, nil
}

func (d *Database) GetCustomerFlow(gameID string, roundNumber int) (*types.CustomerFlow, error) {
	var flow types.CustomerFlow
	if err := d.db.Where("game_id = ? AND round_number = ?", gameID, roundNumber).First(&flow).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &flow, nil
}

func (d *Database) CreateCustomerFlow(flow *types.CustomerFlow) error {
	return d.db.Create(flow).Error
}

func (d *Database) CreditPlayerCash(playerID string, amount float64) error {
	return d.db.Model(&types.Player{}).
		Where("player_id = ?", playerID).
		Update("cash", gorm.Expr("cash + ?", amount)).Error
}

func (d *Database) SaveGame(game *types.Game) error {
	return d.db.Save(game).Error
}
