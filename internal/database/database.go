package database

import (
	"fmt"

	"github.com/teawars/teawars-api/internal/database/migrations"
	"github.com/teawars/teawars-api/internal/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase initializes and returns a new GORM DB connection
func NewDatabase(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := migrations.AddFinanceDetails(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Auto-migrate other schemas
	err = db.AutoMigrate(
		&types.Game{},
		&types.Player{},
		&types.Shop{},
		&types.Employee{},
		&types.Recipe{},
		&types.PlayerProduct{},
		&types.ProductionRecord{},
		&types.CustomerFlow{},
		&types.MaterialPurchase{},
		&types.MarketAction{},
		&types.ResearchLog{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}
