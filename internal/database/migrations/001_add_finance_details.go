package migrations

import (
	"github.com/teawars/teawars-api/internal/finance"
	"gorm.io/gorm"
)

// AddFinanceDetails creates the finance records table with the detailed
// JSON breakdown columns (revenue items, material purchases, per-product
// profit lines) used by the round reports.
func AddFinanceDetails(db *gorm.DB) error {
	if err := db.AutoMigrate(&finance.FinanceRecord{}); err != nil {
		return err
	}

	return nil
}
