package market

import (
	"math"

	"github.com/teawars/teawars-api/internal/config"
)

// DiscountRate returns the bulk-purchase multiplier for a quantity:
// every DiscountTierSize units earns one tier of DiscountPerTier off,
// capped at MaxDiscountTiers (so the rate never drops below 0.5).
func DiscountRate(quantity int) float64 {
	if quantity <= 0 {
		return 1.0
	}
	tier := quantity / config.DiscountTierSize
	if tier > config.MaxDiscountTiers {
		tier = config.MaxDiscountTiers
	}
	return 1.0 - float64(tier)*config.DiscountPerTier
}

// DiscountPrice returns the discounted unit price for a bulk purchase.
// A quantity of zero or less returns the base price unchanged.
func DiscountPrice(quantity int, baseUnitPrice float64) float64 {
	return baseUnitPrice * DiscountRate(quantity)
}

// TotalCost returns quantity × discounted unit price, unrounded.
// Rounding happens only at the reporting boundary so intermediate
// arithmetic does not compound rounding error.
func TotalCost(quantity int, baseUnitPrice float64) float64 {
	return float64(quantity) * DiscountPrice(quantity, baseUnitPrice)
}

// MaterialCost is one material's line in a cost report.
type MaterialCost struct {
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Total     float64 `json:"total"`
}

// MaterialCostReport aggregates discounted costs across material types.
type MaterialCostReport struct {
	Materials map[string]MaterialCost `json:"materials"`
	TotalCost float64                 `json:"total_cost"`
}

// MaterialCosts prices a set of material needs, applying the volume
// discount independently per material. Unknown materials and non-positive
// quantities are skipped. Monetary outputs are rounded to 2 decimals.
func MaterialCosts(needs map[string]int) *MaterialCostReport {
	report := &MaterialCostReport{Materials: make(map[string]MaterialCost)}

	total := 0.0
	for material, quantity := range needs {
		if quantity <= 0 {
			continue
		}
		basePrice, ok := config.MaterialBasePrices[material]
		if !ok || basePrice <= 0 {
			continue
		}

		unitPrice := DiscountPrice(quantity, basePrice)
		lineTotal := float64(quantity) * unitPrice

		report.Materials[material] = MaterialCost{
			Quantity:  quantity,
			UnitPrice: round2(unitPrice),
			Total:     round2(lineTotal),
		}
		total += lineTotal
	}

	report.TotalCost = round2(total)
	return report
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
