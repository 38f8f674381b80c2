package allocation

import "github.com/teawars/teawars-api/internal/types"

// Reputation computes a product's ranking score:
//
//	reputation = current_ad_score + (base_fan_rate/100) × total_sold
//
// total_sold is the cumulative sales counter carried on the product,
// updated by the allocator after each round, so reputation compounds with
// past success.
func Reputation(product *types.PlayerProduct, recipe *types.Recipe) float64 {
	fanRate := recipe.BaseFanRate / 100.0
	return product.CurrentAdScore + fanRate*float64(product.TotalSold)
}
