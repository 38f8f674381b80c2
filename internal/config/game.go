package config

// Game balance constants. These are fixed for every game; they are not
// tunable per request, only at deploy time.
const (
	TotalRounds = 10

	StartingCash = 10000.0

	// Bulk material discounts: every DiscountTierSize units bought drops
	// the unit price by DiscountPerTier, at most MaxDiscountTiers times.
	DiscountTierSize = 50
	MaxDiscountTiers = 5
	DiscountPerTier  = 0.10

	AdCampaignCost     = 200.0
	AdScorePerCampaign = 1.0
	MarketResearchCost = 150.0
	DecorationCost     = 500.0

	DefaultShopRent = 300.0
)

// MaterialBasePrices lists the undiscounted per-unit price of each raw
// material type.
var MaterialBasePrices = map[string]float64{
	"tea":        6.0,
	"milk":       4.0,
	"fruit":      8.0,
	"ingredient": 3.0,
}

// FlowEntry is one round's customer volumes.
type FlowEntry struct {
	High int
	Low  int
}

// CustomerFlowScript maps round number to that round's customer pools.
// Rounds outside this table are a configuration error, not a retryable
// condition.
var CustomerFlowScript = map[int]FlowEntry{
	1:  {High: 8, Low: 15},
	2:  {High: 10, Low: 18},
	3:  {High: 12, Low: 20},
	4:  {High: 15, Low: 24},
	5:  {High: 18, Low: 28},
	6:  {High: 20, Low: 30},
	7:  {High: 24, Low: 34},
	8:  {High: 28, Low: 38},
	9:  {High: 32, Low: 44},
	10: {High: 40, Low: 50},
}

// RecipeSeed describes one of the default recipes every new player starts
// with (or can unlock through product research).
type RecipeSeed struct {
	Name           string
	BaseFanRate    float64 // percent, converted to a fraction in scoring
	SuggestedPrice float64
	ResearchCost   float64 // 0 means unlocked from the start
	Materials      map[string]int
}

// DefaultRecipes seeds the recipe table when a game is created.
var DefaultRecipes = []RecipeSeed{
	{
		Name:           "Classic Milk Tea",
		BaseFanRate:    5,
		SuggestedPrice: 10,
		ResearchCost:   0,
		Materials:      map[string]int{"tea": 1, "milk": 1},
	},
	{
		Name:           "Fruit Tea",
		BaseFanRate:    8,
		SuggestedPrice: 12,
		ResearchCost:   0,
		Materials:      map[string]int{"tea": 1, "fruit": 2},
	},
	{
		Name:           "Brown Sugar Boba",
		BaseFanRate:    12,
		SuggestedPrice: 15,
		ResearchCost:   800,
		Materials:      map[string]int{"tea": 1, "milk": 2, "ingredient": 2},
	},
	{
		Name:           "Cheese Foam Tea",
		BaseFanRate:    15,
		SuggestedPrice: 18,
		ResearchCost:   1200,
		Materials:      map[string]int{"tea": 2, "milk": 1, "ingredient": 3},
	},
}
