package finance

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FinanceRecord is the immutable per-player-per-round ledger entry. At
// most one exists per (player, round); once written it is never
// recomputed. Breakdown columns hold JSON-serialized record types
// (RevenueItem, PurchaseDetail, ProductDetail) marshalled at this
// boundary only.
type FinanceRecord struct {
	gorm.Model  `json:"-"`
	RecordID    string `gorm:"uniqueIndex" json:"record_id"`
	PlayerID    string `gorm:"uniqueIndex:idx_finance_player_round" json:"player_id"`
	RoundNumber int    `gorm:"uniqueIndex:idx_finance_player_round" json:"round_number"`

	TotalRevenue     float64        `json:"total_revenue"`
	RevenueBreakdown datatypes.JSON `json:"revenue_breakdown"`

	RentExpense            float64 `json:"rent_expense"`
	SalaryExpense          float64 `json:"salary_expense"`
	MaterialExpense        float64 `json:"material_expense"`
	DecorationExpense      float64 `json:"decoration_expense"`
	MarketResearchExpense  float64 `json:"market_research_expense"`
	AdExpense              float64 `json:"ad_expense"`
	ProductResearchExpense float64 `json:"product_research_expense"`
	TotalExpense           float64 `json:"total_expense"`

	RoundProfit      float64 `json:"round_profit"`
	CumulativeProfit float64 `json:"cumulative_profit"`

	MaterialPurchases datatypes.JSON `json:"material_purchases"`
	ProductDetails    datatypes.JSON `json:"product_details"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RevenueItem is one product's line in a round's revenue breakdown.
type RevenueItem struct {
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
	Revenue     float64 `json:"revenue"`
}

// ExpenseBreakdown itemizes one player's expenses for one round.
type ExpenseBreakdown struct {
	Rent            float64 `json:"rent"`
	Salary          float64 `json:"salary"`
	Material        float64 `json:"material"`
	Decoration      float64 `json:"decoration"`
	MarketResearch  float64 `json:"market_research"`
	Advertisement   float64 `json:"advertisement"`
	ProductResearch float64 `json:"product_research"`
	Total           float64 `json:"total"`
}

// PurchaseDetail is one material purchase in the ledger's stored
// breakdown.
type PurchaseDetail struct {
	Quantity     int     `json:"quantity"`
	UnitPrice    float64 `json:"unit_price"`
	DiscountRate float64 `json:"discount_rate"`
	TotalCost    float64 `json:"total_cost"`
}

// MaterialUsage is one material's consumption within a product detail.
type MaterialUsage struct {
	Quantity int     `json:"quantity"`
	UnitCost float64 `json:"unit_cost"`
	Total    float64 `json:"total"`
}

// ProductDetail joins a round's production with recipe material
// requirements and that round's purchased unit prices to cost out a
// single product.
type ProductDetail struct {
	ProductID        string                   `json:"product_id"`
	ProductName      string                   `json:"product_name"`
	Price            float64                  `json:"price"`
	ProducedQuantity int                      `json:"produced_quantity"`
	SoldQuantity     int                      `json:"sold_quantity"`
	SoldToHighTier   int                      `json:"sold_to_high_tier"`
	SoldToLowTier    int                      `json:"sold_to_low_tier"`
	Revenue          float64                  `json:"revenue"`
	MaterialCost     float64                  `json:"material_cost"`
	Profit           float64                  `json:"profit"`
	MaterialsUsed    map[string]MaterialUsage `json:"materials_used"`
}

// ProfitSummary ranks a game's active players by cumulative profit.
type ProfitSummary struct {
	GameID       string          `json:"game_id"`
	CurrentRound int             `json:"current_round"`
	Players      []PlayerRanking `json:"players"`
}

// PlayerRanking is one leaderboard row.
type PlayerRanking struct {
	PlayerID    string  `json:"player_id"`
	Nickname    string  `json:"nickname"`
	TotalProfit float64 `json:"total_profit"`
	Cash        float64 `json:"cash"`
	Rank        int     `json:"rank"`
}

// RoundReport is one round's row in a player's detailed report.
type RoundReport struct {
	Round            int     `json:"round"`
	Revenue          float64 `json:"revenue"`
	Expenses         float64 `json:"expenses"`
	Profit           float64 `json:"profit"`
	CumulativeProfit float64 `json:"cumulative_profit"`
}

// DetailedReport is a player's full round-ascending financial series.
type DetailedReport struct {
	PlayerID    string        `json:"player_id"`
	Nickname    string        `json:"nickname"`
	CurrentCash float64       `json:"current_cash"`
	TotalProfit float64       `json:"total_profit"`
	Rounds      []RoundReport `json:"rounds"`
}

// RoundDetailReport expands a single ledger entry into revenue, expense
// and profit sections with the stored per-product and per-material
// breakdowns.
type RoundDetailReport struct {
	PlayerID    string              `json:"player_id"`
	RoundNumber int                 `json:"round_number"`
	Revenue     RoundRevenueDetail  `json:"revenue"`
	Expenses    RoundExpenseDetail  `json:"expenses"`
	Profit      RoundProfitSnapshot `json:"profit"`
}

// RoundRevenueDetail is the revenue section of a round detail report.
type RoundRevenueDetail struct {
	Total    float64         `json:"total"`
	Products []ProductDetail `json:"products"`
}

// RoundExpenseDetail groups a round's expenses by how they recur: fixed
// costs charged every round, material purchases, and one-off actions.
type RoundExpenseDetail struct {
	Fixed struct {
		Rent   float64 `json:"rent"`
		Salary float64 `json:"salary"`
		Total  float64 `json:"total"`
	} `json:"fixed"`
	Materials struct {
		Purchased map[string]PurchaseDetail `json:"purchased"`
		Total     float64                   `json:"total"`
	} `json:"materials"`
	Temporary struct {
		Decoration      float64 `json:"decoration"`
		MarketResearch  float64 `json:"market_research"`
		Advertisement   float64 `json:"advertisement"`
		ProductResearch float64 `json:"product_research"`
		Total           float64 `json:"total"`
	} `json:"temporary"`
	Total float64 `json:"total"`
}

// RoundProfitSnapshot is the profit section of a round detail report.
type RoundProfitSnapshot struct {
	Round      float64 `json:"round"`
	Cumulative float64 `json:"cumulative"`
}
