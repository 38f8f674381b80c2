package types

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Game status values
const (
	GameStatusInProgress = "in_progress"
	GameStatusFinished   = "finished"
)

type Game struct {
	gorm.Model   `json:"-"`
	GameID       string    `gorm:"uniqueIndex" json:"game_id"`
	Name         string    `json:"name"`
	Status       string    `json:"status"` // in_progress, finished
	CurrentRound int       `json:"current_round"`
	TotalRounds  int       `json:"total_rounds"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Player struct {
	gorm.Model  `json:"-"`
	PlayerID    string    `gorm:"uniqueIndex" json:"player_id"`
	GameID      string    `gorm:"index" json:"game_id"`
	Nickname    string    `json:"nickname"`
	Cash        float64   `json:"cash"`
	TotalProfit float64   `json:"total_profit"`
	IsActive    bool      `json:"is_active"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Shop struct {
	gorm.Model      `json:"-"`
	ShopID          string    `gorm:"uniqueIndex" json:"shop_id"`
	PlayerID        string    `gorm:"index" json:"player_id"`
	Name            string    `json:"name"`
	Rent            float64   `json:"rent"`
	DecorationLevel int       `json:"decoration_level"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type Employee struct {
	gorm.Model `json:"-"`
	EmployeeID string    `gorm:"uniqueIndex" json:"employee_id"`
	ShopID     string    `gorm:"index" json:"shop_id"`
	Name       string    `json:"name"`
	Salary     float64   `json:"salary"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Recipe is a product blueprint shared by all players in a game.
// Materials maps material type to units consumed per cup.
type Recipe struct {
	gorm.Model     `json:"-"`
	RecipeID       string         `gorm:"uniqueIndex" json:"recipe_id"`
	GameID         string         `gorm:"index" json:"game_id"`
	Name           string         `json:"name"`
	BaseFanRate    float64        `json:"base_fan_rate"` // percent
	SuggestedPrice float64        `json:"suggested_price"`
	ResearchCost   float64        `json:"research_cost"`
	Materials      datatypes.JSON `json:"materials"`
	CreatedAt      time.Time      `json:"created_at"`
}

// PlayerProduct is one player's instance of a recipe, carrying the
// advertising score and the cumulative sales counter that feed the
// reputation formula.
type PlayerProduct struct {
	gorm.Model     `json:"-"`
	ProductID      string    `gorm:"uniqueIndex" json:"product_id"`
	PlayerID       string    `gorm:"index" json:"player_id"`
	RecipeID       string    `json:"recipe_id"`
	IsUnlocked     bool      `json:"is_unlocked"`
	CurrentAdScore float64   `json:"current_ad_score"`
	TotalSold      int       `json:"total_sold"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ProductionRecord is one player's production plan for one product in one
// round. Sold counts and revenue are written by the allocator at
// settlement and read-only afterwards.
type ProductionRecord struct {
	gorm.Model       `json:"-"`
	ProductionID     string    `gorm:"uniqueIndex" json:"production_id"`
	PlayerID         string    `gorm:"index:idx_production_player_round" json:"player_id"`
	RoundNumber      int       `gorm:"index:idx_production_player_round" json:"round_number"`
	ProductID        string    `json:"product_id"`
	ProducedQuantity int       `json:"produced_quantity"`
	Price            float64   `json:"price"`
	SoldQuantity     int       `json:"sold_quantity"`
	SoldToHighTier   int       `json:"sold_to_high_tier"`
	SoldToLowTier    int       `json:"sold_to_low_tier"`
	Revenue          float64   `json:"revenue"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// CustomerFlow fixes the two customer pools for one round of one game.
// At most one row exists per (game, round); it is immutable once written.
type CustomerFlow struct {
	gorm.Model        `json:"-"`
	GameID            string    `gorm:"uniqueIndex:idx_flow_game_round" json:"game_id"`
	RoundNumber       int       `gorm:"uniqueIndex:idx_flow_game_round" json:"round_number"`
	HighTierCustomers int       `json:"high_tier_customers"`
	LowTierCustomers  int       `json:"low_tier_customers"`
	CreatedAt         time.Time `json:"created_at"`
}

// MaterialPurchase records one discounted bulk purchase, unique per
// (player, round, material).
type MaterialPurchase struct {
	gorm.Model   `json:"-"`
	PlayerID     string    `gorm:"uniqueIndex:idx_purchase_player_round_material" json:"player_id"`
	RoundNumber  int       `gorm:"uniqueIndex:idx_purchase_player_round_material" json:"round_number"`
	MaterialType string    `gorm:"uniqueIndex:idx_purchase_player_round_material" json:"material_type"`
	Quantity     int       `json:"quantity"`
	UnitPrice    float64   `json:"unit_price"`
	DiscountRate float64   `json:"discount_rate"`
	TotalCost    float64   `json:"total_cost"`
	CreatedAt    time.Time `json:"created_at"`
}

// Market action types
const (
	ActionAdvertisement  = "ad"
	ActionMarketResearch = "research"
	ActionDecoration     = "decoration"
)

// MarketAction logs a paid market move (advertising, market research,
// shop decoration) for expense aggregation.
type MarketAction struct {
	gorm.Model  `json:"-"`
	ActionID    string    `gorm:"uniqueIndex" json:"action_id"`
	PlayerID    string    `gorm:"index:idx_action_player_round" json:"player_id"`
	RoundNumber int       `gorm:"index:idx_action_player_round" json:"round_number"`
	ActionType  string    `json:"action_type"`
	ProductID   string    `json:"product_id,omitempty"`
	Cost        float64   `json:"cost"`
	CreatedAt   time.Time `json:"created_at"`
}

// ResearchLog records a product-research unlock and its cost.
type ResearchLog struct {
	gorm.Model  `json:"-"`
	PlayerID    string    `gorm:"index:idx_research_player_round" json:"player_id"`
	RoundNumber int       `gorm:"index:idx_research_player_round" json:"round_number"`
	RecipeID    string    `json:"recipe_id"`
	Cost        float64   `json:"cost"`
	CreatedAt   time.Time `json:"created_at"`
}
