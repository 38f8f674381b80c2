package types

// SalesDetail is one listing's outcome from a round's customer allocation.
type SalesDetail struct {
	ProductionID string  `json:"production_id"`
	PlayerID     string  `json:"player_id"`
	PlayerName   string  `json:"player_name"`
	ProductName  string  `json:"product_name"`
	Reputation   float64 `json:"reputation"`
	Price        float64 `json:"price"`
	Available    int     `json:"available"` // stock left after both passes
	SoldHigh     int     `json:"sold_high"`
	SoldLow      int     `json:"sold_low"`
}

// AllocationResult is the outcome of distributing one round's customer
// pools across all eligible listings.
type AllocationResult struct {
	HighTierServed int           `json:"high_tier_served"`
	LowTierServed  int           `json:"low_tier_served"`
	TotalRevenue   float64       `json:"total_revenue"`
	SalesDetails   []SalesDetail `json:"sales_details"`
}

// AdvanceRoundResult is returned by the round service after a settlement.
type AdvanceRoundResult struct {
	PreviousRound    int               `json:"previous_round"`
	CurrentRound     int               `json:"current_round"`
	CustomerFlow     *CustomerFlow     `json:"customer_flow"`
	AllocationResult *AllocationResult `json:"allocation_result"`
	GameFinished     bool              `json:"game_finished"`
}
