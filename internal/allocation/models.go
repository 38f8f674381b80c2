package allocation

// listing is the allocator's unit of work: one player's one product's
// sellable stock for one round. The working set is built fresh on every
// allocate call and is owned exclusively by the allocator for the lifetime
// of that call; available is depleted in place by the high-tier pass and
// the low-tier pass operates on the remainder.
type listing struct {
	productionID string
	productID    string
	playerID     string
	playerName   string
	productName  string
	reputation   float64
	price        float64
	available    int
	soldHigh     int
	soldLow      int
}
