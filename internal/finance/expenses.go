package finance

import "github.com/teawars/teawars-api/internal/types"

// calculateRoundExpenses itemizes one player's expenses for one round:
// shop rent, active employee salaries, purchased materials, and the
// round's logged market actions and product research. Material cost is
// taken from the MaterialPurchase rows so the ledger reflects what the
// player actually spent on stock that round.
func calculateRoundExpenses(db *Database, player *types.Player, roundNumber int) (*ExpenseBreakdown, error) {
	expenses := &ExpenseBreakdown{}

	shop, err := db.GetShopByPlayer(player.PlayerID)
	if err != nil {
		return nil, err
	}
	if shop != nil {
		expenses.Rent = shop.Rent

		employees, err := db.GetActiveEmployees(shop.ShopID)
		if err != nil {
			return nil, err
		}
		for _, emp := range employees {
			expenses.Salary += emp.Salary
		}
	}

	purchases, err := db.GetPurchases(player.PlayerID, roundNumber)
	if err != nil {
		return nil, err
	}
	for _, purchase := range purchases {
		expenses.Material += purchase.TotalCost
	}

	actions, err := db.GetMarketActions(player.PlayerID, roundNumber)
	if err != nil {
		return nil, err
	}
	for _, action := range actions {
		switch action.ActionType {
		case types.ActionAdvertisement:
			expenses.Advertisement += action.Cost
		case types.ActionMarketResearch:
			expenses.MarketResearch += action.Cost
		case types.ActionDecoration:
			expenses.Decoration += action.Cost
		}
	}

	logs, err := db.GetResearchLogs(player.PlayerID, roundNumber)
	if err != nil {
		return nil, err
	}
	for _, entry := range logs {
		expenses.ProductResearch += entry.Cost
	}

	expenses.Total = expenses.Rent + expenses.Salary + expenses.Material +
		expenses.Decoration + expenses.MarketResearch + expenses.Advertisement +
		expenses.ProductResearch

	return expenses, nil
}
