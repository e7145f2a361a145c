package alert

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ratio75           = decimal.RequireFromString("0.75")
	ratio90           = decimal.RequireFromString("0.90")
	ratio100          = decimal.NewFromInt(1)
	dailyLimitFactor  = decimal.RequireFromString("1.5")
	predictionFactor  = decimal.RequireFromString("1.1")
	predictionMinDays = 7
)

// rule is one threshold check gated by its cooldown.
type rule struct {
	Type     Type
	Priority Priority
	Cooldown time.Duration
	// PerDay adds the calendar day to the cooldown key.
	PerDay  bool
	Matches func(status BudgetStatus) bool
	Render  func(status BudgetStatus) (title string, message string)
}

var rules = []rule{
	{
		Type:     TypeWarning75,
		Priority: PriorityNormal,
		Cooldown: 24 * time.Hour,
		Matches: func(s BudgetStatus) bool {
			ratio, ok := s.SpentRatio()
			return ok && ratio.GreaterThanOrEqual(ratio75) && ratio.LessThan(ratio90)
		},
		Render: func(s BudgetStatus) (string, string) {
			return "Budget 75% used",
				fmt.Sprintf("You have spent %s%% of %s (%s of %s).", percent(s), s.name(), money(s.Spent), money(s.BudgetAmount))
		},
	},
	{
		Type:     TypeWarning90,
		Priority: PriorityHigh,
		Cooldown: 12 * time.Hour,
		Matches: func(s BudgetStatus) bool {
			ratio, ok := s.SpentRatio()
			return ok && ratio.GreaterThanOrEqual(ratio90) && ratio.LessThan(ratio100)
		},
		Render: func(s BudgetStatus) (string, string) {
			return "Budget almost used up",
				fmt.Sprintf("You have spent %s%% of %s, only %s left.", percent(s), s.name(), money(s.BudgetAmount.Sub(s.Spent)))
		},
	},
	{
		Type:     TypeExceeded100,
		Priority: PriorityHigh,
		Cooldown: 6 * time.Hour,
		Matches: func(s BudgetStatus) bool {
			ratio, ok := s.SpentRatio()
			return ok && ratio.GreaterThanOrEqual(ratio100)
		},
		Render: func(s BudgetStatus) (string, string) {
			return "Budget exceeded",
				fmt.Sprintf("%s is over budget by %s.", s.name(), money(s.Spent.Sub(s.BudgetAmount)))
		},
	},
	{
		Type:     TypeDailyLimit,
		Priority: PriorityNormal,
		Cooldown: 24 * time.Hour,
		PerDay:   true,
		Matches: func(s BudgetStatus) bool {
			return s.DaysRemaining > 0 &&
				s.RecommendedDailyLimit.IsPositive() &&
				s.AverageDailySpend.GreaterThan(s.RecommendedDailyLimit.Mul(dailyLimitFactor))
		},
		Render: func(s BudgetStatus) (string, string) {
			return "Daily spending is high",
				fmt.Sprintf("You spend %s a day on %s, the recommended limit is %s.",
					money(s.AverageDailySpend), s.name(), money(s.RecommendedDailyLimit))
		},
	},
	{
		Type:     TypeMonthlyPrediction,
		Priority: PriorityLow,
		Cooldown: 7 * 24 * time.Hour,
		Matches: func(s BudgetStatus) bool {
			return s.DaysRemaining > predictionMinDays &&
				s.BudgetAmount.IsPositive() &&
				s.ProjectedTotal.GreaterThan(s.BudgetAmount.Mul(predictionFactor))
		},
		Render: func(s BudgetStatus) (string, string) {
			return "Budget likely to be exceeded",
				fmt.Sprintf("At this pace %s will reach %s of %s by the end of the month.",
					s.name(), money(s.ProjectedTotal), money(s.BudgetAmount))
		},
	},
}

// cooldownKey identifies the window a firing suppresses further firings in.
func (r rule) cooldownKey(userId int, budgetId string, day time.Time) string {
	if r.PerDay {
		return fmt.Sprintf("%d:%s:%s:%s", userId, r.Type, budgetId, day.Format("2006-01-02"))
	}
	return fmt.Sprintf("%d:%s:%s", userId, r.Type, budgetId)
}

func percent(s BudgetStatus) string {
	ratio, _ := s.SpentRatio()
	return ratio.Mul(decimal.NewFromInt(100)).Round(0).String()
}

func money(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}
