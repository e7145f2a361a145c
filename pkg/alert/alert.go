package alert

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Type int

const (
	TypeWarning75 Type = iota + 1
	TypeWarning90
	TypeExceeded100
	TypeDailyLimit
	TypeMonthlyPrediction
)

func (t Type) String() string {
	switch t {
	case TypeWarning75:
		return "warning_75"
	case TypeWarning90:
		return "warning_90"
	case TypeExceeded100:
		return "exceeded_100"
	case TypeDailyLimit:
		return "daily_limit"
	case TypeMonthlyPrediction:
		return "monthly_prediction"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

func ParseType(value string) (Type, error) {
	for _, t := range []Type{TypeWarning75, TypeWarning90, TypeExceeded100, TypeDailyLimit, TypeMonthlyPrediction} {
		if t.String() == value {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown alert type %q", value)
}

type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityNormal
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

func ParsePriority(value string) (Priority, error) {
	switch value {
	case "low":
		return PriorityLow, nil
	case "normal":
		return PriorityNormal, nil
	case "high":
		return PriorityHigh, nil
	}
	return 0, fmt.Errorf("unknown alert priority %q", value)
}

type BudgetAlert struct {
	Id       string
	Type     Type
	Title    string
	Message  string
	Priority Priority
	BudgetId string
	Created  time.Time
	IsRead   bool
}

// BudgetStatus is a snapshot of one budget's spending, computed outside the engine.
type BudgetStatus struct {
	BudgetId              string
	BudgetName            string
	BudgetAmount          decimal.Decimal
	Spent                 decimal.Decimal
	DaysRemaining         int
	AverageDailySpend     decimal.Decimal
	RecommendedDailyLimit decimal.Decimal
	ProjectedTotal        decimal.Decimal
}

// SpentRatio is Spent / BudgetAmount. ok is false for budgets without a positive amount.
func (s BudgetStatus) SpentRatio() (ratio decimal.Decimal, ok bool) {
	if !s.BudgetAmount.IsPositive() {
		return decimal.Zero, false
	}
	return s.Spent.Div(s.BudgetAmount), true
}

func (s BudgetStatus) name() string {
	if s.BudgetName != "" {
		return s.BudgetName
	}
	return s.BudgetId
}
