package pending

import (
	"fmt"
	"sort"
	"time"

	"github.com/klokku/pennywise/pkg/daterule"
	"github.com/shopspring/decimal"
)

// Priority of an overdue occurrence. Values are ordered: a higher value is more pressing.
type Priority int

const (
	PriorityMedium Priority = iota + 1
	PriorityHigh
	PriorityUrgent
)

func (p Priority) String() string {
	switch p {
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

const (
	urgentAfterDays = 7
	highAfterDays   = 3
)

// DefaultHighAmount is the amount above which a freshly overdue occurrence is high priority.
var DefaultHighAmount = decimal.NewFromInt(100_000)

type OverdueItem struct {
	Occurrence  PendingOccurrence
	DaysOverdue int
	Priority    Priority
}

// OverdueTracker derives overdue items from pending records.
type OverdueTracker struct {
	highAmount decimal.Decimal
}

func NewOverdueTracker(highAmount decimal.Decimal) *OverdueTracker {
	return &OverdueTracker{highAmount: highAmount}
}

// IsOverdue reports whether the occurrence is unresolved and scheduled before today.
func IsOverdue(occurrence PendingOccurrence, today time.Time) bool {
	if occurrence.Status.IsTerminal() {
		return false
	}
	return occurrence.ScheduledDate.Before(today)
}

// Classify computes days overdue and priority of the occurrence as of today.
func (t *OverdueTracker) Classify(occurrence PendingOccurrence, today time.Time) OverdueItem {
	days := daterule.DaysBetween(occurrence.ScheduledDate, today)
	return OverdueItem{
		Occurrence:  occurrence,
		DaysOverdue: days,
		Priority:    t.priority(days, occurrence.Amount),
	}
}

func (t *OverdueTracker) priority(daysOverdue int, amount decimal.Decimal) Priority {
	switch {
	case daysOverdue >= urgentAfterDays:
		return PriorityUrgent
	case daysOverdue >= highAfterDays:
		return PriorityHigh
	case amount.GreaterThan(t.highAmount):
		return PriorityHigh
	default:
		return PriorityMedium
	}
}

// Overdue filters the overdue occurrences and orders them most overdue first. Ties keep
// the earlier created record first.
func (t *OverdueTracker) Overdue(occurrences []PendingOccurrence, today time.Time) []OverdueItem {
	items := make([]OverdueItem, 0)
	for _, occurrence := range occurrences {
		if IsOverdue(occurrence, today) {
			items = append(items, t.Classify(occurrence, today))
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].DaysOverdue != items[j].DaysOverdue {
			return items[i].DaysOverdue > items[j].DaysOverdue
		}
		return items[i].Occurrence.Id < items[j].Occurrence.Id
	})
	return items
}

// OverdueSummary is the data behind the overdue banner.
type OverdueSummary struct {
	Count       int
	TotalAmount decimal.Decimal
	ByPriority  map[Priority]int
	// Highest is zero when nothing is overdue.
	Highest Priority
}

func Summarize(items []OverdueItem) OverdueSummary {
	summary := OverdueSummary{
		TotalAmount: decimal.Zero,
		ByPriority:  map[Priority]int{},
	}
	for _, item := range items {
		summary.Count++
		summary.TotalAmount = summary.TotalAmount.Add(item.Occurrence.Amount)
		summary.ByPriority[item.Priority]++
		if item.Priority > summary.Highest {
			summary.Highest = item.Priority
		}
	}
	return summary
}
