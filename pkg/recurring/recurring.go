package recurring

import (
	"time"

	"github.com/klokku/pennywise/pkg/daterule"
	"github.com/shopspring/decimal"
)

// Definition describes an expense that repeats on a schedule. Exactly one of IntervalDays and
// ExecutionDates is set.
type Definition struct {
	Id             int
	Amount         decimal.Decimal
	Description    string
	Category       string
	IntervalDays   int
	ExecutionDates []int
	StartDate      time.Time
	// NextDueDate is the next occurrence to materialize.
	NextDueDate  time.Time
	IsActive     bool
	LastExecuted *time.Time
}

func (d Definition) Rule() daterule.Rule {
	return daterule.Rule{
		IntervalDays:   d.IntervalDays,
		ExecutionDates: d.ExecutionDates,
		StartDate:      d.StartDate,
	}
}

// IsStale reports whether the definition's next due date already lies before today.
func (d Definition) IsStale(today time.Time) bool {
	return d.NextDueDate.Before(today)
}

func (d Definition) sameRule(other Definition) bool {
	if d.IntervalDays != other.IntervalDays || !d.StartDate.Equal(other.StartDate) {
		return false
	}
	if len(d.ExecutionDates) != len(other.ExecutionDates) {
		return false
	}
	for i := range d.ExecutionDates {
		if d.ExecutionDates[i] != other.ExecutionDates[i] {
			return false
		}
	}
	return true
}

// ResumeMode selects what happens to a stale next due date when a paused definition is
// reactivated.
type ResumeMode int

const (
	ResumeUnspecified ResumeMode = iota
	// ResumeKeepStale keeps the old date; the next pass materializes it as a backlog occurrence.
	ResumeKeepStale
	// ResumeRecompute moves the next due date to the first occurrence on or after today.
	ResumeRecompute
)

func ParseResumeMode(value string) (ResumeMode, bool) {
	switch value {
	case "":
		return ResumeUnspecified, true
	case "keep":
		return ResumeKeepStale, true
	case "recompute":
		return ResumeRecompute, true
	}
	return ResumeUnspecified, false
}
