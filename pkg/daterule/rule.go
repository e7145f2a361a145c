// Package daterule computes occurrence dates of recurring expenses.
//
// The functions never read the wall clock and never fail for a valid rule.
// Dates are civil dates represented as time.Time values at midnight UTC.
package daterule

import (
	"slices"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/teambition/rrule-go"
)

// MonthlyIntervalDays marks the monthly "same day" rule when no execution dates are set.
const MonthlyIntervalDays = 30

// AllowedIntervals are the supported simple interval lengths, in days.
var AllowedIntervals = []int{7, 15, MonthlyIntervalDays}

type Kind int

const (
	KindInterval Kind = iota
	KindMonthly
	KindExecutionDates
)

func (k Kind) String() string {
	switch k {
	case KindInterval:
		return "interval"
	case KindMonthly:
		return "monthly"
	case KindExecutionDates:
		return "execution_dates"
	default:
		return "unknown"
	}
}

// Rule is the scheduling part of a recurring definition. IntervalDays and ExecutionDates
// are mutually exclusive.
type Rule struct {
	IntervalDays   int
	ExecutionDates []int
	StartDate      time.Time
}

func (r Rule) Kind() Kind {
	if len(r.ExecutionDates) > 0 {
		return KindExecutionDates
	}
	if r.IntervalDays == MonthlyIntervalDays {
		return KindMonthly
	}
	return KindInterval
}

// NextOccurrence returns the first occurrence of rule strictly after ref. Occurrences never
// precede the rule's start date.
func NextOccurrence(rule Rule, ref time.Time) time.Time {
	ref = Date(ref.Date())
	start := Date(rule.StartDate.Date())
	if !rule.StartDate.IsZero() && start.After(ref) {
		// shift the reference so the start date itself is a valid answer
		ref = AddDays(start, -1)
	}

	switch rule.Kind() {
	case KindExecutionDates:
		return NextExecutionDate(rule.ExecutionDates, ref)
	case KindMonthly:
		return NextMonthlyDate(anchorDay(rule, ref), ref)
	default:
		return nextIntervalDate(start, rule.IntervalDays, ref)
	}
}

// InitialDueDate is the first occurrence on or after today (or on or after the start date
// when that is later). It bootstraps new definitions and recomputes stale ones.
func InitialDueDate(rule Rule, today time.Time) time.Time {
	from := Date(today.Date())
	if !rule.StartDate.IsZero() {
		from = maxDate(from, Date(rule.StartDate.Date()))
	}
	return NextOccurrence(rule, AddDays(from, -1))
}

// Advance returns the next due date after an occurrence at lastFired has been materialized.
// The common path is O(1) (one interval, or the next candidate day); only when that still
// is not after today does it fall back to catching up from today.
func Advance(rule Rule, lastFired time.Time, today time.Time) time.Time {
	lastFired = Date(lastFired.Date())
	today = Date(today.Date())

	var next time.Time
	switch rule.Kind() {
	case KindExecutionDates:
		next = NextExecutionDate(rule.ExecutionDates, lastFired)
	case KindMonthly:
		next = NextMonthlyDate(anchorDay(rule, lastFired), lastFired)
	default:
		next = AddDays(lastFired, intervalOrDefault(rule.IntervalDays))
	}
	if next.After(today) {
		return next
	}
	return NextOccurrence(rule, today)
}

// NextExecutionDate returns the smallest candidate day strictly after ref's day within ref's
// month, or the smallest candidate of the following month. Candidates past the end of a
// month are clamped to its last day, so no month is skipped.
func NextExecutionDate(days []int, ref time.Time) time.Time {
	candidates := normalizeDays(days)
	y, m, d := ref.Date()
	if len(candidates) == 0 {
		ny, nm := nextMonth(y, m)
		return ClampDay(ny, nm, d)
	}

	for _, day := range candidates {
		if c := ClampDay(y, m, day); c.Day() > d {
			return c
		}
	}
	ny, nm := nextMonth(y, m)
	return ClampDay(ny, nm, candidates[0])
}

// ExecutionDatesInWindow lists the clamped candidate dates of today's month that fall on or
// after today. When none is left this month, the window extends lazily to the first
// candidate of the next month.
func ExecutionDatesInWindow(days []int, today time.Time) []time.Time {
	candidates := normalizeDays(days)
	if len(candidates) == 0 {
		return nil
	}
	today = Date(today.Date())
	y, m, _ := today.Date()

	var window []time.Time
	for _, day := range candidates {
		c := ClampDay(y, m, day)
		if c.Before(today) {
			continue
		}
		// 30 and 31 clamp to the same date in a 30-day month
		if len(window) > 0 && window[len(window)-1].Equal(c) {
			continue
		}
		window = append(window, c)
	}
	if len(window) == 0 {
		ny, nm := nextMonth(y, m)
		window = append(window, ClampDay(ny, nm, candidates[0]))
	}
	return window
}

// NextMonthlyDate returns the date carrying anchorDay (clamped) in ref's month when ref has
// not reached it yet, otherwise the one in the following month.
func NextMonthlyDate(anchorDay int, ref time.Time) time.Time {
	y, m, d := ref.Date()
	if c := ClampDay(y, m, anchorDay); d < c.Day() {
		return c
	}
	ny, nm := nextMonth(y, m)
	return ClampDay(ny, nm, anchorDay)
}

// nextIntervalDate is the iterative catch-up form: the first start + k*interval strictly
// after ref.
func nextIntervalDate(start time.Time, interval int, ref time.Time) time.Time {
	interval = intervalOrDefault(interval)
	if start.IsZero() {
		return AddDays(ref, interval)
	}
	if start.After(ref) {
		return start
	}

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:     rrule.DAILY,
		Interval: interval,
		Dtstart:  start,
	})
	if err != nil {
		log.Errorf("interval rule every %d days from %s rejected, counting steps instead: %v", interval, FormatDate(start), err)
		steps := DaysBetween(start, ref)/interval + 1
		return AddDays(start, steps*interval)
	}
	return Date(r.After(ref, false).Date())
}

func anchorDay(rule Rule, fallback time.Time) int {
	if rule.StartDate.IsZero() {
		return fallback.Day()
	}
	return rule.StartDate.Day()
}

func intervalOrDefault(interval int) int {
	if interval <= 0 {
		return MonthlyIntervalDays
	}
	return interval
}

// normalizeDays returns the valid days (1..31) sorted and without duplicates.
func normalizeDays(days []int) []int {
	result := make([]int, 0, len(days))
	for _, day := range days {
		if day >= 1 && day <= 31 {
			result = append(result, day)
		}
	}
	slices.Sort(result)
	return slices.Compact(result)
}
