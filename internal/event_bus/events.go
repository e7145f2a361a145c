package event_bus

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ExpenseChangedType  EventType = "expense.changed"
	PendingResolvedType EventType = "pending.resolved"
	AlertCreatedType    EventType = "alert.created"
)

type ExpenseChange string

const (
	ExpenseAdded   ExpenseChange = "added"
	ExpenseDeleted ExpenseChange = "deleted"
)

// ExpenseChanged is published after the set of posted expenses was mutated.
type ExpenseChanged struct {
	UserId    int
	ExpenseId int
	Change    ExpenseChange
	Amount    decimal.Decimal
	Date      time.Time
}

// PendingResolved is published after a pending occurrence was confirmed or skipped.
type PendingResolved struct {
	UserId        int
	PendingId     int
	RecurringId   int
	ScheduledDate time.Time
	Confirmed     bool
	ExpenseId     int
}

type AlertCreated struct {
	UserId   int
	AlertId  string
	Type     string
	BudgetId string
	Priority string
	Title    string
}
