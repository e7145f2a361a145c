package pending

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Status of a scheduled occurrence. Confirmed and Skipped are terminal: the pending record
// is deleted when it reaches them, so only Pending and Overdue are ever stored.
type Status int

const (
	StatusPending Status = iota + 1
	StatusOverdue
	StatusConfirmed
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusOverdue:
		return "overdue"
	case StatusConfirmed:
		return "confirmed"
	case StatusSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

func ParseStatus(value string) (Status, error) {
	switch value {
	case "pending":
		return StatusPending, nil
	case "overdue":
		return StatusOverdue, nil
	case "confirmed":
		return StatusConfirmed, nil
	case "skipped":
		return StatusSkipped, nil
	}
	return 0, fmt.Errorf("unknown pending status %q", value)
}

func (s Status) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusSkipped
}

// CanTransition reports whether the lifecycle allows moving from s to next.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusOverdue || next == StatusConfirmed || next == StatusSkipped
	case StatusOverdue:
		return next == StatusConfirmed || next == StatusSkipped
	default:
		return false
	}
}

// PendingOccurrence is one materialized firing of a recurring definition awaiting
// confirmation or skip.
type PendingOccurrence struct {
	Id            int
	RecurringId   int
	ScheduledDate time.Time
	Amount        decimal.Decimal
	Description   string
	Category      string
	Status        Status
}

// ConfirmOverride optionally replaces amount and description of the posted expense.
type ConfirmOverride struct {
	Amount      *decimal.Decimal
	Description *string
}
