package expense

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense is a posted transaction. It is created by manual entry or by confirming a
// pending occurrence of a recurring definition.
type Expense struct {
	Id          int
	Amount      decimal.Decimal
	Description string
	Category    string
	Date        time.Time
	// RecurringId references the recurring definition the expense was posted from, if any.
	RecurringId *int
}
