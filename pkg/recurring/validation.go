package recurring

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/klokku/pennywise/pkg/daterule"
)

var ErrInvalidDefinition = errors.New("invalid recurring expense")

const maxDescriptionLength = 255

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidDefinition
}

// Validate reports every problem of the definition at once. Nothing is coerced.
func Validate(definition Definition) error {
	var errs []error
	invalid := func(field, message string) {
		errs = append(errs, &ValidationError{Field: field, Message: message})
	}

	if !definition.Amount.IsPositive() {
		invalid("amount", "must be greater than zero")
	}
	description := strings.TrimSpace(definition.Description)
	if description == "" {
		invalid("description", "is required")
	} else if len(description) > maxDescriptionLength {
		invalid("description", fmt.Sprintf("must not exceed %d characters", maxDescriptionLength))
	}
	if strings.TrimSpace(definition.Category) == "" {
		invalid("category", "is required")
	}
	if definition.StartDate.IsZero() {
		invalid("startDate", "is required")
	}

	hasInterval := definition.IntervalDays != 0
	hasDates := len(definition.ExecutionDates) > 0
	switch {
	case hasInterval && hasDates:
		invalid("intervalDays", "cannot be combined with executionDates")
	case !hasInterval && !hasDates:
		invalid("intervalDays", "either intervalDays or executionDates is required")
	case hasInterval && !slices.Contains(daterule.AllowedIntervals, definition.IntervalDays):
		invalid("intervalDays", fmt.Sprintf("must be one of %v", daterule.AllowedIntervals))
	case hasDates:
		seen := map[int]bool{}
		for _, day := range definition.ExecutionDates {
			if day < 1 || day > 31 {
				invalid("executionDates", fmt.Sprintf("day %d is outside 1..31", day))
			} else if seen[day] {
				invalid("executionDates", fmt.Sprintf("day %d is listed twice", day))
			}
			seen[day] = true
		}
	}
	return errors.Join(errs...)
}
