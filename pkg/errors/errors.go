package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrDuplicatePlayerName = errors.New("player name already exists")
	ErrPlayerNotFound      = errors.New("player not found")
	ErrWeekNotFound        = errors.New("week not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrAlreadyReverted     = errors.New("transaction already reverted")
	ErrStaleWeek           = errors.New("transaction does not belong to the current week")
	ErrUnbalancedWeek      = errors.New("session scores do not balance to zero")
)

type WeekdayImbalance struct {
	Weekday string          `json:"weekday"`
	Sum     decimal.Decimal `json:"sum"`
}

// UnbalancedWeekError blocks settlement and names every weekday whose
// session scores do not sum to zero. It unwraps to ErrUnbalancedWeek so
// callers can keep using errors.Is.
type UnbalancedWeekError struct {
	Imbalances []WeekdayImbalance
}

func (e *UnbalancedWeekError) Error() string {
	parts := make([]string, 0, len(e.Imbalances))
	for _, im := range e.Imbalances {
		parts = append(parts, fmt.Sprintf("%s: %s", im.Weekday, im.Sum.String()))
	}
	return fmt.Sprintf("%s (%s)", ErrUnbalancedWeek.Error(), strings.Join(parts, ", "))
}

func (e *UnbalancedWeekError) Unwrap() error { return ErrUnbalancedWeek }
