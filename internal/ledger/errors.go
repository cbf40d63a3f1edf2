package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Engine errors. Every failure returned by an operation matches exactly one of these with errors.Is.
var (
	ErrNotFound          = errors.New("wallet or account not found")
	ErrBlocked           = errors.New("wallet is blocked")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrLimitExceeded     = errors.New("transaction limit exceeded")
	ErrForbidden         = errors.New("agent not found or not approved")
	ErrInvalidOperation  = errors.New("invalid operation")
	ErrTransient         = errors.New("ledger temporarily unavailable")
)

// LimitKind names the cap breached by a debit
type LimitKind string

// Limit kinds in evaluation order
const (
	LimitDailyAmount   LimitKind = "daily_amount"
	LimitDailyCount    LimitKind = "daily_count"
	LimitMonthlyAmount LimitKind = "monthly_amount"
	LimitMonthlyCount  LimitKind = "monthly_count"
)

// LimitError reports which cap denied a debit and what allowance remains in that window.
// For count caps Remaining is a whole number of transactions.
type LimitError struct {
	Kind      LimitKind
	Cap       decimal.Decimal
	Remaining decimal.Decimal
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s limit exceeded: remaining %s", e.Kind, e.Remaining.String())
}

func (e *LimitError) Unwrap() error { return ErrLimitExceeded }

// WalletError ties a failure to the party whose wallet caused it
type WalletError struct {
	Party  string // sender, receiver, user or agent
	UserID uint
	Err    error
}

func (e *WalletError) Error() string {
	return fmt.Sprintf("%s wallet %d: %v", e.Party, e.UserID, e.Err)
}

func (e *WalletError) Unwrap() error { return e.Err }

// transient wraps an infrastructure failure so callers can match ErrTransient and still see the cause
func transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// IsDomainError reports whether err is a terminal business failure rather than a transient one
func IsDomainError(err error) bool {
	for _, target := range []error{ErrNotFound, ErrBlocked, ErrInsufficientFunds, ErrLimitExceeded, ErrForbidden, ErrInvalidOperation} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ErrorKind returns a stable short name for the failure class of err, or "completed" for nil
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "completed"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrBlocked):
		return "blocked"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrLimitExceeded):
		return "limit_exceeded"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidOperation):
		return "invalid_operation"
	default:
		return "transient"
	}
}
