package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// amountPlaces is the scale every stored amount is kept at
const amountPlaces = 4

// maxAmount is the first value a decimal(20,4) column cannot hold
var maxAmount = decimal.New(1, 20-amountPlaces)

// Commission returns the agent commission owed on amount at rate, at storage scale.
// A non-positive rate or amount yields zero.
func Commission(amount, rate decimal.Decimal) decimal.Decimal {
	if !rate.IsPositive() || !amount.IsPositive() {
		return decimal.Zero
	}
	return amount.Mul(rate).RoundBank(amountPlaces)
}

// checkAmount reports whether amount can be moved and stored without rounding
func checkAmount(amount decimal.Decimal) error {
	switch {
	case !amount.IsPositive():
		return fmt.Errorf("%w: amount must be positive", ErrInvalidOperation)
	case !amount.Equal(amount.Truncate(amountPlaces)):
		return fmt.Errorf("%w: amount has more than %d decimal places", ErrInvalidOperation, amountPlaces)
	case amount.GreaterThanOrEqual(maxAmount):
		return fmt.Errorf("%w: amount too large", ErrInvalidOperation)
	}
	return nil
}
