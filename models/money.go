package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of fractional digits every stored amount carries
const AmountScale int32 = 2

// ErrInvalidAmount is returned for amounts that are malformed or out of range
var ErrInvalidAmount = errors.New("invalid amount")

// MaxAmount is the largest value a NUMERIC(20,2) column holds
var MaxAmount = decimal.RequireFromString("999999999999999999.99")

// ParseAmount parses a user supplied amount such as "12.50".
// Amounts with more than AmountScale fractional digits are rejected rather than rounded.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, fmt.Errorf("%w: amount is empty", ErrInvalidAmount)
	}

	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: malformed amount %q: %v", ErrInvalidAmount, raw, err)
	}

	if !HasValidScale(amount) {
		return decimal.Zero, fmt.Errorf("%w: amount %q has more than %d decimal places", ErrInvalidAmount, raw, AmountScale)
	}
	if !InRange(amount) {
		return decimal.Zero, fmt.Errorf("%w: amount %q exceeds %s", ErrInvalidAmount, raw, FormatAmount(MaxAmount))
	}

	return amount, nil
}

// HasValidScale reports whether the amount fits in the stored precision
func HasValidScale(amount decimal.Decimal) bool {
	return amount.Equal(amount.Truncate(AmountScale))
}

// InRange reports whether the amount's magnitude fits in a stored column
func InRange(amount decimal.Decimal) bool {
	return amount.Abs().LessThanOrEqual(MaxAmount)
}

// FormatAmount renders an amount with the fixed ledger scale
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(AmountScale)
}
