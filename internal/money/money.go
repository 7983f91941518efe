// Package money converts between decimal strings used at the edges and the
// integer minor units stored in the ledger.
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

const scale = 2

// MaxMinor bounds every stored amount so sums stay exact in JSON numbers.
const MaxMinor = 1 << 53

var (
	hundred  = decimal.NewFromInt(100)
	maxMinor = decimal.NewFromInt(MaxMinor)
)

var ErrOutOfRange = errors.New("amount out of range")

// ParseMinor parses "1234.5" into 123450. More than two fractional digits
// is rejected rather than rounded.
func ParseMinor(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return FromDecimal(d)
}

func FromDecimal(d decimal.Decimal) (int64, error) {
	if !d.Equal(d.Truncate(scale)) {
		return 0, fmt.Errorf("amount %s has more than %d decimal places", d.String(), scale)
	}
	minor := d.Mul(hundred)
	if !minor.IsInteger() || minor.Abs().GreaterThan(maxMinor) {
		return 0, fmt.Errorf("amount %s out of range", d.String())
	}
	return minor.IntPart(), nil
}

func ToDecimal(minor int64) decimal.Decimal {
	return decimal.New(minor, -scale)
}

// Format renders minor units with exactly two decimals.
func Format(minor int64) string {
	return ToDecimal(minor).StringFixed(scale)
}

// Mul multiplies two minor-unit quantities, failing past MaxMinor.
func Mul(a, b int64) (int64, error) {
	return bounded(decimal.NewFromInt(a).Mul(decimal.NewFromInt(b)))
}

// Add sums minor units, failing past MaxMinor.
func Add(a, b int64) (int64, error) {
	return bounded(decimal.NewFromInt(a).Add(decimal.NewFromInt(b)))
}

func bounded(d decimal.Decimal) (int64, error) {
	if d.Abs().GreaterThan(maxMinor) {
		return 0, ErrOutOfRange
	}
	return d.IntPart(), nil
}
