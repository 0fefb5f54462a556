// Package money provides the fixed-point amount type used across the ledger.
// All persisted amounts are integer cents; decimals exist only at the edges
// (feed parsing, report formatting).
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Cents is a monetary amount in integer cents of the company ledger currency.
type Cents int64

// ErrPrecision indicates an input amount with sub-cent precision.
var ErrPrecision = errors.New("money: amount has more than two decimal places")

// Parse converts a decimal string such as "-4.50" into cents.
func Parse(s string) (Cents, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("money: parse %q: %w", s, err)
	}
	return FromDecimal(d)
}

// FromDecimal converts a decimal amount into cents, rejecting sub-cent values.
func FromDecimal(d decimal.Decimal) (Cents, error) {
	scaled := d.Mul(decimal.New(100, 0))
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, ErrPrecision
	}
	return Cents(scaled.IntPart()), nil
}

// Decimal returns the amount as a two-place decimal.
func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

// String renders the amount as a plain decimal, e.g. "-4.50".
func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}

// Abs returns the magnitude of the amount.
func (c Cents) Abs() Cents {
	if c < 0 {
		return -c
	}
	return c
}
