// Package money holds the decimal conventions shared by the ledger: amounts
// are shopspring decimals, rounded to two places half away from zero.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Places is the number of decimal places kept for currency amounts.
const Places = 2

// DefaultTolerance is the largest debit/credit discrepancy that is still
// considered unbalanced (the comparison is strict).
var DefaultTolerance = decimal.New(1, -Places)

var hundred = decimal.NewFromInt(100)

// Round rounds to two decimal places, half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Format renders an amount with exactly two decimals.
func Format(d decimal.Decimal) string {
	return d.StringFixed(Places)
}

// Within reports whether |diff| < tolerance.
func Within(diff, tolerance decimal.Decimal) bool {
	return diff.Abs().LessThan(tolerance)
}

// ApplyDiscount returns amount × (1 − percent/100), rounded.
func ApplyDiscount(amount, percent decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(percent.Div(hundred))
	return Round(amount.Mul(factor))
}

// Parse reads a user-entered amount. Blank means zero; thousands separators,
// surrounding spaces and a leading currency symbol are ignored.
func Parse(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimLeft(s, "$€£₹ ")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" || s == "-" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}
	return d, nil
}

// ParseTolerance parses a configured tolerance, falling back to the default
// when blank.
func ParseTolerance(raw string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return DefaultTolerance, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid tolerance %q: %w", raw, err)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("tolerance must be positive, got %s", d)
	}
	return d, nil
}
