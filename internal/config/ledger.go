package config

import (
	"github.com/shopspring/decimal"

	"github.com/sitebooks/sitebooks/internal/money"
)

// ToleranceValue parses the balance tolerance. Blank means the default.
func (l LedgerConfig) ToleranceValue() (decimal.Decimal, error) {
	return money.ParseTolerance(l.Tolerance)
}
