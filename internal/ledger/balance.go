package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/sitebooks/sitebooks/internal/model"
	"github.com/sitebooks/sitebooks/internal/money"
)

// BalanceResult is the outcome of a balance check.
type BalanceResult struct {
	Valid       bool
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	Difference  decimal.Decimal // TotalDebit - TotalCredit
	Error       string
}

// Err returns the result as a *BalanceError, or nil when valid.
func (r BalanceResult) Err() error {
	if r.Valid {
		return nil
	}
	return &BalanceError{TotalDebit: r.TotalDebit, TotalCredit: r.TotalCredit, Difference: r.Difference}
}

// BalanceValidator checks |Σdebit − Σcredit| < tolerance. It looks only at
// the numbers; line count and account eligibility are checked elsewhere.
type BalanceValidator struct {
	Tolerance decimal.Decimal
}

// NewBalanceValidator returns a validator; a non-positive tolerance means the
// default 0.01.
func NewBalanceValidator(tolerance decimal.Decimal) BalanceValidator {
	if !tolerance.IsPositive() {
		tolerance = money.DefaultTolerance
	}
	return BalanceValidator{Tolerance: tolerance}
}

// Validate sums both columns of lines.
func (b BalanceValidator) Validate(lines []model.VoucherLine) BalanceResult {
	debit, credit := decimal.Zero, decimal.Zero
	for _, l := range lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return b.ValidateTotals(debit, credit)
}

// ValidateTotals checks precomputed totals.
func (b BalanceValidator) ValidateTotals(debit, credit decimal.Decimal) BalanceResult {
	tol := b.Tolerance
	if !tol.IsPositive() {
		tol = money.DefaultTolerance
	}
	res := BalanceResult{
		TotalDebit:  debit,
		TotalCredit: credit,
		Difference:  debit.Sub(credit),
	}
	res.Valid = money.Within(res.Difference, tol)
	if !res.Valid {
		res.Error = res.Err().Error()
	}
	return res
}
