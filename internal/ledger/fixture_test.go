package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sitebooks/sitebooks/internal/auditlog"
	"github.com/sitebooks/sitebooks/internal/ledger"
	"github.com/sitebooks/sitebooks/internal/model"
	"github.com/sitebooks/sitebooks/internal/store"
	"github.com/sitebooks/sitebooks/internal/store/memory"
)

const company = "co-1"

var actor = ledger.Actor{UserID: "u-1", CompanyID: company}

var fixedNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store   *memory.Store
	audit   *auditlog.Recorder
	machine *ledger.Machine
}

// Account ids are their codes so tests read naturally.
var chart = []model.Account{
	{ID: "1000", Code: "1000", Name: "Current Assets", Type: model.AccountTypeAsset, IsActive: true},
	{ID: "1010", Code: "1010", Name: "Cash", Type: model.AccountTypeAsset, ParentID: "1000", IsActive: true},
	{ID: "1020", Code: "1020", Name: "Bank", Type: model.AccountTypeAsset, ParentID: "1000", IsActive: true},
	{ID: "1200", Code: "1200", Name: "Inventory", Type: model.AccountTypeAsset, ParentID: "1000", IsActive: true},
	{ID: "2010", Code: "2010", Name: "Accounts Payable", Type: model.AccountTypeLiability, IsActive: true},
	{ID: "4010", Code: "4010", Name: "Revenue", Type: model.AccountTypeIncome, IsActive: true},
	{ID: "5000", Code: "5000", Name: "Cost of Works", Type: model.AccountTypeExpense, IsActive: true},
	{ID: "5010", Code: "5010", Name: "Direct Materials", Type: model.AccountTypeExpense, ParentID: "5000", IsActive: true},
	{ID: "6090", Code: "6090", Name: "Old Expenses", Type: model.AccountTypeExpense, IsActive: false},
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.New()
	seed(t, st, func(ctx context.Context, tx store.Tx) error {
		for _, a := range chart {
			a.CompanyID = company
			if err := tx.SaveAccount(ctx, a); err != nil {
				return err
			}
		}
		return nil
	})
	rec := &auditlog.Recorder{}
	m := ledger.NewMachine(ledger.Options{
		Store: st,
		Audit: rec,
		Now:   func() time.Time { return fixedNow },
	})
	return &fixture{store: st, audit: rec, machine: m}
}

func seed(t *testing.T, st store.Store, fn func(ctx context.Context, tx store.Tx) error) {
	t.Helper()
	require.NoError(t, st.WithTx(context.Background(), fn))
}

func (f *fixture) addAccount(t *testing.T, a model.Account) {
	t.Helper()
	a.CompanyID = company
	seed(t, f.store, func(ctx context.Context, tx store.Tx) error {
		return tx.SaveAccount(ctx, a)
	})
}

func (f *fixture) draft(t *testing.T, lines ...model.VoucherLine) model.Voucher {
	t.Helper()
	v, err := f.machine.CreateDraft(context.Background(), actor, ledger.Header{Date: day(2025, 3, 1)}, lines)
	require.NoError(t, err)
	return v
}

func dr(account, amount string) model.VoucherLine {
	return model.VoucherLine{AccountID: account, Debit: decimal.RequireFromString(amount), Credit: decimal.Zero}
}

func cr(account, amount string) model.VoucherLine {
	return model.VoucherLine{AccountID: account, Debit: decimal.Zero, Credit: decimal.RequireFromString(amount)}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
