package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitebooks/sitebooks/internal/ledger"
	"github.com/sitebooks/sitebooks/internal/model"
	"github.com/sitebooks/sitebooks/internal/store"
)

func (f *fixture) purchase(t *testing.T, p model.Purchase) model.Purchase {
	t.Helper()
	p.CompanyID = company
	if p.ID == "" {
		p.ID = "pur-1"
	}
	if p.PurchaseNo == "" {
		p.PurchaseNo = "PUR-0001"
	}
	if p.Date.IsZero() {
		p.Date = day(2025, 3, 4)
	}
	seed(t, f.store, func(ctx context.Context, tx store.Tx) error {
		return tx.SavePurchase(ctx, p)
	})
	return p
}

func (f *fixture) product(t *testing.T, p model.Product) {
	t.Helper()
	p.CompanyID = company
	seed(t, f.store, func(ctx context.Context, tx store.Tx) error {
		return tx.SaveProduct(ctx, p)
	})
}

func material(productID, qty, price string) model.PurchaseLine {
	return model.PurchaseLine{
		Kind:      model.PurchaseLineMaterial,
		ProductID: productID,
		Quantity:  dec(qty),
		UnitPrice: dec(price),
	}
}

func builder(f *fixture) *ledger.PurchaseBuilder {
	return ledger.NewPurchaseBuilder(f.machine, ledger.PurchaseConfig{})
}

// Scenario C.
func TestEnsureVoucher_DiscountAndSplitPayment(t *testing.T) {
	f := newFixture(t)
	f.product(t, model.Product{ID: "cement", Name: "Cement", InventoryAccountID: "1200"})
	p := f.purchase(t, model.Purchase{
		SupplierVendorID: "vendor-1",
		DiscountPercent:  dec("10"),
		Lines: []model.PurchaseLine{
			material("cement", "10", "60"),
			material("", "4", "100"),
		},
		PaidAmount:       dec("300"),
		DueAmount:        dec("600"),
		PaymentAccountID: "1020",
	})

	res, err := builder(f).EnsureVoucher(context.Background(), actor, p.ID)
	require.NoError(t, err)
	assert.True(t, res.Created)

	v, err := f.machine.Get(context.Background(), actor, res.VoucherID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDraft, v.Status)
	assert.Equal(t, "Purchase PUR-0001", v.Narration)
	require.Len(t, v.Lines, 4)

	assert.Equal(t, "1200", v.Lines[0].AccountID)
	assert.True(t, v.Lines[0].Debit.Equal(dec("540")))
	assert.Equal(t, "5010", v.Lines[1].AccountID, "lines without a product fall back to default purchases")
	assert.True(t, v.Lines[1].Debit.Equal(dec("360")))
	assert.Equal(t, "1020", v.Lines[2].AccountID)
	assert.True(t, v.Lines[2].Credit.Equal(dec("300")))
	assert.Equal(t, "2010", v.Lines[3].AccountID)
	assert.True(t, v.Lines[3].Credit.Equal(dec("600")))
	for _, l := range v.Lines {
		assert.Equal(t, "vendor-1", l.VendorID)
	}

	debit, credit := v.Totals()
	assert.True(t, debit.Equal(dec("900")))
	assert.True(t, credit.Equal(dec("900")))
}

func TestEnsureVoucher_PerLineRounding(t *testing.T) {
	f := newFixture(t)
	// 3 x 33.33 = 99.99 and 1 x 0.05 = 0.05 at 12.5% off round per line to
	// 87.49 and 0.04, where the discounted total would round to 87.54.
	p := f.purchase(t, model.Purchase{
		DiscountPercent: dec("12.5"),
		Lines: []model.PurchaseLine{
			material("", "3", "33.33"),
			material("", "1", "0.05"),
		},
		DueAmount: dec("87.53"),
	})

	res, err := builder(f).EnsureVoucher(context.Background(), actor, p.ID)
	require.NoError(t, err)

	v, err := f.machine.Get(context.Background(), actor, res.VoucherID)
	require.NoError(t, err)
	require.Len(t, v.Lines, 3)
	assert.Equal(t, "87.49", v.Lines[0].Debit.StringFixed(2))
	assert.Equal(t, "0.04", v.Lines[1].Debit.StringFixed(2))
}

func TestEnsureVoucher_Idempotent(t *testing.T) {
	f := newFixture(t)
	p := f.purchase(t, model.Purchase{
		Lines:     []model.PurchaseLine{material("", "1", "250")},
		DueAmount: dec("250"),
	})
	b := builder(f)

	first, err := b.EnsureVoucher(context.Background(), actor, p.ID)
	require.NoError(t, err)
	second, err := b.EnsureVoucher(context.Background(), actor, p.ID)
	require.NoError(t, err)

	assert.Equal(t, first.VoucherID, second.VoucherID)
	assert.True(t, first.Created)
	assert.False(t, second.Created)
	assert.Equal(t, 1, f.store.VoucherCount())
}

func TestEnsureVoucher_Concurrent(t *testing.T) {
	f := newFixture(t)
	p := f.purchase(t, model.Purchase{
		Lines:     []model.PurchaseLine{material("", "1", "250")},
		DueAmount: dec("250"),
	})
	b := builder(f)

	const n = 10
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := b.EnsureVoucher(context.Background(), actor, p.ID)
			if assert.NoError(t, err) {
				ids[i] = res.VoucherID
			}
		}(i)
	}
	wg.Wait()

	for _, got := range ids {
		assert.Equal(t, ids[0], got)
	}
	assert.Equal(t, 1, f.store.VoucherCount())
}

func TestEnsureVoucher_InventoryAccountNotPostable(t *testing.T) {
	f := newFixture(t)
	f.product(t, model.Product{ID: "steel", Name: "Steel", InventoryAccountID: "6090"})
	f.product(t, model.Product{ID: "sand", Name: "Sand", InventoryAccountID: "1000"})
	p := f.purchase(t, model.Purchase{
		Lines:     []model.PurchaseLine{material("steel", "1", "10"), material("sand", "1", "5")},
		DueAmount: dec("15"),
	})

	res, err := builder(f).EnsureVoucher(context.Background(), actor, p.ID)
	require.NoError(t, err)
	v, err := f.machine.Get(context.Background(), actor, res.VoucherID)
	require.NoError(t, err)
	assert.Equal(t, "5010", v.Lines[0].AccountID)
	assert.Equal(t, "5010", v.Lines[1].AccountID)
}

func TestEnsureVoucher_Failures(t *testing.T) {
	t.Run("paid without payment account", func(t *testing.T) {
		f := newFixture(t)
		p := f.purchase(t, model.Purchase{
			Lines:      []model.PurchaseLine{material("", "1", "100")},
			PaidAmount: dec("100"),
		})
		_, err := builder(f).EnsureVoucher(context.Background(), actor, p.ID)
		var ve *ledger.ValidationError
		require.ErrorAs(t, err, &ve)
	})

	t.Run("missing default purchases account", func(t *testing.T) {
		f := newFixture(t)
		p := f.purchase(t, model.Purchase{
			Lines:     []model.PurchaseLine{material("", "1", "100")},
			DueAmount: dec("100"),
		})
		b := ledger.NewPurchaseBuilder(f.machine, ledger.PurchaseConfig{DefaultPurchasesCode: "5999"})
		_, err := b.EnsureVoucher(context.Background(), actor, p.ID)
		var ce *ledger.ConfigError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "default_purchases_code", ce.Setting)
		assert.Equal(t, "Config", ledger.FailureKind(err))
	})

	t.Run("payables account is a parent", func(t *testing.T) {
		f := newFixture(t)
		p := f.purchase(t, model.Purchase{
			Lines:     []model.PurchaseLine{material("", "1", "100")},
			DueAmount: dec("100"),
		})
		b := ledger.NewPurchaseBuilder(f.machine, ledger.PurchaseConfig{AccountsPayableCode: "1000"})
		_, err := b.EnsureVoucher(context.Background(), actor, p.ID)
		var ce *ledger.ConfigError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "accounts_payable_code", ce.Setting)
	})

	t.Run("amounts do not add up", func(t *testing.T) {
		f := newFixture(t)
		p := f.purchase(t, model.Purchase{
			Lines:     []model.PurchaseLine{material("", "1", "100")},
			DueAmount: dec("90"),
		})
		_, err := builder(f).EnsureVoucher(context.Background(), actor, p.ID)
		assert.True(t, errors.Is(err, ledger.ErrSynthesisUnbalanced))
	})

	t.Run("unknown purchase", func(t *testing.T) {
		f := newFixture(t)
		_, err := builder(f).EnsureVoucher(context.Background(), actor, "nope")
		var ne *ledger.NotFoundError
		require.ErrorAs(t, err, &ne)
		assert.Equal(t, "purchase", ne.Entity)
	})
}

func TestBuild_SkipsZeroLines(t *testing.T) {
	f := newFixture(t)
	p := model.Purchase{
		CompanyID:  company,
		PurchaseNo: "PUR-9",
		Date:       day(2025, 3, 4),
		Lines: []model.PurchaseLine{
			material("", "0", "100"),
			material("", "2", "5"),
		},
		DueAmount: dec("10"),
	}

	seed(t, f.store, func(ctx context.Context, tx store.Tx) error {
		h, lines, err := builder(f).Build(ctx, tx, p)
		require.NoError(t, err)
		assert.Equal(t, model.VoucherTypeJournal, h.Type)
		require.Len(t, lines, 2)
		assert.True(t, lines[0].Debit.Equal(decimal.NewFromInt(10)))
		return nil
	})
	assert.Equal(t, 0, f.store.VoucherCount(), "Build does not persist")
}
