package journal

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitebooks/sitebooks/internal/model"
	"github.com/sitebooks/sitebooks/internal/store"
	"github.com/sitebooks/sitebooks/internal/store/memory"
)

func seedVouchers(t *testing.T) *memory.Store {
	t.Helper()
	st := memory.New()
	require.NoError(t, st.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		for _, a := range []model.Account{
			{ID: "a-cash", CompanyID: "co-1", Code: "1010", Name: "Cash", Type: model.AccountTypeAsset, IsActive: true},
			{ID: "a-rev", CompanyID: "co-1", Code: "4010", Name: "Revenue", Type: model.AccountTypeIncome, IsActive: true},
		} {
			if err := tx.SaveAccount(ctx, a); err != nil {
				return err
			}
		}
		lines := []model.VoucherLine{
			{ID: "l1", AccountID: "a-cash", Debit: decimal.NewFromInt(10), Credit: decimal.Zero},
			{ID: "l2", AccountID: "a-rev", Debit: decimal.Zero, Credit: decimal.NewFromInt(10)},
		}
		for i, status := range []model.VoucherStatus{model.StatusPosted, model.StatusDraft, model.StatusReversed} {
			v := model.Voucher{
				ID:        "v" + string(rune('1'+i)),
				CompanyID: "co-1",
				VoucherNo: "JV-2025-000" + string(rune('1'+i)),
				Seq:       i + 1,
				Date:      date(2025, 3, 1+i),
				Type:      model.VoucherTypeJournal,
				Status:    status,
				Lines:     lines,
			}
			if err := tx.InsertVoucher(ctx, v); err != nil {
				return err
			}
		}
		return nil
	}))
	return st
}

func TestService_Export(t *testing.T) {
	svc := NewService(seedVouchers(t))

	var buf bytes.Buffer
	n, err := svc.Export(context.Background(), &buf, store.VoucherQuery{CompanyID: "co-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, n, "drafts are not exported by default")

	out := buf.String()
	assert.Contains(t, out, "JV-2025-0001,2025-03-01,JOURNAL,POSTED,1010,Cash,10.00,")
	assert.Contains(t, out, "JV-2025-0003")
	assert.NotContains(t, out, "JV-2025-0002")
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 5)
}

func TestService_ExportFilters(t *testing.T) {
	svc := NewService(seedVouchers(t))

	var buf bytes.Buffer
	n, err := svc.Export(context.Background(), &buf, store.VoucherQuery{
		CompanyID: "co-1",
		Statuses:  []model.VoucherStatus{model.StatusDraft},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, buf.String(), "JV-2025-0002")

	buf.Reset()
	n, err = svc.Export(context.Background(), &buf, store.VoucherQuery{CompanyID: "co-2"})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, Header+"\n", buf.String())
}
