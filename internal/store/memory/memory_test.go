package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitebooks/sitebooks/internal/model"
	"github.com/sitebooks/sitebooks/internal/store"
)

func seedAccounts(t *testing.T, s *Store, accts ...model.Account) {
	t.Helper()
	err := s.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		for _, a := range accts {
			if err := tx.SaveAccount(ctx, a); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func draft(id, no string) model.Voucher {
	return model.Voucher{
		ID:        id,
		CompanyID: "c1",
		VoucherNo: no,
		Seq:       1,
		Date:      time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		Type:      model.VoucherTypeJournal,
		Status:    model.StatusDraft,
		Lines: []model.VoucherLine{
			{ID: id + "-1", AccountID: "cash", Debit: decimal.NewFromInt(10)},
			{ID: id + "-2", AccountID: "rev", Credit: decimal.NewFromInt(10)},
		},
	}
}

func TestWithTx_RollbackOnError(t *testing.T) {
	s := New()
	boom := errors.New("boom")

	err := s.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		require.NoError(t, tx.InsertVoucher(ctx, draft("v1", "JV-2025-0001")))
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, s.VoucherCount())
}

func TestWithTx_Commit(t *testing.T) {
	s := New()
	err := s.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.InsertVoucher(ctx, draft("v1", "JV-2025-0001"))
	})
	require.NoError(t, err)
	assert.Equal(t, 1, s.VoucherCount())
}

func TestWithTx_Fault(t *testing.T) {
	s := New()
	down := errors.New("connection refused")
	s.SetFault(down)

	called := false
	err := s.WithTx(context.Background(), func(context.Context, store.Tx) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, down)
	assert.False(t, called)

	s.SetFault(nil)
	require.NoError(t, s.WithTx(context.Background(), func(context.Context, store.Tx) error { return nil }))
}

func TestInsertVoucher_Duplicates(t *testing.T) {
	s := New()
	ctx := context.Background()
	first := draft("v1", "JV-2025-0001")
	first.Reference = "IMP-1"
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertVoucher(ctx, first)
	}))

	sameNo := draft("v2", "JV-2025-0001")
	err := s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error { return tx.InsertVoucher(ctx, sameNo) })
	assert.ErrorIs(t, err, store.ErrDuplicate)

	sameRef := draft("v3", "JV-2025-0002")
	sameRef.Reference = "IMP-1"
	err = s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error { return tx.InsertVoucher(ctx, sameRef) })
	assert.ErrorIs(t, err, store.ErrDuplicate)

	otherCompany := draft("v4", "JV-2025-0001")
	otherCompany.CompanyID = "c2"
	err = s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error { return tx.InsertVoucher(ctx, otherCompany) })
	assert.NoError(t, err)
}

func TestUpdateVoucherStatus_Conditional(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertVoucher(ctx, draft("v1", "JV-2025-0001"))
	}))

	now := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	post := store.StatusChange{From: model.StatusDraft, To: model.StatusPosted, PostedAt: &now, PostedByUserID: "u1"}
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.UpdateVoucherStatus(ctx, "c1", "v1", post)
	}))

	err := s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.UpdateVoucherStatus(ctx, "c1", "v1", post)
	})
	assert.ErrorIs(t, err, store.ErrConflict, "second post from DRAFT must not apply")

	var got model.Voucher
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		got, err = tx.GetVoucher(ctx, "c1", "v1")
		return err
	}))
	assert.Equal(t, model.StatusPosted, got.Status)
	require.NotNil(t, got.PostedAt)
	assert.Equal(t, now, *got.PostedAt)
	assert.Equal(t, "u1", got.PostedByUserID)
}

func TestGetVoucher_CrossTenant(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertVoucher(ctx, draft("v1", "JV-2025-0001"))
	}))
	err := s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.GetVoucher(ctx, "other", "v1")
		return err
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFindAccounts(t *testing.T) {
	s := New()
	seedAccounts(t, s,
		model.Account{ID: "a1", CompanyID: "c1", Code: "1000", Name: "Current Assets", IsActive: true},
		model.Account{ID: "a2", CompanyID: "c1", Code: "1010", Name: "Cash", ParentID: "a1", IsActive: true},
		model.Account{ID: "a3", CompanyID: "c1", Code: "1020", Name: "Petty Cash", ParentID: "a1", IsActive: false},
		model.Account{ID: "a4", CompanyID: "c2", Code: "1010", Name: "Cash", IsActive: true},
	)

	find := func(q store.AccountQuery) []model.Account {
		var out []model.Account
		require.NoError(t, s.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
			var err error
			out, err = tx.FindAccounts(ctx, q)
			return err
		}))
		return out
	}

	assert.Len(t, find(store.AccountQuery{CompanyID: "c1"}), 3)
	assert.Len(t, find(store.AccountQuery{CompanyID: "c1", ParentID: "a1"}), 2)
	assert.Len(t, find(store.AccountQuery{CompanyID: "c1", ParentID: "a1", ActiveOnly: true}), 1)

	byCode := find(store.AccountQuery{CompanyID: "c1", Code: "1010"})
	require.Len(t, byCode, 1)
	assert.Equal(t, "a2", byCode[0].ID)

	assert.Empty(t, find(store.AccountQuery{CompanyID: "c1", Name: "cash"}))
	assert.Len(t, find(store.AccountQuery{CompanyID: "c1", Name: "cash", NameFold: true}), 1)
	assert.Len(t, find(store.AccountQuery{CompanyID: "c1", IDs: []string{"a1", "a4"}}), 1)
}

func TestSaveAccount_DuplicateCode(t *testing.T) {
	s := New()
	seedAccounts(t, s, model.Account{ID: "a1", CompanyID: "c1", Code: "1010", Name: "Cash", IsActive: true})
	err := s.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.SaveAccount(ctx, model.Account{ID: "a2", CompanyID: "c1", Code: "1010", Name: "Other"})
	})
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestLinkPurchaseVoucher_Once(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.SavePurchase(ctx, model.Purchase{ID: "p1", CompanyID: "c1"})
	}))
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.LinkPurchaseVoucher(ctx, "c1", "p1", "v1")
	}))
	err := s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.LinkPurchaseVoucher(ctx, "c1", "p1", "v2")
	})
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestNextVoucherSeq(t *testing.T) {
	s := New()
	ctx := context.Background()
	v1 := draft("v1", "JV-2025-0001")
	v2 := draft("v2", "JV-2025-0002")
	v2.Seq = 2
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.InsertVoucher(ctx, v1); err != nil {
			return err
		}
		return tx.InsertVoucher(ctx, v2)
	}))

	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		seq, err := tx.NextVoucherSeq(ctx, "c1", model.VoucherTypeJournal, 2025)
		require.NoError(t, err)
		assert.Equal(t, 3, seq)

		seq, err = tx.NextVoucherSeq(ctx, "c1", model.VoucherTypePayment, 2025)
		require.NoError(t, err)
		assert.Equal(t, 1, seq)

		seq, err = tx.NextVoucherSeq(ctx, "c1", model.VoucherTypeJournal, 2026)
		require.NoError(t, err)
		assert.Equal(t, 1, seq)
		return nil
	}))
}
