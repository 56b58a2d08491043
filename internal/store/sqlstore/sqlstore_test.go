package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sitebooks/sitebooks/internal/model"
	"github.com/sitebooks/sitebooks/internal/store"
)

func TestPrepareDSN(t *testing.T) {
	out, err := PrepareDSN("books:secret@tcp(db:3306)/sitebooks")
	require.NoError(t, err)

	cfg, err := mysql.ParseDSN(out)
	require.NoError(t, err)
	assert.True(t, cfg.ParseTime)
	assert.True(t, cfg.ClientFoundRows)
	assert.Equal(t, "sitebooks", cfg.DBName)
	assert.Equal(t, "db:3306", cfg.Addr)

	_, err = PrepareDSN("not a dsn")
	assert.Error(t, err)
}

func TestIsDuplicate(t *testing.T) {
	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'JV-2025-0001'"}
	assert.True(t, isDuplicate(dup))
	assert.True(t, isDuplicate(fmt.Errorf("insert: %w", dup)))
	assert.False(t, isDuplicate(&mysql.MySQLError{Number: 1213}))
	assert.False(t, isDuplicate(errors.New("boom")))
}

func TestIsDeadlock(t *testing.T) {
	victim := &mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"}
	assert.True(t, isDeadlock(victim))
	assert.True(t, isDeadlock(fmt.Errorf("next voucher seq: %w", victim)))
	assert.False(t, isDeadlock(&mysql.MySQLError{Number: 1062}))
	assert.False(t, isDeadlock(nil))
}

func TestNotFound(t *testing.T) {
	err := notFound(gorm.ErrRecordNotFound, "voucher", "v-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Contains(t, err.Error(), "v-1")

	err = notFound(errors.New("connection reset"), "voucher", "v-1")
	assert.NotErrorIs(t, err, store.ErrNotFound)
}

func TestVoucherRowConversion(t *testing.T) {
	posted := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	v := model.Voucher{
		ID:        "v-1",
		CompanyID: "co-1",
		VoucherNo: "JV-2025-0007",
		Seq:       7,
		Date:      time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Type:      model.VoucherTypeJournal,
		Status:    model.StatusPosted,
		PostedAt:  &posted,
		Lines: []model.VoucherLine{
			{ID: "l-1", AccountID: "a-1", Debit: decimal.RequireFromString("100"), Credit: decimal.Zero},
			{ID: "l-2", AccountID: "a-2", Debit: decimal.Zero, Credit: decimal.RequireFromString("100")},
		},
	}

	row := toVoucherRow(v)
	assert.Equal(t, 2025, row.Year)
	assert.Nil(t, row.Reference, "empty reference is stored as NULL")
	assert.Nil(t, row.ReversalOfID)
	require.Len(t, row.Lines, 2)
	assert.Equal(t, 1, row.Lines[1].Position)
	assert.Equal(t, "v-1", row.Lines[1].VoucherID)

	back := row.model()
	assert.Equal(t, v, back)
}

func TestGormLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewGormLogger(zap.New(core))

	sql := func() (string, int64) { return "SELECT 1", 1 }
	l.Trace(context.Background(), time.Now(), sql, nil)
	assert.Equal(t, 0, logs.Len(), "plain queries are quiet at warn")

	l.Trace(context.Background(), time.Now(), sql, gorm.ErrRecordNotFound)
	assert.Equal(t, 0, logs.Len())

	l.Trace(context.Background(), time.Now(), sql, errors.New("deadlock"))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "query failed", logs.All()[0].Message)

	l.Trace(context.Background(), time.Now().Add(-time.Second), sql, nil)
	assert.Equal(t, "slow query", logs.All()[1].Message)

	verbose := l.LogMode(logger.Info)
	verbose.Trace(context.Background(), time.Now(), sql, nil)
	assert.Equal(t, zapcore.DebugLevel, logs.All()[2].Level)

	l.LogMode(logger.Silent).Trace(context.Background(), time.Now(), sql, errors.New("ignored"))
	assert.Equal(t, 3, logs.Len())
}

// openTestStore connects to the database named by SITEBOOKS_TEST_MYSQL_DSN.
// Each test works in its own company so runs do not interfere.
func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dsn := os.Getenv("SITEBOOKS_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("SITEBOOKS_TEST_MYSQL_DSN not set")
	}
	s, err := Open(dsn, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s, "co-" + uuid.NewString()
}

func TestMySQL_VoucherLifecycle(t *testing.T) {
	s, co := openTestStore(t)
	ctx := context.Background()

	cash := model.Account{ID: uuid.NewString(), CompanyID: co, Code: "1010", Name: "Cash", Type: model.AccountTypeAsset, IsActive: true}
	rev := model.Account{ID: uuid.NewString(), CompanyID: co, Code: "4010", Name: "Revenue", Type: model.AccountTypeIncome, IsActive: true}
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.SaveAccount(ctx, cash); err != nil {
			return err
		}
		return tx.SaveAccount(ctx, rev)
	}))

	dupe := model.Account{ID: uuid.NewString(), CompanyID: co, Code: "1010", Name: "Petty", Type: model.AccountTypeAsset, IsActive: true}
	err := s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error { return tx.SaveAccount(ctx, dupe) })
	assert.ErrorIs(t, err, store.ErrDuplicate)

	v := model.Voucher{
		ID:        uuid.NewString(),
		CompanyID: co,
		Date:      time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Type:      model.VoucherTypeJournal,
		Status:    model.StatusDraft,
		Reference: "REF-1",
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		Lines: []model.VoucherLine{
			{ID: uuid.NewString(), AccountID: cash.ID, Debit: decimal.RequireFromString("100"), Credit: decimal.Zero},
			{ID: uuid.NewString(), AccountID: rev.ID, Debit: decimal.Zero, Credit: decimal.RequireFromString("100")},
		},
	}
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		seq, err := tx.NextVoucherSeq(ctx, co, v.Type, 2025)
		if err != nil {
			return err
		}
		v.Seq = seq
		v.VoucherNo = fmt.Sprintf("JV-2025-%04d", seq)
		return tx.InsertVoucher(ctx, v)
	}))
	assert.Equal(t, 1, v.Seq)

	err = s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		again := v
		again.ID = uuid.NewString()
		again.VoucherNo = "JV-2025-0002"
		again.Seq = 2
		again.Lines = nil
		return tx.InsertVoucher(ctx, again)
	})
	assert.ErrorIs(t, err, store.ErrDuplicate, "reference is unique per company")

	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		got, err := tx.LockVoucher(ctx, co, v.ID)
		if err != nil {
			return err
		}
		got.Narration = "edited"
		return tx.ReplaceDraft(ctx, got)
	}))

	now := time.Now().UTC().Truncate(time.Second)
	change := store.StatusChange{From: model.StatusDraft, To: model.StatusPosted, PostedAt: &now, PostedByUserID: "u-1"}
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.UpdateVoucherStatus(ctx, co, v.ID, change)
	}))
	err = s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.UpdateVoucherStatus(ctx, co, v.ID, change)
	})
	assert.ErrorIs(t, err, store.ErrConflict)
	err = s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.UpdateVoucherStatus(ctx, co, "missing", change)
	})
	assert.ErrorIs(t, err, store.ErrNotFound)

	var listed []model.Voucher
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		listed, err = tx.ListVouchers(ctx, store.VoucherQuery{CompanyID: co, Statuses: []model.VoucherStatus{model.StatusPosted}})
		return err
	}))
	require.Len(t, listed, 1)
	assert.Equal(t, "edited", listed[0].Narration)
	require.Len(t, listed[0].Lines, 2)
	assert.True(t, listed[0].Lines[0].Debit.Equal(decimal.RequireFromString("100")))
	assert.Equal(t, "u-1", listed[0].PostedByUserID)
}

func TestMySQL_LinkPurchaseOnce(t *testing.T) {
	s, co := openTestStore(t)
	ctx := context.Background()

	p := model.Purchase{
		ID:              uuid.NewString(),
		CompanyID:       co,
		PurchaseNo:      "P-1",
		Date:            time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		DiscountPercent: decimal.Zero,
		PaidAmount:      decimal.Zero,
		DueAmount:       decimal.RequireFromString("50"),
		Lines: []model.PurchaseLine{
			{Kind: model.PurchaseLineService, Description: "Crane hire", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString("50")},
		},
	}
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error { return tx.SavePurchase(ctx, p) }))

	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.LinkPurchaseVoucher(ctx, co, p.ID, "v-1")
	}))
	err := s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.LinkPurchaseVoucher(ctx, co, p.ID, "v-2")
	})
	assert.ErrorIs(t, err, store.ErrConflict)

	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		got, err := tx.LockPurchase(ctx, co, p.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, "v-1", got.VoucherID)
		require.Len(t, got.Lines, 1)
		assert.Equal(t, "Crane hire", got.Lines[0].Description)
		return nil
	}))
}

func TestMySQL_ConcurrentNumbering(t *testing.T) {
	s, co := openTestStore(t)
	ctx := context.Background()

	const drafts = 8
	seqs := make(chan int, drafts)
	errs := make(chan error, drafts)
	var wg sync.WaitGroup
	for i := 0; i < drafts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var seq int
			err := s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
				var err error
				seq, err = tx.NextVoucherSeq(ctx, co, model.VoucherTypePayment, 2025)
				if err != nil {
					return err
				}
				v := model.Voucher{
					ID:        uuid.NewString(),
					CompanyID: co,
					VoucherNo: fmt.Sprintf("PV-2025-%04d", seq),
					Seq:       seq,
					Date:      time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
					Type:      model.VoucherTypePayment,
					Status:    model.StatusDraft,
					CreatedAt: time.Now().UTC().Truncate(time.Second),
				}
				return tx.InsertVoucher(ctx, v)
			})
			errs <- err
			if err == nil {
				seqs <- seq
			}
		}()
	}
	wg.Wait()
	close(errs)
	close(seqs)

	for err := range errs {
		require.NoError(t, err)
	}
	var got []int
	for seq := range seqs {
		got = append(got, seq)
	}
	sort.Ints(got)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, got)
}
