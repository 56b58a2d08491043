// Package store defines the unit-of-work contract the ledger runs against.
//
// Every multi-row mutation happens inside Store.WithTx; a non-nil error from
// the callback rolls the whole unit back. Implementations must give row-lock
// semantics to the Lock* reads and must apply the conditional updates
// (status transitions, purchase links) atomically.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/sitebooks/sitebooks/internal/model"
)

var (
	// ErrNotFound is returned when a row does not exist in the company scope.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when a conditional update matched no row.
	ErrConflict = errors.New("store: conditional update matched no row")
	// ErrDuplicate is returned when a unique key is violated.
	ErrDuplicate = errors.New("store: duplicate key")
)

// Store opens transactions.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// AccountQuery selects accounts of one company. Empty fields do not filter.
type AccountQuery struct {
	CompanyID string
	IDs       []string
	Code      string
	Name      string
	// NameFold makes Name match case-insensitively.
	NameFold   bool
	ParentID   string
	ActiveOnly bool
	Limit      int
}

// VoucherQuery selects vouchers of one company. Zero times do not filter.
type VoucherQuery struct {
	CompanyID string
	Statuses  []model.VoucherStatus
	Types     []model.VoucherType
	From      time.Time
	To        time.Time
	Limit     int
}

// StatusChange is applied by UpdateVoucherStatus when the stored status still
// equals From.
type StatusChange struct {
	From           model.VoucherStatus
	To             model.VoucherStatus
	PostedAt       *time.Time
	PostedByUserID string
	ReversedByID   string
}

// AccountReader is the read side of the chart of accounts.
type AccountReader interface {
	GetAccount(ctx context.Context, companyID, accountID string) (model.Account, error)
	FindAccounts(ctx context.Context, q AccountQuery) ([]model.Account, error)
}

// Tx is one unit of work.
type Tx interface {
	AccountReader

	GetProduct(ctx context.Context, companyID, productID string) (model.Product, error)

	GetVoucher(ctx context.Context, companyID, voucherID string) (model.Voucher, error)
	// LockVoucher reads a voucher and holds its row until the unit ends.
	LockVoucher(ctx context.Context, companyID, voucherID string) (model.Voucher, error)
	ListVouchers(ctx context.Context, q VoucherQuery) ([]model.Voucher, error)
	// NextVoucherSeq returns max(seq)+1 for the company, type and year.
	// Units numbering the same sequence are serialized until they end.
	NextVoucherSeq(ctx context.Context, companyID string, t model.VoucherType, year int) (int, error)
	// InsertVoucher stores a voucher with its lines. ErrDuplicate on a taken
	// voucher number or reference.
	InsertVoucher(ctx context.Context, v model.Voucher) error
	// ReplaceDraft overwrites header and lines of a voucher that is still DRAFT.
	// ErrConflict when the stored voucher is no longer DRAFT.
	ReplaceDraft(ctx context.Context, v model.Voucher) error
	// UpdateVoucherStatus applies change only when the stored status equals
	// change.From; ErrConflict otherwise.
	UpdateVoucherStatus(ctx context.Context, companyID, voucherID string, change StatusChange) error

	// LockPurchase reads a purchase and holds its row until the unit ends.
	LockPurchase(ctx context.Context, companyID, purchaseID string) (model.Purchase, error)
	// LinkPurchaseVoucher sets the purchase's voucher only when none is set;
	// ErrConflict otherwise.
	LinkPurchaseVoucher(ctx context.Context, companyID, purchaseID, voucherID string) error

	// Master data writes, used by seeding and tests.
	SaveAccount(ctx context.Context, a model.Account) error
	SaveProduct(ctx context.Context, p model.Product) error
	SavePurchase(ctx context.Context, p model.Purchase) error
}
