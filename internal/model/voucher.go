package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// VoucherType is the accounting document kind.
type VoucherType string

const (
	VoucherTypeJournal VoucherType = "JOURNAL"
	VoucherTypePayment VoucherType = "PAYMENT"
	VoucherTypeReceipt VoucherType = "RECEIPT"
	VoucherTypeContra  VoucherType = "CONTRA"
)

// Valid reports whether t is a known voucher type.
func (t VoucherType) Valid() bool {
	switch t {
	case VoucherTypeJournal, VoucherTypePayment, VoucherTypeReceipt, VoucherTypeContra:
		return true
	}
	return false
}

// Prefix returns the voucher number prefix for the type.
func (t VoucherType) Prefix() string {
	switch t {
	case VoucherTypePayment:
		return "PV"
	case VoucherTypeReceipt:
		return "RV"
	case VoucherTypeContra:
		return "CV"
	default:
		return "JV"
	}
}

// VoucherStatus represents the lifecycle state of a voucher.
//
//	DRAFT -> SUBMITTED -> APPROVED
//	DRAFT -> POSTED
//	POSTED -> REVERSED (terminal)
//
// Only a DRAFT voucher can be posted.
type VoucherStatus string

const (
	StatusDraft     VoucherStatus = "DRAFT"
	StatusSubmitted VoucherStatus = "SUBMITTED"
	StatusApproved  VoucherStatus = "APPROVED"
	StatusPosted    VoucherStatus = "POSTED"
	StatusReversed  VoucherStatus = "REVERSED"
)

// Voucher is a double-entry accounting transaction. It is mutable only while
// DRAFT and immutable once POSTED.
type Voucher struct {
	ID             string
	CompanyID      string
	VoucherNo      string
	Seq            int
	Date           time.Time
	Type           VoucherType
	Status         VoucherStatus
	Narration      string
	ProjectID      string
	Reference      string // external key, unique per company when set (import voucher key)
	Lines          []VoucherLine
	ReversalOfID   string
	ReversedByID   string
	CreatedByID    string
	CreatedAt      time.Time
	PostedAt       *time.Time
	PostedByUserID string
}

// VoucherLine is one debit or credit posting of a voucher.
type VoucherLine struct {
	ID              string
	AccountID       string
	Debit           decimal.Decimal
	Credit          decimal.Decimal
	Description     string
	ProjectID       string
	VendorID        string
	CostHeadID      string
	PaymentMethodID string
}

// Totals sums the debit and credit columns.
func (v Voucher) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, l := range v.Lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit
}

// Clone returns a deep copy so callers can mutate lines freely.
func (v Voucher) Clone() Voucher {
	out := v
	out.Lines = append([]VoucherLine(nil), v.Lines...)
	if v.PostedAt != nil {
		t := *v.PostedAt
		out.PostedAt = &t
	}
	return out
}
