package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sitebooks/sitebooks/internal/model"
	"github.com/sitebooks/sitebooks/internal/money"
)

// Domain outcomes. All of these are expected results returned to callers;
// anything else coming out of the ledger is an infrastructure failure.

// ValidationError is malformed input shape.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// BalanceError reports debits and credits differing by at least the tolerance.
type BalanceError struct {
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	Difference  decimal.Decimal // TotalDebit - TotalCredit
}

func (e *BalanceError) Error() string {
	return fmt.Sprintf("Voucher is not balanced. Total Debit: %s, Total Credit: %s, Difference: %s",
		money.Format(e.TotalDebit), money.Format(e.TotalCredit), money.Format(e.Difference))
}

// AccountStateReason says why an account may not receive a posting.
type AccountStateReason string

const (
	ReasonInactive AccountStateReason = "inactive"
	ReasonNonLeaf  AccountStateReason = "non-leaf"
)

// AccountStateError is an inactive or non-leaf account on a posting path.
type AccountStateError struct {
	Reason    AccountStateReason
	AccountID string
	Code      string
	Name      string
}

func (e *AccountStateError) Error() string {
	if e.Reason == ReasonInactive {
		return "Cannot post voucher with inactive accounts"
	}
	return fmt.Sprintf("Account %s (%s) is not a leaf account.", e.Code, e.Name)
}

// NotFoundError is a missing or cross-tenant row.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// Conflict kinds.
const (
	KindNotDraft          = "NotDraft"
	KindNotPosted         = "NotPosted"
	KindInvalidTransition = "InvalidTransition"
	KindStatusChanged     = "StatusChanged"
	KindAlreadyLinked     = "AlreadyLinked"
	KindDuplicate         = "Duplicate"
)

// ConflictError is a voucher not in the expected status, a purchase already
// linked, or a unique key taken.
type ConflictError struct {
	Kind    string
	Entity  string
	ID      string
	Status  model.VoucherStatus
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// ForbiddenError is a failed permission check.
type ForbiddenError struct {
	UserID   string
	Resource string
	Action   string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("user %q may not %s %s", e.UserID, e.Action, e.Resource)
}

// ConfigError is a missing or unusable configured account.
type ConfigError struct {
	Setting string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error (%s): %s", e.Setting, e.Message)
}

// ErrSynthesisUnbalanced means a synthesized voucher did not balance. It
// indicates a defect in the synthesis arithmetic or inconsistent source data.
var ErrSynthesisUnbalanced = errors.New("synthesized voucher is unbalanced")

// FailureKind classifies err for structured responses: NotDraft, Unbalanced,
// InactiveAccount, NonLeafAccount, NotFound, Validation, Forbidden, Config,
// a conflict kind, or "" for infrastructure errors.
func FailureKind(err error) string {
	var (
		ve *ValidationError
		be *BalanceError
		ae *AccountStateError
		ne *NotFoundError
		ce *ConflictError
		fe *ForbiddenError
		cf *ConfigError
	)
	switch {
	case errors.As(err, &be):
		return "Unbalanced"
	case errors.As(err, &ae):
		if ae.Reason == ReasonInactive {
			return "InactiveAccount"
		}
		return "NonLeafAccount"
	case errors.As(err, &ce):
		return ce.Kind
	case errors.As(err, &ne):
		return "NotFound"
	case errors.As(err, &ve):
		return "Validation"
	case errors.As(err, &fe):
		return "Forbidden"
	case errors.As(err, &cf):
		return "Config"
	}
	return ""
}
