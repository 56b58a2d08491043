package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/sitebooks/sitebooks/internal/model"
	"github.com/sitebooks/sitebooks/internal/store"
)

// AccountGate decides whether an account may receive a posting: it must be
// active and a leaf of the account hierarchy. It only reads.
type AccountGate struct {
	accounts store.AccountReader
}

// NewAccountGate returns a gate reading through r, normally the current Tx so
// the decision sees the same snapshot as the write it guards.
func NewAccountGate(r store.AccountReader) AccountGate {
	return AccountGate{accounts: r}
}

// IsLeaf reports whether no active account has accountID as its parent.
func (g AccountGate) IsLeaf(ctx context.Context, companyID, accountID string) (bool, error) {
	children, err := g.accounts.FindAccounts(ctx, store.AccountQuery{
		CompanyID:  companyID,
		ParentID:   accountID,
		ActiveOnly: true,
		Limit:      1,
	})
	if err != nil {
		return false, fmt.Errorf("listing children of %s: %w", accountID, err)
	}
	return len(children) == 0, nil
}

// IsPostable reports whether a is active and a leaf.
func (g AccountGate) IsPostable(ctx context.Context, a model.Account) (bool, error) {
	if !a.IsActive {
		return false, nil
	}
	return g.IsLeaf(ctx, a.CompanyID, a.ID)
}

// Check returns an *AccountStateError when a is not postable.
func (g AccountGate) Check(ctx context.Context, a model.Account) error {
	if !a.IsActive {
		return &AccountStateError{Reason: ReasonInactive, AccountID: a.ID, Code: a.Code, Name: a.Name}
	}
	leaf, err := g.IsLeaf(ctx, a.CompanyID, a.ID)
	if err != nil {
		return err
	}
	if !leaf {
		return &AccountStateError{Reason: ReasonNonLeaf, AccountID: a.ID, Code: a.Code, Name: a.Name}
	}
	return nil
}

// Load fetches an account, turning a store miss into a *NotFoundError.
func (g AccountGate) Load(ctx context.Context, companyID, accountID string) (model.Account, error) {
	a, err := g.accounts.GetAccount(ctx, companyID, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return model.Account{}, &NotFoundError{Entity: "account", ID: accountID}
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("loading account %s: %w", accountID, err)
	}
	return a, nil
}

// ByCode finds the active account with the given code, ok=false if none.
func (g AccountGate) ByCode(ctx context.Context, companyID, code string) (model.Account, bool, error) {
	found, err := g.accounts.FindAccounts(ctx, store.AccountQuery{
		CompanyID:  companyID,
		Code:       code,
		ActiveOnly: true,
		Limit:      1,
	})
	if err != nil {
		return model.Account{}, false, fmt.Errorf("finding account %s: %w", code, err)
	}
	if len(found) == 0 {
		return model.Account{}, false, nil
	}
	return found[0], true, nil
}
