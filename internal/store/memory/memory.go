// Package memory is a transactional in-memory store. Units of work are
// serialized and run against a private copy of the state that replaces the
// shared state only when the callback succeeds.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sitebooks/sitebooks/internal/model"
	"github.com/sitebooks/sitebooks/internal/store"
)

type state struct {
	accounts  map[string]model.Account
	products  map[string]model.Product
	purchases map[string]model.Purchase
	vouchers  map[string]model.Voucher
}

func newState() *state {
	return &state{
		accounts:  make(map[string]model.Account),
		products:  make(map[string]model.Product),
		purchases: make(map[string]model.Purchase),
		vouchers:  make(map[string]model.Voucher),
	}
}

func (s *state) clone() *state {
	out := newState()
	for k, v := range s.accounts {
		out.accounts[k] = v
	}
	for k, v := range s.products {
		out.products[k] = v
	}
	for k, v := range s.purchases {
		p := v
		p.Lines = append([]model.PurchaseLine(nil), v.Lines...)
		out.purchases[k] = p
	}
	for k, v := range s.vouchers {
		out.vouchers[k] = v.Clone()
	}
	return out
}

// Store implements store.Store in memory.
type Store struct {
	mu    sync.Mutex
	state *state
	fault error
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{state: newState()}
}

// SetFault makes every following WithTx fail with err (nil clears it).
func (s *Store) SetFault(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = err
}

// WithTx runs fn in a serialized unit of work.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fault != nil {
		return s.fault
	}

	work := &tx{st: s.state.clone()}
	if err := fn(ctx, work); err != nil {
		return err
	}
	s.state = work.st
	return nil
}

// VoucherCount returns the number of stored vouchers across all companies.
func (s *Store) VoucherCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.vouchers)
}

type tx struct {
	st *state
}

func (t *tx) GetAccount(_ context.Context, companyID, accountID string) (model.Account, error) {
	a, ok := t.st.accounts[accountID]
	if !ok || a.CompanyID != companyID {
		return model.Account{}, fmt.Errorf("account %s: %w", accountID, store.ErrNotFound)
	}
	return a, nil
}

func (t *tx) FindAccounts(_ context.Context, q store.AccountQuery) ([]model.Account, error) {
	var ids map[string]bool
	if len(q.IDs) > 0 {
		ids = make(map[string]bool, len(q.IDs))
		for _, id := range q.IDs {
			ids[id] = true
		}
	}

	var out []model.Account
	for _, a := range t.st.accounts {
		if a.CompanyID != q.CompanyID {
			continue
		}
		if ids != nil && !ids[a.ID] {
			continue
		}
		if q.Code != "" && a.Code != q.Code {
			continue
		}
		if q.Name != "" {
			if q.NameFold && !strings.EqualFold(a.Name, q.Name) {
				continue
			}
			if !q.NameFold && a.Name != q.Name {
				continue
			}
		}
		if q.ParentID != "" && a.ParentID != q.ParentID {
			continue
		}
		if q.ActiveOnly && !a.IsActive {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Code != out[j].Code {
			return out[i].Code < out[j].Code
		}
		return out[i].ID < out[j].ID
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (t *tx) GetProduct(_ context.Context, companyID, productID string) (model.Product, error) {
	p, ok := t.st.products[productID]
	if !ok || p.CompanyID != companyID {
		return model.Product{}, fmt.Errorf("product %s: %w", productID, store.ErrNotFound)
	}
	return p, nil
}

func (t *tx) GetVoucher(_ context.Context, companyID, voucherID string) (model.Voucher, error) {
	v, ok := t.st.vouchers[voucherID]
	if !ok || v.CompanyID != companyID {
		return model.Voucher{}, fmt.Errorf("voucher %s: %w", voucherID, store.ErrNotFound)
	}
	return v.Clone(), nil
}

// LockVoucher is GetVoucher; units of work are already serialized.
func (t *tx) LockVoucher(ctx context.Context, companyID, voucherID string) (model.Voucher, error) {
	return t.GetVoucher(ctx, companyID, voucherID)
}

func (t *tx) ListVouchers(_ context.Context, q store.VoucherQuery) ([]model.Voucher, error) {
	statuses := make(map[model.VoucherStatus]bool, len(q.Statuses))
	for _, s := range q.Statuses {
		statuses[s] = true
	}
	types := make(map[model.VoucherType]bool, len(q.Types))
	for _, ty := range q.Types {
		types[ty] = true
	}

	var out []model.Voucher
	for _, v := range t.st.vouchers {
		if v.CompanyID != q.CompanyID {
			continue
		}
		if len(statuses) > 0 && !statuses[v.Status] {
			continue
		}
		if len(types) > 0 && !types[v.Type] {
			continue
		}
		if !q.From.IsZero() && v.Date.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && v.Date.After(q.To) {
			continue
		}
		out = append(out, v.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].VoucherNo < out[j].VoucherNo
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (t *tx) NextVoucherSeq(_ context.Context, companyID string, vt model.VoucherType, year int) (int, error) {
	maxSeq := 0
	for _, v := range t.st.vouchers {
		if v.CompanyID == companyID && v.Type == vt && v.Date.Year() == year && v.Seq > maxSeq {
			maxSeq = v.Seq
		}
	}
	return maxSeq + 1, nil
}

func (t *tx) InsertVoucher(_ context.Context, v model.Voucher) error {
	if _, ok := t.st.vouchers[v.ID]; ok {
		return fmt.Errorf("voucher id %s: %w", v.ID, store.ErrDuplicate)
	}
	for _, existing := range t.st.vouchers {
		if existing.CompanyID != v.CompanyID {
			continue
		}
		if existing.VoucherNo == v.VoucherNo {
			return fmt.Errorf("voucher number %s: %w", v.VoucherNo, store.ErrDuplicate)
		}
		if v.Reference != "" && existing.Reference == v.Reference {
			return fmt.Errorf("voucher reference %s: %w", v.Reference, store.ErrDuplicate)
		}
	}
	t.st.vouchers[v.ID] = v.Clone()
	return nil
}

func (t *tx) ReplaceDraft(_ context.Context, v model.Voucher) error {
	existing, ok := t.st.vouchers[v.ID]
	if !ok || existing.CompanyID != v.CompanyID {
		return fmt.Errorf("voucher %s: %w", v.ID, store.ErrNotFound)
	}
	if existing.Status != model.StatusDraft {
		return fmt.Errorf("voucher %s is %s: %w", v.ID, existing.Status, store.ErrConflict)
	}
	t.st.vouchers[v.ID] = v.Clone()
	return nil
}

func (t *tx) UpdateVoucherStatus(_ context.Context, companyID, voucherID string, change store.StatusChange) error {
	v, ok := t.st.vouchers[voucherID]
	if !ok || v.CompanyID != companyID {
		return fmt.Errorf("voucher %s: %w", voucherID, store.ErrNotFound)
	}
	if v.Status != change.From {
		return fmt.Errorf("voucher %s is %s, expected %s: %w", voucherID, v.Status, change.From, store.ErrConflict)
	}
	v.Status = change.To
	if change.PostedAt != nil {
		at := *change.PostedAt
		v.PostedAt = &at
		v.PostedByUserID = change.PostedByUserID
	}
	if change.ReversedByID != "" {
		v.ReversedByID = change.ReversedByID
	}
	t.st.vouchers[voucherID] = v
	return nil
}

func (t *tx) LockPurchase(_ context.Context, companyID, purchaseID string) (model.Purchase, error) {
	p, ok := t.st.purchases[purchaseID]
	if !ok || p.CompanyID != companyID {
		return model.Purchase{}, fmt.Errorf("purchase %s: %w", purchaseID, store.ErrNotFound)
	}
	p.Lines = append([]model.PurchaseLine(nil), p.Lines...)
	return p, nil
}

func (t *tx) LinkPurchaseVoucher(_ context.Context, companyID, purchaseID, voucherID string) error {
	p, ok := t.st.purchases[purchaseID]
	if !ok || p.CompanyID != companyID {
		return fmt.Errorf("purchase %s: %w", purchaseID, store.ErrNotFound)
	}
	if p.VoucherID != "" {
		return fmt.Errorf("purchase %s already linked to %s: %w", purchaseID, p.VoucherID, store.ErrConflict)
	}
	p.VoucherID = voucherID
	t.st.purchases[purchaseID] = p
	return nil
}

func (t *tx) SaveAccount(_ context.Context, a model.Account) error {
	for _, existing := range t.st.accounts {
		if existing.ID != a.ID && existing.CompanyID == a.CompanyID && existing.Code == a.Code {
			return fmt.Errorf("account code %s: %w", a.Code, store.ErrDuplicate)
		}
	}
	t.st.accounts[a.ID] = a
	return nil
}

func (t *tx) SaveProduct(_ context.Context, p model.Product) error {
	t.st.products[p.ID] = p
	return nil
}

func (t *tx) SavePurchase(_ context.Context, p model.Purchase) error {
	p.Lines = append([]model.PurchaseLine(nil), p.Lines...)
	t.st.purchases[p.ID] = p
	return nil
}
