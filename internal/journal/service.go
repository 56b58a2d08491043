package journal

import (
	"context"
	"fmt"
	"io"

	"github.com/sitebooks/sitebooks/internal/model"
	"github.com/sitebooks/sitebooks/internal/store"
)

// Service exports vouchers from a store.
type Service struct {
	store store.Store
}

// NewService creates a journal Service.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// Export writes the vouchers selected by q to w and returns how many vouchers
// were written. An empty status filter exports POSTED and REVERSED vouchers,
// the ones that affect balances.
func (s *Service) Export(ctx context.Context, w io.Writer, q store.VoucherQuery) (int, error) {
	if len(q.Statuses) == 0 {
		q.Statuses = []model.VoucherStatus{model.StatusPosted, model.StatusReversed}
	}

	var (
		vouchers []model.Voucher
		accounts map[string]model.Account
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		vouchers, err = tx.ListVouchers(ctx, q)
		if err != nil {
			return fmt.Errorf("listing vouchers: %w", err)
		}

		ids := accountIDs(vouchers)
		if len(ids) == 0 {
			return nil
		}
		found, err := tx.FindAccounts(ctx, store.AccountQuery{CompanyID: q.CompanyID, IDs: ids})
		if err != nil {
			return fmt.Errorf("loading accounts: %w", err)
		}
		accounts = make(map[string]model.Account, len(found))
		for _, a := range found {
			accounts[a.ID] = a
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if err := WriteVouchers(w, vouchers, accounts); err != nil {
		return 0, err
	}
	return len(vouchers), nil
}

func accountIDs(vouchers []model.Voucher) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, v := range vouchers {
		for _, l := range v.Lines {
			if !seen[l.AccountID] {
				seen[l.AccountID] = true
				ids = append(ids, l.AccountID)
			}
		}
	}
	return ids
}
