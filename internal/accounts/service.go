package accounts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sitebooks/sitebooks/internal/id"
	"github.com/sitebooks/sitebooks/internal/model"
	"github.com/sitebooks/sitebooks/internal/store"
)

// ChartPath is the chart file relative to a project root.
const ChartPath = "accounts/chart-of-accounts.csv"

// Load reads the chart file from a project root.
func Load(root string) ([]Entry, error) {
	f, err := os.Open(filepath.Join(root, ChartPath))
	if err != nil {
		return nil, fmt.Errorf("opening chart of accounts: %w", err)
	}
	defer f.Close()

	entries, err := ReadEntries(f)
	if err != nil {
		return nil, fmt.Errorf("reading chart of accounts: %w", err)
	}
	return entries, nil
}

// Save writes entries to the chart file under root.
func Save(root string, entries []Entry) error {
	path := filepath.Join(root, ChartPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating accounts dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating chart of accounts file: %w", err)
	}
	defer f.Close()

	if err := WriteEntries(f, entries); err != nil {
		return fmt.Errorf("writing chart of accounts: %w", err)
	}
	return nil
}

// Validate checks that codes are unique and no account is its own parent.
func Validate(entries []Entry) error {
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if seen[e.Code] {
			return fmt.Errorf("duplicate account code %s", e.Code)
		}
		seen[e.Code] = true
		if e.ParentCode == e.Code {
			return fmt.Errorf("account %s is its own parent", e.Code)
		}
	}
	return nil
}

// SeedResult counts what Seed wrote.
type SeedResult struct {
	Created int
	Updated int
}

// Seed upserts entries into the company's chart in one unit of work.
// Existing accounts are matched by code and keep their ids. A parent code
// may name an entry of the chart or an account already stored.
func Seed(ctx context.Context, st store.Store, companyID string, entries []Entry) (SeedResult, error) {
	if err := Validate(entries); err != nil {
		return SeedResult{}, err
	}

	var res SeedResult
	err := st.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		existing, err := tx.FindAccounts(ctx, store.AccountQuery{CompanyID: companyID})
		if err != nil {
			return fmt.Errorf("listing accounts: %w", err)
		}
		ids := make(map[string]string, len(existing)+len(entries))
		for _, a := range existing {
			ids[a.Code] = a.ID
		}

		res = SeedResult{}
		for _, e := range entries {
			if _, ok := ids[e.Code]; ok {
				res.Updated++
				continue
			}
			ids[e.Code] = id.New()
			res.Created++
		}

		for _, e := range entries {
			if e.ParentCode != "" && ids[e.ParentCode] == "" {
				return fmt.Errorf("account %s: parent %s not found", e.Code, e.ParentCode)
			}
			a := model.Account{
				ID:        ids[e.Code],
				CompanyID: companyID,
				Code:      e.Code,
				Name:      e.Name,
				Type:      e.Type,
				ParentID:  ids[e.ParentCode],
				IsActive:  e.Active,
			}
			if err := tx.SaveAccount(ctx, a); err != nil {
				return fmt.Errorf("saving account %s: %w", e.Code, err)
			}
		}
		return nil
	})
	if err != nil {
		return SeedResult{}, err
	}
	return res, nil
}

// Export reads the company's chart back as entries, ordered by code.
func Export(ctx context.Context, st store.Store, companyID string) ([]Entry, error) {
	var entries []Entry
	err := st.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		all, err := tx.FindAccounts(ctx, store.AccountQuery{CompanyID: companyID})
		if err != nil {
			return fmt.Errorf("listing accounts: %w", err)
		}
		codes := make(map[string]string, len(all))
		for _, a := range all {
			codes[a.ID] = a.Code
		}
		entries = make([]Entry, 0, len(all))
		for _, a := range all {
			entries = append(entries, Entry{
				Code:       a.Code,
				Name:       a.Name,
				Type:       a.Type,
				ParentCode: codes[a.ParentID],
				Active:     a.IsActive,
			})
		}
		return nil
	})
	return entries, err
}
