package importer

import (
	"context"
	"regexp"
	"strings"

	"github.com/sitebooks/sitebooks/internal/model"
	"github.com/sitebooks/sitebooks/internal/store"
)

// AccountResolver maps a raw account token from a file to an account of the
// company. ok is false when nothing matches.
type AccountResolver interface {
	Resolve(ctx context.Context, accounts store.AccountReader, companyID, token string) (acct model.Account, ok bool, err error)
}

var codePattern = regexp.MustCompile(`^[A-Za-z0-9-]+$`)

// LooksLikeCode reports whether token is shaped like an account code.
func LooksLikeCode(token string) bool {
	return len(token) <= 20 && codePattern.MatchString(token)
}

// HeuristicResolver tries code-shaped tokens as a code first, then every
// token as an exact name and finally as a case-insensitive name. Only active
// accounts match.
type HeuristicResolver struct{}

// Resolve implements AccountResolver.
func (HeuristicResolver) Resolve(ctx context.Context, accounts store.AccountReader, companyID, token string) (model.Account, bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return model.Account{}, false, nil
	}

	queries := []store.AccountQuery{}
	if LooksLikeCode(token) {
		queries = append(queries, store.AccountQuery{Code: token})
	}
	queries = append(queries,
		store.AccountQuery{Name: token},
		store.AccountQuery{Name: token, NameFold: true},
	)
	for _, q := range queries {
		q.CompanyID = companyID
		q.ActiveOnly = true
		q.Limit = 1
		found, err := accounts.FindAccounts(ctx, q)
		if err != nil {
			return model.Account{}, false, err
		}
		if len(found) > 0 {
			return found[0], true, nil
		}
	}
	return model.Account{}, false, nil
}

// CodeResolver matches tokens against account codes only.
type CodeResolver struct{}

// Resolve implements AccountResolver.
func (CodeResolver) Resolve(ctx context.Context, accounts store.AccountReader, companyID, token string) (model.Account, bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return model.Account{}, false, nil
	}
	found, err := accounts.FindAccounts(ctx, store.AccountQuery{CompanyID: companyID, Code: token, ActiveOnly: true, Limit: 1})
	if err != nil || len(found) == 0 {
		return model.Account{}, false, err
	}
	return found[0], true, nil
}
