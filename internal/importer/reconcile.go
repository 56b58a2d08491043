package importer

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sitebooks/sitebooks/internal/access"
	"github.com/sitebooks/sitebooks/internal/ledger"
	"github.com/sitebooks/sitebooks/internal/model"
	"github.com/sitebooks/sitebooks/internal/money"
	"github.com/sitebooks/sitebooks/internal/store"
)

// RowError is a problem with one data row. Row is the 1-based line in the
// file, the header being row 1.
type RowError struct {
	Row     int
	Message string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("Row %d: %s", e.Row, e.Message)
}

// Line is one resolved row of a candidate.
type Line struct {
	Row          int             `json:"row"`
	AccountToken string          `json:"accountToken"`
	AccountID    string          `json:"accountId,omitempty"`
	AccountCode  string          `json:"accountCode,omitempty"`
	AccountName  string          `json:"accountName,omitempty"`
	Debit        decimal.Decimal `json:"debit"`
	Credit       decimal.Decimal `json:"credit"`
	Description  string          `json:"description,omitempty"`
}

// VoucherGroup is one voucher candidate and its verdict.
type VoucherGroup struct {
	Key         string            `json:"key"`
	Rows        []int             `json:"rows"`
	Date        time.Time         `json:"date"`
	Type        model.VoucherType `json:"type"`
	Narration   string            `json:"narration,omitempty"`
	Reference   string            `json:"reference,omitempty"`
	Lines       []Line            `json:"lines"`
	TotalDebit  decimal.Decimal   `json:"totalDebit"`
	TotalCredit decimal.Decimal   `json:"totalCredit"`
	Difference  decimal.Decimal   `json:"difference"`
	Errors      []string          `json:"errors"`
	Warnings    []string          `json:"warnings"`
}

// Valid reports whether the candidate has no errors.
func (g VoucherGroup) Valid() bool {
	return len(g.Errors) == 0
}

// UnresolvedAccount is a token that matched no active account, with every row
// it appeared on.
type UnresolvedAccount struct {
	Token string `json:"token"`
	Rows  []int  `json:"rows"`
}

// ParseResult is the verdict for a whole batch.
type ParseResult struct {
	Vouchers           []VoucherGroup      `json:"vouchers"`
	TotalRows          int                 `json:"totalRows"`
	TotalVouchers      int                 `json:"totalVouchers"`
	Errors             []string            `json:"errors"`
	Warnings           []string            `json:"warnings"`
	UnresolvedAccounts []UnresolvedAccount `json:"unresolvedAccounts"`
}

// InvalidCount returns the number of candidates with errors.
func (r ParseResult) InvalidCount() int {
	n := 0
	for _, g := range r.Vouchers {
		if !g.Valid() {
			n++
		}
	}
	return n
}

// Exclude returns res without the candidates whose key is listed. Row and
// voucher totals and the unresolved accounts are narrowed to what remains.
func (r ParseResult) Exclude(keys []string) ParseResult {
	if len(keys) == 0 {
		return r
	}
	drop := make(map[string]bool, len(keys))
	for _, k := range keys {
		drop[strings.TrimSpace(k)] = true
	}

	out := ParseResult{Warnings: r.Warnings}
	kept := make(map[int]bool)
	for _, g := range r.Vouchers {
		if drop[g.Key] {
			continue
		}
		out.Vouchers = append(out.Vouchers, g)
		for _, n := range g.Rows {
			kept[n] = true
		}
	}
	out.TotalRows = len(kept)
	out.TotalVouchers = len(out.Vouchers)

	for _, u := range r.UnresolvedAccounts {
		var rows []int
		for _, n := range u.Rows {
			if kept[n] {
				rows = append(rows, n)
			}
		}
		if len(rows) == 0 {
			continue
		}
		out.UnresolvedAccounts = append(out.UnresolvedAccounts, UnresolvedAccount{Token: u.Token, Rows: rows})
		out.Errors = append(out.Errors, fmt.Sprintf("Account %q not found (rows %s)", u.Token, joinInts(rows)))
	}
	return out
}

// CheckCommittable refuses a batch in which any candidate has an error. The
// committing callers apply it; Commit itself does not.
func CheckCommittable(res ParseResult) error {
	bad := res.InvalidCount()
	if bad == 0 && len(res.Errors) == 0 {
		return nil
	}
	return &ledger.ValidationError{
		Field:   "import",
		Message: fmt.Sprintf("%d of %d vouchers have errors; fix or exclude them before committing", bad, len(res.Vouchers)),
	}
}

// CommitError is a candidate that failed to persist or to post.
type CommitError struct {
	VoucherKey string `json:"voucherKey"`
	Kind       string `json:"kind,omitempty"`
	Error      string `json:"error"`
}

// CommitResult reports a commit run.
type CommitResult struct {
	Imported   int           `json:"imported"`
	Skipped    int           `json:"skipped"`
	Posted     int           `json:"posted"`
	VoucherIDs []string      `json:"voucherIds"`
	Errors     []CommitError `json:"errors"`
}

// CommitOptions tune Commit.
type CommitOptions struct {
	// PostAfterCommit posts every imported draft. Post failures are recorded
	// and the draft stays imported.
	PostAfterCommit bool
}

// Reconciler parses and commits import batches.
type Reconciler struct {
	store    store.Store
	machine  *ledger.Machine
	resolver AccountResolver
	log      *zap.Logger
}

// NewReconciler returns a Reconciler. A nil resolver means HeuristicResolver.
func NewReconciler(st store.Store, m *ledger.Machine, resolver AccountResolver, log *zap.Logger) *Reconciler {
	if resolver == nil {
		resolver = HeuristicResolver{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{store: st, machine: m, resolver: resolver, log: log}
}

type pendingRow struct {
	num int
	row Row
}

type pendingGroup struct {
	key  string
	rows []pendingRow
}

// Parse groups the rows of t into candidates and validates each one. Bad rows
// never stop the batch; the returned error is reserved for a bad mapping or an
// unreachable store.
func (r *Reconciler) Parse(ctx context.Context, actor ledger.Actor, t Table, mapping ColumnMapping) (ParseResult, error) {
	if err := mapping.Validate(t.Columns); err != nil {
		return ParseResult{}, &ledger.ValidationError{Field: "mapping", Message: err.Error()}
	}

	groups, total := groupRows(t.Rows, mapping)
	tokens := distinctTokens(groups, mapping)

	var resolved map[string]model.Account
	err := r.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		resolved, err = r.resolveAll(ctx, tx, actor.CompanyID, tokens)
		return err
	})
	if err != nil {
		return ParseResult{}, fmt.Errorf("resolving accounts: %w", err)
	}

	res := ParseResult{TotalRows: total, TotalVouchers: len(groups)}
	for _, tok := range sortedTokens(tokens) {
		if _, ok := resolved[tok]; ok {
			continue
		}
		rows := tokens[tok]
		res.UnresolvedAccounts = append(res.UnresolvedAccounts, UnresolvedAccount{Token: tok, Rows: rows})
		res.Errors = append(res.Errors, fmt.Sprintf("Account %q not found (rows %s)", tok, joinInts(rows)))
	}

	balance := r.machine.Balance()
	for _, pg := range groups {
		res.Vouchers = append(res.Vouchers, buildGroup(pg, mapping, resolved, balance))
	}
	return res, nil
}

func (r *Reconciler) resolveAll(ctx context.Context, tx store.Tx, companyID string, tokens map[string][]int) (map[string]model.Account, error) {
	out := make(map[string]model.Account, len(tokens))
	for tok := range tokens {
		acct, ok, err := r.resolver.Resolve(ctx, tx, companyID, tok)
		if err != nil {
			return nil, err
		}
		if ok {
			out[tok] = acct
		}
	}
	return out, nil
}

// groupRows assigns each non-blank row to a candidate: by voucher key when
// mapped and set, else by date and reference when both are mapped and set,
// else alone. Candidates keep the order of their first row.
func groupRows(rows []Row, m ColumnMapping) ([]*pendingGroup, int) {
	var (
		order []*pendingGroup
		byKey = make(map[string]*pendingGroup)
		total int
	)
	for i, row := range rows {
		num := i + 2
		if blank(row, m) {
			continue
		}
		total++

		// Map keys are namespaced by kind so a voucher key cell can never
		// capture a date/reference group or a lone row.
		var key, display string
		if v := cell(row, m.VoucherKey); v != "" {
			key, display = "key:"+v, v
		} else if d, ref := cell(row, m.Date), cell(row, m.Reference); m.Reference != "" && d != "" && ref != "" {
			display = d + " / " + ref
			key = "dr:" + display
		}
		pr := pendingRow{num: num, row: row}

		if key == "" {
			order = append(order, &pendingGroup{key: fmt.Sprintf("Row %d", num), rows: []pendingRow{pr}})
			continue
		}
		g, ok := byKey[key]
		if !ok {
			g = &pendingGroup{key: display}
			byKey[key] = g
			order = append(order, g)
		}
		g.rows = append(g.rows, pr)
	}
	return order, total
}

func distinctTokens(groups []*pendingGroup, m ColumnMapping) map[string][]int {
	out := make(map[string][]int)
	for _, g := range groups {
		for _, pr := range g.rows {
			tok := cell(pr.row, m.Account)
			if tok == "" {
				continue
			}
			out[tok] = append(out[tok], pr.num)
		}
	}
	return out
}

func buildGroup(pg *pendingGroup, m ColumnMapping, resolved map[string]model.Account, balance ledger.BalanceValidator) VoucherGroup {
	g := VoucherGroup{
		Key:    pg.key,
		Type:   model.VoucherTypeJournal,
		Errors: []string{},
	}
	rowErr := func(num int, format string, args ...any) {
		g.Errors = append(g.Errors, (&RowError{Row: num, Message: fmt.Sprintf(format, args...)}).Error())
	}

	var typeSet bool
	for _, pr := range pg.rows {
		g.Rows = append(g.Rows, pr.num)

		date, err := ParseDate(cell(pr.row, m.Date))
		switch {
		case err != nil:
			rowErr(pr.num, "invalid date %q", cell(pr.row, m.Date))
		case g.Date.IsZero():
			g.Date = date
		case !date.Equal(g.Date):
			g.Warnings = append(g.Warnings, fmt.Sprintf("Row %d: date %s differs from voucher date %s", pr.num, date.Format("2006-01-02"), g.Date.Format("2006-01-02")))
		}

		if !typeSet {
			if raw := cell(pr.row, m.Type); raw != "" {
				vt := model.VoucherType(strings.ToUpper(raw))
				if !vt.Valid() {
					rowErr(pr.num, "unknown voucher type %q", raw)
				} else {
					g.Type = vt
				}
				typeSet = true
			}
		}
		if g.Narration == "" {
			g.Narration = cell(pr.row, m.Narration)
		}
		if g.Reference == "" {
			g.Reference = cell(pr.row, m.Reference)
		}

		line, ok := buildLine(pr, m, resolved, rowErr)
		if ok {
			g.Lines = append(g.Lines, line)
		}
	}

	if len(pg.rows) < 2 {
		g.Errors = append(g.Errors, "Voucher must have at least two lines")
	}

	debit, credit := decimal.Zero, decimal.Zero
	for _, l := range g.Lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	res := balance.ValidateTotals(debit, credit)
	g.TotalDebit, g.TotalCredit, g.Difference = res.TotalDebit, res.TotalCredit, res.Difference
	if !res.Valid {
		g.Errors = append(g.Errors, res.Error)
	}
	if g.Warnings == nil {
		g.Warnings = []string{}
	}
	return g
}

func buildLine(pr pendingRow, m ColumnMapping, resolved map[string]model.Account, rowErr func(int, string, ...any)) (Line, bool) {
	ok := true
	line := Line{
		Row:          pr.num,
		AccountToken: cell(pr.row, m.Account),
		Description:  cell(pr.row, m.Description),
	}

	if line.AccountToken == "" {
		rowErr(pr.num, "account is empty")
		ok = false
	} else if acct, found := resolved[line.AccountToken]; found {
		line.AccountID, line.AccountCode, line.AccountName = acct.ID, acct.Code, acct.Name
	} else {
		rowErr(pr.num, "account %q could not be resolved", line.AccountToken)
		ok = false
	}

	debit, err := money.Parse(cell(pr.row, m.Debit))
	if err != nil {
		rowErr(pr.num, "invalid debit %q", cell(pr.row, m.Debit))
		return line, false
	}
	credit, err := money.Parse(cell(pr.row, m.Credit))
	if err != nil {
		rowErr(pr.num, "invalid credit %q", cell(pr.row, m.Credit))
		return line, false
	}
	line.Debit, line.Credit = debit, credit

	switch {
	case debit.IsNegative() || credit.IsNegative():
		rowErr(pr.num, "amounts cannot be negative")
		return line, false
	case !debit.IsZero() && !credit.IsZero():
		rowErr(pr.num, "both debit and credit are set")
		return line, false
	case debit.IsZero() && credit.IsZero():
		rowErr(pr.num, "debit or credit is required")
		return line, false
	}
	return line, ok
}

// Commit creates one DRAFT voucher per candidate, each in its own unit of
// work. A candidate that fails is recorded and the rest continue.
func (r *Reconciler) Commit(ctx context.Context, actor ledger.Actor, groups []VoucherGroup, opts CommitOptions) (CommitResult, error) {
	if err := r.machine.Authorize(ctx, actor, access.ResourceImport, access.ActionCommit); err != nil {
		return CommitResult{}, err
	}

	res := CommitResult{VoucherIDs: []string{}, Errors: []CommitError{}}
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		lines := make([]model.VoucherLine, 0, len(g.Lines))
		for _, l := range g.Lines {
			lines = append(lines, model.VoucherLine{
				AccountID:   l.AccountID,
				Debit:       l.Debit,
				Credit:      l.Credit,
				Description: l.Description,
			})
		}
		h := ledger.Header{Date: g.Date, Type: g.Type, Narration: g.Narration, Reference: g.Reference}

		v, err := r.machine.CreateDraft(ctx, actor, h, lines)
		if err != nil {
			res.Skipped++
			res.Errors = append(res.Errors, CommitError{VoucherKey: g.Key, Kind: ledger.FailureKind(err), Error: err.Error()})
			r.log.Warn("import candidate not committed",
				zap.String("company_id", actor.CompanyID),
				zap.String("voucher_key", g.Key),
				zap.Error(err))
			continue
		}
		res.Imported++
		res.VoucherIDs = append(res.VoucherIDs, v.ID)

		if !opts.PostAfterCommit {
			continue
		}
		if _, err := r.machine.Post(ctx, actor, v.ID); err != nil {
			res.Errors = append(res.Errors, CommitError{VoucherKey: g.Key, Kind: ledger.FailureKind(err), Error: "post: " + err.Error()})
			r.log.Warn("imported voucher not posted",
				zap.String("voucher_no", v.VoucherNo),
				zap.Error(err))
			continue
		}
		res.Posted++
	}

	r.log.Info("import committed",
		zap.String("company_id", actor.CompanyID),
		zap.Int("imported", res.Imported),
		zap.Int("skipped", res.Skipped),
		zap.Int("posted", res.Posted))
	return res, nil
}

func cell(row Row, col string) string {
	if col == "" {
		return ""
	}
	return strings.TrimSpace(row[col])
}

func blank(row Row, m ColumnMapping) bool {
	for _, c := range m.columns() {
		if cell(row, c) != "" {
			return false
		}
	}
	return true
}

func sortedTokens(tokens map[string][]int) []string {
	out := make([]string, 0, len(tokens))
	for t := range tokens {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return tokens[out[i]][0] < tokens[out[j]][0]
	})
	return out
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ", ")
}
