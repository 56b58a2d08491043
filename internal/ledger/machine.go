package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sitebooks/sitebooks/internal/access"
	"github.com/sitebooks/sitebooks/internal/auditlog"
	"github.com/sitebooks/sitebooks/internal/id"
	"github.com/sitebooks/sitebooks/internal/model"
	"github.com/sitebooks/sitebooks/internal/money"
	"github.com/sitebooks/sitebooks/internal/store"
)

// Actor is the user a ledger operation runs for, scoped to one company.
type Actor struct {
	UserID    string
	CompanyID string
}

// Options wires a Machine. Only Store is required.
type Options struct {
	Store     store.Store
	Access    access.Checker
	Audit     auditlog.Sink
	Logger    *zap.Logger
	Tolerance decimal.Decimal
	Now       func() time.Time
}

// Machine owns the voucher lifecycle: the shared creation primitive, draft
// edits and the status transitions, posting included.
type Machine struct {
	store   store.Store
	access  access.Checker
	audit   auditlog.Sink
	log     *zap.Logger
	balance BalanceValidator
	now     func() time.Time
}

// NewMachine creates a Machine.
func NewMachine(opts Options) *Machine {
	m := &Machine{
		store:   opts.Store,
		access:  opts.Access,
		audit:   opts.Audit,
		log:     opts.Logger,
		balance: NewBalanceValidator(opts.Tolerance),
		now:     opts.Now,
	}
	if m.access == nil {
		m.access = access.AllowAll{}
	}
	if m.audit == nil {
		m.audit = auditlog.Nop{}
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Balance returns the validator used at posting.
func (m *Machine) Balance() BalanceValidator {
	return m.balance
}

// Header holds the voucher fields a caller supplies.
type Header struct {
	Date      time.Time
	Type      model.VoucherType
	Narration string
	ProjectID string
	Reference string
}

// BatchFailure is one voucher that did not post.
type BatchFailure struct {
	VoucherID string
	Err       error
}

// BatchResult reports a PostBatch run.
type BatchResult struct {
	Posted []model.Voucher
	Failed []BatchFailure
}

// Get reads a voucher.
func (m *Machine) Get(ctx context.Context, actor Actor, voucherID string) (model.Voucher, error) {
	if err := requireCompany(actor); err != nil {
		return model.Voucher{}, err
	}
	var v model.Voucher
	err := m.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		v, err = loadVoucher(ctx, tx, actor.CompanyID, voucherID, false)
		return err
	})
	return v, err
}

// CreateDraft checks the structural shape of a voucher and stores it as DRAFT.
// Balance and account eligibility are left to posting.
func (m *Machine) CreateDraft(ctx context.Context, actor Actor, h Header, lines []model.VoucherLine) (model.Voucher, error) {
	if err := m.Authorize(ctx, actor, access.ResourceVoucher, access.ActionCreate); err != nil {
		return model.Voucher{}, err
	}

	var v model.Voucher
	err := m.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		v, err = m.CreateDraftTx(ctx, tx, actor, h, lines)
		return err
	})
	if err != nil {
		return model.Voucher{}, err
	}

	m.record(ctx, actor, "voucher.create", v.ID, nil, v)
	m.log.Info("voucher drafted",
		zap.String("company_id", actor.CompanyID),
		zap.String("voucher_no", v.VoucherNo),
		zap.Int("lines", len(v.Lines)))
	return v, nil
}

// CreateDraftTx is the creation primitive shared by manual entry, purchase
// synthesis and import. It runs inside the caller's unit of work.
func (m *Machine) CreateDraftTx(ctx context.Context, tx store.Tx, actor Actor, h Header, lines []model.VoucherLine) (model.Voucher, error) {
	h, err := normalizeHeader(h)
	if err != nil {
		return model.Voucher{}, err
	}
	lines, err = m.checkLines(ctx, tx, actor.CompanyID, lines)
	if err != nil {
		return model.Voucher{}, err
	}

	v := model.Voucher{
		ID:          id.New(),
		CompanyID:   actor.CompanyID,
		Date:        h.Date,
		Type:        h.Type,
		Status:      model.StatusDraft,
		Narration:   h.Narration,
		ProjectID:   h.ProjectID,
		Reference:   h.Reference,
		Lines:       lines,
		CreatedByID: actor.UserID,
		CreatedAt:   m.now(),
	}
	if err := insertNumbered(ctx, tx, &v); err != nil {
		return model.Voucher{}, err
	}
	return v, nil
}

// UpdateDraft replaces the header and lines of a DRAFT voucher.
func (m *Machine) UpdateDraft(ctx context.Context, actor Actor, voucherID string, h Header, lines []model.VoucherLine) (model.Voucher, error) {
	if err := m.Authorize(ctx, actor, access.ResourceVoucher, access.ActionUpdate); err != nil {
		return model.Voucher{}, err
	}

	var before, after model.Voucher
	err := m.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		before, err = loadVoucher(ctx, tx, actor.CompanyID, voucherID, true)
		if err != nil {
			return err
		}
		if before.Status != model.StatusDraft {
			return notDraft(before, "edited")
		}
		if h.Type == "" {
			h.Type = before.Type
		}
		if h.Type != before.Type {
			return &ValidationError{Field: "type", Message: "Voucher type cannot change after creation"}
		}
		h, err = normalizeHeader(h)
		if err != nil {
			return err
		}
		checked, err := m.checkLines(ctx, tx, actor.CompanyID, lines)
		if err != nil {
			return err
		}

		after = before.Clone()
		after.Date = h.Date
		after.Narration = h.Narration
		after.ProjectID = h.ProjectID
		after.Reference = h.Reference
		after.Lines = checked
		if err := tx.ReplaceDraft(ctx, after); err != nil {
			return mapStoreErr(err, "voucher", voucherID)
		}
		return nil
	})
	if err != nil {
		return model.Voucher{}, err
	}

	m.record(ctx, actor, "voucher.update", after.ID, before, after)
	return after, nil
}

// Submit moves a DRAFT voucher to SUBMITTED.
func (m *Machine) Submit(ctx context.Context, actor Actor, voucherID string) (model.Voucher, error) {
	return m.transition(ctx, actor, voucherID, access.ActionSubmit, model.StatusDraft, model.StatusSubmitted)
}

// Approve moves a SUBMITTED voucher to APPROVED.
func (m *Machine) Approve(ctx context.Context, actor Actor, voucherID string) (model.Voucher, error) {
	return m.transition(ctx, actor, voucherID, access.ActionApprove, model.StatusSubmitted, model.StatusApproved)
}

func (m *Machine) transition(ctx context.Context, actor Actor, voucherID, action string, from, to model.VoucherStatus) (model.Voucher, error) {
	if err := m.Authorize(ctx, actor, access.ResourceVoucher, action); err != nil {
		return model.Voucher{}, err
	}

	var before, after model.Voucher
	err := m.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		before, err = loadVoucher(ctx, tx, actor.CompanyID, voucherID, true)
		if err != nil {
			return err
		}
		if before.Status != from {
			return &ConflictError{
				Kind:    KindInvalidTransition,
				Entity:  "voucher",
				ID:      before.ID,
				Status:  before.Status,
				Message: fmt.Sprintf("Only %s vouchers can be moved to %s (voucher %s is %s)", from, to, before.VoucherNo, before.Status),
			}
		}
		if err := tx.UpdateVoucherStatus(ctx, actor.CompanyID, voucherID, store.StatusChange{From: from, To: to}); err != nil {
			return mapStatusErr(err, before)
		}
		after = before.Clone()
		after.Status = to
		return nil
	})
	if err != nil {
		return model.Voucher{}, err
	}

	m.record(ctx, actor, "voucher."+action, after.ID, before, after)
	return after, nil
}

// Post promotes a DRAFT voucher to POSTED. Balance and account
// eligibility are re-checked against the stored lines, and the status write is
// conditional on the status that was read, all in one unit of work.
func (m *Machine) Post(ctx context.Context, actor Actor, voucherID string) (model.Voucher, error) {
	if err := m.Authorize(ctx, actor, access.ResourceVoucher, access.ActionPost); err != nil {
		return model.Voucher{}, err
	}

	var before, after model.Voucher
	err := m.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		before, err = loadVoucher(ctx, tx, actor.CompanyID, voucherID, true)
		if err != nil {
			return err
		}
		if before.Status != model.StatusDraft {
			return notDraft(before, "posted")
		}
		if res := m.balance.Validate(before.Lines); !res.Valid {
			return res.Err()
		}
		if err := m.checkPostable(ctx, tx, actor.CompanyID, before.Lines); err != nil {
			return err
		}

		postedAt := m.now()
		change := store.StatusChange{
			From:           before.Status,
			To:             model.StatusPosted,
			PostedAt:       &postedAt,
			PostedByUserID: actor.UserID,
		}
		if err := tx.UpdateVoucherStatus(ctx, actor.CompanyID, voucherID, change); err != nil {
			return mapStatusErr(err, before)
		}
		after = before.Clone()
		after.Status = model.StatusPosted
		after.PostedAt = &postedAt
		after.PostedByUserID = actor.UserID
		return nil
	})
	if err != nil {
		return model.Voucher{}, err
	}

	m.record(ctx, actor, "voucher.post", after.ID, before, after)
	debit, _ := after.Totals()
	m.log.Info("voucher posted",
		zap.String("company_id", actor.CompanyID),
		zap.String("voucher_no", after.VoucherNo),
		zap.String("amount", money.Format(debit)),
		zap.String("user_id", actor.UserID))
	return after, nil
}

// PostBatch posts each voucher in its own unit of work. One failure does not
// stop the rest. Infrastructure errors are reported per voucher as well.
func (m *Machine) PostBatch(ctx context.Context, actor Actor, voucherIDs []string) BatchResult {
	var res BatchResult
	for _, vid := range voucherIDs {
		v, err := m.Post(ctx, actor, vid)
		if err != nil {
			res.Failed = append(res.Failed, BatchFailure{VoucherID: vid, Err: err})
			continue
		}
		res.Posted = append(res.Posted, v)
	}
	return res
}

// checkPostable applies the account gate to every line: any inactive account
// rejects the voucher, then the first non-leaf account is named.
func (m *Machine) checkPostable(ctx context.Context, tx store.Tx, companyID string, lines []model.VoucherLine) error {
	gate := NewAccountGate(tx)
	accounts := make([]model.Account, 0, len(lines))
	seen := make(map[string]bool, len(lines))
	for _, l := range lines {
		if seen[l.AccountID] {
			continue
		}
		seen[l.AccountID] = true
		a, err := gate.Load(ctx, companyID, l.AccountID)
		if err != nil {
			return err
		}
		accounts = append(accounts, a)
	}

	for _, a := range accounts {
		if !a.IsActive {
			return &AccountStateError{Reason: ReasonInactive, AccountID: a.ID, Code: a.Code, Name: a.Name}
		}
	}
	for _, a := range accounts {
		if err := gate.Check(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// checkLines enforces the structural rules shared by every creation path:
// at least one line, and exactly one of debit/credit positive per line, on an
// account of the company.
func (m *Machine) checkLines(ctx context.Context, tx store.Tx, companyID string, lines []model.VoucherLine) ([]model.VoucherLine, error) {
	if len(lines) == 0 {
		return nil, &ValidationError{Field: "lines", Message: "Voucher must have at least one line"}
	}

	gate := NewAccountGate(tx)
	known := make(map[string]bool)
	out := make([]model.VoucherLine, len(lines))
	for i, l := range lines {
		n := i + 1
		if l.AccountID == "" {
			return nil, &ValidationError{Field: fmt.Sprintf("lines[%d].account", i), Message: fmt.Sprintf("Line %d: account is required", n)}
		}
		if l.Debit.IsNegative() || l.Credit.IsNegative() {
			return nil, &ValidationError{Field: fmt.Sprintf("lines[%d]", i), Message: fmt.Sprintf("Line %d: amounts cannot be negative", n)}
		}
		if l.Debit.IsZero() == l.Credit.IsZero() {
			return nil, &ValidationError{Field: fmt.Sprintf("lines[%d]", i), Message: fmt.Sprintf("Line %d: exactly one of debit or credit must be non-zero", n)}
		}
		if !known[l.AccountID] {
			if _, err := gate.Load(ctx, companyID, l.AccountID); err != nil {
				return nil, err
			}
			known[l.AccountID] = true
		}
		if l.ID == "" {
			l.ID = id.New()
		}
		out[i] = l
	}
	return out, nil
}

func normalizeHeader(h Header) (Header, error) {
	if h.Type == "" {
		h.Type = model.VoucherTypeJournal
	}
	if !h.Type.Valid() {
		return h, &ValidationError{Field: "type", Message: fmt.Sprintf("Unknown voucher type %q", h.Type)}
	}
	if h.Date.IsZero() {
		return h, &ValidationError{Field: "date", Message: "Voucher date is required"}
	}
	return h, nil
}

// insertNumbered assigns the next voucher number for the company, type and
// year, then inserts.
func insertNumbered(ctx context.Context, tx store.Tx, v *model.Voucher) error {
	seq, err := tx.NextVoucherSeq(ctx, v.CompanyID, v.Type, v.Date.Year())
	if err != nil {
		return fmt.Errorf("allocating voucher number: %w", err)
	}
	v.Seq = seq
	v.VoucherNo = id.FormatVoucherNo(v.Type.Prefix(), v.Date.Year(), seq)
	if err := tx.InsertVoucher(ctx, *v); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			key := v.VoucherNo
			if v.Reference != "" {
				key = v.Reference
			}
			return &ConflictError{Kind: KindDuplicate, Entity: "voucher", ID: key, Message: fmt.Sprintf("Voucher %s already exists", key)}
		}
		return fmt.Errorf("inserting voucher: %w", err)
	}
	return nil
}

func loadVoucher(ctx context.Context, tx store.Tx, companyID, voucherID string, lock bool) (model.Voucher, error) {
	var (
		v   model.Voucher
		err error
	)
	if lock {
		v, err = tx.LockVoucher(ctx, companyID, voucherID)
	} else {
		v, err = tx.GetVoucher(ctx, companyID, voucherID)
	}
	if err != nil {
		return model.Voucher{}, mapStoreErr(err, "voucher", voucherID)
	}
	return v, nil
}

func notDraft(v model.Voucher, verb string) error {
	msg := fmt.Sprintf("Only DRAFT vouchers can be %s (voucher %s is %s)", verb, v.VoucherNo, v.Status)
	return &ConflictError{Kind: KindNotDraft, Entity: "voucher", ID: v.ID, Status: v.Status, Message: msg}
}

func mapStoreErr(err error, entity, key string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return &NotFoundError{Entity: entity, ID: key}
	case errors.Is(err, store.ErrConflict):
		return &ConflictError{Kind: KindStatusChanged, Entity: entity, ID: key, Message: fmt.Sprintf("%s %s was changed concurrently", entity, key)}
	}
	return fmt.Errorf("%s %s: %w", entity, key, err)
}

func mapStatusErr(err error, v model.Voucher) error {
	if errors.Is(err, store.ErrConflict) {
		return &ConflictError{
			Kind:    KindStatusChanged,
			Entity:  "voucher",
			ID:      v.ID,
			Status:  v.Status,
			Message: fmt.Sprintf("Voucher %s changed status concurrently", v.VoucherNo),
		}
	}
	return mapStoreErr(err, "voucher", v.ID)
}

// Authorize checks that actor is scoped to a company and may perform action
// on resource.
func (m *Machine) Authorize(ctx context.Context, actor Actor, resource, action string) error {
	if err := requireCompany(actor); err != nil {
		return err
	}
	if !m.access.HasPermission(ctx, actor.UserID, resource, action) {
		return &ForbiddenError{UserID: actor.UserID, Resource: resource, Action: action}
	}
	return nil
}

func requireCompany(actor Actor) error {
	if actor.CompanyID == "" {
		return &ValidationError{Field: "company", Message: "Company is required"}
	}
	return nil
}

// record sends a before/after snapshot to the audit sink. Failures are logged
// and never returned.
func (m *Machine) record(ctx context.Context, actor Actor, action, entityID string, before, after any) {
	e := auditlog.Entry{
		Timestamp: m.now(),
		UserID:    actor.UserID,
		CompanyID: actor.CompanyID,
		Action:    action,
		Entity:    "voucher",
		EntityID:  entityID,
		Before:    snapshot(before),
		After:     snapshot(after),
	}
	if err := m.audit.Record(ctx, e); err != nil {
		m.log.Warn("audit record failed",
			zap.String("action", action),
			zap.String("entity_id", entityID),
			zap.Error(err))
	}
}

func snapshot(v any) string {
	if v == nil {
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
