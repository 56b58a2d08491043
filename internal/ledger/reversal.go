package ledger

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sitebooks/sitebooks/internal/access"
	"github.com/sitebooks/sitebooks/internal/id"
	"github.com/sitebooks/sitebooks/internal/model"
	"github.com/sitebooks/sitebooks/internal/store"
)

// ReverseOptions tune the reversal voucher. Zero values pick the defaults:
// the day after the source and "Reversal of <voucherNo>".
type ReverseOptions struct {
	Date      time.Time
	Narration string
}

// ReverseResult pairs the stamped source with its reversal.
type ReverseResult struct {
	Source   model.Voucher
	Reversal model.Voucher
}

// ReversalEngine cancels a POSTED voucher with a mirrored one.
type ReversalEngine struct {
	machine *Machine
}

// NewReversalEngine returns an engine writing through m.
func NewReversalEngine(m *Machine) *ReversalEngine {
	return &ReversalEngine{machine: m}
}

// Reverse creates a POSTED voucher with every line of the source swapped and
// marks the source REVERSED, in one unit of work.
func (e *ReversalEngine) Reverse(ctx context.Context, actor Actor, voucherID string, opts ReverseOptions) (ReverseResult, error) {
	m := e.machine
	if err := m.Authorize(ctx, actor, access.ResourceVoucher, access.ActionReverse); err != nil {
		return ReverseResult{}, err
	}

	var (
		res    ReverseResult
		before model.Voucher
	)
	err := m.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		src, err := loadVoucher(ctx, tx, actor.CompanyID, voucherID, true)
		if err != nil {
			return err
		}
		if src.Status != model.StatusPosted {
			return &ConflictError{
				Kind:    KindNotPosted,
				Entity:  "voucher",
				ID:      src.ID,
				Status:  src.Status,
				Message: fmt.Sprintf("Only POSTED vouchers can be reversed (voucher %s is %s)", src.VoucherNo, src.Status),
			}
		}

		date, err := reversalDate(src.Date, opts.Date)
		if err != nil {
			return err
		}
		narration := opts.Narration
		if narration == "" {
			narration = "Reversal of " + src.VoucherNo
		}

		now := m.now()
		rev := model.Voucher{
			ID:             id.New(),
			CompanyID:      src.CompanyID,
			Date:           date,
			Type:           src.Type,
			Status:         model.StatusPosted,
			Narration:      narration,
			ProjectID:      src.ProjectID,
			Lines:          swapLines(src.Lines),
			ReversalOfID:   src.ID,
			CreatedByID:    actor.UserID,
			CreatedAt:      now,
			PostedAt:       &now,
			PostedByUserID: actor.UserID,
		}
		if res := m.balance.Validate(rev.Lines); !res.Valid {
			return fmt.Errorf("%w: reversal of %s: %s", ErrSynthesisUnbalanced, src.VoucherNo, res.Error)
		}
		if err := insertNumbered(ctx, tx, &rev); err != nil {
			return err
		}

		change := store.StatusChange{From: model.StatusPosted, To: model.StatusReversed, ReversedByID: rev.ID}
		if err := tx.UpdateVoucherStatus(ctx, actor.CompanyID, src.ID, change); err != nil {
			return mapStatusErr(err, src)
		}

		before = src
		res.Reversal = rev
		res.Source = src.Clone()
		res.Source.Status = model.StatusReversed
		res.Source.ReversedByID = rev.ID
		return nil
	})
	if err != nil {
		return ReverseResult{}, err
	}

	m.record(ctx, actor, "voucher.reverse", res.Source.ID, before, res.Source)
	m.record(ctx, actor, "voucher.create", res.Reversal.ID, nil, res.Reversal)
	m.log.Info("voucher reversed",
		zap.String("company_id", actor.CompanyID),
		zap.String("voucher_no", res.Source.VoucherNo),
		zap.String("reversal_no", res.Reversal.VoucherNo))
	return res, nil
}

func reversalDate(source, requested time.Time) (time.Time, error) {
	if requested.IsZero() {
		return source.AddDate(0, 0, 1), nil
	}
	if !requested.After(source) {
		return time.Time{}, &ValidationError{
			Field:   "date",
			Message: fmt.Sprintf("Reversal date must be after %s", source.Format("2006-01-02")),
		}
	}
	return requested, nil
}

func swapLines(lines []model.VoucherLine) []model.VoucherLine {
	out := make([]model.VoucherLine, len(lines))
	for i, l := range lines {
		l.ID = id.New()
		l.Debit, l.Credit = l.Credit, l.Debit
		out[i] = l
	}
	return out
}
