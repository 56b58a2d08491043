package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sitebooks/sitebooks/internal/access"
	"github.com/sitebooks/sitebooks/internal/model"
	"github.com/sitebooks/sitebooks/internal/money"
	"github.com/sitebooks/sitebooks/internal/store"
)

// PurchaseConfig names the well-known accounts purchase synthesis falls back
// to.
type PurchaseConfig struct {
	DefaultPurchasesCode string
	AccountsPayableCode  string
}

// PurchaseBuilder turns a purchase into a balanced DRAFT voucher.
type PurchaseBuilder struct {
	machine *Machine
	cfg     PurchaseConfig
}

// NewPurchaseBuilder returns a builder creating vouchers through m.
func NewPurchaseBuilder(m *Machine, cfg PurchaseConfig) *PurchaseBuilder {
	if cfg.DefaultPurchasesCode == "" {
		cfg.DefaultPurchasesCode = "5010"
	}
	if cfg.AccountsPayableCode == "" {
		cfg.AccountsPayableCode = "2010"
	}
	return &PurchaseBuilder{machine: m, cfg: cfg}
}

// EnsureResult is the outcome of EnsureVoucher.
type EnsureResult struct {
	VoucherID string
	// Created is false when the purchase already had a voucher.
	Created bool
}

// EnsureVoucher returns the voucher linked to the purchase, creating and
// linking one when there is none. The purchase row stays locked from the read
// to the link, so concurrent calls create at most one voucher.
func (b *PurchaseBuilder) EnsureVoucher(ctx context.Context, actor Actor, purchaseID string) (EnsureResult, error) {
	m := b.machine
	if err := m.Authorize(ctx, actor, access.ResourcePurchase, access.ActionCreate); err != nil {
		return EnsureResult{}, err
	}

	var (
		res EnsureResult
		v   model.Voucher
	)
	err := m.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		p, err := tx.LockPurchase(ctx, actor.CompanyID, purchaseID)
		if err != nil {
			return mapStoreErr(err, "purchase", purchaseID)
		}
		if p.VoucherID != "" {
			res = EnsureResult{VoucherID: p.VoucherID}
			return nil
		}

		h, lines, err := b.Build(ctx, tx, p)
		if err != nil {
			return err
		}
		v, err = m.CreateDraftTx(ctx, tx, actor, h, lines)
		if err != nil {
			return err
		}
		if err := tx.LinkPurchaseVoucher(ctx, actor.CompanyID, p.ID, v.ID); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return &ConflictError{
					Kind:    KindAlreadyLinked,
					Entity:  "purchase",
					ID:      p.ID,
					Message: fmt.Sprintf("Purchase %s is already linked to a voucher", p.PurchaseNo),
				}
			}
			return fmt.Errorf("linking purchase %s: %w", p.ID, err)
		}
		res = EnsureResult{VoucherID: v.ID, Created: true}
		return nil
	})
	if err != nil {
		return EnsureResult{}, err
	}

	if res.Created {
		m.record(ctx, actor, "voucher.create", v.ID, nil, v)
		m.log.Info("purchase voucher created",
			zap.String("company_id", actor.CompanyID),
			zap.String("purchase_id", purchaseID),
			zap.String("voucher_no", v.VoucherNo))
	}
	return res, nil
}

// Build synthesizes the header and lines for p without persisting anything.
// Debits go to each line's inventory account, or the default purchases
// account; credits go to the payment account for the paid amount and to
// accounts payable for the due amount.
func (b *PurchaseBuilder) Build(ctx context.Context, tx store.Tx, p model.Purchase) (Header, []model.VoucherLine, error) {
	gate := NewAccountGate(tx)
	h := Header{
		Date:      p.Date,
		Type:      model.VoucherTypeJournal,
		Narration: fmt.Sprintf("Purchase %s", p.PurchaseNo),
		ProjectID: p.ProjectID,
	}

	var (
		lines    []model.VoucherLine
		fallback *model.Account
	)
	for i, pl := range p.Lines {
		amount := money.ApplyDiscount(pl.Subtotal(), p.DiscountPercent)
		if amount.IsZero() {
			continue
		}
		if amount.IsNegative() {
			return Header{}, nil, &ValidationError{
				Field:   fmt.Sprintf("lines[%d]", i),
				Message: fmt.Sprintf("Purchase line %d has a negative amount", i+1),
			}
		}

		acct, ok, err := b.inventoryAccount(ctx, tx, gate, p.CompanyID, pl)
		if err != nil {
			return Header{}, nil, err
		}
		if !ok {
			if fallback == nil {
				a, err := b.configuredAccount(ctx, gate, p.CompanyID, "default_purchases_code", b.cfg.DefaultPurchasesCode)
				if err != nil {
					return Header{}, nil, err
				}
				fallback = &a
			}
			acct = *fallback
		}

		desc := pl.Description
		if desc == "" {
			desc = fmt.Sprintf("%s purchase", pl.Kind)
		}
		lines = append(lines, model.VoucherLine{
			AccountID:   acct.ID,
			Debit:       amount,
			Credit:      decimal.Zero,
			Description: desc,
			ProjectID:   p.ProjectID,
			VendorID:    p.SupplierVendorID,
		})
	}

	if p.PaidAmount.IsPositive() {
		if p.PaymentAccountID == "" {
			return Header{}, nil, &ValidationError{Field: "paymentAccountId", Message: "Payment account is required when an amount is paid"}
		}
		acct, err := gate.Load(ctx, p.CompanyID, p.PaymentAccountID)
		if err != nil {
			return Header{}, nil, err
		}
		if err := gate.Check(ctx, acct); err != nil {
			return Header{}, nil, err
		}
		lines = append(lines, model.VoucherLine{
			AccountID:   acct.ID,
			Debit:       decimal.Zero,
			Credit:      money.Round(p.PaidAmount),
			Description: fmt.Sprintf("Payment for %s", p.PurchaseNo),
			ProjectID:   p.ProjectID,
			VendorID:    p.SupplierVendorID,
		})
	}

	if p.DueAmount.IsPositive() {
		ap, err := b.configuredAccount(ctx, gate, p.CompanyID, "accounts_payable_code", b.cfg.AccountsPayableCode)
		if err != nil {
			return Header{}, nil, err
		}
		lines = append(lines, model.VoucherLine{
			AccountID:   ap.ID,
			Debit:       decimal.Zero,
			Credit:      money.Round(p.DueAmount),
			Description: fmt.Sprintf("Payable for %s", p.PurchaseNo),
			ProjectID:   p.ProjectID,
			VendorID:    p.SupplierVendorID,
		})
	}

	if len(lines) == 0 {
		return Header{}, nil, &ValidationError{Field: "lines", Message: fmt.Sprintf("Purchase %s has nothing to post", p.PurchaseNo)}
	}
	if res := b.machine.balance.Validate(lines); !res.Valid {
		return Header{}, nil, fmt.Errorf("%w: purchase %s: %s", ErrSynthesisUnbalanced, p.PurchaseNo, res.Error)
	}
	return h, lines, nil
}

// inventoryAccount returns the product's inventory account when it exists, is
// active and is a leaf.
func (b *PurchaseBuilder) inventoryAccount(ctx context.Context, tx store.Tx, gate AccountGate, companyID string, pl model.PurchaseLine) (model.Account, bool, error) {
	if pl.ProductID == "" {
		return model.Account{}, false, nil
	}
	prod, err := tx.GetProduct(ctx, companyID, pl.ProductID)
	if errors.Is(err, store.ErrNotFound) {
		return model.Account{}, false, nil
	}
	if err != nil {
		return model.Account{}, false, fmt.Errorf("loading product %s: %w", pl.ProductID, err)
	}
	if prod.InventoryAccountID == "" {
		return model.Account{}, false, nil
	}
	acct, err := tx.GetAccount(ctx, companyID, prod.InventoryAccountID)
	if errors.Is(err, store.ErrNotFound) {
		return model.Account{}, false, nil
	}
	if err != nil {
		return model.Account{}, false, fmt.Errorf("loading account %s: %w", prod.InventoryAccountID, err)
	}
	ok, err := gate.IsPostable(ctx, acct)
	if err != nil || !ok {
		return model.Account{}, false, err
	}
	return acct, true, nil
}

func (b *PurchaseBuilder) configuredAccount(ctx context.Context, gate AccountGate, companyID, setting, code string) (model.Account, error) {
	acct, ok, err := gate.ByCode(ctx, companyID, code)
	if err != nil {
		return model.Account{}, err
	}
	if !ok {
		return model.Account{}, &ConfigError{Setting: setting, Message: fmt.Sprintf("no active account with code %s", code)}
	}
	leaf, err := gate.IsLeaf(ctx, companyID, acct.ID)
	if err != nil {
		return model.Account{}, err
	}
	if !leaf {
		return model.Account{}, &ConfigError{Setting: setting, Message: fmt.Sprintf("account %s is not a leaf account", acct.Label())}
	}
	return acct, nil
}
