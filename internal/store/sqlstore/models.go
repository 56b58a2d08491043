package sqlstore

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sitebooks/sitebooks/internal/model"
)

type accountRow struct {
	ID        string  `gorm:"column:id;primaryKey;type:varchar(64)"`
	CompanyID string  `gorm:"column:company_id;type:varchar(64);not null;uniqueIndex:ux_accounts_code,priority:1"`
	Code      string  `gorm:"column:code;type:varchar(32);not null;uniqueIndex:ux_accounts_code,priority:2"`
	Name      string  `gorm:"column:name;type:varchar(255);not null;index"`
	Type      string  `gorm:"column:type;type:varchar(16);not null"`
	ParentID  *string `gorm:"column:parent_id;type:varchar(64);index"`
	IsActive  bool    `gorm:"column:is_active;not null;default:true"`
}

func (accountRow) TableName() string { return "accounts" }

type productRow struct {
	ID                 string  `gorm:"column:id;primaryKey;type:varchar(64)"`
	CompanyID          string  `gorm:"column:company_id;type:varchar(64);not null;index"`
	Name               string  `gorm:"column:name;type:varchar(255);not null"`
	InventoryAccountID *string `gorm:"column:inventory_account_id;type:varchar(64)"`
}

func (productRow) TableName() string { return "products" }

type purchaseRow struct {
	ID               string            `gorm:"column:id;primaryKey;type:varchar(64)"`
	CompanyID        string            `gorm:"column:company_id;type:varchar(64);not null;index"`
	PurchaseNo       string            `gorm:"column:purchase_no;type:varchar(64);not null"`
	Date             time.Time         `gorm:"column:date;type:date;not null"`
	SupplierVendorID string            `gorm:"column:supplier_vendor_id;type:varchar(64)"`
	ProjectID        string            `gorm:"column:project_id;type:varchar(64)"`
	DiscountPercent  decimal.Decimal   `gorm:"column:discount_percent;type:decimal(9,4);not null"`
	PaidAmount       decimal.Decimal   `gorm:"column:paid_amount;type:decimal(18,4);not null"`
	DueAmount        decimal.Decimal   `gorm:"column:due_amount;type:decimal(18,4);not null"`
	PaymentAccountID *string           `gorm:"column:payment_account_id;type:varchar(64)"`
	VoucherID        *string           `gorm:"column:voucher_id;type:varchar(64)"`
	Lines            []purchaseLineRow `gorm:"foreignKey:PurchaseID;constraint:OnDelete:CASCADE"`
}

func (purchaseRow) TableName() string { return "purchases" }

type purchaseLineRow struct {
	ID          uint            `gorm:"column:id;primaryKey;autoIncrement"`
	PurchaseID  string          `gorm:"column:purchase_id;type:varchar(64);not null;index"`
	Position    int             `gorm:"column:position;not null"`
	Kind        string          `gorm:"column:kind;type:varchar(16);not null"`
	ProductID   string          `gorm:"column:product_id;type:varchar(64)"`
	Description string          `gorm:"column:description;type:varchar(255)"`
	Quantity    decimal.Decimal `gorm:"column:quantity;type:decimal(18,4);not null"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:decimal(18,4);not null"`
}

func (purchaseLineRow) TableName() string { return "purchase_lines" }

type voucherRow struct {
	ID             string           `gorm:"column:id;primaryKey;type:varchar(64)"`
	CompanyID      string           `gorm:"column:company_id;type:varchar(64);not null;uniqueIndex:ux_vouchers_no,priority:1;uniqueIndex:ux_vouchers_ref,priority:1;uniqueIndex:ux_vouchers_seq,priority:1"`
	VoucherNo      string           `gorm:"column:voucher_no;type:varchar(32);not null;uniqueIndex:ux_vouchers_no,priority:2"`
	Type           string           `gorm:"column:type;type:varchar(16);not null;uniqueIndex:ux_vouchers_seq,priority:2"`
	Year           int              `gorm:"column:year;not null;uniqueIndex:ux_vouchers_seq,priority:3"`
	Seq            int              `gorm:"column:seq;not null;uniqueIndex:ux_vouchers_seq,priority:4"`
	Date           time.Time        `gorm:"column:date;type:date;not null;index"`
	Status         string           `gorm:"column:status;type:varchar(16);not null;index"`
	Narration      string           `gorm:"column:narration;type:text"`
	ProjectID      string           `gorm:"column:project_id;type:varchar(64)"`
	Reference      *string          `gorm:"column:reference;type:varchar(128);uniqueIndex:ux_vouchers_ref,priority:2"`
	ReversalOfID   *string          `gorm:"column:reversal_of_id;type:varchar(64)"`
	ReversedByID   *string          `gorm:"column:reversed_by_id;type:varchar(64)"`
	CreatedByID    string           `gorm:"column:created_by_id;type:varchar(64)"`
	CreatedAt      time.Time        `gorm:"column:created_at;not null"`
	PostedAt       *time.Time       `gorm:"column:posted_at"`
	PostedByUserID string           `gorm:"column:posted_by_user_id;type:varchar(64)"`
	Lines          []voucherLineRow `gorm:"foreignKey:VoucherID;constraint:OnDelete:CASCADE"`
}

func (voucherRow) TableName() string { return "vouchers" }

// voucherSeqRow holds the last number handed out per company, type and year.
// Numbering locks this row rather than a range of vouchers.
type voucherSeqRow struct {
	CompanyID string `gorm:"column:company_id;primaryKey;type:varchar(64)"`
	Type      string `gorm:"column:type;primaryKey;type:varchar(16)"`
	Year      int    `gorm:"column:year;primaryKey;autoIncrement:false"`
	LastSeq   int    `gorm:"column:last_seq;not null"`
}

func (voucherSeqRow) TableName() string { return "voucher_sequences" }

type voucherLineRow struct {
	ID              string          `gorm:"column:id;primaryKey;type:varchar(64)"`
	VoucherID       string          `gorm:"column:voucher_id;type:varchar(64);not null;index"`
	Position        int             `gorm:"column:position;not null"`
	AccountID       string          `gorm:"column:account_id;type:varchar(64);not null;index"`
	Debit           decimal.Decimal `gorm:"column:debit;type:decimal(18,4);not null"`
	Credit          decimal.Decimal `gorm:"column:credit;type:decimal(18,4);not null"`
	Description     string          `gorm:"column:description;type:varchar(255)"`
	ProjectID       string          `gorm:"column:project_id;type:varchar(64)"`
	VendorID        string          `gorm:"column:vendor_id;type:varchar(64)"`
	CostHeadID      string          `gorm:"column:cost_head_id;type:varchar(64)"`
	PaymentMethodID string          `gorm:"column:payment_method_id;type:varchar(64)"`
}

func (voucherLineRow) TableName() string { return "voucher_lines" }

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func toAccountRow(a model.Account) accountRow {
	return accountRow{
		ID:        a.ID,
		CompanyID: a.CompanyID,
		Code:      a.Code,
		Name:      a.Name,
		Type:      string(a.Type),
		ParentID:  optional(a.ParentID),
		IsActive:  a.IsActive,
	}
}

func (r accountRow) model() model.Account {
	return model.Account{
		ID:        r.ID,
		CompanyID: r.CompanyID,
		Code:      r.Code,
		Name:      r.Name,
		Type:      model.AccountType(r.Type),
		ParentID:  deref(r.ParentID),
		IsActive:  r.IsActive,
	}
}

func toProductRow(p model.Product) productRow {
	return productRow{
		ID:                 p.ID,
		CompanyID:          p.CompanyID,
		Name:               p.Name,
		InventoryAccountID: optional(p.InventoryAccountID),
	}
}

func (r productRow) model() model.Product {
	return model.Product{
		ID:                 r.ID,
		CompanyID:          r.CompanyID,
		Name:               r.Name,
		InventoryAccountID: deref(r.InventoryAccountID),
	}
}

func toPurchaseRow(p model.Purchase) purchaseRow {
	row := purchaseRow{
		ID:               p.ID,
		CompanyID:        p.CompanyID,
		PurchaseNo:       p.PurchaseNo,
		Date:             p.Date,
		SupplierVendorID: p.SupplierVendorID,
		ProjectID:        p.ProjectID,
		DiscountPercent:  p.DiscountPercent,
		PaidAmount:       p.PaidAmount,
		DueAmount:        p.DueAmount,
		PaymentAccountID: optional(p.PaymentAccountID),
		VoucherID:        optional(p.VoucherID),
	}
	for i, l := range p.Lines {
		row.Lines = append(row.Lines, purchaseLineRow{
			PurchaseID:  p.ID,
			Position:    i,
			Kind:        string(l.Kind),
			ProductID:   l.ProductID,
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
		})
	}
	return row
}

func (r purchaseRow) model() model.Purchase {
	p := model.Purchase{
		ID:               r.ID,
		CompanyID:        r.CompanyID,
		PurchaseNo:       r.PurchaseNo,
		Date:             r.Date,
		SupplierVendorID: r.SupplierVendorID,
		ProjectID:        r.ProjectID,
		DiscountPercent:  r.DiscountPercent,
		PaidAmount:       r.PaidAmount,
		DueAmount:        r.DueAmount,
		PaymentAccountID: deref(r.PaymentAccountID),
		VoucherID:        deref(r.VoucherID),
	}
	for _, l := range r.Lines {
		p.Lines = append(p.Lines, model.PurchaseLine{
			Kind:        model.PurchaseLineKind(l.Kind),
			ProductID:   l.ProductID,
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
		})
	}
	return p
}

func toVoucherRow(v model.Voucher) voucherRow {
	row := voucherRow{
		ID:             v.ID,
		CompanyID:      v.CompanyID,
		VoucherNo:      v.VoucherNo,
		Type:           string(v.Type),
		Year:           v.Date.Year(),
		Seq:            v.Seq,
		Date:           v.Date,
		Status:         string(v.Status),
		Narration:      v.Narration,
		ProjectID:      v.ProjectID,
		Reference:      optional(v.Reference),
		ReversalOfID:   optional(v.ReversalOfID),
		ReversedByID:   optional(v.ReversedByID),
		CreatedByID:    v.CreatedByID,
		CreatedAt:      v.CreatedAt,
		PostedAt:       v.PostedAt,
		PostedByUserID: v.PostedByUserID,
	}
	row.Lines = toLineRows(v.ID, v.Lines)
	return row
}

func toLineRows(voucherID string, lines []model.VoucherLine) []voucherLineRow {
	out := make([]voucherLineRow, 0, len(lines))
	for i, l := range lines {
		out = append(out, voucherLineRow{
			ID:              l.ID,
			VoucherID:       voucherID,
			Position:        i,
			AccountID:       l.AccountID,
			Debit:           l.Debit,
			Credit:          l.Credit,
			Description:     l.Description,
			ProjectID:       l.ProjectID,
			VendorID:        l.VendorID,
			CostHeadID:      l.CostHeadID,
			PaymentMethodID: l.PaymentMethodID,
		})
	}
	return out
}

func (r voucherRow) model() model.Voucher {
	v := model.Voucher{
		ID:             r.ID,
		CompanyID:      r.CompanyID,
		VoucherNo:      r.VoucherNo,
		Seq:            r.Seq,
		Date:           r.Date,
		Type:           model.VoucherType(r.Type),
		Status:         model.VoucherStatus(r.Status),
		Narration:      r.Narration,
		ProjectID:      r.ProjectID,
		Reference:      deref(r.Reference),
		ReversalOfID:   deref(r.ReversalOfID),
		ReversedByID:   deref(r.ReversedByID),
		CreatedByID:    r.CreatedByID,
		CreatedAt:      r.CreatedAt,
		PostedAt:       r.PostedAt,
		PostedByUserID: r.PostedByUserID,
	}
	for _, l := range r.Lines {
		v.Lines = append(v.Lines, model.VoucherLine{
			ID:              l.ID,
			AccountID:       l.AccountID,
			Debit:           l.Debit,
			Credit:          l.Credit,
			Description:     l.Description,
			ProjectID:       l.ProjectID,
			VendorID:        l.VendorID,
			CostHeadID:      l.CostHeadID,
			PaymentMethodID: l.PaymentMethodID,
		})
	}
	return v
}
