package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseLineKind classifies what a purchase line bought.
type PurchaseLineKind string

const (
	PurchaseLineMaterial PurchaseLineKind = "MATERIAL"
	PurchaseLineService  PurchaseLineKind = "SERVICE"
	PurchaseLineOther    PurchaseLineKind = "OTHER"
)

// Purchase is a supplier bill. It links to at most one voucher.
type Purchase struct {
	ID               string
	CompanyID        string
	PurchaseNo       string
	Date             time.Time
	SupplierVendorID string
	ProjectID        string
	DiscountPercent  decimal.Decimal
	Lines            []PurchaseLine
	PaidAmount       decimal.Decimal
	DueAmount        decimal.Decimal
	PaymentAccountID string
	VoucherID        string
}

// PurchaseLine is one billed item.
type PurchaseLine struct {
	Kind        PurchaseLineKind
	ProductID   string // "" for services and ad hoc items
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

// Subtotal is quantity times unit price, before discount.
func (l PurchaseLine) Subtotal() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}

// Product is a stock item; purchases of it debit its inventory account.
type Product struct {
	ID                 string
	CompanyID          string
	Name               string
	InventoryAccountID string
}
