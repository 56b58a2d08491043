package httpapi

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sitebooks/sitebooks/internal/ledger"
	"github.com/sitebooks/sitebooks/internal/model"
)

const dateLayout = "2006-01-02"

type lineJSON struct {
	ID              string          `json:"id,omitempty"`
	AccountID       string          `json:"accountId"`
	Debit           decimal.Decimal `json:"debit"`
	Credit          decimal.Decimal `json:"credit"`
	Description     string          `json:"description,omitempty"`
	ProjectID       string          `json:"projectId,omitempty"`
	VendorID        string          `json:"vendorId,omitempty"`
	CostHeadID      string          `json:"costHeadId,omitempty"`
	PaymentMethodID string          `json:"paymentMethodId,omitempty"`
}

type voucherJSON struct {
	ID             string     `json:"id"`
	VoucherNo      string     `json:"voucherNo"`
	Date           string     `json:"date"`
	Type           string     `json:"type"`
	Status         string     `json:"status"`
	Narration      string     `json:"narration,omitempty"`
	ProjectID      string     `json:"projectId,omitempty"`
	Reference      string     `json:"reference,omitempty"`
	ReversalOfID   string     `json:"reversalOfId,omitempty"`
	ReversedByID   string     `json:"reversedById,omitempty"`
	CreatedByID    string     `json:"createdById,omitempty"`
	PostedAt       *time.Time `json:"postedAt,omitempty"`
	PostedByUserID string     `json:"postedById,omitempty"`
	TotalDebit     string     `json:"totalDebit"`
	TotalCredit    string     `json:"totalCredit"`
	Lines          []lineJSON `json:"lines"`
}

func toVoucherJSON(v model.Voucher) voucherJSON {
	debit, credit := v.Totals()
	out := voucherJSON{
		ID:             v.ID,
		VoucherNo:      v.VoucherNo,
		Date:           v.Date.Format(dateLayout),
		Type:           string(v.Type),
		Status:         string(v.Status),
		Narration:      v.Narration,
		ProjectID:      v.ProjectID,
		Reference:      v.Reference,
		ReversalOfID:   v.ReversalOfID,
		ReversedByID:   v.ReversedByID,
		CreatedByID:    v.CreatedByID,
		PostedAt:       v.PostedAt,
		PostedByUserID: v.PostedByUserID,
		TotalDebit:     debit.StringFixed(2),
		TotalCredit:    credit.StringFixed(2),
		Lines:          make([]lineJSON, 0, len(v.Lines)),
	}
	for _, l := range v.Lines {
		out.Lines = append(out.Lines, lineJSON{
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
	return out
}

// voucherRequest is the body of create and update.
type voucherRequest struct {
	Date      string     `json:"date" binding:"required"`
	Type      string     `json:"type"`
	Narration string     `json:"narration"`
	ProjectID string     `json:"projectId"`
	Reference string     `json:"reference"`
	Lines     []lineJSON `json:"lines"`
}

func (r voucherRequest) header() (ledger.Header, error) {
	date, err := time.Parse(dateLayout, r.Date)
	if err != nil {
		return ledger.Header{}, fmt.Errorf("date %q must be YYYY-MM-DD", r.Date)
	}
	return ledger.Header{
		Date:      date,
		Type:      model.VoucherType(r.Type),
		Narration: r.Narration,
		ProjectID: r.ProjectID,
		Reference: r.Reference,
	}, nil
}

func (r voucherRequest) lines() []model.VoucherLine {
	out := make([]model.VoucherLine, 0, len(r.Lines))
	for _, l := range r.Lines {
		out = append(out, model.VoucherLine{
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
	return out
}

type reverseRequest struct {
	Date      string `json:"date"`
	Narration string `json:"narration"`
}

type batchRequest struct {
	VoucherIDs []string `json:"voucherIds" binding:"required"`
}

type batchFailureJSON struct {
	VoucherID string `json:"voucherId"`
	Kind      string `json:"kind"`
	Error     string `json:"error"`
}

type batchJSON struct {
	Posted []voucherJSON      `json:"posted"`
	Failed []batchFailureJSON `json:"failed"`
}
