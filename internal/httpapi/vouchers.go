package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sitebooks/sitebooks/internal/ledger"
	"github.com/sitebooks/sitebooks/internal/model"
)

func (h *handler) createVoucher(c *gin.Context) {
	var req voucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	hdr, err := req.header()
	if err != nil {
		badRequest(c, err)
		return
	}
	v, err := h.Machine.CreateDraft(c.Request.Context(), actorOf(c), hdr, req.lines())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toVoucherJSON(v))
}

func (h *handler) getVoucher(c *gin.Context) {
	v, err := h.Machine.Get(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toVoucherJSON(v))
}

func (h *handler) updateVoucher(c *gin.Context) {
	var req voucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	hdr, err := req.header()
	if err != nil {
		badRequest(c, err)
		return
	}
	v, err := h.Machine.UpdateDraft(c.Request.Context(), actorOf(c), c.Param("id"), hdr, req.lines())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toVoucherJSON(v))
}

func (h *handler) submitVoucher(c *gin.Context) {
	h.transition(c, h.Machine.Submit)
}

func (h *handler) approveVoucher(c *gin.Context) {
	h.transition(c, h.Machine.Approve)
}

func (h *handler) postVoucher(c *gin.Context) {
	h.transition(c, h.Machine.Post)
}

type transitionFunc func(ctx context.Context, actor ledger.Actor, voucherID string) (model.Voucher, error)

func (h *handler) transition(c *gin.Context, fn transitionFunc) {
	v, err := fn(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toVoucherJSON(v))
}

func (h *handler) reverseVoucher(c *gin.Context) {
	var req reverseRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	opts := ledger.ReverseOptions{Narration: req.Narration}
	if req.Date != "" {
		d, err := time.Parse(dateLayout, req.Date)
		if err != nil {
			badRequest(c, err)
			return
		}
		opts.Date = d
	}

	res, err := h.Reversals.Reverse(c.Request.Context(), actorOf(c), c.Param("id"), opts)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"source":   toVoucherJSON(res.Source),
		"reversal": toVoucherJSON(res.Reversal),
	})
}

func (h *handler) postBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res := h.Machine.PostBatch(c.Request.Context(), actorOf(c), req.VoucherIDs)

	out := batchJSON{Posted: []voucherJSON{}, Failed: []batchFailureJSON{}}
	for _, v := range res.Posted {
		out.Posted = append(out.Posted, toVoucherJSON(v))
	}
	for _, f := range res.Failed {
		kind := ledger.FailureKind(f.Err)
		msg := f.Err.Error()
		if kind == "" {
			kind, msg = "Internal", "internal error"
		}
		out.Failed = append(out.Failed, batchFailureJSON{VoucherID: f.VoucherID, Kind: kind, Error: msg})
	}
	c.JSON(http.StatusOK, out)
}
