package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *handler) ensurePurchaseVoucher(c *gin.Context) {
	res, err := h.Purchases.EnsureVoucher(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"voucherId": res.VoucherID, "created": res.Created})
}
