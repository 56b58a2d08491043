package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sitebooks/sitebooks/internal/ledger"
)

type errorBody struct {
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

func statusFor(kind string) int {
	switch kind {
	case "Validation":
		return http.StatusBadRequest
	case "Forbidden":
		return http.StatusForbidden
	case "NotFound":
		return http.StatusNotFound
	case "Unbalanced", "InactiveAccount", "NonLeafAccount":
		return http.StatusUnprocessableEntity
	case ledger.KindNotDraft, ledger.KindNotPosted, ledger.KindInvalidTransition,
		ledger.KindStatusChanged, ledger.KindAlreadyLinked, ledger.KindDuplicate:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// fail writes err as a structured response. Infrastructure errors are logged
// and reported without their detail.
func (h *handler) fail(c *gin.Context, err error) {
	kind := ledger.FailureKind(err)
	if kind == "" {
		h.Logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{Kind: "Internal", Error: "internal error"})
		return
	}
	if kind == "Config" {
		h.Logger.Error("ledger misconfigured", zap.Error(err))
	}
	c.AbortWithStatusJSON(statusFor(kind), errorBody{Kind: kind, Error: err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Kind: "Validation", Error: err.Error()})
}
