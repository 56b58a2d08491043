package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sitebooks/sitebooks/internal/ledger"
)

const (
	headerUserID    = "X-User-ID"
	headerCompanyID = "X-Company-ID"

	actorKey = "sitebooks.actor"
)

// requireActor rejects requests without a user. A missing company is left to
// the ledger, which reports it as a validation failure.
func requireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		a := ledger.Actor{
			UserID:    strings.TrimSpace(c.GetHeader(headerUserID)),
			CompanyID: strings.TrimSpace(c.GetHeader(headerCompanyID)),
		}
		if a.UserID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{
				Kind:  "Unauthenticated",
				Error: headerUserID + " header is required",
			})
			return
		}
		c.Set(actorKey, a)
		c.Next()
	}
}

func actorOf(c *gin.Context) ledger.Actor {
	a, _ := c.MustGet(actorKey).(ledger.Actor)
	return a
}
