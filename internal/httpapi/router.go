// Package httpapi exposes the ledger operations over HTTP with gin.
package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sitebooks/sitebooks/internal/config"
	"github.com/sitebooks/sitebooks/internal/importer"
	"github.com/sitebooks/sitebooks/internal/ledger"
)

// Deps are the services the handlers call.
type Deps struct {
	Machine    *ledger.Machine
	Purchases  *ledger.PurchaseBuilder
	Reversals  *ledger.ReversalEngine
	Reconciler *importer.Reconciler
	Readers    *importer.Registry
	Logger     *zap.Logger
	// PostAfterCommit is the default for import commits that do not say.
	PostAfterCommit bool
}

type handler struct {
	Deps
}

// NewRouter builds the engine serving /api/v1.
func NewRouter(d Deps, cfg config.ServerConfig) *gin.Engine {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Readers == nil {
		d.Readers = importer.DefaultRegistry()
	}
	h := &handler{Deps: d}

	r := gin.New()
	r.Use(gin.Recovery(), requestLog(d.Logger))
	if len(cfg.AllowOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  cfg.AllowOrigins,
			AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowHeaders:  []string{"Content-Type", headerUserID, headerCompanyID},
			ExposeHeaders: []string{"Content-Length"},
			MaxAge:        12 * time.Hour,
		}))
	}

	api := r.Group("/api/v1", requireActor())

	api.POST("/vouchers", h.createVoucher)
	api.POST("/vouchers/post-batch", h.postBatch)
	api.GET("/vouchers/:id", h.getVoucher)
	api.PUT("/vouchers/:id", h.updateVoucher)
	api.POST("/vouchers/:id/submit", h.submitVoucher)
	api.POST("/vouchers/:id/approve", h.approveVoucher)
	api.POST("/vouchers/:id/post", h.postVoucher)
	api.POST("/vouchers/:id/reverse", h.reverseVoucher)

	api.POST("/purchases/:id/voucher", h.ensurePurchaseVoucher)

	api.POST("/imports/parse", h.parseImport)
	api.POST("/imports/commit", h.commitImport)

	return r
}

func requestLog(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}
