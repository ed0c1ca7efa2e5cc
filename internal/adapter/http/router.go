package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dcastano/store-api/internal/adapter/http/middleware"
	"github.com/dcastano/store-api/internal/logging"
	"github.com/dcastano/store-api/internal/usecase"
)

type RouterDeps struct {
	Orders   *OrderHandler
	Payments *PaymentHandler
	Products *ProductHandler
	Admin    *AdminOrderHandler
	Authz    *middleware.Authz
	Ledger   usecase.Ledger
	RateLim  int64
	RateWin  time.Duration
}

func NewRouter(d RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.MetricsMiddleware())

	l := logging.New("http")
	r.Use(middleware.Logging(l))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})
	// Prometheus endpoint (scraped by Prometheus)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limited := middleware.RateLimit(d.Ledger, d.RateLim, d.RateWin)

	v1 := r.Group("/v1")
	{
		v1.GET("/products", d.Products.List)
		v1.GET("/products/:id", d.Products.Get)

		v1.POST("/orders", limited, d.Authz.Optional(), d.Orders.CreateOrder)
		v1.GET("/orders/:id/confirmation", d.Authz.Optional(), d.Orders.Confirmation)
		v1.GET("/orders/:id/status", d.Orders.Status)

		v1.POST("/payments/process", limited, d.Payments.Process)
		// Gateway-originated; authenticated by HMAC signature, not bearer.
		v1.POST("/payments/webhook", d.Payments.Webhook)

		admin := v1.Group("/admin", d.Authz.Require(middleware.RoleAdmin))
		{
			admin.PUT("/orders/:id/status", d.Admin.UpdateStatus)
		}
	}

	return r
}
