package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lumapay/bnpl-gateway/internal/handlers"
	"github.com/lumapay/bnpl-gateway/internal/telemetry"
)

func NewRouter(gateway *handlers.GatewayHandler, state *handlers.OrderStateHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(telemetry.TracingMiddleware())

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "bnpl-gateway"})
	})

	// Provider-facing surfaces. The webhook is registered POST-only; any
	// other method never reaches the handler.
	r.GET("/gateway/verify", gateway.VerifyPayment)
	r.POST("/gateway/webhook", gateway.Webhook)

	// Storefront-facing
	r.GET("/checkout/orders/:id/params", gateway.CheckoutParams)
	r.GET("/orders/:id/state", state.GetOrderState)

	return r
}
