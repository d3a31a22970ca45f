package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lumapay/bnpl-gateway/internal/interfaces"
	"github.com/lumapay/bnpl-gateway/internal/provider"
	"github.com/lumapay/bnpl-gateway/internal/service"
)

type GatewayHandler struct {
	reconciler *service.Reconciler
	logger     *zap.Logger
}

func NewGatewayHandler(reconciler *service.Reconciler, logger *zap.Logger) *GatewayHandler {
	return &GatewayHandler{reconciler: reconciler, logger: logger}
}

// VerifyPayment is the browser callback after the provider's checkout. It
// always answers with a redirect, to the order-received page or the cart.
func (h *GatewayHandler) VerifyPayment(c *gin.Context) {
	res := h.reconciler.ReconcileRedirect(
		c.Request.Context(),
		c.Query("reference"),
		c.Query("order_id"),
	)
	c.Redirect(http.StatusFound, res.Location)
}

// Webhook ingests the provider's server-to-server notification. The body is
// read raw before any parsing so signature verification runs over the exact
// bytes received. Responses carry no body.
func (h *GatewayHandler) Webhook(c *gin.Context) {
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	err = h.reconciler.HandleWebhook(c.Request.Context(), rawBody, c.GetHeader(provider.SignatureHeader))
	if err != nil {
		if errors.Is(err, service.ErrInvalidSignature) {
			c.Status(http.StatusUnauthorized)
			return
		}
		h.logger.Error("webhook processing failed", zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Status(http.StatusOK)
}

// CheckoutParams issues the payment reference for an order and returns the
// parameters the storefront needs to open the provider checkout.
func (h *GatewayHandler) CheckoutParams(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || orderID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	params, err := h.reconciler.IssueReference(c.Request.Context(), orderID, c.Query("key"))
	switch {
	case errors.Is(err, interfaces.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
	case errors.Is(err, service.ErrOrderKeyMismatch):
		c.JSON(http.StatusForbidden, gin.H{"error": "order key mismatch"})
	case errors.Is(err, service.ErrUnsupportedCurrency):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "order currency not supported"})
	case err != nil:
		h.logger.Error("issue reference failed", zap.Int64("order_id", orderID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to prepare checkout"})
	default:
		c.JSON(http.StatusOK, params)
	}
}
