package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lumapay/bnpl-gateway/internal/interfaces"
)

type OrderStateHandler struct {
	store interfaces.OrderStore
}

func NewOrderStateHandler(store interfaces.OrderStore) *OrderStateHandler {
	return &OrderStateHandler{store: store}
}

func (h *OrderStateHandler) GetOrderState(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || orderID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	order, err := h.store.Get(c.Request.Context(), orderID)
	if errors.Is(err, interfaces.ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch order"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order_id":        order.ID,
		"status":          order.Status,
		"currency":        order.Currency,
		"total":           order.Total,
		"transaction_ref": order.TransactionRef,
	})
}
