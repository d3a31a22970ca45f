package interfaces

import (
	"context"
	"errors"

	"github.com/lumapay/bnpl-gateway/internal/models"
)

// ErrOrderNotFound is returned by every OrderStore implementation when the
// order id has no row.
var ErrOrderNotFound = errors.New("order not found")

// OrderStore defines the contract for order state data access. ApplyDecision
// folds status change, notes, stock reduction, payment completion, and cart
// clearing into one guarded write so that a concurrent duplicate application
// degenerates to a no-op.
type OrderStore interface {
	Get(ctx context.Context, orderID int64) (*models.OrderSnapshot, error)
	SetTransactionRef(ctx context.Context, orderID int64, ref string) error
	ApplyDecision(ctx context.Context, orderID int64, ref string, d models.OrderDecision) (models.ApplyResult, error)
}

// CartStore clears a customer's cart after a successful payment.
type CartStore interface {
	EmptyCart(ctx context.Context, customerID string) error
}
