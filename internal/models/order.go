package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderOnHold     OrderStatus = "on-hold"
	OrderProcessing OrderStatus = "processing"
	OrderCompleted  OrderStatus = "completed"
	OrderFailed     OrderStatus = "failed"
	OrderCancelled  OrderStatus = "cancelled"
)

// OrderSnapshot is the read view of an order used to make a reconciliation
// decision. It is never mutated directly; all mutation goes through the
// store's ApplyDecision.
type OrderSnapshot struct {
	ID             int64
	OrderKey       string
	Status         OrderStatus
	Total          decimal.Decimal
	Currency       string
	CustomerID     string
	Email          string
	FirstName      string
	LastName       string
	Phone          string
	ShippingTotal  decimal.Decimal
	TransactionRef string // merchant reference issued at checkout, empty until then
}

type NoteKind string

const (
	NoteCustomer NoteKind = "customer"
	NoteAdmin    NoteKind = "admin"
)

// OrderNote carries a dedupe key so that applying the same decision twice
// cannot duplicate notes at the storage layer.
type OrderNote struct {
	Key  string
	Kind NoteKind
	Body string
}

// OrderDecision is the reconciliation engine's output, applied exactly once
// per payment reference by the calling handler.
type OrderDecision struct {
	NewStatus           OrderStatus // empty means unchanged
	Notes               []OrderNote
	ReduceStock         bool
	EmptyCart           bool
	MarkPaymentComplete bool
	SetTransactionRef   bool
	UserError           string // shopper-facing message, empty means none
	AlreadySettled      bool
	Rejected            bool
}

// ApplyResult reports what the store actually did. Applied is false when the
// status guard saw the order already past this decision.
type ApplyResult struct {
	Applied        bool
	PreviousStatus OrderStatus
	NewStatus      OrderStatus
}

// OrderStatusEvent is published to Kafka whenever a decision changes an
// order's status.
type OrderStatusEvent struct {
	EventID        string      `json:"event_id"`
	OrderID        int64       `json:"order_id"`
	PreviousStatus OrderStatus `json:"previous_status"`
	Status         OrderStatus `json:"status"`
	Reference      string      `json:"reference"`
	OccurredAt     time.Time   `json:"occurred_at"`
}
