package models

import "github.com/shopspring/decimal"

type OutcomeStatus string

const (
	OutcomeNew        OutcomeStatus = "new"
	OutcomeSuccessful OutcomeStatus = "successful"
	OutcomeFailed     OutcomeStatus = "failed"
)

// PaymentOutcome is the provider's report of a transaction, produced from
// either a verify-call response or an authenticated webhook body. It is
// consumed once and never persisted.
type PaymentOutcome struct {
	Status            OutcomeStatus
	Amount            decimal.Decimal
	Currency          string
	MerchantReference string
}

// Settled reports whether the provider considers the payment collectable.
func (o PaymentOutcome) Settled() bool {
	return o.Status == OutcomeNew || o.Status == OutcomeSuccessful
}

// CheckoutParams is handed to the storefront so the provider's checkout SDK
// can be opened for an order.
type CheckoutParams struct {
	OrderID     int64           `json:"order_id"`
	Reference   string          `json:"reference"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Email       string          `json:"email"`
	FirstName   string          `json:"firstname"`
	LastName    string          `json:"lastname"`
	Phone       string          `json:"phone"`
	ShippingFee decimal.Decimal `json:"shipping_fee"`
	PublicKey   string          `json:"public_key"`
	CallbackURL string          `json:"cb_url"`
}
