// Package reconcile decides what happens to an order given a payment
// outcome. The decision function is pure: it never touches the store, the
// network, or the clock.
package reconcile

import (
	"fmt"
	"strings"

	"github.com/lumapay/bnpl-gateway/internal/models"
	"github.com/lumapay/bnpl-gateway/internal/reference"
)

type Path string

const (
	PathRedirect Path = "redirect"
	PathWebhook  Path = "webhook"
)

// GenericFailureNotice is the only payment-failure wording a shopper ever
// sees; provider internals stay in the logs.
const GenericFailureNotice = "Unable to process payment, kindly try again."

type Options struct {
	Path               Path
	AutocompleteOrders bool
}

// settledStatuses returns the statuses treated as already reconciled for a
// given path. A second reconciliation against one of these must be a
// no-side-effect pass-through.
func settledStatuses(path Path) []models.OrderStatus {
	if path == PathWebhook {
		return []models.OrderStatus{models.OrderProcessing, models.OrderCompleted, models.OrderOnHold}
	}
	return []models.OrderStatus{models.OrderProcessing, models.OrderCompleted}
}

// Reconcile maps a payment outcome and an order snapshot to an order
// decision. The amount-short and currency-mismatch checks are independent:
// both can fire in one invocation and both note pairs are merged into the
// same decision.
func Reconcile(outcome models.PaymentOutcome, order models.OrderSnapshot, opts Options) models.OrderDecision {
	var d models.OrderDecision

	id, err := reference.ParseOrderID(outcome.MerchantReference)
	if err != nil || id != order.ID {
		d.Rejected = true
		d.UserError = GenericFailureNotice
		return d
	}

	if opts.Path == PathRedirect && !reference.Matches(order.TransactionRef, outcome.MerchantReference) {
		d.Rejected = true
		d.UserError = GenericFailureNotice
		return d
	}

	for _, s := range settledStatuses(opts.Path) {
		if order.Status == s {
			d.AlreadySettled = true
			return d
		}
	}

	if !outcome.Settled() {
		d.NewStatus = models.OrderFailed
		d.UserError = GenericFailureNotice
		d.Notes = append(d.Notes, models.OrderNote{
			Key:  "payment-failed/admin",
			Kind: models.NoteAdmin,
			Body: fmt.Sprintf("Payment was not completed: provider reported transaction status %q for reference %s.", outcome.Status, outcome.MerchantReference),
		})
		return d
	}

	paymentCurrency := strings.ToUpper(outcome.Currency)
	orderSymbol := models.CurrencySymbol(order.Currency)
	paymentSymbol := models.CurrencySymbol(paymentCurrency)

	amountShort := outcome.Amount.LessThan(order.Total)
	currencyMismatch := paymentCurrency != order.Currency

	if amountShort {
		d.NewStatus = models.OrderOnHold
		d.ReduceStock = true
		d.SetTransactionRef = true
		d.EmptyCart = true
		d.Notes = append(d.Notes,
			models.OrderNote{
				Key:  "amount-short/customer",
				Kind: models.NoteCustomer,
				Body: "Thank you for shopping with us. Your payment transaction was successful, but the amount paid is not the same as the total order amount. Your order is currently on hold. Kindly contact us for more information regarding your order and payment status.",
			},
			models.OrderNote{
				Key:  "amount-short/admin",
				Kind: models.NoteAdmin,
				// Both amounts carry the order currency symbol, matching the
				// note wording merchants already know from this integration.
				Body: fmt.Sprintf("Look into this order. This order is currently on hold. Reason: amount paid is less than the total order amount. Amount paid was %s%s while the total order amount is %s%s. Payment transaction reference: %s",
					orderSymbol, outcome.Amount.String(), orderSymbol, order.Total.String(), outcome.MerchantReference),
			},
		)
	}

	if currencyMismatch {
		d.NewStatus = models.OrderOnHold
		d.ReduceStock = true
		d.SetTransactionRef = true
		d.EmptyCart = true
		d.Notes = append(d.Notes,
			models.OrderNote{
				Key:  "currency-mismatch/customer",
				Kind: models.NoteCustomer,
				Body: "Thank you for shopping with us. Your payment was successful, but the payment currency is different from the order currency. Your order is currently on hold. Kindly contact us for more information regarding your order and payment status.",
			},
			models.OrderNote{
				Key:  "currency-mismatch/admin",
				Kind: models.NoteAdmin,
				Body: fmt.Sprintf("Look into this order. This order is currently on hold. Reason: order currency is different from the payment currency. Order currency is %s (%s) while the payment currency is %s (%s). Payment transaction reference: %s",
					order.Currency, orderSymbol, paymentCurrency, paymentSymbol, outcome.MerchantReference),
			},
		)
	}

	if amountShort || currencyMismatch {
		return d
	}

	d.MarkPaymentComplete = true
	d.SetTransactionRef = true
	d.EmptyCart = true
	if opts.AutocompleteOrders && outcome.Status == models.OutcomeSuccessful {
		d.NewStatus = models.OrderCompleted
	} else {
		d.NewStatus = models.OrderProcessing
	}
	d.Notes = append(d.Notes, models.OrderNote{
		Key:  "payment-complete/customer",
		Kind: models.NoteCustomer,
		Body: fmt.Sprintf("Payment via Klump successful (Transaction Reference: %s)", outcome.MerchantReference),
	})

	return d
}
