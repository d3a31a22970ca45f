package reconcile_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumapay/bnpl-gateway/internal/models"
	"github.com/lumapay/bnpl-gateway/internal/reconcile"
)

const ref = "KLP_42_1710498600"

func pendingOrder() models.OrderSnapshot {
	return models.OrderSnapshot{
		ID:             42,
		Status:         models.OrderPending,
		Total:          decimal.NewFromInt(100),
		Currency:       "NGN",
		TransactionRef: ref,
	}
}

func successfulOutcome() models.PaymentOutcome {
	return models.PaymentOutcome{
		Status:            models.OutcomeSuccessful,
		Amount:            decimal.NewFromInt(100),
		Currency:          "NGN",
		MerchantReference: ref,
	}
}

func noteKeys(d models.OrderDecision) []string {
	keys := make([]string, 0, len(d.Notes))
	for _, n := range d.Notes {
		keys = append(keys, n.Key)
	}
	return keys
}

func TestReconcile_HappyPathAutocomplete(t *testing.T) {
	d := reconcile.Reconcile(successfulOutcome(), pendingOrder(), reconcile.Options{
		Path:               reconcile.PathRedirect,
		AutocompleteOrders: true,
	})

	assert.Equal(t, models.OrderCompleted, d.NewStatus)
	assert.True(t, d.MarkPaymentComplete)
	assert.True(t, d.EmptyCart)
	assert.False(t, d.ReduceStock)
	assert.Empty(t, d.UserError)
	require.Len(t, d.Notes, 1)
	assert.Contains(t, d.Notes[0].Body, ref)
}

func TestReconcile_HappyPathWithoutAutocomplete(t *testing.T) {
	d := reconcile.Reconcile(successfulOutcome(), pendingOrder(), reconcile.Options{
		Path: reconcile.PathRedirect,
	})

	assert.Equal(t, models.OrderProcessing, d.NewStatus)
	assert.True(t, d.MarkPaymentComplete)
}

func TestReconcile_NewStatusNeverAutocompletes(t *testing.T) {
	outcome := successfulOutcome()
	outcome.Status = models.OutcomeNew

	d := reconcile.Reconcile(outcome, pendingOrder(), reconcile.Options{
		Path:               reconcile.PathRedirect,
		AutocompleteOrders: true,
	})

	assert.Equal(t, models.OrderProcessing, d.NewStatus)
	assert.True(t, d.MarkPaymentComplete)
}

func TestReconcile_AmountShort(t *testing.T) {
	outcome := successfulOutcome()
	outcome.Amount = decimal.NewFromInt(80)

	d := reconcile.Reconcile(outcome, pendingOrder(), reconcile.Options{
		Path:               reconcile.PathRedirect,
		AutocompleteOrders: true,
	})

	assert.Equal(t, models.OrderOnHold, d.NewStatus)
	assert.True(t, d.ReduceStock)
	assert.False(t, d.MarkPaymentComplete)
	assert.ElementsMatch(t, []string{"amount-short/customer", "amount-short/admin"}, noteKeys(d))
}

func TestReconcile_CurrencyMismatch(t *testing.T) {
	outcome := successfulOutcome()
	outcome.Currency = "usd"

	d := reconcile.Reconcile(outcome, pendingOrder(), reconcile.Options{
		Path: reconcile.PathRedirect,
	})

	assert.Equal(t, models.OrderOnHold, d.NewStatus)
	assert.True(t, d.ReduceStock)
	assert.False(t, d.MarkPaymentComplete)
	assert.ElementsMatch(t, []string{"currency-mismatch/customer", "currency-mismatch/admin"}, noteKeys(d))

	var admin models.OrderNote
	for _, n := range d.Notes {
		if n.Kind == models.NoteAdmin {
			admin = n
		}
	}
	assert.Contains(t, admin.Body, "NGN")
	assert.Contains(t, admin.Body, "USD")
}

// The amount and currency checks are sequential ifs, not an either/or: when
// both hold, one decision carries both note pairs.
func TestReconcile_AmountShortAndCurrencyMismatchMerge(t *testing.T) {
	outcome := successfulOutcome()
	outcome.Amount = decimal.NewFromInt(80)
	outcome.Currency = "USD"

	d := reconcile.Reconcile(outcome, pendingOrder(), reconcile.Options{
		Path: reconcile.PathRedirect,
	})

	assert.Equal(t, models.OrderOnHold, d.NewStatus)
	assert.True(t, d.ReduceStock)
	assert.False(t, d.MarkPaymentComplete)
	assert.ElementsMatch(t, []string{
		"amount-short/customer", "amount-short/admin",
		"currency-mismatch/customer", "currency-mismatch/admin",
	}, noteKeys(d))
}

func TestReconcile_UnsupportedStatusFails(t *testing.T) {
	outcome := successfulOutcome()
	outcome.Status = models.OutcomeFailed

	d := reconcile.Reconcile(outcome, pendingOrder(), reconcile.Options{
		Path: reconcile.PathRedirect,
	})

	assert.Equal(t, models.OrderFailed, d.NewStatus)
	assert.Equal(t, reconcile.GenericFailureNotice, d.UserError)
	assert.False(t, d.ReduceStock)
	assert.False(t, d.MarkPaymentComplete)
}

func TestReconcile_ReferenceDecodesToOtherOrder(t *testing.T) {
	outcome := successfulOutcome()
	outcome.MerchantReference = "KLP_99_1710498600"

	d := reconcile.Reconcile(outcome, pendingOrder(), reconcile.Options{
		Path: reconcile.PathWebhook,
	})

	assert.True(t, d.Rejected)
	assert.Empty(t, d.NewStatus)
	assert.Empty(t, d.Notes)
}

func TestReconcile_RedirectRequiresStoredReferenceMatch(t *testing.T) {
	order := pendingOrder()
	order.TransactionRef = "KLP_42_1700000000" // issued earlier, different timestamp

	d := reconcile.Reconcile(successfulOutcome(), order, reconcile.Options{
		Path: reconcile.PathRedirect,
	})

	assert.True(t, d.Rejected)
	assert.Equal(t, reconcile.GenericFailureNotice, d.UserError)
}

func TestReconcile_WebhookSkipsStoredReferenceMatch(t *testing.T) {
	order := pendingOrder()
	order.TransactionRef = ""

	d := reconcile.Reconcile(successfulOutcome(), order, reconcile.Options{
		Path:               reconcile.PathWebhook,
		AutocompleteOrders: true,
	})

	assert.False(t, d.Rejected)
	assert.Equal(t, models.OrderCompleted, d.NewStatus)
}

func TestReconcile_AlreadySettledShortCircuits(t *testing.T) {
	tests := []struct {
		name    string
		path    reconcile.Path
		status  models.OrderStatus
		settled bool
	}{
		{"webhook completed", reconcile.PathWebhook, models.OrderCompleted, true},
		{"webhook processing", reconcile.PathWebhook, models.OrderProcessing, true},
		{"webhook on-hold", reconcile.PathWebhook, models.OrderOnHold, true},
		{"redirect completed", reconcile.PathRedirect, models.OrderCompleted, true},
		{"redirect processing", reconcile.PathRedirect, models.OrderProcessing, true},
		{"redirect on-hold reprocesses", reconcile.PathRedirect, models.OrderOnHold, false},
		{"webhook pending proceeds", reconcile.PathWebhook, models.OrderPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := pendingOrder()
			order.Status = tt.status

			d := reconcile.Reconcile(successfulOutcome(), order, reconcile.Options{Path: tt.path})

			assert.Equal(t, tt.settled, d.AlreadySettled)
			if tt.settled {
				assert.Empty(t, d.NewStatus)
				assert.Empty(t, d.Notes)
				assert.False(t, d.ReduceStock)
				assert.False(t, d.EmptyCart)
				assert.False(t, d.MarkPaymentComplete)
			}
		})
	}
}

// Reconciling the same successful outcome twice: the second pass sees the
// settled status and produces a decision with zero side effects.
func TestReconcile_Idempotence(t *testing.T) {
	order := pendingOrder()
	opts := reconcile.Options{Path: reconcile.PathRedirect, AutocompleteOrders: true}

	first := reconcile.Reconcile(successfulOutcome(), order, opts)
	require.Equal(t, models.OrderCompleted, first.NewStatus)

	order.Status = first.NewStatus
	second := reconcile.Reconcile(successfulOutcome(), order, opts)

	assert.True(t, second.AlreadySettled)
	assert.Empty(t, second.Notes)
	assert.False(t, second.EmptyCart)
	assert.False(t, second.ReduceStock)
}
