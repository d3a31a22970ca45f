package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumapay/bnpl-gateway/internal/interfaces"
	"github.com/lumapay/bnpl-gateway/internal/metrics"
	"github.com/lumapay/bnpl-gateway/internal/models"
	"github.com/lumapay/bnpl-gateway/internal/provider"
	"github.com/lumapay/bnpl-gateway/internal/reconcile"
	"github.com/lumapay/bnpl-gateway/internal/reference"
)

var (
	ErrOrderKeyMismatch    = errors.New("order key mismatch")
	ErrUnsupportedCurrency = errors.New("unsupported order currency")
	ErrInvalidSignature    = provider.ErrInvalidSignature
)

// ProviderClient is what the reconciler needs from the provider integration.
type ProviderClient interface {
	VerifyTransaction(ctx context.Context, ref string) (models.PaymentOutcome, error)
	AuthenticateWebhook(rawBody []byte, signature string) (models.PaymentOutcome, error)
}

// Locks serializes reconciliation per order and deduplicates per reference.
type Locks interface {
	AcquireOrderLock(ctx context.Context, orderID int64) (bool, error)
	ReleaseOrderLock(ctx context.Context, orderID int64)
	FirstReconcile(ctx context.Context, ref string) (bool, error)
	ForgetReconcile(ctx context.Context, ref string)
}

// EventPublisher emits order status change events.
type EventPublisher interface {
	PublishStatusChange(ctx context.Context, ev models.OrderStatusEvent) error
}

// Config is the explicit configuration the reconciler runs with; there is no
// ambient or global lookup.
type Config struct {
	PublicKey           string
	AutocompleteOrders  bool
	ReturnURLBase       string
	CartURL             string
	CallbackURL         string
	SupportedCurrencies []string
}

type Reconciler struct {
	store    interfaces.OrderStore
	provider ProviderClient
	locks    Locks
	events   EventPublisher
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

func NewReconciler(store interfaces.OrderStore, pc ProviderClient, locks Locks, events EventPublisher, cfg Config, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		store:    store,
		provider: pc,
		locks:    locks,
		events:   events,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// RedirectResult is where the shopper's browser goes next. The redirect path
// always ends in a redirect, whatever happened inside.
type RedirectResult struct {
	Location string
}

func (r *Reconciler) returnURL(orderID int64, notice string) string {
	loc := fmt.Sprintf("%s?order_id=%d", r.cfg.ReturnURLBase, orderID)
	if notice != "" {
		loc += "&notice=" + url.QueryEscape(notice)
	}
	return loc
}

func (r *Reconciler) cartURL(notice string) string {
	if notice == "" {
		return r.cfg.CartURL
	}
	return r.cfg.CartURL + "?notice=" + url.QueryEscape(notice)
}

// ReconcileRedirect handles the browser callback after the shopper leaves
// the provider's checkout.
func (r *Reconciler) ReconcileRedirect(ctx context.Context, ref, rawOrderID string) RedirectResult {
	if ref == "" || rawOrderID == "" {
		return RedirectResult{Location: r.cartURL(reconcile.GenericFailureNotice)}
	}

	orderID, err := strconv.ParseInt(rawOrderID, 10, 64)
	if err != nil || orderID <= 0 {
		metrics.ReconciliationsTotal.WithLabelValues("redirect", "rejected").Inc()
		return RedirectResult{Location: r.cartURL(reconcile.GenericFailureNotice)}
	}

	order, err := r.store.Get(ctx, orderID)
	if err != nil {
		r.logger.Warn("redirect for unknown order",
			zap.Int64("order_id", orderID),
			zap.String("reference", ref),
			zap.Error(err),
		)
		metrics.ReconciliationsTotal.WithLabelValues("redirect", "rejected").Inc()
		return RedirectResult{Location: r.cartURL(reconcile.GenericFailureNotice)}
	}

	outcome, err := r.provider.VerifyTransaction(ctx, ref)
	if err != nil {
		kind := "network"
		if errors.Is(err, provider.ErrMalformedResponse) {
			kind = "malformed"
		}
		metrics.ProviderErrorsTotal.WithLabelValues(kind).Inc()
		r.logger.Error("transaction verify failed",
			zap.Int64("order_id", orderID),
			zap.String("reference", ref),
			zap.Error(err),
		)
		// Unable to confirm: do not advance order state, send the shopper
		// back to the cart with the generic retry message.
		return RedirectResult{Location: r.cartURL(reconcile.GenericFailureNotice)}
	}

	d := reconcile.Reconcile(outcome, *order, reconcile.Options{
		Path:               reconcile.PathRedirect,
		AutocompleteOrders: r.cfg.AutocompleteOrders,
	})

	if d.Rejected {
		metrics.ReconciliationsTotal.WithLabelValues("redirect", "rejected").Inc()
		r.logger.Warn("redirect reconciliation rejected",
			zap.Int64("order_id", orderID),
			zap.String("reference", ref),
			zap.String("reported_reference", outcome.MerchantReference),
		)
		return RedirectResult{Location: r.cartURL(d.UserError)}
	}

	if d.AlreadySettled {
		metrics.ReconciliationsTotal.WithLabelValues("redirect", "already_settled").Inc()
		return RedirectResult{Location: r.returnURL(orderID, "")}
	}

	locked, err := r.locks.AcquireOrderLock(ctx, orderID)
	if err != nil {
		r.logger.Warn("order lock unavailable", zap.Int64("order_id", orderID), zap.Error(err))
	} else if !locked {
		// The webhook path is mid-flight; its decision will land.
		metrics.ReconciliationsTotal.WithLabelValues("redirect", "lock_busy").Inc()
		return RedirectResult{Location: r.returnURL(orderID, d.UserError)}
	} else {
		defer r.locks.ReleaseOrderLock(ctx, orderID)
	}

	res, err := r.applyAndPublish(ctx, orderID, outcome.MerchantReference, d, "redirect")
	if err != nil && !res.Applied {
		return RedirectResult{Location: r.cartURL(reconcile.GenericFailureNotice)}
	}

	return RedirectResult{Location: r.returnURL(orderID, d.UserError)}
}

// HandleWebhook processes an authenticated server-to-server notification.
// Anything that is not a signature failure or an apply failure is swallowed
// silently; the provider only needs accept/retry semantics.
func (r *Reconciler) HandleWebhook(ctx context.Context, rawBody []byte, signature string) error {
	outcome, err := r.provider.AuthenticateWebhook(rawBody, signature)
	if err != nil {
		if errors.Is(err, provider.ErrInvalidSignature) {
			metrics.SignatureFailuresTotal.Inc()
			return err
		}
		r.logger.Error("webhook body unusable after authentication", zap.Error(err))
		return nil
	}

	if outcome.Status != models.OutcomeSuccessful {
		return nil
	}

	orderID, err := reference.ParseOrderID(outcome.MerchantReference)
	if err != nil {
		r.logger.Warn("webhook carries undecodable reference",
			zap.String("reference", outcome.MerchantReference),
		)
		return nil
	}

	order, err := r.store.Get(ctx, orderID)
	if err != nil {
		r.logger.Warn("webhook for unknown order", zap.Int64("order_id", orderID), zap.Error(err))
		return nil
	}

	if !reference.Matches(order.TransactionRef, outcome.MerchantReference) {
		r.logger.Warn("webhook reference does not match issued reference",
			zap.Int64("order_id", orderID),
			zap.String("reported_reference", outcome.MerchantReference),
		)
		metrics.ReconciliationsTotal.WithLabelValues("webhook", "rejected").Inc()
		return nil
	}

	first, err := r.locks.FirstReconcile(ctx, outcome.MerchantReference)
	if err != nil {
		// Redis being down must not block reconciliation; the store guard
		// still holds.
		r.logger.Warn("idempotency check unavailable", zap.Error(err))
	} else if !first {
		metrics.ReconciliationsTotal.WithLabelValues("webhook", "already_settled").Inc()
		return nil
	}

	d := reconcile.Reconcile(outcome, *order, reconcile.Options{
		Path:               reconcile.PathWebhook,
		AutocompleteOrders: r.cfg.AutocompleteOrders,
	})

	if d.Rejected {
		metrics.ReconciliationsTotal.WithLabelValues("webhook", "rejected").Inc()
		return nil
	}
	if d.AlreadySettled {
		metrics.ReconciliationsTotal.WithLabelValues("webhook", "already_settled").Inc()
		return nil
	}

	locked, err := r.locks.AcquireOrderLock(ctx, orderID)
	if err != nil {
		r.logger.Warn("order lock unavailable", zap.Int64("order_id", orderID), zap.Error(err))
	} else if !locked {
		r.locks.ForgetReconcile(ctx, outcome.MerchantReference)
		return nil
	} else {
		defer r.locks.ReleaseOrderLock(ctx, orderID)
	}

	if _, err := r.applyAndPublish(ctx, orderID, outcome.MerchantReference, d, "webhook"); err != nil {
		r.locks.ForgetReconcile(ctx, outcome.MerchantReference)
		return fmt.Errorf("apply webhook decision: %w", err)
	}
	return nil
}

func (r *Reconciler) applyAndPublish(ctx context.Context, orderID int64, ref string, d models.OrderDecision, path string) (models.ApplyResult, error) {
	res, err := r.store.ApplyDecision(ctx, orderID, ref, d)
	if err != nil && !res.Applied {
		metrics.ReconciliationsTotal.WithLabelValues(path, "store_error").Inc()
		r.logger.Error("decision not applied",
			zap.Int64("order_id", orderID),
			zap.String("reference", ref),
			zap.Error(err),
		)
		return res, err
	}
	if err != nil {
		// Applied but a trailing side effect failed (cart clear); log only.
		r.logger.Warn("decision applied with side-effect failure",
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)
	}

	if !res.Applied {
		metrics.ReconciliationsTotal.WithLabelValues(path, "already_settled").Inc()
		return res, nil
	}

	metrics.ReconciliationsTotal.WithLabelValues(path, string(res.NewStatus)).Inc()
	r.logger.Info("order reconciled",
		zap.Int64("order_id", orderID),
		zap.String("reference", ref),
		zap.String("path", path),
		zap.String("from_status", string(res.PreviousStatus)),
		zap.String("to_status", string(res.NewStatus)),
	)

	if res.NewStatus != res.PreviousStatus {
		ev := models.OrderStatusEvent{
			EventID:        uuid.NewString(),
			OrderID:        orderID,
			PreviousStatus: res.PreviousStatus,
			Status:         res.NewStatus,
			Reference:      ref,
			OccurredAt:     r.now(),
		}
		if err := r.events.PublishStatusChange(ctx, ev); err != nil {
			r.logger.Error("publish status change", zap.Int64("order_id", orderID), zap.Error(err))
		}
	}

	return res, nil
}

// IssueReference prepares checkout parameters for an order and persists the
// issued reference before the shopper is handed to the provider.
func (r *Reconciler) IssueReference(ctx context.Context, orderID int64, orderKey string) (models.CheckoutParams, error) {
	order, err := r.store.Get(ctx, orderID)
	if err != nil {
		return models.CheckoutParams{}, err
	}

	if order.OrderKey != orderKey {
		return models.CheckoutParams{}, ErrOrderKeyMismatch
	}

	if !r.currencySupported(order.Currency) {
		return models.CheckoutParams{}, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, order.Currency)
	}

	ref := reference.Issue(order.ID, r.now())
	if err := r.store.SetTransactionRef(ctx, order.ID, ref); err != nil {
		return models.CheckoutParams{}, err
	}

	r.logger.Info("payment reference issued",
		zap.Int64("order_id", order.ID),
		zap.String("reference", ref),
	)

	return models.CheckoutParams{
		OrderID:     order.ID,
		Reference:   ref,
		Amount:      order.Total,
		Currency:    order.Currency,
		Email:       order.Email,
		FirstName:   order.FirstName,
		LastName:    order.LastName,
		Phone:       order.Phone,
		ShippingFee: order.ShippingTotal,
		PublicKey:   r.cfg.PublicKey,
		CallbackURL: r.cfg.CallbackURL,
	}, nil
}

func (r *Reconciler) currencySupported(code string) bool {
	for _, c := range r.cfg.SupportedCurrencies {
		if strings.EqualFold(c, code) {
			return true
		}
	}
	return false
}
