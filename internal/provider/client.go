// Package provider talks to the installment provider: outbound transaction
// verification and inbound webhook authentication.
package provider

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lumapay/bnpl-gateway/internal/models"
	"github.com/lumapay/bnpl-gateway/internal/telemetry"
)

// SecretKeyHeader carries the merchant secret on verify calls.
const SecretKeyHeader = "klump-secret-key"

// SignatureHeader carries the HMAC-SHA512 of the raw webhook body.
const SignatureHeader = "X-Klump-Signature"

var (
	ErrNetwork           = errors.New("provider unreachable")
	ErrMalformedResponse = errors.New("malformed provider response")
	ErrInvalidSignature  = errors.New("invalid webhook signature")
)

type transactionEnvelope struct {
	Data struct {
		MerchantReference string          `json:"merchant_reference"`
		Amount            decimal.Decimal `json:"amount"`
		Currency          string          `json:"currency"`
		Status            string          `json:"status"`
	} `json:"data"`
}

type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

func NewClient(baseURL, secretKey string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// VerifyTransaction fetches the provider's view of a transaction. Any
// transport failure or non-200 response is ErrNetwork: the caller must not
// advance order state on it.
func (c *Client) VerifyTransaction(ctx context.Context, ref string) (models.PaymentOutcome, error) {
	ctx, span := telemetry.Tracer.Start(ctx, "provider.verify_transaction",
		trace.WithAttributes(attribute.String("payment.reference", ref)))
	defer span.End()

	outcome, err := c.verifyTransaction(ctx, ref)
	if err != nil {
		span.RecordError(err)
	}
	return outcome, err
}

func (c *Client) verifyTransaction(ctx context.Context, ref string) (models.PaymentOutcome, error) {
	endpoint := fmt.Sprintf("%s/transactions/%s/verify", c.baseURL, url.PathEscape(ref))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.PaymentOutcome{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	req.Header.Set(SecretKeyHeader, c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.PaymentOutcome{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.PaymentOutcome{}, fmt.Errorf("%w: status %d", ErrNetwork, resp.StatusCode)
	}

	var envelope transactionEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return models.PaymentOutcome{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return outcomeFromEnvelope(envelope)
}

// AuthenticateWebhook verifies the HMAC-SHA512 signature over the exact raw
// body bytes and only then parses them. Verification never runs against
// re-serialized JSON, which can differ byte-for-byte from what was signed.
func (c *Client) AuthenticateWebhook(rawBody []byte, signature string) (models.PaymentOutcome, error) {
	if signature == "" {
		return models.PaymentOutcome{}, fmt.Errorf("%w: missing signature header", ErrInvalidSignature)
	}

	mac := hmac.New(sha512.New, []byte(c.secretKey))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return models.PaymentOutcome{}, ErrInvalidSignature
	}

	var envelope transactionEnvelope
	if err := json.Unmarshal(rawBody, &envelope); err != nil {
		return models.PaymentOutcome{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return outcomeFromEnvelope(envelope)
}

func outcomeFromEnvelope(envelope transactionEnvelope) (models.PaymentOutcome, error) {
	data := envelope.Data
	if data.MerchantReference == "" || data.Currency == "" || data.Status == "" {
		return models.PaymentOutcome{}, fmt.Errorf("%w: missing required fields", ErrMalformedResponse)
	}

	return models.PaymentOutcome{
		Status:            models.OutcomeStatus(data.Status),
		Amount:            data.Amount,
		Currency:          strings.ToUpper(data.Currency),
		MerchantReference: data.MerchantReference,
	}, nil
}
