package gateways

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"payflow_backend/internal/models"
)

// Sentinel errors shared by all adapters. Services map these onto the API
// error taxonomy; adapters never return provider payload text in errors.
var (
	// ErrGatewayUnavailable is transient: network failure or provider 5xx.
	// The payment stays pending and may be verified later.
	ErrGatewayUnavailable = errors.New("gateway unavailable")

	// ErrGatewayRejected is a provider-side validation failure (declined,
	// unsupported currency). Terminal for the attempt.
	ErrGatewayRejected = errors.New("gateway rejected the request")

	// ErrNotFound means the provider has no record of the reference.
	// On Verify this is treated as still-pending, never as failure.
	ErrNotFound = errors.New("gateway has no record of the transaction")

	// ErrMalformedPayload means a webhook body is missing required fields.
	// Callers must reject the webhook (HTTP 400), never retry it.
	ErrMalformedPayload = errors.New("malformed webhook payload")

	// ErrRefundExceedsCharge is returned when the provider reports the
	// refund amount above the remaining refundable amount.
	ErrRefundExceedsCharge = errors.New("refund exceeds remaining charge")

	// ErrRefundUnsupported is returned by gateways without a refund API.
	ErrRefundUnsupported = errors.New("refunds not supported by this gateway")

	// ErrNoGatewayAvailable is returned by the selector when no adapter
	// supports the requested currency.
	ErrNoGatewayAvailable = errors.New("no gateway available for currency")
)

// Call deadlines recommended for the orchestrator. Webhook processing has
// no outbound gateway call and must finish well inside the provider retry
// window.
const (
	InitializeTimeout = 10 * time.Second
	VerifyTimeout     = 10 * time.Second
	RefundTimeout     = 15 * time.Second
)

// Normalized webhook event types.
const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"
	EventRefundCompleted  = "refund.completed"
)

// InitializeRequest opens a charge on the provider side.
type InitializeRequest struct {
	Amount      int64  // minor units
	Currency    string // ISO 4217
	OrderRef    string
	Reference   string // our reference passed to the provider (tx_ref)
	CustomerRef string
	Metadata    map[string]string
}

// InitializeResult is the normalized initialization outcome. Exactly one of
// CheckoutURL / ClientSecret is set depending on the provider flow.
type InitializeResult struct {
	GatewayRef   string
	CheckoutURL  string
	ClientSecret string
	Status       models.PaymentStatus
	Raw          json.RawMessage // full provider response, audit only
}

// VerifyResult is the normalized status poll outcome.
type VerifyResult struct {
	Status          models.PaymentStatus
	AmountConfirmed int64
	Currency        string
	Raw             json.RawMessage
}

// RefundResult is the normalized refund outcome.
type RefundResult struct {
	RefundRef string
	Status    models.PaymentStatus
	Raw       json.RawMessage
}

// WebhookEvent is a provider notification parsed into a uniform shape.
type WebhookEvent struct {
	GatewayEventID string
	GatewayRef     string
	EventType      string // one of the normalized Event* constants, or the provider type verbatim
	Status         models.PaymentStatus
	Amount         int64
	Raw            json.RawMessage
}

// Gateway is the capability contract every payment provider adapter
// satisfies. Adapters are stateless and safe for concurrent use; all I/O
// honors the context deadline.
//
// VerifyWebhookSignature is a pure function with no I/O side effects and
// uses constant-time comparison.
type Gateway interface {
	Name() models.GatewayName
	SupportedCurrencies() []string

	Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error)
	Verify(ctx context.Context, gatewayRef string) (*VerifyResult, error)
	Refund(ctx context.Context, gatewayRef string, amount int64) (*RefundResult, error)

	VerifyWebhookSignature(body []byte, header http.Header) bool
	ParseWebhookEvent(body []byte) (*WebhookEvent, error)
}

// supportsCurrency is the shared currency membership check.
func supportsCurrency(currencies []string, currency string) bool {
	for _, c := range currencies {
		if c == currency {
			return true
		}
	}
	return false
}

// newHTTPClient builds the adapter HTTP client. The client timeout is a
// backstop only; per-call deadlines come from the caller's context.
func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 20 * time.Second}
}
