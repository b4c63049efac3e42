package gateways

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"payflow_backend/internal/config"
	"payflow_backend/internal/models"
)

// Stripe uses the PaymentIntents API: the charge is completed client-side
// against the returned client secret, so Initialize never produces a
// redirect URL.
type Stripe struct {
	cfg    config.StripeConfig
	client *http.Client
}

func NewStripe(cfg config.StripeConfig) *Stripe {
	return &Stripe{
		cfg:    cfg,
		client: newHTTPClient(),
	}
}

func (s *Stripe) Name() models.GatewayName {
	return models.GatewayStripe
}

func (s *Stripe) SupportedCurrencies() []string {
	return []string{"USD", "EUR", "GBP", "CAD", "AUD", "NGN", "ZAR", "KES", "GHS"}
}

func (s *Stripe) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(req.Amount, 10))
	form.Set("currency", strings.ToLower(req.Currency))
	form.Set("automatic_payment_methods[enabled]", "true")
	form.Set("metadata[order_ref]", req.OrderRef)
	form.Set("metadata[reference]", req.Reference)
	for k, v := range req.Metadata {
		form.Set("metadata["+k+"]", v)
	}

	body, err := s.call(ctx, http.MethodPost, "/payment_intents", form)
	if err != nil {
		return nil, err
	}

	var intent struct {
		ID           string `json:"id"`
		ClientSecret string `json:"client_secret"`
		Status       string `json:"status"`
	}
	if err := json.Unmarshal(body, &intent); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayRejected, err)
	}

	return &InitializeResult{
		GatewayRef:   intent.ID,
		ClientSecret: intent.ClientSecret,
		Status:       stripeStatus(intent.Status),
		Raw:          body,
	}, nil
}

func (s *Stripe) Verify(ctx context.Context, gatewayRef string) (*VerifyResult, error) {
	body, err := s.call(ctx, http.MethodGet, "/payment_intents/"+gatewayRef, nil)
	if err != nil {
		return nil, err
	}

	var intent struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Status   string `json:"status"`
	}
	if err := json.Unmarshal(body, &intent); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayRejected, err)
	}

	return &VerifyResult{
		Status:          stripeStatus(intent.Status),
		AmountConfirmed: intent.Amount,
		Currency:        strings.ToUpper(intent.Currency),
		Raw:             body,
	}, nil
}

func (s *Stripe) Refund(ctx context.Context, gatewayRef string, amount int64) (*RefundResult, error) {
	form := url.Values{}
	form.Set("payment_intent", gatewayRef)
	form.Set("amount", strconv.FormatInt(amount, 10))

	body, err := s.call(ctx, http.MethodPost, "/refunds", form)
	if err != nil {
		return nil, err
	}

	var refund struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &refund); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayRejected, err)
	}

	return &RefundResult{
		RefundRef: refund.ID,
		Status:    models.PaymentStatusRefunded,
		Raw:       body,
	}, nil
}

// VerifyWebhookSignature checks the Stripe-Signature header, which has the
// form "t=<unix>,v1=<hmac>[,v1=...]". The signed payload is "<t>.<body>"
// keyed with the webhook signing secret.
func (s *Stripe) VerifyWebhookSignature(body []byte, header http.Header) bool {
	sigHeader := header.Get("Stripe-Signature")
	if sigHeader == "" || s.cfg.WebhookSecret == "" {
		return false
	}

	var timestamp string
	var candidates []string
	for _, part := range strings.Split(sigHeader, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			candidates = append(candidates, kv[1])
		}
	}
	if timestamp == "" || len(candidates) == 0 {
		return false
	}

	mac := hmac.New(sha256.New, []byte(s.cfg.WebhookSecret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, candidate := range candidates {
		if hmac.Equal([]byte(expected), []byte(candidate)) {
			return true
		}
	}
	return false
}

func (s *Stripe) ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var payload struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object struct {
				ID     string `json:"id"`
				Amount int64  `json:"amount"`
				Status string `json:"status"`
			} `json:"object"`
		} `json:"data"`
	}

	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if payload.ID == "" || payload.Type == "" || payload.Data.Object.ID == "" {
		return nil, ErrMalformedPayload
	}

	eventType := payload.Type
	status := stripeStatus(payload.Data.Object.Status)
	switch payload.Type {
	case "payment_intent.succeeded":
		eventType = EventPaymentSucceeded
		status = models.PaymentStatusSucceeded
	case "payment_intent.payment_failed":
		eventType = EventPaymentFailed
		status = models.PaymentStatusFailed
	case "charge.refunded":
		eventType = EventRefundCompleted
		status = models.PaymentStatusRefunded
	}

	return &WebhookEvent{
		GatewayEventID: payload.ID,
		GatewayRef:     payload.Data.Object.ID,
		EventType:      eventType,
		Status:         status,
		Amount:         payload.Data.Object.Amount,
		Raw:            json.RawMessage(body),
	}, nil
}

// call executes a form-encoded Stripe API request.
func (s *Stripe) call(ctx context.Context, method, path string, form url.Values) (json.RawMessage, error) {
	var reqBody io.Reader
	if form != nil {
		reqBody = strings.NewReader(form.Encode())
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, s.cfg.BaseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.cfg.SecretKey)
	if form != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: stripe returned %d", ErrGatewayUnavailable, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: stripe returned %d", ErrGatewayRejected, resp.StatusCode)
	}

	return body, nil
}

func stripeStatus(s string) models.PaymentStatus {
	switch s {
	case "succeeded":
		return models.PaymentStatusSucceeded
	case "requires_payment_method", "canceled":
		return models.PaymentStatusFailed
	default:
		// processing, requires_confirmation, requires_action
		return models.PaymentStatusPending
	}
}
