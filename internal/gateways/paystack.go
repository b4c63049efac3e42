package gateways

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"payflow_backend/internal/config"
	"payflow_backend/internal/models"
)

// Paystack covers the Nigerian, Ghanaian and South African markets with
// cards, bank transfers, USSD and mobile money.
type Paystack struct {
	cfg    config.PaystackConfig
	client *http.Client
}

func NewPaystack(cfg config.PaystackConfig) *Paystack {
	return &Paystack{
		cfg:    cfg,
		client: newHTTPClient(),
	}
}

func (p *Paystack) Name() models.GatewayName {
	return models.GatewayPaystack
}

func (p *Paystack) SupportedCurrencies() []string {
	return []string{"NGN", "GHS", "ZAR", "USD"}
}

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (p *Paystack) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	payload := map[string]interface{}{
		"email":     req.CustomerRef,
		"amount":    req.Amount, // already minor units (kobo/pesewas)
		"currency":  req.Currency,
		"reference": req.Reference,
		"metadata":  req.Metadata,
	}

	body, raw, err := p.post(ctx, "/transaction/initialize", payload)
	if err != nil {
		return nil, err
	}

	var data struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayRejected, err)
	}

	return &InitializeResult{
		GatewayRef:  data.Reference,
		CheckoutURL: data.AuthorizationURL,
		Status:      models.PaymentStatusPending,
		Raw:         raw,
	}, nil
}

func (p *Paystack) Verify(ctx context.Context, gatewayRef string) (*VerifyResult, error) {
	body, raw, err := p.get(ctx, "/transaction/verify/"+gatewayRef)
	if err != nil {
		return nil, err
	}

	var data struct {
		Status   string `json:"status"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayRejected, err)
	}

	return &VerifyResult{
		Status:          paystackStatus(data.Status),
		AmountConfirmed: data.Amount,
		Currency:        data.Currency,
		Raw:             raw,
	}, nil
}

func (p *Paystack) Refund(ctx context.Context, gatewayRef string, amount int64) (*RefundResult, error) {
	payload := map[string]interface{}{
		"transaction": gatewayRef,
		"amount":      amount,
	}

	body, raw, err := p.post(ctx, "/refund", payload)
	if err != nil {
		return nil, err
	}

	var data struct {
		ID     json.Number `json:"id"`
		Status string      `json:"status"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayRejected, err)
	}

	return &RefundResult{
		RefundRef: data.ID.String(),
		Status:    models.PaymentStatusRefunded,
		Raw:       raw,
	}, nil
}

// VerifyWebhookSignature checks the x-paystack-signature header: an
// HMAC-SHA512 of the raw body keyed with the secret key.
func (p *Paystack) VerifyWebhookSignature(body []byte, header http.Header) bool {
	signature := header.Get("x-paystack-signature")
	if signature == "" || p.cfg.SecretKey == "" {
		return false
	}

	mac := hmac.New(sha512.New, []byte(p.cfg.SecretKey))
	mac.Write(body)
	computed := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(computed), []byte(signature))
}

func (p *Paystack) ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var payload struct {
		Event string `json:"event"`
		Data  struct {
			ID        json.Number `json:"id"`
			Reference string      `json:"reference"`
			Status    string      `json:"status"`
			Amount    int64       `json:"amount"`
		} `json:"data"`
	}

	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if payload.Event == "" || payload.Data.ID.String() == "" || payload.Data.Reference == "" {
		return nil, ErrMalformedPayload
	}

	eventType := payload.Event
	status := paystackStatus(payload.Data.Status)
	switch payload.Event {
	case "charge.success":
		eventType = EventPaymentSucceeded
		status = models.PaymentStatusSucceeded
	case "charge.failed":
		eventType = EventPaymentFailed
		status = models.PaymentStatusFailed
	case "refund.processed":
		eventType = EventRefundCompleted
		status = models.PaymentStatusRefunded
	}

	return &WebhookEvent{
		GatewayEventID: payload.Event + ":" + payload.Data.ID.String(),
		GatewayRef:     payload.Data.Reference,
		EventType:      eventType,
		Status:         status,
		Amount:         payload.Data.Amount,
		Raw:            json.RawMessage(body),
	}, nil
}

// --- HTTP helpers ---

func (p *Paystack) post(ctx context.Context, path string, payload interface{}) (json.RawMessage, json.RawMessage, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrGatewayRejected, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.SecretKey)
	httpReq.Header.Set("Content-Type", "application/json")

	return p.do(httpReq)
}

func (p *Paystack) get(ctx context.Context, path string) (json.RawMessage, json.RawMessage, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.SecretKey)

	return p.do(httpReq)
}

// do executes the request and unwraps the Paystack envelope. It returns the
// envelope's data plus the raw response for the audit log.
func (p *Paystack) do(req *http.Request) (json.RawMessage, json.RawMessage, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	var envelope paystackEnvelope
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(&envelope); err != nil {
		return nil, nil, fmt.Errorf("%w: invalid response body", ErrGatewayUnavailable)
	}

	raw, _ := json.Marshal(envelope)

	switch {
	case resp.StatusCode >= 500:
		return nil, nil, fmt.Errorf("%w: paystack returned %d", ErrGatewayUnavailable, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil, ErrNotFound
	case !envelope.Status:
		return nil, nil, fmt.Errorf("%w: status %s", ErrGatewayRejected, strconv.Itoa(resp.StatusCode))
	}

	return envelope.Data, raw, nil
}

func paystackStatus(s string) models.PaymentStatus {
	switch s {
	case "success":
		return models.PaymentStatusSucceeded
	case "failed", "abandoned":
		return models.PaymentStatusFailed
	default:
		return models.PaymentStatusPending
	}
}
