package gateways

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"payflow_backend/internal/config"
	"payflow_backend/internal/models"
)

// Flutterwave covers the wider African market: cards, mobile money, bank
// transfer and USSD across several countries.
type Flutterwave struct {
	cfg    config.FlutterwaveConfig
	client *http.Client
}

func NewFlutterwave(cfg config.FlutterwaveConfig) *Flutterwave {
	return &Flutterwave{
		cfg:    cfg,
		client: newHTTPClient(),
	}
}

func (f *Flutterwave) Name() models.GatewayName {
	return models.GatewayFlutterwave
}

func (f *Flutterwave) SupportedCurrencies() []string {
	return []string{"NGN", "GHS", "KES", "UGX", "ZAR", "USD", "EUR", "GBP"}
}

type flutterwaveEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (f *Flutterwave) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	payload := map[string]interface{}{
		"tx_ref":          req.Reference,
		"amount":          minorToMajor(req.Amount),
		"currency":        req.Currency,
		"payment_options": "card,mobilemoney,ussd",
		"customer": map[string]string{
			"email": req.CustomerRef,
		},
		"meta": req.Metadata,
	}

	body, raw, err := f.request(ctx, http.MethodPost, "/payments", payload)
	if err != nil {
		return nil, err
	}

	var data struct {
		Link string `json:"link"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayRejected, err)
	}

	// Flutterwave keys the transaction by our tx_ref until completion.
	return &InitializeResult{
		GatewayRef:  req.Reference,
		CheckoutURL: data.Link,
		Status:      models.PaymentStatusPending,
		Raw:         raw,
	}, nil
}

func (f *Flutterwave) Verify(ctx context.Context, gatewayRef string) (*VerifyResult, error) {
	path := "/transactions/verify_by_reference?tx_ref=" + url.QueryEscape(gatewayRef)
	body, raw, err := f.request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var data struct {
		Status   string  `json:"status"`
		Amount   float64 `json:"amount"`
		Currency string  `json:"currency"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayRejected, err)
	}

	return &VerifyResult{
		Status:          flutterwaveStatus(data.Status),
		AmountConfirmed: majorToMinor(data.Amount),
		Currency:        data.Currency,
		Raw:             raw,
	}, nil
}

func (f *Flutterwave) Refund(ctx context.Context, gatewayRef string, amount int64) (*RefundResult, error) {
	payload := map[string]interface{}{
		"amount": minorToMajor(amount),
	}

	body, raw, err := f.request(ctx, http.MethodPost, "/transactions/"+url.PathEscape(gatewayRef)+"/refund", payload)
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

// VerifyWebhookSignature compares the verif-hash header against the
// configured secret hash. Flutterwave sends the shared hash verbatim, so
// this is an equality check, done in constant time.
func (f *Flutterwave) VerifyWebhookSignature(body []byte, header http.Header) bool {
	signature := header.Get("verif-hash")
	if signature == "" || f.cfg.SecretHash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(signature), []byte(f.cfg.SecretHash)) == 1
}

func (f *Flutterwave) ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var payload struct {
		Event string `json:"event"`
		Data  struct {
			ID     json.Number `json:"id"`
			TxRef  string      `json:"tx_ref"`
			Status string      `json:"status"`
			Amount float64     `json:"amount"`
		} `json:"data"`
	}

	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if payload.Event == "" || payload.Data.ID.String() == "" || payload.Data.TxRef == "" {
		return nil, ErrMalformedPayload
	}

	eventType := payload.Event
	status := flutterwaveStatus(payload.Data.Status)
	switch payload.Event {
	case "charge.completed":
		if status == models.PaymentStatusSucceeded {
			eventType = EventPaymentSucceeded
		} else if status == models.PaymentStatusFailed {
			eventType = EventPaymentFailed
		}
	case "refund.completed":
		eventType = EventRefundCompleted
		status = models.PaymentStatusRefunded
	}

	return &WebhookEvent{
		GatewayEventID: payload.Event + ":" + payload.Data.ID.String(),
		GatewayRef:     payload.Data.TxRef,
		EventType:      eventType,
		Status:         status,
		Amount:         majorToMinor(payload.Data.Amount),
		Raw:            json.RawMessage(body),
	}, nil
}

func (f *Flutterwave) request(ctx context.Context, method, path string, payload interface{}) (json.RawMessage, json.RawMessage, error) {
	var reqBody *bytes.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrGatewayRejected, err)
		}
		reqBody = bytes.NewReader(encoded)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, f.cfg.BaseURL+path, reqBody)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+f.cfg.SecretKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	var envelope flutterwaveEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, nil, fmt.Errorf("%w: invalid response body", ErrGatewayUnavailable)
	}

	raw, _ := json.Marshal(envelope)

	switch {
	case resp.StatusCode >= 500:
		return nil, nil, fmt.Errorf("%w: flutterwave returned %d", ErrGatewayUnavailable, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil, ErrNotFound
	case envelope.Status != "success":
		return nil, nil, fmt.Errorf("%w: flutterwave returned %d", ErrGatewayRejected, resp.StatusCode)
	}

	return envelope.Data, raw, nil
}

func flutterwaveStatus(s string) models.PaymentStatus {
	switch s {
	case "successful":
		return models.PaymentStatusSucceeded
	case "failed":
		return models.PaymentStatusFailed
	default:
		return models.PaymentStatusPending
	}
}

// Flutterwave amounts are major units in both directions. Conversion goes
// through decimal: float arithmetic on amounts like 4.985 lands a minor
// unit short.

var majorUnitScale = decimal.NewFromInt(100)

func minorToMajor(minor int64) float64 {
	major, _ := decimal.NewFromInt(minor).Div(majorUnitScale).Float64()
	return major
}

func majorToMinor(major float64) int64 {
	return decimal.NewFromFloat(major).Mul(majorUnitScale).Round(0).IntPart()
}
