package gateways

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"payflow_backend/internal/config"
	"payflow_backend/internal/models"
)

// MTNMoMo implements the MTN Mobile Money request-to-pay flow used in East
// African markets. There is no hosted checkout page: the payer approves the
// request on their phone, so Initialize returns neither a redirect URL nor
// a client secret.
type MTNMoMo struct {
	cfg    config.MTNMoMoConfig
	client *http.Client
}

func NewMTNMoMo(cfg config.MTNMoMoConfig) *MTNMoMo {
	return &MTNMoMo{
		cfg:    cfg,
		client: newHTTPClient(),
	}
}

func (m *MTNMoMo) Name() models.GatewayName {
	return models.GatewayMTNMoMo
}

func (m *MTNMoMo) SupportedCurrencies() []string {
	return []string{"UGX", "GHS", "XAF", "ZMW"}
}

func (m *MTNMoMo) targetEnvironment() string {
	if m.cfg.Sandbox {
		return "sandbox"
	}
	return "production"
}

func (m *MTNMoMo) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	phoneNumber := req.Metadata["phone_number"]
	if phoneNumber == "" {
		return nil, fmt.Errorf("%w: phone number required for mobile money", ErrGatewayRejected)
	}

	referenceID := uuid.NewString()

	payload := map[string]interface{}{
		"amount":     strconv.FormatInt(req.Amount, 10),
		"currency":   req.Currency,
		"externalId": req.OrderRef,
		"payer": map[string]string{
			"partyIdType": "MSISDN",
			"partyId":     phoneNumber,
		},
		"payerMessage": "Order payment",
		"payeeNote":    "Order payment",
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayRejected, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.BaseURL+"/collection/v1_0/requesttopay", bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	httpReq.Header.Set("X-Reference-Id", referenceID)
	httpReq.Header.Set("X-Target-Environment", m.targetEnvironment())
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", m.cfg.SubscriptionKey)
	httpReq.Header.Set("Authorization", "Bearer "+m.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: momo returned %d", ErrGatewayUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusAccepted:
		return nil, fmt.Errorf("%w: momo returned %d", ErrGatewayRejected, resp.StatusCode)
	}

	raw, _ := json.Marshal(map[string]string{"reference_id": referenceID})

	return &InitializeResult{
		GatewayRef: referenceID,
		Status:     models.PaymentStatusPending,
		Raw:        raw,
	}, nil
}

func (m *MTNMoMo) Verify(ctx context.Context, gatewayRef string) (*VerifyResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, m.cfg.BaseURL+"/collection/v1_0/requesttopay/"+gatewayRef, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	httpReq.Header.Set("X-Target-Environment", m.targetEnvironment())
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", m.cfg.SubscriptionKey)
	httpReq.Header.Set("Authorization", "Bearer "+m.cfg.APIKey)

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: momo returned %d", ErrGatewayUnavailable, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: momo returned %d", ErrGatewayRejected, resp.StatusCode)
	}

	var data struct {
		Status   string `json:"status"`
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: invalid response body", ErrGatewayUnavailable)
	}

	amount, _ := strconv.ParseInt(data.Amount, 10, 64)
	raw, _ := json.Marshal(data)

	return &VerifyResult{
		Status:          momoStatus(data.Status),
		AmountConfirmed: amount,
		Currency:        data.Currency,
		Raw:             raw,
	}, nil
}

// Refund is not available through the MoMo collections API; refunds are
// handled manually by operations.
func (m *MTNMoMo) Refund(ctx context.Context, gatewayRef string, amount int64) (*RefundResult, error) {
	return nil, ErrRefundUnsupported
}

// VerifyWebhookSignature checks the shared callback secret header. MoMo has
// no HMAC scheme for callbacks; the deployment configures a secret header
// on the callback URL instead.
func (m *MTNMoMo) VerifyWebhookSignature(body []byte, header http.Header) bool {
	secret := header.Get("X-Callback-Secret")
	if secret == "" || m.cfg.CallbackSecret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(m.cfg.CallbackSecret)) == 1
}

func (m *MTNMoMo) ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var payload struct {
		ReferenceID string `json:"referenceId"`
		Status      string `json:"status"`
		Amount      string `json:"amount"`
	}

	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if payload.ReferenceID == "" || payload.Status == "" {
		return nil, ErrMalformedPayload
	}

	status := momoStatus(payload.Status)
	eventType := EventPaymentFailed
	if status == models.PaymentStatusSucceeded {
		eventType = EventPaymentSucceeded
	}

	amount, _ := strconv.ParseInt(payload.Amount, 10, 64)

	return &WebhookEvent{
		// One terminal callback per request-to-pay, so the reference
		// doubles as the event id.
		GatewayEventID: payload.ReferenceID + ":" + payload.Status,
		GatewayRef:     payload.ReferenceID,
		EventType:      eventType,
		Status:         status,
		Amount:         amount,
		Raw:            json.RawMessage(body),
	}, nil
}

func momoStatus(s string) models.PaymentStatus {
	switch s {
	case "SUCCESSFUL":
		return models.PaymentStatusSucceeded
	case "FAILED":
		return models.PaymentStatusFailed
	default:
		return models.PaymentStatusPending
	}
}
