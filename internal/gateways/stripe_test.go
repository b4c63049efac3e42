package gateways

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"payflow_backend/internal/config"
	"payflow_backend/internal/models"
)

func stripeSign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestStripeWebhookSignature(t *testing.T) {
	s := NewStripe(config.StripeConfig{WebhookSecret: "whsec_test"})
	body := []byte(`{"id":"evt_1"}`)
	sig := stripeSign("whsec_test", "1700000000", body)

	header := http.Header{}
	header.Set("Stripe-Signature", fmt.Sprintf("t=1700000000,v1=%s", sig))
	assert.True(t, s.VerifyWebhookSignature(body, header))

	// Multiple v1 candidates: any valid one passes.
	header.Set("Stripe-Signature", fmt.Sprintf("t=1700000000,v1=deadbeef,v1=%s", sig))
	assert.True(t, s.VerifyWebhookSignature(body, header))

	header.Set("Stripe-Signature", "t=1700000000,v1=deadbeef")
	assert.False(t, s.VerifyWebhookSignature(body, header))

	header.Set("Stripe-Signature", fmt.Sprintf("v1=%s", sig))
	assert.False(t, s.VerifyWebhookSignature(body, header), "missing timestamp must fail")

	assert.False(t, s.VerifyWebhookSignature(body, http.Header{}))
}

func TestStripeWebhookSignatureTamperedBody(t *testing.T) {
	s := NewStripe(config.StripeConfig{WebhookSecret: "whsec_test"})
	body := []byte(`{"id":"evt_1"}`)
	sig := stripeSign("whsec_test", "1700000000", body)

	header := http.Header{}
	header.Set("Stripe-Signature", fmt.Sprintf("t=1700000000,v1=%s", sig))
	assert.False(t, s.VerifyWebhookSignature([]byte(`{"id":"evt_2"}`), header))
}

func TestStripeParseWebhookEvent(t *testing.T) {
	s := NewStripe(config.StripeConfig{})

	body := []byte(`{
		"id": "evt_1",
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_1", "amount": 5000, "status": "succeeded"}}
	}`)
	event, err := s.ParseWebhookEvent(body)
	assert.NoError(t, err)
	assert.Equal(t, "evt_1", event.GatewayEventID)
	assert.Equal(t, "pi_1", event.GatewayRef)
	assert.Equal(t, EventPaymentSucceeded, event.EventType)
	assert.Equal(t, models.PaymentStatusSucceeded, event.Status)
	assert.Equal(t, int64(5000), event.Amount)

	body = []byte(`{
		"id": "evt_2",
		"type": "payment_intent.payment_failed",
		"data": {"object": {"id": "pi_1", "status": "requires_payment_method"}}
	}`)
	event, err = s.ParseWebhookEvent(body)
	assert.NoError(t, err)
	assert.Equal(t, EventPaymentFailed, event.EventType)
	assert.Equal(t, models.PaymentStatusFailed, event.Status)
}

func TestStripeParseWebhookEventMalformed(t *testing.T) {
	s := NewStripe(config.StripeConfig{})

	_, err := s.ParseWebhookEvent([]byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformedPayload)

	_, err = s.ParseWebhookEvent([]byte(`{"type":"payment_intent.succeeded"}`))
	assert.ErrorIs(t, err, ErrMalformedPayload, "missing event id")
}

func TestStripeInitialize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payment_intents", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "5000", r.PostForm.Get("amount"))
		assert.Equal(t, "usd", r.PostForm.Get("currency"))
		fmt.Fprint(w, `{"id":"pi_1","client_secret":"pi_1_secret","status":"requires_payment_method"}`)
	}))
	defer srv.Close()

	s := NewStripe(config.StripeConfig{SecretKey: "sk_test", BaseURL: srv.URL})
	result, err := s.Initialize(context.Background(), InitializeRequest{
		Amount:    5000,
		Currency:  "USD",
		OrderRef:  "order-1",
		Reference: "pay-1",
	})
	assert.NoError(t, err)
	assert.Equal(t, "pi_1", result.GatewayRef)
	assert.Equal(t, "pi_1_secret", result.ClientSecret)
}

func TestStripeVerifyStatusMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payment_intents/pi_1", r.URL.Path)
		fmt.Fprint(w, `{"amount":5000,"currency":"usd","status":"succeeded"}`)
	}))
	defer srv.Close()

	s := NewStripe(config.StripeConfig{SecretKey: "sk_test", BaseURL: srv.URL})
	result, err := s.Verify(context.Background(), "pi_1")
	assert.NoError(t, err)
	assert.Equal(t, models.PaymentStatusSucceeded, result.Status)
	assert.Equal(t, int64(5000), result.AmountConfirmed)
	assert.Equal(t, "USD", result.Currency)
}

func TestStripeServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewStripe(config.StripeConfig{SecretKey: "sk_test", BaseURL: srv.URL})
	_, err := s.Verify(context.Background(), "pi_1")
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
}

func TestStripeNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewStripe(config.StripeConfig{SecretKey: "sk_test", BaseURL: srv.URL})
	_, err := s.Verify(context.Background(), "pi_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
