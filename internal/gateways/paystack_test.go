package gateways

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"payflow_backend/internal/config"
	"payflow_backend/internal/models"
)

func paystackSign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestPaystackWebhookSignature(t *testing.T) {
	p := NewPaystack(config.PaystackConfig{SecretKey: "sk_test"})
	body := []byte(`{"event":"charge.success"}`)

	header := http.Header{}
	header.Set("x-paystack-signature", paystackSign("sk_test", body))
	assert.True(t, p.VerifyWebhookSignature(body, header))

	header.Set("x-paystack-signature", paystackSign("wrong_key", body))
	assert.False(t, p.VerifyWebhookSignature(body, header))

	assert.False(t, p.VerifyWebhookSignature(body, http.Header{}))
}

func TestPaystackParseWebhookEvent(t *testing.T) {
	p := NewPaystack(config.PaystackConfig{})

	body := []byte(`{"event":"charge.success","data":{"id":12345,"reference":"pay-1","status":"success","amount":5000}}`)
	event, err := p.ParseWebhookEvent(body)
	assert.NoError(t, err)
	assert.Equal(t, "charge.success:12345", event.GatewayEventID)
	assert.Equal(t, "pay-1", event.GatewayRef)
	assert.Equal(t, EventPaymentSucceeded, event.EventType)
	assert.Equal(t, models.PaymentStatusSucceeded, event.Status)
	assert.Equal(t, int64(5000), event.Amount)

	body = []byte(`{"event":"refund.processed","data":{"id":77,"reference":"pay-1","status":"processed","amount":2000}}`)
	event, err = p.ParseWebhookEvent(body)
	assert.NoError(t, err)
	assert.Equal(t, EventRefundCompleted, event.EventType)
	assert.Equal(t, models.PaymentStatusRefunded, event.Status)
}

func TestPaystackParseWebhookEventMalformed(t *testing.T) {
	p := NewPaystack(config.PaystackConfig{})

	_, err := p.ParseWebhookEvent([]byte(`{`))
	assert.ErrorIs(t, err, ErrMalformedPayload)

	_, err = p.ParseWebhookEvent([]byte(`{"event":"charge.success","data":{"id":1}}`))
	assert.ErrorIs(t, err, ErrMalformedPayload, "missing reference")
}

func TestPaystackInitialize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"status":true,"message":"Authorization URL created","data":{"authorization_url":"https://checkout.paystack.com/abc","access_code":"abc","reference":"pay-1"}}`)
	}))
	defer srv.Close()

	p := NewPaystack(config.PaystackConfig{SecretKey: "sk_test", BaseURL: srv.URL})
	result, err := p.Initialize(context.Background(), InitializeRequest{
		Amount:      5000,
		Currency:    "NGN",
		OrderRef:    "order-1",
		Reference:   "pay-1",
		CustomerRef: "buyer@example.com",
	})
	assert.NoError(t, err)
	assert.Equal(t, "pay-1", result.GatewayRef)
	assert.Equal(t, "https://checkout.paystack.com/abc", result.CheckoutURL)
	assert.Equal(t, models.PaymentStatusPending, result.Status)
}

func TestPaystackRejectedEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"status":false,"message":"Invalid currency"}`)
	}))
	defer srv.Close()

	p := NewPaystack(config.PaystackConfig{SecretKey: "sk_test", BaseURL: srv.URL})
	_, err := p.Initialize(context.Background(), InitializeRequest{Amount: 5000, Currency: "XXX"})
	assert.ErrorIs(t, err, ErrGatewayRejected)
}

func TestPaystackServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"status":false,"message":"server error"}`)
	}))
	defer srv.Close()

	p := NewPaystack(config.PaystackConfig{SecretKey: "sk_test", BaseURL: srv.URL})
	_, err := p.Verify(context.Background(), "pay-1")
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
}

func TestPaystackVerify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/verify/pay-1", r.URL.Path)
		fmt.Fprint(w, `{"status":true,"message":"Verification successful","data":{"status":"success","amount":5000,"currency":"NGN"}}`)
	}))
	defer srv.Close()

	p := NewPaystack(config.PaystackConfig{SecretKey: "sk_test", BaseURL: srv.URL})
	result, err := p.Verify(context.Background(), "pay-1")
	assert.NoError(t, err)
	assert.Equal(t, models.PaymentStatusSucceeded, result.Status)
	assert.Equal(t, int64(5000), result.AmountConfirmed)
}
