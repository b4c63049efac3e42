package gateways

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"payflow_backend/internal/config"
	"payflow_backend/internal/models"
)

func TestFlutterwaveWebhookSignature(t *testing.T) {
	f := NewFlutterwave(config.FlutterwaveConfig{SecretHash: "my-hash"})
	body := []byte(`{"event":"charge.completed"}`)

	header := http.Header{}
	header.Set("verif-hash", "my-hash")
	assert.True(t, f.VerifyWebhookSignature(body, header))

	header.Set("verif-hash", "other-hash")
	assert.False(t, f.VerifyWebhookSignature(body, header))

	assert.False(t, f.VerifyWebhookSignature(body, http.Header{}))

	// An unset secret never validates, even against an empty header value.
	unconfigured := NewFlutterwave(config.FlutterwaveConfig{})
	header.Set("verif-hash", "")
	assert.False(t, unconfigured.VerifyWebhookSignature(body, header))
}

func TestFlutterwaveParseWebhookEvent(t *testing.T) {
	f := NewFlutterwave(config.FlutterwaveConfig{})

	body := []byte(`{"event":"charge.completed","data":{"id":99,"tx_ref":"pay-1","status":"successful","amount":50.00}}`)
	event, err := f.ParseWebhookEvent(body)
	assert.NoError(t, err)
	assert.Equal(t, "charge.completed:99", event.GatewayEventID)
	assert.Equal(t, "pay-1", event.GatewayRef)
	assert.Equal(t, EventPaymentSucceeded, event.EventType)
	assert.Equal(t, models.PaymentStatusSucceeded, event.Status)
	assert.Equal(t, int64(5000), event.Amount, "major units convert to minor")

	body = []byte(`{"event":"charge.completed","data":{"id":100,"tx_ref":"pay-1","status":"failed","amount":50.00}}`)
	event, err = f.ParseWebhookEvent(body)
	assert.NoError(t, err)
	assert.Equal(t, EventPaymentFailed, event.EventType)
}

func TestFlutterwaveParseWebhookEventMalformed(t *testing.T) {
	f := NewFlutterwave(config.FlutterwaveConfig{})

	_, err := f.ParseWebhookEvent([]byte(`nope`))
	assert.ErrorIs(t, err, ErrMalformedPayload)

	_, err = f.ParseWebhookEvent([]byte(`{"event":"charge.completed","data":{"id":1}}`))
	assert.ErrorIs(t, err, ErrMalformedPayload, "missing tx_ref")
}

func TestFlutterwaveInitializeUsesMajorUnits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments", r.URL.Path)
		fmt.Fprint(w, `{"status":"success","message":"Hosted Link","data":{"link":"https://checkout.flutterwave.com/pay/xyz"}}`)
	}))
	defer srv.Close()

	f := NewFlutterwave(config.FlutterwaveConfig{SecretKey: "sk_test", BaseURL: srv.URL})
	result, err := f.Initialize(context.Background(), InitializeRequest{
		Amount:    5000,
		Currency:  "NGN",
		OrderRef:  "order-1",
		Reference: "pay-1",
	})
	assert.NoError(t, err)
	assert.Equal(t, "pay-1", result.GatewayRef, "transaction keyed by our tx_ref")
	assert.Equal(t, "https://checkout.flutterwave.com/pay/xyz", result.CheckoutURL)
}

func TestFlutterwaveVerifyConvertsAmount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transactions/verify_by_reference", r.URL.Path)
		assert.Equal(t, "pay-1", r.URL.Query().Get("tx_ref"))
		fmt.Fprint(w, `{"status":"success","message":"ok","data":{"status":"successful","amount":50.00,"currency":"NGN"}}`)
	}))
	defer srv.Close()

	f := NewFlutterwave(config.FlutterwaveConfig{SecretKey: "sk_test", BaseURL: srv.URL})
	result, err := f.Verify(context.Background(), "pay-1")
	assert.NoError(t, err)
	assert.Equal(t, models.PaymentStatusSucceeded, result.Status)
	assert.Equal(t, int64(5000), result.AmountConfirmed)
}

func TestMajorMinorConversion(t *testing.T) {
	assert.Equal(t, 50.0, minorToMajor(5000))
	assert.Equal(t, int64(5000), majorToMinor(50.0))
	assert.Equal(t, int64(1999), majorToMinor(19.99))

	// Float arithmetic computes 4.985*100 as 498.4999..., dropping a unit.
	assert.Equal(t, int64(499), majorToMinor(4.985))
	assert.Equal(t, int64(12345678999), majorToMinor(123456789.99))
}
