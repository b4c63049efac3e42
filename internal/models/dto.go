package models

// InitiatePaymentRequest is the inbound contract for starting a checkout
// payment. Order data is supplied by the order subsystem and treated as
// opaque here.
type InitiatePaymentRequest struct {
	OrderRef       string            `json:"order_ref" binding:"required" validate:"required"`
	CustomerRef    string            `json:"customer_ref" validate:"omitempty"`
	Amount         int64             `json:"amount" binding:"required" validate:"required,minor-amount"`
	Currency       string            `json:"currency" binding:"required" validate:"required,currency-code"`
	CountryHint    string            `json:"country_hint" validate:"omitempty,len=2"`
	IdempotencyKey string            `json:"idempotency_key" validate:"omitempty,max=128"`
	Metadata       map[string]string `json:"metadata" validate:"omitempty"`
}

// RefundPaymentRequest asks for a partial or full refund of a succeeded
// payment.
type RefundPaymentRequest struct {
	Amount int64  `json:"amount" binding:"required" validate:"required,minor-amount"`
	Reason string `json:"reason" validate:"omitempty,max=255"`
}

// PaymentResponse is the outward payment view. Raw gateway payloads are
// deliberately absent.
type PaymentResponse struct {
	Payment *Payment `json:"payment"`
	// CheckoutURL or ClientSecret tells the caller how to complete the
	// charge on the gateway side; exactly one is set depending on gateway.
	CheckoutURL  string `json:"checkout_url,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
	// StatusUnknown is set when the gateway call timed out: the payment
	// stays pending and will be reconciled by verification or webhook.
	StatusUnknown bool `json:"status_unknown,omitempty"`
}

// WebhookResponse acknowledges a provider notification.
type WebhookResponse struct {
	Accepted bool `json:"accepted"`
}
