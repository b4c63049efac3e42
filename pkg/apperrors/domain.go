package apperrors

import "net/http"

/*
Predefined errors and factories for the payment domain.

Messages are intentionally generic: raw gateway responses may contain
sensitive data and are kept in the transaction audit log only, never in
user-visible errors.
*/

// --- Payments ---

var ErrPaymentNotFound = New(
	CodePaymentNotFound,
	"payment",
	"Payment not found",
	http.StatusNotFound,
)

// ErrPaymentInProgress guards the one-active-payment-per-order invariant.
var ErrPaymentInProgress = New(
	CodePaymentInProgress,
	"payment",
	"A payment for this order is already in progress",
	http.StatusConflict,
)

var ErrNoGatewayAvailable = New(
	CodeNoGatewayAvailable,
	"gateway",
	"No payment gateway supports the requested currency",
	http.StatusUnprocessableEntity,
)

var ErrRateUnavailable = New(
	CodeRateUnavailable,
	"currency",
	"Exchange rate unavailable, payment cannot be initiated",
	http.StatusServiceUnavailable,
)

var ErrFraudBlocked = New(
	CodeFraudBlocked,
	"fraud",
	"Payment blocked by fraud screening",
	http.StatusForbidden,
)

// --- Gateway calls ---

// ErrGatewayUnavailable is transient: the payment stays pending and the
// caller may verify later. It must not be auto-retried with the same charge.
func ErrGatewayUnavailable(err error) *AppError {
	return Wrap(err, CodeGatewayUnavailable, "gateway", "Payment gateway is temporarily unavailable", http.StatusBadGateway)
}

// ErrGatewayRejected is terminal for the attempt: the provider refused the
// charge (unsupported currency, declined, etc.).
func ErrGatewayRejected(err error) *AppError {
	return Wrap(err, CodeGatewayRejected, "gateway", "Payment was rejected by the gateway", http.StatusUnprocessableEntity)
}

// --- Webhooks ---

var ErrSignatureInvalid = New(
	CodeSignatureInvalid,
	"webhook",
	"Webhook signature verification failed",
	http.StatusBadRequest,
)

var ErrMalformedPayload = New(
	CodeMalformedPayload,
	"webhook",
	"Webhook payload is malformed",
	http.StatusBadRequest,
)

// --- Refunds ---

var ErrRefundExceedsCharge = New(
	CodeRefundExceedsCharge,
	"refund",
	"Refund amount exceeds the remaining refundable amount",
	http.StatusBadRequest,
)

var ErrRefundUnsupported = New(
	CodeRefundUnsupported,
	"refund",
	"The selected gateway does not support refunds",
	http.StatusUnprocessableEntity,
)

// ErrInvalidPaymentState rejects operations not permitted by the payment
// state machine (e.g. refunding a pending payment).
func ErrInvalidPaymentState(message string) *AppError {
	return New(CodeInvalidPaymentState, "payment", message, http.StatusConflict)
}
