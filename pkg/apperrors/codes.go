package apperrors

// ErrorCode is a stable, machine-readable error identifier returned to API
// clients. Codes never change once published; messages may.
type ErrorCode string

// System and unknown errors
const (
	CodeInternalError        ErrorCode = "INTERNAL_ERROR"
	CodeDatabaseError        ErrorCode = "DATABASE_ERROR"
	CodeExternalServiceError ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

// Generic business-logic codes (used by the factories)
const (
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeAlreadyExists    ErrorCode = "ALREADY_EXISTS"
	CodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	CodeConflict         ErrorCode = "CONFLICT"
	CodeInvalidStatus    ErrorCode = "INVALID_STATUS"
	CodeInvalidOperation ErrorCode = "INVALID_OPERATION"
)

// Payment domain codes
const (
	CodePaymentNotFound     ErrorCode = "PAYMENT_NOT_FOUND"
	CodeNoGatewayAvailable  ErrorCode = "NO_GATEWAY_AVAILABLE"
	CodeRateUnavailable     ErrorCode = "RATE_UNAVAILABLE"
	CodeFraudBlocked        ErrorCode = "FRAUD_BLOCKED"
	CodeGatewayUnavailable  ErrorCode = "GATEWAY_UNAVAILABLE"
	CodeGatewayRejected     ErrorCode = "GATEWAY_REJECTED"
	CodeSignatureInvalid    ErrorCode = "SIGNATURE_INVALID"
	CodeMalformedPayload    ErrorCode = "MALFORMED_PAYLOAD"
	CodeRefundExceedsCharge ErrorCode = "REFUND_EXCEEDS_CHARGE"
	CodeRefundUnsupported   ErrorCode = "REFUND_UNSUPPORTED"
	CodePaymentInProgress   ErrorCode = "PAYMENT_IN_PROGRESS"
	CodeInvalidPaymentState ErrorCode = "INVALID_PAYMENT_STATE"
)
