package models

type PaymentStatus string
type TransactionType string
type FraudDecision string
type GatewayName string

const (
	PaymentStatusPending           PaymentStatus = "pending"
	PaymentStatusProcessing        PaymentStatus = "processing"
	PaymentStatusSucceeded         PaymentStatus = "succeeded"
	PaymentStatusFailed            PaymentStatus = "failed"
	PaymentStatusRefunded          PaymentStatus = "refunded"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"

	TransactionTypeChargeAttempt TransactionType = "charge_attempt"
	TransactionTypeWebhookEvent  TransactionType = "webhook_event"
	TransactionTypeRefundAttempt TransactionType = "refund_attempt"

	FraudDecisionAllow  FraudDecision = "allow"
	FraudDecisionReview FraudDecision = "review"
	FraudDecisionBlock  FraudDecision = "block"

	GatewayStripe      GatewayName = "stripe"
	GatewayPaystack    GatewayName = "paystack"
	GatewayFlutterwave GatewayName = "flutterwave"
	GatewayMTNMoMo     GatewayName = "mtn_momo"
)

// paymentTransitions is the complete state machine. Anything not listed is
// an illegal transition. failed and refunded are absorbing; succeeded may
// only move into refund states.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:           {PaymentStatusProcessing, PaymentStatusSucceeded, PaymentStatusFailed},
	PaymentStatusProcessing:        {PaymentStatusSucceeded, PaymentStatusFailed},
	PaymentStatusSucceeded:         {PaymentStatusPartiallyRefunded, PaymentStatusRefunded},
	PaymentStatusPartiallyRefunded: {PaymentStatusPartiallyRefunded, PaymentStatusRefunded},
	PaymentStatusFailed:            {},
	PaymentStatusRefunded:          {},
}

// CanTransition reports whether moving from one payment status to another
// is permitted by the state machine.
func CanTransition(from, to PaymentStatus) bool {
	for _, allowed := range paymentTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a payment status permits no further charge
// processing. Refunds out of succeeded are handled by CanTransition.
func IsTerminal(s PaymentStatus) bool {
	switch s {
	case PaymentStatusSucceeded, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// IsRefundable reports whether a refund may be issued in this status.
func IsRefundable(s PaymentStatus) bool {
	return s == PaymentStatusSucceeded || s == PaymentStatusPartiallyRefunded
}
