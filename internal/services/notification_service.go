package services

import (
	"fmt"
	"strings"

	"payflow_backend/internal/config"
	"payflow_backend/internal/email"
	"payflow_backend/internal/logger"
	"payflow_backend/internal/models"
)

// NotificationService emails customers when a payment reaches a terminal
// state. Delivery is best-effort: a mail failure is logged and never fails
// the payment flow.
type NotificationService struct {
	sender  email.Sender
	enabled bool
}

func NewNotificationService(cfg *config.Config, sender email.Sender) *NotificationService {
	return &NotificationService{
		sender:  sender,
		enabled: cfg.Email.Enabled,
	}
}

func (s *NotificationService) NotifyPaymentOutcome(payment *models.Payment) {
	if !s.enabled || s.sender == nil {
		return
	}
	// The customer reference doubles as the notification address when it is
	// an email; other reference formats get no mail.
	if !strings.Contains(payment.CustomerRef, "@") {
		return
	}

	subject, body := s.compose(payment)
	if subject == "" {
		return
	}

	if err := s.sender.Send(payment.CustomerRef, subject, body); err != nil {
		logger.WithError(err).Warn("payment notification email failed",
			"payment_id", payment.ID,
			"status", string(payment.Status),
		)
	}
}

func (s *NotificationService) compose(payment *models.Payment) (string, string) {
	amount := fmt.Sprintf("%d.%02d %s", payment.Amount/100, payment.Amount%100, payment.Currency)

	switch payment.Status {
	case models.PaymentStatusSucceeded:
		return "Payment received",
			fmt.Sprintf("<p>Your payment of %s for order %s was successful.</p>", amount, payment.OrderRef)
	case models.PaymentStatusFailed:
		return "Payment failed",
			fmt.Sprintf("<p>Your payment of %s for order %s could not be completed.</p>", amount, payment.OrderRef)
	case models.PaymentStatusRefunded:
		return "Payment refunded",
			fmt.Sprintf("<p>Your payment of %s for order %s has been refunded in full.</p>", amount, payment.OrderRef)
	case models.PaymentStatusPartiallyRefunded:
		return "Payment partially refunded",
			fmt.Sprintf("<p>Part of your payment of %s for order %s has been refunded.</p>", amount, payment.OrderRef)
	default:
		return "", ""
	}
}
