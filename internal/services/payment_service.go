package services

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"payflow_backend/internal/config"
	"payflow_backend/internal/gateways"
	"payflow_backend/internal/logger"
	"payflow_backend/internal/models"
	"payflow_backend/internal/repositories"
	"payflow_backend/pkg/apperrors"
)

// PaymentService is the orchestrator: it owns the payment state machine and
// sequences fraud screening, gateway selection, the adapter call and
// persistence. Payments are mutated here and nowhere else.
//
// Every state-changing operation runs inside a transaction holding an
// advisory lock, so concurrent requests racing on the same order, payment
// or webhook event serialize instead of interleaving. Transaction rows are
// always written before the payment status they describe: a crash
// mid-update leaves the audit trail ahead of the visible state, never
// behind it.
type PaymentService struct {
	cfg             *config.Config
	paymentRepo     repositories.PaymentRepository
	transactionRepo repositories.TransactionRepository
	webhookRepo     repositories.WebhookEventRepository
	txManager       repositories.TxManager
	selector        *gateways.Selector
	fraud           *FraudService
	currency        *CurrencyService
	notifications   *NotificationService
}

func NewPaymentService(
	cfg *config.Config,
	paymentRepo repositories.PaymentRepository,
	transactionRepo repositories.TransactionRepository,
	webhookRepo repositories.WebhookEventRepository,
	txManager repositories.TxManager,
	selector *gateways.Selector,
	fraud *FraudService,
	currency *CurrencyService,
	notifications *NotificationService,
) *PaymentService {
	return &PaymentService{
		cfg:             cfg,
		paymentRepo:     paymentRepo,
		transactionRepo: transactionRepo,
		webhookRepo:     webhookRepo,
		txManager:       txManager,
		selector:        selector,
		fraud:           fraud,
		currency:        currency,
		notifications:   notifications,
	}
}

// InitiatePayment starts a checkout payment. Retrying with the same
// idempotency key returns the original payment; a different key for an
// order that already has an active payment is rejected.
func (s *PaymentService) InitiatePayment(ctx context.Context, db *gorm.DB, req *models.InitiatePaymentRequest) (*models.PaymentResponse, error) {
	idempotencyKey := req.IdempotencyKey
	if idempotencyKey == "" {
		idempotencyKey = "order:" + req.OrderRef
	}

	if !s.currency.HasRate(req.Currency) {
		return nil, apperrors.ErrRateUnavailable.WithDetails(map[string]string{"currency": req.Currency})
	}

	var (
		resp     *models.PaymentResponse
		deferred error // business outcome surfaced after the tx commits
	)

	err := s.txManager.WithLock(db, "order:"+req.OrderRef, func(tx *gorm.DB) error {
		existing, err := s.paymentRepo.FindByIdempotencyKey(tx, idempotencyKey)
		if err == nil {
			resp = &models.PaymentResponse{Payment: existing}
			return nil
		}
		if !errors.Is(err, repositories.ErrPaymentNotFound) {
			return err
		}

		active, err := s.paymentRepo.FindActiveByOrderRef(tx, req.OrderRef)
		if err == nil && active != nil {
			deferred = apperrors.ErrPaymentInProgress.WithDetails(map[string]string{"payment_id": active.ID})
			return nil
		}
		if err != nil && !errors.Is(err, repositories.ErrPaymentNotFound) {
			return err
		}

		assessment, err := s.fraud.Assess(tx, req.CustomerRef, req.Amount, req.Currency)
		if err != nil {
			return err
		}

		if assessment.Decision == models.FraudDecisionBlock {
			// No charge is attempted, but the blocked attempt is recorded
			// for audit.
			blocked := &models.Payment{
				BaseModel:      models.BaseModel{ID: uuid.NewString()},
				OrderRef:       req.OrderRef,
				CustomerRef:    req.CustomerRef,
				Amount:         req.Amount,
				Currency:       req.Currency,
				Status:         models.PaymentStatusFailed,
				IdempotencyKey: idempotencyKey,
				FraudScore:     assessment.Score,
				FraudFlagged:   true,
				FailureReason:  "fraud_blocked",
			}
			if err := s.paymentRepo.Create(tx, blocked); err != nil {
				return err
			}
			deferred = apperrors.ErrFraudBlocked.WithDetails(map[string]string{"payment_id": blocked.ID})
			return nil
		}

		chargeAmount, chargeCurrency := req.Amount, req.Currency
		gateway, err := s.selector.Select(chargeCurrency, req.CountryHint, chargeAmount)
		if errors.Is(err, gateways.ErrNoGatewayAvailable) && chargeCurrency != s.currency.Settlement() {
			// No adapter takes the requested currency; charge in the
			// settlement currency instead.
			converted, convErr := s.currency.Convert(req.Amount, req.Currency, s.currency.Settlement())
			if convErr != nil {
				return convErr
			}
			chargeAmount, chargeCurrency = converted, s.currency.Settlement()
			gateway, err = s.selector.Select(chargeCurrency, req.CountryHint, chargeAmount)
		}
		if err != nil {
			deferred = apperrors.ErrNoGatewayAvailable.WithDetails(map[string]string{"currency": req.Currency})
			return nil
		}

		payment := &models.Payment{
			BaseModel:      models.BaseModel{ID: uuid.NewString()},
			OrderRef:       req.OrderRef,
			CustomerRef:    req.CustomerRef,
			Amount:         chargeAmount,
			Currency:       chargeCurrency,
			Gateway:        gateway.Name(),
			Status:         models.PaymentStatusPending,
			IdempotencyKey: idempotencyKey,
			FraudScore:     assessment.Score,
			FraudFlagged:   assessment.Decision == models.FraudDecisionReview,
		}
		if err := s.paymentRepo.Create(tx, payment); err != nil {
			return err
		}

		ictx, cancel := context.WithTimeout(ctx, gateways.InitializeTimeout)
		defer cancel()

		result, err := gateway.Initialize(ictx, gateways.InitializeRequest{
			Amount:      chargeAmount,
			Currency:    chargeCurrency,
			OrderRef:    req.OrderRef,
			Reference:   payment.ID,
			CustomerRef: req.CustomerRef,
			Metadata:    req.Metadata,
		})

		switch {
		case errors.Is(err, gateways.ErrGatewayUnavailable):
			// Timed out or 5xx: the provider may still have accepted the
			// charge, so the payment stays pending and reconciliation
			// settles it. Never retried here with the same key.
			logger.CtxWithError(ctx, "gateway initialize unavailable", err,
				"payment_id", payment.ID, "gateway", string(gateway.Name()))
			resp = &models.PaymentResponse{Payment: payment, StatusUnknown: true}
			return nil

		case err != nil:
			if txErr := s.appendTransaction(tx, payment.ID, models.TransactionTypeChargeAttempt, nil, chargeAmount, string(models.PaymentStatusFailed), nil); txErr != nil {
				return txErr
			}
			if txErr := s.paymentRepo.MarkFailed(tx, payment.ID, "gateway_rejected"); txErr != nil {
				return txErr
			}
			payment.Status = models.PaymentStatusFailed
			payment.FailureReason = "gateway_rejected"
			deferred = apperrors.ErrGatewayRejected(err).WithDetails(map[string]string{"payment_id": payment.ID})
			return nil
		}

		if err := s.paymentRepo.SetGatewayRef(tx, payment.ID, result.GatewayRef); err != nil {
			return err
		}
		payment.GatewayRef = &result.GatewayRef

		if err := s.appendTransaction(tx, payment.ID, models.TransactionTypeChargeAttempt, payment.GatewayRef, chargeAmount, "initiated", result.Raw); err != nil {
			return err
		}

		resp = &models.PaymentResponse{
			Payment:      payment,
			CheckoutURL:  result.CheckoutURL,
			ClientSecret: result.ClientSecret,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if deferred != nil {
		return nil, deferred
	}

	logger.CtxInfo(ctx, "payment initiated",
		"payment_id", resp.Payment.ID,
		"order_ref", resp.Payment.OrderRef,
		"gateway", string(resp.Payment.Gateway),
		"status", string(resp.Payment.Status),
	)
	return resp, nil
}

// GetPaymentStatus returns a payment with its full transaction history.
func (s *PaymentService) GetPaymentStatus(db *gorm.DB, paymentID string) (*models.Payment, error) {
	payment, err := s.paymentRepo.FindByIDWithTransactions(db, paymentID)
	if errors.Is(err, repositories.ErrPaymentNotFound) {
		return nil, apperrors.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// ListPayments is the back-office view, filterable by status and fraud flag.
func (s *PaymentService) ListPayments(db *gorm.DB, status models.PaymentStatus, flaggedOnly bool, page, perPage int) ([]models.Payment, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return s.paymentRepo.List(db, status, flaggedOnly, (page-1)*perPage, perPage)
}

// VerifyPayment polls the gateway for the authoritative charge status. It is
// the reconciliation fallback for providers without webhooks and for
// payments whose initialize call timed out.
func (s *PaymentService) VerifyPayment(ctx context.Context, db *gorm.DB, paymentID string) (*models.Payment, error) {
	var (
		payment *models.Payment
		notify  bool
	)

	err := s.txManager.WithLock(db, "payment:"+paymentID, func(tx *gorm.DB) error {
		var err error
		payment, err = s.paymentRepo.FindByID(tx, paymentID)
		if errors.Is(err, repositories.ErrPaymentNotFound) {
			return apperrors.ErrPaymentNotFound
		}
		if err != nil {
			return err
		}

		if models.IsTerminal(payment.Status) || payment.GatewayRef == nil {
			return nil
		}

		gateway, ok := s.selector.Get(payment.Gateway)
		if !ok {
			return apperrors.ErrInvalidPaymentState("payment has no usable gateway")
		}

		vctx, cancel := context.WithTimeout(ctx, gateways.VerifyTimeout)
		defer cancel()

		result, err := gateway.Verify(vctx, *payment.GatewayRef)
		if errors.Is(err, gateways.ErrNotFound) {
			// The provider has no record yet: still pending, not a failure.
			return nil
		}
		if errors.Is(err, gateways.ErrGatewayUnavailable) {
			return apperrors.ErrGatewayUnavailable(err)
		}
		if err != nil {
			return apperrors.ErrGatewayRejected(err)
		}

		if result.AmountConfirmed != 0 && result.AmountConfirmed != payment.Amount {
			logger.CtxWarn(ctx, "verified amount differs from charged amount",
				"payment_id", payment.ID,
				"charged", payment.Amount,
				"confirmed", result.AmountConfirmed,
			)
		}

		if result.Status == payment.Status || !models.CanTransition(payment.Status, result.Status) {
			return nil
		}

		if err := s.appendTransaction(tx, payment.ID, models.TransactionTypeChargeAttempt, payment.GatewayRef, payment.Amount, string(result.Status), result.Raw); err != nil {
			return err
		}
		applied, err := s.paymentRepo.UpdateStatus(tx, payment.ID, payment.Status, result.Status)
		if err != nil {
			return err
		}
		if !applied {
			// The payment moved on (e.g. a webhook committed) during the
			// gateway call; the settled state wins over our stale read.
			logger.CtxWarn(ctx, "verify lost race, keeping settled status",
				"payment_id", payment.ID,
				"stale_read", string(payment.Status),
			)
			payment, err = s.paymentRepo.FindByID(tx, payment.ID)
			return err
		}
		payment.Status = result.Status
		notify = models.IsTerminal(result.Status)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if notify {
		go s.notifications.NotifyPaymentOutcome(payment)
	}
	return payment, nil
}

// HandleWebhook reconciles a provider notification. Signature and payload
// failures reject the delivery with zero writes; everything past that point
// is acknowledged with 2xx so the provider stops retrying, including
// duplicates and orphans.
func (s *PaymentService) HandleWebhook(ctx context.Context, db *gorm.DB, gatewayName string, body []byte, header http.Header) (*models.WebhookResponse, error) {
	gateway, ok := s.selector.Get(models.GatewayName(gatewayName))
	if !ok {
		return nil, apperrors.NewNotFoundError("unknown gateway")
	}

	if !gateway.VerifyWebhookSignature(body, header) {
		logger.SecurityLog("webhook_signature_invalid",
			"gateway", gatewayName,
			"request_id", logger.GetRequestID(ctx),
		)
		return nil, apperrors.ErrSignatureInvalid
	}

	event, err := gateway.ParseWebhookEvent(body)
	if err != nil {
		return nil, apperrors.ErrMalformedPayload.WithError(err)
	}

	var (
		payment *models.Payment
		notify  bool
	)

	lockKey := "webhook:" + gatewayName + ":" + event.GatewayEventID
	err = s.txManager.WithLock(db, lockKey, func(tx *gorm.DB) error {
		_, err := s.webhookRepo.FindByGatewayEvent(tx, gateway.Name(), event.GatewayEventID)
		if err == nil {
			// Redelivery of an already-applied event.
			return nil
		}
		if !errors.Is(err, repositories.ErrWebhookEventNotFound) {
			return err
		}

		payment, err = s.paymentRepo.FindByGatewayRef(tx, gateway.Name(), event.GatewayRef)
		if errors.Is(err, repositories.ErrPaymentNotFound) {
			// Orphan: acknowledge so the provider stops retrying, flag for
			// manual review.
			logger.CtxWarn(ctx, "webhook matched no payment",
				"gateway", gatewayName,
				"gateway_ref", event.GatewayRef,
				"event_type", event.EventType,
			)
			payment = nil
			return s.webhookRepo.Create(tx, &models.WebhookEvent{
				ID:             uuid.NewString(),
				Gateway:        gateway.Name(),
				GatewayEventID: event.GatewayEventID,
				EventType:      event.EventType,
				Processed:      true,
				FlaggedOrphan:  true,
			})
		}
		if err != nil {
			return err
		}

		// Serialize with verify/refund, which lock on the payment id. The
		// event-key lock alone would let two distinct events for one payment
		// interleave. Re-read once the lock is held: the status may have
		// moved while we waited.
		if err := s.txManager.Lock(tx, "payment:"+payment.ID); err != nil {
			return err
		}
		payment, err = s.paymentRepo.FindByID(tx, payment.ID)
		if err != nil {
			return err
		}

		record := &models.WebhookEvent{
			ID:             uuid.NewString(),
			Gateway:        gateway.Name(),
			GatewayEventID: event.GatewayEventID,
			EventType:      event.EventType,
		}
		if err := s.webhookRepo.Create(tx, record); err != nil {
			return err
		}

		amount := event.Amount
		if amount == 0 {
			amount = payment.Amount
		}
		if err := s.appendTransaction(tx, payment.ID, models.TransactionTypeWebhookEvent, &event.GatewayRef, amount, string(event.Status), event.Raw); err != nil {
			return err
		}

		newStatus := event.Status
		if event.EventType == gateways.EventRefundCompleted {
			newStatus, err = s.refundedStatus(tx, payment, event.Amount)
			if err != nil {
				return err
			}
		}

		if models.CanTransition(payment.Status, newStatus) {
			applied, err := s.paymentRepo.UpdateStatus(tx, payment.ID, payment.Status, newStatus)
			if err != nil {
				return err
			}
			if applied {
				payment.Status = newStatus
				notify = models.IsTerminal(newStatus) || newStatus == models.PaymentStatusPartiallyRefunded
			}
		}

		return s.webhookRepo.MarkProcessed(tx, record.ID)
	})
	if err != nil {
		return nil, err
	}

	if notify && payment != nil {
		go s.notifications.NotifyPaymentOutcome(payment)
	}
	return &models.WebhookResponse{Accepted: true}, nil
}

// RefundPayment issues a partial or full refund. The remaining refundable
// amount is derived from the transaction history, never from a mutable
// counter.
func (s *PaymentService) RefundPayment(ctx context.Context, db *gorm.DB, paymentID string, req *models.RefundPaymentRequest) (*models.Payment, error) {
	var payment *models.Payment

	err := s.txManager.WithLock(db, "payment:"+paymentID, func(tx *gorm.DB) error {
		var err error
		payment, err = s.paymentRepo.FindByID(tx, paymentID)
		if errors.Is(err, repositories.ErrPaymentNotFound) {
			return apperrors.ErrPaymentNotFound
		}
		if err != nil {
			return err
		}

		if !models.IsRefundable(payment.Status) {
			return apperrors.ErrInvalidPaymentState("only succeeded payments can be refunded")
		}
		if payment.GatewayRef == nil {
			return apperrors.ErrInvalidPaymentState("payment has no gateway reference")
		}

		refunded, err := s.transactionRepo.SumRefunded(tx, payment.ID)
		if err != nil {
			return err
		}
		if req.Amount > payment.Amount-refunded {
			return apperrors.ErrRefundExceedsCharge.WithDetails(map[string]int64{
				"requested": req.Amount,
				"remaining": payment.Amount - refunded,
			})
		}

		gateway, ok := s.selector.Get(payment.Gateway)
		if !ok {
			return apperrors.ErrInvalidPaymentState("payment has no usable gateway")
		}

		rctx, cancel := context.WithTimeout(ctx, gateways.RefundTimeout)
		defer cancel()

		result, err := gateway.Refund(rctx, *payment.GatewayRef, req.Amount)
		switch {
		case errors.Is(err, gateways.ErrRefundUnsupported):
			return apperrors.ErrRefundUnsupported
		case errors.Is(err, gateways.ErrRefundExceedsCharge):
			return apperrors.ErrRefundExceedsCharge
		case errors.Is(err, gateways.ErrGatewayUnavailable):
			return apperrors.ErrGatewayUnavailable(err)
		case err != nil:
			return apperrors.ErrGatewayRejected(err)
		}

		if err := s.appendTransaction(tx, payment.ID, models.TransactionTypeRefundAttempt, &result.RefundRef, req.Amount, string(models.PaymentStatusSucceeded), result.Raw); err != nil {
			return err
		}

		newStatus := models.PaymentStatusPartiallyRefunded
		if refunded+req.Amount >= payment.Amount {
			newStatus = models.PaymentStatusRefunded
		}
		applied, err := s.paymentRepo.UpdateStatus(tx, payment.ID, payment.Status, newStatus)
		if err != nil {
			return err
		}
		if !applied {
			// The refund went through at the gateway and is in the ledger;
			// only the derived status write lost a race.
			payment, err = s.paymentRepo.FindByID(tx, payment.ID)
			return err
		}
		payment.Status = newStatus

		logger.CtxInfo(ctx, "refund processed",
			"payment_id", payment.ID,
			"amount", req.Amount,
			"status", string(newStatus),
			"reason", req.Reason,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}

	go s.notifications.NotifyPaymentOutcome(payment)
	return payment, nil
}

// refundedStatus decides between partial and full refund for a
// provider-initiated refund event.
func (s *PaymentService) refundedStatus(tx *gorm.DB, payment *models.Payment, refundAmount int64) (models.PaymentStatus, error) {
	refunded, err := s.transactionRepo.SumRefunded(tx, payment.ID)
	if err != nil {
		return "", err
	}
	if refundAmount == 0 || refunded+refundAmount >= payment.Amount {
		return models.PaymentStatusRefunded, nil
	}
	return models.PaymentStatusPartiallyRefunded, nil
}

func (s *PaymentService) appendTransaction(tx *gorm.DB, paymentID string, txType models.TransactionType, gatewayRef *string, amount int64, status string, raw []byte) error {
	record := &models.Transaction{
		ID:        uuid.NewString(),
		PaymentID: paymentID,
		Type:      txType,
		Amount:    amount,
		Status:    status,
	}
	if gatewayRef != nil && *gatewayRef != "" {
		record.GatewayRef = gatewayRef
	}
	if len(raw) > 0 {
		record.RawPayload = datatypes.JSON(raw)
	}
	return s.transactionRepo.Create(tx, record)
}
