package workers

import (
	"context"
	"time"

	"gorm.io/gorm"

	"payflow_backend/internal/config"
	"payflow_backend/internal/logger"
	"payflow_backend/internal/repositories"
	"payflow_backend/internal/services"
)

const verifyBatchSize = 50

// PaymentWorker reconciles payments the synchronous flow could not settle:
// it periodically re-verifies pending payments against their gateway,
// expires payments the provider never completed, and drains an async
// verification queue fed by the HTTP layer.
type PaymentWorker struct {
	db             *gorm.DB
	paymentRepo    repositories.PaymentRepository
	paymentService *services.PaymentService

	verifyInterval time.Duration
	expireAfter    time.Duration
	verifyQueue    chan string
}

func NewPaymentWorker(db *gorm.DB, cfg *config.Config, paymentRepo repositories.PaymentRepository, paymentService *services.PaymentService) *PaymentWorker {
	return &PaymentWorker{
		db:             db,
		paymentRepo:    paymentRepo,
		paymentService: paymentService,
		verifyInterval: time.Duration(cfg.Workers.VerifyIntervalMinutes) * time.Minute,
		expireAfter:    time.Duration(cfg.Workers.ExpireAfterHours) * time.Hour,
		verifyQueue:    make(chan string, cfg.Workers.VerifyQueueSize),
	}
}

func (w *PaymentWorker) Start(ctx context.Context) {
	go w.reconcilePending(ctx)
	go w.expireStale(ctx)
	go w.drainVerifyQueue(ctx)
}

// EnqueueVerify schedules an async verification without blocking the
// caller. A full queue drops the request; the periodic reconciliation pass
// picks the payment up anyway.
func (w *PaymentWorker) EnqueueVerify(paymentID string) {
	select {
	case w.verifyQueue <- paymentID:
	default:
		logger.Warn("verify queue full, deferring to reconciliation", "payment_id", paymentID)
	}
}

func (w *PaymentWorker) reconcilePending(ctx context.Context) {
	ticker := time.NewTicker(w.verifyInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("payment reconciliation worker stopped")
			return
		case <-ticker.C:
			pending, err := w.paymentRepo.FindPendingForVerification(w.db, verifyBatchSize)
			if err != nil {
				logger.WorkerLog("payment_worker", "list pending payments", err)
				continue
			}
			for _, payment := range pending {
				if _, err := w.paymentService.VerifyPayment(ctx, w.db, payment.ID); err != nil {
					logger.WorkerLog("payment_worker", "verify payment "+payment.ID, err)
				}
			}
			if len(pending) > 0 {
				logger.Info("reconciliation pass complete", "checked", len(pending))
			}
		}
	}
}

func (w *PaymentWorker) expireStale(ctx context.Context) {
	// Expiry sweeps hourly; the cutoff itself comes from config.
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("payment expiry worker stopped")
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-w.expireAfter)
			expired, err := w.paymentRepo.ExpirePendingOlderThan(w.db, cutoff, "expired")
			if err != nil {
				logger.WorkerLog("payment_worker", "expire stale payments", err)
				continue
			}
			if expired > 0 {
				logger.Warn("expired stale pending payments", "count", expired)
			}
		}
	}
}

func (w *PaymentWorker) drainVerifyQueue(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("verify queue worker stopped")
			return
		case paymentID := <-w.verifyQueue:
			if _, err := w.paymentService.VerifyPayment(ctx, w.db, paymentID); err != nil {
				logger.WorkerLog("payment_worker", "async verify "+paymentID, err)
			}
		}
	}
}
