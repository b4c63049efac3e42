package services

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"payflow_backend/internal/config"
	"payflow_backend/internal/logger"
	"payflow_backend/internal/models"
	"payflow_backend/internal/repositories"
)

// Risk points per signal. Thresholds that turn a score into a decision are
// configuration, not code.
const (
	scoreVelocity      = 50
	scoreAmountOverCap = 45
	scoreNoCustomerRef = 15
)

type FraudResult struct {
	Score    int                  `json:"score"`
	Decision models.FraudDecision `json:"decision"`
	Reasons  []string             `json:"reasons,omitempty"`
}

// FraudService scores a charge attempt before any gateway is contacted.
// Scores range 0-100; the block threshold short-circuits orchestration, the
// review threshold lets the charge proceed but flags the payment.
type FraudService struct {
	paymentRepo repositories.PaymentRepository
	currency    *CurrencyService

	blockScore        int
	reviewScore       int
	maxFailedAttempts int
	window            time.Duration
	maxAmountUSD      int64
}

func NewFraudService(cfg *config.Config, paymentRepo repositories.PaymentRepository, currency *CurrencyService) *FraudService {
	return &FraudService{
		paymentRepo:       paymentRepo,
		currency:          currency,
		blockScore:        cfg.Fraud.BlockScore,
		reviewScore:       cfg.Fraud.ReviewScore,
		maxFailedAttempts: cfg.Fraud.MaxFailedAttempts,
		window:            time.Duration(cfg.Fraud.WindowMinutes) * time.Minute,
		maxAmountUSD:      cfg.Fraud.MaxAmountUSD,
	}
}

// Assess evaluates a charge attempt. Amounts are compared in the settlement
// currency, so the cap applies uniformly across currencies.
func (s *FraudService) Assess(db *gorm.DB, customerRef string, amount int64, currency string) (*FraudResult, error) {
	score := 0
	var reasons []string

	if customerRef == "" {
		score += scoreNoCustomerRef
		reasons = append(reasons, "no customer reference supplied")
	} else {
		since := time.Now().Add(-s.window)
		failed, err := s.paymentRepo.CountRecentFailed(db, customerRef, since)
		if err != nil {
			return nil, err
		}
		if failed >= int64(s.maxFailedAttempts) {
			score += scoreVelocity
			reasons = append(reasons, fmt.Sprintf("%d failed attempts within %s", failed, s.window))
		}
	}

	settlementAmount, err := s.currency.ToSettlement(amount, currency)
	if err != nil {
		return nil, err
	}
	if settlementAmount > s.maxAmountUSD {
		score += scoreAmountOverCap
		reasons = append(reasons, fmt.Sprintf("amount exceeds cap (%d > %d %s)", settlementAmount, s.maxAmountUSD, s.currency.Settlement()))
	}

	decision := models.FraudDecisionAllow
	switch {
	case score > s.blockScore:
		decision = models.FraudDecisionBlock
	case score > s.reviewScore:
		decision = models.FraudDecisionReview
	}

	if decision != models.FraudDecisionAllow {
		logger.SecurityLog("fraud_screening",
			"decision", string(decision),
			"score", score,
			"customer_ref", customerRef,
			"reasons", reasons,
		)
	}

	return &FraudResult{Score: score, Decision: decision, Reasons: reasons}, nil
}
