package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"payflow_backend/internal/models"
)

func newTestFraudService(t *testing.T, repo *fakePaymentRepo) *FraudService {
	cfg := testConfig()
	currency, err := NewCurrencyService(cfg)
	assert.NoError(t, err)
	return NewFraudService(cfg, repo, currency)
}

func TestAssessCleanChargeAllowed(t *testing.T) {
	repo := newFakePaymentRepo()
	svc := newTestFraudService(t, repo)

	result, err := svc.Assess(nil, "buyer@example.com", 5000, "USD")
	assert.NoError(t, err)
	assert.Equal(t, models.FraudDecisionAllow, result.Decision)
	assert.Equal(t, 0, result.Score)
	assert.Empty(t, result.Reasons)
}

func TestAssessVelocityFlagsReview(t *testing.T) {
	repo := newFakePaymentRepo()
	repo.failedCount = 3
	svc := newTestFraudService(t, repo)

	result, err := svc.Assess(nil, "buyer@example.com", 5000, "USD")
	assert.NoError(t, err)
	assert.Equal(t, models.FraudDecisionReview, result.Decision)
	assert.Equal(t, 50, result.Score)
	assert.Len(t, result.Reasons, 1)
}

func TestAssessVelocityAndAmountBlock(t *testing.T) {
	repo := newFakePaymentRepo()
	repo.failedCount = 5
	svc := newTestFraudService(t, repo)

	// 20,000 USD is double the configured cap.
	result, err := svc.Assess(nil, "buyer@example.com", 2_000_000, "USD")
	assert.NoError(t, err)
	assert.Equal(t, models.FraudDecisionBlock, result.Decision)
	assert.Equal(t, 95, result.Score)
	assert.Len(t, result.Reasons, 2)
}

func TestAssessAmountCapAppliesInSettlementCurrency(t *testing.T) {
	repo := newFakePaymentRepo()
	svc := newTestFraudService(t, repo)

	// 20,000,000 NGN at 1600 NGN/USD is 12,500 USD, over the cap.
	result, err := svc.Assess(nil, "buyer@example.com", 2_000_000_000, "NGN")
	assert.NoError(t, err)
	assert.Equal(t, models.FraudDecisionReview, result.Decision)
	assert.Equal(t, 45, result.Score)
}

func TestAssessAnonymousCustomerScoresButAllows(t *testing.T) {
	repo := newFakePaymentRepo()
	svc := newTestFraudService(t, repo)

	result, err := svc.Assess(nil, "", 5000, "USD")
	assert.NoError(t, err)
	assert.Equal(t, models.FraudDecisionAllow, result.Decision)
	assert.Equal(t, 15, result.Score)
}

func TestAssessUnknownCurrencyFails(t *testing.T) {
	repo := newFakePaymentRepo()
	svc := newTestFraudService(t, repo)

	_, err := svc.Assess(nil, "buyer@example.com", 5000, "JPY")
	assert.Error(t, err)
}
