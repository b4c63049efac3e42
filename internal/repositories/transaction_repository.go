package repositories

import (
	"gorm.io/gorm"

	"payflow_backend/internal/models"
)

// TransactionRepository is append-only: rows are created, never updated or
// deleted. The ledger is the audit trail for every gateway interaction.
type TransactionRepository interface {
	Create(db *gorm.DB, transaction *models.Transaction) error
	ListByPayment(db *gorm.DB, paymentID string) ([]models.Transaction, error)
	SumRefunded(db *gorm.DB, paymentID string) (int64, error)
}

type TransactionRepositoryImpl struct{}

func NewTransactionRepository() TransactionRepository {
	return &TransactionRepositoryImpl{}
}

func (r *TransactionRepositoryImpl) Create(db *gorm.DB, transaction *models.Transaction) error {
	return db.Create(transaction).Error
}

func (r *TransactionRepositoryImpl) ListByPayment(db *gorm.DB, paymentID string) ([]models.Transaction, error) {
	var transactions []models.Transaction
	err := db.
		Where("payment_id = ?", paymentID).
		Order("seq ASC").
		Find(&transactions).Error
	return transactions, err
}

// SumRefunded totals completed refund transactions for a payment, used to
// reject refunds that would exceed the original charge.
func (r *TransactionRepositoryImpl) SumRefunded(db *gorm.DB, paymentID string) (int64, error) {
	var total int64
	err := db.Model(&models.Transaction{}).
		Where("payment_id = ? AND type = ? AND status = ?",
			paymentID, models.TransactionTypeRefundAttempt, string(models.PaymentStatusSucceeded)).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}
