package repositories

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"payflow_backend/internal/models"
)

var (
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrWebhookEventNotFound = errors.New("webhook event not found")
)

type PaymentRepository interface {
	Create(db *gorm.DB, payment *models.Payment) error
	FindByID(db *gorm.DB, id string) (*models.Payment, error)
	FindByIDWithTransactions(db *gorm.DB, id string) (*models.Payment, error)
	FindByIdempotencyKey(db *gorm.DB, key string) (*models.Payment, error)
	FindActiveByOrderRef(db *gorm.DB, orderRef string) (*models.Payment, error)
	FindByGatewayRef(db *gorm.DB, gateway models.GatewayName, gatewayRef string) (*models.Payment, error)
	UpdateStatus(db *gorm.DB, id string, from, to models.PaymentStatus) (bool, error)
	MarkFailed(db *gorm.DB, id string, reason string) error
	SetGatewayRef(db *gorm.DB, id string, gatewayRef string) error

	CountRecentFailed(db *gorm.DB, customerRef string, since time.Time) (int64, error)
	FindPendingForVerification(db *gorm.DB, limit int) ([]models.Payment, error)
	ExpirePendingOlderThan(db *gorm.DB, cutoff time.Time, reason string) (int64, error)

	List(db *gorm.DB, status models.PaymentStatus, flaggedOnly bool, offset, limit int) ([]models.Payment, int64, error)
}

type PaymentRepositoryImpl struct{}

func NewPaymentRepository() PaymentRepository {
	return &PaymentRepositoryImpl{}
}

func (r *PaymentRepositoryImpl) Create(db *gorm.DB, payment *models.Payment) error {
	return db.Create(payment).Error
}

func (r *PaymentRepositoryImpl) FindByID(db *gorm.DB, id string) (*models.Payment, error) {
	var payment models.Payment
	err := db.First(&payment, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *PaymentRepositoryImpl) FindByIDWithTransactions(db *gorm.DB, id string) (*models.Payment, error) {
	var payment models.Payment
	err := db.Preload("Transactions", func(db *gorm.DB) *gorm.DB {
		return db.Order("seq ASC")
	}).First(&payment, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *PaymentRepositoryImpl) FindByIdempotencyKey(db *gorm.DB, key string) (*models.Payment, error) {
	var payment models.Payment
	err := db.First(&payment, "idempotency_key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindActiveByOrderRef returns the single non-terminal payment for an
// order, if any. At most one may exist at a time; the advisory lock on the
// order ref keeps it that way.
func (r *PaymentRepositoryImpl) FindActiveByOrderRef(db *gorm.DB, orderRef string) (*models.Payment, error) {
	var payment models.Payment
	err := db.
		Where("order_ref = ?", orderRef).
		Where("status IN ?", []models.PaymentStatus{models.PaymentStatusPending, models.PaymentStatusProcessing}).
		First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *PaymentRepositoryImpl) FindByGatewayRef(db *gorm.DB, gateway models.GatewayName, gatewayRef string) (*models.Payment, error) {
	var payment models.Payment
	err := db.
		Where("gateway = ? AND gateway_ref = ?", gateway, gatewayRef).
		First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// UpdateStatus transitions a payment from one status to another. The write
// is conditional on the status the caller validated the transition against,
// so a reader that raced a concurrent transition cannot overwrite it; false
// means no row matched and the caller must re-read.
func (r *PaymentRepositoryImpl) UpdateStatus(db *gorm.DB, id string, from, to models.PaymentStatus) (bool, error) {
	result := db.Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *PaymentRepositoryImpl) MarkFailed(db *gorm.DB, id string, reason string) error {
	result := db.Model(&models.Payment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":         models.PaymentStatusFailed,
			"failure_reason": reason,
			"updated_at":     time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func (r *PaymentRepositoryImpl) SetGatewayRef(db *gorm.DB, id string, gatewayRef string) error {
	result := db.Model(&models.Payment{}).
		Where("id = ?", id).
		Update("gateway_ref", gatewayRef)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

// CountRecentFailed feeds the fraud velocity check.
func (r *PaymentRepositoryImpl) CountRecentFailed(db *gorm.DB, customerRef string, since time.Time) (int64, error) {
	var count int64
	err := db.Model(&models.Payment{}).
		Where("customer_ref = ? AND status = ? AND created_at >= ?", customerRef, models.PaymentStatusFailed, since).
		Count(&count).Error
	return count, err
}

func (r *PaymentRepositoryImpl) FindPendingForVerification(db *gorm.DB, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := db.
		Where("status = ? AND gateway_ref IS NOT NULL", models.PaymentStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}

// ExpirePendingOlderThan fails pending payments past the expiry cutoff.
// A provider cannot complete a charge this old; reconciliation would have
// caught it by now.
func (r *PaymentRepositoryImpl) ExpirePendingOlderThan(db *gorm.DB, cutoff time.Time, reason string) (int64, error) {
	result := db.Model(&models.Payment{}).
		Where("status = ? AND created_at < ?", models.PaymentStatusPending, cutoff).
		Updates(map[string]interface{}{
			"status":         models.PaymentStatusFailed,
			"failure_reason": reason,
			"updated_at":     time.Now(),
		})
	return result.RowsAffected, result.Error
}

func (r *PaymentRepositoryImpl) List(db *gorm.DB, status models.PaymentStatus, flaggedOnly bool, offset, limit int) ([]models.Payment, int64, error) {
	query := db.Model(&models.Payment{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if flaggedOnly {
		query = query.Where("fraud_flagged = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var payments []models.Payment
	err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&payments).Error
	return payments, total, err
}
