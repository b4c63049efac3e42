package repositories

import (
	"errors"

	"gorm.io/gorm"

	"payflow_backend/internal/models"
)

type WebhookEventRepository interface {
	Create(db *gorm.DB, event *models.WebhookEvent) error
	FindByGatewayEvent(db *gorm.DB, gateway models.GatewayName, gatewayEventID string) (*models.WebhookEvent, error)
	MarkProcessed(db *gorm.DB, id string) error
}

type WebhookEventRepositoryImpl struct{}

func NewWebhookEventRepository() WebhookEventRepository {
	return &WebhookEventRepositoryImpl{}
}

func (r *WebhookEventRepositoryImpl) Create(db *gorm.DB, event *models.WebhookEvent) error {
	return db.Create(event).Error
}

// FindByGatewayEvent looks up a prior delivery of the same provider event.
// The (gateway, gateway_event_id) pair is the dedup key.
func (r *WebhookEventRepositoryImpl) FindByGatewayEvent(db *gorm.DB, gateway models.GatewayName, gatewayEventID string) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	err := db.
		Where("gateway = ? AND gateway_event_id = ?", gateway, gatewayEventID).
		First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWebhookEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *WebhookEventRepositoryImpl) MarkProcessed(db *gorm.DB, id string) error {
	result := db.Model(&models.WebhookEvent{}).
		Where("id = ?", id).
		Update("processed", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrWebhookEventNotFound
	}
	return nil
}
