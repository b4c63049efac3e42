package models

import "time"

// WebhookEvent is the dedup ledger for provider notifications. The
// (gateway, gateway_event_id) pair is unique, which guarantees each
// provider event is applied at most once no matter how often the provider
// redelivers it.
type WebhookEvent struct {
	ID             string      `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	Gateway        GatewayName `gorm:"type:varchar(20);not null;uniqueIndex:ux_webhook_events_gateway_event,priority:1" json:"gateway"`
	GatewayEventID string      `gorm:"not null;uniqueIndex:ux_webhook_events_gateway_event,priority:2" json:"gateway_event_id"`
	EventType      string      `gorm:"type:varchar(50)" json:"event_type"`
	Processed      bool        `gorm:"default:false;index" json:"processed"`
	// FlaggedOrphan marks events whose gateway_ref matched no payment.
	// They are acknowledged to stop provider retries and queued for
	// manual review instead.
	FlaggedOrphan bool      `gorm:"default:false;index" json:"flagged_orphan"`
	ReceivedAt    time.Time `gorm:"default:now()" json:"received_at"`
}
