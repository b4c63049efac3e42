package models

import (
	"time"

	"gorm.io/datatypes"
)

// Transaction is one immutable audit log entry of a gateway interaction.
// Rows are append-only: corrections are new rows, never edits. Seq is a
// monotonic sequence so replay can reconstruct history deterministically
// within one payment.
type Transaction struct {
	ID         string          `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	Seq        int64           `gorm:"autoIncrement;uniqueIndex" json:"seq"`
	PaymentID  string          `gorm:"type:uuid;index;not null" json:"payment_id"`
	Type       TransactionType `gorm:"type:varchar(20);not null" json:"type"`
	GatewayRef *string         `gorm:"index" json:"gateway_ref,omitempty"` // provider transaction id, nullable until assigned
	Amount     int64           `json:"amount"`
	Status     string          `gorm:"type:varchar(30)" json:"status"`
	RawPayload datatypes.JSON  `json:"-"` // captured request/response for audit, never exposed
	CreatedAt  time.Time       `gorm:"default:now()" json:"created_at"`
}
