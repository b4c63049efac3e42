package models

import "time"

// Payment is one checkout attempt's monetary record. Payments are created
// and mutated only by the payment service and are never physically deleted
// (audit and compliance retention).
type Payment struct {
	BaseModel
	OrderRef       string        `gorm:"index;not null" json:"order_ref"`
	CustomerRef    string        `gorm:"index" json:"customer_ref"`
	Amount         int64         `gorm:"not null" json:"amount"` // minor units, never floating point
	Currency       string        `gorm:"type:varchar(3);not null" json:"currency"`
	Gateway        GatewayName   `gorm:"type:varchar(20)" json:"gateway"` // set once at initiation, immutable after
	GatewayRef     *string       `gorm:"index" json:"gateway_ref,omitempty"` // provider reference, used to match webhooks
	Status         PaymentStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	IdempotencyKey string        `gorm:"uniqueIndex;not null" json:"idempotency_key"`
	FraudScore     int           `json:"fraud_score"`
	FraudFlagged   bool          `gorm:"default:false;index" json:"fraud_flagged"`
	FailureReason  string        `json:"failure_reason,omitempty"`
	Transactions   []Transaction `gorm:"foreignKey:PaymentID" json:"transactions,omitempty"`
}

// PaidAt returns the time of the first transaction that confirmed the
// charge, or nil if the payment never succeeded.
func (p *Payment) PaidAt() *time.Time {
	for i := range p.Transactions {
		t := &p.Transactions[i]
		if t.Status == string(PaymentStatusSucceeded) {
			return &t.CreatedAt
		}
	}
	return nil
}
