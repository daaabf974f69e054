package payments

import "time"

// Refund sub-record statuses (gateway vocabulary).
const (
	RefundStatusCreated   = "created"
	RefundStatusProcessed = "processed"
	RefundStatusFailed    = "failed"
)

// Refund is a child row of Payment, one per gateway refund. The unique index
// on rp_refund_id makes webhook replays upsert instead of duplicate; the
// composite (payment_id, idempotency_key) index makes client retries
// at-most-once. IdempotencyKey is nil for refunds first seen via webhook.
type Refund struct {
	ID        string `gorm:"type:char(36);primaryKey" json:"-"`
	PaymentID string `gorm:"type:char(36);not null;index:ix_refunds_payment_id;uniqueIndex:ux_refunds_payment_idem,priority:1" json:"-"`

	RPRefundID string `gorm:"type:varchar(64);not null;uniqueIndex:ux_refunds_rp_refund_id" json:"refundId"`

	AmountInPaise int64  `gorm:"column:amount;not null" json:"amount"`
	Status        string `gorm:"type:varchar(32);not null" json:"status"`

	IdempotencyKey *string `gorm:"type:varchar(128);uniqueIndex:ux_refunds_payment_idem,priority:2" json:"-"`

	CreatedAt time.Time `gorm:"precision:3;not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"precision:3;not null" json:"updatedAt"`
}

func (Refund) TableName() string { return "refunds" }
