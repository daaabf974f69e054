package payments

import (
	"time"

	"gorm.io/datatypes"
)

// Payment statuses, in gateway vocabulary.
const (
	StatusCreated           = "created"
	StatusAttempted         = "attempted"
	StatusAuthorized        = "authorized"
	StatusCaptured          = "captured"
	StatusFailed            = "failed"
	StatusRefunded          = "refunded"
	StatusPartiallyRefunded = "partially_refunded"
	StatusCancelled         = "cancelled"
)

// MinOrderAmountPaise is the gateway's minimum order amount (₹1.00).
const MinOrderAmountPaise = 100

// Payment is the ledger's root aggregate: one row per gateway order.
// Rows are never deleted; terminal states are kept for audit.
type Payment struct {
	ID         string  `gorm:"type:char(36);primaryKey" json:"id"`
	OrderID    *string `gorm:"type:varchar(64);index:ix_payments_order_id" json:"orderId,omitempty"`
	CustomerID *string `gorm:"type:varchar(64);index:ix_payments_customer_id" json:"customerId,omitempty"`

	RPOrderID   string  `gorm:"type:varchar(64);not null;uniqueIndex:ux_payments_rp_order_id" json:"rpOrderId"`
	RPPaymentID *string `gorm:"type:varchar(64);index:ix_payments_rp_payment_id" json:"rpPaymentId,omitempty"`

	AmountInPaise int64  `gorm:"column:amount;not null" json:"amount"`
	Currency      string `gorm:"type:char(3);not null" json:"currency"`
	Status        string `gorm:"type:varchar(32);not null;index:ix_payments_status" json:"status"`

	// Payer metadata reported by the gateway.
	Method  *string `gorm:"type:varchar(32)" json:"method,omitempty"`
	Email   *string `gorm:"type:varchar(255)" json:"email,omitempty"`
	Contact *string `gorm:"type:varchar(32)" json:"contact,omitempty"`

	LastEvent *string        `gorm:"type:varchar(64)" json:"lastEvent,omitempty"`
	Metadata  datatypes.JSON `gorm:"type:json" json:"metadata,omitempty"`

	// Idempotency key that produced this row. Unique: creation is
	// at-most-once per key, the index is the concurrency barrier.
	IdemCreateKey string `gorm:"type:varchar(128);not null;uniqueIndex:ux_payments_idem_create_key" json:"-"`

	Refunds []Refund `gorm:"foreignKey:PaymentID" json:"refunds"`

	CreatedAt time.Time `gorm:"precision:3;not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"precision:3;not null" json:"updatedAt"`
}

func (Payment) TableName() string { return "payments" }

var allowedTransitions = map[string]map[string]bool{
	StatusCreated:           set(StatusAttempted, StatusAuthorized, StatusCaptured, StatusFailed, StatusCancelled),
	StatusAttempted:         set(StatusAuthorized, StatusCaptured, StatusFailed, StatusCancelled),
	StatusAuthorized:        set(StatusCaptured, StatusFailed, StatusCancelled),
	StatusCaptured:          set(StatusPartiallyRefunded, StatusRefunded, StatusCancelled),
	StatusFailed:            set(StatusAttempted, StatusAuthorized, StatusCaptured, StatusCancelled),
	StatusPartiallyRefunded: set(StatusRefunded, StatusCancelled),
	StatusRefunded:          {}, // terminal
	StatusCancelled:         {}, // terminal
}

// CanTransition reports whether the state machine allows from → to.
// A self-transition is always allowed so replays converge without error.
func CanTransition(from, to string) bool {
	if from == to {
		return true
	}
	return allowedTransitions[from][to]
}

// paymentRank orders the payment-category states so the webhook reconciler
// can drop events that are strictly older than what the ledger already holds
// (an out-of-order `authorized` must not overwrite `captured`). Refund-family
// and cancelled states rank above every payment event.
func paymentRank(status string) int {
	switch status {
	case StatusCreated, StatusAttempted:
		return 0
	case StatusFailed:
		return 1
	case StatusAuthorized:
		return 2
	case StatusCaptured:
		return 3
	case StatusPartiallyRefunded:
		return 4
	case StatusRefunded, StatusCancelled:
		return 5
	}
	return -1
}

func set(statuses ...string) map[string]bool {
	m := make(map[string]bool, len(statuses))
	for _, s := range statuses {
		m[s] = true
	}
	return m
}
