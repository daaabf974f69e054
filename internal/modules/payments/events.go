package payments

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Webhook event names (gateway vocabulary).
const (
	EventPaymentAuthorized = "payment.authorized"
	EventPaymentCaptured   = "payment.captured"
	EventPaymentFailed     = "payment.failed"
	EventRefundCreated     = "refund.created"
	EventRefundProcessed   = "refund.processed"
	EventRefundFailed      = "refund.failed"
)

var ErrUnknownEventType = errors.New("unknown webhook event type")

type PaymentInfo struct {
	PaymentID string
	OrderID   string
	Method    string
	Email     string
	Contact   string
}

type RefundInfo struct {
	RefundID      string
	PaymentID     string
	AmountInPaise int64
	CreatedAt     time.Time
}

// Event is the closed set of webhook notifications the reconciler folds into
// the ledger. Dispatch is over concrete types, never by sniffing fields on a
// generic payload.
type Event interface {
	EventType() string
}

type PaymentAuthorized struct{ Payment PaymentInfo }
type PaymentCaptured struct{ Payment PaymentInfo }
type PaymentFailed struct{ Payment PaymentInfo }
type RefundCreated struct{ Refund RefundInfo }
type RefundProcessed struct{ Refund RefundInfo }
type RefundFailed struct{ Refund RefundInfo }

func (PaymentAuthorized) EventType() string { return EventPaymentAuthorized }
func (PaymentCaptured) EventType() string   { return EventPaymentCaptured }
func (PaymentFailed) EventType() string     { return EventPaymentFailed }
func (RefundCreated) EventType() string     { return EventRefundCreated }
func (RefundProcessed) EventType() string   { return EventRefundProcessed }
func (RefundFailed) EventType() string      { return EventRefundFailed }

// Wire envelope: {"event": "...", "payload": {"payment"|"refund": {"entity": {...}}}}
type eventEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity paymentEntity `json:"entity"`
		} `json:"payment"`
		Refund struct {
			Entity refundEntity `json:"entity"`
		} `json:"refund"`
	} `json:"payload"`
}

type paymentEntity struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Method  string `json:"method"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
}

type refundEntity struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	CreatedAt int64  `json:"created_at"` // unix seconds
}

// ParseEvent decodes a raw webhook body into its tagged variant. Event types
// outside the closed set come back as ErrUnknownEventType so the caller can
// acknowledge without applying.
func ParseEvent(body []byte) (Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("parse webhook envelope: %w", err)
	}

	switch env.Event {
	case EventPaymentAuthorized, EventPaymentCaptured, EventPaymentFailed:
		p := env.Payload.Payment.Entity
		if p.ID == "" || p.OrderID == "" {
			return nil, errors.New("payment event missing entity ids")
		}
		info := PaymentInfo{
			PaymentID: p.ID,
			OrderID:   p.OrderID,
			Method:    p.Method,
			Email:     p.Email,
			Contact:   p.Contact,
		}
		switch env.Event {
		case EventPaymentAuthorized:
			return PaymentAuthorized{Payment: info}, nil
		case EventPaymentCaptured:
			return PaymentCaptured{Payment: info}, nil
		default:
			return PaymentFailed{Payment: info}, nil
		}

	case EventRefundCreated, EventRefundProcessed, EventRefundFailed:
		r := env.Payload.Refund.Entity
		if r.ID == "" || r.PaymentID == "" {
			return nil, errors.New("refund event missing entity ids")
		}
		createdAt := time.Now()
		if r.CreatedAt > 0 {
			createdAt = time.Unix(r.CreatedAt, 0)
		}
		info := RefundInfo{
			RefundID:      r.ID,
			PaymentID:     r.PaymentID,
			AmountInPaise: r.Amount,
			CreatedAt:     createdAt,
		}
		switch env.Event {
		case EventRefundCreated:
			return RefundCreated{Refund: info}, nil
		case EventRefundProcessed:
			return RefundProcessed{Refund: info}, nil
		default:
			return RefundFailed{Refund: info}, nil
		}

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, env.Event)
	}
}
