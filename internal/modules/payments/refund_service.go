package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bazaar-digital2021/srijanMithilaBackend/internal/metrics"
)

const LastEventRefundRequested = "refund.requested"

// RefundService issues idempotent, possibly partial refunds. A replayed
// idempotency key returns the recorded outcome without contacting the
// gateway; a gateway rejection leaves the ledger untouched.
type RefundService struct {
	db *gorm.DB
	gw Gateway
}

func NewRefundService(db *gorm.DB, gw Gateway) *RefundService {
	return &RefundService{db: db, gw: gw}
}

type RefundInput struct {
	RPPaymentID   string
	AmountInPaise int64 // 0 = full remaining amount
	IdemKey       string
}

type RefundResult struct {
	RPRefundID    string
	AmountInPaise int64
	Status        string
	PaymentStatus string
	Reused        bool
}

func (s *RefundService) Refund(ctx context.Context, in RefundInput) (RefundResult, error) {
	if in.RPPaymentID == "" || in.IdemKey == "" {
		return RefundResult{}, errors.New("gateway payment id and idempotency key required")
	}

	// Phase-1: read-only gate. Nothing is written before the gateway call, so
	// a rejection cannot leave partial state behind.
	var (
		pay    Payment
		prior  Refund
		reused bool
		amount int64
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&pay, "rp_payment_id = ?", in.RPPaymentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPaymentNotFound
			}
			return err
		}

		e := tx.First(&prior, "payment_id = ? AND idempotency_key = ?", pay.ID, in.IdemKey).Error
		if e == nil {
			reused = true
			return nil
		}
		if !errors.Is(e, gorm.ErrRecordNotFound) {
			return e
		}

		switch pay.Status {
		case StatusCaptured, StatusPartiallyRefunded:
		default:
			return ErrNotRefundable
		}

		refunded, err := refundedSum(ctx, tx, pay.ID)
		if err != nil {
			return err
		}
		remaining := pay.AmountInPaise - refunded
		if remaining <= 0 {
			return ErrNotRefundable
		}

		amount = in.AmountInPaise
		if amount <= 0 {
			amount = remaining
		}
		if amount > remaining {
			return ErrRefundExceedsRemaining
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrPaymentNotFound) {
			metrics.IncRefund("failed")
		}
		return RefundResult{}, err
	}
	if reused {
		metrics.IncRefund("reused")
		return RefundResult{
			RPRefundID:    prior.RPRefundID,
			AmountInPaise: prior.AmountInPaise,
			Status:        prior.Status,
			PaymentStatus: pay.Status,
			Reused:        true,
		}, nil
	}

	// Phase-2: gateway refund, outside any transaction. The idempotency key
	// is forwarded so the gateway's own dedupe covers the window between our
	// two transactions.
	resp, err := s.gw.RefundPayment(ctx, GatewayRefundRequest{
		PaymentID:      in.RPPaymentID,
		AmountInPaise:  amount,
		IdempotencyKey: in.IdemKey,
		Notes:          map[string]string{"idem": in.IdemKey},
	})
	if err != nil {
		metrics.IncRefund("failed")
		return RefundResult{}, err
	}

	// Phase-3: append the sub-record and fold the aggregate status.
	var out RefundResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&pay, "id = ?", pay.ID).Error; err != nil {
			return err
		}

		now := time.Now()
		key := in.IdemKey

		// Either a concurrent retry with the same key won, or the webhook
		// recorded this gateway refund first. Claim or return the existing
		// row instead of duplicating it.
		var existing Refund
		e := tx.First(&existing, "payment_id = ? AND idempotency_key = ?", pay.ID, key).Error
		if errors.Is(e, gorm.ErrRecordNotFound) {
			e = tx.First(&existing, "rp_refund_id = ?", resp.RefundID).Error
			if e == nil && existing.IdempotencyKey == nil {
				e = tx.Model(&Refund{}).Where("id = ?", existing.ID).
					Updates(map[string]any{"idempotency_key": key, "updated_at": now}).Error
			}
		}
		switch {
		case e == nil:
			out = RefundResult{
				RPRefundID:    existing.RPRefundID,
				AmountInPaise: existing.AmountInPaise,
				Status:        existing.Status,
				PaymentStatus: pay.Status,
				Reused:        true,
			}
			return nil
		case !errors.Is(e, gorm.ErrRecordNotFound):
			return e
		}

		// The balance gate re-runs under the row lock: another refund may
		// have landed between the two transactions. The gateway refund was
		// already issued, so the overshoot is surfaced instead of recorded;
		// the ledger never breaks the refund-sum invariant.
		refunded, err := refundedSum(ctx, tx, pay.ID)
		if err != nil {
			return err
		}
		if resp.AmountInPaise > pay.AmountInPaise-refunded {
			return ErrRefundExceedsRemaining
		}

		status := resp.Status
		if status == "" {
			status = RefundStatusProcessed
		}
		ref := Refund{
			ID:             uuid.NewString(),
			PaymentID:      pay.ID,
			RPRefundID:     resp.RefundID,
			AmountInPaise:  resp.AmountInPaise,
			Status:         status,
			IdempotencyKey: &key,
			CreatedAt:      resp.CreatedAt,
			UpdatedAt:      now,
		}
		if ref.CreatedAt.IsZero() {
			ref.CreatedAt = now
		}
		if err := tx.Create(&ref).Error; err != nil {
			return err
		}

		newStatus, err := foldRefundStatus(ctx, tx, &pay, now, LastEventRefundRequested)
		if err != nil {
			return err
		}
		out = RefundResult{
			RPRefundID:    ref.RPRefundID,
			AmountInPaise: ref.AmountInPaise,
			Status:        ref.Status,
			PaymentStatus: newStatus,
		}
		return nil
	})
	if err != nil {
		metrics.IncRefund("failed")
		return RefundResult{}, err
	}

	if out.Reused {
		metrics.IncRefund("reused")
	} else {
		metrics.IncRefund("requested")
	}
	return out, nil
}

// foldRefundStatus recomputes the aggregate payment status from the refund
// rows. Shared by the synchronous refund path and the webhook reconciler.
// Caller holds the payment row lock.
func foldRefundStatus(ctx context.Context, tx *gorm.DB, pay *Payment, now time.Time, lastEvent string) (string, error) {
	refunded, err := refundedSum(ctx, tx, pay.ID)
	if err != nil {
		return "", err
	}

	newStatus := pay.Status
	if refunded >= pay.AmountInPaise {
		newStatus = StatusRefunded
	} else if refunded > 0 {
		newStatus = StatusPartiallyRefunded
	}
	if newStatus != pay.Status && !CanTransition(pay.Status, newStatus) {
		return "", ErrInvalidTransition
	}

	if err := tx.Model(&Payment{}).Where("id = ?", pay.ID).Updates(map[string]any{
		"status":     newStatus,
		"last_event": lastEvent,
		"updated_at": now,
	}).Error; err != nil {
		return "", err
	}
	pay.Status = newStatus
	return newStatus, nil
}
