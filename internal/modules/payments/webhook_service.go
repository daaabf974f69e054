package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bazaar-digital2021/srijanMithilaBackend/internal/mailer"
	"github.com/bazaar-digital2021/srijanMithilaBackend/internal/metrics"
)

// ProviderEvent is the dedupe journal for the at-least-once webhook stream.
// The unique event id turns a replayed delivery into a no-op 200.
type ProviderEvent struct {
	ID          string         `gorm:"type:char(36);primaryKey"`
	EventID     string         `gorm:"type:varchar(128);not null;uniqueIndex:ux_provider_events_event_id"`
	EventType   string         `gorm:"type:varchar(64);not null"`
	PayloadJSON datatypes.JSON `gorm:"type:json;not null"`

	ReceivedAt  time.Time  `gorm:"precision:3;not null"`
	ProcessedAt *time.Time `gorm:"precision:3"`
}

func (ProviderEvent) TableName() string { return "provider_events" }

// WebhookService folds the gateway's unordered, at-least-once event stream
// into the ledger. Every event is applied in a single transaction; on failure
// the whole transaction (dedupe row included) rolls back and the gateway's
// retry is the recovery path.
type WebhookService struct {
	db     *gorm.DB
	logger *slog.Logger

	mail         mailer.Service
	mailFrom     string
	mailFromName string
}

func NewWebhookService(db *gorm.DB) *WebhookService {
	return &WebhookService{db: db, logger: slog.Default()}
}

func (s *WebhookService) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// SetMailer enables capture receipts. The event dedupe journal already makes
// each event apply at most once, so a receipt goes out at most once per
// delivery id.
func (s *WebhookService) SetMailer(m mailer.Service, from, fromName string) {
	s.mail = m
	s.mailFrom = from
	s.mailFromName = fromName
}

// receiptInfo is the snapshot taken inside the apply transaction and mailed
// after commit.
type receiptInfo struct {
	Email         string
	RPOrderID     string
	RPPaymentID   string
	AmountInPaise int64
	Currency      string
}

func (s *WebhookService) Handle(ctx context.Context, eventID string, ev Event, rawBody []byte) error {
	var receipt *receiptInfo
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		pe := ProviderEvent{
			ID:          uuid.NewString(),
			EventID:     eventID,
			EventType:   ev.EventType(),
			PayloadJSON: datatypes.JSON(rawBody),
			ReceivedAt:  now,
		}
		if err := tx.Create(&pe).Error; err != nil {
			if isDup(err) {
				s.logger.InfoContext(ctx, "webhook event deduplicated",
					"event_id", eventID, "type", ev.EventType())
				metrics.IncWebhook(ev.EventType(), "deduped")
				return nil
			}
			return err
		}

		var applyErr error
		switch e := ev.(type) {
		case PaymentAuthorized:
			_, applyErr = s.applyPaymentEvent(ctx, tx, e.Payment, StatusAuthorized, e.EventType())
		case PaymentCaptured:
			receipt, applyErr = s.applyPaymentEvent(ctx, tx, e.Payment, StatusCaptured, e.EventType())
		case PaymentFailed:
			_, applyErr = s.applyPaymentEvent(ctx, tx, e.Payment, StatusFailed, e.EventType())
		case RefundCreated:
			applyErr = s.applyRefundEvent(ctx, tx, e.Refund, RefundStatusCreated, e.EventType())
		case RefundProcessed:
			applyErr = s.applyRefundEvent(ctx, tx, e.Refund, RefundStatusProcessed, e.EventType())
		case RefundFailed:
			applyErr = s.applyRefundEvent(ctx, tx, e.Refund, RefundStatusFailed, e.EventType())
		default:
			applyErr = ErrUnknownEventType
		}
		if applyErr != nil {
			// Roll back everything, dedupe row included, so the gateway's
			// redelivery gets a clean second attempt.
			return applyErr
		}

		processed := now
		return tx.Model(&ProviderEvent{}).Where("id = ?", pe.ID).
			Update("processed_at", &processed).Error
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "webhook event apply failed",
			"event_id", eventID, "type", ev.EventType(), "err", err)
		metrics.IncWebhook(ev.EventType(), "failed")
		return err
	}

	// Receipt goes out after commit, best-effort. A delivery failure is logged
	// and dropped; the event stays processed either way.
	if receipt != nil && s.mail != nil {
		s.sendReceipt(ctx, *receipt)
	}
	return nil
}

func (s *WebhookService) sendReceipt(ctx context.Context, r receiptInfo) {
	body := fmt.Sprintf(
		"Your payment of %d.%02d %s was received.\n\nOrder: %s\nPayment: %s\n\nThank you for shopping with us.\n",
		r.AmountInPaise/100, r.AmountInPaise%100, r.Currency, r.RPOrderID, r.RPPaymentID)

	err := s.mail.Send(ctx, mailer.Email{
		FromName: s.mailFromName,
		From:     s.mailFrom,
		To:       []string{r.Email},
		Subject:  "Payment received for order " + r.RPOrderID,
		TextBody: body,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "payment receipt mail failed",
			"rp_order_id", r.RPOrderID, "err", err)
		return
	}
	s.logger.InfoContext(ctx, "payment receipt sent", "rp_order_id", r.RPOrderID)
}

// applyPaymentEvent updates the payment located by the event's gateway order
// id. Events strictly older than the recorded payment-category state are
// dropped: an out-of-order `authorized` never overwrites `captured`. The
// returned receipt is non-nil only when a capture was newly applied for a
// payer with a known email.
func (s *WebhookService) applyPaymentEvent(ctx context.Context, tx *gorm.DB, info PaymentInfo, newStatus, evType string) (*receiptInfo, error) {
	var p Payment
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&p, "rp_order_id = ?", info.OrderID).Error; err != nil {
		// Not found: the order row may not have committed yet. Fail the event
		// and lean on redelivery.
		return nil, fmt.Errorf("payment for gateway order %q: %w", info.OrderID, err)
	}

	if paymentRank(newStatus) < paymentRank(p.Status) || !CanTransition(p.Status, newStatus) {
		s.logger.InfoContext(ctx, "webhook event out of order, skipped",
			"rp_order_id", info.OrderID, "type", evType, "current_status", p.Status)
		metrics.IncWebhook(evType, "skipped")
		return nil, nil
	}

	updates := map[string]any{
		"rp_payment_id": info.PaymentID,
		"status":        newStatus,
		"last_event":    evType,
		"updated_at":    time.Now(),
	}
	if info.Method != "" {
		updates["method"] = info.Method
	}
	if info.Email != "" {
		updates["email"] = info.Email
	}
	if info.Contact != "" {
		updates["contact"] = info.Contact
	}

	if err := tx.Model(&Payment{}).Where("id = ?", p.ID).Updates(updates).Error; err != nil {
		return nil, err
	}
	metrics.IncWebhook(evType, "applied")

	if newStatus == StatusCaptured && p.Status != StatusCaptured {
		email := info.Email
		if email == "" && p.Email != nil {
			email = *p.Email
		}
		if email != "" {
			return &receiptInfo{
				Email:         email,
				RPOrderID:     p.RPOrderID,
				RPPaymentID:   info.PaymentID,
				AmountInPaise: p.AmountInPaise,
				Currency:      p.Currency,
			}, nil
		}
	}
	return nil, nil
}

// applyRefundEvent upserts the refund sub-record by gateway refund id and
// recomputes the aggregate status under the refund-sum invariant.
func (s *WebhookService) applyRefundEvent(ctx context.Context, tx *gorm.DB, info RefundInfo, refStatus, evType string) error {
	var p Payment
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&p, "rp_payment_id = ?", info.PaymentID).Error; err != nil {
		return fmt.Errorf("payment for gateway payment %q: %w", info.PaymentID, err)
	}

	now := time.Now()
	var changed bool
	var r Refund
	err := tx.First(&r, "rp_refund_id = ?", info.RefundID).Error
	switch {
	case err == nil:
		// Replay or status progression for a known refund. A processed
		// sub-record is final.
		if r.Status != refStatus && r.Status != RefundStatusProcessed {
			if err := tx.Model(&Refund{}).Where("id = ?", r.ID).
				Updates(map[string]any{"status": refStatus, "updated_at": now}).Error; err != nil {
				return err
			}
			changed = true
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		if refStatus != RefundStatusFailed {
			refunded, serr := refundedSum(ctx, tx, p.ID)
			if serr != nil {
				return serr
			}
			if refunded+info.AmountInPaise > p.AmountInPaise {
				return fmt.Errorf("refund %q would exceed payment amount", info.RefundID)
			}
		}
		r = Refund{
			ID:            uuid.NewString(),
			PaymentID:     p.ID,
			RPRefundID:    info.RefundID,
			AmountInPaise: info.AmountInPaise,
			Status:        refStatus,
			CreatedAt:     info.CreatedAt,
			UpdatedAt:     now,
		}
		if err := tx.Create(&r).Error; err != nil {
			if !isDup(err) {
				return err
			}
			// Lost a race with the synchronous refund path; its row wins.
		} else {
			changed = true
		}
	default:
		return err
	}

	// A stale replay that altered nothing must not touch the aggregate or
	// its last_event.
	if !changed {
		s.logger.InfoContext(ctx, "webhook refund event already reflected, skipped",
			"rp_refund_id", info.RefundID, "type", evType)
		metrics.IncWebhook(evType, "skipped")
		return nil
	}

	if _, err := foldRefundStatus(ctx, tx, &p, now, evType); err != nil {
		return err
	}
	metrics.IncWebhook(evType, "applied")
	return nil
}
