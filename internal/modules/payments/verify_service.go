package payments

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LastEventClientVerify marks a status advanced by the synchronous verify
// path rather than a webhook.
const LastEventClientVerify = "client.verify.ok"

// VerifyService validates a client-reported checkout completion and advances
// the ledger. It never creates records: an unknown order is an error.
type VerifyService struct {
	db *gorm.DB
	gw Gateway
}

func NewVerifyService(db *gorm.DB, gw Gateway) *VerifyService {
	return &VerifyService{db: db, gw: gw}
}

type VerifyInput struct {
	RPOrderID   string
	RPPaymentID string
	Signature   string
}

type VerifyResult struct {
	RPOrderID   string
	RPPaymentID string
	Status      string
}

func (s *VerifyService) VerifyCheckout(ctx context.Context, in VerifyInput) (VerifyResult, error) {
	if !s.gw.VerifyCheckoutSignature(in.RPOrderID, in.RPPaymentID, in.Signature) {
		return VerifyResult{}, ErrSignatureMismatch
	}

	var p Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&p, "rp_order_id = ?", in.RPOrderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPaymentNotFound
			}
			return err
		}

		// The webhook path may already have moved the payment past captured;
		// a verify replay must not drag it back.
		if paymentRank(p.Status) >= paymentRank(StatusCaptured) {
			return nil
		}
		if !CanTransition(p.Status, StatusCaptured) {
			return ErrInvalidTransition
		}

		p.Status = StatusCaptured
		return tx.Model(&Payment{}).Where("id = ?", p.ID).Updates(map[string]any{
			"rp_payment_id": in.RPPaymentID,
			"status":        StatusCaptured,
			"last_event":    LastEventClientVerify,
			"updated_at":    time.Now(),
		}).Error
	})
	if err != nil {
		return VerifyResult{}, err
	}

	return VerifyResult{
		RPOrderID:   in.RPOrderID,
		RPPaymentID: in.RPPaymentID,
		Status:      p.Status,
	}, nil
}
