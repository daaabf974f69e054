package payments

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const LastEventCaptureAPI = "payment.captured.api"

// CaptureService performs (or acknowledges) a manual capture. Repeated calls
// for the same gateway payment id converge to captured without error.
type CaptureService struct {
	db *gorm.DB
	gw Gateway
}

func NewCaptureService(db *gorm.DB, gw Gateway) *CaptureService {
	return &CaptureService{db: db, gw: gw}
}

type CaptureInput struct {
	RPPaymentID   string
	AmountInPaise int64 // 0 = capture the full ledger amount
}

type CaptureResult struct {
	RPPaymentID   string
	RPOrderID     string
	AmountInPaise int64
	Status        string
	Method        string
}

func (s *CaptureService) Capture(ctx context.Context, in CaptureInput) (CaptureResult, error) {
	if in.RPPaymentID == "" {
		return CaptureResult{}, errors.New("gateway payment id required")
	}

	var p Payment
	if err := s.db.WithContext(ctx).First(&p, "rp_payment_id = ?", in.RPPaymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return CaptureResult{}, ErrPaymentNotFound
		}
		return CaptureResult{}, err
	}

	// Already captured (or further along): converge without touching the
	// gateway again.
	if paymentRank(p.Status) >= paymentRank(StatusCaptured) {
		return s.result(p), nil
	}

	amount := in.AmountInPaise
	if amount <= 0 {
		amount = p.AmountInPaise
	}

	resp, err := s.gw.CapturePayment(ctx, CaptureRequest{
		PaymentID:     in.RPPaymentID,
		AmountInPaise: amount,
		Currency:      p.Currency,
	})
	if err != nil {
		return CaptureResult{}, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&p, "id = ?", p.ID).Error; err != nil {
			return err
		}
		if paymentRank(p.Status) >= paymentRank(StatusCaptured) {
			return nil // webhook won the race
		}
		if !CanTransition(p.Status, StatusCaptured) {
			return ErrInvalidTransition
		}
		p.Status = StatusCaptured
		updates := map[string]any{
			"status":     StatusCaptured,
			"last_event": LastEventCaptureAPI,
			"updated_at": time.Now(),
		}
		if resp.Method != "" {
			p.Method = &resp.Method
			updates["method"] = resp.Method
		}
		return tx.Model(&Payment{}).Where("id = ?", p.ID).Updates(updates).Error
	})
	if err != nil {
		return CaptureResult{}, err
	}
	return s.result(p), nil
}

func (s *CaptureService) result(p Payment) CaptureResult {
	res := CaptureResult{
		RPPaymentID:   derefStr(p.RPPaymentID),
		RPOrderID:     p.RPOrderID,
		AmountInPaise: p.AmountInPaise,
		Status:        p.Status,
	}
	if p.Method != nil {
		res.Method = *p.Method
	}
	return res
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
