package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/bazaar-digital2021/srijanMithilaBackend/internal/metrics"
)

// OrderService turns a client request into exactly one gateway order and one
// ledger row, keyed by the request's idempotency key.
type OrderService struct {
	db *gorm.DB
	gw Gateway
}

func NewOrderService(db *gorm.DB, gw Gateway) *OrderService {
	return &OrderService{db: db, gw: gw}
}

type CreateOrderInput struct {
	AmountInPaise int64
	Currency      string // defaults to INR
	OrderID       string // caller's own order reference, optional
	CustomerID    string
	Email         string
	Contact       string
	Metadata      map[string]string
	IdemKey       string
}

type CreateOrderResult struct {
	RPOrderID     string
	AmountInPaise int64
	Currency      string
	Reused        bool
}

func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (CreateOrderResult, error) {
	if in.IdemKey == "" {
		return CreateOrderResult{}, errors.New("idempotency key required")
	}
	if in.AmountInPaise < MinOrderAmountPaise {
		return CreateOrderResult{}, fmt.Errorf("amount below gateway minimum of %d paise", MinOrderAmountPaise)
	}
	currency := in.Currency
	if currency == "" {
		currency = "INR"
	}

	// At-most-once per key: a prior row short-circuits before the gateway is
	// ever contacted.
	var existing Payment
	err := s.db.WithContext(ctx).First(&existing, "idem_create_key = ?", in.IdemKey).Error
	if err == nil {
		return s.reuse(existing, in.AmountInPaise, currency)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return CreateOrderResult{}, err
	}

	receipt := in.OrderID
	if receipt == "" {
		receipt = fmt.Sprintf("rcpt_%d", time.Now().UnixMilli())
	}
	notes := map[string]string{}
	if in.CustomerID != "" {
		notes["customerId"] = in.CustomerID
	}
	for k, v := range in.Metadata {
		notes[k] = v
	}

	rpOrder, err := s.gw.CreateOrder(ctx, CreateOrderRequest{
		AmountInPaise: in.AmountInPaise,
		Currency:      currency,
		Receipt:       receipt,
		Notes:         notes,
	})
	if err != nil {
		metrics.IncOrder("failed")
		return CreateOrderResult{}, err
	}

	now := time.Now()
	p := Payment{
		ID:            uuid.NewString(),
		OrderID:       strPtr(in.OrderID),
		CustomerID:    strPtr(in.CustomerID),
		RPOrderID:     rpOrder.OrderID,
		AmountInPaise: rpOrder.AmountInPaise,
		Currency:      rpOrder.Currency,
		Status:        StatusCreated,
		Email:         strPtr(in.Email),
		Contact:       strPtr(in.Contact),
		Metadata:      notesJSON(notes),
		IdemCreateKey: in.IdemKey,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&p).Error
	})
	if err != nil {
		if isDup(err) {
			// Lost the race for this key. The winner's row is authoritative;
			// our gateway order is orphaned and left for webhook
			// reconciliation (documented risk).
			var winner Payment
			if ferr := s.db.WithContext(ctx).First(&winner, "idem_create_key = ?", in.IdemKey).Error; ferr != nil {
				return CreateOrderResult{}, ferr
			}
			return s.reuse(winner, in.AmountInPaise, currency)
		}
		return CreateOrderResult{}, err
	}

	metrics.IncOrder("created")
	return CreateOrderResult{
		RPOrderID:     p.RPOrderID,
		AmountInPaise: p.AmountInPaise,
		Currency:      p.Currency,
		Reused:        false,
	}, nil
}

// reuse returns the committed row for a replayed key, rejecting keys that
// arrive with different defining fields instead of silently answering with
// the older operation.
func (s *OrderService) reuse(p Payment, amount int64, currency string) (CreateOrderResult, error) {
	if p.AmountInPaise != amount || p.Currency != currency {
		return CreateOrderResult{}, ErrIdempotencyConflict
	}
	metrics.IncOrder("reused")
	return CreateOrderResult{
		RPOrderID:     p.RPOrderID,
		AmountInPaise: p.AmountInPaise,
		Currency:      p.Currency,
		Reused:        true,
	}, nil
}

// GetByRPOrderID loads the full record, refunds included.
func (s *OrderService) GetByRPOrderID(ctx context.Context, rpOrderID string) (Payment, error) {
	var p Payment
	err := s.db.WithContext(ctx).Preload("Refunds").First(&p, "rp_order_id = ?", rpOrderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Payment{}, ErrPaymentNotFound
	}
	return p, err
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func notesJSON(notes map[string]string) datatypes.JSON {
	if len(notes) == 0 {
		return datatypes.JSON([]byte(`{}`))
	}
	b, err := json.Marshal(notes)
	if err != nil {
		return datatypes.JSON([]byte(`{}`))
	}
	return datatypes.JSON(b)
}
