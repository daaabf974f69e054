package payments

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an in-memory sqlite database with the ledger schema.
// A single connection keeps the shared :memory: database alive and serializes
// access; sqlite has no row locks, so FOR UPDATE clauses are no-ops here.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// fakeGateway is an in-memory Gateway. Each call site can be overridden; the
// defaults succeed and hand out sequential ids.
type fakeGateway struct {
	mu sync.Mutex

	createOrderFn   func(ctx context.Context, req CreateOrderRequest) (CreateOrderResponse, error)
	captureFn       func(ctx context.Context, req CaptureRequest) (CaptureResponse, error)
	refundFn        func(ctx context.Context, req GatewayRefundRequest) (GatewayRefundResponse, error)
	checkoutSigOK   bool
	webhookSigOK    bool
	createOrderSeen atomic.Int64
	captureSeen     atomic.Int64
	refundSeen      atomic.Int64

	refundReqs []GatewayRefundRequest
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{checkoutSigOK: true, webhookSigOK: true}
}

func (g *fakeGateway) CreateOrder(ctx context.Context, req CreateOrderRequest) (CreateOrderResponse, error) {
	n := g.createOrderSeen.Add(1)
	if g.createOrderFn != nil {
		return g.createOrderFn(ctx, req)
	}
	return CreateOrderResponse{
		OrderID:       fmt.Sprintf("order_fake%03d", n),
		AmountInPaise: req.AmountInPaise,
		Currency:      req.Currency,
	}, nil
}

func (g *fakeGateway) CapturePayment(ctx context.Context, req CaptureRequest) (CaptureResponse, error) {
	g.captureSeen.Add(1)
	if g.captureFn != nil {
		return g.captureFn(ctx, req)
	}
	return CaptureResponse{
		PaymentID:     req.PaymentID,
		AmountInPaise: req.AmountInPaise,
		Status:        "captured",
		Method:        "card",
	}, nil
}

func (g *fakeGateway) RefundPayment(ctx context.Context, req GatewayRefundRequest) (GatewayRefundResponse, error) {
	n := g.refundSeen.Add(1)
	g.mu.Lock()
	g.refundReqs = append(g.refundReqs, req)
	g.mu.Unlock()
	if g.refundFn != nil {
		return g.refundFn(ctx, req)
	}
	return GatewayRefundResponse{
		RefundID:      fmt.Sprintf("rfnd_fake%03d", n),
		PaymentID:     req.PaymentID,
		AmountInPaise: req.AmountInPaise,
		Status:        RefundStatusProcessed,
		CreatedAt:     time.Now(),
	}, nil
}

func (g *fakeGateway) VerifyCheckoutSignature(orderID, paymentID, signature string) bool {
	return g.checkoutSigOK
}

func (g *fakeGateway) VerifyWebhookSignature(body []byte, signature string) bool {
	return g.webhookSigOK
}

var _ Gateway = (*fakeGateway)(nil)

// seedPayment inserts a payment row directly, bypassing the services.
func seedPayment(t *testing.T, db *gorm.DB, mut func(*Payment)) Payment {
	t.Helper()

	now := time.Now()
	p := Payment{
		ID:            uuid.NewString(),
		RPOrderID:     "order_" + uuid.NewString()[:8],
		AmountInPaise: 10000,
		Currency:      "INR",
		Status:        StatusCreated,
		IdemCreateKey: "seed-" + uuid.NewString(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if mut != nil {
		mut(&p)
	}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	return p
}

func reloadPayment(t *testing.T, db *gorm.DB, id string) Payment {
	t.Helper()
	var p Payment
	if err := db.First(&p, "id = ?", id).Error; err != nil {
		t.Fatalf("reload payment: %v", err)
	}
	return p
}

func countRows(t *testing.T, db *gorm.DB, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Where(query, args...).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
