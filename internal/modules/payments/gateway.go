package payments

import (
	"context"
	"time"
)

type CreateOrderRequest struct {
	AmountInPaise int64
	Currency      string
	Receipt       string
	Notes         map[string]string
}

type CreateOrderResponse struct {
	OrderID       string
	AmountInPaise int64
	Currency      string
}

type CaptureRequest struct {
	PaymentID     string
	AmountInPaise int64
	Currency      string
}

type CaptureResponse struct {
	PaymentID     string
	OrderID       string
	AmountInPaise int64
	Status        string
	Method        string
}

type GatewayRefundRequest struct {
	PaymentID     string
	AmountInPaise int64
	// Forwarded to the gateway so its own dedupe backs ours up.
	IdempotencyKey string
	Notes          map[string]string
}

type GatewayRefundResponse struct {
	RefundID      string
	PaymentID     string
	AmountInPaise int64
	Status        string
	CreatedAt     time.Time
}

// Gateway abstracts the external payment processor: order creation, capture,
// refunds and its two signature schemes. Call errors are either
// ErrGatewayUnavailable (retryable, nothing committed gateway-side as far as
// we know) or *GatewayError (definitive rejection).
type Gateway interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (CreateOrderResponse, error)
	CapturePayment(ctx context.Context, req CaptureRequest) (CaptureResponse, error)
	RefundPayment(ctx context.Context, req GatewayRefundRequest) (GatewayRefundResponse, error)

	// VerifyCheckoutSignature checks the gateway-issued signature over
	// "orderID|paymentID" reported by the client after checkout.
	VerifyCheckoutSignature(orderID, paymentID, signature string) bool

	// VerifyWebhookSignature checks the signature header against the exact
	// raw request body.
	VerifyWebhookSignature(body []byte, signature string) bool
}
