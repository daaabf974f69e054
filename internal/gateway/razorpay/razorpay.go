// Package razorpay adapts the Razorpay REST API (via the official SDK) to the
// payments.Gateway contract.
package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	rzp "github.com/razorpay/razorpay-go"

	"github.com/bazaar-digital2021/srijanMithilaBackend/internal/config"
	"github.com/bazaar-digital2021/srijanMithilaBackend/internal/modules/payments"
)

// HeaderIdempotency is Razorpay's own idempotency header, forwarded on
// refunds so gateway-side dedupe backs up the ledger's.
const HeaderIdempotency = "X-Razorpay-Idempotency"

type Client struct {
	api           *rzp.Client
	keySecret     []byte
	webhookSecret []byte
}

var _ payments.Gateway = (*Client)(nil)

func New(cfg config.RazorpayConfig) *Client {
	return &Client{
		api:           rzp.NewClient(cfg.KeyID, cfg.KeySecret),
		keySecret:     []byte(cfg.KeySecret),
		webhookSecret: []byte(cfg.WebhookSecret),
	}
}

func (c *Client) CreateOrder(ctx context.Context, req payments.CreateOrderRequest) (payments.CreateOrderResponse, error) {
	if err := ctx.Err(); err != nil {
		return payments.CreateOrderResponse{}, fmt.Errorf("%w: %v", payments.ErrGatewayUnavailable, err)
	}

	data := map[string]interface{}{
		"amount":          req.AmountInPaise,
		"currency":        req.Currency,
		"receipt":         req.Receipt,
		"payment_capture": 1,
	}
	if len(req.Notes) > 0 {
		data["notes"] = toNotes(req.Notes)
	}

	body, err := c.api.Order.Create(data, nil)
	if err != nil {
		return payments.CreateOrderResponse{}, classify(err)
	}
	return payments.CreateOrderResponse{
		OrderID:       asString(body["id"]),
		AmountInPaise: asInt64(body["amount"]),
		Currency:      asString(body["currency"]),
	}, nil
}

func (c *Client) CapturePayment(ctx context.Context, req payments.CaptureRequest) (payments.CaptureResponse, error) {
	if err := ctx.Err(); err != nil {
		return payments.CaptureResponse{}, fmt.Errorf("%w: %v", payments.ErrGatewayUnavailable, err)
	}

	data := map[string]interface{}{"currency": req.Currency}
	body, err := c.api.Payment.Capture(req.PaymentID, int(req.AmountInPaise), data, nil)
	if err != nil {
		return payments.CaptureResponse{}, classify(err)
	}
	return payments.CaptureResponse{
		PaymentID:     asString(body["id"]),
		OrderID:       asString(body["order_id"]),
		AmountInPaise: asInt64(body["amount"]),
		Status:        asString(body["status"]),
		Method:        asString(body["method"]),
	}, nil
}

func (c *Client) RefundPayment(ctx context.Context, req payments.GatewayRefundRequest) (payments.GatewayRefundResponse, error) {
	if err := ctx.Err(); err != nil {
		return payments.GatewayRefundResponse{}, fmt.Errorf("%w: %v", payments.ErrGatewayUnavailable, err)
	}

	data := map[string]interface{}{
		"speed":   "optimum",
		"receipt": fmt.Sprintf("refund_%d", time.Now().UnixMilli()),
	}
	if len(req.Notes) > 0 {
		data["notes"] = toNotes(req.Notes)
	}
	headers := map[string]string{HeaderIdempotency: req.IdempotencyKey}

	body, err := c.api.Payment.Refund(req.PaymentID, int(req.AmountInPaise), data, headers)
	if err != nil {
		return payments.GatewayRefundResponse{}, classify(err)
	}

	resp := payments.GatewayRefundResponse{
		RefundID:      asString(body["id"]),
		PaymentID:     asString(body["payment_id"]),
		AmountInPaise: asInt64(body["amount"]),
		Status:        asString(body["status"]),
	}
	if ts := asInt64(body["created_at"]); ts > 0 {
		resp.CreatedAt = time.Unix(ts, 0)
	}
	return resp, nil
}

// VerifyCheckoutSignature recomputes HMAC-SHA256(keySecret, "orderID|paymentID")
// and compares in constant time.
func (c *Client) VerifyCheckoutSignature(orderID, paymentID, signature string) bool {
	return verifyHex(c.keySecret, []byte(orderID+"|"+paymentID), signature)
}

// VerifyWebhookSignature checks the X-Razorpay-Signature header value against
// the exact raw body bytes.
func (c *Client) VerifyWebhookSignature(body []byte, signature string) bool {
	return verifyHex(c.webhookSecret, body, signature)
}

func verifyHex(secret, msg []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(msg)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// classify splits SDK errors into retryable transport failures and definitive
// gateway rejections. Timeouts must surface as retryable: the ledger is not
// mutated and the caller can safely replay its idempotency key.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", payments.ErrGatewayUnavailable, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %v", payments.ErrGatewayUnavailable, err)
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%w: %v", payments.ErrGatewayUnavailable, err)
	}
	return &payments.GatewayError{Description: err.Error()}
}

func toNotes(m map[string]string) map[string]interface{} {
	notes := make(map[string]interface{}, len(m))
	for k, v := range m {
		notes[k] = v
	}
	return notes
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}
