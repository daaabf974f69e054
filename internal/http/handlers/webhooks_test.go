package handlers

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/bazaar-digital2021/srijanMithilaBackend/internal/modules/payments"
)

// stubGateway only answers signature checks; the call methods are never
// reached by these handler paths.
type stubGateway struct{ sigOK bool }

func (s stubGateway) CreateOrder(ctx context.Context, req payments.CreateOrderRequest) (payments.CreateOrderResponse, error) {
	panic("not used")
}

func (s stubGateway) CapturePayment(ctx context.Context, req payments.CaptureRequest) (payments.CaptureResponse, error) {
	panic("not used")
}

func (s stubGateway) RefundPayment(ctx context.Context, req payments.GatewayRefundRequest) (payments.GatewayRefundResponse, error) {
	panic("not used")
}

func (s stubGateway) VerifyCheckoutSignature(orderID, paymentID, signature string) bool {
	return s.sigOK
}

func (s stubGateway) VerifyWebhookSignature(body []byte, signature string) bool {
	return s.sigOK
}

func webhookRouter(gw payments.Gateway) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewWebhookHandler(slog.Default(), gw, nil)
	r := gin.New()
	r.POST("/payments/webhook", h.Handle)
	return r
}

func TestWebhookHandler_InvalidSignatureRejected(t *testing.T) {
	r := webhookRouter(stubGateway{sigOK: false})

	req := httptest.NewRequest("POST", "/payments/webhook", strings.NewReader(`{"event":"payment.captured"}`))
	req.Header.Set(HeaderWebhookSignature, "bad")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, 400, w.Code)
}

func TestWebhookHandler_UnknownEventAcknowledged(t *testing.T) {
	r := webhookRouter(stubGateway{sigOK: true})

	req := httptest.NewRequest("POST", "/payments/webhook", strings.NewReader(`{"event":"order.paid","payload":{}}`))
	req.Header.Set(HeaderWebhookSignature, "ok")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
	require.Contains(t, w.Body.String(), "received")
}

func TestWebhookHandler_MalformedPayloadRejected(t *testing.T) {
	r := webhookRouter(stubGateway{sigOK: true})

	req := httptest.NewRequest("POST", "/payments/webhook", strings.NewReader(`{"event":`))
	req.Header.Set(HeaderWebhookSignature, "ok")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, 400, w.Code)
}
