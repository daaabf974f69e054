package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bazaar-digital2021/srijanMithilaBackend/internal/http/middleware"
	"github.com/bazaar-digital2021/srijanMithilaBackend/internal/http/validation"
	"github.com/bazaar-digital2021/srijanMithilaBackend/internal/modules/payments"
	"github.com/bazaar-digital2021/srijanMithilaBackend/internal/shared/apperr"
)

type PaymentsHandler struct {
	Logger  *slog.Logger
	Orders  *payments.OrderService
	Verify  *payments.VerifyService
	Capture *payments.CaptureService
	Refunds *payments.RefundService
}

func NewPaymentsHandler(logger *slog.Logger, orders *payments.OrderService, verify *payments.VerifyService, capture *payments.CaptureService, refunds *payments.RefundService) *PaymentsHandler {
	return &PaymentsHandler{Logger: logger, Orders: orders, Verify: verify, Capture: capture, Refunds: refunds}
}

// GET /payments/health
func (h *PaymentsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok": true,
		"routes": gin.H{
			"createOrder": "POST /payments/order",
			"verify":      "POST /payments/verify",
			"capture":     "POST /payments/capture",
			"refund":      "POST /payments/refund",
			"detail":      "GET /payments/:rpOrderId",
			"webhook":     "POST /payments/webhook",
		},
	})
}

type createOrderInput struct {
	AmountInPaise int64             `json:"amountInPaise" binding:"required,min=100"`
	Currency      string            `json:"currency" binding:"omitempty,len=3"`
	OrderID       string            `json:"orderId" binding:"omitempty,max=64"`
	CustomerID    string            `json:"customerId" binding:"omitempty,max=64"`
	Email         string            `json:"email" binding:"omitempty,email,max=255"`
	Contact       string            `json:"contact" binding:"omitempty,max=32"`
	Metadata      map[string]string `json:"metadata" binding:"omitempty"`
}

// POST /payments/order
func (h *PaymentsHandler) CreateOrder(c *gin.Context) {
	var in createOrderInput
	if err := c.ShouldBindJSON(&in); err != nil {
		middleware.Fail(c, apperr.InvalidErr("Invalid order request.", validation.FromBindError(err, &in)))
		return
	}

	idemKey, _ := middleware.GetIdemKey(c)
	res, err := h.Orders.CreateOrder(c.Request.Context(), payments.CreateOrderInput{
		AmountInPaise: in.AmountInPaise,
		Currency:      in.Currency,
		OrderID:       in.OrderID,
		CustomerID:    in.CustomerID,
		Email:         in.Email,
		Contact:       in.Contact,
		Metadata:      in.Metadata,
		IdemKey:       idemKey,
	})
	if err != nil {
		middleware.Fail(c, mapPaymentErr(err))
		return
	}

	body := gin.H{
		"rpOrderId": res.RPOrderID,
		"amount":    res.AmountInPaise,
		"currency":  res.Currency,
	}
	if res.Reused {
		body["reused"] = true
		c.JSON(http.StatusOK, body)
		return
	}
	c.JSON(http.StatusCreated, body)
}

type verifyInput struct {
	RPOrderID   string `json:"razorpay_order_id" binding:"required"`
	RPPaymentID string `json:"razorpay_payment_id" binding:"required"`
	Signature   string `json:"razorpay_signature" binding:"required"`
}

// POST /payments/verify
func (h *PaymentsHandler) VerifyCheckout(c *gin.Context) {
	var in verifyInput
	if err := c.ShouldBindJSON(&in); err != nil {
		middleware.Fail(c, apperr.InvalidErr("Invalid verification request.", validation.FromBindError(err, &in)))
		return
	}

	res, err := h.Verify.VerifyCheckout(c.Request.Context(), payments.VerifyInput{
		RPOrderID:   in.RPOrderID,
		RPPaymentID: in.RPPaymentID,
		Signature:   in.Signature,
	})
	if err != nil {
		middleware.Fail(c, mapPaymentErr(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":          true,
		"rpOrderId":   res.RPOrderID,
		"rpPaymentId": res.RPPaymentID,
	})
}

type captureInput struct {
	RPPaymentID   string `json:"rpPaymentId" binding:"omitempty,max=64"`
	AltPaymentID  string `json:"razorpay_payment_id" binding:"omitempty,max=64"`
	AmountInPaise int64  `json:"amountInPaise" binding:"omitempty,min=1"`
}

// POST /payments/capture
func (h *PaymentsHandler) CapturePayment(c *gin.Context) {
	var in captureInput
	if err := c.ShouldBindJSON(&in); err != nil {
		middleware.Fail(c, apperr.InvalidErr("Invalid capture request.", validation.FromBindError(err, &in)))
		return
	}

	// Either field name is accepted.
	paymentID := in.RPPaymentID
	if paymentID == "" {
		paymentID = in.AltPaymentID
	}
	if paymentID == "" {
		middleware.Fail(c, apperr.InvalidErr("rpPaymentId is required.", validation.FieldErrors{"rpPaymentId": "This field is required."}))
		return
	}

	res, err := h.Capture.Capture(c.Request.Context(), payments.CaptureInput{
		RPPaymentID:   paymentID,
		AmountInPaise: in.AmountInPaise,
	})
	if err != nil {
		middleware.Fail(c, mapPaymentErr(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok": true,
		"captured": gin.H{
			"id":       res.RPPaymentID,
			"orderId":  res.RPOrderID,
			"amount":   res.AmountInPaise,
			"status":   res.Status,
			"method":   res.Method,
		},
	})
}

type refundInput struct {
	RPPaymentID   string `json:"rpPaymentId" binding:"required,max=64"`
	AmountInPaise int64  `json:"amountInPaise" binding:"omitempty,min=1"`
}

// POST /payments/refund
func (h *PaymentsHandler) Refund(c *gin.Context) {
	var in refundInput
	if err := c.ShouldBindJSON(&in); err != nil {
		middleware.Fail(c, apperr.InvalidErr("Invalid refund request.", validation.FromBindError(err, &in)))
		return
	}

	idemKey, _ := middleware.GetIdemKey(c)
	res, err := h.Refunds.Refund(c.Request.Context(), payments.RefundInput{
		RPPaymentID:   in.RPPaymentID,
		AmountInPaise: in.AmountInPaise,
		IdemKey:       idemKey,
	})
	if err != nil {
		middleware.Fail(c, mapPaymentErr(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok": true,
		"refund": gin.H{
			"id":            res.RPRefundID,
			"amount":        res.AmountInPaise,
			"status":        res.Status,
			"paymentStatus": res.PaymentStatus,
		},
		"reused": res.Reused,
	})
}

// GET /payments/:rpOrderId
func (h *PaymentsHandler) Detail(c *gin.Context) {
	p, err := h.Orders.GetByRPOrderID(c.Request.Context(), c.Param("rpOrderId"))
	if err != nil {
		middleware.Fail(c, mapPaymentErr(err))
		return
	}
	c.JSON(http.StatusOK, p)
}

// mapPaymentErr translates module errors into the apperr taxonomy. Gateway
// detail never reaches the caller verbatim.
func mapPaymentErr(err error) error {
	var gwErr *payments.GatewayError
	switch {
	case errors.Is(err, payments.ErrPaymentNotFound):
		return apperr.NotFoundErr("Payment not found.")
	case errors.Is(err, payments.ErrSignatureMismatch):
		return apperr.InvalidErr("Invalid signature.", nil)
	case errors.Is(err, payments.ErrIdempotencyConflict):
		return apperr.ConflictErr("Idempotency key was already used with different parameters.")
	case errors.Is(err, payments.ErrInvalidTransition):
		return apperr.ConflictErr("Payment is not in a state that allows this operation.")
	case errors.Is(err, payments.ErrRefundExceedsRemaining):
		return apperr.InvalidErr("Refund amount exceeds the remaining balance.", nil)
	case errors.Is(err, payments.ErrNotRefundable):
		return apperr.InvalidErr("Payment is not refundable.", nil)
	case errors.Is(err, payments.ErrGatewayUnavailable):
		return apperr.UnavailableErr("Payment gateway is temporarily unavailable. Please retry.", err)
	case errors.As(err, &gwErr):
		return apperr.InvalidErr("Payment gateway rejected the request.", nil)
	default:
		return apperr.Wrap(err)
	}
}
