package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bazaar-digital2021/srijanMithilaBackend/internal/modules/payments"
)

// Gateway signature headers.
const (
	HeaderWebhookSignature = "X-Razorpay-Signature"
	HeaderWebhookEventID   = "X-Razorpay-Event-Id"
)

type WebhookHandler struct {
	Logger     *slog.Logger
	Gateway    payments.Gateway
	WebhookSvc *payments.WebhookService
}

func NewWebhookHandler(logger *slog.Logger, gw payments.Gateway, svc *payments.WebhookService) *WebhookHandler {
	return &WebhookHandler{Logger: logger, Gateway: gw, WebhookSvc: svc}
}

// POST /payments/webhook
// The signature is computed over the exact body bytes, so the body is read
// raw and verified before any parsing.
func (h *WebhookHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid body"})
		return
	}

	if !h.Gateway.VerifyWebhookSignature(body, c.GetHeader(HeaderWebhookSignature)) {
		h.Logger.Warn("webhook signature invalid")
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid signature"})
		return
	}

	ev, err := payments.ParseEvent(body)
	if err != nil {
		if errors.Is(err, payments.ErrUnknownEventType) {
			// Event families we don't fold; acknowledge so the gateway stops
			// redelivering.
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid payload"})
		return
	}

	eventID := c.GetHeader(HeaderWebhookEventID)
	if eventID == "" {
		// Deterministic fallback keeps replays deduplicable.
		sum := sha256.Sum256(body)
		eventID = hex.EncodeToString(sum[:])
	}

	if err := h.WebhookSvc.Handle(c.Request.Context(), eventID, ev, body); err != nil {
		// 500 so the gateway retries.
		c.JSON(http.StatusInternalServerError, gin.H{"message": "webhook handler failure"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
