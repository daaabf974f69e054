package payments

import "errors"

var (
	ErrPaymentNotFound        = errors.New("payment not found")
	ErrSignatureMismatch      = errors.New("signature mismatch")
	ErrIdempotencyConflict    = errors.New("idempotency key reused with different parameters")
	ErrNotRefundable          = errors.New("payment not refundable")
	ErrInvalidTransition      = errors.New("illegal status transition")
	ErrRefundExceedsRemaining = errors.New("refund amount exceeds remaining balance")

	// ErrGatewayUnavailable marks timeouts and transport failures. The ledger
	// is never mutated on this path, so callers may retry with the same
	// idempotency key.
	ErrGatewayUnavailable = errors.New("gateway unavailable")
)

// GatewayError is a definitive rejection from the gateway (bad amount,
// already captured, refund exceeding the captured amount, ...). Not retryable
// as-is.
type GatewayError struct {
	Description string
}

func (e *GatewayError) Error() string {
	return "gateway rejected request: " + e.Description
}
