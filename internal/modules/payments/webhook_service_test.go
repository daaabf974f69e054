package payments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/bazaar-digital2021/srijanMithilaBackend/internal/mailer"
)

func handleEvent(t *testing.T, svc *WebhookService, eventID string, ev Event) error {
	t.Helper()
	return svc.Handle(context.Background(), eventID, ev, []byte(`{"event":"`+ev.EventType()+`"}`))
}

func TestWebhook_PaymentCapturedApplied(t *testing.T) {
	db := newTestDB(t)
	svc := NewWebhookService(db)

	p := seedPayment(t, db, nil)

	err := handleEvent(t, svc, "evt-1", PaymentCaptured{Payment: PaymentInfo{
		PaymentID: "pay_wh1",
		OrderID:   p.RPOrderID,
		Method:    "upi",
		Email:     "payer@example.com",
		Contact:   "+919999999999",
	}})
	require.NoError(t, err)

	got := reloadPayment(t, db, p.ID)
	require.Equal(t, StatusCaptured, got.Status)
	require.Equal(t, "pay_wh1", *got.RPPaymentID)
	require.Equal(t, "upi", *got.Method)
	require.Equal(t, "payer@example.com", *got.Email)
	require.Equal(t, EventPaymentCaptured, *got.LastEvent)

	var pe ProviderEvent
	require.NoError(t, db.First(&pe, "event_id = ?", "evt-1").Error)
	require.NotNil(t, pe.ProcessedAt)
}

func TestWebhook_ReplayedEventIDIsDeduplicated(t *testing.T) {
	db := newTestDB(t)
	svc := NewWebhookService(db)

	p := seedPayment(t, db, nil)
	info := PaymentInfo{PaymentID: "pay_wh2", OrderID: p.RPOrderID}

	require.NoError(t, handleEvent(t, svc, "evt-dup", PaymentCaptured{Payment: info}))

	// Same delivery id again, this time carrying an older state. The journal
	// short-circuits before anything is applied.
	require.NoError(t, handleEvent(t, svc, "evt-dup", PaymentAuthorized{Payment: info}))

	require.Equal(t, StatusCaptured, reloadPayment(t, db, p.ID).Status)
	require.EqualValues(t, 1, countRows(t, db, &ProviderEvent{}, "event_id = ?", "evt-dup"))
}

func TestWebhook_OutOfOrderAuthorizedSkipped(t *testing.T) {
	db := newTestDB(t)
	svc := NewWebhookService(db)

	p := seedPayment(t, db, nil)
	info := PaymentInfo{PaymentID: "pay_wh3", OrderID: p.RPOrderID}

	require.NoError(t, handleEvent(t, svc, "evt-cap", PaymentCaptured{Payment: info}))
	require.NoError(t, handleEvent(t, svc, "evt-auth", PaymentAuthorized{Payment: info}))

	got := reloadPayment(t, db, p.ID)
	require.Equal(t, StatusCaptured, got.Status)
	require.Equal(t, EventPaymentCaptured, *got.LastEvent)
}

func TestWebhook_FailedThenAuthorizedRetryApplies(t *testing.T) {
	db := newTestDB(t)
	svc := NewWebhookService(db)

	p := seedPayment(t, db, nil)
	info := PaymentInfo{PaymentID: "pay_wh4", OrderID: p.RPOrderID}

	require.NoError(t, handleEvent(t, svc, "evt-f", PaymentFailed{Payment: info}))
	require.Equal(t, StatusFailed, reloadPayment(t, db, p.ID).Status)

	// A later attempt on the same order may succeed.
	require.NoError(t, handleEvent(t, svc, "evt-a", PaymentAuthorized{Payment: info}))
	require.Equal(t, StatusAuthorized, reloadPayment(t, db, p.ID).Status)
}

func TestWebhook_FailedAfterCapturedSkipped(t *testing.T) {
	db := newTestDB(t)
	svc := NewWebhookService(db)

	p := seedPayment(t, db, nil)
	info := PaymentInfo{PaymentID: "pay_wh5", OrderID: p.RPOrderID}

	require.NoError(t, handleEvent(t, svc, "evt-c", PaymentCaptured{Payment: info}))
	require.NoError(t, handleEvent(t, svc, "evt-f2", PaymentFailed{Payment: info}))
	require.Equal(t, StatusCaptured, reloadPayment(t, db, p.ID).Status)
}

func TestWebhook_UnknownOrderFailsForRedelivery(t *testing.T) {
	db := newTestDB(t)
	svc := NewWebhookService(db)

	err := handleEvent(t, svc, "evt-orphan", PaymentCaptured{Payment: PaymentInfo{
		PaymentID: "pay_orphan", OrderID: "order_orphan",
	}})
	require.Error(t, err)

	// The dedupe row rolled back with the failure, so the redelivery gets a
	// clean attempt.
	require.EqualValues(t, 0, countRows(t, db, &ProviderEvent{}, "event_id = ?", "evt-orphan"))
}

func TestWebhook_RefundProcessedFoldsStatus(t *testing.T) {
	db := newTestDB(t)
	svc := NewWebhookService(db)

	p := seedCaptured(t, db, "pay_wh6", 10000)

	require.NoError(t, handleEvent(t, svc, "evt-r1", RefundProcessed{Refund: RefundInfo{
		RefundID:      "rfnd_wh1",
		PaymentID:     "pay_wh6",
		AmountInPaise: 4000,
		CreatedAt:     time.Now(),
	}}))

	got := reloadPayment(t, db, p.ID)
	require.Equal(t, StatusPartiallyRefunded, got.Status)

	var r Refund
	require.NoError(t, db.First(&r, "rp_refund_id = ?", "rfnd_wh1").Error)
	require.Equal(t, RefundStatusProcessed, r.Status)
	require.Nil(t, r.IdempotencyKey)

	require.NoError(t, handleEvent(t, svc, "evt-r2", RefundProcessed{Refund: RefundInfo{
		RefundID:      "rfnd_wh2",
		PaymentID:     "pay_wh6",
		AmountInPaise: 6000,
		CreatedAt:     time.Now(),
	}}))
	require.Equal(t, StatusRefunded, reloadPayment(t, db, p.ID).Status)
}

func TestWebhook_RefundReplayUpsertsNotDuplicates(t *testing.T) {
	db := newTestDB(t)
	svc := NewWebhookService(db)

	p := seedCaptured(t, db, "pay_wh7", 10000)
	info := RefundInfo{RefundID: "rfnd_wh3", PaymentID: "pay_wh7", AmountInPaise: 3000, CreatedAt: time.Now()}

	require.NoError(t, handleEvent(t, svc, "evt-rc", RefundCreated{Refund: info}))
	require.NoError(t, handleEvent(t, svc, "evt-rp", RefundProcessed{Refund: info}))
	// Late replay of the created event must not demote the processed record.
	require.NoError(t, handleEvent(t, svc, "evt-rc2", RefundCreated{Refund: info}))

	require.EqualValues(t, 1, countRows(t, db, &Refund{}, "payment_id = ?", p.ID))
	var r Refund
	require.NoError(t, db.First(&r, "rp_refund_id = ?", "rfnd_wh3").Error)
	require.Equal(t, RefundStatusProcessed, r.Status)

	// The no-op replay must not rewind the payment's last_event either.
	got := reloadPayment(t, db, p.ID)
	require.NotNil(t, got.LastEvent)
	require.Equal(t, EventRefundProcessed, *got.LastEvent)
}

func TestWebhook_RefundFailedMarksRowWithoutFolding(t *testing.T) {
	db := newTestDB(t)
	svc := NewWebhookService(db)

	p := seedCaptured(t, db, "pay_wh8", 10000)
	info := RefundInfo{RefundID: "rfnd_wh4", PaymentID: "pay_wh8", AmountInPaise: 4000, CreatedAt: time.Now()}

	require.NoError(t, handleEvent(t, svc, "evt-rc3", RefundCreated{Refund: info}))
	require.Equal(t, StatusPartiallyRefunded, reloadPayment(t, db, p.ID).Status)

	require.NoError(t, handleEvent(t, svc, "evt-rf", RefundFailed{Refund: info}))

	var r Refund
	require.NoError(t, db.First(&r, "rp_refund_id = ?", "rfnd_wh4").Error)
	require.Equal(t, RefundStatusFailed, r.Status)
}

func TestWebhook_RefundExceedingAmountRejected(t *testing.T) {
	db := newTestDB(t)
	svc := NewWebhookService(db)

	seedCaptured(t, db, "pay_wh9", 10000)

	err := handleEvent(t, svc, "evt-big", RefundProcessed{Refund: RefundInfo{
		RefundID:      "rfnd_big",
		PaymentID:     "pay_wh9",
		AmountInPaise: 20000,
		CreatedAt:     time.Now(),
	}})
	require.Error(t, err)
	require.EqualValues(t, 0, countRows(t, db, &Refund{}, "rp_refund_id = ?", "rfnd_big"))
	require.EqualValues(t, 0, countRows(t, db, &ProviderEvent{}, "event_id = ?", "evt-big"))
}

func TestWebhook_CaptureReceiptSentOnce(t *testing.T) {
	db := newTestDB(t)
	svc := NewWebhookService(db)
	mock := &mailer.Mock{}
	svc.SetMailer(mock, "no-reply@example.com", "Shop")

	p := seedPayment(t, db, nil)
	info := PaymentInfo{PaymentID: "pay_rcpt", OrderID: p.RPOrderID, Email: "payer@example.com"}

	require.NoError(t, handleEvent(t, svc, "evt-rcpt", PaymentCaptured{Payment: info}))
	require.Equal(t, 1, mock.SentCount())
	require.Equal(t, []string{"payer@example.com"}, mock.Sent[0].To)
	require.Contains(t, mock.Sent[0].Subject, p.RPOrderID)

	// Replayed delivery is deduplicated, so no second mail.
	require.NoError(t, handleEvent(t, svc, "evt-rcpt", PaymentCaptured{Payment: info}))
	require.Equal(t, 1, mock.SentCount())

	// A fresh capture event for an already-captured payment converges without
	// re-sending either.
	require.NoError(t, handleEvent(t, svc, "evt-rcpt2", PaymentCaptured{Payment: info}))
	require.Equal(t, 1, mock.SentCount())
}

func TestWebhook_NoReceiptWithoutEmail(t *testing.T) {
	db := newTestDB(t)
	svc := NewWebhookService(db)
	mock := &mailer.Mock{}
	svc.SetMailer(mock, "no-reply@example.com", "Shop")

	p := seedPayment(t, db, nil)

	require.NoError(t, handleEvent(t, svc, "evt-noemail", PaymentCaptured{Payment: PaymentInfo{
		PaymentID: "pay_ne", OrderID: p.RPOrderID,
	}}))
	require.Equal(t, 0, mock.SentCount())
}

func TestWebhook_MailFailureDoesNotFailEvent(t *testing.T) {
	db := newTestDB(t)
	svc := NewWebhookService(db)
	mock := &mailer.Mock{Err: context.DeadlineExceeded}
	svc.SetMailer(mock, "no-reply@example.com", "Shop")

	p := seedPayment(t, db, nil)

	require.NoError(t, handleEvent(t, svc, "evt-mailfail", PaymentCaptured{Payment: PaymentInfo{
		PaymentID: "pay_mf", OrderID: p.RPOrderID, Email: "payer@example.com",
	}}))
	require.Equal(t, StatusCaptured, reloadPayment(t, db, p.ID).Status)
	require.EqualValues(t, 1, countRows(t, db, &ProviderEvent{}, "event_id = ?", "evt-mailfail"))
}

func TestWebhook_RefundMatchesSynchronousRow(t *testing.T) {
	db := newTestDB(t)
	svc := NewWebhookService(db)

	p := seedCaptured(t, db, "pay_wh10", 10000)

	// Row created by the synchronous refund path, key attached.
	key := "rk-sync"
	pre := Refund{
		ID:             uuid.NewString(),
		PaymentID:      p.ID,
		RPRefundID:     "rfnd_sync",
		AmountInPaise:  5000,
		Status:         RefundStatusCreated,
		IdempotencyKey: &key,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	require.NoError(t, db.Create(&pre).Error)

	require.NoError(t, handleEvent(t, svc, "evt-sync", RefundProcessed{Refund: RefundInfo{
		RefundID:      "rfnd_sync",
		PaymentID:     "pay_wh10",
		AmountInPaise: 5000,
		CreatedAt:     time.Now(),
	}}))

	require.EqualValues(t, 1, countRows(t, db, &Refund{}, "payment_id = ?", p.ID))
	var r Refund
	require.NoError(t, db.First(&r, "rp_refund_id = ?", "rfnd_sync").Error)
	require.Equal(t, RefundStatusProcessed, r.Status)
	require.NotNil(t, r.IdempotencyKey)
	require.Equal(t, StatusPartiallyRefunded, reloadPayment(t, db, p.ID).Status)
}
