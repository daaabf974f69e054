package payments

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

// Timestamps must scan back through both the mysql and sqlite drivers; the
// schema pins precision, not a driver-specific column type.
func TestLedgerTimestampsScanBack(t *testing.T) {
	db := newTestDB(t)

	p := seedPayment(t, db, nil)
	got := reloadPayment(t, db, p.ID)
	require.False(t, got.CreatedAt.IsZero())
	require.False(t, got.UpdatedAt.IsZero())

	ref := Refund{
		ID:            uuid.NewString(),
		PaymentID:     p.ID,
		RPRefundID:    "rfnd_ts",
		AmountInPaise: 100,
		Status:        RefundStatusCreated,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	require.NoError(t, db.Create(&ref).Error)
	var gotRef Refund
	require.NoError(t, db.First(&gotRef, "id = ?", ref.ID).Error)
	require.False(t, gotRef.CreatedAt.IsZero())

	now := time.Now()
	pe := ProviderEvent{
		ID:          uuid.NewString(),
		EventID:     "evt-ts",
		EventType:   EventPaymentCaptured,
		PayloadJSON: datatypes.JSON([]byte(`{}`)),
		ReceivedAt:  now,
		ProcessedAt: &now,
	}
	require.NoError(t, db.Create(&pe).Error)
	var gotPE ProviderEvent
	require.NoError(t, db.First(&gotPE, "id = ?", pe.ID).Error)
	require.False(t, gotPE.ReceivedAt.IsZero())
	require.NotNil(t, gotPE.ProcessedAt)
}
