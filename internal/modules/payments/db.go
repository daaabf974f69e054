package payments

import (
	"context"
	"errors"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// isDup matches unique-index violations for the mysql driver and, via
// TranslateError, for the sqlite driver used in tests.
func isDup(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

// refundedSum returns the total of non-failed refund amounts for a payment.
// The ledger invariant is refundedSum ≤ payment.amount at all times.
func refundedSum(ctx context.Context, tx *gorm.DB, paymentID string) (int64, error) {
	var sum int64
	err := tx.WithContext(ctx).Model(&Refund{}).
		Where("payment_id = ? AND status <> ?", paymentID, RefundStatusFailed).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error
	return sum, err
}

// AutoMigrate creates the ledger schema. Used by cmd/tools/createtable and
// the test harness.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Payment{}, &Refund{}, &ProviderEvent{})
}
