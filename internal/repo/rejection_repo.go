// Rejection-ledger repository. The ledger records which unclaimed deposits
// the user has explicitly rejected, keyed by (txid, vout). The repository
// follows a "thin" approach: persistence and simple query composition only,
// business rules (refund eligibility, when a record is cleared) live in the
// services package.
//
// Error semantics:
//   - Reject is idempotent: inserting an existing (txid, vout) pair is a
//     no-op, relying on the database unique constraint.
//   - Remove and ClearAll are no-ops when nothing matches.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avlonitis/go-wallet-backend/internal/domain"
)

// ErrNotFound indicates that a requested row does not exist.
var ErrNotFound = errors.New("not found")

// RejectDeposit records a rejection for (txid, vout). Calling it again for
// the same pair leaves the original record (and its RejectedAt) untouched.
func RejectDeposit(ctx context.Context, db *gorm.DB, txid string, vout uint32) error {
	rec := &domain.RejectedDeposit{
		ID:         uuid.NewString(),
		Txid:       txid,
		Vout:       vout,
		RejectedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return err
	}
	return nil
}

// IsRejected reports whether (txid, vout) has a rejection record.
func IsRejected(ctx context.Context, db *gorm.DB, txid string, vout uint32) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.RejectedDeposit{}).
		Where("txid = ? AND vout = ?", txid, vout).
		Count(&n).Error
	return n > 0, err
}

// ListRejected returns all rejection records, oldest first.
func ListRejected(ctx context.Context, db *gorm.DB) ([]domain.RejectedDeposit, error) {
	var out []domain.RejectedDeposit
	err := db.WithContext(ctx).
		Order("rejected_at ASC").
		Find(&out).Error
	return out, err
}

// RemoveRejected deletes the rejection record for (txid, vout), if any.
func RemoveRejected(ctx context.Context, db *gorm.DB, txid string, vout uint32) error {
	return db.WithContext(ctx).
		Where("txid = ? AND vout = ?", txid, vout).
		Delete(&domain.RejectedDeposit{}).Error
}

// ClearRejected deletes every rejection record (explicit reset).
func ClearRejected(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).
		Where("1 = 1").
		Delete(&domain.RejectedDeposit{}).Error
}

// isUniqueViolation detects unique-constraint violations across drivers.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}
