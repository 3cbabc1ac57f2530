package repository

import (
	"context"
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/luminapay/schoolpay/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// orderStatusRepository implements the OrderStatusRepository interface
type orderStatusRepository struct {
	db *gorm.DB
}

// NewOrderStatusRepository creates a new order status repository instance
func NewOrderStatusRepository(db *gorm.DB) OrderStatusRepository {
	return &orderStatusRepository{db: db}
}

// Create inserts the initial status row of an order
func (r *orderStatusRepository) Create(ctx context.Context, status *models.OrderStatus) error {
	return r.db.WithContext(ctx).Create(status).Error
}

// GetByCollectID retrieves the status row of an order
func (r *orderStatusRepository) GetByCollectID(ctx context.Context, collectID uint) (*models.OrderStatus, error) {
	var status models.OrderStatus
	err := r.db.WithContext(ctx).Where("collect_id = ?", collectID).First(&status).Error
	if err != nil {
		return nil, err
	}
	return &status, nil
}

var upsertColumns = []string{
	"order_amount",
	"transaction_amount",
	"payment_mode",
	"payment_details",
	"bank_reference",
	"payment_message",
	"status",
	"error_message",
	"payment_time",
	"webhook_log_id",
	"updated_at",
}

const (
	upsertAttempts = 5

	mysqlErrDeadlock = 1213
)

// Upsert writes the status for status.CollectID. Concurrent writers for the
// same order are serialized by the row lock. Two first writers for an order
// without a row either collide on the unique collect_id index or deadlock on
// the gap lock; the loser retries, finds the winner's row and runs the guard
// against it.
func (r *orderStatusRepository) Upsert(ctx context.Context, status *models.OrderStatus, guard StatusGuard) (bool, *models.OrderStatus, error) {
	var (
		applied bool
		stored  *models.OrderStatus
		err     error
	)
	for attempt := 0; attempt < upsertAttempts; attempt++ {
		applied, stored, err = r.upsertOnce(ctx, status, guard)
		if err == nil || !isWriteConflict(err) {
			break
		}
	}
	if err != nil {
		return false, nil, err
	}
	return applied, stored, nil
}

func (r *orderStatusRepository) upsertOnce(ctx context.Context, status *models.OrderStatus, guard StatusGuard) (bool, *models.OrderStatus, error) {
	var (
		applied bool
		stored  models.OrderStatus
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.OrderStatus
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("collect_id = ?", status.CollectID).
			First(&existing).Error

		row := *status
		switch {
		case err == nil:
			if guard != nil && !guard(&existing) {
				stored = existing
				return nil
			}
			row.ID = existing.ID
			row.CreatedAt = existing.CreatedAt
			if err := tx.Model(&existing).Select(upsertColumns).Updates(&row).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			row.ID = 0
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		default:
			return err
		}

		if err := tx.Where("collect_id = ?", status.CollectID).First(&stored).Error; err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, nil, err
	}
	return applied, &stored, nil
}

// isWriteConflict reports whether err is a lost insert race on collect_id.
func isWriteConflict(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlErrDeadlock
}
