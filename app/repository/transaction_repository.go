package repository

import (
	"context"

	"github.com/luminapay/schoolpay/app/models"
	"gorm.io/gorm"
)

// TransactionSortColumns maps the accepted sortBy values to SQL expressions.
var TransactionSortColumns = map[string]string{
	"payment_time":       "s.payment_time",
	"created_at":         "o.created_at",
	"order_amount":       "s.order_amount",
	"transaction_amount": "s.transaction_amount",
	"status":             "s.status",
	"custom_order_id":    "o.custom_order_id",
	"school_id":          "o.school_id",
	"gateway":            "o.gateway_name",
}

const transactionColumns = `o.id AS collect_id,
	o.school_id,
	o.gateway_name AS gateway,
	s.order_amount,
	s.transaction_amount,
	s.status,
	o.custom_order_id,
	s.payment_time,
	o.student_name,
	o.student_id,
	o.student_email`

// transactionRepository implements the TransactionRepository interface
type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a new transaction repository instance
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) joined(ctx context.Context, filter TransactionFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Table("orders o").
		Joins("LEFT JOIN order_statuses s ON s.collect_id = o.id")
	if filter.SchoolID != "" {
		q = q.Where("o.school_id = ?", filter.SchoolID)
	}
	return q
}

// List returns one page of orders joined with their status. Without a sort
// column rows come back in insertion order.
func (r *transactionRepository) List(ctx context.Context, filter TransactionFilter, offset, limit int) ([]TransactionRow, error) {
	dir := "ASC"
	if filter.Desc {
		dir = "DESC"
	}

	q := r.joined(ctx, filter).Select(transactionColumns)
	if expr, ok := TransactionSortColumns[filter.SortBy]; ok {
		q = q.Order(expr + " " + dir).Order("o.id " + dir)
	} else {
		q = q.Order("o.id ASC")
	}

	rows := make([]TransactionRow, 0, limit)
	err := q.Offset(offset).Limit(limit).Scan(&rows).Error
	return rows, err
}

// Count returns the number of orders matching the filter
func (r *transactionRepository) Count(ctx context.Context, filter TransactionFilter) (int64, error) {
	var count int64
	err := r.joined(ctx, filter).Count(&count).Error
	return count, err
}

// Summary aggregates counts and the settled amount over all orders
func (r *transactionRepository) Summary(ctx context.Context) (*TransactionSummary, error) {
	var summary TransactionSummary
	err := r.joined(ctx, TransactionFilter{}).Select(`COUNT(o.id) AS total_transactions,
		COALESCE(SUM(CASE WHEN s.status = ? THEN s.transaction_amount ELSE 0 END), 0) AS total_amount,
		COALESCE(SUM(CASE WHEN s.status = ? THEN 1 ELSE 0 END), 0) AS success_count,
		COALESCE(SUM(CASE WHEN s.status = ? THEN 1 ELSE 0 END), 0) AS pending_count,
		COALESCE(SUM(CASE WHEN s.status = ? THEN 1 ELSE 0 END), 0) AS failed_count`,
		models.PaymentStatusSuccess,
		models.PaymentStatusSuccess,
		models.PaymentStatusPending,
		models.PaymentStatusFailed,
	).Scan(&summary).Error
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// TopSchools ranks schools by number of orders
func (r *transactionRepository) TopSchools(ctx context.Context, limit int) ([]SchoolSummary, error) {
	schools := make([]SchoolSummary, 0, limit)
	err := r.joined(ctx, TransactionFilter{}).Select(`o.school_id,
		COUNT(o.id) AS transaction_count,
		COALESCE(SUM(CASE WHEN s.status = ? THEN s.transaction_amount ELSE 0 END), 0) AS total_amount`,
		models.PaymentStatusSuccess,
	).Group("o.school_id").
		Order("transaction_count DESC").Order("o.school_id ASC").
		Limit(limit).Scan(&schools).Error
	return schools, err
}
