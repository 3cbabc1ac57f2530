package repository

import (
	"context"
	"time"

	"github.com/luminapay/schoolpay/app/models"
	"gorm.io/gorm"
)

// orderRepository implements the OrderRepository interface
type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new order repository instance
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

// Create inserts a new order
func (r *orderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// GetByCustomOrderID retrieves an order by its external id together with its status
func (r *orderRepository) GetByCustomOrderID(ctx context.Context, customOrderID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Preload("Status").
		Where("custom_order_id = ?", customOrderID).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindWithoutStatus returns orders created before the cutoff that never got a status row
func (r *orderRepository) FindWithoutStatus(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).Table("orders o").
		Select("o.*").
		Joins("LEFT JOIN order_statuses s ON s.collect_id = o.id").
		Where("s.id IS NULL AND o.created_at < ?", createdBefore).
		Order("o.id ASC").Limit(limit).
		Find(&orders).Error
	return orders, err
}

// CountCreatedBetween counts orders created in [from, to)
func (r *orderRepository) CountCreatedBetween(ctx context.Context, from, to time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("created_at >= ? AND created_at < ?", from, to).
		Count(&count).Error
	return count, err
}
