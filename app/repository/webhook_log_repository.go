package repository

import (
	"context"

	"github.com/luminapay/schoolpay/app/models"
	"gorm.io/gorm"
)

// webhookLogRepository implements the WebhookLogRepository interface
type webhookLogRepository struct {
	db *gorm.DB
}

// NewWebhookLogRepository creates a new webhook log repository instance
func NewWebhookLogRepository(db *gorm.DB) WebhookLogRepository {
	return &webhookLogRepository{db: db}
}

// Create inserts a webhook audit row
func (r *webhookLogRepository) Create(ctx context.Context, log *models.WebhookLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// GetByID retrieves a webhook log by its ID
func (r *webhookLogRepository) GetByID(ctx context.Context, id uint) (*models.WebhookLog, error) {
	var log models.WebhookLog
	if err := r.db.WithContext(ctx).First(&log, id).Error; err != nil {
		return nil, err
	}
	return &log, nil
}

// MarkProcessed records the outcome of processing a webhook
func (r *webhookLogRepository) MarkProcessed(ctx context.Context, id uint, processed bool, processingError string) error {
	return r.db.WithContext(ctx).Model(&models.WebhookLog{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"processed":        processed,
			"processing_error": processingError,
		}).Error
}

// SetArchiveKey stores the object key of the archived raw payload
func (r *webhookLogRepository) SetArchiveKey(ctx context.Context, id uint, key string) error {
	return r.db.WithContext(ctx).Model(&models.WebhookLog{}).
		Where("id = ?", id).
		Update("archive_key", key).Error
}

// List returns webhook logs, newest first
func (r *webhookLogRepository) List(ctx context.Context, offset, limit int) ([]models.WebhookLog, error) {
	var logs []models.WebhookLog
	err := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).Find(&logs).Error
	return logs, err
}

// Count returns the total number of webhook logs
func (r *webhookLogRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.WebhookLog{}).Count(&count).Error
	return count, err
}

// ListUnarchived returns logs whose raw payload has not been archived yet, oldest first
func (r *webhookLogRepository) ListUnarchived(ctx context.Context, limit int) ([]models.WebhookLog, error) {
	var logs []models.WebhookLog
	err := r.db.WithContext(ctx).Where("archive_key = ''").
		Order("id ASC").Limit(limit).Find(&logs).Error
	return logs, err
}
