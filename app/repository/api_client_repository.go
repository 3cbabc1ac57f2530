package repository

import (
	"context"
	"time"

	"github.com/luminapay/schoolpay/app/models"
	"gorm.io/gorm"
)

// apiClientRepository implements the APIClientRepository interface
type apiClientRepository struct {
	db *gorm.DB
}

// NewAPIClientRepository creates a new API client repository instance
func NewAPIClientRepository(db *gorm.DB) APIClientRepository {
	return &apiClientRepository{db: db}
}

// Create inserts a new API client
func (r *apiClientRepository) Create(ctx context.Context, client *models.APIClient) error {
	return r.db.WithContext(ctx).Create(client).Error
}

// GetActiveByKeyHash retrieves a non-revoked client by the SHA-256 hash of its key
func (r *apiClientRepository) GetActiveByKeyHash(ctx context.Context, hash string) (*models.APIClient, error) {
	var client models.APIClient
	err := r.db.WithContext(ctx).
		Where("key_hash = ? AND revoked_at IS NULL", hash).
		First(&client).Error
	if err != nil {
		return nil, err
	}
	return &client, nil
}

// TouchLastUsed updates the last usage timestamp of a client
func (r *apiClientRepository) TouchLastUsed(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.APIClient{}).
		Where("id = ?", id).
		UpdateColumn("last_used_at", at).Error
}
