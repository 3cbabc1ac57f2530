package repository

import (
	"context"
	"time"

	"github.com/luminapay/schoolpay/app/models"
	"gorm.io/gorm"
)

// OrderRepository defines the database operations on payment orders
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByCustomOrderID(ctx context.Context, customOrderID string) (*models.Order, error)
	FindWithoutStatus(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error)
	CountCreatedBetween(ctx context.Context, from, to time.Time) (int64, error)
}

// StatusGuard decides whether an existing status row may be overwritten.
type StatusGuard func(existing *models.OrderStatus) bool

// OrderStatusRepository defines the database operations on order statuses
type OrderStatusRepository interface {
	Create(ctx context.Context, status *models.OrderStatus) error
	GetByCollectID(ctx context.Context, collectID uint) (*models.OrderStatus, error)
	// Upsert writes status for status.CollectID inside a transaction that locks
	// the current row. When a row exists and guard rejects it, nothing is
	// written and the stored row is returned with applied=false.
	Upsert(ctx context.Context, status *models.OrderStatus, guard StatusGuard) (applied bool, stored *models.OrderStatus, err error)
}

// WebhookLogRepository defines the database operations on webhook audit rows
type WebhookLogRepository interface {
	Create(ctx context.Context, log *models.WebhookLog) error
	GetByID(ctx context.Context, id uint) (*models.WebhookLog, error)
	MarkProcessed(ctx context.Context, id uint, processed bool, processingError string) error
	SetArchiveKey(ctx context.Context, id uint, key string) error
	List(ctx context.Context, offset, limit int) ([]models.WebhookLog, error)
	Count(ctx context.Context) (int64, error)
	ListUnarchived(ctx context.Context, limit int) ([]models.WebhookLog, error)
}

// TransactionFilter narrows transaction listings.
type TransactionFilter struct {
	SchoolID string
	SortBy   string
	Desc     bool
}

// TransactionRow is an order joined with its status. Status-derived fields
// are nil when the order has no status row yet.
type TransactionRow struct {
	CollectID         uint               `json:"collect_id"`
	SchoolID          string             `json:"school_id"`
	Gateway           string             `json:"gateway"`
	OrderAmount       *float64           `json:"order_amount"`
	TransactionAmount *float64           `json:"transaction_amount"`
	Status            *string            `json:"status"`
	CustomOrderID     string             `json:"custom_order_id"`
	PaymentTime       *time.Time         `json:"payment_time"`
	StudentInfo       models.StudentInfo `gorm:"embedded" json:"student_info"`
}

// TransactionSummary aggregates every order for dashboard statistics.
type TransactionSummary struct {
	TotalTransactions int64
	TotalAmount       float64
	SuccessCount      int64
	PendingCount      int64
	FailedCount       int64
}

// SchoolSummary is one row of the per-school ranking.
type SchoolSummary struct {
	SchoolID         string  `json:"school_id"`
	TransactionCount int64   `json:"transaction_count"`
	TotalAmount      float64 `json:"total_amount"`
}

// TransactionRepository defines the read-only join queries over orders and statuses
type TransactionRepository interface {
	List(ctx context.Context, filter TransactionFilter, offset, limit int) ([]TransactionRow, error)
	Count(ctx context.Context, filter TransactionFilter) (int64, error)
	Summary(ctx context.Context) (*TransactionSummary, error)
	TopSchools(ctx context.Context, limit int) ([]SchoolSummary, error)
}

// APIClientRepository defines the database operations on API clients
type APIClientRepository interface {
	Create(ctx context.Context, client *models.APIClient) error
	GetActiveByKeyHash(ctx context.Context, hash string) (*models.APIClient, error)
	TouchLastUsed(ctx context.Context, id uint, at time.Time) error
}

// Repositories holds all repository instances
type Repositories struct {
	Order       OrderRepository
	OrderStatus OrderStatusRepository
	WebhookLog  WebhookLogRepository
	Transaction TransactionRepository
	APIClient   APIClientRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Order:       NewOrderRepository(db),
		OrderStatus: NewOrderStatusRepository(db),
		WebhookLog:  NewWebhookLogRepository(db),
		Transaction: NewTransactionRepository(db),
		APIClient:   NewAPIClientRepository(db),
	}
}
