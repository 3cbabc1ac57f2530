package transactions

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/luminapay/schoolpay/app/repository"
	"github.com/luminapay/schoolpay/internal/pkg/apperr"
	"github.com/luminapay/schoolpay/internal/pkg/pagination"
)

const (
	DefaultSortBy  = "payment_time"
	DefaultOrder   = "desc"
	topSchoolLimit = 5
)

// Query selects one page of transactions.
type Query struct {
	Page   int
	Limit  int
	SortBy string
	Order  string
}

// Page is one page of transactions.
type Page struct {
	Transactions []repository.TransactionRow `json:"transactions"`
	Pagination   pagination.Meta             `json:"pagination"`
}

// StatusView is the public status of a single order.
type StatusView struct {
	CustomOrderID     string    `json:"custom_order_id"`
	Status            string    `json:"status"`
	OrderAmount       float64   `json:"order_amount"`
	TransactionAmount float64   `json:"transaction_amount"`
	PaymentMode       string    `json:"payment_mode"`
	PaymentMessage    string    `json:"payment_message"`
	PaymentTime       time.Time `json:"payment_time"`
	ErrorMessage      string    `json:"error_message"`
}

// Stats are the dashboard figures over all orders.
type Stats struct {
	TotalTransactions int64                      `json:"total_transactions"`
	TotalAmount       float64                    `json:"total_amount"`
	SuccessRate       float64                    `json:"success_rate"`
	PendingCount      int64                      `json:"pending_count"`
	FailedCount       int64                      `json:"failed_count"`
	MonthlyGrowth     float64                    `json:"monthly_growth"`
	TopSchools        []repository.SchoolSummary `json:"top_schools"`
}

// Service answers transaction queries.
type Service struct {
	orders       repository.OrderRepository
	transactions repository.TransactionRepository
	now          func() time.Time
}

// NewService creates a transaction query service.
func NewService(orders repository.OrderRepository, transactions repository.TransactionRepository) *Service {
	return &Service{
		orders:       orders,
		transactions: transactions,
		now:          time.Now,
	}
}

// SortFields lists the accepted sortBy values.
func SortFields() []string {
	fields := make([]string, 0, len(repository.TransactionSortColumns))
	for f := range repository.TransactionSortColumns {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// List returns all transactions, sorted by payment_time desc unless asked otherwise.
func (s *Service) List(ctx context.Context, q Query) (*Page, error) {
	sortBy := strings.TrimSpace(q.SortBy)
	if sortBy == "" {
		sortBy = DefaultSortBy
	}
	if _, ok := repository.TransactionSortColumns[sortBy]; !ok {
		return nil, apperr.Validation("invalid sortBy, allowed: "+strings.Join(SortFields(), ", "),
			apperr.WithFields(map[string]string{"sortBy": "unsupported sort field " + sortBy}))
	}

	order := strings.ToLower(strings.TrimSpace(q.Order))
	if order == "" {
		order = DefaultOrder
	}
	if order != "asc" && order != "desc" {
		return nil, apperr.Validation("invalid order, allowed: asc, desc",
			apperr.WithFields(map[string]string{"order": "must be asc or desc"}))
	}

	return s.page(ctx, repository.TransactionFilter{SortBy: sortBy, Desc: order == "desc"}, q.Page, q.Limit)
}

// ListBySchool returns the transactions of one school in creation order.
func (s *Service) ListBySchool(ctx context.Context, schoolID string, page, limit int) (*Page, error) {
	schoolID = strings.TrimSpace(schoolID)
	if schoolID == "" {
		return nil, apperr.Validation("schoolId is required",
			apperr.WithFields(map[string]string{"schoolId": "schoolId is required"}))
	}
	return s.page(ctx, repository.TransactionFilter{SchoolID: schoolID}, page, limit)
}

func (s *Service) page(ctx context.Context, filter repository.TransactionFilter, page, limit int) (*Page, error) {
	req := pagination.New(page, limit)

	rows, err := s.transactions.List(ctx, filter, req.Offset(), req.Limit)
	if err != nil {
		return nil, apperr.Persistence(err, "failed to list transactions")
	}
	total, err := s.transactions.Count(ctx, filter)
	if err != nil {
		return nil, apperr.Persistence(err, "failed to count transactions")
	}
	if rows == nil {
		rows = []repository.TransactionRow{}
	}
	return &Page{Transactions: rows, Pagination: req.Meta(total)}, nil
}

// GetStatus returns the current status of the order with the given external id.
func (s *Service) GetStatus(ctx context.Context, customOrderID string) (*StatusView, error) {
	customOrderID = strings.TrimSpace(customOrderID)
	if customOrderID == "" {
		return nil, apperr.Validation("customOrderId is required")
	}

	order, err := s.orders.GetByCustomOrderID(ctx, customOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Order not found")
		}
		return nil, apperr.Persistence(err, "failed to load order")
	}
	if order.Status == nil {
		return nil, apperr.NotFound("Order status not found")
	}

	st := order.Status
	return &StatusView{
		CustomOrderID:     order.CustomOrderID,
		Status:            st.Status,
		OrderAmount:       st.OrderAmount,
		TransactionAmount: st.TransactionAmount,
		PaymentMode:       st.PaymentMode,
		PaymentMessage:    st.PaymentMessage,
		PaymentTime:       st.PaymentTime,
		ErrorMessage:      st.ErrorMessage,
	}, nil
}

// Stats computes the dashboard statistics.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	summary, err := s.transactions.Summary(ctx)
	if err != nil {
		return nil, apperr.Persistence(err, "failed to summarize transactions")
	}
	schools, err := s.transactions.TopSchools(ctx, topSchoolLimit)
	if err != nil {
		return nil, apperr.Persistence(err, "failed to rank schools")
	}

	now := s.now().UTC()
	thisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	lastMonth := thisMonth.AddDate(0, -1, 0)
	current, err := s.orders.CountCreatedBetween(ctx, thisMonth, thisMonth.AddDate(0, 1, 0))
	if err != nil {
		return nil, apperr.Persistence(err, "failed to count orders")
	}
	previous, err := s.orders.CountCreatedBetween(ctx, lastMonth, thisMonth)
	if err != nil {
		return nil, apperr.Persistence(err, "failed to count orders")
	}

	if schools == nil {
		schools = []repository.SchoolSummary{}
	}
	return &Stats{
		TotalTransactions: summary.TotalTransactions,
		TotalAmount:       round2(summary.TotalAmount),
		SuccessRate:       percent(summary.SuccessCount, summary.TotalTransactions),
		PendingCount:      summary.PendingCount,
		FailedCount:       summary.FailedCount,
		MonthlyGrowth:     growth(current, previous),
		TopSchools:        schools,
	}, nil
}

func percent(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(part) * 100 / float64(total))
}

func growth(current, previous int64) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return round2(float64(current-previous) * 100 / float64(previous))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
