// Package memrepo provides in-memory implementations of the repository
// interfaces for service and controller tests.
package memrepo

import (
	"cmp"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/luminapay/schoolpay/app/models"
	"github.com/luminapay/schoolpay/app/repository"
)

// Store holds all rows. The zero value is not usable; call New.
type Store struct {
	mu       sync.Mutex
	orders   []models.Order
	statuses map[uint]models.OrderStatus
	logs     []models.WebhookLog
	clients  []models.APIClient
	nextID   uint

	// Now stamps CreatedAt/UpdatedAt.
	Now func() time.Time
	// Err, when set, is returned by every write.
	Err error
}

// New returns an empty store.
func New() *Store {
	return &Store{
		statuses: make(map[uint]models.OrderStatus),
		Now:      time.Now,
	}
}

// Repositories exposes the store through the repository interfaces.
func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		Order:       orderRepo{s},
		OrderStatus: statusRepo{s},
		WebhookLog:  logRepo{s},
		Transaction: transactionRepo{s},
		APIClient:   clientRepo{s},
	}
}

// Statuses returns a copy of every status row.
func (s *Store) Statuses() []models.OrderStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.OrderStatus, 0, len(s.statuses))
	for _, st := range s.statuses {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Logs returns a copy of every webhook log in insertion order.
func (s *Store) Logs() []models.WebhookLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.WebhookLog(nil), s.logs...)
}

// Orders returns a copy of every order in insertion order.
func (s *Store) Orders() []models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Order(nil), s.orders...)
}

func (s *Store) id() uint {
	s.nextID++
	return s.nextID
}

type orderRepo struct{ s *Store }

func (r orderRepo) Create(_ context.Context, order *models.Order) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for _, o := range s.orders {
		if o.CustomOrderID == order.CustomOrderID {
			return gorm.ErrDuplicatedKey
		}
	}
	order.ID = s.id()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = s.Now()
	}
	order.UpdatedAt = order.CreatedAt
	s.orders = append(s.orders, *order)
	return nil
}

func (r orderRepo) GetByCustomOrderID(_ context.Context, customOrderID string) (*models.Order, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.CustomOrderID == customOrderID {
			found := o
			if st, ok := s.statuses[o.ID]; ok {
				found.Status = &st
			}
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r orderRepo) FindWithoutStatus(_ context.Context, createdBefore time.Time, limit int) ([]models.Order, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Order
	for _, o := range s.orders {
		if _, ok := s.statuses[o.ID]; ok || !o.CreatedAt.Before(createdBefore) {
			continue
		}
		out = append(out, o)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r orderRepo) CountCreatedBetween(_ context.Context, from, to time.Time) (int64, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, o := range s.orders {
		if !o.CreatedAt.Before(from) && o.CreatedAt.Before(to) {
			n++
		}
	}
	return n, nil
}

type statusRepo struct{ s *Store }

func (r statusRepo) Create(_ context.Context, status *models.OrderStatus) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.statuses[status.CollectID]; ok {
		return gorm.ErrDuplicatedKey
	}
	status.ID = s.id()
	status.CreatedAt = s.Now()
	status.UpdatedAt = status.CreatedAt
	s.statuses[status.CollectID] = *status
	return nil
}

func (r statusRepo) GetByCollectID(_ context.Context, collectID uint) (*models.OrderStatus, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.statuses[collectID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &st, nil
}

func (r statusRepo) Upsert(_ context.Context, status *models.OrderStatus, guard repository.StatusGuard) (bool, *models.OrderStatus, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, nil, s.Err
	}
	existing, ok := s.statuses[status.CollectID]
	if ok && guard != nil && !guard(&existing) {
		return false, &existing, nil
	}
	row := *status
	if ok {
		row.ID = existing.ID
		row.CreatedAt = existing.CreatedAt
	} else {
		row.ID = s.id()
		row.CreatedAt = s.Now()
	}
	row.UpdatedAt = s.Now()
	s.statuses[status.CollectID] = row
	return true, &row, nil
}

type logRepo struct{ s *Store }

func (r logRepo) Create(_ context.Context, log *models.WebhookLog) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	log.ID = s.id()
	log.CreatedAt = s.Now()
	log.UpdatedAt = log.CreatedAt
	s.logs = append(s.logs, *log)
	return nil
}

func (r logRepo) find(id uint) *models.WebhookLog {
	for i := range r.s.logs {
		if r.s.logs[i].ID == id {
			return &r.s.logs[i]
		}
	}
	return nil
}

func (r logRepo) GetByID(_ context.Context, id uint) (*models.WebhookLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l := r.find(id)
	if l == nil {
		return nil, gorm.ErrRecordNotFound
	}
	out := *l
	return &out, nil
}

func (r logRepo) MarkProcessed(_ context.Context, id uint, processed bool, processingError string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	if l := r.find(id); l != nil {
		l.Processed = processed
		l.ProcessingError = processingError
	}
	return nil
}

func (r logRepo) SetArchiveKey(_ context.Context, id uint, key string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if l := r.find(id); l != nil {
		l.ArchiveKey = key
	}
	return nil
}

func (r logRepo) List(_ context.Context, offset, limit int) ([]models.WebhookLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.WebhookLog, 0, len(r.s.logs))
	for i := len(r.s.logs) - 1; i >= 0; i-- {
		out = append(out, r.s.logs[i])
	}
	return window(out, offset, limit), nil
}

func (r logRepo) Count(context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.s.logs)), nil
}

func (r logRepo) ListUnarchived(_ context.Context, limit int) ([]models.WebhookLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.WebhookLog
	for _, l := range r.s.logs {
		if l.ArchiveKey == "" {
			out = append(out, l)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type transactionRepo struct{ s *Store }

func (r transactionRepo) rows(filter repository.TransactionFilter) []repository.TransactionRow {
	var out []repository.TransactionRow
	for _, o := range r.s.orders {
		if filter.SchoolID != "" && o.SchoolID != filter.SchoolID {
			continue
		}
		row := repository.TransactionRow{
			CollectID:     o.ID,
			SchoolID:      o.SchoolID,
			Gateway:       o.GatewayName,
			CustomOrderID: o.CustomOrderID,
			StudentInfo:   o.StudentInfo,
		}
		if st, ok := r.s.statuses[o.ID]; ok {
			orderAmount, txAmount, status, paymentTime := st.OrderAmount, st.TransactionAmount, st.Status, st.PaymentTime
			row.OrderAmount = &orderAmount
			row.TransactionAmount = &txAmount
			row.Status = &status
			row.PaymentTime = &paymentTime
		}
		out = append(out, row)
	}
	return out
}

func (r transactionRepo) List(_ context.Context, filter repository.TransactionFilter, offset, limit int) ([]repository.TransactionRow, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rows := r.rows(filter)
	if _, ok := repository.TransactionSortColumns[filter.SortBy]; ok {
		sort.SliceStable(rows, func(i, j int) bool {
			c := compareRows(rows[i], rows[j], filter.SortBy)
			if filter.Desc {
				return c > 0
			}
			return c < 0
		})
	}
	return window(rows, offset, limit), nil
}

func (r transactionRepo) Count(_ context.Context, filter repository.TransactionFilter) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.rows(filter))), nil
}

func (r transactionRepo) Summary(context.Context) (*repository.TransactionSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sum := &repository.TransactionSummary{TotalTransactions: int64(len(r.s.orders))}
	for _, st := range r.s.statuses {
		switch st.Status {
		case models.PaymentStatusSuccess:
			sum.SuccessCount++
			sum.TotalAmount += st.TransactionAmount
		case models.PaymentStatusPending:
			sum.PendingCount++
		case models.PaymentStatusFailed:
			sum.FailedCount++
		}
	}
	return sum, nil
}

func (r transactionRepo) TopSchools(_ context.Context, limit int) ([]repository.SchoolSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	bySchool := map[string]*repository.SchoolSummary{}
	for _, o := range r.s.orders {
		sc, ok := bySchool[o.SchoolID]
		if !ok {
			sc = &repository.SchoolSummary{SchoolID: o.SchoolID}
			bySchool[o.SchoolID] = sc
		}
		sc.TransactionCount++
		if st, ok := r.s.statuses[o.ID]; ok && st.Status == models.PaymentStatusSuccess {
			sc.TotalAmount += st.TransactionAmount
		}
	}
	out := make([]repository.SchoolSummary, 0, len(bySchool))
	for _, sc := range bySchool {
		out = append(out, *sc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TransactionCount != out[j].TransactionCount {
			return out[i].TransactionCount > out[j].TransactionCount
		}
		return out[i].SchoolID < out[j].SchoolID
	})
	return window(out, 0, limit), nil
}

type clientRepo struct{ s *Store }

func (r clientRepo) Create(_ context.Context, client *models.APIClient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	client.ID = r.s.id()
	r.s.clients = append(r.s.clients, *client)
	return nil
}

func (r clientRepo) GetActiveByKeyHash(_ context.Context, hash string) (*models.APIClient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.clients {
		if c.KeyHash == hash && c.RevokedAt == nil {
			out := c
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r clientRepo) TouchLastUsed(_ context.Context, id uint, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.clients {
		if r.s.clients[i].ID == id {
			r.s.clients[i].LastUsedAt = &at
		}
	}
	return nil
}

func window[T any](rows []T, offset, limit int) []T {
	if offset >= len(rows) {
		return []T{}
	}
	end := offset + limit
	if limit <= 0 || end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end]
}

// compareRows orders NULL status fields first, as MySQL does in ascending order.
func compareRows(a, b repository.TransactionRow, field string) int {
	switch field {
	case "payment_time":
		return compareNullable(a.PaymentTime, b.PaymentTime, func(x, y time.Time) int { return x.Compare(y) })
	case "created_at":
		return cmp.Compare(a.CollectID, b.CollectID)
	case "order_amount":
		return compareNullable(a.OrderAmount, b.OrderAmount, cmp.Compare[float64])
	case "transaction_amount":
		return compareNullable(a.TransactionAmount, b.TransactionAmount, cmp.Compare[float64])
	case "status":
		return compareNullable(a.Status, b.Status, strings.Compare)
	case "custom_order_id":
		return strings.Compare(a.CustomOrderID, b.CustomOrderID)
	case "school_id":
		return strings.Compare(a.SchoolID, b.SchoolID)
	case "gateway":
		return strings.Compare(a.Gateway, b.Gateway)
	}
	return 0
}

func compareNullable[T any](a, b *T, compare func(x, y T) int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return compare(*a, *b)
}
