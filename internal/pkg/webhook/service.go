package webhook

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/luminapay/schoolpay/app/models"
	"github.com/luminapay/schoolpay/app/repository"
	"github.com/luminapay/schoolpay/internal/pkg/apperr"
	"github.com/luminapay/schoolpay/internal/pkg/metrics/counter"
	"github.com/luminapay/schoolpay/internal/pkg/pagination"
	"github.com/luminapay/schoolpay/internal/pkg/security"
)

const (
	MessageProcessed        = "Webhook processed successfully"
	MessageStale            = "stale notification ignored"
	MessageOrderNotFound    = "Order not found"
	MessageInvalidSignature = "invalid webhook signature"
)

// Counter records webhook outcomes.
type Counter interface {
	Add(ctx context.Context, event string) error
	Snapshot(ctx context.Context) (*counter.Snapshot, error)
}

// ArchiveQueue schedules the raw payload of a log row for archiving.
type ArchiveQueue interface {
	EnqueueArchive(ctx context.Context, logID uint) error
}

// Result is returned for an accepted notification.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Applied bool   `json:"-"`
}

// LogsPage is one page of webhook logs.
type LogsPage struct {
	Logs       []models.WebhookLog `json:"logs"`
	Pagination pagination.Meta     `json:"pagination"`
}

// Service records gateway notifications and reconciles them into order statuses.
type Service struct {
	orders   repository.OrderRepository
	statuses repository.OrderStatusRepository
	logs     repository.WebhookLogRepository
	counter  Counter
	archive  ArchiveQueue
	secret   string
	log      *logrus.Entry
}

// Option configures optional collaborators of the Service.
type Option func(*Service)

// WithCounter records outcome counters.
func WithCounter(c Counter) Option {
	return func(s *Service) { s.counter = c }
}

// WithArchiveQueue enqueues an archive job for every stored log row.
func WithArchiveQueue(q ArchiveQueue) Option {
	return func(s *Service) { s.archive = q }
}

// WithSecret enables HMAC-SHA256 signature verification.
func WithSecret(secret string) Option {
	return func(s *Service) { s.secret = secret }
}

// NewService creates the webhook service.
func NewService(orders repository.OrderRepository, statuses repository.OrderStatusRepository, logs repository.WebhookLogRepository, opts ...Option) *Service {
	s := &Service{
		orders:   orders,
		statuses: statuses,
		logs:     logs,
		log:      logrus.WithField("component", "webhook"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Process stores raw as a webhook log and applies it to the order status.
// The log row is written before any other step so every delivery is audited.
func (s *Service) Process(ctx context.Context, raw []byte, signature string) (*Result, error) {
	s.count(ctx, counter.EventReceived)

	n, decodeErr := DecodeNotification(raw)
	entry := newLog(raw, n)
	if s.secret != "" {
		entry.SignatureValid = security.VerifyWebhookSignature(raw, signature, s.secret)
	}
	if decodeErr != nil {
		if e, ok := apperr.As(decodeErr); ok {
			entry.ProcessingError = e.Message
		} else {
			entry.ProcessingError = decodeErr.Error()
		}
	}

	if err := s.logs.Create(ctx, entry); err != nil {
		s.count(ctx, counter.EventFailed)
		return nil, apperr.Persistence(err, "failed to store webhook log")
	}
	s.enqueueArchive(ctx, entry.ID)

	if decodeErr != nil {
		s.count(ctx, counter.EventFailed)
		s.log.WithField("webhook_log_id", entry.ID).WithError(decodeErr).Warn("rejected webhook payload")
		return nil, decodeErr
	}
	if s.secret != "" && !entry.SignatureValid {
		s.fail(ctx, entry.ID, MessageInvalidSignature)
		return nil, apperr.Unauthorized(MessageInvalidSignature)
	}

	return s.apply(ctx, entry, n.OrderInfo)
}

// Reprocess re-applies the stored payload of an existing log row.
func (s *Service) Reprocess(ctx context.Context, logID uint) (*Result, error) {
	entry, err := s.logs.GetByID(ctx, logID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("webhook log not found")
		}
		return nil, apperr.Persistence(err, "failed to load webhook log")
	}

	n, err := DecodeNotification([]byte(entry.WebhookPayload))
	if err != nil {
		msg := err.Error()
		if e, ok := apperr.As(err); ok {
			msg = e.Message
		}
		s.fail(ctx, entry.ID, msg)
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"webhook_log_id": entry.ID,
		"order_id":       n.OrderInfo.OrderID,
	}).Info("reprocessing webhook")
	return s.apply(ctx, entry, n.OrderInfo)
}

func (s *Service) apply(ctx context.Context, entry *models.WebhookLog, info *OrderInfo) (*Result, error) {
	order, err := s.orders.GetByCustomOrderID(ctx, info.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.fail(ctx, entry.ID, MessageOrderNotFound)
			return nil, apperr.Validation(MessageOrderNotFound)
		}
		s.fail(ctx, entry.ID, err.Error())
		return nil, apperr.Persistence(err, "failed to look up order")
	}

	paymentTime := info.PaymentTime.Time
	logID := entry.ID
	applied, stored, err := s.statuses.Upsert(ctx, &models.OrderStatus{
		CollectID:         order.ID,
		OrderAmount:       info.OrderAmount,
		TransactionAmount: info.TransactionAmount,
		PaymentMode:       info.PaymentMode,
		PaymentDetails:    info.PaymentDetails,
		BankReference:     info.BankReference,
		PaymentMessage:    info.PaymentMessage,
		Status:            info.Status,
		ErrorMessage:      info.ErrorMessage,
		PaymentTime:       paymentTime,
		WebhookLogID:      &logID,
	}, func(existing *models.OrderStatus) bool {
		return existing.SupersededBy(paymentTime)
	})
	if err != nil {
		s.fail(ctx, entry.ID, err.Error())
		return nil, apperr.Persistence(err, "failed to update order status")
	}

	message, event, note := MessageProcessed, counter.EventProcessed, ""
	if !applied {
		message, event, note = MessageStale, counter.EventStale, MessageStale
	}
	if err := s.logs.MarkProcessed(ctx, entry.ID, true, note); err != nil {
		return nil, apperr.Persistence(err, "failed to mark webhook processed")
	}
	s.count(ctx, event)

	s.log.WithFields(logrus.Fields{
		"webhook_log_id": entry.ID,
		"order_id":       info.OrderID,
		"status":         stored.Status,
		"applied":        applied,
	}).Info("webhook processed")

	return &Result{
		Success: true,
		Message: message,
		OrderID: info.OrderID,
		Status:  stored.Status,
		Applied: applied,
	}, nil
}

// ListLogs returns webhook logs, newest first.
func (s *Service) ListLogs(ctx context.Context, page, limit int) (*LogsPage, error) {
	req := pagination.New(page, limit)

	logs, err := s.logs.List(ctx, req.Offset(), req.Limit)
	if err != nil {
		return nil, apperr.Persistence(err, "failed to list webhook logs")
	}
	total, err := s.logs.Count(ctx)
	if err != nil {
		return nil, apperr.Persistence(err, "failed to count webhook logs")
	}
	if logs == nil {
		logs = []models.WebhookLog{}
	}
	return &LogsPage{Logs: logs, Pagination: req.Meta(total)}, nil
}

// Stats returns the webhook outcome counters.
func (s *Service) Stats(ctx context.Context) (*counter.Snapshot, error) {
	if s.counter == nil {
		return &counter.Snapshot{}, nil
	}
	snap, err := s.counter.Snapshot(ctx)
	if err != nil {
		return nil, apperr.New(apperr.KindInternal, err, "failed to read webhook counters")
	}
	return snap, nil
}

func (s *Service) fail(ctx context.Context, logID uint, msg string) {
	if err := s.logs.MarkProcessed(ctx, logID, false, msg); err != nil {
		s.log.WithField("webhook_log_id", logID).WithError(err).Error("failed to record webhook error")
	}
	s.count(ctx, counter.EventFailed)
}

func (s *Service) count(ctx context.Context, event string) {
	if s.counter == nil {
		return
	}
	if err := s.counter.Add(ctx, event); err != nil {
		s.log.WithError(err).Debug("webhook counter update failed")
	}
}

func (s *Service) enqueueArchive(ctx context.Context, logID uint) {
	if s.archive == nil {
		return
	}
	if err := s.archive.EnqueueArchive(ctx, logID); err != nil {
		s.log.WithField("webhook_log_id", logID).WithError(err).Warn("failed to enqueue payload archive")
	}
}
