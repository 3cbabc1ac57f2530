package jobqueue

import (
	"context"
	"time"

	"github.com/luminapay/schoolpay/app/models"
	"github.com/luminapay/schoolpay/app/repository"
)

const orphanBatchSize = 100

// OrphanPaymentMessage marks statuses written by the sweep. Orders carry no
// amount, so those rows hold order_amount 0.
const OrphanPaymentMessage = "Payment initiation did not complete (amount unknown)"

// OrphanSweeper marks orders that never received a status row as failed.
// Such orders appear when the process dies between storing the order and
// storing its initial status.
type OrphanSweeper struct {
	orders   repository.OrderRepository
	statuses repository.OrderStatusRepository
	maxAge   time.Duration
	now      func() time.Time
}

// NewOrphanSweeper creates a sweeper for orders older than maxAge.
func NewOrphanSweeper(orders repository.OrderRepository, statuses repository.OrderStatusRepository, maxAge time.Duration) *OrphanSweeper {
	if maxAge <= 0 {
		maxAge = 15 * time.Minute
	}
	return &OrphanSweeper{
		orders:   orders,
		statuses: statuses,
		maxAge:   maxAge,
		now:      time.Now,
	}
}

// SweepOnce processes one batch and returns the number of orders marked.
func (s *OrphanSweeper) SweepOnce(ctx context.Context) (int, error) {
	now := s.now().UTC()
	orders, err := s.orders.FindWithoutStatus(ctx, now.Add(-s.maxAge), orphanBatchSize)
	if err != nil {
		return 0, err
	}

	marked := 0
	for _, order := range orders {
		// A status written meanwhile (late webhook) wins over the sweep.
		applied, _, err := s.statuses.Upsert(ctx, &models.OrderStatus{
			CollectID:      order.ID,
			Status:         models.PaymentStatusFailed,
			PaymentMessage: OrphanPaymentMessage,
			ErrorMessage:   "no status recorded within " + s.maxAge.String(),
			PaymentTime:    now,
		}, func(*models.OrderStatus) bool { return false })
		if err != nil {
			return marked, err
		}
		if applied {
			marked++
			log.WithField("order_id", order.CustomOrderID).Warn("marked orphan order as failed")
		}
	}
	return marked, nil
}
