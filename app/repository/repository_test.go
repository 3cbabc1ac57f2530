package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/luminapay/schoolpay/app/models"
	"github.com/luminapay/schoolpay/internal/pkg/database"
)

// setupMySQL starts a throwaway MySQL container and returns a migrated
// connection. Tests are skipped when Docker is not available.
func setupMySQL(t *testing.T) *gorm.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping MySQL integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := tcmysql.Run(ctx, "mysql:8.0.36",
		tcmysql.WithDatabase("schoolpay"),
		tcmysql.WithUsername("schoolpay"),
		tcmysql.WithPassword("schoolpay"),
	)
	t.Cleanup(func() {
		if ctr != nil {
			require.NoError(t, ctr.Terminate(context.Background()))
		}
	})
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "charset=utf8mb4", "parseTime=True", "loc=UTC")
	require.NoError(t, err)

	db, err := database.Open(dsn, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func truncateAll(t *testing.T, db *gorm.DB) {
	t.Helper()
	for _, table := range []string{"order_statuses", "webhook_logs", "api_clients", "orders"} {
		require.NoError(t, db.Exec("DELETE FROM "+table).Error)
	}
}

func seedOrder(t *testing.T, repos *Repositories, customID, schoolID string, amount float64, status string) *models.Order {
	t.Helper()
	ctx := context.Background()
	order := &models.Order{
		SchoolID:      schoolID,
		TrusteeID:     "trustee-1",
		StudentInfo:   models.StudentInfo{Name: "Student " + customID, ID: "S-" + customID, Email: "s@example.com"},
		GatewayName:   "PhonePe",
		CustomOrderID: customID,
	}
	require.NoError(t, repos.Order.Create(ctx, order))
	if status != "" {
		require.NoError(t, repos.OrderStatus.Create(ctx, &models.OrderStatus{
			CollectID:         order.ID,
			OrderAmount:       amount,
			TransactionAmount: amount,
			Status:            status,
			PaymentTime:       time.Now().UTC(),
		}))
	}
	return order
}

func TestRepositories_MySQL(t *testing.T) {
	db := setupMySQL(t)
	repos := NewFactory(db).GetRepositories()
	ctx := context.Background()

	t.Run("transactions paginate with total and sort", func(t *testing.T) {
		truncateAll(t, db)
		for i := 1; i <= 25; i++ {
			seedOrder(t, repos, fmt.Sprintf("ORDER_%02d", i), "school-a", float64(i*100), models.PaymentStatusPending)
		}

		filter := TransactionFilter{SortBy: "custom_order_id"}
		rows, err := repos.Transaction.List(ctx, filter, 10, 10)
		require.NoError(t, err)
		require.Len(t, rows, 10)
		assert.Equal(t, "ORDER_11", rows[0].CustomOrderID)
		assert.Equal(t, "ORDER_20", rows[9].CustomOrderID)
		require.NotNil(t, rows[0].Status)
		assert.Equal(t, models.PaymentStatusPending, *rows[0].Status)
		assert.Equal(t, "Student ORDER_11", rows[0].StudentInfo.Name)

		total, err := repos.Transaction.Count(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(25), total)

		rows, err = repos.Transaction.List(ctx, TransactionFilter{SortBy: "order_amount", Desc: true}, 0, 1)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "ORDER_25", rows[0].CustomOrderID)
	})

	t.Run("orders without status are listed with null status fields", func(t *testing.T) {
		truncateAll(t, db)
		seedOrder(t, repos, "ORDER_A", "school-a", 100, models.PaymentStatusSuccess)
		orphan := seedOrder(t, repos, "ORDER_B", "school-a", 0, "")

		rows, err := repos.Transaction.List(ctx, TransactionFilter{}, 0, 10)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Nil(t, rows[1].Status)
		assert.Nil(t, rows[1].PaymentTime)

		orphans, err := repos.Order.FindWithoutStatus(ctx, time.Now().Add(time.Minute), 10)
		require.NoError(t, err)
		require.Len(t, orphans, 1)
		assert.Equal(t, orphan.ID, orphans[0].ID)

		orphans, err = repos.Order.FindWithoutStatus(ctx, time.Now().Add(-time.Hour), 10)
		require.NoError(t, err)
		assert.Empty(t, orphans)
	})

	t.Run("school filter keeps insertion order", func(t *testing.T) {
		truncateAll(t, db)
		seedOrder(t, repos, "ORDER_003", "school-b", 300, models.PaymentStatusPending)
		seedOrder(t, repos, "ORDER_001", "school-a", 100, models.PaymentStatusPending)
		seedOrder(t, repos, "ORDER_002", "school-b", 200, models.PaymentStatusPending)

		filter := TransactionFilter{SchoolID: "school-b"}
		rows, err := repos.Transaction.List(ctx, filter, 0, 10)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "ORDER_003", rows[0].CustomOrderID)
		assert.Equal(t, "ORDER_002", rows[1].CustomOrderID)

		rows, err = repos.Transaction.List(ctx, TransactionFilter{SchoolID: "unknown"}, 0, 10)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("upsert keeps a single row per order", func(t *testing.T) {
		truncateAll(t, db)
		order := seedOrder(t, repos, "ORDER_100", "school-a", 2000, models.PaymentStatusPending)
		logID := uint(7)
		newer := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)

		applied, stored, err := repos.OrderStatus.Upsert(ctx, &models.OrderStatus{
			CollectID:         order.ID,
			OrderAmount:       2000,
			TransactionAmount: 2200,
			PaymentMode:       "upi",
			Status:            models.PaymentStatusSuccess,
			PaymentTime:       newer,
			WebhookLogID:      &logID,
		}, func(existing *models.OrderStatus) bool { return existing.SupersededBy(newer) })
		require.NoError(t, err)
		assert.True(t, applied)
		assert.Equal(t, models.PaymentStatusSuccess, stored.Status)
		assert.Equal(t, 2200.0, stored.TransactionAmount)

		older := newer.Add(-time.Hour)
		applied, stored, err = repos.OrderStatus.Upsert(ctx, &models.OrderStatus{
			CollectID:   order.ID,
			OrderAmount: 2000,
			Status:      models.PaymentStatusFailed,
			PaymentTime: older,
		}, func(existing *models.OrderStatus) bool { return existing.SupersededBy(older) })
		require.NoError(t, err)
		assert.False(t, applied)
		assert.Equal(t, models.PaymentStatusSuccess, stored.Status)

		var count int64
		require.NoError(t, db.Model(&models.OrderStatus{}).Where("collect_id = ?", order.ID).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("upsert inserts when no row exists", func(t *testing.T) {
		truncateAll(t, db)
		order := seedOrder(t, repos, "ORDER_200", "school-a", 0, "")

		applied, stored, err := repos.OrderStatus.Upsert(ctx, &models.OrderStatus{
			CollectID:    order.ID,
			OrderAmount:  500,
			Status:       models.PaymentStatusFailed,
			ErrorMessage: "Payment initiation failed",
			PaymentTime:  time.Now().UTC(),
		}, nil)
		require.NoError(t, err)
		assert.True(t, applied)
		assert.Equal(t, order.ID, stored.CollectID)
		assert.NotZero(t, stored.ID)
	})

	t.Run("concurrent first writers keep one row and the newest status", func(t *testing.T) {
		truncateAll(t, db)
		order := seedOrder(t, repos, "ORDER_RACE", "school-a", 0, "")
		base := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)

		const writers = 4
		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				at := base.Add(time.Duration(i) * time.Minute)
				logID := uint(100 + i)
				_, _, err := repos.OrderStatus.Upsert(ctx, &models.OrderStatus{
					CollectID:         order.ID,
					OrderAmount:       2000,
					TransactionAmount: float64(i),
					Status:            models.PaymentStatusSuccess,
					PaymentTime:       at,
					WebhookLogID:      &logID,
				}, func(existing *models.OrderStatus) bool { return existing.SupersededBy(at) })
				errs <- err
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		var rows []models.OrderStatus
		require.NoError(t, db.Where("collect_id = ?", order.ID).Find(&rows).Error)
		require.Len(t, rows, 1)
		assert.Equal(t, float64(writers-1), rows[0].TransactionAmount)
		assert.True(t, base.Add(time.Duration(writers-1)*time.Minute).Equal(rows[0].PaymentTime))
	})

	t.Run("duplicate custom order id is rejected", func(t *testing.T) {
		truncateAll(t, db)
		seedOrder(t, repos, "ORDER_DUP", "school-a", 0, "")
		err := repos.Order.Create(ctx, &models.Order{SchoolID: "school-a", TrusteeID: "t", GatewayName: "PayU", CustomOrderID: "ORDER_DUP"})
		assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
	})

	t.Run("summary and top schools", func(t *testing.T) {
		truncateAll(t, db)
		seedOrder(t, repos, "ORDER_1", "school-a", 100, models.PaymentStatusSuccess)
		seedOrder(t, repos, "ORDER_2", "school-a", 50, models.PaymentStatusFailed)
		seedOrder(t, repos, "ORDER_3", "school-b", 70, models.PaymentStatusSuccess)
		seedOrder(t, repos, "ORDER_4", "school-b", 10, models.PaymentStatusPending)
		seedOrder(t, repos, "ORDER_5", "school-a", 0, "")

		summary, err := repos.Transaction.Summary(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(5), summary.TotalTransactions)
		assert.InDelta(t, 170.0, summary.TotalAmount, 0.001)
		assert.Equal(t, int64(2), summary.SuccessCount)
		assert.Equal(t, int64(1), summary.PendingCount)
		assert.Equal(t, int64(1), summary.FailedCount)

		schools, err := repos.Transaction.TopSchools(ctx, 5)
		require.NoError(t, err)
		require.Len(t, schools, 2)
		assert.Equal(t, "school-a", schools[0].SchoolID)
		assert.Equal(t, int64(3), schools[0].TransactionCount)
		assert.InDelta(t, 100.0, schools[0].TotalAmount, 0.001)

		count, err := repos.Order.CountCreatedBetween(ctx, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(5), count)
	})

	t.Run("webhook logs and api clients", func(t *testing.T) {
		truncateAll(t, db)
		first := &models.WebhookLog{OrderID: "ORDER_1", WebhookPayload: `{"status":200}`}
		second := &models.WebhookLog{OrderID: "ORDER_2", WebhookPayload: `{"status":200}`}
		require.NoError(t, repos.WebhookLog.Create(ctx, first))
		require.NoError(t, repos.WebhookLog.Create(ctx, second))
		require.NoError(t, repos.WebhookLog.MarkProcessed(ctx, first.ID, true, ""))
		require.NoError(t, repos.WebhookLog.SetArchiveKey(ctx, first.ID, "webhooks/1.json"))

		logs, err := repos.WebhookLog.List(ctx, 0, 10)
		require.NoError(t, err)
		require.Len(t, logs, 2)
		assert.Equal(t, second.ID, logs[0].ID)

		got, err := repos.WebhookLog.GetByID(ctx, first.ID)
		require.NoError(t, err)
		assert.True(t, got.Processed)
		assert.Equal(t, "webhooks/1.json", got.ArchiveKey)

		pending, err := repos.WebhookLog.ListUnarchived(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, second.ID, pending[0].ID)

		client := &models.APIClient{Name: "dashboard"}
		raw, err := client.IssueKey()
		require.NoError(t, err)
		require.NoError(t, repos.APIClient.Create(ctx, client))

		found, err := repos.APIClient.GetActiveByKeyHash(ctx, models.HashAPIKey(raw))
		require.NoError(t, err)
		assert.Equal(t, client.ID, found.ID)
		require.NoError(t, repos.APIClient.TouchLastUsed(ctx, client.ID, time.Now()))

		client.Revoke()
		require.NoError(t, db.Save(client).Error)
		_, err = repos.APIClient.GetActiveByKeyHash(ctx, models.HashAPIKey(raw))
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})
}

func TestIsWriteConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"duplicate key", fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), true},
		{"deadlock", &mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"}, true},
		{"lock wait timeout", &mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"}, false},
		{"other", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isWriteConflict(tt.err))
		})
	}
}
