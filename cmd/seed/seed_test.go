package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luminapay/schoolpay/app/models"
	"github.com/luminapay/schoolpay/app/repository"
	"github.com/luminapay/schoolpay/app/repository/memrepo"
)

func TestSeed(t *testing.T) {
	store := memrepo.New()
	repos := store.Repositories()
	ctx := context.Background()

	res, err := seed(ctx, repos, 7, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 10, res.Orders)
	assert.Equal(t, 10, res.Statuses)
	assert.True(t, strings.HasPrefix(res.APIKey, "spk_"))

	order, err := repos.Order.GetByCustomOrderID(ctx, "ORDER_003")
	require.NoError(t, err)
	require.NotNil(t, order.Status)
	assert.Equal(t, models.PaymentStatusFailed, order.Status.Status)
	assert.Equal(t, "Insufficient funds", order.Status.ErrorMessage)

	_, err = repos.Order.GetByCustomOrderID(ctx, "ORDER_010")
	require.NoError(t, err)

	client, err := repos.APIClient.GetActiveByKeyHash(ctx, models.HashAPIKey(res.APIKey))
	require.NoError(t, err)
	assert.Equal(t, "demo dashboard", client.Name)

	total, err := repos.Transaction.Count(ctx, repository.TransactionFilter{SchoolID: "65b0e6293e9f76a9694d84b7"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, total, int64(1))
}

func TestSeed_DuplicateRunFails(t *testing.T) {
	repos := memrepo.New().Repositories()
	_, err := seed(context.Background(), repos, 0, time.Now())
	require.NoError(t, err)

	_, err = seed(context.Background(), repos, 0, time.Now())
	assert.ErrorContains(t, err, "ORDER_001")
}

func TestExtraOrderStatuses(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	counts := map[string]int{}
	for i := 0; i < 10; i++ {
		d := extraOrder(i, base)
		counts[d.status.Status]++
		_, known := models.NormalizePaymentStatus(d.status.Status)
		assert.True(t, known)
	}
	assert.Equal(t, 6, counts[models.PaymentStatusSuccess])
	assert.Equal(t, 2, counts[models.PaymentStatusPending])
	assert.Equal(t, 2, counts[models.PaymentStatusFailed])
}
