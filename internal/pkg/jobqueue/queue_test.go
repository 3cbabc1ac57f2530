package jobqueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luminapay/schoolpay/app/models"
	"github.com/luminapay/schoolpay/internal/pkg/cache/cachetest"
	"github.com/luminapay/schoolpay/internal/pkg/webhook"
)

const jobQueueTestRedisDB = 14

// TestNewQueue tests the queue constructor
func TestNewQueue(t *testing.T) {
	tests := []struct {
		name            string
		workers         int
		expectedWorkers int
	}{
		{"Valid worker count", 5, 5},
		{"Zero workers", 0, 3},
		{"Negative workers", -1, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queue := NewQueue(nil, tt.workers, Processors{})

			assert.NotNil(t, queue)
			assert.Equal(t, tt.expectedWorkers, queue.workers)
			assert.Equal(t, tt.expectedWorkers, cap(queue.workerPool))
			assert.False(t, queue.running)
		})
	}
}

func TestEnqueueArchive_NoArchiverIsNoop(t *testing.T) {
	queue := NewQueue(nil, 1, Processors{})
	assert.NoError(t, queue.EnqueueArchive(context.Background(), 1))
}

type recordingReplayer struct {
	mu  sync.Mutex
	ids []uint
	err error
}

func (r *recordingReplayer) Reprocess(_ context.Context, id uint) (*webhook.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
	if r.err != nil {
		return nil, r.err
	}
	return &webhook.Result{Success: true, OrderID: "ORDER_1", Status: models.PaymentStatusSuccess}, nil
}

func (r *recordingReplayer) calls() []uint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint(nil), r.ids...)
}

func TestQueue_EnqueueAndProcess(t *testing.T) {
	client := cachetest.NewClient(t, jobQueueTestRedisDB)
	replayer := &recordingReplayer{}
	queue := NewQueue(client, 2, Processors{Replayer: replayer})
	ctx := context.Background()

	job, err := queue.EnqueueReplay(ctx, 42, "spk_test")
	require.NoError(t, err)
	assert.Equal(t, JobTypeReplayWebhook, job.Type)

	size, err := queue.GetQueueSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)

	queue.Start()
	defer queue.Stop()

	require.Eventually(t, func() bool { return len(replayer.calls()) == 1 }, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, []uint{42}, replayer.calls())

	require.Eventually(t, func() bool {
		stats, err := queue.GetJobStats(ctx)
		return err == nil && stats[JobStatusCompleted] == 1
	}, 5*time.Second, 50*time.Millisecond)

	_, err = queue.GetJob(ctx, job.ID)
	assert.Error(t, err, "completed jobs are removed")
}

func TestQueue_ProcessJobRetriesTransientErrors(t *testing.T) {
	client := cachetest.NewClient(t, jobQueueTestRedisDB)
	replayer := &recordingReplayer{err: errors.New("db down")}
	queue := NewQueue(client, 1, Processors{Replayer: replayer})
	queue.retryDelay = 10 * time.Millisecond
	ctx := context.Background()

	job, err := queue.EnqueueReplay(ctx, 7, "")
	require.NoError(t, err)
	got, err := queue.dequeueJob(ctx)
	require.NoError(t, err)
	queue.processJob(ctx, got)

	stored, err := queue.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusRetrying, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	assert.Equal(t, "db down", stored.ErrorMsg)

	require.Eventually(t, func() bool {
		n, _ := queue.GetQueueSize(ctx)
		return n == 1
	}, time.Second, 10*time.Millisecond)

	processing, err := queue.GetProcessingSize(ctx)
	require.NoError(t, err)
	assert.Zero(t, processing)
}

func TestQueue_ProcessJobPermanentFailure(t *testing.T) {
	client := cachetest.NewClient(t, jobQueueTestRedisDB)
	queue := NewQueue(client, 1, Processors{})
	ctx := context.Background()

	job, err := queue.EnqueueJob(ctx, JobType("unknown"), nil)
	require.NoError(t, err)
	got, err := queue.dequeueJob(ctx)
	require.NoError(t, err)
	queue.processJob(ctx, got)

	stored, err := queue.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, stored.Status)

	stats, err := queue.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Pending)
	assert.Zero(t, stats.Processing)
	assert.Equal(t, int64(1), stats.ByStatus[JobStatusFailed])
}

func TestQueue_RecoverStuck(t *testing.T) {
	client := cachetest.NewClient(t, jobQueueTestRedisDB)
	queue := NewQueue(client, 1, Processors{})
	ctx := context.Background()

	job, err := queue.EnqueueReplay(ctx, 1, "")
	require.NoError(t, err)
	got, err := queue.dequeueJob(ctx)
	require.NoError(t, err)
	got.MarkAsProcessing()
	queue.updateJob(ctx, got)

	stats, err := queue.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Pending)
	assert.Equal(t, int64(1), stats.Processing)

	assert.Zero(t, queue.recoverStuck(ctx, 10*time.Minute, time.Now()))
	assert.Equal(t, 1, queue.recoverStuck(ctx, 10*time.Minute, time.Now().Add(time.Hour)))

	stored, err := queue.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, stored.Status)
	assert.Equal(t, "recovered by sweeper", stored.ErrorMsg)

	size, _ := queue.GetQueueSize(ctx)
	assert.Equal(t, int64(1), size)
	processing, _ := queue.GetProcessingSize(ctx)
	assert.Zero(t, processing)
}
