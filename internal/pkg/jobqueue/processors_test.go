package jobqueue

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luminapay/schoolpay/app/models"
	"github.com/luminapay/schoolpay/app/repository/memrepo"
	"github.com/luminapay/schoolpay/internal/pkg/apperr"
)

type fakeArchiver struct {
	keys []string
	err  error
}

func (f *fakeArchiver) Put(_ context.Context, log *models.WebhookLog) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	key := "webhooks/" + log.OrderID + ".json"
	f.keys = append(f.keys, key)
	return key, nil
}

func replayJob(id uint) *Job {
	return &Job{Type: JobTypeReplayWebhook, Payload: WebhookLogJobPayload{WebhookLogID: id}.ToMap()}
}

func TestProcessors_Replay(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantErr   bool
		permanent bool
	}{
		{"success", nil, false, false},
		{"order still unknown", apperr.Validation("Order not found"), true, true},
		{"log missing", apperr.NotFound("webhook log not found"), true, true},
		{"database down", apperr.Persistence(errors.New("conn refused"), "failed"), true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &recordingReplayer{err: tt.err}
			err := Processors{Replayer: r}.Run(context.Background(), replayJob(9))
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.permanent, IsPermanent(err))
			assert.Equal(t, []uint{9}, r.calls())
		})
	}
}

func TestProcessors_NotConfigured(t *testing.T) {
	err := Processors{}.Run(context.Background(), replayJob(1))
	assert.True(t, IsPermanent(err))

	err = Processors{}.Run(context.Background(), &Job{Type: JobTypeArchivePayload})
	assert.True(t, IsPermanent(err))

	err = Processors{}.Run(context.Background(), &Job{Type: "nope"})
	assert.True(t, IsPermanent(err))
}

func TestProcessors_Archive(t *testing.T) {
	store := memrepo.New()
	logs := store.Repositories().WebhookLog
	ctx := context.Background()
	entry := &models.WebhookLog{OrderID: "ORDER_1", WebhookPayload: `{}`}
	require.NoError(t, logs.Create(ctx, entry))

	archiver := &fakeArchiver{}
	p := Processors{Logs: logs, Archiver: archiver}
	job := &Job{Type: JobTypeArchivePayload, Payload: WebhookLogJobPayload{WebhookLogID: entry.ID}.ToMap()}

	require.NoError(t, p.Run(ctx, job))
	got, err := logs.GetByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "webhooks/ORDER_1.json", got.ArchiveKey)

	// already archived rows are skipped
	require.NoError(t, p.Run(ctx, job))
	assert.Len(t, archiver.keys, 1)

	failing := Processors{Logs: logs, Archiver: &fakeArchiver{err: errors.New("s3 down")}}
	other := &models.WebhookLog{OrderID: "ORDER_2", WebhookPayload: `{}`}
	require.NoError(t, logs.Create(ctx, other))
	err = failing.Run(ctx, &Job{Type: JobTypeArchivePayload, Payload: WebhookLogJobPayload{WebhookLogID: other.ID}.ToMap()})
	require.Error(t, err)
	assert.False(t, IsPermanent(err))
}

func TestPermanent(t *testing.T) {
	assert.Nil(t, Permanent(nil))
	base := errors.New("x")
	err := Permanent(base)
	assert.ErrorIs(t, err, base)
	assert.True(t, IsPermanent(err))
	assert.False(t, IsPermanent(base))
}
