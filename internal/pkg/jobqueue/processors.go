package jobqueue

import (
	"context"
	"errors"
	"fmt"

	"github.com/luminapay/schoolpay/app/models"
	"github.com/luminapay/schoolpay/app/repository"
	"github.com/luminapay/schoolpay/internal/pkg/apperr"
	"github.com/luminapay/schoolpay/internal/pkg/webhook"
)

// Replayer re-applies a stored webhook notification.
type Replayer interface {
	Reprocess(ctx context.Context, logID uint) (*webhook.Result, error)
}

// PayloadArchiver uploads a raw webhook payload and returns its object key.
type PayloadArchiver interface {
	Put(ctx context.Context, log *models.WebhookLog) (string, error)
}

// Processors holds the collaborators job handlers delegate to.
type Processors struct {
	Replayer Replayer
	Logs     repository.WebhookLogRepository
	Archiver PayloadArchiver
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

// Run dispatches job to its handler.
func (p Processors) Run(ctx context.Context, job *Job) error {
	switch job.Type {
	case JobTypeReplayWebhook:
		return p.replayWebhook(ctx, job)
	case JobTypeArchivePayload:
		return p.archivePayload(ctx, job)
	default:
		return Permanent(fmt.Errorf("unknown job type: %s", job.Type))
	}
}

func (p Processors) replayWebhook(ctx context.Context, job *Job) error {
	if p.Replayer == nil {
		return Permanent(errors.New("webhook replay is not configured"))
	}
	payload, err := WebhookLogJobPayloadFromMap(job.Payload)
	if err != nil {
		return Permanent(fmt.Errorf("invalid replay payload: %w", err))
	}

	res, err := p.Replayer.Reprocess(ctx, payload.WebhookLogID)
	if err != nil {
		// Client-side outcomes will not change on retry
		if apperr.IsKind(err, apperr.KindValidation) || apperr.IsKind(err, apperr.KindNotFound) {
			return Permanent(err)
		}
		return err
	}
	log.WithField("webhook_log_id", payload.WebhookLogID).Infof("replayed webhook for %s: %s", res.OrderID, res.Status)
	return nil
}

func (p Processors) archivePayload(ctx context.Context, job *Job) error {
	if p.Archiver == nil || p.Logs == nil {
		return Permanent(errors.New("payload archive is not configured"))
	}
	payload, err := WebhookLogJobPayloadFromMap(job.Payload)
	if err != nil {
		return Permanent(fmt.Errorf("invalid archive payload: %w", err))
	}

	entry, err := p.Logs.GetByID(ctx, payload.WebhookLogID)
	if err != nil {
		return err
	}
	if entry.ArchiveKey != "" {
		return nil
	}

	key, err := p.Archiver.Put(ctx, entry)
	if err != nil {
		return err
	}
	return p.Logs.SetArchiveKey(ctx, entry.ID, key)
}
