package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/luminapay/schoolpay/internal/pkg/apperr"
	"github.com/luminapay/schoolpay/internal/pkg/jobqueue"
	"github.com/luminapay/schoolpay/internal/pkg/metrics/counter"
	"github.com/luminapay/schoolpay/internal/pkg/middleware"
	"github.com/luminapay/schoolpay/internal/pkg/webhook"
)

// SignatureHeader carries the optional HMAC of the webhook body.
const SignatureHeader = "X-Webhook-Signature"

// WebhookProcessor records and applies gateway notifications.
type WebhookProcessor interface {
	Process(ctx context.Context, raw []byte, signature string) (*webhook.Result, error)
	ListLogs(ctx context.Context, page, limit int) (*webhook.LogsPage, error)
	Stats(ctx context.Context) (*counter.Snapshot, error)
}

// ReplayQueue schedules a stored webhook for reprocessing and reports the
// job backlog.
type ReplayQueue interface {
	EnqueueReplay(ctx context.Context, logID uint, requestedBy string) (*jobqueue.Job, error)
	Stats(ctx context.Context) (*jobqueue.Stats, error)
}

// WebhookStats is the body of GET /webhook/stats.
type WebhookStats struct {
	*counter.Snapshot
	Jobs *jobqueue.Stats `json:"jobs,omitempty"`
}

// WebhookController serves /webhook.
type WebhookController struct {
	webhooks WebhookProcessor
	replays  ReplayQueue
}

// NewWebhookController creates the webhook controller. replays may be nil.
func NewWebhookController(webhooks WebhookProcessor, replays ReplayQueue) *WebhookController {
	return &WebhookController{webhooks: webhooks, replays: replays}
}

// HandleWebhook receives a gateway notification.
func (wc *WebhookController) HandleWebhook(c *fiber.Ctx) error {
	// fiber reuses the request buffer after the handler returns
	raw := append([]byte(nil), c.Body()...)

	res, err := wc.webhooks.Process(c.UserContext(), raw, c.Get(SignatureHeader))
	if err != nil {
		return err
	}
	return c.JSON(res)
}

// HandleListLogs lists stored notifications, newest first.
func (wc *WebhookController) HandleListLogs(c *fiber.Ctx) error {
	page, limit, err := pageParams(c)
	if err != nil {
		return err
	}

	res, err := wc.webhooks.ListLogs(c.UserContext(), page, limit)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

// HandleStats returns the webhook counters and, when the job queue is wired,
// its backlog.
func (wc *WebhookController) HandleStats(c *fiber.Ctx) error {
	snap, err := wc.webhooks.Stats(c.UserContext())
	if err != nil {
		return err
	}

	out := WebhookStats{Snapshot: snap}
	if wc.replays != nil {
		jobs, err := wc.replays.Stats(c.UserContext())
		if err != nil {
			logrus.WithError(err).Warn("failed to read job queue stats")
		} else {
			out.Jobs = jobs
		}
	}
	return c.JSON(out)
}

// HandleReplay queues a stored webhook log for reprocessing.
func (wc *WebhookController) HandleReplay(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return apperr.Validation("id must be a positive integer")
	}
	if wc.replays == nil {
		return apperr.New(apperr.KindInternal, nil, "replay queue is not available")
	}

	requestedBy := ""
	if client := middleware.CurrentAPIClient(c); client != nil {
		requestedBy = client.KeyPrefix
	}

	job, err := wc.replays.EnqueueReplay(c.UserContext(), uint(id), requestedBy)
	if err != nil {
		return apperr.New(apperr.KindInternal, err, "failed to queue replay")
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"queued": true,
		"job_id": job.ID,
	})
}
