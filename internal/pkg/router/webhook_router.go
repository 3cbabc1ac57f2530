package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/luminapay/schoolpay/app/controllers"
	"github.com/luminapay/schoolpay/app/repository"
)

// WebhookRouter mounts /webhook.
type WebhookRouter struct {
	webhooks *controllers.WebhookController
	clients  repository.APIClientRepository
}

// NewWebhookRouter creates the /webhook router.
func NewWebhookRouter(h Handlers) *WebhookRouter {
	return &WebhookRouter{webhooks: h.Webhooks, clients: h.APIClients}
}

func (w WebhookRouter) InstallRouter(app *fiber.App) {
	if w.webhooks == nil {
		return
	}
	webhook := app.Group("/webhook")

	webhook.Post("/", w.webhooks.HandleWebhook)
	webhook.Get("/logs", w.webhooks.HandleListLogs)
	webhook.Get("/stats", w.webhooks.HandleStats)
	webhook.Post("/logs/:id/replay", requireAPIKey(w.clients), w.webhooks.HandleReplay)
}
