package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/luminapay/schoolpay/app/controllers"
	"github.com/luminapay/schoolpay/app/repository"
	"github.com/luminapay/schoolpay/internal/pkg/apperr"
	"github.com/luminapay/schoolpay/internal/pkg/middleware"
)

// PaymentRouter mounts /payment behind the rate limiter.
type PaymentRouter struct {
	payments *controllers.PaymentController
	clients  repository.APIClientRepository
	limit    limiter.Config
}

// NewPaymentRouter creates the /payment router.
func NewPaymentRouter(h Handlers, opts Options) *PaymentRouter {
	maxRequests := opts.RateLimitMax
	if maxRequests <= 0 {
		maxRequests = 60
	}
	window := opts.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}

	return &PaymentRouter{
		payments: h.Payments,
		clients:  h.APIClients,
		limit: limiter.Config{
			Max:        maxRequests,
			Expiration: window,
			Storage:    opts.LimiterStorage,
			LimitReached: func(c *fiber.Ctx) error {
				return fiber.NewError(fiber.StatusTooManyRequests, "Too many requests, slow down")
			},
		},
	}
}

func (p PaymentRouter) InstallRouter(app *fiber.App) {
	if p.payments == nil {
		return
	}
	payment := app.Group("/payment", limiter.New(p.limit))

	payment.Post("/create-payment", p.auth(), p.payments.HandleCreatePayment)
	payment.Get("/transactions", p.payments.HandleListTransactions)
	payment.Get("/transactions/stats", p.payments.HandleTransactionStats)
	payment.Get("/transactions/school/:schoolId", p.payments.HandleListSchoolTransactions)
	payment.Get("/transaction-status/:customOrderId", p.payments.HandleTransactionStatus)
}

func (p PaymentRouter) auth() fiber.Handler {
	return requireAPIKey(p.clients)
}

// requireAPIKey rejects every request when no client store is configured.
func requireAPIKey(clients repository.APIClientRepository) fiber.Handler {
	if clients == nil {
		return func(c *fiber.Ctx) error {
			return apperr.Unauthorized("API key authentication is not configured")
		}
	}
	return middleware.APIKeyAuth(clients)
}
