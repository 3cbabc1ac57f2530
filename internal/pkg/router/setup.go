package router

import (
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"

	"github.com/luminapay/schoolpay/app/controllers"
	"github.com/luminapay/schoolpay/app/repository"
	"github.com/luminapay/schoolpay/internal/pkg/middleware"
)

// Router installs a group of routes.
type Router interface {
	InstallRouter(app *fiber.App)
}

// Handlers are the controllers and collaborators the routes dispatch to.
type Handlers struct {
	Payments   *controllers.PaymentController
	Webhooks   *controllers.WebhookController
	Health     *controllers.HealthController
	APIClients repository.APIClientRepository
}

// Options tune the cross-cutting middleware.
type Options struct {
	Logger          *logrus.Logger
	CorsOrigins     string
	RateLimitMax    int
	RateLimitWindow time.Duration
	// LimiterStorage shares limiter counters between instances; nil keeps them in memory.
	LimiterStorage fiber.Storage
	MetricsUser    string
	MetricsPass    string
	// SwaggerFile is the OpenAPI document served under /docs/api/v1; empty disables the UI.
	SwaggerFile string
}

// InstallRouter registers the global middleware and every route group.
func InstallRouter(app *fiber.App, h Handlers, opts Options) {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(requestid.New())
	app.Use(middleware.RequestLogger(logger))
	app.Use(cors.New(cors.Config{
		AllowOrigins: opts.CorsOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-API-Key, " + controllers.SignatureHeader,
	}))

	setup(app,
		NewSystemRouter(h, opts),
		NewPaymentRouter(h, opts),
		NewWebhookRouter(h),
	)
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}

// SystemRouter serves health, metrics and the API docs.
type SystemRouter struct {
	health      *controllers.HealthController
	metricsUser string
	metricsPass string
	swaggerFile string
}

func NewSystemRouter(h Handlers, opts Options) *SystemRouter {
	return &SystemRouter{
		health:      h.Health,
		metricsUser: opts.MetricsUser,
		metricsPass: opts.MetricsPass,
		swaggerFile: opts.SwaggerFile,
	}
}

func (s SystemRouter) InstallRouter(app *fiber.App) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "School payment API"})
	})
	if s.health != nil {
		app.Get("/health", s.health.HandleHealth)
	}

	// fiber metrics
	if s.metricsUser != "" {
		app.Get("/metrics", basicauth.New(basicauth.Config{
			Users: map[string]string{
				s.metricsUser: s.metricsPass,
			},
		}), monitor.New(monitor.Config{Title: "SchoolPay metrics"}))
	}

	// SWAGGER / OPENAPI
	if s.swaggerFile != "" {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/docs/api/",
			FilePath: s.swaggerFile,
			Path:     "v1",
			Title:    "SchoolPay API",
		}))
	}
}
