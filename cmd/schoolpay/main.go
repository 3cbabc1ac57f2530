package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/luminapay/schoolpay/app/controllers"
	"github.com/luminapay/schoolpay/app/repository"
	"github.com/luminapay/schoolpay/internal/pkg/archive"
	"github.com/luminapay/schoolpay/internal/pkg/cache"
	"github.com/luminapay/schoolpay/internal/pkg/config"
	"github.com/luminapay/schoolpay/internal/pkg/database"
	"github.com/luminapay/schoolpay/internal/pkg/gateway"
	"github.com/luminapay/schoolpay/internal/pkg/jobqueue"
	"github.com/luminapay/schoolpay/internal/pkg/logging"
	"github.com/luminapay/schoolpay/internal/pkg/metrics/counter"
	"github.com/luminapay/schoolpay/internal/pkg/middleware"
	"github.com/luminapay/schoolpay/internal/pkg/payment"
	"github.com/luminapay/schoolpay/internal/pkg/router"
	"github.com/luminapay/schoolpay/internal/pkg/transactions"
	"github.com/luminapay/schoolpay/internal/pkg/webhook"
)

var build = "develop"

func main() {
	cfg, err := config.Load(build)
	if err != nil {
		if errors.Is(err, config.ErrHelpWanted) {
			return
		}
		logrus.Error(err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)
	if err := Run(cfg, logger); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}

func Run(cfg config.Config, logger *logrus.Logger) error {
	logger.WithField("version", build).Info("starting server")
	defer logger.Info("shutdown complete")
	logger.Debugf("config:\n%s", config.String(cfg))

	db, err := database.Connect(cfg)
	if err != nil {
		return err
	}
	defer database.Close(db)

	rdb := cache.New(cfg)
	defer rdb.Close()

	repos := repository.NewFactory(db).GetRepositories()

	processors := jobqueue.Processors{Logs: repos.WebhookLog}
	if cfg.ArchiveEnabled() {
		arch, err := archive.New(context.Background(), cfg)
		if err != nil {
			return fmt.Errorf("init payload archive: %w", err)
		}
		processors.Archiver = arch
	}
	queue := jobqueue.NewQueue(rdb, cfg.Jobs.Workers, processors)

	webhooks := webhook.NewService(repos.Order, repos.OrderStatus, repos.WebhookLog,
		webhook.WithCounter(counter.New(rdb)),
		webhook.WithArchiveQueue(queue),
		webhook.WithSecret(cfg.Webhook.Secret),
	)
	queue.SetReplayer(webhooks)

	manager := jobqueue.NewManager(queue,
		jobqueue.NewOrphanSweeper(repos.Order, repos.OrderStatus, cfg.Jobs.OrphanAge),
		repos.WebhookLog,
		jobqueue.ManagerConfig{
			OrphanSweep:     cfg.Jobs.OrphanSweep,
			ArchiveBackfill: cfg.Jobs.ArchiveBackfill,
		},
	)
	if err := manager.Start(); err != nil {
		return fmt.Errorf("start job manager: %w", err)
	}
	defer manager.Stop()

	payments := payment.NewService(repos.Order, repos.OrderStatus, gateway.NewClient(cfg), payment.SettingsFromConfig(cfg))
	txs := transactions.NewService(repos.Order, repos.Transaction)

	app := fiber.New(fiber.Config{
		AppName:      "schoolpay " + build,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		BodyLimit:    cfg.Web.BodyLimit,
		ErrorHandler: middleware.ErrorHandler,
	})

	router.InstallRouter(app, router.Handlers{
		Payments:   controllers.NewPaymentController(payments, txs),
		Webhooks:   controllers.NewWebhookController(webhooks, queue),
		Health:     controllers.NewHealthController(healthChecks(db, rdb)),
		APIClients: repos.APIClient,
	}, router.Options{
		Logger:          logger,
		CorsOrigins:     cfg.Web.CorsOrigins,
		RateLimitMax:    cfg.RateLimit.Max,
		RateLimitWindow: cfg.RateLimit.Window,
		LimiterStorage:  limiterStorage(cfg, rdb, logger),
		MetricsUser:     cfg.Metrics.User,
		MetricsPass:     cfg.Metrics.Password,
		SwaggerFile:     swaggerFile(cfg.Docs.SpecFile, logger),
	})

	serverErrors := make(chan error, 1)
	go func() {
		logger.Infof("starting api router at %s", cfg.Address())
		serverErrors <- app.Listen(cfg.Address())
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Infof("shutting down: signal %s", sig)

		if err := app.ShutdownWithTimeout(cfg.Web.ShutdownTimeout); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
	}
	return nil
}

func healthChecks(db *gorm.DB, rdb *redis.Client) map[string]controllers.Pinger {
	return map[string]controllers.Pinger{
		"database": func(ctx context.Context) error { return database.Ping(ctx, db) },
		"cache":    func(ctx context.Context) error { return cache.Ping(ctx, rdb) },
	}
}

// limiterStorage shares rate limit counters through Redis when it is up and
// falls back to per-process memory otherwise.
func limiterStorage(cfg config.Config, rdb *redis.Client, logger *logrus.Logger) fiber.Storage {
	if err := cache.Ping(context.Background(), rdb); err != nil {
		logger.Warnf("rate limiter uses in-memory storage: %v", err)
		return nil
	}
	return cache.NewLimiterStorage(cfg)
}

func swaggerFile(path string, logger *logrus.Logger) string {
	if path == "" {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		logger.Warnf("api docs disabled: %v", err)
		return ""
	}
	return path
}
