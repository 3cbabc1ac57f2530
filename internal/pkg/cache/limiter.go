package cache

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/storage/redis"

	"github.com/luminapay/schoolpay/internal/pkg/config"
)

// NewLimiterStorage returns the Redis store shared by the rate limiters of
// all instances. It uses its own database so a FLUSHDB on the cache does not
// reset the counters. The storage pings on creation and panics when Redis is
// down; callers check reachability first.
func NewLimiterStorage(cfg config.Config) fiber.Storage {
	return redis.New(redis.Config{
		Host:     cfg.Cache.Host,
		Port:     cfg.Cache.Port,
		Password: cfg.Cache.Password,
		Database: cfg.Cache.LimiterDB,
		Reset:    false,
	})
}
