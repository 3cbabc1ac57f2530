package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/luminapay/schoolpay/internal/pkg/config"
)

// New creates the Redis client shared by the job queue and the webhook
// counters. A failed ping is logged but not fatal; Redis-backed features
// degrade until the server is reachable.
func New(cfg config.Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.CacheAddress(),
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if pong, err := client.Ping(ctx).Result(); err != nil {
		logrus.WithField("component", "cache").Warnf("could not connect to redis at %s: %v", cfg.CacheAddress(), err)
	} else {
		logrus.WithField("component", "cache").Infof("connected to redis: %s", pong)
	}
	return client
}

// Ping checks the connection for health endpoints.
func Ping(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}
