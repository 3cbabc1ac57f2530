// Package cachetest resolves a Redis server for tests and skips when none is
// reachable.
package cachetest

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/luminapay/schoolpay/internal/pkg/env"
)

// NewClient returns a client on an isolated database that is flushed before
// and after the test.
func NewClient(t *testing.T, db int) *redis.Client {
	t.Helper()

	hosts := unique(env.GetEnv("SCHOOLPAY_CACHE_HOST", ""), "cache", "localhost", "127.0.0.1")
	ports := unique(env.GetEnv("SCHOOLPAY_CACHE_PORT", ""), "6379")
	passwords := unique(env.GetEnv("SCHOOLPAY_CACHE_PASSWORD", ""), "")

	var lastErr error
	for _, host := range hosts {
		for _, port := range ports {
			for _, password := range passwords {
				client := redis.NewClient(&redis.Options{
					Addr:     net.JoinHostPort(host, port),
					Password: password,
					DB:       db,
				})

				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				err := client.Ping(ctx).Err()
				cancel()
				if err != nil {
					_ = client.Close()
					lastErr = err
					continue
				}

				require(t, client.FlushDB(context.Background()).Err())
				t.Cleanup(func() {
					_ = client.FlushDB(context.Background()).Err()
					_ = client.Close()
				})
				return client
			}
		}
	}

	t.Skipf("Skipping Redis-dependent test: no reachable Redis endpoint (%v)", lastErr)
	return nil
}

func require(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("redis setup failed: %v", err)
	}
}

func unique(values ...string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for i, v := range values {
		// empty entries only count as a candidate in last position (no password)
		if v == "" && i != len(values)-1 {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
