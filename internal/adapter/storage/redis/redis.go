// Package redis holds the Redis-backed adapters: the task queue that
// carries dispatch work and the health check.
package redis

import (
	"context"
	"fmt"
	"time"

	"payout-engine/config"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const connectTimeout = 5 * time.Second

// NewClient creates a Redis client and verifies connectivity before the
// task queue is built on top of it. A client that cannot reach Redis at
// startup is returned as an error rather than failing on first dequeue.
func NewClient(ctx context.Context, cfg config.RedisConfig, log zerolog.Logger) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	log.Info().
		Str("addr", cfg.Addr()).
		Int("db", cfg.DB).
		Msg("redis client ready")

	return client, nil
}
