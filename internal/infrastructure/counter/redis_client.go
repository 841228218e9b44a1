package counter

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/limitd/limitd/internal/config"
)

// NewRedisClient connects to Redis. A single address yields a plain client,
// several yield a cluster client; the store code only sees UniversalClient.
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (redis.UniversalClient, error) {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        cfg.Addresses,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}
