package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abduss/filevault/internal/config"
	"github.com/redis/go-redis/v9"
)

const (
	redisConnectAttempts = 3
	redisRetryInterval   = time.Second
)

// NewRedisClient parses cfg.URL (redis:// or rediss://) and pings the server,
// retrying with a linear backoff.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	var lastErr error
	for attempt := 1; attempt <= redisConnectAttempts; attempt++ {
		client := redis.NewClient(opts)
		if lastErr = client.Ping(ctx).Err(); lastErr == nil {
			return client, nil
		}
		_ = client.Close()

		select {
		case <-ctx.Done():
			return nil, errors.Join(ctx.Err(), lastErr)
		case <-time.After(time.Duration(attempt) * redisRetryInterval):
		}
	}
	return nil, fmt.Errorf("connect redis after %d attempts: %w", redisConnectAttempts, lastErr)
}
