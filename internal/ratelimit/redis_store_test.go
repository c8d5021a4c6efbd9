//go:build integration

package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisStoreFixedWindow(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		url = "redis://localhost:6379/0"
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	require.NoError(t, client.Ping(ctx).Err())

	store := NewRedisStore(client, "test:ratelimit:")
	key := uuid.NewString()
	t.Cleanup(func() { client.Del(ctx, "test:ratelimit:"+key) })

	first, resetAt, err := store.Increment(ctx, key, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, int64(1), first)
	require.WithinDuration(t, time.Now().Add(2*time.Second), resetAt, time.Second)

	second, _, err := store.Increment(ctx, key, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, int64(2), second)

	require.Eventually(t, func() bool {
		count, _, err := store.Increment(ctx, key, 2*time.Second)
		return err == nil && count == 1
	}, 5*time.Second, 500*time.Millisecond)
}
