package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreCountsWithinWindow(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0)
	store := NewMemoryStore(0, time.Hour)
	store.now = func() time.Time { return now }

	for i := int64(1); i <= 3; i++ {
		count, resetAt, err := store.Increment(context.Background(), "k", time.Minute)
		require.NoError(t, err)
		require.Equal(t, i, count)
		require.Equal(t, now.Add(time.Minute), resetAt)
	}

	count, _, err := store.Increment(context.Background(), "other", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), count, "keys are counted independently")
}

func TestMemoryStoreStartsNewWindow(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0)
	store := NewMemoryStore(0, time.Hour)
	store.now = func() time.Time { return now }

	_, _, err := store.Increment(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	_, _, err = store.Increment(context.Background(), "k", time.Minute)
	require.NoError(t, err)

	now = now.Add(time.Minute)
	count, resetAt, err := store.Increment(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
	require.Equal(t, now.Add(time.Minute), resetAt)
}
