// Package ratelimit implements a fixed-window request limiter for gin.
//
// Counters live either in Redis, shared by every instance, or in a bounded
// in-process LRU when no Redis is configured.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// Store counts hits per key inside a fixed window.
type Store interface {
	// Increment records one hit for key and returns the hit count in the
	// current window together with the moment the window ends.
	Increment(ctx context.Context, key string, window time.Duration) (int64, time.Time, error)
}

const defaultMemoryKeys = 10000

type windowEntry struct {
	count   int64
	resetAt time.Time
}

// MemoryStore keeps counters in an expiring LRU. Counts are per instance.
type MemoryStore struct {
	mu      sync.Mutex
	entries *expirable.LRU[string, *windowEntry]
	now     func() time.Time
}

// NewMemoryStore creates a store holding at most maxKeys windows, each
// evicted after ttl. maxKeys <= 0 selects a default.
func NewMemoryStore(maxKeys int, ttl time.Duration) *MemoryStore {
	if maxKeys <= 0 {
		maxKeys = defaultMemoryKeys
	}
	return &MemoryStore{
		entries: expirable.NewLRU[string, *windowEntry](maxKeys, nil, ttl),
		now:     time.Now,
	}
}

func (m *MemoryStore) Increment(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	entry, ok := m.entries.Get(key)
	if !ok || !now.Before(entry.resetAt) {
		entry = &windowEntry{resetAt: now.Add(window)}
		m.entries.Add(key, entry)
	}
	entry.count++
	return entry.count, entry.resetAt, nil
}

// incrementScript starts the expiry on the first hit so a window never slides.
var incrementScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return {n, redis.call('PTTL', KEYS[1])}
`)

// RedisStore keeps counters in Redis so limits hold across instances.
type RedisStore struct {
	client redis.Scripter
	prefix string
	now    func() time.Time
}

// NewRedisStore builds a store whose keys are namespaced by prefix.
func NewRedisStore(client redis.Scripter, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, now: time.Now}
}

func (r *RedisStore) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	res, err := incrementScript.Run(ctx, r.client, []string{r.prefix + key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("rate limit increment: %w", err)
	}
	if len(res) != 2 {
		return 0, time.Time{}, fmt.Errorf("rate limit increment: unexpected reply %v", res)
	}

	ttl := time.Duration(res[1]) * time.Millisecond
	if ttl < 0 {
		ttl = window
	}
	return res[0], r.now().Add(ttl), nil
}
