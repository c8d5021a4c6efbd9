package ratelimit

import (
	"math"
	"strconv"
	"time"

	"github.com/abduss/filevault/internal/apierr"
	"github.com/abduss/filevault/internal/auth"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Config tunes one limiter instance.
type Config struct {
	Window time.Duration
	Max    int
	// Scope separates counters of limiters sharing a store.
	Scope string
}

// Middleware rejects requests beyond cfg.Max per window with TOO_MANY_REQUESTS.
// Requests are keyed on the authenticated user when present, otherwise on the
// client IP. Store failures let the request through.
func Middleware(store Store, cfg Config, log *zap.Logger) gin.HandlerFunc {
	if store == nil || cfg.Max <= 0 || cfg.Window <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		key := cfg.Scope + ":" + requestKey(c)
		count, resetAt, err := store.Increment(c.Request.Context(), key, cfg.Window)
		if err != nil {
			log.Warn("rate limiter unavailable", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		resetIn := secondsUntil(resetAt)
		remaining := int64(cfg.Max) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("RateLimit-Limit", strconv.Itoa(cfg.Max))
		c.Header("RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		c.Header("RateLimit-Reset", strconv.Itoa(resetIn))

		if count > int64(cfg.Max) {
			c.Header("Retry-After", strconv.Itoa(resetIn))
			apierr.Abort(c, apierr.TooManyRequests("Too many requests, please try again later"))
			return
		}
		c.Next()
	}
}

func requestKey(c *gin.Context) string {
	if user, ok := auth.CurrentUser(c); ok && user.ID != "" {
		return "user:" + user.ID
	}
	return "ip:" + c.ClientIP()
}

func secondsUntil(t time.Time) int {
	d := time.Until(t)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
