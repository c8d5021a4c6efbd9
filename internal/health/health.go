// Package health aggregates connectivity checks of the service's backends.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultTimeout = 5 * time.Second

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// CheckFunc reports whether one backend is reachable.
type CheckFunc func(ctx context.Context) error

// Check is a named dependency check. A failing optional check degrades the service
// instead of marking it unhealthy.
type Check struct {
	Name     string
	Run      CheckFunc
	Optional bool
}

// Component is the outcome of a single check.
type Component struct {
	Status  string `json:"status"`
	Latency *int64 `json:"latency,omitempty"` // milliseconds
	Message string `json:"message,omitempty"`
}

// Report is the body served on the health endpoint.
type Report struct {
	Status    string               `json:"status"`
	Timestamp time.Time            `json:"timestamp"`
	Version   string               `json:"version,omitempty"`
	Uptime    float64              `json:"uptime"`
	Checks    map[string]Component `json:"checks"`
}

// Checker runs every registered check concurrently under one deadline.
type Checker struct {
	checks  []Check
	version string
	started time.Time
	timeout time.Duration
	log     *zap.Logger
	now     func() time.Time
}

// NewChecker builds a checker. Checks with a nil Run are skipped.
func NewChecker(version string, log *zap.Logger, checks ...Check) *Checker {
	if log == nil {
		log = zap.NewNop()
	}
	active := make([]Check, 0, len(checks))
	for _, c := range checks {
		if c.Run != nil {
			active = append(active, c)
		}
	}
	return &Checker{
		checks:  active,
		version: version,
		started: time.Now(),
		timeout: defaultTimeout,
		log:     log,
		now:     time.Now,
	}
}

// Run executes the checks and aggregates their outcome.
func (h *Checker) Run(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var (
		mu      sync.Mutex
		results = make(map[string]Component, len(h.checks))
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, check := range h.checks {
		check := check
		g.Go(func() error {
			component := runCheck(gctx, check.Run)
			if component.Status != StatusHealthy {
				h.log.Warn("health check failed",
					zap.String("check", check.Name),
					zap.String("message", component.Message),
				)
			}
			mu.Lock()
			results[check.Name] = component
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	now := h.now()
	return Report{
		Status:    h.aggregate(results),
		Timestamp: now.UTC(),
		Version:   h.version,
		Uptime:    now.Sub(h.started).Seconds(),
		Checks:    results,
	}
}

// Names lists the registered checks in order.
func (h *Checker) Names() []string {
	names := make([]string, 0, len(h.checks))
	for _, c := range h.checks {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names
}

// Handler serves the report. Unhealthy services answer 503.
func (h *Checker) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		report := h.Run(c.Request.Context())
		status := http.StatusOK
		if report.Status == StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, report)
	}
}

func (h *Checker) aggregate(results map[string]Component) string {
	status := StatusHealthy
	for _, check := range h.checks {
		if results[check.Name].Status == StatusHealthy {
			continue
		}
		if !check.Optional {
			return StatusUnhealthy
		}
		status = StatusDegraded
	}
	return status
}

func runCheck(ctx context.Context, run CheckFunc) Component {
	start := time.Now()
	if err := run(ctx); err != nil {
		return Component{Status: StatusUnhealthy, Message: err.Error()}
	}
	latency := time.Since(start).Milliseconds()
	return Component{Status: StatusHealthy, Latency: &latency}
}
