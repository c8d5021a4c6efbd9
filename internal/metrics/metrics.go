// Package metrics exposes Prometheus instrumentation for the HTTP layer and
// file operations.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	initOnce sync.Once

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "filevault",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, route and status.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "filevault",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	fileOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "filevault",
			Name:      "file_operations_total",
			Help:      "File service operations by kind and outcome.",
		},
		[]string{"operation", "outcome"},
	)
)

// InitMetrics registers the collectors with the default registry. It is safe
// to call more than once.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, fileOperationsTotal)
	})
}

// Register attaches the Prometheus metrics endpoint to the router.
func Register(router *gin.Engine, path string) {
	router.GET(path, gin.WrapH(promhttp.Handler()))
}

// Middleware records request counts and latency. Routes are labelled by their
// template so path parameters do not explode cardinality.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// FileObserver counts file service operations.
type FileObserver struct{}

func (FileObserver) ObserveFileOperation(operation, outcome string) {
	fileOperationsTotal.WithLabelValues(operation, outcome).Inc()
}
