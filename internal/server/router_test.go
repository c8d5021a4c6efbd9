package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/abduss/filevault/internal/auth"
	"github.com/abduss/filevault/internal/config"
	"github.com/abduss/filevault/internal/file"
	"github.com/abduss/filevault/internal/health"
	"github.com/abduss/filevault/internal/logger"
	"github.com/abduss/filevault/internal/ratelimit"
	"github.com/abduss/filevault/internal/user"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() config.Config {
	return config.Config{
		Env: "test",
		Server: config.ServerConfig{
			APIPrefix:  "/api",
			CORSOrigin: "*",
		},
		RateLimit: config.RateLimitConfig{Window: time.Minute, Max: 2},
		Auth: config.AuthConfig{
			AccessTokenSecret:  "test-access-secret",
			RefreshTokenSecret: "test-refresh-secret",
			AccessTokenTTL:     time.Minute,
			RefreshTokenTTL:    time.Hour,
			BcryptCost:         4,
		},
		Metrics: config.MetricsConfig{PrometheusPath: "/metrics"},
	}
}

func newTestRouter(checks ...health.Check) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	// Stores are nil: every request in these tests is rejected by the bearer
	// middleware before a service is reached.
	return NewRouter(Dependencies{
		Config:         cfg,
		Health:         health.NewChecker("test", nil, checks...),
		RateLimitStore: ratelimit.NewMemoryStore(0, time.Minute),
		AuthService:    auth.NewService(nil, cfg.Auth),
		UserService:    user.NewService(nil, nil, zap.NewNop()),
		FileService:    file.NewService(nil, nil, zap.NewNop()),
	})
}

func TestHealthEndpoint(t *testing.T) {
	r := newTestRouter(
		health.Check{Name: "database", Run: func(context.Context) error { return nil }},
		health.Check{Name: "storage", Run: func(context.Context) error { return errors.New("bucket missing") }},
	)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body health.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, health.StatusUnhealthy, body.Status)
	assert.Equal(t, "bucket missing", body.Checks["storage"].Message)
	assert.NotEmpty(t, rec.Header().Get(logger.CorrelationIDHeader))
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r := newTestRouter()

	for _, path := range []string{"/api/files/00000000-0000-0000-0000-000000000001", "/api/users/me"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		var body struct {
			Success bool `json:"success"`
			Error   struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.False(t, body.Success)
		assert.Equal(t, "UNAUTHORIZED", body.Error.Code)
	}
}

func TestMetricsRecordErrorStatus(t *testing.T) {
	r := newTestRouter()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/files/00000000-0000-0000-0000-000000000002", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	found := false
	for _, line := range strings.Split(rec.Body.String(), "\n") {
		if strings.HasPrefix(line, `filevault_http_requests_total{method="DELETE",path="/api/files/:id",status="401"}`) {
			found = true
		}
	}
	assert.True(t, found, "401 response not labelled with its status")
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	r := newTestRouter()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"NOT_FOUND"`)
}

func TestCorrelationIDIsEchoed(t *testing.T) {
	r := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(logger.CorrelationIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get(logger.CorrelationIDHeader))
}

func TestAuthRoutesAreRateLimited(t *testing.T) {
	r := newTestRouter()

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		r.ServeHTTP(last, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil))
	}

	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.NotEmpty(t, last.Header().Get("Retry-After"))
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter()

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
