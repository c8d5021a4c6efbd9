package server

import (
	"strings"

	"github.com/abduss/filevault/internal/apierr"
	"github.com/abduss/filevault/internal/auth"
	"github.com/abduss/filevault/internal/config"
	"github.com/abduss/filevault/internal/file"
	"github.com/abduss/filevault/internal/health"
	"github.com/abduss/filevault/internal/logger"
	"github.com/abduss/filevault/internal/metrics"
	"github.com/abduss/filevault/internal/ratelimit"
	"github.com/abduss/filevault/internal/user"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Dependencies groups the services required by the HTTP router.
type Dependencies struct {
	Config         config.Config
	Logger         *zap.Logger
	Health         *health.Checker
	RateLimitStore ratelimit.Store
	AuthService    *auth.Service
	UserService    *user.Service
	FileService    *file.Service
}

// NewRouter builds a Gin engine with foundational middleware and routes.
func NewRouter(deps Dependencies) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	cfg := deps.Config

	metrics.InitMetrics()

	router := gin.New()
	router.Use(apierr.Recovery(log))
	router.Use(logger.Middleware())
	router.Use(logger.RequestLogger(log))
	// Must wrap apierr.Handler so the written error status is observed.
	router.Use(metrics.Middleware())
	router.Use(apierr.Handler(log, cfg.IsProduction()))
	router.Use(cors.New(corsConfig(cfg.Server.CORSOrigin)))

	router.NoRoute(func(c *gin.Context) {
		apierr.Abort(c, apierr.NotFound("Route not found"))
	})

	if deps.Health != nil {
		router.GET("/health", deps.Health.Handler())
	}
	metrics.Register(router, cfg.Metrics.PrometheusPath)

	if deps.AuthService == nil {
		return router
	}

	limit := ratelimit.Config{Window: cfg.RateLimit.Window, Max: cfg.RateLimit.Max}
	api := router.Group(cfg.Server.APIPrefix)

	public := api.Group("")
	public.Use(ratelimit.Middleware(deps.RateLimitStore, withScope(limit, "public"), log))
	auth.RegisterRoutes(public, deps.AuthService)

	protected := api.Group("")
	protected.Use(auth.AuthMiddleware(deps.AuthService))
	protected.Use(ratelimit.Middleware(deps.RateLimitStore, withScope(limit, "api"), log))

	if deps.UserService != nil {
		user.RegisterRoutes(protected, deps.UserService)
	}
	if deps.FileService != nil {
		file.RegisterRoutes(protected, deps.FileService, file.Limits{
			MaxFileSize:      cfg.Storage.MaxFileSize,
			MaxFiles:         cfg.Storage.MaxFiles,
			AllowedMIMETypes: cfg.Storage.AllowedMIMETypes,
		})
	}

	return router
}

func withScope(cfg ratelimit.Config, scope string) ratelimit.Config {
	cfg.Scope = scope
	return cfg
}

func corsConfig(origin string) cors.Config {
	c := cors.DefaultConfig()
	c.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	c.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", logger.CorrelationIDHeader}
	c.ExposeHeaders = []string{
		logger.CorrelationIDHeader,
		"RateLimit-Limit",
		"RateLimit-Remaining",
		"RateLimit-Reset",
		"Retry-After",
	}

	var origins []string
	for _, o := range strings.Split(origin, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}
