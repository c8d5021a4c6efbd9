package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/abduss/filevault/internal/auth"
	"github.com/abduss/filevault/internal/file"
	"github.com/abduss/filevault/internal/health"
	"github.com/abduss/filevault/internal/metrics"
	"github.com/abduss/filevault/internal/objectstore"
	"github.com/abduss/filevault/internal/ratelimit"
	"github.com/abduss/filevault/internal/server"
	"github.com/abduss/filevault/internal/storage"
	"github.com/abduss/filevault/internal/user"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(app *application) *cobra.Command {
	var migrateFirst bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if migrateFirst {
				if err := storage.Migrate(app.cfg.Postgres.MigrateURL(), app.log); err != nil {
					return err
				}
			}
			return runServe(cmd.Context(), app)
		},
	}
	cmd.Flags().BoolVar(&migrateFirst, "migrate", false, "apply database migrations before serving")
	return cmd
}

func runServe(parent context.Context, app *application) error {
	cfg, log := app.cfg, app.log

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	dbPool, err := storage.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer dbPool.Close()

	objects, err := newObjectStore(ctx, app)
	if err != nil {
		return err
	}

	var redisClient *redis.Client
	var limiterStore ratelimit.Store = ratelimit.NewMemoryStore(0, cfg.RateLimit.Window)
	if cfg.Redis.Enabled() {
		redisClient, err = storage.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisClient.Close()
		limiterStore = ratelimit.NewRedisStore(redisClient, "filevault:ratelimit:")
	} else {
		log.Info("REDIS_URL not set, rate limiting is per instance")
	}

	metrics.InitMetrics()
	fileService := file.NewService(file.NewRepository(dbPool), objects, log.Named("file"),
		file.WithObserver(metrics.FileObserver{}),
	)
	authService := auth.NewService(auth.NewRepository(dbPool), cfg.Auth)
	userService := user.NewService(user.NewRepository(dbPool), fileService, log.Named("user"))

	checks := []health.Check{
		{Name: "database", Run: dbPool.Ping},
		{Name: "storage", Run: objects.Ping},
	}
	if redisClient != nil {
		checks = append(checks, health.Check{
			Name:     "cache",
			Optional: true,
			Run:      func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}

	router := server.NewRouter(server.Dependencies{
		Config:         cfg,
		Logger:         log,
		Health:         health.NewChecker(version, log, checks...),
		RateLimitStore: limiterStore,
		AuthService:    authService,
		UserService:    userService,
		FileService:    fileService,
	})

	scheduler, err := file.NewSweepScheduler(cfg.Sweep.Schedule, fileService, cfg.Sweep.PendingAge, log.Named("sweep"))
	if err != nil {
		return err
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("filevault API listening", zap.String("addr", cfg.Server.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Info("shutting down gracefully")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newObjectStore(ctx context.Context, app *application) (*objectstore.Store, error) {
	cfg := app.cfg.Storage

	client, err := storage.NewMinIOClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect object storage: %w", err)
	}

	store := objectstore.New(client, objectstore.Config{
		PublicBucket:  cfg.PublicBucket,
		PrivateBucket: cfg.PrivateBucket,
		Region:        cfg.Region,
		BaseURL:       storage.ObjectBaseURL(cfg),
	})

	// Buckets are ensured lazily on first write as well, so a storage outage
	// at boot only delays bucket setup.
	if err := store.EnsureBuckets(ctx); err != nil {
		app.log.Warn("ensure buckets at startup", zap.Error(err))
	}
	return store, nil
}
