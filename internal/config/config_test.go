package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "uploads", cfg.Storage.PublicBucket)
	assert.Equal(t, "uploads-private", cfg.Storage.PrivateBucket)
	assert.Equal(t, int64(10*1024*1024), cfg.Storage.MaxFileSize)
	assert.Equal(t, 10, cfg.Storage.MaxFiles)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 100, cfg.RateLimit.Max)
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, "/api", cfg.Server.APIPrefix)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("STORAGE_BUCKET", "media")
	t.Setenv("STORAGE_ALLOWED_MIME_TYPES", "image/png, image/jpeg ,")
	t.Setenv("RATE_LIMIT_WINDOW", "60000")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("APP_ENV", "Production")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "media-private", cfg.Storage.PrivateBucket)
	assert.Equal(t, []string{"image/png", "image/jpeg"}, cfg.Storage.AllowedMIMETypes)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.True(t, cfg.Redis.Enabled())
	assert.True(t, cfg.IsProduction())
}

func TestLoadRejectsSharedBucket(t *testing.T) {
	t.Setenv("STORAGE_BUCKET", "same")
	t.Setenv("STORAGE_PRIVATE_BUCKET", "same")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsUnknownLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose")

	_, err := Load()
	require.Error(t, err)
}

func TestMigrateURL(t *testing.T) {
	p := PostgresConfig{URL: "postgres://u:p@db:5432/app?sslmode=disable"}
	assert.Equal(t, "pgx5://u:p@db:5432/app?sslmode=disable", p.MigrateURL())

	p = PostgresConfig{Host: "h", Port: 1, User: "u", Password: "p", Database: "d", SSLMode: "disable"}
	assert.Equal(t, "pgx5://u:p@h:1/d?sslmode=disable", p.MigrateURL())
}
