package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates runtime configuration for the filevault API.
type Config struct {
	Env       string
	Server    ServerConfig
	Postgres  PostgresConfig
	Storage   StorageConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Auth      AuthConfig
	Metrics   MetricsConfig
	Sweep     SweepConfig
	LogLevel  string
}

// IsProduction reports whether internal error details must be hidden from clients.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// ServerConfig parameterizes the HTTP server.
type ServerConfig struct {
	Host         string
	Port         int
	APIPrefix    string
	CORSOrigin   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Address returns the listen address in host:port form.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PostgresConfig contains PostgreSQL connection details.
// URL takes precedence over the individual fields when set.
type PostgresConfig struct {
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DSN returns the PostgreSQL DSN string.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// MigrateURL returns the DSN in the pgx5:// form expected by golang-migrate.
func (p PostgresConfig) MigrateURL() string {
	dsn := p.DSN()
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + strings.TrimPrefix(dsn, prefix)
		}
	}
	return dsn
}

// StorageConfig carries S3-compatible storage connection and upload limits.
type StorageConfig struct {
	Endpoint         string
	AccessKeyID      string
	SecretAccessKey  string
	PublicBucket     string
	PrivateBucket    string
	UseSSL           bool
	Region           string
	PublicURL        string
	MaxFileSize      int64
	MaxFiles         int
	AllowedMIMETypes []string
}

// RedisConfig is optional; an empty URL disables Redis entirely.
type RedisConfig struct {
	URL string
}

// Enabled reports whether a Redis URL was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != ""
}

// RateLimitConfig tunes the fixed-window limiter.
type RateLimitConfig struct {
	Window time.Duration
	Max    int
}

// AuthConfig groups authentication-related settings.
type AuthConfig struct {
	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	BcryptCost         int
}

// MetricsConfig groups observability settings.
type MetricsConfig struct {
	PrometheusPath string
}

// SweepConfig controls reconciliation of abandoned uploads.
type SweepConfig struct {
	Schedule   string
	PendingAge time.Duration
}

// Load reads configuration values from environment variables, applying defaults.
func Load() (Config, error) {
	publicBucket := getString("STORAGE_BUCKET", "uploads")

	cfg := Config{
		Env:      strings.ToLower(getString("APP_ENV", "development")),
		LogLevel: strings.ToLower(getString("LOG_LEVEL", "info")),
		Server: ServerConfig{
			Host:         getString("HTTP_HOST", "0.0.0.0"),
			Port:         getInt("HTTP_PORT", 3001),
			APIPrefix:    getString("API_PREFIX", "/api"),
			CORSOrigin:   getString("CORS_ORIGIN", "*"),
			ReadTimeout:  getDuration("HTTP_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDuration("HTTP_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:  getDuration("HTTP_IDLE_TIMEOUT", 120*time.Second),
		},
		Postgres: PostgresConfig{
			URL:      getString("DATABASE_URL", ""),
			Host:     getString("POSTGRES_HOST", "localhost"),
			Port:     getInt("POSTGRES_PORT", 5432),
			User:     getString("POSTGRES_USER", "filevault"),
			Password: getString("POSTGRES_PASSWORD", "change-me"),
			Database: getString("POSTGRES_DB", "filevault"),
			SSLMode:  strings.ToLower(getString("POSTGRES_SSL_MODE", "disable")),
		},
		Storage: StorageConfig{
			Endpoint:         getString("STORAGE_ENDPOINT", "localhost:9000"),
			AccessKeyID:      getString("STORAGE_ACCESS_KEY", "minioadmin"),
			SecretAccessKey:  getString("STORAGE_SECRET_KEY", "minioadmin"),
			PublicBucket:     publicBucket,
			PrivateBucket:    getString("STORAGE_PRIVATE_BUCKET", publicBucket+"-private"),
			UseSSL:           getBool("STORAGE_USE_SSL", false),
			Region:           getString("STORAGE_REGION", "us-east-1"),
			PublicURL:        strings.TrimRight(getString("STORAGE_PUBLIC_URL", ""), "/"),
			MaxFileSize:      getInt64("STORAGE_MAX_FILE_SIZE", 10*1024*1024),
			MaxFiles:         getInt("STORAGE_MAX_FILES", 10),
			AllowedMIMETypes: getList("STORAGE_ALLOWED_MIME_TYPES"),
		},
		Redis: RedisConfig{
			URL: getString("REDIS_URL", ""),
		},
		RateLimit: RateLimitConfig{
			Window: getDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
			Max:    getInt("RATE_LIMIT_MAX", 100),
		},
		Auth: loadAuthConfig(),
		Metrics: MetricsConfig{
			PrometheusPath: getString("METRICS_PATH", "/metrics"),
		},
		Sweep: SweepConfig{
			Schedule:   getString("SWEEP_SCHEDULE", "@every 15m"),
			PendingAge: getDuration("SWEEP_PENDING_AGE", time.Hour),
		},
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	if c.Storage.PublicBucket == c.Storage.PrivateBucket {
		return fmt.Errorf("STORAGE_BUCKET and STORAGE_PRIVATE_BUCKET must differ, both are %q", c.Storage.PublicBucket)
	}
	if c.Storage.MaxFileSize <= 0 {
		return fmt.Errorf("STORAGE_MAX_FILE_SIZE must be positive")
	}
	if c.Storage.MaxFiles <= 0 {
		return fmt.Errorf("STORAGE_MAX_FILES must be positive")
	}
	if c.RateLimit.Window <= 0 || c.RateLimit.Max <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW and RATE_LIMIT_MAX must be positive")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported LOG_LEVEL %q", c.LogLevel)
	}
	return nil
}

func getString(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getInt64(key string, fallback int64) int64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.ToLower(strings.TrimSpace(val))
		switch val {
		case "1", "true", "t", "yes", "y":
			return true
		case "0", "false", "f", "no", "n":
			return false
		}
	}
	return fallback
}

// getDuration accepts Go duration strings ("15m") as well as bare milliseconds ("900000").
func getDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if ms, err := strconv.ParseInt(val, 10, 64); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return fallback
}

func getList(key string) []string {
	val, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func loadAuthConfig() AuthConfig {
	cost := getInt("AUTH_BCRYPT_COST", 12)
	if cost < 4 || cost > 31 {
		cost = 12
	}

	return AuthConfig{
		AccessTokenSecret:  getString("JWT_SECRET", "change-me-to-a-32-byte-secret"),
		RefreshTokenSecret: getString("JWT_REFRESH_SECRET", "change-me-to-a-64-byte-secret"),
		AccessTokenTTL:     getDuration("AUTH_ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:    getDuration("AUTH_REFRESH_TOKEN_TTL", 720*time.Hour),
		BcryptCost:         cost,
	}
}
