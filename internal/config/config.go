package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"trendboard/internal/validation"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Environment
	Env string // "development", "production", etc.

	// Server
	ServerAddr string

	// Database
	DatabaseURL string

	// Cache
	RedisURL      string // empty = in-process cache
	CacheDisabled bool

	// Sources
	EStatAppID        string // empty = e-Stat indicators use seed data
	EStatBaseURL      string
	WorldBankBaseURL  string
	SourceTimeout     time.Duration // per attempt
	SourceMaxAttempts int
	SourceBaseDelay   time.Duration
	SourceMaxDelay    time.Duration

	// Catalog
	CatalogFile string // empty = embedded catalog

	// Scheduling
	SyncTimezone    string
	SyncWeekday     string
	SyncHour        int
	EnableScheduler bool

	// Admin
	AdminToken string // when set, /api/admin/* requires a bearer token

	// Observability
	MetricsEnabled bool
	LogLevel       string
	LogFormat      string // "text" or "json"
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Env:              getEnv("ENV", "development"),
		ServerAddr:       getEnv("SERVER_ADDR", ":8787"),
		DatabaseURL:      getEnv("DATABASE_URL", "postgres://localhost:5432/trendboard?sslmode=disable"),
		RedisURL:         getEnv("REDIS_URL", ""),
		CacheDisabled:    getEnv("CACHE_DISABLED", "") != "",
		EStatAppID:       getEnv("ESTAT_APP_ID", ""),
		EStatBaseURL:     getEnv("ESTAT_BASE_URL", "https://api.e-stat.go.jp/rest/3.0/app/json"),
		WorldBankBaseURL: getEnv("WORLDBANK_BASE_URL", "https://api.worldbank.org/v2"),
		CatalogFile:      getEnv("CATALOG_FILE", ""),
		SyncTimezone:     getEnv("SYNC_TIMEZONE", "Asia/Tokyo"),
		SyncWeekday:      getEnv("SYNC_WEEKDAY", "monday"),
		EnableScheduler:  getEnvBool("ENABLE_SCHEDULER", true),
		AdminToken:       getEnv("ADMIN_TOKEN", ""),
		MetricsEnabled:   getEnvBool("METRICS_ENABLED", true),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "text"),
	}

	var err error
	if cfg.SourceTimeout, err = getEnvDuration("SOURCE_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.SourceBaseDelay, err = getEnvDuration("SOURCE_BASE_DELAY", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.SourceMaxDelay, err = getEnvDuration("SOURCE_MAX_DELAY", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.SourceMaxAttempts, err = getEnvInt("SOURCE_MAX_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if cfg.SyncHour, err = getEnvInt("SYNC_HOUR", 16); err != nil {
		return nil, err
	}

	if cfg.SourceMaxAttempts < 1 {
		return nil, fmt.Errorf("SOURCE_MAX_ATTEMPTS must be at least 1, got %d", cfg.SourceMaxAttempts)
	}
	if cfg.SyncHour < 0 || cfg.SyncHour > 23 {
		return nil, fmt.Errorf("SYNC_HOUR must be between 0 and 23, got %d", cfg.SyncHour)
	}
	for key, u := range map[string]string{
		"ESTAT_BASE_URL":     cfg.EStatBaseURL,
		"WORLDBANK_BASE_URL": cfg.WorldBankBaseURL,
	} {
		if ok, msg := validation.ValidateURL(u); !ok {
			return nil, fmt.Errorf("invalid %s: %s", key, msg)
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// IsDev returns true if the environment is set to development.
func (c *Config) IsDev() bool {
	return c.Env == "development" || c.Env == "dev"
}

// IsAdminProtected returns true if admin routes require a token.
func (c *Config) IsAdminProtected() bool {
	return c.AdminToken != ""
}
