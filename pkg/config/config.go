package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/gatekeeper/pkg/claimcache"
	"github.com/platinummonkey/gatekeeper/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Claims cache configuration
	Cache CacheConfig

	// Permission catalog configuration
	Catalog CatalogConfig

	// Background sweeper configuration
	Sweeper SweeperConfig

	// Audit trail configuration
	Audit AuditConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string

	// Per-caller rate limiting
	RateLimitEnabled   bool
	RateLimitPerMinute int
	RateLimitBurst     int
}

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// CacheConfig holds claims cache settings. An empty RedisURL selects the
// in-process LRU backend.
type CacheConfig struct {
	RedisURL       string
	RedisPassword  string
	RedisDB        int
	RedisPoolSize  int
	TTL            time.Duration
	BackendTimeout time.Duration
	MemorySize     int
}

// CatalogConfig holds permission catalog settings. An empty FilePath uses
// the built-in catalog.
type CatalogConfig struct {
	FilePath string
	Watch    bool
}

// SweeperConfig holds background cleanup settings
type SweeperConfig struct {
	Schedule            string
	MembershipRetention time.Duration
}

// AuditConfig holds audit trail settings
type AuditConfig struct {
	Enabled   bool
	Retention time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Cache:         loadCacheConfig(),
		Catalog:       loadCatalogConfig(),
		Sweeper:       loadSweeperConfig(),
		Audit:         loadAuditConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("GATEKEEPER_HOST", "0.0.0.0"),
		Port:            getEnv("GATEKEEPER_PORT", "8080"),
		ReadTimeout:     getEnvDuration("GATEKEEPER_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("GATEKEEPER_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("GATEKEEPER_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("GATEKEEPER_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("GATEKEEPER_HEALTH_PORT", "9090"),

		RateLimitEnabled:   getEnvBool("GATEKEEPER_RATE_LIMIT_ENABLED", false),
		RateLimitPerMinute: getEnvInt("GATEKEEPER_RATE_LIMIT_PER_MINUTE", 600),
		RateLimitBurst:     getEnvInt("GATEKEEPER_RATE_LIMIT_BURST", 50),
	}
}

// loadDatabaseConfig loads database configuration from environment
func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:             getEnv("GATEKEEPER_POSTGRES_URL", ""),
		MaxOpenConns:    getEnvInt("GATEKEEPER_POSTGRES_MAX_CONNS", 25),
		MaxIdleConns:    getEnvInt("GATEKEEPER_POSTGRES_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvDuration("GATEKEEPER_POSTGRES_CONN_LIFETIME", 30*time.Minute),
	}
}

// loadCacheConfig loads claims cache configuration from environment
func loadCacheConfig() CacheConfig {
	return CacheConfig{
		RedisURL:       getEnv("GATEKEEPER_REDIS_URL", ""),
		RedisPassword:  getEnv("GATEKEEPER_REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("GATEKEEPER_REDIS_DB", 0),
		RedisPoolSize:  getEnvInt("GATEKEEPER_REDIS_POOL_SIZE", 10),
		TTL:            getEnvDuration("GATEKEEPER_CACHE_TTL", claimcache.DefaultTTL),
		BackendTimeout: getEnvDuration("GATEKEEPER_CACHE_TIMEOUT", claimcache.DefaultBackendTimeout),
		MemorySize:     getEnvInt("GATEKEEPER_CACHE_MEMORY_SIZE", claimcache.DefaultMemorySize),
	}
}

// loadCatalogConfig loads permission catalog configuration from environment
func loadCatalogConfig() CatalogConfig {
	return CatalogConfig{
		FilePath: getEnv("GATEKEEPER_CATALOG_FILE", ""),
		Watch:    getEnvBool("GATEKEEPER_CATALOG_WATCH", false),
	}
}

// loadSweeperConfig loads background sweeper configuration from environment
func loadSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Schedule:            getEnv("GATEKEEPER_SWEEPER_SCHEDULE", "@hourly"),
		MembershipRetention: getEnvDuration("GATEKEEPER_MEMBERSHIP_RETENTION", 30*24*time.Hour),
	}
}

// loadAuditConfig loads audit trail configuration from environment
func loadAuditConfig() AuditConfig {
	return AuditConfig{
		Enabled:   getEnvBool("GATEKEEPER_AUDIT_ENABLED", true),
		Retention: getEnvDuration("GATEKEEPER_AUDIT_RETENTION", 90*24*time.Hour),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       parseLogLevel(getEnv("GATEKEEPER_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("GATEKEEPER_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Server.RateLimitEnabled && c.Server.RateLimitPerMinute <= 0 {
		return fmt.Errorf("rate limit must be positive when enabled")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}
	if c.Cache.BackendTimeout <= 0 {
		return fmt.Errorf("cache backend timeout must be positive")
	}
	if c.Cache.RedisURL == "" && c.Cache.MemorySize <= 0 {
		return fmt.Errorf("cache memory size must be positive when no redis URL is set")
	}

	if c.Catalog.Watch && c.Catalog.FilePath == "" {
		return fmt.Errorf("catalog watch requires a catalog file")
	}

	if c.Sweeper.Schedule == "" {
		return fmt.Errorf("sweeper schedule is required")
	}
	if c.Sweeper.MembershipRetention <= 0 {
		return fmt.Errorf("membership retention must be positive")
	}

	if c.Audit.Enabled && c.Audit.Retention <= 0 {
		return fmt.Errorf("audit retention must be positive")
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
