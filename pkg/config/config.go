package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/syra-platform/authcore/pkg/observability"
	"github.com/syra-platform/authcore/pkg/store"
)

// Config holds all application configuration.
type Config struct {
	Server Server
	Store  store.MongoConfig
	Redis  Redis
	Auth   Auth
	Grants Grants
	Audit  Audit

	LogLevel       observability.LogLevel
	MetricsEnabled bool
	CORSOrigins    []string
}

// Server holds HTTP server configuration.
type Server struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for probes)
	HealthPort string
}

// Redis holds the connection settings for the shared login rate limiter.
// Leave Addr empty to fall back to the in-process limiter.
type Redis struct {
	Addr     string
	Password string
	DB       int
}

// Auth holds token and session settings.
type Auth struct {
	// SigningSecret signs login tokens. Required, minimum 32 bytes.
	SigningSecret string
	TokenTTL      time.Duration
	CookieName    string
	CookieDomain  string
	CookieSecure  bool

	SessionIdleTimeout    time.Duration
	SessionAbsoluteMaxAge time.Duration

	IdentityCacheSize int
	IdentityCacheTTL  time.Duration
}

// Grants holds approved-access workflow settings.
type Grants struct {
	DefaultDurationHours int
	SweepSchedule        string
}

// Audit holds audit trail settings. FilePath enables the NDJSON mirror next
// to the store-backed trail.
type Audit struct {
	FilePath     string
	FileMaxSize  int64
	FileMaxFiles int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Server: Server{
			Host:            getEnv("AUTHCORE_HOST", "0.0.0.0"),
			Port:            getEnv("AUTHCORE_PORT", "8080"),
			ReadTimeout:     getEnvDuration("AUTHCORE_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("AUTHCORE_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("AUTHCORE_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("AUTHCORE_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("AUTHCORE_HEALTH_PORT", "9090"),
		},
		Store: store.MongoConfig{
			URI:            getEnv("AUTHCORE_MONGO_URI", ""),
			PlatformDB:     getEnv("AUTHCORE_PLATFORM_DB", "syra_platform"),
			LegacyDB:       getEnv("AUTHCORE_LEGACY_DB", "hospital_ops"),
			TenantDBPrefix: getEnv("AUTHCORE_TENANT_DB_PREFIX", "tenant_"),
			MaxPoolSize:    uint64(getEnvInt("AUTHCORE_MONGO_MAX_POOL", 0)),
			ConnectTimeout: getEnvDuration("AUTHCORE_MONGO_TIMEOUT", 10*time.Second),
		},
		Redis: Redis{
			Addr:     getEnv("AUTHCORE_REDIS_ADDR", ""),
			Password: getEnv("AUTHCORE_REDIS_PASSWORD", ""),
			DB:       getEnvInt("AUTHCORE_REDIS_DB", 0),
		},
		Auth: Auth{
			SigningSecret:         getEnv("AUTHCORE_SIGNING_SECRET", ""),
			TokenTTL:              getEnvDuration("AUTHCORE_TOKEN_TTL", 8*time.Hour),
			CookieName:            getEnv("AUTHCORE_COOKIE_NAME", "auth-token"),
			CookieDomain:          getEnv("AUTHCORE_COOKIE_DOMAIN", ""),
			CookieSecure:          getEnvBool("AUTHCORE_COOKIE_SECURE", true),
			SessionIdleTimeout:    getEnvDuration("AUTHCORE_SESSION_IDLE_TIMEOUT", 30*time.Minute),
			SessionAbsoluteMaxAge: getEnvDuration("AUTHCORE_SESSION_MAX_AGE", 8*time.Hour),
			IdentityCacheSize:     getEnvInt("AUTHCORE_IDENTITY_CACHE_SIZE", 2048),
			IdentityCacheTTL:      getEnvDuration("AUTHCORE_IDENTITY_CACHE_TTL", 5*time.Second),
		},
		Grants: Grants{
			DefaultDurationHours: getEnvInt("AUTHCORE_GRANT_DURATION_HOURS", 24),
			SweepSchedule:        getEnv("AUTHCORE_GRANT_SWEEP_SCHEDULE", "@every 5m"),
		},
		Audit: Audit{
			FilePath:     getEnv("AUTHCORE_AUDIT_FILE_PATH", ""),
			FileMaxSize:  getEnvInt64("AUTHCORE_AUDIT_FILE_MAX_SIZE", 0),
			FileMaxFiles: getEnvInt("AUTHCORE_AUDIT_FILE_MAX_FILES", 0),
		},
		LogLevel:       parseLogLevel(getEnv("AUTHCORE_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("AUTHCORE_METRICS_ENABLED", true),
		CORSOrigins:    splitAndTrim(getEnv("AUTHCORE_CORS_ORIGINS", "")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid.
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

	if c.Auth.SigningSecret == "" {
		return fmt.Errorf("AUTHCORE_SIGNING_SECRET is required")
	}
	if len(c.Auth.SigningSecret) < 32 {
		return fmt.Errorf("signing secret must be at least 32 bytes")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}
	if c.Auth.SessionIdleTimeout > c.Auth.SessionAbsoluteMaxAge {
		return fmt.Errorf("session idle timeout cannot exceed the absolute max age")
	}

	if c.Store.URI == "" {
		return fmt.Errorf("AUTHCORE_MONGO_URI is required")
	}
	if c.Store.PlatformDB == "" {
		return fmt.Errorf("platform database name is required")
	}

	if c.Grants.DefaultDurationHours <= 0 {
		return fmt.Errorf("grant duration must be positive")
	}
	return nil
}

// parseLogLevel parses a log level string.
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

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getEnv returns an environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default.
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
