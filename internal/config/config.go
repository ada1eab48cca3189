// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"math"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port      string
	Env       string // "development", "staging", "production"
	LogLevel  string
	LogFormat string // "json" or "text"

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses sample data if not set)

	// Audit service
	AuditServiceURL       string
	AuditTimeout          time.Duration
	AuditBreakerThreshold int
	AuditBreakerCooldown  time.Duration

	// Dashboard
	AlertThreshold float64

	// HTTP
	RateLimitRPM int
	CORSOrigin   string

	// Tracing (empty disables)
	OTLPEndpoint string
}

const (
	DefaultPort                  = "8080"
	DefaultEnv                   = "development"
	DefaultLogLevel              = "info"
	DefaultLogFormat             = "json"
	DefaultAuditServiceURL       = "http://localhost:8000"
	DefaultAuditTimeout          = 30 * time.Second
	DefaultAuditBreakerThreshold = 5
	DefaultAuditBreakerCooldown  = 30 * time.Second
	DefaultAlertThreshold        = 70.0
	DefaultRateLimitRPM          = 120
	DefaultCORSOrigin            = "*"
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                  getEnv("PORT", DefaultPort),
		Env:                   getEnv("ENV", DefaultEnv),
		LogLevel:              getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:             getEnv("LOG_FORMAT", DefaultLogFormat),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		AuditServiceURL:       getEnv("AUDIT_SERVICE_URL", DefaultAuditServiceURL),
		AuditTimeout:          getEnvDuration("AUDIT_TIMEOUT", DefaultAuditTimeout),
		AuditBreakerThreshold: int(getEnvInt64("AUDIT_BREAKER_THRESHOLD", DefaultAuditBreakerThreshold)),
		AuditBreakerCooldown:  getEnvDuration("AUDIT_BREAKER_COOLDOWN", DefaultAuditBreakerCooldown),
		AlertThreshold:        getEnvFloat("ALERT_THRESHOLD", DefaultAlertThreshold),
		RateLimitRPM:          int(getEnvInt64("RATE_LIMIT_RPM", DefaultRateLimitRPM)),
		CORSOrigin:            getEnv("CORS_ORIGIN", DefaultCORSOrigin),
		OTLPEndpoint:          os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if p, err := strconv.Atoi(c.Port); err != nil || p <= 0 || p > 65535 {
		return fmt.Errorf("PORT must be a number between 1 and 65535")
	}

	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text")
	}

	u, err := url.Parse(c.AuditServiceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("AUDIT_SERVICE_URL must be an absolute http(s) URL")
	}

	if c.AuditTimeout <= 0 {
		return fmt.Errorf("AUDIT_TIMEOUT must be positive")
	}
	if c.AuditBreakerThreshold <= 0 {
		return fmt.Errorf("AUDIT_BREAKER_THRESHOLD must be positive")
	}
	if c.AuditBreakerCooldown <= 0 {
		return fmt.Errorf("AUDIT_BREAKER_COOLDOWN must be positive")
	}

	if math.IsNaN(c.AlertThreshold) || c.AlertThreshold < 0 || c.AlertThreshold > 100 {
		return fmt.Errorf("ALERT_THRESHOLD must be between 0 and 100")
	}

	if c.RateLimitRPM <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPM must be positive")
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("45s") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
