// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Email providers.
const (
	EmailProviderLog    = "log"
	EmailProviderSMTP   = "smtp"
	EmailProviderResend = "resend"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv      string `env:"APP_ENV" envDefault:"development"`
	AppPort     int    `env:"APP_PORT" envDefault:"8080"`
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`

	// Database (PostgreSQL)
	DatabaseURL    string `env:"DATABASE_URL,required"`
	MigrateOnStart bool   `env:"MIGRATE_ON_START" envDefault:"false"`

	// Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Logging
	LogLevel          string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat         string `env:"LOG_FORMAT" envDefault:"json"`
	LogFile           string `env:"LOG_FILE" envDefault:""`
	LogFileMaxSizeMB  int    `env:"LOG_FILE_MAX_SIZE_MB" envDefault:"100"`
	LogFileMaxBackups int    `env:"LOG_FILE_MAX_BACKUPS" envDefault:"3"`
	LogFileMaxAgeDays int    `env:"LOG_FILE_MAX_AGE_DAYS" envDefault:"28"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"15s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Tokens
	JWTSecret        string        `env:"JWT_SECRET,required"`
	JWTRefreshSecret string        `env:"JWT_REFRESH_SECRET,required"`
	JWTIssuer        string        `env:"JWT_ISSUER" envDefault:"pmt"`
	JWTAccessTTL     time.Duration `env:"JWT_ACCESS_TTL" envDefault:"15m"`
	JWTRefreshTTL    time.Duration `env:"JWT_REFRESH_TTL" envDefault:"168h"`
	ImpersonationTTL time.Duration `env:"IMPERSONATION_TTL" envDefault:"1h"`
	BcryptCost       int           `env:"BCRYPT_COST" envDefault:"10"`

	// Rate limiting
	RateLimitAPIEnabled bool `env:"RATE_LIMIT_API_ENABLED" envDefault:"true"`
	RateLimitAPIRPM     int  `env:"RATE_LIMIT_API_RPM" envDefault:"300"`
	RateLimitAPIBurst   int  `env:"RATE_LIMIT_API_BURST" envDefault:"50"`
	RateLimitAuthRPS    int  `env:"RATE_LIMIT_AUTH_RPS" envDefault:"5"`
	RateLimitAuthBurst  int  `env:"RATE_LIMIT_AUTH_BURST" envDefault:"10"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`

	// Video conferencing
	VideoAppID          string        `env:"VIDEO_APP_ID" envDefault:""`
	VideoAppCertificate string        `env:"VIDEO_APP_CERTIFICATE" envDefault:""`
	VideoTokenTTL       time.Duration `env:"VIDEO_TOKEN_TTL" envDefault:"24h"`

	// Email delivery
	EmailProvider string `env:"EMAIL_PROVIDER" envDefault:"log"`
	EmailFrom     string `env:"EMAIL_FROM" envDefault:"PMT <no-reply@pmt.local>"`
	SMTPHost      string `env:"SMTP_HOST" envDefault:""`
	SMTPPort      int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser      string `env:"SMTP_USER" envDefault:""`
	SMTPPass      string `env:"SMTP_PASS" envDefault:""`
	ResendAPIKey  string `env:"RESEND_API_KEY" envDefault:""`

	// Background workers
	NotifyWorkerEnabled   bool          `env:"NOTIFY_WORKER_ENABLED" envDefault:"true"`
	NotifyPollInterval    time.Duration `env:"NOTIFY_POLL_INTERVAL" envDefault:"5s"`
	NotifyMaxAttempts     int           `env:"NOTIFY_MAX_ATTEMPTS" envDefault:"5"`
	ActivityWorkerEnabled bool          `env:"ACTIVITY_WORKER_ENABLED" envDefault:"true"`
	ReminderInterval      time.Duration `env:"REMINDER_INTERVAL" envDefault:"1h"`

	// Assistant
	AIModelVersion string `env:"AI_MODEL_VERSION" envDefault:"pmt-assistant-1"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// VideoConfigured reports whether meeting video tokens can be issued.
func (c *Config) VideoConfigured() bool {
	return c.VideoAppID != "" && c.VideoAppCertificate != ""
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	switch c.EmailProvider {
	case EmailProviderLog:
	case EmailProviderSMTP:
		if c.SMTPHost == "" {
			return fmt.Errorf("SMTP_HOST is required when EMAIL_PROVIDER=smtp")
		}
	case EmailProviderResend:
		if c.ResendAPIKey == "" {
			return fmt.Errorf("RESEND_API_KEY is required when EMAIL_PROVIDER=resend")
		}
	default:
		return fmt.Errorf("unknown EMAIL_PROVIDER %q", c.EmailProvider)
	}

	if c.JWTSecret == c.JWTRefreshSecret {
		return fmt.Errorf("JWT_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if c.JWTAccessTTL <= 0 || c.JWTRefreshTTL <= 0 {
		return fmt.Errorf("token TTLs must be positive")
	}
	return nil
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// databaseOnly is the subset of configuration needed by the migration runner.
type databaseOnly struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
}

// LoadDatabaseURL reads only DATABASE_URL, for tools that never start the API.
func LoadDatabaseURL() (string, error) {
	var cfg databaseOnly
	if err := env.Parse(&cfg); err != nil {
		return "", fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg.DatabaseURL, nil
}
