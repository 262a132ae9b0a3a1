// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// Env is the application environment ("development" or "production"). Production hides error
	// detail from clients and marks the session cookie Secure.
	Env string `mapstructure:"APP_ENV"`
	// DatabaseURL is the Postgres DSN. Empty selects the in-memory store (not allowed in production).
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// JWTSecret is the HMAC secret for HS256 session tokens. Required unless a key pair is configured.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; with JWT_PUBLIC_KEY selects RS256/ES256.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim set on and required of every session token.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTExpiresIn is the session token lifetime (Go duration or days, e.g. "90d").
	JWTExpiresIn string `mapstructure:"JWT_EXPIRES_IN"`
	// JWTCookieExpiresIn is the session cookie lifetime in days.
	JWTCookieExpiresIn int `mapstructure:"JWT_COOKIE_EXPIRES_IN"`

	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// HashWorkers bounds concurrent bcrypt operations; 0 means GOMAXPROCS.
	HashWorkers int `mapstructure:"HASH_WORKERS"`
	// ResetTokenTTL is how long a password reset token stays valid (e.g. "10m").
	ResetTokenTTL string `mapstructure:"RESET_TOKEN_TTL"`

	// QueryDefaultLimit is the page size applied when a list request has no limit.
	QueryDefaultLimit int `mapstructure:"QUERY_DEFAULT_LIMIT"`
	// BodyLimitBytes caps the request body size.
	BodyLimitBytes int `mapstructure:"BODY_LIMIT_BYTES"`

	// MailAPIURL is the transactional mail API endpoint used for password reset mail.
	MailAPIURL string `mapstructure:"MAIL_API_URL"`
	// MailAPIKey authorizes requests to MailAPIURL.
	MailAPIKey string `mapstructure:"MAIL_API_KEY"`
	// MailFrom is the sender address.
	MailFrom string `mapstructure:"MAIL_FROM"`
	// MailDevOutbox keeps mail in memory and exposes GET /api/v1/dev/outbox/:email. Must not be true in production.
	MailDevOutbox bool `mapstructure:"MAIL_DEV_OUTBOX"`

	// OTLPEndpoint is the OpenTelemetry collector endpoint; empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// ServiceName is the OTel service.name resource attribute.
	ServiceName string `mapstructure:"OTEL_SERVICE_NAME"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "account-service")
	v.SetDefault("JWT_EXPIRES_IN", "90d")
	v.SetDefault("JWT_COOKIE_EXPIRES_IN", 90)
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("HASH_WORKERS", 0)
	v.SetDefault("RESET_TOKEN_TTL", "10m")
	v.SetDefault("QUERY_DEFAULT_LIMIT", 100)
	v.SetDefault("BODY_LIMIT_BYTES", 10*1024)
	v.SetDefault("MAIL_API_URL", "")
	v.SetDefault("MAIL_API_KEY", "")
	v.SetDefault("MAIL_FROM", "no-reply@account-service.local")
	v.SetDefault("MAIL_DEV_OUTBOX", false)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "account-service")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.JWTSecret == "" && (cfg.JWTPrivateKey == "" || cfg.JWTPublicKey == "") {
		return nil, errors.New("config: JWT_SECRET or JWT_PRIVATE_KEY and JWT_PUBLIC_KEY must be set")
	}
	if cfg.IsProduction() {
		if cfg.MailDevOutbox {
			return nil, errors.New("config: MAIL_DEV_OUTBOX must not be true when APP_ENV=production")
		}
		if cfg.DatabaseURL == "" {
			return nil, errors.New("config: DATABASE_URL must be set when APP_ENV=production")
		}
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if cfg.QueryDefaultLimit < 1 {
		return nil, errors.New("config: QUERY_DEFAULT_LIMIT must be at least 1")
	}

	return &cfg, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "production")
}

// TokenTTL parses JWTExpiresIn. Returns 90 days if unset or invalid.
func (c *Config) TokenTTL() time.Duration {
	d, err := ParseDuration(c.JWTExpiresIn)
	if err != nil || d <= 0 {
		return 90 * 24 * time.Hour
	}
	return d
}

// CookieTTL returns the session cookie lifetime. Returns 90 days if unset.
func (c *Config) CookieTTL() time.Duration {
	if c.JWTCookieExpiresIn <= 0 {
		return 90 * 24 * time.Hour
	}
	return time.Duration(c.JWTCookieExpiresIn) * 24 * time.Hour
}

// ResetTTL parses ResetTokenTTL. Returns 10m if unset or invalid.
func (c *Config) ResetTTL() time.Duration {
	d, err := ParseDuration(c.ResetTokenTTL)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// ParseDuration is time.ParseDuration that also accepts a whole number of days ("7d").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, err
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}
