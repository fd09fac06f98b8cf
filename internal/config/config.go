// Package config loads secretvault configuration from the environment and an optional .env file using Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrateOnStart  bool
}

// EncryptionConfig holds the process-wide secret used by the secret codec.
type EncryptionConfig struct {
	Key string
}

// IdentityConfig holds identity provider settings.
type IdentityConfig struct {
	SecretKey         string   // bearer credential for the provider's backend API
	APIURL            string   // e.g. https://api.clerk.com/v1
	Issuer            string   // session token iss, e.g. https://clerk.example.com
	JWKSURL           string   // defaults to Issuer + /.well-known/jwks.json
	AuthorizedParties []string // allowed azp values; empty disables the check
	SignInURL         string   // redirect target for unauthenticated browser navigations
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string
	Format string
}

// Config holds all application configuration loaded from the environment.
type Config struct {
	Port            string
	Environment     string
	Log             LogConfig
	Database        DatabaseConfig
	Encryption      EncryptionConfig
	Identity        IdentityConfig
	ListingCacheTTL time.Duration
	ShutdownTimeout time.Duration
}

// env mirrors the flat environment keys.
type env struct {
	Port                   string        `mapstructure:"PORT"`
	Environment            string        `mapstructure:"ENV"`
	LogLevel               string        `mapstructure:"LOG_LEVEL"`
	LogFormat              string        `mapstructure:"LOG_FORMAT"`
	DatabaseURL            string        `mapstructure:"DATABASE_URL"`
	DBMaxOpenConns         int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns         int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetime      int           `mapstructure:"DB_CONN_MAX_LIFETIME"`
	MigrateOnStart         bool          `mapstructure:"MIGRATE_ON_START"`
	EncryptionKey          string        `mapstructure:"ENCRYPTION_KEY"`
	ClerkSecretKey         string        `mapstructure:"CLERK_SECRET_KEY"`
	ClerkAPIURL            string        `mapstructure:"CLERK_API_URL"`
	ClerkIssuer            string        `mapstructure:"CLERK_ISSUER"`
	ClerkJWKSURL           string        `mapstructure:"CLERK_JWKS_URL"`
	ClerkAuthorizedParties string        `mapstructure:"CLERK_AUTHORIZED_PARTIES"`
	SignInURL              string        `mapstructure:"SIGN_IN_URL"`
	ListingCacheTTL        time.Duration `mapstructure:"LISTING_CACHE_TTL"`
	ShutdownTimeout        time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
}

// Load reads .env (if present), then the environment, and validates the result.
// It fails fast with one error naming every missing required value.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // a missing .env is fine

	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", 300)
	v.SetDefault("MIGRATE_ON_START", true)
	v.SetDefault("ENCRYPTION_KEY", "")
	v.SetDefault("CLERK_SECRET_KEY", "")
	v.SetDefault("CLERK_API_URL", "https://api.clerk.com/v1")
	v.SetDefault("CLERK_ISSUER", "")
	v.SetDefault("CLERK_JWKS_URL", "")
	v.SetDefault("CLERK_AUTHORIZED_PARTIES", "")
	v.SetDefault("SIGN_IN_URL", "/")
	v.SetDefault("LISTING_CACHE_TTL", "30s")
	v.SetDefault("SHUTDOWN_TIMEOUT", "30s")

	var e env
	if err := v.Unmarshal(&e); err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}

	var missing []string
	if strings.TrimSpace(e.DatabaseURL) == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if strings.TrimSpace(e.EncryptionKey) == "" {
		missing = append(missing, "ENCRYPTION_KEY")
	}
	if strings.TrimSpace(e.ClerkSecretKey) == "" {
		missing = append(missing, "CLERK_SECRET_KEY")
	}
	if strings.TrimSpace(e.ClerkIssuer) == "" {
		missing = append(missing, "CLERK_ISSUER")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %v", missing)
	}

	if e.Environment != "development" && e.Environment != "staging" && e.Environment != "production" {
		return nil, fmt.Errorf("invalid ENV value %q: must be development, staging, or production", e.Environment)
	}

	if err := validateDatabaseURL(e.DatabaseURL); err != nil {
		return nil, fmt.Errorf("invalid DATABASE_URL: %w", err)
	}

	issuer := strings.TrimRight(strings.TrimSpace(e.ClerkIssuer), "/")
	if err := validateHTTPURL(issuer); err != nil {
		return nil, fmt.Errorf("invalid CLERK_ISSUER: %w", err)
	}

	apiURL := strings.TrimRight(strings.TrimSpace(e.ClerkAPIURL), "/")
	if err := validateHTTPURL(apiURL); err != nil {
		return nil, fmt.Errorf("invalid CLERK_API_URL: %w", err)
	}

	jwksURL := strings.TrimSpace(e.ClerkJWKSURL)
	if jwksURL == "" {
		jwksURL = issuer + "/.well-known/jwks.json"
	}
	if err := validateHTTPURL(jwksURL); err != nil {
		return nil, fmt.Errorf("invalid CLERK_JWKS_URL: %w", err)
	}

	if e.ListingCacheTTL < 0 {
		return nil, fmt.Errorf("invalid LISTING_CACHE_TTL %s: must not be negative", e.ListingCacheTTL)
	}
	if e.ShutdownTimeout <= 0 {
		e.ShutdownTimeout = 30 * time.Second
	}

	return &Config{
		Port:        e.Port,
		Environment: e.Environment,
		Log: LogConfig{
			Level:  e.LogLevel,
			Format: e.LogFormat,
		},
		Database: DatabaseConfig{
			URL:             e.DatabaseURL,
			MaxOpenConns:    positiveOr(e.DBMaxOpenConns, 25),
			MaxIdleConns:    positiveOr(e.DBMaxIdleConns, 5),
			ConnMaxLifetime: time.Duration(positiveOr(e.DBConnMaxLifetime, 300)) * time.Second,
			MigrateOnStart:  e.MigrateOnStart,
		},
		Encryption: EncryptionConfig{
			Key: e.EncryptionKey,
		},
		Identity: IdentityConfig{
			SecretKey:         strings.TrimSpace(e.ClerkSecretKey),
			APIURL:            apiURL,
			Issuer:            issuer,
			JWKSURL:           jwksURL,
			AuthorizedParties: splitList(e.ClerkAuthorizedParties),
			SignInURL:         e.SignInURL,
		},
		ListingCacheTTL: e.ListingCacheTTL,
		ShutdownTimeout: e.ShutdownTimeout,
	}, nil
}

// LoadDatabase reads only the database settings. Used by operator commands
// (migrations, role changes) that never touch secrets or the identity provider.
func LoadDatabase() (DatabaseConfig, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig()
	v.AutomaticEnv()

	dbURL := strings.TrimSpace(v.GetString("DATABASE_URL"))
	if dbURL == "" {
		return DatabaseConfig{}, fmt.Errorf("missing required environment variables: [DATABASE_URL]")
	}
	if err := validateDatabaseURL(dbURL); err != nil {
		return DatabaseConfig{}, fmt.Errorf("invalid DATABASE_URL: %w", err)
	}

	return DatabaseConfig{
		URL:             dbURL,
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	}, nil
}

// validateDatabaseURL ensures the database URL is a valid PostgreSQL connection string.
func validateDatabaseURL(dbURL string) error {
	parsed, err := url.Parse(dbURL)
	if err != nil {
		return fmt.Errorf("malformed URL: %w", err)
	}

	if parsed.Scheme != "postgres" && parsed.Scheme != "postgresql" {
		return fmt.Errorf("URL must use postgres:// or postgresql:// scheme, got %q", parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("URL must include a host")
	}

	return nil
}

func validateHTTPURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("malformed URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL must use http or https scheme")
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL must include a host")
	}
	return nil
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
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

func positiveOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
