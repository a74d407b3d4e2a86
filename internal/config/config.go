package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string
	LogFormat          string
	LogLevel           string
	RunMigrations      bool
	BodyLimitBytes     int64

	Auth     AuthConfig
	Geo      GeoConfig
	Outbound OutboundConfig
	Cache    CacheConfig

	IdempotencyTTL    time.Duration
	QuoteRateLimit    string
	WorkerConcurrency int
	NotifyEmailFrom   string

	TracingExporter string
	TracingEndpoint string
	TracingSampling float64
}

// AuthConfig describes the identity provider whose tokens the API accepts.
type AuthConfig struct {
	Issuer    string
	Audience  string
	JWKSURL   string
	ClockSkew time.Duration
}

// GeoConfig selects the mapping provider and the store location deliveries start from.
type GeoConfig struct {
	Provider  string
	APIKey    string
	BaseURL   string
	OriginLat float64
	OriginLng float64
	CacheTTL  time.Duration
}

// OutboundConfig tunes retries and the circuit breaker around provider calls.
type OutboundConfig struct {
	Timeout            time.Duration
	RetryMaxAttempts   int
	RetryBase          time.Duration
	RetryJitterPercent int
	BreakerMinRequests int
	BreakerFailureRate float64
	BreakerOpenFor     time.Duration
}

// CacheConfig holds Redis cache lifetimes.
type CacheConfig struct {
	CatalogTTL time.Duration
}

// Load reads configuration from environment variables and an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        strings.TrimSpace(k.String("DATABASE_URL")),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		LogFormat:          valueOrDefault(k.String("LOG_FORMAT"), "json"),
		LogLevel:           valueOrDefault(k.String("LOG_LEVEL"), "info"),
		RunMigrations:      parseBool(k.String("RUN_MIGRATIONS"), true),
		BodyLimitBytes:     int64(parseInt(k.String("BODY_LIMIT_BYTES"), 1<<20)),
		Auth: AuthConfig{
			Issuer:    strings.TrimSpace(k.String("AUTH_ISSUER")),
			Audience:  strings.TrimSpace(k.String("AUTH_AUDIENCE")),
			JWKSURL:   strings.TrimSpace(k.String("AUTH_JWKS_URL")),
			ClockSkew: parseDuration(k.String("AUTH_CLOCK_SKEW"), "60s"),
		},
		Geo: GeoConfig{
			Provider:  strings.ToLower(valueOrDefault(k.String("GEO_PROVIDER"), "mock")),
			APIKey:    strings.TrimSpace(k.String("GOOGLE_MAPS_API_KEY")),
			BaseURL:   strings.TrimSpace(k.String("GEO_BASE_URL")),
			OriginLat: parseFloat(k.String("STORE_ORIGIN_LAT"), 47.6097),
			OriginLng: parseFloat(k.String("STORE_ORIGIN_LNG"), -122.3422),
			CacheTTL:  parseDuration(k.String("GEO_CACHE_TTL"), "24h"),
		},
		Outbound: OutboundConfig{
			Timeout:            parseDuration(k.String("OUTBOUND_TIMEOUT"), "3s"),
			RetryMaxAttempts:   parseInt(k.String("RETRY_MAX_ATTEMPTS"), 3),
			RetryBase:          parseDuration(k.String("RETRY_BASE"), "100ms"),
			RetryJitterPercent: parseInt(k.String("RETRY_JITTER_PERCENT"), 20),
			BreakerMinRequests: parseInt(k.String("CIRCUIT_GEO_MIN_REQ"), 10),
			BreakerFailureRate: parseFloat(k.String("CIRCUIT_GEO_FAILURE_RATE"), 0.5),
			BreakerOpenFor:     parseDuration(k.String("CIRCUIT_GEO_OPEN_FOR"), "30s"),
		},
		Cache: CacheConfig{
			CatalogTTL: parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
		},
		IdempotencyTTL:    parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		QuoteRateLimit:    valueOrDefault(k.String("QUOTE_RATE_LIMIT"), "30-M"),
		WorkerConcurrency: parseInt(k.String("WORKER_CONCURRENCY"), 5),
		NotifyEmailFrom:   valueOrDefault(k.String("NOTIFY_EMAIL_FROM"), "orders@cafe.local"),
		TracingExporter:   valueOrDefault(k.String("OTEL_TRACES_EXPORTER"), "none"),
		TracingEndpoint:   strings.TrimSpace(k.String("OTEL_EXPORTER_OTLP_ENDPOINT")),
		TracingSampling:   parseFloat(k.String("OTEL_SAMPLING_RATIO"), 1),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.RedisURL == "" {
		errs = append(errs, errors.New("REDIS_URL is required"))
	}
	if c.Auth.Issuer == "" {
		errs = append(errs, errors.New("AUTH_ISSUER is required"))
	}
	if c.Auth.Audience == "" {
		errs = append(errs, errors.New("AUTH_AUDIENCE is required"))
	}
	switch c.Geo.Provider {
	case "mock":
	case "google":
		if c.Geo.APIKey == "" {
			errs = append(errs, errors.New("GOOGLE_MAPS_API_KEY is required when GEO_PROVIDER=google"))
		}
	default:
		errs = append(errs, fmt.Errorf("GEO_PROVIDER must be google or mock, got %q", c.Geo.Provider))
	}
	if c.Geo.OriginLat < -90 || c.Geo.OriginLat > 90 || c.Geo.OriginLng < -180 || c.Geo.OriginLng > 180 {
		errs = append(errs, errors.New("STORE_ORIGIN_LAT/STORE_ORIGIN_LNG are out of range"))
	}
	if c.Outbound.BreakerFailureRate <= 0 || c.Outbound.BreakerFailureRate > 1 {
		errs = append(errs, errors.New("CIRCUIT_GEO_FAILURE_RATE must be in (0,1]"))
	}
	return errors.Join(errs...)
}

// JWKSURL returns the configured key set location, defaulting to the issuer's well-known path.
func (c *Config) JWKSURL() string {
	if c.Auth.JWKSURL != "" {
		return c.Auth.JWKSURL
	}
	return strings.TrimRight(c.Auth.Issuer, "/") + "/.well-known/jwks.json"
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	d, err := time.ParseDuration(valueOrDefault(value, fallback))
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

// LoadForTests allows tests to override environment variables and restores them afterwards.
// An empty value unsets the variable for the duration of the load.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]*string, len(env))
	for key := range env {
		if v, ok := os.LookupEnv(key); ok {
			original[key] = &v
		} else {
			original[key] = nil
		}
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]*string) error {
	var errs []error
	for key, value := range values {
		var err error
		if value == nil {
			err = os.Unsetenv(key)
		} else {
			err = os.Setenv(key, *value)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}
