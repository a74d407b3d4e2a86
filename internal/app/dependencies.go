package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/cafe-api/internal/common"
	"github.com/noah-isme/cafe-api/internal/config"
	"github.com/noah-isme/cafe-api/internal/db"
	"github.com/noah-isme/cafe-api/internal/geo"
	"github.com/noah-isme/cafe-api/internal/resilience"
)

// Dependencies holds the long-lived clients shared by the API and worker processes.
type Dependencies struct {
	Config    *config.Config
	Logger    zerolog.Logger
	DB        *pgxpool.Pool
	Store     *db.Store
	Redis     *redis.Client
	Tasks     *asynq.Client
	Validator *validator.Validate
}

// Open connects Postgres, Redis and the task queue client. Callers must Close the result.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Dependencies, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := db.Connect(connectCtx, cfg.DatabaseURL, 0)
	if err != nil {
		return nil, err
	}

	redisClient, err := NewRedis(connectCtx, cfg, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	connOpt, err := RedisConnOpt(cfg)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, err
	}

	return &Dependencies{
		Config:    cfg,
		Logger:    logger,
		DB:        pool,
		Store:     db.NewStore(pool),
		Redis:     redisClient,
		Tasks:     asynq.NewClient(connOpt),
		Validator: common.NewValidator(),
	}, nil
}

// Close releases every client. It is safe to call on a partially built value.
func (d *Dependencies) Close() error {
	var errs []error
	if d.Tasks != nil {
		if err := d.Tasks.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close task client: %w", err))
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
	return errors.Join(errs...)
}

// NewRedis builds an instrumented Redis client and pings it.
func NewRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisotel.InstrumentMetrics(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis metrics")
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// RedisConnOpt converts REDIS_URL into asynq connection options.
func RedisConnOpt(cfg *config.Config) (asynq.RedisConnOpt, error) {
	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url for tasks: %w", err)
	}
	return opt, nil
}

// NewGeoClient returns the configured distance provider. Google calls go through a
// traced transport, bounded retries and a circuit breaker.
func NewGeoClient(cfg *config.Config, logger zerolog.Logger) geo.Client {
	if cfg.Geo.Provider != "google" {
		return geo.NewMockClient()
	}
	breaker := resilience.NewBreaker(resilience.Settings{
		Target:       "google-maps",
		MinRequests:  cfg.Outbound.BreakerMinRequests,
		FailureRatio: cfg.Outbound.BreakerFailureRate,
		OpenFor:      cfg.Outbound.BreakerOpenFor,
	}).WithLogger(logger)
	return &geo.GoogleClient{
		BaseURL: cfg.Geo.BaseURL,
		APIKey:  cfg.Geo.APIKey,
		HTTP: resilience.HTTPClient{
			Client:      OutboundHTTPClient(),
			Breaker:     breaker,
			BaseBackoff: cfg.Outbound.RetryBase,
			MaxAttempts: cfg.Outbound.RetryMaxAttempts,
			Jitter:      float64(cfg.Outbound.RetryJitterPercent) / 100,
			Timeout:     cfg.Outbound.Timeout,
		},
	}
}

// OutboundHTTPClient is the traced client used for third-party calls.
func OutboundHTTPClient() *http.Client {
	return &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
}
