package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/noah-isme/cafe-api/internal/app"
	"github.com/noah-isme/cafe-api/internal/common"
	"github.com/noah-isme/cafe-api/internal/config"
	"github.com/noah-isme/cafe-api/internal/db"
	"github.com/noah-isme/cafe-api/internal/health"
	"github.com/noah-isme/cafe-api/internal/obs"
	"github.com/noah-isme/cafe-api/internal/ratelimit"
)

const metricsNamespace = "cafe"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	obs.MustRegisterDomainMetrics(metricsNamespace, prometheus.DefaultRegisterer)

	tracingEnabled := cfg.TracingExporter != "none" && cfg.TracingExporter != "off"
	shutdownTracer, err := obs.InitTracer(ctx, obs.TracingConfig{
		ServiceName:   "cafe-api",
		Endpoint:      cfg.TracingEndpoint,
		Exporter:      cfg.TracingExporter,
		SamplingRatio: cfg.TracingSampling,
		Environment:   cfg.AppEnv,
	})
	if err != nil {
		logger.Error().Err(err).Msg("initialise tracing")
		tracingEnabled = false
	} else {
		defer func() {
			if err := shutdownTracer(context.Background()); err != nil {
				logger.Error().Err(err).Msg("shutdown tracer")
			}
		}()
	}

	if cfg.RunMigrations {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
	}

	deps, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open dependencies")
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error().Err(err).Msg("close dependencies")
		}
	}()

	handlers, err := app.NewHandlers(deps)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise services")
	}

	authMiddleware, err := app.NewAuthMiddleware(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth")
	}

	quoteLimiter, err := ratelimit.New(deps.Redis, cfg.QuoteRateLimit, "ratelimit:quote")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise quote rate limit")
	}

	router := app.NewRouter(app.RouterConfig{
		Logger:   logger,
		Handlers: handlers,
		Auth:     authMiddleware,
		Idem:     common.Idem{R: deps.Redis, TTL: cfg.IdempotencyTTL},
		QuoteLimit: ratelimit.Handler{
			Limiter: quoteLimiter,
			OnError: func(err error) { logger.Warn().Err(err).Msg("quote_rate_limit_store_failed") },
		},
		Health: health.Handler{
			Checks: map[string]health.Check{
				"db":    deps.DB.Ping,
				"redis": func(ctx context.Context) error { return deps.Redis.Ping(ctx).Err() },
			},
			Timeout: 500 * time.Millisecond,
		},
		Metrics:     obs.NewHTTPMetrics(metricsNamespace, nil, prometheus.DefaultRegisterer),
		Gatherer:    prometheus.DefaultGatherer,
		CORSOrigins: cfg.CORSAllowedOrigins,
		BodyLimit:   cfg.BodyLimitBytes,
		HSTS:        cfg.IsProduction(),
		Tracing:     tracingEnabled,
		PprofUser:   envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", ""),
		PprofPass:   envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", ""),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	<-ctx.Done()
	shutdown(srv, logger)
}

// shutdown flips readiness first so load balancers drain the instance, then stops the server.
func shutdown(srv *http.Server, logger zerolog.Logger) {
	health.SetReady(false)
	logger.Info().Msg("server draining")
	time.Sleep(envDuration("SHUTDOWN_DRAIN_DELAY", 2*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server shutdown")
		return
	}
	logger.Info().Msg("server stopped")
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}
