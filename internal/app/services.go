package app

import (
	"context"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"

	"github.com/noah-isme/cafe-api/internal/auth"
	"github.com/noah-isme/cafe-api/internal/cache"
	"github.com/noah-isme/cafe-api/internal/catalog"
	"github.com/noah-isme/cafe-api/internal/config"
	"github.com/noah-isme/cafe-api/internal/geo"
	"github.com/noah-isme/cafe-api/internal/notify"
	"github.com/noah-isme/cafe-api/internal/order"
	"github.com/noah-isme/cafe-api/internal/pricing"
	"github.com/noah-isme/cafe-api/internal/user"
)

// Handlers groups the HTTP handlers mounted by the router.
type Handlers struct {
	Catalog *catalog.Handler
	Users   *user.Handler
	Orders  *order.Handler
}

// NewHandlers wires catalog, pricing, users and orders over deps.
func NewHandlers(deps *Dependencies) (Handlers, error) {
	cfg := deps.Config
	logger := deps.Logger

	catalogSvc, err := catalog.NewService(catalog.ServiceConfig{
		Queries:   deps.Store,
		Cache:     cache.NewJSON(deps.Redis, "catalog", cfg.Cache.CatalogTTL),
		Validator: deps.Validator,
		Logger:    &logger,
	})
	if err != nil {
		return Handlers{}, fmt.Errorf("initialise catalog service: %w", err)
	}

	resolver := geo.NewResolver(
		NewGeoClient(cfg, logger),
		cache.NewJSON(deps.Redis, "geo", cfg.Geo.CacheTTL),
		&logger,
	)
	engine := &pricing.Engine{
		Catalog:  catalogSvc,
		Distance: resolver,
		Origin:   geo.Point{Lat: cfg.Geo.OriginLat, Lng: cfg.Geo.OriginLng},
		Logger:   &logger,
	}

	users := user.NewService(deps.Store)
	orders, err := order.NewService(order.ServiceConfig{
		Store:     order.PGStore{Store: deps.Store},
		Pricer:    engine,
		Catalog:   catalogSvc,
		Users:     users,
		Notifier:  notify.Enqueuer{Client: deps.Tasks},
		Validator: deps.Validator,
		Logger:    &logger,
	})
	if err != nil {
		return Handlers{}, fmt.Errorf("initialise order service: %w", err)
	}

	return Handlers{
		Catalog: catalog.NewHandler(catalog.HandlerConfig{Service: catalogSvc}),
		Users:   &user.Handler{Service: users},
		Orders:  &order.Handler{Service: orders},
	}, nil
}

// NewAuthMiddleware fetches the identity provider's key set and returns bearer-token middleware.
// The key set keeps refreshing in the background until ctx is cancelled.
func NewAuthMiddleware(ctx context.Context, cfg *config.Config) (auth.Middleware, error) {
	keys, err := auth.NewJWKSCache(ctx, cfg.JWKSURL(), OutboundHTTPClient(), 15*time.Minute)
	if err != nil {
		return auth.Middleware{}, err
	}
	verifier, err := auth.NewVerifier(keys, auth.TokenValidator{
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
		ClockSkew:  cfg.Auth.ClockSkew,
		Algorithms: []jwa.SignatureAlgorithm{jwa.RS256},
	})
	if err != nil {
		return auth.Middleware{}, err
	}
	return auth.Middleware{Verifier: verifier}, nil
}
