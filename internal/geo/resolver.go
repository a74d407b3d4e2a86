package geo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/cafe-api/internal/cache"
	"github.com/noah-isme/cafe-api/internal/obs"
)

var postalCodePattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9 -]{1,9}$`)

var resolverNopLogger = zerolog.Nop()

// NormalizePostalCode trims, upper-cases and collapses inner whitespace.
// Empty or malformed codes yield ErrInvalidPostalCode.
func NormalizePostalCode(raw string) (string, error) {
	code := strings.Join(strings.Fields(strings.ToUpper(raw)), " ")
	if code == "" || !postalCodePattern.MatchString(code) {
		return "", ErrInvalidPostalCode
	}
	return code, nil
}

// Resolver geocodes postal codes through a cache and measures driving distance
// from an origin with the configured Client.
type Resolver struct {
	client Client
	cache  *cache.JSON
	logger *zerolog.Logger
}

// NewResolver builds a Resolver. geocodes may be nil to disable caching.
func NewResolver(client Client, geocodes *cache.JSON, logger *zerolog.Logger) *Resolver {
	return &Resolver{client: client, cache: geocodes, logger: logger}
}

// ResolveDistance returns the driving distance in meters from origin to the postal code.
func (r *Resolver) ResolveDistance(ctx context.Context, origin Point, postalCode string) (float64, error) {
	if r == nil || r.client == nil {
		return 0, errors.New("geo: resolver not configured")
	}
	code, err := NormalizePostalCode(postalCode)
	if err != nil {
		obs.RecordGeoLookup("geocode", "invalid")
		return 0, err
	}
	dest, err := r.geocode(ctx, code)
	if err != nil {
		return 0, err
	}
	meters, err := r.client.DrivingDistance(ctx, origin, dest)
	if err != nil {
		obs.RecordGeoLookup("distance", "error")
		return 0, fmt.Errorf("geo: distance to %s: %w", code, err)
	}
	obs.RecordGeoLookup("distance", "ok")
	return meters, nil
}

func (r *Resolver) geocode(ctx context.Context, code string) (Point, error) {
	var cached Point
	if ok, err := r.cache.Get(ctx, code, &cached); err != nil {
		r.loggerFor(ctx).Warn().Err(err).Str("postal_code", code).Msg("geocode_cache_read_failed")
	} else if ok {
		obs.RecordGeoLookup("geocode", "cache_hit")
		return cached, nil
	}

	point, err := r.client.Geocode(ctx, code)
	if err != nil {
		obs.RecordGeoLookup("geocode", "error")
		return Point{}, fmt.Errorf("geo: geocode %s: %w", code, err)
	}
	obs.RecordGeoLookup("geocode", "ok")
	if err := r.cache.Set(ctx, code, point); err != nil {
		r.loggerFor(ctx).Warn().Err(err).Str("postal_code", code).Msg("geocode_cache_write_failed")
	}
	return point, nil
}

func (r *Resolver) loggerFor(ctx context.Context) *zerolog.Logger {
	if ctxLogger := zerolog.Ctx(ctx); ctxLogger != nil && ctxLogger.GetLevel() != zerolog.Disabled {
		return ctxLogger
	}
	if r.logger == nil {
		return &resolverNopLogger
	}
	return r.logger
}
