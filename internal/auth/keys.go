package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// KeySource provides the verification keys of the identity provider.
type KeySource interface {
	Keys(ctx context.Context) (jwk.Set, error)
}

// StaticKeys serves a fixed key set.
type StaticKeys struct {
	Set jwk.Set
}

// Keys returns the configured set.
func (s StaticKeys) Keys(context.Context) (jwk.Set, error) {
	if s.Set == nil {
		return nil, errors.New("auth: no keys configured")
	}
	return s.Set, nil
}

// JWKSCache keeps the provider's JSON Web Key Set fresh in the background.
type JWKSCache struct {
	url   string
	cache *jwk.Cache
}

// NewJWKSCache registers url with a jwk.Cache bound to ctx and performs the first fetch.
// The refresh goroutine stops when ctx is cancelled.
func NewJWKSCache(ctx context.Context, url string, client *http.Client, minRefresh time.Duration) (*JWKSCache, error) {
	if url == "" {
		return nil, errors.New("auth: jwks url is required")
	}
	if minRefresh <= 0 {
		minRefresh = 15 * time.Minute
	}
	opts := []jwk.RegisterOption{jwk.WithMinRefreshInterval(minRefresh)}
	if client != nil {
		opts = append(opts, jwk.WithHTTPClient(client))
	}
	c := jwk.NewCache(ctx)
	if err := c.Register(url, opts...); err != nil {
		return nil, fmt.Errorf("auth: register jwks: %w", err)
	}
	if _, err := c.Refresh(ctx, url); err != nil {
		return nil, fmt.Errorf("auth: fetch jwks: %w", err)
	}
	return &JWKSCache{url: url, cache: c}, nil
}

// Keys returns the cached key set.
func (c *JWKSCache) Keys(ctx context.Context) (jwk.Set, error) {
	set, err := c.cache.Get(ctx, c.url)
	if err != nil {
		return nil, fmt.Errorf("auth: jwks: %w", err)
	}
	return set, nil
}
