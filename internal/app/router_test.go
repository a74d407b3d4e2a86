package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cafe-api/internal/app"
	"github.com/noah-isme/cafe-api/internal/auth"
	"github.com/noah-isme/cafe-api/internal/catalog"
	"github.com/noah-isme/cafe-api/internal/common"
	"github.com/noah-isme/cafe-api/internal/health"
	"github.com/noah-isme/cafe-api/internal/obs"
	"github.com/noah-isme/cafe-api/internal/order"
	"github.com/noah-isme/cafe-api/internal/ratelimit"
	"github.com/noah-isme/cafe-api/internal/user"
)

type stubVerifier struct{}

func (stubVerifier) Verify(_ context.Context, raw string) (common.Identity, error) {
	if raw != "good" {
		return common.Identity{}, auth.ErrInvalidToken
	}
	return common.Identity{Subject: "auth0|ada", Email: "ada@example.com"}, nil
}

func newRouter(t *testing.T, mutate func(*app.RouterConfig)) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	cfg := app.RouterConfig{
		Logger: zerolog.Nop(),
		Handlers: app.Handlers{
			Catalog: catalog.NewHandler(catalog.HandlerConfig{}),
			Users:   &user.Handler{},
			Orders:  &order.Handler{},
		},
		Auth:      auth.Middleware{Verifier: stubVerifier{}},
		Health:    health.Handler{Checks: map[string]health.Check{"db": func(context.Context) error { return nil }}},
		Metrics:   obs.NewHTTPMetrics("cafe_router_test", nil, reg),
		Gatherer:  reg,
		BodyLimit: 64,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return app.NewRouter(cfg)
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouterOperationalEndpoints(t *testing.T) {
	r := newRouter(t, nil)

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "pong")
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "cafe_router_test_http_requests_total")
}

func TestRouterProtectedRoutesRequireToken(t *testing.T) {
	r := newRouter(t, nil)
	routes := []struct{ method, path string }{
		{http.MethodPost, "/api/v1/items"},
		{http.MethodPost, "/api/v1/verify-user"},
		{http.MethodGet, "/api/v1/me"},
		{http.MethodGet, "/api/v1/me/orders"},
		{http.MethodGet, "/api/v1/me/orders/latest"},
		{http.MethodPost, "/api/v1/orders"},
		{http.MethodGet, "/api/v1/orders/7"},
		{http.MethodPost, "/api/v1/orders/7/items"},
	}
	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			rec := serve(r, httptest.NewRequest(rt.method, rt.path, nil))
			require.Equal(t, http.StatusUnauthorized, rec.Code)
			require.Contains(t, rec.Body.String(), `"UNAUTHORIZED"`)

			req := httptest.NewRequest(rt.method, rt.path, nil)
			req.Header.Set("Authorization", "Bearer bad")
			require.Equal(t, http.StatusUnauthorized, serve(r, req).Code)
		})
	}
}

func TestRouterPassesAuthenticatedRequests(t *testing.T) {
	r := newRouter(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me/orders", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := serve(r, req)
	// reaches the handler, which has no service wired
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "order service not configured")
}

func TestRouterPublicCatalogIgnoresInvalidToken(t *testing.T) {
	r := newRouter(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/items", nil)
	req.Header.Set("Authorization", "Bearer bad")
	rec := serve(r, req)
	require.NotEqual(t, http.StatusUnauthorized, rec.Code)
}

func TestRouterRateLimitsQuote(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	lim, err := ratelimit.New(client, "1-M", "test:router")
	require.NoError(t, err)

	r := newRouter(t, func(cfg *app.RouterConfig) {
		cfg.QuoteLimit = ratelimit.Handler{Limiter: lim}
	})

	first := serve(r, httptest.NewRequest(http.MethodPost, "/api/v1/quote", strings.NewReader(`{}`)))
	require.NotEqual(t, http.StatusTooManyRequests, first.Code)
	require.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))

	second := serve(r, httptest.NewRequest(http.MethodPost, "/api/v1/quote", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestRouterRejectsOversizedBody(t *testing.T) {
	r := newRouter(t, nil)
	body := `{"postalCode":"98101","lines":[` + strings.Repeat(`{"itemId":1,"quantity":1},`, 10) + `]}`
	rec := serve(r, httptest.NewRequest(http.MethodPost, "/api/v1/quote", strings.NewReader(body)))
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRouterCORSPreflight(t *testing.T) {
	r := newRouter(t, func(cfg *app.RouterConfig) {
		cfg.CORSOrigins = []string{"https://cafe.example"}
	})
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/quote", nil)
	req.Header.Set("Origin", "https://cafe.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := serve(r, req)
	require.Equal(t, "https://cafe.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouterPprofRequiresBasicAuth(t *testing.T) {
	plain := newRouter(t, nil)
	require.Equal(t, http.StatusNotFound, serve(plain, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)).Code)

	r := newRouter(t, func(cfg *app.RouterConfig) {
		cfg.PprofUser = "ops"
		cfg.PprofPass = "secret"
	})
	rec := serve(r, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Basic realm=restricted", rec.Header().Get("WWW-Authenticate"))

	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
	req.SetBasicAuth("ops", "secret")
	require.Equal(t, http.StatusOK, serve(r, req).Code)
}
