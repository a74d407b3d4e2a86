package app

import (
	"crypto/subtle"
	"net/http"
	"net/http/pprof"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/noah-isme/cafe-api/internal/auth"
	"github.com/noah-isme/cafe-api/internal/common"
	"github.com/noah-isme/cafe-api/internal/health"
	"github.com/noah-isme/cafe-api/internal/obs"
	"github.com/noah-isme/cafe-api/internal/ratelimit"
	"github.com/noah-isme/cafe-api/internal/security"
)

// RouterConfig collects everything the HTTP surface needs.
type RouterConfig struct {
	Logger      zerolog.Logger
	Handlers    Handlers
	Auth        auth.Middleware
	Idem        common.Idem
	QuoteLimit  ratelimit.Handler
	Health      health.Handler
	Metrics     *obs.HTTPMetrics
	Gatherer    prometheus.Gatherer
	CORSOrigins []string
	BodyLimit   int64
	HSTS        bool
	Tracing     bool
	// PprofUser enables /debug/pprof behind basic auth when set.
	PprofUser string
	PprofPass string
}

// NewRouter builds the chi router with the shared middleware chain and every API route.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if cfg.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if cfg.Metrics != nil {
		r.Use(obs.HTTPObs{Metrics: cfg.Metrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: cfg.Logger}.Middleware)
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.HSTS}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg.CORSOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(security.BodyLimit{Max: cfg.BodyLimit}.Middleware)

	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		common.JSON(w, http.StatusOK, map[string]string{"message": "pong"})
	})
	r.Get("/health/live", cfg.Health.Live)
	r.Get("/health/ready", cfg.Health.Ready)
	if cfg.Gatherer != nil {
		r.Handle("/metrics", obs.MetricsHandler(cfg.Gatherer))
	}
	if strings.TrimSpace(cfg.PprofUser) != "" {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), cfg.PprofUser, cfg.PprofPass))
	}

	h := cfg.Handlers
	r.Route("/api/v1", func(v chi.Router) {
		v.Use(cfg.Auth.Authenticate)

		v.Get("/items", h.Catalog.List)
		v.Get("/items/{id}", h.Catalog.Get)
		v.Get("/best-seller", h.Catalog.BestSeller)
		v.With(cfg.QuoteLimit.Middleware).Post("/quote", h.Orders.Quote)

		v.Group(func(authR chi.Router) {
			authR.Use(cfg.Auth.RequireAuth)
			authR.Post("/items", h.Catalog.Create)
			authR.Post("/verify-user", h.Users.Verify)
			authR.Get("/me", h.Users.Me)
			authR.Get("/me/orders", h.Orders.ListMine)
			authR.Get("/me/orders/latest", h.Orders.Latest)
			authR.Get("/orders/{id}", h.Orders.Get)

			authR.Group(func(g chi.Router) {
				g.Use(cfg.Idem.Middleware)
				g.Post("/orders", h.Orders.Place)
				g.Post("/orders/{id}/items", h.Orders.AddItem)
			})
		})
	})
	return r
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorised", nil)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
