package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/cafe-api/internal/common"
	"github.com/noah-isme/cafe-api/internal/obs"
)

var errNoToken = errors.New("auth: token missing")

// TokenVerifier resolves bearer tokens to identities.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (common.Identity, error)
}

// Middleware wires the caller identity into HTTP handlers.
type Middleware struct {
	Verifier TokenVerifier
}

// Authenticate attaches the identity when a valid token is present and lets
// anonymous or invalid requests through untouched.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := m.authenticateRequest(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth rejects requests without a valid bearer token.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := m.authenticateRequest(r)
		if err != nil {
			if !errors.Is(err, errNoToken) && !errors.Is(err, ErrInvalidToken) {
				zerolog.Ctx(r.Context()).Warn().Err(err).Msg("auth_verifier_failed")
			}
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m Middleware) authenticateRequest(r *http.Request) (context.Context, error) {
	if m.Verifier == nil {
		return r.Context(), errors.New("auth: verifier not configured")
	}
	token := bearerToken(r)
	if token == "" {
		return r.Context(), errNoToken
	}
	id, err := m.Verifier.Verify(r.Context(), token)
	if err != nil {
		return r.Context(), err
	}
	obs.SetRequestUser(r.Context(), id.Subject)
	return common.WithIdentity(r.Context(), id), nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
