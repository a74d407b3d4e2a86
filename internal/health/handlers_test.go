package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cafe-api/internal/health"
)

func ok(context.Context) error { return nil }

type readiness struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func probe(t *testing.T, h health.Handler) (int, readiness) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	var body readiness
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return rr.Code, body
}

func TestLive(t *testing.T) {
	rr := httptest.NewRecorder()
	health.Handler{}.Live(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

func TestReadySuccess(t *testing.T) {
	code, body := probe(t, health.Handler{Checks: map[string]health.Check{"db": ok, "redis": ok}})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", body.Status)
	require.Equal(t, map[string]string{"db": "ok", "redis": "ok"}, body.Checks)
}

func TestReadyFailure(t *testing.T) {
	h := health.Handler{Checks: map[string]health.Check{
		"db":    ok,
		"redis": func(context.Context) error { return errors.New("connection refused") },
	}}
	code, body := probe(t, h)
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "degraded", body.Status)
	require.Equal(t, "connection refused", body.Checks["redis"])
}

func TestReadyTimeout(t *testing.T) {
	h := health.Handler{Timeout: 20 * time.Millisecond, Checks: map[string]health.Check{
		"db": func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}}
	code, body := probe(t, h)
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, context.DeadlineExceeded.Error(), body.Checks["db"])
}

func TestReadinessAfterShutdown(t *testing.T) {
	h := health.Handler{Checks: map[string]health.Check{"db": ok}}
	t.Cleanup(func() { health.SetReady(true) })

	health.SetReady(false)
	code, body := probe(t, h)
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "draining", body.Status)

	health.SetReady(true)
	code, _ = probe(t, h)
	require.Equal(t, http.StatusOK, code)
}
