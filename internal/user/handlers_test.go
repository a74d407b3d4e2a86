package user_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cafe-api/internal/common"
	"github.com/noah-isme/cafe-api/internal/db"
	"github.com/noah-isme/cafe-api/internal/user"
)

type fakeUserQueries struct {
	mu      sync.Mutex
	users   map[string]db.User
	nextID  int64
	upserts int
}

func newFakeUserQueries() *fakeUserQueries {
	return &fakeUserQueries{users: map[string]db.User{}}
}

func (f *fakeUserQueries) GetUserBySubject(_ context.Context, subject string) (db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[subject]
	if !ok {
		return db.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (f *fakeUserQueries) UpsertUser(_ context.Context, arg db.UpsertUserParams) (db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	u, ok := f.users[arg.AuthSubject]
	if !ok {
		f.nextID++
		u = db.User{ID: f.nextID, AuthSubject: arg.AuthSubject, CreatedAt: time.Now()}
	}
	if arg.Email != "" {
		u.Email = arg.Email
	}
	if arg.Name != "" {
		u.Name = arg.Name
	}
	f.users[arg.AuthSubject] = u
	return u, nil
}

func authed(req *http.Request, id common.Identity) *http.Request {
	return req.WithContext(common.WithIdentity(req.Context(), id))
}

type userResponse struct {
	Data user.User `json:"data"`
}

func TestVerifyCreatesThenReturnsExisting(t *testing.T) {
	queries := newFakeUserQueries()
	h := &user.Handler{Service: user.NewService(queries)}
	id := common.Identity{Subject: "auth0|abc", Email: "ada@example.com"}

	rec := httptest.NewRecorder()
	h.Verify(rec, authed(httptest.NewRequest(http.MethodPost, "/api/v1/verify-user", strings.NewReader(`{"name":"Ada"}`)), id))
	require.Equal(t, http.StatusCreated, rec.Code)
	var created userResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "ada@example.com", created.Data.Email)
	require.Equal(t, "Ada", created.Data.Name)

	rec = httptest.NewRecorder()
	h.Verify(rec, authed(httptest.NewRequest(http.MethodPost, "/api/v1/verify-user", nil), id))
	require.Equal(t, http.StatusOK, rec.Code)
	var again userResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &again))
	require.Equal(t, created.Data.ID, again.Data.ID)
	require.Equal(t, 1, queries.upserts)
}

func TestVerifyRefreshesChangedClaims(t *testing.T) {
	queries := newFakeUserQueries()
	svc := user.NewService(queries)
	_, _, err := svc.Verify(context.Background(), common.Identity{Subject: "auth0|x", Email: "old@example.com"})
	require.NoError(t, err)

	u, created, err := svc.Verify(context.Background(), common.Identity{Subject: "auth0|x", Email: "new@example.com"})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, "new@example.com", u.Email)
}

func TestVerifyRequiresIdentity(t *testing.T) {
	h := &user.Handler{Service: user.NewService(newFakeUserQueries())}
	rec := httptest.NewRecorder()
	h.Verify(rec, httptest.NewRequest(http.MethodPost, "/api/v1/verify-user", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMe(t *testing.T) {
	queries := newFakeUserQueries()
	h := &user.Handler{Service: user.NewService(queries)}

	rec := httptest.NewRecorder()
	h.Me(rec, authed(httptest.NewRequest(http.MethodGet, "/api/v1/me", nil), common.Identity{Subject: "auth0|nobody"}))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "USER_NOT_FOUND")

	_, _, err := h.Service.Verify(context.Background(), common.Identity{Subject: "auth0|me", Name: "Grace"})
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	h.Me(rec, authed(httptest.NewRequest(http.MethodGet, "/api/v1/me", nil), common.Identity{Subject: "auth0|me"}))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Grace")
}
