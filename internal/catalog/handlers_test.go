package catalog_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cafe-api/internal/cache"
	"github.com/noah-isme/cafe-api/internal/catalog"
	"github.com/noah-isme/cafe-api/internal/db"
	"github.com/noah-isme/cafe-api/internal/pricing"
)

type fakeCatalogQueries struct {
	mu         sync.Mutex
	items      map[int64]db.Item
	sold       map[int64]int64
	nextID     int64
	listCalls  int
	priceCalls int
}

func newFakeCatalogQueries() *fakeCatalogQueries {
	f := &fakeCatalogQueries{items: map[int64]db.Item{}, sold: map[int64]int64{}}
	for _, seed := range []struct {
		name, price string
	}{{"Espresso", "2.50"}, {"Latte", "3.50"}, {"Cappuccino", "4.00"}} {
		f.nextID++
		f.items[f.nextID] = db.Item{ID: f.nextID, Name: seed.name, Price: decimal.RequireFromString(seed.price), CreatedAt: time.Now()}
	}
	return f
}

func (f *fakeCatalogQueries) ListItems(context.Context) ([]db.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	out := make([]db.Item, 0, len(f.items))
	for _, item := range f.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeCatalogQueries) GetItem(_ context.Context, id int64) (db.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return db.Item{}, pgx.ErrNoRows
	}
	return item, nil
}

func (f *fakeCatalogQueries) GetItemPrices(_ context.Context, ids []int64) ([]db.ItemPrice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.priceCalls++
	var out []db.ItemPrice
	for _, id := range ids {
		if item, ok := f.items[id]; ok {
			out = append(out, db.ItemPrice{ID: id, Price: item.Price})
		}
	}
	return out, nil
}

func (f *fakeCatalogQueries) CreateItem(_ context.Context, arg db.CreateItemParams) (db.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	item := db.Item{ID: f.nextID, Name: arg.Name, Description: arg.Description, Image: arg.Image, Price: arg.Price, CreatedAt: time.Now()}
	f.items[item.ID] = item
	return item, nil
}

func (f *fakeCatalogQueries) BestSellingItem(context.Context) (db.BestSellerRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var (
		best   int64
		amount int64
	)
	for id, qty := range f.sold {
		if qty > amount || (qty == amount && id < best) {
			best, amount = id, qty
		}
	}
	if amount == 0 {
		return db.BestSellerRow{}, pgx.ErrNoRows
	}
	return db.BestSellerRow{Item: f.items[best], QuantitySold: amount}, nil
}

func newService(t *testing.T, queries *fakeCatalogQueries) (*catalog.Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	svc, err := catalog.NewService(catalog.ServiceConfig{Queries: queries, Cache: cache.NewJSON(rdb, "catalog", time.Minute)})
	require.NoError(t, err)
	return svc, mr
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

type listResponse struct {
	Data []catalog.ItemResponse `json:"data"`
}

type errorResponse struct {
	Error struct {
		Code    string         `json:"code"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func TestCatalogHandlers(t *testing.T) {
	queries := newFakeCatalogQueries()
	svc, _ := newService(t, queries)
	handler := catalog.NewHandler(catalog.HandlerConfig{Service: svc})

	t.Run("list uses cache", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			rec := httptest.NewRecorder()
			handler.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/items", nil))
			require.Equal(t, http.StatusOK, rec.Code)
			var resp listResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			require.Len(t, resp.Data, 3)
			require.Equal(t, "Espresso", resp.Data[0].Name)
			require.Equal(t, "2.50", resp.Data[0].Price)
		}
		require.Equal(t, 1, queries.listCalls)
	})

	t.Run("get item", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.Get(rec, withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/items/2", nil), "id", "2"))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), `"price":"3.50"`)

		rec = httptest.NewRecorder()
		handler.Get(rec, withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/items/99", nil), "id", "99"))
		require.Equal(t, http.StatusNotFound, rec.Code)

		rec = httptest.NewRecorder()
		handler.Get(rec, withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/items/abc", nil), "id", "abc"))
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("create invalidates list", func(t *testing.T) {
		body := `{"name":"Mocha","description":"chocolate espresso","price":"4.25"}`
		rec := httptest.NewRecorder()
		handler.Create(rec, httptest.NewRequest(http.MethodPost, "/api/v1/items", strings.NewReader(body)))
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = httptest.NewRecorder()
		handler.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/items", nil))
		var resp listResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Data, 4)
		require.Equal(t, 2, queries.listCalls)
	})

	t.Run("create rejects bad price", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.Create(rec, httptest.NewRequest(http.MethodPost, "/api/v1/items", strings.NewReader(`{"name":"Tea","price":"1.999"}`)))
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		var resp errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "VALIDATION_FAILED", resp.Error.Code)
	})

	t.Run("best seller", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.BestSeller(rec, httptest.NewRequest(http.MethodGet, "/api/v1/best-seller", nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
		var resp errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "NO_SALES", resp.Error.Code)

		queries.mu.Lock()
		queries.sold[2] = 7
		queries.sold[3] = 2
		queries.mu.Unlock()

		rec = httptest.NewRecorder()
		handler.BestSeller(rec, httptest.NewRequest(http.MethodGet, "/api/v1/best-seller", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var best struct {
			Data catalog.BestSellerResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &best))
		require.Equal(t, "Latte", best.Data.Name)
		require.Equal(t, int64(7), best.Data.QuantitySold)
	})
}

func TestLookupUnitPricesSingleSnapshot(t *testing.T) {
	queries := newFakeCatalogQueries()
	svc, _ := newService(t, queries)

	prices, err := svc.LookupUnitPrices(context.Background(), []int64{1, 3, 1})
	require.NoError(t, err)
	require.Len(t, prices, 2)
	require.True(t, prices[3].Equal(decimal.RequireFromString("4.00")))
	require.Equal(t, 1, queries.priceCalls)
}

func TestLookupUnitPricesUnknownItem(t *testing.T) {
	svc, _ := newService(t, newFakeCatalogQueries())

	_, err := svc.LookupUnitPrices(context.Background(), []int64{1, 999, 998})
	require.ErrorIs(t, err, pricing.ErrUnknownItem)
	var unknown *pricing.UnknownItemError
	require.True(t, errors.As(err, &unknown))
	require.Equal(t, []int64{998, 999}, unknown.IDs)
}

func TestNewServiceRequiresQueries(t *testing.T) {
	_, err := catalog.NewService(catalog.ServiceConfig{})
	require.Error(t, err)
}
