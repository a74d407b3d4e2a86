package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cafe-api/internal/cache"
)

type payload struct {
	Name  string `json:"name"`
	Price string `json:"price"`
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestJSONRoundTripWithTTL(t *testing.T) {
	mr, client := newRedis(t)
	c := cache.NewJSON(client, "catalog", time.Minute)
	ctx := context.Background()

	var got payload
	ok, err := c.Get(ctx, "items:list", &got)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Set(ctx, "items:list", payload{Name: "Latte", Price: "3.50"}))
	require.True(t, mr.Exists("catalog:items:list"))
	require.Equal(t, time.Minute, mr.TTL("catalog:items:list"))

	ok, err = c.Get(ctx, "items:list", &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Latte", got.Name)

	mr.FastForward(2 * time.Minute)
	ok, err = c.Get(ctx, "items:list", &got)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestJSONDelete(t *testing.T) {
	mr, client := newRedis(t)
	c := cache.NewJSON(client, "catalog", time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", payload{Name: "x"}))
	require.NoError(t, c.Delete(ctx, "a"))
	require.False(t, mr.Exists("catalog:a"))
}

func TestJSONDisabled(t *testing.T) {
	var nilCache *cache.JSON
	ok, err := nilCache.Get(context.Background(), "k", &payload{})
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, nilCache.Set(context.Background(), "k", payload{}))

	_, client := newRedis(t)
	off := cache.NewJSON(client, "geo", 0)
	require.NoError(t, off.Set(context.Background(), "k", payload{}))
	ok, err = off.Get(context.Background(), "k", &payload{})
	require.NoError(t, err)
	require.False(t, ok)
}
