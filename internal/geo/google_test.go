package geo_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cafe-api/internal/geo"
	"github.com/noah-isme/cafe-api/internal/resilience"
)

func newGoogle(t *testing.T, handler http.HandlerFunc) *geo.GoogleClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &geo.GoogleClient{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		HTTP:    resilience.HTTPClient{Client: srv.Client(), MaxAttempts: 2, BaseBackoff: time.Millisecond},
	}
}

func TestGoogleGeocode(t *testing.T) {
	client := newGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/maps/api/geocode/json", r.URL.Path)
		require.Equal(t, "98101", r.URL.Query().Get("address"))
		require.Equal(t, "test-key", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(`{"status":"OK","results":[{"geometry":{"location":{"lat":47.61,"lng":-122.33}}}]}`))
	})

	point, err := client.Geocode(context.Background(), "98101")
	require.NoError(t, err)
	require.Equal(t, geo.Point{Lat: 47.61, Lng: -122.33}, point)
}

func TestGoogleGeocodeZeroResults(t *testing.T) {
	client := newGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
	})
	_, err := client.Geocode(context.Background(), "00000")
	require.ErrorIs(t, err, geo.ErrNoResult)
}

func TestGoogleGeocodeDenied(t *testing.T) {
	client := newGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"REQUEST_DENIED","error_message":"bad key","results":[]}`))
	})
	_, err := client.Geocode(context.Background(), "98101")
	require.Error(t, err)
	require.Contains(t, err.Error(), "REQUEST_DENIED")
}

func TestGoogleDrivingDistance(t *testing.T) {
	client := newGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/maps/api/distancematrix/json", r.URL.Path)
		require.Equal(t, "47.600000,-122.300000", r.URL.Query().Get("origins"))
		require.Equal(t, "driving", r.URL.Query().Get("mode"))
		_, _ = w.Write([]byte(`{"status":"OK","rows":[{"elements":[{"status":"OK","distance":{"text":"12.5 km","value":12500}}]}]}`))
	})

	meters, err := client.DrivingDistance(context.Background(), geo.Point{Lat: 47.6, Lng: -122.3}, geo.Point{Lat: 47.7, Lng: -122.2})
	require.NoError(t, err)
	require.Equal(t, 12500.0, meters)
}

func TestGoogleDrivingDistanceNoRoute(t *testing.T) {
	client := newGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"OK","rows":[{"elements":[{"status":"ZERO_RESULTS"}]}]}`))
	})
	_, err := client.DrivingDistance(context.Background(), geo.Point{}, geo.Point{Lat: 1, Lng: 1})
	require.ErrorIs(t, err, geo.ErrNoResult)
}

func TestGoogleRetriesUpstreamFailure(t *testing.T) {
	calls := 0
	client := newGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"status":"OK","results":[{"geometry":{"location":{"lat":1,"lng":2}}}]}`))
	})
	point, err := client.Geocode(context.Background(), "98101")
	require.NoError(t, err)
	require.Equal(t, geo.Point{Lat: 1, Lng: 2}, point)
	require.Equal(t, 2, calls)
}
