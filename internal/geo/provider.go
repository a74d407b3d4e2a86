package geo

import (
	"context"
	"errors"
	"math"
)

var (
	// ErrInvalidPostalCode is returned when a postal code is empty or malformed.
	ErrInvalidPostalCode = errors.New("geo: invalid postal code")
	// ErrNoResult is returned when a provider answers without a usable result.
	ErrNoResult = errors.New("geo: no result")
)

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinate lies within WGS84 bounds.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180 &&
		!math.IsNaN(p.Lat) && !math.IsNaN(p.Lng)
}

// Client models a mapping provider capable of geocoding and driving distance lookups.
type Client interface {
	Geocode(ctx context.Context, postalCode string) (Point, error)
	// DrivingDistance returns the route length in meters.
	DrivingDistance(ctx context.Context, origin, dest Point) (float64, error)
}

const earthRadiusMeters = 6371000.0

// HaversineMeters returns the great-circle distance between two points.
func HaversineMeters(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}
