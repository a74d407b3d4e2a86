package geo

import (
	"context"
	"strings"
)

// MockClient resolves postal codes from a fixed table and measures straight-line
// distance. It is used for development and tests.
type MockClient struct {
	Locations map[string]Point
	// RoadFactor scales haversine meters to approximate a driving route; 0 means 1.
	RoadFactor float64
}

// DefaultMockLocations covers a handful of Seattle-area postal codes around the default store origin.
var DefaultMockLocations = map[string]Point{
	"98101": {Lat: 47.6101, Lng: -122.3344},
	"98109": {Lat: 47.6323, Lng: -122.3467},
	"98115": {Lat: 47.6849, Lng: -122.2968},
	"98004": {Lat: 47.6170, Lng: -122.2015},
	"98052": {Lat: 47.6740, Lng: -122.1215},
	"98032": {Lat: 47.3880, Lng: -122.2592},
	"98402": {Lat: 47.2529, Lng: -122.4443},
}

// NewMockClient returns a mock seeded with DefaultMockLocations.
func NewMockClient() *MockClient {
	locs := make(map[string]Point, len(DefaultMockLocations))
	for k, v := range DefaultMockLocations {
		locs[k] = v
	}
	return &MockClient{Locations: locs}
}

// Geocode looks the postal code up in the table.
func (m *MockClient) Geocode(ctx context.Context, postalCode string) (Point, error) {
	if err := ctx.Err(); err != nil {
		return Point{}, err
	}
	p, ok := m.Locations[strings.ToUpper(strings.TrimSpace(postalCode))]
	if !ok {
		return Point{}, ErrNoResult
	}
	return p, nil
}

// DrivingDistance returns haversine meters scaled by RoadFactor.
func (m *MockClient) DrivingDistance(ctx context.Context, origin, dest Point) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	factor := m.RoadFactor
	if factor <= 0 {
		factor = 1
	}
	return HaversineMeters(origin, dest) * factor, nil
}
