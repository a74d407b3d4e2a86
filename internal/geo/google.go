package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/noah-isme/cafe-api/internal/resilience"
)

// DefaultGoogleBaseURL is the Google Maps web service root.
const DefaultGoogleBaseURL = "https://maps.googleapis.com"

// GoogleClient talks to the Google Geocoding and Distance Matrix APIs.
type GoogleClient struct {
	BaseURL string
	APIKey  string
	// Region biases geocoding results, e.g. "us".
	Region string
	HTTP   resilience.HTTPClient
}

type googleStatusError struct {
	api    string
	status string
	msg    string
}

func (e *googleStatusError) Error() string {
	if e.msg != "" {
		return fmt.Sprintf("geo: %s status %s: %s", e.api, e.status, e.msg)
	}
	return fmt.Sprintf("geo: %s status %s", e.api, e.status)
}

type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		Geometry struct {
			Location Point `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

type matrixResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Rows         []struct {
		Elements []struct {
			Status   string `json:"status"`
			Distance struct {
				Value float64 `json:"value"`
			} `json:"distance"`
		} `json:"elements"`
	} `json:"rows"`
}

// Geocode resolves a postal code to the first result's location.
func (c *GoogleClient) Geocode(ctx context.Context, postalCode string) (Point, error) {
	q := url.Values{}
	q.Set("address", postalCode)
	if c.Region != "" {
		q.Set("region", c.Region)
	}
	var body geocodeResponse
	if err := c.get(ctx, "/maps/api/geocode/json", q, &body); err != nil {
		return Point{}, err
	}
	switch body.Status {
	case "OK":
	case "ZERO_RESULTS":
		return Point{}, ErrNoResult
	default:
		return Point{}, &googleStatusError{api: "geocode", status: body.Status, msg: body.ErrorMessage}
	}
	if len(body.Results) == 0 {
		return Point{}, ErrNoResult
	}
	loc := body.Results[0].Geometry.Location
	if !loc.Valid() {
		return Point{}, fmt.Errorf("geo: geocode returned invalid location %v", loc)
	}
	return loc, nil
}

// DrivingDistance returns the driving route length in meters.
func (c *GoogleClient) DrivingDistance(ctx context.Context, origin, dest Point) (float64, error) {
	q := url.Values{}
	q.Set("origins", formatPoint(origin))
	q.Set("destinations", formatPoint(dest))
	q.Set("mode", "driving")
	q.Set("units", "metric")
	var body matrixResponse
	if err := c.get(ctx, "/maps/api/distancematrix/json", q, &body); err != nil {
		return 0, err
	}
	if body.Status != "OK" {
		return 0, &googleStatusError{api: "distancematrix", status: body.Status, msg: body.ErrorMessage}
	}
	if len(body.Rows) == 0 || len(body.Rows[0].Elements) == 0 {
		return 0, ErrNoResult
	}
	el := body.Rows[0].Elements[0]
	switch el.Status {
	case "OK":
		return el.Distance.Value, nil
	case "ZERO_RESULTS", "NOT_FOUND":
		return 0, ErrNoResult
	default:
		return 0, &googleStatusError{api: "distancematrix element", status: el.Status}
	}
}

func (c *GoogleClient) get(ctx context.Context, path string, q url.Values, dst any) error {
	base := strings.TrimRight(c.BaseURL, "/")
	if base == "" {
		base = DefaultGoogleBaseURL
	}
	q.Set("key", c.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("geo: request %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("geo: %s responded %s", path, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("geo: decode %s: %w", path, err)
	}
	return nil
}

func formatPoint(p Point) string {
	return strconv.FormatFloat(p.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lng, 'f', 6, 64)
}
