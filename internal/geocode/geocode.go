// Package geocode resolves postal addresses to coordinates through an external HTTP API.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
)

var (
	// ErrDisabled is returned when no API key is configured
	ErrDisabled = errors.New("geocoding is disabled")
	// ErrNoResults is returned when the API cannot resolve the address
	ErrNoResults = errors.New("address could not be geocoded")
)

// Location is a resolved coordinate pair
type Location struct {
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	FormattedAddress string  `json:"formatted_address"`
}

// Geocoder resolves an address to a location
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*Location, error)
}

// Client calls a Google Geocoding compatible endpoint
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New returns a Geocoder; without an API key every lookup fails with ErrDisabled
func New(baseURL, apiKey string) Geocoder {
	if apiKey == "" {
		return disabled{}
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Geocode looks up address and returns the first result
func (c *Client) Geocode(ctx context.Context, address string) (*Location, error) {
	q := url.Values{}
	q.Set("address", address)
	q.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("geocode read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocode: unexpected status %d", resp.StatusCode)
	}
	return parse(body)
}

// parse extracts the first result from a geocoding response body
func parse(body []byte) (*Location, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("geocode: invalid response body")
	}
	res := gjson.ParseBytes(body)
	switch status := res.Get("status").String(); status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, ErrNoResults
	default:
		msg := res.Get("error_message").String()
		return nil, fmt.Errorf("geocode: status %s %s", status, msg)
	}
	first := res.Get("results.0")
	loc := first.Get("geometry.location")
	if !loc.Get("lat").Exists() || !loc.Get("lng").Exists() {
		return nil, ErrNoResults
	}
	return &Location{
		Latitude:         loc.Get("lat").Float(),
		Longitude:        loc.Get("lng").Float(),
		FormattedAddress: first.Get("formatted_address").String(),
	}, nil
}

type disabled struct{}

func (disabled) Geocode(context.Context, string) (*Location, error) { return nil, ErrDisabled }

const earthRadiusKm = 6371.0

// DistanceKm is the haversine great-circle distance between two points
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Box is a search window. Lng holds one range, or two when the window crosses the antimeridian.
type Box struct {
	MinLat, MaxLat float64
	Lng            [][2]float64
}

// BoundingBox returns the window that contains every point within radiusKm
func BoundingBox(lat, lng, radiusKm float64) Box {
	dLat := radiusKm / earthRadiusKm * 180 / math.Pi
	box := Box{MinLat: math.Max(-90, lat-dLat), MaxLat: math.Min(90, lat+dLat)}
	cos := math.Cos(lat * math.Pi / 180)
	if cos <= 1e-9 || dLat/cos >= 180 || box.MinLat == -90 || box.MaxLat == 90 {
		box.Lng = [][2]float64{{-180, 180}} // Near a pole every longitude qualifies
		return box
	}
	dLng := dLat / cos
	minLng, maxLng := lng-dLng, lng+dLng
	switch {
	case minLng < -180:
		box.Lng = [][2]float64{{minLng + 360, 180}, {-180, maxLng}}
	case maxLng > 180:
		box.Lng = [][2]float64{{minLng, 180}, {-180, maxLng - 360}}
	default:
		box.Lng = [][2]float64{{minLng, maxLng}}
	}
	return box
}
