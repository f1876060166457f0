package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientGeocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key123", r.URL.Query().Get("key"))
		if r.URL.Query().Get("address") == "nowhere" {
			w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
			return
		}
		w.Write([]byte(`{"status":"OK","results":[{"formatted_address":"1 Long St, Cape Town","geometry":{"location":{"lat":-33.92,"lng":18.42}}}]}`))
	}))
	defer srv.Close()

	g := New(srv.URL, "key123")
	loc, err := g.Geocode(context.Background(), "1 Long St")
	require.NoError(t, err)
	assert.InDelta(t, -33.92, loc.Latitude, 1e-9)
	assert.InDelta(t, 18.42, loc.Longitude, 1e-9)
	assert.Equal(t, "1 Long St, Cape Town", loc.FormattedAddress)

	_, err = g.Geocode(context.Background(), "nowhere")
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"REQUEST_DENIED","error_message":"bad key"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "k").Geocode(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REQUEST_DENIED")
}

func TestDisabledWithoutKey(t *testing.T) {
	_, err := New("http://unused", "").Geocode(context.Background(), "x")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestDistanceAndBoundingBox(t *testing.T) {
	// Cape Town to Johannesburg is roughly 1260 km
	d := DistanceKm(-33.9249, 18.4241, -26.2041, 28.0473)
	assert.InDelta(t, 1260, d, 15)
	assert.InDelta(t, 0, DistanceKm(1, 1, 1, 1), 1e-9)

	box := BoundingBox(-33.9, 18.4, 10)
	assert.Less(t, box.MinLat, -33.9)
	assert.Greater(t, box.MaxLat, -33.9)
	require.Len(t, box.Lng, 1)
	assert.Less(t, box.Lng[0][0], 18.4)
	assert.Greater(t, box.Lng[0][1], 18.4)
	assert.InDelta(t, 10, DistanceKm(-33.9, 18.4, box.MaxLat, 18.4), 0.01)
}

func TestBoundingBoxAcrossAntimeridian(t *testing.T) {
	// Taveuni, Fiji sits on the 180th meridian
	box := BoundingBox(-16.8, 179.95, 50)
	require.Len(t, box.Lng, 2)
	assert.Equal(t, 180.0, box.Lng[0][1])
	assert.Equal(t, -180.0, box.Lng[1][0])
	assert.Less(t, box.Lng[1][1], -179.0)

	// A point just across the line is inside the second range
	other := -179.9
	assert.True(t, other >= box.Lng[1][0] && other <= box.Lng[1][1])
	assert.Less(t, DistanceKm(-16.8, 179.95, -16.8, other), 50.0)

	west := BoundingBox(-16.8, -179.95, 50)
	require.Len(t, west.Lng, 2)
	assert.Greater(t, west.Lng[0][0], 179.0)
	assert.Equal(t, 180.0, west.Lng[0][1])

	polar := BoundingBox(89.9, 10, 50)
	assert.Equal(t, [][2]float64{{-180, 180}}, polar.Lng)
	assert.Equal(t, 90.0, polar.MaxLat)
}
