package firedanger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/forest-watch/internal/model"
	"github.com/sells-group/forest-watch/internal/resilience"
)

const districtFeed = `{
	"type": "FeatureCollection",
	"features": [
		{
			"type": "Feature",
			"properties": {"name": "Greater Hunter", "code": "GH", "danger_level": "HIGH", "danger_text": "High"},
			"geometry": {"type": "Polygon", "coordinates": [[[150,-34],[152,-34],[152,-32],[150,-32],[150,-34]]]}
		},
		{
			"type": "Feature",
			"properties": {"name": "Marker", "code": "MK", "danger_level": "LOW_MODERATE"},
			"geometry": {"type": "Point", "coordinates": [151, -33]}
		},
		{
			"type": "Feature",
			"properties": {"name": "Far West", "code": "FW", "danger_level": "CATASTROPHIC"},
			"geometry": {"type": "MultiPolygon", "coordinates": [[[[140,-32],[144,-32],[144,-29],[140,-29],[140,-32]]]]}
		}
	]
}`

func singleTry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 1, BaseBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
}

func TestFetchDistricts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/geo+json")
		_, _ = w.Write([]byte(districtFeed))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithRetryConfig(singleTry()))
	districts, err := c.FetchDistricts(context.Background())
	require.NoError(t, err)

	// The point feature is skipped; both polygonal features survive.
	require.Len(t, districts, 2)
	assert.Equal(t, "Greater Hunter", districts[0].Name)
	assert.Equal(t, "GH", districts[0].Code)
	assert.Equal(t, "HIGH", districts[0].Status)
	assert.Equal(t, "High", districts[0].StatusText)
	assert.Equal(t, "Far West", districts[1].Name)

	svc := NewService(districts)
	fd := svc.Lookup(&model.Coordinates{Latitude: -33, Longitude: 151})
	assert.Equal(t, "HIGH", fd.Status)
}

func TestFetchDistrictsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithRetryConfig(singleTry()))
	_, err := c.FetchDistricts(context.Background())
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestFetchDistrictsRetriesTransient(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "try again", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(districtFeed))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithRetryConfig(resilience.RetryConfig{
		MaxAttempts: 2, BaseBackoff: time.Millisecond, MaxBackoff: time.Millisecond,
	}))
	districts, err := c.FetchDistricts(context.Background())
	require.NoError(t, err)
	assert.Len(t, districts, 2)
	assert.Equal(t, 2, calls)
}

func TestDecodeDistrictsMalformed(t *testing.T) {
	_, err := DecodeDistricts([]byte(`{"type": "FeatureCollection", "features": [`))
	require.Error(t, err)
}

func TestDecodeDistrictsMissingProperties(t *testing.T) {
	districts, err := DecodeDistricts([]byte(`{
		"type": "FeatureCollection",
		"features": [{
			"type": "Feature",
			"properties": {},
			"geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]}
		}]
	}`))
	require.NoError(t, err)
	require.Len(t, districts, 1)
	assert.Empty(t, districts[0].Name)
	assert.Empty(t, districts[0].Status)
}
