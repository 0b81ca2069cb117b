package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/forest-watch/internal/resilience"
)

func singleTry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 1, BaseBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
}

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return NewClient(WithBaseURL(srv.URL), WithRetryConfig(singleTry())), srv
}

func TestTableEstimates(t *testing.T) {
	var gotPath, gotQuery string
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{
			"code": "Ok",
			"distances": [[0, 42000, 135500]],
			"durations": [[0, 1800, 5430]]
		}`))
	})
	defer srv.Close()

	origin := Point{Latitude: -33.87, Longitude: 151.21}
	estimates, err := c.Table(context.Background(), origin, []Point{
		{Latitude: -33.1, Longitude: 151.2},
		{Latitude: -35.5, Longitude: 148.1},
	})
	require.NoError(t, err)
	require.Len(t, estimates, 2)

	assert.Contains(t, gotPath, "/table/v1/driving/")
	// Origin goes first, as lon,lat.
	assert.Contains(t, gotPath, "151.210000,-33.870000;151.200000,-33.100000;148.100000,-35.500000")
	assert.Contains(t, gotQuery, "sources=0")
	assert.Contains(t, gotQuery, "annotations=distance,duration")

	assert.True(t, estimates[0].Found)
	assert.InDelta(t, 42.0, estimates[0].DistanceKm, 0.001)
	assert.InDelta(t, 30.0, estimates[0].DurationMinutes, 0.001)
	assert.True(t, estimates[1].Found)
	assert.InDelta(t, 135.5, estimates[1].DistanceKm, 0.001)
	assert.InDelta(t, 90.5, estimates[1].DurationMinutes, 0.001)
}

func TestTableUnreachableDestination(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"code": "Ok",
			"distances": [[0, 42000, null]],
			"durations": [[0, 1800, null]]
		}`))
	})
	defer srv.Close()

	estimates, err := c.Table(context.Background(), Point{}, []Point{{}, {}})
	require.NoError(t, err)
	require.Len(t, estimates, 2)
	assert.True(t, estimates[0].Found)
	assert.False(t, estimates[1].Found, "nil router cell means no route, not an error")
	assert.Zero(t, estimates[1].DistanceKm)
}

func TestTableErrorCode(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code": "InvalidQuery", "message": "Query string malformed"}`))
	})
	defer srv.Close()

	_, err := c.Table(context.Background(), Point{}, []Point{{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "InvalidQuery")
}

func TestTableMissingAnnotations(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code": "Ok"}`))
	})
	defer srv.Close()

	_, err := c.Table(context.Background(), Point{}, []Point{{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing annotations")
}

func TestTableTransientStatus(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusTooManyRequests)
	})
	defer srv.Close()

	_, err := c.Table(context.Background(), Point{}, []Point{{}})
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestTableNoDestinations(t *testing.T) {
	c := NewClient(WithBaseURL("http://127.0.0.1:1"))
	estimates, err := c.Table(context.Background(), Point{}, nil)
	require.NoError(t, err)
	assert.Nil(t, estimates)
}
