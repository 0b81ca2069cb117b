package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/forest-watch/internal/resilience"
)

func TestNominatimGeocode(t *testing.T) {
	var gotUA, gotQuery, gotCC string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotQuery = r.URL.Query().Get("q")
		gotCC = r.URL.Query().Get("countrycodes")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"lat":"-33.1","lon":"151.2","display_name":"Olney State Forest, NSW","importance":0.62}]`))
	}))
	defer srv.Close()

	p := NewNominatimProvider("forest-watch-test/1.0",
		WithNominatimBaseURL(srv.URL),
		WithNominatimCountryCodes("au"),
		WithNominatimRateLimit(1000),
	)

	result, err := p.Geocode(context.Background(), "Olney State Forest, NSW")
	require.NoError(t, err)
	require.True(t, result.Matched)
	assert.Equal(t, -33.1, result.Latitude)
	assert.Equal(t, 151.2, result.Longitude)
	assert.Equal(t, "Olney State Forest, NSW", result.DisplayName)
	assert.Equal(t, 0.62, result.Confidence)
	assert.Equal(t, "nominatim", result.Provider)

	assert.Equal(t, "forest-watch-test/1.0", gotUA)
	assert.Equal(t, "Olney State Forest, NSW", gotQuery)
	assert.Equal(t, "au", gotCC)
}

func TestNominatimNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	p := NewNominatimProvider("ua", WithNominatimBaseURL(srv.URL), WithNominatimRateLimit(1000))
	result, err := p.Geocode(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.False(t, result.Matched)
}

func TestNominatimMissingUserAgent(t *testing.T) {
	p := NewNominatimProvider("")
	_, err := p.Geocode(context.Background(), "anywhere")
	require.Error(t, err)
	assert.True(t, resilience.IsConfigError(err))
}

func TestNominatimTransientStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewNominatimProvider("ua", WithNominatimBaseURL(srv.URL), WithNominatimRateLimit(1000))
	_, err := p.Geocode(context.Background(), "anywhere")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestNominatimMalformedCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"lat":"not-a-number","lon":"151.2"}]`))
	}))
	defer srv.Close()

	p := NewNominatimProvider("ua", WithNominatimBaseURL(srv.URL), WithNominatimRateLimit(1000))
	_, err := p.Geocode(context.Background(), "anywhere")
	require.Error(t, err)
	assert.True(t, resilience.IsEmptyResult(err))
}
