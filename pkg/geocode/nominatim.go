package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/forest-watch/internal/resilience"
)

const defaultNominatimURL = "https://nominatim.openstreetmap.org/search"

// NominatimProvider geocodes via the OSM Nominatim search API. Free and
// effectively unlimited, so it is always tried first; usage policy requires
// an identifying User-Agent and at most one request per second.
type NominatimProvider struct {
	baseURL      string
	userAgent    string
	countryCodes string
	httpClient   *http.Client
	limiter      *rate.Limiter
}

// NominatimOption configures the provider.
type NominatimOption func(*NominatimProvider)

// WithNominatimBaseURL overrides the search endpoint (tests, self-hosting).
func WithNominatimBaseURL(u string) NominatimOption {
	return func(p *NominatimProvider) { p.baseURL = u }
}

// WithNominatimCountryCodes restricts results to the given ISO country codes.
func WithNominatimCountryCodes(codes string) NominatimOption {
	return func(p *NominatimProvider) { p.countryCodes = codes }
}

// WithNominatimHTTPClient sets a custom HTTP client.
func WithNominatimHTTPClient(hc *http.Client) NominatimOption {
	return func(p *NominatimProvider) { p.httpClient = hc }
}

// WithNominatimRateLimit overrides the default 1 rps pacing.
func WithNominatimRateLimit(rps float64) NominatimOption {
	return func(p *NominatimProvider) { p.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

// NewNominatimProvider creates the free-tier provider.
func NewNominatimProvider(userAgent string, opts ...NominatimOption) *NominatimProvider {
	p := &NominatimProvider{
		baseURL:    defaultNominatimURL,
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(1, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Provider.
func (p *NominatimProvider) Name() string { return "nominatim" }

// Metered implements Provider.
func (p *NominatimProvider) Metered() bool { return false }

type nominatimPlace struct {
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	DisplayName string  `json:"display_name"`
	Importance  float64 `json:"importance"`
}

// Geocode implements Provider.
func (p *NominatimProvider) Geocode(ctx context.Context, query string) (*Result, error) {
	if p.userAgent == "" {
		return nil, resilience.NewConfigError("nominatim", "user agent not configured")
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim rate limit")
	}

	params := url.Values{
		"q":      {query},
		"format": {"jsonv2"},
		"limit":  {"1"},
	}
	if p.countryCodes != "" {
		params.Set("countrycodes", p.countryCodes)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim build request")
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("geocode: nominatim returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim read body")
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse response")
	}

	if len(places) == 0 {
		return &Result{Provider: p.Name(), Matched: false}, nil
	}

	place := places[0]
	lat, latErr := strconv.ParseFloat(place.Lat, 64)
	lon, lonErr := strconv.ParseFloat(place.Lon, 64)
	if latErr != nil || lonErr != nil {
		return nil, resilience.NewEmptyResultError("nominatim", fmt.Sprintf("malformed coordinates for %q", query))
	}

	return &Result{
		Latitude:    lat,
		Longitude:   lon,
		DisplayName: place.DisplayName,
		Confidence:  place.Importance,
		Provider:    p.Name(),
		Matched:     true,
	}, nil
}
