package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/forest-watch/internal/resilience"
)

const defaultGoogleURL = "https://maps.googleapis.com/maps/api/geocode/json"

// GoogleProvider geocodes via the Google Geocoding API. Metered: every call
// counts against the per-run budget.
type GoogleProvider struct {
	key        string
	baseURL    string
	region     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// GoogleOption configures the provider.
type GoogleOption func(*GoogleProvider)

// WithGoogleBaseURL overrides the geocode endpoint (tests).
func WithGoogleBaseURL(u string) GoogleOption {
	return func(p *GoogleProvider) { p.baseURL = u }
}

// WithGoogleRegion biases results toward a ccTLD region (e.g. "au").
func WithGoogleRegion(region string) GoogleOption {
	return func(p *GoogleProvider) { p.region = region }
}

// WithGoogleHTTPClient sets a custom HTTP client.
func WithGoogleHTTPClient(hc *http.Client) GoogleOption {
	return func(p *GoogleProvider) { p.httpClient = hc }
}

// NewGoogleProvider creates the metered provider.
func NewGoogleProvider(key string, opts ...GoogleOption) *GoogleProvider {
	p := &GoogleProvider{
		key:        key,
		baseURL:    defaultGoogleURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(10, 10),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Provider.
func (p *GoogleProvider) Name() string { return "google" }

// Metered implements Provider.
func (p *GoogleProvider) Metered() bool { return true }

type googleResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
			LocationType string `json:"location_type"`
		} `json:"geometry"`
		FormattedAddress string `json:"formatted_address"`
	} `json:"results"`
}

// Geocode implements Provider.
func (p *GoogleProvider) Geocode(ctx context.Context, query string) (*Result, error) {
	if p.key == "" {
		return nil, resilience.NewConfigError("google", "api key not configured")
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: google rate limit")
	}

	params := url.Values{
		"address": {query},
		"key":     {p.key},
	}
	if p.region != "" {
		params.Set("region", p.region)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google build request")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("geocode: google returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google read body")
	}

	var googleResp googleResponse
	if err := json.Unmarshal(body, &googleResp); err != nil {
		return nil, eris.Wrap(err, "geocode: google parse response")
	}

	switch googleResp.Status {
	case "OK":
	case "ZERO_RESULTS":
		return &Result{Provider: p.Name(), Matched: false}, nil
	case "OVER_QUERY_LIMIT", "UNKNOWN_ERROR":
		return nil, resilience.NewTransientError(eris.Errorf("geocode: google status %s", googleResp.Status), 0)
	case "REQUEST_DENIED":
		return nil, resilience.NewConfigError("google", "request denied")
	default:
		return nil, eris.Errorf("geocode: google status %s", googleResp.Status)
	}

	if len(googleResp.Results) == 0 {
		return &Result{Provider: p.Name(), Matched: false}, nil
	}

	first := googleResp.Results[0]
	return &Result{
		Latitude:    first.Geometry.Location.Lat,
		Longitude:   first.Geometry.Location.Lng,
		DisplayName: first.FormattedAddress,
		Confidence:  googleLocationTypeConfidence(first.Geometry.LocationType),
		Provider:    p.Name(),
		Matched:     true,
	}, nil
}

// googleLocationTypeConfidence maps Google's location_type onto the shared
// 0–1 confidence scale.
func googleLocationTypeConfidence(locType string) float64 {
	switch strings.ToUpper(locType) {
	case "ROOFTOP":
		return 1.0
	case "RANGE_INTERPOLATED":
		return 0.9
	case "GEOMETRIC_CENTER":
		return 0.8
	case "APPROXIMATE":
		return 0.6
	default:
		return 0.5
	}
}
