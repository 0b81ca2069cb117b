package firedanger

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/forest-watch/internal/resilience"
)

// Client fetches the district polygon feed: a GeoJSON FeatureCollection whose
// feature properties carry the district name, lookup code, and current rating.
type Client struct {
	feedURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetryConfig overrides the default retry policy.
func WithRetryConfig(cfg resilience.RetryConfig) ClientOption {
	return func(c *Client) { c.retry = cfg }
}

// NewClient creates a feed client for the given URL.
func NewClient(feedURL string, opts ...ClientOption) *Client {
	c := &Client{
		feedURL:    feedURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(1, 1),
		retry:      resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchDistricts downloads and decodes the current district set.
func (c *Client) FetchDistricts(ctx context.Context) ([]District, error) {
	retry := c.retry
	retry.OnRetry = resilience.RetryLogger("firedanger", "fetch districts")

	return resilience.DoVal(ctx, retry, func(ctx context.Context) ([]District, error) {
		return c.fetchOnce(ctx)
	})
}

func (c *Client) fetchOnce(ctx context.Context) ([]District, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "firedanger: rate limit")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feedURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "firedanger: build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "firedanger: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("firedanger: feed returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "firedanger: read body")
	}
	return DecodeDistricts(body)
}

// DecodeDistricts parses a GeoJSON FeatureCollection into districts.
// Features without polygon geometry are skipped with a log line.
func DecodeDistricts(data []byte) ([]District, error) {
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "firedanger: parse feed")
	}

	districts := make([]District, 0, len(fc.Features))
	for _, f := range fc.Features {
		d := District{
			Name:       propString(f.Properties, "name"),
			Code:       propString(f.Properties, "code"),
			Status:     propString(f.Properties, "danger_level"),
			StatusText: propString(f.Properties, "danger_text"),
			geometry:   f.Geometry,
		}
		if !isPolygonal(d.geometry) {
			zap.L().Debug("firedanger: skipping non-polygon feature", zap.String("name", d.Name))
			continue
		}
		districts = append(districts, d)
	}
	return districts, nil
}

func propString(props map[string]any, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}
