// Package routes estimates driving distance and duration from a fixed origin
// to many destinations in one call, using an OSRM-compatible table endpoint.
package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/forest-watch/internal/resilience"
)

// DefaultBaseURL is the public OSRM demo server.
const DefaultBaseURL = "https://router.project-osrm.org"

// Point is a WGS84 coordinate pair.
type Point struct {
	Latitude  float64
	Longitude float64
}

// Estimate is the driving estimate for one destination. Found is false when
// the router could not connect the origin to the destination.
type Estimate struct {
	DistanceKm      float64
	DurationMinutes float64
	Found           bool
}

// Client calls the OSRM table endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      resilience.RetryConfig
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL points the client at a different OSRM instance.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetryConfig overrides the default retry policy.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

// NewClient creates an OSRM table client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry:      resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type tableResponse struct {
	Code      string       `json:"code"`
	Message   string       `json:"message"`
	Distances [][]*float64 `json:"distances"`
	Durations [][]*float64 `json:"durations"`
}

// Table returns one estimate per destination, in destination order. A nil
// cell from the router yields Found=false rather than an error.
func (c *Client) Table(ctx context.Context, origin Point, destinations []Point) ([]Estimate, error) {
	if len(destinations) == 0 {
		return nil, nil
	}

	retry := c.retry
	retry.OnRetry = resilience.RetryLogger("routes", "table")

	return resilience.DoVal(ctx, retry, func(ctx context.Context) ([]Estimate, error) {
		return c.tableOnce(ctx, origin, destinations)
	})
}

func (c *Client) tableOnce(ctx context.Context, origin Point, destinations []Point) ([]Estimate, error) {
	// OSRM wants lon,lat pairs, origin first.
	coords := make([]string, 0, len(destinations)+1)
	coords = append(coords, fmt.Sprintf("%f,%f", origin.Longitude, origin.Latitude))
	for _, d := range destinations {
		coords = append(coords, fmt.Sprintf("%f,%f", d.Longitude, d.Latitude))
	}
	url := fmt.Sprintf("%s/table/v1/driving/%s?sources=0&annotations=distance,duration",
		c.baseURL, strings.Join(coords, ";"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "routes: build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "routes: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("routes: table endpoint returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "routes: read body")
	}

	var table tableResponse
	if err := json.Unmarshal(body, &table); err != nil {
		return nil, eris.Wrap(err, "routes: parse response")
	}
	if table.Code != "Ok" {
		return nil, eris.Errorf("routes: table endpoint returned %s: %s", table.Code, table.Message)
	}
	if len(table.Distances) == 0 || len(table.Durations) == 0 {
		return nil, eris.New("routes: table response missing annotations")
	}

	distances, durations := table.Distances[0], table.Durations[0]
	estimates := make([]Estimate, len(destinations))
	for i := range destinations {
		// Row cell 0 is origin-to-origin; destinations start at 1.
		col := i + 1
		if col >= len(distances) || col >= len(durations) {
			break
		}
		if distances[col] == nil || durations[col] == nil {
			continue
		}
		estimates[i] = Estimate{
			DistanceKm:      *distances[col] / 1000,
			DurationMinutes: *durations[col] / 60,
			Found:           true,
		}
	}
	return estimates, nil
}
