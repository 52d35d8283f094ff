package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"driverlink/internal/apperr"
	"driverlink/internal/domain"
)

const defaultBaseURL = "https://router.project-osrm.org"

// Estimate is a route estimate between two coordinates.
type Estimate struct {
	DistanceM float64
	DurationS float64
}

// Client queries an OSRM routing server for travel distance and duration.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the OSRM base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds an OSRM client with a bounded request timeout.
func NewClient(timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

type routeResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
	} `json:"routes"`
}

// Estimate returns travel distance and duration from origin to dest.
// Any transport or provider failure maps to apperr.ErrDistanceUnavailable.
func (c *Client) Estimate(ctx context.Context, origin, dest domain.Location) (Estimate, error) {
	// OSRM expects lon,lat pairs.
	coords := fmt.Sprintf("%f,%f;%f,%f", origin.Lon, origin.Lat, dest.Lon, dest.Lat)
	u := fmt.Sprintf("%s/route/v1/driving/%s?%s", c.baseURL, coords, url.Values{
		"overview": {"false"},
		"steps":    {"false"},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Estimate{}, fmt.Errorf("build osrm request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Estimate{}, fmt.Errorf("%w: %v", apperr.ErrDistanceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Estimate{}, fmt.Errorf("%w: osrm status %d", apperr.ErrDistanceUnavailable, resp.StatusCode)
	}

	var body routeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Estimate{}, fmt.Errorf("%w: decode: %v", apperr.ErrDistanceUnavailable, err)
	}
	if body.Code != "Ok" || len(body.Routes) == 0 {
		return Estimate{}, fmt.Errorf("%w: osrm code %q", apperr.ErrDistanceUnavailable, body.Code)
	}

	return Estimate{
		DistanceM: body.Routes[0].Distance,
		DurationS: body.Routes[0].Duration,
	}, nil
}
