// Package geocode resolves a region name to coordinates through the Google
// Maps Geocoding API.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	contractx "github.com/plancanvas/plancanvas/agent/contract"
)

type Config struct {
	BaseURL string        `envconfig:"BASE_URL" split_words:"true" default:"https://maps.googleapis.com/maps/api/geocode/json"`
	APIKey  string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ contractx.Geocoder = (*Client)(nil)

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("geocode base url is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("geocode api key is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Geocode returns the first match for the region. A non-OK upstream status
// or an empty result set maps to contract.ErrNotFound.
func (c *Client) Geocode(ctx context.Context, region string) (contractx.GeocodeResult, error) {
	query := url.Values{}
	query.Set("address", region)
	query.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return contractx.GeocodeResult{}, fmt.Errorf("build geocode request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return contractx.GeocodeResult{}, fmt.Errorf("execute geocode request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return contractx.GeocodeResult{}, fmt.Errorf("read geocode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return contractx.GeocodeResult{}, fmt.Errorf("%w: geocoding status=%d", contractx.ErrUpstream, resp.StatusCode)
	}

	var parsed geocodeResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return contractx.GeocodeResult{}, fmt.Errorf("decode geocode response: %w", err)
	}
	if parsed.Status != "OK" || len(parsed.Results) == 0 {
		return contractx.GeocodeResult{}, fmt.Errorf("%w: region %q", contractx.ErrNotFound, region)
	}

	first := parsed.Results[0]
	return contractx.GeocodeResult{
		Region: region,
		Coordinates: contractx.Coordinates{
			Lat: first.Geometry.Location.Lat,
			Lng: first.Geometry.Location.Lng,
		},
		FormattedAddress: first.FormattedAddress,
	}, nil
}
