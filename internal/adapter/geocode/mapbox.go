package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Mapbox implements Backend using the Mapbox Geocoding API.
type Mapbox struct {
	token      string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewMapbox creates a Mapbox geocoding backend.
func NewMapbox(token string, timeout time.Duration, logger *slog.Logger) *Mapbox {
	return &Mapbox{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: "https://api.mapbox.com/geocoding/v5/mapbox.places",
		logger:  logger,
	}
}

func (m *Mapbox) Name() string { return "mapbox" }

// Geocode converts a free-text address to coordinates.
func (m *Mapbox) Geocode(ctx context.Context, address string) (Result, error) {
	u := fmt.Sprintf("%s/%s.json", m.baseURL, url.PathEscape(address))
	params := url.Values{
		"access_token": {m.token},
		"limit":        {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u+"?"+params.Encode(), nil)
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("mapbox request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, fmt.Errorf("mapbox HTTP %d: %s", resp.StatusCode, string(body))
	}

	var parsed response
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Result{}, fmt.Errorf("decode mapbox response: %w", err)
	}
	if len(parsed.Features) == 0 {
		return Result{}, fmt.Errorf("no match for address %q", address)
	}

	f := parsed.Features[0]
	if len(f.Center) != 2 {
		return Result{}, fmt.Errorf("malformed center in mapbox response")
	}

	// Mapbox uses lon,lat order.
	result := Result{
		Lat:              f.Center[1],
		Lon:              f.Center[0],
		FormattedAddress: f.PlaceName,
	}
	if strings.HasPrefix(f.ID, "place.") || strings.HasPrefix(f.ID, "locality.") {
		result.City = f.Text
	}
	for _, c := range f.Context {
		switch {
		case strings.HasPrefix(c.ID, "place."):
			result.City = c.Text
		case strings.HasPrefix(c.ID, "region."):
			result.Region = c.Text
		case strings.HasPrefix(c.ID, "country."):
			result.Country = c.Text
		}
	}

	m.logger.Debug("mapbox geocode", "address", address, "place", f.PlaceName)
	return result, nil
}

// response mirrors the subset of the Mapbox geocoding schema we consume.
type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	ID        string     `json:"id"`
	Center    []float64  `json:"center"`
	PlaceName string     `json:"place_name"`
	Text      string     `json:"text"`
	Relevance float64    `json:"relevance"`
	Context   []ctxEntry `json:"context"`
}

type ctxEntry struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}
