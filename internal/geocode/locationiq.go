package geocode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// LocationIQProvider is the keyed fallback. It is only consulted when the
// primary provider fails and a key is configured.
type LocationIQProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewLocationIQProvider creates the fallback provider. An empty key leaves it
// permanently unavailable.
func NewLocationIQProvider(baseURL, apiKey string) *LocationIQProvider {
	return &LocationIQProvider{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// Name implements Provider.
func (p *LocationIQProvider) Name() string { return "fallback" }

// Available implements Provider.
func (p *LocationIQProvider) Available() bool { return p.apiKey != "" }

type locationIQResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode implements Provider.
func (p *LocationIQProvider) Geocode(ctx context.Context, address string) (*Result, error) {
	q := url.Values{}
	q.Set("key", p.apiKey)
	q.Set("q", address)
	q.Set("format", "json")
	q.Set("limit", "1")
	q.Set("countrycodes", "br")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: locationiq build request")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: locationiq request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: locationiq status %d", resp.StatusCode)
	}

	var results []locationIQResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, eris.Wrap(err, "geocode: locationiq decode")
	}
	if len(results) == 0 {
		return &Result{Matched: false, Source: p.Name()}, nil
	}

	lat, latErr := strconv.ParseFloat(results[0].Lat, 64)
	lon, lonErr := strconv.ParseFloat(results[0].Lon, 64)
	if latErr != nil || lonErr != nil {
		return nil, eris.New("geocode: locationiq returned non-numeric coordinates")
	}

	return &Result{
		Lat:         lat,
		Lon:         lon,
		DisplayName: results[0].DisplayName,
		Source:      p.Name(),
		Matched:     true,
	}, nil
}
