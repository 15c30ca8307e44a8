package geocode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// NominatimProvider geocodes via the free OpenStreetMap Nominatim API. The
// community tier allows one request per second per client; concurrent calls
// serialize through the limiter.
type NominatimProvider struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NominatimOption configures the NominatimProvider.
type NominatimOption func(*NominatimProvider)

// WithNominatimHTTPClient sets a custom HTTP client.
func WithNominatimHTTPClient(hc *http.Client) NominatimOption {
	return func(p *NominatimProvider) {
		p.httpClient = hc
	}
}

// WithNominatimRateLimit sets the requests-per-second limit.
func WithNominatimRateLimit(rps float64) NominatimOption {
	return func(p *NominatimProvider) {
		p.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// NewNominatimProvider creates the primary geocoding provider.
func NewNominatimProvider(baseURL, userAgent string, opts ...NominatimOption) *NominatimProvider {
	p := &NominatimProvider{
		baseURL:    baseURL,
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		limiter:    rate.NewLimiter(1, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Provider.
func (p *NominatimProvider) Name() string { return "primary" }

// Available implements Provider.
func (p *NominatimProvider) Available() bool { return true }

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode implements Provider. Queries are restricted to Brazil.
func (p *NominatimProvider) Geocode(ctx context.Context, address string) (*Result, error) {
	// Blocks until the 1 rps budget allows the call.
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim rate wait")
	}

	q := url.Values{}
	q.Set("q", address)
	q.Set("format", "json")
	q.Set("limit", "1")
	q.Set("countrycodes", "br")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim build request")
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: nominatim status %d", resp.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim decode")
	}
	if len(results) == 0 {
		zap.L().Debug("geocode: nominatim no match", zap.String("address", address))
		return &Result{Matched: false, Source: p.Name()}, nil
	}

	lat, latErr := strconv.ParseFloat(results[0].Lat, 64)
	lon, lonErr := strconv.ParseFloat(results[0].Lon, 64)
	if latErr != nil || lonErr != nil {
		return nil, eris.New("geocode: nominatim returned non-numeric coordinates")
	}

	return &Result{
		Lat:         lat,
		Lon:         lon,
		DisplayName: results[0].DisplayName,
		Source:      p.Name(),
		Matched:     true,
	}, nil
}
