package geocode

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/agrotrace/agrocheck/internal/db"
	"github.com/agrotrace/agrocheck/internal/metrics"
	"github.com/agrotrace/agrocheck/internal/model"
)

// CascadeClient tries geocode providers in order until one matches. Results
// (including non-matches) are cached in Postgres; addresses are stable so the
// TTL is long.
type CascadeClient struct {
	pool         db.Pool
	providers    []Provider
	cacheEnabled bool
	cacheTTLDays int
}

// CascadeOption configures the CascadeClient.
type CascadeOption func(*CascadeClient)

// WithCacheEnabled enables or disables the Postgres cache.
func WithCacheEnabled(enabled bool) CascadeOption {
	return func(c *CascadeClient) {
		c.cacheEnabled = enabled
	}
}

// WithCacheTTLDays sets the cache TTL in days.
func WithCacheTTLDays(days int) CascadeOption {
	return func(c *CascadeClient) {
		c.cacheTTLDays = days
	}
}

// NewCascadeClient creates a CascadeClient that tries providers in order.
func NewCascadeClient(pool db.Pool, providers []Provider, opts ...CascadeOption) *CascadeClient {
	c := &CascadeClient{
		pool:         pool,
		providers:    providers,
		cacheEnabled: true,
		cacheTTLDays: 365,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// cacheKey returns SHA-256 hex of the folded normalized address.
func cacheKey(normalized string) string {
	h := sha256.Sum256([]byte(foldAddress(normalized)))
	return fmt.Sprintf("%x", h)
}

// Geocode resolves an address. It returns a *model.GeocodingError when no
// provider can resolve it; it never falls back to (0,0).
func (c *CascadeClient) Geocode(ctx context.Context, address string) (*Result, error) {
	normalized := NormalizeAddress(address)
	key := cacheKey(normalized)

	if c.cacheEnabled {
		cached, err := c.checkCache(ctx, key)
		if err == nil && cached != nil {
			metrics.GeocodeRequests.WithLabelValues(cached.Source).Inc()
			if !cached.Matched {
				return nil, &model.GeocodingError{Address: address, Reason: "no provider match (cached)"}
			}
			return cached, nil
		}
	}

	var lastErr error
	for _, p := range c.providers {
		if !p.Available() {
			continue
		}
		result, err := p.Geocode(ctx, normalized)
		if err != nil {
			lastErr = err
			zap.L().Debug("geocode: provider error, trying next",
				zap.String("provider", p.Name()),
				zap.Error(err),
			)
			continue
		}
		if result != nil && result.Matched {
			metrics.GeocodeRequests.WithLabelValues(p.Name()).Inc()
			if c.cacheEnabled {
				if cacheErr := c.storeCache(ctx, key, result); cacheErr != nil {
					zap.L().Warn("geocode: store cache failed", zap.Error(cacheErr))
				}
			}
			return result, nil
		}
	}

	// All providers missed. Cache the negative result so repeated lookups of
	// unresolvable addresses stay cheap.
	if c.cacheEnabled {
		if cacheErr := c.storeCache(ctx, key, &Result{Matched: false, Source: "cascade"}); cacheErr != nil {
			zap.L().Warn("geocode: store negative cache failed", zap.Error(cacheErr))
		}
	}

	reason := "no provider match"
	if lastErr != nil {
		reason = fmt.Sprintf("no provider match (last error: %v)", eris.Cause(lastErr))
	}
	return nil, &model.GeocodingError{Address: address, Reason: reason}
}
