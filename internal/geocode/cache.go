package geocode

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// checkCache looks up a cached geocode result, respecting TTL if configured.
// Non-matches are returned too so the caller can skip the providers.
func (c *CascadeClient) checkCache(ctx context.Context, key string) (*Result, error) {
	var lat, lon float64
	var displayName string
	var matched bool

	query := "SELECT latitude, longitude, display_name, matched FROM geocode_cache WHERE address_hash = $1"
	if c.cacheTTLDays > 0 {
		query += fmt.Sprintf(" AND cached_at > now() - interval '%d days'", c.cacheTTLDays)
	}

	row := c.pool.QueryRow(ctx, query, key)
	if err := row.Scan(&lat, &lon, &displayName, &matched); err != nil {
		return nil, err // no row or scan error, caller treats as miss
	}

	keyPrefix := key
	if len(keyPrefix) > 12 {
		keyPrefix = keyPrefix[:12]
	}
	zap.L().Debug("geocode cache hit", zap.String("key", keyPrefix), zap.Bool("matched", matched))

	return &Result{
		Lat:         lat,
		Lon:         lon,
		DisplayName: displayName,
		Source:      "cache",
		Matched:     matched,
	}, nil
}

// storeCache upserts a geocode result (match or non-match).
func (c *CascadeClient) storeCache(ctx context.Context, key string, result *Result) error {
	_, err := c.pool.Exec(ctx, `
		INSERT INTO geocode_cache (address_hash, latitude, longitude, display_name, matched, cached_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (address_hash) DO UPDATE SET
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			display_name = EXCLUDED.display_name,
			matched = EXCLUDED.matched,
			cached_at = now()`,
		key, result.Lat, result.Lon, result.DisplayName, result.Matched,
	)
	if err != nil {
		return eris.Wrap(err, "geocode: store cache")
	}
	return nil
}
