package checkers

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/agrotrace/agrocheck/internal/config"
	"github.com/agrotrace/agrocheck/internal/db"
	"github.com/agrotrace/agrocheck/internal/model"
)

// WaterPermitsChecker reports water-use permits near the location. It is
// informational: the result is always PASS, with valid/expired counts and
// total authorized volume in the details.
type WaterPermitsChecker struct {
	pool         db.Pool
	cfg          config.CheckersConfig
	bufferMeters float64
}

// Descriptor implements checker.Checker.
func (c *WaterPermitsChecker) Descriptor() model.Descriptor {
	return applyOverrides(model.Descriptor{
		Name:                "water_permits",
		Category:            model.CategoryLegal,
		Description:         "ANA water-use permits near the property location",
		Priority:            5,
		SupportedInputTypes: spatialTypes,
		CacheTTL:            7 * 24 * time.Hour,
		Timeout:             8 * time.Second,
		Enabled:             true,
	}, c.cfg)
}

// Execute implements checker.Checker.
func (c *WaterPermitsChecker) Execute(ctx context.Context, input model.NormalizedInput) (*model.CheckerResult, error) {
	lat, lon, err := resolvePoint(ctx, c.pool, input)
	if err != nil {
		return nil, err
	}

	var valid, expired int
	var totalVolume float64
	row := c.pool.QueryRow(ctx, `
		SELECT
			count(*) FILTER (WHERE expires_at IS NULL OR expires_at > now()),
			count(*) FILTER (WHERE expires_at IS NOT NULL AND expires_at <= now()),
			COALESCE(sum(authorized_volume_m3_year), 0)
		FROM water_permits
		WHERE ST_DWithin(geom::geography, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)`,
		lon, lat, c.bufferMeters,
	)
	if err := row.Scan(&valid, &expired, &totalVolume); err != nil {
		return nil, eris.Wrap(err, "water_permits: query")
	}

	message := "no water-use permits within buffer"
	if valid+expired > 0 {
		message = "water-use permits found within buffer"
	}

	return &model.CheckerResult{
		Status:  model.StatusPass,
		Message: message,
		Details: model.JSONMap{
			"bufferMeters":           c.bufferMeters,
			"validPermits":           valid,
			"expiredPermits":         expired,
			"totalVolumeM3PerYear":   totalVolume,
		},
		Evidence: model.Evidence{
			DataSource: "water_permits",
			URL:        "https://www.gov.br/ana/pt-br/assuntos/regulacao-e-fiscalizacao/outorga",
			LastUpdate: lastUpdate(ctx, c.pool, "water_permits"),
		},
	}, nil
}
