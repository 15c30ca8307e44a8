package checkers

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/agrotrace/agrocheck/internal/config"
	"github.com/agrotrace/agrocheck/internal/db"
	"github.com/agrotrace/agrocheck/internal/model"
)

// fireRecentWindow bounds which hotspot detections are considered.
const fireRecentWindow = 90 * 24 * time.Hour

// FireHotspotsChecker tests proximity to INPE fire-hotspot detections.
type FireHotspotsChecker struct {
	pool         db.Pool
	cfg          config.CheckersConfig
	bufferMeters float64
}

// Descriptor implements checker.Checker.
func (c *FireHotspotsChecker) Descriptor() model.Descriptor {
	return applyOverrides(model.Descriptor{
		Name:                "fire_hotspots",
		Category:            model.CategoryEnvironmental,
		Description:         "INPE fire hotspots near the property location",
		Priority:            6,
		SupportedInputTypes: spatialTypes,
		CacheTTL:            6 * time.Hour,
		Timeout:             8 * time.Second,
		Enabled:             true,
	}, c.cfg)
}

// Execute implements checker.Checker.
func (c *FireHotspotsChecker) Execute(ctx context.Context, input model.NormalizedInput) (*model.CheckerResult, error) {
	lat, lon, err := resolvePoint(ctx, c.pool, input)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-fireRecentWindow)

	var count int
	var latest *time.Time
	row := c.pool.QueryRow(ctx, `
		SELECT count(*), max(detected_at)
		FROM fire_hotspots
		WHERE detected_at >= $3
		  AND ST_DWithin(geom::geography, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $4)`,
		lon, lat, cutoff, c.bufferMeters,
	)
	if err := row.Scan(&count, &latest); err != nil {
		return nil, eris.Wrap(err, "fire_hotspots: query")
	}

	evidence := model.Evidence{
		DataSource: "fire_hotspots",
		URL:        "https://queimadas.dgi.inpe.br/queimadas/portal",
		LastUpdate: lastUpdate(ctx, c.pool, "fire_hotspots"),
	}

	if count == 0 {
		return &model.CheckerResult{
			Status:   model.StatusPass,
			Message:  "no recent fire hotspots within buffer",
			Details:  model.JSONMap{"bufferMeters": c.bufferMeters},
			Evidence: evidence,
		}, nil
	}

	severity := model.SeverityMedium
	if count >= 10 {
		severity = model.SeverityHigh
	}

	details := model.JSONMap{
		"bufferMeters": c.bufferMeters,
		"count":        count,
	}
	if latest != nil {
		details["mostRecentDetection"] = *latest
	}

	return &model.CheckerResult{
		Status:   model.StatusFail,
		Severity: severity,
		Message:  "recent fire hotspots within buffer",
		Details:  details,
		Evidence: evidence,
	}, nil
}
