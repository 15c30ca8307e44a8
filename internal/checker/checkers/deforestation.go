package checkers

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/agrotrace/agrocheck/internal/config"
	"github.com/agrotrace/agrocheck/internal/db"
	"github.com/agrotrace/agrocheck/internal/model"
)

const terraBrasilisURL = "http://terrabrasilis.dpi.inpe.br/en/home-page/"

// ProdesChecker tests containment in annual PRODES deforestation polygons.
type ProdesChecker struct {
	pool db.Pool
	cfg  config.CheckersConfig
}

// Descriptor implements checker.Checker.
func (c *ProdesChecker) Descriptor() model.Descriptor {
	return applyOverrides(model.Descriptor{
		Name:                "prodes_deforestation",
		Category:            model.CategoryEnvironmental,
		Description:         "INPE PRODES annual deforestation containment",
		Priority:            8,
		SupportedInputTypes: spatialTypes,
		CacheTTL:            7 * 24 * time.Hour,
		Timeout:             8 * time.Second,
		Enabled:             true,
	}, c.cfg)
}

type prodesHit struct {
	Year   int     `json:"year"`
	AreaHa float64 `json:"areaHa"`
}

// Execute implements checker.Checker.
func (c *ProdesChecker) Execute(ctx context.Context, input model.NormalizedInput) (*model.CheckerResult, error) {
	lat, lon, err := resolvePoint(ctx, c.pool, input)
	if err != nil {
		return nil, err
	}

	rows, err := c.pool.Query(ctx, `
		SELECT year, area_ha
		FROM prodes_deforestation
		WHERE ST_Contains(geom, ST_SetSRID(ST_MakePoint($1, $2), 4326))
		ORDER BY year DESC
		LIMIT 10`,
		lon, lat,
	)
	if err != nil {
		return nil, eris.Wrap(err, "prodes: query")
	}
	defer rows.Close()

	var hits []prodesHit
	for rows.Next() {
		var h prodesHit
		if err := rows.Scan(&h.Year, &h.AreaHa); err != nil {
			return nil, eris.Wrap(err, "prodes: scan")
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "prodes: iterate")
	}

	evidence := model.Evidence{
		DataSource: "prodes_deforestation",
		URL:        terraBrasilisURL,
		LastUpdate: lastUpdate(ctx, c.pool, "prodes_deforestation"),
	}

	if len(hits) == 0 {
		return &model.CheckerResult{
			Status:   model.StatusPass,
			Message:  "point is not inside a mapped deforestation polygon",
			Evidence: evidence,
		}, nil
	}

	// Rows are ordered by year desc; the first hit is the most recent.
	return &model.CheckerResult{
		Status:   model.StatusFail,
		Severity: model.SeverityHigh,
		Message:  "point lies inside a mapped deforestation polygon",
		Details: model.JSONMap{
			"mostRecentYear": hits[0].Year,
			"areaHa":         hits[0].AreaHa,
			"polygons":       hits,
		},
		Evidence: evidence,
	}, nil
}

// deterRecentWindow and deterCriticalAge bound which DETER alerts are
// considered and when an alert's age alone forces CRITICAL.
const (
	deterRecentWindow = 90 * 24 * time.Hour
	deterCriticalAge  = 7 * 24 * time.Hour
)

// DeterChecker tests containment in real-time DETER alert polygons published
// within the last 90 days.
type DeterChecker struct {
	pool db.Pool
	cfg  config.CheckersConfig
}

// Descriptor implements checker.Checker.
func (c *DeterChecker) Descriptor() model.Descriptor {
	return applyOverrides(model.Descriptor{
		Name:                "deter_alerts",
		Category:            model.CategoryEnvironmental,
		Description:         "INPE DETER real-time deforestation alerts",
		Priority:            9,
		SupportedInputTypes: spatialTypes,
		CacheTTL:            time.Hour,
		Timeout:             8 * time.Second,
		Enabled:             true,
	}, c.cfg)
}

type deterHit struct {
	ClassName   string    `json:"className"`
	AreaHa      float64   `json:"areaHa"`
	PublishedAt time.Time `json:"publishedAt"`
}

// Execute implements checker.Checker.
func (c *DeterChecker) Execute(ctx context.Context, input model.NormalizedInput) (*model.CheckerResult, error) {
	lat, lon, err := resolvePoint(ctx, c.pool, input)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-deterRecentWindow)
	rows, err := c.pool.Query(ctx, `
		SELECT classname, area_ha, published_at
		FROM deter_alerts
		WHERE published_at >= $3
		  AND ST_Contains(geom, ST_SetSRID(ST_MakePoint($1, $2), 4326))
		ORDER BY published_at DESC
		LIMIT 10`,
		lon, lat, cutoff,
	)
	if err != nil {
		return nil, eris.Wrap(err, "deter: query")
	}
	defer rows.Close()

	var hits []deterHit
	for rows.Next() {
		var h deterHit
		if err := rows.Scan(&h.ClassName, &h.AreaHa, &h.PublishedAt); err != nil {
			return nil, eris.Wrap(err, "deter: scan")
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "deter: iterate")
	}

	evidence := model.Evidence{
		DataSource: "deter_alerts",
		URL:        terraBrasilisURL,
		LastUpdate: lastUpdate(ctx, c.pool, "deter_alerts"),
	}

	if len(hits) == 0 {
		return &model.CheckerResult{
			Status:   model.StatusPass,
			Message:  "no recent deforestation alerts at the location",
			Evidence: evidence,
		}, nil
	}

	severity := model.SeverityHigh
	for _, h := range hits {
		if deterClassCritical(h.ClassName) {
			severity = model.SeverityCritical
			break
		}
	}
	// A very fresh alert is critical regardless of class.
	if time.Since(hits[0].PublishedAt) <= deterCriticalAge {
		severity = model.SeverityCritical
	}

	return &model.CheckerResult{
		Status:   model.StatusFail,
		Severity: severity,
		Message:  "recent deforestation alerts at the location",
		Details: model.JSONMap{
			"count":          len(hits),
			"mostRecentDate": hits[0].PublishedAt,
			"alerts":         hits,
		},
		Evidence: evidence,
	}, nil
}

// deterClassCritical reports whether the DETER classname indicates clearing
// rather than degradation or mining.
func deterClassCritical(className string) bool {
	switch strings.ToUpper(strings.TrimSpace(className)) {
	case "DESMATAMENTO_VEG", "DESMATAMENTO_CR", "CORTE_SELETIVO":
		return true
	}
	return false
}

// MapBiomasChecker tests proximity to validated deforestation alerts within
// the last two years.
type MapBiomasChecker struct {
	pool db.Pool
	cfg  config.CheckersConfig
}

// Descriptor implements checker.Checker.
func (c *MapBiomasChecker) Descriptor() model.Descriptor {
	return applyOverrides(model.Descriptor{
		Name:                "mapbiomas_alerts",
		Category:            model.CategoryEnvironmental,
		Description:         "MapBiomas validated deforestation alerts nearby",
		Priority:            8,
		SupportedInputTypes: spatialTypes,
		CacheTTL:            24 * time.Hour,
		Timeout:             8 * time.Second,
		Enabled:             true,
	}, c.cfg)
}

type mapbiomasHit struct {
	AlertCode         string    `json:"alertCode"`
	AreaHa            float64   `json:"areaHa"`
	DetectedAt        time.Time `json:"detectedAt"`
	OverlapsProtected bool      `json:"overlapsProtected"`
	OverlapsEmbargo   bool      `json:"overlapsEmbargo"`
}

// Execute implements checker.Checker.
func (c *MapBiomasChecker) Execute(ctx context.Context, input model.NormalizedInput) (*model.CheckerResult, error) {
	lat, lon, err := resolvePoint(ctx, c.pool, input)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().AddDate(-2, 0, 0)
	rows, err := c.pool.Query(ctx, `
		SELECT alert_code, area_ha, detected_at, overlaps_protected, overlaps_embargo
		FROM mapbiomas_validated_alerts
		WHERE detected_at >= $3
		  AND ST_DWithin(geom::geography, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, 1000)
		ORDER BY detected_at DESC
		LIMIT 20`,
		lon, lat, cutoff,
	)
	if err != nil {
		return nil, eris.Wrap(err, "mapbiomas: query")
	}
	defer rows.Close()

	var hits []mapbiomasHit
	for rows.Next() {
		var h mapbiomasHit
		if err := rows.Scan(&h.AlertCode, &h.AreaHa, &h.DetectedAt, &h.OverlapsProtected, &h.OverlapsEmbargo); err != nil {
			return nil, eris.Wrap(err, "mapbiomas: scan")
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "mapbiomas: iterate")
	}

	evidence := model.Evidence{
		DataSource: "mapbiomas_alerts",
		URL:        "https://alerta.mapbiomas.org",
		LastUpdate: lastUpdate(ctx, c.pool, "mapbiomas_alerts"),
	}

	if len(hits) == 0 {
		return &model.CheckerResult{
			Status:   model.StatusPass,
			Message:  "no validated deforestation alerts within 1 km",
			Evidence: evidence,
		}, nil
	}

	severity := model.SeverityMedium
	sixMonthsAgo := time.Now().AddDate(0, -6, 0)
	for _, h := range hits {
		if h.OverlapsProtected || h.OverlapsEmbargo || h.AreaHa >= 25 {
			severity = model.SeverityCritical
			break
		}
		if h.DetectedAt.After(sixMonthsAgo) {
			severity = model.SeverityHigh
		}
	}

	return &model.CheckerResult{
		Status:   model.StatusFail,
		Severity: severity,
		Message:  "validated deforestation alerts within 1 km",
		Details: model.JSONMap{
			"count":  len(hits),
			"alerts": hits,
		},
		Evidence: evidence,
	}, nil
}
