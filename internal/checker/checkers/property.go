package checkers

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"

	"github.com/agrotrace/agrocheck/internal/config"
	"github.com/agrotrace/agrocheck/internal/db"
	"github.com/agrotrace/agrocheck/internal/model"
)

const carURL = "https://consultapublica.car.gov.br/publico/imoveis/index"

// Canonical CAR registration statuses. The registry mixes full Portuguese
// words and two-letter codes; everything is mapped here once at scan time and
// compared against the canonical words only.
const (
	carStatusActive    = "ATIVO"
	carStatusPending   = "PENDENTE"
	carStatusSuspended = "SUSPENSO"
	carStatusCancelled = "CANCELADO"
)

// canonicalCARStatus maps registry status variants to the canonical words.
func canonicalCARStatus(s string) string {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "AT", carStatusActive:
		return carStatusActive
	case "PE", carStatusPending:
		return carStatusPending
	case "SU", carStatusSuspended:
		return carStatusSuspended
	case "CA", carStatusCancelled:
		return carStatusCancelled
	}
	return strings.ToUpper(strings.TrimSpace(s))
}

// carStatusFails reports whether the canonical status is non-compliant.
func carStatusFails(canonical string) bool {
	switch canonical {
	case carStatusCancelled, carStatusSuspended, carStatusPending:
		return true
	}
	return false
}

// CARStatusChecker surfaces the rural-property registration status. For CAR
// input it looks up the code; for coordinates it finds the containing
// property polygon.
type CARStatusChecker struct {
	pool db.Pool
	cfg  config.CheckersConfig
}

// Descriptor implements checker.Checker.
func (c *CARStatusChecker) Descriptor() model.Descriptor {
	return applyOverrides(model.Descriptor{
		Name:                "car_status",
		Category:            model.CategoryLegal,
		Description:         "SICAR rural property registration status",
		Priority:            7,
		SupportedInputTypes: []model.InputType{model.InputCAR, model.InputCoordinates},
		CacheTTL:            7 * 24 * time.Hour,
		Timeout:             8 * time.Second,
		Enabled:             true,
	}, c.cfg)
}

// Execute implements checker.Checker.
func (c *CARStatusChecker) Execute(ctx context.Context, input model.NormalizedInput) (*model.CheckerResult, error) {
	var (
		carCode, status, state, municipality string
		areaHa                               float64
		centroidWKB                          []byte
		row                                  pgx.Row
	)

	if input.Type == model.InputCAR {
		row = c.pool.QueryRow(ctx, `
			SELECT car_code, status, state, municipality, area_ha, ST_AsBinary(ST_Centroid(geom))
			FROM car_properties
			WHERE car_code = $1`,
			input.CanonicalValue,
		)
	} else if input.Coordinates == nil {
		return nil, eris.New("car_status: coordinates input without coordinates")
	} else {
		row = c.pool.QueryRow(ctx, `
			SELECT car_code, status, state, municipality, area_ha, ST_AsBinary(ST_Centroid(geom))
			FROM car_properties
			WHERE ST_Contains(geom, ST_SetSRID(ST_MakePoint($1, $2), 4326))
			LIMIT 1`,
			input.Coordinates.Lon, input.Coordinates.Lat,
		)
	}

	err := row.Scan(&carCode, &status, &state, &municipality, &areaHa, &centroidWKB)

	evidence := model.Evidence{
		DataSource: "car_status",
		URL:        carURL,
		LastUpdate: lastUpdate(ctx, c.pool, "car_status"),
	}

	if err == pgx.ErrNoRows {
		message := "CAR code not found in the registry"
		if input.Type == model.InputCoordinates {
			message = "no rural property registered at the location"
		}
		return &model.CheckerResult{
			Status:   model.StatusWarning,
			Message:  message,
			Evidence: evidence,
		}, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "car_status: query")
	}

	canonical := canonicalCARStatus(status)
	details := model.JSONMap{
		"carCode":      carCode,
		"status":       canonical,
		"state":        state,
		"municipality": municipality,
		"areaHa":       areaHa,
	}
	if lat, lon, ok := decodeCentroid(centroidWKB); ok {
		details["centroid"] = model.JSONMap{"lat": lat, "lon": lon}
	}

	if carStatusFails(canonical) {
		return &model.CheckerResult{
			Status:   model.StatusFail,
			Severity: model.SeverityHigh,
			Message:  "rural property registration is not active",
			Details:  details,
			Evidence: evidence,
		}, nil
	}

	return &model.CheckerResult{
		Status:   model.StatusPass,
		Message:  "rural property registration is active",
		Details:  details,
		Evidence: evidence,
	}, nil
}

// decodeCentroid parses a WKB point returned by ST_AsBinary.
func decodeCentroid(data []byte) (lat, lon float64, ok bool) {
	if len(data) == 0 {
		return 0, 0, false
	}
	g, err := wkb.Unmarshal(data)
	if err != nil {
		return 0, 0, false
	}
	p, isPoint := g.(*geom.Point)
	if !isPoint {
		return 0, 0, false
	}
	return p.Y(), p.X(), true
}

// maxIntersectionPolygons bounds the CAR x PRODES intersection to keep the
// query latency predictable on large properties.
const maxIntersectionPolygons = 50

// CARDeforestationChecker computes the deforested area inside a property by
// intersecting its polygon with the annual deforestation polygons.
type CARDeforestationChecker struct {
	pool db.Pool
	cfg  config.CheckersConfig
}

// Descriptor implements checker.Checker.
func (c *CARDeforestationChecker) Descriptor() model.Descriptor {
	return applyOverrides(model.Descriptor{
		Name:                "car_deforestation",
		Category:            model.CategoryEnvironmental,
		Description:         "Deforested area within the property (CAR x PRODES intersection)",
		Priority:            8,
		SupportedInputTypes: []model.InputType{model.InputCAR, model.InputCoordinates},
		CacheTTL:            24 * time.Hour,
		Timeout:             15 * time.Second,
		Enabled:             true,
	}, c.cfg)
}

type intersectionHit struct {
	Year   int     `json:"year"`
	AreaHa float64 `json:"areaHa"`
}

// Execute implements checker.Checker.
func (c *CARDeforestationChecker) Execute(ctx context.Context, input model.NormalizedInput) (*model.CheckerResult, error) {
	var rows pgx.Rows
	var err error

	// Precise area in hectares via the geography cast; LIMIT bounds latency.
	if input.Type == model.InputCAR {
		rows, err = c.pool.Query(ctx, `
			SELECT p.year,
			       ST_Area(ST_Intersection(c.geom, p.geom)::geography) / 10000.0 AS area_ha
			FROM car_properties c
			JOIN prodes_deforestation p ON ST_Intersects(c.geom, p.geom)
			WHERE c.car_code = $1
			ORDER BY p.year DESC
			LIMIT $2`,
			input.CanonicalValue, maxIntersectionPolygons,
		)
	} else if input.Coordinates == nil {
		return nil, eris.New("car_deforestation: coordinates input without coordinates")
	} else {
		rows, err = c.pool.Query(ctx, `
			SELECT p.year,
			       ST_Area(ST_Intersection(c.geom, p.geom)::geography) / 10000.0 AS area_ha
			FROM car_properties c
			JOIN prodes_deforestation p ON ST_Intersects(c.geom, p.geom)
			WHERE ST_Contains(c.geom, ST_SetSRID(ST_MakePoint($1, $2), 4326))
			ORDER BY p.year DESC
			LIMIT $3`,
			input.Coordinates.Lon, input.Coordinates.Lat, maxIntersectionPolygons,
		)
	}
	if err != nil {
		return nil, eris.Wrap(err, "car_deforestation: query")
	}
	defer rows.Close()

	var hits []intersectionHit
	for rows.Next() {
		var h intersectionHit
		if err := rows.Scan(&h.Year, &h.AreaHa); err != nil {
			return nil, eris.Wrap(err, "car_deforestation: scan")
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "car_deforestation: iterate")
	}

	evidence := model.Evidence{
		DataSource: "car_deforestation",
		URL:        terraBrasilisURL,
		LastUpdate: lastUpdate(ctx, c.pool, "prodes_deforestation"),
	}

	if len(hits) == 0 {
		return &model.CheckerResult{
			Status:   model.StatusPass,
			Message:  "no mapped deforestation inside the property",
			Evidence: evidence,
		}, nil
	}

	var totalArea float64
	newestYear := hits[0].Year
	byYear := make(map[int]float64)
	for _, h := range hits {
		totalArea += h.AreaHa
		byYear[h.Year] += h.AreaHa
		if h.Year > newestYear {
			newestYear = h.Year
		}
	}

	years := make([]intersectionHit, 0, len(byYear))
	for y, a := range byYear {
		years = append(years, intersectionHit{Year: y, AreaHa: a})
	}
	sort.Slice(years, func(i, j int) bool { return years[i].Year > years[j].Year })

	currentYear := time.Now().Year()
	severity := model.SeverityMedium
	switch {
	case newestYear >= currentYear-2 || totalArea >= 100:
		severity = model.SeverityCritical
	case newestYear >= currentYear-5 || totalArea >= 25 || len(hits) >= 5:
		severity = model.SeverityHigh
	}

	return &model.CheckerResult{
		Status:   model.StatusFail,
		Severity: severity,
		Message:  "mapped deforestation inside the property",
		Details: model.JSONMap{
			"totalAreaHa":  totalArea,
			"newestYear":   newestYear,
			"polygonCount": len(hits),
			"byYear":       years,
			"polygons":     hits,
		},
		Evidence: evidence,
	}, nil
}
