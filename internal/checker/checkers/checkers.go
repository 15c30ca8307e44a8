// Package checkers implements the per-source compliance checkers against the
// PostGIS-backed relational store.
//
// Spatial semantics used throughout: containment is ST_Contains against a
// point in EPSG:4326; distance is ST_DWithin over the geography cast (meters);
// intersection area is ST_Area(ST_Intersection(...)::geography) in square
// meters, divided by 10000 for hectares.
package checkers

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/agrotrace/agrocheck/internal/checker"
	"github.com/agrotrace/agrocheck/internal/config"
	"github.com/agrotrace/agrocheck/internal/db"
	"github.com/agrotrace/agrocheck/internal/model"
)

// validTables is an allowlist of table names interpolated into spatial query
// text. Everything else goes through placeholders.
var validTables = map[string]bool{
	"slave_labor_registry":       true,
	"ibama_embargoes":            true,
	"sanctions_registry":         true,
	"indigenous_lands":           true,
	"conservation_units":         true,
	"prodes_deforestation":       true,
	"deter_alerts":               true,
	"mapbiomas_validated_alerts": true,
	"fire_hotspots":              true,
	"water_permits":              true,
	"car_properties":             true,
}

func validateTable(table string) error {
	if !validTables[table] {
		return eris.Errorf("checkers: invalid table name %q", table)
	}
	return nil
}

// sourceTables maps checker names to their backing table for the sample
// endpoint.
var sourceTables = map[string]string{
	"slave_labor":          "slave_labor_registry",
	"ibama_embargoes":      "ibama_embargoes",
	"embargo_proximity":    "ibama_embargoes",
	"ibama_sanctions":      "sanctions_registry",
	"indigenous_lands":     "indigenous_lands",
	"conservation_units":   "conservation_units",
	"prodes_deforestation": "prodes_deforestation",
	"deter_alerts":         "deter_alerts",
	"mapbiomas_alerts":     "mapbiomas_validated_alerts",
	"fire_hotspots":        "fire_hotspots",
	"water_permits":        "water_permits",
	"car_status":           "car_properties",
	"car_deforestation":    "prodes_deforestation",
}

// SampleRecords returns up to limit rows from the source's backing table as
// generic JSON objects, with the geometry column stripped. Returns false when
// the source name is unknown.
func SampleRecords(ctx context.Context, pool db.Pool, source string, limit int) ([]model.JSONMap, bool, error) {
	table, ok := sourceTables[source]
	if !ok {
		return nil, false, nil
	}
	if err := validateTable(table); err != nil {
		return nil, false, err
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	rows, err := pool.Query(ctx,
		`SELECT to_jsonb(t) - 'geom' FROM `+table+` t LIMIT $1`, limit)
	if err != nil {
		return nil, true, eris.Wrapf(err, "checkers: sample %s", table)
	}
	defer rows.Close()

	var out []model.JSONMap
	for rows.Next() {
		var record model.JSONMap
		if err := rows.Scan(&record); err != nil {
			return nil, true, eris.Wrapf(err, "checkers: scan sample %s", table)
		}
		out = append(out, record)
	}
	return out, true, rows.Err()
}

// resolvePoint produces the query point for a spatial checker: COORDINATES
// inputs carry it directly; CAR inputs resolve to the property centroid.
func resolvePoint(ctx context.Context, pool db.Pool, input model.NormalizedInput) (lat, lon float64, err error) {
	switch input.Type {
	case model.InputCoordinates:
		if input.Coordinates == nil {
			return 0, 0, eris.New("checkers: coordinates input without coordinates")
		}
		return input.Coordinates.Lat, input.Coordinates.Lon, nil
	case model.InputCAR:
		row := pool.QueryRow(ctx, `
			SELECT ST_Y(ST_Centroid(geom)), ST_X(ST_Centroid(geom))
			FROM car_properties
			WHERE car_code = $1`,
			input.CanonicalValue,
		)
		if err := row.Scan(&lat, &lon); err != nil {
			if err == pgx.ErrNoRows {
				return 0, 0, eris.Errorf("checkers: CAR %s not found", input.CanonicalValue)
			}
			return 0, 0, eris.Wrap(err, "checkers: resolve CAR centroid")
		}
		return lat, lon, nil
	}
	return 0, 0, eris.Errorf("checkers: cannot derive point from input type %s", input.Type)
}

// lastUpdate fetches the source's last-update timestamp for evidence.
// Best-effort: a missing row leaves the evidence timestamp empty.
func lastUpdate(ctx context.Context, pool db.Pool, source string) *time.Time {
	var t time.Time
	row := pool.QueryRow(ctx, `SELECT last_updated FROM data_sources WHERE name = $1`, source)
	if err := row.Scan(&t); err != nil {
		return nil
	}
	return &t
}

// spatialTypes is the input set shared by every spatial checker.
var spatialTypes = []model.InputType{model.InputCoordinates, model.InputCAR}

// documentTypes is the input set shared by the document-indexed checkers.
var documentTypes = []model.InputType{model.InputCPF, model.InputCNPJ}

// applyOverrides folds per-checker config overrides into a descriptor.
func applyOverrides(desc model.Descriptor, cfg config.CheckersConfig) model.Descriptor {
	ov, ok := cfg.Overrides[desc.Name]
	if !ok {
		return desc
	}
	if ov.Enabled != nil {
		desc.Enabled = *ov.Enabled
	}
	if ov.TimeoutMs > 0 {
		desc.Timeout = time.Duration(ov.TimeoutMs) * time.Millisecond
	}
	if ov.CacheTTLSec > 0 {
		desc.CacheTTL = time.Duration(ov.CacheTTLSec) * time.Second
	}
	return desc
}

// BuildRegistry constructs the immutable checker registry for the given
// configuration and pool. Registration happens only here; there is no
// import-time side effect.
func BuildRegistry(cfg config.CheckersConfig, pool db.Pool) (*checker.Registry, error) {
	fireBuffer := cfg.FireBufferMeters
	if fireBuffer <= 0 {
		fireBuffer = 10000
	}
	waterBuffer := cfg.WaterBufferMeters
	if waterBuffer <= 0 {
		waterBuffer = 5000
	}
	embargoBuffer := cfg.EmbargoBufferMeters
	if embargoBuffer <= 0 {
		embargoBuffer = 5000
	}

	cs := []checker.Checker{
		&SlaveLaborChecker{pool: pool, cfg: cfg},
		&EmbargoesChecker{pool: pool, cfg: cfg},
		&SanctionsChecker{pool: pool, cfg: cfg},
		&IndigenousLandsChecker{pool: pool, cfg: cfg},
		&ConservationUnitsChecker{pool: pool, cfg: cfg},
		&ProdesChecker{pool: pool, cfg: cfg},
		&DeterChecker{pool: pool, cfg: cfg},
		&MapBiomasChecker{pool: pool, cfg: cfg},
		&FireHotspotsChecker{pool: pool, cfg: cfg, bufferMeters: fireBuffer},
		&WaterPermitsChecker{pool: pool, cfg: cfg, bufferMeters: waterBuffer},
		&CARStatusChecker{pool: pool, cfg: cfg},
		&CARDeforestationChecker{pool: pool, cfg: cfg},
		&EmbargoProximityChecker{pool: pool, cfg: cfg, bufferMeters: embargoBuffer},
	}

	return checker.NewRegistry(cs...)
}
