package checkers

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/agrotrace/agrocheck/internal/config"
	"github.com/agrotrace/agrocheck/internal/db"
	"github.com/agrotrace/agrocheck/internal/model"
)

const embargoesURL = "https://servicos.ibama.gov.br/ctf/publico/areasembargadas/ConsultaPublicaAreasEmbargadas.php"

// maxEmbargoDetails bounds how many embargo records are surfaced in details.
const maxEmbargoDetails = 5

// EmbargoesChecker matches documents against IBAMA environmental embargoes.
type EmbargoesChecker struct {
	pool db.Pool
	cfg  config.CheckersConfig
}

// Descriptor implements checker.Checker.
func (c *EmbargoesChecker) Descriptor() model.Descriptor {
	return applyOverrides(model.Descriptor{
		Name:                "ibama_embargoes",
		Category:            model.CategoryEnvironmental,
		Description:         "IBAMA embargoed areas by responsible document",
		Priority:            9,
		SupportedInputTypes: documentTypes,
		CacheTTL:            24 * time.Hour,
		Timeout:             5 * time.Second,
		Enabled:             true,
	}, c.cfg)
}

type embargoRecord struct {
	TADNumber    string    `json:"tadNumber"`
	Municipality string    `json:"municipality"`
	State        string    `json:"state"`
	AreaHa       float64   `json:"areaHa"`
	EmbargoDate  time.Time `json:"embargoDate"`
}

// Execute implements checker.Checker.
func (c *EmbargoesChecker) Execute(ctx context.Context, input model.NormalizedInput) (*model.CheckerResult, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT tad_number, municipality, state, area_ha, embargo_date
		FROM ibama_embargoes
		WHERE document = $1
		ORDER BY embargo_date DESC`,
		input.CanonicalValue,
	)
	if err != nil {
		return nil, eris.Wrap(err, "ibama_embargoes: query")
	}
	defer rows.Close()

	var records []embargoRecord
	var totalArea float64
	for rows.Next() {
		var r embargoRecord
		if err := rows.Scan(&r.TADNumber, &r.Municipality, &r.State, &r.AreaHa, &r.EmbargoDate); err != nil {
			return nil, eris.Wrap(err, "ibama_embargoes: scan")
		}
		totalArea += r.AreaHa
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "ibama_embargoes: iterate")
	}

	evidence := model.Evidence{
		DataSource: "ibama_embargoes",
		URL:        embargoesURL,
		LastUpdate: lastUpdate(ctx, c.pool, "ibama_embargoes"),
	}

	if len(records) == 0 {
		return &model.CheckerResult{
			Status:   model.StatusPass,
			Message:  "no environmental embargoes for document",
			Evidence: evidence,
		}, nil
	}

	severity := model.SeverityMedium
	switch {
	case totalArea > 1000:
		severity = model.SeverityCritical
	case totalArea >= 100:
		severity = model.SeverityHigh
	}

	shown := records
	if len(shown) > maxEmbargoDetails {
		shown = shown[:maxEmbargoDetails]
	}

	return &model.CheckerResult{
		Status:   model.StatusFail,
		Severity: severity,
		Message:  "active environmental embargoes found for document",
		Details: model.JSONMap{
			"totalEmbargoes": len(records),
			"totalAreaHa":    totalArea,
			"embargoes":      shown,
		},
		Evidence: evidence,
	}, nil
}

// EmbargoProximityChecker flags points close to embargoed-area locations.
// Severity rises as the closest embargo gets nearer.
type EmbargoProximityChecker struct {
	pool         db.Pool
	cfg          config.CheckersConfig
	bufferMeters float64
}

// Descriptor implements checker.Checker.
func (c *EmbargoProximityChecker) Descriptor() model.Descriptor {
	return applyOverrides(model.Descriptor{
		Name:                "embargo_proximity",
		Category:            model.CategoryEnvironmental,
		Description:         "IBAMA embargoed areas near the property location",
		Priority:            7,
		SupportedInputTypes: spatialTypes,
		CacheTTL:            24 * time.Hour,
		Timeout:             8 * time.Second,
		Enabled:             true,
	}, c.cfg)
}

type embargoNearby struct {
	TADNumber      string  `json:"tadNumber"`
	Municipality   string  `json:"municipality"`
	State          string  `json:"state"`
	AreaHa         float64 `json:"areaHa"`
	DistanceMeters float64 `json:"distanceMeters"`
}

// Execute implements checker.Checker.
func (c *EmbargoProximityChecker) Execute(ctx context.Context, input model.NormalizedInput) (*model.CheckerResult, error) {
	lat, lon, err := resolvePoint(ctx, c.pool, input)
	if err != nil {
		return nil, err
	}

	rows, err := c.pool.Query(ctx, `
		SELECT tad_number, municipality, state, area_ha,
		       ST_Distance(geom::geography, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography) AS distance_m
		FROM ibama_embargoes
		WHERE geom IS NOT NULL
		  AND ST_DWithin(geom::geography, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
		ORDER BY distance_m
		LIMIT 20`,
		lon, lat, c.bufferMeters,
	)
	if err != nil {
		return nil, eris.Wrap(err, "embargo_proximity: query")
	}
	defer rows.Close()

	var nearby []embargoNearby
	for rows.Next() {
		var n embargoNearby
		if err := rows.Scan(&n.TADNumber, &n.Municipality, &n.State, &n.AreaHa, &n.DistanceMeters); err != nil {
			return nil, eris.Wrap(err, "embargo_proximity: scan")
		}
		nearby = append(nearby, n)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "embargo_proximity: iterate")
	}

	evidence := model.Evidence{
		DataSource: "embargo_proximity",
		URL:        embargoesURL,
		LastUpdate: lastUpdate(ctx, c.pool, "ibama_embargoes"),
	}

	if len(nearby) == 0 {
		return &model.CheckerResult{
			Status:   model.StatusPass,
			Message:  "no embargoed areas within buffer",
			Details:  model.JSONMap{"bufferMeters": c.bufferMeters},
			Evidence: evidence,
		}, nil
	}

	closest := nearby[0].DistanceMeters
	severity := model.SeverityMedium
	switch {
	case closest < 500:
		severity = model.SeverityCritical
	case closest < 2000:
		severity = model.SeverityHigh
	}

	return &model.CheckerResult{
		Status:   model.StatusFail,
		Severity: severity,
		Message:  "embargoed areas within buffer of the location",
		Details: model.JSONMap{
			"bufferMeters":          c.bufferMeters,
			"count":                 len(nearby),
			"closestDistanceMeters": closest,
			"embargoes":             nearby,
		},
		Evidence: evidence,
	}, nil
}
