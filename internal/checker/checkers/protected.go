package checkers

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/agrotrace/agrocheck/internal/config"
	"github.com/agrotrace/agrocheck/internal/db"
	"github.com/agrotrace/agrocheck/internal/model"
)

// IndigenousLandsChecker tests whether the point lies inside a demarcated
// indigenous land. Severity follows the demarcation phase.
type IndigenousLandsChecker struct {
	pool db.Pool
	cfg  config.CheckersConfig
}

// Descriptor implements checker.Checker.
func (c *IndigenousLandsChecker) Descriptor() model.Descriptor {
	return applyOverrides(model.Descriptor{
		Name:                "indigenous_lands",
		Category:            model.CategoryEnvironmental,
		Description:         "FUNAI indigenous land overlap",
		Priority:            9,
		SupportedInputTypes: spatialTypes,
		CacheTTL:            30 * 24 * time.Hour,
		Timeout:             8 * time.Second,
		Enabled:             true,
	}, c.cfg)
}

// Execute implements checker.Checker.
func (c *IndigenousLandsChecker) Execute(ctx context.Context, input model.NormalizedInput) (*model.CheckerResult, error) {
	lat, lon, err := resolvePoint(ctx, c.pool, input)
	if err != nil {
		return nil, err
	}

	var name, ethnicGroup, phase, state string
	row := c.pool.QueryRow(ctx, `
		SELECT name, ethnic_group, phase, state
		FROM indigenous_lands
		WHERE ST_Contains(geom, ST_SetSRID(ST_MakePoint($1, $2), 4326))
		LIMIT 1`,
		lon, lat,
	)
	err = row.Scan(&name, &ethnicGroup, &phase, &state)

	evidence := model.Evidence{
		DataSource: "indigenous_lands",
		URL:        "https://www.gov.br/funai/pt-br/atuacao/terras-indigenas",
		LastUpdate: lastUpdate(ctx, c.pool, "indigenous_lands"),
	}

	if err == pgx.ErrNoRows {
		return &model.CheckerResult{
			Status:   model.StatusPass,
			Message:  "point is not inside an indigenous land",
			Evidence: evidence,
		}, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "indigenous_lands: query")
	}

	return &model.CheckerResult{
		Status:   model.StatusFail,
		Severity: indigenousSeverity(phase),
		Message:  "point lies inside a demarcated indigenous land",
		Details: model.JSONMap{
			"name":        name,
			"ethnicGroup": ethnicGroup,
			"phase":       phase,
			"state":       state,
		},
		Evidence: evidence,
	}, nil
}

// indigenousSeverity maps the demarcation phase to a severity. Fully
// demarcated lands are the most serious overlap.
func indigenousSeverity(phase string) model.Severity {
	switch strings.ToUpper(strings.TrimSpace(phase)) {
	case "REGULARIZADA", "HOMOLOGADA":
		return model.SeverityCritical
	case "DECLARADA":
		return model.SeverityHigh
	}
	return model.SeverityHigh
}

// ConservationUnitsChecker tests whether the point lies inside a conservation
// unit. Severity follows the protection group.
type ConservationUnitsChecker struct {
	pool db.Pool
	cfg  config.CheckersConfig
}

// Descriptor implements checker.Checker.
func (c *ConservationUnitsChecker) Descriptor() model.Descriptor {
	return applyOverrides(model.Descriptor{
		Name:                "conservation_units",
		Category:            model.CategoryEnvironmental,
		Description:         "ICMBio conservation unit overlap",
		Priority:            9,
		SupportedInputTypes: spatialTypes,
		CacheTTL:            30 * 24 * time.Hour,
		Timeout:             8 * time.Second,
		Enabled:             true,
	}, c.cfg)
}

// Execute implements checker.Checker.
func (c *ConservationUnitsChecker) Execute(ctx context.Context, input model.NormalizedInput) (*model.CheckerResult, error) {
	lat, lon, err := resolvePoint(ctx, c.pool, input)
	if err != nil {
		return nil, err
	}

	var name, group, category, sphere string
	row := c.pool.QueryRow(ctx, `
		SELECT name, protection_group, category, admin_sphere
		FROM conservation_units
		WHERE ST_Contains(geom, ST_SetSRID(ST_MakePoint($1, $2), 4326))
		LIMIT 1`,
		lon, lat,
	)
	err = row.Scan(&name, &group, &category, &sphere)

	evidence := model.Evidence{
		DataSource: "conservation_units",
		URL:        "https://www.gov.br/icmbio/pt-br/assuntos/biodiversidade/unidade-de-conservacao",
		LastUpdate: lastUpdate(ctx, c.pool, "conservation_units"),
	}

	if err == pgx.ErrNoRows {
		return &model.CheckerResult{
			Status:   model.StatusPass,
			Message:  "point is not inside a conservation unit",
			Evidence: evidence,
		}, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "conservation_units: query")
	}

	return &model.CheckerResult{
		Status:   model.StatusFail,
		Severity: conservationSeverity(group),
		Message:  "point lies inside a conservation unit",
		Details: model.JSONMap{
			"name":            name,
			"protectionGroup": group,
			"category":        category,
			"adminSphere":     sphere,
		},
		Evidence: evidence,
	}, nil
}

// conservationSeverity maps the protection group to a severity. Unknown
// groups are treated as full protection.
func conservationSeverity(group string) model.Severity {
	switch strings.ToUpper(strings.TrimSpace(group)) {
	case "PROTECAO INTEGRAL", "PROTEÇÃO INTEGRAL":
		return model.SeverityCritical
	case "USO SUSTENTAVEL", "USO SUSTENTÁVEL":
		return model.SeverityHigh
	}
	return model.SeverityCritical
}
