package checkers

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/agrotrace/agrocheck/internal/config"
	"github.com/agrotrace/agrocheck/internal/db"
	"github.com/agrotrace/agrocheck/internal/model"
)

// SlaveLaborChecker matches documents against the federal forced-labor
// employer registry ("lista suja").
type SlaveLaborChecker struct {
	pool db.Pool
	cfg  config.CheckersConfig
}

// Descriptor implements checker.Checker.
func (c *SlaveLaborChecker) Descriptor() model.Descriptor {
	return applyOverrides(model.Descriptor{
		Name:                "slave_labor",
		Category:            model.CategorySocial,
		Description:         "Federal registry of employers caught using forced labor",
		Priority:            10,
		SupportedInputTypes: documentTypes,
		CacheTTL:            24 * time.Hour,
		Timeout:             5 * time.Second,
		Enabled:             true,
	}, c.cfg)
}

type laborRecord struct {
	Year            int    `json:"year"`
	State           string `json:"state"`
	EmployerName    string `json:"employerName"`
	WorkersAffected int    `json:"workersAffected"`
}

// Execute implements checker.Checker.
func (c *SlaveLaborChecker) Execute(ctx context.Context, input model.NormalizedInput) (*model.CheckerResult, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT year, state, employer_name, workers_affected
		FROM slave_labor_registry
		WHERE document = $1
		ORDER BY year DESC`,
		input.CanonicalValue,
	)
	if err != nil {
		return nil, eris.Wrap(err, "slave_labor: query")
	}
	defer rows.Close()

	var records []laborRecord
	for rows.Next() {
		var r laborRecord
		if err := rows.Scan(&r.Year, &r.State, &r.EmployerName, &r.WorkersAffected); err != nil {
			return nil, eris.Wrap(err, "slave_labor: scan")
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "slave_labor: iterate")
	}

	evidence := model.Evidence{
		DataSource: "slave_labor",
		URL:        "https://www.gov.br/trabalho-e-emprego/pt-br/assuntos/inspecao-do-trabalho/areas-de-atuacao/cadastro_de_empregadores.pdf",
		LastUpdate: lastUpdate(ctx, c.pool, "slave_labor"),
	}

	if len(records) == 0 {
		return &model.CheckerResult{
			Status:   model.StatusPass,
			Message:  "document not present in the forced-labor employer registry",
			Evidence: evidence,
		}, nil
	}

	return &model.CheckerResult{
		Status:   model.StatusFail,
		Severity: model.SeverityCritical,
		Message:  "document present in the forced-labor employer registry",
		Details: model.JSONMap{
			"occurrences": len(records),
			"records":     records,
		},
		Evidence: evidence,
	}, nil
}
