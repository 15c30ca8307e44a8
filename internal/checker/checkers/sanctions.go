package checkers

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/agrotrace/agrocheck/internal/config"
	"github.com/agrotrace/agrocheck/internal/db"
	"github.com/agrotrace/agrocheck/internal/model"
)

// SanctionsChecker matches documents against the federal sanctions registry
// (CEIS, CNEP and CEAF lists).
type SanctionsChecker struct {
	pool db.Pool
	cfg  config.CheckersConfig
}

// Descriptor implements checker.Checker.
func (c *SanctionsChecker) Descriptor() model.Descriptor {
	return applyOverrides(model.Descriptor{
		Name:                "ibama_sanctions",
		Category:            model.CategoryLegal,
		Description:         "Federal sanctions registry (CEIS/CNEP/CEAF)",
		Priority:            8,
		SupportedInputTypes: documentTypes,
		CacheTTL:            24 * time.Hour,
		Timeout:             5 * time.Second,
		Enabled:             true,
	}, c.cfg)
}

type sanctionRecord struct {
	Type      string     `json:"type"` // CEIS, CNEP or CEAF
	Organ     string     `json:"organ"`
	StartDate time.Time  `json:"startDate"`
	EndDate   *time.Time `json:"endDate,omitempty"`
}

// Execute implements checker.Checker.
func (c *SanctionsChecker) Execute(ctx context.Context, input model.NormalizedInput) (*model.CheckerResult, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT sanction_type, sanctioning_organ, start_date, end_date
		FROM sanctions_registry
		WHERE document = $1
		ORDER BY start_date DESC`,
		input.CanonicalValue,
	)
	if err != nil {
		return nil, eris.Wrap(err, "ibama_sanctions: query")
	}
	defer rows.Close()

	var records []sanctionRecord
	for rows.Next() {
		var r sanctionRecord
		if err := rows.Scan(&r.Type, &r.Organ, &r.StartDate, &r.EndDate); err != nil {
			return nil, eris.Wrap(err, "ibama_sanctions: scan")
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "ibama_sanctions: iterate")
	}

	evidence := model.Evidence{
		DataSource: "ibama_sanctions",
		URL:        "https://portaldatransparencia.gov.br/sancoes",
		LastUpdate: lastUpdate(ctx, c.pool, "ibama_sanctions"),
	}

	if len(records) == 0 {
		return &model.CheckerResult{
			Status:   model.StatusPass,
			Message:  "no sanctions found for document",
			Evidence: evidence,
		}, nil
	}

	return &model.CheckerResult{
		Status:   model.StatusFail,
		Severity: model.SeverityHigh,
		Message:  "active sanctions found for document",
		Details: model.JSONMap{
			"count":     len(records),
			"sanctions": records,
		},
		Evidence: evidence,
	}, nil
}
