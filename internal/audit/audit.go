// Package audit persists a row for every completed check request.
// Writes are best-effort: a persistence failure is logged and never affects
// the response.
package audit

import (
	"context"
	"time"

	"github.com/agrotrace/agrocheck/internal/model"
)

// Row is one persisted check, the full response envelope plus the raw input.
type Row struct {
	ID               string
	RawInput         model.RawInput
	NormalizedValue  string
	InputType        model.InputType
	Verdict          model.Verdict
	Score            int
	Sources          []model.SourceResult
	Summary          model.Summary
	Metadata         model.ResponseMetadata
	ProcessingTimeMs int64
	CreatedAt        time.Time
}

// Store persists audit rows. Rows are immutable once written.
type Store interface {
	// Persist writes one audit row.
	Persist(ctx context.Context, row Row) error

	// Migrate creates the audit schema if missing.
	Migrate(ctx context.Context) error

	// Close releases the store's resources.
	Close() error
}

// RowFromResponse builds the audit row for a finished check.
func RowFromResponse(raw model.RawInput, resp *model.CheckResponse) Row {
	return Row{
		ID:               resp.CheckID,
		RawInput:         raw,
		NormalizedValue:  resp.Input.CanonicalValue,
		InputType:        resp.Input.Type,
		Verdict:          resp.Verdict,
		Score:            resp.Score,
		Sources:          resp.Sources,
		Summary:          resp.Summary,
		Metadata:         resp.Metadata,
		ProcessingTimeMs: resp.Metadata.ProcessingTimeMs,
		CreatedAt:        resp.Timestamp,
	}
}
