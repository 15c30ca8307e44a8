package audit

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite. It exists for local
// development where no Postgres is available for the audit trail.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "audit: sqlite open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "audit: sqlite exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS check_audit (
	id                 TEXT PRIMARY KEY,
	raw_input          TEXT NOT NULL,
	input_type         TEXT NOT NULL,
	normalized_value   TEXT NOT NULL,
	verdict            TEXT NOT NULL,
	score              INTEGER NOT NULL,
	sources            TEXT NOT NULL,
	summary            TEXT NOT NULL,
	metadata           TEXT NOT NULL,
	processing_time_ms INTEGER NOT NULL,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_check_audit_normalized ON check_audit(normalized_value);
CREATE INDEX IF NOT EXISTS idx_check_audit_created_at ON check_audit(created_at);
`

// Migrate implements Store.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "audit: sqlite migrate")
}

// Persist implements Store.
func (s *SQLiteStore) Persist(ctx context.Context, row Row) error {
	rawJSON, err := json.Marshal(row.RawInput)
	if err != nil {
		return eris.Wrap(err, "audit: marshal raw input")
	}
	sourcesJSON, err := json.Marshal(row.Sources)
	if err != nil {
		return eris.Wrap(err, "audit: marshal sources")
	}
	summaryJSON, err := json.Marshal(row.Summary)
	if err != nil {
		return eris.Wrap(err, "audit: marshal summary")
	}
	metadataJSON, err := json.Marshal(row.Metadata)
	if err != nil {
		return eris.Wrap(err, "audit: marshal metadata")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO check_audit
			(id, raw_input, input_type, normalized_value, verdict, score, sources, summary, metadata, processing_time_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID, string(rawJSON), string(row.InputType), row.NormalizedValue, string(row.Verdict),
		row.Score, string(sourcesJSON), string(summaryJSON), string(metadataJSON), row.ProcessingTimeMs, row.CreatedAt.UTC(),
	)
	return eris.Wrap(err, "audit: sqlite insert")
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
