package audit

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/agrotrace/agrocheck/internal/db"
)

// PostgresStore implements Store on the shared pgx pool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres creates a PostgresStore.
func NewPostgres(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS check_audit (
	id                 TEXT PRIMARY KEY,
	raw_input          JSONB NOT NULL,
	input_type         TEXT NOT NULL,
	normalized_value   TEXT NOT NULL,
	verdict            TEXT NOT NULL,
	score              INTEGER NOT NULL,
	sources            JSONB NOT NULL,
	summary            JSONB NOT NULL,
	metadata           JSONB NOT NULL,
	processing_time_ms BIGINT NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_check_audit_normalized ON check_audit(normalized_value);
CREATE INDEX IF NOT EXISTS idx_check_audit_created_at ON check_audit(created_at);

CREATE TABLE IF NOT EXISTS geocode_cache (
	address_hash TEXT PRIMARY KEY,
	latitude     DOUBLE PRECISION NOT NULL,
	longitude    DOUBLE PRECISION NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	matched      BOOLEAN NOT NULL,
	cached_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS api_keys (
	prefix      TEXT PRIMARY KEY,
	key_hash    TEXT NOT NULL,
	permissions TEXT[] NOT NULL DEFAULT '{read}',
	rate_limit  INTEGER NOT NULL DEFAULT 60,
	active      BOOLEAN NOT NULL DEFAULT true,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Migrate implements Store.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "audit: postgres migrate")
}

// Persist implements Store.
func (s *PostgresStore) Persist(ctx context.Context, row Row) error {
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

	_, err = s.pool.Exec(ctx, `
		INSERT INTO check_audit
			(id, raw_input, input_type, normalized_value, verdict, score, sources, summary, metadata, processing_time_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		row.ID, rawJSON, string(row.InputType), row.NormalizedValue, string(row.Verdict),
		row.Score, sourcesJSON, summaryJSON, metadataJSON, row.ProcessingTimeMs, row.CreatedAt,
	)
	return eris.Wrap(err, "audit: insert")
}

// Close implements Store. The pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }
