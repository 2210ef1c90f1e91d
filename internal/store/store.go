// Package store persists custom pattern definitions, classification
// results, and batch records in Postgres.
package store

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

func New(dsn string) (*Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return &Store{db: db}, nil
}

func NewWithDB(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// JSONB marshals a map into a jsonb column.
type JSONB map[string]any

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value any) error {
	if value == nil {
		*j = nil
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("scanning jsonb: unexpected type %T", value)
	}
	return json.Unmarshal(b, j)
}

var schema = `
CREATE TABLE IF NOT EXISTS custom_patterns (
	id UUID PRIMARY KEY,
	category TEXT NOT NULL,
	pattern TEXT NOT NULL,
	priority INT NOT NULL DEFAULT 0,
	context_pattern TEXT NOT NULL DEFAULT '',
	context_required BOOLEAN NOT NULL DEFAULT FALSE,
	validator TEXT NOT NULL DEFAULT '',
	enabled BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	UNIQUE (category, pattern)
);

CREATE TABLE IF NOT EXISTS batches (
	id UUID PRIMARY KEY,
	status TEXT NOT NULL,
	total_documents INT NOT NULL DEFAULT 0,
	processed INT NOT NULL DEFAULT 0,
	failed INT NOT NULL DEFAULT 0,
	with_phi INT NOT NULL DEFAULT 0,
	by_risk_level JSONB,
	created_at TIMESTAMPTZ NOT NULL,
	started_at TIMESTAMPTZ,
	completed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS results (
	id UUID PRIMARY KEY,
	batch_id UUID REFERENCES batches(id),
	document_id UUID NOT NULL,
	filename TEXT NOT NULL,
	contains_phi BOOLEAN NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	risk_level TEXT NOT NULL,
	total_identifiers INT NOT NULL,
	identifiers_by_category JSONB,
	rule_only BOOLEAN NOT NULL DEFAULT FALSE,
	extraction_method TEXT NOT NULL DEFAULT '',
	ocr_applied BOOLEAN NOT NULL DEFAULT FALSE,
	processed_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_results_batch ON results(batch_id);
CREATE INDEX IF NOT EXISTS idx_results_risk ON results(risk_level);
`

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}
