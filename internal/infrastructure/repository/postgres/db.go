package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

const schemaLockKey = int64(2026082801)

// EnsureSchema bootstraps all pipeline tables. Safe to run concurrently
// from api and worker startups.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS analysis_records (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	document_name TEXT NOT NULL,
	document_type TEXT NOT NULL,
	document_size BIGINT NOT NULL DEFAULT 0,
	text_length INTEGER NOT NULL DEFAULT 0,
	word_count INTEGER NOT NULL DEFAULT 0,
	extracted_data JSONB,
	confidence_scores JSONB,
	analysis_summary TEXT NOT NULL DEFAULT '',
	user_modifications JSONB,
	final_data JSONB,
	created_product_id TEXT,
	analysis_duration_s DOUBLE PRECISION NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	success BOOLEAN NOT NULL DEFAULT FALSE,
	error_message TEXT NOT NULL DEFAULT '',
	data_quality_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	quality_validation_report JSONB,
	noise_removed_count INTEGER NOT NULL DEFAULT 0,
	invalid_removed_count INTEGER NOT NULL DEFAULT 0,
	final_specs_count INTEGER NOT NULL DEFAULT 0,
	llm_retries INTEGER NOT NULL DEFAULT 0,
	warnings JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analysis_records_user_created
	ON analysis_records(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_analysis_records_created_at
	ON analysis_records(created_at DESC);

CREATE TABLE IF NOT EXISTS products (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	code TEXT NOT NULL,
	category TEXT NOT NULL,
	base_price DOUBLE PRECISION NOT NULL DEFAULT 0,
	description TEXT NOT NULL DEFAULT '',
	specifications JSONB NOT NULL DEFAULT '{}'::jsonb,
	analysis_record_id TEXT,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_products_code ON products(code);

CREATE TABLE IF NOT EXISTS learning_feedback (
	id TEXT PRIMARY KEY,
	analysis_record_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	document_type TEXT NOT NULL DEFAULT '',
	field_diffs JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS learning_patterns (
	id BIGSERIAL PRIMARY KEY,
	field_path TEXT NOT NULL,
	pattern_type TEXT NOT NULL,
	pattern_value TEXT NOT NULL,
	display_value TEXT NOT NULL,
	frequency INTEGER NOT NULL DEFAULT 1,
	last_seen TIMESTAMPTZ NOT NULL,
	user_id TEXT NOT NULL DEFAULT '',
	document_type TEXT NOT NULL DEFAULT '',
	UNIQUE (field_path, pattern_value, document_type)
);

CREATE INDEX IF NOT EXISTS idx_learning_patterns_lookup
	ON learning_patterns(document_type, field_path, frequency DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
