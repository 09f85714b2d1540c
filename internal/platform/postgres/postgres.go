package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
)

// Connect opens a pgx connection pool using the provided DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 16
	cfg.MaxConnIdleTime = 5 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// OpenSQL opens a database/sql handle on the lib/pq driver. The audit store
// uses it; case and archive stores use the pgx pool.
func OpenSQL(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sql: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// EnsureSchema creates every table the service needs. Statements are
// idempotent so server, worker and casectl can all call it at startup.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const caseTableColumns = `
	case_number TEXT PRIMARY KEY,
	type_case TEXT NOT NULL,
	service_type TEXT NOT NULL,
	dependency TEXT NOT NULL,
	priority TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	reported_at TIMESTAMPTZ NOT NULL,
	reported_by JSONB NOT NULL,
	assigned_technician JSONB,
	effectiveness_rating SMALLINT,
	satisfaction_rating SMALLINT,
	to_rating BOOLEAN NOT NULL DEFAULT FALSE,
	rated BOOLEAN NOT NULL DEFAULT FALSE,
	service_data JSONB NOT NULL DEFAULT '{}'::jsonb,
	observations TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL`

const schema = `
CREATE TABLE IF NOT EXISTS preventive_cases (` + caseTableColumns + `
);
CREATE INDEX IF NOT EXISTS idx_preventive_cases_reported_at ON preventive_cases(reported_at DESC);

CREATE TABLE IF NOT EXISTS corrective_cases (` + caseTableColumns + `
);
CREATE INDEX IF NOT EXISTS idx_corrective_cases_reported_at ON corrective_cases(reported_at DESC);

CREATE TABLE IF NOT EXISTS archived_cases (
	id UUID PRIMARY KEY,
	case_number TEXT NOT NULL,
	original_collection TEXT NOT NULL,
	snapshot JSONB NOT NULL,
	deleted_at TIMESTAMPTZ NOT NULL,
	deleted_by TEXT NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_archived_cases_number ON archived_cases(case_number, deleted_at DESC);
CREATE INDEX IF NOT EXISTS idx_archived_cases_expires_at ON archived_cases(expires_at);

CREATE TABLE IF NOT EXISTS audit_history (
	id UUID PRIMARY KEY,
	occurred_at TIMESTAMPTZ NOT NULL,
	actor TEXT NOT NULL,
	action TEXT NOT NULL,
	message TEXT NOT NULL,
	case_number TEXT NOT NULL DEFAULT '',
	case_type TEXT NOT NULL DEFAULT '',
	request_id TEXT NOT NULL DEFAULT '',
	expires_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_history_actor ON audit_history(actor, occurred_at DESC);
CREATE INDEX IF NOT EXISTS idx_audit_history_expires_at ON audit_history(expires_at);`
