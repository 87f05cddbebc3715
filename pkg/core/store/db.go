package store

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	pool *pgxpool.Pool
	once sync.Once
)

// Schema creates the tables used by the vector cache and the result repository.
const Schema = `
CREATE TABLE IF NOT EXISTS company_vectors (
	name       TEXT PRIMARY KEY,
	space      TEXT NOT NULL DEFAULT '',
	vector     DOUBLE PRECISION[] NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
ALTER TABLE company_vectors ADD COLUMN IF NOT EXISTS space TEXT NOT NULL DEFAULT '';
CREATE TABLE IF NOT EXISTS valuation_results (
	run_id       TEXT PRIMARY KEY,
	company_name TEXT NOT NULL,
	result_json  JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS valuation_results_company_idx ON valuation_results (company_name, created_at DESC);
`

// InitDB initializes the database connection pool.
// An empty dsn falls back to the DATABASE_URL environment variable.
func InitDB(ctx context.Context, dsn string) error {
	var err error
	once.Do(func() {
		if dsn == "" {
			dsn = os.Getenv("DATABASE_URL")
		}
		if dsn == "" {
			err = fmt.Errorf("DATABASE_URL environment variable not set")
			return
		}

		config, parseErr := pgxpool.ParseConfig(dsn)
		if parseErr != nil {
			err = fmt.Errorf("failed to parse database config: %w", parseErr)
			return
		}

		pool, err = pgxpool.NewWithConfig(ctx, config)
		if err != nil {
			err = fmt.Errorf("failed to create pool: %w", err)
			return
		}
		if _, execErr := pool.Exec(ctx, Schema); execErr != nil {
			err = fmt.Errorf("failed to apply schema: %w", execErr)
		}
	})
	return err
}

// GetPool returns the database connection pool
func GetPool() *pgxpool.Pool {
	return pool
}

// Close closes the database connection pool
func Close() {
	if pool != nil {
		pool.Close()
	}
}
