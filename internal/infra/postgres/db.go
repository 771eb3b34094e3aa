package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mercadolista/catalog-service/config"
)

// DB is the query surface the stores and handlers depend on. Both the raw
// pgx pool and the instrumented pool satisfy it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

func Init(config config.Config) (*pgxpool.Pool, error) {
	conn, err := pgxpool.New(context.Background(), config.DbConnectionString())
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	conn.Config().MaxConns = int32(config.DbMaxConnections)
	conn.Config().MinConns = 5

	return conn, nil
}

// EnsureSchema creates the products table and its keyword index if missing.
func EnsureSchema(ctx context.Context, db DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS products (
			product_id        TEXT PRIMARY KEY,
			name              TEXT NOT NULL,
			image_url         TEXT,
			description       TEXT,
			source            TEXT,
			unit              TEXT NOT NULL DEFAULT 'un',
			score             BIGINT NOT NULL DEFAULT 0 CHECK (score >= 0),
			is_human_reviewed BOOLEAN NOT NULL DEFAULT FALSE,
			search_terms      TEXT[] NOT NULL DEFAULT '{}',
			created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_products_search_terms ON products USING GIN (search_terms);
		CREATE INDEX IF NOT EXISTS idx_products_score ON products (score DESC);
	`

	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure products schema: %w", err)
	}

	return nil
}
