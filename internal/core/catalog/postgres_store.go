package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/mercadolista/catalog-service/internal/infra/postgres"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("catalog-store")

const entryColumns = "product_id, name, image_url, description, source, unit, score, is_human_reviewed, search_terms, created_at, updated_at"

// PostgresStore persists catalog entries in the products table.
type PostgresStore struct {
	db     postgres.DB
	logger *slog.Logger
}

func NewPostgresStore(db postgres.DB, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: logger,
	}
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Entry, error) {
	ctx, span := tracer.Start(ctx, "catalog.Get")
	defer span.End()

	query := `
		SELECT ` + entryColumns + `
		FROM products
		WHERE product_id = $1
	`

	var entry Entry
	err := s.db.QueryRow(ctx, query, id).Scan(
		&entry.ProductID,
		&entry.Name,
		&entry.ImageURL,
		&entry.Description,
		&entry.Source,
		&entry.Unit,
		&entry.Score,
		&entry.IsHumanReviewed,
		&entry.SearchTerms,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog entry: %w", err)
	}

	return &entry, nil
}

func (s *PostgresStore) Set(ctx context.Context, entry *Entry) error {
	ctx, span := tracer.Start(ctx, "catalog.Set")
	defer span.End()

	query := `
		INSERT INTO products (product_id, name, image_url, description, source, unit, score, is_human_reviewed, search_terms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (product_id) DO UPDATE SET
			name = EXCLUDED.name,
			image_url = EXCLUDED.image_url,
			description = EXCLUDED.description,
			source = EXCLUDED.source,
			unit = EXCLUDED.unit,
			score = EXCLUDED.score,
			is_human_reviewed = EXCLUDED.is_human_reviewed,
			search_terms = EXCLUDED.search_terms,
			updated_at = now()
	`

	_, err := s.db.Exec(ctx, query,
		entry.ProductID,
		entry.Name,
		entry.ImageURL,
		entry.Description,
		entry.Source,
		entry.Unit,
		entry.Score,
		entry.IsHumanReviewed,
		entry.SearchTerms,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert catalog entry: %w", err)
	}

	return nil
}

func (s *PostgresStore) IncrementScore(ctx context.Context, id string) (bool, error) {
	ctx, span := tracer.Start(ctx, "catalog.IncrementScore")
	defer span.End()

	// Single statement, the database serializes concurrent increments.
	tag, err := s.db.Exec(ctx, `UPDATE products SET score = score + 1, updated_at = now() WHERE product_id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to increment score: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) QueryByKeyword(ctx context.Context, keyword string) ([]*Entry, error) {
	ctx, span := tracer.Start(ctx, "catalog.QueryByKeyword")
	defer span.End()

	query := `
		SELECT ` + entryColumns + `
		FROM products
		WHERE $1 = ANY(search_terms)
	`

	rows, err := s.db.Query(ctx, query, keyword)
	if err != nil {
		return nil, fmt.Errorf("failed to query by keyword: %w", err)
	}
	defer rows.Close()

	return s.scanEntries(rows)
}

func (s *PostgresStore) All(ctx context.Context) ([]*Entry, error) {
	ctx, span := tracer.Start(ctx, "catalog.All")
	defer span.End()

	rows, err := s.db.Query(ctx, `SELECT `+entryColumns+` FROM products`)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog entries: %w", err)
	}
	defer rows.Close()

	return s.scanEntries(rows)
}

func (s *PostgresStore) scanEntries(rows pgx.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		var entry Entry
		err := rows.Scan(
			&entry.ProductID,
			&entry.Name,
			&entry.ImageURL,
			&entry.Description,
			&entry.Source,
			&entry.Unit,
			&entry.Score,
			&entry.IsHumanReviewed,
			&entry.SearchTerms,
			&entry.CreatedAt,
			&entry.UpdatedAt,
		)
		if err != nil {
			s.logger.Error("Failed to scan catalog entry row", "error", err)
			continue
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating catalog entries: %w", err)
	}

	return entries, nil
}
