package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/mercadolista/catalog-service/internal/core/normalize"
	"github.com/mercadolista/catalog-service/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	api "go.opentelemetry.io/otel/metric"
)

// Service exposes the catalog read and voting operations backing the API.
type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
	}
}

// VoteRequest is the entry payload accepted when voting for a product id
// that does not exist yet.
type VoteRequest struct {
	Name        string  `json:"name"`
	ImageURL    string  `json:"image_url"`
	Description *string `json:"description"`
	Source      *string `json:"source"`
	Unit        string  `json:"unit"`
}

// List returns all catalog entries sorted by descending score.
func (s *Service) List(ctx context.Context) ([]*Entry, error) {
	ctx, span := tracer.Start(ctx, "catalog.List")
	defer span.End()

	entries, err := s.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog entries: %w", err)
	}

	sortByScoreDesc(entries)
	return entries, nil
}

// Search normalizes the free-text query into one membership term (slug with
// hyphens turned back into spaces) and returns matching entries sorted by
// descending score.
func (s *Service) Search(ctx context.Context, query string) ([]*Entry, error) {
	ctx, span := tracer.Start(ctx, "catalog.Search")
	defer span.End()

	term := strings.ReplaceAll(normalize.Slugify(query), "-", " ")
	entries, err := s.store.QueryByKeyword(ctx, term)
	if err != nil {
		return nil, fmt.Errorf("failed to search catalog: %w", err)
	}

	sortByScoreDesc(entries)
	return entries, nil
}

// Vote increments the score of an existing entry, or creates the entry with
// score 1 from the supplied payload when the id is unknown. Search terms for
// created entries derive from the payload name.
func (s *Service) Vote(ctx context.Context, productID string, payload VoteRequest) error {
	ctx, span := tracer.Start(ctx, "catalog.Vote")
	defer span.End()

	affected, err := s.store.IncrementScore(ctx, productID)
	if err != nil {
		return fmt.Errorf("failed to process vote: %w", err)
	}

	if affected {
		if telemetry.CatalogVotesTotal != nil {
			telemetry.CatalogVotesTotal.Add(ctx, 1, api.WithAttributes(attribute.String("kind", "increment")))
		}
		return nil
	}

	unit := payload.Unit
	if unit == "" {
		unit = "un"
	}

	entry := &Entry{
		ProductID:       productID,
		Name:            payload.Name,
		ImageURL:        payload.ImageURL,
		Description:     payload.Description,
		Source:          payload.Source,
		Unit:            unit,
		Score:           1,
		IsHumanReviewed: false,
		SearchTerms:     normalize.KeywordList(payload.Name),
	}

	if err := s.store.Set(ctx, entry); err != nil {
		return fmt.Errorf("failed to create voted entry: %w", err)
	}

	if telemetry.CatalogVotesTotal != nil {
		telemetry.CatalogVotesTotal.Add(ctx, 1, api.WithAttributes(attribute.String("kind", "create")))
	}

	s.logger.Info("Created catalog entry from vote", "product_id", productID)
	return nil
}

func sortByScoreDesc(entries []*Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
}
