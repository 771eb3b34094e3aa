package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mercadolista/catalog-service/pkg/telemetry"
)

// Matcher scores catalog candidates against a keyword set.
type Matcher struct {
	store  Store
	logger *slog.Logger
}

func NewMatcher(store Store, logger *slog.Logger) *Matcher {
	return &Matcher{
		store:  store,
		logger: logger,
	}
}

// FindBestMatch unions the membership query results of every keyword,
// deduplicates candidates by id, and picks the winner: highest relevance
// (keyword overlap) first, highest score on a relevance tie, first-seen on a
// tie of both. Candidate order follows query-result order, so the final
// tie-break can vary across backends. Returns nil when the keyword set is
// empty or nothing matches.
func (m *Matcher) FindBestMatch(ctx context.Context, keywords map[string]struct{}) (*MatchResult, error) {
	ctx, span := tracer.Start(ctx, "catalog.FindBestMatch")
	defer span.End()

	if len(keywords) == 0 {
		return nil, nil
	}

	candidates := make(map[string]*Entry)
	var order []string
	for keyword := range keywords {
		entries, err := m.store.QueryByKeyword(ctx, keyword)
		if err != nil {
			return nil, fmt.Errorf("failed to query candidates for %q: %w", keyword, err)
		}
		for _, entry := range entries {
			if _, seen := candidates[entry.ProductID]; !seen {
				candidates[entry.ProductID] = entry
				order = append(order, entry.ProductID)
			}
		}
	}

	if len(candidates) == 0 {
		if telemetry.CatalogMissesTotal != nil {
			telemetry.CatalogMissesTotal.Add(ctx, 1)
		}
		return nil, nil
	}

	var best *Entry
	bestRelevance := -1
	for _, id := range order {
		candidate := candidates[id]
		relevance := overlap(keywords, candidate.SearchTerms)

		bestScore := int64(-1)
		if best != nil {
			bestScore = best.Score
		}

		if relevance > bestRelevance || (relevance == bestRelevance && candidate.Score > bestScore) {
			bestRelevance = relevance
			best = candidate
		}
	}

	if telemetry.CatalogMatchesTotal != nil {
		telemetry.CatalogMatchesTotal.Add(ctx, 1)
	}

	m.logger.Debug("Catalog match selected",
		"product_id", best.ProductID,
		"relevance", bestRelevance,
		"score", best.Score,
		"candidates", len(candidates))

	return &MatchResult{Entry: best, Relevance: bestRelevance}, nil
}

func overlap(keywords map[string]struct{}, searchTerms []string) int {
	count := 0
	for _, term := range searchTerms {
		if _, ok := keywords[term]; ok {
			count++
		}
	}
	return count
}
