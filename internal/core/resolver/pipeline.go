// Package resolver orchestrates term parsing, catalog matching and external
// discovery for batches of raw line items.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mercadolista/catalog-service/internal/core/catalog"
	"github.com/mercadolista/catalog-service/internal/core/discovery"
	"github.com/mercadolista/catalog-service/internal/core/normalize"
	"github.com/mercadolista/catalog-service/internal/core/terms"
	"github.com/mercadolista/catalog-service/pkg/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	api "go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("resolver")

const defaultWorkers = 4

// Resolution is the successful outcome for one term.
type Resolution struct {
	Name          string   `json:"name"`
	Price         *float64 `json:"price"`
	UnitOfMeasure string   `json:"unitOfMeasure"`
	ImageURL      string   `json:"imageUrl"`
	Description   *string  `json:"description"`
}

// Failure is the error outcome for one term. It carries the raw input and a
// short human-readable detail, never internal error chains.
type Failure struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// Result is the tagged per-term outcome: exactly one of Resolution or
// Failure is set. It serializes to the matching variant.
type Result struct {
	Resolution *Resolution
	Failure    *Failure
}

func (r Result) MarshalJSON() ([]byte, error) {
	if r.Failure != nil {
		return json.Marshal(r.Failure)
	}
	return json.Marshal(r.Resolution)
}

// Pipeline resolves raw terms against the catalog with external discovery as
// fallback.
type Pipeline struct {
	matcher    *catalog.Matcher
	discoverer *discovery.Discoverer
	logger     *slog.Logger
	workers    int
}

func NewPipeline(matcher *catalog.Matcher, discoverer *discovery.Discoverer, logger *slog.Logger, workers int) *Pipeline {
	if workers <= 0 {
		workers = defaultWorkers
	}

	return &Pipeline{
		matcher:    matcher,
		discoverer: discoverer,
		logger:     logger,
		workers:    workers,
	}
}

// Resolve processes one raw term: parse, derive keywords, match the catalog,
// fall back to discovery on a miss. Every failure is converted into the
// Failure variant; it never propagates out of the term's slot.
func (p *Pipeline) Resolve(ctx context.Context, rawTerm string) (result Result) {
	ctx, span := tracer.Start(ctx, "resolver.Resolve")
	defer span.End()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Panic while resolving term", "term", rawTerm, "panic", r)
			result = failure(ctx, rawTerm, fmt.Sprintf("panic: %v", r))
		}
		if telemetry.TermResolutionDuration != nil {
			telemetry.TermResolutionDuration.Record(ctx, float64(time.Since(start).Milliseconds()))
		}
	}()

	parsed := terms.Parse(rawTerm)
	keywords := normalize.Keywords(parsed.Name)

	match, err := p.matcher.FindBestMatch(ctx, keywords)
	if err != nil {
		p.logger.Error("Catalog match failed", "term", rawTerm, "error", err)
		return failure(ctx, rawTerm, "falha ao consultar o catálogo")
	}

	if match != nil {
		unit := parsed.Unit
		if unit == terms.UnitDefault && match.Entry.Unit != "" {
			unit = match.Entry.Unit
		}

		p.countOutcome(ctx, "matched")
		return resolved(Resolution{
			Name:          parsed.Name,
			Price:         parsed.Price,
			UnitOfMeasure: unit,
			ImageURL:      match.Entry.ImageURL,
			Description:   match.Entry.Description,
		})
	}

	enrichment, err := p.discoverer.Discover(ctx, parsed.Name, parsed.Price, parsed.Unit, keywords)
	if err != nil {
		p.logger.Error("Discovery failed", "term", rawTerm, "error", err)
		return failure(ctx, rawTerm, "falha ao buscar o produto externamente")
	}

	p.countOutcome(ctx, "discovered")
	return resolved(Resolution{
		Name:          parsed.Name,
		Price:         parsed.Price,
		UnitOfMeasure: enrichment.Unit,
		ImageURL:      enrichment.ImageURL,
		Description:   enrichment.Description,
	})
}

// ResolveMany processes an ordered batch over a bounded worker pool. The
// returned slice has exactly one result per input term, in input order; a
// failing term never stops its siblings.
func (p *Pipeline) ResolveMany(ctx context.Context, rawTerms []string) []Result {
	ctx, span := tracer.Start(ctx, "resolver.ResolveMany")
	defer span.End()

	batchID := uuid.New().String()
	p.logger.Info("Resolving term batch", "batch_id", batchID, "terms", len(rawTerms))

	results := make([]Result, len(rawTerms))
	jobs := make(chan int)

	var wg sync.WaitGroup
	workers := p.workers
	if workers > len(rawTerms) {
		workers = len(rawTerms)
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = p.Resolve(ctx, rawTerms[i])
			}
		}()
	}

	for i := range rawTerms {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

func (p *Pipeline) countOutcome(ctx context.Context, outcome string) {
	if telemetry.TermsResolvedTotal != nil {
		telemetry.TermsResolvedTotal.Add(ctx, 1, api.WithAttributes(attribute.String("outcome", outcome)))
	}
}

func resolved(resolution Resolution) Result {
	return Result{Resolution: &resolution}
}

func failure(ctx context.Context, rawTerm, details string) Result {
	if telemetry.TermResolutionErrors != nil {
		telemetry.TermResolutionErrors.Add(ctx, 1)
	}

	return Result{Failure: &Failure{
		Error:   fmt.Sprintf("Não foi possível processar o termo: %s", rawTerm),
		Details: details,
	}}
}
