package discovery

import (
	"context"
	"log/slog"

	"github.com/mercadolista/catalog-service/internal/core/catalog"
	"github.com/mercadolista/catalog-service/internal/core/normalize"
	"github.com/mercadolista/catalog-service/internal/core/terms"
	"github.com/mercadolista/catalog-service/pkg/telemetry"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("discovery")

// PlaceholderImageURL is returned when no image is known for a product.
const PlaceholderImageURL = "https://placehold.co/150x150/EEE/31343C?text=Imagem\\nNao+Encontrada"

const maxDescriptionLen = 250

// Result is the enrichment data returned for an unmatched product.
type Result struct {
	ImageURL    string
	Description *string
	Unit        string
}

// Discoverer queries the search provider for unmatched products and persists
// newly discovered catalog entries.
type Discoverer struct {
	provider Provider
	store    catalog.Store
	logger   *slog.Logger
}

func NewDiscoverer(provider Provider, store catalog.Store, logger *slog.Logger) *Discoverer {
	return &Discoverer{
		provider: provider,
		store:    store,
		logger:   logger,
	}
}

// Discover resolves image, description and unit for a product absent from the
// catalog. Without a provider credential it degrades to placeholder values.
// Image and text lookups run independently and either may fail or come back
// empty; partial results are used. When an image is found, a new catalog
// entry is persisted best-effort under the slugified name, carrying the
// query's keyword set as its search terms.
func (d *Discoverer) Discover(ctx context.Context, name string, price *float64, unit string, keywords map[string]struct{}) (Result, error) {
	ctx, span := tracer.Start(ctx, "discovery.Discover")
	defer span.End()

	result := Result{
		ImageURL: PlaceholderImageURL,
		Unit:     unit,
	}

	if !d.provider.Available() {
		if telemetry.DiscoveryDegradedTotal != nil {
			telemetry.DiscoveryDegradedTotal.Add(ctx, 1)
		}
		d.logger.Debug("Search provider unavailable, returning placeholder", "name", name)
		return result, nil
	}

	if telemetry.DiscoveryCallsTotal != nil {
		telemetry.DiscoveryCallsTotal.Add(ctx, 1)
	}

	images, err := d.provider.SearchImages(ctx, name+" produto embalagem")
	if err != nil {
		if telemetry.DiscoveryErrorsTotal != nil {
			telemetry.DiscoveryErrorsTotal.Add(ctx, 1)
		}
		d.logger.Warn("Image search failed", "name", name, "error", err)
	}

	texts, err := d.provider.SearchText(ctx, name)
	if err != nil {
		if telemetry.DiscoveryErrorsTotal != nil {
			telemetry.DiscoveryErrorsTotal.Add(ctx, 1)
		}
		d.logger.Warn("Text search failed", "name", name, "error", err)
	}

	if len(texts) > 0 && texts[0].Snippet != "" {
		description := truncateDescription(texts[0].Snippet)
		result.Description = &description
	}

	if len(images) == 0 {
		return result, nil
	}

	first := images[0]
	if first.ImageURL != "" {
		result.ImageURL = first.ImageURL
	}
	if result.Unit == terms.UnitDefault {
		result.Unit = terms.ExtractUnit(first.Title)
	}

	d.persistNewEntry(ctx, name, first, result, keywords)

	return result, nil
}

// persistNewEntry saves the discovered product unless an entry with the same
// derived id already exists. Failures are logged, never propagated: the
// enrichment result stands on its own and a concurrent duplicate write is an
// accepted race.
func (d *Discoverer) persistNewEntry(ctx context.Context, name string, image ImageResult, result Result, keywords map[string]struct{}) {
	productID := normalize.Slugify(name)
	if productID == "" {
		return
	}

	existing, err := d.store.Get(ctx, productID)
	if err != nil {
		d.logger.Warn("Failed to check for existing entry", "product_id", productID, "error", err)
		return
	}
	if existing != nil {
		return
	}

	var source *string
	if image.Domain != "" {
		source = &image.Domain
	}

	entry := &catalog.Entry{
		ProductID:       productID,
		Name:            name,
		ImageURL:        result.ImageURL,
		Description:     result.Description,
		Source:          source,
		Unit:            result.Unit,
		Score:           0,
		IsHumanReviewed: false,
		SearchTerms:     normalize.SetToList(keywords),
	}

	if err := d.store.Set(ctx, entry); err != nil {
		d.logger.Warn("Failed to persist discovered entry", "product_id", productID, "error", err)
		return
	}

	if telemetry.CatalogEntriesSaved != nil {
		telemetry.CatalogEntriesSaved.Add(ctx, 1)
	}
	d.logger.Info("Persisted discovered catalog entry", "product_id", productID)
}

func truncateDescription(snippet string) string {
	runes := []rune(snippet)
	if len(runes) <= maxDescriptionLen {
		return snippet
	}
	return string(runes[:maxDescriptionLen]) + "..."
}
