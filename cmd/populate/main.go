package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mercadolista/catalog-service/config"
	"github.com/mercadolista/catalog-service/internal/core/catalog"
	"github.com/mercadolista/catalog-service/internal/core/discovery"
	"github.com/mercadolista/catalog-service/internal/core/normalize"
	"github.com/mercadolista/catalog-service/internal/core/terms"
	"github.com/mercadolista/catalog-service/internal/infra/postgres"
	"github.com/mercadolista/catalog-service/pkg/logger"
)

// populate seeds the catalog from a plain-text product list, one query per
// line. Each line runs an image and a text search; products that come back
// without any image are skipped, existing entries are left untouched.
func main() {
	filePath := flag.String("file", "produtos.txt", "path to the product list, one query per line")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.NewLogger(&cfg)
	slog.SetDefault(log)

	serperClient := discovery.NewSerperClient(cfg.GetSerperConfig(), log)
	if !serperClient.Available() {
		slog.Error("no Serper API key configured, cannot populate")
		os.Exit(1)
	}

	conn, err := postgres.Init(cfg)
	if err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer conn.Close()

	if err := postgres.EnsureSchema(ctx, conn); err != nil {
		slog.Error("failed to ensure database schema", slog.String("error", err.Error()))
		os.Exit(1)
	}

	queries, err := readQueries(*filePath)
	if err != nil {
		slog.Error("failed to read product list", slog.String("file", *filePath), slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("Starting catalog population",
		slog.String("file", *filePath),
		slog.Int("queries", len(queries)))

	store := catalog.NewPostgresStore(conn, log)
	delay := time.Duration(cfg.PopulateDelayMs) * time.Millisecond

	var saved, skipped, failed int
	for i, query := range queries {
		if i > 0 {
			// Pace the search API calls.
			time.Sleep(delay)
		}

		switch err := populateOne(ctx, store, serperClient, query); {
		case err == nil:
			saved++
		case err == errSkipped:
			skipped++
		default:
			failed++
			slog.Warn("Failed to populate product", slog.String("query", query), slog.String("error", err.Error()))
		}
	}

	slog.Info("Catalog population finished",
		slog.Int("saved", saved),
		slog.Int("skipped", skipped),
		slog.Int("failed", failed))
}

// readQueries loads the product list, lowercased, deduplicated and sorted so
// reruns process lines in a stable order.
func readQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if line == "" {
			continue
		}
		seen[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	queries := make([]string, 0, len(seen))
	for q := range seen {
		queries = append(queries, q)
	}
	sort.Strings(queries)
	return queries, nil
}

var errSkipped = skippedError{}

type skippedError struct{}

func (skippedError) Error() string { return "skipped" }

func populateOne(ctx context.Context, store catalog.Store, provider discovery.Provider, query string) error {
	images, err := provider.SearchImages(ctx, query+" produto embalagem")
	if err != nil {
		return err
	}
	if len(images) == 0 || images[0].ImageURL == "" {
		slog.Debug("No image found, skipping", slog.String("query", query))
		return errSkipped
	}
	image := images[0]

	name := canonicalName(image.Title, query)
	productID := normalize.Slugify(name)
	if productID == "" {
		return errSkipped
	}

	existing, err := store.Get(ctx, productID)
	if err != nil {
		return err
	}
	if existing != nil {
		slog.Debug("Entry already exists, skipping", slog.String("product_id", productID))
		return errSkipped
	}

	var description *string
	texts, err := provider.SearchText(ctx, query)
	if err != nil {
		slog.Warn("Text search failed, saving without description", slog.String("query", query), slog.String("error", err.Error()))
	} else if len(texts) > 0 && texts[0].Snippet != "" {
		snippet := truncate(texts[0].Snippet, 250)
		description = &snippet
	}

	var source *string
	if image.Domain != "" {
		source = &image.Domain
	}

	// Search terms merge the canonical name's tokens with the query's, so the
	// entry answers both spellings.
	searchTerms := normalize.MergeSets(normalize.Keywords(name), normalize.Keywords(query))

	entry := &catalog.Entry{
		ProductID:       productID,
		Name:            name,
		ImageURL:        image.ImageURL,
		Description:     description,
		Source:          source,
		Unit:            terms.ExtractUnit(image.Title),
		Score:           0,
		IsHumanReviewed: false,
		SearchTerms:     normalize.SetToList(searchTerms),
	}

	if err := store.Set(ctx, entry); err != nil {
		return err
	}

	slog.Info("Saved catalog entry", slog.String("product_id", productID), slog.String("name", name))
	return nil
}

// canonicalName cleans a search-result title down to a product name, cutting
// at the seller or site suffix the result pages append.
func canonicalName(title, fallback string) string {
	name := title
	if idx := strings.Index(name, " - "); idx >= 0 {
		name = name[:idx]
	}
	if idx := strings.Index(name, "|"); idx >= 0 {
		name = name[:idx]
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fallback
	}
	return name
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
