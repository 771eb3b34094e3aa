package telemetry

import (
	"log/slog"

	"go.opentelemetry.io/contrib/instrumentation/runtime"
	api "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Business metrics for application-level monitoring
var (
	// Term resolution metrics
	TermsResolvedTotal     api.Int64Counter
	TermResolutionErrors   api.Int64Counter
	TermResolutionDuration api.Float64Histogram

	// Catalog metrics
	CatalogMatchesTotal api.Int64Counter
	CatalogMissesTotal  api.Int64Counter
	CatalogVotesTotal   api.Int64Counter
	CatalogEntriesSaved api.Int64Counter

	// Discovery metrics
	DiscoveryCallsTotal    api.Int64Counter
	DiscoveryDegradedTotal api.Int64Counter
	DiscoveryErrorsTotal   api.Int64Counter

	// Error tracking
	ApplicationErrorsTotal api.Int64Counter
	DatabaseErrorsTotal    api.Int64Counter
)

// InitTelemetry initializes runtime instrumentation and business metrics.
func InitTelemetry(provider *metric.MeterProvider) error {
	if err := runtime.Start(runtime.WithMeterProvider(provider)); err != nil {
		return err
	}

	return InitBusinessMetrics(provider)
}

// InitBusinessMetrics initializes all business-level metrics
func InitBusinessMetrics(provider *metric.MeterProvider) error {
	meter := provider.Meter("business")

	var err error

	// Term resolution metrics
	TermsResolvedTotal, err = meter.Int64Counter("terms.resolved.total",
		api.WithDescription("Total raw terms resolved by outcome (matched, discovered, degraded)"))
	if err != nil {
		return err
	}

	TermResolutionErrors, err = meter.Int64Counter("terms.resolution.errors.total",
		api.WithDescription("Total per-term resolution failures"))
	if err != nil {
		return err
	}

	TermResolutionDuration, err = meter.Float64Histogram("terms.resolution.duration_ms",
		api.WithDescription("Duration of single term resolution in milliseconds"))
	if err != nil {
		return err
	}

	// Catalog metrics
	CatalogMatchesTotal, err = meter.Int64Counter("catalog.matches.total",
		api.WithDescription("Total successful catalog matches"))
	if err != nil {
		return err
	}

	CatalogMissesTotal, err = meter.Int64Counter("catalog.misses.total",
		api.WithDescription("Total keyword queries without a catalog match"))
	if err != nil {
		return err
	}

	CatalogVotesTotal, err = meter.Int64Counter("catalog.votes.total",
		api.WithDescription("Total score increments by kind (increment, create)"))
	if err != nil {
		return err
	}

	CatalogEntriesSaved, err = meter.Int64Counter("catalog.entries.saved.total",
		api.WithDescription("Total catalog entries persisted by origin (discovery, populate, vote)"))
	if err != nil {
		return err
	}

	// Discovery metrics
	DiscoveryCallsTotal, err = meter.Int64Counter("discovery.calls.total",
		api.WithDescription("Total external discovery attempts"))
	if err != nil {
		return err
	}

	DiscoveryDegradedTotal, err = meter.Int64Counter("discovery.degraded.total",
		api.WithDescription("Total discovery calls degraded to placeholder results"))
	if err != nil {
		return err
	}

	DiscoveryErrorsTotal, err = meter.Int64Counter("discovery.errors.total",
		api.WithDescription("Total search provider request failures"))
	if err != nil {
		return err
	}

	// Error Metrics
	ApplicationErrorsTotal, err = meter.Int64Counter("application.errors.total",
		api.WithDescription("Total application errors by component and type"))
	if err != nil {
		return err
	}

	DatabaseErrorsTotal, err = meter.Int64Counter("database.errors.total",
		api.WithDescription("Total database errors by operation and type"))
	if err != nil {
		return err
	}

	slog.Info("Business metrics initialized successfully")
	return nil
}
