package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
// Make fields public so they can be accessed from other packages.
type AppMetrics struct {
	ProviderRequestsTotal    metric.Int64Counter
	ProviderFailuresTotal    metric.Int64Counter
	CacheHitsTotal           metric.Int64Counter
	CacheStaleHitsTotal      metric.Int64Counter
	DiscoveryDurationSeconds metric.Float64Histogram
	MergedVenuesTotal        metric.Int64Counter
}

var (
	// Global instance of AppMetrics (initialized once)
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metrics instruments ONLY ONCE.
// It gets the Meter from the globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("VenueDiscovery")
		var err error
		m := &AppMetrics{}

		m.ProviderRequestsTotal, err = meter.Int64Counter(
			"provider_requests_total",
			metric.WithDescription("Total number of upstream provider fetches attempted"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create provider_requests_total: %v", err)
		}

		m.ProviderFailuresTotal, err = meter.Int64Counter(
			"provider_failures_total",
			metric.WithDescription("Total number of provider fetches that exhausted all endpoints and retries"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create provider_failures_total: %v", err)
		}

		m.CacheHitsTotal, err = meter.Int64Counter(
			"cache_hits_total",
			metric.WithDescription("Total number of fresh cache hits across provider namespaces"),
			metric.WithUnit("{hit}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create cache_hits_total: %v", err)
		}

		m.CacheStaleHitsTotal, err = meter.Int64Counter(
			"cache_stale_hits_total",
			metric.WithDescription("Total number of expired cache entries served as a fallback"),
			metric.WithUnit("{hit}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create cache_stale_hits_total: %v", err)
		}

		m.DiscoveryDurationSeconds, err = meter.Float64Histogram(
			"discovery_duration_seconds",
			metric.WithDescription("Wall-clock duration of full discovery passes"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create discovery_duration_seconds: %v", err)
		}

		m.MergedVenuesTotal, err = meter.Int64Counter(
			"merged_venues_total",
			metric.WithDescription("Total number of duplicate venues collapsed by the merger"),
			metric.WithUnit("{venue}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create merged_venues_total: %v", err)
		}

		appMetrics = m
	})
}

// Get returns the global metrics instance. InitAppMetrics must run first.
func Get() *AppMetrics {
	if appMetrics == nil {
		InitAppMetrics()
	}
	return appMetrics
}
