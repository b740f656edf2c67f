package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/go-venue-discovery/app/observability/metrics"
	"github.com/FACorreiaa/go-venue-discovery/internal/api/geocode"
	"github.com/FACorreiaa/go-venue-discovery/internal/api/providers"
	"github.com/FACorreiaa/go-venue-discovery/internal/models"
)

var _ Service = (*ServiceImpl)(nil)

// Service is the downstream consumer contract: one call runs the full
// geocode → fetch → normalize → merge → rank pipeline. It never returns an
// error for ordinary upstream failures, only for contract violations such as
// an empty city.
type Service interface {
	DiscoverRestaurants(ctx context.Context, req models.DiscoverRequest) (*models.DiscoverResponse, error)
}

// Options are the pipeline tuning knobs, surfaced through configuration
// rather than buried as constants.
type Options struct {
	ProviderTimeout   time.Duration
	OverallBudget     time.Duration
	DefaultLimit      int
	MergeRadiusMeters float64
	ChainDenylist     []string
}

// maxAddressLookups caps best-effort reverse geocoding of venues that only
// have a synthesized coordinate address.
const maxAddressLookups = 5

type ServiceImpl struct {
	logger    *slog.Logger
	geocoder  geocode.Service
	providers []providers.Provider
	merger    merger
	ranker    ranker
	opts      Options
}

func NewServiceImpl(geocoder geocode.Service, provs []providers.Provider, opts Options, logger *slog.Logger) *ServiceImpl {
	if opts.ProviderTimeout <= 0 {
		opts.ProviderTimeout = 8 * time.Second
	}
	if opts.OverallBudget <= 0 {
		opts.OverallBudget = 20 * time.Second
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 20
	}
	if opts.MergeRadiusMeters <= 0 {
		opts.MergeRadiusMeters = 50
	}
	return &ServiceImpl{
		logger:    logger,
		geocoder:  geocoder,
		providers: provs,
		merger:    merger{radiusMeters: opts.MergeRadiusMeters},
		ranker:    ranker{chainDenylist: opts.ChainDenylist},
		opts:      opts,
	}
}

func (s *ServiceImpl) DiscoverRestaurants(ctx context.Context, req models.DiscoverRequest) (*models.DiscoverResponse, error) {
	if strings.TrimSpace(req.City) == "" {
		return nil, fmt.Errorf("city must not be empty")
	}
	if req.Limit <= 0 {
		req.Limit = s.opts.DefaultLimit
	}

	requestID := uuid.New().String()
	ctx, span := otel.Tracer("DiscoveryService").Start(ctx, "DiscoverRestaurants", trace.WithAttributes(
		attribute.String("discovery.city", req.City),
		attribute.String("discovery.cuisine", req.Cuisine),
		attribute.Bool("discovery.local_only", req.LocalOnly),
	))
	defer span.End()

	l := s.logger.With(slog.String("request_id", requestID), slog.String("city", req.City))
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, s.opts.OverallBudget)
	defer cancel()

	// Geocode once; failure only disables providers that need a box.
	bbox, err := s.geocoder.Geocode(ctx, req.City)
	if err != nil {
		l.WarnContext(ctx, "Geocoding failed, bbox providers will be skipped", slog.Any("error", err))
		span.AddEvent("geocoding failed")
		bbox = nil
	}

	results := s.fanOut(ctx, l, providers.Query{
		City:    req.City,
		BBox:    bbox,
		Cuisine: req.Cuisine,
		Limit:   req.Limit * 2, // fetch headroom so dedup and filters still fill the page
	})

	var candidates []models.Venue
	outcomes := make([]models.ProviderOutcome, 0, len(results))
	for _, res := range results {
		outcomes = append(outcomes, models.ProviderOutcome{
			Name:   res.Provider,
			Status: res.Status,
			Count:  len(res.Venues),
		})
		for _, v := range res.Venues {
			if !v.HasFiniteCoordinates() {
				continue // dropped before dedup
			}
			candidates = append(candidates, v)
		}
	}

	merged := s.merger.Merge(candidates)
	metrics.Get().MergedVenuesTotal.Add(ctx, int64(len(candidates)-len(merged)))

	if req.LocalOnly {
		merged = s.ranker.ExcludeChains(merged)
	}
	if req.Cuisine != "" {
		merged = s.ranker.FilterCuisine(merged, req.Cuisine)
	}
	s.ranker.Sort(merged)
	if len(merged) > req.Limit {
		merged = merged[:req.Limit]
	}

	s.enrichAddresses(ctx, merged)

	metrics.Get().DiscoveryDurationSeconds.Record(ctx, time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("discovery.candidates", len(candidates)), attribute.Int("discovery.results", len(merged)))
	span.SetStatus(codes.Ok, "Discovery completed")
	l.InfoContext(ctx, "Discovery completed",
		slog.Int("candidates", len(candidates)),
		slog.Int("results", len(merged)),
		slog.Duration("latency", time.Since(start)),
	)

	if merged == nil {
		merged = []models.Venue{} // explicit empty result, not null
	}
	return &models.DiscoverResponse{
		RequestID:   requestID,
		City:        req.City,
		BoundingBox: bbox,
		Venues:      merged,
		Providers:   outcomes,
	}, nil
}

// fanOut runs every provider concurrently, each under its own timeout. A
// provider that times out or fails contributes a degraded result; it never
// blocks or aborts its siblings.
func (s *ServiceImpl) fanOut(ctx context.Context, l *slog.Logger, q providers.Query) []models.ProviderResult {
	results := make([]models.ProviderResult, len(s.providers))
	var g errgroup.Group

	for i, p := range s.providers {
		if p.RequiresBBox() && q.BBox == nil {
			results[i] = models.ProviderResult{Provider: p.Name(), Status: models.ProviderSkipped}
			continue
		}

		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, s.opts.ProviderTimeout)
			defer cancel()

			done := make(chan models.ProviderResult, 1)
			go func() {
				done <- p.Discover(pctx, q)
			}()

			select {
			case res := <-done:
				results[i] = res
			case <-pctx.Done():
				// A stuck adapter is treated as having returned nothing;
				// its goroutine unwinds once its HTTP call times out.
				l.WarnContext(ctx, "Provider exceeded its timeout", slog.String("provider", p.Name()))
				results[i] = models.ProviderResult{Provider: p.Name(), Status: models.ProviderDegraded}
			}
			return nil
		})
	}

	_ = g.Wait() // adapter goroutines never return errors
	return results
}

// enrichAddresses replaces synthesized coordinate addresses with reverse
// geocoded ones, best effort and bounded so it cannot dominate latency.
func (s *ServiceImpl) enrichAddresses(ctx context.Context, venues []models.Venue) {
	lookups := 0
	for i := range venues {
		if lookups >= maxAddressLookups {
			return
		}
		if !strings.HasPrefix(venues[i].Address, "near (") {
			continue
		}
		lookups++
		addr, err := s.geocoder.ReverseGeocode(ctx, venues[i].Latitude, venues[i].Longitude)
		if err != nil || addr == "" {
			continue // coordinate fallback stays
		}
		venues[i].Address = addr
	}
}
