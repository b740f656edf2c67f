package container

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/FACorreiaa/go-venue-discovery/app/cache"
	"github.com/FACorreiaa/go-venue-discovery/app/ratelimit"
	"github.com/FACorreiaa/go-venue-discovery/config"
	"github.com/FACorreiaa/go-venue-discovery/internal/api/discovery"
	"github.com/FACorreiaa/go-venue-discovery/internal/api/geocode"
	"github.com/FACorreiaa/go-venue-discovery/internal/api/providers"
)

// Container holds all application dependencies
type Container struct {
	Config           *config.Config
	Logger           *slog.Logger
	CacheStore       *cache.Store
	RateLimiter      *ratelimit.Limiter
	Geocoder         geocode.Service
	Providers        []providers.Provider
	DiscoveryHandler *discovery.HandlerImpl
}

// NewContainer initializes and returns a new dependency container. Provider
// misconfiguration (an enabled provider without its API key or endpoints)
// fails construction loudly; nothing here is deferred to request time.
func NewContainer(cfg *config.Config, logger *slog.Logger) (*Container, error) {
	store, err := cache.New(cfg.Cache.Dir, cfg.Cache.TTL)
	if err != nil {
		logger.Error("Failed to initialize cache store", slog.Any("error", err))
		return nil, err
	}

	// Geocoding results change rarely, so they live in their own store with
	// a much longer TTL.
	geocodeStore, err := cache.New(cfg.Cache.Dir, cfg.Cache.GeocodeTTL)
	if err != nil {
		return nil, err
	}

	limiter, err := ratelimit.New(cfg.RateLimit.StateFile, cfg.RateLimit.MinInterval)
	if err != nil {
		logger.Error("Failed to initialize rate limiter", slog.Any("error", err))
		return nil, err
	}

	geocoder := geocode.NewServiceImpl(cfg.Geocoder.Endpoint, geocodeStore.Namespace("nominatim"), limiter, logger)

	provs, err := buildProviders(cfg, store, limiter, logger)
	if err != nil {
		return nil, err
	}
	if len(provs) == 0 {
		return nil, fmt.Errorf("no providers enabled")
	}

	discoveryService := discovery.NewServiceImpl(geocoder, provs, discovery.Options{
		ProviderTimeout:   cfg.Discovery.ProviderTimeout,
		OverallBudget:     cfg.Discovery.OverallBudget,
		DefaultLimit:      cfg.Discovery.DefaultLimit,
		MergeRadiusMeters: cfg.Discovery.MergeRadiusMeters,
		ChainDenylist:     cfg.Discovery.ChainDenylist,
	}, logger)
	discoveryHandler := discovery.NewHandlerImpl(discoveryService, logger)

	return &Container{
		Config:           cfg,
		Logger:           logger,
		CacheStore:       store,
		RateLimiter:      limiter,
		Geocoder:         geocoder,
		Providers:        provs,
		DiscoveryHandler: discoveryHandler,
	}, nil
}

func buildProviders(cfg *config.Config, store *cache.Store, limiter *ratelimit.Limiter, logger *slog.Logger) ([]providers.Provider, error) {
	var provs []providers.Provider

	if cfg.Providers.Overpass.Enabled {
		overpass, err := providers.NewOverpassAdapter(
			cfg.Providers.Overpass.Endpoints,
			cfg.Providers.Overpass.Retries,
			store.Namespace("overpass"), limiter, logger)
		if err != nil {
			return nil, fmt.Errorf("overpass adapter: %w", err)
		}
		provs = append(provs, overpass)
	}

	if cfg.Providers.GooglePlaces.Enabled {
		google, err := providers.NewGooglePlacesAdapter(
			cfg.Providers.GooglePlaces.Endpoint,
			os.Getenv("GOOGLE_PLACES_API_KEY"),
			store.Namespace("google_places"), limiter, logger)
		if err != nil {
			return nil, fmt.Errorf("google places adapter: %w", err)
		}
		provs = append(provs, google)
	}

	if cfg.Providers.Wikidata.Enabled {
		provs = append(provs, providers.NewWikidataAdapter(
			cfg.Providers.Wikidata.Endpoint,
			store.Namespace("wikidata"), limiter, logger))
	}

	if cfg.Providers.TomTom.Enabled {
		tomtom, err := providers.NewTomTomAdapter(
			cfg.Providers.TomTom.Endpoint,
			os.Getenv("TOMTOM_API_KEY"),
			store.Namespace("tomtom"), limiter, logger)
		if err != nil {
			return nil, fmt.Errorf("tomtom adapter: %w", err)
		}
		provs = append(provs, tomtom)
	}

	if cfg.Providers.Searx.Enabled {
		searx, err := providers.NewSearxAdapter(
			cfg.Providers.Searx.Endpoints,
			store.Namespace("searx"), limiter, logger)
		if err != nil {
			return nil, fmt.Errorf("searx adapter: %w", err)
		}
		provs = append(provs, searx)
	}

	if cfg.Providers.Wikipedia.Enabled {
		wikipedia, err := providers.NewWikipediaAdapter(
			cfg.Providers.Wikipedia.Endpoints,
			store.Namespace("wikipedia"), limiter, logger)
		if err != nil {
			return nil, fmt.Errorf("wikipedia adapter: %w", err)
		}
		provs = append(provs, wikipedia)
	}

	return provs, nil
}
