package providers

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/FACorreiaa/go-venue-discovery/app/cache"
	"github.com/FACorreiaa/go-venue-discovery/app/ratelimit"
	"github.com/FACorreiaa/go-venue-discovery/internal/models"
)

var _ Provider = (*WikipediaAdapter)(nil)

// WikipediaAdapter pulls nearby articles via the MediaWiki geosearch API.
// Endpoints usually cover both Wikipedia and Wikivoyage; results from every
// reachable endpoint are combined rather than treated as mirrors.
type WikipediaAdapter struct {
	core
	endpoints []string
}

func NewWikipediaAdapter(endpoints []string, cacheNS *cache.Namespace, limiter *ratelimit.Limiter, logger *slog.Logger) (*WikipediaAdapter, error) {
	if len(endpoints) == 0 {
		return nil, ErrNoEndpoints
	}
	return &WikipediaAdapter{
		core:      newCore("wikipedia", cacheNS, limiter, logger),
		endpoints: endpoints,
	}, nil
}

func (a *WikipediaAdapter) Name() string       { return "wikipedia" }
func (a *WikipediaAdapter) RequiresBBox() bool { return true }

func (a *WikipediaAdapter) Discover(ctx context.Context, q Query) models.ProviderResult {
	if q.BBox == nil {
		return models.ProviderResult{Provider: a.Name(), Status: models.ProviderSkipped}
	}
	key := cache.Key("wikipedia", bboxKey(*q.BBox), strconv.Itoa(q.Limit))
	return a.discoverCached(ctx, key, func(ctx context.Context) ([]models.Venue, error) {
		return a.fetch(ctx, q)
	})
}

func (a *WikipediaAdapter) fetch(ctx context.Context, q Query) ([]models.Venue, error) {
	lat, lon := q.BBox.Center()
	limit := q.Limit
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "geosearch")
	params.Set("gscoord", fmt.Sprintf("%f|%f", lat, lon))
	params.Set("gsradius", "10000")
	params.Set("gslimit", strconv.Itoa(limit))
	params.Set("format", "json")

	var venues []models.Venue
	var lastErr error
	for _, endpoint := range a.endpoints {
		var resp geosearchResponse
		if err := a.getJSON(ctx, endpoint+"?"+params.Encode(), &resp); err != nil {
			lastErr = err
			a.logger.DebugContext(ctx, "Geosearch endpoint failed",
				slog.String("endpoint", endpoint), slog.Any("error", err))
			continue
		}
		venues = append(venues, a.normalize(endpoint, resp)...)
	}
	if len(venues) == 0 && lastErr != nil {
		return nil, fmt.Errorf("all geosearch endpoints failed: %w", lastErr)
	}
	return venues, nil
}

type geosearchResponse struct {
	Query struct {
		Geosearch []struct {
			PageID int64   `json:"pageid"`
			Title  string  `json:"title"`
			Lat    float64 `json:"lat"`
			Lon    float64 `json:"lon"`
		} `json:"geosearch"`
	} `json:"query"`
}

func (a *WikipediaAdapter) normalize(endpoint string, resp geosearchResponse) []models.Venue {
	host := endpointKey(endpoint)
	venues := make([]models.Venue, 0, len(resp.Query.Geosearch))
	for _, page := range resp.Query.Geosearch {
		v := models.Venue{
			ID:        fmt.Sprintf("wikipedia:%s:%d", host, page.PageID),
			Name:      page.Title,
			Latitude:  page.Lat,
			Longitude: page.Lon,
			Category:  "attraction",
			SourceURL: fmt.Sprintf("https://%s/?curid=%d", host, page.PageID),
			Provider:  a.Name(),
		}
		v = finishVenue(v, 0.5)
		if !v.HasFiniteCoordinates() {
			continue
		}
		venues = append(venues, v)
	}
	return venues
}
