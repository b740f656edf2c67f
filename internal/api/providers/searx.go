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

var _ Provider = (*SearxAdapter)(nil)

// SearxAdapter runs an ad-hoc web search across a rotation of public SearX
// instances. Results carry no coordinates of their own; when a bounding box
// is available they are pinned to the city center so they survive the
// finite-coordinates gate, otherwise they are dropped before dedup. The
// lowest-trust source in the set.
type SearxAdapter struct {
	core
	endpoints []string
}

func NewSearxAdapter(endpoints []string, cacheNS *cache.Namespace, limiter *ratelimit.Limiter, logger *slog.Logger) (*SearxAdapter, error) {
	if len(endpoints) == 0 {
		return nil, ErrNoEndpoints
	}
	return &SearxAdapter{
		core:      newCore("searx", cacheNS, limiter, logger),
		endpoints: endpoints,
	}, nil
}

func (a *SearxAdapter) Name() string       { return "searx" }
func (a *SearxAdapter) RequiresBBox() bool { return false }

func (a *SearxAdapter) Discover(ctx context.Context, q Query) models.ProviderResult {
	key := cache.Key("searx", q.City, q.Cuisine, strconv.Itoa(q.Limit))
	return a.discoverCached(ctx, key, func(ctx context.Context) ([]models.Venue, error) {
		return a.fetch(ctx, q)
	})
}

func (a *SearxAdapter) fetch(ctx context.Context, q Query) ([]models.Venue, error) {
	text := fmt.Sprintf("best restaurants in %s", q.City)
	if q.Cuisine != "" {
		text = fmt.Sprintf("best %s restaurants in %s", q.Cuisine, q.City)
	}

	params := url.Values{}
	params.Set("q", text)
	params.Set("format", "json")

	var lastErr error
	for _, endpoint := range a.endpoints {
		var resp searxResponse
		if err := a.getJSON(ctx, endpoint+"?"+params.Encode(), &resp); err != nil {
			lastErr = err
			a.logger.DebugContext(ctx, "SearX instance failed, rotating",
				slog.String("endpoint", endpoint), slog.Any("error", err))
			continue
		}
		return a.normalize(resp, q), nil
	}
	return nil, fmt.Errorf("all searx instances failed: %w", lastErr)
}

type searxResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
		Engine  string `json:"engine"`
	} `json:"results"`
}

func (a *SearxAdapter) normalize(resp searxResponse, q Query) []models.Venue {
	var lat, lon float64
	if q.BBox != nil {
		lat, lon = q.BBox.Center()
	}

	venues := make([]models.Venue, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.Title == "" {
			continue
		}
		v := models.Venue{
			ID:        fmt.Sprintf("searx:%s", cache.Key(r.URL, r.Title)),
			Name:      r.Title,
			Latitude:  lat,
			Longitude: lon,
			Category:  "venue",
			SourceURL: r.URL,
			Provider:  a.Name(),
			Tags:      []string{r.Content},
		}
		venues = append(venues, finishVenue(v, 0.3))
		if q.Limit > 0 && len(venues) >= q.Limit {
			break
		}
	}
	return venues
}
