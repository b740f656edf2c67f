package providers

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/FACorreiaa/go-venue-discovery/app/cache"
	"github.com/FACorreiaa/go-venue-discovery/app/ratelimit"
	"github.com/FACorreiaa/go-venue-discovery/internal/models"
)

var _ Provider = (*OverpassAdapter)(nil)

// OverpassAdapter discovers venues from OpenStreetMap via the public Overpass
// API. Several public instances mirror the same data, so a failed call fails
// over to the next mirror immediately; exponential backoff applies only
// between full rotations.
type OverpassAdapter struct {
	core
	endpoints []string
	retries   int
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewOverpassAdapter(endpoints []string, retries int, cacheNS *cache.Namespace, limiter *ratelimit.Limiter, logger *slog.Logger) (*OverpassAdapter, error) {
	if len(endpoints) == 0 {
		return nil, ErrNoEndpoints
	}
	if retries < 0 {
		retries = 0
	}
	return &OverpassAdapter{
		core:      newCore("osm", cacheNS, limiter, logger),
		endpoints: endpoints,
		retries:   retries,
		sleep:     sleepCtx,
	}, nil
}

func (a *OverpassAdapter) Name() string       { return "osm" }
func (a *OverpassAdapter) RequiresBBox() bool { return true }

func (a *OverpassAdapter) Discover(ctx context.Context, q Query) models.ProviderResult {
	if q.BBox == nil {
		return models.ProviderResult{Provider: a.Name(), Status: models.ProviderSkipped}
	}
	key := cache.Key("overpass", bboxKey(*q.BBox), q.Cuisine, strconv.Itoa(q.Limit))
	return a.discoverCached(ctx, key, func(ctx context.Context) ([]models.Venue, error) {
		return a.fetch(ctx, q)
	})
}

func (a *OverpassAdapter) fetch(ctx context.Context, q Query) ([]models.Venue, error) {
	query := buildOverpassQL(*q.BBox, q.Cuisine, q.Limit)

	var lastErr error
	for attempt := 0; attempt <= a.retries; attempt++ {
		if attempt > 0 {
			if err := a.sleep(ctx, backoff(attempt-1)); err != nil {
				return nil, err
			}
		}
		for _, endpoint := range a.endpoints {
			var resp overpassResponse
			if err := a.postForm(ctx, endpoint, url.Values{"data": {query}}, &resp); err != nil {
				lastErr = err
				a.logger.DebugContext(ctx, "Overpass endpoint failed, rotating to next mirror",
					slog.String("endpoint", endpoint), slog.Any("error", err))
				continue
			}
			return a.normalize(resp, q.Limit), nil
		}
	}
	return nil, fmt.Errorf("all overpass endpoints failed: %w", lastErr)
}

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	Type   string  `json:"type"`
	ID     int64   `json:"id"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Center *struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"center"`
	Tags map[string]string `json:"tags"`
}

func (a *OverpassAdapter) normalize(resp overpassResponse, limit int) []models.Venue {
	venues := make([]models.Venue, 0, len(resp.Elements))
	for _, el := range resp.Elements {
		lat, lon := el.Lat, el.Lon
		if el.Center != nil {
			lat, lon = el.Center.Lat, el.Center.Lon
		}

		tags := el.Tags
		v := models.Venue{
			ID:         fmt.Sprintf("osm:%s:%d", el.Type, el.ID),
			Name:       tags["name"],
			Latitude:   lat,
			Longitude:  lon,
			Address:    osmAddress(tags),
			Category:   tags["amenity"],
			Cuisine:    tags["cuisine"],
			BudgetTier: budgetFromAmenity(tags["amenity"]),
			Website:    firstNonEmpty(tags["website"], tags["contact:website"]),
			Phone:      firstNonEmpty(tags["phone"], tags["contact:phone"]),
			SourceURL:  fmt.Sprintf("https://www.openstreetmap.org/%s/%d", el.Type, el.ID),
			Provider:   a.Name(),
			Tags:       tagBlob(tags),
		}
		v = finishVenue(v, 0.7)
		if !v.HasFiniteCoordinates() {
			continue // malformed element, drop silently
		}
		venues = append(venues, v)
		if limit > 0 && len(venues) >= limit {
			break
		}
	}
	return venues
}

func buildOverpassQL(bbox models.BoundingBox, cuisine string, limit int) string {
	box := fmt.Sprintf("(%f,%f,%f,%f)", bbox.South, bbox.West, bbox.North, bbox.East)
	filter := `["amenity"~"restaurant|cafe|fast_food|bar|pub"]`
	if cuisine != "" {
		filter += fmt.Sprintf(`["cuisine"~"%s",i]`, sanitizeRegex(cuisine))
	}
	out := "out center"
	if limit > 0 {
		out = fmt.Sprintf("out center %d", limit)
	}
	return fmt.Sprintf("[out:json][timeout:8];(node%[1]s%[2]s;way%[1]s%[2]s;);%s;", filter, box, out)
}

// sanitizeRegex strips characters that could break out of the Overpass QL
// regex literal.
func sanitizeRegex(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '"' || r == '\\' || r == '[' || r == ']' || r == ';' {
			return -1
		}
		return r
	}, s)
}

func osmAddress(tags map[string]string) string {
	var parts []string
	if street := tags["addr:street"]; street != "" {
		if num := tags["addr:housenumber"]; num != "" {
			parts = append(parts, street+" "+num)
		} else {
			parts = append(parts, street)
		}
	}
	if city := tags["addr:city"]; city != "" {
		parts = append(parts, city)
	}
	return strings.Join(parts, ", ")
}

func tagBlob(tags map[string]string) []string {
	blob := make([]string, 0, len(tags))
	for k, v := range tags {
		blob = append(blob, k+"="+v)
	}
	return blob
}

func bboxKey(b models.BoundingBox) string {
	return fmt.Sprintf("%.4f,%.4f,%.4f,%.4f", b.South, b.West, b.North, b.East)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
