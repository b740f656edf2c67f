package providers

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strconv"

	"github.com/FACorreiaa/go-venue-discovery/app/cache"
	"github.com/FACorreiaa/go-venue-discovery/app/ratelimit"
	"github.com/FACorreiaa/go-venue-discovery/internal/models"
)

var _ Provider = (*TomTomAdapter)(nil)

// TomTomAdapter discovers venues via the TomTom POI Search API, biased
// around the geocoded city center.
type TomTomAdapter struct {
	core
	endpoint string
	apiKey   string
}

func NewTomTomAdapter(endpoint, apiKey string, cacheNS *cache.Namespace, limiter *ratelimit.Limiter, logger *slog.Logger) (*TomTomAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: tomtom", ErrMissingAPIKey)
	}
	return &TomTomAdapter{
		core:     newCore("tomtom", cacheNS, limiter, logger),
		endpoint: endpoint,
		apiKey:   apiKey,
	}, nil
}

func (a *TomTomAdapter) Name() string       { return "tomtom" }
func (a *TomTomAdapter) RequiresBBox() bool { return true }

func (a *TomTomAdapter) Discover(ctx context.Context, q Query) models.ProviderResult {
	if q.BBox == nil {
		return models.ProviderResult{Provider: a.Name(), Status: models.ProviderSkipped}
	}
	key := cache.Key("tomtom", bboxKey(*q.BBox), q.Cuisine, strconv.Itoa(q.Limit))
	return a.discoverCached(ctx, key, func(ctx context.Context) ([]models.Venue, error) {
		return a.fetch(ctx, q)
	})
}

func (a *TomTomAdapter) fetch(ctx context.Context, q Query) ([]models.Venue, error) {
	term := "restaurant"
	if q.Cuisine != "" {
		term = q.Cuisine + " restaurant"
	}
	lat, lon := q.BBox.Center()

	params := url.Values{}
	params.Set("key", a.apiKey)
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("radius", strconv.Itoa(bboxRadiusMeters(*q.BBox)))
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	rawURL := fmt.Sprintf("%s/%s.json?%s", a.endpoint, url.PathEscape(term), params.Encode())
	var resp tomtomResponse
	if err := a.getJSON(ctx, rawURL, &resp); err != nil {
		return nil, err
	}
	return a.normalize(resp, q.Limit), nil
}

type tomtomResponse struct {
	Results []tomtomResult `json:"results"`
}

type tomtomResult struct {
	ID  string `json:"id"`
	POI struct {
		Name            string `json:"name"`
		Phone           string `json:"phone"`
		URL             string `json:"url"`
		Classifications []struct {
			Code string `json:"code"`
		} `json:"classifications"`
	} `json:"poi"`
	Address struct {
		FreeformAddress string `json:"freeformAddress"`
	} `json:"address"`
	Position struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"position"`
}

func (a *TomTomAdapter) normalize(resp tomtomResponse, limit int) []models.Venue {
	venues := make([]models.Venue, 0, len(resp.Results))
	for _, r := range resp.Results {
		category := "restaurant"
		if len(r.POI.Classifications) > 0 && r.POI.Classifications[0].Code == "CAFE_PUB" {
			category = "cafe"
		}

		v := models.Venue{
			ID:        "tomtom:" + r.ID,
			Name:      r.POI.Name,
			Latitude:  r.Position.Lat,
			Longitude: r.Position.Lon,
			Address:   r.Address.FreeformAddress,
			Category:  category,
			Website:   r.POI.URL,
			Phone:     r.POI.Phone,
			Provider:  a.Name(),
		}
		v = finishVenue(v, 0.8)
		if !v.HasFiniteCoordinates() {
			continue
		}
		venues = append(venues, v)
		if limit > 0 && len(venues) >= limit {
			break
		}
	}
	return venues
}

// bboxRadiusMeters approximates a search radius covering the box, capped so a
// whole-country box does not turn into an absurd query.
func bboxRadiusMeters(b models.BoundingBox) int {
	latSpan := math.Abs(b.North-b.South) / 2
	lonSpan := math.Abs(b.East-b.West) / 2
	// ~111km per degree of latitude; good enough for a radius hint.
	radius := int(math.Max(latSpan, lonSpan) * 111_000)
	if radius < 1000 {
		radius = 1000
	}
	if radius > 20_000 {
		radius = 20_000
	}
	return radius
}
