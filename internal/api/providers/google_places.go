package providers

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/FACorreiaa/go-venue-discovery/app/cache"
	"github.com/FACorreiaa/go-venue-discovery/app/ratelimit"
	"github.com/FACorreiaa/go-venue-discovery/internal/models"
)

var _ Provider = (*GooglePlacesAdapter)(nil)

// GooglePlacesAdapter discovers venues via the Places Text Search API. It
// works from the free-text city query alone, so it still contributes results
// when geocoding fails.
type GooglePlacesAdapter struct {
	core
	endpoint string
	apiKey   string
}

func NewGooglePlacesAdapter(endpoint, apiKey string, cacheNS *cache.Namespace, limiter *ratelimit.Limiter, logger *slog.Logger) (*GooglePlacesAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: google places", ErrMissingAPIKey)
	}
	return &GooglePlacesAdapter{
		core:     newCore("google_places", cacheNS, limiter, logger),
		endpoint: endpoint,
		apiKey:   apiKey,
	}, nil
}

func (a *GooglePlacesAdapter) Name() string       { return "google_places" }
func (a *GooglePlacesAdapter) RequiresBBox() bool { return false }

func (a *GooglePlacesAdapter) Discover(ctx context.Context, q Query) models.ProviderResult {
	key := cache.Key("google_places", q.City, q.Cuisine, strconv.Itoa(q.Limit))
	return a.discoverCached(ctx, key, func(ctx context.Context) ([]models.Venue, error) {
		return a.fetch(ctx, q)
	})
}

func (a *GooglePlacesAdapter) fetch(ctx context.Context, q Query) ([]models.Venue, error) {
	text := "restaurants in " + q.City
	if q.Cuisine != "" {
		text = q.Cuisine + " " + text
	}

	params := url.Values{}
	params.Set("query", text)
	params.Set("key", a.apiKey)
	if q.BBox != nil {
		lat, lon := q.BBox.Center()
		params.Set("location", fmt.Sprintf("%f,%f", lat, lon))
	}

	var resp placesResponse
	if err := a.getJSON(ctx, a.endpoint+"?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	if resp.Status != "OK" && resp.Status != "ZERO_RESULTS" {
		return nil, fmt.Errorf("google places returned status %q", resp.Status)
	}
	return a.normalize(resp, q.Limit), nil
}

type placesResponse struct {
	Status  string        `json:"status"`
	Results []placeResult `json:"results"`
}

type placeResult struct {
	PlaceID  string `json:"place_id"`
	Name     string `json:"name"`
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
	FormattedAddress string   `json:"formatted_address"`
	PriceLevel       *int     `json:"price_level"`
	Rating           float64  `json:"rating"`
	Types            []string `json:"types"`
	Website          string   `json:"website"`
}

func (a *GooglePlacesAdapter) normalize(resp placesResponse, limit int) []models.Venue {
	venues := make([]models.Venue, 0, len(resp.Results))
	for _, r := range resp.Results {
		priceLevel := -1
		if r.PriceLevel != nil {
			priceLevel = *r.PriceLevel
		}

		v := models.Venue{
			ID:         "google:" + r.PlaceID,
			Name:       r.Name,
			Latitude:   r.Geometry.Location.Lat,
			Longitude:  r.Geometry.Location.Lng,
			Address:    r.FormattedAddress,
			Category:   placesCategory(r.Types),
			BudgetTier: budgetFromPriceLevel(priceLevel),
			Website:    r.Website,
			Rating:     r.Rating,
			SourceURL:  "https://www.google.com/maps/place/?q=place_id:" + url.QueryEscape(r.PlaceID),
			Provider:   a.Name(),
			Tags:       r.Types,
		}
		v = finishVenue(v, 0.85)
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

// placesCategory picks the most specific known amenity from the Places type
// list, which mixes concrete types with generic ones like "establishment".
func placesCategory(types []string) string {
	for _, t := range types {
		switch t {
		case "restaurant", "cafe", "bakery", "bar", "museum":
			return t
		case "meal_takeaway", "meal_delivery":
			return "fast_food"
		}
	}
	if len(types) > 0 {
		return strings.ReplaceAll(types[0], "_", " ")
	}
	return "venue"
}
