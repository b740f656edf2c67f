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

var _ Provider = (*WikidataAdapter)(nil)

// WikidataAdapter queries the Wikidata SPARQL endpoint for food businesses
// inside the city's bounding box. A thin source, but it carries websites and
// phone numbers OSM often lacks, so merged records gain enrichment fields.
type WikidataAdapter struct {
	core
	endpoint string
}

func NewWikidataAdapter(endpoint string, cacheNS *cache.Namespace, limiter *ratelimit.Limiter, logger *slog.Logger) *WikidataAdapter {
	return &WikidataAdapter{
		core:     newCore("wikidata", cacheNS, limiter, logger),
		endpoint: endpoint,
	}
}

func (a *WikidataAdapter) Name() string       { return "wikidata" }
func (a *WikidataAdapter) RequiresBBox() bool { return true }

func (a *WikidataAdapter) Discover(ctx context.Context, q Query) models.ProviderResult {
	if q.BBox == nil {
		return models.ProviderResult{Provider: a.Name(), Status: models.ProviderSkipped}
	}
	key := cache.Key("wikidata", bboxKey(*q.BBox), strconv.Itoa(q.Limit))
	return a.discoverCached(ctx, key, func(ctx context.Context) ([]models.Venue, error) {
		return a.fetch(ctx, q)
	})
}

func (a *WikidataAdapter) fetch(ctx context.Context, q Query) ([]models.Venue, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	sparql := buildWikidataQuery(*q.BBox, limit)

	params := url.Values{}
	params.Set("query", sparql)
	params.Set("format", "json")

	var resp sparqlResponse
	if err := a.getJSON(ctx, a.endpoint+"?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	return a.normalize(resp), nil
}

// buildWikidataQuery selects restaurants (Q11707 and subclasses) whose
// coordinate lies inside the box.
func buildWikidataQuery(bbox models.BoundingBox, limit int) string {
	return fmt.Sprintf(`SELECT ?item ?itemLabel ?coord ?website ?phone WHERE {
  ?item wdt:P31/wdt:P279* wd:Q11707 .
  SERVICE wikibase:box {
    ?item wdt:P625 ?coord .
    bd:serviceParam wikibase:cornerSouthWest "Point(%f %f)"^^geo:wktLiteral .
    bd:serviceParam wikibase:cornerNorthEast "Point(%f %f)"^^geo:wktLiteral .
  }
  OPTIONAL { ?item wdt:P856 ?website . }
  OPTIONAL { ?item wdt:P1329 ?phone . }
  SERVICE wikibase:label { bd:serviceParam wikibase:language "en" . }
} LIMIT %d`, bbox.West, bbox.South, bbox.East, bbox.North, limit)
}

type sparqlResponse struct {
	Results struct {
		Bindings []map[string]sparqlValue `json:"bindings"`
	} `json:"results"`
}

type sparqlValue struct {
	Value string `json:"value"`
}

func (a *WikidataAdapter) normalize(resp sparqlResponse) []models.Venue {
	venues := make([]models.Venue, 0, len(resp.Results.Bindings))
	for _, b := range resp.Results.Bindings {
		entityURL := b["item"].Value
		qid := entityURL[strings.LastIndex(entityURL, "/")+1:]
		lat, lon, ok := parseWKTPoint(b["coord"].Value)
		if !ok {
			continue // malformed coordinate literal, drop silently
		}

		v := models.Venue{
			ID:        "wikidata:" + qid,
			Name:      b["itemLabel"].Value,
			Latitude:  lat,
			Longitude: lon,
			Category:  "restaurant",
			Website:   b["website"].Value,
			Phone:     b["phone"].Value,
			SourceURL: entityURL,
			Provider:  a.Name(),
		}
		v = finishVenue(v, 0.6)
		if !v.HasFiniteCoordinates() {
			continue
		}
		venues = append(venues, v)
	}
	return venues
}

// parseWKTPoint parses a "Point(lon lat)" WKT literal.
func parseWKTPoint(wkt string) (lat, lon float64, ok bool) {
	inner := strings.TrimSuffix(strings.TrimPrefix(wkt, "Point("), ")")
	fields := strings.Fields(inner)
	if len(fields) != 2 {
		return 0, 0, false
	}
	lon, err1 := strconv.ParseFloat(fields[0], 64)
	lat, err2 := strconv.ParseFloat(fields[1], 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return lat, lon, true
}
