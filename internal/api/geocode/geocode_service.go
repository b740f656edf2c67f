package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/FACorreiaa/go-venue-discovery/app/cache"
	"github.com/FACorreiaa/go-venue-discovery/app/ratelimit"
	"github.com/FACorreiaa/go-venue-discovery/internal/models"
)

var _ Service = (*ServiceImpl)(nil)

// Service resolves free-text place names to bounding boxes and coordinates
// back to display addresses. Implementations degrade by returning errors;
// callers are expected to treat any error as "no location", never abort.
type Service interface {
	Geocode(ctx context.Context, place string) (*models.BoundingBox, error)
	ReverseGeocode(ctx context.Context, lat, lon float64) (string, error)
}

const requestTimeout = 7 * time.Second

// userAgent identifies the app to Nominatim per its usage policy.
const userAgent = "go-venue-discovery/1.0"

type ServiceImpl struct {
	endpoint string
	client   *http.Client
	cache    *cache.Namespace
	limiter  *ratelimit.Limiter
	logger   *slog.Logger
}

func NewServiceImpl(endpoint string, cacheNS *cache.Namespace, limiter *ratelimit.Limiter, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		endpoint: endpoint,
		client:   &http.Client{Timeout: requestTimeout},
		cache:    cacheNS,
		limiter:  limiter,
		logger:   logger,
	}
}

// nominatimPlace is the subset of a Nominatim search result we consume.
// Nominatim returns the box as [south, north, west, east] strings; we
// re-order into the canonical (south, west, north, east) BoundingBox so no
// caller ever needs to know the upstream convention.
type nominatimPlace struct {
	BoundingBox []string `json:"boundingbox"`
	DisplayName string   `json:"display_name"`
	Lat         string   `json:"lat"`
	Lon         string   `json:"lon"`
}

func (s *ServiceImpl) Geocode(ctx context.Context, place string) (*models.BoundingBox, error) {
	key := cache.Key("geocode", place)
	if payload, err := s.cache.Get(key); err == nil {
		var bbox models.BoundingBox
		if err := json.Unmarshal(payload, &bbox); err == nil {
			return &bbox, nil
		}
	}

	if err := s.limiter.Wait(ctx, endpointKey(s.endpoint)); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("q", place)
	q.Set("format", "jsonv2")
	q.Set("limit", "1")

	var places []nominatimPlace
	if err := s.getJSON(ctx, s.endpoint+"/search?"+q.Encode(), &places); err != nil {
		s.logger.WarnContext(ctx, "Geocoding request failed", slog.String("place", place), slog.Any("error", err))
		return nil, err
	}
	if len(places) == 0 || len(places[0].BoundingBox) != 4 {
		return nil, fmt.Errorf("no geocoding result for %q", place)
	}

	raw := places[0].BoundingBox
	south, err1 := strconv.ParseFloat(raw[0], 64)
	north, err2 := strconv.ParseFloat(raw[1], 64)
	west, err3 := strconv.ParseFloat(raw[2], 64)
	east, err4 := strconv.ParseFloat(raw[3], 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return nil, fmt.Errorf("malformed bounding box for %q: %v", place, raw)
	}

	bbox := &models.BoundingBox{South: south, West: west, North: north, East: east}
	if payload, err := json.Marshal(bbox); err == nil {
		if err := s.cache.Set(key, payload); err != nil {
			s.logger.WarnContext(ctx, "Failed to cache geocoding result", slog.Any("error", err))
		}
	}
	return bbox, nil
}

func (s *ServiceImpl) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	key := cache.Key("reverse", fmt.Sprintf("%.5f", lat), fmt.Sprintf("%.5f", lon))
	if payload, err := s.cache.Get(key); err == nil {
		var name string
		if err := json.Unmarshal(payload, &name); err == nil {
			return name, nil
		}
	}

	if err := s.limiter.Wait(ctx, endpointKey(s.endpoint)); err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("format", "jsonv2")

	var place nominatimPlace
	if err := s.getJSON(ctx, s.endpoint+"/reverse?"+q.Encode(), &place); err != nil {
		s.logger.WarnContext(ctx, "Reverse geocoding request failed", slog.Any("error", err))
		return "", err
	}
	if place.DisplayName == "" {
		return "", fmt.Errorf("no reverse geocoding result for (%f, %f)", lat, lon)
	}

	if payload, err := json.Marshal(place.DisplayName); err == nil {
		_ = s.cache.Set(key, payload)
	}
	return place.DisplayName, nil
}

func (s *ServiceImpl) getJSON(ctx context.Context, rawURL string, into any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build geocoding request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("geocoding upstream returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("failed to decode geocoding response: %w", err)
	}
	return nil
}

func endpointKey(endpoint string) string {
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		return u.Host
	}
	return endpoint
}
