package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/FACorreiaa/go-venue-discovery/app/cache"
	"github.com/FACorreiaa/go-venue-discovery/app/observability/metrics"
	"github.com/FACorreiaa/go-venue-discovery/app/ratelimit"
	"github.com/FACorreiaa/go-venue-discovery/internal/models"
)

// ErrMissingAPIKey is returned at construction time when a keyed provider is
// explicitly enabled without its key. Misconfiguration fails loudly; upstream
// failures at request time never do.
var ErrMissingAPIKey = errors.New("providers: API key required but not configured")

// ErrNoEndpoints is returned at construction time when an adapter is enabled
// with an empty endpoint list.
var ErrNoEndpoints = errors.New("providers: no endpoints configured")

// Query is the minimum request surface every adapter honors.
type Query struct {
	City    string
	BBox    *models.BoundingBox
	Cuisine string
	Limit   int
}

// Provider wraps one external data source. Discover never fails: upstream
// errors resolve to a ProviderResult with a degraded status and zero venues,
// optionally backed by a stale cache entry.
type Provider interface {
	Name() string
	RequiresBBox() bool
	Discover(ctx context.Context, q Query) models.ProviderResult
}

const (
	requestTimeout = 8 * time.Second
	userAgent      = "go-venue-discovery/1.0"

	retryBaseDelay = 250 * time.Millisecond
	retryMaxDelay  = 2 * time.Second
)

// core carries the plumbing shared by every adapter: the HTTP client, the
// per-provider cache namespace, the shared rate limiter and the logger.
type core struct {
	name    string
	client  *http.Client
	cache   *cache.Namespace
	limiter *ratelimit.Limiter
	logger  *slog.Logger
}

func newCore(name string, cacheNS *cache.Namespace, limiter *ratelimit.Limiter, logger *slog.Logger) core {
	return core{
		name:    name,
		client:  &http.Client{Timeout: requestTimeout},
		cache:   cacheNS,
		limiter: limiter,
		logger:  logger.With(slog.String("provider", name)),
	}
}

// discoverCached runs the shared per-query flow: fresh cache check, live
// fetch, cache write, stale fallback. The ordering (cache → rate limit →
// fetch → cache write) is a hard requirement; fetch implementations call
// c.getJSON/c.postForm which consult the limiter before touching the network.
func (c *core) discoverCached(ctx context.Context, key string, fetch func(ctx context.Context) ([]models.Venue, error)) models.ProviderResult {
	m := metrics.Get()
	providerAttr := metric.WithAttributes(attribute.String("provider", c.name))

	if payload, err := c.cache.Get(key); err == nil {
		var venues []models.Venue
		if err := json.Unmarshal(payload, &venues); err == nil {
			m.CacheHitsTotal.Add(ctx, 1, providerAttr)
			c.logger.DebugContext(ctx, "Serving venues from cache", slog.Int("count", len(venues)))
			return models.ProviderResult{Provider: c.name, Status: models.ProviderOK, Venues: venues}
		}
	}

	m.ProviderRequestsTotal.Add(ctx, 1, providerAttr)
	venues, err := fetch(ctx)
	if err == nil {
		if payload, merr := json.Marshal(venues); merr == nil {
			if cerr := c.cache.Set(key, payload); cerr != nil {
				c.logger.WarnContext(ctx, "Failed to write provider cache", slog.Any("error", cerr))
			}
		}
		return models.ProviderResult{Provider: c.name, Status: models.ProviderOK, Venues: venues}
	}

	m.ProviderFailuresTotal.Add(ctx, 1, providerAttr)
	c.logger.WarnContext(ctx, "Provider fetch failed, trying stale cache", slog.Any("error", err))

	if payload, ok := c.cache.GetStale(key); ok {
		var stale []models.Venue
		if serr := json.Unmarshal(payload, &stale); serr == nil && len(stale) > 0 {
			m.CacheStaleHitsTotal.Add(ctx, 1, providerAttr)
			c.logger.InfoContext(ctx, "Serving stale cache entry after upstream failure", slog.Int("count", len(stale)))
			return models.ProviderResult{Provider: c.name, Status: models.ProviderStale, Venues: stale}
		}
	}

	return models.ProviderResult{Provider: c.name, Status: models.ProviderDegraded}
}

// getJSON issues a rate-limited GET and decodes the JSON body.
func (c *core) getJSON(ctx context.Context, rawURL string, into any) error {
	return c.do(ctx, http.MethodGet, rawURL, nil, "", into)
}

// postForm issues a rate-limited form POST and decodes the JSON body.
func (c *core) postForm(ctx context.Context, rawURL string, form url.Values, into any) error {
	return c.do(ctx, http.MethodPost, rawURL, []byte(form.Encode()), "application/x-www-form-urlencoded", into)
}

func (c *core) do(ctx context.Context, method, rawURL string, body []byte, contentType string, into any) error {
	if err := c.limiter.Wait(ctx, endpointKey(rawURL)); err != nil {
		return err
	}

	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(body))
	} else {
		req, err = http.NewRequestWithContext(ctx, method, rawURL, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", c.name, err)
	}
	req.Header.Set("User-Agent", userAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s upstream returned status %d", c.name, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", c.name, err)
	}
	return nil
}

// backoff returns the exponential delay with jitter for the given rotation
// attempt, capped at retryMaxDelay.
func backoff(attempt int) time.Duration {
	d := float64(retryBaseDelay) * math.Pow(2, float64(attempt))
	if d > float64(retryMaxDelay) {
		d = float64(retryMaxDelay)
	}
	// Up to 25% jitter so mirrors are not hammered in lockstep.
	return time.Duration(d * (1 + 0.25*rand.Float64()))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func endpointKey(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		return u.Host
	}
	return rawURL
}
