package providers

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-venue-discovery/app/cache"
	"github.com/FACorreiaa/go-venue-discovery/app/ratelimit"
	"github.com/FACorreiaa/go-venue-discovery/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testDeps(t *testing.T) (*cache.Store, *ratelimit.Limiter) {
	t.Helper()
	return testDepsTTL(t, time.Hour)
}

func testDepsTTL(t *testing.T, ttl time.Duration) (*cache.Store, *ratelimit.Limiter) {
	t.Helper()
	store, err := cache.New(t.TempDir(), ttl)
	require.NoError(t, err)
	limiter, err := ratelimit.New(filepath.Join(t.TempDir(), "rl.state"), 0)
	require.NoError(t, err)
	return store, limiter
}

func testBBox() *models.BoundingBox {
	return &models.BoundingBox{South: 41.138, West: -8.691, North: 41.186, East: -8.553}
}

const overpassBody = `{"elements":[
	{"type":"node","id":111,"lat":41.15,"lon":-8.61,
	 "tags":{"name":"Casa Guedes","amenity":"restaurant","cuisine":"portuguese",
	         "addr:street":"Praça dos Poveiros","addr:housenumber":"130","addr:city":"Porto",
	         "phone":"+351 222 002 874"}},
	{"type":"way","id":222,"center":{"lat":41.151,"lon":-8.612},
	 "tags":{"amenity":"fast_food"}}
]}`

func newOverpass(t *testing.T, endpoints []string, retries int) *OverpassAdapter {
	t.Helper()
	store, limiter := testDeps(t)
	a, err := NewOverpassAdapter(endpoints, retries, store.Namespace("overpass"), limiter, testLogger())
	require.NoError(t, err)
	return a
}

func TestOverpassNormalization(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Contains(t, r.Form.Get("data"), "amenity")
		w.Write([]byte(overpassBody))
	}))
	defer srv.Close()

	a := newOverpass(t, []string{srv.URL}, 0)
	res := a.Discover(context.Background(), Query{City: "Porto", BBox: testBBox(), Limit: 10})

	require.Equal(t, models.ProviderOK, res.Status)
	require.Len(t, res.Venues, 2)

	first := res.Venues[0]
	assert.Equal(t, "osm:node:111", first.ID)
	assert.Equal(t, "Casa Guedes", first.Name)
	assert.Equal(t, "Praça dos Poveiros 130, Porto", first.Address)
	assert.Equal(t, "portuguese", first.Cuisine)
	assert.Equal(t, models.BudgetMid, first.BudgetTier)
	assert.Equal(t, "+351 222 002 874", first.Phone)
	assert.Equal(t, "osm", first.Provider)

	// Way without a name falls back to "Unnamed", takes the center
	// coordinate, and gets a synthesized address.
	second := res.Venues[1]
	assert.Equal(t, "osm:way:222", second.ID)
	assert.Equal(t, "Unnamed", second.Name)
	assert.InDelta(t, 41.151, second.Latitude, 1e-9)
	assert.Equal(t, models.BudgetCheap, second.BudgetTier)
	assert.NotEmpty(t, second.Address)
}

func TestOverpassMirrorFailover(t *testing.T) {
	var primaryCalls, mirrorCalls atomic.Int32
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		primaryCalls.Add(1)
		w.WriteHeader(http.StatusGatewayTimeout)
	}))
	defer primary.Close()
	mirror := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mirrorCalls.Add(1)
		w.Write([]byte(overpassBody))
	}))
	defer mirror.Close()

	a := newOverpass(t, []string{primary.URL, mirror.URL}, 2)
	res := a.Discover(context.Background(), Query{City: "Porto", BBox: testBBox()})

	assert.Equal(t, models.ProviderOK, res.Status)
	assert.Len(t, res.Venues, 2)
	// Failover happens within one rotation: the dead mirror is tried once,
	// not once per retry attempt.
	assert.Equal(t, int32(1), primaryCalls.Load())
	assert.Equal(t, int32(1), mirrorCalls.Load())
}

func TestOverpassStaleFallbackWhenAllMirrorsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(overpassBody))
	}))

	store, limiter := testDepsTTL(t, 50*time.Millisecond)
	a, err := NewOverpassAdapter([]string{srv.URL}, 0, store.Namespace("overpass"), limiter, testLogger())
	require.NoError(t, err)
	a.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	q := Query{City: "Porto", BBox: testBBox()}
	res := a.Discover(context.Background(), q)
	require.Equal(t, models.ProviderOK, res.Status)

	// Kill the upstream and let the entry expire: the adapter must serve
	// the stale entry rather than an empty list.
	srv.Close()
	time.Sleep(80 * time.Millisecond)

	res = a.Discover(context.Background(), q)
	assert.Equal(t, models.ProviderStale, res.Status)
	assert.Len(t, res.Venues, 2)
}

func TestOverpassDegradedWhenAllFailAndNoCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := newOverpass(t, []string{srv.URL}, 0)
	a.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	res := a.Discover(context.Background(), Query{City: "Porto", BBox: testBBox()})
	assert.Equal(t, models.ProviderDegraded, res.Status)
	assert.Empty(t, res.Venues)
}

func TestOverpassSecondCallUsesCache(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(overpassBody))
	}))
	defer srv.Close()

	a := newOverpass(t, []string{srv.URL}, 0)
	q := Query{City: "Porto", BBox: testBBox()}
	a.Discover(context.Background(), q)
	a.Discover(context.Background(), q)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOverpassSkippedWithoutBBox(t *testing.T) {
	a := newOverpass(t, []string{"http://localhost:0"}, 0)
	res := a.Discover(context.Background(), Query{City: "Porto"})
	assert.Equal(t, models.ProviderSkipped, res.Status)
}

func TestBuildOverpassQLEscapesCuisine(t *testing.T) {
	ql := buildOverpassQL(*testBBox(), `sushi"];node["amenity`, 10)
	assert.NotContains(t, ql, `sushi"]`)
	assert.Contains(t, ql, "sushinodeamenity")
}
