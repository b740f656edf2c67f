package geocode

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
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestService(t *testing.T, endpoint string) *ServiceImpl {
	t.Helper()
	store, err := cache.New(t.TempDir(), time.Hour)
	require.NoError(t, err)
	limiter, err := ratelimit.New(filepath.Join(t.TempDir(), "rl.state"), 0)
	require.NoError(t, err)
	return NewServiceImpl(endpoint, store.Namespace("nominatim"), limiter, testLogger())
}

func TestGeocodeCanonicalBBoxOrdering(t *testing.T) {
	// Nominatim's native order is [south, north, west, east].
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Porto", r.URL.Query().Get("q"))
		w.Write([]byte(`[{"boundingbox":["41.138","41.186","-8.691","-8.553"],"lat":"41.15","lon":"-8.61","display_name":"Porto, Portugal"}]`))
	}))
	defer srv.Close()

	bbox, err := newTestService(t, srv.URL).Geocode(context.Background(), "Porto")
	require.NoError(t, err)
	assert.InDelta(t, 41.138, bbox.South, 1e-9)
	assert.InDelta(t, -8.691, bbox.West, 1e-9)
	assert.InDelta(t, 41.186, bbox.North, 1e-9)
	assert.InDelta(t, -8.553, bbox.East, 1e-9)
}

func TestGeocodeNoResultReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	bbox, err := newTestService(t, srv.URL).Geocode(context.Background(), "Nowhereville ZZ")
	assert.Error(t, err)
	assert.Nil(t, bbox)
}

func TestGeocodeUpstreamFailureReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestService(t, srv.URL).Geocode(context.Background(), "Porto")
	assert.Error(t, err)
}

func TestGeocodeSecondCallServedFromCache(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`[{"boundingbox":["41.1","41.2","-8.7","-8.5"]}]`))
	}))
	defer srv.Close()

	s := newTestService(t, srv.URL)
	_, err := s.Geocode(context.Background(), "Porto")
	require.NoError(t, err)
	_, err = s.Geocode(context.Background(), "Porto")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestReverseGeocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		w.Write([]byte(`{"display_name":"Rua de Cedofeita 256, Porto, Portugal"}`))
	}))
	defer srv.Close()

	name, err := newTestService(t, srv.URL).ReverseGeocode(context.Background(), 41.153, -8.616)
	require.NoError(t, err)
	assert.Equal(t, "Rua de Cedofeita 256, Porto, Portugal", name)
}

func TestReverseGeocodeFailureReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	name, err := newTestService(t, srv.URL).ReverseGeocode(context.Background(), 41.153, -8.616)
	assert.Error(t, err)
	assert.Empty(t, name)
}
