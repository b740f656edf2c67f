package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, ttl time.Duration) *Store {
	t.Helper()
	s, err := New(t.TempDir(), ttl)
	require.NoError(t, err)
	return s
}

func TestCacheRoundTrip(t *testing.T) {
	s := newTestStore(t, time.Hour)
	ns := s.Namespace("overpass")

	payload := json.RawMessage(`{"elements":[{"id":1,"tags":{"name":"Joe's Pizza"}}]}`)
	require.NoError(t, ns.Set("k1", payload))

	got, err := ns.Get("k1")
	require.NoError(t, err)
	assert.Equal(t, []byte(payload), []byte(got), "payload must round-trip byte-identical")
}

func TestCacheMissOnUnknownKey(t *testing.T) {
	s := newTestStore(t, time.Hour)
	_, err := s.Namespace("overpass").Get("nope")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestCacheTTLBoundaryIsExpired(t *testing.T) {
	s := newTestStore(t, time.Hour)
	ns := s.Namespace("overpass")
	require.NoError(t, ns.Set("k1", json.RawMessage(`"v"`)))

	// Advance the clock to exactly the TTL; age >= ttl must read as expired.
	base := s.now()
	s.now = func() time.Time { return base.Add(time.Hour) }
	s.hot.Flush()

	_, err := ns.Get("k1")
	assert.ErrorIs(t, err, ErrMiss)

	// Stale read still serves the payload.
	stale, ok := ns.GetStale("k1")
	require.True(t, ok)
	assert.JSONEq(t, `"v"`, string(stale))
}

func TestCacheFreshJustUnderTTL(t *testing.T) {
	s := newTestStore(t, time.Hour)
	ns := s.Namespace("overpass")
	require.NoError(t, ns.Set("k1", json.RawMessage(`"v"`)))

	base := s.now()
	s.now = func() time.Time { return base.Add(time.Hour - time.Second) }
	s.hot.Flush()

	_, err := ns.Get("k1")
	assert.NoError(t, err)
}

func TestCacheHotLayerHonorsTTLBoundary(t *testing.T) {
	s := newTestStore(t, time.Hour)
	ns := s.Namespace("overpass")
	require.NoError(t, ns.Set("k1", json.RawMessage(`"v"`)))

	// The entry is sitting in the hot layer; just under the TTL it is fresh.
	base := s.now()
	s.now = func() time.Time { return base.Add(time.Hour - time.Second) }
	_, err := ns.Get("k1")
	assert.NoError(t, err)

	// Past the TTL the hot hit must expire like the disk path does, with no
	// flush in between.
	s.now = func() time.Time { return base.Add(time.Hour) }
	_, err = ns.Get("k1")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestCacheAtomicWriteLeavesNoTempFiles(t *testing.T) {
	s := newTestStore(t, time.Hour)
	ns := s.Namespace("tomtom")
	for i := 0; i < 5; i++ {
		require.NoError(t, ns.Set("k", json.RawMessage(`{"n":1}`)))
	}

	files, err := os.ReadDir(s.dir)
	require.NoError(t, err)
	for _, f := range files {
		assert.False(t, strings.HasSuffix(f.Name(), ".tmp"), "temp file %s left behind", f.Name())
	}
	_, err = os.Stat(filepath.Join(s.dir, "tomtom.json"))
	assert.NoError(t, err)
}

func TestCacheNamespacesAreIsolated(t *testing.T) {
	s := newTestStore(t, time.Hour)
	require.NoError(t, s.Namespace("a").Set("k", json.RawMessage(`1`)))

	_, err := s.Namespace("b").Get("k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestCacheSurvivesCorruptFile(t *testing.T) {
	s := newTestStore(t, time.Hour)
	ns := s.Namespace("searx")
	require.NoError(t, os.WriteFile(ns.path, []byte("{not json"), 0o644))

	_, err := ns.Get("k")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, ns.Set("k", json.RawMessage(`2`)))
	got, err := ns.Get("k")
	require.NoError(t, err)
	assert.JSONEq(t, `2`, string(got))
}

func TestKeyIsStableAndNormalized(t *testing.T) {
	assert.Equal(t, Key("Porto", "Sushi"), Key("  porto", "sushi "))
	assert.NotEqual(t, Key("porto", "sushi"), Key("porto", "ramen"))
	assert.NotEqual(t, Key("ab", "c"), Key("a", "bc"), "part boundaries must matter")
}
