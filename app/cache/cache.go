package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// ErrMiss is returned when a key is absent or its entry has aged past the TTL.
var ErrMiss = errors.New("cache: miss")

// Store is a key→JSON-blob cache shared by all provider adapters. Each
// namespace is one JSON document on disk (map of key → entry); every write
// replaces the whole document atomically via temp-file-then-rename, so a
// concurrent reader never observes a partial file. A go-cache hot layer in
// front of the disk lets repeat queries within one process skip I/O.
type Store struct {
	dir string
	ttl time.Duration
	hot *gocache.Cache
	now func() time.Time

	mu         sync.Mutex
	namespaces map[string]*Namespace
}

// New creates a store rooted at dir. Entries are fresh while their age is
// strictly below ttl; an entry exactly at the boundary is expired.
func New(dir string, ttl time.Duration) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir %s: %w", dir, err)
	}
	return &Store{
		dir:        dir,
		ttl:        ttl,
		hot:        gocache.New(ttl, 2*ttl),
		now:        time.Now,
		namespaces: make(map[string]*Namespace),
	}, nil
}

// Namespace returns the (singleton) namespace with the given name,
// typically one per provider.
func (s *Store) Namespace(name string) *Namespace {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.namespaces[name]; ok {
		return n
	}
	n := &Namespace{
		store: s,
		name:  name,
		path:  filepath.Join(s.dir, name+".json"),
	}
	s.namespaces[name] = n
	return n
}

// Namespace is one cache file. All methods are safe for concurrent use.
type Namespace struct {
	store *Store
	name  string
	path  string
	mu    sync.Mutex
}

type entry struct {
	Payload     json.RawMessage `json:"payload"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// Get returns the payload for key if present and fresh, ErrMiss otherwise.
// Hot-layer hits carry their GeneratedAt and are re-checked against the TTL,
// so both layers expire at the same age >= ttl boundary.
func (n *Namespace) Get(key string) (json.RawMessage, error) {
	if v, ok := n.store.hot.Get(n.name + ":" + key); ok {
		e := v.(entry)
		if n.store.now().Sub(e.GeneratedAt) < n.store.ttl {
			return e.Payload, nil
		}
		n.store.hot.Delete(n.name + ":" + key)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	entries, err := n.load()
	if err != nil {
		return nil, err
	}
	e, ok := entries[key]
	if !ok {
		return nil, ErrMiss
	}
	if n.store.now().Sub(e.GeneratedAt) >= n.store.ttl {
		return nil, ErrMiss
	}
	n.store.hot.Set(n.name+":"+key, e, gocache.DefaultExpiration)
	return e.Payload, nil
}

// GetStale returns the payload for key regardless of age. Used as a
// last-resort fallback when a live refresh fails.
func (n *Namespace) GetStale(key string) (json.RawMessage, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	entries, err := n.load()
	if err != nil {
		return nil, false
	}
	e, ok := entries[key]
	if !ok {
		return nil, false
	}
	return e.Payload, true
}

// Set stores payload under key, replacing the namespace file atomically.
func (n *Namespace) Set(key string, payload json.RawMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	entries, err := n.load()
	if err != nil {
		entries = make(map[string]entry)
	}
	e := entry{Payload: payload, GeneratedAt: n.store.now()}
	entries[key] = e

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal cache namespace %s: %w", n.name, err)
	}

	tmp, err := os.CreateTemp(n.store.dir, n.name+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write temp cache file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp cache file: %w", err)
	}
	if err = os.Rename(tmp.Name(), n.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace cache file %s: %w", n.path, err)
	}

	n.store.hot.Set(n.name+":"+key, e, gocache.DefaultExpiration)
	return nil
}

func (n *Namespace) load() (map[string]entry, error) {
	data, err := os.ReadFile(n.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]entry{}, nil
		}
		return nil, err
	}
	entries := make(map[string]entry)
	if err := json.Unmarshal(data, &entries); err != nil {
		// A corrupt file is treated as empty; the next Set rewrites it.
		return map[string]entry{}, nil
	}
	return entries, nil
}

// Key derives a stable cache key from normalized query parameters.
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(strings.ToLower(strings.TrimSpace(p))))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
