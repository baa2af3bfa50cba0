// internal/offline/cache.go
//
// Named response caches, the server-side counterpart of the browser's
// CacheStorage. Entries are keyed by request path (plus query). Each cache is
// an LRU; once full, the least recently used entry is evicted.

package offline

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds a cache opened without an explicit size.
const DefaultCacheSize = 256

// Entry is a stored response.
type Entry struct {
	Status int
	Header http.Header
	Body   []byte
	Stored time.Time
}

// Cache is one named cache.
type Cache struct {
	name    string
	entries *lru.Cache[string, *Entry]
}

// Name returns the cache name.
func (c *Cache) Name() string { return c.name }

// Get returns the entry for key.
func (c *Cache) Get(key string) (*Entry, bool) {
	return c.entries.Get(key)
}

// Put stores e under key, replacing any previous entry.
func (c *Cache) Put(key string, e *Entry) {
	c.entries.Add(key, e)
}

// Len returns the number of stored entries.
func (c *Cache) Len() int { return c.entries.Len() }

// Keys lists stored keys in order.
func (c *Cache) Keys() []string {
	out := c.entries.Keys()
	sort.Strings(out)
	return out
}

// Storage holds every named cache.
type Storage struct {
	mu     sync.Mutex
	caches map[string]*Cache
}

// NewStorage returns empty storage.
func NewStorage() *Storage {
	return &Storage{caches: make(map[string]*Cache)}
}

// Open returns the named cache, creating it with DefaultCacheSize if needed.
func (s *Storage) Open(name string) *Cache { return s.OpenSized(name, DefaultCacheSize) }

// OpenSized returns the named cache, creating it with room for size entries
// if needed. An existing cache keeps its size.
func (s *Storage) OpenSized(name string, size int) *Cache {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.caches[name]
	if !ok {
		l, _ := lru.New[string, *Entry](max(size, 1))
		c = &Cache{name: name, entries: l}
		s.caches[name] = c
	}
	return c
}

// Lookup returns the named cache without creating it.
func (s *Storage) Lookup(name string) (*Cache, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.caches[name]
	return c, ok
}

// Delete drops the named cache. Reports whether it existed.
func (s *Storage) Delete(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.caches[name]
	delete(s.caches, name)
	return ok
}

// Names lists cache names, optionally restricted to a prefix.
func (s *Storage) Names(prefix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.caches))
	for n := range s.caches {
		if strings.HasPrefix(n, prefix) {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}
