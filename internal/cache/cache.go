// Package cache holds recently computed match results. Entries are
// keyed by query, options, and dataset version, expire after a TTL, and
// are evicted least-recently-used when the cache is full. A dataset
// version bump strands old entries: their keys are never produced
// again, so they drain through TTL and LRU, and the periodic sweep
// calls Purge to drop them sooner.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/chainreactions/screener/internal/model"
)

// Key derives the cache key for one lookup. Options participate through
// their canonical form so behavioral knobs that don't change the stored
// result stay out of the key.
func Key(normalizedQuery, optionsCanonical string, datasetVersion int64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", normalizedQuery, optionsCanonical, datasetVersion)))
	return hex.EncodeToString(sum[:])
}

type entry struct {
	key       string
	version   int64
	result    *model.MatchResult
	expiresAt time.Time
}

// Cache is a bounded TTL+LRU result cache. Safe for concurrent use.
// The zero value is not usable; construct with New or Disabled.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	ll       *list.List // front is most recently used
	items    map[string]*list.Element

	hits        int64
	misses      int64
	evictions   int64
	expirations int64

	now func() time.Time
}

// New creates a cache bounded to capacity entries with the given TTL.
// capacity <= 0 disables caching entirely.
func New(capacity int, ttl time.Duration) *Cache {
	return &Cache{
		capacity: capacity,
		ttl:      ttl,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
		now:      time.Now,
	}
}

// Disabled returns a cache that stores nothing and always misses.
func Disabled() *Cache {
	return New(0, 0)
}

// Enabled reports whether the cache stores anything at all.
func (c *Cache) Enabled() bool {
	return c.capacity > 0
}

// Get returns the cached result for key, or nil on a miss. Expired and
// version-stale entries are removed lazily on access. Callers must not
// mutate the returned result; copy before changing it.
func (c *Cache) Get(key string, datasetVersion int64) *model.MatchResult {
	if !c.Enabled() {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		return nil
	}
	e := el.Value.(*entry)
	if e.version != datasetVersion {
		c.removeLocked(el)
		c.misses++
		return nil
	}
	if c.now().After(e.expiresAt) {
		c.removeLocked(el)
		c.expirations++
		c.misses++
		return nil
	}
	c.ll.MoveToFront(el)
	c.hits++
	return e.result
}

// Set stores a result under key, evicting the least recently used entry
// when full. A key already present is overwritten and refreshed.
func (c *Cache) Set(key string, datasetVersion int64, result *model.MatchResult) {
	if !c.Enabled() || result == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.now().Add(c.ttl)
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		e.version = datasetVersion
		e.result = result
		e.expiresAt = expires
		c.ll.MoveToFront(el)
		return
	}

	for c.ll.Len() >= c.capacity {
		oldest := c.ll.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest)
		c.evictions++
	}

	el := c.ll.PushFront(&entry{key: key, version: datasetVersion, result: result, expiresAt: expires})
	c.items[key] = el
}

// Delete removes one key if present.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.removeLocked(el)
	}
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	c.items = make(map[string]*list.Element)
}

// Purge removes entries whose dataset version differs from current and
// returns how many were dropped. Called after a dataset reload so stale
// results don't linger until their TTL.
func (c *Cache) Purge(currentVersion int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := 0
	for el := c.ll.Front(); el != nil; {
		next := el.Next()
		if el.Value.(*entry).version != currentVersion {
			c.removeLocked(el)
			dropped++
		}
		el = next
	}
	return dropped
}

// Sweep removes expired entries and returns how many were dropped.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	dropped := 0
	for el := c.ll.Front(); el != nil; {
		next := el.Next()
		if now.After(el.Value.(*entry).expiresAt) {
			c.removeLocked(el)
			c.expirations++
			dropped++
		}
		el = next
	}
	return dropped
}

// Len returns the number of stored entries, including not-yet-swept
// expired ones.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	Size        int     `json:"size"`
	Capacity    int     `json:"capacity"`
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	Evictions   int64   `json:"evictions"`
	Expirations int64   `json:"expirations"`
	HitRate     float64 `json:"hit_rate"`
}

// Stats returns current counters. HitRate is 0 before any lookup.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Size:        c.ll.Len(),
		Capacity:    c.capacity,
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Expirations: c.expirations,
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

func (c *Cache) removeLocked(el *list.Element) {
	c.ll.Remove(el)
	delete(c.items, el.Value.(*entry).key)
}
