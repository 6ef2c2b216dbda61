// Package cache maintains the mapping from failed locators to the
// replacement locators that healed them, scoped by page context so a
// healed locator from one page is never replayed on an unrelated one.
package cache

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/devicelab-dev/selfheal/pkg/locator"
)

// maxStrikes is the consecutive-failure count after which an entry is
// considered stale and lazily evicted on the next lookup.
const maxStrikes = 2

// ErrCorrupt reports that a persisted cache could not be decoded.
// Callers log it and continue with an empty cache; healing is a
// best-effort optimization layer.
var ErrCorrupt = errors.New("healing cache is corrupt")

// Key identifies a cache entry: the failed locator plus the page
// context it failed on, both as stable fingerprints.
type Key struct {
	Locator string `json:"locator"`
	Page    string `json:"page"`
}

// Entry is one healed-locator mapping with its staleness bookkeeping.
type Entry struct {
	Key             Key             `json:"key"`
	Original        locator.Locator `json:"original"`
	Healed          locator.Locator `json:"healed"`
	Confidence      float64         `json:"confidence"`
	LastValidatedAt time.Time       `json:"lastValidatedAt"`
	LastFailedAt    time.Time       `json:"lastFailedAt,omitempty"`
	HitCount        int             `json:"hitCount"`
	Strikes         int             `json:"strikes"`
}

// stale reports whether the entry has accumulated two consecutive
// failures without an intervening success.
func (e *Entry) stale() bool {
	return e.Strikes >= maxStrikes
}

// Store persists cache entries between runs. Implementations are
// invoked at load time and on Flush, never in the middle of a
// resolution.
type Store interface {
	Load() ([]Entry, error)
	Save(entries []Entry) error
}

// Cache is the in-memory healing cache. Safe for concurrent use by
// parallel test workers; a single mutex guards the whole map since
// entries are small and lookups are cheap.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]*Entry
	store   Store
	dirty   bool
}

// New creates a cache, loading persisted entries from the store when
// one is given. A corrupt store is reported through the returned
// error, but the cache itself is always usable: it starts empty and
// resolution continues.
func New(store Store) (*Cache, error) {
	c := &Cache{
		entries: make(map[Key]*Entry),
		store:   store,
	}
	if store == nil {
		return c, nil
	}

	entries, err := store.Load()
	if err != nil {
		return c, err
	}
	for i := range entries {
		e := entries[i]
		c.entries[e.Key] = &e
	}
	return c, nil
}

// Lookup returns the live healed locator for the key, or false. Stale
// entries (two strikes) are evicted here rather than eagerly, so the
// eviction cost lands on the caller that would have been misled.
func (c *Cache) Lookup(original locator.Locator, page string) (locator.Locator, bool) {
	key := Key{Locator: original.Fingerprint(), Page: page}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return locator.Locator{}, false
	}
	if e.stale() {
		delete(c.entries, key)
		c.dirty = true
		return locator.Locator{}, false
	}
	return e.Healed, true
}

// RecordSuccess upserts the mapping after a successful healing or a
// validated cache hit: strikes reset, hit count grows.
func (c *Cache) RecordSuccess(original locator.Locator, page string, healed locator.Locator, confidence float64) {
	key := Key{Locator: original.Fingerprint(), Page: page}
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		e = &Entry{Key: key, Original: original}
		c.entries[key] = e
	}
	e.Healed = healed
	e.Confidence = confidence
	e.LastValidatedAt = now
	e.HitCount++
	e.Strikes = 0
	c.dirty = true
}

// RecordFailure marks that the cached healed locator failed to
// resolve. The entry survives one failure; the second consecutive one
// makes it ineligible for Lookup.
func (c *Cache) RecordFailure(original locator.Locator, page string) {
	key := Key{Locator: original.Fingerprint(), Page: page}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return
	}
	e.LastFailedAt = time.Now()
	e.Strikes++
	c.dirty = true
}

// Size returns the number of live entries.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, e := range c.entries {
		if !e.stale() {
			n++
		}
	}
	return n
}

// Clear removes every entry. Administrative reset for test isolation
// between suites.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[Key]*Entry)
	c.dirty = true
}

// Entries returns a copy of the live entries, most recently validated
// first.
func (c *Cache) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		if !e.stale() {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastValidatedAt.After(out[j].LastValidatedAt)
	})
	return out
}

// Flush writes the current entries to the store, if any. Called at
// process shutdown, not per resolution.
func (c *Cache) Flush() error {
	c.mu.Lock()
	if c.store == nil || !c.dirty {
		c.mu.Unlock()
		return nil
	}
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, *e)
	}
	c.dirty = false
	c.mu.Unlock()

	// Store I/O happens outside the lock; lookups proceed while the
	// snapshot is written.
	return c.store.Save(out)
}
