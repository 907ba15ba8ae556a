// Package cache provides the persistent, TTL-bounded citation cache.
//
// The cache is loaded fully into memory when constructed and writes through
// to its Store on every mutation. Stale entries are treated as absent and
// removed lazily on the next lookup. Persisted data that cannot be read
// yields an empty cache and a warning, never an error.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/citation-enrichment-service/internal/domain"
)

// DefaultTTL is how long an entry stays valid.
const DefaultTTL = 7 * 24 * time.Hour

// Config configures a Cache.
type Config struct {
	// TTL is the entry lifetime. Defaults to DefaultTTL if zero.
	TTL time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Stats describes the cache contents at a point in time.
type Stats struct {
	Total   int `json:"total_entries"`
	Valid   int `json:"valid_entries"`
	Expired int `json:"expired_entries"`
}

// Cache is a concurrency-safe citation cache keyed by normalized paper id.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	store   Store
	ttl     time.Duration
	now     func() time.Time
	logger  zerolog.Logger
}

// New loads store and returns a ready cache.
func New(ctx context.Context, store Store, cfg Config, logger zerolog.Logger) *Cache {
	if store == nil {
		store = MemoryStore{}
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	c := &Cache{
		store:  store,
		ttl:    cfg.TTL,
		now:    cfg.Now,
		logger: logger.With().Str("component", "citation_cache").Logger(),
	}

	entries, err := store.Load(ctx)
	if err != nil {
		evt := c.logger.Warn().Err(err)
		if errors.Is(err, domain.ErrCacheCorrupt) {
			evt = evt.Bool("corrupt", true)
		}
		evt.Int("recovered", len(entries)).Msg("cache data unreadable; continuing with recovered entries")
	}
	if entries == nil {
		entries = make(map[string]Entry)
	}
	c.entries = entries

	c.logger.Debug().
		Int("entries", len(entries)).
		Dur("ttl", c.ttl).
		Msg("citation cache loaded")

	return c
}

// TTL returns the configured entry lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns the record cached for id. An expired entry is reported absent
// and evicted, with the eviction persisted.
func (c *Cache) Get(ctx context.Context, id string) (domain.CitationRecord, bool) {
	c.mu.RLock()
	entry, ok := c.entries[id]
	c.mu.RUnlock()
	if !ok {
		return domain.CitationRecord{}, false
	}
	if !entry.Expired(c.now(), c.ttl) {
		return entry.Data, true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Re-check under the write lock; a concurrent Set may have refreshed it.
	entry, ok = c.entries[id]
	if ok && !entry.Expired(c.now(), c.ttl) {
		return entry.Data, true
	}
	if ok {
		delete(c.entries, id)
		if err := c.store.Delete(ctx, id); err != nil {
			c.logger.Warn().Err(err).Str("paper_id", id).Msg("failed to persist cache eviction")
		}
	}
	return domain.CitationRecord{}, false
}

// Set stores rec for id stamped with the current time and writes it through
// to the store. The in-memory entry is kept even if persistence fails.
func (c *Cache) Set(ctx context.Context, id string, rec domain.CitationRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := NewEntry(rec, c.now())
	c.entries[id] = entry
	return c.store.Put(ctx, id, entry)
}

// Stats counts total, valid and expired entries.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	stats := Stats{Total: len(c.entries)}
	for _, e := range c.entries {
		if e.Expired(now, c.ttl) {
			stats.Expired++
		} else {
			stats.Valid++
		}
	}
	return stats
}

// ClearExpired removes every expired entry and returns how many were removed.
func (c *Cache) ClearExpired(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var expired []string
	for id, e := range c.entries {
		if e.Expired(now, c.ttl) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(c.entries, id)
	}
	if len(expired) == 0 {
		return 0, nil
	}

	if err := c.store.Delete(ctx, expired...); err != nil {
		return len(expired), err
	}
	c.logger.Info().Int("removed", len(expired)).Msg("cleared expired cache entries")
	return len(expired), nil
}

// Len returns the number of entries, valid or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close closes the underlying store.
func (c *Cache) Close() error {
	return c.store.Close()
}
