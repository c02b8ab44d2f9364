// Package memcache provides the process-local record cache (L1).
// Entries live for the life of the process. An entry's WrittenAt is the time
// it entered L1 and drives freshness. Physical eviction only happens when the
// configured capacity is exceeded.
package memcache

import (
	"strings"
	"sync"
	"time"

	"github.com/aristath/findata/internal/domain"
	"github.com/aristath/findata/internal/freshness"
	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog"
)

// Config holds L1 sizing.
type Config struct {
	Capacity uint64 // 0 means unbounded
}

// Stats is a snapshot of L1 counters.
type Stats struct {
	Entries    int    `json:"entries"`
	Insertions uint64 `json:"insertions"`
	Hits       uint64 `json:"hits"`
	Misses     uint64 `json:"misses"`
	Evictions  uint64 `json:"evictions"`
	Rejected   uint64 `json:"rejected_writes"`
}

// entry pairs the L1 copy with the WrittenAt it carried on arrival, which
// orders competing writes.
type entry struct {
	rec    domain.Record
	source time.Time
}

// Cache implements domain.MemoryCache.
type Cache struct {
	items  *ttlcache.Cache[string, entry]
	policy *freshness.Policy
	now    func() time.Time
	log    zerolog.Logger

	// mu serializes the compare-and-set in Put so that writes per key are
	// applied in source WrittenAt order.
	mu       sync.Mutex
	rejected uint64
}

// New creates an empty L1 cache.
func New(policy *freshness.Policy, cfg Config, log zerolog.Logger) *Cache {
	opts := []ttlcache.Option[string, entry]{
		ttlcache.WithTTL[string, entry](ttlcache.NoTTL),
		ttlcache.WithDisableTouchOnHit[string, entry](),
	}
	if cfg.Capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, entry](cfg.Capacity))
	}

	return &Cache{
		items:  ttlcache.New[string, entry](opts...),
		policy: policy,
		now:    time.Now,
		log:    log.With().Str("component", "memcache").Logger(),
	}
}

// Get returns a copy of the stored record, or false when absent.
func (c *Cache) Get(category domain.Category, key domain.NaturalKey) (*domain.Record, bool) {
	item := c.items.Get(domain.CacheKey(category, key))
	if item == nil {
		return nil, false
	}
	rec := item.Value().rec
	rec.Key = append(domain.NaturalKey(nil), rec.Key...)
	rec.Payload = append([]byte(nil), rec.Payload...)
	return &rec, true
}

// Put stores rec and stamps its WrittenAt with the current time. The incoming
// WrittenAt (the current time when unset) is kept for ordering: a record older
// than the one already held is discarded.
func (c *Cache) Put(category domain.Category, key domain.NaturalKey, rec domain.Record) bool {
	now := c.now()
	source := rec.WrittenAt
	if source.IsZero() {
		source = now
	}
	rec.WrittenAt = now
	rec.Category = category
	rec.Key = append(domain.NaturalKey(nil), key...)
	rec.Payload = append([]byte(nil), rec.Payload...)

	cacheKey := domain.CacheKey(category, key)

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing := c.items.Get(cacheKey); existing != nil {
		current := existing.Value()
		if current.source.After(source) {
			c.rejected++
			c.log.Debug().
				Str("category", category.String()).
				Str("key", key.String()).
				Time("stored_written_at", current.source).
				Time("incoming_written_at", source).
				Msg("Discarded out-of-order write")
			return false
		}
	}

	c.items.Set(cacheKey, entry{rec: rec, source: source}, ttlcache.NoTTL)
	return true
}

// IsFresh reports whether the entry exists and is within its L1 TTL.
func (c *Cache) IsFresh(category domain.Category, key domain.NaturalKey) bool {
	item := c.items.Get(domain.CacheKey(category, key))
	if item == nil {
		return false
	}
	return c.policy.L1Fresh(category, item.Value().rec.WrittenAt, c.now())
}

// Delete drops a single entry.
func (c *Cache) Delete(category domain.Category, key domain.NaturalKey) {
	c.items.Delete(domain.CacheKey(category, key))
}

// DeleteCategory drops every entry of a category and returns how many were removed.
func (c *Cache) DeleteCategory(category domain.Category) int {
	prefix := category.String() + ":"
	removed := 0
	for _, k := range c.items.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.items.Delete(k)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	return c.items.Len()
}

// Stats returns a snapshot of cache counters.
func (c *Cache) Stats() Stats {
	m := c.items.Metrics()

	c.mu.Lock()
	rejected := c.rejected
	c.mu.Unlock()

	return Stats{
		Entries:    c.items.Len(),
		Insertions: m.Insertions,
		Hits:       m.Hits,
		Misses:     m.Misses,
		Evictions:  m.Evictions,
		Rejected:   rejected,
	}
}
