package cache

import (
	"context"
	"sync"
	"time"

	"github.com/mnemos-ai/recall/layer"
)

// Defaults for the query cache.
const (
	DefaultCapacity = 1000
	DefaultTTL      = 300 * time.Second
)

// QueryCache stores assembled recall results keyed by query and context.
// Implementations must be safe for concurrent use and must fail open:
// a Get that cannot be answered reports a miss, a Put that cannot be
// stored is dropped silently.
type QueryCache interface {
	// Get returns the cached results for the query, or false on a miss.
	// Entries past their TTL are treated as absent.
	Get(ctx context.Context, query string, qctx layer.QueryContext, limit int) (layer.ResultSet, bool)

	// Put stores results under the query's key with the default TTL.
	Put(ctx context.Context, query string, qctx layer.QueryContext, limit int, results layer.ResultSet)

	// PutTTL is Put with an explicit TTL.
	PutTTL(ctx context.Context, query string, qctx layer.QueryContext, limit int, results layer.ResultSet, ttl time.Duration)

	// Invalidate removes the entry for one query if present.
	Invalidate(ctx context.Context, query string, qctx layer.QueryContext, limit int)

	// Clear removes every entry. Clearing an empty cache is a no-op.
	Clear(ctx context.Context)

	// CleanupExpired removes expired entries eagerly and reports how many
	// were removed. Implementations with native expiry may return 0.
	CleanupExpired(ctx context.Context) int

	// Stats returns a snapshot of the cache's counters.
	Stats() QueryCacheStats

	// Close releases any resources held by the cache.
	Close() error
}

// QueryCacheStats is a snapshot of cache effectiveness counters.
type QueryCacheStats struct {
	// Size is the current entry count, or -1 when unknown.
	Size int `json:"size"`

	// Hits and Misses count Get outcomes.
	Hits   int `json:"hits"`
	Misses int `json:"misses"`

	// Evictions counts entries removed to make room at capacity.
	Evictions int `json:"evictions"`

	// Expirations counts entries removed because their TTL lapsed.
	Expirations int `json:"expirations"`
}

// HitRate returns hits / (hits + misses), or 0 before any Get.
func (s QueryCacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// entry is one cached result set.
type entry struct {
	results   layer.ResultSet
	createdAt time.Time
	ttl       time.Duration
	hits      int
}

func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.createdAt) > e.ttl
}

// MemoryOptions configures the in-memory query cache.
type MemoryOptions struct {
	// Capacity bounds the number of entries; defaults to DefaultCapacity.
	Capacity int

	// TTL is the default entry lifetime; defaults to DefaultTTL.
	TTL time.Duration
}

// Memory is the in-process QueryCache. Eviction approximates LRU by hit
// count: when full, the entry with the fewest hits goes first, oldest
// creation time breaking ties.
//
// All mutation happens inside one mutex over short critical sections;
// payloads are deep-copied on both write and read so callers can never
// alias cache-owned memory.
type Memory struct {
	capacity   int
	defaultTTL time.Duration

	mu      sync.Mutex
	entries map[string]*entry
	stats   QueryCacheStats
}

var _ QueryCache = (*Memory)(nil)

// NewMemory creates an in-memory query cache, applying defaults for zero
// options.
func NewMemory(opts MemoryOptions) *Memory {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	return &Memory{
		capacity:   opts.Capacity,
		defaultTTL: opts.TTL,
		entries:    make(map[string]*entry),
	}
}

// Get implements QueryCache. Expiry is checked before every read, so an
// entry is never returned past its TTL.
func (m *Memory) Get(_ context.Context, query string, qctx layer.QueryContext, limit int) (layer.ResultSet, bool) {
	key := Key(query, qctx, limit)
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		m.stats.Misses++
		return nil, false
	}
	if e.expired(now) {
		delete(m.entries, key)
		m.stats.Expirations++
		m.stats.Misses++
		return nil, false
	}

	e.hits++
	m.stats.Hits++
	return e.results.Clone(), true
}

// Put implements QueryCache.
func (m *Memory) Put(ctx context.Context, query string, qctx layer.QueryContext, limit int, results layer.ResultSet) {
	m.PutTTL(ctx, query, qctx, limit, results, m.defaultTTL)
}

// PutTTL implements QueryCache. When the cache is at capacity the
// least-used entry (fewest hits, oldest on ties) is evicted first.
func (m *Memory) PutTTL(_ context.Context, query string, qctx layer.QueryContext, limit int, results layer.ResultSet, ttl time.Duration) {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	key := Key(query, qctx, limit)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.capacity {
		m.evictLocked()
	}

	m.entries[key] = &entry{
		results:   results.Clone(),
		createdAt: time.Now(),
		ttl:       ttl,
	}
}

// evictLocked removes the least-used entry. Callers hold m.mu.
func (m *Memory) evictLocked() {
	var victim string
	var victimEntry *entry
	for key, e := range m.entries {
		if victimEntry == nil ||
			e.hits < victimEntry.hits ||
			(e.hits == victimEntry.hits && e.createdAt.Before(victimEntry.createdAt)) {
			victim, victimEntry = key, e
		}
	}
	if victimEntry != nil {
		delete(m.entries, victim)
		m.stats.Evictions++
	}
}

// Invalidate implements QueryCache.
func (m *Memory) Invalidate(_ context.Context, query string, qctx layer.QueryContext, limit int) {
	key := Key(query, qctx, limit)

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

// Clear implements QueryCache.
func (m *Memory) Clear(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*entry)
}

// CleanupExpired implements QueryCache.
func (m *Memory) CleanupExpired(context.Context) int {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int
	for key, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, key)
			m.stats.Expirations++
			removed++
		}
	}
	return removed
}

// Stats implements QueryCache.
func (m *Memory) Stats() QueryCacheStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.stats
	snapshot.Size = len(m.entries)
	return snapshot
}

// Close implements QueryCache; the in-memory cache holds no resources.
func (m *Memory) Close() error {
	return nil
}
