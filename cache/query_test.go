package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemos-ai/recall/layer"
)

func testResults() layer.ResultSet {
	return layer.ResultSet{
		layer.Semantic: {{ID: "s1", Content: "fact", Score: 0.9}},
		layer.Episodic: {},
	}
}

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(MemoryOptions{})
	qctx := layer.QueryContext{SessionID: "sess-1"}

	_, ok := m.Get(ctx, "query", qctx, 10)
	assert.False(t, ok, "empty cache misses")

	m.Put(ctx, "query", qctx, 10, testResults())

	got, ok := m.Get(ctx, "query", qctx, 10)
	require.True(t, ok)
	assert.Equal(t, testResults(), got)

	stats := m.Stats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, 1, stats.Hits)
	assert.Equal(t, 1, stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate(), 1e-9)
}

func TestMemoryDefensiveCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(MemoryOptions{})

	stored := testResults()
	m.Put(ctx, "query", layer.QueryContext{}, 10, stored)
	stored[layer.Semantic][0].Content = "mutated after put"

	got, ok := m.Get(ctx, "query", layer.QueryContext{}, 10)
	require.True(t, ok)
	assert.Equal(t, "fact", got[layer.Semantic][0].Content)

	got[layer.Semantic][0].Content = "mutated after get"
	again, ok := m.Get(ctx, "query", layer.QueryContext{}, 10)
	require.True(t, ok)
	assert.Equal(t, "fact", again[layer.Semantic][0].Content)
}

func TestMemoryTTLExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(MemoryOptions{})

	m.PutTTL(ctx, "query", layer.QueryContext{}, 10, testResults(), 30*time.Millisecond)

	_, ok := m.Get(ctx, "query", layer.QueryContext{}, 10)
	require.True(t, ok, "fresh entry hits")

	time.Sleep(50 * time.Millisecond)

	_, ok = m.Get(ctx, "query", layer.QueryContext{}, 10)
	assert.False(t, ok, "expired entry misses")

	stats := m.Stats()
	assert.Equal(t, 0, stats.Size)
	assert.Equal(t, 1, stats.Expirations)
}

func TestMemoryEviction(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(MemoryOptions{Capacity: 3})

	for i := 0; i < 3; i++ {
		m.Put(ctx, fmt.Sprintf("query-%d", i), layer.QueryContext{}, 10, testResults())
	}

	// query-1 and query-2 pick up hits; query-0 stays cold.
	for _, q := range []string{"query-1", "query-2"} {
		_, ok := m.Get(ctx, q, layer.QueryContext{}, 10)
		require.True(t, ok)
	}

	m.Put(ctx, "query-3", layer.QueryContext{}, 10, testResults())

	_, ok := m.Get(ctx, "query-0", layer.QueryContext{}, 10)
	assert.False(t, ok, "cold entry is evicted first")
	for _, q := range []string{"query-1", "query-2", "query-3"} {
		_, ok := m.Get(ctx, q, layer.QueryContext{}, 10)
		assert.True(t, ok, q)
	}

	assert.Equal(t, 1, m.Stats().Evictions)
}

func TestMemoryEvictionTieBreaksOldest(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(MemoryOptions{Capacity: 2})

	m.Put(ctx, "older", layer.QueryContext{}, 10, testResults())
	time.Sleep(5 * time.Millisecond)
	m.Put(ctx, "newer", layer.QueryContext{}, 10, testResults())

	// Both entries have zero hits; the older creation time loses.
	m.Put(ctx, "incoming", layer.QueryContext{}, 10, testResults())

	_, ok := m.Get(ctx, "older", layer.QueryContext{}, 10)
	assert.False(t, ok)
	_, ok = m.Get(ctx, "newer", layer.QueryContext{}, 10)
	assert.True(t, ok)
}

func TestMemoryOverwriteDoesNotEvict(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(MemoryOptions{Capacity: 2})

	m.Put(ctx, "a", layer.QueryContext{}, 10, testResults())
	m.Put(ctx, "b", layer.QueryContext{}, 10, testResults())
	m.Put(ctx, "a", layer.QueryContext{}, 10, testResults())

	stats := m.Stats()
	assert.Equal(t, 2, stats.Size)
	assert.Equal(t, 0, stats.Evictions)
}

func TestMemoryInvalidate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(MemoryOptions{})

	m.Put(ctx, "query", layer.QueryContext{}, 10, testResults())
	m.Invalidate(ctx, "query", layer.QueryContext{}, 10)

	_, ok := m.Get(ctx, "query", layer.QueryContext{}, 10)
	assert.False(t, ok)

	// Invalidating a missing entry is a no-op.
	m.Invalidate(ctx, "absent", layer.QueryContext{}, 10)
}

func TestMemoryClear(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(MemoryOptions{})

	m.Clear(ctx) // empty clear is a no-op

	m.Put(ctx, "a", layer.QueryContext{}, 10, testResults())
	m.Put(ctx, "b", layer.QueryContext{}, 10, testResults())
	m.Clear(ctx)

	assert.Equal(t, 0, m.Stats().Size)
	_, ok := m.Get(ctx, "a", layer.QueryContext{}, 10)
	assert.False(t, ok)
}

func TestMemoryCleanupExpired(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(MemoryOptions{})

	m.PutTTL(ctx, "short", layer.QueryContext{}, 10, testResults(), 10*time.Millisecond)
	m.PutTTL(ctx, "long", layer.QueryContext{}, 10, testResults(), time.Hour)

	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, 1, m.CleanupExpired(ctx))
	assert.Equal(t, 0, m.CleanupExpired(ctx), "second pass finds nothing")
	assert.Equal(t, 1, m.Stats().Size)
}

func TestMemoryClose(t *testing.T) {
	m := NewMemory(MemoryOptions{})
	assert.NoError(t, m.Close())
}

func TestHitRateEmpty(t *testing.T) {
	assert.Equal(t, 0.0, QueryCacheStats{}.HitRate())
}
