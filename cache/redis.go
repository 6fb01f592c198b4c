package cache

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mnemos-ai/recall/layer"
)

// DefaultNamespace prefixes all Redis keys when none is configured.
const DefaultNamespace = "recall"

// RedisOptions configures the Redis-backed query cache.
type RedisOptions struct {
	// URL is the Redis connection string (e.g. "redis://localhost:6379").
	URL string

	// TLS configuration for secure connections.
	TLS *tls.Config

	// Namespace prefixes all keys; defaults to DefaultNamespace.
	// Keys follow the schema <namespace>:query:<hash> for payloads and
	// <namespace>:hits:<hash> for hit counters.
	Namespace string

	// TTL is the default entry lifetime; defaults to DefaultTTL.
	TTL time.Duration

	// ConnectTimeout is the maximum time to wait for connection
	// establishment. Defaults to 5s.
	ConnectTimeout time.Duration

	// ReadTimeout is the maximum time to wait for read operations.
	// Defaults to 3s: a cache read slower than that is worse than a miss.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait for write operations.
	// Defaults to 3s.
	WriteTimeout time.Duration

	// Logger records failed-open cache operations. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// Redis is a QueryCache backed by Redis, letting multiple service
// instances share one query cache. Expiry uses Redis TTLs natively;
// capacity is delegated to the server's maxmemory eviction policy, so
// CleanupExpired and client-side eviction are no-ops.
//
// Every operation fails open: network errors surface as misses or dropped
// writes, logged at debug level, never as errors to the recall flow.
type Redis struct {
	client     *redis.Client
	namespace  string
	defaultTTL time.Duration
	logger     *slog.Logger

	mu    sync.Mutex
	stats QueryCacheStats
}

var _ QueryCache = (*Redis)(nil)

// NewRedis creates a Redis-backed query cache and verifies connectivity.
func NewRedis(opts RedisOptions) (*Redis, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.Namespace == "" {
		opts.Namespace = DefaultNamespace
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 3 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 3 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("cache: failed to parse Redis URL: %w", err)
	}
	redisOpts.TLSConfig = opts.TLS
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout
	redisOpts.WriteTimeout = opts.WriteTimeout

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache: failed to connect to Redis: %w", err)
	}

	return &Redis{
		client:     client,
		namespace:  opts.Namespace,
		defaultTTL: opts.TTL,
		logger:     opts.Logger,
	}, nil
}

// Get implements QueryCache. Redis expiry guarantees an entry is never
// returned past its TTL.
func (r *Redis) Get(ctx context.Context, query string, qctx layer.QueryContext, limit int) (layer.ResultSet, bool) {
	hash := Key(query, qctx, limit)

	data, err := r.client.Get(ctx, r.payloadKey(hash)).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.logger.Debug("redis cache read failed, treating as miss", "error", err)
		}
		r.countMiss()
		return nil, false
	}

	var results layer.ResultSet
	if err := json.Unmarshal(data, &results); err != nil {
		// A corrupt payload is useless; drop it so the next Put heals
		// the entry.
		r.logger.Debug("redis cache payload corrupt, dropping entry", "error", err)
		r.client.Del(ctx, r.payloadKey(hash), r.hitsKey(hash))
		r.countMiss()
		return nil, false
	}

	if err := r.client.Incr(ctx, r.hitsKey(hash)).Err(); err != nil {
		r.logger.Debug("redis hit counter update failed", "error", err)
	}
	r.countHit()
	return results, true
}

// Put implements QueryCache.
func (r *Redis) Put(ctx context.Context, query string, qctx layer.QueryContext, limit int, results layer.ResultSet) {
	r.PutTTL(ctx, query, qctx, limit, results, r.defaultTTL)
}

// PutTTL implements QueryCache.
func (r *Redis) PutTTL(ctx context.Context, query string, qctx layer.QueryContext, limit int, results layer.ResultSet, ttl time.Duration) {
	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	hash := Key(query, qctx, limit)

	data, err := json.Marshal(results)
	if err != nil {
		r.logger.Debug("redis cache marshal failed, dropping write", "error", err)
		return
	}

	if err := r.client.Set(ctx, r.payloadKey(hash), data, ttl).Err(); err != nil {
		r.logger.Debug("redis cache write failed, dropping write", "error", err)
		return
	}
	// Hit counter shares the payload's lifetime.
	if err := r.client.Set(ctx, r.hitsKey(hash), 0, ttl).Err(); err != nil {
		r.logger.Debug("redis hit counter reset failed", "error", err)
	}
}

// Invalidate implements QueryCache.
func (r *Redis) Invalidate(ctx context.Context, query string, qctx layer.QueryContext, limit int) {
	hash := Key(query, qctx, limit)
	if err := r.client.Del(ctx, r.payloadKey(hash), r.hitsKey(hash)).Err(); err != nil {
		r.logger.Debug("redis cache invalidate failed", "error", err)
	}
}

// Clear implements QueryCache. It removes only this cache's namespaced
// keys, never the whole database.
func (r *Redis) Clear(ctx context.Context) {
	for _, pattern := range []string{r.namespace + ":query:*", r.namespace + ":hits:*"} {
		iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
				r.logger.Debug("redis cache clear failed for key", "key", iter.Val(), "error", err)
			}
		}
		if err := iter.Err(); err != nil {
			r.logger.Debug("redis cache clear scan failed", "error", err)
		}
	}
}

// CleanupExpired implements QueryCache. Redis expires entries natively, so
// there is nothing to do.
func (r *Redis) CleanupExpired(context.Context) int {
	return 0
}

// Stats implements QueryCache. Size is counted with a namespaced SCAN;
// hit and miss counters are local to this client, so in a multi-instance
// deployment each instance reports its own effectiveness.
func (r *Redis) Stats() QueryCacheStats {
	r.mu.Lock()
	snapshot := r.stats
	r.mu.Unlock()

	snapshot.Size = -1
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var size int
	iter := r.client.Scan(ctx, 0, r.namespace+":query:*", 100).Iterator()
	for iter.Next(ctx) {
		size++
	}
	if iter.Err() == nil {
		snapshot.Size = size
	}
	return snapshot
}

// Close implements QueryCache.
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) payloadKey(hash string) string {
	return r.namespace + ":query:" + hash
}

func (r *Redis) hitsKey(hash string) string {
	return r.namespace + ":hits:" + hash
}

func (r *Redis) countHit() {
	r.mu.Lock()
	r.stats.Hits++
	r.mu.Unlock()
}

func (r *Redis) countMiss() {
	r.mu.Lock()
	r.stats.Misses++
	r.mu.Unlock()
}
