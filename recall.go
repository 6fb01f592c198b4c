package recall

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mnemos-ai/recall/cache"
	"github.com/mnemos-ai/recall/config"
	"github.com/mnemos-ai/recall/executor"
	"github.com/mnemos-ai/recall/layer"
	"github.com/mnemos-ai/recall/quality"
	"github.com/mnemos-ai/recall/selector"
)

// Engine is the recall execution and caching engine. It owns one query
// cache, one session context cache, and one parallel layer executor, and
// exposes tier selection, tier-1 execution, and the composed Recall flow to
// the host orchestrator.
//
// Construct with New; there is no package-level singleton. The constructing
// service owns the Engine's lifecycle: built at startup, closed at
// shutdown.
//
// Thread-safety: all methods are safe for concurrent use.
type Engine struct {
	logger *slog.Logger
	tracer trace.Tracer

	registry *layer.Registry
	exec     *executor.Executor

	queryCache cache.QueryCache
	sessions   *cache.Session

	qualitySource    quality.Source
	qualityThreshold float64

	// owned holds backends this Engine constructed from its config file;
	// injected backends are closed by their owner instead.
	owned     []io.Closer
	closeOnce sync.Once
}

// New creates an Engine from the provided options.
//
// At least one layer provider is required: an engine with no backing
// stores is a configuration bug and fails here, at construction, rather
// than silently returning empty recalls at call time.
//
// Example:
//
//	engine, err := recall.New(
//	    recall.WithProvider(layer.Semantic, semanticStore),
//	    recall.WithProvider(layer.Episodic, episodicStore),
//	    recall.WithLogger(logger),
//	    recall.WithConfigFile("/etc/agent/recall.yaml"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Close()
func New(opts ...Option) (*Engine, error) {
	cfg := &engineConfig{providers: make(map[string]layer.Provider)}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	e := &Engine{
		logger: cfg.logger,
		tracer: cfg.tracer,
	}

	var fileCfg *config.Config
	if cfg.configPath != "" {
		loaded, err := config.Load(cfg.configPath)
		if err != nil {
			return nil, newConfigurationError("New", err)
		}
		fileCfg = loaded
	}
	applyFileConfig(cfg, fileCfg)

	if err := e.buildBackends(cfg, fileCfg); err != nil {
		return nil, err
	}

	registry := layer.NewRegistry()
	for name, p := range cfg.providers {
		if err := registry.Register(name, p); err != nil {
			e.closeOwned()
			return nil, newConfigurationError("New", err)
		}
	}
	if registry.Len() == 0 {
		e.closeOwned()
		return nil, newConfigurationError("New", ErrNoProviders)
	}
	e.registry = registry

	exec, err := executor.New(executor.Config{
		MaxConcurrent:   cfg.maxConcurrent,
		TaskTimeout:     cfg.taskTimeout,
		DisableParallel: cfg.disableParallel,
		Logger:          cfg.logger,
		Meter:           cfg.meter,
		Tracer:          cfg.tracer,
	})
	if err != nil {
		e.closeOwned()
		return nil, newConfigurationError("New", err)
	}
	e.exec = exec

	if cfg.queryCache == nil {
		cfg.queryCache = cache.NewMemory(cache.MemoryOptions{
			Capacity: cfg.cacheCapacity,
			TTL:      cfg.cacheTTL,
		})
	}
	e.queryCache = cfg.queryCache
	e.sessions = cache.NewSession(cfg.sessionTTL)
	e.qualitySource = cfg.qualitySource
	e.qualityThreshold = cfg.qualityThreshold

	e.logger.Info("recall engine ready",
		"layers", registry.Names(),
		"parallel", !cfg.disableParallel)
	return e, nil
}

// applyFileConfig fills option fields the caller left unset from the
// config file (or from defaults when there is no file). Explicit options
// always win.
func applyFileConfig(cfg *engineConfig, fileCfg *config.Config) {
	var file config.Config
	if fileCfg != nil {
		file = *fileCfg
	}
	if cfg.maxConcurrent <= 0 {
		cfg.maxConcurrent = file.Executor.GetMaxConcurrent()
	}
	if cfg.taskTimeout <= 0 {
		cfg.taskTimeout = file.Executor.GetTaskTimeout()
	}
	if file.Executor.DisableParallel {
		cfg.disableParallel = true
	}
	if cfg.cacheCapacity <= 0 {
		cfg.cacheCapacity = file.Cache.GetCapacity()
	}
	if cfg.cacheTTL <= 0 {
		cfg.cacheTTL = file.Cache.GetTTL()
	}
	if cfg.sessionTTL <= 0 {
		cfg.sessionTTL = file.Cache.GetSessionTTL()
	}
	if cfg.qualityThreshold <= 0 || cfg.qualityThreshold > 1 {
		cfg.qualityThreshold = file.Quality.GetThreshold()
	}
}

// buildBackends constructs the Redis cache and etcd quality source the
// config file asks for, unless the caller already injected replacements.
// Backends built here are owned by the Engine and closed in Close.
func (e *Engine) buildBackends(cfg *engineConfig, fileCfg *config.Config) error {
	if fileCfg == nil {
		return nil
	}

	if rc := fileCfg.Cache.Redis; rc != nil && cfg.queryCache == nil {
		redisCache, err := cache.NewRedis(cache.RedisOptions{
			URL:       rc.URL,
			Namespace: rc.Namespace,
			TTL:       cfg.cacheTTL,
			Logger:    cfg.logger,
		})
		if err != nil {
			return newConfigurationError("New", err)
		}
		cfg.queryCache = redisCache
		e.owned = append(e.owned, redisCache)
	}

	if ec := fileCfg.Quality.Etcd; ec != nil && cfg.qualitySource == nil {
		store, err := quality.NewEtcdStore(quality.EtcdConfig{
			Endpoints: ec.Endpoints,
			Namespace: ec.Namespace,
		})
		if err != nil {
			e.closeOwned()
			return newConfigurationError("New", err)
		}
		cfg.qualitySource = store
		e.owned = append(e.owned, store)
	}
	return nil
}

// SelectDepth picks the cascade depth for a query. A non-zero explicit
// depth is honored after clamping to [1, 3].
func (e *Engine) SelectDepth(query string, qctx layer.QueryContext, explicit int) int {
	return selector.SelectDepth(query, qctx, explicit)
}

// SelectLayers picks which layers are worth querying, ordered by
// descending quality score, with a human-readable explanation per
// decision. Scores come from the configured quality source when one is
// available, otherwise from keyword-estimated defaults.
func (e *Engine) SelectLayers(ctx context.Context, query string, qctx layer.QueryContext) ([]string, []string) {
	return selector.SelectLayers(query, e.liveScores(ctx), qctx, e.qualityThreshold)
}

// SelectDepthWithQuality combines live layer quality with query complexity
// to pick a depth, returning the depth and an explanation.
func (e *Engine) SelectDepthWithQuality(ctx context.Context, query string, qctx layer.QueryContext, explicit int) (int, string) {
	return selector.SelectDepthWithQuality(query, e.liveScores(ctx), qctx, explicit)
}

// liveScores fetches scores from the quality source. Any failure falls
// back to nil, which downstream selection treats as "estimate from
// context". Quality signals are an optimization, never a dependency.
func (e *Engine) liveScores(ctx context.Context) quality.Scores {
	if e.qualitySource == nil {
		return nil
	}
	scores, err := e.qualitySource.Scores(ctx)
	if err != nil {
		e.logger.Debug("quality source unavailable, using estimated scores", "error", err)
		return nil
	}
	return scores
}

// Recall answers a query through the full cached tier-1 flow: probe the
// query cache, execute the applicable layers on a miss, store the
// assembled result, and return it. The second return reports whether the
// answer came from the cache.
//
// Two concurrent misses for the same key may both execute and both store;
// the write is idempotent and the race is accepted rather than serialized.
func (e *Engine) Recall(ctx context.Context, query string, qctx layer.QueryContext, limit int) (layer.ResultSet, bool) {
	if e.tracer != nil {
		var span trace.Span
		ctx, span = e.tracer.Start(ctx, "recall.recall")
		defer span.End()
		span.SetAttributes(
			attribute.String("recall.session_id", qctx.SessionID),
			attribute.Int("recall.limit", limit),
		)
	}

	if results, ok := e.queryCache.Get(ctx, query, qctx, limit); ok {
		e.logger.Debug("recall served from cache", "query_len", len(query))
		return results, true
	}

	results := e.ExecuteTier1(ctx, query, qctx, limit, true)
	e.queryCache.Put(ctx, query, qctx, limit, results)
	return results, false
}

// SessionContext returns the cached context for a session, calling fetch
// and caching its result on a miss. It saves repeated context lookups
// across temporally close recall calls.
func (e *Engine) SessionContext(ctx context.Context, sessionID string, fetch func(context.Context) (layer.QueryContext, error)) (layer.QueryContext, error) {
	if qctx, ok := e.sessions.Get(sessionID); ok {
		return qctx, nil
	}

	qctx, err := fetch(ctx)
	if err != nil {
		return layer.QueryContext{}, err
	}
	e.sessions.Put(sessionID, qctx)
	return qctx, nil
}

// Layers returns the registered layer names in sorted order.
func (e *Engine) Layers() []string {
	return e.registry.Names()
}

// ExecutorStats returns a snapshot of the executor's counters, for the
// host's observability exporter to poll.
func (e *Engine) ExecutorStats() executor.Stats {
	return e.exec.Stats()
}

// CacheStats returns a snapshot of the query cache's counters.
func (e *Engine) CacheStats() cache.QueryCacheStats {
	return e.queryCache.Stats()
}

// SessionCache exposes the session context cache for direct invalidation
// by the host, e.g. when a session ends.
func (e *Engine) SessionCache() *cache.Session {
	return e.sessions
}

// QueryCache exposes the query cache for direct invalidation by the host,
// e.g. after a bulk memory import.
func (e *Engine) QueryCache() cache.QueryCache {
	return e.queryCache
}

// Close releases backends the Engine constructed from its config file.
// Injected caches and quality sources are not closed; their owner closes
// them. Close is idempotent.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		err = e.closeOwned()
	})
	return err
}

func (e *Engine) closeOwned() error {
	var firstErr error
	for _, c := range e.owned {
		if cerr := c.Close(); cerr != nil && firstErr == nil {
			firstErr = cerr
		}
	}
	e.owned = nil
	return firstErr
}
