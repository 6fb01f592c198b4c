package recall

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/mnemos-ai/recall/cache"
	"github.com/mnemos-ai/recall/layer"
	"github.com/mnemos-ai/recall/quality"
)

// Option configures the Engine.
type Option func(*engineConfig)

// engineConfig holds configuration for one Engine instance. Zero fields
// fall back to the config file (when one is given) and then to defaults.
type engineConfig struct {
	configPath string
	logger     *slog.Logger
	meter      metric.Meter
	tracer     trace.Tracer

	providers map[string]layer.Provider

	queryCache    cache.QueryCache
	sessionTTL    time.Duration
	cacheCapacity int
	cacheTTL      time.Duration

	qualitySource    quality.Source
	qualityThreshold float64

	maxConcurrent   int
	taskTimeout     time.Duration
	disableParallel bool
}

// WithProvider registers a layer provider under the given name.
// At least one provider is required; use the canonical names in the layer
// package for the standard five stores.
func WithProvider(name string, p layer.Provider) Option {
	return func(c *engineConfig) {
		c.providers[name] = p
	}
}

// WithProviderFunc registers a plain function as a layer provider.
func WithProviderFunc(name string, fn layer.Func) Option {
	return WithProvider(name, fn)
}

// WithConfigFile sets the recall.yaml path for the engine. Explicit options
// take precedence over file values.
func WithConfigFile(path string) Option {
	return func(c *engineConfig) {
		c.configPath = path
	}
}

// WithLogger sets a custom logger for the engine.
// If not provided, a default logger will be created.
func WithLogger(logger *slog.Logger) Option {
	return func(c *engineConfig) {
		c.logger = logger
	}
}

// WithMeter sets an OpenTelemetry meter for executor metrics.
// Without it, metrics are disabled.
func WithMeter(meter metric.Meter) Option {
	return func(c *engineConfig) {
		c.meter = meter
	}
}

// WithTracer sets an OpenTelemetry tracer for recall spans.
// This enables observability and performance monitoring across the engine.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *engineConfig) {
		c.tracer = tracer
	}
}

// WithQueryCache replaces the default in-memory query cache, typically with
// a Redis-backed cache shared across instances. The caller retains
// ownership and must Close the cache itself.
func WithQueryCache(qc cache.QueryCache) Option {
	return func(c *engineConfig) {
		c.queryCache = qc
	}
}

// WithCacheCapacity bounds the in-memory query cache entry count.
// Ignored when WithQueryCache supplies the cache.
func WithCacheCapacity(n int) Option {
	return func(c *engineConfig) {
		c.cacheCapacity = n
	}
}

// WithCacheTTL sets the query cache entry lifetime.
// Ignored when WithQueryCache supplies the cache.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *engineConfig) {
		c.cacheTTL = ttl
	}
}

// WithSessionTTL sets the session context cache lifetime.
func WithSessionTTL(ttl time.Duration) Option {
	return func(c *engineConfig) {
		c.sessionTTL = ttl
	}
}

// WithQualitySource sets the live per-layer quality score source, e.g. a
// quality.EtcdStore or the host's meta-quality collaborator. Without one,
// layer selection falls back to keyword-estimated defaults. The caller
// retains ownership of the source.
func WithQualitySource(src quality.Source) Option {
	return func(c *engineConfig) {
		c.qualitySource = src
	}
}

// WithQualityThreshold sets the minimum quality score a layer needs to be
// queried. Values outside (0, 1] fall back to the default.
func WithQualityThreshold(threshold float64) Option {
	return func(c *engineConfig) {
		c.qualityThreshold = threshold
	}
}

// WithMaxConcurrent bounds the number of layer queries in flight at once.
func WithMaxConcurrent(n int) Option {
	return func(c *engineConfig) {
		c.maxConcurrent = n
	}
}

// WithTaskTimeout sets the per-layer query deadline.
func WithTaskTimeout(timeout time.Duration) Option {
	return func(c *engineConfig) {
		c.taskTimeout = timeout
	}
}

// WithoutParallel forces every batch down the sequential execution path.
// Mostly useful for debugging and for hosts that manage their own
// concurrency.
func WithoutParallel() Option {
	return func(c *engineConfig) {
		c.disableParallel = true
	}
}
