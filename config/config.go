// Package config provides loading and parsing of recall.yaml configuration
// files. The configuration covers every tunable of the recall engine:
// concurrency bounds, timeouts, cache sizing and TTLs, the quality
// threshold, and optional Redis/etcd backends.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents a recall.yaml configuration file. Zero fields fall back
// to defaults through the accessor methods, so a missing or minimal file is
// always usable.
type Config struct {
	// Executor tunes the parallel layer executor.
	Executor ExecutorConfig `yaml:"executor,omitempty"`

	// Cache tunes the query and session caches.
	Cache CacheConfig `yaml:"cache,omitempty"`

	// Quality tunes layer selection.
	Quality QualityConfig `yaml:"quality,omitempty"`
}

// ExecutorConfig tunes the parallel layer executor.
type ExecutorConfig struct {
	// MaxConcurrent bounds in-flight layer queries.
	MaxConcurrent int `yaml:"max_concurrent,omitempty"`

	// TaskTimeout is the per-layer query deadline (e.g. "10s").
	TaskTimeout string `yaml:"task_timeout,omitempty"`

	// DisableParallel forces sequential execution.
	DisableParallel bool `yaml:"disable_parallel,omitempty"`
}

// GetMaxConcurrent returns the configured bound or the default value.
func (e *ExecutorConfig) GetMaxConcurrent() int {
	if e == nil || e.MaxConcurrent <= 0 {
		return 5
	}
	return e.MaxConcurrent
}

// GetTaskTimeout parses the task timeout string and returns a duration.
// Returns the default value if not set or invalid.
func (e *ExecutorConfig) GetTaskTimeout() time.Duration {
	if e == nil || e.TaskTimeout == "" {
		return 10 * time.Second
	}
	d, err := time.ParseDuration(e.TaskTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// CacheConfig tunes the query and session caches.
type CacheConfig struct {
	// Capacity bounds the in-memory query cache entry count.
	Capacity int `yaml:"capacity,omitempty"`

	// TTL is the query cache entry lifetime (e.g. "300s").
	TTL string `yaml:"ttl,omitempty"`

	// SessionTTL is the session context lifetime (e.g. "30s").
	SessionTTL string `yaml:"session_ttl,omitempty"`

	// Redis, when present, replaces the in-memory query cache with a
	// shared Redis-backed one.
	Redis *RedisConfig `yaml:"redis,omitempty"`
}

// GetCapacity returns the configured capacity or the default value.
func (c *CacheConfig) GetCapacity() int {
	if c == nil || c.Capacity <= 0 {
		return 1000
	}
	return c.Capacity
}

// GetTTL parses the query cache TTL and returns a duration.
// Returns the default value if not set or invalid.
func (c *CacheConfig) GetTTL() time.Duration {
	if c == nil || c.TTL == "" {
		return 300 * time.Second
	}
	d, err := time.ParseDuration(c.TTL)
	if err != nil || d <= 0 {
		return 300 * time.Second
	}
	return d
}

// GetSessionTTL parses the session cache TTL and returns a duration.
// Returns the default value if not set or invalid.
func (c *CacheConfig) GetSessionTTL() time.Duration {
	if c == nil || c.SessionTTL == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(c.SessionTTL)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// RedisConfig points the query cache at a Redis instance.
type RedisConfig struct {
	// URL is the Redis connection string (e.g. "redis://localhost:6379").
	URL string `yaml:"url"`

	// Namespace prefixes all cache keys.
	Namespace string `yaml:"namespace,omitempty"`
}

// QualityConfig tunes quality-aware layer selection.
type QualityConfig struct {
	// Threshold is the minimum quality score for a layer to be queried.
	Threshold float64 `yaml:"threshold,omitempty"`

	// Etcd, when present, subscribes to live quality scores published by
	// the meta-quality collaborator.
	Etcd *EtcdConfig `yaml:"etcd,omitempty"`
}

// GetThreshold returns the configured threshold or the default value.
func (q *QualityConfig) GetThreshold() float64 {
	if q == nil || q.Threshold <= 0 || q.Threshold > 1 {
		return 0.7
	}
	return q.Threshold
}

// EtcdConfig points the quality score source at an etcd cluster.
type EtcdConfig struct {
	// Endpoints lists etcd cluster endpoints (host:port).
	Endpoints []string `yaml:"endpoints"`

	// Namespace prefixes all quality keys.
	Namespace string `yaml:"namespace,omitempty"`
}

// Load reads and parses a recall.yaml file from the given path.
// If the path is a directory, it looks for recall.yaml or recall.yml in
// that directory.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	configPath := path
	if info.IsDir() {
		yamlPath := filepath.Join(path, "recall.yaml")
		if _, err := os.Stat(yamlPath); err == nil {
			configPath = yamlPath
		} else {
			ymlPath := filepath.Join(path, "recall.yml")
			if _, err := os.Stat(ymlPath); err != nil {
				return nil, fmt.Errorf("no recall.yaml or recall.yml found in %s", path)
			}
			configPath = ymlPath
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects configurations that would misbehave silently. Unset
// fields are fine (defaults apply); explicitly malformed ones are not.
func (c *Config) Validate() error {
	if c.Executor.TaskTimeout != "" {
		if _, err := time.ParseDuration(c.Executor.TaskTimeout); err != nil {
			return fmt.Errorf("invalid executor.task_timeout: %w", err)
		}
	}
	if c.Cache.TTL != "" {
		if _, err := time.ParseDuration(c.Cache.TTL); err != nil {
			return fmt.Errorf("invalid cache.ttl: %w", err)
		}
	}
	if c.Cache.SessionTTL != "" {
		if _, err := time.ParseDuration(c.Cache.SessionTTL); err != nil {
			return fmt.Errorf("invalid cache.session_ttl: %w", err)
		}
	}
	if c.Quality.Threshold < 0 || c.Quality.Threshold > 1 {
		return fmt.Errorf("quality.threshold must be in [0, 1], got %v", c.Quality.Threshold)
	}
	if c.Cache.Redis != nil && c.Cache.Redis.URL == "" {
		return fmt.Errorf("cache.redis.url is required when cache.redis is set")
	}
	if c.Quality.Etcd != nil && len(c.Quality.Etcd.Endpoints) == 0 {
		return fmt.Errorf("quality.etcd.endpoints is required when quality.etcd is set")
	}
	return nil
}
