// Package cache is a best-effort key/value layer in front of the read API.
// Every failure degrades to a miss; nothing here is authoritative.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/goccy/go-json"

	"trendboard/internal/metrics"
)

// Backend stores serialized values with an expiration.
// Get returns (nil, nil) for an absent or expired key.
type Backend interface {
	Get(key string) ([]byte, error)
	Set(key string, val []byte, exp time.Duration) error
	Delete(key string) error
	Close() error
}

// Cache wraps a Backend with JSON serialization and error swallowing.
// A nil *Cache is valid and never hits.
type Cache struct {
	backend Backend
	log     *slog.Logger
}

// New creates a cache over backend.
func New(backend Backend, log *slog.Logger) *Cache {
	if log == nil {
		log = slog.Default()
	}
	return &Cache{backend: backend, log: log.With("component", "cache")}
}

// Get decodes the value at key into dst. It reports false on a miss or on
// any backend or decode error.
func (c *Cache) Get(key string, dst any) bool {
	if c == nil || c.backend == nil {
		return false
	}
	data, err := c.backend.Get(key)
	if err != nil {
		c.log.Warn("cache read failed", "key", key, "error", err)
		metrics.RecordCacheLookup(metrics.CacheError)
		return false
	}
	if data == nil {
		metrics.RecordCacheLookup(metrics.CacheMiss)
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		c.log.Warn("cache entry undecodable", "key", key, "error", err)
		metrics.RecordCacheLookup(metrics.CacheError)
		return false
	}
	metrics.RecordCacheLookup(metrics.CacheHit)
	return true
}

// Put stores value at key for ttl. Failures are logged and dropped.
func (c *Cache) Put(key string, value any, ttl time.Duration) {
	if c == nil || c.backend == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		c.log.Warn("cache entry unencodable", "key", key, "error", err)
		return
	}
	if err := c.backend.Set(key, data, ttl); err != nil {
		c.log.Warn("cache write failed", "key", key, "error", err)
	}
}

// Delete removes keys. Failures are logged and dropped.
func (c *Cache) Delete(keys ...string) {
	if c == nil || c.backend == nil {
		return
	}
	for _, key := range keys {
		if err := c.backend.Delete(key); err != nil {
			c.log.Warn("cache delete failed", "key", key, "error", err)
		}
	}
}

// Close releases the backend.
func (c *Cache) Close() error {
	if c == nil || c.backend == nil {
		return nil
	}
	return c.backend.Close()
}

// ReadThrough returns the cached value at key, or computes, stores and returns
// it. fromCache reports whether compute was skipped. Compute errors are
// returned without touching the cache.
func ReadThrough[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, compute func(ctx context.Context) (T, error)) (value T, fromCache bool, err error) {
	if c.Get(key, &value) {
		return value, true, nil
	}
	var zero T
	value, err = compute(ctx)
	if err != nil {
		return zero, false, err
	}
	c.Put(key, value, ttl)
	return value, false, nil
}

// ErrUnavailable is returned by backends that cannot reach their store.
var ErrUnavailable = errors.New("cache backend unavailable")
