package cache

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryBackend is an in-process Backend. Each process has its own copy, so
// it suits single-instance deployments and tests.
type MemoryBackend struct {
	c *ttlcache.Cache[string, []byte]
}

// NewMemoryBackend creates and starts an in-process backend.
func NewMemoryBackend() *MemoryBackend {
	c := ttlcache.New[string, []byte](
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)
	go c.Start()
	return &MemoryBackend{c: c}
}

// Get implements Backend.
func (m *MemoryBackend) Get(key string) ([]byte, error) {
	item := m.c.Get(key)
	if item == nil || item.IsExpired() {
		return nil, nil
	}
	return item.Value(), nil
}

// Set implements Backend.
func (m *MemoryBackend) Set(key string, val []byte, exp time.Duration) error {
	if exp <= 0 {
		exp = ttlcache.NoTTL
	}
	m.c.Set(key, val, exp)
	return nil
}

// Delete implements Backend.
func (m *MemoryBackend) Delete(key string) error {
	m.c.Delete(key)
	return nil
}

// Close stops the expiry loop.
func (m *MemoryBackend) Close() error {
	m.c.Stop()
	return nil
}

// Len returns the number of stored entries, expired ones included until evicted.
func (m *MemoryBackend) Len() int {
	return m.c.Len()
}
