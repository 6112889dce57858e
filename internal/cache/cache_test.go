package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type payload struct {
	Value float64 `json:"value"`
	Label string  `json:"label"`
}

func newTestCache(t *testing.T) (*Cache, *MemoryBackend) {
	t.Helper()
	backend := NewMemoryBackend()
	t.Cleanup(func() { _ = backend.Close() })
	return New(backend, nil), backend
}

func TestReadThrough_MissThenHit(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	calls := 0
	compute := func(ctx context.Context) (payload, error) {
		calls++
		return payload{Value: 110.0, Label: "cpi"}, nil
	}

	first, fromCache, err := ReadThrough(ctx, c, "k", time.Minute, compute)
	require.NoError(t, err)
	require.False(t, fromCache)
	require.Equal(t, 1, calls)

	second, fromCache, err := ReadThrough(ctx, c, "k", time.Minute, compute)
	require.NoError(t, err)
	require.True(t, fromCache)
	require.Equal(t, first, second)
	require.Equal(t, 1, calls)
}

func TestReadThrough_Expiry(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	calls := 0
	compute := func(ctx context.Context) (int, error) {
		calls++
		return calls, nil
	}

	_, _, err := ReadThrough(ctx, c, "short", 20*time.Millisecond, compute)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)

	v, fromCache, err := ReadThrough(ctx, c, "short", 20*time.Millisecond, compute)
	require.NoError(t, err)
	require.False(t, fromCache)
	require.Equal(t, 2, v)
}

func TestReadThrough_ComputeErrorNotCached(t *testing.T) {
	c, backend := newTestCache(t)
	ctx := context.Background()

	_, _, err := ReadThrough(ctx, c, "k", time.Minute, func(ctx context.Context) (payload, error) {
		return payload{}, errors.New("store down")
	})
	require.Error(t, err)
	require.Equal(t, 0, backend.Len())
}

type failingBackend struct{}

func (failingBackend) Get(string) ([]byte, error)             { return nil, ErrUnavailable }
func (failingBackend) Set(string, []byte, time.Duration) error { return ErrUnavailable }
func (failingBackend) Delete(string) error                     { return ErrUnavailable }
func (failingBackend) Close() error                            { return nil }

func TestReadThrough_BackendFailureDegrades(t *testing.T) {
	c := New(failingBackend{}, nil)

	calls := 0
	for i := 0; i < 2; i++ {
		v, fromCache, err := ReadThrough(context.Background(), c, "k", time.Minute, func(ctx context.Context) (string, error) {
			calls++
			return "fresh", nil
		})
		require.NoError(t, err)
		require.False(t, fromCache)
		require.Equal(t, "fresh", v)
	}
	require.Equal(t, 2, calls)

	c.Delete("k")
}

func TestNilCache(t *testing.T) {
	var c *Cache
	var dst payload
	require.False(t, c.Get("k", &dst))
	c.Put("k", payload{}, time.Minute)
	c.Delete("k")
	require.NoError(t, c.Close())

	v, fromCache, err := ReadThrough(context.Background(), c, "k", time.Minute, func(ctx context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	require.False(t, fromCache)
	require.Equal(t, 7, v)
}

func TestDelete(t *testing.T) {
	c, _ := newTestCache(t)
	c.Put(KeyDashboard, payload{Value: 1}, time.Minute)
	c.Put(LatestKey("cpi_total"), payload{Value: 2}, time.Minute)

	c.Delete(SyncInvalidations([]string{"cpi_total"})...)

	var dst payload
	require.False(t, c.Get(KeyDashboard, &dst))
	require.False(t, c.Get(LatestKey("cpi_total"), &dst))
}

func TestTTLForFrequency(t *testing.T) {
	require.Equal(t, TTLMonthly, TTLForFrequency("monthly"))
	require.Equal(t, TTLQuarterly, TTLForFrequency("quarterly"))
	require.Equal(t, TTLAnnual, TTLForFrequency("annual"))
	require.Equal(t, TTLAnnual, TTLForFrequency(""))
}

func TestNewRedisBackend_Unreachable(t *testing.T) {
	_, err := NewRedisBackend("redis://127.0.0.1:1/0")
	require.ErrorIs(t, err, ErrUnavailable)
}
