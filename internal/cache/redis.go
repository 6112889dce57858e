package cache

import (
	"fmt"

	"github.com/gofiber/storage/redis/v3"
)

// NewRedisBackend connects to Redis at url. The storage driver panics when
// the initial ping fails; that is turned into ErrUnavailable.
func NewRedisBackend(url string) (backend Backend, err error) {
	defer func() {
		if r := recover(); r != nil {
			backend = nil
			err = fmt.Errorf("%w: %v", ErrUnavailable, r)
		}
	}()

	store := redis.New(redis.Config{
		URL:   url,
		Reset: false,
	})
	return store, nil
}
