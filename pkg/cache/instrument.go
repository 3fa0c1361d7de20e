package cache

import (
	"context"
	"time"

	"github.com/canopyviz/canopy/pkg/observability"
)

// Instrument reports every Get and Set on c to the registered cache hooks
// under the given backend name.
func Instrument(c Cache, backend string) Cache {
	if _, ok := c.(*instrumented); ok {
		return c
	}
	return &instrumented{Cache: c, backend: backend}
}

type instrumented struct {
	Cache
	backend string
}

func (c *instrumented) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, hit, err := c.Cache.Get(ctx, key)
	if err == nil {
		if hit {
			observability.Cache().OnCacheHit(ctx, c.backend)
		} else {
			observability.Cache().OnCacheMiss(ctx, c.backend)
		}
	}
	return data, hit, err
}

func (c *instrumented) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	err := c.Cache.Set(ctx, key, data, ttl)
	if err == nil {
		observability.Cache().OnCacheSet(ctx, c.backend, len(data))
	}
	return err
}
