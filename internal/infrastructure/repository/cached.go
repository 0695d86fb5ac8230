package repository

import (
	"context"
	"log"

	"github.com/waste3d/training-portal/internal/infrastructure/cache"
)

// readThrough serves key from the cache or loads and stores it. The cache is
// best effort: its failures are logged and the store answers instead.
func readThrough[T any](ctx context.Context, c cache.Cache, key string, load func() (T, error)) (T, error) {
	var v T
	ok, err := c.Get(ctx, key, &v)
	if err != nil {
		log.Printf("cache: get %s: %v", key, err)
	}
	if ok && err == nil {
		return v, nil
	}

	v, err = load()
	if err != nil {
		return v, err
	}
	remember(ctx, c, key, v)
	return v, nil
}

func remember(ctx context.Context, c cache.Cache, key string, v any) {
	if err := c.Set(ctx, key, v); err != nil {
		log.Printf("cache: set %s: %v", key, err)
	}
}

func forget(ctx context.Context, c cache.Cache, keys ...string) {
	if err := c.Delete(ctx, keys...); err != nil {
		log.Printf("cache: delete %v: %v", keys, err)
	}
}
