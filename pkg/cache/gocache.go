package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// goCacheWrapper go-cache backend. Its expiration conventions (0 default,
// -1 never) match the Cache contract, so values pass straight through.
type goCacheWrapper struct {
	cache *gocache.Cache
}

// NewGoCache creates a go-cache backed store.
func NewGoCache(config LocalConfig) Cache {
	def := config.DefaultExpiration
	if def == 0 {
		def = gocache.NoExpiration
	}
	return &goCacheWrapper{cache: gocache.New(def, config.CleanupInterval)}
}

func (gc *goCacheWrapper) Get(ctx context.Context, key string) (interface{}, bool) {
	return gc.cache.Get(key)
}

func (gc *goCacheWrapper) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if expiration < 0 {
		expiration = gocache.NoExpiration
	}
	gc.cache.Set(key, value, expiration)
	return nil
}

func (gc *goCacheWrapper) Delete(ctx context.Context, key string) error {
	gc.cache.Delete(key)
	return nil
}

func (gc *goCacheWrapper) Exists(ctx context.Context, key string) bool {
	_, found := gc.cache.Get(key)
	return found
}

func (gc *goCacheWrapper) Clear(ctx context.Context) error {
	gc.cache.Flush()
	return nil
}

func (gc *goCacheWrapper) Close() error { return nil }
