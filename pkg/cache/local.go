package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// localCache is a size-bounded LRU. The LRU itself never expires entries;
// each entry carries its own deadline, checked on read.
type localCache struct {
	config LocalConfig
	lru    *expirable.LRU[string, cacheItem]
}

type cacheItem struct {
	value      interface{}
	expiration time.Time
}

func (i cacheItem) expired(now time.Time) bool {
	return !i.expiration.IsZero() && now.After(i.expiration)
}

// NewLocalCache creates the LRU backend.
func NewLocalCache(config LocalConfig) Cache {
	size := config.MaxSize
	if size <= 0 {
		size = 1000
	}
	return &localCache{
		config: config,
		lru:    expirable.NewLRU[string, cacheItem](size, nil, 0),
	}
}

func (lc *localCache) deadline(expiration time.Duration) time.Time {
	if expiration == 0 {
		expiration = lc.config.DefaultExpiration
	}
	if expiration <= 0 {
		return time.Time{}
	}
	return time.Now().Add(expiration)
}

// Get returns the value when present and not expired.
func (lc *localCache) Get(ctx context.Context, key string) (interface{}, bool) {
	item, ok := lc.lru.Get(key)
	if !ok {
		return nil, false
	}
	if item.expired(time.Now()) {
		lc.lru.Remove(key)
		return nil, false
	}
	return item.value, true
}

func (lc *localCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	lc.lru.Add(key, cacheItem{value: value, expiration: lc.deadline(expiration)})
	return nil
}

func (lc *localCache) Delete(ctx context.Context, key string) error {
	lc.lru.Remove(key)
	return nil
}

func (lc *localCache) Exists(ctx context.Context, key string) bool {
	_, ok := lc.Get(ctx, key)
	return ok
}

func (lc *localCache) Clear(ctx context.Context) error {
	lc.lru.Purge()
	return nil
}

func (lc *localCache) Close() error { return nil }
