package poller

import (
	"context"
	"sync"

	"BloodLink/pkg/cache"
)

// Deduper remembers which remote keys were already imported.
type Deduper interface {
	Seen(ctx context.Context, key string) bool
	MarkSeen(ctx context.Context, key string)
}

type memoryDeduper struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

func NewMemoryDeduper() Deduper {
	return &memoryDeduper{keys: make(map[string]struct{})}
}

func (d *memoryDeduper) Seen(ctx context.Context, key string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.keys[key]
	return ok
}

func (d *memoryDeduper) MarkSeen(ctx context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keys[key] = struct{}{}
}

// cacheDeduper keeps the seen set in a shared cache so several instances of
// the same service skip each other's imports.
type cacheDeduper struct {
	c      cache.Cache
	prefix string
}

func NewCacheDeduper(c cache.Cache, name string) Deduper {
	return &cacheDeduper{c: c, prefix: "poller:" + name + ":"}
}

func (d *cacheDeduper) Seen(ctx context.Context, key string) bool {
	return d.c.Exists(ctx, d.prefix+key)
}

func (d *cacheDeduper) MarkSeen(ctx context.Context, key string) {
	_ = d.c.Set(ctx, d.prefix+key, true, cache.NoExpiration)
}
