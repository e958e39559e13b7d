package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// NewCache builds the backend named by config.Type.
func NewCache(config Config) (Cache, error) {
	switch strings.ToLower(config.Type) {
	case "", "local":
		return NewLocalCache(config.Local), nil
	case "gocache":
		return NewGoCache(config.Local), nil
	case "redis":
		return NewRedisCache(config.Redis)
	case "layered":
		return NewLayeredCache(config, time.Minute)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", config.Type)
	}
}

// NewLayeredCache puts a short-lived local LRU in front of redis.
func NewLayeredCache(config Config, localTTL time.Duration) (Cache, error) {
	distributed, err := NewRedisCache(config.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis cache: %w", err)
	}
	return &layeredCache{
		local:       NewLocalCache(config.Local),
		distributed: distributed,
		localTTL:    localTTL,
	}, nil
}

// layeredCache reads local first; redis is the source of truth.
type layeredCache struct {
	local       Cache
	distributed Cache
	localTTL    time.Duration
}

func (lc *layeredCache) Get(ctx context.Context, key string) (interface{}, bool) {
	if value, ok := lc.local.Get(ctx, key); ok {
		return value, true
	}
	if value, ok := lc.distributed.Get(ctx, key); ok {
		_ = lc.local.Set(ctx, key, value, lc.localTTL)
		return value, true
	}
	return nil, false
}

func (lc *layeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := lc.distributed.Set(ctx, key, value, expiration); err != nil {
		return err
	}
	return lc.local.Set(ctx, key, value, lc.localTTL)
}

func (lc *layeredCache) Delete(ctx context.Context, key string) error {
	if err := lc.local.Delete(ctx, key); err != nil {
		return err
	}
	return lc.distributed.Delete(ctx, key)
}

func (lc *layeredCache) Exists(ctx context.Context, key string) bool {
	return lc.local.Exists(ctx, key) || lc.distributed.Exists(ctx, key)
}

func (lc *layeredCache) Clear(ctx context.Context) error {
	if err := lc.local.Clear(ctx); err != nil {
		return err
	}
	return lc.distributed.Clear(ctx)
}

func (lc *layeredCache) Close() error {
	if err := lc.local.Close(); err != nil {
		return err
	}
	return lc.distributed.Close()
}
