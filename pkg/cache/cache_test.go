package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalCache(t *testing.T) {
	config := LocalConfig{
		MaxSize:           2,
		DefaultExpiration: 5 * time.Minute,
	}

	cache := NewLocalCache(config)
	defer cache.Close()

	ctx := context.Background()

	t.Run("Set and Get", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "test_key", "test_value", time.Minute))

		v, ok := cache.Get(ctx, "test_key")
		assert.True(t, ok)
		assert.Equal(t, "test_value", v)
	})

	t.Run("Expired entry is gone", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "short", 1, time.Millisecond))
		time.Sleep(5 * time.Millisecond)
		assert.False(t, cache.Exists(ctx, "short"))
	})

	t.Run("Evicts least recently used", func(t *testing.T) {
		require.NoError(t, cache.Clear(ctx))
		_ = cache.Set(ctx, "a", 1, NoExpiration)
		_ = cache.Set(ctx, "b", 2, NoExpiration)
		_, _ = cache.Get(ctx, "a")
		_ = cache.Set(ctx, "c", 3, NoExpiration)

		assert.True(t, cache.Exists(ctx, "a"))
		assert.False(t, cache.Exists(ctx, "b"))
		assert.True(t, cache.Exists(ctx, "c"))
	})
}

func TestGoCache(t *testing.T) {
	ctx := context.Background()
	c := NewGoCache(LocalConfig{CleanupInterval: time.Minute})
	defer c.Close()

	require.NoError(t, c.Set(ctx, "seen:alerts:1", true, NoExpiration))
	assert.True(t, c.Exists(ctx, "seen:alerts:1"))

	require.NoError(t, c.Delete(ctx, "seen:alerts:1"))
	assert.False(t, c.Exists(ctx, "seen:alerts:1"))
}

func TestNewCacheUnknownType(t *testing.T) {
	_, err := NewCache(Config{Type: "memcached"})
	assert.Error(t, err)

	c, err := NewCache(Config{})
	require.NoError(t, err)
	assert.NotNil(t, c)
}
