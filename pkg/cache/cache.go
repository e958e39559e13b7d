package cache

import (
	"context"
	"time"
)

// NoExpiration keeps an entry until it is deleted or evicted.
const NoExpiration time.Duration = -1

// Cache is the key/value contract shared by the local and redis backends.
// An expiration of 0 uses the backend default; a negative one never expires.
type Cache interface {
	// Get returns the value stored under key.
	Get(ctx context.Context, key string) (interface{}, bool)

	// Set stores value under key.
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error

	// Delete removes key.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key is present and not expired.
	Exists(ctx context.Context, key string) bool

	// Clear removes every key.
	Clear(ctx context.Context) error

	// Close releases connections and background goroutines.
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	// local (LRU), gocache or redis
	Type string `json:"type" env:"CACHE_TYPE" default:"local"`

	Redis RedisConfig `json:"redis"`

	Local LocalConfig `json:"local"`
}

// RedisConfig Redis connection settings
type RedisConfig struct {
	Addr         string        `json:"addr" env:"REDIS_ADDR" default:"localhost:6379"`
	Password     string        `json:"password" env:"REDIS_PASSWORD"`
	DB           int           `json:"db" env:"REDIS_DB" default:"0"`
	PoolSize     int           `json:"pool_size" env:"REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `json:"min_idle_conns" env:"REDIS_MIN_IDLE_CONNS"`
	DialTimeout  time.Duration `json:"dial_timeout" env:"REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `json:"read_timeout" env:"REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `json:"write_timeout" env:"REDIS_WRITE_TIMEOUT" default:"3s"`

	// KeyPrefix namespaces every key so several services can share one DB.
	KeyPrefix string `json:"key_prefix" env:"REDIS_KEY_PREFIX"`
}

// LocalConfig in-process cache settings
type LocalConfig struct {
	// MaxSize bounds the LRU backend; ignored by gocache.
	MaxSize int `json:"max_size" env:"LOCAL_CACHE_MAX_SIZE" default:"1000"`

	DefaultExpiration time.Duration `json:"default_expiration" env:"LOCAL_CACHE_DEFAULT_EXPIRATION" default:"5m"`

	// CleanupInterval is how often gocache purges expired items.
	CleanupInterval time.Duration `json:"cleanup_interval" env:"LOCAL_CACHE_CLEANUP_INTERVAL" default:"10m"`
}
