package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"BloodLink/pkg/cache"
	"BloodLink/pkg/response"

	"github.com/gin-gonic/gin"
)

type IdemStore interface {
	Set(ctx context.Context, key string, ttl time.Duration) bool // true if set, false if it already existed
	Release(ctx context.Context, key string)
}

// cacheIdemStore keeps keys in a pkg/cache backend. The check-then-set pair
// is serialized in-process; across processes two racing retries can both pass.
type cacheIdemStore struct {
	mu sync.Mutex
	c  cache.Cache
}

func NewCacheIdemStore(c cache.Cache) IdemStore { return &cacheIdemStore{c: c} }

func (s *cacheIdemStore) Set(ctx context.Context, key string, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key = "idem:" + key
	if s.c.Exists(ctx, key) {
		return false
	}
	return s.c.Set(ctx, key, true, ttl) == nil
}

func (s *cacheIdemStore) Release(ctx context.Context, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.c.Delete(ctx, "idem:"+key)
}

type IdempotencyConfig struct {
	HeaderName string        // request header carrying the key
	TTL        time.Duration // window in which a repeated key is rejected
	Store      IdemStore
}

// IdempotencyMiddleware rejects a repeated key within TTL with 409. Requests
// without the header pass through untouched. A request that ends in an error
// status frees its key so the client can retry.
func IdempotencyMiddleware(cfg IdempotencyConfig) gin.HandlerFunc {
	if cfg.HeaderName == "" {
		cfg.HeaderName = "Idempotency-Key"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	store := cfg.Store
	if store == nil {
		store = NewCacheIdemStore(cache.NewGoCache(cache.LocalConfig{CleanupInterval: time.Minute}))
	}
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(cfg.HeaderName))
		if key == "" {
			c.Next()
			return
		}
		key = c.FullPath() + ":" + key
		if !store.Set(c.Request.Context(), key, cfg.TTL) {
			response.Fail(c, http.StatusConflict, "duplicate request")
			return
		}
		c.Next()
		if c.Writer.Status() >= http.StatusBadRequest {
			store.Release(c.Request.Context(), key)
		}
	}
}
