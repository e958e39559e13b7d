package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"BloodLink/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// 限流配置
//
// Rate: "300-M"; Identifier: "ip" | "header" | "ip+route"
// PerRouteRates: {"/api/request-blood": "30-M"} keyed by route template
// SkipPaths: prefix match, e.g. "/metrics", "/api/notifications/stream"
type RateLimiterConfig struct {
	Rate           string            `json:"rate"`
	PerRouteRates  map[string]string `json:"per_route_rates"`
	Identifier     string            `json:"identifier"`
	HeaderName     string            `json:"header_name"`
	WhitelistCIDRs []string          `json:"whitelist_cidrs"`
	SkipPaths      []string          `json:"skip_paths"`
	AddHeaders     bool              `json:"add_headers"`
	DenyMessage    string            `json:"deny_message"`
}

// MetricsObserver receives allow/deny counts per route.
type MetricsObserver interface {
	OnAllow(route string)
	OnDeny(route string)
}

// PrometheusObserver counts decisions per route.
type PrometheusObserver struct {
	allow *prometheus.CounterVec
	deny  *prometheus.CounterVec
}

// NewPrometheusObserver registers its counters on reg.
func NewPrometheusObserver(reg prometheus.Registerer) *PrometheusObserver {
	p := &PrometheusObserver{
		allow: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_limit_allow_total",
			Help: "Allowed requests by rate limiter",
		}, []string{"route"}),
		deny: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_limit_deny_total",
			Help: "Denied requests by rate limiter",
		}, []string{"route"}),
	}
	reg.MustRegister(p.allow, p.deny)
	return p
}

func (p *PrometheusObserver) OnAllow(route string) { p.allow.WithLabelValues(route).Inc() }
func (p *PrometheusObserver) OnDeny(route string)  { p.deny.WithLabelValues(route).Inc() }

// RateLimiter caches one limiter per rate string; config can be swapped at runtime.
type RateLimiter struct {
	mu             sync.RWMutex
	cfg            RateLimiterConfig
	store          limiter.Store
	observer       MetricsObserver
	limitersByRate map[string]*limiter.Limiter
	whiteCIDRs     []*net.IPNet
}

// NewRateLimiter uses an in-memory store when store is nil.
func NewRateLimiter(cfg RateLimiterConfig, store limiter.Store) *RateLimiter {
	if store == nil {
		store = memory.NewStore()
	}
	l := &RateLimiter{store: store, limitersByRate: make(map[string]*limiter.Limiter)}
	if err := l.UpdateConfig(cfg); err != nil {
		cfg.Rate, cfg.PerRouteRates = "", nil
		_ = l.UpdateConfig(cfg)
	}
	return l
}

func (l *RateLimiter) WithObserver(observer MetricsObserver) *RateLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observer = observer
	return l
}

func (l *RateLimiter) Config() RateLimiterConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// UpdateConfig validates every rate before swapping the config in.
func (l *RateLimiter) UpdateConfig(cfg RateLimiterConfig) error {
	if cfg.Rate == "" {
		cfg.Rate = "300-M"
	}
	if _, err := limiter.NewRateFromFormatted(cfg.Rate); err != nil {
		return err
	}
	for _, r := range cfg.PerRouteRates {
		if _, err := limiter.NewRateFromFormatted(r); err != nil {
			return err
		}
	}
	var white []*net.IPNet
	for _, c := range cfg.WhitelistCIDRs {
		if _, ipnet, err := net.ParseCIDR(strings.TrimSpace(c)); err == nil {
			white = append(white, ipnet)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.cfg = cfg
	l.whiteCIDRs = white
	return nil
}

// Middleware returns the gin handler.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		l.mu.RLock()
		cfg, white, obs := l.cfg, l.whiteCIDRs, l.observer
		l.mu.RUnlock()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		if pathSkipped(cfg.SkipPaths, route) || ipListed(c.ClientIP(), white) {
			c.Next()
			return
		}

		rate := cfg.Rate
		if r, ok := cfg.PerRouteRates[route]; ok && r != "" {
			rate = r
		}
		lctx, err := l.getLimiter(rate).Get(c, buildLimitKey(cfg, c, route))
		if err != nil {
			// store failure: fail open
			c.Next()
			return
		}
		if cfg.AddHeaders {
			c.Header("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
			c.Header("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		}
		if lctx.Reached {
			retry := int(time.Until(time.Unix(lctx.Reset, 0)).Seconds())
			if retry < 0 {
				retry = 0
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			if obs != nil {
				obs.OnDeny(route)
			}
			msg := cfg.DenyMessage
			if msg == "" {
				msg = "Too Many Requests"
			}
			response.Fail(c, http.StatusTooManyRequests, msg)
			return
		}
		if obs != nil {
			obs.OnAllow(route)
		}
		c.Next()
	}
}

func (l *RateLimiter) getLimiter(rateStr string) *limiter.Limiter {
	l.mu.RLock()
	lim, ok := l.limitersByRate[rateStr]
	l.mu.RUnlock()
	if ok {
		return lim
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok = l.limitersByRate[rateStr]; ok {
		return lim
	}
	r, err := limiter.NewRateFromFormatted(rateStr)
	if err != nil {
		r = limiter.Rate{Period: time.Second, Limit: 10}
	}
	lim = limiter.New(l.store, r)
	l.limitersByRate[rateStr] = lim
	return lim
}

func pathSkipped(prefixes []string, path string) bool {
	for _, pref := range prefixes {
		if pref != "" && strings.HasPrefix(path, pref) {
			return true
		}
	}
	return false
}

func ipListed(ip string, nets []*net.IPNet) bool {
	pip := net.ParseIP(strings.TrimPrefix(ip, "::ffff:"))
	if pip == nil {
		return false
	}
	for _, n := range nets {
		if n.Contains(pip) {
			return true
		}
	}
	return false
}

func buildLimitKey(cfg RateLimiterConfig, c *gin.Context, route string) string {
	ip := c.ClientIP()
	switch cfg.Identifier {
	case "header":
		if hv := strings.TrimSpace(c.GetHeader(cfg.HeaderName)); hv != "" {
			return "hdr:" + cfg.HeaderName + ":" + hv
		}
		return "ip:" + ip
	case "ip+route":
		return "iprt:" + ip + ":" + route
	default:
		return "ip:" + ip
	}
}
