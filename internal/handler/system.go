package handlers

import (
	"net/http"
	"os"
	"time"

	"BloodLink/pkg/metrics"
	"BloodLink/pkg/middleware"
	"BloodLink/pkg/response"

	"github.com/gin-gonic/gin"
)

// HealthCheck reports healthy only while the data directory is writable.
func (h *Handlers) HealthCheck(c *gin.Context) {
	dir := h.repo.Store().Dir()
	f, err := os.CreateTemp(dir, ".health-*")
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "data directory not writable"})
		return
	}
	f.Close()
	os.Remove(f.Name())

	stats := metrics.CollectSystemStats(c.Request.Context(), dir)
	if h.metrics != nil {
		h.metrics.SetSystemStats(stats)
	}
	body := gin.H{
		"status": "healthy",
		"role":   h.cfg.Role,
		"uptime": time.Since(h.started).Round(time.Second).String(),
		"system": stats,
	}
	if h.cfg.ServesBank() {
		if n, err := h.repo.PendingAlertCount(); err == nil {
			body["pending_alerts"] = n
		}
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handlers) GetRateLimiterConfig(c *gin.Context) {
	if h.limiter == nil {
		response.Fail(c, http.StatusNotFound, "rate limiter disabled")
		return
	}
	response.Success(c, "", gin.H{"config": h.limiter.Config()})
}

// UpdateRateLimiterConfig swaps the limiter config at runtime.
func (h *Handlers) UpdateRateLimiterConfig(c *gin.Context) {
	if h.limiter == nil {
		response.Fail(c, http.StatusNotFound, "rate limiter disabled")
		return
	}
	var cfg middleware.RateLimiterConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid request")
		return
	}
	if err := h.limiter.UpdateConfig(cfg); err != nil {
		response.Fail(c, http.StatusBadRequest, err.Error())
		return
	}
	response.Success(c, "rate limiter config updated", nil)
}
