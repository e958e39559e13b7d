package handlers

import (
	"time"

	"BloodLink/internal/models"
	"BloodLink/pkg/cache"
	"BloodLink/pkg/config"
	"BloodLink/pkg/llm"
	"BloodLink/pkg/metrics"
	"BloodLink/pkg/middleware"
	"BloodLink/pkg/sse"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

// Deps is everything the handlers read from. Only Config and Repo are
// required.
type Deps struct {
	Config    *config.Config
	Repo      *models.Repo
	Hub       *sse.Hub
	Metrics   *metrics.Metrics
	Limiter   *middleware.RateLimiter
	Cache     cache.Cache
	OpLog     *middleware.OperationLogger
	Assistant llm.Assistant
}

type Handlers struct {
	cfg       *config.Config
	repo      *models.Repo
	hub       *sse.Hub
	metrics   *metrics.Metrics
	limiter   *middleware.RateLimiter
	cache     cache.Cache
	opLog     *middleware.OperationLogger
	assistant llm.Assistant
	started   time.Time
}

func NewHandlers(d Deps) *Handlers {
	return &Handlers{
		cfg:       d.Config,
		repo:      d.Repo,
		hub:       d.Hub,
		metrics:   d.Metrics,
		limiter:   d.Limiter,
		cache:     d.Cache,
		opLog:     d.OpLog,
		assistant: d.Assistant,
		started:   time.Now(),
	}
}

func (h *Handlers) Register(engine *gin.Engine) {
	engine.Use(middleware.CORS(h.cfg.CORSOrigins))
	if h.metrics != nil {
		engine.Use(metrics.MonitorMiddleware(h.metrics))
		engine.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	r := engine.Group(h.cfg.APIPrefix)
	r.Use(sessions.Sessions("bloodlink", cookie.NewStore([]byte(h.cfg.SessionSecret))))
	r.Use(h.loadSessionUser)
	if h.limiter != nil {
		r.Use(h.limiter.Middleware())
	}
	if h.opLog != nil {
		r.Use(h.opLog.Middleware())
	}

	// Register System Module Routes
	h.registerSystemRoutes(r)
	h.registerAuthRoutes(r)

	// Register Business Module Routes
	h.registerCommonRoutes(r)
	if h.cfg.ServesHospital() {
		h.registerHospitalRoutes(r)
	}
	if h.cfg.ServesBank() {
		h.registerBankRoutes(r)
	}
	h.registerDonorRoutes(r)
	h.registerAssistantRoutes(r)
}

// System Module
func (h *Handlers) registerSystemRoutes(r *gin.RouterGroup) {
	system := r.Group("system")
	{
		system.GET("/health", h.HealthCheck)

		system.GET("/rate-limiter/config", h.GetRateLimiterConfig)

		system.POST("/rate-limiter/config", AuthRequired, h.UpdateRateLimiterConfig)
	}
}

// Auth Module
func (h *Handlers) registerAuthRoutes(r *gin.RouterGroup) {
	r.POST("/login", h.handleLogin)

	r.POST("/logout", h.handleLogout)

	r.GET("/me", AuthRequired, h.handleMe)
}

// Alerts and notifications are shared by both services.
func (h *Handlers) registerCommonRoutes(r *gin.RouterGroup) {
	r.GET("/alerts", h.handleListAlerts)

	r.POST("/alerts/complete", h.handleCompleteAlert)

	r.GET("/notifications", h.handleListNotifications)

	r.GET("/notifications/stream", h.handleNotificationStream)

	r.GET("/low-stock-alerts", h.handleListLowStockAlerts)

	r.GET("/inventory", h.handleListInventory)

	r.GET("/low-stock-count", h.handleLowStockCount)

	r.GET("/bloodbanks", h.handleListBloodBanks)

	donors := r.Group("donors")
	{
		donors.POST("/notify", h.handleNotifyDonor)

		donors.POST("/:id/post-alert", h.handlePostDonorAlert)

		donors.GET("/:id/private_notifications", h.handleDonorNotifications)

		donors.GET("/:id/notification-response", h.handleDonorLatestNotification)
	}
}

// Hospital Module
func (h *Handlers) registerHospitalRoutes(r *gin.RouterGroup) {
	r.POST("/request-blood", middleware.IdempotencyMiddleware(middleware.IdempotencyConfig{
		Store: h.idemStore(),
	}), h.handleRequestBlood)

	r.GET("/blood-requests", middleware.SignVerifyMiddleware(h.cfg.PeerSecret, 0), h.handleListBloodRequests)

	r.GET("/bb-responses", h.handleListBankResponses)

	r.GET("/transactions", h.handleTransactions)

	r.GET("/accepted-donors-count", h.handleAcceptedDonorsCount)

	hospital := r.Group("hospital")
	{
		hospital.POST("/store-eligibility-response", h.handleStoreEligibility(models.HospitalEligibilityTable))

		hospital.POST("/get-eligibility-response", h.handleGetEligibility(models.HospitalEligibilityTable))
	}
}

// Bank Module
func (h *Handlers) registerBankRoutes(r *gin.RouterGroup) {
	alerts := r.Group("alerts")
	{
		alerts.POST("/resolve", h.handleResolveAlert)

		alerts.POST("/respond", h.handleRespondAlert)
	}

	r.GET("/responses", middleware.SignVerifyMiddleware(h.cfg.PeerSecret, 0), h.handleListResponses)

	inventory := r.Group("inventory")
	{
		inventory.POST("/update", h.handleUpdateInventory)

		inventory.GET("/export", h.handleExportInventory)
	}

	r.POST("/donors/map", h.handleDonorsMap)
}

// Donor Module
func (h *Handlers) registerDonorRoutes(r *gin.RouterGroup) {
	r.GET("/donors", h.handleListDonors)

	r.GET("/donor/:id", h.handleGetDonor)

	r.POST("/donor/login", h.handleDonorLogin)

	r.GET("/dashboard/:id", h.handleDashboard)

	r.GET("/donation-history/:id", h.handleDonationHistory)

	r.GET("/profile/:id", h.handleProfile)

	r.POST("/store-eligibility-response", h.handleStoreEligibility(models.EligibilityTable))

	r.POST("/receive-eligibility", h.handleGetEligibility(models.EligibilityTable))

	r.POST("/update-eligibility", h.handleUpdateEligibility)
}

// Assistant Module
func (h *Handlers) registerAssistantRoutes(r *gin.RouterGroup) {
	r.POST("/chat", h.handleChat)

	r.POST("/preparation-tips", h.handlePreparationTips)

	r.POST("/post-care", h.handlePostCare)
}

func (h *Handlers) idemStore() middleware.IdemStore {
	if h.cache == nil {
		return nil
	}
	return middleware.NewCacheIdemStore(h.cache)
}
