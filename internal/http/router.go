package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/BlindPI/arccm-backend/internal/http/handlers"
	"github.com/BlindPI/arccm-backend/internal/http/middleware"
	"github.com/BlindPI/arccm-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log                 *logger.Logger
	AuthMiddleware      *middleware.AuthMiddleware
	HealthHandler       *handlers.HealthHandler
	AuthHandler         *handlers.AuthHandler
	MetricHandler       *handlers.MetricHandler
	ComplianceHandler   *handlers.ComplianceHandler
	ProgressionHandler  *handlers.ProgressionHandler
	NotificationHandler *handlers.NotificationHandler
	RealtimeHandler     *handlers.RealtimeHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(otelgin.Middleware("arccm-backend"))
	router.Use(middleware.AttachTraceContext())
	router.Use(middleware.RequestLogger(cfg.Log))

	router.GET("/healthcheck", cfg.HealthHandler.Health)

	api := router.Group("/api")
	api.POST("/register", cfg.AuthHandler.Register)
	api.POST("/login", cfg.AuthHandler.Login)
	api.POST("/refresh", cfg.AuthHandler.Refresh)

	protected := api.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())

	protected.POST("/logout", cfg.AuthHandler.Logout)

	// Requirement catalog: reads for everyone, writes for admins.
	protected.GET("/metrics", cfg.MetricHandler.List)
	protected.GET("/metrics/:id", cfg.MetricHandler.Get)
	admin := protected.Group("/")
	admin.Use(cfg.AuthMiddleware.RequireAdmin())
	admin.POST("/metrics", cfg.MetricHandler.Create)
	admin.PATCH("/metrics/:id", cfg.MetricHandler.Update)
	admin.DELETE("/metrics/:id", cfg.MetricHandler.Delete)

	// Compliance tier and records.
	protected.GET("/compliance/tier", cfg.ComplianceHandler.GetTierInfo)
	protected.POST("/compliance/tier/switch", cfg.ComplianceHandler.SwitchTier)
	protected.GET("/compliance/records", cfg.ComplianceHandler.ListRecords)
	admin.POST("/compliance/tier/assign", cfg.ComplianceHandler.AssignTier)
	admin.PATCH("/compliance/records/:id", cfg.ComplianceHandler.UpdateRecordProgress)

	// Progression.
	protected.GET("/progression/report", cfg.ProgressionHandler.GetReport)
	protected.POST("/progression/requests", cfg.ProgressionHandler.RequestProgression)
	protected.GET("/progression/requests", cfg.ProgressionHandler.ListMyRequests)
	admin.GET("/progression/triggers", cfg.ProgressionHandler.ListTriggers)
	admin.POST("/progression/triggers", cfg.ProgressionHandler.CreateTrigger)
	admin.PATCH("/progression/triggers/:id", cfg.ProgressionHandler.UpdateTrigger)
	admin.DELETE("/progression/triggers/:id", cfg.ProgressionHandler.DeleteTrigger)
	admin.GET("/progression/requests/pending", cfg.ProgressionHandler.ListPending)
	admin.POST("/progression/requests/:id/review", cfg.ProgressionHandler.Review)

	// Notifications.
	protected.GET("/notifications", cfg.NotificationHandler.List)
	protected.POST("/notifications/read", cfg.NotificationHandler.MarkRead)

	// Realtime.
	protected.GET("/realtime/stream", cfg.RealtimeHandler.Stream)
	protected.POST("/realtime/subscribe", cfg.RealtimeHandler.Subscribe)
	protected.POST("/realtime/unsubscribe", cfg.RealtimeHandler.Unsubscribe)
	protected.POST("/realtime/presence/join", cfg.RealtimeHandler.JoinPresence)
	protected.GET("/realtime/presence", cfg.RealtimeHandler.PresenceRoster)

	return router
}
