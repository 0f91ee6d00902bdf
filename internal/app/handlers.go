package app

import (
	"gorm.io/gorm"

	"github.com/BlindPI/arccm-backend/internal/http/handlers"
	"github.com/BlindPI/arccm-backend/internal/http/middleware"
	"github.com/BlindPI/arccm-backend/internal/platform/logger"
	"github.com/BlindPI/arccm-backend/internal/realtime"
)

type Handlers struct {
	Health       *handlers.HealthHandler
	Auth         *handlers.AuthHandler
	Metric       *handlers.MetricHandler
	Compliance   *handlers.ComplianceHandler
	Progression  *handlers.ProgressionHandler
	Notification *handlers.NotificationHandler
	Realtime     *handlers.RealtimeHandler
	AuthMW       *middleware.AuthMiddleware
}

func wireHandlers(
	db *gorm.DB,
	log *logger.Logger,
	r Repos,
	s Services,
	hub *realtime.Hub,
	binder *realtime.ChannelBinder,
	presence *realtime.PresenceTracker,
) Handlers {
	return Handlers{
		Health:       handlers.NewHealthHandler(db),
		Auth:         handlers.NewAuthHandler(log, s.Auth),
		Metric:       handlers.NewMetricHandler(log, s.MetricCatalog),
		Compliance:   handlers.NewComplianceHandler(log, s.Tier, r.Record, s.Notifier),
		Progression:  handlers.NewProgressionHandler(log, s.Progression),
		Notification: handlers.NewNotificationHandler(log, r.Notification),
		Realtime:     handlers.NewRealtimeHandler(log, hub, binder, presence),
		AuthMW:       middleware.NewAuthMiddleware(log, s.Auth),
	}
}
