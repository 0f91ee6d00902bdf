package app

import (
	"gorm.io/gorm"

	"github.com/BlindPI/arccm-backend/internal/platform/logger"
	"github.com/BlindPI/arccm-backend/internal/realtime"
	"github.com/BlindPI/arccm-backend/internal/realtime/bus"
	"github.com/BlindPI/arccm-backend/internal/services"
)

type Services struct {
	Auth          services.AuthService
	MetricCatalog services.MetricCatalogService
	Tier          services.ComplianceTierService
	Migrator      services.RequirementMigrator
	Progression   services.ProgressionService
	Notifier      services.ComplianceNotifier
}

// wireRealtime picks the event delivery path. With redis available events
// round-trip through pub/sub so every process sees them; otherwise the
// binder delivers locally and the process is on its own.
func wireRealtime(cfg Config, log *logger.Logger) (bus.Bus, *realtime.ChannelBinder, services.Emitter) {
	if cfg.RedisEnabled {
		b, err := bus.NewRedisBus(log)
		if err == nil {
			binder := realtime.NewChannelBinder(log, b)
			return b, binder, &services.BusEmitter{Bus: b}
		}
		log.Warn("redis bus unavailable, falling back to in-process delivery", "error", err)
	}
	binder := realtime.NewChannelBinder(log, nil)
	return nil, binder, &services.BinderEmitter{Binder: binder}
}

func wireServices(cfg Config, db *gorm.DB, log *logger.Logger, r Repos, emitter services.Emitter) Services {
	notifier := services.NewComplianceNotifier(log, emitter, r.Notification)
	migrator := services.NewRequirementMigrator(db, log, r.Metric, r.Record)
	return Services{
		Auth:          services.NewAuthService(db, log, r.User, r.UserToken, cfg.JWTSecretKey, cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
		MetricCatalog: services.NewMetricCatalogService(db, log, r.Metric, r.Record, notifier),
		Tier:          services.NewComplianceTierService(db, log, r.User, r.Metric, r.Record, r.Audit, notifier),
		Migrator:      migrator,
		Progression:   services.NewProgressionService(db, log, r.User, r.Metric, r.Record, r.Trigger, r.Transition, r.Audit, migrator, notifier),
		Notifier:      notifier,
	}
}
