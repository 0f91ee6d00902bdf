package app

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/BlindPI/arccm-backend/internal/db"
	apphttp "github.com/BlindPI/arccm-backend/internal/http"
	"github.com/BlindPI/arccm-backend/internal/observability"
	"github.com/BlindPI/arccm-backend/internal/platform/logger"
	"github.com/BlindPI/arccm-backend/internal/realtime"
	"github.com/BlindPI/arccm-backend/internal/realtime/bus"
)

type App struct {
	Log    *logger.Logger
	Config Config
	Router *gin.Engine

	hub          *realtime.Hub
	binder       *realtime.ChannelBinder
	bus          bus.Bus
	otelShutdown func(context.Context) error
}

func New() (*App, error) {
	log, err := logger.New(os.Getenv("ENVIRONMENT"))
	if err != nil {
		return nil, err
	}

	cfg := LoadConfig(log)

	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "arccm-backend",
		Environment: cfg.Environment,
		Version:     cfg.ServiceVersion,
	})

	pg, err := db.NewPostgresService(log)
	if err != nil {
		return nil, err
	}
	if err := pg.AutoMigrateAll(); err != nil {
		return nil, err
	}
	gdb := pg.DB()

	hub := realtime.NewHub(log)
	presence := realtime.NewPresenceTracker(log)
	eventBus, binder, emitter := wireRealtime(cfg, log)

	repos := wireRepos(gdb, log)
	svcs := wireServices(cfg, gdb, log, repos, emitter)
	h := wireHandlers(gdb, log, repos, svcs, hub, binder, presence)

	router := apphttp.NewRouter(apphttp.RouterConfig{
		Log:                 log,
		AuthMiddleware:      h.AuthMW,
		HealthHandler:       h.Health,
		AuthHandler:         h.Auth,
		MetricHandler:       h.Metric,
		ComplianceHandler:   h.Compliance,
		ProgressionHandler:  h.Progression,
		NotificationHandler: h.Notification,
		RealtimeHandler:     h.Realtime,
	})

	return &App{
		Log:          log,
		Config:       cfg,
		Router:       router,
		hub:          hub,
		binder:       binder,
		bus:          eventBus,
		otelShutdown: otelShutdown,
	}, nil
}

func (a *App) Run(addr string) error {
	a.Log.Info("Starting HTTP server", "addr", addr)
	return a.Router.Run(addr)
}

func (a *App) Close() {
	if a.binder != nil {
		a.binder.Close()
	}
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			a.Log.Warn("Failed to close event bus", "error", err)
		}
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(context.Background()); err != nil {
			a.Log.Warn("Failed to shut down tracing", "error", err)
		}
	}
	a.Log.Sync()
}
