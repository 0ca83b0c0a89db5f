package main

import (
	"fmt"
	"net/http"

	"fleetwatch/app/handler"
	"fleetwatch/app/router"
	"fleetwatch/internal/hub"
	"fleetwatch/internal/service"
	"fleetwatch/pkg/config"
	"fleetwatch/pkg/logger"
	"fleetwatch/pkg/notification"
	"fleetwatch/pkg/provider"
	"fleetwatch/pkg/queue"
	redisstore "fleetwatch/pkg/store/redis"

	"github.com/gin-gonic/gin"
)

// initConfig initializes configuration
func (app *Application) initConfig() error {
	if err := config.Init(); err != nil {
		return err
	}
	app.config = config.GlobalConfig
	return nil
}

// initLogger initializes logging
func (app *Application) initLogger() error {
	if err := logger.Init(); err != nil {
		return err
	}
	app.registerCleanup(func() {
		logger.InfoCtx(app.ctx, "Logging system has been closed")
		_ = logger.Sync()
	})
	return nil
}

// initStorage opens the backend selected by storage.driver
func (app *Application) initStorage() error {
	storage, err := provider.OpenStorage(app.ctx, app.config)
	if err != nil {
		return err
	}
	app.storage = storage
	app.registerCleanup(func() {
		if err := storage.Close(); err != nil {
			logger.ErrorCtx(app.ctx, "Failed to close %s storage: %v", storage.Driver, err)
			return
		}
		logger.InfoCtx(app.ctx, "%s storage has been closed", storage.Driver)
	})
	return nil
}

// initRedis connects to Redis when redis.addr is set. Without it presence
// tracking is disabled and background job locks run in single-instance mode.
func (app *Application) initRedis() error {
	if !app.config.Redis.Enabled() {
		logger.WarnCtx(app.ctx, "redis.addr not set, presence tracking and job locks run in single-instance mode")
		return nil
	}
	client, err := redisstore.NewRedisClient(app.ctx, app.config.Redis)
	if err != nil {
		return err
	}
	app.redisClient = client
	app.presence = redisstore.NewPresenceRepository(client, app.config.Redis.PresenceTTL)
	app.registerCleanup(func() {
		_ = client.Close()
		logger.InfoCtx(app.ctx, "Redis connection has been closed")
	})
	return nil
}

// initScheduler creates the step deadline scheduler
func (app *Application) initScheduler() error {
	scheduler, err := queue.NewDeadlineScheduler(app.config)
	if err != nil {
		return err
	}
	app.scheduler = scheduler
	logger.InfoCtx(app.ctx, "step deadlines use the %s backend", app.config.Dispatch.DeadlineBackend)
	app.registerCleanup(func() {
		scheduler.Stop()
		logger.InfoCtx(app.ctx, "Deadline scheduler has been stopped")
	})
	return nil
}

// initServices initializes the service layer
func (app *Application) initServices() error {
	repos := app.storage.Repositories

	app.deviceService = service.NewDeviceService(repos.Devices)
	app.metricsService = service.NewMetricsService(repos.Metrics, repos.Devices)
	app.alertService = service.NewAlertService(repos.Alerts)
	app.dispatchService = service.NewDispatchService(repos, app.scheduler, app.config.Dispatch.StepGrace)
	app.workflowService = service.NewWorkflowService(repos.Workflows, repos.QuickActions)
	app.ingestService = service.NewIngestService(app.deviceService, app.metricsService, app.alertService, app.dispatchService)

	if notifier := notification.NewFeishuNotifier(app.config.Notification); notifier != nil {
		app.ingestService.SetAlertSink(notifier)
		logger.InfoCtx(app.ctx, "new alerts of severity %s and above are sent to Feishu", app.config.Notification.MinSeverity)
	}
	return nil
}

// initHub creates the connection hub and injects it where services need to reach agents and dashboards
func (app *Application) initHub() error {
	app.hub = hub.NewHub(app.ingestService, app.presence)

	app.ingestService.SetNotifier(app.hub)
	app.dispatchService.SetGateway(app.hub)
	app.dispatchService.SetNotifier(app.hub)
	app.deviceService.SetGateway(app.hub)
	return nil
}

// initHandlers initializes handler layer
func (app *Application) initHandlers() error {
	app.deviceHandler = handler.NewDeviceHandler(app.deviceService, app.metricsService, app.alertService, app.dispatchService)
	app.alertHandler = handler.NewAlertHandler(app.alertService)
	app.workflowHandler = handler.NewWorkflowHandler(app.workflowService, app.dispatchService)
	app.wsHandler = handler.NewWSHandler(app.ingestService, app.hub, app.config.Server.JWTSecret)
	app.healthHandler = handler.NewHealthHandler(app.storage, app.hub)
	return nil
}

// initHTTPServer initializes HTTP server
func (app *Application) initHTTPServer() error {
	r := router.NewRouter(app.deviceHandler, app.alertHandler, app.workflowHandler, app.wsHandler, app.healthHandler,
		app.config.Server.JWTSecret, app.config.Server.CORSOrigins)

	gin.SetMode(app.config.Server.Mode)
	app.ginEngine = gin.New()
	r.Setup(app.ginEngine)

	app.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", app.config.Server.Port),
		Handler: app.ginEngine,
	}
	return nil
}
