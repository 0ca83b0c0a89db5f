package router

import (
	"time"

	"fleetwatch/app/handler"
	"fleetwatch/app/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Router Router
type Router struct {
	deviceHandler   *handler.DeviceHandler
	alertHandler    *handler.AlertHandler
	workflowHandler *handler.WorkflowHandler
	wsHandler       *handler.WSHandler
	healthHandler   *handler.HealthHandler
	jwtSecret       string
	corsOrigins     []string
}

// NewRouter creates a new Router
func NewRouter(deviceHandler *handler.DeviceHandler, alertHandler *handler.AlertHandler, workflowHandler *handler.WorkflowHandler, wsHandler *handler.WSHandler, healthHandler *handler.HealthHandler, jwtSecret string, corsOrigins []string) *Router {
	return &Router{
		deviceHandler:   deviceHandler,
		alertHandler:    alertHandler,
		workflowHandler: workflowHandler,
		wsHandler:       wsHandler,
		healthHandler:   healthHandler,
		jwtSecret:       jwtSecret,
		corsOrigins:     corsOrigins,
	}
}

func (r *Router) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: len(r.corsOrigins) > 0,
		MaxAge:           12 * time.Hour,
	}
	if len(r.corsOrigins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = r.corsOrigins
	}
	return cfg
}

// Setup sets up routes
func (r *Router) Setup(engine *gin.Engine) {
	engine.Use(middleware.Recovery())
	engine.Use(cors.New(r.corsConfig()))
	engine.Use(middleware.Logger())

	// Agents authenticate with their device credential during the handshake
	engine.GET("/agent/ws", r.wsHandler.Agent)
	engine.GET("/client/ws", r.wsHandler.Dashboard)

	engine.GET("/api/health", r.healthHandler.Health)

	api := engine.Group("/api")
	api.Use(middleware.AuthMiddleware(r.jwtSecret))
	admin := middleware.RequireAdmin()

	devices := api.Group("/devices")
	{
		devices.GET("", r.deviceHandler.List)
		devices.GET("/stats/summary", r.deviceHandler.Summary)
		devices.GET("/:id", r.deviceHandler.Get)
		devices.POST("", admin, r.deviceHandler.Create)
		devices.PUT("/:id", admin, r.deviceHandler.Update)
		devices.DELETE("/:id", admin, r.deviceHandler.Delete)
		devices.POST("/:id/regenerate-key", admin, r.deviceHandler.RegenerateKey)
		devices.GET("/:id/metrics", r.deviceHandler.Metrics)
		devices.GET("/:id/history", r.deviceHandler.History)
		devices.GET("/:id/alerts", r.deviceHandler.Alerts)
		devices.POST("/:id/command", r.deviceHandler.Command)
	}

	alerts := api.Group("/alerts")
	{
		alerts.GET("", r.alertHandler.List)
		alerts.GET("/summary/global", r.alertHandler.Summary)
		alerts.GET("/:id", r.alertHandler.Get)
		alerts.PUT("/:id/acknowledge", r.alertHandler.Acknowledge)
		alerts.PUT("/:id/resolve", r.alertHandler.Resolve)
		alerts.POST("/bulk/acknowledge", r.alertHandler.BulkAcknowledge)
		alerts.POST("/bulk/resolve", r.alertHandler.BulkResolve)
		alerts.DELETE("/:id", admin, r.alertHandler.Delete)
	}

	workflows := api.Group("/workflows")
	{
		workflows.GET("", r.workflowHandler.List)
		workflows.GET("/templates/list", r.workflowHandler.Templates)
		workflows.POST("/run", r.workflowHandler.Run)
		workflows.GET("/:id", r.workflowHandler.Get)
		workflows.POST("", r.workflowHandler.Create)
		workflows.PUT("/:id", r.workflowHandler.Update)
		workflows.DELETE("/:id", r.workflowHandler.Delete)
		workflows.POST("/:id/execute", r.workflowHandler.Execute)
		workflows.GET("/:id/executions", r.workflowHandler.Executions)
	}
	api.GET("/runs/:id", r.workflowHandler.GetRun)

	quickActions := api.Group("/quick-actions")
	{
		quickActions.GET("", r.workflowHandler.ListQuickActions)
		quickActions.GET("/presets/list", r.workflowHandler.QuickActionPresets)
		quickActions.POST("", r.workflowHandler.CreateQuickAction)
		quickActions.PUT("/:id", r.workflowHandler.UpdateQuickAction)
		quickActions.DELETE("/:id", r.workflowHandler.DeleteQuickAction)
		quickActions.POST("/:id/execute", r.workflowHandler.ExecuteQuickAction)
	}
}
