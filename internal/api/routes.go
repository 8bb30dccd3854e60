package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/craftstack/mc-server-manager/internal/api/handlers"
	"github.com/craftstack/mc-server-manager/internal/api/middleware"
	"github.com/craftstack/mc-server-manager/internal/config"
	"github.com/craftstack/mc-server-manager/internal/logging"
	"github.com/craftstack/mc-server-manager/internal/plugins"
	"github.com/craftstack/mc-server-manager/internal/websocket"
)

// SetupRouter configures and returns the HTTP router
func SetupRouter(
	cfg *config.Manager,
	supervisor handlers.Supervisor,
	pluginManager *plugins.Manager,
	searcher handlers.Searcher,
	activity *logging.ActivityLogger,
	hub *websocket.Hub,
	metricsHandler http.Handler,
) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Get().Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS())

	serverHandler := handlers.NewServerHandler(cfg, supervisor, activity)
	consoleHandler := handlers.NewConsoleHandler(hub, supervisor)
	pluginsHandler := handlers.NewPluginsHandler(pluginManager, searcher, hub)
	settingsHandler := handlers.NewSettingsHandler(cfg, activity)
	activityHandler := handlers.NewActivityHandler(activity)

	v1 := router.Group("/api/v1")
	{
		srv := v1.Group("/server")
		{
			srv.GET("/status", serverHandler.GetStatus)
			srv.POST("/start", serverHandler.StartServer)
			srv.POST("/stop", serverHandler.StopServer)
			srv.POST("/restart", serverHandler.RestartServer)
			srv.POST("/command", serverHandler.ExecuteCommand)
		}

		plug := v1.Group("/plugins")
		{
			plug.GET("", pluginsHandler.ListPlugins)
			plug.GET("/search", pluginsHandler.SearchPlugins)
			plug.POST("/install", pluginsHandler.InstallPlugin)
			plug.GET("/installs", pluginsHandler.ListInstalls)
			plug.GET("/installs/:id", pluginsHandler.GetInstall)
			plug.DELETE("/:name", pluginsHandler.DeletePlugin)
		}

		v1.GET("/settings", settingsHandler.GetSettings)
		v1.PUT("/settings/minecraft", settingsHandler.UpdateLaunchSettings)
		v1.POST("/settings/import", settingsHandler.ImportServer)

		v1.GET("/activity", activityHandler.ListActivity)

		v1.GET("/ws/console", consoleHandler.HandleConsoleWebSocket)
		v1.GET("/ws/plugins/jobs/:id", pluginsHandler.HandleInstallJobWebSocket)
	}

	if metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(metricsHandler))
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return router
}
