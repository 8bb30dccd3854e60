package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/craftstack/mc-server-manager/internal/api"
	"github.com/craftstack/mc-server-manager/internal/config"
	"github.com/craftstack/mc-server-manager/internal/console"
	"github.com/craftstack/mc-server-manager/internal/database"
	"github.com/craftstack/mc-server-manager/internal/logging"
	"github.com/craftstack/mc-server-manager/internal/metrics"
	"github.com/craftstack/mc-server-manager/internal/modrinth"
	"github.com/craftstack/mc-server-manager/internal/plugins"
	"github.com/craftstack/mc-server-manager/internal/schedule"
	"github.com/craftstack/mc-server-manager/internal/server"
	"github.com/craftstack/mc-server-manager/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up logging
	if err := setupLogging(cfg); err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logging.Close()

	// Check if running migrations
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		runMigrations(cfg)
		return
	}

	// Initialize database
	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Run migrations automatically
	log.Println("Running database migrations...")
	if err := db.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Migrations completed successfully")

	// Initialize activity logger
	activityLogger := logging.NewActivityLogger(db.DB)

	// Mutable settings manager around the loaded config
	cfgManager := config.NewManager(cfg, config.GetConfigPath())

	// Initialize lifecycle manager
	spawner := &server.JavaSpawner{}
	detector := server.NewHostDetector()
	lifecycle := server.NewLifecycleManager(spawner, detector)

	// Initialize WebSocket hub
	log.Println("Initializing WebSocket hub...")
	hub := websocket.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)
	hub.OnCommand(func(command string) {
		if err := lifecycle.SendCommand(command); err != nil {
			log.Printf("Console command rejected: %v", err)
		}
	})

	// Prometheus collectors
	var m *metrics.Metrics
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		m = metrics.New(
			func() float64 { return float64(lifecycle.Info().UptimeSeconds) },
			func() float64 { return float64(hub.ClientCount()) },
		)
		metricsHandler = m.Handler()

		collector := metrics.NewCollector(m, func() (int32, bool) {
			info := lifecycle.Info()
			return int32(info.PID), info.State == server.StateRunning
		})
		collector.Start()
		defer collector.Stop()
	}

	// Fan server events out to clients, metrics, and the history log
	lifecycle.OnStateChange(func(change server.StateChange) {
		hub.Broadcast("state_change", map[string]interface{}{
			"from":       string(change.From),
			"to":         string(change.To),
			"unexpected": change.Unexpected,
			"reason":     change.Reason,
		})
		if m != nil {
			m.SetState(string(change.To))
		}
		if change.Unexpected {
			if m != nil {
				m.IncUnexpectedExits()
			}
			activityLogger.Log(&logging.Activity{
				ActivityType: logging.ActivityServerCrash,
				Description:  "Server process exited unexpectedly",
				Metadata:     map[string]interface{}{"reason": change.Reason},
			})
		}
		if change.To == server.StateRunning {
			if relay, ok := lifecycle.Relay(); ok {
				streamConsole(relay, hub, m)
			}
		}
	})

	// Modrinth client and plugin install manager
	modrinthClient := modrinth.NewClient()
	pluginManager := plugins.NewManager(cfgManager, db, modrinthClient, activityLogger)
	if m != nil {
		pluginManager.OnResult(func(status plugins.JobStatus) {
			m.IncPluginInstall(string(status))
		})
	}

	// Scheduled restarts
	supervisor := &instrumentedSupervisor{LifecycleManager: lifecycle, metrics: m}
	stopTimeout := time.Duration(cfg.Minecraft.StopTimeout) * time.Second
	scheduler := schedule.NewRunner(supervisor, stopTimeout, activityLogger)
	if err := scheduler.Start(cfg.Schedule.RestartCron); err != nil {
		log.Fatalf("Invalid restart schedule %q: %v", cfg.Schedule.RestartCron, err)
	}
	defer scheduler.Stop()

	log.Println("All components initialized successfully")

	// Set up HTTP server
	router := api.SetupRouter(cfgManager, supervisor, pluginManager, modrinthClient, activityLogger, hub, metricsHandler)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting management API on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	// A supervised child does not outlive the manager
	if lifecycle.State() == server.StateRunning {
		log.Println("Stopping supervised server...")
		if err := lifecycle.Stop(stopTimeout); err != nil {
			log.Printf("Stop during shutdown failed: %v", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Manager exited")
}

// streamConsole forwards a launch's relay subscription into the hub
// until the relay closes on process exit.
func streamConsole(relay *console.Relay, hub *websocket.Hub, m *metrics.Metrics) {
	lines, unsubscribe := relay.Subscribe()
	go func() {
		defer unsubscribe()
		for line := range lines {
			hub.Broadcast("console_line", map[string]interface{}{
				"seq":       line.Seq,
				"text":      line.Text,
				"timestamp": line.Timestamp,
			})
			if m != nil {
				m.IncConsoleLines()
			}
		}
	}()
}

// instrumentedSupervisor counts completed restarts on top of the
// lifecycle manager.
type instrumentedSupervisor struct {
	*server.LifecycleManager
	metrics *metrics.Metrics
}

func (s *instrumentedSupervisor) Restart(timeout time.Duration) error {
	err := s.LifecycleManager.Restart(timeout)
	if err == nil && s.metrics != nil {
		s.metrics.IncRestarts()
	}
	return err
}

func setupLogging(cfg *config.Config) error {
	if cfg != nil && strings.TrimSpace(cfg.Logging.File) != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			return err
		}
	}
	_, err := logging.Init(cfg.Logging)
	return err
}

func runMigrations(cfg *config.Config) {
	log.Println("Running database migrations...")

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("Migrations completed successfully")
}
