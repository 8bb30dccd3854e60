package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/craftstack/mc-server-manager/internal/config"
	"github.com/craftstack/mc-server-manager/internal/logging"
	"github.com/craftstack/mc-server-manager/internal/server"
)

// Supervisor is the slice of the lifecycle manager the HTTP layer
// depends on.
type Supervisor interface {
	State() server.RunState
	Info() server.Info
	Start(cfg server.LaunchConfig) error
	Stop(timeout time.Duration) error
	Restart(timeout time.Duration) error
	SendCommand(command string) error
}

// ServerHandler handles server lifecycle HTTP requests
type ServerHandler struct {
	cfg        *config.Manager
	supervisor Supervisor
	activity   *logging.ActivityLogger
}

// NewServerHandler creates a new server handler
func NewServerHandler(cfg *config.Manager, supervisor Supervisor, activity *logging.ActivityLogger) *ServerHandler {
	return &ServerHandler{
		cfg:        cfg,
		supervisor: supervisor,
		activity:   activity,
	}
}

// GetStatus returns the supervisor's view of the server
// GET /api/v1/server/status
func (h *ServerHandler) GetStatus(c *gin.Context) {
	info := h.supervisor.Info()
	c.JSON(http.StatusOK, gin.H{
		"state":          string(info.State),
		"pid":            info.PID,
		"uptime_seconds": info.UptimeSeconds,
		"started_at":     info.StartedAt,
	})
}

// StartServer launches the server from the current configuration
// POST /api/v1/server/start
func (h *ServerHandler) StartServer(c *gin.Context) {
	launch := LaunchConfigFrom(h.cfg.Minecraft())

	err := h.supervisor.Start(launch)
	h.logActivity(logging.ActivityServerStart, fmt.Sprintf("Start server (%s)", launch.JarPath), err)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Server started", "state": string(h.supervisor.State())})
}

// StopServer gracefully stops the server
// POST /api/v1/server/stop
func (h *ServerHandler) StopServer(c *gin.Context) {
	err := h.supervisor.Stop(h.stopTimeout())
	h.logActivity(logging.ActivityServerStop, "Stop server", err)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Server stopped", "state": string(h.supervisor.State())})
}

// RestartServer stops and relaunches with the previous launch settings
// POST /api/v1/server/restart
func (h *ServerHandler) RestartServer(c *gin.Context) {
	err := h.supervisor.Restart(h.stopTimeout())
	h.logActivity(logging.ActivityServerRestart, "Restart server", err)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Server restarted", "state": string(h.supervisor.State())})
}

// ExecuteCommand writes a console command to the server's stdin
// POST /api/v1/server/command
func (h *ServerHandler) ExecuteCommand(c *gin.Context) {
	var req struct {
		Command string `json:"command" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Command is required"})
		return
	}

	err := h.supervisor.SendCommand(req.Command)
	h.logActivity(logging.ActivityCommandExecute, fmt.Sprintf("Execute command: %s", req.Command), err)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Command sent"})
}

func (h *ServerHandler) stopTimeout() time.Duration {
	seconds := h.cfg.Minecraft().StopTimeout
	if seconds <= 0 {
		seconds = 30
	}
	return time.Duration(seconds) * time.Second
}

func (h *ServerHandler) logActivity(activityType, description string, err error) {
	if h.activity != nil {
		h.activity.LogResult(activityType, description, err)
	}
}

// LaunchConfigFrom maps the stored launch settings onto a spawn request.
func LaunchConfigFrom(mc config.MinecraftConfig) server.LaunchConfig {
	return server.LaunchConfig{
		JavaPath:    mc.JavaPath,
		JarPath:     mc.JarPath,
		WorkingDir:  mc.ServerDir,
		MemoryMB:    mc.MemoryMB,
		MinMemoryMB: mc.MinMemoryMB,
		GamePort:    mc.GamePort,
	}
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, server.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, server.ErrAlreadyRunning),
		errors.Is(err, server.ErrNotRunning),
		errors.Is(err, server.ErrNotStopped),
		errors.Is(err, server.ErrNoPreviousLaunch):
		return http.StatusConflict
	case errors.Is(err, server.ErrJarNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
