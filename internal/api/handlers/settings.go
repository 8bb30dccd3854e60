package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/craftstack/mc-server-manager/internal/config"
	"github.com/craftstack/mc-server-manager/internal/logging"
)

// SettingsHandler handles configuration HTTP requests
type SettingsHandler struct {
	cfg      *config.Manager
	activity *logging.ActivityLogger
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(cfg *config.Manager, activity *logging.ActivityLogger) *SettingsHandler {
	return &SettingsHandler{cfg: cfg, activity: activity}
}

// GetSettings returns the current configuration
// GET /api/v1/settings
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"config": h.cfg.Get()})
}

// UpdateLaunchSettings edits the server launch settings. Changes are
// validated and persisted; a running server picks them up on restart.
// PUT /api/v1/settings/minecraft
func (h *SettingsHandler) UpdateLaunchSettings(c *gin.Context) {
	var req config.MinecraftConfig
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid settings payload", "details": err.Error()})
		return
	}

	err := h.cfg.UpdateMinecraft(func(mc *config.MinecraftConfig) {
		*mc = req
	})
	if h.activity != nil {
		h.activity.LogResult(logging.ActivityConfigUpdate, "Update launch settings", err)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Settings rejected", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"config": h.cfg.Get()})
}

// ImportServer adopts an existing server folder
// POST /api/v1/settings/import
func (h *SettingsHandler) ImportServer(c *gin.Context) {
	var req struct {
		Path string `json:"path" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path is required"})
		return
	}

	result, err := h.cfg.ImportServerDir(req.Path)
	if h.activity != nil {
		h.activity.LogResult(logging.ActivityConfigUpdate, "Import server folder "+req.Path, err)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Import failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"imported": result})
}
