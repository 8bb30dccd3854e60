package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/craftstack/mc-server-manager/internal/modrinth"
	"github.com/craftstack/mc-server-manager/internal/plugins"
	ws "github.com/craftstack/mc-server-manager/internal/websocket"
)

// Searcher is the slice of the Modrinth client the search endpoint
// depends on.
type Searcher interface {
	Search(ctx context.Context, query string) ([]modrinth.Project, error)
}

// PluginsHandler handles plugin management HTTP requests
type PluginsHandler struct {
	manager  *plugins.Manager
	searcher Searcher
	hub      *ws.Hub
}

// NewPluginsHandler creates a new plugins handler
func NewPluginsHandler(manager *plugins.Manager, searcher Searcher, hub *ws.Hub) *PluginsHandler {
	return &PluginsHandler{manager: manager, searcher: searcher, hub: hub}
}

// ListPlugins lists the jars currently in the plugins directory
// GET /api/v1/plugins
func (h *PluginsHandler) ListPlugins(c *gin.Context) {
	files, err := h.manager.Directory().List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read plugins directory", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"plugins": files})
}

// SearchPlugins queries Modrinth for installable plugins
// GET /api/v1/plugins/search?query=...
func (h *PluginsHandler) SearchPlugins(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	hits, err := h.searcher.Search(ctx, query)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Search failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"hits": hits})
}

// InstallPlugin queues a background install of a Modrinth project
// POST /api/v1/plugins/install
func (h *PluginsHandler) InstallPlugin(c *gin.Context) {
	var req struct {
		ProjectID string `json:"project_id" binding:"required"`
		Title     string `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "project_id is required"})
		return
	}

	job := h.manager.Install(req.ProjectID, req.Title)
	c.JSON(http.StatusAccepted, gin.H{"job": job})
}

// GetInstall returns one install job
// GET /api/v1/plugins/installs/:id
func (h *PluginsHandler) GetInstall(c *gin.Context) {
	job, ok := h.manager.GetJob(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": job})
}

// ListInstalls returns recent install history
// GET /api/v1/plugins/installs
func (h *PluginsHandler) ListInstalls(c *gin.Context) {
	jobs, err := h.manager.History(50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load install history", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"installs": jobs})
}

// DeletePlugin removes a jar from the plugins directory
// DELETE /api/v1/plugins/:name
func (h *PluginsHandler) DeletePlugin(c *gin.Context) {
	name := c.Param("name")
	if err := h.manager.Delete(name); err != nil {
		if errors.Is(err, plugins.ErrPluginNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Plugin not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete plugin", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Plugin deleted"})
}

// HandleInstallJobWebSocket streams install job progress
// WS /api/v1/ws/plugins/jobs/:id
func (h *PluginsHandler) HandleInstallJobWebSocket(c *gin.Context) {
	jobID := c.Param("id")
	job, ok := h.manager.GetJob(jobID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}

	upgrader := buildUpgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := &ws.Client{
		ID:   fmt.Sprintf("plugin-job-%s-%d", jobID, time.Now().UnixNano()),
		Conn: conn,
		Send: make(chan *ws.Message, 256),
		Hub:  h.hub,
	}

	h.hub.Register <- client

	sendEvent := func(event, data string) {
		_ = client.SendMessage("plugin_job_event", map[string]interface{}{
			"job_id": jobID,
			"event":  event,
			"data":   data,
		})
	}

	sendEvent("status", string(job.Status))

	ch, unsubscribe := h.manager.Subscribe(jobID)
	go func() {
		defer unsubscribe()
		for ev := range ch {
			sendEvent(ev.Event, ev.Data)
			if ev.Event == "status" && (ev.Data == string(plugins.StatusComplete) || ev.Data == string(plugins.StatusFailed)) {
				return
			}
		}
	}()

	go client.WritePump()
	go client.ReadPump()
}
