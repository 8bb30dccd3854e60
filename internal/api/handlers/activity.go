package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/craftstack/mc-server-manager/internal/logging"
)

// ActivityHandler exposes the operation history
type ActivityHandler struct {
	activity *logging.ActivityLogger
}

// NewActivityHandler creates a new activity handler
func NewActivityHandler(activity *logging.ActivityLogger) *ActivityHandler {
	return &ActivityHandler{activity: activity}
}

// ListActivity returns recent activity, newest first
// GET /api/v1/activity?limit=50
func (h *ActivityHandler) ListActivity(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	activities, err := h.activity.Recent(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load activity", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"activity": activities})
}
