package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	ws "github.com/craftstack/mc-server-manager/internal/websocket"
)

// ConsoleHandler handles console WebSocket requests
type ConsoleHandler struct {
	hub        *ws.Hub
	supervisor Supervisor
}

// NewConsoleHandler creates a new console handler
func NewConsoleHandler(hub *ws.Hub, supervisor Supervisor) *ConsoleHandler {
	return &ConsoleHandler{hub: hub, supervisor: supervisor}
}

// HandleConsoleWebSocket streams console output and state changes
// WS /api/v1/ws/console
func (h *ConsoleHandler) HandleConsoleWebSocket(c *gin.Context) {
	upgrader := buildUpgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[Console] Failed to upgrade WebSocket: %v (origin=%s)", err, c.Request.Header.Get("Origin"))
		c.JSON(http.StatusBadRequest, gin.H{"error": "WebSocket upgrade failed", "details": err.Error()})
		return
	}

	client := &ws.Client{
		ID:   uuid.New().String(),
		Conn: conn,
		Send: make(chan *ws.Message, 1024),
		Hub:  h.hub,
	}

	h.hub.Register <- client

	// Orient the client before live lines arrive
	info := h.supervisor.Info()
	client.SendMessage("server_status", map[string]interface{}{
		"state":          string(info.State),
		"pid":            info.PID,
		"uptime_seconds": info.UptimeSeconds,
	})

	go client.WritePump()
	go client.ReadPump()
}

func buildUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}
