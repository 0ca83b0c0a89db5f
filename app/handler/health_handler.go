package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger storage reachability check
type Pinger interface {
	Ping(ctx context.Context) error
}

// AgentCounter reports live agent connections
type AgentCounter interface {
	ConnectedAgents() []string
}

// HealthHandler liveness and storage reachability
type HealthHandler struct {
	storage   Pinger
	agents    AgentCounter
	startedAt time.Time
}

// NewHealthHandler creates health handler
func NewHealthHandler(storage Pinger, agents AgentCounter) *HealthHandler {
	return &HealthHandler{storage: storage, agents: agents, startedAt: time.Now()}
}

// Health reports 200 when storage answers, 503 otherwise
// @Summary Health check
// @Tags health
// @Router /api/health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status, storage := http.StatusOK, "ok"
	if err := h.storage.Ping(ctx); err != nil {
		status, storage = http.StatusServiceUnavailable, err.Error()
	}
	agents := 0
	if h.agents != nil {
		agents = len(h.agents.ConnectedAgents())
	}

	c.JSON(status, Response{
		Success: status == http.StatusOK,
		Data: gin.H{
			"storage":         storage,
			"connectedAgents": agents,
			"uptime":          int64(time.Since(h.startedAt).Seconds()),
			"timestamp":       time.Now().UTC(),
		},
	})
}
