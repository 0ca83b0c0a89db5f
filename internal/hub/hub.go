// Package hub holds the live WebSocket connections: one agent per device and any
// number of dashboard clients. It delivers commands to agents and fans live
// updates out to dashboards.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"fleetwatch/internal/model"
	"fleetwatch/pkg/interfaces"
	"fleetwatch/pkg/logger"
)

var (
	ErrAgentNotConnected = errors.New("agent not connected")
	ErrSendBufferFull    = errors.New("agent send buffer full")
)

// AgentEvents handlers for agent lifecycle and inbound frames
type AgentEvents interface {
	OnAgentConnected(ctx context.Context, device *model.Device, connectionID string) error
	OnAgentDisconnected(ctx context.Context, device *model.Device) error
	OnDeviceRegister(ctx context.Context, deviceID string, raw json.RawMessage) error
	OnMetrics(ctx context.Context, deviceID string, raw json.RawMessage) error
	OnCommandResult(ctx context.Context, deviceID string, raw json.RawMessage) error
	OnWorkflowCommandResult(ctx context.Context, deviceID string, raw json.RawMessage) error
	OnPong(ctx context.Context, deviceID string) error
}

// Hub connection registry
type Hub struct {
	events   AgentEvents
	presence interfaces.PresenceStore

	mu         sync.RWMutex
	agents     map[string]*agentConn
	dashboards map[*dashboardConn]bool
}

// NewHub creates a hub; presence may be nil
func NewHub(events AgentEvents, presence interfaces.PresenceStore) *Hub {
	return &Hub{
		events:     events,
		presence:   presence,
		agents:     make(map[string]*agentConn),
		dashboards: make(map[*dashboardConn]bool),
	}
}

func encode(event string, payload interface{}) ([]byte, error) {
	return json.Marshal(model.OutboundMessage{Event: event, Data: payload})
}

// SendToAgent queues an event on the device's agent connection
func (h *Hub) SendToAgent(deviceID, event string, payload interface{}) error {
	h.mu.RLock()
	agent := h.agents[deviceID]
	h.mu.RUnlock()
	if agent == nil {
		return fmt.Errorf("%w: %s", ErrAgentNotConnected, deviceID)
	}

	data, err := encode(event, payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", event, err)
	}
	return agent.enqueue(data)
}

// IsAgentConnected reports whether an agent connection is bound to the device
func (h *Hub) IsAgentConnected(deviceID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.agents[deviceID]
	return ok
}

// DisconnectAgent closes the device's agent connection, if any
func (h *Hub) DisconnectAgent(deviceID string) {
	h.mu.RLock()
	agent := h.agents[deviceID]
	h.mu.RUnlock()
	if agent != nil {
		logger.Infof("disconnecting agent of device %s", deviceID)
		agent.close()
	}
}

// ConnectedAgents returns the IDs of devices with a bound agent
func (h *Hub) ConnectedAgents() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.agents))
	for id := range h.agents {
		ids = append(ids, id)
	}
	return ids
}

// EmitToDevice sends to dashboard clients subscribed to the device
func (h *Hub) EmitToDevice(deviceID, event string, payload interface{}) {
	h.fanOut(event, payload, func(c *dashboardConn) bool { return c.subscribed(deviceID) })
}

// Broadcast sends to every dashboard client
func (h *Hub) Broadcast(event string, payload interface{}) {
	h.fanOut(event, payload, func(*dashboardConn) bool { return true })
}

func (h *Hub) fanOut(event string, payload interface{}, match func(c *dashboardConn) bool) {
	h.mu.RLock()
	targets := make([]*dashboardConn, 0, len(h.dashboards))
	for c := range h.dashboards {
		if match(c) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	data, err := encode(event, payload)
	if err != nil {
		logger.Errorf("failed to encode %s: %v", event, err)
		return
	}
	for _, c := range targets {
		if err := c.enqueue(data); err != nil {
			logger.Warn("dropping dashboard update for slow client")
		}
	}
}

// PingAgents sends the application-level ping to every agent; returns how many were reached
func (h *Hub) PingAgents(ctx context.Context) int {
	data, err := encode(model.EventPing, map[string]int64{"timestamp": time.Now().UnixMilli()})
	if err != nil {
		return 0
	}

	h.mu.RLock()
	agents := make([]*agentConn, 0, len(h.agents))
	for _, a := range h.agents {
		agents = append(agents, a)
	}
	h.mu.RUnlock()

	sent := 0
	for _, a := range agents {
		if err := a.enqueue(data); err != nil {
			logger.WarnCtx(ctx, "ping to device %s failed: %v", a.device.ID, err)
			continue
		}
		sent++
	}
	return sent
}

// Close drops every connection
func (h *Hub) Close() {
	h.mu.RLock()
	agents := make([]*agentConn, 0, len(h.agents))
	for _, a := range h.agents {
		agents = append(agents, a)
	}
	dashboards := make([]*dashboardConn, 0, len(h.dashboards))
	for c := range h.dashboards {
		dashboards = append(dashboards, c)
	}
	h.mu.RUnlock()

	for _, a := range agents {
		a.close()
	}
	for _, c := range dashboards {
		c.close()
	}
}

// bindAgent makes a the device's connection and returns the one it replaced
func (h *Hub) bindAgent(a *agentConn) *agentConn {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := h.agents[a.device.ID]
	h.agents[a.device.ID] = a
	return prev
}

// unbindAgent reports whether a was still the bound connection
func (h *Hub) unbindAgent(a *agentConn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.agents[a.device.ID] != a {
		return false
	}
	delete(h.agents, a.device.ID)
	return true
}

func (h *Hub) addDashboard(c *dashboardConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dashboards[c] = true
}

func (h *Hub) removeDashboard(c *dashboardConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.dashboards, c)
}
