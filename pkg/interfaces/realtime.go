package interfaces

import (
	"context"
	"time"

	"fleetwatch/internal/model"
)

// AgentGateway delivers messages to connected agents
type AgentGateway interface {
	// SendToAgent queues an event on the device's agent connection.
	// Fails when the agent is not connected or its send buffer is full.
	SendToAgent(deviceID, event string, payload interface{}) error

	// IsAgentConnected reports whether an agent connection is bound to the device
	IsAgentConnected(deviceID string) bool

	// DisconnectAgent closes the device's agent connection, if any
	DisconnectAgent(deviceID string)
}

// Notifier pushes live updates to dashboard clients
type Notifier interface {
	// EmitToDevice sends to clients subscribed to the device
	EmitToDevice(deviceID, event string, payload interface{})

	// Broadcast sends to every connected dashboard client
	Broadcast(event string, payload interface{})
}

// PresenceStore shared view of which devices have a live agent connection
type PresenceStore interface {
	MarkOnline(ctx context.Context, deviceID, connectionID string) error
	MarkOffline(ctx context.Context, deviceID, connectionID string) error
	Refresh(ctx context.Context, deviceIDs []string) error
	OnlineDevices(ctx context.Context) ([]string, error)
}

// DeadlineHandler invoked when a step deadline fires
type DeadlineHandler func(ctx context.Context, deadline model.StepDeadline) error

// DeadlineScheduler fires a callback once a step's execution window has passed
type DeadlineScheduler interface {
	// Schedule arranges for the handler to run after delay
	Schedule(ctx context.Context, deadline model.StepDeadline, delay time.Duration) error

	// Start begins delivering expired deadlines to handler
	Start(handler DeadlineHandler) error

	// Stop releases timers and connections
	Stop()
}

// AlertSink forwards newly raised alerts to an external channel
type AlertSink interface {
	NotifyAlert(ctx context.Context, alert *model.Alert) error
}
