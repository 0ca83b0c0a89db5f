package model

import "encoding/json"

// Agent → server events
const (
	EventDeviceRegister        = "device_register"
	EventMetrics               = "metrics"
	EventCommandResult         = "command_result"
	EventWorkflowCommandResult = "workflow_command_result"
	EventPong                  = "pong"
	EventDeviceDisconnect      = "device_disconnect"
)

// Server → agent events
const (
	EventExecuteCommand = "execute_command"
	EventPing           = "ping"
)

// Dashboard client → server events
const (
	EventSubscribeDevice   = "subscribe-device"
	EventUnsubscribeDevice = "unsubscribe-device"
)

// Server → dashboard events
const (
	EventDeviceStatus       = "device-status"
	EventMetricsUpdate      = "metrics-update"
	EventDeviceConnected    = "device-connected"
	EventDeviceDisconnected = "device-disconnected"
	EventNewAlert           = "new-alert"
	EventCommandResultRelay = "command-result"
	EventWorkflowUpdate     = "workflow-update"
)

// Envelope inbound frame; Data is decoded per event
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// OutboundMessage outbound frame
type OutboundMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// ExecuteCommand payload pushed to an agent for each step
type ExecuteCommand struct {
	Command         string `json:"command"`
	Directory       string `json:"directory"`
	Timeout         int    `json:"timeout"`
	ContinueOnError bool   `json:"continueOnError"`
	ExecutionID     string `json:"executionId,omitempty"`
	DeviceID        string `json:"deviceId"`
	StepName        string `json:"stepName,omitempty"`
	StepIndex       *int   `json:"stepIndex,omitempty"`
}

// CommandResult result frame sent by an agent
type CommandResult struct {
	ExecutionID string `json:"executionId,omitempty"`
	DeviceID    string `json:"deviceId,omitempty"`
	StepReport
}

// DeviceStatusEvent payload of device-status
type DeviceStatusEvent struct {
	DeviceID string `json:"deviceId"`
	IsOnline bool   `json:"isOnline"`
}

// DeviceConnectionEvent payload of device-connected / device-disconnected
type DeviceConnectionEvent struct {
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName"`
}

// MetricsUpdateEvent payload of metrics-update
type MetricsUpdateEvent struct {
	DeviceID string           `json:"deviceId"`
	Metrics  *Snapshot        `json:"metrics"`
	Alerts   []CandidateAlert `json:"alerts"`
}

// AlertDeviceRef device reference embedded in new-alert
type AlertDeviceRef struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	MachineID string `json:"machineId"`
}

// NewAlertEvent payload of new-alert
type NewAlertEvent struct {
	Alert  *Alert         `json:"alert"`
	Device AlertDeviceRef `json:"device"`
}

// WorkflowUpdateEvent payload of workflow-update
type WorkflowUpdateEvent struct {
	Run *Run `json:"run"`
}
