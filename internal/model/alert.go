package model

import "time"

// AlertType metric category an alert refers to
type AlertType string

const (
	AlertTypeCPU         AlertType = "cpu"
	AlertTypeTemperature AlertType = "temperature"
	AlertTypeMemory      AlertType = "memory"
	AlertTypeDisk        AlertType = "disk"
	AlertTypeNetwork     AlertType = "network"
	AlertTypeProcess     AlertType = "process"
	AlertTypeSystem      AlertType = "system"
	AlertTypeCustom      AlertType = "custom"
)

// AutoResolvedTypes types whose active alerts are resolved when a tick no longer breaches them
var AutoResolvedTypes = []AlertType{
	AlertTypeCPU,
	AlertTypeTemperature,
	AlertTypeMemory,
	AlertTypeDisk,
}

// Severity alert severity
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// AlertStatus alert lifecycle state
type AlertStatus string

const (
	AlertStatusActive       AlertStatus = "active"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
)

// AutoResolveNote resolution note written when conditions clear on their own
const AutoResolveNote = "Auto-resolved: conditions returned to normal"

// Alert a threshold breach record
type Alert struct {
	ID              string                 `json:"id"`
	DeviceID        string                 `json:"deviceId"`
	MachineID       string                 `json:"machineId"`
	DeviceName      string                 `json:"deviceName"`
	Type            AlertType              `json:"type"`
	Severity        Severity               `json:"severity"`
	Message         string                 `json:"message"`
	Value           float64                `json:"value"`
	Threshold       float64                `json:"threshold"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	Status          AlertStatus            `json:"status"`
	AcknowledgedAt  *time.Time             `json:"acknowledgedAt,omitempty"`
	ResolvedAt      *time.Time             `json:"resolvedAt,omitempty"`
	ResolvedBy      string                 `json:"resolvedBy,omitempty"` // Actor of the last manual transition
	ResolutionNotes string                 `json:"resolutionNotes,omitempty"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

// CandidateAlert a breach found by threshold evaluation, before dedup
type CandidateAlert struct {
	Type      AlertType `json:"type"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	Mount     string    `json:"mount,omitempty"`
}

// AlertTransition target state of a manual acknowledge/resolve
type AlertTransition struct {
	Status AlertStatus
	Actor  string
	At     time.Time
	Notes  string
}

// AlertFilter list query
type AlertFilter struct {
	DeviceID string
	Status   AlertStatus // Empty means any status
	Severity Severity
	Type     AlertType
	Page     int
	Limit    int
}

// AlertSummary counts of active alerts by severity
type AlertSummary struct {
	Total    int64 `json:"total"`
	Info     int64 `json:"info"`
	Warning  int64 `json:"warning"`
	Critical int64 `json:"critical"`
}
