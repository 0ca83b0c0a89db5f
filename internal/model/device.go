package model

import "time"

// Default alert thresholds applied to newly provisioned devices
const (
	DefaultCPUThreshold         = 90.0
	DefaultTemperatureThreshold = 80.0
	DefaultMemoryThreshold      = 85.0
	DefaultDiskThreshold        = 90.0
)

// Device a monitored host
type Device struct {
	ID           string      `json:"id"`
	MachineID    string      `json:"machineId"`
	DeviceName   string      `json:"deviceName"`
	APIKey       string      `json:"apiKey,omitempty"`
	IsOnline     bool        `json:"isOnline"`
	ConnectionID string      `json:"connectionId,omitempty"` // Bound agent connection, empty when offline
	LastSeen     time.Time   `json:"lastSeen"`
	SystemInfo   *SystemInfo `json:"systemInfo,omitempty"`
	LastMetrics  *Snapshot   `json:"lastMetrics,omitempty"`
	AlertConfig  AlertConfig `json:"alertConfig"`
	OwnerID      string      `json:"ownerId,omitempty"`
	Notes        string      `json:"notes,omitempty"`
	Tags         []string    `json:"tags"`
	IsActive     bool        `json:"isActive"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// AlertRule enable flag and threshold for one metric
type AlertRule struct {
	Enabled   bool    `json:"enabled"`
	Threshold float64 `json:"threshold"`
}

// AlertConfig per-device alert rules
type AlertConfig struct {
	CPU         AlertRule `json:"cpu"`
	Temperature AlertRule `json:"temperature"`
	Memory      AlertRule `json:"memory"`
	Disk        AlertRule `json:"disk"`
}

// DefaultAlertConfig returns the rules every new device starts with.
func DefaultAlertConfig() AlertConfig {
	return AlertConfig{
		CPU:         AlertRule{Enabled: true, Threshold: DefaultCPUThreshold},
		Temperature: AlertRule{Enabled: true, Threshold: DefaultTemperatureThreshold},
		Memory:      AlertRule{Enabled: true, Threshold: DefaultMemoryThreshold},
		Disk:        AlertRule{Enabled: true, Threshold: DefaultDiskThreshold},
	}
}

// AlertRulePatch partial update of a single rule
type AlertRulePatch struct {
	Enabled   *bool    `json:"enabled"`
	Threshold *float64 `json:"threshold"`
}

// AlertConfigPatch partial update of a device's alert rules
type AlertConfigPatch struct {
	CPU         *AlertRulePatch `json:"cpu"`
	Temperature *AlertRulePatch `json:"temperature"`
	Memory      *AlertRulePatch `json:"memory"`
	Disk        *AlertRulePatch `json:"disk"`
}

// Apply merges the patch into cfg, leaving unspecified fields untouched.
func (p *AlertConfigPatch) Apply(cfg AlertConfig) AlertConfig {
	if p == nil {
		return cfg
	}
	cfg.CPU = p.CPU.apply(cfg.CPU)
	cfg.Temperature = p.Temperature.apply(cfg.Temperature)
	cfg.Memory = p.Memory.apply(cfg.Memory)
	cfg.Disk = p.Disk.apply(cfg.Disk)
	return cfg
}

func (p *AlertRulePatch) apply(rule AlertRule) AlertRule {
	if p == nil {
		return rule
	}
	if p.Enabled != nil {
		rule.Enabled = *p.Enabled
	}
	if p.Threshold != nil {
		rule.Threshold = *p.Threshold
	}
	return rule
}

// SystemInfo static host description reported on registration
type SystemInfo struct {
	System SystemHardware `json:"system"`
	OS     SystemOS       `json:"os"`
	CPU    SystemCPU      `json:"cpu"`
	Memory SystemMemory   `json:"memory"`
	Disk   []DiskDevice   `json:"disk"`
}

type SystemHardware struct {
	Manufacturer string `json:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty"`
	Version      string `json:"version,omitempty"`
	Serial       string `json:"serial,omitempty"`
	UUID         string `json:"uuid,omitempty"`
}

type SystemOS struct {
	Platform string `json:"platform,omitempty"`
	Distro   string `json:"distro,omitempty"`
	Release  string `json:"release,omitempty"`
	Codename string `json:"codename,omitempty"`
	Kernel   string `json:"kernel,omitempty"`
	Arch     string `json:"arch,omitempty"`
	Hostname string `json:"hostname,omitempty"`
}

type SystemCPU struct {
	Manufacturer  string  `json:"manufacturer,omitempty"`
	Brand         string  `json:"brand,omitempty"`
	Speed         float64 `json:"speed,omitempty"`
	Cores         int     `json:"cores,omitempty"`
	PhysicalCores int     `json:"physicalCores,omitempty"`
	Processors    int     `json:"processors,omitempty"`
}

type SystemMemory struct {
	Total float64 `json:"total,omitempty"`
}

// DiskDevice a physical block device
type DiskDevice struct {
	Name          string  `json:"name,omitempty"`
	Type          string  `json:"type,omitempty"`
	Size          float64 `json:"size,omitempty"`
	InterfaceType string  `json:"interfaceType,omitempty"`
}

// DeviceSummary fleet-wide counts and averages
type DeviceSummary struct {
	Total          int     `json:"total"`
	Online         int     `json:"online"`
	Offline        int     `json:"offline"`
	AvgCPUUsage    float64 `json:"avgCpuUsage"`
	AvgMemoryUsage float64 `json:"avgMemoryUsage"`
	AvgTemperature float64 `json:"avgTemperature"`
}

// DeviceUpdate admin-editable device fields
type DeviceUpdate struct {
	DeviceName  *string           `json:"deviceName"`
	Notes       *string           `json:"notes"`
	Tags        []string          `json:"tags"`
	AlertConfig *AlertConfigPatch `json:"alertConfig"`
}
