package model

import (
	"time"

	domain "fleetwatch/internal/model"
)

// Device MySQL model for devices table
type Device struct {
	ID           int64                          `gorm:"primaryKey;autoIncrement" json:"id"`
	DeviceID     string                         `gorm:"column:device_id;type:varchar(64);not null;uniqueIndex:idx_device_id_unique" json:"device_id"`
	MachineID    string                         `gorm:"column:machine_id;type:varchar(255);not null;uniqueIndex:idx_machine_id_unique" json:"machine_id"`
	DeviceName   string                         `gorm:"column:device_name;type:varchar(255);not null;index:idx_device_name" json:"device_name"`
	APIKey       string                         `gorm:"column:api_key;type:varchar(128);not null;uniqueIndex:idx_api_key_unique" json:"-"`
	IsOnline     bool                           `gorm:"column:is_online;not null;default:false" json:"is_online"`
	ConnectionID string                         `gorm:"column:connection_id;type:varchar(64)" json:"connection_id"`
	LastSeen     time.Time                      `gorm:"column:last_seen;type:datetime(3);not null;default:CURRENT_TIMESTAMP(3)" json:"last_seen"`
	SystemInfo   JSONColumn[*domain.SystemInfo] `gorm:"column:system_info;type:json" json:"system_info"`
	LastMetrics  JSONColumn[*domain.Snapshot]   `gorm:"column:last_metrics;type:json" json:"last_metrics"`
	AlertConfig  JSONColumn[domain.AlertConfig] `gorm:"column:alert_config;type:json;not null" json:"alert_config"`
	OwnerID      string                         `gorm:"column:owner_id;type:varchar(64)" json:"owner_id"`
	Notes        string                         `gorm:"column:notes;type:text" json:"notes"`
	Tags         JSONStringArray                `gorm:"column:tags;type:json" json:"tags"`
	IsActive     bool                           `gorm:"column:is_active;not null;default:true;index:idx_is_active" json:"is_active"`
	CreatedAt    time.Time                      `gorm:"column:created_at;type:datetime(3);not null;default:CURRENT_TIMESTAMP(3)" json:"created_at"`
	UpdatedAt    time.Time                      `gorm:"column:updated_at;type:datetime(3);not null;default:CURRENT_TIMESTAMP(3)" json:"updated_at"`
}

// TableName specifies the table name for Device
func (Device) TableName() string {
	return "devices"
}
