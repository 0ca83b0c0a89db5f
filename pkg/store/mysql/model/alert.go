package model

import "time"

// Alert MySQL model for alerts table
type Alert struct {
	ID              int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	AlertID         string     `gorm:"column:alert_id;type:varchar(64);not null;uniqueIndex:idx_alert_id_unique" json:"alert_id"`
	DeviceID        string     `gorm:"column:device_id;type:varchar(64);not null;index:idx_device_type_status,priority:1" json:"device_id"`
	MachineID       string     `gorm:"column:machine_id;type:varchar(255)" json:"machine_id"`
	DeviceName      string     `gorm:"column:device_name;type:varchar(255)" json:"device_name"`
	Type            string     `gorm:"column:type;type:varchar(32);not null;index:idx_device_type_status,priority:2" json:"type"`
	Severity        string     `gorm:"column:severity;type:varchar(16);not null;index:idx_severity" json:"severity"`
	Message         string     `gorm:"column:message;type:varchar(1000)" json:"message"`
	Value           float64    `gorm:"column:value;type:double" json:"value"`
	Threshold       float64    `gorm:"column:threshold;type:double" json:"threshold"`
	Metadata        JSONMap    `gorm:"column:metadata;type:json" json:"metadata"`
	Status          string     `gorm:"column:status;type:varchar(32);not null;index:idx_device_type_status,priority:3;index:idx_status" json:"status"`
	AcknowledgedAt  *time.Time `gorm:"column:acknowledged_at;type:datetime(3)" json:"acknowledged_at"`
	ResolvedAt      *time.Time `gorm:"column:resolved_at;type:datetime(3);index:idx_resolved_at" json:"resolved_at"`
	ResolvedBy      string     `gorm:"column:resolved_by;type:varchar(64)" json:"resolved_by"`
	ResolutionNotes string     `gorm:"column:resolution_notes;type:text" json:"resolution_notes"`
	CreatedAt       time.Time  `gorm:"column:created_at;type:datetime(3);not null;default:CURRENT_TIMESTAMP(3);index:idx_created_at" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;type:datetime(3);not null;default:CURRENT_TIMESTAMP(3)" json:"updated_at"`
}

// TableName specifies the table name for Alert
func (Alert) TableName() string {
	return "alerts"
}

// SeverityCount one row of an active-alert count grouped by severity
type SeverityCount struct {
	Severity string `gorm:"column:severity"`
	Count    int64  `gorm:"column:count"`
}
