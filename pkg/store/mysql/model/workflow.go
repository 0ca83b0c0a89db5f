package model

import (
	"time"

	domain "fleetwatch/internal/model"
)

// Workflow MySQL model for workflows table
type Workflow struct {
	ID            int64                             `gorm:"primaryKey;autoIncrement" json:"id"`
	WorkflowID    string                            `gorm:"column:workflow_id;type:varchar(64);not null;uniqueIndex:idx_workflow_id_unique" json:"workflow_id"`
	Name          string                            `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Description   string                            `gorm:"column:description;type:text" json:"description"`
	Category      string                            `gorm:"column:category;type:varchar(64);not null;index:idx_category_active,priority:1" json:"category"`
	Steps         JSONColumn[[]domain.WorkflowStep] `gorm:"column:steps;type:json;not null" json:"steps"`
	TargetDevices JSONStringArray                   `gorm:"column:target_devices;type:json" json:"target_devices"`
	CreatedBy     string                            `gorm:"column:created_by;type:varchar(64)" json:"created_by"`
	LastRun       *time.Time                        `gorm:"column:last_run;type:datetime(3)" json:"last_run"`
	RunCount      int64                             `gorm:"column:run_count;not null;default:0" json:"run_count"`
	SuccessCount  int64                             `gorm:"column:success_count;not null;default:0" json:"success_count"`
	SuccessRate   float64                           `gorm:"column:success_rate;type:double;not null;default:0" json:"success_rate"`
	IsActive      bool                              `gorm:"column:is_active;not null;default:true;index:idx_category_active,priority:2" json:"is_active"`
	CreatedAt     time.Time                         `gorm:"column:created_at;type:datetime(3);not null;default:CURRENT_TIMESTAMP(3)" json:"created_at"`
	UpdatedAt     time.Time                         `gorm:"column:updated_at;type:datetime(3);not null;default:CURRENT_TIMESTAMP(3)" json:"updated_at"`
}

// TableName specifies the table name for Workflow
func (Workflow) TableName() string {
	return "workflows"
}

// QuickAction MySQL model for quick_actions table
type QuickAction struct {
	ID                   int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ActionID             string    `gorm:"column:action_id;type:varchar(64);not null;uniqueIndex:idx_action_id_unique" json:"action_id"`
	Name                 string    `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Description          string    `gorm:"column:description;type:text" json:"description"`
	Category             string    `gorm:"column:category;type:varchar(64);not null;index:idx_category_active,priority:1" json:"category"`
	Command              string    `gorm:"column:command;type:text;not null" json:"command"`
	WorkingDirectory     string    `gorm:"column:working_directory;type:varchar(1000)" json:"working_directory"`
	RequiresConfirmation bool      `gorm:"column:requires_confirmation;not null;default:false" json:"requires_confirmation"`
	Icon                 string    `gorm:"column:icon;type:varchar(64)" json:"icon"`
	CreatedBy            string    `gorm:"column:created_by;type:varchar(64)" json:"created_by"`
	IsActive             bool      `gorm:"column:is_active;not null;default:true;index:idx_category_active,priority:2" json:"is_active"`
	UsageCount           int64     `gorm:"column:usage_count;not null;default:0" json:"usage_count"`
	CreatedAt            time.Time `gorm:"column:created_at;type:datetime(3);not null;default:CURRENT_TIMESTAMP(3)" json:"created_at"`
	UpdatedAt            time.Time `gorm:"column:updated_at;type:datetime(3);not null;default:CURRENT_TIMESTAMP(3)" json:"updated_at"`
}

// TableName specifies the table name for QuickAction
func (QuickAction) TableName() string {
	return "quick_actions"
}
