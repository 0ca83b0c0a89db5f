package model

import (
	"time"

	domain "fleetwatch/internal/model"
)

// Run MySQL model for workflow_runs table
// Device sub-records and step results live in a JSON column and are rewritten as a whole
// under a row lock.
type Run struct {
	ID            int64                             `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID         string                            `gorm:"column:run_id;type:varchar(64);not null;uniqueIndex:idx_run_id_unique" json:"run_id"`
	WorkflowID    string                            `gorm:"column:workflow_id;type:varchar(64);index:idx_workflow_started,priority:1" json:"workflow_id"`
	WorkflowName  string                            `gorm:"column:workflow_name;type:varchar(255)" json:"workflow_name"`
	Kind          string                            `gorm:"column:kind;type:varchar(32);not null" json:"kind"`
	Steps         JSONColumn[[]domain.WorkflowStep] `gorm:"column:steps;type:json;not null" json:"steps"`
	Devices       JSONColumn[[]domain.RunDevice]    `gorm:"column:devices;type:json;not null" json:"devices"`
	Status        string                            `gorm:"column:status;type:varchar(32);not null;index:idx_status" json:"status"`
	StartedAt     time.Time                         `gorm:"column:started_at;type:datetime(3);not null;index:idx_workflow_started,priority:2;index:idx_started_at" json:"started_at"`
	CompletedAt   *time.Time                        `gorm:"column:completed_at;type:datetime(3)" json:"completed_at"`
	Duration      int64                             `gorm:"column:duration;not null;default:0" json:"duration"`
	ExecutedBy    string                            `gorm:"column:executed_by;type:varchar(64)" json:"executed_by"`
	ExecutionMode string                            `gorm:"column:execution_mode;type:varchar(32);not null" json:"execution_mode"`
	Summary       JSONColumn[domain.RunSummary]     `gorm:"column:summary;type:json" json:"summary"`
}

// TableName specifies the table name for Run
func (Run) TableName() string {
	return "workflow_runs"
}
