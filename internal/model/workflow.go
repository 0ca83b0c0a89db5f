package model

import (
	"math"
	"time"
)

const (
	DefaultStepDirectory = "/home/pi"
	DefaultStepTimeout   = 60 // seconds
)

// WorkflowStep one shell command of a workflow
type WorkflowStep struct {
	Name            string `json:"name"`
	Command         string `json:"command"`
	Directory       string `json:"directory"`
	ContinueOnError bool   `json:"continueOnError"`
	Timeout         int    `json:"timeout"` // seconds
}

// WithDefaults fills the directory and timeout when unset.
func (s WorkflowStep) WithDefaults() WorkflowStep {
	if s.Directory == "" {
		s.Directory = DefaultStepDirectory
	}
	if s.Timeout <= 0 {
		s.Timeout = DefaultStepTimeout
	}
	return s
}

// Workflow stored multi-step command sequence
type Workflow struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	Category      string         `json:"category"`
	Steps         []WorkflowStep `json:"steps"`
	TargetDevices []string       `json:"targetDevices"`
	CreatedBy     string         `json:"createdBy,omitempty"`
	LastRun       *time.Time     `json:"lastRun,omitempty"`
	RunCount      int64          `json:"runCount"`
	SuccessCount  int64          `json:"successCount"`
	SuccessRate   float64        `json:"successRate"`
	IsActive      bool           `json:"isActive"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// RecordOutcome folds a finished run into the success statistics.
func (w *Workflow) RecordOutcome(success bool) {
	if success {
		w.SuccessCount++
	}
	if w.RunCount <= 0 {
		w.SuccessRate = 0
		return
	}
	w.SuccessRate = math.Round(float64(w.SuccessCount) / float64(w.RunCount) * 100)
}

// WorkflowUpdate editable workflow fields
type WorkflowUpdate struct {
	Name          *string        `json:"name"`
	Description   *string        `json:"description"`
	Category      *string        `json:"category"`
	Steps         []WorkflowStep `json:"steps"`
	TargetDevices []string       `json:"targetDevices"`
}

// QuickActionUpdate editable quick action fields
type QuickActionUpdate struct {
	Name                 *string `json:"name"`
	Description          *string `json:"description"`
	Category             *string `json:"category"`
	Command              *string `json:"command"`
	WorkingDirectory     *string `json:"workingDirectory"`
	RequiresConfirmation *bool   `json:"requiresConfirmation"`
	Icon                 *string `json:"icon"`
}

// WorkflowTemplate built-in starting point for a workflow
type WorkflowTemplate struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Category    string         `json:"category"`
	Steps       []WorkflowStep `json:"steps"`
}

// QuickAction stored single command
type QuickAction struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	Description          string    `json:"description,omitempty"`
	Category             string    `json:"category"`
	Command              string    `json:"command"`
	WorkingDirectory     string    `json:"workingDirectory"`
	RequiresConfirmation bool      `json:"requiresConfirmation"`
	Icon                 string    `json:"icon,omitempty"`
	CreatedBy            string    `json:"createdBy,omitempty"`
	IsActive             bool      `json:"isActive"`
	UsageCount           int64     `json:"usageCount"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}
