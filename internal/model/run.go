package model

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"time"
)

// RunKind what started a run
type RunKind string

const (
	RunKindWorkflow    RunKind = "workflow"
	RunKindQuickAction RunKind = "quick_action"
	RunKindCommand     RunKind = "command"
)

// ExecutionMode how a run is meant to progress across devices
type ExecutionMode string

const (
	ExecutionModeParallel   ExecutionMode = "parallel"
	ExecutionModeSequential ExecutionMode = "sequential"
)

// RunStatus status of a run or of one device within it
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusSuccess   RunStatus = "success" // device level only
	RunStatusFailed    RunStatus = "failed"
	RunStatusCompleted RunStatus = "completed" // run level only
	RunStatusPartial   RunStatus = "partial"   // run level only
	RunStatusCancelled RunStatus = "cancelled"
)

// IsTerminal reports whether the status can no longer change.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSuccess, RunStatusFailed, RunStatusCompleted, RunStatusPartial, RunStatusCancelled:
		return true
	}
	return false
}

// OfflineError error recorded on devices that were not connected at dispatch time
const OfflineError = "device offline"

// StepDeadlineError error of a step result synthesized after its deadline passed
const StepDeadlineError = "step deadline exceeded"

var (
	ErrRunDeviceNotFound = errors.New("device is not part of this run")
	ErrRunDeviceClosed   = errors.New("device already finished this run")
	ErrStepAlreadyDone   = errors.New("step already reported")
)

// StepResult outcome of one step on one device
type StepResult struct {
	StepIndex int       `json:"stepIndex"`
	StepName  string    `json:"stepName"`
	Command   string    `json:"command"`
	Output    string    `json:"output"`
	Error     string    `json:"error,omitempty"`
	ExitCode  int       `json:"exitCode"`
	Duration  int64     `json:"duration"` // milliseconds
	Success   bool      `json:"success"`
	TimedOut  bool      `json:"timedOut,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// StepReport result as reported by an agent; StepIndex is optional on the wire
type StepReport struct {
	StepIndex *int     `json:"stepIndex,omitempty"`
	StepName  string   `json:"stepName"`
	Command   string   `json:"command"`
	Output    string   `json:"output"`
	Error     string   `json:"error"`
	ExitCode  ExitCode `json:"exitCode"`
	Duration  int64    `json:"duration"`
	Success   bool     `json:"success"`
	TimedOut  bool     `json:"timedOut,omitempty"`
}

// ExitCode process exit status as sent by agents. Agents report errno names such
// as "ENOENT" when a command cannot start; any non-numeric value decodes as 1.
type ExitCode int

func (c *ExitCode) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*c = 0
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) || math.Abs(t) > math.MaxInt32 {
			*c = 1
		} else {
			*c = ExitCode(t)
		}
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			*c = ExitCode(n)
		} else {
			*c = 1
		}
	default:
		*c = 1
	}
	return nil
}

// RunDevice per-device sub-record of a run
type RunDevice struct {
	DeviceID    string       `json:"deviceId"`
	DeviceName  string       `json:"deviceName"`
	Status      RunStatus    `json:"status"`
	StartedAt   *time.Time   `json:"startedAt,omitempty"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
	StepResults []StepResult `json:"stepResults"`
	Error       string       `json:"error,omitempty"`
}

// RunSummary counters derived from the device sub-records
type RunSummary struct {
	TotalDevices int `json:"totalDevices"`
	SuccessCount int `json:"successCount"`
	FailedCount  int `json:"failedCount"`
	TotalSteps   int `json:"totalSteps"`
}

// Run one execution of a workflow, quick action or single command
type Run struct {
	ID            string         `json:"id"`
	WorkflowID    string         `json:"workflowId,omitempty"`
	WorkflowName  string         `json:"workflowName"`
	Kind          RunKind        `json:"kind"`
	Steps         []WorkflowStep `json:"steps"`
	Devices       []RunDevice    `json:"devices"`
	Status        RunStatus      `json:"status"`
	StartedAt     time.Time      `json:"startedAt"`
	CompletedAt   *time.Time     `json:"completedAt,omitempty"`
	Duration      int64          `json:"duration,omitempty"` // milliseconds
	ExecutedBy    string         `json:"executedBy,omitempty"`
	ExecutionMode ExecutionMode  `json:"executionMode"`
	Summary       RunSummary     `json:"summary"`
}

// Device returns the sub-record for deviceID, or nil.
func (r *Run) Device(deviceID string) *RunDevice {
	for i := range r.Devices {
		if r.Devices[i].DeviceID == deviceID {
			return &r.Devices[i]
		}
	}
	return nil
}

// ApplyStepResult appends a step result to the device's sub-record and recomputes
// the device and run status. Results for closed sub-records or already-reported
// steps are rejected so that late and duplicate reports are ignored.
func (r *Run) ApplyStepResult(deviceID string, report StepReport, now time.Time) error {
	rd := r.Device(deviceID)
	if rd == nil {
		return ErrRunDeviceNotFound
	}
	if rd.Status.IsTerminal() {
		return ErrRunDeviceClosed
	}

	idx := r.resolveStepIndex(rd, report)
	for _, existing := range rd.StepResults {
		if existing.StepIndex == idx {
			return ErrStepAlreadyDone
		}
	}

	res := StepResult{
		StepIndex: idx,
		StepName:  report.StepName,
		Command:   report.Command,
		Output:    report.Output,
		Error:     report.Error,
		ExitCode:  int(report.ExitCode),
		Duration:  report.Duration,
		Success:   report.Success,
		TimedOut:  report.TimedOut,
		Timestamp: now,
	}
	if idx < len(r.Steps) {
		if res.StepName == "" {
			res.StepName = r.Steps[idx].Name
		}
		if res.Command == "" {
			res.Command = r.Steps[idx].Command
		}
	}
	rd.StepResults = append(rd.StepResults, res)

	if len(rd.StepResults) >= len(r.Steps) {
		rd.Status = RunStatusSuccess
		for _, sr := range rd.StepResults {
			if !sr.Success && !r.continueOnError(sr.StepIndex) {
				rd.Status = RunStatusFailed
				break
			}
		}
		completed := now
		rd.CompletedAt = &completed
	}

	r.Recompute(now)
	return nil
}

// resolveStepIndex maps a report to a step: explicit index first, then the first
// unreported step with a matching name, then the next unreported position.
func (r *Run) resolveStepIndex(rd *RunDevice, report StepReport) int {
	if report.StepIndex != nil && *report.StepIndex >= 0 && *report.StepIndex < len(r.Steps) {
		return *report.StepIndex
	}
	reported := make(map[int]bool, len(rd.StepResults))
	for _, sr := range rd.StepResults {
		reported[sr.StepIndex] = true
	}
	if report.StepName != "" {
		for i, step := range r.Steps {
			if step.Name == report.StepName && !reported[i] {
				return i
			}
		}
	}
	for i := range r.Steps {
		if !reported[i] {
			return i
		}
	}
	return len(rd.StepResults)
}

func (r *Run) continueOnError(stepIndex int) bool {
	if stepIndex < 0 || stepIndex >= len(r.Steps) {
		return false
	}
	return r.Steps[stepIndex].ContinueOnError
}

// Recompute derives summary counters and the overall status from the sub-records.
// completedAt and duration are stamped only on the first transition to a terminal status.
func (r *Run) Recompute(now time.Time) {
	var success, failed, running, pending int
	for _, rd := range r.Devices {
		switch rd.Status {
		case RunStatusSuccess:
			success++
		case RunStatusFailed, RunStatusCancelled:
			failed++
		case RunStatusRunning:
			running++
		default:
			pending++
		}
	}

	total := len(r.Devices)
	r.Summary = RunSummary{
		TotalDevices: total,
		SuccessCount: success,
		FailedCount:  failed,
		TotalSteps:   len(r.Steps),
	}

	if r.Status.IsTerminal() {
		return
	}

	switch {
	case total > 0 && success == total:
		r.Status = RunStatusCompleted
	case total > 0 && failed == total:
		r.Status = RunStatusFailed
	case running > 0:
		r.Status = RunStatusRunning
	case pending > 0:
		if pending < total {
			r.Status = RunStatusRunning
		} else {
			r.Status = RunStatusPending
		}
	case success > 0 && failed > 0:
		r.Status = RunStatusPartial
	}

	if r.Status.IsTerminal() && r.CompletedAt == nil {
		completed := now
		r.CompletedAt = &completed
		r.Duration = now.Sub(r.StartedAt).Milliseconds()
	}
}

// RunDefinition what to execute, independent of where it came from
type RunDefinition struct {
	WorkflowID string
	Name       string
	Kind       RunKind
	Steps      []WorkflowStep
}

// StepDeadline identifies the step whose execution window is being tracked
type StepDeadline struct {
	RunID     string `json:"runId"`
	DeviceID  string `json:"deviceId"`
	StepIndex int    `json:"stepIndex"`
}
