package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fleetwatch/internal/model"
	"fleetwatch/pkg/interfaces"
	"fleetwatch/pkg/logger"

	"github.com/google/uuid"
)

// DispatchService routes commands, quick actions and workflows to agents and folds
// their asynchronous step results into runs
type DispatchService struct {
	devices   interfaces.DeviceRepository
	runs      interfaces.RunRepository
	workflows interfaces.WorkflowRepository
	actions   interfaces.QuickActionRepository
	scheduler interfaces.DeadlineScheduler
	gateway   interfaces.AgentGateway
	notifier  interfaces.Notifier
	grace     time.Duration
	now       func() time.Time
}

// NewDispatchService creates a new dispatch service. grace is added to each step's
// cumulative timeout before the step is declared lost.
func NewDispatchService(repos interfaces.Repositories, scheduler interfaces.DeadlineScheduler, grace time.Duration) *DispatchService {
	return &DispatchService{
		devices:   repos.Devices,
		runs:      repos.Runs,
		workflows: repos.Workflows,
		actions:   repos.QuickActions,
		scheduler: scheduler,
		grace:     grace,
		now:       time.Now,
	}
}

// SetGateway sets the agent gateway (for circular dependency resolution)
func (s *DispatchService) SetGateway(gateway interfaces.AgentGateway) {
	s.gateway = gateway
}

// SetNotifier sets the dashboard notifier
func (s *DispatchService) SetNotifier(notifier interfaces.Notifier) {
	s.notifier = notifier
}

// DispatchSingle pushes one command to a connected agent. The command is tracked as a
// one-step run whose ID is sent as executionId.
func (s *DispatchService) DispatchSingle(ctx context.Context, deviceID, command, directory, actor string) (*model.Run, error) {
	if strings.TrimSpace(command) == "" {
		return nil, fmt.Errorf("%w: command is required", ErrInvalidArgument)
	}
	device, err := s.devices.Get(ctx, deviceID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	if !device.IsActive {
		return nil, ErrDeviceDeactivated
	}
	if !s.connected(deviceID) {
		return nil, ErrDeviceOffline
	}

	def := model.RunDefinition{
		Name: "Command: " + command,
		Kind: model.RunKindCommand,
		Steps: []model.WorkflowStep{{
			Name:      "command",
			Command:   command,
			Directory: directory,
		}},
	}
	run, err := s.dispatch(ctx, def, []string{deviceID}, model.ExecutionModeParallel, actor, nil)
	if err != nil {
		return nil, err
	}
	if rd := run.Device(deviceID); rd != nil && rd.Status == model.RunStatusFailed {
		return run, fmt.Errorf("%w: %s", ErrDeviceOffline, rd.Error)
	}
	return run, nil
}

// DispatchWorkflowRun runs def on the active targets among targetIDs. Offline targets
// fail immediately without delivery; online ones receive every step at once.
func (s *DispatchService) DispatchWorkflowRun(ctx context.Context, def model.RunDefinition, targetIDs []string, mode model.ExecutionMode, actor string) (*model.Run, error) {
	return s.dispatch(ctx, def, targetIDs, mode, actor, nil)
}

// dispatch creates the run, calls created once it is stored, then delivers the steps
func (s *DispatchService) dispatch(ctx context.Context, def model.RunDefinition, targetIDs []string, mode model.ExecutionMode, actor string, created func(run *model.Run)) (*model.Run, error) {
	if len(def.Steps) == 0 {
		return nil, ErrEmptyWorkflow
	}
	steps := make([]model.WorkflowStep, len(def.Steps))
	for i, step := range def.Steps {
		if strings.TrimSpace(step.Command) == "" {
			return nil, fmt.Errorf("%w: step %d has no command", ErrInvalidArgument, i)
		}
		steps[i] = step.WithDefaults()
	}
	if mode == "" {
		mode = model.ExecutionModeParallel
	}

	targets, err := s.resolveTargets(ctx, targetIDs)
	if err != nil {
		return nil, err
	}

	now := s.now()
	run := &model.Run{
		ID:            uuid.NewString(),
		WorkflowID:    def.WorkflowID,
		WorkflowName:  def.Name,
		Kind:          def.Kind,
		Steps:         steps,
		Devices:       make([]model.RunDevice, 0, len(targets)),
		Status:        model.RunStatusPending,
		StartedAt:     now,
		ExecutedBy:    actor,
		ExecutionMode: mode,
	}

	var online []*model.Device
	for _, d := range targets {
		rd := model.RunDevice{
			DeviceID:    d.ID,
			DeviceName:  d.DeviceName,
			Status:      model.RunStatusPending,
			StepResults: []model.StepResult{},
		}
		if s.connected(d.ID) {
			started := now
			rd.Status = model.RunStatusRunning
			rd.StartedAt = &started
			online = append(online, d)
		} else {
			completed := now
			rd.Status = model.RunStatusFailed
			rd.Error = model.OfflineError
			rd.CompletedAt = &completed
		}
		run.Devices = append(run.Devices, rd)
	}
	run.Recompute(now)

	if err := s.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	if created != nil {
		created(run)
	}
	logger.InfoCtx(ctx, "run %s (%s) dispatched to %d device(s), %d offline",
		run.ID, run.WorkflowName, len(targets), len(targets)-len(online))

	for _, d := range online {
		if err := s.deliver(ctx, run, d.ID); err != nil {
			logger.WarnCtx(ctx, "delivery of run %s to device %s failed: %v", run.ID, d.ID, err)
			if updated, ferr := s.failDevice(ctx, run.ID, d.ID, err.Error()); ferr == nil {
				run = updated
			}
		}
	}

	s.publish(run)
	return run, nil
}

// resolveTargets returns the active devices among ids, deduplicated, in request order
func (s *DispatchService) resolveTargets(ctx context.Context, ids []string) ([]*model.Device, error) {
	seen := make(map[string]bool, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return nil, ErrNoValidTargets
	}

	devices, err := s.devices.ListByIDs(ctx, unique, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load target devices: %w", err)
	}
	byID := make(map[string]*model.Device, len(devices))
	for _, d := range devices {
		byID[d.ID] = d
	}

	targets := make([]*model.Device, 0, len(devices))
	for _, id := range unique {
		if d, ok := byID[id]; ok {
			targets = append(targets, d)
		}
	}
	if len(targets) == 0 {
		return nil, ErrNoValidTargets
	}
	return targets, nil
}

// deliver pushes every step and arms its deadline. Deadlines are cumulative because
// the agent runs the steps one after another.
func (s *DispatchService) deliver(ctx context.Context, run *model.Run, deviceID string) error {
	var elapsed time.Duration
	for i, step := range run.Steps {
		idx := i
		cmd := model.ExecuteCommand{
			Command:         step.Command,
			Directory:       step.Directory,
			Timeout:         step.Timeout,
			ContinueOnError: step.ContinueOnError,
			ExecutionID:     run.ID,
			DeviceID:        deviceID,
			StepName:        step.Name,
			StepIndex:       &idx,
		}
		if err := s.gateway.SendToAgent(deviceID, model.EventExecuteCommand, cmd); err != nil {
			return err
		}

		elapsed += time.Duration(step.Timeout) * time.Second
		if s.scheduler == nil {
			continue
		}
		deadline := model.StepDeadline{RunID: run.ID, DeviceID: deviceID, StepIndex: idx}
		if err := s.scheduler.Schedule(ctx, deadline, elapsed+s.grace); err != nil {
			logger.WarnCtx(ctx, "failed to schedule deadline for run %s step %d: %v", run.ID, idx, err)
		}
	}
	return nil
}

func (s *DispatchService) failDevice(ctx context.Context, runID, deviceID, reason string) (*model.Run, error) {
	now := s.now()
	return s.runs.Mutate(ctx, runID, func(run *model.Run) error {
		rd := run.Device(deviceID)
		if rd == nil || rd.Status.IsTerminal() {
			return model.ErrRunDeviceClosed
		}
		rd.Status = model.RunStatusFailed
		rd.Error = reason
		rd.CompletedAt = &now
		run.Recompute(now)
		return nil
	})
}

// RecordStepResult folds one step report into the run. Reports for unknown runs,
// foreign devices, finished sub-records or already-reported steps return an error
// and change nothing.
func (s *DispatchService) RecordStepResult(ctx context.Context, runID, deviceID string, report model.StepReport) (*model.Run, error) {
	var becameTerminal bool
	run, err := s.runs.Mutate(ctx, runID, func(run *model.Run) error {
		wasTerminal := run.Status.IsTerminal()
		if err := run.ApplyStepResult(deviceID, report, s.now()); err != nil {
			return err
		}
		becameTerminal = !wasTerminal && run.Status.IsTerminal()
		return nil
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}

	if becameTerminal {
		logger.InfoCtx(ctx, "run %s finished with status %s in %dms", run.ID, run.Status, run.Duration)
		s.recordWorkflowOutcome(ctx, run)
	}
	s.publish(run)
	return run, nil
}

// HandleDeadline synthesizes a timed-out failure for a step that never reported
func (s *DispatchService) HandleDeadline(ctx context.Context, d model.StepDeadline) error {
	idx := d.StepIndex
	report := model.StepReport{
		StepIndex: &idx,
		Error:     model.StepDeadlineError,
		ExitCode:  -1,
		Success:   false,
		TimedOut:  true,
	}
	_, err := s.RecordStepResult(ctx, d.RunID, d.DeviceID, report)
	switch {
	case err == nil:
		logger.WarnCtx(ctx, "step %d of run %s on device %s timed out", d.StepIndex, d.RunID, d.DeviceID)
		return nil
	case errors.Is(err, model.ErrStepAlreadyDone),
		errors.Is(err, model.ErrRunDeviceClosed),
		errors.Is(err, model.ErrRunDeviceNotFound),
		errors.Is(err, ErrRunNotFound):
		return nil
	default:
		return err
	}
}

func (s *DispatchService) recordWorkflowOutcome(ctx context.Context, run *model.Run) {
	if run.Kind != model.RunKindWorkflow || run.WorkflowID == "" {
		return
	}
	wf, err := s.workflows.Get(ctx, run.WorkflowID)
	if err != nil {
		logger.WarnCtx(ctx, "failed to load workflow %s for run stats: %v", run.WorkflowID, err)
		return
	}
	wf.RecordOutcome(run.Status == model.RunStatusCompleted)
	if err := s.workflows.Update(ctx, wf); err != nil {
		logger.WarnCtx(ctx, "failed to update workflow %s stats: %v", run.WorkflowID, err)
	}
}

// ExecuteWorkflow runs a stored workflow; with no deviceIDs its saved targets are used
func (s *DispatchService) ExecuteWorkflow(ctx context.Context, workflowID string, deviceIDs []string, mode model.ExecutionMode, actor string) (*model.Run, error) {
	wf, err := s.workflows.Get(ctx, workflowID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}
	if !wf.IsActive {
		return nil, ErrWorkflowNotFound
	}
	if len(deviceIDs) == 0 {
		deviceIDs = wf.TargetDevices
	}

	def := model.RunDefinition{
		WorkflowID: wf.ID,
		Name:       wf.Name,
		Kind:       model.RunKindWorkflow,
		Steps:      wf.Steps,
	}
	return s.dispatch(ctx, def, deviceIDs, mode, actor, func(run *model.Run) {
		now := s.now()
		wf.RunCount++
		wf.LastRun = &now
		if run.Status.IsTerminal() {
			wf.RecordOutcome(run.Status == model.RunStatusCompleted)
		}
		if err := s.workflows.Update(ctx, wf); err != nil {
			logger.WarnCtx(ctx, "failed to update workflow %s run count: %v", wf.ID, err)
		}
	})
}

// ExecuteQuickAction pushes a quick action's command to each target and bumps its usage counter
func (s *DispatchService) ExecuteQuickAction(ctx context.Context, actionID string, deviceIDs []string, actor string) (*model.Run, error) {
	action, err := s.actions.Get(ctx, actionID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrQuickActionNotFound
		}
		return nil, fmt.Errorf("failed to get quick action: %w", err)
	}
	if !action.IsActive {
		return nil, ErrQuickActionNotFound
	}

	def := model.RunDefinition{
		Name: action.Name,
		Kind: model.RunKindQuickAction,
		Steps: []model.WorkflowStep{{
			Name:      action.Name,
			Command:   action.Command,
			Directory: action.WorkingDirectory,
		}},
	}
	run, err := s.dispatch(ctx, def, deviceIDs, model.ExecutionModeParallel, actor, nil)
	if err != nil {
		return nil, err
	}
	if err := s.actions.IncrementUsage(ctx, action.ID); err != nil {
		logger.WarnCtx(ctx, "failed to increment usage of quick action %s: %v", action.ID, err)
	}
	return run, nil
}

// GetRun returns one run
func (s *DispatchService) GetRun(ctx context.Context, id string) (*model.Run, error) {
	run, err := s.runs.Get(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns one page of a workflow's runs, newest first
func (s *DispatchService) ListRuns(ctx context.Context, workflowID string, page, limit int) ([]*model.Run, int64, error) {
	runs, total, err := s.runs.ListByWorkflow(ctx, workflowID, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, total, nil
}

// Cleanup deletes runs started more than days ago
func (s *DispatchService) Cleanup(ctx context.Context, days int) (int64, error) {
	return s.runs.DeleteBefore(ctx, s.now().AddDate(0, 0, -days))
}

func (s *DispatchService) connected(deviceID string) bool {
	return s.gateway != nil && s.gateway.IsAgentConnected(deviceID)
}

func (s *DispatchService) publish(run *model.Run) {
	if s.notifier != nil {
		s.notifier.Broadcast(model.EventWorkflowUpdate, model.WorkflowUpdateEvent{Run: run})
	}
}
