package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fleetwatch/internal/model"
	"fleetwatch/internal/telemetry"
	"fleetwatch/pkg/interfaces"
	"fleetwatch/pkg/logger"
)

// IngestService handles agent connection events: handshake, ticks, results
type IngestService struct {
	devices  *DeviceService
	metrics  *MetricsService
	alerts   *AlertService
	dispatch *DispatchService
	notifier interfaces.Notifier
	sink     interfaces.AlertSink
	now      func() time.Time
}

// NewIngestService creates a new ingest service
func NewIngestService(devices *DeviceService, metrics *MetricsService, alerts *AlertService, dispatch *DispatchService) *IngestService {
	return &IngestService{
		devices:  devices,
		metrics:  metrics,
		alerts:   alerts,
		dispatch: dispatch,
		now:      time.Now,
	}
}

// SetNotifier sets the dashboard notifier (for circular dependency resolution)
func (s *IngestService) SetNotifier(notifier interfaces.Notifier) {
	s.notifier = notifier
}

// SetAlertSink sets where new alerts are forwarded besides dashboards
func (s *IngestService) SetAlertSink(sink interfaces.AlertSink) {
	s.sink = sink
}

// Authenticate resolves an agent handshake to a device
func (s *IngestService) Authenticate(ctx context.Context, apiKey, machineID, deviceName string) (*model.Device, bool, error) {
	return s.devices.ResolveOrProvision(ctx, apiKey, machineID, deviceName)
}

// OnAgentConnected marks the device online and announces it
func (s *IngestService) OnAgentConnected(ctx context.Context, device *model.Device, connectionID string) error {
	if err := s.devices.MarkOnline(ctx, device.ID, connectionID); err != nil {
		return err
	}
	s.emitToDevice(device.ID, model.EventDeviceStatus, model.DeviceStatusEvent{DeviceID: device.ID, IsOnline: true})
	s.broadcast(model.EventDeviceConnected, model.DeviceConnectionEvent{DeviceID: device.ID, DeviceName: device.DeviceName})
	return nil
}

// OnAgentDisconnected marks the device offline and announces it
func (s *IngestService) OnAgentDisconnected(ctx context.Context, device *model.Device) error {
	if err := s.devices.MarkOffline(ctx, device.ID); err != nil {
		return err
	}
	s.emitToDevice(device.ID, model.EventDeviceStatus, model.DeviceStatusEvent{DeviceID: device.ID, IsOnline: false})
	s.broadcast(model.EventDeviceDisconnected, model.DeviceConnectionEvent{DeviceID: device.ID, DeviceName: device.DeviceName})
	return nil
}

// OnDeviceRegister stores the static system description
func (s *IngestService) OnDeviceRegister(ctx context.Context, deviceID string, raw json.RawMessage) error {
	info, err := s.devices.ApplySystemInfo(ctx, deviceID, raw)
	if err != nil {
		return err
	}
	logger.InfoCtx(ctx, "device %s registered: %s %s (%s)", deviceID, info.OS.Distro, info.OS.Release, info.OS.Hostname)
	return nil
}

// OnMetrics runs one tick through normalize, store, history, alerting and fan-out
func (s *IngestService) OnMetrics(ctx context.Context, deviceID string, raw json.RawMessage) error {
	snapshot, err := telemetry.Normalize(raw, s.now())
	if err != nil {
		return fmt.Errorf("tick dropped: %w", err)
	}

	device, err := s.devices.get(ctx, deviceID)
	if err != nil {
		return err
	}
	if err := s.devices.ApplyMetrics(ctx, deviceID, snapshot); err != nil {
		return err
	}
	device.LastMetrics = snapshot

	if err := s.metrics.Record(ctx, device, snapshot); err != nil {
		logger.WarnCtx(ctx, "device %s: %v", deviceID, err)
	}

	candidates := EvaluateAlertConditions(device)
	created, err := s.alerts.Process(ctx, device, candidates)
	if err != nil {
		logger.WarnCtx(ctx, "device %s alert processing: %v", deviceID, err)
	}
	ref := model.AlertDeviceRef{ID: device.ID, Name: device.DeviceName, MachineID: device.MachineID}
	for _, alert := range created {
		s.broadcast(model.EventNewAlert, model.NewAlertEvent{Alert: alert, Device: ref})
		s.forwardAlert(ctx, alert)
	}

	if candidates == nil {
		candidates = []model.CandidateAlert{}
	}
	s.emitToDevice(deviceID, model.EventMetricsUpdate, model.MetricsUpdateEvent{
		DeviceID: deviceID,
		Metrics:  snapshot,
		Alerts:   candidates,
	})
	return nil
}

// OnCommandResult relays a result to dashboards and, when it belongs to a run, records it
func (s *IngestService) OnCommandResult(ctx context.Context, deviceID string, raw json.RawMessage) error {
	var result model.CommandResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("malformed command result: %w", err)
	}
	result.DeviceID = deviceID
	s.broadcast(model.EventCommandResultRelay, result)

	if result.ExecutionID == "" {
		return nil
	}
	_, err := s.recordStep(ctx, deviceID, &result)
	return err
}

// OnWorkflowCommandResult records a workflow step result. Agents answer every
// execute_command this way, so single commands and quick actions are also
// relayed to dashboards as command-result.
func (s *IngestService) OnWorkflowCommandResult(ctx context.Context, deviceID string, raw json.RawMessage) error {
	var result model.CommandResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("malformed workflow result: %w", err)
	}
	if result.ExecutionID == "" {
		return fmt.Errorf("workflow result without executionId")
	}
	result.DeviceID = deviceID

	run, err := s.recordStep(ctx, deviceID, &result)
	if err != nil || run == nil {
		return err
	}
	if run.Kind == model.RunKindCommand || run.Kind == model.RunKindQuickAction {
		if result.Command == "" && len(run.Steps) > 0 {
			result.Command = run.Steps[0].Command
		}
		s.broadcast(model.EventCommandResultRelay, result)
	}
	return nil
}

// recordStep returns a nil run when the result arrived late and was dropped
func (s *IngestService) recordStep(ctx context.Context, deviceID string, result *model.CommandResult) (*model.Run, error) {
	run, err := s.dispatch.RecordStepResult(ctx, result.ExecutionID, deviceID, result.StepReport)
	switch {
	case err == nil:
		return run, nil
	case errors.Is(err, model.ErrStepAlreadyDone), errors.Is(err, model.ErrRunDeviceClosed):
		logger.DebugCtx(ctx, "late result ignored, run %s device %s: %v", result.ExecutionID, deviceID, err)
		return nil, nil
	default:
		return nil, fmt.Errorf("run %s: %w", result.ExecutionID, err)
	}
}

// OnPong refreshes lastSeen
func (s *IngestService) OnPong(ctx context.Context, deviceID string) error {
	return s.devices.Touch(ctx, deviceID)
}

// forwardAlert delivers to the sink off the ingest path
func (s *IngestService) forwardAlert(ctx context.Context, alert *model.Alert) {
	if s.sink == nil {
		return
	}
	traceID := logger.TraceID(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(logger.WithTraceID(context.Background(), traceID), 15*time.Second)
		defer cancel()
		if err := s.sink.NotifyAlert(ctx, alert); err != nil {
			logger.WarnCtx(ctx, "alert %s notification failed: %v", alert.ID, err)
		}
	}()
}

func (s *IngestService) emitToDevice(deviceID, event string, payload interface{}) {
	if s.notifier != nil {
		s.notifier.EmitToDevice(deviceID, event, payload)
	}
}

func (s *IngestService) broadcast(event string, payload interface{}) {
	if s.notifier != nil {
		s.notifier.Broadcast(event, payload)
	}
}
