package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"fleetwatch/internal/model"
	"fleetwatch/internal/telemetry"
	"fleetwatch/pkg/interfaces"
	"fleetwatch/pkg/logger"

	"github.com/google/uuid"
)

const apiKeyBytes = 32

// DeviceService device registry: provisioning, connection state, admin edits
type DeviceService struct {
	devices interfaces.DeviceRepository
	gateway interfaces.AgentGateway
	now     func() time.Time
}

// NewDeviceService creates a new device service
func NewDeviceService(devices interfaces.DeviceRepository) *DeviceService {
	return &DeviceService{
		devices: devices,
		now:     time.Now,
	}
}

// SetGateway sets the agent gateway used to drop connections whose credential was revoked
func (s *DeviceService) SetGateway(gateway interfaces.AgentGateway) {
	s.gateway = gateway
}

// CreateDeviceRequest pre-provisioning request
type CreateDeviceRequest struct {
	DeviceName string   `json:"deviceName" binding:"required"`
	MachineID  string   `json:"machineId"`
	Notes      string   `json:"notes"`
	Tags       []string `json:"tags"`
	OwnerID    string   `json:"-"`
}

// GenerateAPIKey returns a random 64 character hex credential
func GenerateAPIKey() (string, error) {
	buf := make([]byte, apiKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate api key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// ResolveOrProvision authenticates an agent handshake. Lookup order is credential,
// then machine ID (rotating the stored credential), then a new device. firstTime
// reports that the device was just created. A machine ID that belongs to a
// deactivated device is rejected, so soft-deleted hosts cannot re-enroll.
func (s *DeviceService) ResolveOrProvision(ctx context.Context, apiKey, machineID, deviceName string) (*model.Device, bool, error) {
	if apiKey == "" {
		return nil, false, ErrMissingCredential
	}
	if machineID == "" {
		return nil, false, ErrMissingMachineID
	}

	device, err := s.devices.FindActiveByAPIKey(ctx, apiKey)
	if err == nil {
		return device, false, nil
	}
	if !errors.Is(err, interfaces.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to look up api key: %w", err)
	}

	device, err = s.devices.FindByMachineID(ctx, machineID)
	switch {
	case err == nil:
		if !device.IsActive {
			return nil, false, ErrDeviceDeactivated
		}
		if err := s.devices.UpdateAPIKey(ctx, device.ID, apiKey); err != nil {
			return nil, false, fmt.Errorf("failed to rotate api key: %w", err)
		}
		device.APIKey = apiKey
		logger.InfoCtx(ctx, "api key rotated for device %s (machine %s)", device.ID, machineID)
		return device, false, nil
	case !errors.Is(err, interfaces.ErrNotFound):
		return nil, false, fmt.Errorf("failed to look up machine id: %w", err)
	}

	now := s.now()
	if deviceName == "" {
		deviceName = machineID
	}
	device = &model.Device{
		ID:          uuid.NewString(),
		MachineID:   machineID,
		DeviceName:  deviceName,
		APIKey:      apiKey,
		LastSeen:    now,
		AlertConfig: model.DefaultAlertConfig(),
		Tags:        []string{},
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.devices.Create(ctx, device); err != nil {
		return nil, false, fmt.Errorf("failed to provision device: %w", err)
	}
	logger.InfoCtx(ctx, "new device registered, id: %s, machine: %s, name: %s", device.ID, machineID, deviceName)
	return device, true, nil
}

// Create pre-provisions a device and returns it with its generated credential
func (s *DeviceService) Create(ctx context.Context, req *CreateDeviceRequest) (*model.Device, error) {
	name := strings.TrimSpace(req.DeviceName)
	if name == "" {
		return nil, fmt.Errorf("%w: deviceName is required", ErrInvalidArgument)
	}
	apiKey, err := GenerateAPIKey()
	if err != nil {
		return nil, err
	}

	now := s.now()
	machineID := strings.TrimSpace(req.MachineID)
	if machineID == "" {
		machineID = fmt.Sprintf("manual-%d", now.UnixMilli())
	}
	tags := req.Tags
	if tags == nil {
		tags = []string{}
	}

	device := &model.Device{
		ID:          uuid.NewString(),
		MachineID:   machineID,
		DeviceName:  name,
		APIKey:      apiKey,
		LastSeen:    now,
		AlertConfig: model.DefaultAlertConfig(),
		OwnerID:     req.OwnerID,
		Notes:       req.Notes,
		Tags:        tags,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.devices.Create(ctx, device); err != nil {
		if errors.Is(err, interfaces.ErrDuplicate) {
			return nil, ErrDuplicateMachineID
		}
		return nil, fmt.Errorf("failed to create device: %w", err)
	}
	return device, nil
}

// Get returns a device without its credential
func (s *DeviceService) Get(ctx context.Context, id string) (*model.Device, error) {
	device, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	device.APIKey = ""
	return device, nil
}

func (s *DeviceService) get(ctx context.Context, id string) (*model.Device, error) {
	device, err := s.devices.Get(ctx, id)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return device, nil
}

// List returns active devices without credentials, ordered by name
func (s *DeviceService) List(ctx context.Context) ([]*model.Device, error) {
	devices, err := s.devices.List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	for _, d := range devices {
		d.APIKey = ""
	}
	return devices, nil
}

// Update applies admin edits; alert rules are merged field by field
func (s *DeviceService) Update(ctx context.Context, id string, upd *model.DeviceUpdate) (*model.Device, error) {
	device, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.DeviceName != nil {
		name := strings.TrimSpace(*upd.DeviceName)
		if name == "" {
			return nil, fmt.Errorf("%w: deviceName cannot be empty", ErrInvalidArgument)
		}
		device.DeviceName = name
	}
	if upd.Notes != nil {
		device.Notes = *upd.Notes
	}
	if upd.Tags != nil {
		device.Tags = upd.Tags
	}
	device.AlertConfig = upd.AlertConfig.Apply(device.AlertConfig)

	if err := s.devices.UpdateProfile(ctx, device); err != nil {
		return nil, fmt.Errorf("failed to update device: %w", err)
	}
	device.APIKey = ""
	return device, nil
}

// Deactivate soft-deletes a device, revokes its credential and drops its agent
func (s *DeviceService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.get(ctx, id); err != nil {
		return err
	}
	revoked, err := GenerateAPIKey()
	if err != nil {
		return err
	}
	if err := s.devices.Deactivate(ctx, id, "revoked-"+revoked); err != nil {
		return fmt.Errorf("failed to deactivate device: %w", err)
	}
	if s.gateway != nil {
		s.gateway.DisconnectAgent(id)
	}
	logger.InfoCtx(ctx, "device %s deactivated", id)
	return nil
}

// RegenerateKey issues a new credential; the agent holding the old one is disconnected
func (s *DeviceService) RegenerateKey(ctx context.Context, id string) (*model.Device, error) {
	device, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !device.IsActive {
		return nil, ErrDeviceDeactivated
	}
	apiKey, err := GenerateAPIKey()
	if err != nil {
		return nil, err
	}
	if err := s.devices.UpdateAPIKey(ctx, id, apiKey); err != nil {
		return nil, fmt.Errorf("failed to update api key: %w", err)
	}
	if s.gateway != nil {
		s.gateway.DisconnectAgent(id)
	}
	device.APIKey = apiKey
	return device, nil
}

// Summary fleet counts and averages over devices that reported the metric
func (s *DeviceService) Summary(ctx context.Context) (*model.DeviceSummary, error) {
	devices, err := s.devices.List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	summary := &model.DeviceSummary{Total: len(devices)}
	var cpu, mem, temp average
	for _, d := range devices {
		if d.IsOnline {
			summary.Online++
		}
		m := d.LastMetrics
		if m == nil {
			continue
		}
		if m.CPU != nil {
			cpu.add(m.CPU.Usage)
		}
		if m.Memory != nil {
			mem.add(m.Memory.UsagePercent)
		}
		if m.Temperature != nil {
			temp.add(m.Temperature.Main)
		}
	}
	summary.Offline = summary.Total - summary.Online
	summary.AvgCPUUsage = cpu.value()
	summary.AvgMemoryUsage = mem.value()
	summary.AvgTemperature = temp.value()
	return summary, nil
}

type average struct {
	sum float64
	n   int
}

func (a *average) add(v *float64) {
	if v == nil {
		return
	}
	a.sum += *v
	a.n++
}

func (a *average) value() float64 {
	if a.n == 0 {
		return 0
	}
	return math.Round(a.sum/float64(a.n)*10) / 10
}

// MarkOnline binds a connection and stamps lastSeen
func (s *DeviceService) MarkOnline(ctx context.Context, id, connectionID string) error {
	if err := s.devices.UpdateConnection(ctx, id, true, connectionID, s.now()); err != nil {
		return fmt.Errorf("failed to mark device online: %w", err)
	}
	return nil
}

// MarkOffline clears the connection and stamps lastSeen
func (s *DeviceService) MarkOffline(ctx context.Context, id string) error {
	if err := s.devices.UpdateConnection(ctx, id, false, "", s.now()); err != nil {
		return fmt.Errorf("failed to mark device offline: %w", err)
	}
	return nil
}

// Touch refreshes lastSeen
func (s *DeviceService) Touch(ctx context.Context, id string) error {
	return s.devices.UpdateLastSeen(ctx, id, s.now())
}

// ApplySystemInfo stores a device_register payload
func (s *DeviceService) ApplySystemInfo(ctx context.Context, id string, raw []byte) (*model.SystemInfo, error) {
	info, name, err := telemetry.DecodeSystemInfo(raw)
	if err != nil {
		return nil, err
	}
	if err := s.devices.UpdateSystemInfo(ctx, id, info, strings.TrimSpace(name)); err != nil {
		return nil, fmt.Errorf("failed to store system info: %w", err)
	}
	return info, nil
}

// ApplyMetrics stores the latest snapshot
func (s *DeviceService) ApplyMetrics(ctx context.Context, id string, snapshot *model.Snapshot) error {
	if err := s.devices.UpdateMetrics(ctx, id, snapshot, s.now()); err != nil {
		return fmt.Errorf("failed to store metrics: %w", err)
	}
	return nil
}

// EvaluateAlertConditions returns the rules breached by the device's last snapshot
func EvaluateAlertConditions(device *model.Device) []model.CandidateAlert {
	if device == nil {
		return nil
	}
	return telemetry.EvaluateThresholds(device.LastMetrics, device.AlertConfig)
}
