package mysql

import (
	"context"
	"fmt"
	"time"

	"fleetwatch/internal/model"
	dbmodel "fleetwatch/pkg/store/mysql/model"
)

// DeviceRepository handles device persistence in MySQL
type DeviceRepository struct {
	ds *Datastore
}

// NewDeviceRepository creates a new device repository
func NewDeviceRepository(ds *Datastore) *DeviceRepository {
	return &DeviceRepository{ds: ds}
}

// Create inserts a device; duplicate machine IDs or credentials return interfaces.ErrDuplicate
func (r *DeviceRepository) Create(ctx context.Context, device *model.Device) error {
	if err := r.ds.DB(ctx).Create(FromDeviceDomain(device)).Error; err != nil {
		return translateError(err)
	}
	return nil
}

func (r *DeviceRepository) first(ctx context.Context, query string, args ...interface{}) (*model.Device, error) {
	var row Device
	if err := r.ds.DB(ctx).Where(query, args...).First(&row).Error; err != nil {
		return nil, translateError(err)
	}
	return ToDeviceDomain(&row), nil
}

// Get retrieves a device by ID
func (r *DeviceRepository) Get(ctx context.Context, id string) (*model.Device, error) {
	return r.first(ctx, "device_id = ?", id)
}

// FindActiveByAPIKey retrieves an active device by credential
func (r *DeviceRepository) FindActiveByAPIKey(ctx context.Context, apiKey string) (*model.Device, error) {
	return r.first(ctx, "api_key = ? AND is_active = ?", apiKey, true)
}

// FindByMachineID retrieves a device by machine ID, active or not
func (r *DeviceRepository) FindByMachineID(ctx context.Context, machineID string) (*model.Device, error) {
	return r.first(ctx, "machine_id = ?", machineID)
}

// List lists devices ordered by name
func (r *DeviceRepository) List(ctx context.Context, activeOnly bool) ([]*model.Device, error) {
	var rows []*Device
	query := r.ds.DB(ctx).Model(&Device{})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Order("device_name ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return toDevices(rows), nil
}

// ListByIDs retrieves the listed devices
func (r *DeviceRepository) ListByIDs(ctx context.Context, ids []string, activeOnly bool) ([]*model.Device, error) {
	if len(ids) == 0 {
		return []*model.Device{}, nil
	}
	var rows []*Device
	query := r.ds.DB(ctx).Where("device_id IN ?", ids)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list devices by id: %w", err)
	}
	return toDevices(rows), nil
}

func toDevices(rows []*Device) []*model.Device {
	out := make([]*model.Device, 0, len(rows))
	for _, row := range rows {
		out = append(out, ToDeviceDomain(row))
	}
	return out
}

// updateFields updates specific fields of a device by device_id
func (r *DeviceRepository) updateFields(ctx context.Context, id string, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now().UTC()
	return r.ds.DB(ctx).Model(&Device{}).
		Where("device_id = ?", id).
		Updates(updates).Error
}

// UpdateAPIKey replaces the device credential
func (r *DeviceRepository) UpdateAPIKey(ctx context.Context, id, apiKey string) error {
	return translateError(r.updateFields(ctx, id, map[string]interface{}{"api_key": apiKey}))
}

// UpdateConnection updates the online flag, bound connection and last seen time
func (r *DeviceRepository) UpdateConnection(ctx context.Context, id string, online bool, connectionID string, lastSeen time.Time) error {
	return r.updateFields(ctx, id, map[string]interface{}{
		"is_online":     online,
		"connection_id": connectionID,
		"last_seen":     lastSeen,
	})
}

// UpdateLastSeen refreshes last seen time only
func (r *DeviceRepository) UpdateLastSeen(ctx context.Context, id string, lastSeen time.Time) error {
	return r.updateFields(ctx, id, map[string]interface{}{"last_seen": lastSeen})
}

// UpdateSystemInfo stores registration facts; empty name keeps the current one
func (r *DeviceRepository) UpdateSystemInfo(ctx context.Context, id string, info *model.SystemInfo, deviceName string) error {
	updates := map[string]interface{}{
		"system_info": dbmodel.NewJSONColumn(info),
	}
	if deviceName != "" {
		updates["device_name"] = deviceName
	}
	return r.updateFields(ctx, id, updates)
}

// UpdateMetrics stores the latest snapshot
func (r *DeviceRepository) UpdateMetrics(ctx context.Context, id string, snapshot *model.Snapshot, lastSeen time.Time) error {
	return r.updateFields(ctx, id, map[string]interface{}{
		"last_metrics": dbmodel.NewJSONColumn(snapshot),
		"last_seen":    lastSeen,
	})
}

// UpdateProfile stores admin-editable fields
func (r *DeviceRepository) UpdateProfile(ctx context.Context, device *model.Device) error {
	return r.updateFields(ctx, device.ID, map[string]interface{}{
		"device_name":  device.DeviceName,
		"notes":        device.Notes,
		"tags":         JSONStringArray(device.Tags),
		"alert_config": dbmodel.NewJSONColumn(device.AlertConfig),
	})
}

// Deactivate soft-deletes the device and revokes its credential
func (r *DeviceRepository) Deactivate(ctx context.Context, id, revokedAPIKey string) error {
	return r.updateFields(ctx, id, map[string]interface{}{
		"is_active":     false,
		"is_online":     false,
		"connection_id": "",
		"api_key":       revokedAPIKey,
	})
}
