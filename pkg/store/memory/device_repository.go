package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"fleetwatch/internal/model"
	"fleetwatch/pkg/interfaces"
)

// DeviceRepository in-memory devices
type DeviceRepository struct {
	s *Store
}

func (r *DeviceRepository) Create(ctx context.Context, device *model.Device) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, d := range r.s.devices {
		if d.MachineID == device.MachineID {
			return fmt.Errorf("%w: machine id %s", interfaces.ErrDuplicate, device.MachineID)
		}
		if d.APIKey == device.APIKey {
			return fmt.Errorf("%w: api key", interfaces.ErrDuplicate)
		}
	}
	stored, err := clone(device)
	if err != nil {
		return err
	}
	r.s.devices[device.ID] = stored
	return nil
}

func (r *DeviceRepository) Get(ctx context.Context, id string) (*model.Device, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d, ok := r.s.devices[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return clone(d)
}

func (r *DeviceRepository) FindActiveByAPIKey(ctx context.Context, apiKey string) (*model.Device, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, d := range r.s.devices {
		if d.IsActive && d.APIKey == apiKey {
			return clone(d)
		}
	}
	return nil, interfaces.ErrNotFound
}

func (r *DeviceRepository) FindByMachineID(ctx context.Context, machineID string) (*model.Device, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, d := range r.s.devices {
		if d.MachineID == machineID {
			return clone(d)
		}
	}
	return nil, interfaces.ErrNotFound
}

func (r *DeviceRepository) List(ctx context.Context, activeOnly bool) ([]*model.Device, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*model.Device, 0, len(r.s.devices))
	for _, d := range r.s.devices {
		if activeOnly && !d.IsActive {
			continue
		}
		c, err := clone(d)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceName < out[j].DeviceName })
	return out, nil
}

func (r *DeviceRepository) ListByIDs(ctx context.Context, ids []string, activeOnly bool) ([]*model.Device, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*model.Device, 0, len(ids))
	for _, id := range ids {
		d, ok := r.s.devices[id]
		if !ok || (activeOnly && !d.IsActive) {
			continue
		}
		c, err := clone(d)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *DeviceRepository) update(id string, fn func(d *model.Device)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.devices[id]
	if !ok {
		return interfaces.ErrNotFound
	}
	fn(d)
	d.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *DeviceRepository) UpdateAPIKey(ctx context.Context, id, apiKey string) error {
	return r.update(id, func(d *model.Device) { d.APIKey = apiKey })
}

func (r *DeviceRepository) UpdateConnection(ctx context.Context, id string, online bool, connectionID string, lastSeen time.Time) error {
	return r.update(id, func(d *model.Device) {
		d.IsOnline = online
		d.ConnectionID = connectionID
		d.LastSeen = lastSeen
	})
}

func (r *DeviceRepository) UpdateLastSeen(ctx context.Context, id string, lastSeen time.Time) error {
	return r.update(id, func(d *model.Device) { d.LastSeen = lastSeen })
}

func (r *DeviceRepository) UpdateSystemInfo(ctx context.Context, id string, info *model.SystemInfo, deviceName string) error {
	info, err := clone(info)
	if err != nil {
		return err
	}
	return r.update(id, func(d *model.Device) {
		d.SystemInfo = info
		if deviceName != "" {
			d.DeviceName = deviceName
		}
	})
}

func (r *DeviceRepository) UpdateMetrics(ctx context.Context, id string, snapshot *model.Snapshot, lastSeen time.Time) error {
	snapshot, err := clone(snapshot)
	if err != nil {
		return err
	}
	return r.update(id, func(d *model.Device) {
		d.LastMetrics = snapshot
		d.LastSeen = lastSeen
	})
}

func (r *DeviceRepository) UpdateProfile(ctx context.Context, device *model.Device) error {
	return r.update(device.ID, func(d *model.Device) {
		d.DeviceName = device.DeviceName
		d.Notes = device.Notes
		d.Tags = append([]string(nil), device.Tags...)
		d.AlertConfig = device.AlertConfig
	})
}

func (r *DeviceRepository) Deactivate(ctx context.Context, id, revokedAPIKey string) error {
	return r.update(id, func(d *model.Device) {
		d.IsActive = false
		d.IsOnline = false
		d.ConnectionID = ""
		d.APIKey = revokedAPIKey
	})
}
