package interfaces

import (
	"context"
	"errors"
	"time"

	"fleetwatch/internal/model"
)

// ErrNotFound returned by repositories when the requested record does not exist
var ErrNotFound = errors.New("record not found")

// ErrDuplicate returned when a unique key (machine ID, credential) is already taken
var ErrDuplicate = errors.New("duplicate record")

// DeviceRepository device persistence
// Every update touches a single row; callers never read-modify-write a device.
type DeviceRepository interface {
	Create(ctx context.Context, device *model.Device) error

	Get(ctx context.Context, id string) (*model.Device, error)

	// FindActiveByAPIKey looks up an active device by its credential
	FindActiveByAPIKey(ctx context.Context, apiKey string) (*model.Device, error)

	// FindByMachineID looks up a device by machine ID regardless of isActive
	FindByMachineID(ctx context.Context, machineID string) (*model.Device, error)

	// List returns devices ordered by name; activeOnly filters soft-deleted ones
	List(ctx context.Context, activeOnly bool) ([]*model.Device, error)

	// ListByIDs returns the matching devices in no particular order
	ListByIDs(ctx context.Context, ids []string, activeOnly bool) ([]*model.Device, error)

	UpdateAPIKey(ctx context.Context, id, apiKey string) error

	// UpdateConnection sets isOnline, connectionId and lastSeen together
	UpdateConnection(ctx context.Context, id string, online bool, connectionID string, lastSeen time.Time) error

	UpdateLastSeen(ctx context.Context, id string, lastSeen time.Time) error

	// UpdateSystemInfo stores the registration facts; an empty name leaves the label unchanged
	UpdateSystemInfo(ctx context.Context, id string, info *model.SystemInfo, deviceName string) error

	// UpdateMetrics stores the latest snapshot and lastSeen
	UpdateMetrics(ctx context.Context, id string, snapshot *model.Snapshot, lastSeen time.Time) error

	// UpdateProfile stores admin-editable fields: name, notes, tags, alertConfig
	UpdateProfile(ctx context.Context, device *model.Device) error

	// Deactivate soft-deletes the device and replaces its credential
	Deactivate(ctx context.Context, id, revokedAPIKey string) error
}

// MetricsRepository time-series history
type MetricsRepository interface {
	Append(ctx context.Context, point *model.MetricPoint) error

	// Range returns raw points in [from, to] ordered by timestamp
	Range(ctx context.Context, deviceID string, from, to time.Time) ([]*model.MetricPoint, error)

	// Aggregate buckets points newer than from
	Aggregate(ctx context.Context, deviceID string, from time.Time, granularity model.Granularity) ([]*model.MetricBucket, error)

	// Stats summarizes points newer than from
	Stats(ctx context.Context, deviceID string, from time.Time) (*model.MetricStats, error)

	// DeleteBefore removes points older than before and returns the count removed
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// AlertRepository alert persistence
type AlertRepository interface {
	Create(ctx context.Context, alert *model.Alert) error

	Get(ctx context.Context, id string) (*model.Alert, error)

	// FindActiveSince returns the newest active alert of (device, type) created at or after since
	FindActiveSince(ctx context.Context, deviceID string, alertType model.AlertType, since time.Time) (*model.Alert, error)

	// UpdateReading refreshes value, threshold and message of an existing alert
	UpdateReading(ctx context.Context, id string, value, threshold float64, message string, at time.Time) error

	// ResolveActive resolves every active alert of (device, type)
	ResolveActive(ctx context.Context, deviceID string, alertType model.AlertType, at time.Time, notes string) (int64, error)

	// Transition moves the given alerts whose status is in from to the target state
	Transition(ctx context.Context, ids []string, from []model.AlertStatus, to model.AlertTransition) (int64, error)

	// List returns one page plus the total match count
	List(ctx context.Context, filter model.AlertFilter) ([]*model.Alert, int64, error)

	// CountActiveBySeverity counts active alerts, optionally for one device
	CountActiveBySeverity(ctx context.Context, deviceID string) (map[model.Severity]int64, error)

	Delete(ctx context.Context, id string) error

	// DeleteResolvedBefore expunges alerts resolved before the cutoff
	DeleteResolvedBefore(ctx context.Context, before time.Time) (int64, error)
}

// WorkflowRepository workflow persistence
type WorkflowRepository interface {
	Create(ctx context.Context, workflow *model.Workflow) error

	Get(ctx context.Context, id string) (*model.Workflow, error)

	// List returns active workflows, optionally filtered by category
	List(ctx context.Context, category string) ([]*model.Workflow, error)

	Update(ctx context.Context, workflow *model.Workflow) error
}

// QuickActionRepository quick action persistence
type QuickActionRepository interface {
	Create(ctx context.Context, action *model.QuickAction) error

	Get(ctx context.Context, id string) (*model.QuickAction, error)

	// List returns active quick actions, optionally filtered by category
	List(ctx context.Context, category string) ([]*model.QuickAction, error)

	Update(ctx context.Context, action *model.QuickAction) error

	IncrementUsage(ctx context.Context, id string) error
}

// RunRepository workflow execution persistence
type RunRepository interface {
	Create(ctx context.Context, run *model.Run) error

	Get(ctx context.Context, id string) (*model.Run, error)

	// Mutate loads the run, applies fn and saves the result atomically with respect
	// to other Mutate calls on the same run. If fn returns an error nothing is saved.
	Mutate(ctx context.Context, id string, fn func(run *model.Run) error) (*model.Run, error)

	// ListByWorkflow returns one page of runs, newest first, plus the total count
	ListByWorkflow(ctx context.Context, workflowID string, page, limit int) ([]*model.Run, int64, error)

	// DeleteBefore removes runs started before the cutoff
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// Repositories the full set of stores the services depend on
type Repositories struct {
	Devices      DeviceRepository
	Metrics      MetricsRepository
	Alerts       AlertRepository
	Workflows    WorkflowRepository
	QuickActions QuickActionRepository
	Runs         RunRepository
}
