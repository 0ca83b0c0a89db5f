package mysql

import (
	"context"
	"fmt"

	"fleetwatch/pkg/interfaces"
)

// Repository aggregates all MySQL repositories
type Repository struct {
	ds *Datastore

	Devices      *DeviceRepository
	Metrics      *MetricsRepository
	Alerts       *AlertRepository
	Workflows    *WorkflowRepository
	QuickActions *QuickActionRepository
	Runs         *RunRepository
}

// NewRepository creates a new MySQL repository with all sub-repositories
func NewRepository(dsn string) (*Repository, error) {
	ds, err := NewDatastore(dsn)
	if err != nil {
		return nil, err
	}

	return &Repository{
		ds:           ds,
		Devices:      NewDeviceRepository(ds),
		Metrics:      NewMetricsRepository(ds),
		Alerts:       NewAlertRepository(ds),
		Workflows:    NewWorkflowRepository(ds),
		QuickActions: NewQuickActionRepository(ds),
		Runs:         NewRunRepository(ds),
	}, nil
}

// Repositories exposes the MySQL store through the repository interfaces
func (r *Repository) Repositories() interfaces.Repositories {
	return interfaces.Repositories{
		Devices:      r.Devices,
		Metrics:      r.Metrics,
		Alerts:       r.Alerts,
		Workflows:    r.Workflows,
		QuickActions: r.QuickActions,
		Runs:         r.Runs,
	}
}

// AutoMigrate creates or updates every table
func (r *Repository) AutoMigrate(ctx context.Context) error {
	if err := r.ds.DB(ctx).AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// GetDatastore returns the underlying datastore for transaction support
func (r *Repository) GetDatastore() *Datastore {
	return r.ds
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.ds.Close()
}
