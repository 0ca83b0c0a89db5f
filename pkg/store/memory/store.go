// Package memory keeps every repository in process memory. It backs the
// storage.driver=memory mode and serves as the repository fake in tests.
package memory

import (
	"encoding/json"
	"fmt"
	"sync"

	"fleetwatch/internal/model"
	"fleetwatch/pkg/interfaces"
)

// Store shared state of all in-memory repositories
type Store struct {
	mu sync.RWMutex

	devices   map[string]*model.Device
	points    []*model.MetricPoint
	alerts    map[string]*model.Alert
	workflows map[string]*model.Workflow
	actions   map[string]*model.QuickAction
	runs      map[string]*model.Run

	Devices      *DeviceRepository
	Metrics      *MetricsRepository
	Alerts       *AlertRepository
	Workflows    *WorkflowRepository
	QuickActions *QuickActionRepository
	Runs         *RunRepository
}

// NewStore creates an empty store
func NewStore() *Store {
	s := &Store{
		devices:   make(map[string]*model.Device),
		alerts:    make(map[string]*model.Alert),
		workflows: make(map[string]*model.Workflow),
		actions:   make(map[string]*model.QuickAction),
		runs:      make(map[string]*model.Run),
	}
	s.Devices = &DeviceRepository{s: s}
	s.Metrics = &MetricsRepository{s: s}
	s.Alerts = &AlertRepository{s: s}
	s.Workflows = &WorkflowRepository{s: s}
	s.QuickActions = &QuickActionRepository{s: s}
	s.Runs = &RunRepository{s: s}
	return s
}

// Repositories exposes the store through the repository interfaces
func (s *Store) Repositories() interfaces.Repositories {
	return interfaces.Repositories{
		Devices:      s.Devices,
		Metrics:      s.Metrics,
		Alerts:       s.Alerts,
		Workflows:    s.Workflows,
		QuickActions: s.QuickActions,
		Runs:         s.Runs,
	}
}

// clone deep-copies a record so callers never share memory with the store
func clone[T any](v *T) (*T, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("copy %T: %w", v, err)
	}
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("copy %T: %w", v, err)
	}
	return out, nil
}

func paginate(total, page, limit int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return start, end
}
