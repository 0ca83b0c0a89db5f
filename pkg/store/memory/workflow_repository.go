package memory

import (
	"context"
	"sort"
	"time"

	"fleetwatch/internal/model"
	"fleetwatch/pkg/interfaces"
)

// WorkflowRepository in-memory workflows
type WorkflowRepository struct {
	s *Store
}

func (r *WorkflowRepository) Create(ctx context.Context, workflow *model.Workflow) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, err := clone(workflow)
	if err != nil {
		return err
	}
	r.s.workflows[workflow.ID] = stored
	return nil
}

func (r *WorkflowRepository) Get(ctx context.Context, id string) (*model.Workflow, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	w, ok := r.s.workflows[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return clone(w)
}

func (r *WorkflowRepository) List(ctx context.Context, category string) ([]*model.Workflow, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*model.Workflow, 0)
	for _, w := range r.s.workflows {
		if !w.IsActive || (category != "" && w.Category != category) {
			continue
		}
		c, err := clone(w)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *WorkflowRepository) Update(ctx context.Context, workflow *model.Workflow) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.workflows[workflow.ID]; !ok {
		return interfaces.ErrNotFound
	}
	updated, err := clone(workflow)
	if err != nil {
		return err
	}
	updated.UpdatedAt = time.Now().UTC()
	r.s.workflows[workflow.ID] = updated
	return nil
}

// QuickActionRepository in-memory quick actions
type QuickActionRepository struct {
	s *Store
}

func (r *QuickActionRepository) Create(ctx context.Context, action *model.QuickAction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, err := clone(action)
	if err != nil {
		return err
	}
	r.s.actions[action.ID] = stored
	return nil
}

func (r *QuickActionRepository) Get(ctx context.Context, id string) (*model.QuickAction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.actions[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return clone(a)
}

func (r *QuickActionRepository) List(ctx context.Context, category string) ([]*model.QuickAction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*model.QuickAction, 0)
	for _, a := range r.s.actions {
		if !a.IsActive || (category != "" && a.Category != category) {
			continue
		}
		c, err := clone(a)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UsageCount != out[j].UsageCount {
			return out[i].UsageCount > out[j].UsageCount
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *QuickActionRepository) Update(ctx context.Context, action *model.QuickAction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.actions[action.ID]; !ok {
		return interfaces.ErrNotFound
	}
	updated, err := clone(action)
	if err != nil {
		return err
	}
	updated.UpdatedAt = time.Now().UTC()
	r.s.actions[action.ID] = updated
	return nil
}

func (r *QuickActionRepository) IncrementUsage(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.actions[id]
	if !ok {
		return interfaces.ErrNotFound
	}
	a.UsageCount++
	return nil
}
