package memory

import (
	"context"
	"sort"
	"time"

	"fleetwatch/internal/model"
	"fleetwatch/pkg/interfaces"
)

// RunRepository in-memory workflow executions
type RunRepository struct {
	s *Store
}

func (r *RunRepository) Create(ctx context.Context, run *model.Run) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, err := clone(run)
	if err != nil {
		return err
	}
	r.s.runs[run.ID] = stored
	return nil
}

func (r *RunRepository) Get(ctx context.Context, id string) (*model.Run, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	run, ok := r.s.runs[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return clone(run)
}

// Mutate holds the store lock for the whole read-modify-write.
func (r *RunRepository) Mutate(ctx context.Context, id string, fn func(run *model.Run) error) (*model.Run, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.runs[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	working, err := clone(stored)
	if err != nil {
		return nil, err
	}
	if err := fn(working); err != nil {
		return nil, err
	}
	saved, err := clone(working)
	if err != nil {
		return nil, err
	}
	r.s.runs[id] = saved
	return working, nil
}

func (r *RunRepository) ListByWorkflow(ctx context.Context, workflowID string, page, limit int) ([]*model.Run, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	matched := make([]*model.Run, 0)
	for _, run := range r.s.runs {
		if run.WorkflowID == workflowID {
			matched = append(matched, run)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].StartedAt.After(matched[j].StartedAt) })

	start, end := paginate(len(matched), page, limit)
	out := make([]*model.Run, 0, end-start)
	for _, run := range matched[start:end] {
		c, err := clone(run)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, int64(len(matched)), nil
}

func (r *RunRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, run := range r.s.runs {
		if run.StartedAt.Before(before) {
			delete(r.s.runs, id)
			n++
		}
	}
	return n, nil
}
