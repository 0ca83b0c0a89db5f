package memory

import (
	"context"
	"sort"
	"time"

	"fleetwatch/internal/model"
	"fleetwatch/pkg/interfaces"
)

// AlertRepository in-memory alerts
type AlertRepository struct {
	s *Store
}

func (r *AlertRepository) Create(ctx context.Context, alert *model.Alert) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, err := clone(alert)
	if err != nil {
		return err
	}
	r.s.alerts[alert.ID] = stored
	return nil
}

func (r *AlertRepository) Get(ctx context.Context, id string) (*model.Alert, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.alerts[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return clone(a)
}

func (r *AlertRepository) FindActiveSince(ctx context.Context, deviceID string, alertType model.AlertType, since time.Time) (*model.Alert, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var newest *model.Alert
	for _, a := range r.s.alerts {
		if a.DeviceID != deviceID || a.Type != alertType || a.Status != model.AlertStatusActive || a.CreatedAt.Before(since) {
			continue
		}
		if newest == nil || a.CreatedAt.After(newest.CreatedAt) {
			newest = a
		}
	}
	if newest == nil {
		return nil, interfaces.ErrNotFound
	}
	return clone(newest)
}

func (r *AlertRepository) UpdateReading(ctx context.Context, id string, value, threshold float64, message string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.alerts[id]
	if !ok {
		return interfaces.ErrNotFound
	}
	a.Value = value
	a.Threshold = threshold
	a.Message = message
	a.UpdatedAt = at
	return nil
}

func (r *AlertRepository) ResolveActive(ctx context.Context, deviceID string, alertType model.AlertType, at time.Time, notes string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for _, a := range r.s.alerts {
		if a.DeviceID != deviceID || a.Type != alertType || a.Status != model.AlertStatusActive {
			continue
		}
		resolved := at
		a.Status = model.AlertStatusResolved
		a.ResolvedAt = &resolved
		a.ResolutionNotes = notes
		a.UpdatedAt = at
		n++
	}
	return n, nil
}

func (r *AlertRepository) Transition(ctx context.Context, ids []string, from []model.AlertStatus, to model.AlertTransition) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	allowed := make(map[model.AlertStatus]bool, len(from))
	for _, st := range from {
		allowed[st] = true
	}

	var n int64
	for _, id := range ids {
		a, ok := r.s.alerts[id]
		if !ok || !allowed[a.Status] {
			continue
		}
		at := to.At
		a.Status = to.Status
		a.ResolvedBy = to.Actor
		a.UpdatedAt = at
		switch to.Status {
		case model.AlertStatusAcknowledged:
			a.AcknowledgedAt = &at
		case model.AlertStatusResolved:
			a.ResolvedAt = &at
			if to.Notes != "" {
				a.ResolutionNotes = to.Notes
			}
		}
		n++
	}
	return n, nil
}

func (r *AlertRepository) List(ctx context.Context, filter model.AlertFilter) ([]*model.Alert, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	matched := make([]*model.Alert, 0)
	for _, a := range r.s.alerts {
		if filter.DeviceID != "" && a.DeviceID != filter.DeviceID {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.Severity != "" && a.Severity != filter.Severity {
			continue
		}
		if filter.Type != "" && a.Type != filter.Type {
			continue
		}
		matched = append(matched, a)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	start, end := paginate(len(matched), filter.Page, filter.Limit)
	out := make([]*model.Alert, 0, end-start)
	for _, a := range matched[start:end] {
		c, err := clone(a)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, int64(len(matched)), nil
}

func (r *AlertRepository) CountActiveBySeverity(ctx context.Context, deviceID string) (map[model.Severity]int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	counts := make(map[model.Severity]int64)
	for _, a := range r.s.alerts {
		if a.Status != model.AlertStatusActive || (deviceID != "" && a.DeviceID != deviceID) {
			continue
		}
		counts[a.Severity]++
	}
	return counts, nil
}

func (r *AlertRepository) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.alerts[id]; !ok {
		return interfaces.ErrNotFound
	}
	delete(r.s.alerts, id)
	return nil
}

func (r *AlertRepository) DeleteResolvedBefore(ctx context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, a := range r.s.alerts {
		if a.Status == model.AlertStatusResolved && a.ResolvedAt != nil && a.ResolvedAt.Before(before) {
			delete(r.s.alerts, id)
			n++
		}
	}
	return n, nil
}
