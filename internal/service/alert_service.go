package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fleetwatch/internal/model"
	"fleetwatch/pkg/interfaces"
	"fleetwatch/pkg/logger"

	"github.com/google/uuid"
)

// DedupWindow a breach refreshes an active alert of the same type created within this window
const DedupWindow = 5 * time.Minute

// AlertService alert engine: dedup, auto-resolve and manual transitions
type AlertService struct {
	alerts interfaces.AlertRepository
	now    func() time.Time
}

// NewAlertService creates a new alert service
func NewAlertService(alerts interfaces.AlertRepository) *AlertService {
	return &AlertService{
		alerts: alerts,
		now:    time.Now,
	}
}

// Process applies one tick's candidates: each is created or refreshes its active
// alert, then every auto-resolved type that did not breach is resolved. Returns the
// alerts created by this tick. A failing candidate does not stop the others.
func (s *AlertService) Process(ctx context.Context, device *model.Device, candidates []model.CandidateAlert) ([]*model.Alert, error) {
	now := s.now()
	var created []*model.Alert
	var errs []error

	breached := make(map[model.AlertType]bool, len(candidates))
	for _, c := range candidates {
		breached[c.Type] = true
		alert, isNew, err := s.createIfNotExists(ctx, device, c, now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if isNew {
			created = append(created, alert)
		}
	}

	for _, t := range model.AutoResolvedTypes {
		if breached[t] {
			continue
		}
		n, err := s.alerts.ResolveActive(ctx, device.ID, t, now, model.AutoResolveNote)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to auto-resolve %s alerts: %w", t, err))
			continue
		}
		if n > 0 {
			logger.InfoCtx(ctx, "auto-resolved %d %s alert(s) for device %s", n, t, device.ID)
		}
	}

	return created, errors.Join(errs...)
}

func (s *AlertService) createIfNotExists(ctx context.Context, device *model.Device, c model.CandidateAlert, now time.Time) (*model.Alert, bool, error) {
	existing, err := s.alerts.FindActiveSince(ctx, device.ID, c.Type, now.Add(-DedupWindow))
	if err == nil {
		if err := s.alerts.UpdateReading(ctx, existing.ID, c.Value, c.Threshold, c.Message, now); err != nil {
			return nil, false, fmt.Errorf("failed to refresh %s alert: %w", c.Type, err)
		}
		existing.Value, existing.Threshold, existing.Message, existing.UpdatedAt = c.Value, c.Threshold, c.Message, now
		return existing, false, nil
	}
	if !isNotFound(err) {
		return nil, false, fmt.Errorf("failed to look up %s alert: %w", c.Type, err)
	}

	alert := &model.Alert{
		ID:         uuid.NewString(),
		DeviceID:   device.ID,
		MachineID:  device.MachineID,
		DeviceName: device.DeviceName,
		Type:       c.Type,
		Severity:   c.Severity,
		Message:    c.Message,
		Value:      c.Value,
		Threshold:  c.Threshold,
		Status:     model.AlertStatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if c.Mount != "" {
		alert.Metadata = map[string]interface{}{"mount": c.Mount}
	}
	if err := s.alerts.Create(ctx, alert); err != nil {
		return nil, false, fmt.Errorf("failed to create %s alert: %w", c.Type, err)
	}
	return alert, true, nil
}

// Acknowledge moves an active alert to acknowledged
func (s *AlertService) Acknowledge(ctx context.Context, id, actor string) (*model.Alert, error) {
	return s.transition(ctx, id, []model.AlertStatus{model.AlertStatusActive},
		model.AlertTransition{Status: model.AlertStatusAcknowledged, Actor: actor, At: s.now()})
}

// Resolve moves an active or acknowledged alert to resolved
func (s *AlertService) Resolve(ctx context.Context, id, actor, notes string) (*model.Alert, error) {
	return s.transition(ctx, id, []model.AlertStatus{model.AlertStatusActive, model.AlertStatusAcknowledged},
		model.AlertTransition{Status: model.AlertStatusResolved, Actor: actor, At: s.now(), Notes: notes})
}

func (s *AlertService) transition(ctx context.Context, id string, from []model.AlertStatus, to model.AlertTransition) (*model.Alert, error) {
	n, err := s.alerts.Transition(ctx, []string{id}, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to update alert: %w", err)
	}
	alert, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, alert.Status, to.Status)
	}
	return alert, nil
}

// BulkAcknowledge acknowledges the active alerts among ids
func (s *AlertService) BulkAcknowledge(ctx context.Context, ids []string, actor string) (int64, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: alertIds is required", ErrInvalidArgument)
	}
	return s.alerts.Transition(ctx, ids, []model.AlertStatus{model.AlertStatusActive},
		model.AlertTransition{Status: model.AlertStatusAcknowledged, Actor: actor, At: s.now()})
}

// BulkResolve resolves the active or acknowledged alerts among ids
func (s *AlertService) BulkResolve(ctx context.Context, ids []string, actor, notes string) (int64, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: alertIds is required", ErrInvalidArgument)
	}
	return s.alerts.Transition(ctx, ids, []model.AlertStatus{model.AlertStatusActive, model.AlertStatusAcknowledged},
		model.AlertTransition{Status: model.AlertStatusResolved, Actor: actor, At: s.now(), Notes: notes})
}

// Get returns one alert
func (s *AlertService) Get(ctx context.Context, id string) (*model.Alert, error) {
	alert, err := s.alerts.Get(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return alert, nil
}

// List returns one page of alerts, newest first, plus the total count
func (s *AlertService) List(ctx context.Context, filter model.AlertFilter) ([]*model.Alert, int64, error) {
	alerts, total, err := s.alerts.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, total, nil
}

// Delete removes an alert
func (s *AlertService) Delete(ctx context.Context, id string) error {
	if err := s.alerts.Delete(ctx, id); err != nil {
		if isNotFound(err) {
			return ErrAlertNotFound
		}
		return fmt.Errorf("failed to delete alert: %w", err)
	}
	return nil
}

// Summary counts active alerts by severity; an empty deviceID covers the fleet
func (s *AlertService) Summary(ctx context.Context, deviceID string) (*model.AlertSummary, error) {
	counts, err := s.alerts.CountActiveBySeverity(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to count alerts: %w", err)
	}
	summary := &model.AlertSummary{
		Info:     counts[model.SeverityInfo],
		Warning:  counts[model.SeverityWarning],
		Critical: counts[model.SeverityCritical],
	}
	summary.Total = summary.Info + summary.Warning + summary.Critical
	return summary, nil
}

// Cleanup expunges alerts resolved more than days ago
func (s *AlertService) Cleanup(ctx context.Context, days int) (int64, error) {
	return s.alerts.DeleteResolvedBefore(ctx, s.now().AddDate(0, 0, -days))
}
