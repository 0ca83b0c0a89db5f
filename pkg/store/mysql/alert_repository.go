package mysql

import (
	"context"
	"fmt"
	"time"

	"fleetwatch/internal/model"
	"fleetwatch/pkg/interfaces"
)

// AlertRepository handles alert persistence in MySQL
type AlertRepository struct {
	ds *Datastore
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(ds *Datastore) *AlertRepository {
	return &AlertRepository{ds: ds}
}

// Create inserts an alert
func (r *AlertRepository) Create(ctx context.Context, alert *model.Alert) error {
	return translateError(r.ds.DB(ctx).Create(FromAlertDomain(alert)).Error)
}

// Get retrieves an alert by ID
func (r *AlertRepository) Get(ctx context.Context, id string) (*model.Alert, error) {
	var row Alert
	if err := r.ds.DB(ctx).Where("alert_id = ?", id).First(&row).Error; err != nil {
		return nil, translateError(err)
	}
	return ToAlertDomain(&row), nil
}

// FindActiveSince retrieves the newest active alert of a device and type created at or after since
func (r *AlertRepository) FindActiveSince(ctx context.Context, deviceID string, alertType model.AlertType, since time.Time) (*model.Alert, error) {
	var row Alert
	err := r.ds.DB(ctx).
		Where("device_id = ? AND type = ? AND status = ? AND created_at >= ?",
			deviceID, string(alertType), string(model.AlertStatusActive), since).
		Order("created_at DESC").
		First(&row).Error
	if err != nil {
		return nil, translateError(err)
	}
	return ToAlertDomain(&row), nil
}

// UpdateReading refreshes the measured value of an existing alert
func (r *AlertRepository) UpdateReading(ctx context.Context, id string, value, threshold float64, message string, at time.Time) error {
	return r.ds.DB(ctx).Model(&Alert{}).
		Where("alert_id = ?", id).
		Updates(map[string]interface{}{
			"value":      value,
			"threshold":  threshold,
			"message":    message,
			"updated_at": at,
		}).Error
}

// ResolveActive resolves every active alert of a device and type
func (r *AlertRepository) ResolveActive(ctx context.Context, deviceID string, alertType model.AlertType, at time.Time, notes string) (int64, error) {
	result := r.ds.DB(ctx).Model(&Alert{}).
		Where("device_id = ? AND type = ? AND status = ?", deviceID, string(alertType), string(model.AlertStatusActive)).
		Updates(map[string]interface{}{
			"status":           string(model.AlertStatusResolved),
			"resolved_at":      at,
			"resolution_notes": notes,
			"updated_at":       at,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to auto-resolve alerts: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Transition moves alerts whose current status is in from to the target state (CAS on status)
func (r *AlertRepository) Transition(ctx context.Context, ids []string, from []model.AlertStatus, to model.AlertTransition) (int64, error) {
	if len(ids) == 0 || len(from) == 0 {
		return 0, nil
	}
	fromStatuses := make([]string, 0, len(from))
	for _, st := range from {
		fromStatuses = append(fromStatuses, string(st))
	}

	updates := map[string]interface{}{
		"status":      string(to.Status),
		"resolved_by": to.Actor,
		"updated_at":  to.At,
	}
	switch to.Status {
	case model.AlertStatusAcknowledged:
		updates["acknowledged_at"] = to.At
	case model.AlertStatusResolved:
		updates["resolved_at"] = to.At
		if to.Notes != "" {
			updates["resolution_notes"] = to.Notes
		}
	}

	result := r.ds.DB(ctx).Model(&Alert{}).
		Where("alert_id IN ? AND status IN ?", ids, fromStatuses).
		Updates(updates)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to update alert status: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// List returns one page of alerts, newest first, plus the total match count
func (r *AlertRepository) List(ctx context.Context, filter model.AlertFilter) ([]*model.Alert, int64, error) {
	query := r.ds.DB(ctx).Model(&Alert{})
	if filter.DeviceID != "" {
		query = query.Where("device_id = ?", filter.DeviceID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", string(filter.Severity))
	}
	if filter.Type != "" {
		query = query.Where("type = ?", string(filter.Type))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	page, limit := normalizePage(filter.Page, filter.Limit)
	var rows []*Alert
	if err := query.Order("created_at DESC").Limit(limit).Offset((page - 1) * limit).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list alerts: %w", err)
	}

	out := make([]*model.Alert, 0, len(rows))
	for _, row := range rows {
		out = append(out, ToAlertDomain(row))
	}
	return out, total, nil
}

// CountActiveBySeverity counts active alerts grouped by severity
func (r *AlertRepository) CountActiveBySeverity(ctx context.Context, deviceID string) (map[model.Severity]int64, error) {
	query := r.ds.DB(ctx).Model(&Alert{}).
		Select("severity, COUNT(*) AS count").
		Where("status = ?", string(model.AlertStatusActive))
	if deviceID != "" {
		query = query.Where("device_id = ?", deviceID)
	}

	var rows []SeverityCount
	if err := query.Group("severity").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count active alerts: %w", err)
	}

	counts := make(map[model.Severity]int64, len(rows))
	for _, row := range rows {
		counts[model.Severity(row.Severity)] = row.Count
	}
	return counts, nil
}

// Delete removes an alert
func (r *AlertRepository) Delete(ctx context.Context, id string) error {
	result := r.ds.DB(ctx).Where("alert_id = ?", id).Delete(&Alert{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete alert: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return interfaces.ErrNotFound
	}
	return nil
}

// DeleteResolvedBefore expunges alerts resolved before the cutoff
func (r *AlertRepository) DeleteResolvedBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.ds.DB(ctx).
		Where("status = ? AND resolved_at < ?", string(model.AlertStatusResolved), before).
		Delete(&Alert{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete resolved alerts: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// normalizePage applies the default page size of 50
func normalizePage(page, limit int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}
	return page, limit
}
