package mysql

import (
	"fleetwatch/internal/model"
	dbmodel "fleetwatch/pkg/store/mysql/model"
)

// ToDeviceDomain converts MySQL Device to domain Device model
func ToDeviceDomain(row *Device) *model.Device {
	if row == nil {
		return nil
	}

	tags := []string(row.Tags)
	if tags == nil {
		tags = []string{}
	}
	return &model.Device{
		ID:           row.DeviceID,
		MachineID:    row.MachineID,
		DeviceName:   row.DeviceName,
		APIKey:       row.APIKey,
		IsOnline:     row.IsOnline,
		ConnectionID: row.ConnectionID,
		LastSeen:     row.LastSeen,
		SystemInfo:   row.SystemInfo.Data,
		LastMetrics:  row.LastMetrics.Data,
		AlertConfig:  row.AlertConfig.Data,
		OwnerID:      row.OwnerID,
		Notes:        row.Notes,
		Tags:         tags,
		IsActive:     row.IsActive,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

// FromDeviceDomain converts domain Device model to MySQL Device
func FromDeviceDomain(d *model.Device) *Device {
	if d == nil {
		return nil
	}

	return &Device{
		DeviceID:     d.ID,
		MachineID:    d.MachineID,
		DeviceName:   d.DeviceName,
		APIKey:       d.APIKey,
		IsOnline:     d.IsOnline,
		ConnectionID: d.ConnectionID,
		LastSeen:     d.LastSeen,
		SystemInfo:   dbmodel.NewJSONColumn(d.SystemInfo),
		LastMetrics:  dbmodel.NewJSONColumn(d.LastMetrics),
		AlertConfig:  dbmodel.NewJSONColumn(d.AlertConfig),
		OwnerID:      d.OwnerID,
		Notes:        d.Notes,
		Tags:         JSONStringArray(d.Tags),
		IsActive:     d.IsActive,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// ToMetricPointDomain converts MySQL MetricPoint to domain MetricPoint
func ToMetricPointDomain(row *MetricPoint) *model.MetricPoint {
	if row == nil {
		return nil
	}

	return &model.MetricPoint{
		DeviceID:         row.DeviceID,
		MachineID:        row.MachineID,
		Timestamp:        row.Timestamp.UTC(),
		CPUUsage:         row.CPUUsage,
		LoadAvg:          row.LoadAvg.Data,
		TemperatureMain:  row.TemperatureMain,
		TemperatureMax:   row.TemperatureMax,
		MemoryTotal:      row.MemoryTotal,
		MemoryUsed:       row.MemoryUsed,
		MemoryPercent:    row.MemoryPercent,
		DiskSize:         row.DiskSize,
		DiskUsed:         row.DiskUsed,
		DiskPercent:      row.DiskPercent,
		DiskMount:        row.DiskMount,
		NetworkRxSec:     row.NetworkRxSec,
		NetworkTxSec:     row.NetworkTxSec,
		ProcessesAll:     row.ProcessesAll,
		ProcessesRunning: row.ProcessesRunning,
		Uptime:           row.Uptime,
	}
}

// FromMetricPointDomain converts domain MetricPoint to MySQL MetricPoint
func FromMetricPointDomain(p *model.MetricPoint) *MetricPoint {
	if p == nil {
		return nil
	}

	return &MetricPoint{
		DeviceID:         p.DeviceID,
		MachineID:        p.MachineID,
		Timestamp:        p.Timestamp,
		CPUUsage:         p.CPUUsage,
		LoadAvg:          dbmodel.NewJSONColumn(p.LoadAvg),
		TemperatureMain:  p.TemperatureMain,
		TemperatureMax:   p.TemperatureMax,
		MemoryTotal:      p.MemoryTotal,
		MemoryUsed:       p.MemoryUsed,
		MemoryPercent:    p.MemoryPercent,
		DiskSize:         p.DiskSize,
		DiskUsed:         p.DiskUsed,
		DiskPercent:      p.DiskPercent,
		DiskMount:        p.DiskMount,
		NetworkRxSec:     p.NetworkRxSec,
		NetworkTxSec:     p.NetworkTxSec,
		ProcessesAll:     p.ProcessesAll,
		ProcessesRunning: p.ProcessesRunning,
		Uptime:           p.Uptime,
	}
}

// ToAlertDomain converts MySQL Alert to domain Alert model
func ToAlertDomain(row *Alert) *model.Alert {
	if row == nil {
		return nil
	}

	return &model.Alert{
		ID:              row.AlertID,
		DeviceID:        row.DeviceID,
		MachineID:       row.MachineID,
		DeviceName:      row.DeviceName,
		Type:            model.AlertType(row.Type),
		Severity:        model.Severity(row.Severity),
		Message:         row.Message,
		Value:           row.Value,
		Threshold:       row.Threshold,
		Metadata:        map[string]interface{}(row.Metadata),
		Status:          model.AlertStatus(row.Status),
		AcknowledgedAt:  row.AcknowledgedAt,
		ResolvedAt:      row.ResolvedAt,
		ResolvedBy:      row.ResolvedBy,
		ResolutionNotes: row.ResolutionNotes,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}

// FromAlertDomain converts domain Alert model to MySQL Alert
func FromAlertDomain(a *model.Alert) *Alert {
	if a == nil {
		return nil
	}

	return &Alert{
		AlertID:         a.ID,
		DeviceID:        a.DeviceID,
		MachineID:       a.MachineID,
		DeviceName:      a.DeviceName,
		Type:            string(a.Type),
		Severity:        string(a.Severity),
		Message:         a.Message,
		Value:           a.Value,
		Threshold:       a.Threshold,
		Metadata:        JSONMap(a.Metadata),
		Status:          string(a.Status),
		AcknowledgedAt:  a.AcknowledgedAt,
		ResolvedAt:      a.ResolvedAt,
		ResolvedBy:      a.ResolvedBy,
		ResolutionNotes: a.ResolutionNotes,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

// ToWorkflowDomain converts MySQL Workflow to domain Workflow model
func ToWorkflowDomain(row *Workflow) *model.Workflow {
	if row == nil {
		return nil
	}

	targets := []string(row.TargetDevices)
	if targets == nil {
		targets = []string{}
	}
	return &model.Workflow{
		ID:            row.WorkflowID,
		Name:          row.Name,
		Description:   row.Description,
		Category:      row.Category,
		Steps:         row.Steps.Data,
		TargetDevices: targets,
		CreatedBy:     row.CreatedBy,
		LastRun:       row.LastRun,
		RunCount:      row.RunCount,
		SuccessCount:  row.SuccessCount,
		SuccessRate:   row.SuccessRate,
		IsActive:      row.IsActive,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}

// FromWorkflowDomain converts domain Workflow model to MySQL Workflow
func FromWorkflowDomain(w *model.Workflow) *Workflow {
	if w == nil {
		return nil
	}

	return &Workflow{
		WorkflowID:    w.ID,
		Name:          w.Name,
		Description:   w.Description,
		Category:      w.Category,
		Steps:         dbmodel.NewJSONColumn(w.Steps),
		TargetDevices: JSONStringArray(w.TargetDevices),
		CreatedBy:     w.CreatedBy,
		LastRun:       w.LastRun,
		RunCount:      w.RunCount,
		SuccessCount:  w.SuccessCount,
		SuccessRate:   w.SuccessRate,
		IsActive:      w.IsActive,
		CreatedAt:     w.CreatedAt,
		UpdatedAt:     w.UpdatedAt,
	}
}

// ToQuickActionDomain converts MySQL QuickAction to domain QuickAction model
func ToQuickActionDomain(row *QuickAction) *model.QuickAction {
	if row == nil {
		return nil
	}

	return &model.QuickAction{
		ID:                   row.ActionID,
		Name:                 row.Name,
		Description:          row.Description,
		Category:             row.Category,
		Command:              row.Command,
		WorkingDirectory:     row.WorkingDirectory,
		RequiresConfirmation: row.RequiresConfirmation,
		Icon:                 row.Icon,
		CreatedBy:            row.CreatedBy,
		IsActive:             row.IsActive,
		UsageCount:           row.UsageCount,
		CreatedAt:            row.CreatedAt,
		UpdatedAt:            row.UpdatedAt,
	}
}

// FromQuickActionDomain converts domain QuickAction model to MySQL QuickAction
func FromQuickActionDomain(a *model.QuickAction) *QuickAction {
	if a == nil {
		return nil
	}

	return &QuickAction{
		ActionID:             a.ID,
		Name:                 a.Name,
		Description:          a.Description,
		Category:             a.Category,
		Command:              a.Command,
		WorkingDirectory:     a.WorkingDirectory,
		RequiresConfirmation: a.RequiresConfirmation,
		Icon:                 a.Icon,
		CreatedBy:            a.CreatedBy,
		IsActive:             a.IsActive,
		UsageCount:           a.UsageCount,
		CreatedAt:            a.CreatedAt,
		UpdatedAt:            a.UpdatedAt,
	}
}

// ToRunDomain converts MySQL Run to domain Run model
func ToRunDomain(row *Run) *model.Run {
	if row == nil {
		return nil
	}

	devices := row.Devices.Data
	if devices == nil {
		devices = []model.RunDevice{}
	}
	return &model.Run{
		ID:            row.RunID,
		WorkflowID:    row.WorkflowID,
		WorkflowName:  row.WorkflowName,
		Kind:          model.RunKind(row.Kind),
		Steps:         row.Steps.Data,
		Devices:       devices,
		Status:        model.RunStatus(row.Status),
		StartedAt:     row.StartedAt,
		CompletedAt:   row.CompletedAt,
		Duration:      row.Duration,
		ExecutedBy:    row.ExecutedBy,
		ExecutionMode: model.ExecutionMode(row.ExecutionMode),
		Summary:       row.Summary.Data,
	}
}

// FromRunDomain converts domain Run model to MySQL Run
func FromRunDomain(r *model.Run) *Run {
	if r == nil {
		return nil
	}

	return &Run{
		RunID:         r.ID,
		WorkflowID:    r.WorkflowID,
		WorkflowName:  r.WorkflowName,
		Kind:          string(r.Kind),
		Steps:         dbmodel.NewJSONColumn(r.Steps),
		Devices:       dbmodel.NewJSONColumn(r.Devices),
		Status:        string(r.Status),
		StartedAt:     r.StartedAt,
		CompletedAt:   r.CompletedAt,
		Duration:      r.Duration,
		ExecutedBy:    r.ExecutedBy,
		ExecutionMode: string(r.ExecutionMode),
		Summary:       dbmodel.NewJSONColumn(r.Summary),
	}
}
