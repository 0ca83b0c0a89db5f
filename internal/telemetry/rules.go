package telemetry

import (
	"fmt"
	"strconv"

	"fleetwatch/internal/model"
)

// Severity cutoffs. Not configurable per device.
const (
	CriticalTemperature = 85.0
	CriticalDiskPercent = 95.0
)

// EvaluateThresholds returns the breached rules of cfg in fixed order:
// cpu, temperature, memory, then one entry per breaching disk.
// Missing readings never breach.
func EvaluateThresholds(snap *model.Snapshot, cfg model.AlertConfig) []model.CandidateAlert {
	if snap == nil {
		return nil
	}
	var out []model.CandidateAlert

	if cfg.CPU.Enabled && snap.CPU != nil && snap.CPU.Usage != nil && *snap.CPU.Usage > cfg.CPU.Threshold {
		v := *snap.CPU.Usage
		out = append(out, model.CandidateAlert{
			Type:      model.AlertTypeCPU,
			Severity:  model.SeverityWarning,
			Message:   fmt.Sprintf("High CPU usage: %.2f%%", v),
			Value:     v,
			Threshold: cfg.CPU.Threshold,
		})
	}

	if cfg.Temperature.Enabled && snap.Temperature != nil && snap.Temperature.Main != nil && *snap.Temperature.Main > cfg.Temperature.Threshold {
		v := *snap.Temperature.Main
		severity := model.SeverityWarning
		if v > CriticalTemperature {
			severity = model.SeverityCritical
		}
		out = append(out, model.CandidateAlert{
			Type:      model.AlertTypeTemperature,
			Severity:  severity,
			Message:   fmt.Sprintf("High temperature: %s°C", strconv.FormatFloat(v, 'f', -1, 64)),
			Value:     v,
			Threshold: cfg.Temperature.Threshold,
		})
	}

	if cfg.Memory.Enabled && snap.Memory != nil && snap.Memory.UsagePercent != nil && *snap.Memory.UsagePercent > cfg.Memory.Threshold {
		v := *snap.Memory.UsagePercent
		out = append(out, model.CandidateAlert{
			Type:      model.AlertTypeMemory,
			Severity:  model.SeverityWarning,
			Message:   fmt.Sprintf("High memory usage: %.2f%%", v),
			Value:     v,
			Threshold: cfg.Memory.Threshold,
		})
	}

	if cfg.Disk.Enabled {
		for _, d := range snap.Disk {
			if d.UsagePercent == nil || *d.UsagePercent <= cfg.Disk.Threshold {
				continue
			}
			v := *d.UsagePercent
			severity := model.SeverityWarning
			if v > CriticalDiskPercent {
				severity = model.SeverityCritical
			}
			out = append(out, model.CandidateAlert{
				Type:      model.AlertTypeDisk,
				Severity:  severity,
				Message:   fmt.Sprintf("Low disk space on %s: %.2f%%", d.Mount, v),
				Value:     v,
				Threshold: cfg.Disk.Threshold,
				Mount:     d.Mount,
			})
		}
	}

	return out
}
