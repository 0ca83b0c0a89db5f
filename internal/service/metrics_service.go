package service

import (
	"context"
	"fmt"
	"time"

	"fleetwatch/internal/model"
	"fleetwatch/internal/telemetry"
	"fleetwatch/pkg/interfaces"
)

// DefaultMetricsPeriod used when a metrics query names no period
const DefaultMetricsPeriod = "24h"

type periodSpec struct {
	window      time.Duration
	granularity model.Granularity
}

var metricsPeriods = map[string]periodSpec{
	"1h":  {time.Hour, model.GranularityMinute},
	"6h":  {6 * time.Hour, model.GranularityMinute},
	"24h": {24 * time.Hour, model.GranularityHour},
	"7d":  {7 * 24 * time.Hour, model.GranularityHour},
	"30d": {30 * 24 * time.Hour, model.GranularityDay},
}

// MetricsReport aggregated view of a device's history over a period
type MetricsReport struct {
	DeviceID    string                `json:"deviceId"`
	Period      string                `json:"period"`
	Granularity model.Granularity     `json:"granularity"`
	From        time.Time             `json:"from"`
	Current     *model.Snapshot       `json:"current,omitempty"`
	Buckets     []*model.MetricBucket `json:"buckets"`
	Stats       *model.MetricStats    `json:"stats"`
}

// MetricsService time-series history
type MetricsService struct {
	metrics interfaces.MetricsRepository
	devices interfaces.DeviceRepository
	now     func() time.Time
}

// NewMetricsService creates a new metrics service
func NewMetricsService(metrics interfaces.MetricsRepository, devices interfaces.DeviceRepository) *MetricsService {
	return &MetricsService{
		metrics: metrics,
		devices: devices,
		now:     time.Now,
	}
}

// Record appends the history entry derived from a snapshot
func (s *MetricsService) Record(ctx context.Context, device *model.Device, snapshot *model.Snapshot) error {
	point := telemetry.ToMetricPoint(device.ID, device.MachineID, snapshot)
	if err := s.metrics.Append(ctx, point); err != nil {
		return fmt.Errorf("failed to append metrics history: %w", err)
	}
	return nil
}

// History raw points in [from, to]; zero bounds default to the last 24 hours
func (s *MetricsService) History(ctx context.Context, deviceID string, from, to time.Time) ([]*model.MetricPoint, error) {
	if to.IsZero() {
		to = s.now()
	}
	if from.IsZero() {
		from = to.Add(-24 * time.Hour)
	}
	if from.After(to) {
		return nil, fmt.Errorf("%w: from is after to", ErrInvalidArgument)
	}
	if _, err := s.device(ctx, deviceID); err != nil {
		return nil, err
	}
	points, err := s.metrics.Range(ctx, deviceID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to read metrics history: %w", err)
	}
	return points, nil
}

// Report buckets and summarizes the device's history over period (1h, 6h, 24h, 7d, 30d)
func (s *MetricsService) Report(ctx context.Context, deviceID, period string) (*MetricsReport, error) {
	if period == "" {
		period = DefaultMetricsPeriod
	}
	pw, ok := metricsPeriods[period]
	if !ok {
		return nil, fmt.Errorf("%w: unknown period %q", ErrInvalidArgument, period)
	}
	device, err := s.device(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	from := s.now().Add(-pw.window)
	buckets, err := s.metrics.Aggregate(ctx, deviceID, from, pw.granularity)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate metrics: %w", err)
	}
	stats, err := s.metrics.Stats(ctx, deviceID, from)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize metrics: %w", err)
	}

	return &MetricsReport{
		DeviceID:    deviceID,
		Period:      period,
		Granularity: pw.granularity,
		From:        from,
		Current:     device.LastMetrics,
		Buckets:     buckets,
		Stats:       stats,
	}, nil
}

// Cleanup deletes history older than days
func (s *MetricsService) Cleanup(ctx context.Context, days int) (int64, error) {
	return s.metrics.DeleteBefore(ctx, s.now().AddDate(0, 0, -days))
}

func (s *MetricsService) device(ctx context.Context, id string) (*model.Device, error) {
	device, err := s.devices.Get(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return device, nil
}
