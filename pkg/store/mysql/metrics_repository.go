package mysql

import (
	"context"
	"fmt"
	"time"

	"fleetwatch/internal/model"
)

// MetricsRepository handles metric history in MySQL
type MetricsRepository struct {
	ds *Datastore
}

// NewMetricsRepository creates a new metrics repository
func NewMetricsRepository(ds *Datastore) *MetricsRepository {
	return &MetricsRepository{ds: ds}
}

// bucketFormats DATE_FORMAT patterns per granularity
var bucketFormats = map[model.Granularity]string{
	model.GranularityMinute: "%Y-%m-%d %H:%i:00",
	model.GranularityHour:   "%Y-%m-%d %H:00:00",
	model.GranularityDay:    "%Y-%m-%d 00:00:00",
}

const bucketLayout = "2006-01-02 15:04:05"

// Append inserts one history entry
func (r *MetricsRepository) Append(ctx context.Context, point *model.MetricPoint) error {
	return r.ds.DB(ctx).Create(FromMetricPointDomain(point)).Error
}

// Range returns raw points in [from, to]
func (r *MetricsRepository) Range(ctx context.Context, deviceID string, from, to time.Time) ([]*model.MetricPoint, error) {
	var rows []*MetricPoint
	err := r.ds.DB(ctx).
		Where("device_id = ? AND timestamp >= ? AND timestamp <= ?", deviceID, from, to).
		Order("timestamp ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query metric range: %w", err)
	}

	out := make([]*model.MetricPoint, 0, len(rows))
	for _, row := range rows {
		out = append(out, ToMetricPointDomain(row))
	}
	return out, nil
}

// Aggregate groups points newer than from into buckets
func (r *MetricsRepository) Aggregate(ctx context.Context, deviceID string, from time.Time, granularity model.Granularity) ([]*model.MetricBucket, error) {
	format, ok := bucketFormats[granularity]
	if !ok {
		format = bucketFormats[model.GranularityMinute]
	}

	var rows []MetricBucketRow
	err := r.ds.DB(ctx).Model(&MetricPoint{}).
		Select(fmt.Sprintf(`DATE_FORMAT(timestamp, '%s') AS bucket,
			ROUND(AVG(cpu_usage), 2) AS avg_cpu,
			MAX(cpu_usage) AS max_cpu,
			ROUND(AVG(temperature_main), 2) AS avg_temperature,
			MAX(temperature_main) AS max_temperature,
			ROUND(AVG(memory_percent), 2) AS avg_memory,
			ROUND(AVG(disk_percent), 2) AS avg_disk,
			ROUND(AVG(network_rx_sec), 2) AS avg_network_rx,
			ROUND(AVG(network_tx_sec), 2) AS avg_network_tx,
			COUNT(*) AS count`, format)).
		Where("device_id = ? AND timestamp >= ?", deviceID, from).
		Group("bucket").
		Order("bucket ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate metrics: %w", err)
	}

	out := make([]*model.MetricBucket, 0, len(rows))
	for _, row := range rows {
		bucket, err := toMetricBucket(row)
		if err != nil {
			return nil, err
		}
		out = append(out, bucket)
	}
	return out, nil
}

func toMetricBucket(row MetricBucketRow) (*model.MetricBucket, error) {
	t, err := time.ParseInLocation(bucketLayout, row.Bucket, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bucket %q: %w", row.Bucket, err)
	}
	return &model.MetricBucket{
		Time:           t,
		AvgCPU:         deref(row.AvgCPU),
		MaxCPU:         deref(row.MaxCPU),
		AvgTemperature: deref(row.AvgTemperature),
		MaxTemperature: deref(row.MaxTemperature),
		AvgMemory:      deref(row.AvgMemory),
		AvgDisk:        deref(row.AvgDisk),
		AvgNetworkRx:   deref(row.AvgNetworkRx),
		AvgNetworkTx:   deref(row.AvgNetworkTx),
		Count:          row.Count,
	}, nil
}

// Stats summarizes points newer than from
func (r *MetricsRepository) Stats(ctx context.Context, deviceID string, from time.Time) (*model.MetricStats, error) {
	var row MetricStatsRow
	err := r.ds.DB(ctx).Model(&MetricPoint{}).
		Select(`ROUND(AVG(cpu_usage), 2) AS avg_cpu, MAX(cpu_usage) AS max_cpu, MIN(cpu_usage) AS min_cpu,
			ROUND(AVG(temperature_main), 2) AS avg_temperature, MAX(temperature_main) AS max_temperature, MIN(temperature_main) AS min_temperature,
			ROUND(AVG(memory_percent), 2) AS avg_memory, MAX(memory_percent) AS max_memory, MIN(memory_percent) AS min_memory,
			COUNT(*) AS count`).
		Where("device_id = ? AND timestamp >= ?", deviceID, from).
		Scan(&row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute metric stats: %w", err)
	}

	return &model.MetricStats{
		AvgCPU:         deref(row.AvgCPU),
		MaxCPU:         deref(row.MaxCPU),
		MinCPU:         deref(row.MinCPU),
		AvgTemperature: deref(row.AvgTemperature),
		MaxTemperature: deref(row.MaxTemperature),
		MinTemperature: deref(row.MinTemperature),
		AvgMemory:      deref(row.AvgMemory),
		MaxMemory:      deref(row.MaxMemory),
		MinMemory:      deref(row.MinMemory),
		Count:          row.Count,
	}, nil
}

// DeleteBefore removes points older than before
func (r *MetricsRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.ds.DB(ctx).Where("timestamp < ?", before).Delete(&MetricPoint{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete old metrics: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
