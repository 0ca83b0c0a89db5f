package memory

import (
	"context"
	"math"
	"sort"
	"time"

	"fleetwatch/internal/model"
)

// MetricsRepository in-memory history
type MetricsRepository struct {
	s *Store
}

func (r *MetricsRepository) Append(ctx context.Context, point *model.MetricPoint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, err := clone(point)
	if err != nil {
		return err
	}
	r.s.points = append(r.s.points, stored)
	return nil
}

func (r *MetricsRepository) Range(ctx context.Context, deviceID string, from, to time.Time) ([]*model.MetricPoint, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*model.MetricPoint, 0)
	for _, p := range r.s.points {
		if p.DeviceID != deviceID || p.Timestamp.Before(from) || p.Timestamp.After(to) {
			continue
		}
		c, err := clone(p)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

type bucketAcc struct {
	cpu, temp, mem, disk, rx, tx running
	count                        int64
}

// running accumulates avg/min/max over the values actually reported
type running struct {
	sum, min, max float64
	n             int64
}

func (a *running) add(v *float64) {
	if v == nil {
		return
	}
	if a.n == 0 || *v < a.min {
		a.min = *v
	}
	if a.n == 0 || *v > a.max {
		a.max = *v
	}
	a.sum += *v
	a.n++
}

func (a *running) avg() float64 {
	if a.n == 0 {
		return 0
	}
	return math.Round(a.sum/float64(a.n)*100) / 100
}

func (r *MetricsRepository) Aggregate(ctx context.Context, deviceID string, from time.Time, granularity model.Granularity) ([]*model.MetricBucket, error) {
	points, err := r.Range(ctx, deviceID, from, time.Now().UTC().Add(time.Hour))
	if err != nil {
		return nil, err
	}

	accs := make(map[time.Time]*bucketAcc)
	keys := make([]time.Time, 0)
	for _, p := range points {
		key := granularity.Truncate(p.Timestamp)
		acc, ok := accs[key]
		if !ok {
			acc = &bucketAcc{}
			accs[key] = acc
			keys = append(keys, key)
		}
		acc.cpu.add(p.CPUUsage)
		acc.temp.add(p.TemperatureMain)
		acc.mem.add(p.MemoryPercent)
		acc.disk.add(p.DiskPercent)
		rx, tx := p.NetworkRxSec, p.NetworkTxSec
		acc.rx.add(&rx)
		acc.tx.add(&tx)
		acc.count++
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	out := make([]*model.MetricBucket, 0, len(keys))
	for _, key := range keys {
		acc := accs[key]
		out = append(out, &model.MetricBucket{
			Time:           key,
			AvgCPU:         acc.cpu.avg(),
			MaxCPU:         acc.cpu.max,
			AvgTemperature: acc.temp.avg(),
			MaxTemperature: acc.temp.max,
			AvgMemory:      acc.mem.avg(),
			AvgDisk:        acc.disk.avg(),
			AvgNetworkRx:   acc.rx.avg(),
			AvgNetworkTx:   acc.tx.avg(),
			Count:          acc.count,
		})
	}
	return out, nil
}

func (r *MetricsRepository) Stats(ctx context.Context, deviceID string, from time.Time) (*model.MetricStats, error) {
	points, err := r.Range(ctx, deviceID, from, time.Now().UTC().Add(time.Hour))
	if err != nil {
		return nil, err
	}

	var cpu, temp, mem running
	for _, p := range points {
		cpu.add(p.CPUUsage)
		temp.add(p.TemperatureMain)
		mem.add(p.MemoryPercent)
	}
	return &model.MetricStats{
		AvgCPU:         cpu.avg(),
		MaxCPU:         cpu.max,
		MinCPU:         cpu.min,
		AvgTemperature: temp.avg(),
		MaxTemperature: temp.max,
		MinTemperature: temp.min,
		AvgMemory:      mem.avg(),
		MaxMemory:      mem.max,
		MinMemory:      mem.min,
		Count:          int64(len(points)),
	}, nil
}

func (r *MetricsRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	kept := r.s.points[:0]
	var removed int64
	for _, p := range r.s.points {
		if p.Timestamp.Before(before) {
			removed++
			continue
		}
		kept = append(kept, p)
	}
	r.s.points = kept
	return removed, nil
}
