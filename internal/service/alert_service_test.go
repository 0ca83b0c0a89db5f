package service

import (
	"context"
	"testing"
	"time"

	"fleetwatch/internal/model"
	"fleetwatch/internal/telemetry"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cpuCandidate(v float64) model.CandidateAlert {
	return model.CandidateAlert{Type: model.AlertTypeCPU, Severity: model.SeverityWarning, Message: "High CPU", Value: v, Threshold: 90}
}

func activeAlerts(t *testing.T, f *fixture, deviceID string, alertType model.AlertType) []*model.Alert {
	t.Helper()
	alerts, _, err := f.store.Alerts.List(context.Background(), model.AlertFilter{
		DeviceID: deviceID, Status: model.AlertStatusActive, Type: alertType, Limit: 100,
	})
	require.NoError(t, err)
	return alerts
}

func TestAlertService_CPUScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	d := f.addDevice("d1")

	created, err := f.alerts.Process(ctx, d, []model.CandidateAlert{cpuCandidate(95)})
	require.NoError(t, err)
	require.Len(t, created, 1)
	alertID := created[0].ID

	f.clock.Advance(10 * time.Second)
	created, err = f.alerts.Process(ctx, d, []model.CandidateAlert{cpuCandidate(96)})
	require.NoError(t, err)
	assert.Empty(t, created, "refresh must not notify again")

	active := activeAlerts(t, f, "d1", model.AlertTypeCPU)
	require.Len(t, active, 1)
	assert.Equal(t, alertID, active[0].ID)
	assert.Equal(t, 96.0, active[0].Value)

	f.clock.Advance(10 * time.Second)
	created, err = f.alerts.Process(ctx, d, nil)
	require.NoError(t, err)
	assert.Empty(t, created)

	resolved, err := f.alerts.Get(ctx, alertID)
	require.NoError(t, err)
	assert.Equal(t, model.AlertStatusResolved, resolved.Status)
	assert.Equal(t, model.AutoResolveNote, resolved.ResolutionNotes)
	require.NotNil(t, resolved.ResolvedAt)
}

func TestAlertService_DedupWindowExpires(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	d := f.addDevice("d1")

	_, err := f.alerts.Process(ctx, d, []model.CandidateAlert{cpuCandidate(95)})
	require.NoError(t, err)

	f.clock.Advance(DedupWindow + time.Second)
	created, err := f.alerts.Process(ctx, d, []model.CandidateAlert{cpuCandidate(97)})
	require.NoError(t, err)
	assert.Len(t, created, 1, "a breach after the window opens a new alert")
}

func TestAlertService_CriticalTemperature(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	d := f.addDevice("d1")
	d.LastMetrics = &model.Snapshot{Temperature: &model.TemperatureStats{Main: fptr(90)}}

	created, err := f.alerts.Process(ctx, d, EvaluateAlertConditions(d))
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, model.SeverityCritical, created[0].Severity)
	assert.Equal(t, 80.0, created[0].Threshold)
}

func TestAlertService_DiskMountMetadata(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	d := f.addDevice("d1")
	d.LastMetrics = &model.Snapshot{Disk: []model.DiskUsage{{Mount: "/data", UsagePercent: fptr(97)}}}

	created, err := f.alerts.Process(ctx, d, telemetry.EvaluateThresholds(d.LastMetrics, d.AlertConfig))
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "/data", created[0].Metadata["mount"])
	assert.Equal(t, model.SeverityCritical, created[0].Severity)
}

func TestAlertService_ManualTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	d := f.addDevice("d1")

	created, err := f.alerts.Process(ctx, d, []model.CandidateAlert{cpuCandidate(95)})
	require.NoError(t, err)
	id := created[0].ID

	acked, err := f.alerts.Acknowledge(ctx, id, "user-1")
	require.NoError(t, err)
	assert.Equal(t, model.AlertStatusAcknowledged, acked.Status)
	assert.Equal(t, "user-1", acked.ResolvedBy)
	require.NotNil(t, acked.AcknowledgedAt)

	_, err = f.alerts.Acknowledge(ctx, id, "user-1")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	resolved, err := f.alerts.Resolve(ctx, id, "user-2", "rebooted")
	require.NoError(t, err)
	assert.Equal(t, model.AlertStatusResolved, resolved.Status)
	assert.Equal(t, "rebooted", resolved.ResolutionNotes)

	_, err = f.alerts.Resolve(ctx, id, "user-2", "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.alerts.Acknowledge(ctx, "missing", "user-1")
	assert.ErrorIs(t, err, ErrAlertNotFound)
}

func TestAlertService_Bulk(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	d := f.addDevice("d1")

	created, err := f.alerts.Process(ctx, d, []model.CandidateAlert{
		cpuCandidate(95),
		{Type: model.AlertTypeMemory, Severity: model.SeverityWarning, Value: 90, Threshold: 85},
		{Type: model.AlertTypeTemperature, Severity: model.SeverityCritical, Value: 88, Threshold: 80},
	})
	require.NoError(t, err)
	require.Len(t, created, 3)
	ids := []string{created[0].ID, created[1].ID, created[2].ID}

	_, err = f.alerts.Acknowledge(ctx, ids[0], "u")
	require.NoError(t, err)

	n, err := f.alerts.BulkAcknowledge(ctx, ids, "u")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "only active alerts are acknowledged")

	n, err = f.alerts.BulkResolve(ctx, append(ids, "missing"), "u", "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	_, err = f.alerts.BulkResolve(ctx, nil, "u", "")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	summary, err := f.alerts.Summary(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(0), summary.Total)
}

func TestAlertService_SummaryAndCleanup(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	d := f.addDevice("d1")

	created, err := f.alerts.Process(ctx, d, []model.CandidateAlert{
		cpuCandidate(95),
		{Type: model.AlertTypeTemperature, Severity: model.SeverityCritical, Value: 88, Threshold: 80},
	})
	require.NoError(t, err)

	summary, err := f.alerts.Summary(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, &model.AlertSummary{Total: 2, Warning: 1, Critical: 1}, summary)

	_, err = f.alerts.Resolve(ctx, created[0].ID, "u", "")
	require.NoError(t, err)

	f.clock.Advance(91 * 24 * time.Hour)
	n, err := f.alerts.Cleanup(ctx, 90)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = f.alerts.Get(ctx, created[0].ID)
	assert.ErrorIs(t, err, ErrAlertNotFound)
	assert.NoError(t, f.alerts.Delete(ctx, created[1].ID))
	assert.ErrorIs(t, f.alerts.Delete(ctx, created[1].ID), ErrAlertNotFound)
}

func TestProperty_AlertEngine(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)
	types := []model.AlertType{model.AlertTypeCPU, model.AlertTypeTemperature, model.AlertTypeMemory, model.AlertTypeDisk}

	properties.Property("two breaches within the window leave one active alert with the second value", prop.ForAll(
		func(typeIdx int, gapSeconds int, first, second float64) bool {
			ctx := context.Background()
			f := newFixture()
			d := f.addDevice("d1")
			alertType := types[typeIdx]

			c := model.CandidateAlert{Type: alertType, Severity: model.SeverityWarning, Value: first, Threshold: 50}
			if _, err := f.alerts.Process(ctx, d, []model.CandidateAlert{c}); err != nil {
				return false
			}
			f.clock.Advance(time.Duration(gapSeconds) * time.Second)
			c.Value = second
			created, err := f.alerts.Process(ctx, d, []model.CandidateAlert{c})
			if err != nil || len(created) != 0 {
				return false
			}

			active := activeAlerts(t, f, "d1", alertType)
			return len(active) == 1 && active[0].Value == second
		},
		gen.IntRange(0, len(types)-1),
		gen.IntRange(0, int(DedupWindow/time.Second)-1),
		gen.Float64Range(50, 100),
		gen.Float64Range(50, 100),
	))

	properties.Property("a tick without a breach resolves that type even when nothing fired", prop.ForAll(
		func(breachedMask, nextMask uint8) bool {
			ctx := context.Background()
			f := newFixture()
			d := f.addDevice("d1")

			var initial []model.CandidateAlert
			for i, tp := range types {
				if breachedMask&(1<<i) != 0 {
					initial = append(initial, model.CandidateAlert{Type: tp, Severity: model.SeverityWarning, Value: 99, Threshold: 50})
				}
			}
			if _, err := f.alerts.Process(ctx, d, initial); err != nil {
				return false
			}

			f.clock.Advance(time.Second)
			var next []model.CandidateAlert
			for i, tp := range types {
				if nextMask&(1<<i) != 0 {
					next = append(next, model.CandidateAlert{Type: tp, Severity: model.SeverityWarning, Value: 98, Threshold: 50})
				}
			}
			if _, err := f.alerts.Process(ctx, d, next); err != nil {
				return false
			}

			for i, tp := range types {
				active := activeAlerts(t, f, "d1", tp)
				if nextMask&(1<<i) == 0 && len(active) != 0 {
					return false
				}
				if nextMask&(1<<i) != 0 && len(active) != 1 {
					return false
				}
			}
			return true
		},
		gen.UInt8Range(0, 15),
		gen.UInt8Range(0, 15),
	))

	properties.TestingRun(t)
}
