package mysql

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"fleetwatch/internal/model"
	"fleetwatch/pkg/interfaces"
	dbmodel "fleetwatch/pkg/store/mysql/model"
)

func TestDeviceConverter(t *testing.T) {
	usage := 42.5
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d := &model.Device{
		ID:          "dev-1",
		MachineID:   "machine-1",
		DeviceName:  "pi-kitchen",
		APIKey:      "secret",
		IsActive:    true,
		AlertConfig: model.DefaultAlertConfig(),
		LastMetrics: &model.Snapshot{CPU: &model.CPUStats{Usage: &usage, LoadAvg: []float64{}, Cores: []model.CoreLoad{}}, Timestamp: now},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	row := FromDeviceDomain(d)
	assert.Equal(t, "dev-1", row.DeviceID)
	assert.Equal(t, "secret", row.APIKey)

	back := ToDeviceDomain(row)
	assert.Equal(t, d.AlertConfig, back.AlertConfig)
	require.NotNil(t, back.LastMetrics)
	assert.Equal(t, 42.5, *back.LastMetrics.CPU.Usage)
	assert.NotNil(t, back.Tags, "tags are never nil")
}

func TestJSONColumnScan(t *testing.T) {
	var col dbmodel.JSONColumn[[]model.RunDevice]
	require.NoError(t, col.Scan([]byte(`[{"deviceId":"d1","status":"running","stepResults":[]}]`)))
	require.Len(t, col.Data, 1)
	assert.Equal(t, model.RunStatusRunning, col.Data[0].Status)

	require.NoError(t, col.Scan(nil))
	assert.Nil(t, col.Data)

	assert.Error(t, col.Scan(42))

	var info dbmodel.JSONColumn[*model.SystemInfo]
	require.NoError(t, info.Scan("null"))
	assert.Nil(t, info.Data)

	v, err := dbmodel.NewJSONColumn(model.RunSummary{TotalDevices: 2}).Value()
	require.NoError(t, err)
	assert.Contains(t, v, `"totalDevices":2`)
}

func TestRunConverter(t *testing.T) {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	run := &model.Run{
		ID:            "run-1",
		WorkflowID:    "wf-1",
		Kind:          model.RunKindWorkflow,
		Steps:         []model.WorkflowStep{{Name: "update", Command: "apt update", Timeout: 60}},
		Devices:       []model.RunDevice{{DeviceID: "d1", Status: model.RunStatusRunning, StepResults: []model.StepResult{}}},
		Status:        model.RunStatusRunning,
		StartedAt:     started,
		ExecutionMode: model.ExecutionModeParallel,
		Summary:       model.RunSummary{TotalDevices: 1, TotalSteps: 1},
	}

	back := ToRunDomain(FromRunDomain(run))
	assert.Equal(t, run, back)
}

func TestToMetricBucket(t *testing.T) {
	avg := 12.5
	bucket, err := toMetricBucket(MetricBucketRow{Bucket: "2026-03-01 12:00:00", AvgCPU: &avg, Count: 3})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), bucket.Time)
	assert.Equal(t, 12.5, bucket.AvgCPU)
	assert.Equal(t, 0.0, bucket.MaxTemperature)
	assert.Equal(t, int64(3), bucket.Count)

	_, err = toMetricBucket(MetricBucketRow{Bucket: "garbage"})
	assert.Error(t, err)
}

func TestTranslateError(t *testing.T) {
	assert.NoError(t, translateError(nil))
	assert.ErrorIs(t, translateError(gorm.ErrRecordNotFound), interfaces.ErrNotFound)
	assert.ErrorIs(t, translateError(gorm.ErrDuplicatedKey), interfaces.ErrDuplicate)

	other := errors.New("boom")
	assert.Equal(t, other, translateError(other))
}

func TestNormalizePage(t *testing.T) {
	page, limit := normalizePage(0, 0)
	assert.Equal(t, 1, page)
	assert.Equal(t, 50, limit)

	page, limit = normalizePage(3, 10)
	assert.Equal(t, 3, page)
	assert.Equal(t, 10, limit)
}
