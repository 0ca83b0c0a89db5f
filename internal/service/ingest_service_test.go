package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"fleetwatch/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngest_MetricsTick(t *testing.T) {
	ctx := context.Background()
	f := newFixture("d1")
	f.addDevice("d1")

	tick := `{"cpu":{"usage":95},"temperature":{"main":55},"memory":{"usagePercent":40},"disk":"[{\"mount\":\"/\",\"usagePercent\":30}]"}`
	require.NoError(t, f.ingest.OnMetrics(ctx, "d1", json.RawMessage(tick)))

	device, err := f.devices.Get(ctx, "d1")
	require.NoError(t, err)
	require.NotNil(t, device.LastMetrics)
	assert.Equal(t, 95.0, *device.LastMetrics.CPU.Usage)
	require.Len(t, device.LastMetrics.Disk, 1)

	points, err := f.metrics.History(ctx, "d1", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 95.0, *points[0].CPUUsage)

	newAlerts := f.notifier.named(model.EventNewAlert)
	require.Len(t, newAlerts, 1)
	ev := newAlerts[0].Payload.(model.NewAlertEvent)
	assert.Equal(t, model.AlertTypeCPU, ev.Alert.Type)
	assert.Equal(t, "machine-d1", ev.Device.MachineID)

	updates := f.notifier.named(model.EventMetricsUpdate)
	require.Len(t, updates, 1)
	assert.Equal(t, "d1", updates[0].DeviceID)
	upd := updates[0].Payload.(model.MetricsUpdateEvent)
	require.Len(t, upd.Alerts, 1)

	// the next tick refreshes the same alert and announces nothing new
	f.clock.Advance(30 * time.Second)
	require.NoError(t, f.ingest.OnMetrics(ctx, "d1", json.RawMessage(`{"cpu":{"usage":97}}`)))
	assert.Len(t, f.notifier.named(model.EventNewAlert), 1)

	// recovery resolves it and reports an empty candidate list
	f.clock.Advance(30 * time.Second)
	require.NoError(t, f.ingest.OnMetrics(ctx, "d1", json.RawMessage(`{"cpu":{"usage":12}}`)))
	updates = f.notifier.named(model.EventMetricsUpdate)
	require.Len(t, updates, 3)
	last := updates[2].Payload.(model.MetricsUpdateEvent)
	assert.NotNil(t, last.Alerts)
	assert.Empty(t, last.Alerts)

	summary, err := f.alerts.Summary(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), summary.Total)
}

type recordingSink struct {
	mu     sync.Mutex
	alerts []*model.Alert
}

func (r *recordingSink) NotifyAlert(_ context.Context, alert *model.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, alert)
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts)
}

func TestIngest_NewAlertsForwardedToSink(t *testing.T) {
	ctx := context.Background()
	f := newFixture("d1")
	f.addDevice("d1")
	sink := &recordingSink{}
	f.ingest.SetAlertSink(sink)

	require.NoError(t, f.ingest.OnMetrics(ctx, "d1", json.RawMessage(`{"cpu":{"usage":95},"temperature":{"main":91}}`)))
	require.Eventually(t, func() bool { return sink.count() == 2 }, time.Second, 10*time.Millisecond)

	// refreshed alerts are not forwarded again
	f.clock.Advance(10 * time.Second)
	require.NoError(t, f.ingest.OnMetrics(ctx, "d1", json.RawMessage(`{"cpu":{"usage":96},"temperature":{"main":92}}`)))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, sink.count())
}

func TestIngest_StringEncodedTick(t *testing.T) {
	ctx := context.Background()
	f := newFixture("d1")
	f.addDevice("d1")

	raw, err := json.Marshal(`{"cpu":{"usage":20}}`)
	require.NoError(t, err)
	require.NoError(t, f.ingest.OnMetrics(ctx, "d1", raw))

	device, err := f.devices.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 20.0, *device.LastMetrics.CPU.Usage)
}

func TestIngest_OutOfRangeTimestamp(t *testing.T) {
	ctx := context.Background()
	f := newFixture("d1")
	f.addDevice("d1")

	require.NoError(t, f.ingest.OnMetrics(ctx, "d1", json.RawMessage(`{"cpu":{"usage":20},"timestamp":1e17}`)))

	device, err := f.devices.Get(ctx, "d1")
	require.NoError(t, err)
	require.NotNil(t, device.LastMetrics)
	assert.Equal(t, f.clock.Now().Truncate(time.Millisecond), device.LastMetrics.Timestamp)
	assert.Len(t, f.notifier.named(model.EventMetricsUpdate), 1)
}

func TestIngest_MalformedTickDropped(t *testing.T) {
	ctx := context.Background()
	f := newFixture("d1")
	f.addDevice("d1")

	assert.Error(t, f.ingest.OnMetrics(ctx, "d1", json.RawMessage(`[1,2,3]`)))
	assert.Error(t, f.ingest.OnMetrics(ctx, "d1", json.RawMessage(`{broken`)))

	device, err := f.devices.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Nil(t, device.LastMetrics)
	assert.Empty(t, f.notifier.named(model.EventMetricsUpdate))
}

func TestIngest_ConnectionLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture("d1")
	d := f.addDevice("d1")

	require.NoError(t, f.ingest.OnAgentConnected(ctx, d, "conn-1"))
	device, err := f.devices.Get(ctx, "d1")
	require.NoError(t, err)
	assert.True(t, device.IsOnline)
	assert.Len(t, f.notifier.named(model.EventDeviceConnected), 1)

	f.clock.Advance(time.Minute)
	require.NoError(t, f.ingest.OnPong(ctx, "d1"))
	device, err = f.devices.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now(), device.LastSeen.UTC())

	require.NoError(t, f.ingest.OnAgentDisconnected(ctx, d))
	device, err = f.devices.Get(ctx, "d1")
	require.NoError(t, err)
	assert.False(t, device.IsOnline)

	status := f.notifier.named(model.EventDeviceStatus)
	require.Len(t, status, 2)
	assert.False(t, status[1].Payload.(model.DeviceStatusEvent).IsOnline)
	assert.Len(t, f.notifier.named(model.EventDeviceDisconnected), 1)
}

func TestIngest_DeviceRegister(t *testing.T) {
	ctx := context.Background()
	f := newFixture("d1")
	f.addDevice("d1")

	payload := `{"deviceName":"lab-pi","systemInfo":{"os":{"distro":"Raspbian","release":"12","hostname":"lab"},"disk":"[{\"device\":\"/dev/mmcblk0\",\"size\":32000000000}]"}}`
	require.NoError(t, f.ingest.OnDeviceRegister(ctx, "d1", json.RawMessage(payload)))

	device, err := f.devices.Get(ctx, "d1")
	require.NoError(t, err)
	require.NotNil(t, device.SystemInfo)
	assert.Equal(t, "Raspbian", device.SystemInfo.OS.Distro)
	assert.Equal(t, "lab-pi", device.DeviceName)
}

func TestIngest_CommandResults(t *testing.T) {
	ctx := context.Background()
	f := newFixture("d1")
	f.addDevice("d1")

	run, err := f.dispatch.DispatchSingle(ctx, "d1", "uptime", "", "admin")
	require.NoError(t, err)

	// ad-hoc result without a run is only relayed
	require.NoError(t, f.ingest.OnCommandResult(ctx, "d1", json.RawMessage(`{"command":"ls","output":"a b","success":true}`)))
	relayed := f.notifier.named(model.EventCommandResultRelay)
	require.Len(t, relayed, 1)
	assert.Equal(t, "d1", relayed[0].Payload.(model.CommandResult).DeviceID)

	result := `{"executionId":"` + run.ID + `","output":"up 3 days","exitCode":0,"success":true}`
	require.NoError(t, f.ingest.OnCommandResult(ctx, "d1", json.RawMessage(result)))

	got, err := f.dispatch.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, got.Status)
	assert.Equal(t, "up 3 days", got.Device("d1").StepResults[0].Output)
	assert.Equal(t, "uptime", got.Device("d1").StepResults[0].Command)

	// duplicates are swallowed
	assert.NoError(t, f.ingest.OnCommandResult(ctx, "d1", json.RawMessage(result)))
	assert.NoError(t, f.ingest.OnWorkflowCommandResult(ctx, "d1", json.RawMessage(result)))

	relayedBefore := len(f.notifier.named(model.EventCommandResultRelay))

	// agents answer execute_command with workflow_command_result, exit codes may be errno names
	failing, err := f.dispatch.DispatchSingle(ctx, "d1", "ls /missing", "", "admin")
	require.NoError(t, err)
	frame := `{"executionId":"` + failing.ID + `","stepIndex":0,"error":"spawn ENOENT","exitCode":"ENOENT","success":false}`
	require.NoError(t, f.ingest.OnWorkflowCommandResult(ctx, "d1", json.RawMessage(frame)))

	got, err = f.dispatch.GetRun(ctx, failing.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	require.Len(t, got.Device("d1").StepResults, 1)
	assert.Equal(t, 1, got.Device("d1").StepResults[0].ExitCode)

	relayed = f.notifier.named(model.EventCommandResultRelay)
	require.Len(t, relayed, relayedBefore+1)
	last := relayed[len(relayed)-1].Payload.(model.CommandResult)
	assert.Equal(t, failing.ID, last.ExecutionID)
	assert.Equal(t, "d1", last.DeviceID)
	assert.Equal(t, "ls /missing", last.Command)
	assert.False(t, last.Success)

	assert.Error(t, f.ingest.OnWorkflowCommandResult(ctx, "d1", json.RawMessage(`{"output":"x"}`)))
	assert.Error(t, f.ingest.OnWorkflowCommandResult(ctx, "d1", json.RawMessage(`{"executionId":"nope","success":true}`)))
	assert.Error(t, f.ingest.OnCommandResult(ctx, "d1", json.RawMessage(`"oops"`)))
}

func TestIngest_WorkflowResultsByName(t *testing.T) {
	ctx := context.Background()
	f := newFixture("d1")
	f.addDevice("d1")

	def := model.RunDefinition{Name: "Update", Kind: model.RunKindWorkflow, Steps: threeSteps()}
	run, err := f.dispatch.DispatchWorkflowRun(ctx, def, []string{"d1"}, "", "admin")
	require.NoError(t, err)

	for _, name := range []string{"upgrade", "update", "clean"} {
		frame := `{"executionId":"` + run.ID + `","stepName":"` + name + `","success":true}`
		require.NoError(t, f.ingest.OnWorkflowCommandResult(ctx, "d1", json.RawMessage(frame)))
	}

	got, err := f.dispatch.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, got.Status)
	assert.Equal(t, 1, got.Device("d1").StepResults[0].StepIndex)
	assert.Equal(t, 0, got.Device("d1").StepResults[1].StepIndex)
	assert.Empty(t, f.notifier.named(model.EventCommandResultRelay))
}
