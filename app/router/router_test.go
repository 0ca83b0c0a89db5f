package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fleetwatch/app/handler"
	"fleetwatch/app/middleware"
	"fleetwatch/internal/hub"
	"fleetwatch/internal/model"
	"fleetwatch/internal/service"
	"fleetwatch/pkg/queue/local"
	"fleetwatch/pkg/store/memory"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "router-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type testApp struct {
	srv   *httptest.Server
	hub   *hub.Hub
	admin string
	user  string
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Count   *int            `json:"count"`
	Total   *int64          `json:"total"`
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	repos := memory.NewStore().Repositories()
	scheduler := local.NewDeadlineScheduler()
	t.Cleanup(scheduler.Stop)

	devices := service.NewDeviceService(repos.Devices)
	metrics := service.NewMetricsService(repos.Metrics, repos.Devices)
	alerts := service.NewAlertService(repos.Alerts)
	dispatch := service.NewDispatchService(repos, scheduler, 30*time.Second)
	flows := service.NewWorkflowService(repos.Workflows, repos.QuickActions)
	ingest := service.NewIngestService(devices, metrics, alerts, dispatch)
	require.NoError(t, scheduler.Start(dispatch.HandleDeadline))

	h := hub.NewHub(ingest, nil)
	ingest.SetNotifier(h)
	dispatch.SetGateway(h)
	dispatch.SetNotifier(h)
	devices.SetGateway(h)

	r := NewRouter(
		handler.NewDeviceHandler(devices, metrics, alerts, dispatch),
		handler.NewAlertHandler(alerts),
		handler.NewWorkflowHandler(flows, dispatch),
		handler.NewWSHandler(ingest, h, testSecret),
		handler.NewHealthHandler(memoryPinger{}, h),
		testSecret, nil,
	)
	engine := gin.New()
	r.Setup(engine)

	app := &testApp{srv: httptest.NewServer(engine), hub: h}
	t.Cleanup(func() {
		h.Close()
		app.srv.Close()
	})
	app.admin = issue(t, "admin-1", middleware.RoleAdmin)
	app.user = issue(t, "user-1", "user")
	return app
}

type memoryPinger struct{}

func (memoryPinger) Ping(context.Context) error { return nil }

func issue(t *testing.T, id, role string) string {
	t.Helper()
	tok, err := middleware.IssueToken(testSecret, middleware.Claims{ID: id, Role: role, Username: id}, time.Hour)
	require.NoError(t, err)
	return tok
}

func (a *testApp) do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, a.srv.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	_ = json.NewDecoder(resp.Body).Decode(&env)
	return resp.StatusCode, env
}

func (a *testApp) dialAgent(t *testing.T, apiKey, machineID string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	header := http.Header{}
	header.Set("X-API-Key", apiKey)
	header.Set("X-Machine-ID", machineID)
	url := "ws" + strings.TrimPrefix(a.srv.URL, "http") + "/agent/ws"
	return websocket.DefaultDialer.Dial(url, header)
}

func createDevice(t *testing.T, a *testApp, name string) *model.Device {
	t.Helper()
	status, env := a.do(t, http.MethodPost, "/api/devices", a.admin, gin.H{"deviceName": name})
	require.Equal(t, http.StatusCreated, status, env.Message)
	var device model.Device
	require.NoError(t, json.Unmarshal(env.Data, &device))
	require.NotEmpty(t, device.APIKey)
	return &device
}

func TestHealth_NoAuth(t *testing.T) {
	a := newTestApp(t)
	status, env := a.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)
	assert.Contains(t, string(env.Data), `"connectedAgents":0`)
}

func TestAPI_RequiresToken(t *testing.T) {
	a := newTestApp(t)

	status, env := a.do(t, http.MethodGet, "/api/devices", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.False(t, env.Success)

	status, _ = a.do(t, http.MethodGet, "/api/devices", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env = a.do(t, http.MethodGet, "/api/devices", a.user, nil)
	assert.Equal(t, http.StatusOK, status)
	require.NotNil(t, env.Count)
	assert.Equal(t, 0, *env.Count)
}

func TestAPI_AdminRoutes(t *testing.T) {
	a := newTestApp(t)

	status, _ := a.do(t, http.MethodPost, "/api/devices", a.user, gin.H{"deviceName": "pi"})
	assert.Equal(t, http.StatusForbidden, status)

	device := createDevice(t, a, "pi")

	status, _ = a.do(t, http.MethodDelete, "/api/devices/"+device.ID, a.user, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, env := a.do(t, http.MethodPost, "/api/devices/"+device.ID+"/regenerate-key", a.admin, nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotContains(t, string(env.Data), device.APIKey)

	status, _ = a.do(t, http.MethodDelete, "/api/devices/"+device.ID, a.admin, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestAPI_ErrorMapping(t *testing.T) {
	a := newTestApp(t)
	device := createDevice(t, a, "pi")

	cases := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{"unknown device", http.MethodGet, "/api/devices/nope", nil, http.StatusNotFound},
		{"unknown alert", http.MethodPut, "/api/alerts/nope/acknowledge", nil, http.StatusNotFound},
		{"unknown run", http.MethodGet, "/api/runs/nope", nil, http.StatusNotFound},
		{"unknown workflow", http.MethodPost, "/api/workflows/nope/execute", nil, http.StatusNotFound},
		{"bad period", http.MethodGet, "/api/devices/" + device.ID + "/metrics?period=2w", nil, http.StatusBadRequest},
		{"missing command", http.MethodPost, "/api/devices/" + device.ID + "/command", gin.H{}, http.StatusBadRequest},
		{"offline device", http.MethodPost, "/api/devices/" + device.ID + "/command", gin.H{"command": "uptime"}, http.StatusBadRequest},
		{"empty inline run", http.MethodPost, "/api/workflows/run", gin.H{"steps": []gin.H{}, "deviceIds": []string{device.ID}}, http.StatusBadRequest},
		{"no valid targets", http.MethodPost, "/api/workflows/run", gin.H{"steps": []gin.H{{"command": "uptime"}}, "deviceIds": []string{"ghost"}}, http.StatusBadRequest},
		{"bad execution mode", http.MethodPost, "/api/workflows/run", gin.H{"steps": []gin.H{{"command": "uptime"}}, "deviceIds": []string{device.ID}, "executionMode": "random"}, http.StatusBadRequest},
		{"bulk without ids", http.MethodPost, "/api/alerts/bulk/acknowledge", gin.H{}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, env := a.do(t, tc.method, tc.path, a.user, tc.body)
			assert.Equal(t, tc.want, status, env.Message)
			assert.False(t, env.Success)
		})
	}
}

func TestAgentHandshake_Rejected(t *testing.T) {
	a := newTestApp(t)

	_, resp, err := a.dialAgent(t, "", "machine-1")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = a.dialAgent(t, "some-key", "")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDashboardHandshake_RequiresToken(t *testing.T) {
	a := newTestApp(t)
	base := "ws" + strings.TrimPrefix(a.srv.URL, "http") + "/client/ws"

	_, resp, err := websocket.DefaultDialer.Dial(base, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	ws, _, err := websocket.DefaultDialer.Dial(base+"?token="+a.user, nil)
	require.NoError(t, err)
	_ = ws.Close()
}

// An agent connects with a pre-provisioned credential, receives a command pushed
// through the API and reports its result.
func TestCommandRoundTrip(t *testing.T) {
	a := newTestApp(t)
	device := createDevice(t, a, "lab-pi")

	ws, _, err := a.dialAgent(t, device.APIKey, "machine-lab-pi")
	require.NoError(t, err)
	defer ws.Close()

	require.Eventually(t, func() bool {
		_, env := a.do(t, http.MethodGet, "/api/devices/"+device.ID, a.user, nil)
		var d model.Device
		return json.Unmarshal(env.Data, &d) == nil && d.IsOnline
	}, 2*time.Second, 20*time.Millisecond)

	status, env := a.do(t, http.MethodPost, "/api/devices/"+device.ID+"/command", a.user, gin.H{"command": "uptime"})
	require.Equal(t, http.StatusOK, status, env.Message)
	var sent struct {
		ExecutionID string `json:"executionId"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &sent))
	require.NotEmpty(t, sent.ExecutionID)

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var cmd model.ExecuteCommand
	for {
		var frame struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		require.NoError(t, ws.ReadJSON(&frame))
		if frame.Event == model.EventExecuteCommand {
			require.NoError(t, json.Unmarshal(frame.Data, &cmd))
			break
		}
	}
	assert.Equal(t, "uptime", cmd.Command)
	assert.Equal(t, sent.ExecutionID, cmd.ExecutionID)

	require.NoError(t, ws.WriteJSON(gin.H{
		"event": model.EventCommandResult,
		"data": gin.H{
			"executionId": cmd.ExecutionID,
			"stepIndex":   0,
			"command":     "uptime",
			"output":      "up 3 days",
			"exitCode":    0,
			"success":     true,
		},
	}))

	require.Eventually(t, func() bool {
		_, env := a.do(t, http.MethodGet, "/api/runs/"+sent.ExecutionID, a.user, nil)
		var run model.Run
		return json.Unmarshal(env.Data, &run) == nil && run.Status == model.RunStatusCompleted
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWorkflowLifecycle(t *testing.T) {
	a := newTestApp(t)
	device := createDevice(t, a, "pi")

	status, env := a.do(t, http.MethodPost, "/api/workflows", a.user, gin.H{
		"name":  "update",
		"steps": []gin.H{{"name": "pull", "command": "git pull"}},
	})
	require.Equal(t, http.StatusCreated, status, env.Message)
	var wf model.Workflow
	require.NoError(t, json.Unmarshal(env.Data, &wf))

	// The only target is offline, so the run ends failed straight away
	status, env = a.do(t, http.MethodPost, "/api/workflows/"+wf.ID+"/execute", a.user, gin.H{"deviceIds": []string{device.ID}})
	require.Equal(t, http.StatusCreated, status, env.Message)
	var run model.Run
	require.NoError(t, json.Unmarshal(env.Data, &run))
	assert.Equal(t, model.RunStatusFailed, run.Status)

	status, env = a.do(t, http.MethodGet, "/api/workflows/"+wf.ID+"/executions", a.user, nil)
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, env.Total)
	assert.Equal(t, int64(1), *env.Total)

	status, _ = a.do(t, http.MethodGet, "/api/workflows/templates/list", a.user, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = a.do(t, http.MethodDelete, "/api/workflows/"+wf.ID, a.user, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = a.do(t, http.MethodGet, "/api/workflows/"+wf.ID, a.user, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestQuickActions(t *testing.T) {
	a := newTestApp(t)

	status, env := a.do(t, http.MethodPost, "/api/quick-actions", a.user, gin.H{"name": "Disk usage", "command": "df -h"})
	require.Equal(t, http.StatusCreated, status, env.Message)
	var action model.QuickAction
	require.NoError(t, json.Unmarshal(env.Data, &action))

	status, env = a.do(t, http.MethodGet, "/api/quick-actions", a.user, nil)
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, env.Count)
	assert.Equal(t, 1, *env.Count)

	status, _ = a.do(t, http.MethodPost, "/api/quick-actions/"+action.ID+"/execute", a.user, gin.H{"deviceIds": []string{"ghost"}})
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = a.do(t, http.MethodGet, "/api/quick-actions/presets/list", a.user, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.NotNil(t, env.Count)

	status, env = a.do(t, http.MethodPut, "/api/quick-actions/"+action.ID, a.user, gin.H{"command": "df -h /"})
	require.Equal(t, http.StatusOK, status, env.Message)
	require.NoError(t, json.Unmarshal(env.Data, &action))
	assert.Equal(t, "df -h /", action.Command)

	status, _ = a.do(t, http.MethodPut, "/api/quick-actions/nope", a.user, gin.H{"command": "true"})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = a.do(t, http.MethodDelete, "/api/quick-actions/"+action.ID, a.user, nil)
	assert.Equal(t, http.StatusOK, status)
}
