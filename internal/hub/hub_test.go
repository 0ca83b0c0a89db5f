package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"fleetwatch/internal/model"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedEvent struct {
	Name     string
	DeviceID string
	Data     string
}

type fakeEvents struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakeEvents) record(name, deviceID string, data json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{name, deviceID, string(data)})
	return nil
}

func (f *fakeEvents) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.Name == name {
			n++
		}
	}
	return n
}

func (f *fakeEvents) last(name string) recordedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.events) - 1; i >= 0; i-- {
		if f.events[i].Name == name {
			return f.events[i]
		}
	}
	return recordedEvent{}
}

func (f *fakeEvents) OnAgentConnected(_ context.Context, d *model.Device, _ string) error {
	return f.record("connected", d.ID, nil)
}
func (f *fakeEvents) OnAgentDisconnected(_ context.Context, d *model.Device) error {
	return f.record("disconnected", d.ID, nil)
}
func (f *fakeEvents) OnDeviceRegister(_ context.Context, id string, raw json.RawMessage) error {
	return f.record(model.EventDeviceRegister, id, raw)
}
func (f *fakeEvents) OnMetrics(_ context.Context, id string, raw json.RawMessage) error {
	return f.record(model.EventMetrics, id, raw)
}
func (f *fakeEvents) OnCommandResult(_ context.Context, id string, raw json.RawMessage) error {
	return f.record(model.EventCommandResult, id, raw)
}
func (f *fakeEvents) OnWorkflowCommandResult(_ context.Context, id string, raw json.RawMessage) error {
	return f.record(model.EventWorkflowCommandResult, id, raw)
}
func (f *fakeEvents) OnPong(_ context.Context, id string) error {
	return f.record(model.EventPong, id, nil)
}

type fakePresence struct {
	mu      sync.Mutex
	online  map[string]string
	refresh int
}

func (p *fakePresence) MarkOnline(_ context.Context, id, connID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[id] = connID
	return nil
}

func (p *fakePresence) MarkOffline(_ context.Context, id, connID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.online[id] == connID {
		delete(p.online, id)
	}
	return nil
}

func (p *fakePresence) Refresh(_ context.Context, ids []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refresh += len(ids)
	return nil
}

func (p *fakePresence) OnlineDevices(context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.online))
	for id := range p.online {
		out = append(out, id)
	}
	return out, nil
}

func (p *fakePresence) conn(id string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online[id]
}

func (p *fakePresence) isOnline(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.online[id]
	return ok
}

type testServer struct {
	hub      *Hub
	events   *fakeEvents
	presence *fakePresence
	srv      *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{events: &fakeEvents{}, presence: &fakePresence{online: map[string]string{}}}
	ts.hub = NewHub(ts.events, ts.presence)

	mux := http.NewServeMux()
	mux.HandleFunc("/agent/ws", func(w http.ResponseWriter, r *http.Request) {
		creds := CredentialsFromRequest(r)
		if creds.APIKey == "" {
			http.Error(w, "missing credentials", http.StatusUnauthorized)
			return
		}
		device := &model.Device{ID: strings.TrimPrefix(creds.APIKey, "key-"), DeviceName: creds.DeviceName}
		_ = ts.hub.ServeAgent(w, r, device)
	})
	mux.HandleFunc("/client/ws", func(w http.ResponseWriter, r *http.Request) {
		_ = ts.hub.ServeDashboard(w, r, "user-1")
	})
	ts.srv = httptest.NewServer(mux)
	t.Cleanup(func() {
		ts.hub.Close()
		ts.srv.Close()
	})
	return ts
}

func (ts *testServer) dial(t *testing.T, path string, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + path
	ws, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func (ts *testServer) dialAgent(t *testing.T, deviceID string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	header.Set("X-API-Key", "key-"+deviceID)
	header.Set("X-Machine-ID", "machine-"+deviceID)
	prev := ts.presence.conn(deviceID)
	ws := ts.dial(t, "/agent/ws", header)
	require.Eventually(t, func() bool {
		current := ts.presence.conn(deviceID)
		return current != "" && current != prev
	}, 2*time.Second, 10*time.Millisecond)
	return ws
}

func readFrame(t *testing.T, ws *websocket.Conn) model.Envelope {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env model.Envelope
	require.NoError(t, ws.ReadJSON(&env))
	return env
}

func TestCredentialsFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/agent/ws?apiKey=q-key&machineId=q-machine&deviceName=pi", nil)
	r.Header.Set("X-API-Key", "h-key")

	creds := CredentialsFromRequest(r)
	assert.Equal(t, AgentCredentials{APIKey: "h-key", MachineID: "q-machine", DeviceName: "pi"}, creds)
}

func TestHub_AgentRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	ws := ts.dialAgent(t, "d1")

	assert.Equal(t, 1, ts.events.count("connected"))
	assert.True(t, ts.presence.isOnline("d1"))

	idx := 0
	require.NoError(t, ts.hub.SendToAgent("d1", model.EventExecuteCommand, model.ExecuteCommand{Command: "uptime", DeviceID: "d1", StepIndex: &idx}))
	env := readFrame(t, ws)
	assert.Equal(t, model.EventExecuteCommand, env.Event)
	var cmd model.ExecuteCommand
	require.NoError(t, json.Unmarshal(env.Data, &cmd))
	assert.Equal(t, "uptime", cmd.Command)

	require.NoError(t, ws.WriteJSON(model.OutboundMessage{Event: model.EventMetrics, Data: map[string]interface{}{"cpu": map[string]float64{"usage": 12}}}))
	require.NoError(t, ws.WriteJSON(model.OutboundMessage{Event: model.EventPong}))
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, ws.WriteJSON(model.OutboundMessage{Event: model.EventCommandResult, Data: map[string]string{"output": "ok"}}))

	require.Eventually(t, func() bool { return ts.events.count(model.EventCommandResult) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, ts.events.last(model.EventMetrics).Data, `"usage":12`)
	assert.Equal(t, 1, ts.events.count(model.EventPong))

	assert.Equal(t, 1, ts.hub.PingAgents(context.Background()))
	assert.Equal(t, model.EventPing, readFrame(t, ws).Event)

	assert.ErrorIs(t, ts.hub.SendToAgent("nobody", model.EventPing, nil), ErrAgentNotConnected)
}

func TestHub_ReplacementKeepsDeviceOnline(t *testing.T) {
	ts := newTestServer(t)
	first := ts.dialAgent(t, "d1")
	second := ts.dialAgent(t, "d1")

	// the replaced socket is closed by the server
	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := first.ReadMessage()
	require.Error(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, ts.events.count("disconnected"))
	assert.True(t, ts.hub.IsAgentConnected("d1"))
	assert.True(t, ts.presence.isOnline("d1"))

	require.NoError(t, ts.hub.SendToAgent("d1", model.EventPing, nil))
	assert.Equal(t, model.EventPing, readFrame(t, second).Event)

	second.Close()
	require.Eventually(t, func() bool { return !ts.hub.IsAgentConnected("d1") }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return ts.events.count("disconnected") == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.False(t, ts.presence.isOnline("d1"))
}

func TestHub_DisconnectAgent(t *testing.T) {
	ts := newTestServer(t)
	ws := ts.dialAgent(t, "d1")

	ts.hub.DisconnectAgent("d1")

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := ws.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
	require.Eventually(t, func() bool { return ts.events.count("disconnected") == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_DashboardSubscriptions(t *testing.T) {
	ts := newTestServer(t)
	ws := ts.dial(t, "/client/ws", nil)

	subscribedTo := func(id string) func() bool {
		return func() bool {
			ts.hub.mu.RLock()
			defer ts.hub.mu.RUnlock()
			for c := range ts.hub.dashboards {
				if c.subscribed(id) {
					return true
				}
			}
			return false
		}
	}

	require.NoError(t, ws.WriteJSON(model.OutboundMessage{Event: model.EventSubscribeDevice, Data: "d1"}))
	require.NoError(t, ws.WriteJSON(model.OutboundMessage{Event: model.EventSubscribeDevice, Data: map[string]string{"deviceId": "d2"}}))
	require.Eventually(t, subscribedTo("d2"), 2*time.Second, 10*time.Millisecond)
	require.True(t, subscribedTo("d1")())

	ts.hub.EmitToDevice("d3", model.EventDeviceStatus, model.DeviceStatusEvent{DeviceID: "d3"})
	ts.hub.EmitToDevice("d1", model.EventDeviceStatus, model.DeviceStatusEvent{DeviceID: "d1", IsOnline: true})
	env := readFrame(t, ws)
	assert.Equal(t, model.EventDeviceStatus, env.Event)
	assert.JSONEq(t, `{"deviceId":"d1","isOnline":true}`, string(env.Data))

	ts.hub.Broadcast(model.EventDeviceConnected, model.DeviceConnectionEvent{DeviceID: "d9"})
	assert.Equal(t, model.EventDeviceConnected, readFrame(t, ws).Event)

	require.NoError(t, ws.WriteJSON(model.OutboundMessage{Event: model.EventUnsubscribeDevice, Data: "d1"}))
	require.Eventually(t, func() bool { return !subscribedTo("d1")() }, 2*time.Second, 10*time.Millisecond)
}

func TestSubscriptionTarget(t *testing.T) {
	assert.Equal(t, "d1", subscriptionTarget(json.RawMessage(`"d1"`)))
	assert.Equal(t, "d2", subscriptionTarget(json.RawMessage(`{"deviceId":" d2 "}`)))
	assert.Equal(t, "", subscriptionTarget(json.RawMessage(`42`)))
	assert.Equal(t, "", subscriptionTarget(nil))
}
