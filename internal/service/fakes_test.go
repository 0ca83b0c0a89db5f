package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"fleetwatch/internal/model"
	"fleetwatch/pkg/interfaces"
	"fleetwatch/pkg/store/memory"
)

type sentMessage struct {
	DeviceID string
	Event    string
	Payload  interface{}
}

type fakeGateway struct {
	mu           sync.Mutex
	online       map[string]bool
	failing      map[string]bool
	sent         []sentMessage
	disconnected []string
}

func newFakeGateway(online ...string) *fakeGateway {
	g := &fakeGateway{online: map[string]bool{}, failing: map[string]bool{}}
	for _, id := range online {
		g.online[id] = true
	}
	return g
}

func (g *fakeGateway) SendToAgent(deviceID, event string, payload interface{}) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.online[deviceID] || g.failing[deviceID] {
		return errors.New("agent not connected")
	}
	g.sent = append(g.sent, sentMessage{deviceID, event, payload})
	return nil
}

func (g *fakeGateway) IsAgentConnected(deviceID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.online[deviceID]
}

func (g *fakeGateway) DisconnectAgent(deviceID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.online, deviceID)
	g.disconnected = append(g.disconnected, deviceID)
}

func (g *fakeGateway) sentTo(deviceID string) []sentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []sentMessage
	for _, m := range g.sent {
		if m.DeviceID == deviceID {
			out = append(out, m)
		}
	}
	return out
}

type emitted struct {
	DeviceID string // empty for broadcasts
	Event    string
	Payload  interface{}
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []emitted
}

func (n *fakeNotifier) EmitToDevice(deviceID, event string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, emitted{deviceID, event, payload})
}

func (n *fakeNotifier) Broadcast(event string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, emitted{"", event, payload})
}

func (n *fakeNotifier) named(event string) []emitted {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []emitted
	for _, e := range n.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

type scheduled struct {
	Deadline model.StepDeadline
	Delay    time.Duration
}

type fakeScheduler struct {
	mu    sync.Mutex
	items []scheduled
}

func (s *fakeScheduler) Schedule(_ context.Context, d model.StepDeadline, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, scheduled{d, delay})
	return nil
}

func (s *fakeScheduler) Start(interfaces.DeadlineHandler) error { return nil }
func (s *fakeScheduler) Stop()                                  {}

// clock a settable time source
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fixture every service wired to one in-memory store
type fixture struct {
	store    *memory.Store
	clock    *clock
	gateway  *fakeGateway
	notifier *fakeNotifier
	sched    *fakeScheduler
	devices  *DeviceService
	metrics  *MetricsService
	alerts   *AlertService
	dispatch *DispatchService
	flows    *WorkflowService
	ingest   *IngestService
}

func newFixture(online ...string) *fixture {
	store := memory.NewStore()
	repos := store.Repositories()
	f := &fixture{
		store:    store,
		clock:    newClock(),
		gateway:  newFakeGateway(online...),
		notifier: &fakeNotifier{},
		sched:    &fakeScheduler{},
	}

	f.devices = NewDeviceService(repos.Devices)
	f.devices.now = f.clock.Now
	f.devices.SetGateway(f.gateway)

	f.metrics = NewMetricsService(repos.Metrics, repos.Devices)
	f.metrics.now = f.clock.Now

	f.alerts = NewAlertService(repos.Alerts)
	f.alerts.now = f.clock.Now

	f.dispatch = NewDispatchService(repos, f.sched, 30*time.Second)
	f.dispatch.now = f.clock.Now
	f.dispatch.SetGateway(f.gateway)
	f.dispatch.SetNotifier(f.notifier)

	f.flows = NewWorkflowService(repos.Workflows, repos.QuickActions)
	f.flows.now = f.clock.Now

	f.ingest = NewIngestService(f.devices, f.metrics, f.alerts, f.dispatch)
	f.ingest.now = f.clock.Now
	f.ingest.SetNotifier(f.notifier)
	return f
}

// addDevice stores an active device with default alert rules
func (f *fixture) addDevice(id string) *model.Device {
	now := f.clock.Now()
	d := &model.Device{
		ID:          id,
		MachineID:   "machine-" + id,
		DeviceName:  "Device " + id,
		APIKey:      "key-" + id,
		AlertConfig: model.DefaultAlertConfig(),
		Tags:        []string{},
		IsActive:    true,
		LastSeen:    now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := f.store.Devices.Create(context.Background(), d); err != nil {
		panic(err)
	}
	return d
}

func fptr(v float64) *float64 { return &v }
