package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"fleetwatch/internal/model"
	"fleetwatch/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // Dashboards authenticate with a token
	},
}

// AgentCredentials handshake values read from headers, falling back to query params
type AgentCredentials struct {
	APIKey     string
	MachineID  string
	DeviceName string
}

// CredentialsFromRequest reads X-API-Key / X-Machine-ID / X-Device-Name or apiKey / machineId / deviceName
func CredentialsFromRequest(r *http.Request) AgentCredentials {
	pick := func(header, query string) string {
		if v := strings.TrimSpace(r.Header.Get(header)); v != "" {
			return v
		}
		return strings.TrimSpace(r.URL.Query().Get(query))
	}
	return AgentCredentials{
		APIKey:     pick("X-API-Key", "apiKey"),
		MachineID:  pick("X-Machine-ID", "machineId"),
		DeviceName: pick("X-Device-Name", "deviceName"),
	}
}

type agentConn struct {
	*conn
	id     string
	device *model.Device
}

// ServeAgent upgrades an already authenticated agent request and binds it to device.
// Returns once the pumps are started.
func (h *Hub) ServeAgent(w http.ResponseWriter, r *http.Request, device *model.Device) error {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	a := &agentConn{conn: newConn(ws), id: uuid.NewString(), device: device}
	ctx := logger.WithTraceID(context.Background(), "agent:"+device.ID)

	if prev := h.bindAgent(a); prev != nil {
		logger.InfoCtx(ctx, "device %s reconnected, closing previous connection %s", device.ID, prev.id)
		prev.close()
	}
	if err := h.events.OnAgentConnected(ctx, device, a.id); err != nil {
		logger.ErrorCtx(ctx, "failed to mark device %s online: %v", device.ID, err)
	}
	if h.presence != nil {
		if err := h.presence.MarkOnline(ctx, device.ID, a.id); err != nil {
			logger.WarnCtx(ctx, "presence: %v", err)
		}
	}
	logger.InfoCtx(ctx, "agent connected: device %s (%s), connection %s", device.ID, device.DeviceName, a.id)

	go a.writePump()
	go h.readAgent(ctx, a)
	return nil
}

// readAgent handles the connection's frames in arrival order
func (h *Hub) readAgent(ctx context.Context, a *agentConn) {
	defer h.detachAgent(ctx, a)

	a.prepareRead()
	for {
		_, data, err := a.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.WarnCtx(ctx, "agent read error: %v", err)
			}
			return
		}

		var env model.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			logger.WarnCtx(ctx, "dropping malformed frame from device %s: %v", a.device.ID, err)
			continue
		}
		if err := h.dispatchAgentEvent(ctx, a, env); err != nil {
			logger.WarnCtx(ctx, "%s from device %s: %v", env.Event, a.device.ID, err)
		}
	}
}

func (h *Hub) dispatchAgentEvent(ctx context.Context, a *agentConn, env model.Envelope) error {
	id := a.device.ID
	switch env.Event {
	case model.EventDeviceRegister:
		return h.events.OnDeviceRegister(ctx, id, env.Data)
	case model.EventMetrics:
		return h.events.OnMetrics(ctx, id, env.Data)
	case model.EventCommandResult:
		return h.events.OnCommandResult(ctx, id, env.Data)
	case model.EventWorkflowCommandResult:
		return h.events.OnWorkflowCommandResult(ctx, id, env.Data)
	case model.EventPong:
		if h.presence != nil {
			if err := h.presence.Refresh(ctx, []string{id}); err != nil {
				logger.WarnCtx(ctx, "presence: %v", err)
			}
		}
		return h.events.OnPong(ctx, id)
	case model.EventDeviceDisconnect:
		logger.InfoCtx(ctx, "device %s announced disconnect", id)
		return nil
	default:
		logger.DebugCtx(ctx, "ignoring unknown event %q from device %s", env.Event, id)
		return nil
	}
}

// detachAgent runs once per connection; only the bound connection takes the device offline
func (h *Hub) detachAgent(ctx context.Context, a *agentConn) {
	a.close()
	_ = a.ws.Close()

	if !h.unbindAgent(a) {
		logger.DebugCtx(ctx, "replaced connection %s of device %s closed", a.id, a.device.ID)
		return
	}
	if h.presence != nil {
		if err := h.presence.MarkOffline(ctx, a.device.ID, a.id); err != nil {
			logger.WarnCtx(ctx, "presence: %v", err)
		}
	}
	if err := h.events.OnAgentDisconnected(ctx, a.device); err != nil {
		logger.ErrorCtx(ctx, "failed to mark device %s offline: %v", a.device.ID, err)
	}
	logger.InfoCtx(ctx, "agent disconnected: device %s, connection %s", a.device.ID, a.id)
}
