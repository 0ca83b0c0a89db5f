package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"fleetwatch/internal/model"
	"fleetwatch/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type dashboardConn struct {
	*conn
	id     string
	userID string

	mu      sync.RWMutex
	devices map[string]bool
}

func (c *dashboardConn) subscribed(deviceID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.devices[deviceID]
}

func (c *dashboardConn) subscribe(deviceID string, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if on {
		c.devices[deviceID] = true
	} else {
		delete(c.devices, deviceID)
	}
}

// ServeDashboard upgrades an authenticated dashboard request
func (h *Hub) ServeDashboard(w http.ResponseWriter, r *http.Request, userID string) error {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &dashboardConn{conn: newConn(ws), id: uuid.NewString(), userID: userID, devices: make(map[string]bool)}
	h.addDashboard(c)
	ctx := logger.WithTraceID(context.Background(), "client:"+c.id[:8])
	logger.InfoCtx(ctx, "dashboard client connected: user %s", userID)

	go c.writePump()
	go h.readDashboard(ctx, c)
	return nil
}

func (h *Hub) readDashboard(ctx context.Context, c *dashboardConn) {
	defer func() {
		h.removeDashboard(c)
		c.close()
		_ = c.ws.Close()
		logger.InfoCtx(ctx, "dashboard client disconnected: user %s", c.userID)
	}()

	c.prepareRead()
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.WarnCtx(ctx, "dashboard read error: %v", err)
			}
			return
		}

		var env model.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			logger.WarnCtx(ctx, "dropping malformed dashboard frame: %v", err)
			continue
		}
		switch env.Event {
		case model.EventSubscribeDevice, model.EventUnsubscribeDevice:
			deviceID := subscriptionTarget(env.Data)
			if deviceID == "" {
				logger.WarnCtx(ctx, "%s without deviceId", env.Event)
				continue
			}
			c.subscribe(deviceID, env.Event == model.EventSubscribeDevice)
			logger.DebugCtx(ctx, "%s %s", env.Event, deviceID)
		default:
			logger.DebugCtx(ctx, "ignoring dashboard event %q", env.Event)
		}
	}
}

// subscriptionTarget accepts "id" or {"deviceId": "id"}
func subscriptionTarget(raw json.RawMessage) string {
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return strings.TrimSpace(id)
	}
	var obj struct {
		DeviceID string `json:"deviceId"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return strings.TrimSpace(obj.DeviceID)
	}
	return ""
}
