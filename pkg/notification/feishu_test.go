package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"fleetwatch/internal/model"
	"fleetwatch/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type webhook struct {
	mu       sync.Mutex
	status   int
	received []map[string]interface{}
	srv      *httptest.Server
}

func newWebhook(t *testing.T, status int) *webhook {
	w := &webhook{status: status}
	w.srv = httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.mu.Lock()
		w.received = append(w.received, body)
		w.mu.Unlock()
		rw.WriteHeader(w.status)
	}))
	t.Cleanup(w.srv.Close)
	return w
}

func (w *webhook) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.received)
}

func testAlert(severity model.Severity) *model.Alert {
	return &model.Alert{
		ID:         "a1",
		DeviceName: "lab-pi",
		MachineID:  "m-1",
		Type:       model.AlertTypeTemperature,
		Severity:   severity,
		Message:    "Temperature is 91.0°C",
		Value:      91,
		Threshold:  80,
		CreatedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNewFeishuNotifier_DisabledWithoutURL(t *testing.T) {
	assert.Nil(t, NewFeishuNotifier(config.NotificationConfig{MinSeverity: "critical"}))
}

func TestNotifyAlert_SendsCard(t *testing.T) {
	hook := newWebhook(t, http.StatusOK)
	n := NewFeishuNotifier(config.NotificationConfig{FeishuWebhookURL: hook.srv.URL, MinSeverity: "warning"})
	require.NotNil(t, n)

	require.NoError(t, n.NotifyAlert(context.Background(), testAlert(model.SeverityCritical)))
	require.Equal(t, 1, hook.count())

	body := hook.received[0]
	assert.Equal(t, "interactive", body["msg_type"])
	card := body["card"].(map[string]interface{})
	header := card["header"].(map[string]interface{})
	assert.Equal(t, "red", header["template"])
	assert.Contains(t, header["title"].(map[string]interface{})["content"], "lab-pi")
}

func TestNotifyAlert_BelowMinimumSkipped(t *testing.T) {
	hook := newWebhook(t, http.StatusOK)
	n := NewFeishuNotifier(config.NotificationConfig{FeishuWebhookURL: hook.srv.URL, MinSeverity: "critical"})

	require.NoError(t, n.NotifyAlert(context.Background(), testAlert(model.SeverityWarning)))
	assert.Equal(t, 0, hook.count())
	assert.False(t, n.Wants(model.SeverityInfo))
	assert.True(t, n.Wants(model.SeverityCritical))
}

func TestNotifyAlert_WebhookError(t *testing.T) {
	hook := newWebhook(t, http.StatusInternalServerError)
	n := NewFeishuNotifier(config.NotificationConfig{FeishuWebhookURL: hook.srv.URL, MinSeverity: "info"})

	err := n.NotifyAlert(context.Background(), testAlert(model.SeverityInfo))
	assert.ErrorContains(t, err, "500")
}
