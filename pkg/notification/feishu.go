package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"fleetwatch/internal/model"
	"fleetwatch/pkg/config"
	"fleetwatch/pkg/logger"
)

var severityRank = map[model.Severity]int{
	model.SeverityInfo:     0,
	model.SeverityWarning:  1,
	model.SeverityCritical: 2,
}

var cardTemplate = map[model.Severity]string{
	model.SeverityInfo:     "blue",
	model.SeverityWarning:  "orange",
	model.SeverityCritical: "red",
}

// FeishuNotifier sends new alerts to a Feishu (Lark) group bot
type FeishuNotifier struct {
	webhookURL  string
	minSeverity model.Severity
	client      *http.Client
}

// NewFeishuNotifier creates a notifier, or returns nil when no webhook is configured
func NewFeishuNotifier(cfg config.NotificationConfig) *FeishuNotifier {
	if cfg.FeishuWebhookURL == "" {
		logger.Warn("Feishu webhook URL not configured (check config file or FEISHU_WEBHOOK_URL env), alert notifications will be disabled")
		return nil
	}
	return &FeishuNotifier{
		webhookURL:  cfg.FeishuWebhookURL,
		minSeverity: model.Severity(cfg.MinSeverity),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Wants reports whether alerts of severity are sent
func (f *FeishuNotifier) Wants(severity model.Severity) bool {
	return severityRank[severity] >= severityRank[f.minSeverity]
}

// NotifyAlert posts an interactive card for alert. Alerts below the minimum severity are skipped.
func (f *FeishuNotifier) NotifyAlert(ctx context.Context, alert *model.Alert) error {
	if !f.Wants(alert.Severity) {
		return nil
	}

	payload, err := json.Marshal(f.buildAlertMessage(alert))
	if err != nil {
		return fmt.Errorf("failed to marshal Feishu message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.webhookURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Feishu notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Feishu API returned status code: %d", resp.StatusCode)
	}

	logger.InfoCtx(ctx, "Feishu notification sent for alert %s (%s %s on %s)", alert.ID, alert.Severity, alert.Type, alert.DeviceName)
	return nil
}

func field(title, value string) map[string]interface{} {
	return map[string]interface{}{
		"is_short": true,
		"text": map[string]interface{}{
			"content": fmt.Sprintf("**%s**\n%s", title, value),
			"tag":     "lark_md",
		},
	}
}

// buildAlertMessage builds a Feishu message card for a new alert
func (f *FeishuNotifier) buildAlertMessage(alert *model.Alert) map[string]interface{} {
	template := cardTemplate[alert.Severity]
	if template == "" {
		template = "grey"
	}

	return map[string]interface{}{
		"msg_type": "interactive",
		"card": map[string]interface{}{
			"header": map[string]interface{}{
				"template": template,
				"title": map[string]interface{}{
					"content": fmt.Sprintf("[%s] %s alert on %s", alert.Severity, alert.Type, alert.DeviceName),
					"tag":     "plain_text",
				},
			},
			"elements": []interface{}{
				map[string]interface{}{
					"tag": "div",
					"text": map[string]interface{}{
						"content": alert.Message,
						"tag":     "lark_md",
					},
				},
				map[string]interface{}{
					"tag": "hr",
				},
				map[string]interface{}{
					"tag": "div",
					"fields": []interface{}{
						field("Device", alert.DeviceName),
						field("Machine ID", alert.MachineID),
					},
				},
				map[string]interface{}{
					"tag": "div",
					"fields": []interface{}{
						field("Value", fmt.Sprintf("%.1f", alert.Value)),
						field("Threshold", fmt.Sprintf("%.1f", alert.Threshold)),
					},
				},
				map[string]interface{}{
					"tag": "div",
					"text": map[string]interface{}{
						"content": fmt.Sprintf("**Raised at**: %s", alert.CreatedAt.UTC().Format("2006-01-02 15:04:05")),
						"tag":     "lark_md",
					},
				},
			},
		},
	}
}
