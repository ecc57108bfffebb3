package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/m1ndvortex/multi-tenant-sub006/internal/alerts"
	"github.com/m1ndvortex/multi-tenant-sub006/internal/common/metrics"
)

// TeamsConfig holds Teams webhook configuration
type TeamsConfig struct {
	WebhookURL string
	Enabled    bool
}

// TeamsService sends Adaptive Cards to Teams channels via webhook
type TeamsService struct {
	config     *TeamsConfig
	httpClient *http.Client
}

// NewTeamsService creates a new Teams webhook notification service
func NewTeamsService(config *TeamsConfig) *TeamsService {
	slog.Info("Teams notification service initialized",
		"enabled", config.Enabled)

	return &TeamsService{
		config: config,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NotifyAlert sends a Teams notification for an alert
func (s *TeamsService) NotifyAlert(alert alerts.Alert) {
	if !s.config.Enabled {
		return
	}

	if err := s.sendToTeams(s.buildAlertCard(alert)); err != nil {
		metrics.NotificationsSent.WithLabelValues("teams", "failed").Inc()
		slog.Error("Failed to send Teams notification for alert",
			"error", err,
			"alertId", alert.ID)
		return
	}

	metrics.NotificationsSent.WithLabelValues("teams", "success").Inc()
	slog.Info("Teams notification sent",
		"severity", alert.Severity,
		"metric", alert.Metric)
}

// NotifySystemEvent sends a Teams notification for a system event
func (s *TeamsService) NotifySystemEvent(eventType, message string) {
	if !s.config.Enabled {
		return
	}

	if err := s.sendToTeams(s.buildSystemEventCard(eventType, message)); err != nil {
		metrics.NotificationsSent.WithLabelValues("teams", "failed").Inc()
		slog.Error("Failed to send Teams system event notification", "error", err)
		return
	}

	metrics.NotificationsSent.WithLabelValues("teams", "success").Inc()
	slog.Debug("Teams system event notification sent", "eventType", eventType)
}

// IsEnabled returns whether Teams notifications are enabled
func (s *TeamsService) IsEnabled() bool {
	return s.config.Enabled
}

// sendToTeams posts a card payload to the webhook
func (s *TeamsService) sendToTeams(card []byte) error {
	req, err := http.NewRequest(http.MethodPost, s.config.WebhookURL, bytes.NewReader(card))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("teams webhook returned status %d", resp.StatusCode)
	}

	return nil
}

func adaptiveCard(body []map[string]interface{}) []byte {
	card := map[string]interface{}{
		"attachments": []map[string]interface{}{
			{
				"contentType": "application/vnd.microsoft.card.adaptive",
				"content": map[string]interface{}{
					"type":    "AdaptiveCard",
					"version": "1.4",
					"body":    body,
				},
			},
		},
	}

	jsonBytes, _ := json.Marshal(card)
	return jsonBytes
}

// buildAlertCard builds an Adaptive Card for an alert
func (s *TeamsService) buildAlertCard(alert alerts.Alert) []byte {
	icon := "⚠️"
	if alert.Severity == alerts.SeverityCritical {
		icon = "🚨"
	}

	facts := []map[string]interface{}{
		{"title": "Severity:", "value": string(alert.Severity)},
		{"title": "Time:", "value": alert.Timestamp.Format(time.RFC3339)},
	}
	if alert.Metric != "" {
		facts = append(facts,
			map[string]interface{}{"title": "Metric:", "value": string(alert.Metric)},
			map[string]interface{}{"title": "Value:", "value": strconv.FormatFloat(alert.Value, 'f', -1, 64)},
			map[string]interface{}{"title": "Threshold:", "value": strconv.FormatFloat(alert.Threshold, 'f', -1, 64)},
		)
	}

	return adaptiveCard([]map[string]interface{}{
		{
			"type":  "Container",
			"style": "emphasis",
			"items": []map[string]interface{}{
				{
					"type": "ColumnSet",
					"columns": []map[string]interface{}{
						{
							"type":  "Column",
							"width": "auto",
							"items": []map[string]interface{}{
								{"type": "TextBlock", "text": icon, "size": "Large"},
							},
						},
						{
							"type":  "Column",
							"width": "stretch",
							"items": []map[string]interface{}{
								{"type": "TextBlock", "text": "System Health Alert", "weight": "Bolder", "size": "Large"},
								{"type": "TextBlock", "text": alert.Title, "color": teamsSeverityColor(alert.Severity), "weight": "Bolder", "size": "Medium", "spacing": "None"},
							},
						},
					},
				},
			},
		},
		{"type": "FactSet", "facts": facts},
		{"type": "TextBlock", "text": alert.Message, "wrap": true, "separator": true},
	})
}

// buildSystemEventCard builds an Adaptive Card for a system event
func (s *TeamsService) buildSystemEventCard(eventType, message string) []byte {
	return adaptiveCard([]map[string]interface{}{
		{
			"type":  "Container",
			"style": "accent",
			"items": []map[string]interface{}{
				{"type": "TextBlock", "text": fmt.Sprintf("ℹ️ System Event: %s", eventType), "weight": "Bolder", "size": "Large"},
			},
		},
		{"type": "TextBlock", "text": message, "wrap": true, "spacing": "Medium"},
	})
}

func teamsSeverityColor(severity alerts.Severity) string {
	switch severity {
	case alerts.SeverityCritical:
		return "Attention"
	case alerts.SeverityWarning:
		return "Warning"
	default:
		return "Default"
	}
}
