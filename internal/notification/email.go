package notification

import (
	"fmt"
	"html"
	"log/slog"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/m1ndvortex/multi-tenant-sub006/internal/alerts"
	"github.com/m1ndvortex/multi-tenant-sub006/internal/common/metrics"
)

// EmailConfig holds email notification configuration
type EmailConfig struct {
	SMTPHost    string
	SMTPPort    int
	Username    string
	Password    string
	FromAddress string
	ToAddress   string
	Enabled     bool
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailService sends formatted HTML emails for alerts
type EmailService struct {
	config *EmailConfig
	auth   smtp.Auth
	send   sendMailFunc
}

// NewEmailService creates a new email notification service
func NewEmailService(config *EmailConfig) *EmailService {
	svc := &EmailService{
		config: config,
		send:   smtp.SendMail,
	}

	if config.Username != "" && config.Password != "" {
		svc.auth = smtp.PlainAuth("", config.Username, config.Password, config.SMTPHost)
	}

	slog.Info("Email notification service initialized",
		"enabled", config.Enabled,
		"from", config.FromAddress,
		"to", config.ToAddress)

	return svc
}

// NotifyAlert sends an email notification for an alert
func (s *EmailService) NotifyAlert(alert alerts.Alert) {
	if !s.config.Enabled {
		return
	}

	subject := fmt.Sprintf("[Healthwatch] %s - %s", strings.ToUpper(string(alert.Severity)), alert.Title)
	if err := s.sendMail(subject, buildAlertEmail(alert)); err != nil {
		metrics.NotificationsSent.WithLabelValues("email", "failed").Inc()
		slog.Error("Failed to send email notification for alert",
			"error", err,
			"alertId", alert.ID)
		return
	}

	metrics.NotificationsSent.WithLabelValues("email", "success").Inc()
	slog.Info("Email notification sent",
		"severity", alert.Severity,
		"metric", alert.Metric)
}

// NotifySystemEvent sends an email for a system event
func (s *EmailService) NotifySystemEvent(eventType, message string) {
	if !s.config.Enabled {
		return
	}

	subject := fmt.Sprintf("[Healthwatch] System Event - %s", eventType)
	htmlBody := fmt.Sprintf(`
<html>
<body style="font-family: Arial, sans-serif;">
    <div style="background-color: #17a2b8; color: white; padding: 20px; border-radius: 5px;">
        <h2 style="margin: 0;">System Event: %s</h2>
    </div>
    <div style="padding: 20px; background-color: #f8f9fa; margin-top: 10px; border-radius: 5px;">
        <pre style="background-color: white; padding: 15px;">%s</pre>
    </div>
</body>
</html>
`, html.EscapeString(eventType), html.EscapeString(message))

	if err := s.sendMail(subject, htmlBody); err != nil {
		metrics.NotificationsSent.WithLabelValues("email", "failed").Inc()
		slog.Error("Failed to send system event email", "error", err)
		return
	}

	metrics.NotificationsSent.WithLabelValues("email", "success").Inc()
	slog.Debug("System event email sent", "eventType", eventType)
}

// IsEnabled returns whether email notifications are enabled
func (s *EmailService) IsEnabled() bool {
	return s.config.Enabled
}

// sendMail sends an HTML email
func (s *EmailService) sendMail(subject, htmlBody string) error {
	headers := [][2]string{
		{"From", s.config.FromAddress},
		{"To", s.config.ToAddress},
		{"Subject", subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=UTF-8"},
	}

	var msg strings.Builder
	for _, h := range headers {
		msg.WriteString(fmt.Sprintf("%s: %s\r\n", h[0], h[1]))
	}
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	addr := fmt.Sprintf("%s:%d", s.config.SMTPHost, s.config.SMTPPort)
	return s.send(addr, s.auth, s.config.FromAddress, []string{s.config.ToAddress}, []byte(msg.String()))
}

// buildAlertEmail builds the HTML body for an alert
func buildAlertEmail(alert alerts.Alert) string {
	color := severityColor(alert.Severity)

	metric, value, threshold := "-", "-", "-"
	if alert.Metric != "" {
		metric = string(alert.Metric)
		value = strconv.FormatFloat(alert.Value, 'f', -1, 64)
		threshold = strconv.FormatFloat(alert.Threshold, 'f', -1, 64)
	}

	return fmt.Sprintf(`
<html>
<head>
    <style>
        body { font-family: Arial, sans-serif; margin: 0; padding: 0; }
        .header { background-color: %s; color: white; padding: 20px; border-radius: 5px; }
        .content { padding: 20px; background-color: #f8f9fa; margin-top: 10px; border-radius: 5px; }
        .metadata { display: flex; flex-wrap: wrap; gap: 20px; margin-bottom: 15px; }
        .metadata-item { flex: 1; min-width: 150px; }
        .metadata-label { font-weight: bold; color: #6c757d; }
        .message { background-color: white; padding: 15px; border-left: 4px solid %s; white-space: pre-wrap; }
        .footer { margin-top: 20px; padding: 10px; font-size: 12px; color: #6c757d; }
    </style>
</head>
<body>
    <div class="header">
        <h2 style="margin: 0;">%s</h2>
    </div>
    <div class="content">
        <div class="metadata">
            <div class="metadata-item">
                <div class="metadata-label">Metric</div>
                <div>%s</div>
            </div>
            <div class="metadata-item">
                <div class="metadata-label">Value</div>
                <div>%s</div>
            </div>
            <div class="metadata-item">
                <div class="metadata-label">Threshold</div>
                <div>%s</div>
            </div>
            <div class="metadata-item">
                <div class="metadata-label">Timestamp</div>
                <div>%s</div>
            </div>
        </div>
        <div class="metadata-label">Message</div>
        <div class="message">%s</div>
    </div>
    <div class="footer">
        Healthwatch - Automated Notification
    </div>
</body>
</html>
`,
		color,
		color,
		html.EscapeString(alert.Title),
		html.EscapeString(metric),
		value,
		threshold,
		alert.Timestamp.Format(time.RFC3339),
		html.EscapeString(alert.Message))
}

// severityColor returns the header color for a severity
func severityColor(severity alerts.Severity) string {
	switch severity {
	case alerts.SeverityCritical:
		return "#dc3545" // Red
	case alerts.SeverityWarning:
		return "#ffc107" // Yellow
	default:
		return "#6c757d" // Gray
	}
}
