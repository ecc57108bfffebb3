package notification

import (
	"log/slog"

	"github.com/m1ndvortex/multi-tenant-sub006/internal/alerts"
)

// NoOpService logs notifications instead of sending them
type NoOpService struct{}

// NewNoOpService creates a new no-op notification service
func NewNoOpService() *NoOpService {
	return &NoOpService{}
}

// NotifyAlert logs the alert
func (s *NoOpService) NotifyAlert(alert alerts.Alert) {
	slog.Info("NOTIFICATION [ALERT]",
		"severity", alert.Severity,
		"metric", alert.Metric,
		"title", alert.Title,
		"value", alert.Value)
}

// NotifySystemEvent logs the system event
func (s *NoOpService) NotifySystemEvent(eventType, message string) {
	slog.Info("NOTIFICATION [EVENT]",
		"eventType", eventType,
		"message", message)
}

// IsEnabled returns false; nothing leaves the process
func (s *NoOpService) IsEnabled() bool {
	return false
}
