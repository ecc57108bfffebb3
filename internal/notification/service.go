// Package notification delivers newly raised alerts to external channels.
package notification

import (
	"github.com/m1ndvortex/multi-tenant-sub006/internal/alerts"
)

// Service defines the notification service interface
type Service interface {
	// NotifyAlert sends a notification for a newly raised alert
	NotifyAlert(alert alerts.Alert)

	// NotifySystemEvent sends a notification for a system event
	NotifySystemEvent(eventType, message string)

	// IsEnabled checks if notifications are enabled
	IsEnabled() bool
}

// Multi fans notifications out to every enabled delegate
type Multi []Service

// NotifyAlert forwards the alert to every enabled delegate
func (m Multi) NotifyAlert(alert alerts.Alert) {
	for _, s := range m {
		if s.IsEnabled() {
			s.NotifyAlert(alert)
		}
	}
}

// NotifySystemEvent forwards the event to every enabled delegate
func (m Multi) NotifySystemEvent(eventType, message string) {
	for _, s := range m {
		if s.IsEnabled() {
			s.NotifySystemEvent(eventType, message)
		}
	}
}

// IsEnabled returns true if any delegate is enabled
func (m Multi) IsEnabled() bool {
	for _, s := range m {
		if s.IsEnabled() {
			return true
		}
	}
	return false
}
