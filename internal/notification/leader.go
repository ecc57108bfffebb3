package notification

import (
	"log/slog"

	"github.com/m1ndvortex/multi-tenant-sub006/internal/alerts"
)

// Leadership reports whether this instance is the primary replica
type Leadership interface {
	IsPrimary() bool
}

// LeaderGated forwards alerts only while this instance is primary, so a
// scaled-out deployment notifies once per alert. System events describe the
// sending instance and always pass through.
type LeaderGated struct {
	Delegate Service
	Leader   Leadership
}

// NewLeaderGated wraps delegate behind leader
func NewLeaderGated(delegate Service, leader Leadership) *LeaderGated {
	return &LeaderGated{Delegate: delegate, Leader: leader}
}

func (g *LeaderGated) NotifyAlert(alert alerts.Alert) {
	if !g.Leader.IsPrimary() {
		slog.Debug("Skipping alert notification on standby instance",
			"alertId", alert.ID,
			"metric", alert.Metric)
		return
	}
	g.Delegate.NotifyAlert(alert)
}

func (g *LeaderGated) NotifySystemEvent(eventType, message string) {
	g.Delegate.NotifySystemEvent(eventType, message)
}

func (g *LeaderGated) IsEnabled() bool {
	return g.Delegate.IsEnabled()
}
