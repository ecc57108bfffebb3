package alerts

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/m1ndvortex/multi-tenant-sub006/internal/common/metrics"
	"github.com/m1ndvortex/multi-tenant-sub006/internal/snapshot"
)

// Notifier receives alerts that were new to the store and system events
type Notifier interface {
	NotifyAlert(alert Alert)
	NotifySystemEvent(eventType, message string)
}

// Status is the presentation model of the alert widget
type Status struct {
	InstanceID string `json:"instanceId"`
	Enabled    bool   `json:"enabled"`

	// Healthy is true when there are no active alerts, including when no
	// snapshot has arrived yet. SnapshotAvailable tells the two apart.
	Healthy           bool      `json:"healthy"`
	SnapshotAvailable bool      `json:"snapshotAvailable"`
	LastSnapshotAt    time.Time `json:"lastSnapshotAt,omitempty"`

	Summary Summary `json:"summary"`
	Alerts  []Alert `json:"alerts"`
}

// Monitor binds a snapshot source to an alert store: every delivered
// snapshot runs one derivation pass merged into the store.
type Monitor struct {
	store      *Store
	deriver    *Deriver
	notifier   Notifier
	instanceID string
	now        func() time.Time

	mu             sync.Mutex
	unsubscribe    func()
	lastSnapshotAt time.Time

	// ongoing holds the conditions derived on the last snapshot; only
	// conditions absent from it are notified
	ongoing map[condition]struct{}
}

// condition is one metric breaching one severity tier
type condition struct {
	metric   snapshot.Metric
	severity Severity
}

// NewMonitor creates a monitor. notifier may be nil.
func NewMonitor(store *Store, deriver *Deriver, notifier Notifier) *Monitor {
	if deriver == nil {
		deriver = NewDeriver(nil, nil, nil)
	}
	return &Monitor{
		store:      store,
		deriver:    deriver,
		notifier:   notifier,
		instanceID: uuid.New().String(),
		now:        time.Now,
	}
}

// Store returns the monitor's alert store
func (m *Monitor) Store() *Store {
	return m.store
}

// Thresholds returns the threshold table in canonical order
func (m *Monitor) Thresholds() []MetricThreshold {
	return m.deriver.Thresholds.Ordered()
}

// InstanceID identifies this monitor in logs and notifications
func (m *Monitor) InstanceID() string {
	return m.instanceID
}

// Attach subscribes the monitor to a source, replacing any earlier one
func (m *Monitor) Attach(source snapshot.Source) {
	unsubscribe := source.Subscribe(func(snap *snapshot.Snapshot) {
		m.HandleSnapshot(snap)
	})

	m.mu.Lock()
	previous := m.unsubscribe
	m.unsubscribe = unsubscribe
	m.mu.Unlock()

	if previous != nil {
		previous()
	}
	slog.Info("Alert monitor attached to snapshot source", "instanceId", m.instanceID)
}

// Detach stops receiving snapshots
func (m *Monitor) Detach() {
	m.mu.Lock()
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// HandleSnapshot runs one derivation pass and returns the alerts added to
// the store. A nil snapshot derives nothing but still prunes expired alerts.
// The notifier hears about a condition when it starts, not on every pass
// that re-derives it.
func (m *Monitor) HandleSnapshot(snap *snapshot.Snapshot) []Alert {
	now := m.now()

	derived, added := m.store.Update(now, func(enabled bool) []Alert {
		return m.deriver.Derive(snap, enabled, now)
	})

	current := make(map[condition]struct{}, len(derived))
	for _, a := range derived {
		current[condition{a.Metric, a.Severity}] = struct{}{}
		metrics.AlertsDerived.WithLabelValues(string(a.Metric), string(a.Severity)).Inc()
	}

	m.mu.Lock()
	previous := m.ongoing
	if snap != nil {
		m.lastSnapshotAt = now
		m.ongoing = current
	}
	m.mu.Unlock()

	for _, a := range added {
		metrics.AlertsAdded.WithLabelValues(string(a.Severity)).Inc()
		slog.Info("Alert raised",
			"alertId", a.ID,
			"metric", a.Metric,
			"severity", a.Severity,
			"value", a.Value,
			"threshold", a.Threshold)

		if m.notifier == nil {
			continue
		}
		if _, ongoing := previous[condition{a.Metric, a.Severity}]; ongoing {
			continue
		}
		m.notifier.NotifyAlert(a)
	}

	return added
}

// SetEnabled toggles derivation and reports the change as a system event
func (m *Monitor) SetEnabled(enabled bool) {
	m.store.SetEnabled(enabled)

	if m.notifier != nil {
		state := "disabled"
		if enabled {
			state = "enabled"
		}
		m.notifier.NotifySystemEvent("ALERTS_TOGGLED",
			fmt.Sprintf("System health alerts %s on instance %s", state, m.instanceID))
	}
}

// Status renders the presentation model
func (m *Monitor) Status() Status {
	active, summary, enabled := m.store.view()

	m.mu.Lock()
	last := m.lastSnapshotAt
	m.mu.Unlock()

	return Status{
		InstanceID:        m.instanceID,
		Enabled:           enabled,
		Healthy:           summary.Total == 0,
		SnapshotAvailable: !last.IsZero(),
		LastSnapshotAt:    last,
		Summary:           summary,
		Alerts:            active,
	}
}
