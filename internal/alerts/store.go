package alerts

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/m1ndvortex/multi-tenant-sub006/internal/common/metrics"
)

// Store defaults
const (
	DefaultRetention = 24 * time.Hour
	DefaultMaxAlerts = 1000
)

// StoreConfig holds alert store settings
type StoreConfig struct {
	// Retention is how long an alert is kept after its timestamp
	Retention time.Duration

	// MaxAlerts caps the store; the oldest alert is evicted when full
	MaxAlerts int

	// Disabled starts the store with derivation switched off
	Disabled bool
}

// Store is an owned, in-memory set of alerts keyed by id. Nothing is
// persisted or shared between stores.
type Store struct {
	mu        sync.RWMutex
	alerts    map[string]*Alert
	enabled   bool
	retention time.Duration
	maxAlerts int
}

// NewStore creates an alert store
func NewStore(config StoreConfig) *Store {
	if config.Retention <= 0 {
		config.Retention = DefaultRetention
	}
	if config.MaxAlerts <= 0 {
		config.MaxAlerts = DefaultMaxAlerts
	}

	s := &Store{
		alerts:    make(map[string]*Alert),
		enabled:   !config.Disabled,
		retention: config.Retention,
		maxAlerts: config.MaxAlerts,
	}
	s.updateGauges()
	return s
}

// Merge drops alerts older than the retention window relative to now, then
// adds the alerts whose id is not yet stored. Offered alerts whose id is
// already present only advance that alert's LastSeen. Returns the alerts
// that were added.
func (s *Store) Merge(newAlerts []Alert, now time.Time) []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mergeLocked(newAlerts, now)
}

// Update runs derive with the current enabled flag and merges its result,
// all under one lock so readers never observe a half-applied pass.
func (s *Store) Update(now time.Time, derive func(enabled bool) []Alert) (derived, added []Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()

	derived = derive(s.enabled)
	added = s.mergeLocked(derived, now)
	return derived, added
}

// mergeLocked must be called with the write lock held
func (s *Store) mergeLocked(newAlerts []Alert, now time.Time) []Alert {
	cutoff := now.Add(-s.retention)

	expired := 0
	for id, a := range s.alerts {
		if a.Timestamp.Before(cutoff) {
			delete(s.alerts, id)
			expired++
		}
	}
	if expired > 0 {
		metrics.AlertsExpired.WithLabelValues("retention").Add(float64(expired))
		slog.Debug("Expired old alerts", "count", expired, "retention", s.retention)
	}

	var added []Alert
	for _, a := range newAlerts {
		if a.Timestamp.Before(cutoff) {
			continue
		}

		if existing, ok := s.alerts[a.ID]; ok {
			if a.LastSeen.After(existing.LastSeen) {
				existing.LastSeen = a.LastSeen
			}
			continue
		}

		if len(s.alerts) >= s.maxAlerts {
			s.removeOldest()
		}

		stored := a
		if stored.LastSeen.IsZero() {
			stored.LastSeen = stored.Timestamp
		}
		s.alerts[stored.ID] = &stored
		added = append(added, stored)
	}

	s.updateGauges()
	return added
}

// removeOldest removes the oldest alert (must be called with lock held)
func (s *Store) removeOldest() {
	var oldestID string
	var oldestTime time.Time

	for id, a := range s.alerts {
		if oldestID == "" || a.Timestamp.Before(oldestTime) ||
			(a.Timestamp.Equal(oldestTime) && id < oldestID) {
			oldestID = id
			oldestTime = a.Timestamp
		}
	}

	if oldestID != "" {
		delete(s.alerts, oldestID)
		metrics.AlertsExpired.WithLabelValues("capacity").Inc()
	}
}

// Acknowledge marks an alert acknowledged. Returns false if not found.
func (s *Store) Acknowledge(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, exists := s.alerts[id]
	if !exists {
		return false
	}

	alert.Acknowledged = true
	s.updateGauges()
	metrics.AlertActions.WithLabelValues("acknowledge").Inc()
	slog.Info("Alert acknowledged", "alertId", id)
	return true
}

// Dismiss removes an alert. Returns false if not found.
func (s *Store) Dismiss(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.alerts[id]; !exists {
		return false
	}

	delete(s.alerts, id)
	s.updateGauges()
	metrics.AlertActions.WithLabelValues("dismiss").Inc()
	slog.Info("Alert dismissed", "alertId", id)
	return true
}

// ClearAll removes every alert and returns how many were removed
func (s *Store) ClearAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := len(s.alerts)
	s.alerts = make(map[string]*Alert)
	s.updateGauges()
	metrics.AlertActions.WithLabelValues("clear_all").Inc()
	slog.Info("Cleared all alerts", "count", count)
	return count
}

// SetEnabled switches derivation for future snapshots. Stored alerts are
// left untouched.
func (s *Store) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.enabled = enabled
	s.updateGauges()

	action := "disable"
	if enabled {
		action = "enable"
	}
	metrics.AlertActions.WithLabelValues(action).Inc()
	slog.Info("Alert derivation toggled", "enabled", enabled)
}

// Enabled reports whether derivation is switched on
func (s *Store) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// Get returns a copy of one alert
func (s *Store) Get(id string) (Alert, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.alerts[id]
	if !ok {
		return Alert{}, false
	}
	return *a, true
}

// Alerts returns all alerts in display order
func (s *Store) Alerts() []Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sortedAlerts(nil)
}

// ActiveAlerts returns unacknowledged alerts in display order
func (s *Store) ActiveAlerts() []Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sortedAlerts(func(a *Alert) bool {
		return !a.Acknowledged
	})
}

// BySeverity returns alerts of one severity in display order
func (s *Store) BySeverity(severity Severity) []Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sortedAlerts(func(a *Alert) bool {
		return a.Severity == severity
	})
}

// Summary counts active alerts by severity
func (s *Store) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.summaryLocked()
}

// Count returns the number of stored alerts
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.alerts)
}

// view returns active alerts, summary and enabled flag from one read
func (s *Store) view() ([]Alert, Summary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := s.sortedAlerts(func(a *Alert) bool {
		return !a.Acknowledged
	})
	return active, s.summaryLocked(), s.enabled
}

func (s *Store) summaryLocked() Summary {
	var sum Summary
	for _, a := range s.alerts {
		if a.Acknowledged {
			continue
		}
		switch a.Severity {
		case SeverityCritical:
			sum.Critical++
		case SeverityWarning:
			sum.Warning++
		}
		sum.Total++
	}
	return sum
}

// sortedAlerts returns alerts with an optional filter: critical before
// warning, then newest first, then by id
func (s *Store) sortedAlerts(filter func(*Alert) bool) []Alert {
	result := make([]Alert, 0, len(s.alerts))

	for _, a := range s.alerts {
		if filter == nil || filter(a) {
			result = append(result, *a)
		}
	}

	SortAlerts(result)
	return result
}

// SortAlerts sorts alerts in display order in place
func SortAlerts(alerts []Alert) {
	sort.Slice(alerts, func(i, j int) bool {
		a, b := alerts[i], alerts[j]
		if ra, rb := a.Severity.rank(), b.Severity.rank(); ra != rb {
			return ra < rb
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		return a.ID < b.ID
	})
}

// updateGauges must be called with the lock held
func (s *Store) updateGauges() {
	sum := s.summaryLocked()
	metrics.StoredAlerts.Set(float64(len(s.alerts)))
	metrics.ActiveAlerts.WithLabelValues(string(SeverityCritical)).Set(float64(sum.Critical))
	metrics.ActiveAlerts.WithLabelValues(string(SeverityWarning)).Set(float64(sum.Warning))
	if s.enabled {
		metrics.AlertsEnabled.Set(1)
	} else {
		metrics.AlertsEnabled.Set(0)
	}
}
