// Package alerts derives threshold alerts from health snapshots and keeps
// them in an owned, time-windowed in-memory store.
package alerts

import (
	"fmt"
	"strings"
	"time"

	"github.com/m1ndvortex/multi-tenant-sub006/internal/snapshot"
)

// Severity of an alert
type Severity string

// Severity levels for alerts
const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
)

// Severities lists severities in display order
var Severities = []Severity{SeverityCritical, SeverityWarning}

// rank orders severities for display; lower sorts first
func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	default:
		return 2
	}
}

// AtLeast reports whether s is as severe as min
func (s Severity) AtLeast(min Severity) bool {
	return s.rank() <= min.rank()
}

// ParseSeverity parses a severity name case-insensitively
func ParseSeverity(s string) (Severity, error) {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityCritical:
		return SeverityCritical, nil
	case SeverityWarning:
		return SeverityWarning, nil
	default:
		return "", fmt.Errorf("unknown severity %q", s)
	}
}

// Alert is one threshold crossing observed in a snapshot
type Alert struct {
	// ID identifies the alert within a store
	ID string `json:"id"`

	// Severity is critical or warning
	Severity Severity `json:"severity"`

	// Title and Message are localized display text
	Title   string `json:"title"`
	Message string `json:"message"`

	// Timestamp is when the alert was derived
	Timestamp time.Time `json:"timestamp"`

	// Metric is the snapshot metric that crossed its threshold
	Metric snapshot.Metric `json:"metric"`

	// Value is the reading that triggered the alert
	Value float64 `json:"value"`

	// Threshold is the bound that was crossed
	Threshold float64 `json:"threshold"`

	// Acknowledged hides the alert from the active view
	Acknowledged bool `json:"acknowledged"`

	// LastSeen is the last time a merge offered this alert's id
	LastSeen time.Time `json:"lastSeen"`
}

// Summary counts active alerts by severity
type Summary struct {
	Critical int `json:"critical"`
	Warning  int `json:"warning"`
	Total    int `json:"total"`
}
