package alerts

import (
	"time"

	"github.com/m1ndvortex/multi-tenant-sub006/internal/snapshot"
)

// Deriver turns snapshots into alerts using a fixed threshold table
type Deriver struct {
	Thresholds Thresholds
	Catalog    *Catalog
	NewID      IDFunc
}

// NewDeriver creates a deriver. Nil catalog or id func fall back to the
// English catalog and timestamp ids.
func NewDeriver(thresholds Thresholds, catalog *Catalog, newID IDFunc) *Deriver {
	if thresholds == nil {
		thresholds = DefaultThresholds()
	}
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if newID == nil {
		newID = TimestampID
	}
	return &Deriver{Thresholds: thresholds, Catalog: catalog, NewID: newID}
}

// Derive produces at most one alert per metric, in table order. A value at
// or above critical yields a critical alert and skips the warning check.
// Disabled derivation or a nil snapshot yields nothing. Missing metrics are
// skipped.
func (d *Deriver) Derive(snap *snapshot.Snapshot, enabled bool, now time.Time) []Alert {
	if !enabled || snap == nil {
		return nil
	}

	var out []Alert
	for _, mt := range d.Thresholds.Ordered() {
		value, ok := snap.Value(mt.Metric)
		if !ok {
			continue
		}

		var severity Severity
		var threshold float64
		switch {
		case value >= mt.Critical:
			severity, threshold = SeverityCritical, mt.Critical
		case value >= mt.Warning:
			severity, threshold = SeverityWarning, mt.Warning
		default:
			continue
		}

		text := d.Catalog.Render(mt.Metric, severity, value, threshold)
		out = append(out, Alert{
			ID:        d.NewID(mt.Metric, severity, now),
			Severity:  severity,
			Title:     text.Title,
			Message:   text.Message,
			Timestamp: now,
			Metric:    mt.Metric,
			Value:     value,
			Threshold: threshold,
			LastSeen:  now,
		})
	}
	return out
}

// Derive runs a derivation pass with the English catalog and timestamp ids
func Derive(snap *snapshot.Snapshot, thresholds Thresholds, enabled bool, now time.Time) []Alert {
	return NewDeriver(thresholds, nil, nil).Derive(snap, enabled, now)
}
