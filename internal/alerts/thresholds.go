package alerts

import (
	"errors"
	"fmt"

	"github.com/m1ndvortex/multi-tenant-sub006/internal/snapshot"
)

// ThresholdSpec holds inclusive lower bounds for one metric.
// A value >= Critical raises a critical alert, else a value >= Warning
// raises a warning.
type ThresholdSpec struct {
	Warning  float64 `json:"warning" toml:"warning"`
	Critical float64 `json:"critical" toml:"critical"`
}

// MetricThreshold pairs a metric with its bounds
type MetricThreshold struct {
	Metric snapshot.Metric `json:"metric"`
	Unit   snapshot.Unit   `json:"unit"`
	ThresholdSpec
}

// Thresholds is the threshold table, keyed by metric.
// Derivation walks it in snapshot.AllMetrics order.
type Thresholds map[snapshot.Metric]ThresholdSpec

// DefaultThresholds returns the built-in threshold table
func DefaultThresholds() Thresholds {
	return Thresholds{
		snapshot.MetricCPUUsage:             {Warning: 70, Critical: 90},
		snapshot.MetricMemoryUsage:          {Warning: 80, Critical: 95},
		snapshot.MetricDiskUsage:            {Warning: 85, Critical: 95},
		snapshot.MetricDatabaseResponseTime: {Warning: 1000, Critical: 2000},
		snapshot.MetricAPIResponseTime:      {Warning: 500, Critical: 1000},
		snapshot.MetricErrorRate:            {Warning: 5, Critical: 10},
		snapshot.MetricCeleryFailedTasks:    {Warning: 5, Critical: 10},
	}
}

// WithOverrides returns a copy of t with the given specs replacing the
// defaults for their metrics.
func (t Thresholds) WithOverrides(overrides map[snapshot.Metric]ThresholdSpec) Thresholds {
	out := make(Thresholds, len(t))
	for m, spec := range t {
		out[m] = spec
	}
	for m, spec := range overrides {
		out[m] = spec
	}
	return out
}

// Validate checks bounds and metric names
func (t Thresholds) Validate() error {
	var errs []error
	for m, spec := range t {
		if !m.Valid() {
			errs = append(errs, fmt.Errorf("unknown metric %q", m))
			continue
		}
		if spec.Warning < 0 || spec.Critical < 0 {
			errs = append(errs, fmt.Errorf("%s: thresholds must not be negative", m))
		}
		if spec.Warning > spec.Critical {
			errs = append(errs, fmt.Errorf("%s: warning %.2f exceeds critical %.2f", m, spec.Warning, spec.Critical))
		}
	}
	return errors.Join(errs...)
}

// Ordered returns the table as a list in canonical metric order
func (t Thresholds) Ordered() []MetricThreshold {
	out := make([]MetricThreshold, 0, len(t))
	for _, m := range snapshot.AllMetrics {
		spec, ok := t[m]
		if !ok {
			continue
		}
		out = append(out, MetricThreshold{Metric: m, Unit: m.Unit(), ThresholdSpec: spec})
	}
	return out
}
