// Package snapshot provides the health snapshot model and the poller that
// periodically fetches it from the backend and hands it to observers.
package snapshot

import (
	"time"
)

// Metric names a numeric field of a health snapshot
type Metric string

const (
	MetricCPUUsage             Metric = "cpu_usage"
	MetricMemoryUsage          Metric = "memory_usage"
	MetricDiskUsage            Metric = "disk_usage"
	MetricDatabaseResponseTime Metric = "database_response_time"
	MetricAPIResponseTime      Metric = "api_response_time"
	MetricErrorRate            Metric = "error_rate"
	MetricCeleryFailedTasks    Metric = "celery_failed_tasks"
)

// AllMetrics lists the snapshot metrics in their canonical order
var AllMetrics = []Metric{
	MetricCPUUsage,
	MetricMemoryUsage,
	MetricDiskUsage,
	MetricDatabaseResponseTime,
	MetricAPIResponseTime,
	MetricErrorRate,
	MetricCeleryFailedTasks,
}

// Unit is the unit a metric is reported in
type Unit string

const (
	UnitPercent      Unit = "percent"
	UnitMilliseconds Unit = "ms"
	UnitCount        Unit = "count"
)

// Valid reports whether m is one of the known metrics
func (m Metric) Valid() bool {
	for _, known := range AllMetrics {
		if m == known {
			return true
		}
	}
	return false
}

// Unit returns the unit the metric is reported in
func (m Metric) Unit() Unit {
	switch m {
	case MetricDatabaseResponseTime, MetricAPIResponseTime:
		return UnitMilliseconds
	case MetricCeleryFailedTasks:
		return UnitCount
	default:
		return UnitPercent
	}
}

// Snapshot is one reading of system health metrics.
// A nil metric field means the backend did not report it.
type Snapshot struct {
	CPUUsage             *float64 `json:"cpu_usage,omitempty"`
	MemoryUsage          *float64 `json:"memory_usage,omitempty"`
	DiskUsage            *float64 `json:"disk_usage,omitempty"`
	DatabaseResponseTime *float64 `json:"database_response_time,omitempty"`
	APIResponseTime      *float64 `json:"api_response_time,omitempty"`
	ErrorRate            *float64 `json:"error_rate,omitempty"`
	CeleryFailedTasks    *float64 `json:"celery_failed_tasks,omitempty"`

	// Timestamp is the backend's own reading time, when it sends one
	Timestamp *time.Time `json:"timestamp,omitempty"`

	// ReceivedAt is set locally when the snapshot is fetched
	ReceivedAt time.Time `json:"received_at"`
}

// Value returns the value for a metric and whether it is present.
// Unknown metric names report absent.
func (s *Snapshot) Value(m Metric) (float64, bool) {
	if s == nil {
		return 0, false
	}

	var p *float64
	switch m {
	case MetricCPUUsage:
		p = s.CPUUsage
	case MetricMemoryUsage:
		p = s.MemoryUsage
	case MetricDiskUsage:
		p = s.DiskUsage
	case MetricDatabaseResponseTime:
		p = s.DatabaseResponseTime
	case MetricAPIResponseTime:
		p = s.APIResponseTime
	case MetricErrorRate:
		p = s.ErrorRate
	case MetricCeleryFailedTasks:
		p = s.CeleryFailedTasks
	}

	if p == nil {
		return 0, false
	}
	return *p, true
}

// Set stores a value for a metric. Unknown metrics are ignored.
func (s *Snapshot) Set(m Metric, v float64) {
	val := v
	switch m {
	case MetricCPUUsage:
		s.CPUUsage = &val
	case MetricMemoryUsage:
		s.MemoryUsage = &val
	case MetricDiskUsage:
		s.DiskUsage = &val
	case MetricDatabaseResponseTime:
		s.DatabaseResponseTime = &val
	case MetricAPIResponseTime:
		s.APIResponseTime = &val
	case MetricErrorRate:
		s.ErrorRate = &val
	case MetricCeleryFailedTasks:
		s.CeleryFailedTasks = &val
	}
}

// Values returns the present metrics as a map
func (s *Snapshot) Values() map[Metric]float64 {
	out := make(map[Metric]float64, len(AllMetrics))
	for _, m := range AllMetrics {
		if v, ok := s.Value(m); ok {
			out[m] = v
		}
	}
	return out
}

// FromValues builds a snapshot from a metric map
func FromValues(values map[Metric]float64, receivedAt time.Time) *Snapshot {
	s := &Snapshot{ReceivedAt: receivedAt}
	for m, v := range values {
		s.Set(m, v)
	}
	return s
}
