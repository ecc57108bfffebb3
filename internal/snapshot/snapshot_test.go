package snapshot

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSnapshot_Value(t *testing.T) {
	s := FromValues(map[Metric]float64{
		MetricCPUUsage:          95,
		MetricCeleryFailedTasks: 0,
	}, time.Now())

	if v, ok := s.Value(MetricCPUUsage); !ok || v != 95 {
		t.Errorf("Expected cpu_usage 95, got %v (present=%v)", v, ok)
	}

	// A zero value is present, not missing
	if v, ok := s.Value(MetricCeleryFailedTasks); !ok || v != 0 {
		t.Errorf("Expected celery_failed_tasks 0 present, got %v (present=%v)", v, ok)
	}

	if _, ok := s.Value(MetricDiskUsage); ok {
		t.Error("disk_usage should be absent")
	}

	if _, ok := s.Value(Metric("load_average")); ok {
		t.Error("Unknown metric should be absent")
	}
}

func TestSnapshot_ValueOnNil(t *testing.T) {
	var s *Snapshot
	if _, ok := s.Value(MetricCPUUsage); ok {
		t.Error("Nil snapshot should report every metric absent")
	}
}

func TestSnapshot_JSONDecode(t *testing.T) {
	body := `{"cpu_usage": 42.5, "memory_usage": 60, "database_response_time": 120, "unknown_field": 7}`

	var s Snapshot
	if err := json.Unmarshal([]byte(body), &s); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	values := s.Values()
	if len(values) != 3 {
		t.Fatalf("Expected 3 present metrics, got %d: %v", len(values), values)
	}
	if values[MetricCPUUsage] != 42.5 {
		t.Errorf("Expected cpu_usage 42.5, got %v", values[MetricCPUUsage])
	}
	if _, ok := s.Value(MetricErrorRate); ok {
		t.Error("error_rate should be absent when not sent")
	}
}

func TestMetric_ValidAndUnit(t *testing.T) {
	tests := []struct {
		metric Metric
		valid  bool
		unit   Unit
	}{
		{MetricCPUUsage, true, UnitPercent},
		{MetricMemoryUsage, true, UnitPercent},
		{MetricDiskUsage, true, UnitPercent},
		{MetricDatabaseResponseTime, true, UnitMilliseconds},
		{MetricAPIResponseTime, true, UnitMilliseconds},
		{MetricErrorRate, true, UnitPercent},
		{MetricCeleryFailedTasks, true, UnitCount},
		{Metric("bogus"), false, UnitPercent},
	}

	for _, tt := range tests {
		t.Run(string(tt.metric), func(t *testing.T) {
			if got := tt.metric.Valid(); got != tt.valid {
				t.Errorf("Valid() = %v, want %v", got, tt.valid)
			}
			if got := tt.metric.Unit(); got != tt.unit {
				t.Errorf("Unit() = %v, want %v", got, tt.unit)
			}
		})
	}
}

func TestAllMetrics_Order(t *testing.T) {
	want := []Metric{
		"cpu_usage", "memory_usage", "disk_usage",
		"database_response_time", "api_response_time",
		"error_rate", "celery_failed_tasks",
	}
	if len(AllMetrics) != len(want) {
		t.Fatalf("Expected %d metrics, got %d", len(want), len(AllMetrics))
	}
	for i := range want {
		if AllMetrics[i] != want[i] {
			t.Errorf("AllMetrics[%d] = %s, want %s", i, AllMetrics[i], want[i])
		}
	}
}
