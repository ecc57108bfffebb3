package alerts

import (
	"fmt"
	"testing"
	"time"

	"github.com/m1ndvortex/multi-tenant-sub006/internal/snapshot"
)

func newAlert(id string, severity Severity, ts time.Time) Alert {
	return Alert{
		ID:        id,
		Severity:  severity,
		Metric:    snapshot.MetricCPUUsage,
		Timestamp: ts,
		LastSeen:  ts,
	}
}

func TestNewStore(t *testing.T) {
	s := NewStore(StoreConfig{})

	if s == nil {
		t.Fatal("NewStore returned nil")
	}
	if !s.Enabled() {
		t.Error("Store should start enabled")
	}
	if s.retention != DefaultRetention {
		t.Errorf("Expected default retention %v, got %v", DefaultRetention, s.retention)
	}
	if s.maxAlerts != DefaultMaxAlerts {
		t.Errorf("Expected default max %d, got %d", DefaultMaxAlerts, s.maxAlerts)
	}

	if NewStore(StoreConfig{Disabled: true}).Enabled() {
		t.Error("Disabled config should start the store disabled")
	}
}

func TestStore_MergeIsIdempotent(t *testing.T) {
	s := NewStore(StoreConfig{})
	critical := snap(map[snapshot.Metric]float64{snapshot.MetricCPUUsage: 95})

	derived := Derive(critical, DefaultThresholds(), true, testNow)

	added := s.Merge(derived, testNow)
	if len(added) != 1 {
		t.Fatalf("First merge should add 1 alert, got %d", len(added))
	}

	again := Derive(critical, DefaultThresholds(), true, testNow)
	if added := s.Merge(again, testNow); len(added) != 0 {
		t.Errorf("Second merge with identical ids should add nothing, got %d", len(added))
	}
	if s.Count() != 1 {
		t.Errorf("Expected 1 stored alert, got %d", s.Count())
	}
}

func TestStore_MergeDedupWithinBatch(t *testing.T) {
	s := NewStore(StoreConfig{})

	batch := []Alert{
		newAlert("dup", SeverityWarning, testNow),
		newAlert("dup", SeverityWarning, testNow),
	}
	if added := s.Merge(batch, testNow); len(added) != 1 {
		t.Errorf("Expected 1 added alert, got %d", len(added))
	}
}

func TestStore_MergeRefreshesLastSeen(t *testing.T) {
	s := NewStore(StoreConfig{})
	s.Merge([]Alert{newAlert("cpu_usage-critical", SeverityCritical, testNow)}, testNow)

	later := testNow.Add(5 * time.Minute)
	offered := newAlert("cpu_usage-critical", SeverityCritical, later)
	s.Merge([]Alert{offered}, later)

	got, ok := s.Get("cpu_usage-critical")
	if !ok {
		t.Fatal("Alert should still be stored")
	}
	if !got.LastSeen.Equal(later) {
		t.Errorf("Expected LastSeen %v, got %v", later, got.LastSeen)
	}
	if !got.Timestamp.Equal(testNow) {
		t.Errorf("Timestamp should keep the first sighting, got %v", got.Timestamp)
	}
}

func TestStore_RetentionWindow(t *testing.T) {
	s := NewStore(StoreConfig{})

	s.Merge([]Alert{
		newAlert("old", SeverityWarning, testNow.Add(-25*time.Hour)),
		newAlert("edge", SeverityWarning, testNow.Add(-24*time.Hour)),
		newAlert("fresh", SeverityWarning, testNow.Add(-time.Hour)),
	}, testNow.Add(-25*time.Hour))

	if s.Count() != 3 {
		t.Fatalf("Expected 3 alerts before pruning, got %d", s.Count())
	}

	s.Merge(nil, testNow)

	if _, ok := s.Get("old"); ok {
		t.Error("Alert older than 24h should be pruned")
	}
	if _, ok := s.Get("edge"); !ok {
		t.Error("Alert exactly 24h old should be kept")
	}
	if _, ok := s.Get("fresh"); !ok {
		t.Error("Fresh alert should be kept")
	}
}

func TestStore_MergeSkipsAlreadyExpired(t *testing.T) {
	s := NewStore(StoreConfig{Retention: time.Hour})

	added := s.Merge([]Alert{newAlert("stale", SeverityWarning, testNow.Add(-2*time.Hour))}, testNow)
	if len(added) != 0 || s.Count() != 0 {
		t.Errorf("Alert outside the window should not be added, got %d", s.Count())
	}
}

func TestStore_AcknowledgeHidesFromActive(t *testing.T) {
	s := NewStore(StoreConfig{})
	s.Merge([]Alert{
		newAlert("a", SeverityCritical, testNow),
		newAlert("b", SeverityWarning, testNow),
	}, testNow)

	if !s.Acknowledge("a") {
		t.Fatal("Acknowledge should find alert a")
	}

	active := s.ActiveAlerts()
	if len(active) != 1 || active[0].ID != "b" {
		t.Errorf("Expected only b active, got %+v", active)
	}

	// Still stored, and survives a subsequent merge
	s.Merge(nil, testNow.Add(time.Minute))
	got, ok := s.Get("a")
	if !ok || !got.Acknowledged {
		t.Error("Acknowledged alert should remain stored")
	}
	if len(s.Alerts()) != 2 {
		t.Errorf("Expected 2 stored alerts, got %d", len(s.Alerts()))
	}
}

func TestStore_AcknowledgeUnknown(t *testing.T) {
	s := NewStore(StoreConfig{})
	if s.Acknowledge("missing") {
		t.Error("Acknowledge should report false for unknown id")
	}
}

func TestStore_DismissThenRederive(t *testing.T) {
	s := NewStore(StoreConfig{})
	critical := snap(map[snapshot.Metric]float64{snapshot.MetricCPUUsage: 95})

	first := s.Merge(Derive(critical, DefaultThresholds(), true, testNow), testNow)
	if len(first) != 1 {
		t.Fatalf("Expected 1 alert, got %d", len(first))
	}

	if !s.Dismiss(first[0].ID) {
		t.Fatal("Dismiss should find the alert")
	}
	if s.Dismiss(first[0].ID) {
		t.Error("Second dismiss should report false")
	}
	if s.Count() != 0 {
		t.Errorf("Expected empty store, got %d", s.Count())
	}

	later := testNow.Add(30 * time.Second)
	second := s.Merge(Derive(critical, DefaultThresholds(), true, later), later)
	if len(second) != 1 {
		t.Fatalf("Expected a new alert, got %d", len(second))
	}
	if second[0].ID == first[0].ID {
		t.Error("Re-derived alert should get a new id, not revive the dismissed one")
	}
}

func TestStore_ClearAll(t *testing.T) {
	s := NewStore(StoreConfig{})
	s.Merge([]Alert{
		newAlert("a", SeverityCritical, testNow),
		newAlert("b", SeverityWarning, testNow),
	}, testNow)
	s.Acknowledge("a")

	if n := s.ClearAll(); n != 2 {
		t.Errorf("Expected 2 cleared, got %d", n)
	}
	if s.Count() != 0 {
		t.Errorf("Expected empty store, got %d", s.Count())
	}
	if !s.Enabled() {
		t.Error("ClearAll should not change the enabled flag")
	}
}

func TestStore_DisableThenEnable(t *testing.T) {
	s := NewStore(StoreConfig{})
	critical := snap(map[snapshot.Metric]float64{snapshot.MetricCPUUsage: 95})
	deriver := NewDeriver(nil, nil, nil)

	s.Merge([]Alert{newAlert("existing", SeverityWarning, testNow)}, testNow)

	s.SetEnabled(false)
	if s.Count() != 1 {
		t.Error("Disabling should not clear stored alerts")
	}

	_, added := s.Update(testNow, func(enabled bool) []Alert {
		return deriver.Derive(critical, enabled, testNow)
	})
	if len(added) != 0 {
		t.Errorf("Disabled store should add nothing, got %d", len(added))
	}

	s.SetEnabled(true)
	_, added = s.Update(testNow, func(enabled bool) []Alert {
		return deriver.Derive(critical, enabled, testNow)
	})
	if len(added) != 1 || added[0].Severity != SeverityCritical {
		t.Errorf("Re-enabled store should add the critical alert, got %+v", added)
	}
}

func TestStore_DisplayOrder(t *testing.T) {
	s := NewStore(StoreConfig{})
	s.Merge([]Alert{
		newAlert("w-old", SeverityWarning, testNow.Add(-2*time.Hour)),
		newAlert("c-old", SeverityCritical, testNow.Add(-3*time.Hour)),
		newAlert("w-new", SeverityWarning, testNow),
		newAlert("c-new", SeverityCritical, testNow.Add(-time.Hour)),
		newAlert("c-new-b", SeverityCritical, testNow.Add(-time.Hour)),
	}, testNow)

	want := []string{"c-new", "c-new-b", "c-old", "w-new", "w-old"}
	got := s.Alerts()
	if len(got) != len(want) {
		t.Fatalf("Expected %d alerts, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("Position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
}

func TestStore_BySeverityAndSummary(t *testing.T) {
	s := NewStore(StoreConfig{})
	s.Merge([]Alert{
		newAlert("c1", SeverityCritical, testNow),
		newAlert("c2", SeverityCritical, testNow),
		newAlert("w1", SeverityWarning, testNow),
	}, testNow)
	s.Acknowledge("c2")

	if got := s.BySeverity(SeverityCritical); len(got) != 2 {
		t.Errorf("Expected 2 critical alerts, got %d", len(got))
	}
	if got := s.BySeverity(SeverityWarning); len(got) != 1 {
		t.Errorf("Expected 1 warning alert, got %d", len(got))
	}

	sum := s.Summary()
	if sum.Critical != 1 || sum.Warning != 1 || sum.Total != 2 {
		t.Errorf("Summary should count active alerts only, got %+v", sum)
	}
}

func TestStore_CapacityEvictsOldest(t *testing.T) {
	s := NewStore(StoreConfig{MaxAlerts: 3})

	for i := 0; i < 5; i++ {
		ts := testNow.Add(time.Duration(i) * time.Minute)
		s.Merge([]Alert{newAlert(fmt.Sprintf("a%d", i), SeverityWarning, ts)}, ts)
	}

	if s.Count() != 3 {
		t.Fatalf("Expected 3 alerts, got %d", s.Count())
	}
	for _, id := range []string{"a0", "a1"} {
		if _, ok := s.Get(id); ok {
			t.Errorf("Oldest alert %s should have been evicted", id)
		}
	}
	for _, id := range []string{"a2", "a3", "a4"} {
		if _, ok := s.Get(id); !ok {
			t.Errorf("Alert %s should be kept", id)
		}
	}
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := NewStore(StoreConfig{})
	s.Merge([]Alert{newAlert("a", SeverityWarning, testNow)}, testNow)

	list := s.Alerts()
	list[0].Acknowledged = true

	if got, _ := s.Get("a"); got.Acknowledged {
		t.Error("Mutating a returned alert should not change the store")
	}
}
