package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeComponent struct {
	name string
	err  error
}

func (f fakeComponent) Name() string  { return f.name }
func (f fakeComponent) Health() error { return f.err }

func TestNewChecker(t *testing.T) {
	checker := NewChecker()
	if checker == nil {
		t.Fatal("NewChecker returned nil")
	}

	if len(checker.livenessChecks) != 0 {
		t.Errorf("Expected 0 liveness checks, got %d", len(checker.livenessChecks))
	}

	if len(checker.readinessChecks) != 0 {
		t.Errorf("Expected 0 readiness checks, got %d", len(checker.readinessChecks))
	}
}

func TestGetLiveness_OneUnhealthy(t *testing.T) {
	checker := NewChecker()

	checker.AddLivenessCheck(func() Check {
		return Check{Name: "healthy", Status: StatusUp}
	})
	checker.AddLivenessCheck(func() Check {
		return Check{Name: "unhealthy", Status: StatusDown}
	})

	response := checker.GetLiveness()

	if response.Status != StatusDown {
		t.Errorf("Expected status DOWN when one check fails, got %s", response.Status)
	}
	if len(response.Checks) != 2 {
		t.Errorf("Expected 2 checks, got %d", len(response.Checks))
	}
}

func TestGetHealth_CombinesChecks(t *testing.T) {
	checker := NewChecker()

	checker.AddLivenessCheck(func() Check {
		return Check{Name: "liveness", Status: StatusUp}
	})
	checker.AddReadinessCheck(func() Check {
		return Check{Name: "readiness", Status: StatusUp}
	})

	response := checker.GetHealth()

	if response.Status != StatusUp {
		t.Errorf("Expected status UP, got %s", response.Status)
	}
	if len(response.Checks) != 2 {
		t.Errorf("Expected 2 combined checks, got %d", len(response.Checks))
	}

	if len(checker.GetReadiness().Checks) != 1 {
		t.Error("Readiness should only run readiness checks")
	}
}

func TestHandleHealth_Returns503WhenUnhealthy(t *testing.T) {
	checker := NewChecker()
	checker.AddReadinessCheck(ErrorCheck("SnapshotPoller", func() error {
		return errors.New("3 consecutive poll failures")
	}))

	req := httptest.NewRequest(http.MethodGet, "/q/health", nil)
	w := httptest.NewRecorder()

	checker.HandleHealth(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected Content-Type 'application/json', got '%s'", ct)
	}

	var response HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if response.Status != StatusDown {
		t.Errorf("Expected status DOWN in response, got %s", response.Status)
	}
	if len(response.Checks) != 1 {
		t.Fatalf("Expected 1 check, got %d", len(response.Checks))
	}
	if response.Checks[0].Data["error"] != "3 consecutive poll failures" {
		t.Errorf("Expected error message in check data, got %v", response.Checks[0].Data)
	}
}

func TestHandleLiveAndReady_Return200WhenNoChecks(t *testing.T) {
	checker := NewChecker()

	for path, handler := range map[string]http.HandlerFunc{
		"/q/health/live":  checker.HandleLive,
		"/q/health/ready": checker.HandleReady,
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()

		handler(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("%s: expected status 200, got %d", path, w.Code)
		}

		var response HealthResponse
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if response.Status != StatusUp {
			t.Errorf("%s: expected status UP when no checks, got %s", path, response.Status)
		}
	}
}

func TestComponentCheck(t *testing.T) {
	up := ComponentCheck(fakeComponent{name: "snapshot-poller"})()
	if up.Name != "snapshot-poller" || up.Status != StatusUp {
		t.Errorf("Expected UP snapshot-poller, got %+v", up)
	}

	down := ComponentCheck(fakeComponent{name: "snapshot-poller", err: errors.New("stale")})()
	if down.Status != StatusDown {
		t.Errorf("Expected DOWN, got %s", down.Status)
	}
	if down.Data["error"] != "stale" {
		t.Errorf("Expected error data, got %v", down.Data)
	}
}

func TestCircuitBreakerCheck(t *testing.T) {
	tests := []struct {
		state string
		want  Status
	}{
		{"closed", StatusUp},
		{"half-open", StatusUp},
		{"disabled", StatusUp},
		{"open", StatusDown},
	}

	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			check := CircuitBreakerCheck("Backend", func() string { return tt.state })()
			if check.Status != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, check.Status)
			}
			if check.Data["state"] != tt.state {
				t.Errorf("Expected state %s in data, got %v", tt.state, check.Data["state"])
			}
		})
	}
}

func TestAlertsCheck_AlwaysUp(t *testing.T) {
	check := AlertsCheck(func() (bool, int, int) { return true, 2, 1 })()

	if check.Status != StatusUp {
		t.Errorf("Alerts check should be UP, got %s", check.Status)
	}
	if check.Data["critical"] != 2 || check.Data["warning"] != 1 {
		t.Errorf("Unexpected counts %v", check.Data)
	}
}

func TestHealthResponseJSONStructure(t *testing.T) {
	checker := NewChecker()
	checker.AddReadinessCheck(func() Check {
		return Check{Name: "Backend", Status: StatusUp}
	})

	req := httptest.NewRequest(http.MethodGet, "/q/health", nil)
	w := httptest.NewRecorder()

	checker.HandleHealth(w, req)

	var rawJSON map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&rawJSON); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if _, ok := rawJSON["status"]; !ok {
		t.Error("Expected 'status' field in response")
	}
	if _, ok := rawJSON["checks"]; !ok {
		t.Error("Expected 'checks' field in response")
	}
}

func TestConcurrentChecks(t *testing.T) {
	checker := NewChecker()

	for i := 0; i < 10; i++ {
		checker.AddReadinessCheck(func() Check {
			return Check{Name: "check", Status: StatusUp}
		})
	}

	done := make(chan bool)
	for i := 0; i < 100; i++ {
		go func() {
			checker.GetHealth()
			done <- true
		}()
	}

	for i := 0; i < 100; i++ {
		<-done
	}
}
