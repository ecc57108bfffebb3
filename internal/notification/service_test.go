package notification

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m1ndvortex/multi-tenant-sub006/internal/alerts"
	"github.com/m1ndvortex/multi-tenant-sub006/internal/snapshot"
)

type recordingService struct {
	mu      sync.Mutex
	enabled bool
	alerts  []alerts.Alert
	events  []string
}

func (r *recordingService) NotifyAlert(a alerts.Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
}

func (r *recordingService) NotifySystemEvent(eventType, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
}

func (r *recordingService) IsEnabled() bool { return r.enabled }

func testAlert(severity alerts.Severity, metric snapshot.Metric) alerts.Alert {
	return alerts.Alert{
		ID:        string(metric) + "-" + string(severity),
		Severity:  severity,
		Title:     "Critical: CPU usage",
		Message:   "CPU usage is 95.0%, at or above the critical threshold of 90.0%",
		Timestamp: time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC),
		Metric:    metric,
		Value:     95,
		Threshold: 90,
	}
}

func TestNoOpService(t *testing.T) {
	svc := NewNoOpService()

	// Should not panic
	svc.NotifyAlert(testAlert(alerts.SeverityCritical, snapshot.MetricCPUUsage))
	svc.NotifySystemEvent("STARTUP", "System started")

	if svc.IsEnabled() {
		t.Error("NoOpService.IsEnabled should return false")
	}
}

func TestMulti_SkipsDisabledDelegates(t *testing.T) {
	on := &recordingService{enabled: true}
	off := &recordingService{enabled: false}
	m := Multi{on, off}

	m.NotifyAlert(testAlert(alerts.SeverityWarning, snapshot.MetricDiskUsage))
	m.NotifySystemEvent("ALERTS_TOGGLED", "disabled")

	if len(on.alerts) != 1 || len(on.events) != 1 {
		t.Errorf("Enabled delegate should receive both, got %d alerts %d events", len(on.alerts), len(on.events))
	}
	if len(off.alerts) != 0 || len(off.events) != 0 {
		t.Error("Disabled delegate should receive nothing")
	}
	if !m.IsEnabled() {
		t.Error("Multi with an enabled delegate should be enabled")
	}
	if (Multi{off}).IsEnabled() {
		t.Error("Multi with only disabled delegates should be disabled")
	}
}

func TestTeamsService_SendsAdaptiveCard(t *testing.T) {
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Expected JSON content type, got %s", r.Header.Get("Content-Type"))
		}
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	svc := NewTeamsService(&TeamsConfig{WebhookURL: server.URL, Enabled: true})
	svc.NotifyAlert(testAlert(alerts.SeverityCritical, snapshot.MetricCPUUsage))

	var card map[string]interface{}
	if err := json.Unmarshal(body, &card); err != nil {
		t.Fatalf("Webhook body should be JSON: %v", err)
	}
	attachments, ok := card["attachments"].([]interface{})
	if !ok || len(attachments) != 1 {
		t.Fatalf("Expected one attachment, got %v", card["attachments"])
	}
	if !strings.Contains(string(body), "Critical: CPU usage") {
		t.Error("Card should carry the alert title")
	}
	if !strings.Contains(string(body), "Attention") {
		t.Error("Critical alert should use the Attention color")
	}
}

func TestTeamsService_Disabled(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	svc := NewTeamsService(&TeamsConfig{WebhookURL: server.URL, Enabled: false})
	svc.NotifyAlert(testAlert(alerts.SeverityCritical, snapshot.MetricCPUUsage))
	svc.NotifySystemEvent("STARTUP", "hello")

	if called {
		t.Error("Disabled Teams service should not call the webhook")
	}
}

func TestTeamsService_WebhookError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	svc := NewTeamsService(&TeamsConfig{WebhookURL: server.URL, Enabled: true})
	if err := svc.sendToTeams([]byte(`{}`)); err == nil {
		t.Error("Expected error on 500 from webhook")
	}
}

func TestEmailService_SendsHTML(t *testing.T) {
	svc := NewEmailService(&EmailConfig{
		SMTPHost:    "smtp.example.com",
		SMTPPort:    587,
		FromAddress: "healthwatch@example.com",
		ToAddress:   "ops@example.com",
		Enabled:     true,
	})

	var gotAddr string
	var gotMsg string
	svc.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotMsg = string(msg)
		return nil
	}

	a := testAlert(alerts.SeverityCritical, snapshot.MetricCPUUsage)
	a.Message = "<script>x</script>"
	svc.NotifyAlert(a)

	if gotAddr != "smtp.example.com:587" {
		t.Errorf("Unexpected SMTP address %s", gotAddr)
	}
	if !strings.HasPrefix(gotMsg, "From: healthwatch@example.com\r\n") {
		t.Errorf("Message should start with the From header: %q", gotMsg[:40])
	}
	if !strings.Contains(gotMsg, "Subject: [Healthwatch] CRITICAL - Critical: CPU usage") {
		t.Error("Subject should carry severity and title")
	}
	if strings.Contains(gotMsg, "<script>") {
		t.Error("Message should be HTML-escaped")
	}
}

func TestEmailService_Disabled(t *testing.T) {
	svc := NewEmailService(&EmailConfig{Enabled: false})
	svc.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Error("Disabled email service should not send")
		return nil
	}
	svc.NotifyAlert(testAlert(alerts.SeverityWarning, snapshot.MetricDiskUsage))
	svc.NotifySystemEvent("STARTUP", "hello")
}

func TestBatchingService_MinSeverity(t *testing.T) {
	delegate := &recordingService{enabled: true}
	svc := NewBatchingService([]Service{delegate}, &BatchingConfig{
		MinSeverity: alerts.SeverityCritical,
		BatchWindow: time.Minute,
	})

	svc.NotifyAlert(testAlert(alerts.SeverityWarning, snapshot.MetricDiskUsage))
	if svc.Pending() != 0 {
		t.Error("Warning below the minimum severity should not be batched")
	}

	svc.NotifyAlert(testAlert(alerts.SeverityCritical, snapshot.MetricCPUUsage))
	if svc.Pending() != 1 {
		t.Errorf("Expected 1 pending, got %d", svc.Pending())
	}
}

func TestBatchingService_SendBatch(t *testing.T) {
	delegate := &recordingService{enabled: true}
	svc := NewBatchingService([]Service{delegate}, nil)

	svc.NotifyAlert(testAlert(alerts.SeverityWarning, snapshot.MetricDiskUsage))
	svc.NotifyAlert(testAlert(alerts.SeverityCritical, snapshot.MetricCPUUsage))
	svc.NotifyAlert(testAlert(alerts.SeverityCritical, snapshot.MetricCPUUsage))
	svc.NotifySystemEvent("ALERTS_TOGGLED", "enabled")

	svc.SendBatch()

	if len(delegate.alerts) != 1 {
		t.Fatalf("Expected one summary alert, got %d", len(delegate.alerts))
	}
	summary := delegate.alerts[0]
	if summary.Severity != alerts.SeverityCritical {
		t.Errorf("Summary should carry the highest severity, got %s", summary.Severity)
	}
	if !strings.Contains(summary.Message, "cpu_usage: 2 occurrences") {
		t.Errorf("Summary should group repeated metrics: %s", summary.Message)
	}
	if !strings.Contains(summary.Message, "Total alerts: 3") {
		t.Errorf("Summary should count all alerts: %s", summary.Message)
	}
	if strings.Index(summary.Message, "CRITICAL") > strings.Index(summary.Message, "WARNING") {
		t.Error("Critical section should come before warning")
	}
	if len(delegate.events) != 1 {
		t.Errorf("Expected 1 forwarded event, got %d", len(delegate.events))
	}

	// Batch is cleared
	svc.SendBatch()
	if len(delegate.alerts) != 1 {
		t.Error("Empty batch should send nothing")
	}
}

func TestBatchingService_StopFlushes(t *testing.T) {
	delegate := &recordingService{enabled: true}
	svc := NewBatchingService([]Service{delegate}, &BatchingConfig{
		MinSeverity: alerts.SeverityWarning,
		BatchWindow: time.Hour,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- svc.Start(context.Background()) }()

	// Wait for the loop to register its cancel func
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		svc.mu.Lock()
		started := svc.cancel != nil
		svc.mu.Unlock()
		if started {
			break
		}
		time.Sleep(time.Millisecond)
	}

	svc.NotifyAlert(testAlert(alerts.SeverityWarning, snapshot.MetricDiskUsage))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := svc.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Errorf("Start returned %v", err)
	}

	delegate.mu.Lock()
	defer delegate.mu.Unlock()
	if len(delegate.alerts) != 1 {
		t.Errorf("Stop should flush the pending batch, got %d", len(delegate.alerts))
	}
}

func TestBatchingService_IsEnabled(t *testing.T) {
	if NewBatchingService(nil, nil).IsEnabled() {
		t.Error("No delegates should be disabled")
	}
	if !NewBatchingService([]Service{&recordingService{enabled: true}}, nil).IsEnabled() {
		t.Error("Enabled delegate should enable batching")
	}
}
