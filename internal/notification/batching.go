package notification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/m1ndvortex/multi-tenant-sub006/internal/alerts"
)

// BatchingConfig holds batching configuration
type BatchingConfig struct {
	MinSeverity alerts.Severity
	BatchWindow time.Duration
}

// DefaultBatchingConfig returns default batching configuration
func DefaultBatchingConfig() *BatchingConfig {
	return &BatchingConfig{
		MinSeverity: alerts.SeverityWarning,
		BatchWindow: 5 * time.Minute,
	}
}

type systemEvent struct {
	eventType string
	message   string
}

// BatchingService collects alerts over a configurable window and sends a
// single summary notification to all registered delegates. Only alerts at
// or above the configured minimum severity are collected.
type BatchingService struct {
	mu sync.Mutex

	delegates      []Service
	config         *BatchingConfig
	alertBatch     []alerts.Alert
	eventBatch     []systemEvent
	batchStartTime time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewBatchingService creates a new batching notification service
func NewBatchingService(delegates []Service, config *BatchingConfig) *BatchingService {
	if config == nil {
		config = DefaultBatchingConfig()
	}
	if config.BatchWindow <= 0 {
		config.BatchWindow = DefaultBatchingConfig().BatchWindow
	}

	slog.Info("Batching notification service initialized",
		"delegates", len(delegates),
		"minSeverity", config.MinSeverity,
		"batchWindow", config.BatchWindow)

	return &BatchingService{
		delegates:      delegates,
		config:         config,
		batchStartTime: time.Now(),
	}
}

// NotifyAlert adds an alert to the batch
func (s *BatchingService) NotifyAlert(alert alerts.Alert) {
	if !alert.Severity.AtLeast(s.config.MinSeverity) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.alertBatch = append(s.alertBatch, alert)
}

// NotifySystemEvent adds a system event to the batch
func (s *BatchingService) NotifySystemEvent(eventType, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.eventBatch = append(s.eventBatch, systemEvent{eventType: eventType, message: message})
}

// IsEnabled returns true if any delegate is enabled
func (s *BatchingService) IsEnabled() bool {
	for _, delegate := range s.delegates {
		if delegate.IsEnabled() {
			return true
		}
	}
	return false
}

// Pending returns the number of batched alerts and events
func (s *BatchingService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alertBatch) + len(s.eventBatch)
}

// SendBatch sends the batched notifications and starts a new window
func (s *BatchingService) SendBatch() {
	s.mu.Lock()
	if len(s.alertBatch) == 0 && len(s.eventBatch) == 0 {
		s.mu.Unlock()
		slog.Debug("No alerts to send in this batch period")
		return
	}

	batch := s.alertBatch
	events := s.eventBatch
	batchStartTime := s.batchStartTime
	batchEndTime := time.Now()

	s.alertBatch = nil
	s.eventBatch = nil
	s.batchStartTime = batchEndTime
	s.mu.Unlock()

	slog.Info("Sending batched notification",
		"alerts", len(batch),
		"events", len(events),
		"startTime", batchStartTime,
		"endTime", batchEndTime)

	var summary *alerts.Alert
	if len(batch) > 0 {
		a := buildSummaryAlert(batch, batchStartTime, batchEndTime)
		summary = &a
	}

	for _, delegate := range s.delegates {
		if summary != nil {
			delegate.NotifyAlert(*summary)
		}
		for _, e := range events {
			delegate.NotifySystemEvent(e.eventType, e.message)
		}
	}
}

// buildSummaryAlert folds a batch into one synthetic alert
func buildSummaryAlert(batch []alerts.Alert, startTime, endTime time.Time) alerts.Alert {
	sorted := make([]alerts.Alert, len(batch))
	copy(sorted, batch)
	alerts.SortAlerts(sorted)

	bySeverity := make(map[alerts.Severity][]alerts.Alert)
	for _, a := range sorted {
		bySeverity[a.Severity] = append(bySeverity[a.Severity], a)
	}

	var summary strings.Builder
	summary.WriteString(fmt.Sprintf("System health alert summary (%s to %s)\n\n",
		startTime.Format(time.RFC3339), endTime.Format(time.RFC3339)))

	highest := alerts.SeverityWarning
	for _, severity := range alerts.Severities {
		group := bySeverity[severity]
		if len(group) == 0 {
			continue
		}
		if severity.AtLeast(highest) {
			highest = severity
		}

		summary.WriteString(fmt.Sprintf("%s (%d):\n", strings.ToUpper(string(severity)), len(group)))

		// Group by metric and show counts
		counts := make(map[string]int)
		var order []string
		example := make(map[string]string)
		for _, a := range group {
			key := string(a.Metric)
			if _, seen := counts[key]; !seen {
				order = append(order, key)
				example[key] = a.Message
			}
			counts[key]++
		}

		for _, key := range order {
			if counts[key] == 1 {
				summary.WriteString(fmt.Sprintf("  - %s: %s\n", key, example[key]))
			} else {
				summary.WriteString(fmt.Sprintf("  - %s: %d occurrences\n", key, counts[key]))
				summary.WriteString(fmt.Sprintf("    Example: %s\n", example[key]))
			}
		}
		summary.WriteString("\n")
	}

	summary.WriteString(fmt.Sprintf("Total alerts: %d\n", len(batch)))

	return alerts.Alert{
		ID:        uuid.New().String(),
		Severity:  highest,
		Title:     fmt.Sprintf("%d system health alerts", len(batch)),
		Message:   summary.String(),
		Timestamp: endTime,
		LastSeen:  endTime,
	}
}

// Name implements lifecycle.Service
func (s *BatchingService) Name() string {
	return "notification-batcher"
}

// Start flushes the batch every window until ctx is cancelled
func (s *BatchingService) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan struct{})

	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	defer close(done)

	ticker := time.NewTicker(s.config.BatchWindow)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final flush
			s.SendBatch()
			return nil
		case <-ticker.C:
			s.SendBatch()
		}
	}
}

// Stop cancels the flush loop and waits for the final flush
func (s *BatchingService) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		s.SendBatch()
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Health is always nil; delivery failures are logged per delegate
func (s *BatchingService) Health() error {
	return nil
}
