package notification

import (
	"context"
	"log/slog"
	"sync"

	"github.com/m1ndvortex/multi-tenant-sub006/internal/alerts"
	"github.com/m1ndvortex/multi-tenant-sub006/internal/common/metrics"
)

// DefaultQueueSize is the dispatcher's default buffer
const DefaultQueueSize = 256

type dispatch struct {
	alert     *alerts.Alert
	eventType string
	message   string
}

// Dispatcher queues notifications and delivers them to its delegate from
// one worker goroutine, so a slow webhook or SMTP server never blocks the
// caller. When the queue is full new notifications are dropped.
type Dispatcher struct {
	delegate Service
	queue    chan dispatch

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewDispatcher creates a dispatcher in front of delegate
func NewDispatcher(delegate Service, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Dispatcher{
		delegate: delegate,
		queue:    make(chan dispatch, queueSize),
	}
}

func (d *Dispatcher) NotifyAlert(alert alerts.Alert) {
	d.enqueue(dispatch{alert: &alert})
}

func (d *Dispatcher) NotifySystemEvent(eventType, message string) {
	d.enqueue(dispatch{eventType: eventType, message: message})
}

func (d *Dispatcher) IsEnabled() bool {
	return d.delegate.IsEnabled()
}

// Pending returns the number of queued notifications
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

func (d *Dispatcher) enqueue(n dispatch) {
	select {
	case d.queue <- n:
	default:
		metrics.NotificationsSent.WithLabelValues("queue", "dropped").Inc()
		slog.Warn("Notification queue full, dropping notification",
			"queueSize", cap(d.queue),
			"eventType", n.eventType)
	}
}

func (d *Dispatcher) deliver(n dispatch) {
	if n.alert != nil {
		d.delegate.NotifyAlert(*n.alert)
		return
	}
	d.delegate.NotifySystemEvent(n.eventType, n.message)
}

// Name implements lifecycle.Service
func (d *Dispatcher) Name() string {
	return "notification-dispatcher"
}

// Start delivers queued notifications until ctx is cancelled, then drains
// whatever is still queued.
func (d *Dispatcher) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan struct{})

	d.mu.Lock()
	d.cancel = cancel
	d.done = done
	d.mu.Unlock()

	defer close(done)

	for {
		select {
		case <-ctx.Done():
			d.drain()
			return nil
		case n := <-d.queue:
			d.deliver(n)
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case n := <-d.queue:
			d.deliver(n)
		default:
			return
		}
	}
}

// Stop cancels the worker and waits for the queue to drain
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.mu.Unlock()

	if cancel == nil {
		d.drain()
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

// Health is always nil; delivery failures are logged by the delegate
func (d *Dispatcher) Health() error {
	return nil
}
