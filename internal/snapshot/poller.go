package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/m1ndvortex/multi-tenant-sub006/internal/common/metrics"
)

// ErrRefreshThrottled is returned when an on-demand refresh is rate limited
var ErrRefreshThrottled = errors.New("snapshot refresh throttled")

// Fetcher retrieves one health snapshot from wherever it lives
type Fetcher interface {
	FetchHealthSnapshot(ctx context.Context) (*Snapshot, error)
}

// FetcherFunc adapts a function to the Fetcher interface
type FetcherFunc func(ctx context.Context) (*Snapshot, error)

// FetchHealthSnapshot calls f(ctx)
func (f FetcherFunc) FetchHealthSnapshot(ctx context.Context) (*Snapshot, error) {
	return f(ctx)
}

// Observer is invoked with every delivered snapshot
type Observer func(*Snapshot)

// Source delivers snapshots to registered observers
type Source interface {
	// Subscribe registers an observer and returns a function that removes it
	Subscribe(obs Observer) (unsubscribe func())

	// Latest returns the last delivered snapshot, or nil if none yet
	Latest() *Snapshot
}

// PollerConfig holds poller settings
type PollerConfig struct {
	// Interval between scheduled fetches
	Interval time.Duration

	// FetchTimeout bounds a single fetch
	FetchTimeout time.Duration

	// RefreshEvery is the minimum spacing between on-demand refreshes
	RefreshEvery time.Duration

	// RefreshBurst is how many on-demand refreshes may happen back to back
	RefreshBurst int

	// MaxConsecutiveFailures before Health reports the poller as down
	MaxConsecutiveFailures int
}

// DefaultPollerConfig returns sensible defaults
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Interval:               30 * time.Second,
		FetchTimeout:           10 * time.Second,
		RefreshEvery:           5 * time.Second,
		RefreshBurst:           1,
		MaxConsecutiveFailures: 3,
	}
}

// Status describes the poller's recent fetch history
type Status struct {
	Running             bool      `json:"running"`
	LastFetch           time.Time `json:"lastFetch,omitempty"`
	LastSuccess         time.Time `json:"lastSuccess,omitempty"`
	LastError           string    `json:"lastError,omitempty"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
}

type subscription struct {
	id  uint64
	obs Observer
}

// Poller fetches snapshots on a fixed interval and notifies observers
// synchronously, in registration order, with every successful fetch.
// A failed fetch notifies nobody and keeps the previous snapshot.
type Poller struct {
	fetcher Fetcher
	config  PollerConfig
	limiter *rate.Limiter
	now     func() time.Time

	// pollMu serializes fetch+deliver so observers see snapshots in order
	pollMu sync.Mutex

	mu        sync.RWMutex
	observers []subscription
	nextID    uint64
	latest    *Snapshot
	status    Status

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates a poller around a fetcher
func NewPoller(fetcher Fetcher, config PollerConfig) *Poller {
	defaults := DefaultPollerConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = defaults.FetchTimeout
	}
	if config.RefreshEvery <= 0 {
		config.RefreshEvery = defaults.RefreshEvery
	}
	if config.RefreshBurst <= 0 {
		config.RefreshBurst = defaults.RefreshBurst
	}
	if config.MaxConsecutiveFailures <= 0 {
		config.MaxConsecutiveFailures = defaults.MaxConsecutiveFailures
	}

	return &Poller{
		fetcher: fetcher,
		config:  config,
		limiter: rate.NewLimiter(rate.Every(config.RefreshEvery), config.RefreshBurst),
		now:     time.Now,
	}
}

// Subscribe registers an observer
func (p *Poller) Subscribe(obs Observer) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextID++
	id := p.nextID
	p.observers = append(p.observers, subscription{id: id, obs: obs})

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			for i, s := range p.observers {
				if s.id == id {
					p.observers = append(p.observers[:i:i], p.observers[i+1:]...)
					return
				}
			}
		})
	}
}

// Latest returns the last delivered snapshot
func (p *Poller) Latest() *Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest
}

// Status returns a copy of the poller's fetch status
func (p *Poller) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// Poll fetches one snapshot and delivers it to observers
func (p *Poller) Poll(ctx context.Context) (*Snapshot, error) {
	return p.poll(ctx, "interval")
}

// Refresh performs an on-demand poll, subject to the refresh rate limit
func (p *Poller) Refresh(ctx context.Context) (*Snapshot, error) {
	if !p.limiter.Allow() {
		metrics.SnapshotPolls.WithLabelValues("refresh", "throttled").Inc()
		return nil, ErrRefreshThrottled
	}
	return p.poll(ctx, "refresh")
}

func (p *Poller) poll(ctx context.Context, trigger string) (*Snapshot, error) {
	p.pollMu.Lock()
	defer p.pollMu.Unlock()

	fetchCtx, cancel := context.WithTimeout(ctx, p.config.FetchTimeout)
	defer cancel()

	start := time.Now()
	snap, err := p.fetcher.FetchHealthSnapshot(fetchCtx)
	metrics.SnapshotPollDuration.Observe(time.Since(start).Seconds())

	now := p.now()
	if err == nil && snap == nil {
		err = errors.New("fetcher returned no snapshot")
	}
	if err != nil {
		metrics.SnapshotPolls.WithLabelValues(trigger, "failed").Inc()

		p.mu.Lock()
		p.status.LastFetch = now
		p.status.LastError = err.Error()
		p.status.ConsecutiveFailures++
		failures := p.status.ConsecutiveFailures
		p.mu.Unlock()

		slog.Warn("Snapshot fetch failed", "trigger", trigger, "consecutiveFailures", failures, "error", err)
		return nil, fmt.Errorf("fetch health snapshot: %w", err)
	}

	metrics.SnapshotPolls.WithLabelValues(trigger, "success").Inc()
	metrics.SnapshotLastSuccess.Set(float64(now.Unix()))

	if snap.ReceivedAt.IsZero() {
		snap.ReceivedAt = now
	}
	for m, v := range snap.Values() {
		metrics.SnapshotMetricValue.WithLabelValues(string(m)).Set(v)
	}

	p.mu.Lock()
	p.latest = snap
	p.status.LastFetch = now
	p.status.LastSuccess = now
	p.status.LastError = ""
	p.status.ConsecutiveFailures = 0
	observers := make([]Observer, len(p.observers))
	for i, s := range p.observers {
		observers[i] = s.obs
	}
	p.mu.Unlock()

	slog.Debug("Snapshot delivered", "trigger", trigger, "observers", len(observers))

	for _, obs := range observers {
		obs(snap)
	}

	return snap, nil
}

// Name implements lifecycle.Service
func (p *Poller) Name() string {
	return "snapshot-poller"
}

// Start polls immediately and then on every interval until ctx is cancelled
// or Stop is called.
func (p *Poller) Start(ctx context.Context) error {
	p.runMu.Lock()
	if p.done != nil {
		p.runMu.Unlock()
		return errors.New("poller already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	p.runMu.Unlock()

	p.setRunning(true)
	defer func() {
		p.setRunning(false)
		p.runMu.Lock()
		p.cancel = nil
		p.done = nil
		p.runMu.Unlock()
		close(done)
	}()

	slog.Info("Snapshot poller started", "interval", p.config.Interval)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	// Do an initial poll immediately
	_, _ = p.poll(ctx, "interval")

	for {
		select {
		case <-ctx.Done():
			slog.Info("Snapshot poller stopped")
			return nil
		case <-ticker.C:
			_, _ = p.poll(ctx, "interval")
		}
	}
}

// Stop cancels the polling loop and waits for it to exit
func (p *Poller) Stop(ctx context.Context) error {
	p.runMu.Lock()
	cancel, done := p.cancel, p.done
	p.runMu.Unlock()

	if cancel == nil {
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

// Health reports an error after repeated fetch failures, or when no fetch
// has succeeded within three intervals of the last attempt.
func (p *Poller) Health() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.status.ConsecutiveFailures >= p.config.MaxConsecutiveFailures {
		return fmt.Errorf("%d consecutive snapshot fetch failures: %s",
			p.status.ConsecutiveFailures, p.status.LastError)
	}
	if !p.status.LastSuccess.IsZero() && p.now().Sub(p.status.LastSuccess) > 3*p.config.Interval {
		return fmt.Errorf("no successful snapshot fetch since %s", p.status.LastSuccess.Format(time.RFC3339))
	}
	return nil
}

func (p *Poller) setRunning(running bool) {
	p.mu.Lock()
	p.status.Running = running
	p.mu.Unlock()
}
