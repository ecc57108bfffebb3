// Package leader elects one primary among replicas with a Redis lock.
package leader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/m1ndvortex/multi-tenant-sub006/internal/common/metrics"
)

// Config holds leader election configuration
type Config struct {
	// InstanceID uniquely identifies this instance (defaults to hostname)
	InstanceID string

	// LockName is the Redis key holding the lock
	LockName string

	// TTL is how long the lock is valid before expiring
	TTL time.Duration

	// RefreshInterval is how often to acquire or extend the lock
	RefreshInterval time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig(lockName string) Config {
	instanceID, _ := os.Hostname()
	if instanceID == "" {
		instanceID = "instance-" + time.Now().Format("20060102150405")
	}

	return Config{
		InstanceID:      instanceID,
		LockName:        lockName,
		TTL:             30 * time.Second,
		RefreshInterval: 10 * time.Second,
	}
}

// Only extend or delete the lock while this instance still owns it
var (
	refreshScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`)
	releaseScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)
)

// Elector holds a SET NX PX lock in Redis while it is primary and extends
// it every refresh interval. It runs as a lifecycle service.
type Elector struct {
	client redis.UniversalClient
	config Config

	isPrimary atomic.Bool
	lastErr   atomic.Pointer[error]

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	onChange func(primary bool)
}

// NewElector creates an elector. Zero TTL or refresh interval take the defaults.
func NewElector(client redis.UniversalClient, config Config) *Elector {
	defaults := DefaultConfig(config.LockName)
	if config.InstanceID == "" {
		config.InstanceID = defaults.InstanceID
	}
	if config.TTL <= 0 {
		config.TTL = defaults.TTL
	}
	if config.RefreshInterval <= 0 {
		config.RefreshInterval = defaults.RefreshInterval
	}
	return &Elector{client: client, config: config}
}

// OnChange sets a callback invoked when leadership is gained or lost
func (e *Elector) OnChange(fn func(primary bool)) {
	e.mu.Lock()
	e.onChange = fn
	e.mu.Unlock()
}

// IsPrimary returns true if this instance currently holds the lock
func (e *Elector) IsPrimary() bool {
	return e.isPrimary.Load()
}

// InstanceID returns the instance ID of this elector
func (e *Elector) InstanceID() string {
	return e.config.InstanceID
}

func (e *Elector) Name() string { return "leader-elector" }

// Start runs the election loop until ctx is cancelled or Stop is called,
// then releases the lock if held.
func (e *Elector) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.mu.Lock()
	if e.cancel != nil {
		e.mu.Unlock()
		return errors.New("elector already running")
	}
	e.cancel = cancel
	e.done = make(chan struct{})
	done := e.done
	e.mu.Unlock()
	defer close(done)

	slog.Info("Leader election started",
		"instanceId", e.config.InstanceID,
		"lockName", e.config.LockName,
		"ttl", e.config.TTL,
		"refreshInterval", e.config.RefreshInterval)

	ticker := time.NewTicker(e.config.RefreshInterval)
	defer ticker.Stop()

	e.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			releaseCtx, releaseCancel := context.WithTimeout(context.Background(), 5*time.Second)
			e.Release(releaseCtx)
			releaseCancel()
			slog.Info("Leader election stopped", "instanceId", e.config.InstanceID)
			return nil
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

// Stop cancels the election loop and waits for the lock to be released
func (e *Elector) Stop(ctx context.Context) error {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

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

// Health returns the last Redis error, if the most recent attempt failed
func (e *Elector) Health() error {
	if p := e.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}

// tick acquires the lock, or extends it when already primary
func (e *Elector) tick(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	wasPrimary := e.isPrimary.Load()

	var held bool
	var err error
	if wasPrimary {
		held, err = e.extend(ctx)
	} else {
		held, err = e.acquire(ctx)
	}

	if err != nil {
		e.lastErr.Store(&err)
		slog.Error("Leader lock operation failed",
			"error", err,
			"lockName", e.config.LockName)
	} else {
		e.lastErr.Store(nil)
	}

	e.setPrimary(held)
}

func (e *Elector) setPrimary(primary bool) {
	if e.isPrimary.Swap(primary) == primary {
		return
	}

	if primary {
		slog.Info("Acquired leadership",
			"instanceId", e.config.InstanceID,
			"lockName", e.config.LockName)
		metrics.LeaderIsPrimary.Set(1)
	} else {
		slog.Warn("Lost leadership",
			"instanceId", e.config.InstanceID,
			"lockName", e.config.LockName)
		metrics.LeaderIsPrimary.Set(0)
	}

	e.mu.Lock()
	onChange := e.onChange
	e.mu.Unlock()
	if onChange != nil {
		onChange(primary)
	}
}

// acquire tries SET NX PX; a lock already owned by this instance (left over
// from a restart with the same id) is extended instead.
func (e *Elector) acquire(ctx context.Context) (bool, error) {
	ok, err := e.client.SetNX(ctx, e.config.LockName, e.config.InstanceID, e.config.TTL).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	if ok {
		return true, nil
	}

	owner, err := e.client.Get(ctx, e.config.LockName).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; retry next tick
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read lock owner: %w", err)
	}

	if owner == e.config.InstanceID {
		return e.extend(ctx)
	}

	slog.Debug("Lock held by another instance",
		"instanceId", e.config.InstanceID,
		"owner", owner)
	return false, nil
}

func (e *Elector) extend(ctx context.Context) (bool, error) {
	n, err := refreshScript.Run(ctx, e.client, []string{e.config.LockName},
		e.config.InstanceID, e.config.TTL.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("extend lock: %w", err)
	}
	return n == 1, nil
}

// Release deletes the lock if this instance owns it
func (e *Elector) Release(ctx context.Context) {
	if !e.isPrimary.Load() {
		return
	}

	n, err := releaseScript.Run(ctx, e.client, []string{e.config.LockName}, e.config.InstanceID).Int()
	if err != nil {
		slog.Error("Failed to release leader lock",
			"error", err,
			"lockName", e.config.LockName)
	} else if n > 0 {
		slog.Info("Released leader lock",
			"instanceId", e.config.InstanceID,
			"lockName", e.config.LockName)
	}

	e.setPrimary(false)
}

// Close closes the Redis client
func (e *Elector) Close() error {
	return e.client.Close()
}
