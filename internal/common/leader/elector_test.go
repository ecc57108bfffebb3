package leader

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// unreachableClient fails every command without waiting on retries
func unreachableClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestNewElector_Defaults(t *testing.T) {
	e := NewElector(unreachableClient(t), Config{LockName: "hw:test"})

	if e.InstanceID() == "" {
		t.Error("Instance ID should default to the hostname")
	}
	if e.config.TTL != 30*time.Second || e.config.RefreshInterval != 10*time.Second {
		t.Errorf("Expected 30s/10s defaults, got %v/%v", e.config.TTL, e.config.RefreshInterval)
	}
	if e.Name() != "leader-elector" {
		t.Errorf("Unexpected name %s", e.Name())
	}
	if e.IsPrimary() {
		t.Error("New elector should not be primary")
	}
}

func TestElector_RedisUnavailable(t *testing.T) {
	e := NewElector(unreachableClient(t), Config{
		InstanceID:      "replica-a",
		LockName:        "hw:test",
		TTL:             time.Second,
		RefreshInterval: 50 * time.Millisecond,
	})

	var changes []bool
	e.OnChange(func(primary bool) { changes = append(changes, primary) })

	e.tick(context.Background())

	if e.IsPrimary() {
		t.Error("Elector should not become primary without Redis")
	}
	if e.Health() == nil {
		t.Error("Health should report the Redis error")
	}
	if len(changes) != 0 {
		t.Errorf("No leadership change expected, got %v", changes)
	}
}

func TestElector_LosesLeadershipOnRedisError(t *testing.T) {
	e := NewElector(unreachableClient(t), Config{InstanceID: "replica-a", LockName: "hw:test"})

	var changes []bool
	e.OnChange(func(primary bool) { changes = append(changes, primary) })

	e.setPrimary(true)
	e.tick(context.Background())

	if e.IsPrimary() {
		t.Error("Failed extend should drop leadership")
	}
	if len(changes) != 2 || !changes[0] || changes[1] {
		t.Errorf("Expected [true false], got %v", changes)
	}
}

func TestElector_StartStop(t *testing.T) {
	e := NewElector(unreachableClient(t), Config{
		InstanceID:      "replica-a",
		LockName:        "hw:test",
		TTL:             time.Second,
		RefreshInterval: 20 * time.Millisecond,
	})

	done := make(chan error, 1)
	go func() { done <- e.Start(context.Background()) }()

	time.Sleep(100 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

func TestElector_StopBeforeStart(t *testing.T) {
	e := NewElector(unreachableClient(t), Config{LockName: "hw:test"})
	if err := e.Stop(context.Background()); err != nil {
		t.Errorf("Stop before Start should be a no-op, got %v", err)
	}
}
