// Package lifecycle runs the long-lived components of healthwatch (HTTP
// server, snapshot poller, notification workers, leader elector) under one
// supervisor that starts them in order and stops them in reverse.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// startupGrace is how long a service may fail before it counts as started
const startupGrace = 100 * time.Millisecond

// errExitedEarly marks a service whose Start returned before shutdown
var errExitedEarly = errors.New("exited before shutdown")

// Service is a component with a blocking Start.
type Service interface {
	// Name returns the service identifier for logging
	Name() string

	// Start runs the service and blocks until ctx is cancelled. Returning
	// earlier, with or without an error, stops the whole supervisor.
	Start(ctx context.Context) error

	// Stop shuts the service down within ctx's deadline
	Stop(ctx context.Context) error

	// Health returns nil if the service is healthy
	Health() error
}

type serviceExit struct {
	service Service
	err     error
}

// Supervisor runs services together. If any of them exits before shutdown
// the others are stopped and Run returns that service's error.
type Supervisor struct {
	services []Service

	mu      sync.RWMutex
	running bool
	exited  map[string]error
}

// NewSupervisor creates a supervisor for the given services.
func NewSupervisor(services ...Service) *Supervisor {
	return &Supervisor{
		services: services,
		exited:   make(map[string]error),
	}
}

// Name implements health.Component
func (s *Supervisor) Name() string { return "Services" }

// Run starts all services in order and blocks until ctx is cancelled or a
// service exits. Services are stopped in reverse order.
func (s *Supervisor) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("supervisor already running")
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	exits := make(chan serviceExit, len(s.services))

	var started []Service
	for _, svc := range s.services {
		slog.Info("Starting service", "service", svc.Name())

		go func(service Service) {
			exits <- serviceExit{service: service, err: service.Start(ctx)}
		}(svc)

		select {
		case exit := <-exits:
			err := s.recordExit(exit)
			// The failed service may be svc itself or one started earlier
			s.stopServices(withoutService(append(started, svc), exit.service))
			return fmt.Errorf("service %s failed to start: %w", exit.service.Name(), err)
		case <-time.After(startupGrace):
		}

		started = append(started, svc)
		slog.Info("Service started", "service", svc.Name())
	}

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received, stopping services")
	case exit := <-exits:
		err := s.recordExit(exit)
		slog.Error("Service stopped unexpectedly, shutting down",
			"service", exit.service.Name(),
			"error", err)
		runErr = fmt.Errorf("service %s stopped: %w", exit.service.Name(), err)
		started = withoutService(started, exit.service)
	}

	cancel()
	s.stopServices(started)
	return runErr
}

func (s *Supervisor) recordExit(exit serviceExit) error {
	err := exit.err
	if err == nil {
		err = errExitedEarly
	}
	s.mu.Lock()
	s.exited[exit.service.Name()] = err
	s.mu.Unlock()
	return err
}

func withoutService(services []Service, drop Service) []Service {
	out := make([]Service, 0, len(services))
	for _, svc := range services {
		if svc != drop {
			out = append(out, svc)
		}
	}
	return out
}

// stopServices stops services in reverse order
func (s *Supervisor) stopServices(services []Service) {
	for i := len(services) - 1; i >= 0; i-- {
		svc := services[i]
		slog.Info("Stopping service", "service", svc.Name())

		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := svc.Stop(stopCtx); err != nil {
			slog.Error("Service stop error", "service", svc.Name(), "error", err)
		} else {
			slog.Info("Service stopped", "service", svc.Name())
		}
		cancel()
	}
}

// Health returns nil only if no service has exited and all report healthy
func (s *Supervisor) Health() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, svc := range s.services {
		if err, ok := s.exited[svc.Name()]; ok {
			return fmt.Errorf("service %s exited: %w", svc.Name(), err)
		}
		if err := svc.Health(); err != nil {
			return fmt.Errorf("service %s unhealthy: %w", svc.Name(), err)
		}
	}
	return nil
}
