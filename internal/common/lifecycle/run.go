package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"
)

// Run runs the supervisor until SIGINT/SIGTERM or until one of its services
// exits. This is the main loop of the healthwatch binary.
//
// Usage:
//
//	supervisor := lifecycle.NewSupervisor(httpService, poller, dispatcher)
//	lifecycle.Run(ctx, supervisor)
func Run(ctx context.Context, supervisor *Supervisor) error {
	// Create cancellable context for shutdown
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Set up signal handler
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	// Run supervisor in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- supervisor.Run(ctx)
	}()

	// Wait for shutdown signal or supervisor error
	select {
	case sig := <-quit:
		slog.Info("Shutdown signal received", "signal", sig)
		cancel()
	case err := <-errCh:
		if err != nil {
			slog.Error("Supervisor error", "error", err)
			return err
		}
	}

	// Wait for supervisor to complete shutdown
	select {
	case err := <-errCh:
		return err
	case <-time.After(35 * time.Second):
		slog.Error("Shutdown timed out")
		return nil
	}
}

// HTTPService wraps an http.Server as a Service.
type HTTPService struct {
	server    *http.Server
	name      string
	listening atomic.Bool
	addr      atomic.Value
}

// NewHTTPService creates a Service from an http.Server.
func NewHTTPService(name string, server *http.Server) *HTTPService {
	return &HTTPService{
		server: server,
		name:   name,
	}
}

func (s *HTTPService) Name() string { return s.name }

// Start binds the listener before serving so a port conflict is returned
// directly, then blocks until ctx is cancelled.
func (s *HTTPService) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.server.Addr, err)
	}
	s.addr.Store(ln.Addr().String())
	s.listening.Store(true)
	slog.Info("Starting HTTP server", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.listening.Store(false)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		return nil
	}
}

func (s *HTTPService) Stop(ctx context.Context) error {
	slog.Info("Stopping HTTP server")
	s.listening.Store(false)
	return s.server.Shutdown(ctx)
}

// Health returns an error unless the server is accepting connections
func (s *HTTPService) Health() error {
	if !s.listening.Load() {
		return errors.New("http server not listening")
	}
	return nil
}

// Addr returns the bound address, or "" before Start
func (s *HTTPService) Addr() string {
	addr, _ := s.addr.Load().(string)
	return addr
}
