// healthwatch
//
// Polls the backend's system health endpoint, derives threshold alerts from
// every snapshot and serves them to the admin console.

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/m1ndvortex/multi-tenant-sub006/internal/alerts"
	"github.com/m1ndvortex/multi-tenant-sub006/internal/backend"
	"github.com/m1ndvortex/multi-tenant-sub006/internal/common/auth"
	"github.com/m1ndvortex/multi-tenant-sub006/internal/common/health"
	"github.com/m1ndvortex/multi-tenant-sub006/internal/common/leader"
	"github.com/m1ndvortex/multi-tenant-sub006/internal/common/lifecycle"
	"github.com/m1ndvortex/multi-tenant-sub006/internal/common/metrics"
	"github.com/m1ndvortex/multi-tenant-sub006/internal/config"
	"github.com/m1ndvortex/multi-tenant-sub006/internal/notification"
	"github.com/m1ndvortex/multi-tenant-sub006/internal/snapshot"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	writeConfig := flag.String("write-config", "", "Write an example config file to this path and exit")
	flag.Parse()

	if *writeConfig != "" {
		if err := config.WriteExampleConfig(*writeConfig); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	setupLogging()

	slog.Info("Starting healthwatch",
		"version", version,
		"build_time", buildTime)

	if err := run(context.Background()); err != nil {
		slog.Error("healthwatch failed", "error", err)
		os.Exit(1)
	}

	slog.Info("healthwatch stopped")
}

// run wires every component and blocks until shutdown
func run(ctx context.Context) error {
	// ========================================
	// 1. CONFIGURATION AND SECRETS
	// ========================================
	app, cleanup, err := lifecycle.Initialize(ctx)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer cleanup()
	cfg := app.Config

	// ========================================
	// 2. COMPONENT WIRING
	// ========================================
	verifier, err := setupAPIAuth(cfg)
	if err != nil {
		return err
	}

	backendClient := backend.NewClient(backendConfig(cfg))
	poller := snapshot.NewPoller(backendClient, pollerConfig(cfg))

	notifier, notificationWorker := setupNotifications(cfg)

	elector, err := setupLeader(cfg)
	if err != nil {
		return fmt.Errorf("leader election: %w", err)
	}
	if elector != nil {
		app.AddCleanup(elector.Close)
		notifier = notification.NewLeaderGated(notifier, elector)
		elector.OnChange(leadershipEvents(notifier, elector.InstanceID()))
	}

	monitor, err := setupMonitor(cfg, notifier)
	if err != nil {
		return fmt.Errorf("alert monitor: %w", err)
	}
	monitor.Attach(poller)
	defer monitor.Detach()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	httpService := lifecycle.NewHTTPService("http-server", httpServer)

	// ========================================
	// 3. SERVICES AND HEALTH
	// ========================================
	services := []lifecycle.Service{httpService, poller}
	if notificationWorker != nil {
		services = append(services, notificationWorker)
	}
	if elector != nil {
		services = append(services, elector)
	}
	supervisor := lifecycle.NewSupervisor(services...)

	healthChecker := health.NewChecker()
	healthChecker.AddLivenessCheck(health.ComponentCheck(httpService))
	healthChecker.AddReadinessCheck(health.ComponentCheck(supervisor))
	healthChecker.AddReadinessCheck(health.CircuitBreakerCheck("Backend", backendClient.CircuitState))
	healthChecker.AddReadinessCheck(health.AlertsCheck(func() (bool, int, int) {
		s := monitor.Store().Summary()
		return monitor.Store().Enabled(), s.Critical, s.Warning
	}))

	httpServer.Handler = setupHTTPRouter(cfg, healthChecker, alerts.NewHandler(monitor, poller), verifier)

	notifier.NotifySystemEvent("STARTUP", fmt.Sprintf("healthwatch %s started, instance %s", version, monitor.InstanceID()))

	slog.Info("healthwatch ready",
		"port", cfg.HTTP.Port,
		"pollInterval", cfg.Poll.Interval,
		"alertsEnabled", cfg.Alerts.Enabled,
		"apiAuth", verifier != nil,
		"instanceId", monitor.InstanceID())

	// ========================================
	// 4. RUN UNTIL SHUTDOWN
	// ========================================
	return lifecycle.Run(ctx, supervisor)
}

// setupLogging configures the slog default logger.
func setupLogging() {
	logLevel := slog.LevelInfo
	if os.Getenv("HEALTHWATCH_DEV") == "true" {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

func backendConfig(cfg *config.Config) *backend.Config {
	bc := backend.DefaultConfig()
	bc.BaseURL = cfg.Backend.BaseURL
	bc.HealthPath = cfg.Backend.HealthPath
	bc.RefreshPath = cfg.Backend.RefreshPath
	bc.AccessToken = cfg.Backend.AccessToken
	bc.RefreshToken = cfg.Backend.RefreshToken
	bc.Timeout = cfg.Backend.Timeout
	bc.TokenRefreshSkew = cfg.Backend.TokenRefreshSkew
	bc.CircuitBreakerEnabled = cfg.Backend.CircuitBreaker
	return bc
}

func pollerConfig(cfg *config.Config) snapshot.PollerConfig {
	return snapshot.PollerConfig{
		Interval:               cfg.Poll.Interval,
		FetchTimeout:           cfg.Poll.FetchTimeout,
		RefreshEvery:           cfg.Poll.RefreshEvery,
		RefreshBurst:           cfg.Poll.RefreshBurst,
		MaxConsecutiveFailures: cfg.Poll.MaxConsecutiveFailures,
	}
}

// setupMonitor builds the alert store and deriver from the alerts config.
func setupMonitor(cfg *config.Config, notifier alerts.Notifier) (*alerts.Monitor, error) {
	thresholds, err := cfg.Alerts.ThresholdTable()
	if err != nil {
		return nil, err
	}
	catalog, err := alerts.CatalogFor(cfg.Alerts.Locale)
	if err != nil {
		return nil, err
	}
	newID, err := alerts.IdentityFor(cfg.Alerts.Identity)
	if err != nil {
		return nil, err
	}

	store := alerts.NewStore(alerts.StoreConfig{
		Retention: cfg.Alerts.Retention,
		MaxAlerts: cfg.Alerts.MaxAlerts,
		Disabled:  !cfg.Alerts.Enabled,
	})
	return alerts.NewMonitor(store, alerts.NewDeriver(thresholds, catalog, newID), notifier), nil
}

// setupNotifications returns the notifier for new alerts and the worker
// that delivers them off the poll path: the batcher when batching is on,
// otherwise a queueing dispatcher. The worker is nil when no channel is
// enabled.
func setupNotifications(cfg *config.Config) (notification.Service, lifecycle.Service) {
	n := cfg.Notifications

	var delegates []notification.Service
	if n.Teams.Enabled {
		delegates = append(delegates, notification.NewTeamsService(&notification.TeamsConfig{
			WebhookURL: n.Teams.WebhookURL,
			Enabled:    true,
		}))
	}
	if n.Email.Enabled {
		delegates = append(delegates, notification.NewEmailService(&notification.EmailConfig{
			SMTPHost:    n.Email.SMTPHost,
			SMTPPort:    n.Email.SMTPPort,
			Username:    n.Email.Username,
			Password:    n.Email.Password,
			FromAddress: n.Email.From,
			ToAddress:   n.Email.To,
			Enabled:     true,
		}))
	}

	if len(delegates) == 0 {
		return notification.NewNoOpService(), nil
	}

	if n.Batching.Enabled {
		// Validated by config.Load
		minSeverity, _ := alerts.ParseSeverity(n.Batching.MinSeverity)
		batcher := notification.NewBatchingService(delegates, &notification.BatchingConfig{
			MinSeverity: minSeverity,
			BatchWindow: n.Batching.Window,
		})
		return batcher, batcher
	}

	dispatcher := notification.NewDispatcher(notification.Multi(delegates), notification.DefaultQueueSize)
	return dispatcher, dispatcher
}

// leadershipEvents reports leadership changes as system events
func leadershipEvents(notifier notification.Service, instanceID string) func(bool) {
	return func(primary bool) {
		state := "lost"
		if primary {
			state = "acquired"
		}
		notifier.NotifySystemEvent("LEADERSHIP_CHANGED",
			fmt.Sprintf("Instance %s %s notification leadership", instanceID, state))
	}
}

// setupAPIAuth returns the bearer token verifier for the alerts API, or nil
// when authentication is disabled.
func setupAPIAuth(cfg *config.Config) (*auth.Verifier, error) {
	if !cfg.Auth.Enabled {
		slog.Warn("API authentication disabled; /api/system-health is open to anyone who can reach the port")
		return nil, nil
	}

	verifier, err := auth.NewVerifier(auth.Config{
		Secret:       cfg.Auth.JWTSecret,
		Issuer:       cfg.Auth.Issuer,
		Audience:     cfg.Auth.Audience,
		RequireClaim: cfg.Auth.RequireClaim,
	})
	if err != nil {
		return nil, fmt.Errorf("api auth: %w (set AUTH_JWT_SECRET or disable with AUTH_ENABLED=false)", err)
	}
	return verifier, nil
}

// setupLeader returns the Redis elector gating notifications, or nil when
// every instance should notify.
func setupLeader(cfg *config.Config) (*leader.Elector, error) {
	l := cfg.Leader
	if !l.Enabled {
		return nil, nil
	}

	opts, err := redis.ParseURL(l.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	return leader.NewElector(client, leader.Config{
		InstanceID:      l.InstanceID,
		LockName:        l.LockName,
		TTL:             l.TTL,
		RefreshInterval: l.RefreshInterval,
	}), nil
}

// setupHTTPRouter creates the HTTP router with health, metrics and alert endpoints.
// verifier may be nil, which leaves the API unauthenticated.
func setupHTTPRouter(cfg *config.Config, healthChecker *health.Checker, alertsHandler *alerts.Handler, verifier *auth.Verifier) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.HTTPMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.HTTP.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints
	r.Get("/q/health", healthChecker.HandleHealth)
	r.Get("/q/health/live", healthChecker.HandleLive)
	r.Get("/q/health/ready", healthChecker.HandleReady)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/q/metrics", promhttp.Handler())

	r.Route("/api/system-health", func(r chi.Router) {
		if verifier != nil {
			r.Use(verifier.Require)
		}
		alertsHandler.RegisterRoutes(r)
	})

	return r
}
