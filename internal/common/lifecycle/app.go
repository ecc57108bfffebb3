package lifecycle

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/m1ndvortex/multi-tenant-sub006/internal/common/secrets"
	"github.com/m1ndvortex/multi-tenant-sub006/internal/config"
)

// App holds configuration with every credential resolved. If you have an
// *App, the secrets provider was reachable and the config is valid.
//
// Application logic should NOT go here.
type App struct {
	Config  *config.Config
	Secrets secrets.Provider

	cleanupFuncs []func() error
}

// Initialize loads configuration, opens the secrets provider and resolves
// credentials that were not set directly.
//
// Usage:
//
//	app, cleanup, err := lifecycle.Initialize(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cleanup()
func Initialize(ctx context.Context) (*App, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	return InitializeWith(ctx, cfg)
}

// InitializeWith is Initialize for an already loaded configuration
func InitializeWith(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	app := &App{Config: cfg}

	provider, err := secrets.NewProvider(ctx, &cfg.Secrets)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create secrets provider: %w", err)
	}
	app.Secrets = provider
	if closer, ok := provider.(io.Closer); ok {
		app.AddCleanup(closer.Close)
	}

	if err := app.resolveSecrets(ctx); err != nil {
		app.Cleanup()
		return nil, nil, err
	}

	slog.Info("Configuration loaded",
		"secretsProvider", provider.Name(),
		"backend", cfg.Backend.BaseURL,
		"devMode", cfg.DevMode)

	return app, app.Cleanup, nil
}

// secretTarget is a config value filled from the provider when left empty
type secretTarget struct {
	value *string
	key   string
}

func (app *App) resolveSecrets(ctx context.Context) error {
	b := &app.Config.Backend
	n := &app.Config.Notifications

	targets := []secretTarget{
		{&b.AccessToken, b.AccessTokenSecret},
		{&b.RefreshToken, b.RefreshTokenSecret},
		{&n.Teams.WebhookURL, n.Teams.WebhookURLSecret},
		{&n.Email.Password, n.Email.PasswordSecret},
	}
	if au := &app.Config.Auth; au.Enabled {
		targets = append(targets, secretTarget{&au.JWTSecret, au.JWTSecretSecret})
	}
	if l := &app.Config.Leader; l.Enabled {
		targets = append(targets, secretTarget{&l.RedisURL, l.RedisURLSecret})
	}

	for _, t := range targets {
		v, err := secrets.Resolve(ctx, app.Secrets, *t.value, t.key)
		if err != nil {
			return err
		}
		*t.value = v
	}
	return nil
}

// AddCleanup registers a cleanup function to be called on shutdown.
// Functions are called in reverse order of registration.
func (app *App) AddCleanup(fn func() error) {
	app.cleanupFuncs = append(app.cleanupFuncs, fn)
}

// Cleanup runs all cleanup functions in reverse order.
func (app *App) Cleanup() {
	for i := len(app.cleanupFuncs) - 1; i >= 0; i-- {
		if err := app.cleanupFuncs[i](); err != nil {
			slog.Error("Cleanup error", "error", err)
		}
	}
	app.cleanupFuncs = nil
}
