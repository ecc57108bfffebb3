package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/m1ndvortex/multi-tenant-sub006/internal/alerts"
	"github.com/m1ndvortex/multi-tenant-sub006/internal/common/secrets"
	"github.com/m1ndvortex/multi-tenant-sub006/internal/snapshot"
)

// Config holds all configuration for healthwatch
type Config struct {
	HTTP HTTPConfig `toml:"http"`

	// Auth protects the alerts API with bearer JWTs
	Auth AuthConfig `toml:"auth"`

	// Backend is the REST API that serves health snapshots
	Backend BackendConfig `toml:"backend"`

	Poll PollConfig `toml:"poll"`

	Alerts AlertsConfig `toml:"alerts"`

	Notifications NotificationsConfig `toml:"notifications"`

	// Leader gates notifications to one replica
	Leader LeaderConfig `toml:"leader"`

	Secrets secrets.Config `toml:"secrets"`

	// Development mode
	DevMode bool `toml:"dev_mode"`
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// AuthConfig holds API authentication configuration. The JWT secret, when
// left empty, is looked up in the secrets provider under JWTSecretSecret.
type AuthConfig struct {
	Enabled         bool   `toml:"enabled"`
	JWTSecret       string `toml:"jwt_secret"`
	JWTSecretSecret string `toml:"jwt_secret_secret"`
	Issuer          string `toml:"issuer"`
	Audience        string `toml:"audience"`
	RequireClaim    string `toml:"require_claim"`
}

// BackendConfig holds backend API configuration. Tokens left empty are
// looked up in the secrets provider under the *Secret keys.
type BackendConfig struct {
	BaseURL     string `toml:"base_url"`
	HealthPath  string `toml:"health_path"`
	RefreshPath string `toml:"refresh_path"`

	AccessToken        string `toml:"access_token"`
	RefreshToken       string `toml:"refresh_token"`
	AccessTokenSecret  string `toml:"access_token_secret"`
	RefreshTokenSecret string `toml:"refresh_token_secret"`

	Timeout          time.Duration `toml:"timeout"`
	TokenRefreshSkew time.Duration `toml:"token_refresh_skew"`
	CircuitBreaker   bool          `toml:"circuit_breaker"`
}

// PollConfig holds snapshot polling configuration
type PollConfig struct {
	Interval               time.Duration `toml:"interval"`
	FetchTimeout           time.Duration `toml:"fetch_timeout"`
	RefreshEvery           time.Duration `toml:"refresh_every"`
	RefreshBurst           int           `toml:"refresh_burst"`
	MaxConsecutiveFailures int           `toml:"max_consecutive_failures"`
}

// AlertsConfig holds alert derivation and store configuration
type AlertsConfig struct {
	Enabled   bool          `toml:"enabled"`
	Locale    string        `toml:"locale"`
	Retention time.Duration `toml:"retention"`
	MaxAlerts int           `toml:"max_alerts"`

	// Identity is "timestamp" (a new alert per sighting) or "condition"
	// (one alert per metric and severity)
	Identity string `toml:"identity"`

	// Thresholds overrides individual bounds of the built-in table
	Thresholds map[string]ThresholdOverride `toml:"thresholds"`
}

// ThresholdOverride replaces whichever bounds are set
type ThresholdOverride struct {
	Warning  *float64 `toml:"warning"`
	Critical *float64 `toml:"critical"`
}

// NotificationsConfig holds alert notification configuration
type NotificationsConfig struct {
	Teams    TeamsConfig    `toml:"teams"`
	Email    EmailConfig    `toml:"email"`
	Batching BatchingConfig `toml:"batching"`
}

// TeamsConfig holds Microsoft Teams webhook configuration
type TeamsConfig struct {
	Enabled          bool   `toml:"enabled"`
	WebhookURL       string `toml:"webhook_url"`
	WebhookURLSecret string `toml:"webhook_url_secret"`
}

// EmailConfig holds SMTP configuration
type EmailConfig struct {
	Enabled        bool   `toml:"enabled"`
	SMTPHost       string `toml:"smtp_host"`
	SMTPPort       int    `toml:"smtp_port"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	PasswordSecret string `toml:"password_secret"`
	From           string `toml:"from"`
	To             string `toml:"to"`
}

// BatchingConfig holds notification batching configuration
type BatchingConfig struct {
	Enabled     bool          `toml:"enabled"`
	MinSeverity string        `toml:"min_severity"`
	Window      time.Duration `toml:"window"`
}

// LeaderConfig holds Redis leader election configuration. When disabled
// every instance sends notifications.
type LeaderConfig struct {
	Enabled         bool          `toml:"enabled"`
	RedisURL        string        `toml:"redis_url"`
	RedisURLSecret  string        `toml:"redis_url_secret"`
	LockName        string        `toml:"lock_name"`
	InstanceID      string        `toml:"instance_id"`
	TTL             time.Duration `toml:"ttl"`
	RefreshInterval time.Duration `toml:"refresh_interval"`
}

// Defaults returns the built-in configuration
func Defaults() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Auth: AuthConfig{
			Enabled:         true,
			JWTSecretSecret: "api-jwt-secret",
		},
		Backend: BackendConfig{
			BaseURL:            "http://localhost:8000",
			HealthPath:         "/api/system/health/",
			RefreshPath:        "/api/auth/token/refresh/",
			AccessTokenSecret:  "backend-access-token",
			RefreshTokenSecret: "backend-refresh-token",
			Timeout:            10 * time.Second,
			TokenRefreshSkew:   30 * time.Second,
			CircuitBreaker:     true,
		},
		Poll: PollConfig{
			Interval:               30 * time.Second,
			FetchTimeout:           10 * time.Second,
			RefreshEvery:           5 * time.Second,
			RefreshBurst:           1,
			MaxConsecutiveFailures: 3,
		},
		Alerts: AlertsConfig{
			Enabled:   true,
			Locale:    alerts.LocaleEnglish,
			Retention: alerts.DefaultRetention,
			MaxAlerts: alerts.DefaultMaxAlerts,
			Identity:  alerts.IdentityTimestamp,
		},
		Notifications: NotificationsConfig{
			Teams: TeamsConfig{
				WebhookURLSecret: "teams-webhook-url",
			},
			Email: EmailConfig{
				SMTPPort:       587,
				PasswordSecret: "smtp-password",
				From:           "healthwatch@localhost",
			},
			Batching: BatchingConfig{
				MinSeverity: string(alerts.SeverityWarning),
				Window:      5 * time.Minute,
			},
		},
		Leader: LeaderConfig{
			RedisURLSecret:  "redis-url",
			LockName:        "healthwatch:notifications:leader",
			InstanceID:      os.Getenv("HOSTNAME"),
			TTL:             30 * time.Second,
			RefreshInterval: 10 * time.Second,
		},
		Secrets: *secrets.DefaultConfig(),
	}
}

// applyEnv overrides cfg with any environment variables that are set
func applyEnv(cfg *Config) {
	cfg.HTTP.Port = getEnvInt("HTTP_PORT", cfg.HTTP.Port)
	cfg.HTTP.CORSOrigins = getEnvSlice("CORS_ORIGINS", cfg.HTTP.CORSOrigins)

	au := &cfg.Auth
	au.Enabled = getEnvBool("AUTH_ENABLED", au.Enabled)
	au.JWTSecret = getEnv("AUTH_JWT_SECRET", au.JWTSecret)
	au.Issuer = getEnv("AUTH_ISSUER", au.Issuer)
	au.Audience = getEnv("AUTH_AUDIENCE", au.Audience)
	au.RequireClaim = getEnv("AUTH_REQUIRE_CLAIM", au.RequireClaim)

	b := &cfg.Backend
	b.BaseURL = getEnv("BACKEND_BASE_URL", b.BaseURL)
	b.HealthPath = getEnv("BACKEND_HEALTH_PATH", b.HealthPath)
	b.RefreshPath = getEnv("BACKEND_REFRESH_PATH", b.RefreshPath)
	b.AccessToken = getEnv("BACKEND_ACCESS_TOKEN", b.AccessToken)
	b.RefreshToken = getEnv("BACKEND_REFRESH_TOKEN", b.RefreshToken)
	b.Timeout = getEnvDuration("BACKEND_TIMEOUT", b.Timeout)
	b.TokenRefreshSkew = getEnvDuration("BACKEND_TOKEN_REFRESH_SKEW", b.TokenRefreshSkew)
	b.CircuitBreaker = getEnvBool("BACKEND_CIRCUIT_BREAKER", b.CircuitBreaker)

	p := &cfg.Poll
	p.Interval = getEnvDuration("POLL_INTERVAL", p.Interval)
	p.FetchTimeout = getEnvDuration("POLL_FETCH_TIMEOUT", p.FetchTimeout)
	p.RefreshEvery = getEnvDuration("POLL_REFRESH_EVERY", p.RefreshEvery)
	p.RefreshBurst = getEnvInt("POLL_REFRESH_BURST", p.RefreshBurst)
	p.MaxConsecutiveFailures = getEnvInt("POLL_MAX_CONSECUTIVE_FAILURES", p.MaxConsecutiveFailures)

	a := &cfg.Alerts
	a.Enabled = getEnvBool("ALERTS_ENABLED", a.Enabled)
	a.Locale = getEnv("ALERTS_LOCALE", a.Locale)
	a.Retention = getEnvDuration("ALERTS_RETENTION", a.Retention)
	a.MaxAlerts = getEnvInt("ALERTS_MAX", a.MaxAlerts)
	a.Identity = getEnv("ALERTS_IDENTITY", a.Identity)

	// ALERTS_THRESHOLD_<METRIC>_<WARNING|CRITICAL>
	for _, m := range snapshot.AllMetrics {
		prefix := "ALERTS_THRESHOLD_" + strings.ToUpper(string(m))
		override := a.Thresholds[string(m)]
		changed := false
		if v, ok := lookupEnvFloat(prefix + "_WARNING"); ok {
			override.Warning = &v
			changed = true
		}
		if v, ok := lookupEnvFloat(prefix + "_CRITICAL"); ok {
			override.Critical = &v
			changed = true
		}
		if changed {
			if a.Thresholds == nil {
				a.Thresholds = make(map[string]ThresholdOverride)
			}
			a.Thresholds[string(m)] = override
		}
	}

	n := &cfg.Notifications
	n.Teams.Enabled = getEnvBool("TEAMS_ENABLED", n.Teams.Enabled)
	n.Teams.WebhookURL = getEnv("TEAMS_WEBHOOK_URL", n.Teams.WebhookURL)
	n.Email.Enabled = getEnvBool("EMAIL_ENABLED", n.Email.Enabled)
	n.Email.SMTPHost = getEnv("SMTP_HOST", n.Email.SMTPHost)
	n.Email.SMTPPort = getEnvInt("SMTP_PORT", n.Email.SMTPPort)
	n.Email.Username = getEnv("SMTP_USERNAME", n.Email.Username)
	n.Email.Password = getEnv("SMTP_PASSWORD", n.Email.Password)
	n.Email.From = getEnv("EMAIL_FROM", n.Email.From)
	n.Email.To = getEnv("EMAIL_TO", n.Email.To)
	n.Batching.Enabled = getEnvBool("NOTIFICATION_BATCHING_ENABLED", n.Batching.Enabled)
	n.Batching.MinSeverity = getEnv("NOTIFICATION_MIN_SEVERITY", n.Batching.MinSeverity)
	n.Batching.Window = getEnvDuration("NOTIFICATION_BATCH_WINDOW", n.Batching.Window)

	l := &cfg.Leader
	l.Enabled = getEnvBool("LEADER_ELECTION_ENABLED", l.Enabled)
	l.RedisURL = getEnv("REDIS_URL", l.RedisURL)
	l.InstanceID = getEnv("LEADER_INSTANCE_ID", l.InstanceID)
	l.TTL = getEnvDuration("LEADER_TTL", l.TTL)
	l.RefreshInterval = getEnvDuration("LEADER_REFRESH_INTERVAL", l.RefreshInterval)

	secrets.ApplyEnv(&cfg.Secrets)

	cfg.DevMode = getEnvBool("HEALTHWATCH_DEV", cfg.DevMode)
}

// Validate reports every invalid setting
func (c *Config) Validate() error {
	var errs []error

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port %d out of range", c.HTTP.Port))
	}
	if c.Backend.BaseURL == "" {
		errs = append(errs, errors.New("backend.base_url is required"))
	}
	if c.Poll.Interval <= 0 {
		errs = append(errs, errors.New("poll.interval must be positive"))
	}
	if c.Poll.RefreshBurst < 1 {
		errs = append(errs, errors.New("poll.refresh_burst must be at least 1"))
	}
	if _, err := alerts.IdentityFor(c.Alerts.Identity); err != nil {
		errs = append(errs, fmt.Errorf("alerts.identity: %w", err))
	}
	if _, err := alerts.CatalogFor(c.Alerts.Locale); err != nil {
		errs = append(errs, fmt.Errorf("alerts.locale: %w", err))
	}
	if _, err := c.Alerts.ThresholdTable(); err != nil {
		errs = append(errs, fmt.Errorf("alerts.thresholds: %w", err))
	}
	if _, err := alerts.ParseSeverity(c.Notifications.Batching.MinSeverity); err != nil {
		errs = append(errs, fmt.Errorf("notifications.batching.min_severity: %w", err))
	}
	if c.Notifications.Email.Enabled && (c.Notifications.Email.SMTPHost == "" || c.Notifications.Email.To == "") {
		errs = append(errs, errors.New("notifications.email requires smtp_host and to"))
	}

	if c.Leader.Enabled && c.Leader.RefreshInterval >= c.Leader.TTL {
		errs = append(errs, errors.New("leader.refresh_interval must be shorter than leader.ttl"))
	}

	return errors.Join(errs...)
}

// ThresholdTable applies the overrides to the built-in threshold table
func (a AlertsConfig) ThresholdTable() (alerts.Thresholds, error) {
	table := alerts.DefaultThresholds()
	overrides := make(map[snapshot.Metric]alerts.ThresholdSpec, len(a.Thresholds))

	for name, o := range a.Thresholds {
		m := snapshot.Metric(name)
		spec := table[m]
		if o.Warning != nil {
			spec.Warning = *o.Warning
		}
		if o.Critical != nil {
			spec.Critical = *o.Critical
		}
		overrides[m] = spec
	}

	table = table.WithOverrides(overrides)
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, ok := os.LookupEnv(key); ok {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

func lookupEnvFloat(key string) (float64, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
