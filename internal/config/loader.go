package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ConfigPaths lists the paths to search for config files
var ConfigPaths = []string{
	"healthwatch.toml",
	"config.toml",
	"./config/healthwatch.toml",
	"/etc/healthwatch/config.toml",
}

// LoadFromFile loads the defaults overlaid with a TOML file
func LoadFromFile(path string) (*Config, error) {
	cfg := Defaults()
	if err := decodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load builds the configuration from defaults, then the config file if one
// is found, then environment variables. The result is validated.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := findConfigFile(); path != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns HEALTHWATCH_CONFIG or the first existing standard path
func findConfigFile() string {
	if path := os.Getenv("HEALTHWATCH_CONFIG"); path != "" {
		return path
	}
	for _, path := range ConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// decodeFile decodes path over cfg; keys missing from the file keep their values
func decodeFile(path string, cfg *Config) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown config keys: %v", undecoded)
	}
	return nil
}

// WriteExampleConfig writes an example configuration file
func WriteExampleConfig(path string) error {
	example := `# healthwatch configuration
# Environment variables override these settings

dev_mode = false

[http]
port = 8080
cors_origins = ["http://localhost:3000"]

# Bearer JWTs on /api/system-health, signed by the backend (HS256)
[auth]
enabled = true
jwt_secret = ""
jwt_secret_secret = "api-jwt-secret"
issuer = ""
audience = ""
require_claim = ""  # e.g. "is_superuser"

[backend]
base_url = "http://localhost:8000"
health_path = "/api/system/health/"
refresh_path = "/api/auth/token/refresh/"
# Tokens left empty are read from the secrets provider
access_token = ""
refresh_token = ""
access_token_secret = "backend-access-token"
refresh_token_secret = "backend-refresh-token"
timeout = "10s"
token_refresh_skew = "30s"
circuit_breaker = true

[poll]
interval = "30s"
fetch_timeout = "10s"
refresh_every = "5s"
refresh_burst = 1
max_consecutive_failures = 3

[alerts]
enabled = true
locale = "en"  # en or fa
retention = "24h"
max_alerts = 1000
identity = "timestamp"  # timestamp or condition

# Override individual bounds of the built-in table
[alerts.thresholds.cpu_usage]
warning = 70.0
critical = 90.0

[notifications.teams]
enabled = false
webhook_url = ""
webhook_url_secret = "teams-webhook-url"

[notifications.email]
enabled = false
smtp_host = ""
smtp_port = 587
username = ""
password = ""
password_secret = "smtp-password"
from = "healthwatch@localhost"
to = ""

[notifications.batching]
enabled = false
min_severity = "warning"
window = "5m"

# Only the replica holding the Redis lock sends notifications
[leader]
enabled = false
redis_url = ""
redis_url_secret = "redis-url"
lock_name = "healthwatch:notifications:leader"
instance_id = ""  # defaults to hostname
ttl = "30s"
refresh_interval = "10s"

[secrets]
provider = "env"  # env, aws-sm, vault, gcp-sm
env_prefix = "HEALTHWATCH_SECRET_"

# AWS Secrets Manager
aws_region = ""
aws_prefix = "/healthwatch/"
aws_endpoint = ""

# HashiCorp Vault (KV v2)
vault_addr = ""
vault_mount = "secret"
vault_path = "healthwatch"
vault_namespace = ""

# GCP Secret Manager
gcp_project = ""
gcp_prefix = "healthwatch-"
`

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	return os.WriteFile(path, []byte(example), 0644)
}
