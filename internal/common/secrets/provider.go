// Package secrets looks up credentials from a configurable secret store.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	ErrSecretNotFound = errors.New("secret not found")
	ErrProviderError  = errors.New("provider error")
)

// Provider is a read-only secret store
type Provider interface {
	// Get retrieves a secret by key
	Get(ctx context.Context, key string) (string, error)

	// Name returns the provider name for logging
	Name() string
}

// ProviderType represents the type of secret provider
type ProviderType string

const (
	ProviderTypeEnv   ProviderType = "env"
	ProviderTypeAWSSM ProviderType = "aws-sm"
	ProviderTypeVault ProviderType = "vault"
	ProviderTypeGCPSM ProviderType = "gcp-sm"
)

// Config holds configuration for the secrets provider
type Config struct {
	Provider ProviderType `json:"provider" toml:"provider"`

	// Env provider settings
	EnvPrefix string `json:"envPrefix" toml:"env_prefix"`

	// AWS Secrets Manager settings
	AWSRegion    string `json:"awsRegion" toml:"aws_region"`
	AWSPrefix    string `json:"awsPrefix" toml:"aws_prefix"`
	AWSEndpoint  string `json:"awsEndpoint" toml:"aws_endpoint"` // For LocalStack
	AWSAccessKey string `json:"awsAccessKey" toml:"aws_access_key"`
	AWSSecretKey string `json:"awsSecretKey" toml:"aws_secret_key"`

	// HashiCorp Vault settings
	VaultAddr      string `json:"vaultAddr" toml:"vault_addr"`
	VaultToken     string `json:"vaultToken" toml:"vault_token"`
	VaultMount     string `json:"vaultMount" toml:"vault_mount"`
	VaultPath      string `json:"vaultPath" toml:"vault_path"`
	VaultNamespace string `json:"vaultNamespace" toml:"vault_namespace"`

	// GCP Secret Manager settings
	GCPProject string `json:"gcpProject" toml:"gcp_project"`
	GCPPrefix  string `json:"gcpPrefix" toml:"gcp_prefix"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Provider:   ProviderTypeEnv,
		EnvPrefix:  "HEALTHWATCH_SECRET_",
		AWSPrefix:  "/healthwatch/",
		VaultMount: "secret",
		VaultPath:  "healthwatch",
		GCPPrefix:  "healthwatch-",
	}
}

// ApplyEnv overrides cfg from environment variables
func ApplyEnv(cfg *Config) {
	if p := os.Getenv("HEALTHWATCH_SECRETS_PROVIDER"); p != "" {
		cfg.Provider = ProviderType(strings.ToLower(p))
	}
	if p := os.Getenv("HEALTHWATCH_SECRETS_ENV_PREFIX"); p != "" {
		cfg.EnvPrefix = p
	}

	// AWS
	if r := os.Getenv("HEALTHWATCH_SECRETS_AWS_REGION"); r != "" {
		cfg.AWSRegion = r
	} else if r := os.Getenv("AWS_REGION"); r != "" && cfg.AWSRegion == "" {
		cfg.AWSRegion = r
	}
	if p := os.Getenv("HEALTHWATCH_SECRETS_AWS_PREFIX"); p != "" {
		cfg.AWSPrefix = p
	}
	if e := os.Getenv("HEALTHWATCH_SECRETS_AWS_ENDPOINT"); e != "" {
		cfg.AWSEndpoint = e
	}

	// Vault
	if a := os.Getenv("HEALTHWATCH_SECRETS_VAULT_ADDR"); a != "" {
		cfg.VaultAddr = a
	} else if a := os.Getenv("VAULT_ADDR"); a != "" && cfg.VaultAddr == "" {
		cfg.VaultAddr = a
	}
	if t := os.Getenv("HEALTHWATCH_SECRETS_VAULT_TOKEN"); t != "" {
		cfg.VaultToken = t
	} else if t := os.Getenv("VAULT_TOKEN"); t != "" && cfg.VaultToken == "" {
		cfg.VaultToken = t
	}
	if m := os.Getenv("HEALTHWATCH_SECRETS_VAULT_MOUNT"); m != "" {
		cfg.VaultMount = m
	}
	if p := os.Getenv("HEALTHWATCH_SECRETS_VAULT_PATH"); p != "" {
		cfg.VaultPath = p
	}
	if n := os.Getenv("HEALTHWATCH_SECRETS_VAULT_NAMESPACE"); n != "" {
		cfg.VaultNamespace = n
	}

	// GCP
	if p := os.Getenv("HEALTHWATCH_SECRETS_GCP_PROJECT"); p != "" {
		cfg.GCPProject = p
	} else if p := os.Getenv("GOOGLE_CLOUD_PROJECT"); p != "" && cfg.GCPProject == "" {
		cfg.GCPProject = p
	}
	if p := os.Getenv("HEALTHWATCH_SECRETS_GCP_PREFIX"); p != "" {
		cfg.GCPPrefix = p
	}
}

// NewProvider creates the configured secret provider
func NewProvider(ctx context.Context, cfg *Config) (Provider, error) {
	if cfg == nil {
		cfg = DefaultConfig()
		ApplyEnv(cfg)
	}

	switch cfg.Provider {
	case ProviderTypeEnv, "":
		return NewEnvProvider(cfg.EnvPrefix), nil
	case ProviderTypeAWSSM:
		return NewAWSSecretsManagerProvider(ctx, cfg)
	case ProviderTypeVault:
		return NewVaultProvider(cfg)
	case ProviderTypeGCPSM:
		return NewGCPSecretManagerProvider(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Provider)
	}
}

// Resolve returns direct when it is set, otherwise the secret stored under
// key. A missing secret resolves to the empty string.
func Resolve(ctx context.Context, p Provider, direct, key string) (string, error) {
	if direct != "" || p == nil || key == "" {
		return direct, nil
	}

	value, err := p.Get(ctx, key)
	if errors.Is(err, ErrSecretNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve secret %s from %s: %w", key, p.Name(), err)
	}
	return value, nil
}

// EnvProvider reads secrets from environment variables
type EnvProvider struct {
	prefix string
}

// NewEnvProvider creates a new environment variable provider
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{prefix: prefix}
}

// Get reads PREFIX + KEY, with dashes mapped to underscores
func (p *EnvProvider) Get(ctx context.Context, key string) (string, error) {
	envKey := p.prefix + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
	value := os.Getenv(envKey)
	if value == "" {
		return "", ErrSecretNotFound
	}
	return value, nil
}

func (p *EnvProvider) Name() string {
	return "env"
}
