// Package credentials provides the bearer token sent to the deploy worker
// with every submission.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	// ErrEmptyToken is returned when a provider resolves to an empty token.
	ErrEmptyToken = errors.New("credentials: empty token")
	// ErrUnsupported is returned for an unknown provider name.
	ErrUnsupported = errors.New("credentials: unsupported provider")
)

// Provider resolves an opaque bearer token.
type Provider interface {
	Token(ctx context.Context) (string, error)
}

// Config selects and configures a credential provider.
type Config struct {
	Provider     string   `mapstructure:"provider"`
	Token        string   `mapstructure:"token"`
	Env          string   `mapstructure:"env"`
	File         string   `mapstructure:"file"`
	SecretID     string   `mapstructure:"secret_id"`
	Region       string   `mapstructure:"region"`
	Project      string   `mapstructure:"project"`
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	TokenURL     string   `mapstructure:"token_url"`
	Scopes       []string `mapstructure:"scopes"`
}

// DefaultEnv is the environment variable read by the env provider when none
// is configured.
const DefaultEnv = "LAUNCHDECK_TOKEN"

// New creates the provider selected by cfg.Provider.
func New(ctx context.Context, cfg Config) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "env":
		if cfg.Provider == "" && cfg.Token != "" {
			return Static(cfg.Token), nil
		}
		return Env(cfg.Env), nil
	case "static":
		return Static(cfg.Token), nil
	case "file":
		return File(cfg.File), nil
	case "aws", "aws-secrets-manager":
		return NewAWSSecretsManager(ctx, cfg.Region, cfg.SecretID)
	case "gcp", "gcp-secret-manager":
		return NewGCPSecretManager(ctx, cfg.Project, cfg.SecretID)
	case "oauth2":
		return NewOAuth2(cfg.ClientID, cfg.ClientSecret, cfg.TokenURL, cfg.Scopes), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, cfg.Provider)
	}
}

// Static always returns the same token.
type Static string

func (s Static) Token(ctx context.Context) (string, error) {
	return nonEmpty(string(s))
}

// Env reads the token from an environment variable at call time.
type Env string

func (e Env) Token(ctx context.Context) (string, error) {
	name := string(e)
	if name == "" {
		name = DefaultEnv
	}
	token, err := nonEmpty(os.Getenv(name))
	if err != nil {
		return "", fmt.Errorf("%w: %s is not set", err, name)
	}
	return token, nil
}

// File reads the token from a file at call time.
type File string

func (f File) Token(ctx context.Context) (string, error) {
	data, err := os.ReadFile(string(f))
	if err != nil {
		return "", fmt.Errorf("failed to read token file: %w", err)
	}
	return nonEmpty(string(data))
}

func nonEmpty(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrEmptyToken
	}
	return token, nil
}
