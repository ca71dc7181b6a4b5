package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/launchdeck/launchdeck/internal/app/reconcile"
	"github.com/launchdeck/launchdeck/internal/app/session"
	"github.com/launchdeck/launchdeck/internal/domain/classifier"
	"github.com/launchdeck/launchdeck/internal/infrastructure/archive"
	"github.com/launchdeck/launchdeck/internal/infrastructure/credentials"
	"github.com/launchdeck/launchdeck/internal/infrastructure/scanner"
	"github.com/launchdeck/launchdeck/internal/infrastructure/store"
)

// Config is the typed form of the launchdeck configuration file and its
// LAUNCHDECK_* environment overrides.
type Config struct {
	Worker      WorkerConfig       `mapstructure:"worker"`
	Store       store.Config       `mapstructure:"store"`
	Credentials credentials.Config `mapstructure:"credentials"`
	Scanner     scanner.Config     `mapstructure:"scanner"`
	Archive     archive.Config     `mapstructure:"archive"`
	Reconcile   ReconcileConfig    `mapstructure:"reconcile"`
	Classifier  ClassifierConfig   `mapstructure:"classifier"`
	Session     SessionConfig      `mapstructure:"session"`
	Server      ServerConfig       `mapstructure:"server"`
	Log         LogConfig          `mapstructure:"log"`
}

// WorkerConfig locates the deployment worker.
type WorkerConfig struct {
	URL string `mapstructure:"url"`
	// Token is sent on the websocket handshake. Deploy credentials are
	// resolved separately through the credentials provider.
	Token        string        `mapstructure:"token"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
}

type ReconcileConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

type ClassifierConfig struct {
	RuleOrder []string `mapstructure:"rule_order"`
}

type SessionConfig struct {
	SuccessMarkers      []string `mapstructure:"success_markers"`
	ErrorMarkers        []string `mapstructure:"error_markers"`
	InlineArtifactLimit int      `mapstructure:"inline_artifact_limit"`
}

type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Token          string        `mapstructure:"token"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateBurst      int           `mapstructure:"rate_burst"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// setDefaults registers every key, which also lets AutomaticEnv override
// keys that are absent from the config file.
func setDefaults(v *viper.Viper) {
	markers := session.DefaultMarkers()

	v.SetDefault("worker.url", "")
	v.SetDefault("worker.token", "")
	v.SetDefault("worker.ping_interval", 30*time.Second)

	v.SetDefault("store.driver", "file")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.path", "")
	v.SetDefault("store.table", store.DefaultTable)
	v.SetDefault("store.collection", "")
	v.SetDefault("store.project", "")
	v.SetDefault("store.address", "")
	v.SetDefault("store.region", "")

	v.SetDefault("credentials.provider", "")
	v.SetDefault("credentials.token", "")
	v.SetDefault("credentials.env", credentials.DefaultEnv)
	v.SetDefault("credentials.file", "")
	v.SetDefault("credentials.secret_id", "")
	v.SetDefault("credentials.region", "")
	v.SetDefault("credentials.project", "")
	v.SetDefault("credentials.client_id", "")
	v.SetDefault("credentials.client_secret", "")
	v.SetDefault("credentials.token_url", "")
	v.SetDefault("credentials.scopes", []string{})

	v.SetDefault("scanner.kind", "file")
	v.SetDefault("scanner.path", "")
	v.SetDefault("scanner.url", "")
	v.SetDefault("scanner.token", "")

	v.SetDefault("archive.driver", "")
	v.SetDefault("archive.bucket", "")
	v.SetDefault("archive.prefix", "logs")
	v.SetDefault("archive.endpoint", "")
	v.SetDefault("archive.region", "")
	v.SetDefault("archive.access_key", "")
	v.SetDefault("archive.secret_key", "")
	v.SetDefault("archive.use_ssl", true)
	v.SetDefault("archive.profile", "")
	v.SetDefault("archive.credentials_file", "")

	v.SetDefault("reconcile.debounce", reconcile.DefaultDebounce)
	v.SetDefault("classifier.rule_order", classifier.DefaultPolicy().Strings())

	v.SetDefault("session.success_markers", markers.Success)
	v.SetDefault("session.error_markers", markers.Error)
	v.SetDefault("session.inline_artifact_limit", session.DefaultInlineArtifactLimit)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.token", "")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("server.request_timeout", 60*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
}

// newViper returns a viper instance with defaults and LAUNCHDECK_* env
// bindings, e.g. LAUNCHDECK_WORKER_URL for worker.url.
func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("LAUNCHDECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig decodes and validates the configuration held by v.
func LoadConfig(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Reconcile.Debounce < 0 {
		errs = append(errs, errors.New("reconcile.debounce must not be negative"))
	}
	if _, err := classifier.ParsePolicy(c.Classifier.RuleOrder); err != nil {
		errs = append(errs, fmt.Errorf("classifier.rule_order: %w", err))
	}
	if c.Session.InlineArtifactLimit < 0 {
		errs = append(errs, errors.New("session.inline_artifact_limit must not be negative"))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d is out of range", c.Server.Port))
	}
	if c.Worker.URL != "" && !strings.HasPrefix(c.Worker.URL, "ws://") && !strings.HasPrefix(c.Worker.URL, "wss://") {
		errs = append(errs, fmt.Errorf("worker.url %q must be a ws:// or wss:// URL", c.Worker.URL))
	}
	return errors.Join(errs...)
}

// Policy returns the configured classifier rule order.
func (c *Config) Policy() classifier.Policy {
	p, err := classifier.ParsePolicy(c.Classifier.RuleOrder)
	if err != nil {
		return classifier.DefaultPolicy()
	}
	return p
}

// Markers returns the configured step status markers.
func (c *Config) Markers() *session.Markers {
	m := session.DefaultMarkers()
	if len(c.Session.SuccessMarkers) > 0 {
		m.Success = c.Session.SuccessMarkers
	}
	if len(c.Session.ErrorMarkers) > 0 {
		m.Error = c.Session.ErrorMarkers
	}
	return &m
}
