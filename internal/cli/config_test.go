package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/launchdeck/launchdeck/internal/domain/classifier"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "launchdeck.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(newViper())
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Store.Driver != "file" {
		t.Errorf("Expected store driver file, got %q", cfg.Store.Driver)
	}
	if cfg.Reconcile.Debounce != 500*time.Millisecond {
		t.Errorf("Expected 500ms debounce, got %v", cfg.Reconcile.Debounce)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", cfg.Server.Port)
	}
	if got := cfg.Policy().Strings(); strings.Join(got, ",") != strings.Join(classifier.DefaultPolicy().Strings(), ",") {
		t.Errorf("Expected default policy, got %v", got)
	}
	m := cfg.Markers()
	if len(m.Success) == 0 || len(m.Error) == 0 {
		t.Errorf("Expected default markers, got %+v", m)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
worker:
  url: wss://worker.example.com/session
  ping_interval: 10s
store:
  driver: redis
  address: localhost:6379
reconcile:
  debounce: 250ms
session:
  success_markers: ["[ok]"]
server:
  port: 9090
  allowed_origins: ["https://app.example.com"]
`)
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig() error = %v", err)
	}

	cfg, err := LoadConfig(v)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Worker.URL != "wss://worker.example.com/session" {
		t.Errorf("Expected worker url, got %q", cfg.Worker.URL)
	}
	if cfg.Worker.PingInterval != 10*time.Second {
		t.Errorf("Expected 10s ping interval, got %v", cfg.Worker.PingInterval)
	}
	if cfg.Store.Driver != "redis" || cfg.Store.Address != "localhost:6379" {
		t.Errorf("Expected redis store, got %+v", cfg.Store)
	}
	if cfg.Reconcile.Debounce != 250*time.Millisecond {
		t.Errorf("Expected 250ms debounce, got %v", cfg.Reconcile.Debounce)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}
	if len(cfg.Server.AllowedOrigins) != 1 {
		t.Errorf("Expected 1 allowed origin, got %v", cfg.Server.AllowedOrigins)
	}

	m := cfg.Markers()
	if len(m.Success) != 1 || m.Success[0] != "[ok]" {
		t.Errorf("Expected custom success marker, got %v", m.Success)
	}
	if len(m.Error) == 0 {
		t.Error("Expected default error markers to be kept")
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("LAUNCHDECK_WORKER_URL", "ws://localhost:7000/ws")
	t.Setenv("LAUNCHDECK_STORE_DRIVER", "memory")

	cfg, err := LoadConfig(newViper())
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Worker.URL != "ws://localhost:7000/ws" {
		t.Errorf("Expected env worker url, got %q", cfg.Worker.URL)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("Expected env store driver, got %q", cfg.Store.Driver)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			modify: func(c *Config) {},
		},
		{
			name:    "negative debounce",
			modify:  func(c *Config) { c.Reconcile.Debounce = -time.Second },
			wantErr: "reconcile.debounce",
		},
		{
			name:    "unknown rule",
			modify:  func(c *Config) { c.Classifier.RuleOrder = []string{"no-such-rule"} },
			wantErr: "classifier.rule_order",
		},
		{
			name:    "bad port",
			modify:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "server.port",
		},
		{
			name:    "http worker url",
			modify:  func(c *Config) { c.Worker.URL = "http://worker" },
			wantErr: "worker.url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig(newViper())
			if err != nil {
				t.Fatalf("LoadConfig() error = %v", err)
			}
			tt.modify(cfg)

			err = cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
