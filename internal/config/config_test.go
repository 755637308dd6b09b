package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Bus.Provider != "redis" || cfg.Bus.Channel != "channel_1" {
		t.Fatalf("expected redis bus defaults, got %+v", cfg.Bus)
	}
	if cfg.Store.TTL != 24*time.Hour {
		t.Fatalf("expected 24h default TTL, got %v", cfg.Store.TTL)
	}
	if cfg.Reply.Backoff != 30*time.Second || cfg.Reply.MaxAttempts != 3 {
		t.Fatalf("expected reply retry defaults, got %+v", cfg.Reply)
	}
	if cfg.Lookup.Enabled {
		t.Fatal("lookup should be disabled by default")
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
logging:
  development: false
bus:
  provider: memory
  channel: requests
store:
  provider: memory
  ttl: 1h
relay:
  target_dir: /tmp/artifacts
  supported_sites: ["tiktok.com"]
  concurrency: 6
  max_video_bytes: 1048576
reply:
  max_attempts: 5
  backoff: 10s
http:
  timeout_seconds: 45
lookup:
  enabled: true
  api:
    url: https://lookup.example/detail/
    params:
      app_name: musical_ly
      app_version: 31.5.2
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Bus.Provider != "memory" || cfg.Bus.Channel != "requests" {
		t.Fatalf("expected bus overrides to apply, got %+v", cfg.Bus)
	}
	if cfg.Store.TTL != time.Hour {
		t.Fatalf("expected 1h TTL, got %v", cfg.Store.TTL)
	}
	if cfg.Relay.Concurrency != 6 || cfg.Relay.MaxVideoBytes != 1048576 {
		t.Fatalf("expected relay overrides to apply, got %+v", cfg.Relay)
	}
	if len(cfg.Relay.SupportedSites) != 1 || cfg.Relay.SupportedSites[0] != "tiktok.com" {
		t.Fatalf("expected supported sites override, got %v", cfg.Relay.SupportedSites)
	}
	if cfg.Reply.MaxAttempts != 5 || cfg.Reply.Backoff != 10*time.Second {
		t.Fatalf("expected reply overrides to apply, got %+v", cfg.Reply)
	}
	if !cfg.Lookup.Enabled || cfg.Lookup.API.URL != "https://lookup.example/detail/" {
		t.Fatalf("expected lookup overrides to apply, got %+v", cfg.Lookup)
	}
	if cfg.Lookup.API.Params.AppName != "musical_ly" {
		t.Fatalf("expected nested lookup params, got %+v", cfg.Lookup.API.Params)
	}
	if got := cfg.HTTPTimeout(); got != 45*time.Second {
		t.Fatalf("expected http timeout 45s, got %v", got)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server: ServerConfig{Port: 8080},
		Bus:    BusConfig{Provider: "redis"},
		Store:  StoreConfig{Provider: "redis", TTL: time.Hour},
		Relay: RelayConfig{
			TargetDir:      "downloads",
			SupportedSites: []string{"tiktok.com"},
			Concurrency:    1,
		},
		Reply: ReplyConfig{MaxAttempts: 3},
		HTTP:  HTTPConfig{TimeoutSeconds: 10},
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "invalid port",
			cfg: func() Config {
				c := base
				c.Server.Port = 0
				return c
			}(),
			want: "server.port",
		},
		{
			name: "unknown bus provider",
			cfg: func() Config {
				c := base
				c.Bus.Provider = "kafka"
				return c
			}(),
			want: "bus.provider",
		},
		{
			name: "unknown store provider",
			cfg: func() Config {
				c := base
				c.Store.Provider = "postgres"
				return c
			}(),
			want: "store.provider",
		},
		{
			name: "invalid ttl",
			cfg: func() Config {
				c := base
				c.Store.TTL = 0
				return c
			}(),
			want: "store.ttl",
		},
		{
			name: "missing target dir",
			cfg: func() Config {
				c := base
				c.Relay.TargetDir = ""
				return c
			}(),
			want: "relay.target_dir",
		},
		{
			name: "empty supported sites",
			cfg: func() Config {
				c := base
				c.Relay.SupportedSites = nil
				return c
			}(),
			want: "relay.supported_sites",
		},
		{
			name: "invalid concurrency",
			cfg: func() Config {
				c := base
				c.Relay.Concurrency = 0
				return c
			}(),
			want: "relay.concurrency",
		},
		{
			name: "invalid reply attempts",
			cfg: func() Config {
				c := base
				c.Reply.MaxAttempts = 0
				return c
			}(),
			want: "reply.max_attempts",
		},
		{
			name: "invalid timeout",
			cfg: func() Config {
				c := base
				c.HTTP.TimeoutSeconds = 0
				return c
			}(),
			want: "http.timeout_seconds",
		},
		{
			name: "lookup enabled without url",
			cfg: func() Config {
				c := base
				c.Lookup.Enabled = true
				return c
			}(),
			want: "lookup.api.url",
		},
		{
			name: "lookup device id bounds reversed",
			cfg: func() Config {
				c := base
				c.Lookup.Enabled = true
				c.Lookup.API.URL = "https://lookup.example/detail/"
				c.Lookup.API.Params.DeviceIDLower = 20
				c.Lookup.API.Params.DeviceIDUpper = 10
				return c
			}(),
			want: "device_id_upper",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
