package config

import (
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	if cfg.HeartbeatInterval != 30*time.Second {
		t.Errorf("unexpected heartbeat interval: %s", cfg.HeartbeatInterval)
	}
	if cfg.Timeout != 60*time.Second {
		t.Errorf("unexpected timeout: %s", cfg.Timeout)
	}
	if cfg.MaxMessageSize != 1<<20 {
		t.Errorf("unexpected max message size: %d", cfg.MaxMessageSize)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("LIVE_HEARTBEAT_INTERVAL", "5s")
	t.Setenv("LIVE_TIMEOUT", "20s")
	t.Setenv("LIVE_MAX_CONNECTIONS", "42")
	t.Setenv("LIVE_COMPRESSION", "true")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg.HeartbeatInterval != 5*time.Second {
		t.Errorf("unexpected heartbeat interval: %s", cfg.HeartbeatInterval)
	}
	if cfg.Timeout != 20*time.Second {
		t.Errorf("unexpected timeout: %s", cfg.Timeout)
	}
	if cfg.MaxConnections != 42 {
		t.Errorf("unexpected max connections: %d", cfg.MaxConnections)
	}
	if !cfg.Compression {
		t.Error("expected compression enabled")
	}
	// Unset values keep their defaults.
	if cfg.MaxMessageSize != 1<<20 {
		t.Errorf("unexpected max message size: %d", cfg.MaxMessageSize)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero heartbeat", func(c *Config) { c.HeartbeatInterval = 0 }},
		{"timeout below heartbeat", func(c *Config) { c.Timeout = c.HeartbeatInterval / 2 }},
		{"zero max message size", func(c *Config) { c.MaxMessageSize = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
