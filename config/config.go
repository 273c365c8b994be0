// Package config holds runtime configuration for the live core.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config controls connection limits and the heartbeat discipline.
type Config struct {
	// MaxMessageSize is the largest inbound message accepted before the
	// connection is closed.
	MaxMessageSize int64 `env:"LIVE_MAX_MESSAGE_SIZE" envDefault:"1048576"`

	// MaxFrameSize bounds a single websocket frame.
	MaxFrameSize int64 `env:"LIVE_MAX_FRAME_SIZE" envDefault:"1048576"`

	// Compression enables per-message compression on the transport.
	Compression bool `env:"LIVE_COMPRESSION" envDefault:"false"`

	// HeartbeatInterval is how often the server sends a heartbeat frame.
	HeartbeatInterval time.Duration `env:"LIVE_HEARTBEAT_INTERVAL" envDefault:"30s"`

	// Timeout is how long a connection may stay silent before it is
	// declared dead and closed.
	Timeout time.Duration `env:"LIVE_TIMEOUT" envDefault:"60s"`

	// MaxConnections caps concurrent live connections.
	MaxConnections int `env:"LIVE_MAX_CONNECTIONS" envDefault:"1000"`

	// WriteTimeout bounds a single outbound write.
	WriteTimeout time.Duration `env:"LIVE_WRITE_TIMEOUT" envDefault:"10s"`

	ReadBufferSize  int `env:"LIVE_READ_BUFFER_SIZE" envDefault:"1024"`
	WriteBufferSize int `env:"LIVE_WRITE_BUFFER_SIZE" envDefault:"1024"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		MaxMessageSize:    1 << 20,
		MaxFrameSize:      1 << 20,
		HeartbeatInterval: 30 * time.Second,
		Timeout:           60 * time.Second,
		MaxConnections:    1000,
		WriteTimeout:      10 * time.Second,
		ReadBufferSize:    1024,
		WriteBufferSize:   1024,
	}
}

// FromEnv loads configuration from LIVE_* environment variables, falling
// back to defaults for unset values.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations the session loop cannot run with.
func (c *Config) Validate() error {
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat interval must be positive, got %s", c.HeartbeatInterval)
	}
	if c.Timeout <= c.HeartbeatInterval {
		return fmt.Errorf("timeout %s must exceed heartbeat interval %s", c.Timeout, c.HeartbeatInterval)
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("max message size must be positive, got %d", c.MaxMessageSize)
	}
	return nil
}
