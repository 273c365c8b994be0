// Package providers adapts the live core to an HTTP stack: websocket
// upgrades via fasthttp and introspection routes via Fiber. The core itself
// only ever sees the live.Conn interface.
package providers

import (
	"github.com/rs/zerolog"

	"github.com/relaywire/liveview/src/bridge"
	"github.com/relaywire/liveview/src/live"
	"github.com/relaywire/liveview/src/service"
)

// MountFunc builds a session for a freshly upgraded connection. The
// application typically calls live.NewSession here with its own state type
// and handler.
type MountFunc func(id string, conn live.Conn) (live.Runner, error)

// Provider serves live connections over websockets and exposes
// introspection endpoints.
type Provider struct {
	svc    *service.Service
	mount  MountFunc
	bridge bridge.Bridge
	logger zerolog.Logger
}

// New creates a provider for svc. mount is invoked once per accepted
// connection.
func New(svc *service.Service, mount MountFunc, logger zerolog.Logger) *Provider {
	return &Provider{
		svc:    svc,
		mount:  mount,
		logger: logger.With().Str("component", "provider").Logger(),
	}
}

// Start attempts to connect the Redis bridge. An unreachable Redis is not
// fatal; the provider then runs standalone.
func (p *Provider) Start() {
	cfg := bridge.RedisConfigFromEnv()
	rb := bridge.NewRedisBridge(cfg, p.svc, p.logger)

	if err := rb.Start(); err != nil {
		p.logger.Warn().Err(err).Msg("redis bridge unavailable, running standalone")
		return
	}

	p.bridge = rb
	p.svc.SetBridge(rb)
	p.logger.Info().Str("redis_addr", cfg.Addr).Msg("redis bridge connected")
}

// Stop closes the bridge and every live session.
func (p *Provider) Stop() {
	if p.bridge != nil {
		if err := p.bridge.Stop(); err != nil {
			p.logger.Error().Err(err).Msg("bridge stop error")
		}
		p.bridge = nil
	}
	p.svc.CloseAll("server shutting down")
}
