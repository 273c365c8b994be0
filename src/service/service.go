// Package service wires the live core together: one registry, one presence
// tracker, the session set, and an optional cross-instance bridge.
package service

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/relaywire/liveview/config"
	"github.com/relaywire/liveview/src/channel"
	"github.com/relaywire/liveview/src/live"
	"github.com/relaywire/liveview/src/presence"
)

// MessageBridge relays broadcasts to other server instances. Defined here
// to avoid a circular import with the bridge package.
type MessageBridge interface {
	Publish(topic string, payload []byte) error
	Available() bool
}

// Service owns the process-wide coordination structures. Construct one per
// process and thread it through wherever sessions are created; nothing in
// the core is a package-level singleton.
type Service struct {
	cfg      *config.Config
	channels *channel.Registry
	presence *presence.Tracker
	logger   zerolog.Logger

	mu       sync.RWMutex
	bridge   MessageBridge
	sessions map[string]live.Runner
}

// New creates a service with a fresh registry and presence tracker.
func New(cfg *config.Config, logger zerolog.Logger) (*Service, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &Service{
		cfg:      cfg,
		channels: channel.NewRegistry(logger.With().Str("component", "channels").Logger()),
		presence: presence.NewTracker(logger.With().Str("component", "presence").Logger()),
		logger:   logger,
		sessions: make(map[string]live.Runner),
	}, nil
}

// Config returns the runtime configuration.
func (s *Service) Config() *config.Config { return s.cfg }

// Channels returns the broadcast channel registry.
func (s *Service) Channels() *channel.Registry { return s.channels }

// Presence returns the presence tracker.
func (s *Service) Presence() *presence.Tracker { return s.presence }

// SetBridge attaches a cross-instance message bridge. When set, Publish
// also forwards to other instances.
func (s *Service) SetBridge(b MessageBridge) {
	s.mu.Lock()
	s.bridge = b
	s.mu.Unlock()
}

// Publish fans msg out to local subscribers of topic and, when a bridge is
// attached and the message is serializable, to other instances.
func (s *Service) Publish(topic string, msg any) error {
	s.channels.Broadcast(topic, msg)

	s.mu.RLock()
	b := s.bridge
	s.mu.RUnlock()
	if b == nil || !b.Available() {
		return nil
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal broadcast for bridge: %w", err)
	}
	if err := b.Publish(topic, payload); err != nil {
		s.logger.Error().Err(err).Str("topic", topic).Msg("bridge publish failed")
	}
	return nil
}

// BroadcastToLocal delivers a bridge-relayed message to local subscribers
// only. Subscribers receive the payload as json.RawMessage. It never
// re-publishes to the bridge, preventing relay loops.
func (s *Service) BroadcastToLocal(topic string, payload []byte) {
	s.channels.Broadcast(topic, json.RawMessage(payload))
}

// Register adds a running session. It fails when the connection cap is
// reached or the id is already taken.
func (s *Service) Register(id string, r live.Runner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sessions) >= s.cfg.MaxConnections {
		return fmt.Errorf("connection limit reached (%d)", s.cfg.MaxConnections)
	}
	if _, ok := s.sessions[id]; ok {
		return fmt.Errorf("session %s already registered", id)
	}
	s.sessions[id] = r
	s.logger.Info().Str("session_id", id).Int("sessions", len(s.sessions)).Msg("session registered")
	return nil
}

// Unregister removes a session. Unknown ids are ignored.
func (s *Service) Unregister(id string) {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	n := len(s.sessions)
	s.mu.Unlock()
	if ok {
		s.logger.Info().Str("session_id", id).Int("sessions", n).Msg("session unregistered")
	}
}

// SessionCount returns the number of live sessions.
func (s *Service) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// SessionIDs returns the ids of all live sessions.
func (s *Service) SessionIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

// CloseAll force-closes every live session, for shutdown.
func (s *Service) CloseAll(reason string) {
	s.mu.RLock()
	runners := make([]live.Runner, 0, len(s.sessions))
	for _, r := range s.sessions {
		runners = append(runners, r)
	}
	s.mu.RUnlock()

	for _, r := range runners {
		r.Close(reason)
	}
}
