// Package live drives the per-connection LiveView lifecycle: mount, the
// ordered event loop, heartbeat supervision, and close.
package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/relaywire/liveview/config"
	"github.com/relaywire/liveview/src/channel"
	"github.com/relaywire/liveview/src/presence"
	"github.com/relaywire/liveview/src/protocol"
)

// Phase is the session lifecycle state. Closed is terminal.
type Phase int32

const (
	PhaseConnecting Phase = iota
	PhaseMounted
	PhaseActive
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhaseMounted:
		return "mounted"
	case PhaseActive:
		return "active"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrNoRenderer is returned by NewSession when the handler has no Render
// function. This is a configuration error; a session must never mount
// without a renderer.
var ErrNoRenderer = errors.New("live: handler has no Render function")

// ErrClosed is returned by sends on a closed session.
var ErrClosed = errors.New("live: session closed")

const inboxSize = 256

// Options configures a session beyond its handler.
type Options struct {
	// ID identifies the session in logs and presence. Defaults to a UUID.
	ID string

	// Config supplies heartbeat and size limits. Defaults to config.Default().
	Config *config.Config

	// Registry, when set, enables Subscribe/Broadcast coordination with
	// other sessions. Subscriptions are dropped on close.
	Registry *channel.Registry

	// Presence, when set, enables Track/Untrack. Entries tracked through
	// the session are untracked on close, forced or clean.
	Presence *presence.Tracker

	Logger zerolog.Logger
}

type trackedPair struct {
	key string
	id  string
}

// Session owns one connection's application state and drives its
// mount -> event loop -> close lifecycle. State is mutated only by the
// dispatch loop, which processes inbound frames strictly in arrival order.
type Session[S any] struct {
	id       string
	conn     Conn
	handler  Handler[S]
	cfg      *config.Config
	registry *channel.Registry
	presence *presence.Tracker
	logger   zerolog.Logger

	stateMu sync.RWMutex
	state   S

	phase     atomic.Int32
	inbox     chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	coordMu sync.Mutex
	tracked []trackedPair
	unsubs  []func()
}

// NewSession builds a session for conn. It fails eagerly when the handler
// has no renderer.
func NewSession[S any](conn Conn, handler Handler[S], opts Options) (*Session[S], error) {
	if handler.Render == nil {
		return nil, ErrNoRenderer
	}
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.Config == nil {
		opts.Config = config.Default()
	}

	s := &Session[S]{
		id:       opts.ID,
		conn:     conn,
		handler:  handler,
		cfg:      opts.Config,
		registry: opts.Registry,
		presence: opts.Presence,
		logger:   opts.Logger.With().Str("session_id", opts.ID).Logger(),
		inbox:    make(chan []byte, inboxSize),
		closed:   make(chan struct{}),
	}
	s.phase.Store(int32(PhaseConnecting))
	return s, nil
}

// ID returns the session identifier.
func (s *Session[S]) ID() string { return s.id }

// Phase returns the current lifecycle phase.
func (s *Session[S]) Phase() Phase { return Phase(s.phase.Load()) }

// Done is closed when the session has closed.
func (s *Session[S]) Done() <-chan struct{} { return s.closed }

// State returns the current application state.
func (s *Session[S]) State() S {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

func (s *Session[S]) setState(state S) {
	s.stateMu.Lock()
	s.state = state
	s.stateMu.Unlock()
}

// Run mounts the session and processes inbound frames until the session
// closes, the context is canceled, or the peer goes silent past the
// configured timeout. It blocks; call it from the connection's goroutine.
func (s *Session[S]) Run(ctx context.Context) error {
	defer s.Close("session loop exited")

	if err := s.mount(ctx); err != nil {
		s.logger.Error().Err(err).Msg("mount failed")
		s.sendMessage(protocol.Error{Message: "mount failed"})
		return err
	}
	s.phase.Store(int32(PhaseActive))

	heartbeat := time.NewTicker(s.cfg.HeartbeatInterval)
	defer heartbeat.Stop()
	deadline := time.NewTimer(s.cfg.Timeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-s.closed:
			return nil

		case frame := <-s.inbox:
			if !deadline.Stop() {
				select {
				case <-deadline.C:
				default:
				}
			}
			deadline.Reset(s.cfg.Timeout)
			s.dispatch(ctx, frame)

		case <-heartbeat.C:
			if err := s.sendMessage(protocol.Heartbeat{}); err != nil {
				s.logger.Warn().Err(err).Msg("heartbeat write failed, closing")
				s.Close("write failed")
				return nil
			}

		case <-deadline.C:
			s.logger.Info().Dur("timeout", s.cfg.Timeout).Msg("no activity from peer, closing")
			s.Close("heartbeat timeout")
			return nil
		}
	}
}

// mount produces the initial state and sends the first render.
func (s *Session[S]) mount(ctx context.Context) error {
	if s.handler.OnConnect != nil {
		state, err := s.invokeOnConnect(ctx)
		if err != nil {
			return fmt.Errorf("on connect: %w", err)
		}
		s.setState(state)
	}
	s.phase.Store(int32(PhaseMounted))
	s.logger.Debug().Msg("session mounted")
	return s.renderAndSend()
}

// Feed queues an inbound frame for dispatch. Frames over MaxMessageSize
// close the connection. Feeding a closed session is a no-op.
func (s *Session[S]) Feed(frame []byte) {
	if int64(len(frame)) > s.cfg.MaxMessageSize {
		s.logger.Warn().Int("size", len(frame)).Msg("inbound message too large")
		s.closeWithCode(CloseTooLarge, "message too large")
		return
	}
	select {
	case <-s.closed:
	case s.inbox <- frame:
	default:
		s.logger.Warn().Msg("inbox full, dropping frame")
	}
}

// dispatch decodes one frame and applies it. Malformed frames are dropped
// with no state change and no reply.
func (s *Session[S]) dispatch(ctx context.Context, frame []byte) {
	msg := protocol.Decode(frame)
	if msg == nil {
		s.logger.Debug().Msg("dropping malformed frame")
		return
	}

	switch m := msg.(type) {
	case protocol.Heartbeat:
		// Keep-alive only: reply, no state change, no re-render.
		s.sendMessage(protocol.Reply{Ref: "heartbeat", Status: protocol.StatusOK, Response: map[string]any{}})
		return
	case protocol.Join:
		s.sendMessage(protocol.Reply{
			Ref:      m.Topic,
			Status:   protocol.StatusOK,
			Response: map[string]any{"topic": m.Topic},
		})
	}

	s.apply(ctx, msg)
}

// apply runs the message through the application handler and re-renders.
// A failing handler keeps the prior state; a session closed mid-flight
// discards the result.
func (s *Session[S]) apply(ctx context.Context, msg protocol.Message) {
	if s.handler.OnMessage == nil {
		return
	}

	next, err := s.invokeOnMessage(ctx, msg)
	if err != nil {
		s.logger.Error().Err(err).Str("type", string(msg.MessageType())).Msg("message handler failed, state retained")
		return
	}
	if s.Phase() == PhaseClosed {
		return
	}

	s.setState(next)
	if err := s.renderAndSend(); err != nil {
		s.logger.Error().Err(err).Msg("render failed")
	}
}

func (s *Session[S]) invokeOnConnect(ctx context.Context) (state S, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.handler.OnConnect(ctx, s.conn)
}

func (s *Session[S]) invokeOnMessage(ctx context.Context, msg protocol.Message) (next S, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.handler.OnMessage(ctx, msg, s.State(), s.conn)
}

// renderAndSend renders the current state and sends it as a render frame.
func (s *Session[S]) renderAndSend() error {
	html, err := s.invokeRender()
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return s.sendMessage(protocol.Render{HTML: html})
}

func (s *Session[S]) invokeRender() (html string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.handler.Render(s.State())
}

// Push sends an arbitrary protocol message to this session's client. Used
// by handlers and broadcast subscribers to deliver patches or redirects
// outside the render cycle.
func (s *Session[S]) Push(msg protocol.Message) error {
	return s.sendMessage(msg)
}

func (s *Session[S]) sendMessage(msg protocol.Message) error {
	if s.Phase() == PhaseClosed {
		return ErrClosed
	}
	data, err := protocol.Encode(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.MessageType(), err)
	}
	return s.conn.Send(string(data))
}

// Subscribe registers a handler on the named broadcast channel. The
// subscription is removed automatically when the session closes. Requires
// a registry; without one Subscribe is a no-op.
func (s *Session[S]) Subscribe(topic string, h channel.Handler) {
	if s.registry == nil || s.Phase() == PhaseClosed {
		return
	}
	unsub := s.registry.Channel(topic).Subscribe(h)
	s.coordMu.Lock()
	// Close sets the phase before sweeping unsubs under coordMu, so a
	// non-closed phase here guarantees the sweep will see this entry. If
	// the session closed in between, the sweep may already be done; undo
	// the subscription instead of appending to a swept list.
	if s.Phase() == PhaseClosed {
		s.coordMu.Unlock()
		unsub()
		return
	}
	s.unsubs = append(s.unsubs, unsub)
	s.coordMu.Unlock()
}

// Broadcast publishes msg to the named channel, fanning out to every
// subscribed session. No-op without a registry.
func (s *Session[S]) Broadcast(topic string, msg any) {
	if s.registry == nil {
		return
	}
	s.registry.Broadcast(topic, msg)
}

// Track registers a presence entry for this session under key. The pair is
// remembered and untracked on close so an unclean disconnect cannot leak
// presence. No-op without a tracker.
func (s *Session[S]) Track(key, id string, meta presence.Meta) {
	if s.presence == nil || s.Phase() == PhaseClosed {
		return
	}
	s.presence.Track(key, id, meta)
	s.coordMu.Lock()
	// Same ordering argument as Subscribe: an entry appended while the
	// phase is still open is guaranteed to be swept by close. Otherwise
	// the sweep may have already run, so untrack here.
	if s.Phase() == PhaseClosed {
		s.coordMu.Unlock()
		s.presence.Untrack(key, id)
		return
	}
	s.tracked = append(s.tracked, trackedPair{key: key, id: id})
	s.coordMu.Unlock()
}

// Untrack removes one presence entry for this session.
func (s *Session[S]) Untrack(key, id string) {
	if s.presence == nil {
		return
	}
	s.presence.Untrack(key, id)
	s.coordMu.Lock()
	for i, p := range s.tracked {
		if p.key == key && p.id == id {
			s.tracked = append(s.tracked[:i], s.tracked[i+1:]...)
			break
		}
	}
	s.coordMu.Unlock()
}

// Close transitions the session to Closed: cancels frame dispatch, drops
// channel subscriptions, untracks presence, runs OnClose exactly once, and
// closes the connection. Safe to call from any goroutine; closing an
// already-closed session is a no-op.
func (s *Session[S]) Close(reason string) {
	s.closeWithCode(CloseNormal, reason)
}

func (s *Session[S]) closeWithCode(code int, reason string) {
	s.closeOnce.Do(func() {
		s.phase.Store(int32(PhaseClosed))
		close(s.closed)

		s.coordMu.Lock()
		unsubs := s.unsubs
		tracked := s.tracked
		s.unsubs = nil
		s.tracked = nil
		s.coordMu.Unlock()

		for _, unsub := range unsubs {
			unsub()
		}
		if s.presence != nil {
			for _, p := range tracked {
				s.presence.Untrack(p.key, p.id)
			}
		}

		if s.handler.OnClose != nil {
			if err := s.invokeOnClose(); err != nil {
				s.logger.Error().Err(err).Msg("close handler failed")
			}
		}

		if s.conn.IsConnected() {
			if err := s.conn.Close(code, reason); err != nil {
				s.logger.Debug().Err(err).Msg("connection close error")
			}
		}

		s.logger.Info().Str("reason", reason).Msg("session closed")
	})
}

func (s *Session[S]) invokeOnClose() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.handler.OnClose(context.Background(), s.State())
}
