// Package channel provides topic-scoped publish/subscribe fan-out between
// live sessions running in the same process.
package channel

import (
	"sync"

	"github.com/rs/zerolog"
)

// Handler receives messages broadcast on a channel.
type Handler func(msg any)

// Registry owns the topic -> channel mapping. It is constructed once per
// process and passed to whatever creates sessions; there is no package-level
// instance.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]*Channel
	logger   zerolog.Logger
}

// NewRegistry creates an empty channel registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		channels: make(map[string]*Channel),
		logger:   logger,
	}
}

// Channel returns the channel for name, creating it on first use. Repeated
// calls with the same name return the same instance for the lifetime of the
// registry. Empty channels are never pruned.
func (r *Registry) Channel(name string) *Channel {
	r.mu.RLock()
	ch, ok := r.channels[name]
	r.mu.RUnlock()
	if ok {
		return ch
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if ch, ok := r.channels[name]; ok {
		return ch
	}
	ch = &Channel{
		name:   name,
		subs:   make(map[uint64]Handler),
		logger: r.logger.With().Str("channel", name).Logger(),
	}
	r.channels[name] = ch
	return ch
}

// Broadcast resolves (or creates) the named channel and fans msg out to its
// subscribers. Broadcasting into a topic with no subscribers is a no-op.
func (r *Registry) Broadcast(name string, msg any) {
	r.Channel(name).Broadcast(msg)
}

// ChannelNames returns the names of all channels created so far.
func (r *Registry) ChannelNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.channels))
	for name := range r.channels {
		names = append(names, name)
	}
	return names
}

// Counts returns subscriber counts keyed by channel name.
func (r *Registry) Counts() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[string]int, len(r.channels))
	for name, ch := range r.channels {
		counts[name] = ch.SubscriberCount()
	}
	return counts
}

// Channel is a named broadcast group. Subscribers rendezvous with
// publishers by channel name via the registry.
type Channel struct {
	name   string
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]Handler
	logger zerolog.Logger
}

// Name returns the channel's topic name.
func (c *Channel) Name() string { return c.name }

// Subscribe registers a handler and returns a function that removes exactly
// this registration. Calling the returned function more than once is a no-op.
func (c *Channel) Subscribe(h Handler) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = h
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// Broadcast invokes every currently-registered handler once with msg,
// synchronously from the caller. Delivery order across subscribers is
// unspecified. A panicking handler is logged and does not prevent delivery
// to the rest.
func (c *Channel) Broadcast(msg any) {
	c.mu.RLock()
	handlers := make([]Handler, 0, len(c.subs))
	for _, h := range c.subs {
		handlers = append(handlers, h)
	}
	c.mu.RUnlock()

	for _, h := range handlers {
		c.deliver(h, msg)
	}
}

func (c *Channel) deliver(h Handler, msg any) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Msg("subscriber panicked during broadcast")
		}
	}()
	h(msg)
}

// SubscriberCount returns the number of live subscriptions.
func (c *Channel) SubscriberCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs)
}
