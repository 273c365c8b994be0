// Package bridge relays channel broadcasts between server instances. The
// in-process core never depends on it; distribution is layered on top of
// the same registry interface.
package bridge

// Bridge defines the interface for cross-instance broadcast relaying.
type Bridge interface {
	// Publish sends a topic broadcast to all other instances.
	Publish(topic string, payload []byte) error

	// Start begins listening for broadcasts from other instances.
	Start() error

	// Stop shuts down the bridge connection.
	Stop() error

	// Available reports whether the bridge is connected and operational.
	Available() bool
}

// BroadcastTarget receives relayed broadcasts for local delivery. The
// service implements it.
type BroadcastTarget interface {
	BroadcastToLocal(topic string, payload []byte)
}
