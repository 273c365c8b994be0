package live

import "context"

// WebSocket close codes used by the session.
const (
	CloseNormal    = 1000
	CloseGoingAway = 1001
	CloseTooLarge  = 1009
)

// Conn is the narrow connection handle the host transport supplies. The
// core never opens sockets itself; everything it needs from the transport
// goes through this interface.
type Conn interface {
	// Send writes a text frame.
	Send(text string) error

	// SendBinary writes a binary frame.
	SendBinary(data []byte) error

	// Close closes the connection with a websocket close code and reason.
	Close(code int, reason string) error

	// IsConnected reports whether the peer is still reachable.
	IsConnected() bool
}

// Runner is the transport-facing surface of a session, independent of its
// state type. The transport feeds raw inbound frames and reports peer
// disconnect by closing the runner.
type Runner interface {
	Run(ctx context.Context) error
	Feed(frame []byte)
	Close(reason string)
	Done() <-chan struct{}
}
