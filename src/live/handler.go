package live

import (
	"context"

	"github.com/relaywire/liveview/src/protocol"
)

// Handler supplies the application behavior for one kind of live view.
// S is the per-connection state type; the session owns one value of S and
// is its only writer.
//
// Render is required; the other hooks are optional.
type Handler[S any] struct {
	// OnConnect produces the initial state when a connection mounts.
	// When nil, the zero value of S is used.
	OnConnect func(ctx context.Context, conn Conn) (S, error)

	// OnMessage receives each decoded inbound message together with the
	// current state and returns the next state. Messages for one session
	// arrive strictly in order; OnMessage is never invoked concurrently
	// for the same session.
	OnMessage func(ctx context.Context, msg protocol.Message, state S, conn Conn) (S, error)

	// OnClose runs exactly once when the session closes, clean or forced.
	OnClose func(ctx context.Context, state S) error

	// Render turns state into markup for the client.
	Render func(state S) (string, error)
}
