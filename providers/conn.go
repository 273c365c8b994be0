package providers

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/fasthttp/websocket"

	"github.com/relaywire/liveview/src/live"
)

// wsConn adapts a fasthttp/websocket connection to the live.Conn interface.
// Writes are serialized; the session and the heartbeat path may both send.
type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	mu           sync.Mutex
	connected    atomic.Bool
}

var _ live.Conn = (*wsConn)(nil)

func newWSConn(conn *websocket.Conn, writeTimeout time.Duration) *wsConn {
	wc := &wsConn{conn: conn, writeTimeout: writeTimeout}
	wc.connected.Store(true)
	return wc
}

func (w *wsConn) Send(text string) error {
	return w.write(websocket.TextMessage, []byte(text))
}

func (w *wsConn) SendBinary(data []byte) error {
	return w.write(websocket.BinaryMessage, data)
}

func (w *wsConn) write(messageType int, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout))
	if err := w.conn.WriteMessage(messageType, data); err != nil {
		w.connected.Store(false)
		return err
	}
	return nil
}

func (w *wsConn) Close(code int, reason string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.connected.Swap(false) {
		msg := websocket.FormatCloseMessage(code, reason)
		w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(w.writeTimeout))
	}
	return w.conn.Close()
}

func (w *wsConn) IsConnected() bool {
	return w.connected.Load()
}
