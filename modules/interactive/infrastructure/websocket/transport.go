package websocket

import (
	"sync"
	"time"

	gorillaws "github.com/gorilla/websocket"
)

// Transport is the seam spec.md §4.2's Registry sends through, narrowed
// from the teacher's direct *websocket.Conn field so broadcast tests can
// substitute a fake instead of opening a real socket.
type Transport interface {
	Send(v interface{}) error
	Close() error
}

// sendDeadline bounds how long a single outbound write may block before
// the sender treats the transport as disconnected, per spec.md §5's
// backpressure rule ("implementation-chosen, e.g., 2s").
const sendDeadline = 2 * time.Second

// connTransport wraps a *gorilla/websocket.Conn. Grounded on the
// teacher's hub.go sendMessage/removeConnection shape, with writes
// serialized by a mutex since gorilla/websocket forbids concurrent
// writers on one connection.
type connTransport struct {
	mu   sync.Mutex
	conn *gorillaws.Conn
}

// NewConnTransport adapts a raw gorilla/websocket connection to Transport.
func NewConnTransport(conn *gorillaws.Conn) Transport {
	return &connTransport{conn: conn}
}

func (t *connTransport) Send(v interface{}) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.conn.SetWriteDeadline(time.Now().Add(sendDeadline)); err != nil {
		return err
	}
	return t.conn.WriteJSON(v)
}

func (t *connTransport) Close() error {
	return t.conn.Close()
}
