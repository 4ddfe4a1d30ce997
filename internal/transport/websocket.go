package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"nhooyr.io/websocket"
)

// wsReadLimit caps a single inbound WebSocket message.
const wsReadLimit = 1 << 20

// WSDialer opens a WebSocket and exposes its binary message stream as a
// net.Conn.  The address passed to Dial is the ws:// or wss:// URL.
type WSDialer struct {
	Timeout time.Duration
	Header  http.Header
}

// Dial performs the WebSocket handshake.  network is ignored.
func (d *WSDialer) Dial(ctx context.Context, _ string, address string) (net.Conn, error) {
	dialCtx := ctx
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	c, _, err := websocket.Dial(dialCtx, address, &websocket.DialOptions{
		HTTPHeader: d.Header,
	})
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", address, err)
	}
	c.SetReadLimit(wsReadLimit)

	// The conn lives until the socket closes it, not until the dial
	// deadline; ctx is cancelled by Socket.Disconnect.
	return websocket.NetConn(ctx, c, websocket.MessageBinary), nil
}

// Close is a no-op.
func (d *WSDialer) Close() error { return nil }
