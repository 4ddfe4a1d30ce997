// Package transport owns the raw byte stream behind a session.  A
// [Dialer] decides how the stream is opened (TCP, UDP, an accepted
// inbound peer, an SSH-forwarded channel or a WebSocket); a [Socket]
// runs the connect/read lifecycle on its own goroutine and reports
// everything that happens to a single [Sink].
package transport

import (
	"context"
	"net"
)

// Dialer opens outbound network connections.  Implementations include
// plain TCP/UDP dialers and an SSH-tunnelled dialer that routes
// traffic through an encrypted gateway.
type Dialer interface {
	// Dial establishes a connection to the given network address.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases any long-lived resources held by the dialer
	// (e.g. an SSH session).  Stateless dialers return nil.
	Close() error
}

// Sink receives the lifecycle events of one transport.  Calls arrive on
// the transport's reader goroutine, except the trigger-initiated
// OnIoError which runs on whichever goroutine fired the trigger.  Sinks
// must not block for long.
type Sink interface {
	OnConnected()
	OnConnectError(err error)
	OnRead(chunk []byte)
	OnIoError(err error)
}
