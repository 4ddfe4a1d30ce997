package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	ncerr "bgnc/internal/errors"
	"bgnc/util"
)

// ListenDialer turns the dial step around: it binds address, waits for
// the first inbound TCP peer and hands that connection back as if it
// had been dialled.  The listener is closed as soon as a peer arrives,
// so a later reconnect listens afresh.
type ListenDialer struct {
	// Timeout bounds the wait for a peer.  Zero waits until the dial
	// context is cancelled.
	Timeout time.Duration
	Logger  *util.Logger

	// Ready, when set, is called with the bound address before Accept.
	Ready func(net.Addr)

	// Listen binds the address.  Nil binds locally; a gateway's
	// Listen method binds on the remote side instead.
	Listen func(ctx context.Context, network, address string) (net.Listener, error)
}

// Dial listens on address and returns the first accepted connection.
func (d *ListenDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	switch network {
	case "tcp", "tcp4", "tcp6":
	case "":
		network = "tcp"
	default:
		return nil, fmt.Errorf("listen on %s/%s: %w", network, address, ncerr.ErrUnsupportedTransport)
	}

	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	listen := d.Listen
	if listen == nil {
		var lc net.ListenConfig
		listen = lc.Listen
	}
	ln, err := listen(ctx, network, address)
	if err != nil {
		return nil, ncerr.Wrap("listen", address, err)
	}
	defer ln.Close()

	if d.Logger != nil {
		d.Logger.Info("listening on %s", ln.Addr())
	}
	if d.Ready != nil {
		d.Ready(ln.Addr())
	}

	// Accept has no context parameter; closing the listener unblocks it.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			ln.Close()
		case <-stop:
		}
	}()

	conn, err := ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("accept on %s: %w", ln.Addr(), ctx.Err())
		}
		return nil, ncerr.Wrap("accept", ln.Addr().String(), err)
	}

	if d.Logger != nil {
		d.Logger.Info("connection from %s", conn.RemoteAddr())
	}
	return conn, nil
}

// Close is a no-op; each Dial owns its listener.
func (d *ListenDialer) Close() error { return nil }
