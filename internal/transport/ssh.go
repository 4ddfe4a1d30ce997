package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"bgnc/internal/metrics"
	"bgnc/tunnel"
	"bgnc/util"
)

// SSHDialer opens the stream as a direct-tcpip channel through an SSH
// gateway.  The gateway is connected lazily on the first Dial and
// reconnected if it has died since.  A reconnect of the stream reuses a
// healthy gateway.
type SSHDialer struct {
	gw     tunnel.Tunnel
	logger *util.Logger

	// Metrics, when set, counts gateway reconnects.
	Metrics *metrics.Collector

	mu        sync.Mutex
	connected bool
}

// NewSSHDialer creates a dialer over gw.  Nothing is dialled until the
// first Dial.
func NewSSHDialer(gw tunnel.Tunnel, logger *util.Logger) *SSHDialer {
	return &SSHDialer{gw: gw, logger: logger}
}

func (d *SSHDialer) ensure(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected && d.gw.IsAlive() {
		return nil
	}
	if d.connected {
		d.logger.Warn("SSH gateway went away; reconnecting")
		_ = d.gw.Close()
		d.connected = false
		d.Metrics.GatewayReconnect()
	}

	d.logger.Verbose("establishing SSH gateway")
	if err := d.gw.Connect(ctx); err != nil {
		return fmt.Errorf("tunnel: %w", err)
	}
	d.connected = true
	d.logger.Verbose("SSH gateway established")
	return nil
}

// Dial opens a channel to address through the gateway.
func (d *SSHDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	if err := d.ensure(ctx); err != nil {
		return nil, err
	}
	return d.gw.Dial(ctx, network, address)
}

// Listen binds address on the gateway host.  It has the signature of
// ListenDialer.Listen.
func (d *SSHDialer) Listen(ctx context.Context, network, address string) (net.Listener, error) {
	if err := d.ensure(ctx); err != nil {
		return nil, err
	}
	return d.gw.Listen(ctx, network, address)
}

// Close tears down the gateway.
func (d *SSHDialer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}
	d.connected = false
	return d.gw.Close()
}
