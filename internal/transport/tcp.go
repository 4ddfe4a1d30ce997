package transport

import (
	"context"
	"fmt"
	"net"
	"time"
)

// TCPDialer establishes plain TCP connections, optionally binding to a
// specific source port.
type TCPDialer struct {
	Timeout   time.Duration
	LocalPort int // optional source-port binding (0 = ephemeral)
}

// Dial connects to address over TCP.  The network argument may narrow
// the family ("tcp4", "tcp6"); anything else falls back to "tcp".
func (d *TCPDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	switch network {
	case "tcp", "tcp4", "tcp6":
	default:
		network = "tcp"
	}

	dialer := net.Dialer{Timeout: d.Timeout}
	if d.LocalPort > 0 {
		a, err := net.ResolveTCPAddr(network, fmt.Sprintf(":%d", d.LocalPort))
		if err != nil {
			return nil, fmt.Errorf("resolve local addr: %w", err)
		}
		dialer.LocalAddr = a
	}

	return dialer.DialContext(ctx, network, address)
}

// Close is a no-op for stateless TCP dialers.
func (d *TCPDialer) Close() error { return nil }

// UDPDialer "connects" a UDP socket to a fixed peer so that reads only
// see datagrams from it and writes need no destination.
type UDPDialer struct {
	Timeout   time.Duration
	LocalPort int
}

// Dial binds a UDP socket to address.
func (d *UDPDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	switch network {
	case "udp", "udp4", "udp6":
	default:
		network = "udp"
	}

	dialer := net.Dialer{Timeout: d.Timeout}
	if d.LocalPort > 0 {
		a, err := net.ResolveUDPAddr(network, fmt.Sprintf(":%d", d.LocalPort))
		if err != nil {
			return nil, fmt.Errorf("resolve local addr: %w", err)
		}
		dialer.LocalAddr = a
	}

	return dialer.DialContext(ctx, network, address)
}

// Close is a no-op.
func (d *UDPDialer) Close() error { return nil }
