package tunnel

// Remote port forwarding.  ssh.Client.Listen keys forwarded-tcpip
// channels by the exact bind address it sent, and some servers echo a
// different one back ("0.0.0.0" for ""), so every channel would be
// rejected.  The gateway claims forwarded-tcpip itself and this
// listener matches channels on the port alone.

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

// tcpipForward is the payload of "tcpip-forward" and
// "cancel-tcpip-forward" (RFC 4254 §7.1).
type tcpipForward struct {
	Addr string
	Port uint32
}

// forwardedTCPIP is the channel-open payload of "forwarded-tcpip"
// (RFC 4254 §7.2).
type forwardedTCPIP struct {
	Addr       string
	Port       uint32
	OriginAddr string
	OriginPort uint32
}

// remoteListener is a [net.Listener] whose connections arrive as SSH
// forwarded-tcpip channels.
type remoteListener struct {
	client   *ssh.Client
	host     string
	port     uint32
	incoming <-chan ssh.NewChannel
	done     chan struct{}
	once     sync.Once
}

func listenRemote(client *ssh.Client, incoming <-chan ssh.NewChannel, host string, port int) (net.Listener, error) {
	if incoming == nil {
		return nil, errors.New("forwarded-tcpip handler unavailable")
	}
	if port < 0 || port > 65535 {
		return nil, fmt.Errorf("remote listen: port %d out of range", port)
	}

	req := tcpipForward{Addr: host, Port: uint32(port)}
	ok, reply, err := client.SendRequest("tcpip-forward", true, ssh.Marshal(&req))
	if err != nil {
		return nil, fmt.Errorf("tcpip-forward: %w", err)
	}
	if !ok {
		return nil, errors.New("tcpip-forward request denied by gateway")
	}

	bound := uint32(port)
	if port == 0 && len(reply) >= 4 {
		var p struct{ Port uint32 }
		if err := ssh.Unmarshal(reply, &p); err == nil {
			bound = p.Port
		}
	}

	return &remoteListener{
		client:   client,
		host:     host,
		port:     bound,
		incoming: incoming,
		done:     make(chan struct{}),
	}, nil
}

// Accept waits for the next forwarded connection.
func (l *remoteListener) Accept() (net.Conn, error) {
	for {
		select {
		case <-l.done:
			return nil, net.ErrClosed
		case nc, ok := <-l.incoming:
			if !ok {
				return nil, net.ErrClosed
			}

			var payload forwardedTCPIP
			if err := ssh.Unmarshal(nc.ExtraData(), &payload); err != nil {
				_ = nc.Reject(ssh.ConnectionFailed, "malformed forwarded-tcpip payload")
				continue
			}
			if payload.Port != l.port {
				_ = nc.Reject(ssh.Prohibited, "no forward for port "+strconv.Itoa(int(payload.Port)))
				continue
			}

			ch, reqs, err := nc.Accept()
			if err != nil {
				return nil, fmt.Errorf("channel accept: %w", err)
			}
			go ssh.DiscardRequests(reqs)

			raddr := &net.TCPAddr{
				IP:   net.ParseIP(payload.OriginAddr),
				Port: int(payload.OriginPort),
			}
			return &chanConn{Channel: ch, laddr: l.Addr(), raddr: raddr}, nil
		}
	}
}

// Close cancels the forward on the gateway and unblocks Accept.
func (l *remoteListener) Close() error {
	l.once.Do(func() {
		close(l.done)
		req := tcpipForward{Addr: l.host, Port: l.port}
		// The gateway may already be gone.
		l.client.SendRequest("cancel-tcpip-forward", true, ssh.Marshal(&req)) //nolint:errcheck
	})
	return nil
}

func (l *remoteListener) Addr() net.Addr {
	return &net.TCPAddr{IP: net.ParseIP(l.host), Port: int(l.port)}
}

// chanConn adapts an [ssh.Channel] to [net.Conn].  Deadlines are not
// supported by SSH channels and are ignored.
type chanConn struct {
	ssh.Channel
	laddr net.Addr
	raddr net.Addr
}

func (c *chanConn) LocalAddr() net.Addr                { return c.laddr }
func (c *chanConn) RemoteAddr() net.Addr               { return c.raddr }
func (c *chanConn) SetDeadline(_ time.Time) error      { return nil }
func (c *chanConn) SetReadDeadline(_ time.Time) error  { return nil }
func (c *chanConn) SetWriteDeadline(_ time.Time) error { return nil }
