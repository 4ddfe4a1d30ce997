package tunnel

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	ncerr "bgnc/internal/errors"
	"bgnc/util"
)

// SSHConfig holds everything needed to dial an SSH gateway.
type SSHConfig struct {
	User          string
	Host          string
	Port          int
	KeyPath       string
	PromptPass    bool
	UseAgent      bool
	StrictHostKey bool
	KnownHosts    string
	ConnTimeout   time.Duration

	// KeepAlive is the interval between keepalive@openssh.com probes.
	// Zero disables them.
	KeepAlive time.Duration

	// Prompt reads a secret from the user.  Nil reads from the
	// controlling terminal.
	Prompt func(label string) ([]byte, error)
}

// Gateway implements [Tunnel] over one ssh.Client.
type Gateway struct {
	config *SSHConfig
	logger *util.Logger

	mu       sync.RWMutex
	client   *ssh.Client
	alive    bool
	forwards <-chan ssh.NewChannel
	stop     chan struct{}
}

// NewGateway creates a gateway that is ready to [Gateway.Connect].
func NewGateway(cfg *SSHConfig, logger *util.Logger) *Gateway {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.ConnTimeout == 0 {
		cfg.ConnTimeout = 30 * time.Second
	}
	return &Gateway{config: cfg, logger: logger}
}

// Addr returns host:port of the gateway.
func (g *Gateway) Addr() string {
	return net.JoinHostPort(g.config.Host, strconv.Itoa(g.config.Port))
}

// Connect dials the gateway and completes the handshake.
func (g *Gateway) Connect(ctx context.Context) error {
	authMethods, err := BuildAuthMethods(g.config)
	if err != nil {
		return ncerr.WrapSSH("auth", g.config.Host, g.config.Port, err)
	}

	hkCallback, err := hostKeyCallback(g.config)
	if err != nil {
		return ncerr.WrapSSH("hostkey", g.config.Host, g.config.Port, err)
	}

	sshCfg := &ssh.ClientConfig{
		User:            g.config.User,
		Auth:            authMethods,
		HostKeyCallback: hkCallback,
		Timeout:         g.config.ConnTimeout,
		BannerCallback: func(message string) error {
			g.logger.Info("%s", message)
			return nil
		},
	}

	addr := g.Addr()
	g.logger.Debug("SSH: dialing %s as %s", addr, g.config.User)

	dialer := net.Dialer{Timeout: g.config.ConnTimeout}
	tcpConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return ncerr.Wrap("dial", addr, err)
	}

	// The handshake has no context parameter; closing the socket
	// aborts it.
	handshakeDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			tcpConn.Close()
		case <-handshakeDone:
		}
	}()
	sshConn, chans, reqs, err := ssh.NewClientConn(tcpConn, addr, sshCfg)
	close(handshakeDone)
	if err != nil {
		tcpConn.Close()
		return ncerr.WrapSSH("handshake", g.config.Host, g.config.Port, err)
	}

	client := ssh.NewClient(sshConn, chans, reqs)
	// Registered up front: x/crypto/ssh only lets one handler claim a
	// channel type.
	forwards := client.HandleChannelOpen("forwarded-tcpip")
	stop := make(chan struct{})

	g.mu.Lock()
	if g.stop != nil {
		close(g.stop)
	}
	g.client = client
	g.alive = true
	g.forwards = forwards
	g.stop = stop
	g.mu.Unlock()

	go g.monitor(client)
	if g.config.KeepAlive > 0 {
		go g.keepalive(client, stop)
	}
	return nil
}

// Dial opens a direct-tcpip channel to address.
func (g *Gateway) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	g.mu.RLock()
	client, alive := g.client, g.alive
	g.mu.RUnlock()

	if !alive || client == nil {
		return nil, ncerr.ErrGatewayClosed
	}

	g.logger.Debug("tunnel: dialing %s %s", network, address)
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		c, err := client.Dial(network, address)
		ch <- result{c, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("tunnel dial %s: %w", address, r.err)
		}
		return r.conn, nil
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.conn != nil {
				r.conn.Close()
			}
		}()
		return nil, fmt.Errorf("tunnel dial %s: %w", address, ctx.Err())
	}
}

// Listen requests a remote forward of address on the gateway.
func (g *Gateway) Listen(_ context.Context, network, address string) (net.Listener, error) {
	if network != "tcp" && network != "" {
		return nil, fmt.Errorf("remote listen on %s: %w", network, ncerr.ErrUnsupportedTransport)
	}

	g.mu.RLock()
	client, alive, forwards := g.client, g.alive, g.forwards
	g.mu.RUnlock()
	if !alive || client == nil {
		return nil, ncerr.ErrGatewayClosed
	}

	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return nil, fmt.Errorf("remote listen %s: %w", address, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("remote listen %s: bad port", address)
	}

	g.logger.Debug("tunnel: requesting remote forward %s", address)
	return listenRemote(client, forwards, host, port)
}

// Close shuts down the SSH connection.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.alive = false
	if g.stop != nil {
		close(g.stop)
		g.stop = nil
	}
	if g.client != nil {
		err := g.client.Close()
		g.client = nil
		return err
	}
	return nil
}

// IsAlive reports whether the gateway is still connected.
func (g *Gateway) IsAlive() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.alive
}

func (g *Gateway) markDead(client *ssh.Client) {
	g.mu.Lock()
	if g.client == client {
		g.alive = false
	}
	g.mu.Unlock()
}

// monitor blocks until the SSH connection closes and flips the alive flag.
func (g *Gateway) monitor(client *ssh.Client) {
	err := client.Wait()
	g.markDead(client)

	if err != nil {
		g.logger.Debug("SSH gateway closed: %v", err)
	} else {
		g.logger.Debug("SSH gateway closed")
	}
}

// keepalive probes the server periodically and closes the client when
// a probe fails, so the next Dial reconnects instead of hanging.
func (g *Gateway) keepalive(client *ssh.Client, stop <-chan struct{}) {
	ticker := time.NewTicker(g.config.KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, _, err := client.SendRequest("keepalive@openssh.com", true, nil); err != nil {
				g.logger.Warn("SSH keepalive failed: %v", err)
				g.markDead(client)
				client.Close()
				return
			}
			g.logger.Debug("SSH keepalive OK")
		}
	}
}

var _ Tunnel = (*Gateway)(nil)
