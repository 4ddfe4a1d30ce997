package core

import (
	"net"
	"os"
	"strconv"
	"time"

	"bgnc/config"
	"bgnc/internal/metrics"
	"bgnc/internal/transport"
	"bgnc/tunnel"
	"bgnc/util"
)

// Target is what every connect and reconnect of one invocation dials.
// The Dialer outlives individual sockets so a reconnect can reuse an
// SSH gateway.
type Target struct {
	Dialer  transport.Dialer
	Network string
	Address string
	Name    string
}

// Build constructs the Mode for cfg.  cfg must already be validated.
func Build(cfg *config.Config, logger *util.Logger, collector *metrics.Collector) (Mode, error) {
	target, err := buildTarget(cfg, logger, collector)
	if err != nil {
		return nil, err
	}

	esc, escEnabled := cfg.Escape()
	return &TerminalMode{
		Target:        target,
		Newline:       cfg.NewlineBytes(),
		Escape:        esc,
		EscapeEnabled: escEnabled,
		KeepOpen:      cfg.KeepOpen,
		Logger:        logger,
		Metrics:       collector,
	}, nil
}

func buildTarget(cfg *config.Config, logger *util.Logger, collector *metrics.Collector) (Target, error) {
	switch {
	case cfg.URL != "":
		return Target{
			Dialer:  &transport.WSDialer{Timeout: dialTimeout(cfg)},
			Address: cfg.URL,
			Name:    cfg.URL,
		}, nil

	case cfg.Listen:
		address := net.JoinHostPort("", strconv.Itoa(cfg.LocalPort))
		ld := &transport.ListenDialer{Timeout: cfg.Timeout, Logger: logger}
		if !cfg.TunnelEnabled {
			return Target{
				Dialer:  ld,
				Network: "tcp",
				Address: address,
				Name:    "peer on " + address,
			}, nil
		}
		gw := buildSSHDialer(cfg, logger, collector)
		ld.Listen = gw.Listen
		return Target{
			Dialer:  &remoteListenDialer{ListenDialer: ld, gateway: gw},
			Network: "tcp",
			Address: address,
			Name:    "peer on " + util.FormatAddr(cfg.TunnelHost, cfg.LocalPort),
		}, nil
	}

	address, err := util.ResolveAddr(cfg.Host, cfg.Port, cfg.NoDNS)
	if err != nil {
		return Target{}, err
	}

	var d transport.Dialer
	switch {
	case cfg.TunnelEnabled:
		d = buildSSHDialer(cfg, logger, collector)
	case cfg.UDP:
		d = &transport.UDPDialer{Timeout: dialTimeout(cfg), LocalPort: cfg.LocalPort}
	default:
		d = &transport.TCPDialer{Timeout: dialTimeout(cfg), LocalPort: cfg.LocalPort}
	}
	return Target{
		Dialer:  d,
		Network: cfg.Network(),
		Address: address,
		Name:    address,
	}, nil
}

func buildSSHDialer(cfg *config.Config, logger *util.Logger, collector *metrics.Collector) *transport.SSHDialer {
	user := cfg.TunnelUser
	if user == "" {
		user = os.Getenv("USER")
	}
	gw := tunnel.NewGateway(&tunnel.SSHConfig{
		User:          user,
		Host:          cfg.TunnelHost,
		Port:          cfg.TunnelPort,
		KeyPath:       cfg.SSHKeyPath,
		PromptPass:    cfg.SSHPassword,
		UseAgent:      cfg.UseSSHAgent,
		StrictHostKey: cfg.StrictHostKey,
		KnownHosts:    cfg.KnownHostsPath,
		ConnTimeout:   dialTimeout(cfg),
		KeepAlive:     time.Duration(cfg.KeepAliveSec) * time.Second,
	}, logger)

	d := transport.NewSSHDialer(gw, logger)
	d.Metrics = collector
	return d
}

// dialTimeout is -w, or the default when none was given.  Listen mode
// uses cfg.Timeout directly: zero waits for a peer indefinitely.
func dialTimeout(cfg *config.Config) time.Duration {
	if cfg.Timeout > 0 {
		return cfg.Timeout
	}
	return config.DefaultConnTimeout
}

// remoteListenDialer listens on the SSH gateway host and owns the
// gateway's lifetime.
type remoteListenDialer struct {
	*transport.ListenDialer
	gateway *transport.SSHDialer
}

func (d *remoteListenDialer) Close() error { return d.gateway.Close() }
