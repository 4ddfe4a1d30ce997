package core

import (
	"strings"
	"testing"

	"bgnc/config"
	"bgnc/internal/metrics"
	"bgnc/internal/transport"
	"bgnc/util"
)

func build(t *testing.T, cfg *config.Config) *TerminalMode {
	t.Helper()
	if err := cfg.Finalize(); err != nil {
		t.Fatal(err)
	}
	mode, err := Build(cfg, util.NewLogger(0), metrics.New())
	if err != nil {
		t.Fatal(err)
	}
	tm, ok := mode.(*TerminalMode)
	if !ok {
		t.Fatalf("expected *TerminalMode, got %T", mode)
	}
	return tm
}

func TestBuild_TCP(t *testing.T) {
	cfg := config.Default()
	cfg.Host, cfg.Port, cfg.LocalPort = "127.0.0.1", 80, 5555

	tm := build(t, cfg)
	d, ok := tm.Target.Dialer.(*transport.TCPDialer)
	if !ok {
		t.Fatalf("dialer = %T, want *TCPDialer", tm.Target.Dialer)
	}
	if d.LocalPort != 5555 {
		t.Errorf("local port = %d", d.LocalPort)
	}
	if d.Timeout != config.DefaultConnTimeout {
		t.Errorf("timeout = %v, want default", d.Timeout)
	}
	if tm.Target.Network != "tcp" || tm.Target.Address != "127.0.0.1:80" || tm.Target.Name != "127.0.0.1:80" {
		t.Errorf("target = %+v", tm.Target)
	}
}

func TestBuild_UDP(t *testing.T) {
	cfg := config.Default()
	cfg.Host, cfg.Port, cfg.UDP, cfg.TimeoutSec = "127.0.0.1", 53, true, 3

	tm := build(t, cfg)
	d, ok := tm.Target.Dialer.(*transport.UDPDialer)
	if !ok {
		t.Fatalf("dialer = %T, want *UDPDialer", tm.Target.Dialer)
	}
	if d.Timeout.Seconds() != 3 {
		t.Errorf("timeout = %v", d.Timeout)
	}
	if tm.Target.Network != "udp" {
		t.Errorf("network = %q", tm.Target.Network)
	}
}

func TestBuild_WebSocket(t *testing.T) {
	cfg := config.Default()
	cfg.URL = "wss://example.com/stream"

	tm := build(t, cfg)
	if _, ok := tm.Target.Dialer.(*transport.WSDialer); !ok {
		t.Fatalf("dialer = %T, want *WSDialer", tm.Target.Dialer)
	}
	if tm.Target.Address != cfg.URL {
		t.Errorf("address = %q", tm.Target.Address)
	}
	if !strings.Contains(tm.Describe(), "websocket") {
		t.Errorf("Describe = %q", tm.Describe())
	}
}

func TestBuild_Listen(t *testing.T) {
	cfg := config.Default()
	cfg.Listen, cfg.LocalPort = true, 4444

	tm := build(t, cfg)
	d, ok := tm.Target.Dialer.(*transport.ListenDialer)
	if !ok {
		t.Fatalf("dialer = %T, want *ListenDialer", tm.Target.Dialer)
	}
	if d.Timeout != 0 {
		t.Errorf("listen should wait indefinitely without -w, got %v", d.Timeout)
	}
	if tm.Target.Address != ":4444" {
		t.Errorf("address = %q", tm.Target.Address)
	}
}

func TestBuild_Tunnel(t *testing.T) {
	cfg := config.Default()
	cfg.Host, cfg.Port, cfg.TunnelSpec = "db.internal", 5432, "ops@bastion:2222"

	tm := build(t, cfg)
	if _, ok := tm.Target.Dialer.(*transport.SSHDialer); !ok {
		t.Fatalf("dialer = %T, want *SSHDialer", tm.Target.Dialer)
	}
	if tm.Target.Address != "db.internal:5432" {
		t.Errorf("address = %q", tm.Target.Address)
	}
}

func TestBuild_ListenThroughTunnel(t *testing.T) {
	cfg := config.Default()
	cfg.Listen, cfg.LocalPort, cfg.TunnelSpec = true, 8080, "bastion"

	tm := build(t, cfg)
	d, ok := tm.Target.Dialer.(*remoteListenDialer)
	if !ok {
		t.Fatalf("dialer = %T, want *remoteListenDialer", tm.Target.Dialer)
	}
	if d.Listen == nil {
		t.Error("remote listen hook not set")
	}
	if tm.Target.Name != "peer on bastion:8080" {
		t.Errorf("name = %q", tm.Target.Name)
	}
	// Nothing has been dialled, so closing is a no-op.
	if err := d.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestBuild_NoDNS(t *testing.T) {
	cfg := config.Default()
	cfg.Host, cfg.Port, cfg.NoDNS = "example.com", 80, true
	if _, err := Build(cfg, util.NewLogger(0), nil); err == nil {
		t.Fatal("expected error for hostname with -n")
	}

	cfg.Host = "127.0.0.1"
	if _, err := Build(cfg, util.NewLogger(0), nil); err != nil {
		t.Fatalf("numeric host with -n: %v", err)
	}
}

func TestBuild_TerminalSettings(t *testing.T) {
	cfg := config.Default()
	cfg.Host, cfg.Port = "127.0.0.1", 80
	cfg.Newline, cfg.EscapeChar, cfg.KeepOpen = "crlf", "^", true

	tm := build(t, cfg)
	if string(tm.Newline) != "\r\n" {
		t.Errorf("newline = %q", tm.Newline)
	}
	if !tm.EscapeEnabled || tm.Escape != '^' {
		t.Errorf("escape = %q enabled=%t", tm.Escape, tm.EscapeEnabled)
	}
	if !tm.KeepOpen {
		t.Error("keep-open not carried over")
	}

	cfg.NoEscape = true
	if tm := build(t, cfg); tm.EscapeEnabled {
		t.Error("escapes should be disabled with --no-escape")
	}
}
