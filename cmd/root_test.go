package cmd

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"testing"

	"bgnc/config"
	"bgnc/util"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = prev })
	return &buf
}

func TestExecute_Version(t *testing.T) {
	out := capture(t)
	if err := Execute(context.Background(), []string{"--version"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out.String(), "bgnc ") {
		t.Errorf("output = %q", out.String())
	}
}

func TestExecute_Help(t *testing.T) {
	for _, args := range [][]string{{"--help"}, {}} {
		name := "no-args"
		if len(args) > 0 {
			name = args[0]
		}
		t.Run(name, func(t *testing.T) {
			out := capture(t)
			if err := Execute(context.Background(), args); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(out.String(), "--escape-char") {
				t.Errorf("usage lacks flag list: %q", out.String())
			}
		})
	}
}

func TestExecute_DryRun(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"connect", []string{"--dry-run", "127.0.0.1", "80"}, "127.0.0.1:80 (tcp)"},
		{"udp", []string{"--dry-run", "-u", "127.0.0.1", "53"}, "(udp)"},
		{"listen", []string{"--dry-run", "-l", "-p", "8080"}, "peer on :8080"},
		{"websocket", []string{"--dry-run", "ws://example.com/feed"}, "(websocket)"},
		{"tunnel", []string{"--dry-run", "-T", "ops@bastion", "db", "5432"}, "SSHDialer"},
		{"keep-open", []string{"--dry-run", "-k", "127.0.0.1", "80"}, "keep-open=true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := capture(t)
			if err := Execute(context.Background(), tt.args); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(out.String(), tt.want) {
				t.Errorf("output %q should contain %q", out.String(), tt.want)
			}
		})
	}
}

func TestExecute_DryRunFromEnv(t *testing.T) {
	t.Setenv("BGNC_UDP", "true")
	out := capture(t)
	if err := Execute(context.Background(), []string{"--dry-run", "127.0.0.1", "53"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "(udp)") {
		t.Errorf("BGNC_UDP ignored: %q", out.String())
	}
}

func TestExecute_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown flag", []string{"--nonexistent-flag"}, "unknown flag"},
		{"listen without port", []string{"-l", "--dry-run"}, "listen mode requires a local port"},
		{"listen with host", []string{"-l", "-p", "1", "host"}, "no positional"},
		{"missing port", []string{"example.com"}, "port required"},
		{"bad port", []string{"example.com", "http"}, "invalid port"},
		{"too many", []string{"a", "1", "2"}, "too many"},
		{"no dns", []string{"-n", "--dry-run", "example.com", "80"}, "DNS disabled"},
		{"bad newline", []string{"--newline", "lfcr", "--dry-run", "h", "1"}, "newline"},
		{"bad tunnel", []string{"-T", "@:x", "--dry-run", "h", "1"}, "tunnel"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			capture(t)
			err := Execute(context.Background(), tt.args)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should contain %q", err, tt.want)
			}
		})
	}
}

func TestParsePositional(t *testing.T) {
	cfg := config.Default()
	if err := parsePositional(cfg, []string{"wss://example.com/x"}); err != nil {
		t.Fatal(err)
	}
	if cfg.URL != "wss://example.com/x" || cfg.Host != "" {
		t.Errorf("cfg = %+v", cfg)
	}

	cfg = config.Default()
	if err := parsePositional(cfg, []string{"example.com", "443"}); err != nil {
		t.Fatal(err)
	}
	if cfg.Host != "example.com" || cfg.Port != 443 {
		t.Errorf("host/port = %s/%d", cfg.Host, cfg.Port)
	}
}

// A connect failure surfaces as Execute's error.
func TestExecute_ConnectRefused(t *testing.T) {
	port, err := util.FindFreePort()
	if err != nil {
		t.Fatal(err)
	}

	capture(t)
	if err := Execute(context.Background(), []string{"-w", "2", "127.0.0.1", strconv.Itoa(port)}); err == nil {
		t.Fatal("expected a connect error")
	}
}
