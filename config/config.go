// Package config defines the runtime configuration for bgnc and
// provides helpers for parsing tunnel specifications and ports.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	ncerr "bgnc/internal/errors"
)

// Config holds every tuneable for a single bgnc session.  Fields with a
// mapstructure tag can come from flags, BGNC_* environment variables or
// a config file; the rest are positional or derived by Finalize.
type Config struct {
	// ── Connection ───────────────────────────────────────────────────
	Host       string `mapstructure:"-"`
	Port       int    `mapstructure:"-"` // destination port
	URL        string `mapstructure:"-"` // ws:// or wss:// target
	LocalPort  int    `mapstructure:"port"`
	Listen     bool   `mapstructure:"listen"`
	UDP        bool   `mapstructure:"udp"`
	NoDNS      bool   `mapstructure:"no-dns"`
	TimeoutSec int    `mapstructure:"timeout"`
	KeepOpen   bool   `mapstructure:"keep-open"`

	Timeout time.Duration `mapstructure:"-"`

	// ── SSH tunnel ───────────────────────────────────────────────────
	TunnelSpec     string `mapstructure:"tunnel"` // raw user@host[:port] from -T
	SSHKeyPath     string `mapstructure:"ssh-key"`
	SSHPassword    bool   `mapstructure:"ssh-password"` // true → prompt interactively
	UseSSHAgent    bool   `mapstructure:"ssh-agent"`
	StrictHostKey  bool   `mapstructure:"strict-hostkey"`
	KnownHostsPath string `mapstructure:"known-hosts"`
	KeepAliveSec   int    `mapstructure:"ssh-keepalive"` // 0 disables probes

	TunnelEnabled bool   `mapstructure:"-"`
	TunnelUser    string `mapstructure:"-"`
	TunnelHost    string `mapstructure:"-"`
	TunnelPort    int    `mapstructure:"-"`

	// ── Terminal ─────────────────────────────────────────────────────
	Newline    string `mapstructure:"newline"`     // lf, cr or crlf
	EscapeChar string `mapstructure:"escape-char"` // single character
	NoEscape   bool   `mapstructure:"no-escape"`

	// ── Output ───────────────────────────────────────────────────────
	Verbose      int    `mapstructure:"verbose"`
	LogFile      string `mapstructure:"log-file"`
	LogMaxSizeMB int    `mapstructure:"log-max-size"`
	MetricsAddr  string `mapstructure:"metrics-addr"`
	DryRun       bool   `mapstructure:"dry-run"`
}

// Network returns the dial network for the configured transport.
func (c *Config) Network() string {
	if c.UDP {
		return "udp"
	}
	return "tcp"
}

// NewlineBytes returns the byte sequence a typed newline is sent as.
func (c *Config) NewlineBytes() []byte {
	switch c.Newline {
	case "cr":
		return []byte("\r")
	case "crlf":
		return []byte("\r\n")
	default:
		return []byte("\n")
	}
}

// Escape returns the escape byte and whether escapes are enabled.
func (c *Config) Escape() (byte, bool) {
	if c.NoEscape || c.EscapeChar == "" {
		return 0, false
	}
	return c.EscapeChar[0], true
}

// Finalize derives the computed fields from the raw ones.  It is called
// by Load and must run before Validate.
func (c *Config) Finalize() error {
	c.Timeout = time.Duration(c.TimeoutSec) * time.Second

	c.TunnelEnabled = c.TunnelSpec != ""
	if c.TunnelEnabled {
		user, host, port, err := ParseTunnelSpec(c.TunnelSpec)
		if err != nil {
			return &ncerr.ConfigError{Field: "tunnel", Value: c.TunnelSpec, Message: err.Error()}
		}
		c.TunnelUser, c.TunnelHost, c.TunnelPort = user, host, port
	}
	return nil
}

// ── Port helpers ─────────────────────────────────────────────────────

// ParsePort accepts a numeric port in 1-65535.
func ParsePort(spec string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(spec))
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", spec)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range 1-65535", port)
	}
	return port, nil
}

// ── Tunnel-spec parser ───────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q – expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid tunnel port %q", m[3])
		}
	}
	if host == "" {
		return "", "", 0, fmt.Errorf("tunnel host is required")
	}
	return user, host, port, nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	switch {
	case c.URL != "":
		if c.Listen || c.UDP || c.TunnelEnabled {
			return &ncerr.ConfigError{
				Field:   "url",
				Value:   c.URL,
				Message: "WebSocket targets cannot be combined with -l, -u or -T",
			}
		}
	case c.Listen:
		if c.LocalPort == 0 {
			return &ncerr.ConfigError{
				Field:   "port",
				Message: "listen mode requires a local port",
				Hint:    "bgnc -l -p 4444",
			}
		}
		if c.UDP {
			return &ncerr.ConfigError{Field: "udp", Message: "listen mode accepts TCP peers only"}
		}
	default:
		if c.Host == "" {
			return &ncerr.ConfigError{
				Field:   "host",
				Message: "hostname is required",
				Hint:    "bgnc host port, or bgnc ws://host/path",
			}
		}
		if c.Port == 0 {
			return &ncerr.ConfigError{Field: "port", Message: "destination port is required"}
		}
	}

	if c.UDP && c.TunnelEnabled {
		return &ncerr.ConfigError{Field: "udp", Message: "UDP is not supported through SSH tunnels"}
	}
	if c.TunnelEnabled && c.TunnelHost == "" {
		return &ncerr.ConfigError{Field: "tunnel", Value: c.TunnelSpec, Message: "tunnel host is required"}
	}
	if c.LocalPort < 0 || c.LocalPort > 65535 {
		return &ncerr.ConfigError{
			Field:   "port",
			Value:   c.LocalPort,
			Message: "out of range 1-65535",
			Hint:    "use a port between 1 and 65535",
		}
	}
	if c.TimeoutSec < 0 {
		return &ncerr.ConfigError{Field: "timeout", Value: c.TimeoutSec, Message: "must not be negative"}
	}
	if c.KeepAliveSec < 0 {
		return &ncerr.ConfigError{Field: "ssh-keepalive", Value: c.KeepAliveSec, Message: "must not be negative"}
	}

	switch c.Newline {
	case "lf", "cr", "crlf":
	default:
		return &ncerr.ConfigError{
			Field:   "newline",
			Value:   c.Newline,
			Message: "unknown newline mode",
			Hint:    "use lf, cr or crlf",
		}
	}
	if !c.NoEscape && len(c.EscapeChar) != 1 {
		return &ncerr.ConfigError{
			Field:   "escape-char",
			Value:   c.EscapeChar,
			Message: "must be a single character",
			Hint:    "use --no-escape to disable escape commands",
		}
	}
	if c.LogMaxSizeMB < 0 {
		return &ncerr.ConfigError{Field: "log-max-size", Value: c.LogMaxSizeMB, Message: "must not be negative"}
	}
	return nil
}
