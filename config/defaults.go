package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, config file parsing, and environment variable
// loading.

const (
	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultConnTimeout bounds a dial when -w is not given.
	DefaultConnTimeout = 30 * time.Second

	// DefaultKeepAliveSec is the SSH gateway keepalive interval.
	DefaultKeepAliveSec = 30

	// DefaultEscapeChar starts an escape command at the beginning of a
	// line, as in ssh(1).
	DefaultEscapeChar = "~"

	// DefaultNewline is how a typed newline is sent.
	DefaultNewline = "lf"

	// DefaultLogMaxSizeMB is the rotation size of --log-file.
	DefaultLogMaxSizeMB = 10

	// EnvPrefix prefixes every environment override (BGNC_NO_DNS, ...).
	EnvPrefix = "BGNC"
)

// Default returns a Config populated with defaults.
func Default() *Config {
	return &Config{
		Newline:      DefaultNewline,
		EscapeChar:   DefaultEscapeChar,
		LogMaxSizeMB: DefaultLogMaxSizeMB,
		KeepAliveSec: DefaultKeepAliveSec,
	}
}
