// Package cmd wires up the CLI flags and dispatches to the core.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"

	"bgnc/config"
	"bgnc/internal/core"
	"bgnc/internal/metrics"
	"bgnc/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X bgnc/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// stdout is where --version, --dry-run and usage go.  Tests replace it.
var stdout io.Writer = os.Stdout //nolint:gochecknoglobals

// newFlagSet declares every flag.  Names match the config keys so viper
// can bind the set directly; defaults come from config.Default.
func newFlagSet() *flag.FlagSet {
	def := config.Default()
	fs := flag.NewFlagSet("bgnc", flag.ContinueOnError)

	// ── connection ───────────────────────────────────────────────
	fs.BoolP("listen", "l", false, "Listen for one inbound peer instead of connecting")
	fs.IntP("port", "p", 0, "Local port (listen port with -l, source port otherwise)")
	fs.BoolP("udp", "u", false, "UDP mode")
	fs.BoolP("no-dns", "n", false, "Numeric-only, no DNS resolution")
	fs.IntP("timeout", "w", 0, "Connect timeout in seconds (listen: wait for a peer)")
	fs.BoolP("keep-open", "k", false, "Stay running after the stream ends so it can be reconnected")

	// ── SSH tunnel ───────────────────────────────────────────────
	fs.StringP("tunnel", "T", "", "Carry the stream through SSH gateway [user@]host[:port]")
	fs.String("ssh-key", "", "SSH private key file")
	fs.Bool("ssh-password", false, "Prompt for SSH password")
	fs.Bool("ssh-agent", false, "Use SSH agent")
	fs.Bool("strict-hostkey", false, "Verify SSH host keys")
	fs.String("known-hosts", "", "Custom known_hosts path")
	fs.Int("ssh-keepalive", def.KeepAliveSec, "SSH keepalive interval in seconds (0 disables)")

	// ── terminal ─────────────────────────────────────────────────
	fs.String("newline", def.Newline, "Send typed newlines as lf, cr or crlf")
	fs.String("escape-char", def.EscapeChar, "Escape character for ~. ~d ~a ~r ~s ~?")
	fs.Bool("no-escape", false, "Disable escape commands")

	// ── output ───────────────────────────────────────────────────
	fs.CountP("verbose", "v", "Increase verbosity (repeatable)")
	fs.String("log-file", "", "Also write logs to this file (rotated)")
	fs.Int("log-max-size", def.LogMaxSizeMB, "Log file rotation size in MB")
	fs.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	fs.Bool("dry-run", false, "Validate and print the plan without connecting")

	fs.String("config", "", "Config file (yaml, toml or json)")
	fs.Bool("version", false, "Print version and exit")
	fs.BoolP("help", "h", false, "Show this help")
	return fs
}

// Execute parses args and runs bgnc.
func Execute(ctx context.Context, args []string) error {
	fs := newFlagSet()
	fs.Usage = func() { printUsage(fs) }

	if err := fs.Parse(args); err != nil {
		return err
	}

	showHelp, _ := fs.GetBool("help")
	if showHelp || len(args) == 0 {
		printUsage(fs)
		return nil
	}
	if v, _ := fs.GetBool("version"); v {
		fmt.Fprintf(stdout, "bgnc %s\n", version)
		return nil
	}

	configPath, _ := fs.GetString("config")
	cfg, err := config.Load(fs, configPath)
	if err != nil {
		return err
	}
	if err := parsePositional(cfg, fs.Args()); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// ── build components ─────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)
	if cfg.LogFile != "" {
		logger.SetFile(cfg.LogFile, cfg.LogMaxSizeMB)
	}
	defer logger.Sync() //nolint:errcheck

	collector := metrics.New()
	mode, err := core.Build(cfg, logger, collector)
	if err != nil {
		return err
	}

	tm, _ := mode.(*core.TerminalMode)
	if cfg.DryRun {
		if tm != nil {
			fmt.Fprintf(stdout, "dry run: %s\n", tm.Describe())
		}
		return nil
	}

	if cfg.MetricsAddr != "" {
		srv := &metrics.Server{Addr: cfg.MetricsAddr, Collector: collector, Logger: logger}
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}

	if tm != nil {
		toggle := make(chan struct{}, 1)
		tm.Toggle = toggle
		go watchSignals(ctx, toggle, logger)
	}
	return mode.Run(ctx)
}

// ── helpers ──────────────────────────────────────────────────────────

func parsePositional(cfg *config.Config, remaining []string) error {
	if cfg.Listen {
		if len(remaining) > 0 {
			return fmt.Errorf("listen mode takes no positional arguments (use -p)")
		}
		return nil
	}

	switch len(remaining) {
	case 0:
		return fmt.Errorf("hostname required (use --help for usage)")
	case 1:
		if util.IsWebSocketURL(remaining[0]) {
			cfg.URL = remaining[0]
			return nil
		}
		return fmt.Errorf("port required")
	case 2:
		cfg.Host = remaining[0]
		port, err := config.ParsePort(remaining[1])
		if err != nil {
			return fmt.Errorf("port: %w", err)
		}
		cfg.Port = port
		return nil
	default:
		return fmt.Errorf("too many arguments")
	}
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(stdout, `bgnc – persistent netcat v%s

The stream keeps running in the background while the terminal is
detached; reattaching replays everything received in the meantime.

Usage:
  bgnc [options] <host> <port>                Connect (TCP, or UDP with -u)
  bgnc [options] ws://host/path               Connect over WebSocket
  bgnc -l -p <port> [options]                 Wait for one inbound peer
  bgnc -T user@gateway <host> <port>          Connect through an SSH gateway

Options:
`, version)
	fs.SetOutput(stdout)
	fs.PrintDefaults()
	fmt.Fprintf(stdout, `
Escapes (at the start of a line):
  ~.  quit    ~d  detach    ~a  attach    ~r  reconnect    ~s  stats    ~?  help

Signals:
  SIGUSR1  disconnect the stream (background disconnect)
  SIGUSR2  toggle attach/detach

Every option can also be set as BGNC_<OPTION> (e.g. BGNC_NO_DNS=1).

Examples:
  bgnc example.com 80                         TCP connect
  bgnc -k -l -p 8080                          Listen on 8080, allow ~r
  bgnc -T admin@bastion db-internal 5432      SSH gateway
  bgnc --metrics-addr :9100 host 9000         With Prometheus metrics
`)
}
