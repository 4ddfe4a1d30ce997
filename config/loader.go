package config

// loader.go - layered configuration loading.
//
// Precedence order (highest wins):
//   1. CLI flags             (bound from the pflag FlagSet)
//   2. Environment variables (BGNC_ prefix, "-" becomes "_")
//   3. Config file           (--config, any format viper reads)
//   4. Defaults              (defaults.go)

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// defaults seeds every key viper should know about, so that
// environment-only settings are picked up by Unmarshal.  Keys match the
// mapstructure tags on Config.
func defaults(v *viper.Viper) {
	def := Default()
	for key, val := range map[string]any{
		"port":           def.LocalPort,
		"listen":         def.Listen,
		"udp":            def.UDP,
		"no-dns":         def.NoDNS,
		"timeout":        def.TimeoutSec,
		"keep-open":      def.KeepOpen,
		"tunnel":         def.TunnelSpec,
		"ssh-key":        def.SSHKeyPath,
		"ssh-password":   def.SSHPassword,
		"ssh-agent":      def.UseSSHAgent,
		"strict-hostkey": def.StrictHostKey,
		"known-hosts":    def.KnownHostsPath,
		"ssh-keepalive":  def.KeepAliveSec,
		"newline":        def.Newline,
		"escape-char":    def.EscapeChar,
		"no-escape":      def.NoEscape,
		"verbose":        def.Verbose,
		"log-file":       def.LogFile,
		"log-max-size":   def.LogMaxSizeMB,
		"metrics-addr":   def.MetricsAddr,
		"dry-run":        def.DryRun,
	} {
		v.SetDefault(key, val)
	}
}

// Load layers defaults, the optional config file at path, the
// environment and the parsed flags in fs into a Config.  Positional
// fields (Host, Port, URL) are left for the caller.
func Load(fs *pflag.FlagSet, path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	defaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}
