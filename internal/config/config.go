// Package config loads the relay configuration from defaults, an optional
// config file, and RELAY_-prefixed environment variables, and builds the
// process logger from it.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultListenAddr = "localhost:6200"
	DefaultRelayPath  = "/ws"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"

	DefaultProbeInterval = 15 * time.Second
	DefaultProbeTimeout  = 45 * time.Second
	DefaultReapInterval  = 60 * time.Second
	DefaultOfflineTTL    = 5 * time.Minute

	DefaultMaxMessageBytes   = int64(64 * 1024)
	DefaultMessagesPerSecond = 50

	DefaultShutdownTimeout = 15 * time.Second
)

type Config struct {
	// ListenAddr is the single address serving the relay WebSocket, the
	// admin API, and static assets.
	ListenAddr string `mapstructure:"listen_addr"`
	// RelayPath is the WebSocket endpoint path.
	RelayPath string `mapstructure:"relay_path"`
	// StaticDir, when set, serves a single-page app from that directory.
	StaticDir string `mapstructure:"static_dir"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// Liveness probing: a transport silent for longer than ProbeTimeout is
	// evicted; probes go out every ProbeInterval.
	ProbeInterval time.Duration `mapstructure:"probe_interval"`
	ProbeTimeout  time.Duration `mapstructure:"probe_timeout"`

	// Offline sessions older than OfflineTTL are deleted every ReapInterval.
	ReapInterval time.Duration `mapstructure:"reap_interval"`
	OfflineTTL   time.Duration `mapstructure:"offline_ttl"`

	// Inbound signaling hardening.
	MaxMessageBytes   int64 `mapstructure:"max_message_bytes"`
	MessagesPerSecond int   `mapstructure:"messages_per_second"`

	// Providing both switches the listener to TLS.
	TLSCertFile string `mapstructure:"tls_cert_file"`
	TLSKeyFile  string `mapstructure:"tls_key_file"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Load resolves the configuration. path may be empty; environment
// variables (RELAY_LISTEN_ADDR, RELAY_PROBE_TIMEOUT, ...) override file
// values, which override defaults.
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetDefault("listen_addr", DefaultListenAddr)
	v.SetDefault("relay_path", DefaultRelayPath)
	v.SetDefault("static_dir", "")
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("log_format", DefaultLogFormat)
	v.SetDefault("probe_interval", DefaultProbeInterval)
	v.SetDefault("probe_timeout", DefaultProbeTimeout)
	v.SetDefault("reap_interval", DefaultReapInterval)
	v.SetDefault("offline_ttl", DefaultOfflineTTL)
	v.SetDefault("max_message_bytes", DefaultMaxMessageBytes)
	v.SetDefault("messages_per_second", DefaultMessagesPerSecond)
	v.SetDefault("tls_cert_file", "")
	v.SetDefault("tls_key_file", "")
	v.SetDefault("shutdown_timeout", DefaultShutdownTimeout)

	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if !strings.HasPrefix(c.RelayPath, "/") {
		return fmt.Errorf("relay_path must start with /")
	}
	if c.ProbeInterval <= 0 || c.ProbeTimeout <= 0 {
		return fmt.Errorf("probe_interval and probe_timeout must be positive")
	}
	if c.ProbeTimeout <= c.ProbeInterval {
		return fmt.Errorf("probe_timeout (%s) must exceed probe_interval (%s)", c.ProbeTimeout, c.ProbeInterval)
	}
	if c.ReapInterval <= 0 || c.OfflineTTL <= 0 {
		return fmt.Errorf("reap_interval and offline_ttl must be positive")
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf("tls_cert_file and tls_key_file must be set together")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log format %q", c.LogFormat)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// TLSEnabled reports whether the listener should use encrypted transport.
func (c Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

// NewLogger builds the process logger from the configured level and
// format.
func NewLogger(cfg Config) (*slog.Logger, error) {
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.LogFormat {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		return nil, fmt.Errorf("unsupported log format %q", cfg.LogFormat)
	}

	return slog.New(handler), nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unsupported log level %q", s)
	}
}
