package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/glasskube/distr-sub001/internal/core/versioning"
	"github.com/glasskube/distr-sub001/internal/shell/distr"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Hub      HubConfig     `mapstructure:"hub"`
	Strategy string        `mapstructure:"strategy"`
	Log      LogConfig     `mapstructure:"log"`
	Server   ServerConfig  `mapstructure:"server"`
	Journal  JournalConfig `mapstructure:"journal"`
	Watch    WatchConfig   `mapstructure:"watch"`
	Trace    TraceConfig   `mapstructure:"trace"`
}

// HubConfig holds the hub API connection settings.
type HubConfig struct {
	URL     string        `mapstructure:"url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// Token, when set, must be sent as a bearer token to /api/v1.
	Token string `mapstructure:"token"`
}

// Address returns the server address in host:port format.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// JournalConfig holds the local journal database configuration.
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

// WatchConfig selects the deployment targets `serve` keeps an eye on.
type WatchConfig struct {
	Targets        []string      `mapstructure:"targets"`
	Interval       time.Duration `mapstructure:"interval"`
	StatusInterval time.Duration `mapstructure:"status_interval"`
	MaxConcurrent  int           `mapstructure:"max_concurrent"`
	AutoUpdate     bool          `mapstructure:"auto_update"`
}

// TraceConfig enables span export to stderr.
type TraceConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Pretty  bool `mapstructure:"pretty"`
}

// Validate checks values viper cannot check by type alone.
func (c *Config) Validate() error {
	if _, err := versioning.New(c.Strategy); err != nil {
		return err
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Journal.Enabled && strings.TrimSpace(c.Journal.DSN) == "" {
		return errors.New("journal.dsn is required when the journal is enabled")
	}
	if c.Watch.MaxConcurrent < 0 {
		return fmt.Errorf("watch.max_concurrent must not be negative, got %d", c.Watch.MaxConcurrent)
	}
	if len(c.Watch.Targets) > 0 {
		if c.Watch.Interval <= 0 {
			return fmt.Errorf("watch.interval must be positive, got %s", c.Watch.Interval)
		}
		if c.Watch.StatusInterval <= 0 {
			return fmt.Errorf("watch.status_interval must be positive, got %s", c.Watch.StatusInterval)
		}
	}
	return nil
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from a .env file, the config file, the
// environment and flags, in increasing precedence. flags may be nil.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*Config, error) {
	// A missing .env is fine; a broken one is not
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()

	// Set defaults
	v.SetDefault("hub.url", distr.DefaultBaseURL)
	v.SetDefault("hub.token", "")
	v.SetDefault("hub.timeout", "30s")
	v.SetDefault("strategy", versioning.StrategySemver)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8585)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.token", "")
	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.dsn", "./data/distr.db")
	v.SetDefault("watch.targets", []string{})
	v.SetDefault("watch.interval", "5m")
	v.SetDefault("watch.status_interval", "5s")
	v.SetDefault("watch.max_concurrent", 5)
	v.SetDefault("watch.auto_update", false)
	v.SetDefault("trace.enabled", false)
	v.SetDefault("trace.pretty", false)

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("DISTR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for key, name := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Comma separated lists from the environment arrive as one element
	cfg.Watch.Targets = splitList(cfg.Watch.Targets)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// flagKeys maps config keys to the persistent flags that override them.
var flagKeys = map[string]string{
	"hub.url":   "hub-url",
	"strategy":  "strategy",
	"log.level": "log-level",
}

func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
func SetupLogger(cfg *Config, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
