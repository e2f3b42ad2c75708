package boreas

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds file-loadable settings for an App. Configuration is layered:
// built-in defaults, then a YAML file, then BOREAS_* environment overrides,
// then validation. Everything here is also reachable through Options for
// apps configured in code.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Signals  SignalsConfig  `yaml:"signals"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds listener settings consumed by Run.
type ServerConfig struct {
	Addr            string   `yaml:"addr"`             // default: ":8080"
	Origins         []string `yaml:"origins"`          // websocket origin patterns, default: allow all
	ShutdownTimeout Duration `yaml:"shutdown_timeout"` // default: 10s
}

// DispatchConfig holds request pipeline settings.
type DispatchConfig struct {
	Debug          bool     `yaml:"debug"`           // default: false
	HandlerTimeout Duration `yaml:"handler_timeout"` // zero disables the deadline
}

// SignalsConfig holds cross-instance signal transport settings. The NATS
// connection itself is established by the caller; these values only say
// where.
type SignalsConfig struct {
	NATSURL   string `yaml:"nats_url"`
	Namespace string `yaml:"namespace"` // default: "boreas"
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error; default: info
	Format string `yaml:"format"` // text or json; default: text
}

// Duration is a time.Duration that unmarshals from YAML strings like "30s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// DefaultConfig returns a Config with all default values filled in.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Signals: SignalsConfig{
			Namespace: "boreas",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, BOREAS_CONFIG env, ./boreas.yaml,
//     /etc/boreas/config.yaml)
//  3. BOREAS_* environment variable overrides
//  4. Validation
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. BOREAS_CONFIG environment variable
// 3. ./boreas.yaml in the current directory
// 4. /etc/boreas/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("BOREAS_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"boreas.yaml",
		"/etc/boreas/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct. Fields
// not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps BOREAS_* environment variables onto config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BOREAS_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("BOREAS_ORIGINS"); v != "" {
		cfg.Server.Origins = splitAndTrim(v)
	}
	if v := os.Getenv("BOREAS_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ShutdownTimeout = Duration(d)
		}
	}
	if v := os.Getenv("BOREAS_DEBUG"); v != "" {
		if debug, err := strconv.ParseBool(v); err == nil {
			cfg.Dispatch.Debug = debug
		}
	}
	if v := os.Getenv("BOREAS_HANDLER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Dispatch.HandlerTimeout = Duration(d)
		}
	}
	if v := os.Getenv("BOREAS_NATS_URL"); v != "" {
		cfg.Signals.NATSURL = v
	}
	if v := os.Getenv("BOREAS_NATS_NAMESPACE"); v != "" {
		cfg.Signals.Namespace = v
	}
	if v := os.Getenv("BOREAS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("BOREAS_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	trimmed := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			trimmed = append(trimmed, part)
		}
	}
	return trimmed
}

// Validate checks the config for values the app cannot run with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unknown level %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format: unknown format %q", c.Logging.Format)
	}
	if c.Dispatch.HandlerTimeout < 0 {
		return fmt.Errorf("dispatch.handler_timeout: must not be negative")
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("server.shutdown_timeout: must not be negative")
	}
	return nil
}

// Logger builds a structured logger from the logging settings.
func (c LoggingConfig) Logger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(c.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// Options converts the config into the option list New consumes:
//
//	cfg, err := boreas.LoadConfig("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	app := boreas.New(cfg.Options()...)
func (c *Config) Options() []Option {
	opts := []Option{
		WithLogger(c.Logging.Logger()),
		WithDebug(c.Dispatch.Debug),
		WithHandlerTimeout(c.Dispatch.HandlerTimeout.Std()),
		WithShutdownTimeout(c.Server.ShutdownTimeout.Std()),
	}
	if len(c.Server.Origins) > 0 {
		opts = append(opts, WithOrigins(c.Server.Origins...))
	}
	return opts
}
