// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Types    TypesConfig    `yaml:"types"`
	Store    StoreConfig    `yaml:"store"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Calendar CalendarConfig `yaml:"calendar"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// TypesConfig configures where declarations come from.
type TypesConfig struct {
	Dir             string        `yaml:"dir"`              // Directory (or file) of declarations
	Watch           bool          `yaml:"watch"`            // Reload when files under Dir change
	Debounce        time.Duration `yaml:"debounce"`         // Quiet period before a watched reload
	Strict          bool          `yaml:"strict"`           // Reject the whole catalog on any compile error
	RefreshInterval time.Duration `yaml:"refresh_interval"` // Periodic reload; 0 disables
}

// StoreConfig configures the declaration store.
type StoreConfig struct {
	Driver string `yaml:"driver"` // "none" or "sqlite"
	DSN    string `yaml:"dsn"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json", "console" or "auto"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"` // Enable /metrics endpoint
}

// CalendarConfig configures civil-calendar evaluation.
type CalendarConfig struct {
	Timezone string `yaml:"timezone"` // IANA zone for hour/minute/dayOfWeek; empty means each value's own zone
}

// Location resolves Timezone. It returns nil for an empty timezone.
func (c CalendarConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return nil, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
//
// Environment variables:
//
//	EVENTDSL_SERVER_HOST       - Server host (default: 0.0.0.0)
//	EVENTDSL_SERVER_PORT       - Server port (default: 8080)
//	EVENTDSL_TYPES_DIR         - Declaration directory (default: types)
//	EVENTDSL_TYPES_WATCH       - Reload on file changes (default: false)
//	EVENTDSL_TYPES_STRICT      - Reject the catalog on any compile error (default: false)
//	EVENTDSL_STORE_DRIVER      - Declaration store: none or sqlite (default: none)
//	EVENTDSL_STORE_DSN         - SQLite database path (default: eventdsl.db)
//	EVENTDSL_LOG_LEVEL         - Log level: debug, info, warn, error (default: info)
//	EVENTDSL_LOG_FORMAT        - Log format: json, console or auto (default: auto)
//	EVENTDSL_METRICS_ENABLED   - Enable /metrics endpoint (default: true)
//	EVENTDSL_CALENDAR_TIMEZONE - IANA timezone for calendar accessors
func LoadFromEnv() (*Config, error) {
	var cfg Config
	cfg.Metrics.Enabled = true

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback loads path when it exists and falls back to the
// environment otherwise.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// applyEnvOverrides applies EVENTDSL_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	// Server configuration
	if v := os.Getenv("EVENTDSL_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("EVENTDSL_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("EVENTDSL_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("EVENTDSL_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	// Types configuration
	if v := os.Getenv("EVENTDSL_TYPES_DIR"); v != "" {
		cfg.Types.Dir = v
	}
	if v := os.Getenv("EVENTDSL_TYPES_WATCH"); v != "" {
		cfg.Types.Watch = parseBool(v)
	}
	if v := os.Getenv("EVENTDSL_TYPES_STRICT"); v != "" {
		cfg.Types.Strict = parseBool(v)
	}
	if v := os.Getenv("EVENTDSL_TYPES_REFRESH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Types.RefreshInterval = d
		}
	}

	// Store configuration
	if v := os.Getenv("EVENTDSL_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("EVENTDSL_STORE_DSN"); v != "" {
		cfg.Store.DSN = v
	}

	// Logging configuration
	if v := os.Getenv("EVENTDSL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("EVENTDSL_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Metrics configuration
	if v := os.Getenv("EVENTDSL_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}

	// Calendar configuration
	if v := os.Getenv("EVENTDSL_CALENDAR_TIMEZONE"); v != "" {
		cfg.Calendar.Timezone = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}

	if cfg.Types.Dir == "" {
		cfg.Types.Dir = "types"
	}
	if cfg.Types.Debounce == 0 {
		cfg.Types.Debounce = 250 * time.Millisecond
	}

	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "none"
	}
	if cfg.Store.Driver == "sqlite" && cfg.Store.DSN == "" {
		cfg.Store.DSN = "eventdsl.db"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "auto"
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}

	validDrivers := map[string]bool{"none": true, "sqlite": true}
	if !validDrivers[cfg.Store.Driver] {
		return fmt.Errorf("store.driver must be 'none' or 'sqlite', got %q", cfg.Store.Driver)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{"json": true, "console": true, "auto": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, console, auto")
	}

	if cfg.Types.Debounce < 0 || cfg.Types.RefreshInterval < 0 {
		return fmt.Errorf("types.debounce and types.refresh_interval must not be negative")
	}

	if _, err := cfg.Calendar.Location(); err != nil {
		return fmt.Errorf("calendar.timezone: %w", err)
	}

	return nil
}
