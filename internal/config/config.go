package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete ndvlink configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Listing ListingConfig `mapstructure:"listing"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig describes how to reach the development server
type ServerConfig struct {
	// Host is the development server host name or address
	Host string `mapstructure:"host"`
	// Port is the development server port (default: 2700)
	Port int `mapstructure:"port"`
	// User is the logon user id; it is upper-cased before use
	User string `mapstructure:"user"`
	// Parameters is the protocol parameter string sent on connect
	Parameters string `mapstructure:"parameters"`
	// ClientCodepage is the single-byte codepage announced to the server
	ClientCodepage string `mapstructure:"client_codepage"`
	// Transport selects the registered transport driver
	Transport string `mapstructure:"transport"`
	// Fixture is the YAML document served by the fixture transport
	Fixture string `mapstructure:"fixture"`
	// ConnectRetries is how many times a network-class connect failure is retried
	ConnectRetries int `mapstructure:"connect_retries"`
	// RetryBackoffMs is the initial delay between connect retries in milliseconds
	RetryBackoffMs int `mapstructure:"retry_backoff_ms"`
}

// ListingConfig controls paginated listings
type ListingConfig struct {
	// PageLimit caps the number of follow-up page requests per listing
	PageLimit int `mapstructure:"page_limit"`
	// DefaultFilter is the name filter used when none is given
	DefaultFilter string `mapstructure:"default_filter"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// File is the log file path; empty logs to stderr
	File string `mapstructure:"file"`
	// Level is the minimum log level: "debug", "info", "warn", "error"
	Level string `mapstructure:"level"`
	// MaxSizeMB is the size at which the log file is rotated
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of rotated files to keep
	MaxBackups int `mapstructure:"max_backups"`
	// Compress gzips rotated files
	Compress bool `mapstructure:"compress"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "",
			Port:           2700,
			User:           "",
			Parameters:     "CFICU=ON,CP=IBM01141",
			ClientCodepage: "windows-1252",
			Transport:      "fixture",
			Fixture:        "",
			ConnectRetries: 0,
			RetryBackoffMs: 500,
		},
		Listing: ListingConfig{
			PageLimit:     1000,
			DefaultFilter: "*",
		},
		Logging: LoggingConfig{
			File:       "",
			Level:      "warn",
			MaxSizeMB:  10,
			MaxBackups: 3,
			Compress:   false,
		},
	}
}

// RetryBackoff returns the initial connect retry delay as a time.Duration
func (c *ServerConfig) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffMs) * time.Millisecond
}

// SetDefaultsOn registers default values on v
func SetDefaultsOn(v *viper.Viper) {
	defaults := Default()

	// Server defaults
	v.SetDefault("server.host", defaults.Server.Host)
	v.SetDefault("server.port", defaults.Server.Port)
	v.SetDefault("server.user", defaults.Server.User)
	v.SetDefault("server.parameters", defaults.Server.Parameters)
	v.SetDefault("server.client_codepage", defaults.Server.ClientCodepage)
	v.SetDefault("server.transport", defaults.Server.Transport)
	v.SetDefault("server.fixture", defaults.Server.Fixture)
	v.SetDefault("server.connect_retries", defaults.Server.ConnectRetries)
	v.SetDefault("server.retry_backoff_ms", defaults.Server.RetryBackoffMs)

	// Listing defaults
	v.SetDefault("listing.page_limit", defaults.Listing.PageLimit)
	v.SetDefault("listing.default_filter", defaults.Listing.DefaultFilter)

	// Logging defaults
	v.SetDefault("logging.file", defaults.Logging.File)
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	v.SetDefault("logging.compress", defaults.Logging.Compress)
}

// LoadFrom reads and validates the configuration held by v
func LoadFrom(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ndvlink")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ndvlink"
	}
	return filepath.Join(home, ".config", "ndvlink")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
