// ABOUTME: YAML configuration for the mp3stream client and server
// ABOUTME: Defaults, file loading and validation
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration file
type Config struct {
	Server ServerConfig `yaml:"server"`
	Client ClientConfig `yaml:"client"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig contains server listener configuration
type ServerConfig struct {
	Port          int    `yaml:"port"`
	BindAddress   string `yaml:"bind_address"`
	MediaDir      string `yaml:"media_dir"`
	Name          string `yaml:"name"`
	MDNS          bool   `yaml:"mdns"`
	WebSocketPort int    `yaml:"websocket_port"` // 0 disables
	TUI           bool   `yaml:"tui"`
}

// ClientConfig contains player configuration
type ClientConfig struct {
	Port   int `yaml:"port"`
	Volume int `yaml:"volume"` // 0-100
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level       string         `yaml:"level"`
	Format      string         `yaml:"format"`  // console or json
	Outputs     []string       `yaml:"outputs"` // stdout, stderr or file paths
	Development bool           `yaml:"development"`
	Rotation    RotationConfig `yaml:"rotation"`
}

// RotationConfig controls file log rotation
type RotationConfig struct {
	Enable     bool   `yaml:"enable"`
	Filename   string `yaml:"filename"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:     11105,
			MediaDir: "../file/",
			Name:     defaultServerName(),
			MDNS:     true,
		},
		Client: ClientConfig{
			Port:   11105,
			Volume: 100,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func defaultServerName() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return "mp3stream"
	}
	return hostname + "-mp3stream"
}

// Load reads and parses the configuration file on top of the defaults.
// An empty path returns the defaults.
func Load(path string) (*Config, error) {
	config := Default()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate checks every section
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.Client.Validate(); err != nil {
		return fmt.Errorf("client config: %w", err)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log config: %w", err)
	}
	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}
	if s.WebSocketPort < 0 || s.WebSocketPort > 65535 {
		return fmt.Errorf("websocket_port must be between 0 and 65535, got %d", s.WebSocketPort)
	}
	if s.WebSocketPort != 0 && s.WebSocketPort == s.Port {
		return fmt.Errorf("websocket_port must differ from port %d", s.Port)
	}
	if strings.TrimSpace(s.MediaDir) == "" {
		return fmt.Errorf("media_dir cannot be empty")
	}
	if s.MDNS && s.Name == "" {
		return fmt.Errorf("name cannot be empty when mdns is enabled")
	}
	return nil
}

// Validate validates client configuration
func (c *ClientConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.Volume < 0 || c.Volume > 100 {
		return fmt.Errorf("volume must be between 0 and 100, got %d", c.Volume)
	}
	return nil
}

// Validate validates logging configuration
func (l *LogConfig) Validate() error {
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid level %q (must be debug, info, warn or error)", l.Level)
	}

	switch strings.ToLower(l.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("invalid format %q (must be console or json)", l.Format)
	}
	return nil
}
