// Package config loads diffodil settings from flags, environment
// variables and defaults. Field tags use mapstructure for viper
// unmarshalling.
package config

import (
	"errors"
	"fmt"
	"log/slog"
)

// DefaultPort is the port the server listens on by default.
const DefaultPort = 8765

// maxPort is the highest valid TCP port.
const maxPort = 65535

// Config holds the runtime settings of the diffodil server.
type Config struct {
	// Root is the directory below which git repositories are
	// discovered. Required.
	Root string `mapstructure:"root"`

	// Port is the TCP port the server listens on.
	Port int `mapstructure:"port"`

	// Verbosity raises the log level: 0 warn, 1 info, 2+ debug.
	Verbosity int `mapstructure:"verbosity"`

	// StaticDir optionally serves the web page from disk.
	StaticDir string `mapstructure:"static_dir"`
}

// ErrRootRequired is returned when no repository root is configured.
var ErrRootRequired = errors.New("repository root is required")

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Root == "" {
		return ErrRootRequired
	}

	if c.Port < 1 || c.Port > maxPort {
		return fmt.Errorf("port out of range: %d", c.Port)
	}

	return nil
}

// LogLevel maps the verbosity count to a slog level, mirroring the
// -v/-vv CLI convention.
func (c *Config) LogLevel() slog.Level {
	switch {
	case c.Verbosity < 1:
		return slog.LevelWarn
	case c.Verbosity < 2:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
