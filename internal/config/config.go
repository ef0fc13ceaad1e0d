// Package config holds application configuration. Values come from
// defaults, optionally overridden by a YAML file in the user config dir.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	LogLevel        string        `yaml:"log_level" default:"info"`
	ScanTimeout     time.Duration `yaml:"scan_timeout" default:"10s"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" default:"5s"`
	ResponseTimeout time.Duration `yaml:"response_timeout" default:"2s"`

	// DeviceNames is the advertisement-name allow-list used during discovery.
	// Each entry is a case-insensitive substring test against the advertised
	// local name.
	DeviceNames []string `yaml:"device_names"`

	SpeedMin  float64 `yaml:"speed_min" default:"1.0"`
	SpeedMax  float64 `yaml:"speed_max" default:"12.0"`
	SpeedStep float64 `yaml:"speed_step" default:"0.1"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	c := &Config{}
	defaults.SetDefaults(c)
	c.DeviceNames = []string{"KS-AP-RQ3", "WALKINGPAD", "TREADMILL"}
	return c
}

// Path returns the user config file location. XDG_CONFIG_HOME is honored,
// otherwise ~/.config is used.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "fitctrl", "config.yaml")
}

// Load returns the default configuration merged with the YAML file at path,
// if one exists. A missing file is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if len(cfg.DeviceNames) == 0 {
		cfg.DeviceNames = DefaultConfig().DeviceNames
	}
	return cfg, nil
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
