// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads the command line tool configuration.
//
// Settings come from an optional YAML file and from NETSIM_ prefixed
// environment variables, where dots and dashes in keys become
// underscores (e.g., NETSIM_LOG_LEVEL overrides log.level).
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/N1tramPH/network-simulator/netsim"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of the environment variables.
const EnvPrefix = "NETSIM"

// FileConfig configures the rotated log file.
type FileConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level"`

	// Format is "text" or "json".
	Format string `mapstructure:"format"`

	// File optionally mirrors the logs into a rotated file.
	File FileConfig `mapstructure:"file"`
}

// SimulationConfig contains the default simulation settings.
type SimulationConfig struct {
	TTL               int  `mapstructure:"ttl"`
	ImmediateTCPClose bool `mapstructure:"immediate_tcp_close"`

	// MSS zero means random segment sizes.
	MSS int `mapstructure:"mss"`
}

// Apply copies the settings into s.
func (sc SimulationConfig) Apply(s *netsim.Settings) {
	s.TTL = uint8(sc.TTL)
	s.ImmediateTCPClose = sc.ImmediateTCPClose
	s.MSS = sc.MSS
}

// TraceConfig configures how traces are printed.
type TraceConfig struct {
	Breadth bool `mapstructure:"breadth"`
	Color   bool `mapstructure:"color"`
}

// Config is the command line tool configuration.
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Trace      TraceConfig      `mapstructure:"trace"`
}

// setDefaults registers every key so that environment variables
// apply even when no file sets the key.
func setDefaults(v *viper.Viper) {
	settings := netsim.DefaultSettings()
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file.filename", "")
	v.SetDefault("log.file.max_size", 10)
	v.SetDefault("log.file.max_backups", 3)
	v.SetDefault("log.file.max_age", 28)
	v.SetDefault("log.file.compress", false)
	v.SetDefault("simulation.ttl", int(settings.TTL))
	v.SetDefault("simulation.immediate_tcp_close", settings.ImmediateTCPClose)
	v.SetDefault("simulation.mss", settings.MSS)
	v.SetDefault("trace.breadth", false)
	v.SetDefault("trace.color", false)
}

// Load loads the configuration. An empty path means defaults and
// environment only; a missing file is otherwise an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if path != "" {
		filename := filepath.Base(path)
		fileExt := filepath.Ext(filename)
		v.SetConfigName(strings.TrimSuffix(filename, fileExt))
		v.SetConfigType(strings.TrimPrefix(fileExt, "."))
		v.AddConfigPath(filepath.Dir(path))
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the value ranges.
func (c *Config) Validate() error {
	switch {
	case c.Simulation.TTL < 1 || c.Simulation.TTL > 255:
		return fmt.Errorf("simulation.ttl must be within 1 and 255, got %d", c.Simulation.TTL)
	case c.Simulation.MSS < 0:
		return fmt.Errorf("simulation.mss must not be negative, got %d", c.Simulation.MSS)
	case c.Log.Format != "text" && c.Log.Format != "json":
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}
