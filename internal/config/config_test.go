// SPDX-License-Identifier: GPL-3.0-or-later

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/N1tramPH/network-simulator/internal/config"
	"github.com/N1tramPH/network-simulator/netsim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Empty(t, cfg.Log.File.Filename)
	assert.Equal(t, 10, cfg.Log.File.MaxSize)
	assert.Equal(t, 64, cfg.Simulation.TTL)
	assert.True(t, cfg.Simulation.ImmediateTCPClose)
	assert.False(t, cfg.Trace.Color)

	var settings netsim.Settings
	cfg.Simulation.Apply(&settings)
	assert.Equal(t, netsim.DefaultSettings(), settings)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "netsim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
  format: json
  file:
    filename: /tmp/netsim.log
    compress: true
simulation:
  ttl: 16
  mss: 500
trace:
  breadth: true
`), 0600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "/tmp/netsim.log", cfg.Log.File.Filename)
	assert.True(t, cfg.Log.File.Compress)
	assert.Equal(t, 3, cfg.Log.File.MaxBackups)
	assert.Equal(t, 16, cfg.Simulation.TTL)
	assert.Equal(t, 500, cfg.Simulation.MSS)
	assert.True(t, cfg.Trace.Breadth)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("NETSIM_LOG_LEVEL", "debug")
	t.Setenv("NETSIM_SIMULATION_TTL", "8")
	t.Setenv("NETSIM_TRACE_COLOR", "true")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 8, cfg.Simulation.TTL)
	assert.True(t, cfg.Trace.Color)
}

func TestLoadErrors(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	t.Setenv("NETSIM_SIMULATION_TTL", "300")
	_, err = config.Load("")
	assert.ErrorContains(t, err, "simulation.ttl")
}

func TestValidate(t *testing.T) {
	cfg := &config.Config{
		Log:        config.LogConfig{Format: "xml"},
		Simulation: config.SimulationConfig{TTL: 64},
	}
	assert.ErrorContains(t, cfg.Validate(), "log.format")

	cfg.Log.Format = "json"
	cfg.Simulation.MSS = -1
	assert.ErrorContains(t, cfg.Validate(), "simulation.mss")

	cfg.Simulation.MSS = 0
	assert.NoError(t, cfg.Validate())
}
