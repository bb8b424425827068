// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/N1tramPH/network-simulator/internal/closepool"
	"github.com/N1tramPH/network-simulator/internal/config"
	"github.com/N1tramPH/network-simulator/internal/logging"
	"github.com/N1tramPH/network-simulator/netsim"
	"github.com/N1tramPH/network-simulator/netsim/loopcheck"
	"github.com/N1tramPH/network-simulator/netsim/script"
	"github.com/N1tramPH/network-simulator/netsim/trace"
	"github.com/spf13/cobra"
)

// environ is the state shared by the subcommands.
type environ struct {
	configPath string
	logLevel   string
	breadth    bool
	color      bool
	labels     bool

	config *config.Config
	logger *slog.Logger
	pool   closepool.Pool
}

// execute runs the command line and closes the opened files.
func execute(args []string) error {
	env := &environ{}
	root := newRootCmd(env)
	root.SetArgs(args)
	err := root.Execute()
	return errors.Join(err, env.pool.Close())
}

func newRootCmd(env *environ) *cobra.Command {
	root := &cobra.Command{
		Use:   "netsim",
		Short: "Deterministic layered network simulator",
		Long: `netsim simulates networks of hubs, switches, routers, and computers.

Scenario files (YAML or Lua) declare the devices, the links, the DNS
servers, the censorship filters, and the actions to run. Every action
prints the trace of the packets it caused.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return env.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&env.configPath, "config", "c", "", "config file path")
	flags.StringVar(&env.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.BoolVar(&env.breadth, "breadth", false, "print traces breadth-first")
	flags.BoolVar(&env.color, "color", false, "print colored traces")
	flags.BoolVar(&env.labels, "labels", false, "print the packet labels")

	root.AddCommand(newRunCmd(env))
	root.AddCommand(newPingCmd(env))
	root.AddCommand(newLintCmd(env))
	root.AddCommand(newExportCmd(env))
	root.AddCommand(newVersionCmd())
	return root
}

// setup loads the configuration and creates the logger. Flags win
// over the configuration.
func (env *environ) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(env.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = env.logLevel
	}
	if flags.Changed("breadth") {
		cfg.Trace.Breadth = env.breadth
	}
	if flags.Changed("color") {
		cfg.Trace.Color = env.color
	}
	env.config = cfg

	logger, closer, err := logging.New(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	env.pool.Add(closer)
	env.logger = logger
	return nil
}

// traceOptions returns the rendering options.
func (env *environ) traceOptions() trace.Options {
	return trace.Options{
		Breadth:    env.config.Trace.Breadth,
		Color:      env.config.Trace.Color,
		HideLabels: !env.labels,
	}
}

// load reads a scenario file and builds its scenario using the
// configured settings, which the file settings override.
func (env *environ) load(path string) (*script.File, *netsim.Scenario, error) {
	f, err := script.Load(path)
	if err != nil {
		return nil, nil, err
	}
	name := f.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	s := netsim.NewScenario(name)
	env.config.Simulation.Apply(&s.Settings)
	s.Logger = env.logger
	if err := f.Setup(s); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	for _, loop := range loopcheck.Find(s) {
		env.logger.Warn("switchingLoop",
			slog.String("scenario", name),
			slog.String("loop", loop.String()),
		)
	}
	return f, s, nil
}
