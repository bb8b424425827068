// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"github.com/N1tramPH/network-simulator/netsim"
	"github.com/N1tramPH/network-simulator/netsim/persist"
	"github.com/N1tramPH/network-simulator/netsim/script"
	"github.com/spf13/cobra"
)

func newExportCmd(env *environ) *cobra.Command {
	var (
		output string
		run    bool
	)
	cmd := &cobra.Command{
		Use:   "export <scenario>",
		Short: "Print the topology of a scenario as YAML",
		Long: `Print the devices and the links of a scenario, including their
tables, as a YAML topology.

With --run, the actions run first so that the tables contain what
the devices learned.

Examples:
  netsim export lan.yaml
  netsim export lan.yaml --run -o topology.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, s, err := env.load(args[0])
			if err != nil {
				return err
			}
			if run {
				runner := script.NewRunner(s)
				runner.Logger = env.logger
				if _, err := runner.Run(cmd.Context(), f.Actions); err != nil {
					return err
				}
			}
			if output == "" {
				data, err := persist.Marshal(persist.Export(s))
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return env.export(output, s)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: standard output)")
	cmd.Flags().BoolVar(&run, "run", false, "run the actions before exporting")
	return cmd
}

func (env *environ) export(path string, s *netsim.Scenario) error {
	data, err := persist.Marshal(persist.Export(s))
	if err != nil {
		return err
	}
	w, err := env.pool.Create(path)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
