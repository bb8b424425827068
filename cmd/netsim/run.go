// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"io"

	"github.com/N1tramPH/network-simulator/netsim"
	"github.com/N1tramPH/network-simulator/netsim/capture"
	"github.com/N1tramPH/network-simulator/netsim/script"
	"github.com/N1tramPH/network-simulator/netsim/trace"
	"github.com/spf13/cobra"
)

func newRunCmd(env *environ) *cobra.Command {
	var (
		pcapPath   string
		exportPath string
		quiet      bool
	)
	cmd := &cobra.Command{
		Use:   "run <scenario>",
		Short: "Run the actions of a scenario and print their traces",
		Long: `Run the actions of a scenario file and print their traces.

The command fails when an action outcome does not match its expect field.

Examples:
  netsim run lan.yaml
  netsim run lan.lua --pcap lan.pcap --export topology.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, s, err := env.load(args[0])
			if err != nil {
				return err
			}
			runner := script.NewRunner(s)
			runner.Logger = env.logger
			results, runErr := runner.Run(cmd.Context(), f.Actions)

			out := cmd.OutOrStdout()
			for _, res := range results {
				if err := printResult(out, res, quiet, env.traceOptions()); err != nil {
					return err
				}
			}
			fmt.Fprintf(out, "%d/%d actions run\n", len(results), len(f.Actions))

			if pcapPath != "" {
				if err := env.writePcap(pcapPath, results); err != nil {
					return err
				}
			}
			if exportPath != "" {
				if err := env.export(exportPath, s); err != nil {
					return err
				}
			}
			return runErr
		},
	}
	cmd.Flags().StringVar(&pcapPath, "pcap", "", "write the transmitted frames to a pcap file")
	cmd.Flags().StringVar(&exportPath, "export", "", "write the final topology to a YAML file")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "print only the outcomes")
	return cmd
}

// printResult prints the outcome line of an action followed by its trace.
func printResult(w io.Writer, res script.Result, quiet bool, opts trace.Options) error {
	act := res.Action
	fmt.Fprintf(w, "#%d %s", res.Index, act.Do)
	if act.Device != "" {
		fmt.Fprintf(w, " %s", act.Device)
	}
	if act.Target != "" {
		fmt.Fprintf(w, " %s", act.Target)
	}
	fmt.Fprintf(w, ": %s", res.Outcome)
	if res.Detail != "" {
		fmt.Fprintf(w, " (%s)", res.Detail)
	}
	fmt.Fprintln(w)
	if quiet || res.Packet == nil {
		return nil
	}
	return trace.Render(w, res.Packet, opts)
}

func (env *environ) writePcap(path string, results []script.Result) error {
	w, err := env.pool.Create(path)
	if err != nil {
		return err
	}
	roots := make([]*netsim.Packet, 0, len(results))
	for _, res := range results {
		roots = append(roots, res.Packet)
	}
	_, err = capture.WritePcap(w, roots...)
	return err
}
