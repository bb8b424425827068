// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"

	"github.com/N1tramPH/network-simulator/netsim/loopcheck"
	"github.com/N1tramPH/network-simulator/netsim/script"
	"github.com/spf13/cobra"
)

func newLintCmd(env *environ) *cobra.Command {
	return &cobra.Command{
		Use:   "lint <scenario>...",
		Short: "Check scenario files without running their actions",
		Long: `Check that scenario files parse, that their topology builds, and
that it contains no switching loops.

Examples:
  netsim lint lan.yaml wan.lua`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			out := cmd.OutOrStdout()
			for _, path := range args {
				if err := env.lint(path); err != nil {
					fmt.Fprintf(out, "INVALID: %s: %v\n", path, err)
					failed++
					continue
				}
				fmt.Fprintf(out, "VALID: %s\n", path)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files invalid", failed, len(args))
			}
			return nil
		},
	}
}

func (env *environ) lint(path string) error {
	f, err := script.Load(path)
	if err != nil {
		return err
	}
	s, err := f.NewScenario()
	if err != nil {
		return err
	}
	return loopcheck.Check(s)
}
