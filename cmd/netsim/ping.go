// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"errors"
	"fmt"

	"github.com/N1tramPH/network-simulator/netsim"
	"github.com/N1tramPH/network-simulator/netsim/addr"
	"github.com/N1tramPH/network-simulator/netsim/trace"
	"github.com/spf13/cobra"
)

// errPingFailed indicates that no echo reply came back.
var errPingFailed = errors.New("ping failed")

func newPingCmd(env *environ) *cobra.Command {
	return &cobra.Command{
		Use:   "ping <scenario> <device> <ip>",
		Short: "Ping an address from a device of a scenario",
		Long: `Build the topology of a scenario, ignoring its actions, and send
an ICMP echo request from a device.

Examples:
  netsim ping lan.yaml A 10.0.0.3`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, err := env.load(args[0])
			if err != nil {
				return err
			}
			dev := s.Device(args[1])
			if dev == nil {
				return fmt.Errorf("%w: %s", netsim.ErrNoSuchDevice, args[1])
			}
			dst, err := addr.ParseIP(args[2])
			if err != nil {
				return err
			}
			pkt, err := dev.Ping(dst)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if err := trace.Render(out, pkt, env.traceOptions()); err != nil {
				return err
			}
			if !pkt.Success {
				return fmt.Errorf("%w: %s", errPingFailed, pkt.Msg)
			}
			return nil
		},
	}
}
