// SPDX-License-Identifier: GPL-3.0-or-later

// Command netsim runs network simulation scenarios.
//
// Usage:
//
//	netsim run scenario.yaml [--pcap out.pcap] [--export topology.yaml]
//	netsim ping scenario.yaml A 10.0.0.3
//	netsim lint scenario.yaml
//	netsim export scenario.yaml [--run] [-o topology.yaml]
//	netsim version
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "netsim: %s\n", err.Error())
		os.Exit(1)
	}
}
