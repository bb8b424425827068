// SPDX-License-Identifier: GPL-3.0-or-later

// Package loopcheck finds switching loops in a scenario topology.
//
// Hubs and switches flood frames without a hop limit, so a cycle made
// of links between them makes a broadcast circulate until the packet
// tree exceeds [packet.MaxDescendants]. Routers and computers break
// such cycles.
package loopcheck

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/N1tramPH/network-simulator/netsim"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/multi"
	"gonum.org/v1/gonum/graph/topo"
)

// ErrSwitchingLoop indicates that the topology contains a switching loop.
var ErrSwitchingLoop = errors.New("switching loop")

// Loop is a set of segment devices connected by redundant links.
type Loop struct {
	// Devices contains the sorted device names.
	Devices []string

	// Links is the number of links between the devices.
	Links int
}

// String returns a description of the loop.
func (l Loop) String() string {
	return fmt.Sprintf("%s (%d links)", strings.Join(l.Devices, ", "), l.Links)
}

// isSegment returns whether dev floods frames.
func isSegment(dev *netsim.Device) bool {
	return dev.Kind() == netsim.Hub || dev.Kind() == netsim.Switch
}

// Find returns the switching loops of the scenario, one per
// connected group of segment devices containing a cycle.
func Find(s *netsim.Scenario) []Loop {
	g := multi.NewUndirectedGraph()
	ids := make(map[string]int64)
	names := make(map[int64]string)
	for _, dev := range s.Devices() {
		if !isSegment(dev) {
			continue
		}
		node := g.NewNode()
		g.AddNode(node)
		ids[dev.Name()] = node.ID()
		names[node.ID()] = dev.Name()
	}

	for _, lnk := range s.Links() {
		rec := lnk.Export()
		left, okLeft := ids[rec.Left.Device]
		right, okRight := ids[rec.Right.Device]
		if !okLeft || !okRight {
			continue
		}
		g.SetLine(g.NewLine(g.Node(left), g.Node(right)))
	}

	var loops []Loop
	for _, component := range topo.ConnectedComponents(g) {
		links := countLines(g, component)
		if links < len(component) {
			continue
		}
		loop := Loop{Links: links}
		for _, node := range component {
			loop.Devices = append(loop.Devices, names[node.ID()])
		}
		slices.Sort(loop.Devices)
		loops = append(loops, loop)
	}
	slices.SortFunc(loops, func(a, b Loop) int {
		return strings.Compare(a.Devices[0], b.Devices[0])
	})
	return loops
}

// countLines returns the number of lines joining the nodes of a
// connected component, self loops included.
func countLines(g *multi.UndirectedGraph, component []graph.Node) int {
	count := 0
	for _, u := range component {
		for _, v := range graph.NodesOf(g.From(u.ID())) {
			if u.ID() <= v.ID() {
				count += len(graph.LinesOf(g.LinesBetween(u.ID(), v.ID())))
			}
		}
	}
	return count
}

// Check returns an error wrapping [ErrSwitchingLoop] that names every
// loop found by [Find], or nil.
func Check(s *netsim.Scenario) error {
	var errv []error
	for _, loop := range Find(s) {
		errv = append(errv, fmt.Errorf("%w: %s", ErrSwitchingLoop, loop))
	}
	return errors.Join(errv...)
}
