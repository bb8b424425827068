// SPDX-License-Identifier: GPL-3.0-or-later

package censor

import (
	"bytes"
	"net/netip"

	"github.com/N1tramPH/network-simulator/netsim"
	"github.com/N1tramPH/network-simulator/netsim/dataunit"
)

// Blackholer implements connection blackholing with optional pattern matching
// and connection tracking. Once a connection is blackholed, all packets matching
// its five-tuple will be dropped for the configured duration.
type Blackholer struct {
	// target specifies an optional specific endpoint to filter
	// if zero, applies to all connections.
	target netip.AddrPort

	// pattern is an optional byte pattern to match in payload
	// if nil, only considers the target (if set).
	pattern []byte

	// duration specifies how long, in seconds of virtual time,
	// to maintain blackholing state.
	duration float64

	// blocked tracks blackholed connections using five-tuple.
	blocked map[fiveTuple]float64
}

// fiveTuple is the five-tuple identifying a connection.
type fiveTuple struct {
	proto   dataunit.IPProtocol
	srcAddr netip.Addr
	srcPort uint16
	dstAddr netip.Addr
	dstPort uint16
}

// tupleOf returns the five-tuple of a flow.
func tupleOf(flow *netsim.Flow) fiveTuple {
	return fiveTuple{
		proto:   flow.Protocol,
		srcAddr: flow.SrcIP.Addr(),
		srcPort: flow.SrcPort,
		dstAddr: flow.DstIP.Addr(),
		dstPort: flow.DstPort,
	}
}

// matches returns whether the flow is directed to target, when set.
func matches(target netip.AddrPort, flow *netsim.Flow) bool {
	if !target.IsValid() {
		return true
	}
	return flow.DstIP.Addr() == target.Addr() && flow.DstPort == target.Port()
}

// NewBlackholer creates a new [*Blackholer] instance.
//
// The duration parameter controls how many seconds of virtual time
// connections remain blackholed.
//
// If target is zero, it applies to all connections.
//
// If pattern is nil, it doesn't perform payload matching.
func NewBlackholer(duration float64, target netip.AddrPort, pattern []byte) *Blackholer {
	return &Blackholer{
		target:   target,
		pattern:  pattern,
		duration: duration,
		blocked:  make(map[fiveTuple]float64),
	}
}

var _ netsim.Filter = &Blackholer{}

// Filter implements [netsim.Filter].
func (t *Blackholer) Filter(now float64, flow *netsim.Flow) (netsim.Target, []netsim.Flow) {
	// Check if this connection is already blocked
	tuple := tupleOf(flow)
	deadline, ok := t.blocked[tuple]
	blocked := ok && now < deadline
	if ok && !blocked {
		delete(t.blocked, tuple)
	}
	if blocked {
		return netsim.DROP, nil
	}

	// Check if we need to filter specific endpoint
	if !matches(t.target, flow) {
		return netsim.ACCEPT, nil
	}

	// If we have a pattern, check payload
	if t.pattern != nil {
		if len(flow.Payload) <= 0 || !bytes.Contains(flow.Payload, t.pattern) {
			return netsim.ACCEPT, nil
		}
	}

	// Block this connection
	t.blocked[tuple] = now + t.duration
	return netsim.DROP, nil
}

// DNatter implements transparent proxying via DNAT (Destination NAT).
type DNatter struct {
	// source is the source address to DNAT.
	source netip.Addr

	// target is the target destination endpoint to replace.
	target netip.AddrPort

	// repl is the replacement destination endpoint.
	repl netip.AddrPort
}

// NewDNatter creates a new [*DNatter] instance.
//
// Arguments:
//
// - source is the source address to DNAT.
//
// - target is the target destination endpoint to replace.
//
// - repl is the replacement destination endpoint.
//
// For example, with:
//
// - source = "192.168.1.2"
//
// - target = "10.0.0.2:80"
//
// - repl = "10.0.1.2:80"
//
// Traffic from "192.168.1.2" to "10.0.0.2:80" will be sent to
// "10.0.1.2:80" instead and return traffic from "10.0.1.2:80" to
// "192.168.1.2" would seem to come from "10.0.0.2:80".
func NewDNatter(source netip.Addr, target, repl netip.AddrPort) *DNatter {
	return &DNatter{
		source: source,
		target: target,
		repl:   repl,
	}
}

var _ netsim.Filter = &DNatter{}

// Filter implements [netsim.Filter].
func (r *DNatter) Filter(_ float64, flow *netsim.Flow) (netsim.Target, []netsim.Flow) {
	src, dst := flow.SrcIP.Addr(), flow.DstIP.Addr()

	// forward match on the DNAT rule
	if src == r.source && dst == r.target.Addr() && flow.DstPort == r.target.Port() {
		flow.DstIP = flow.DstIP.WithAddr(r.repl.Addr())
		flow.DstPort = r.repl.Port()
		return netsim.ACCEPT, nil
	}

	// return patch match on the DNAT rule
	if src == r.repl.Addr() && flow.SrcPort == r.repl.Port() && dst == r.source {
		flow.SrcIP = flow.SrcIP.WithAddr(r.target.Addr())
		flow.SrcPort = r.target.Port()
		return netsim.ACCEPT, nil
	}

	// otherwise just accept the packet
	return netsim.ACCEPT, nil
}
