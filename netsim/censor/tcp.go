// SPDX-License-Identifier: GPL-3.0-or-later

package censor

import (
	"bytes"
	"net/netip"

	"github.com/N1tramPH/network-simulator/netsim"
	"github.com/N1tramPH/network-simulator/netsim/dataunit"
)

// TCPResetter implements RST-based TCP connection interruption.
//
// When configured with a pattern, it only injects RST segments
// for packets containing that pattern, while allowing empty
// packets (e.g., SYN) to pass through. This enables pattern matching
// on application content while allowing the TCP handshake to
// complete normally.
type TCPResetter struct {
	// target specifies an optional specific endpoint to filter;
	// if zero, applies to all TCP connections.
	target netip.AddrPort

	// pattern is an optional byte pattern to match in payload;
	// if nil, only considers the target (if set).
	pattern []byte
}

// NewTCPResetter creates a new [*TCPResetter].
//
// If target is zero, it applies to all TCP connections.
//
// If pattern is zero-length, it doesn't perform payload matching.
//
// When pattern is set, empty packets are allowed through
// to permit TCP handshakes to complete.
func NewTCPResetter(target netip.AddrPort, pattern []byte) *TCPResetter {
	return &TCPResetter{target: target, pattern: pattern}
}

var _ netsim.Filter = &TCPResetter{}

// Filter implements [netsim.Filter].
func (r *TCPResetter) Filter(_ float64, flow *netsim.Flow) (netsim.Target, []netsim.Flow) {
	// Only process TCP packets
	if flow.Protocol != dataunit.IPProtocolTCP {
		return netsim.ACCEPT, nil
	}

	// Check if we need to filter a specific endpoint
	if !matches(r.target, flow) {
		return netsim.ACCEPT, nil
	}

	// If we have a pattern, check the payload. Note: we explicitly
	// accept packets with empty payload (e.g., SYN) to allow the TCP
	// handshake to complete before potentially injecting RST.
	if r.pattern != nil {
		if len(flow.Payload) <= 0 || !bytes.Contains(flow.Payload, r.pattern) {
			return netsim.ACCEPT, nil
		}
	}

	// Create RST segment
	rst := netsim.Flow{
		Protocol: dataunit.IPProtocolTCP,
		SrcIP:    flow.DstIP,
		DstIP:    flow.SrcIP,
		SrcPort:  flow.DstPort,
		DstPort:  flow.SrcPort,
		Flags:    dataunit.TCPFlagRST,
		SeqNum:   flow.AckNum,
	}

	return netsim.ACCEPT, []netsim.Flow{rst}
}
