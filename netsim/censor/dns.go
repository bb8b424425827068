// SPDX-License-Identifier: GPL-3.0-or-later

package censor

import (
	"github.com/N1tramPH/network-simulator/netsim"
	"github.com/N1tramPH/network-simulator/netsim/dataunit"
	netsimdns "github.com/N1tramPH/network-simulator/netsim/dns"
	"github.com/miekg/dns"
)

// Database is an alias for [netsimdns.Database].
type Database = netsimdns.Database

// DNSPoisoner implements GFW-style DNS poisoning
type DNSPoisoner struct {
	db *Database
}

// NewDNSPoisoner creates a new DNS poisoner that injects
// responses as configured in the given database.
func NewDNSPoisoner(db *Database) *DNSPoisoner {
	return &DNSPoisoner{db: db}
}

var _ netsim.Filter = &DNSPoisoner{}

// Filter implements [netsim.Filter].
func (p *DNSPoisoner) Filter(_ float64, flow *netsim.Flow) (netsim.Target, []netsim.Flow) {
	// Only process UDP DNS queries
	if flow.Protocol != dataunit.IPProtocolUDP || flow.DstPort != netsimdns.Port {
		return netsim.ACCEPT, nil
	}

	// Parse DNS query
	query := new(dns.Msg)
	if err := query.Unpack(flow.Payload); err != nil {
		return netsim.ACCEPT, nil
	}

	// Only process queries
	if query.Response || len(query.Question) != 1 {
		return netsim.ACCEPT, nil
	}

	// Let original query continue
	return netsim.ACCEPT, p.spoof(flow, query)
}

func (p *DNSPoisoner) spoof(flow *netsim.Flow, query *dns.Msg) []netsim.Flow {
	// Prepare the response
	resp := &dns.Msg{}
	resp.SetReply(query)

	// Get records from database
	q0 := query.Question[0]
	rrs, found := p.db.Lookup(q0.Qtype, q0.Name)
	if !found {
		return nil
	}
	resp.Answer = rrs

	// Pack the response
	payload, err := resp.Pack()
	if err != nil {
		return nil
	}

	// Create the spoofed datagram
	return []netsim.Flow{{
		Protocol: dataunit.IPProtocolUDP,
		SrcIP:    flow.DstIP,
		DstIP:    flow.SrcIP,
		SrcPort:  flow.DstPort,
		DstPort:  flow.SrcPort,
		Payload:  payload,
	}}
}
