// SPDX-License-Identifier: GPL-3.0-or-later

// Package dns implements a DNS-over-UDP application running on the
// sockets of simulated computers.
//
// A [*Database] holds the records; [Serve] answers queries on port 53
// of a device and [Lookup] resolves names from another device. The
// messages are real DNS messages, so the exchanged datagrams have the
// size they would have on the wire.
package dns

import (
	"net/netip"

	"github.com/miekg/dns"
	"github.com/rbmk-project/common/runtimex"
)

// Database models the DNS database of a scenario.
type Database struct {
	names map[string][]dns.RR
}

// NewDatabase creates a new DNS database.
func NewDatabase() *Database {
	return &Database{
		names: make(map[string][]dns.RR),
	}
}

// ttl is the TTL of every record, in seconds.
const ttl = 3600

func header(name string, rrtype uint16) dns.RR_Header {
	return dns.RR_Header{Name: name, Rrtype: rrtype, Class: dns.ClassINET, Ttl: ttl}
}

// AddCNAME makes name an alias of alias.
//
// This method IS NOT goroutine safe.
func (dd *Database) AddCNAME(name, alias string) {
	name = dns.CanonicalName(name)
	rr := &dns.CNAME{Hdr: header(name, dns.TypeCNAME), Target: dns.CanonicalName(alias)}
	dd.names[name] = append(dd.names[name], rr)
}

// AddAddresses adds A records mapping each of the domainNames to
// every IPv4 address in addresses. It panics on invalid addresses.
//
// This method IS NOT goroutine safe.
func (dd *Database) AddAddresses(domainNames, addresses []string) {
	for _, name := range domainNames {
		name = dns.CanonicalName(name)
		for _, address := range addresses {
			ip := runtimex.Try1(netip.ParseAddr(address))
			runtimex.Assert(ip.Is4(), "invalid IPv4 address")
			rr := &dns.A{Hdr: header(name, dns.TypeA), A: ip.AsSlice()}
			dd.names[name] = append(dd.names[name], rr)
		}
	}
}

// Respond answers a raw DNS query using the database. It returns nil
// when the query is malformed or is not a single-question query.
//
// This method is goroutine safe as long as one does not
// modify the database while handling queries.
func (dd *Database) Respond(rawQuery []byte) []byte {
	var (
		response = &dns.Msg{}
		query    = &dns.Msg{}
	)
	if err := query.Unpack(rawQuery); err != nil {
		return nil
	}
	if query.Response || query.Opcode != dns.OpcodeQuery || len(query.Question) != 1 {
		return nil
	}
	response.SetReply(query)

	var (
		q0   = query.Question[0]
		name = dns.CanonicalName(q0.Name)
	)
	switch {
	case q0.Qclass != dns.ClassINET:
		response.Rcode = dns.RcodeRefused
	case q0.Qtype == dns.TypeA || q0.Qtype == dns.TypeCNAME:
		var found bool
		response.Answer, found = dd.lookup(q0.Qtype, name)
		if !found {
			response.Rcode = dns.RcodeNameError
		}
	default:
		response.Rcode = dns.RcodeNameError
	}

	rawResp, err := response.Pack()
	if err != nil {
		return nil
	}
	return rawResp
}

// Lookup returns the DNS records of the given type for a domain
// name, following CNAME redirects.
func (dd *Database) Lookup(qtype uint16, name string) ([]dns.RR, bool) {
	return dd.lookup(qtype, dns.CanonicalName(name))
}

// maxCNAMEs bounds the length of a CNAME chain.
const maxCNAMEs = 10

// lookup collects the records of name, following the CNAME chain
// until a record of type qtype shows up.
func (dd *Database) lookup(qtype uint16, name string) ([]dns.RR, bool) {
	var chain []dns.RR
	for range maxCNAMEs {
		rrs, found := dd.names[name]
		if !found {
			return nil, false
		}
		chain = append(chain, rrs...)

		next := ""
		for _, rr := range rrs {
			if cname, ok := rr.(*dns.CNAME); ok {
				next = cname.Target
			}
			if rr.Header().Rrtype == qtype {
				return chain, true
			}
		}
		if next == "" {
			return nil, false
		}
		name = next
	}
	return nil, false
}
