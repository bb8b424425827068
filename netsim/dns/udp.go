// SPDX-License-Identifier: GPL-3.0-or-later

package dns

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/N1tramPH/network-simulator/netsim"
	"github.com/N1tramPH/network-simulator/netsim/addr"
	"github.com/miekg/dns"
	"github.com/rbmk-project/dnscore"
)

// Port is the DNS-over-UDP port.
const Port = 53

var (
	// ErrNoResponse indicates that no response came back.
	ErrNoResponse = errors.New("dns: no response")

	// ErrInvalidResponse indicates a response not matching the query.
	ErrInvalidResponse = errors.New("dns: invalid response")

	// ErrNoName indicates an NXDOMAIN or otherwise failed response.
	ErrNoName = errors.New("dns: no such name")
)

// Serve opens a UDP socket on port 53 of dev answering queries
// using db.
func Serve(dev *netsim.Device, db *Database) (*netsim.Socket, error) {
	sock, err := dev.Listen(netsim.UDP, Port)
	if err != nil {
		return nil, err
	}
	sock.Handler = func(_ *netsim.Packet, _ addr.SocketAddr, payload []byte) []byte {
		return db.Respond(payload)
	}
	return sock, nil
}

// Result is the outcome of a [Lookup].
type Result struct {
	// Addrs contains the resolved IPv4 addresses.
	Addrs []netip.Addr

	// Packet is the root of the trace of the exchange.
	Packet *netsim.Packet
}

// Lookup resolves the A records of name by querying the server
// running on port 53 of the server address. The query and the
// response travel over the simulated network.
func Lookup(dev *netsim.Device, server addr.IP, name string) (*Result, error) {
	query, err := dnscore.NewQuery(name, dns.TypeA)
	if err != nil {
		return nil, err
	}
	rawQuery, err := query.Pack()
	if err != nil {
		return nil, err
	}

	sock, err := dev.InitSocket(netsim.SocketClient, netsim.UDP)
	if err != nil {
		return nil, err
	}
	defer sock.Destroy()

	pkt, err := sock.SendTo(rawQuery, addr.NewSocketAddr(server, Port))
	if err != nil {
		return nil, err
	}
	result := &Result{Packet: pkt}

	dgram, found, err := sock.ReceiveFrom()
	if err != nil {
		return result, err
	}
	if !found {
		return result, ErrNoResponse
	}

	resp := &dns.Msg{}
	if err := resp.Unpack(dgram.Payload); err != nil {
		return result, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	if !resp.Response || resp.Id != query.Id || len(resp.Question) != 1 {
		return result, ErrInvalidResponse
	}
	if resp.Rcode != dns.RcodeSuccess {
		return result, fmt.Errorf("%w: %s", ErrNoName, dns.RcodeToString[resp.Rcode])
	}
	for _, ans := range resp.Answer {
		if a, ok := ans.(*dns.A); ok {
			if ip, ok := netip.AddrFromSlice(a.A.To4()); ok {
				result.Addrs = append(result.Addrs, ip)
			}
		}
	}
	if len(result.Addrs) == 0 {
		return result, ErrNoName
	}
	pkt.Success = true
	pkt.Msg = "Name resolved"
	return result, nil
}
