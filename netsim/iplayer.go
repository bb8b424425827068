//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// IP layer and routing protocol.
//

package netsim

import (
	"github.com/N1tramPH/network-simulator/netsim/dataunit"
	"github.com/N1tramPH/network-simulator/netsim/router"
)

// RoutingTable is the routing table of a device.
type RoutingTable = router.Table[*Adapter]

// IPLayer encapsulates transport data into IP packets, delivers local
// packets, and forwards the others when forwarding is enabled.
type IPLayer struct {
	// Forwarding enables forwarding packets addressed to other hosts.
	Forwarding bool

	// Filters inspect the forwarded packets.
	Filters []Filter

	// ICMP is the ICMP protocol.
	ICMP *ICMP

	// Routing resolves and forwards packets.
	Routing *RoutingProtocol

	stack *Stack
}

var _ Layer = &IPLayer{}

// newIPLayer creates the IP layer of st.
func newIPLayer(st *Stack) *IPLayer {
	ipl := &IPLayer{stack: st}
	ipl.ICMP = newICMP(st)
	ipl.Routing = &RoutingProtocol{
		Table: router.NewTable(func() []*Adapter { return st.device.adapters }),
		stack: st,
	}
	return ipl
}

// String implements [Layer].
func (ipl *IPLayer) String() string {
	return "IP layer"
}

// AcceptFromUpper implements [Layer]. Packets addressed to a local
// adapter are delivered without leaving the device.
func (ipl *IPLayer) AcceptFromUpper(pkt *Packet) error {
	ip := dataunit.NewIPPacket(pkt.Data)
	pkt.Data = ip.DataUnit
	ip.SetProtocol(pkt.Meta.IPProtocol)

	dst := pkt.Meta.DstIP
	if dst.IsZeroAddr() && pkt.Meta.Socket != nil {
		dst = pkt.Meta.Socket.remote.IP
	}
	ip.SetDst(dst)

	found, err := ipl.Routing.Resolve(pkt, ip)
	if err != nil {
		return err
	}

	if ipl.stack.isLocal(ip.Dst()) {
		if err := pkt.Commit(); err != nil {
			return err
		}
		if pkt.StartPoint() == nil {
			if err := pkt.SetStartPoint(ipl.stack.device); err != nil {
				return err
			}
		}
		if err := pkt.SetEndPoint(ipl.stack.device); err != nil {
			return err
		}
		return ipl.resolveProtocol(pkt, ip)
	}

	if !found {
		return nil
	}
	return ipl.stack.Lower(ipl).AcceptFromUpper(pkt)
}

// AcceptFromLower implements [Layer].
func (ipl *IPLayer) AcceptFromLower(pkt *Packet) error {
	ip := dataunit.IPPacket{DataUnit: pkt.GetUnit(dataunit.KindIPPacket)}
	if !ip.CheckChecksum() {
		pkt.Report("IP packet\ndropped")
		return nil
	}
	if !ipl.stack.isLocal(ip.Dst()) {
		if ipl.Forwarding {
			return ipl.Routing.Forward(pkt, ip)
		}
		pkt.Report("IP packet\ndropped")
		return nil
	}
	return ipl.resolveProtocol(pkt, ip)
}

// resolveProtocol dispatches a local packet to its protocol.
func (ipl *IPLayer) resolveProtocol(pkt *Packet, ip dataunit.IPPacket) error {
	switch ip.Protocol() {
	case dataunit.IPProtocolICMP:
		msg := dataunit.ICMPMessage{DataUnit: ip.Payload()}
		return ipl.ICMP.ResolveMessage(pkt, msg, ip)
	case dataunit.IPProtocolTCP, dataunit.IPProtocolUDP:
		if upper := ipl.stack.Upper(ipl); upper != nil {
			return upper.AcceptFromLower(pkt)
		}
	}
	pkt.Report("IP packet\ndropped")
	return nil
}

// RoutingProtocol selects routes for outgoing packets and forwards
// transit packets.
type RoutingProtocol struct {
	// Table is the routing table.
	Table *RoutingTable

	stack *Stack
}

// Resolve selects the route for an outgoing IP packet and fills in
// the source address, the TTL, and the checksum.
func (rp *RoutingProtocol) Resolve(pkt *Packet, ip dataunit.IPPacket) (bool, error) {
	route, found := rp.Table.Query(ip.Dst())
	if !found {
		err := pkt.Commit()
		pkt.Report("Destination unreachable!")
		return false, err
	}

	pkt.Meta.Route = &route
	pkt.Meta.OutIface = route.Iface
	src, _ := route.Iface.IPAddress()
	ip.SetSrc(src)
	ip.SetTTL(rp.stack.device.scenario.Settings.TTL)
	ip.ComputeTotalLength()
	ip.ComputeChecksum()
	return true, nil
}

// Forward sends a copy of a transit packet towards its destination.
func (rp *RoutingProtocol) Forward(pkt *Packet, ip dataunit.IPPacket) error {
	pkt.Report("Forwarding...")

	ip, pass, err := rp.stack.ip.applyFilters(pkt, ip)
	if err != nil || !pass {
		return err
	}

	route, found := rp.Table.Query(ip.Dst())
	if !found {
		pkt.Report("Route\nnot found!")
		pkt.Report("IP packet\ndropped")
		if err := pkt.Commit(); err != nil {
			return err
		}
		return rp.stack.ip.ICMP.Resolve(pkt, dataunit.ICMPDstUnreachable)
	}

	if in := pkt.Meta.InIface; in != nil && route.Iface.mac == in.mac {
		pkt.Report("IP packet dropped\n→loop prevention")
		return nil
	}

	next := dataunit.IPPacket{DataUnit: ip.Copy()}
	next.DecrementTTL()
	if next.TTL() == 0 {
		pkt.Report("TTL exceeded!")
		return rp.stack.ip.ICMP.Resolve(pkt, dataunit.ICMPTimeExceeded)
	}
	next.ComputeChecksum()

	fwd := pkt.Copy()
	if err := fwd.Commit(); err != nil {
		return err
	}
	fwd.Data = next.DataUnit
	fwd.Meta.OutIface = route.Iface
	fwd.Meta.Route = &route
	return rp.stack.link.AcceptFromUpper(fwd)
}
