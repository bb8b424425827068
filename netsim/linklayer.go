//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Link layer and ARP.
//

package netsim

import (
	"github.com/N1tramPH/network-simulator/netsim/addr"
	"github.com/N1tramPH/network-simulator/netsim/dataunit"
	"github.com/N1tramPH/network-simulator/netsim/link"
)

// LinkLayer frames IP packets and resolves next-hop MAC addresses.
type LinkLayer struct {
	// Arp resolves IP addresses to MAC addresses.
	Arp *Arp

	stack *Stack
}

var _ Layer = &LinkLayer{}

// newLinkLayer creates the link layer of st.
func newLinkLayer(st *Stack) *LinkLayer {
	return &LinkLayer{
		Arp:   &Arp{Table: &link.ArpTable{}, stack: st},
		stack: st,
	}
}

// String implements [Layer].
func (ll *LinkLayer) String() string {
	return "Link layer"
}

// AcceptFromUpper implements [Layer]. The packet must carry a route
// and an outgoing interface resolved by the IP layer.
func (ll *LinkLayer) AcceptFromUpper(pkt *Packet) error {
	frame := dataunit.NewLinkFrame(pkt.Data, dataunit.FrameTypeIPv4)
	pkt.Data = frame.DataUnit

	dst, found, err := ll.Arp.Resolve(pkt.Meta.Route.Gateway, pkt)
	if err != nil || !found {
		return err
	}
	frame.SetDstMAC(dst)
	frame.SetSrcMAC(pkt.Meta.OutIface.mac)
	return pkt.Meta.OutIface.Send(pkt)
}

// AcceptFromLower implements [Layer].
func (ll *LinkLayer) AcceptFromLower(pkt *Packet) error {
	frame := frameOf(pkt)
	switch frame.Type() {
	case dataunit.FrameTypeARP:
		return ll.Arp.ResolveMessage(dataunit.ArpMessage{DataUnit: frame.Payload()}, pkt)
	case dataunit.FrameTypeIPv4:
		if upper := ll.stack.Upper(ll); upper != nil {
			return upper.AcceptFromLower(pkt)
		}
	}
	return nil
}

// Arp implements the address resolution protocol.
type Arp struct {
	// Table caches resolved addresses.
	Table *link.ArpTable

	stack *Stack
}

// Resolve returns the MAC address of ip. On a cache miss it sends an
// ARP request traced before pkt and checks the cache again. When the
// address stays unresolved it answers with an ICMP destination
// unreachable message.
func (arp *Arp) Resolve(ip addr.IP, pkt *Packet) (addr.MAC, bool, error) {
	if mac, found := arp.Table.Query(ip); found {
		return mac, true, nil
	}

	iface := pkt.Meta.OutIface
	src, _ := iface.IPAddress()
	req := dataunit.NewArpRequest(iface.mac, src, ip)
	frame := dataunit.NewLinkFrame(req.DataUnit, dataunit.FrameTypeARP)
	frame.SetDstMAC(addr.Broadcast())
	frame.SetSrcMAC(iface.mac)

	arpPkt := pkt.CreatePreceding(frame.DataUnit, "ARP request", "")
	if err := arpPkt.SetStartPoint(arp.stack.device); err != nil {
		return addr.MAC{}, false, err
	}
	arpPkt.Type = PacketTypeARP
	arpPkt.Report("ARP resolving...")
	arpPkt.ReportFor("Who has an IP\n"+ip.HostString()+"?", 1.7)

	err := iface.Send(arpPkt)
	pkt.SetPreceding(arpPkt)
	if err != nil {
		return addr.MAC{}, false, err
	}

	if mac, found := arp.Table.Query(ip); found {
		return mac, true, nil
	}
	pkt.Report("Destination\nunreachable!")
	return addr.MAC{}, false, arp.stack.ip.ICMP.Resolve(pkt, dataunit.ICMPDstUnreachable)
}

// ResolveMessage handles a received ARP message: requests for the
// receiving interface get a unicast reply and replies are learned.
func (arp *Arp) ResolveMessage(msg dataunit.ArpMessage, pkt *Packet) error {
	iface := pkt.Meta.InIface
	own, ok := iface.IPAddress()
	if !ok || !msg.DstIP().Equal(own) {
		pkt.Report("ARP dropped")
		return nil
	}

	switch {
	case msg.IsRequest():
		reply := dataunit.NewArpReply(msg, iface.mac, own)
		frame := dataunit.NewLinkFrame(reply.DataUnit, dataunit.FrameTypeARP)
		frame.SetDstMAC(msg.SrcMAC())
		frame.SetSrcMAC(iface.mac)
		resp := pkt.Response(frame.DataUnit, "ARP reply", "")
		resp.Type = PacketTypeARP
		return iface.Send(resp)

	case msg.IsReply():
		arp.Table.Learn(msg.SrcIP(), msg.SrcMAC())
		pkt.Report("ARP resolved!")
		return nil

	default:
		pkt.Report("ARP failed!")
		return nil
	}
}
