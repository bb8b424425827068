//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Forwarding filters.
//

package netsim

import (
	"github.com/N1tramPH/network-simulator/netsim/addr"
	"github.com/N1tramPH/network-simulator/netsim/dataunit"
)

// Target is the decision of a [Filter] about a transit packet.
type Target int

const (
	// ACCEPT lets the packet continue.
	ACCEPT = Target(iota)

	// DROP discards the packet.
	DROP
)

// Flow is the transport view of a transit IP packet.
type Flow struct {
	Protocol dataunit.IPProtocol
	SrcIP    addr.IP
	DstIP    addr.IP
	SrcPort  uint16
	DstPort  uint16
	Flags    dataunit.TCPFlags
	SeqNum   uint32
	AckNum   uint32
	Payload  []byte
}

// endpoints returns the addressing part of the flow.
func (f *Flow) endpoints() [4]uint64 {
	return [4]uint64{
		uint64(f.SrcIP.Uint32()), uint64(f.DstIP.Uint32()),
		uint64(f.SrcPort), uint64(f.DstPort),
	}
}

// Filter inspects the packets forwarded by a device. It may rewrite
// the addresses and ports of the flow and may return spoofed flows
// the device injects towards their destination.
type Filter interface {
	Filter(now float64, flow *Flow) (Target, []Flow)
}

// flowOf extracts the flow of an IP packet.
func flowOf(ip dataunit.IPPacket) Flow {
	flow := Flow{Protocol: ip.Protocol(), SrcIP: ip.Src(), DstIP: ip.Dst()}
	inner := ip.Payload()
	if inner == nil {
		return flow
	}
	switch flow.Protocol {
	case dataunit.IPProtocolTCP:
		seg := dataunit.TCPSegment{DataUnit: inner}
		flow.SrcPort, flow.DstPort = seg.SrcPort(), seg.DstPort()
		flow.Flags = seg.Flags()
		flow.SeqNum, flow.AckNum = seg.SeqNum(), seg.AckNum()
		flow.Payload = seg.Content()
	case dataunit.IPProtocolUDP:
		dgram := dataunit.UDPDatagram{DataUnit: inner}
		flow.SrcPort, flow.DstPort = dgram.SrcPort(), dgram.DstPort()
		flow.Payload = dgram.Content()
	}
	return flow
}

// AddFilter appends a filter applied to the forwarded packets.
func (d *Device) AddFilter(f Filter) error {
	if d.stack.ip == nil || !d.stack.ip.Forwarding {
		return ErrNotL3
	}
	d.stack.ip.Filters = append(d.stack.ip.Filters, f)
	return nil
}

// applyFilters runs the filters on a transit packet. It returns the
// packet to forward, which is a rewritten copy when a filter changed
// the addressing, and false when the packet was dropped.
func (ipl *IPLayer) applyFilters(pkt *Packet, ip dataunit.IPPacket) (dataunit.IPPacket, bool, error) {
	if len(ipl.Filters) == 0 {
		return ip, true, nil
	}
	flow := flowOf(ip)
	before := flow.endpoints()
	now := ipl.stack.device.scenario.Now()
	for _, f := range ipl.Filters {
		target, injected := f.Filter(now, &flow)
		for _, spoofed := range injected {
			if err := ipl.inject(pkt, spoofed); err != nil {
				return ip, false, err
			}
		}
		if target == DROP {
			pkt.Report("IP packet\nfiltered")
			return ip, false, nil
		}
	}
	if flow.endpoints() == before {
		return ip, true, nil
	}
	pkt.Report("Address\ntranslated")
	return rewrite(ip, flow), true, nil
}

// rewrite returns a copy of ip addressed according to flow.
func rewrite(ip dataunit.IPPacket, flow Flow) dataunit.IPPacket {
	next := dataunit.IPPacket{DataUnit: ip.DeepCopy()}
	next.SetSrc(flow.SrcIP)
	next.SetDst(flow.DstIP)
	if inner := next.Payload(); inner != nil {
		switch next.Protocol() {
		case dataunit.IPProtocolTCP:
			seg := dataunit.TCPSegment{DataUnit: inner}
			seg.SetSrcPort(flow.SrcPort)
			seg.SetDstPort(flow.DstPort)
		case dataunit.IPProtocolUDP:
			dgram := dataunit.UDPDatagram{DataUnit: inner}
			dgram.SetSrcPort(flow.SrcPort)
			dgram.SetDstPort(flow.DstPort)
		}
	}
	next.ComputeChecksum()
	return next
}

// inject sends a spoofed packet described by flow as a child of pkt.
func (ipl *IPLayer) inject(pkt *Packet, flow Flow) error {
	var (
		payload *dataunit.DataUnit
		title   string
		typ     string
	)
	switch flow.Protocol {
	case dataunit.IPProtocolTCP:
		seg := dataunit.NewTCPSegment(flow.SrcPort, flow.DstPort)
		seg.SetSeqNum(flow.SeqNum)
		seg.SetAckNum(flow.AckNum)
		seg.SetFlags(flow.Flags)
		if flow.Payload != nil {
			seg.SetContent(flow.Payload)
		}
		payload, title, typ = seg.DataUnit, seg.Title(), PacketTypeTCP
	case dataunit.IPProtocolUDP:
		dgram := dataunit.NewUDPDatagram(flow.SrcPort, flow.DstPort)
		if flow.Payload != nil {
			dgram.SetContent(flow.Payload)
		}
		dgram.ComputeLength()
		payload, title, typ = dgram.DataUnit, "UDP datagram", PacketTypeUDP
	default:
		return nil
	}

	route, found := ipl.Routing.Table.Query(flow.DstIP)
	if !found {
		return nil
	}
	ip := dataunit.NewIPPacket(payload)
	ip.SetProtocol(flow.Protocol)
	ip.SetSrc(flow.SrcIP)
	ip.SetDst(flow.DstIP)
	ip.SetTTL(ipl.stack.device.scenario.Settings.TTL)
	ip.ComputeTotalLength()
	ip.ComputeChecksum()

	pkt.Report("Injecting...")
	spoofed := pkt.CreateChild(ip.DataUnit, title, "spoofed")
	spoofed.Type = typ
	spoofed.Meta.IPProtocol = flow.Protocol
	spoofed.Meta.Route = &route
	spoofed.Meta.OutIface = route.Iface
	return ipl.stack.link.AcceptFromUpper(spoofed)
}
