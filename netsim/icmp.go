//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// ICMP protocol.
//

package netsim

import (
	"context"
	"log/slog"

	"github.com/N1tramPH/network-simulator/errclass"
	"github.com/N1tramPH/network-simulator/netsim/addr"
	"github.com/N1tramPH/network-simulator/netsim/dataunit"
)

// icmpResults maps received ICMP types to ping outcomes.
var icmpResults = map[dataunit.ICMPType]string{
	dataunit.ICMPEchoReply:      "Reply received",
	dataunit.ICMPDstUnreachable: "Destination unreachable",
	dataunit.ICMPTimeExceeded:   "Time exceeded",
}

// ICMP implements echo requests and error reporting.
//
// Received messages other than echo requests are stored by identifier
// until the ping that caused them collects them.
type ICMP struct {
	buffer map[uint16]dataunit.ICMPMessage
	nextID uint16
	stack  *Stack
}

// newICMP creates the ICMP protocol of st.
func newICMP(st *Stack) *ICMP {
	return &ICMP{buffer: make(map[uint16]dataunit.ICMPMessage), stack: st}
}

// send passes an ICMP packet to the IP layer.
func (icmp *ICMP) send(pkt *Packet) error {
	return icmp.stack.ip.AcceptFromUpper(pkt)
}

// Ping sends an echo request to dst. The returned packet is the root
// of the trace; its Success and Msg fields contain the outcome.
func (icmp *ICMP) Ping(dst addr.IP) (*Packet, error) {
	icmp.nextID++
	id := icmp.nextID
	req := dataunit.NewICMPMessage(dataunit.ICMPEchoRequest, id)
	req.ComputeChecksum()

	dev := icmp.stack.device
	pkt := newPacket(dev, req.DataUnit, "ICMP", "Echo request")
	pkt.Type = PacketTypeICMP
	pkt.Meta.IPProtocol = dataunit.IPProtocolICMP
	pkt.Meta.DstIP = dst

	logger := dev.scenario.Logger
	ctx := context.Background()
	if logger != nil {
		logger.InfoContext(ctx, "pingStart",
			slog.String("device", dev.name),
			slog.String("dst", dst.HostString()),
			slog.String("packetID", pkt.ID),
		)
	}

	err := icmp.send(pkt)
	if err == nil {
		if reply, found := icmp.buffer[id]; found {
			delete(icmp.buffer, id)
			pkt.Success = reply.Type() == dataunit.ICMPEchoReply
			pkt.Msg = icmpResults[reply.Type()]
		} else {
			pkt.Msg = "Request timed out"
			pkt.ReportEnd(pkt.Msg+"!", 2)
		}
	}

	if logger != nil {
		logger.InfoContext(ctx, "pingDone",
			slog.String("device", dev.name),
			slog.String("dst", dst.HostString()),
			slog.Any("err", err),
			slog.String("errClass", errclass.New(err)),
			slog.String("msg", pkt.Msg),
			slog.String("packetID", pkt.ID),
			slog.Int("packets", pkt.Descendants()+1),
			slog.Bool("success", pkt.Success),
		)
	}
	return pkt, err
}

// Resolve answers the IP packet carried by pkt with an ICMP error of
// the given type sent back to its source. ICMP errors never trigger
// further ICMP errors.
func (icmp *ICMP) Resolve(pkt *Packet, typ dataunit.ICMPType) error {
	unit := pkt.GetUnit(dataunit.KindIPPacket)
	if unit == nil {
		return nil
	}
	ip := dataunit.IPPacket{DataUnit: unit}

	var id uint16
	if ip.Protocol() == dataunit.IPProtocolICMP {
		inner := dataunit.ICMPMessage{DataUnit: ip.Payload()}
		if t := inner.Type(); t != dataunit.ICMPEchoRequest && t != dataunit.ICMPEchoReply {
			return nil
		}
		id = inner.ID()
	}

	msg := dataunit.NewICMPMessage(typ, id)
	msg.ComputeChecksum()
	resp := pkt.Response(msg.DataUnit, "ICMP", typ.String())
	resp.Type = PacketTypeICMP
	resp.Meta.IPProtocol = dataunit.IPProtocolICMP
	resp.Meta.DstIP = ip.Src()
	return icmp.send(resp)
}

// ResolveMessage handles an ICMP message addressed to the device.
func (icmp *ICMP) ResolveMessage(pkt *Packet, msg dataunit.ICMPMessage, ip dataunit.IPPacket) error {
	if msg.Type() == dataunit.ICMPEchoRequest {
		pkt.Report("Responding...")
		reply := dataunit.NewICMPMessage(dataunit.ICMPEchoReply, msg.ID())
		reply.SetSeq(msg.Seq())
		reply.ComputeChecksum()
		resp := pkt.Response(reply.DataUnit, "ICMP", "Echo reply")
		resp.Type = PacketTypeICMP
		resp.Meta.IPProtocol = dataunit.IPProtocolICMP
		resp.Meta.DstIP = ip.Src()
		return icmp.send(resp)
	}
	pkt.Report(icmpResults[msg.Type()])
	icmp.buffer[msg.ID()] = msg
	return nil
}
