//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Transport and application layers.
//

package netsim

import (
	"fmt"

	"github.com/N1tramPH/network-simulator/netsim/addr"
	"github.com/N1tramPH/network-simulator/netsim/dataunit"
)

// TransportLayer multiplexes sockets over the IP layer.
type TransportLayer struct {
	// TCP is the TCP protocol.
	TCP *TCPProtocol

	// UDP is the UDP protocol.
	UDP *UDPProtocol

	stack *Stack
}

var _ Layer = &TransportLayer{}

// newTransportLayer creates the transport layer of st.
func newTransportLayer(st *Stack) *TransportLayer {
	return &TransportLayer{TCP: &TCPProtocol{stack: st}, UDP: &UDPProtocol{}, stack: st}
}

// String implements [Layer].
func (tl *TransportLayer) String() string {
	return "Transport layer"
}

// encapsulate wraps the packet payload according to its socket protocol.
func (tl *TransportLayer) encapsulate(pkt *Packet) {
	if pkt.Meta.Socket.proto == UDP {
		tl.UDP.encapsulate(pkt)
		return
	}
	tl.TCP.encapsulate(pkt)
}

// AcceptFromUpper implements [Layer]. The packet must carry its socket.
func (tl *TransportLayer) AcceptFromUpper(pkt *Packet) error {
	if pkt.Meta.Socket == nil {
		return EINVAL
	}
	tl.encapsulate(pkt)
	return tl.stack.Lower(tl).AcceptFromUpper(pkt)
}

// AcceptFromLower implements [Layer].
func (tl *TransportLayer) AcceptFromLower(pkt *Packet) error {
	unit := pkt.GetUnit(dataunit.KindTCPSegment, dataunit.KindUDPDatagram)
	if unit == nil {
		pkt.Report("Segment dropped")
		return nil
	}
	ip := dataunit.IPPacket{DataUnit: pkt.GetUnit(dataunit.KindIPPacket)}

	proto := TCP
	var srcPort, dstPort uint16
	if unit.Kind() == dataunit.KindUDPDatagram {
		proto = UDP
		dgram := dataunit.UDPDatagram{DataUnit: unit}
		srcPort, dstPort = dgram.SrcPort(), dgram.DstPort()
	} else {
		seg := dataunit.TCPSegment{DataUnit: unit}
		srcPort, dstPort = seg.SrcPort(), seg.DstPort()
	}
	remote := addr.NewSocketAddr(ip.Src(), srcPort)

	sock := tl.stack.findSocket(dstPort, remote)
	if sock == nil || sock.proto != proto {
		pkt.Report(fmt.Sprintf("No process listening\non port %d!", dstPort))
		return tl.stack.ip.ICMP.Resolve(pkt, dataunit.ICMPDstUnreachable)
	}

	if proto == UDP {
		if !tl.UDP.handle(pkt, sock, remote) {
			return nil
		}
		return tl.stack.Upper(tl).AcceptFromLower(pkt)
	}

	resp := tl.TCP.handle(pkt, sock)
	if resp == nil {
		return nil
	}
	return tl.AcceptFromUpper(resp)
}

// ApplicationLayer runs the datagram handlers of UDP sockets.
type ApplicationLayer struct {
	stack *Stack
}

var _ Layer = &ApplicationLayer{}

// String implements [Layer].
func (al *ApplicationLayer) String() string {
	return "Application layer"
}

// AcceptFromUpper implements [Layer].
func (al *ApplicationLayer) AcceptFromUpper(pkt *Packet) error {
	return al.stack.Lower(al).AcceptFromUpper(pkt)
}

// AcceptFromLower implements [Layer]. A datagram delivered to a socket
// with a [DatagramHandler] may be answered with a reply datagram.
func (al *ApplicationLayer) AcceptFromLower(pkt *Packet) error {
	sock := pkt.Meta.Socket
	if sock == nil || sock.Handler == nil {
		return nil
	}
	dgram := dataunit.UDPDatagram{DataUnit: pkt.GetUnit(dataunit.KindUDPDatagram)}
	ip := dataunit.IPPacket{DataUnit: pkt.GetUnit(dataunit.KindIPPacket)}
	from := addr.NewSocketAddr(ip.Src(), dgram.SrcPort())

	payload := sock.Handler(pkt, from, dgram.Content())
	if payload == nil {
		return nil
	}
	pkt.Report("Responding...")
	resp := pkt.Response(nil, "UDP datagram", "")
	resp.Meta.Socket = sock
	resp.Meta.DstIP = from.IP
	resp.Meta.Remote = from
	resp.Meta.Payload = payload
	resp.Meta.PayloadSize = len(payload)
	return al.AcceptFromUpper(resp)
}
