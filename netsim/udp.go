//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// UDP protocol.
//

package netsim

import (
	"github.com/N1tramPH/network-simulator/netsim/addr"
	"github.com/N1tramPH/network-simulator/netsim/dataunit"
)

// UDPProtocol implements connectionless datagram delivery.
type UDPProtocol struct{}

// encapsulate wraps the payload into a datagram addressed to the
// packet's remote address or, when unset, to the socket's one.
func (udp *UDPProtocol) encapsulate(pkt *Packet) {
	sock := pkt.Meta.Socket
	remote := sock.remote
	if pkt.Meta.Remote.Port != 0 {
		remote = pkt.Meta.Remote
	}
	dgram := dataunit.NewUDPDatagram(sock.local.Port, remote.Port)
	if pkt.Meta.Payload != nil {
		dgram.SetContent(pkt.Meta.Payload)
	} else {
		dgram.SetRaw(pkt.Meta.PayloadSize)
	}
	dgram.ComputeLength()

	pkt.Data = dgram.DataUnit
	pkt.Type = PacketTypeUDP
	pkt.Meta.IPProtocol = dataunit.IPProtocolUDP
	if pkt.Meta.DstIP.IsZeroAddr() {
		pkt.Meta.DstIP = remote.IP
	}
	if pkt.Title == "" {
		pkt.Title = "UDP datagram"
	}
}

// handle queues a datagram on sock and returns whether the application
// layer should see it.
func (udp *UDPProtocol) handle(pkt *Packet, sock *Socket, remote addr.SocketAddr) bool {
	if !sock.bound {
		pkt.Report("Datagram dropped")
		return false
	}
	dgram := dataunit.UDPDatagram{DataUnit: pkt.GetUnit(dataunit.KindUDPDatagram)}
	sock.deliverDatagram(remote, dgram.Content(), dgram.DataBytes())
	pkt.Meta.Socket = sock
	pkt.Report("Datagram\nreceived")
	return true
}
