//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Packet metadata and aliases.
//

package netsim

import (
	"github.com/N1tramPH/network-simulator/netsim/addr"
	"github.com/N1tramPH/network-simulator/netsim/dataunit"
	"github.com/N1tramPH/network-simulator/netsim/packet"
	"github.com/N1tramPH/network-simulator/netsim/router"
	"github.com/rbmk-project/common/runtimex"
)

// Meta is the cross-layer metadata a [*Packet] carries through the stack.
type Meta struct {
	// Socket is the socket that originated the packet, if any.
	Socket *Socket

	// Route is the route resolved by the IP layer.
	Route *Route

	// InIface is the adapter the packet was received on.
	InIface *Adapter

	// OutIface is the adapter the packet is sent through.
	OutIface *Adapter

	// IPProtocol is the protocol carried by the IP packet.
	IPProtocol dataunit.IPProtocol

	// DstIP overrides the socket's remote address when set.
	DstIP addr.IP

	// Remote overrides the socket's remote port when Port is not zero.
	Remote addr.SocketAddr

	// Flags contains the TCP flags to send.
	Flags dataunit.TCPFlags

	// SeqNum overrides the socket sequence number when HasSeq is set.
	SeqNum uint32

	// HasSeq marks SeqNum as valid.
	HasSeq bool

	// PayloadSize is the number of application bytes to carry.
	PayloadSize int

	// Payload contains the application bytes, if any.
	Payload []byte
}

// Type aliases
type (
	// Packet is the simulator [packet.Packet].
	Packet = packet.Packet[Meta]

	// PacketExceedError is returned when a single action produces more
	// than [packet.MaxDescendants] packets.
	PacketExceedError = packet.ExceedError[Meta]

	// Route is a routing table row of a device.
	Route = router.Route[*Adapter]
)

// Packet types.
const (
	PacketTypeARP  = "ARP"
	PacketTypeICMP = "ICMP"
	PacketTypeTCP  = "TCP"
	PacketTypeUDP  = "UDP"
)

// newPacket creates a root packet starting at the given device.
func newPacket(dev *Device, data *dataunit.DataUnit, title, subtitle string) *Packet {
	pkt := packet.New[Meta](data, title, subtitle)
	runtimex.Try0(pkt.SetStartPoint(dev))
	return pkt
}
