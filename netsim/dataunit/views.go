// SPDX-License-Identifier: GPL-3.0-or-later

package dataunit

import (
	"hash/crc32"
	"strings"

	"github.com/N1tramPH/network-simulator/netsim/addr"
	"github.com/rbmk-project/common/runtimex"
)

// LinkFrame is a typed view over a [KindLinkFrame] unit.
type LinkFrame struct {
	*DataUnit
}

// NewLinkFrame encapsulates payload into a new frame of the given type.
func NewLinkFrame(payload *DataUnit, ft FrameType) LinkFrame {
	f := LinkFrame{New(LinkFrameSchema)}
	f.SetPayload(payload)
	f.SetType(ft)
	return f
}

// DstMAC returns the destination address.
func (f LinkFrame) DstMAC() addr.MAC { return addr.MACFromUint64(f.get("dstMac")) }

// SetDstMAC sets the destination address.
func (f LinkFrame) SetDstMAC(m addr.MAC) { f.set("dstMac", m.Uint64()) }

// SrcMAC returns the source address.
func (f LinkFrame) SrcMAC() addr.MAC { return addr.MACFromUint64(f.get("srcMac")) }

// SetSrcMAC sets the source address.
func (f LinkFrame) SetSrcMAC(m addr.MAC) { f.set("srcMac", m.Uint64()) }

// Type returns the EtherType.
func (f LinkFrame) Type() FrameType { return FrameType(f.get("type")) }

// SetType sets the EtherType.
func (f LinkFrame) SetType(ft FrameType) { f.set("type", uint64(ft)) }

// FCS returns the stored frame check sequence.
func (f LinkFrame) FCS() uint32 { return uint32(f.get("fcs")) }

// crc computes the CRC-32 of the frame addresses, type, and payload.
func (f LinkFrame) crc() uint32 {
	h := crc32.NewIEEE()
	h.Write(f.Header[:14])
	if p := f.Payload(); p != nil {
		h.Write(p.Bytes())
	} else if f.Content() != nil {
		h.Write(f.Content())
	} else {
		h.Write(make([]byte, f.Raw()))
	}
	return h.Sum32()
}

// ComputeCRC stores the frame check sequence.
func (f LinkFrame) ComputeCRC() { f.set("fcs", uint64(f.crc())) }

// CheckCRC reports whether the stored FCS matches the frame contents.
func (f LinkFrame) CheckCRC() bool { return f.FCS() == f.crc() }

// ArpMessage is a typed view over a [KindArpMessage] unit.
type ArpMessage struct {
	*DataUnit
}

func newArpMessage(op ArpOperation) ArpMessage {
	m := ArpMessage{New(ArpMessageSchema)}
	m.set("macType", 1)
	m.set("ipType", uint64(FrameTypeIPv4))
	m.set("macLength", addr.MACLen)
	m.set("ipLength", 4)
	m.set("operation", uint64(op))
	return m
}

// NewArpRequest asks who owns target on behalf of srcMAC/srcIP.
func NewArpRequest(srcMAC addr.MAC, srcIP, target addr.IP) ArpMessage {
	m := newArpMessage(ArpRequest)
	m.SetSrcMAC(srcMAC)
	m.SetSrcIP(srcIP)
	m.SetDstMAC(addr.Broadcast())
	m.SetDstIP(target)
	return m
}

// NewArpReply answers request on behalf of the owner of srcMAC/srcIP.
func NewArpReply(request ArpMessage, srcMAC addr.MAC, srcIP addr.IP) ArpMessage {
	m := newArpMessage(ArpReply)
	m.SetSrcMAC(srcMAC)
	m.SetSrcIP(srcIP)
	m.SetDstMAC(request.SrcMAC())
	m.SetDstIP(request.SrcIP())
	return m
}

// Operation returns the operation code.
func (m ArpMessage) Operation() ArpOperation { return ArpOperation(m.get("operation")) }

// IsRequest reports whether this is a request.
func (m ArpMessage) IsRequest() bool { return m.Operation() == ArpRequest }

// IsReply reports whether this is a reply.
func (m ArpMessage) IsReply() bool { return m.Operation() == ArpReply }

// SrcMAC returns the sender hardware address.
func (m ArpMessage) SrcMAC() addr.MAC { return addr.MACFromUint64(m.get("srcMac")) }

// SetSrcMAC sets the sender hardware address.
func (m ArpMessage) SetSrcMAC(v addr.MAC) { m.set("srcMac", v.Uint64()) }

// SrcIP returns the sender protocol address.
func (m ArpMessage) SrcIP() addr.IP { return addr.IPFromUint32(uint32(m.get("srcIp")), 32) }

// SetSrcIP sets the sender protocol address.
func (m ArpMessage) SetSrcIP(v addr.IP) { m.set("srcIp", uint64(v.Uint32())) }

// DstMAC returns the target hardware address.
func (m ArpMessage) DstMAC() addr.MAC { return addr.MACFromUint64(m.get("dstMac")) }

// SetDstMAC sets the target hardware address.
func (m ArpMessage) SetDstMAC(v addr.MAC) { m.set("dstMac", v.Uint64()) }

// DstIP returns the target protocol address.
func (m ArpMessage) DstIP() addr.IP { return addr.IPFromUint32(uint32(m.get("dstIp")), 32) }

// SetDstIP sets the target protocol address.
func (m ArpMessage) SetDstIP(v addr.IP) { m.set("dstIp", uint64(v.Uint32())) }

// String returns "ARP request" or "ARP reply".
func (m ArpMessage) String() string {
	if m.IsRequest() {
		return "ARP request"
	}
	return "ARP reply"
}

// DefaultTTL is the initial time to live of a new [IPPacket].
const DefaultTTL = 64

// IPPacket is a typed view over a [KindIPPacket] unit.
type IPPacket struct {
	*DataUnit
}

// NewIPPacket encapsulates payload into an IPv4 packet with version 4,
// a five-word header, and [DefaultTTL].
func NewIPPacket(payload *DataUnit) IPPacket {
	p := IPPacket{New(IPPacketSchema)}
	p.SetPayload(payload)
	p.set("version", 4)
	p.set("ihl", 5)
	p.SetTTL(DefaultTTL)
	return p
}

// Src returns the source address as a host address.
func (p IPPacket) Src() addr.IP { return addr.IPFromUint32(uint32(p.get("src")), 32) }

// SetSrc sets the source address.
func (p IPPacket) SetSrc(ip addr.IP) { p.set("src", uint64(ip.Uint32())) }

// Dst returns the destination address as a host address.
func (p IPPacket) Dst() addr.IP { return addr.IPFromUint32(uint32(p.get("dst")), 32) }

// SetDst sets the destination address.
func (p IPPacket) SetDst(ip addr.IP) { p.set("dst", uint64(ip.Uint32())) }

// TTL returns the time to live.
func (p IPPacket) TTL() uint8 { return uint8(p.get("ttl")) }

// SetTTL sets the time to live.
func (p IPPacket) SetTTL(ttl uint8) { p.set("ttl", uint64(ttl)) }

// DecrementTTL lowers the time to live by one, stopping at zero.
func (p IPPacket) DecrementTTL() {
	if ttl := p.TTL(); ttl > 0 {
		p.SetTTL(ttl - 1)
	}
}

// Protocol returns the payload protocol.
func (p IPPacket) Protocol() IPProtocol { return IPProtocol(p.get("protocol")) }

// SetProtocol sets the payload protocol.
func (p IPPacket) SetProtocol(proto IPProtocol) { p.set("protocol", uint64(proto)) }

// TotalLength returns the stored total length.
func (p IPPacket) TotalLength() int { return int(p.get("totalLength")) }

// ComputeTotalLength stores header plus payload length.
func (p IPPacket) ComputeTotalLength() { p.set("totalLength", uint64(p.Size())) }

// HeaderChecksum returns the stored header checksum.
func (p IPPacket) HeaderChecksum() uint16 { return uint16(p.get(FieldChecksum)) }

// ComputeChecksum stores the RFC 1071 header checksum.
func (p IPPacket) ComputeChecksum() { p.set(FieldChecksum, uint64(headerChecksum(p.DataUnit, nil))) }

// CheckChecksum reports whether the stored checksum is valid.
func (p IPPacket) CheckChecksum() bool {
	return Checksum(p.Header) == 0
}

// ICMPMessage is a typed view over a [KindICMPMessage] unit.
type ICMPMessage struct {
	*DataUnit
}

// NewICMPMessage returns a message of the given type and identifier.
func NewICMPMessage(t ICMPType, id uint16) ICMPMessage {
	m := ICMPMessage{New(ICMPMessageSchema)}
	m.set("type", uint64(t))
	m.SetID(id)
	return m
}

// Type returns the message type.
func (m ICMPMessage) Type() ICMPType { return ICMPType(m.get("type")) }

// Code returns the message code.
func (m ICMPMessage) Code() uint8 { return uint8(m.get("code")) }

// ID returns the identifier used to correlate requests and replies.
func (m ICMPMessage) ID() uint16 { return uint16(m.get("id")) }

// SetID sets the identifier.
func (m ICMPMessage) SetID(id uint16) { m.set("id", uint64(id)) }

// Seq returns the sequence number.
func (m ICMPMessage) Seq() uint16 { return uint16(m.get("seq")) }

// SetSeq sets the sequence number.
func (m ICMPMessage) SetSeq(seq uint16) { m.set("seq", uint64(seq)) }

// ComputeChecksum stores the RFC 1071 checksum of the message.
func (m ICMPMessage) ComputeChecksum() { m.set(FieldChecksum, uint64(headerChecksum(m.DataUnit, nil))) }

// CheckChecksum reports whether the stored checksum is valid.
func (m ICMPMessage) CheckChecksum() bool { return Checksum(m.Header) == 0 }

// String returns the type name.
func (m ICMPMessage) String() string { return "ICMP " + m.Type().String() }

// TCPSegment is a typed view over a [KindTCPSegment] unit.
type TCPSegment struct {
	*DataUnit
}

// NewTCPSegment returns a segment with a five-word header.
func NewTCPSegment(srcPort, dstPort uint16) TCPSegment {
	s := TCPSegment{New(TCPSegmentSchema)}
	s.set(FieldSrcPort, uint64(srcPort))
	s.set(FieldDstPort, uint64(dstPort))
	s.set("dataOffset", 5)
	return s
}

// SrcPort returns the source port.
func (s TCPSegment) SrcPort() uint16 { return uint16(s.get(FieldSrcPort)) }

// DstPort returns the destination port.
func (s TCPSegment) DstPort() uint16 { return uint16(s.get(FieldDstPort)) }

// SetSrcPort sets the source port.
func (s TCPSegment) SetSrcPort(port uint16) { s.set(FieldSrcPort, uint64(port)) }

// SetDstPort sets the destination port.
func (s TCPSegment) SetDstPort(port uint16) { s.set(FieldDstPort, uint64(port)) }

// SeqNum returns the sequence number.
func (s TCPSegment) SeqNum() uint32 { return uint32(s.get("seqNum")) }

// SetSeqNum sets the sequence number.
func (s TCPSegment) SetSeqNum(v uint32) { s.set("seqNum", uint64(v)) }

// AckNum returns the acknowledgement number.
func (s TCPSegment) AckNum() uint32 { return uint32(s.get("ackNum")) }

// SetAckNum sets the acknowledgement number.
func (s TCPSegment) SetAckNum(v uint32) { s.set("ackNum", uint64(v)) }

// flagsOffset is the bit index of the URG flag, the first of the six
// contiguous flag bits.
const flagsOffset = 106

// Flags returns the six control flags.
func (s TCPSegment) Flags() TCPFlags {
	return TCPFlags(runtimex.Try1(s.Header.GetBits(flagsOffset, 6)))
}

// SetFlags replaces the six control flags.
func (s TCPSegment) SetFlags(flags TCPFlags) {
	runtimex.Try0(s.Header.SetBits(uint64(flags), flagsOffset, 6))
}

// Title joins the flag names with "+", e.g. "SYN+ACK".
func (s TCPSegment) Title() string {
	return strings.Join(s.Flags().Names(), "+")
}

// UDPDatagram is a typed view over a [KindUDPDatagram] unit.
type UDPDatagram struct {
	*DataUnit
}

// NewUDPDatagram returns a datagram with the given ports.
func NewUDPDatagram(srcPort, dstPort uint16) UDPDatagram {
	d := UDPDatagram{New(UDPDatagramSchema)}
	d.set(FieldSrcPort, uint64(srcPort))
	d.set(FieldDstPort, uint64(dstPort))
	return d
}

// SrcPort returns the source port.
func (d UDPDatagram) SrcPort() uint16 { return uint16(d.get(FieldSrcPort)) }

// DstPort returns the destination port.
func (d UDPDatagram) DstPort() uint16 { return uint16(d.get(FieldDstPort)) }

// SetSrcPort sets the source port.
func (d UDPDatagram) SetSrcPort(port uint16) { d.set(FieldSrcPort, uint64(port)) }

// SetDstPort sets the destination port.
func (d UDPDatagram) SetDstPort(port uint16) { d.set(FieldDstPort, uint64(port)) }

// Length returns the stored datagram length.
func (d UDPDatagram) Length() int { return int(d.get("length")) }

// ComputeLength stores header plus payload length.
func (d UDPDatagram) ComputeLength() { d.set("length", uint64(d.Size())) }
