// SPDX-License-Identifier: GPL-3.0-or-later

package dataunit

import "strings"

// IPProtocol is the protocol number of an IP packet.
type IPProtocol uint8

// String returns the string representation of the IP protocol.
func (p IPProtocol) String() string {
	switch p {
	case IPProtocolICMP:
		return "ICMP"

	case IPProtocolTCP:
		return "TCP"

	case IPProtocolUDP:
		return "UDP"

	default:
		return "unknown"
	}
}

const (
	// IPProtocolICMP is the ICMP protocol number.
	IPProtocolICMP = IPProtocol(1)

	// IPProtocolTCP is the TCP protocol number.
	IPProtocolTCP = IPProtocol(6)

	// IPProtocolUDP is the UDP protocol number.
	IPProtocolUDP = IPProtocol(17)
)

// FrameType is the EtherType of a link frame.
type FrameType uint16

const (
	// FrameTypeIPv4 marks an IPv4 payload.
	FrameTypeIPv4 = FrameType(0x0800)

	// FrameTypeARP marks an ARP payload.
	FrameTypeARP = FrameType(0x0806)
)

// TCPFlags is a set of TCP flags, using the on-wire bit values.
type TCPFlags uint8

// String returns the string representation of the TCP flags.
func (flags TCPFlags) String() string {
	var builder strings.Builder
	for _, entry := range []struct {
		flag TCPFlags
		char byte
	}{
		{TCPFlagFIN, 'F'},
		{TCPFlagSYN, 'S'},
		{TCPFlagRST, 'R'},
		{TCPFlagPSH, 'P'},
		{TCPFlagACK, 'A'},
		{TCPFlagURG, 'U'},
	} {
		if flags&entry.flag != 0 {
			builder.WriteByte(entry.char)
		} else {
			builder.WriteByte('.')
		}
	}
	return builder.String()
}

// Names returns the names of the set flags in the order SYN, ACK,
// FIN, RST, PSH, URG.
func (flags TCPFlags) Names() []string {
	var names []string
	for _, entry := range []struct {
		flag TCPFlags
		name string
	}{
		{TCPFlagSYN, "SYN"},
		{TCPFlagACK, "ACK"},
		{TCPFlagFIN, "FIN"},
		{TCPFlagRST, "RST"},
		{TCPFlagPSH, "PSH"},
		{TCPFlagURG, "URG"},
	} {
		if flags&entry.flag != 0 {
			names = append(names, entry.name)
		}
	}
	return names
}

// Has reports whether all the given flags are set.
func (flags TCPFlags) Has(other TCPFlags) bool {
	return flags&other == other
}

const (
	// TCPFlagFIN is the FIN flag.
	TCPFlagFIN = TCPFlags(1)

	// TCPFlagSYN is the SYN flag.
	TCPFlagSYN = TCPFlags(2)

	// TCPFlagRST is the RST flag.
	TCPFlagRST = TCPFlags(4)

	// TCPFlagPSH is the PSH flag.
	TCPFlagPSH = TCPFlags(8)

	// TCPFlagACK is the ACK flag.
	TCPFlagACK = TCPFlags(16)

	// TCPFlagURG is the URG flag.
	TCPFlagURG = TCPFlags(32)
)

// ICMPType is the type of an ICMP message.
type ICMPType uint8

const (
	// ICMPEchoReply answers an echo request.
	ICMPEchoReply = ICMPType(0)

	// ICMPDstUnreachable reports an undeliverable packet.
	ICMPDstUnreachable = ICMPType(3)

	// ICMPEchoRequest asks for an echo reply.
	ICMPEchoRequest = ICMPType(8)

	// ICMPTimeExceeded reports a packet whose TTL reached zero.
	ICMPTimeExceeded = ICMPType(11)
)

// String returns the string representation of the ICMP type.
func (t ICMPType) String() string {
	switch t {
	case ICMPEchoReply:
		return "Echo reply"
	case ICMPDstUnreachable:
		return "Destination unreachable"
	case ICMPEchoRequest:
		return "Echo request"
	case ICMPTimeExceeded:
		return "Time exceeded"
	default:
		return "unknown"
	}
}

// ArpOperation is the operation code of an ARP message.
type ArpOperation uint16

const (
	// ArpRequest asks who owns an IP address.
	ArpRequest = ArpOperation(1)

	// ArpReply answers an [ArpRequest].
	ArpReply = ArpOperation(2)
)
