// SPDX-License-Identifier: GPL-3.0-or-later

package dataunit

import (
	"errors"
	"fmt"

	"github.com/rbmk-project/common/runtimex"
)

// Kind identifies the protocol header carried by a [*DataUnit].
type Kind uint8

const (
	// KindLinkFrame is an Ethernet II style link frame.
	KindLinkFrame Kind = iota + 1

	// KindArpMessage is an ARP request or reply.
	KindArpMessage

	// KindIPPacket is an IPv4 packet.
	KindIPPacket

	// KindICMPMessage is an ICMP message.
	KindICMPMessage

	// KindTCPSegment is a TCP segment.
	KindTCPSegment

	// KindUDPDatagram is a UDP datagram.
	KindUDPDatagram
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindLinkFrame:
		return "linkFrame"
	case KindArpMessage:
		return "arpMessage"
	case KindIPPacket:
		return "ipPacket"
	case KindICMPMessage:
		return "icmpMessage"
	case KindTCPSegment:
		return "tcpSegment"
	case KindUDPDatagram:
		return "udpDatagram"
	default:
		return "unknown"
	}
}

// Field is a named bit range of a header.
type Field struct {
	// Title is the human readable name.
	Title string

	// Name is the accessor name.
	Name string

	// Offset is the absolute bit index of the first bit.
	Offset int

	// Width is the number of bits.
	Width int

	// Special marks fields without a fixed bit range (nested data,
	// variable options). They are listed for inspection only.
	Special bool
}

var (
	// ErrUnknownField is returned when a schema has no such field.
	ErrUnknownField = errors.New("dataunit: unknown field")

	// ErrSpecialField is returned when accessing a special field through
	// the bit accessors.
	ErrSpecialField = errors.New("dataunit: special field has no bit accessor")

	// errFieldOutOfHeader is returned by [NewSchema] for a field that
	// does not fit inside the header.
	errFieldOutOfHeader = errors.New("dataunit: field exceeds the header")
)

// Schema is the immutable, ordered field layout of a header type.
//
// Construct using [NewSchema].
type Schema struct {
	kind        Kind
	name        string
	headerBytes int
	fields      []Field
	index       map[string]int
}

// NewSchema builds a [*Schema] and its name to field lookup table.
func NewSchema(kind Kind, name string, headerBytes int, fields ...Field) (*Schema, error) {
	s := &Schema{
		kind:        kind,
		name:        name,
		headerBytes: headerBytes,
		fields:      append([]Field(nil), fields...),
		index:       make(map[string]int, len(fields)),
	}
	for idx, f := range s.fields {
		if _, dup := s.index[f.Name]; dup {
			return nil, fmt.Errorf("dataunit: duplicate field %q in %s", f.Name, name)
		}
		if !f.Special && (f.Offset < 0 || f.Width <= 0 || f.Width > 64 || f.Offset+f.Width > headerBytes*8) {
			return nil, fmt.Errorf("%w: %s.%s", errFieldOutOfHeader, name, f.Name)
		}
		s.index[f.Name] = idx
	}
	return s, nil
}

// Kind returns the header kind.
func (s *Schema) Kind() Kind {
	return s.kind
}

// Name returns the human readable header name.
func (s *Schema) Name() string {
	return s.name
}

// HeaderBytes returns the fixed header length in bytes.
func (s *Schema) HeaderBytes() int {
	return s.headerBytes
}

// Fields returns a copy of the ordered field list.
func (s *Schema) Fields() []Field {
	return append([]Field(nil), s.fields...)
}

// Lookup returns the field with the given name.
func (s *Schema) Lookup(name string) (Field, bool) {
	idx, found := s.index[name]
	if !found {
		return Field{}, false
	}
	return s.fields[idx], true
}

func mustSchema(kind Kind, name string, headerBytes int, fields ...Field) *Schema {
	return runtimex.Try1(NewSchema(kind, name, headerBytes, fields...))
}

func bits(title, name string, offset, width int) Field {
	return Field{Title: title, Name: name, Offset: offset, Width: width}
}

func special(title, name string) Field {
	return Field{Title: title, Name: name, Special: true}
}

// Field names shared by several schemas.
const (
	FieldSrcPort  = "srcPort"
	FieldDstPort  = "dstPort"
	FieldChecksum = "checksum"
	FieldData     = "data"
	FieldOptions  = "options"
)

// LinkFrameSchema describes an Ethernet II frame with the FCS kept in
// the header.
var LinkFrameSchema = mustSchema(KindLinkFrame, "Link frame (Ethernet II)", 18,
	bits("Destination MAC", "dstMac", 0, 48),
	bits("Source MAC", "srcMac", 48, 48),
	bits("Type", "type", 96, 16),
	special("Data", FieldData),
	bits("FCS", "fcs", 112, 32),
)

// ArpMessageSchema describes an ARP message for IPv4 over Ethernet.
var ArpMessageSchema = mustSchema(KindArpMessage, "ARP message", 28,
	bits("MAC type", "macType", 0, 16),
	bits("IP type", "ipType", 16, 16),
	bits("MAC length", "macLength", 32, 8),
	bits("IP length", "ipLength", 40, 8),
	bits("Operation", "operation", 48, 16),
	bits("Source MAC", "srcMac", 64, 48),
	bits("Source IP", "srcIp", 112, 32),
	bits("Destination MAC", "dstMac", 144, 48),
	bits("Destination IP", "dstIp", 192, 32),
)

// IPPacketSchema describes an IPv4 header without options.
var IPPacketSchema = mustSchema(KindIPPacket, "IP packet", 20,
	bits("IP version", "version", 0, 4),
	bits("Header length", "ihl", 4, 4),
	bits("Type of service", "tos", 8, 8),
	bits("Total length", "totalLength", 16, 16),
	bits("Identification", "id", 32, 16),
	bits("Flags", "flags", 48, 3),
	bits("Fragment offset", "fragOffset", 51, 13),
	bits("Time to live", "ttl", 64, 8),
	bits("Protocol", "protocol", 72, 8),
	bits("Header checksum", FieldChecksum, 80, 16),
	bits("Source IP", "src", 96, 32),
	bits("Destination IP", "dst", 128, 32),
	special("Options", FieldOptions),
	special("Data", FieldData),
)

// ICMPMessageSchema describes an ICMP header whose rest-of-header word
// carries an identifier and a sequence number.
var ICMPMessageSchema = mustSchema(KindICMPMessage, "ICMP message", 8,
	bits("Type", "type", 0, 8),
	bits("Code", "code", 8, 8),
	bits("Checksum", FieldChecksum, 16, 16),
	bits("Identifier", "id", 32, 16),
	bits("Sequence number", "seq", 48, 16),
)

// TCPSegmentSchema describes a TCP header without options.
var TCPSegmentSchema = mustSchema(KindTCPSegment, "TCP segment", 20,
	bits("Source port", FieldSrcPort, 0, 16),
	bits("Destination port", FieldDstPort, 16, 16),
	bits("Sequence number", "seqNum", 32, 32),
	bits("Acknowledgement number", "ackNum", 64, 32),
	bits("Header length", "dataOffset", 96, 4),
	bits("Reserved", "reserved", 100, 6),
	bits("URG", "urg", 106, 1),
	bits("ACK", "ack", 107, 1),
	bits("PSH", "psh", 108, 1),
	bits("RST", "rst", 109, 1),
	bits("SYN", "syn", 110, 1),
	bits("FIN", "fin", 111, 1),
	bits("Window size", "window", 112, 16),
	bits("Checksum", FieldChecksum, 128, 16),
	bits("Urgent pointer", "urgPtr", 144, 16),
	special("Options", FieldOptions),
	special("Data", FieldData),
)

// UDPDatagramSchema describes a UDP header.
var UDPDatagramSchema = mustSchema(KindUDPDatagram, "UDP datagram", 8,
	bits("Source port", FieldSrcPort, 0, 16),
	bits("Destination port", FieldDstPort, 16, 16),
	bits("Datagram length", "length", 32, 16),
	bits("Checksum", FieldChecksum, 48, 16),
	special("Data", FieldData),
)

// Schemas returns every header schema known to the simulator.
func Schemas() []*Schema {
	return []*Schema{
		LinkFrameSchema,
		ArpMessageSchema,
		IPPacketSchema,
		ICMPMessageSchema,
		TCPSegmentSchema,
		UDPDatagramSchema,
	}
}
