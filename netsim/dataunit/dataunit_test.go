// SPDX-License-Identifier: GPL-3.0-or-later

package dataunit_test

import (
	"fmt"
	"testing"

	"github.com/N1tramPH/network-simulator/bytearray"
	"github.com/N1tramPH/network-simulator/netsim/addr"
	"github.com/N1tramPH/network-simulator/netsim/dataunit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksumKnownVectors(t *testing.T) {
	t.Run("RFC 1071 numerical example", func(t *testing.T) {
		b := []byte{0x00, 0x01, 0xf2, 0x03, 0xf4, 0xf5, 0xf6, 0xf7}
		assert.Equal(t, uint16(0x220d), dataunit.Checksum(b))
	})

	t.Run("IPv4 header", func(t *testing.T) {
		header := []byte{
			0x45, 0x00, 0x00, 0x73, 0x00, 0x00, 0x40, 0x00, 0x40, 0x11,
			0x00, 0x00, 0xc0, 0xa8, 0x00, 0x01, 0xc0, 0xa8, 0x00, 0xc7,
		}
		assert.Equal(t, uint16(0xb861), dataunit.Checksum(header))
	})

	t.Run("odd length", func(t *testing.T) {
		assert.Equal(t, dataunit.Checksum([]byte{0xab, 0xcd, 0xef, 0x00}), dataunit.Checksum([]byte{0xab, 0xcd, 0xef}))
	})
}

func TestIPPacketChecksum(t *testing.T) {
	p := dataunit.NewIPPacket(nil)
	p.SetSrc(addr.MustParseIP("192.168.0.1/24"))
	p.SetDst(addr.MustParseIP("192.168.0.199"))
	p.SetProtocol(dataunit.IPProtocolUDP)
	p.ComputeTotalLength()
	p.ComputeChecksum()
	require.True(t, p.CheckChecksum())

	for bit := 0; bit < p.Header.Len(); bit++ {
		flipped := dataunit.IPPacket{DataUnit: p.Copy()}
		v, err := flipped.Header.Bit(bit)
		require.NoError(t, err)
		require.NoError(t, flipped.Header.SetBit(bit, v == 0))
		if flipped.CheckChecksum() {
			t.Fatalf("flipping bit %d went undetected", bit)
		}
	}
}

func TestLinkFrameCRC(t *testing.T) {
	ip := dataunit.NewIPPacket(nil)
	ip.DataUnit.SetRaw(100)
	frame := dataunit.NewLinkFrame(ip.DataUnit, dataunit.FrameTypeIPv4)
	frame.SetDstMAC(addr.MustParseMAC("02:00:00:00:00:02"))
	frame.SetSrcMAC(addr.MustParseMAC("02:00:00:00:00:01"))
	frame.ComputeCRC()
	require.True(t, frame.CheckCRC())

	for bit := 0; bit < frame.Header.Len(); bit++ {
		flipped := dataunit.LinkFrame{DataUnit: frame.Copy()}
		v, err := flipped.Header.Bit(bit)
		require.NoError(t, err)
		require.NoError(t, flipped.Header.SetBit(bit, v == 0))
		if flipped.CheckCRC() {
			t.Fatalf("flipping bit %d went undetected", bit)
		}
	}

	// A change inside the payload is detected as well.
	ip.SetTTL(1)
	assert.False(t, frame.CheckCRC())
}

func TestGetSet(t *testing.T) {
	seg := dataunit.NewTCPSegment(1234, 80)

	v, err := seg.Get("dstPort")
	require.NoError(t, err)
	assert.Equal(t, uint64(80), v)

	require.NoError(t, seg.Set("window", 0x1ffff))
	v, err = seg.Get("window")
	require.NoError(t, err)
	assert.Equal(t, uint64(0xffff), v)

	_, err = seg.Get("nope")
	assert.ErrorIs(t, err, dataunit.ErrUnknownField)

	err = seg.Set(dataunit.FieldData, 1)
	assert.ErrorIs(t, err, dataunit.ErrSpecialField)
}

func TestTCPFlags(t *testing.T) {
	seg := dataunit.NewTCPSegment(1, 2)
	seg.SetFlags(dataunit.TCPFlagSYN | dataunit.TCPFlagACK)
	assert.Equal(t, "SYN+ACK", seg.Title())

	syn, err := seg.Get("syn")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), syn)
	fin, err := seg.Get("fin")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), fin)

	// The six flag bits sit at the end of byte 13, as on the wire.
	assert.Equal(t, byte(0x12), seg.Header[13])
	assert.Equal(t, ".S..A.", seg.Flags().String())
}

func TestSizesAndCopy(t *testing.T) {
	udp := dataunit.NewUDPDatagram(5000, 53)
	udp.SetRaw(30)
	ip := dataunit.NewIPPacket(udp.DataUnit)
	frame := dataunit.NewLinkFrame(ip.DataUnit, dataunit.FrameTypeIPv4)

	assert.Equal(t, 38, udp.Size())
	assert.Equal(t, 58, ip.Size())
	assert.Equal(t, 58, frame.DataBytes())
	assert.Equal(t, 76, frame.Size())
	assert.Len(t, frame.Bytes(), 76)

	copied := dataunit.IPPacket{DataUnit: ip.Copy()}
	copied.SetTTL(3)
	assert.Equal(t, uint8(dataunit.DefaultTTL), ip.TTL())
	assert.Same(t, ip.Payload(), copied.Payload())

	deep := ip.DeepCopy()
	assert.NotSame(t, ip.Payload(), deep.Payload())

	assert.Same(t, udp.DataUnit, frame.Find(dataunit.KindTCPSegment, dataunit.KindUDPDatagram))
	assert.Nil(t, frame.Find(dataunit.KindICMPMessage))
}

func TestArpMessages(t *testing.T) {
	srcMAC := addr.MustParseMAC("02:00:00:00:00:01")
	req := dataunit.NewArpRequest(srcMAC, addr.MustParseIP("10.0.0.1/24"), addr.MustParseIP("10.0.0.2"))
	assert.True(t, req.IsRequest())
	assert.Equal(t, "ARP request", req.String())
	assert.True(t, req.DstMAC().IsBroadcast())

	dstMAC := addr.MustParseMAC("02:00:00:00:00:02")
	rep := dataunit.NewArpReply(req, dstMAC, addr.MustParseIP("10.0.0.2/24"))
	assert.True(t, rep.IsReply())
	assert.Equal(t, srcMAC, rep.DstMAC())
	assert.True(t, rep.DstIP().Equal(addr.MustParseIP("10.0.0.1")))
	assert.Equal(t, 28, rep.Size())
}

func TestICMPMessage(t *testing.T) {
	m := dataunit.NewICMPMessage(dataunit.ICMPEchoRequest, 0xbeef)
	m.SetSeq(7)
	m.ComputeChecksum()
	assert.True(t, m.CheckChecksum())
	assert.Equal(t, uint16(0xbeef), m.ID())
	assert.Equal(t, "ICMP Echo request", m.String())
}

func TestSchemasAreIntrospectable(t *testing.T) {
	for _, s := range dataunit.Schemas() {
		for _, f := range s.Fields() {
			if f.Special {
				continue
			}
			assert.LessOrEqual(t, f.Offset+f.Width, s.HeaderBytes()*8, "%s.%s", s.Name(), f.Name)
			got, found := s.Lookup(f.Name)
			assert.True(t, found)
			assert.Equal(t, f, got)
		}
	}
	_, err := dataunit.NewSchema(dataunit.KindUDPDatagram, "bad", 1, dataunit.Field{Name: "x", Offset: 4, Width: 8})
	assert.Error(t, err)
}

func ExampleSchema_Lookup() {
	f, _ := dataunit.IPPacketSchema.Lookup("ttl")
	fmt.Println(f.Title, f.Offset, f.Width)
	// Output: Time to live 64 8
}

func ExampleDataUnit_Set() {
	du := dataunit.New(dataunit.UDPDatagramSchema)
	_ = du.Set("dstPort", 53)
	fmt.Println(bytearray.ByteArray(du.Header[:4]).Format(16, " "))
	// Output: 00 00 00 35
}
