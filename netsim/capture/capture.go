// SPDX-License-Identifier: GPL-3.0-or-later

// Package capture exports simulated traces as pcap files.
//
// Every transmitted packet of a trace carries a link frame whose
// headers follow the real wire formats, so the captures open in the
// usual packet analyzers. [Decode] parses a frame back using gopacket.
package capture

import (
	"io"
	"strings"
	"time"

	"github.com/N1tramPH/network-simulator/netsim"
	"github.com/N1tramPH/network-simulator/netsim/dataunit"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// Snaplen is the snapshot length written in the file header.
const Snaplen = 65536

// Epoch is the timestamp of the first captured frame.
var Epoch = time.Unix(0, 0).UTC()

// Interval is the time between consecutive captured frames.
const Interval = time.Millisecond

// ethernetHeaderBytes is the size of the frame header preceding the
// payload on the wire. The frame check sequence is not captured.
const ethernetHeaderBytes = 14

// Frame returns the wire bytes of the link frame carried by pkt.
func Frame(pkt *netsim.Packet) ([]byte, bool) {
	unit := pkt.GetUnit(dataunit.KindLinkFrame)
	if unit == nil {
		return nil, false
	}
	out := make([]byte, 0, unit.Size())
	out = append(out, unit.Header[:ethernetHeaderBytes]...)
	if inner := unit.Payload(); inner != nil {
		out = append(out, inner.Bytes()...)
	}
	return out, true
}

// Frames returns the frames transmitted in the trace rooted at root,
// in depth-first order.
func Frames(root *netsim.Packet) [][]byte {
	var out [][]byte
	for _, pkt := range root.Flatten(false) {
		if !pkt.Transmitted {
			continue
		}
		if frame, ok := Frame(pkt); ok {
			out = append(out, frame)
		}
	}
	return out
}

// WritePcap writes the frames of the traces to w as a single pcap
// file and returns the number of written frames. Nil roots are skipped.
func WritePcap(w io.Writer, roots ...*netsim.Packet) (int, error) {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(Snaplen, layers.LinkTypeEthernet); err != nil {
		return 0, err
	}
	var frames [][]byte
	for _, root := range roots {
		if root != nil {
			frames = append(frames, Frames(root)...)
		}
	}
	for idx, frame := range frames {
		ci := gopacket.CaptureInfo{
			Timestamp:     Epoch.Add(time.Duration(idx) * Interval),
			CaptureLength: len(frame),
			Length:        len(frame),
		}
		if err := pw.WritePacket(ci, frame); err != nil {
			return idx, err
		}
	}
	return len(frames), nil
}

// Decode parses an Ethernet frame.
func Decode(frame []byte) gopacket.Packet {
	return gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.Default)
}

// Summary returns the layer names of a frame joined by "/",
// e.g. "Ethernet/IPv4/TCP".
func Summary(frame []byte) string {
	var names []string
	for _, layer := range Decode(frame).Layers() {
		names = append(names, layer.LayerType().String())
	}
	return strings.Join(names, "/")
}
