//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// TCP protocol.
//

package netsim

import (
	"fmt"

	"github.com/N1tramPH/network-simulator/netsim/dataunit"
)

// TCPProtocol implements connection management and data transfer.
//
// Segments are processed synchronously: every received segment that
// needs an answer yields the response packet, which the transport
// layer sends right away.
type TCPProtocol struct {
	stack *Stack
}

// encapsulate wraps the payload described by the packet metadata into
// a segment using the socket addresses and sequence numbers.
func (tcp *TCPProtocol) encapsulate(pkt *Packet) {
	sock := pkt.Meta.Socket
	seg := dataunit.NewTCPSegment(sock.local.Port, sock.remote.Port)

	seq := sock.seqNum
	if pkt.Meta.HasSeq {
		seq = pkt.Meta.SeqNum
	}
	seg.SetSeqNum(seq)

	flags := pkt.Meta.Flags
	if sock.ackNum != 0 {
		flags |= dataunit.TCPFlagACK
		seg.SetAckNum(sock.ackNum)
	}
	seg.SetFlags(flags)

	size := pkt.Meta.PayloadSize
	if pkt.Meta.Payload != nil {
		seg.SetContent(pkt.Meta.Payload)
	} else {
		seg.SetRaw(size)
	}

	pkt.Data = seg.DataUnit
	pkt.Type = PacketTypeTCP
	pkt.Meta.IPProtocol = dataunit.IPProtocolTCP
	pkt.Title = seg.Title()
	pkt.Subtitle = segmentSubtitle(seg)
}

// segmentSubtitle returns "seq: a[-b][ ack: c]".
func segmentSubtitle(seg dataunit.TCPSegment) string {
	subtitle := fmt.Sprintf("seq: %d", seg.SeqNum())
	if size := seg.DataBytes(); size > 0 {
		subtitle += fmt.Sprintf("-%d", seg.SeqNum()+uint32(size)-1)
	}
	if seg.Flags().Has(dataunit.TCPFlagACK) {
		subtitle += fmt.Sprintf(" ack: %d", seg.AckNum())
	}
	return subtitle
}

// deliver updates the acknowledgment number upon a received segment
// and accepts its payload when it arrives in order. It returns whether
// the segment was accepted. The first SYN sets the acknowledgment
// number; later ones leave it alone.
func (tcp *TCPProtocol) deliver(pkt *Packet, sock *Socket, seg dataunit.TCPSegment) bool {
	flags := seg.Flags()
	seq := seg.SeqNum()

	if flags.Has(dataunit.TCPFlagSYN) {
		if sock.ackNum == 0 {
			peer := "Client"
			if sock.typ == SocketClient {
				peer = "Server"
			}
			pkt.Report(fmt.Sprintf("%s's ISN = %d", peer, seq))
			sock.ackNum = seq + 1
		}
		return true
	}

	size := seg.DataBytes()
	if seq != sock.ackNum {
		// Segments ahead of the expected byte wait in the receive map
		// without moving the acknowledgment number.
		if seq > sock.ackNum && size > 0 {
			sock.receiveMap[seq] = size
			pkt.Report("Out of order\nsegment buffered")
		}
		return false
	}
	next := seq + uint32(size)
	if flags.Has(dataunit.TCPFlagFIN) {
		next++
	}
	if next == seq {
		return false
	}
	sock.ackNum = next
	sock.receive(size, seq)
	return true
}

// acksLast returns whether seg acknowledges the last SYN or FIN sent
// by sock.
func acksLast(sock *Socket, seg dataunit.TCPSegment) bool {
	return seg.Flags().Has(dataunit.TCPFlagACK) && seg.AckNum() == sock.seqNum+1
}

// response returns an uncommitted answer to pkt sent through sock.
func (tcp *TCPProtocol) response(pkt *Packet, sock *Socket) *Packet {
	resp := pkt.Response(nil, "", "")
	resp.Meta.Socket = sock
	return resp
}

// reply returns the answer to a segment that carried data or a FIN:
// the next chunk of the send buffer when any, a pure ACK otherwise.
// It returns nil when the segment needs no answer.
func (tcp *TCPProtocol) reply(pkt *Packet, sock *Socket, needsAck bool) *Packet {
	resp := tcp.response(pkt, sock)
	if sock.state == StateEstablished || sock.state == StateCloseWait {
		if sock.attachChunk(resp) > 0 {
			return resp
		}
	}
	if needsAck {
		return resp
	}
	return nil
}

// handle runs the state machine of sock for a received segment and
// returns the answer to send, if any.
func (tcp *TCPProtocol) handle(pkt *Packet, sock *Socket) *Packet {
	seg := dataunit.TCPSegment{DataUnit: pkt.GetUnit(dataunit.KindTCPSegment)}
	flags := seg.Flags()
	pkt.Meta.Socket = sock

	if flags.Has(dataunit.TCPFlagRST) {
		pkt.Report("Connection reset")
		sock.setState(StateClosed, pkt)
		sock.Destroy()
		return nil
	}

	switch sock.state {
	case StateListen:
		if !flags.Has(dataunit.TCPFlagSYN) || flags.Has(dataunit.TCPFlagACK) {
			pkt.Report("Segment dropped")
			if sock.parent != nil {
				sock.Destroy()
			}
			return nil
		}
		tcp.deliver(pkt, sock, seg)
		sock.setState(StateSynRcvd, pkt)
		resp := tcp.response(pkt, sock)
		resp.Meta.Flags = dataunit.TCPFlagSYN
		return resp

	case StateSynSent:
		if !flags.Has(dataunit.TCPFlagSYN|dataunit.TCPFlagACK) || !acksLast(sock, seg) {
			pkt.Report("Segment dropped")
			return nil
		}
		tcp.deliver(pkt, sock, seg)
		sock.otherID = sock.remote.String()
		sock.setState(StateEstablished, pkt)
		return tcp.response(pkt, sock)

	case StateSynRcvd:
		if !acksLast(sock, seg) {
			pkt.Report("Segment dropped")
			return nil
		}
		sock.otherID = sock.remote.String()
		sock.setState(StateEstablished, pkt)
		return tcp.reply(pkt, sock, tcp.deliver(pkt, sock, seg))

	case StateEstablished:
		if flags.Has(dataunit.TCPFlagACK) {
			sock.processAck(seg.AckNum())
		}
		accepted := tcp.deliver(pkt, sock, seg)
		if accepted && flags.Has(dataunit.TCPFlagFIN) {
			return tcp.passiveClose(pkt, sock)
		}
		return tcp.reply(pkt, sock, accepted)

	case StateCloseWait:
		if flags.Has(dataunit.TCPFlagACK) {
			sock.processAck(seg.AckNum())
		}
		accepted := tcp.deliver(pkt, sock, seg)
		if sock.sendBuf.Len() == 0 {
			pkt.Report("No more data\nto be sent")
			return tcp.lastAck(pkt, sock)
		}
		return tcp.reply(pkt, sock, accepted)

	case StateFinWait1:
		acked := acksLast(sock, seg)
		accepted := tcp.deliver(pkt, sock, seg)
		if accepted && flags.Has(dataunit.TCPFlagFIN) {
			return tcp.timeWait(pkt, sock)
		}
		if acked {
			sock.setState(StateFinWait2, pkt)
		}
		return tcp.reply(pkt, sock, accepted)

	case StateFinWait2:
		accepted := tcp.deliver(pkt, sock, seg)
		if accepted && flags.Has(dataunit.TCPFlagFIN) {
			return tcp.timeWait(pkt, sock)
		}
		return tcp.reply(pkt, sock, accepted)

	case StateLastAck:
		if !acksLast(sock, seg) {
			return nil
		}
		sock.setState(StateClosed, pkt)
		pkt.Report("Connection closed")
		sock.Destroy()
		return nil

	case StateTimeWait:
		if flags.Has(dataunit.TCPFlagFIN) {
			return tcp.response(pkt, sock)
		}
		return nil

	default:
		pkt.Report("Segment dropped")
		return nil
	}
}

// passiveClose answers a FIN received while established. The socket
// waits in CLOSE-WAIT while unsent data remains, unless immediate
// close is enabled; otherwise the answer carries our FIN too.
func (tcp *TCPProtocol) passiveClose(pkt *Packet, sock *Socket) *Packet {
	if !tcp.stack.device.scenario.Settings.ImmediateTCPClose && sock.sendBuf.Len() > 0 {
		sock.setState(StateCloseWait, pkt)
		pkt.Report("More data\nto be sent")
		return tcp.reply(pkt, sock, true)
	}
	return tcp.lastAck(pkt, sock)
}

// lastAck sends our FIN and waits for its acknowledgment.
func (tcp *TCPProtocol) lastAck(pkt *Packet, sock *Socket) *Packet {
	sock.setState(StateLastAck, pkt)
	sock.seqNum++
	resp := tcp.response(pkt, sock)
	resp.Meta.Flags = dataunit.TCPFlagFIN
	return resp
}

// timeWait acknowledges the FIN of the peer and schedules the
// destruction of sock.
func (tcp *TCPProtocol) timeWait(pkt *Packet, sock *Socket) *Packet {
	sock.setState(StateTimeWait, pkt)
	sock.scheduleDestroy()
	return tcp.response(pkt, sock)
}
