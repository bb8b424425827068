//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Sockets.
//

package netsim

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"github.com/N1tramPH/network-simulator/errclass"
	"github.com/N1tramPH/network-simulator/netsim/addr"
	"github.com/N1tramPH/network-simulator/netsim/dataunit"
)

// SocketType distinguishes client and server sockets.
type SocketType string

// Socket types.
const (
	SocketClient = SocketType("client")
	SocketServer = SocketType("server")
)

// Protocol is a transport protocol.
type Protocol string

// Transport protocols.
const (
	TCP = Protocol("TCP")
	UDP = Protocol("UDP")
)

// IPv4 is the only supported IP version.
const IPv4 = "IPV4"

// State is the state of a TCP connection.
type State int

// TCP states.
const (
	StateClosed State = iota
	StateListen
	StateSynSent
	StateSynRcvd
	StateEstablished
	StateFinWait1
	StateFinWait2
	StateCloseWait
	StateLastAck
	StateTimeWait
)

var stateNames = []string{
	"CLOSED", "LISTEN", "SYN-SENT", "SYN-RCVD", "ESTABLISHED",
	"FIN-WAIT-1", "FIN-WAIT-2", "CLOSE-WAIT", "LAST-ACK", "TIME-WAIT",
}

// String returns the conventional state name, e.g. "SYN-SENT".
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// ParseState parses a state name. Underscores are accepted in
// place of dashes.
func ParseState(name string) (State, error) {
	name = strings.ReplaceAll(strings.ToUpper(name), "_", "-")
	for idx, candidate := range stateNames {
		if candidate == name {
			return State(idx), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown TCP state %q", EINVAL, name)
}

// TimeWaitDelay is the virtual time in seconds a socket stays in
// TIME-WAIT before being destroyed.
const TimeWaitDelay = 1.5

// DefaultBufferSize is the capacity of a socket send buffer in bytes.
const DefaultBufferSize = 3000

// Buffer counts the bytes queued in a socket buffer.
//
// A zero capacity means unbounded.
type Buffer struct {
	capacity int
	size     int
}

// Len returns the number of queued bytes.
func (b *Buffer) Len() int {
	return b.size
}

// Push queues n bytes.
func (b *Buffer) Push(n int) error {
	if b.capacity > 0 && b.size+n > b.capacity {
		return ENOBUFS
	}
	b.size += n
	return nil
}

// Pop dequeues up to n bytes and returns the dequeued amount.
func (b *Buffer) Pop(n int) int {
	n = min(max(n, 0), b.size)
	b.size -= n
	return n
}

// Datagram is a UDP payload received by a socket.
type Datagram struct {
	// From is the sender address.
	From addr.SocketAddr

	// Payload contains the datagram bytes, if any.
	Payload []byte

	// Size is the payload size in bytes.
	Size int
}

// DatagramHandler answers a datagram received by a UDP socket. A nil
// return value means no reply.
type DatagramHandler func(pkt *Packet, from addr.SocketAddr, payload []byte) []byte

// Socket is a simulated TCP or UDP socket.
//
// Construct using [*Stack.InitSocket] or [*Device.InitSocket].
type Socket struct {
	// Handler optionally answers datagrams received by a UDP socket.
	Handler DatagramHandler

	ackNum     uint32
	bound      bool
	children   []*Socket
	datagrams  []Datagram
	id         string
	local      addr.SocketAddr
	otherID    string
	parent     *Socket
	pending    []byte
	proto      Protocol
	receiveBuf Buffer
	receiveMap map[uint32]int
	remote     addr.SocketAddr
	sendBuf    Buffer
	sendMap    map[uint32]int
	seqNum     uint32
	stack      *Stack
	state      State
	typ        SocketType
}

// newSocket creates a closed socket owned by st.
func newSocket(st *Stack, typ SocketType, proto Protocol) *Socket {
	if proto != UDP {
		proto = TCP
	}
	if typ != SocketServer {
		typ = SocketClient
	}
	sock := &Socket{
		id:     st.device.scenario.nextID("sock"),
		local:  addr.NewSocketAddr(addr.Unspecified(), 0),
		proto:  proto,
		remote: addr.WildcardSocketAddr(),
		stack:  st,
		typ:    typ,
	}
	sock.reset()
	return sock
}

// reset restores the buffers and picks a new initial sequence number.
func (s *Socket) reset() {
	s.ackNum = 0
	s.datagrams = nil
	s.pending = nil
	s.receiveBuf = Buffer{}
	s.receiveMap = make(map[uint32]int)
	s.sendBuf = Buffer{capacity: DefaultBufferSize}
	s.sendMap = make(map[uint32]int)
	s.seqNum = s.stack.device.scenario.isn(s)
}

// ID returns the socket identifier.
func (s *Socket) ID() string { return s.id }

// Type returns the socket type.
func (s *Socket) Type() SocketType { return s.typ }

// Protocol returns the transport protocol.
func (s *Socket) Protocol() Protocol { return s.proto }

// State returns the connection state.
func (s *Socket) State() State { return s.state }

// LocalAddr returns the local address.
func (s *Socket) LocalAddr() addr.SocketAddr { return s.local }

// RemoteAddr returns the remote address.
func (s *Socket) RemoteAddr() addr.SocketAddr { return s.remote }

// SeqNum returns the last acknowledged sequence number.
func (s *Socket) SeqNum() uint32 { return s.seqNum }

// AckNum returns the next expected sequence number, or zero before
// the peer's initial sequence number is known.
func (s *Socket) AckNum() uint32 { return s.ackNum }

// Parent returns the listening socket that spawned s, or nil.
func (s *Socket) Parent() *Socket { return s.parent }

// Children returns the sockets spawned by a listening socket.
func (s *Socket) Children() []*Socket { return append([]*Socket(nil), s.children...) }

// OtherID returns the peer address once a connection was established.
func (s *Socket) OtherID() string { return s.otherID }

// Bound returns whether the socket is open.
func (s *Socket) Bound() bool { return s.bound }

// Pending returns the number of bytes waiting to be sent.
func (s *Socket) Pending() int { return s.sendBuf.Len() }

// SendMap returns the sent payload sizes keyed by sequence number.
func (s *Socket) SendMap() map[uint32]int { return maps.Clone(s.sendMap) }

// ReceiveMap returns the received payload sizes keyed by sequence
// number, including segments buffered out of order.
func (s *Socket) ReceiveMap() map[uint32]int { return maps.Clone(s.receiveMap) }

// Device returns the device owning the socket.
func (s *Socket) Device() *Device { return s.stack.device }

// String returns "PROTO/local-remote".
func (s *Socket) String() string {
	return fmt.Sprintf("%s/%s-%s", s.proto, s.local, s.remote)
}

// setState changes the state, recording the change on pkt if not nil.
func (s *Socket) setState(state State, pkt *Packet) {
	before := s.state
	s.state = state
	if pkt != nil {
		pkt.ReportStateChange("TCP state", before.String(), state.String())
	}
}

// Bind sets the local address of a socket that is not open yet.
// A wildcard port keeps the current port.
func (s *Socket) Bind(local addr.SocketAddr) error {
	if s.bound {
		return EINVAL
	}
	if local.AnyPort {
		local.Port = s.local.Port
		local.AnyPort = false
	}
	s.local = local
	return nil
}

// Open registers the socket in the sockets table. Server sockets
// start listening. It fails with EADDRINUSE when the local port
// is taken by another socket.
func (s *Socket) Open() error {
	if s.stack.OpenSocket(s) == nil {
		return EADDRINUSE
	}
	s.bound = true
	if s.typ == SocketServer {
		s.setState(StateListen, nil)
	}
	return nil
}

// Listen moves the socket into the LISTEN state.
func (s *Socket) Listen() {
	s.setState(StateListen, nil)
}

// initChild spawns a socket handling the connection from remote.
func (s *Socket) initChild(remote addr.SocketAddr) *Socket {
	child := newSocket(s.stack, SocketServer, s.proto)
	child.parent = s
	child.local = s.local
	child.remote = remote
	child.bound = true
	child.Listen()
	s.children = append(s.children, child)
	return child
}

// findChild returns the child connected to remote, or nil.
func (s *Socket) findChild(remote addr.SocketAddr) *Socket {
	for _, child := range s.children {
		if child.remote.Equal(remote) {
			return child
		}
	}
	return nil
}

// newPacket returns a root packet originating from s.
func (s *Socket) newPacket() *Packet {
	pkt := newPacket(s.stack.device, nil, "", "")
	pkt.Meta.Socket = s
	return pkt
}

// transport hands a packet to the transport layer.
func (s *Socket) transport(pkt *Packet) error {
	return s.stack.transport.AcceptFromUpper(pkt)
}

// logger returns the scenario logger, which may be nil.
func (s *Socket) logger() *slog.Logger {
	return s.stack.device.scenario.Logger
}

// Connect performs the three-way handshake with remote. The returned
// packet is the root of the trace; Success reports whether the
// connection was established.
func (s *Socket) Connect(remote addr.SocketAddr) (*Packet, error) {
	switch {
	case s.proto != TCP:
		return nil, EPROTOTYPE
	case s.state == StateEstablished:
		return nil, EISCONN
	case s.state == StateTimeWait:
		return nil, EBUSY
	}
	if !s.bound {
		if err := s.Open(); err != nil {
			return nil, err
		}
	}

	ctx := context.Background()
	if logger := s.logger(); logger != nil {
		logger.InfoContext(ctx, "connectStart",
			slog.String("device", s.stack.device.name),
			slog.String("localAddr", s.local.String()),
			slog.String("remoteAddr", remote.String()),
		)
	}

	pkt := s.newPacket()
	pkt.Meta.Flags = dataunit.TCPFlagSYN
	pkt.Report("Initiating\n 3-phase handshake...")
	s.remote = remote
	s.setState(StateSynSent, pkt)
	err := s.transport(pkt)

	pkt.Success = err == nil && s.state == StateEstablished
	if pkt.Success {
		pkt.Msg = "Connection established"
	} else {
		pkt.Msg = "Connection failed"
	}

	if logger := s.logger(); logger != nil {
		logger.InfoContext(ctx, "connectDone",
			slog.String("device", s.stack.device.name),
			slog.Any("err", err),
			slog.String("errClass", errclass.New(err)),
			slog.String("localAddr", s.local.String()),
			slog.String("packetID", pkt.ID),
			slog.String("remoteAddr", remote.String()),
			slog.String("state", s.state.String()),
		)
	}
	return pkt, err
}

// Close sends a FIN to the peer. Closing again while waiting for the
// peer FIN sends the same FIN once more. UDP sockets are destroyed.
func (s *Socket) Close() (*Packet, error) {
	if s.proto == UDP {
		s.Destroy()
		return nil, nil
	}
	next, retry := s.state, false
	switch s.state {
	case StateEstablished:
		next = StateFinWait1
	case StateCloseWait:
		next = StateLastAck
	case StateFinWait1, StateFinWait2:
		retry = true
	default:
		return nil, ENOTCONN
	}

	pkt := s.newPacket()
	pkt.Meta.Flags = dataunit.TCPFlagFIN
	pkt.Report("Closing\nTCP connection...")
	if !retry {
		s.sendBuf.Pop(s.sendBuf.Len())
		s.seqNum++
		s.setState(next, pkt)
	}
	return pkt, s.transport(pkt)
}

// Send queues n bytes and sends the first chunk. The remaining bytes
// are sent along with the acknowledgments of the peer.
func (s *Socket) Send(n int) (*Packet, error) {
	return s.send(n, nil)
}

// SendBytes sends b as a single segment.
func (s *Socket) SendBytes(b []byte) (*Packet, error) {
	return s.send(len(b), b)
}

func (s *Socket) send(n int, content []byte) (*Packet, error) {
	switch {
	case s.proto != TCP:
		return nil, EPROTOTYPE
	case s.state != StateEstablished && s.state != StateCloseWait:
		return nil, ENOTCONN
	case n <= 0:
		return nil, EINVAL
	}
	if err := s.sendBuf.Push(n); err != nil {
		return nil, err
	}
	s.pending = content

	pkt := s.newPacket()
	s.attachChunk(pkt)
	return pkt, s.transport(pkt)
}

// chunkSize returns the size of the next segment payload.
func (s *Socket) chunkSize() int {
	if s.pending != nil {
		return len(s.pending)
	}
	return s.stack.device.scenario.chunkSize()
}

// attachChunk moves the next chunk of the send buffer into pkt and
// returns its size.
func (s *Socket) attachChunk(pkt *Packet) int {
	chunk := s.sendBuf.Pop(s.chunkSize())
	if chunk <= 0 {
		return 0
	}
	seq := s.seqNum + 1
	s.sendMap[seq] = chunk
	pkt.Meta.SeqNum = seq
	pkt.Meta.HasSeq = true
	pkt.Meta.PayloadSize = chunk
	if s.pending != nil {
		pkt.Meta.Payload, s.pending = s.pending, nil
	}
	return chunk
}

// processAck advances the sequence number upon a newer acknowledgment.
func (s *Socket) processAck(ack uint32) bool {
	if ack == 0 || ack-1 <= s.seqNum {
		return false
	}
	s.seqNum = ack - 1
	return true
}

// receive accepts in-order payload bytes.
func (s *Socket) receive(size int, seq uint32) {
	if size <= 0 {
		return
	}
	s.receiveBuf.Push(size)
	s.receiveMap[seq] = size
}

// Receive drains and returns the number of bytes received over TCP.
func (s *Socket) Receive() (int, error) {
	if s.proto != TCP {
		return 0, EPROTOTYPE
	}
	return s.receiveBuf.Pop(s.receiveBuf.Len()), nil
}

// SendTo sends a datagram carrying payload to remote.
func (s *Socket) SendTo(payload []byte, remote addr.SocketAddr) (*Packet, error) {
	return s.sendTo(len(payload), payload, remote)
}

// SendSizeTo sends a datagram of n opaque bytes to remote.
func (s *Socket) SendSizeTo(n int, remote addr.SocketAddr) (*Packet, error) {
	return s.sendTo(n, nil, remote)
}

func (s *Socket) sendTo(n int, payload []byte, remote addr.SocketAddr) (*Packet, error) {
	if s.proto != UDP {
		return nil, EPROTOTYPE
	}
	if n < 0 {
		return nil, EINVAL
	}
	if !s.bound {
		if err := s.Open(); err != nil {
			return nil, err
		}
	}
	s.remote = remote

	pkt := s.newPacket()
	pkt.Meta.Remote = remote
	pkt.Meta.DstIP = remote.IP
	pkt.Meta.Payload = payload
	pkt.Meta.PayloadSize = n
	return pkt, s.transport(pkt)
}

// deliverDatagram queues a received datagram.
func (s *Socket) deliverDatagram(from addr.SocketAddr, payload []byte, size int) {
	s.datagrams = append(s.datagrams, Datagram{From: from, Payload: payload, Size: size})
	s.receiveBuf.Push(size)
}

// ReceiveFrom dequeues the oldest received datagram.
func (s *Socket) ReceiveFrom() (Datagram, bool, error) {
	if s.proto != UDP {
		return Datagram{}, false, EPROTOTYPE
	}
	if !s.bound {
		return Datagram{}, false, ENOTCONN
	}
	if len(s.datagrams) == 0 {
		return Datagram{}, false, nil
	}
	dgram := s.datagrams[0]
	s.datagrams = s.datagrams[1:]
	s.receiveBuf.Pop(dgram.Size)
	return dgram, true, nil
}

// Destroy closes the socket and removes it from its parent or from
// the sockets table.
func (s *Socket) Destroy() {
	s.setState(StateClosed, nil)
	s.bound = false
	s.otherID = ""
	s.reset()

	if s.parent != nil {
		siblings := s.parent.children[:0]
		for _, child := range s.parent.children {
			if child != s {
				siblings = append(siblings, child)
			}
		}
		s.parent.children = siblings
	} else {
		s.stack.removeSocket(s)
	}

	if logger := s.logger(); logger != nil {
		logger.DebugContext(context.Background(), "socketDestroyed",
			slog.String("device", s.stack.device.name),
			slog.String("socket", s.String()),
		)
	}
}

// scheduleDestroy destroys a TIME-WAIT socket after [TimeWaitDelay].
func (s *Socket) scheduleDestroy() {
	s.stack.device.scenario.schedule(TimeWaitDelay, func() {
		if s.state == StateTimeWait {
			s.Destroy()
		}
	})
}
