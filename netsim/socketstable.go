//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Sockets table.
//

package netsim

import (
	"fmt"
	"maps"
	"slices"

	"github.com/N1tramPH/network-simulator/netsim/addr"
)

// SocketRecord is the exported form of a [*Socket].
type SocketRecord struct {
	ID            string         `yaml:"id" mapstructure:"id"`
	Type          string         `yaml:"type" mapstructure:"type"`
	Protocol      string         `yaml:"protocol" mapstructure:"protocol"`
	IPVersion     string         `yaml:"ipVersion" mapstructure:"ipVersion"`
	LocalAddress  string         `yaml:"localAddress" mapstructure:"localAddress"`
	RemoteAddress string         `yaml:"remoteAddress" mapstructure:"remoteAddress"`
	State         string         `yaml:"state" mapstructure:"state"`
	OtherID       string         `yaml:"otherId,omitempty" mapstructure:"otherId"`
	SeqNum        uint32         `yaml:"seqNum" mapstructure:"seqNum"`
	AckNum        uint32         `yaml:"ackNum" mapstructure:"ackNum"`
	Children      []SocketRecord `yaml:"children,omitempty" mapstructure:"children"`
}

// Export returns the socket and its children as a plain record.
func (s *Socket) Export() SocketRecord {
	rec := SocketRecord{
		ID:            s.id,
		Type:          string(s.typ),
		Protocol:      string(s.proto),
		IPVersion:     IPv4,
		LocalAddress:  s.local.String(),
		RemoteAddress: s.remote.String(),
		State:         s.state.String(),
		OtherID:       s.otherID,
		SeqNum:        s.seqNum,
		AckNum:        s.ackNum,
	}
	for _, child := range s.children {
		rec.Children = append(rec.Children, child.Export())
	}
	return rec
}

// importSocket rebuilds a socket owned by st from a record.
func importSocket(st *Stack, rec SocketRecord) (*Socket, error) {
	typ := SocketType(rec.Type)
	if typ != SocketClient && typ != SocketServer {
		return nil, fmt.Errorf("%w: socket type %q", EINVAL, rec.Type)
	}
	proto := Protocol(rec.Protocol)
	if proto != TCP && proto != UDP {
		return nil, fmt.Errorf("%w: socket protocol %q", EPROTONOSUPPORT, rec.Protocol)
	}
	local, err := addr.ParseSocketAddr(rec.LocalAddress)
	if err != nil {
		return nil, err
	}
	remote, err := addr.ParseSocketAddr(rec.RemoteAddress)
	if err != nil {
		return nil, err
	}
	state, err := ParseState(rec.State)
	if err != nil {
		return nil, err
	}

	sock := newSocket(st, typ, proto)
	if rec.ID != "" {
		sock.id = rec.ID
	}
	sock.local = local
	sock.remote = remote
	sock.state = state
	sock.otherID = rec.OtherID
	sock.seqNum = rec.SeqNum
	sock.ackNum = rec.AckNum
	sock.bound = true
	for _, crec := range rec.Children {
		child, err := importSocket(st, crec)
		if err != nil {
			return nil, err
		}
		child.parent = sock
		sock.children = append(sock.children, child)
	}
	return sock, nil
}

// SocketsTable maps local ports to open sockets.
type SocketsTable struct {
	sockets map[uint16]*Socket
	stack   *Stack
}

// newSocketsTable creates the sockets table of st.
func newSocketsTable(st *Stack) *SocketsTable {
	return &SocketsTable{sockets: make(map[uint16]*Socket), stack: st}
}

// Get returns the socket bound to the local port, or nil.
func (t *SocketsTable) Get(port uint16) *Socket {
	return t.sockets[port]
}

func (t *SocketsTable) set(sock *Socket) {
	t.sockets[sock.local.Port] = sock
}

func (t *SocketsTable) remove(sock *Socket) {
	delete(t.sockets, sock.local.Port)
}

// All returns the open sockets sorted by local port.
func (t *SocketsTable) All() []*Socket {
	ports := slices.Sorted(maps.Keys(t.sockets))
	out := make([]*Socket, 0, len(ports))
	for _, port := range ports {
		out = append(out, t.sockets[port])
	}
	return out
}

// Export returns the listening servers and the connected sockets.
func (t *SocketsTable) Export() []SocketRecord {
	var out []SocketRecord
	for _, sock := range t.All() {
		if (sock.typ == SocketServer && sock.bound) || sock.otherID != "" {
			out = append(out, sock.Export())
		}
	}
	return out
}

// Import replaces the sockets with the given records. On error the
// table is unchanged.
func (t *SocketsTable) Import(records []SocketRecord) error {
	sockets := make(map[uint16]*Socket)
	for _, rec := range records {
		sock, err := importSocket(t.stack, rec)
		if err != nil {
			return err
		}
		if _, found := sockets[sock.local.Port]; found {
			return fmt.Errorf("%w: port %d", EADDRINUSE, sock.local.Port)
		}
		sockets[sock.local.Port] = sock
	}
	t.sockets = sockets
	return nil
}
