//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Network stack
//

package netsim

import (
	"fmt"

	"github.com/N1tramPH/network-simulator/netsim/addr"
	"github.com/N1tramPH/network-simulator/netsim/link"
)

// Layer is a protocol layer of a [*Stack].
type Layer interface {
	// AcceptFromUpper handles a packet coming from the layer above.
	AcceptFromUpper(pkt *Packet) error

	// AcceptFromLower handles a packet coming from the layer below.
	AcceptFromLower(pkt *Packet) error

	// String returns the layer name.
	String() string
}

// Stack models the network stack of a [*Device].
//
// The active layers depend on the device kind: hubs and switches
// only have adapters, routers add the link and IP layers, and
// computers have every layer.
type Stack struct {
	// cam is the switching table, only set for switches.
	cam *link.CAMTable[*Port]

	// device is the owning device.
	device *Device

	// ip is the IP layer, if any.
	ip *IPLayer

	// layers contains the active layers, bottom to top.
	layers []Layer

	// link is the link layer, if any.
	link *LinkLayer

	// sockets contains the open sockets.
	sockets *SocketsTable

	// transport is the transport layer, if any.
	transport *TransportLayer
}

// newStack creates the stack of dev.
func newStack(dev *Device) *Stack {
	st := &Stack{device: dev}
	st.sockets = newSocketsTable(st)
	if dev.layers.Has(L3) {
		st.link = newLinkLayer(st)
		st.ip = newIPLayer(st)
		st.layers = append(st.layers, st.link, st.ip)
	}
	if dev.layers.Has(L4) {
		st.transport = newTransportLayer(st)
		st.layers = append(st.layers, st.transport)
	}
	if dev.layers.Has(L5) {
		st.layers = append(st.layers, &ApplicationLayer{stack: st})
	}
	return st
}

// Device returns the owning device.
func (st *Stack) Device() *Device {
	return st.device
}

// Layers returns the active layers, bottom to top.
func (st *Stack) Layers() []Layer {
	return append([]Layer(nil), st.layers...)
}

// Lower returns the layer below l, or nil.
func (st *Stack) Lower(l Layer) Layer {
	for idx, cur := range st.layers {
		if cur == l && idx > 0 {
			return st.layers[idx-1]
		}
	}
	return nil
}

// Upper returns the layer above l, or nil.
func (st *Stack) Upper(l Layer) Layer {
	for idx, cur := range st.layers {
		if cur == l && idx+1 < len(st.layers) {
			return st.layers[idx+1]
		}
	}
	return nil
}

// initCAM creates the switching table if needed.
func (st *Stack) initCAM() {
	if st.cam == nil {
		st.cam = link.NewCAMTable[*Port]()
	}
}

// ICMP returns the ICMP protocol, or nil below the network layer.
func (st *Stack) ICMP() *ICMP {
	if st.ip == nil {
		return nil
	}
	return st.ip.ICMP
}

// isLocal returns whether ip is the address of one of the adapters.
func (st *Stack) isLocal(ip addr.IP) bool {
	for _, a := range st.device.adapters {
		if own, ok := a.IPAddress(); ok && own.Equal(ip) {
			return true
		}
	}
	return false
}

// freePort returns a random free port in [1024, 65535].
func (st *Stack) freePort() uint16 {
	for {
		port := uint16(st.device.scenario.rand.RandInt(1024, addr.MaxPort))
		if st.sockets.Get(port) == nil {
			return port
		}
	}
}

// InitSocket creates a socket of the given type and protocol bound
// to a free local port. The socket is not open yet.
func (st *Stack) InitSocket(typ SocketType, proto Protocol) *Socket {
	sock := newSocket(st, typ, proto)
	sock.local.Port = st.freePort()
	return sock
}

// OpenSocket registers sock in the sockets table. It returns nil
// when another socket already uses the same local port.
func (st *Stack) OpenSocket(sock *Socket) *Socket {
	if sock == nil {
		return nil
	}
	if other := st.sockets.Get(sock.local.Port); other != nil {
		if other == sock {
			return sock
		}
		return nil
	}
	st.sockets.set(sock)
	return sock
}

// removeSocket removes sock from the sockets table.
func (st *Stack) removeSocket(sock *Socket) {
	if st.sockets.Get(sock.local.Port) == sock {
		st.sockets.remove(sock)
	}
}

// findSocket returns the socket handling traffic to the local port
// from remote. A listening TCP server spawns a child per remote.
func (st *Stack) findSocket(port uint16, remote addr.SocketAddr) *Socket {
	sock := st.sockets.Get(port)
	if sock == nil || sock.typ != SocketServer || sock.proto != TCP {
		return sock
	}
	if child := sock.findChild(remote); child != nil {
		return child
	}
	if sock.state == StateListen {
		return sock.initChild(remote)
	}
	return nil
}

// String returns a description of the stack.
func (st *Stack) String() string {
	return fmt.Sprintf("stack of %s", st.device)
}
