//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Simulated devices.
//

package netsim

import (
	"errors"
	"fmt"
	"strings"

	"github.com/N1tramPH/network-simulator/netsim/addr"
	"github.com/N1tramPH/network-simulator/netsim/link"
)

// Layers is a bitmask of the OSI layers a device operates on.
type Layers uint8

// OSI layers.
const (
	L1 Layers = 1 << iota
	L2
	L3
	L4
	L5
	L6
	L7
)

// UpTo returns the mask of all layers up to and including the
// given layer number, e.g. UpTo(3) = L1|L2|L3.
func UpTo(layer int) Layers {
	if layer <= 0 {
		return 0
	}
	return Layers(1<<min(layer, 7)) - 1
}

// Has returns whether l contains the given layer.
func (l Layers) Has(layer Layers) bool {
	return l&layer != 0
}

// Top returns the number of the highest layer in l, or 0.
func (l Layers) Top() int {
	top := 0
	for n := 1; n <= 7; n++ {
		if l.Has(1 << (n - 1)) {
			top = n
		}
	}
	return top
}

// Kind is the behaviour variant of a [*Device].
type Kind int

// Device kinds.
const (
	Hub Kind = iota + 1
	Switch
	Router
	Computer
)

// String returns the kind name as used in exports.
func (k Kind) String() string {
	switch k {
	case Hub:
		return "Hub"
	case Switch:
		return "Switch"
	case Router:
		return "Router"
	case Computer:
		return "Computer"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind parses a case insensitive device kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range []Kind{Hub, Switch, Router, Computer} {
		if strings.EqualFold(s, k.String()) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Layers returns the layers a device of this kind operates on.
func (k Kind) Layers() Layers {
	switch k {
	case Hub:
		return UpTo(1)
	case Switch:
		return UpTo(2)
	case Router:
		return UpTo(3)
	default:
		return UpTo(7)
	}
}

// portCount returns the number of ports of each adapter.
func (k Kind) portCount() int {
	if k == Hub || k == Switch {
		return 6
	}
	return 1
}

// MaxAdapters is the maximum number of adapters per device.
const MaxAdapters = 4

var (
	// ErrUnknownKind indicates an unknown device kind.
	ErrUnknownKind = errors.New("unknown device kind")

	// ErrAdapterNameInUse indicates a duplicate adapter name.
	ErrAdapterNameInUse = errors.New("the name must be unique among existing ones on a device")

	// ErrTooManyAdapters indicates a device cannot hold more adapters.
	ErrTooManyAdapters = errors.New("too many adapters")

	// ErrNoSuchAdapter indicates an unknown adapter name.
	ErrNoSuchAdapter = errors.New("no such adapter")

	// ErrNotL3 indicates an operation requiring a device operating
	// at the network layer or above.
	ErrNotL3 = errors.New("the device does not operate at the network layer")

	// ErrNotL4 indicates an operation requiring a device operating
	// at the transport layer or above.
	ErrNotL4 = errors.New("the device does not operate at the transport layer")
)

// Device is a simulated network node.
//
// Construct using [*Scenario.AddDevice] or [*Scenario.NewDevice].
type Device struct {
	adapters []*Adapter
	kind     Kind
	layers   Layers
	name     string
	off      bool
	scenario *Scenario
	stack    *Stack
}

// newDevice creates a device of the given kind within s.
func newDevice(s *Scenario, kind Kind, name string) *Device {
	dev := &Device{
		kind:     kind,
		layers:   kind.Layers(),
		name:     name,
		scenario: s,
	}
	dev.stack = newStack(dev)
	if kind == Router {
		dev.stack.ip.Forwarding = true
	}
	return dev
}

var _ interface{ EndpointName() string } = &Device{}

// EndpointName implements [packet.Endpoint].
func (d *Device) EndpointName() string {
	return d.name
}

// Name returns the device name.
func (d *Device) Name() string {
	return d.name
}

// Kind returns the device kind.
func (d *Device) Kind() Kind {
	return d.kind
}

// Layers returns the layers the device operates on.
func (d *Device) Layers() Layers {
	return d.layers
}

// Stack returns the device network stack.
func (d *Device) Stack() *Stack {
	return d.stack
}

// Scenario returns the scenario owning the device.
func (d *Device) Scenario() *Scenario {
	return d.scenario
}

// String returns a description such as "Router (R1)".
func (d *Device) String() string {
	return fmt.Sprintf("%s (%s)", d.kind, d.name)
}

// PowerOn returns whether the device is powered on.
func (d *Device) PowerOn() bool {
	return !d.off
}

// TurnOn powers the device on.
func (d *Device) TurnOn() {
	d.off = false
}

// TurnOff powers the device off. Links of a powered off device do
// not transfer data.
func (d *Device) TurnOff() {
	d.off = true
}

// Adapters returns the device adapters.
func (d *Device) Adapters() []*Adapter {
	return append([]*Adapter(nil), d.adapters...)
}

// Adapter returns the adapter with the given name.
func (d *Device) Adapter(name string) (*Adapter, error) {
	for _, a := range d.adapters {
		if a.name == name {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: %s on %s", ErrNoSuchAdapter, name, d.name)
}

// AddAdapter adds a new adapter. A zero mac is replaced by a random
// one. The ip is ignored on devices below the network layer; use the
// unspecified address for no IP address.
func (d *Device) AddAdapter(name string, mac addr.MAC, ip addr.IP) (*Adapter, error) {
	if len(d.adapters) >= MaxAdapters {
		return nil, ErrTooManyAdapters
	}
	for _, a := range d.adapters {
		if a.name == name {
			return nil, fmt.Errorf("%w: %s", ErrAdapterNameInUse, name)
		}
	}
	if mac.IsZero() {
		mac = addr.RandomMAC(d.scenario.rand)
	}
	a := newAdapter(d, name, mac)
	if d.layers.Has(L3) {
		a.ip = ip
	}
	if d.kind == Switch {
		a.promiscuous = true
		d.stack.initCAM()
	}
	d.adapters = append(d.adapters, a)
	return a, nil
}

// RemoveAdapter removes the adapter with the given name, destroying
// the links plugged into its ports.
func (d *Device) RemoveAdapter(name string) error {
	for idx, a := range d.adapters {
		if a.name == name {
			for _, port := range a.ports {
				if port.link != nil {
					d.scenario.RemoveLink(port.link)
				}
			}
			d.adapters = append(d.adapters[:idx], d.adapters[idx+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s on %s", ErrNoSuchAdapter, name, d.name)
}

// CAMTable returns the switching table of a switch, or nil.
func (d *Device) CAMTable() *link.CAMTable[*Port] {
	return d.stack.cam
}

// ArpTable returns the ARP table, or nil below the network layer.
func (d *Device) ArpTable() *link.ArpTable {
	if d.stack.link == nil || !d.layers.Has(L3) {
		return nil
	}
	return d.stack.link.Arp.Table
}

// RoutingTable returns the routing table, or nil below the network layer.
func (d *Device) RoutingTable() *RoutingTable {
	if d.stack.ip == nil {
		return nil
	}
	return d.stack.ip.Routing.Table
}

// SocketsTable returns the sockets table, or nil below the transport layer.
func (d *Device) SocketsTable() *SocketsTable {
	if d.stack.transport == nil {
		return nil
	}
	return d.stack.sockets
}

// Ping sends an ICMP echo request to dst and reports whether a reply
// came back in the returned packet.
func (d *Device) Ping(dst addr.IP) (*Packet, error) {
	if d.stack.ip == nil {
		return nil, ErrNotL3
	}
	return d.stack.ip.ICMP.Ping(dst)
}

// InitSocket creates a new unbound socket bound to a free random
// port. The typ is [SocketClient] or [SocketServer].
func (d *Device) InitSocket(typ SocketType, proto Protocol) (*Socket, error) {
	if d.stack.transport == nil {
		return nil, ErrNotL4
	}
	return d.stack.InitSocket(typ, proto), nil
}

// OpenSocket registers the socket in the sockets table. It returns
// nil when its local port is already taken.
func (d *Device) OpenSocket(sock *Socket) *Socket {
	if d.stack.transport == nil {
		return nil
	}
	return d.stack.OpenSocket(sock)
}

// Listen opens a server socket listening on the given port.
func (d *Device) Listen(proto Protocol, port uint16) (*Socket, error) {
	sock, err := d.InitSocket(SocketServer, proto)
	if err != nil {
		return nil, err
	}
	sock.local.Port = port
	if err := sock.Open(); err != nil {
		return nil, err
	}
	return sock, nil
}

// Dial opens a client TCP socket and connects it to remote.
func (d *Device) Dial(remote addr.SocketAddr) (*Socket, *Packet, error) {
	sock, err := d.InitSocket(SocketClient, TCP)
	if err != nil {
		return nil, nil, err
	}
	pkt, err := sock.Connect(remote)
	return sock, pkt, err
}
