//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Network adapters.
//

package netsim

import (
	"slices"

	"github.com/N1tramPH/network-simulator/netsim/addr"
	"github.com/N1tramPH/network-simulator/netsim/dataunit"
)

// Adapter is a network interface card of a [*Device].
//
// The mode is the highest layer of the owning device: hubs flood
// every frame, switches forward using their CAM table, and routers
// and computers send through their single port.
type Adapter struct {
	device      *Device
	ip          addr.IP
	mac         addr.MAC
	mode        int
	name        string
	ports       []*Port
	promiscuous bool
}

// newAdapter creates an adapter owned by dev.
func newAdapter(dev *Device, name string, mac addr.MAC) *Adapter {
	a := &Adapter{
		device: dev,
		mac:    mac,
		mode:   dev.layers.Top(),
		name:   name,
	}
	for range dev.kind.portCount() {
		a.ports = append(a.ports, &Port{id: dev.scenario.nextID("port"), adapter: a})
	}
	return a
}

// Name returns the adapter name.
func (a *Adapter) Name() string {
	return a.name
}

// Device returns the owning device.
func (a *Adapter) Device() *Device {
	return a.device
}

// MAC returns the adapter MAC address.
func (a *Adapter) MAC() addr.MAC {
	return a.mac
}

// SetMAC changes the adapter MAC address.
func (a *Adapter) SetMAC(mac addr.MAC) {
	a.mac = mac
}

// IPAddress returns the adapter IP address, if configured.
func (a *Adapter) IPAddress() (addr.IP, bool) {
	if a.ip.IsZeroAddr() {
		return addr.IP{}, false
	}
	return a.ip, true
}

// SetIP configures the adapter IP address. The unspecified address
// removes the configuration.
func (a *Adapter) SetIP(ip addr.IP) error {
	if !a.device.layers.Has(L3) {
		return ErrNotL3
	}
	a.ip = ip
	return nil
}

// Mode returns the highest layer the adapter operates on.
func (a *Adapter) Mode() int {
	return a.mode
}

// Promiscuous returns whether the adapter accepts every frame.
func (a *Adapter) Promiscuous() bool {
	return a.promiscuous
}

// Ports returns the adapter ports.
func (a *Adapter) Ports() []*Port {
	return append([]*Port(nil), a.ports...)
}

// FreePort returns the first free port, or nil.
func (a *Adapter) FreePort() *Port {
	for _, port := range a.ports {
		if port.Free() {
			return port
		}
	}
	return nil
}

// String returns "device/adapter".
func (a *Adapter) String() string {
	return a.device.name + "/" + a.name
}

// frame returns the link frame carried by pkt.
func frameOf(pkt *Packet) dataunit.LinkFrame {
	return dataunit.LinkFrame{DataUnit: pkt.GetUnit(dataunit.KindLinkFrame)}
}

// Send transmits a packet carrying a link frame, skipping the given
// ports when flooding.
func (a *Adapter) Send(pkt *Packet, omit ...*Port) error {
	frame := frameOf(pkt)
	frame.ComputeCRC()
	pkt.Meta.OutIface = a

	switch {
	case a.mode <= 1:
		return a.Broadcast(pkt, omit...)

	case a.mode == 2:
		if port, found := a.device.stack.cam.Get(frame.DstMAC()); found {
			pkt.Report("Switching...")
			cp := pkt.Copy()
			if err := cp.Commit(); err != nil {
				return err
			}
			return port.SendData(cp)
		}
		return a.Broadcast(pkt, omit...)

	default:
		port := a.ports[0]
		if port.Free() {
			return nil
		}
		if err := pkt.Commit(); err != nil {
			return err
		}
		return port.SendData(pkt)
	}
}

// Broadcast sends a committed copy of the packet through every
// occupied port except the omitted ones.
func (a *Adapter) Broadcast(pkt *Packet, omit ...*Port) error {
	pkt.Report("Broadcasting...")
	pkt.Meta.OutIface = a

	frame := frameOf(pkt)
	if a.mode > 2 {
		frame.SetSrcMAC(a.mac)
	}
	frame.ComputeCRC()

	for _, port := range a.ports {
		if port.Free() || slices.Contains(omit, port) {
			continue
		}
		cp := pkt.Copy()
		if err := cp.Commit(); err != nil {
			return err
		}
		if err := port.SendData(cp); err != nil {
			return err
		}
	}
	return nil
}

// Receive handles a packet arriving on one of the adapter ports.
func (a *Adapter) Receive(pkt *Packet, from *Port) error {
	frame := frameOf(pkt)
	if !frame.CheckCRC() {
		pkt.Report("Frame dropped")
		return nil
	}
	pkt.Meta.InIface = a

	if cam := a.device.stack.cam; cam != nil {
		cam.Set(frame.SrcMAC(), from)
	}

	if a.mode < 3 {
		return a.Send(pkt, from)
	}

	if !a.isRecipient(frame) {
		pkt.Report("Frame dropped")
		return nil
	}
	return a.device.stack.link.AcceptFromLower(pkt)
}

// isRecipient returns whether the adapter accepts the frame.
func (a *Adapter) isRecipient(frame dataunit.LinkFrame) bool {
	return a.promiscuous || frame.DstMAC().Equal(a.mac)
}

// Connect links a free port of a to a free port of other.
func (a *Adapter) Connect(other *Adapter) (*Link, error) {
	return a.device.scenario.Connect(a, other)
}
