//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Physical ports.
//

package netsim

// Port is a physical port of an [*Adapter]. A port is free until a
// [*Link] is plugged into it.
type Port struct {
	adapter *Adapter
	id      string
	link    *Link
}

// ID returns the port identifier.
func (p *Port) ID() string {
	return p.id
}

// Adapter returns the adapter owning the port.
func (p *Port) Adapter() *Adapter {
	return p.adapter
}

// Link returns the plugged link, or nil.
func (p *Port) Link() *Link {
	return p.link
}

// Free returns whether no link is plugged into the port.
func (p *Port) Free() bool {
	return p.link == nil
}

// Other returns the port at the other end of the link, or nil.
func (p *Port) Other() *Port {
	if p.link == nil {
		return nil
	}
	if p.link.ends[0] == p {
		return p.link.ends[1]
	}
	return p.link.ends[0]
}

// String returns "device/adapter/id".
func (p *Port) String() string {
	return p.adapter.String() + "/" + p.id
}

// SendData transmits pkt over the plugged link. Without a usable link
// the packet is annotated and goes nowhere.
func (p *Port) SendData(pkt *Packet) error {
	if err := pkt.SetStartPoint(p.adapter.device); err != nil {
		return err
	}
	if p.link == nil || !p.link.Transferable() {
		pkt.Report("Physical link\nunavailable!")
		return nil
	}
	if err := pkt.SetEndPoint(p.Other().adapter.device); err != nil {
		return err
	}
	return p.link.TransferData(p, pkt)
}

// receiveData hands a packet arriving from the link to the adapter.
func (p *Port) receiveData(pkt *Packet) error {
	return p.adapter.Receive(pkt, p)
}
