//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Physical links.
//

package netsim

import "errors"

var (
	// ErrPortNotFree indicates plugging a link into an occupied port.
	ErrPortNotFree = errors.New("a physical port plugged-in must be free")

	// ErrNoFreePort indicates an adapter without free ports.
	ErrNoFreePort = errors.New("no free port")
)

// Link models a cable between two [*Port] instances.
//
// Construct using [*Scenario.Connect] or [*Scenario.ConnectPorts].
type Link struct {
	ends [2]*Port
	id   string
}

// newLink plugs a new link into two free ports.
func newLink(id string, left, right *Port) (*Link, error) {
	if left == nil || right == nil {
		return nil, errors.New("both physical ports must be defined")
	}
	if !left.Free() || !right.Free() {
		return nil, ErrPortNotFree
	}
	lnk := &Link{ends: [2]*Port{left, right}, id: id}
	left.link = lnk
	right.link = lnk
	return lnk, nil
}

// ID returns the link identifier.
func (lnk *Link) ID() string {
	return lnk.id
}

// Ends returns the two ports connected by the link.
func (lnk *Link) Ends() (*Port, *Port) {
	return lnk.ends[0], lnk.ends[1]
}

// String returns "left <--> right".
func (lnk *Link) String() string {
	return lnk.ends[0].adapter.String() + " <--> " + lnk.ends[1].adapter.String()
}

// Transferable returns whether both connected devices are powered on.
func (lnk *Link) Transferable() bool {
	return lnk.ends[0].adapter.device.PowerOn() && lnk.ends[1].adapter.device.PowerOn()
}

// TransferData marks the packet transmitted, commits it, and delivers
// it to the port opposite to src.
func (lnk *Link) TransferData(src *Port, pkt *Packet) error {
	pkt.Transmitted = true
	if err := pkt.Commit(); err != nil {
		return err
	}
	dst := lnk.ends[0]
	if src == dst {
		dst = lnk.ends[1]
	}
	return dst.receiveData(pkt)
}

// destroy unplugs the link from both ports.
func (lnk *Link) destroy() {
	for _, port := range lnk.ends {
		if port.link == lnk {
			port.link = nil
		}
	}
}
