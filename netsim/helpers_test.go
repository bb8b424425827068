// SPDX-License-Identifier: GPL-3.0-or-later

package netsim_test

import (
	"testing"

	"github.com/N1tramPH/network-simulator/netsim"
	"github.com/N1tramPH/network-simulator/netsim/addr"
	"github.com/stretchr/testify/require"
)

// newScenario returns a scenario with fixed initial sequence numbers
// (2000 for clients, 5000 for servers) and 500 bytes segments.
func newScenario(name string) *netsim.Scenario {
	s := netsim.NewScenario(name)
	s.ISNFunc = func(sock *netsim.Socket) uint32 {
		if sock.Type() == netsim.SocketServer {
			return 5000
		}
		return 2000
	}
	s.Settings.MSS = 500
	return s
}

// eth0 returns the first adapter of dev.
func eth0(t *testing.T, dev *netsim.Device) *netsim.Adapter {
	a, err := dev.Adapter("eth0")
	require.NoError(t, err)
	return a
}

// adapter returns the named adapter of dev.
func adapter(t *testing.T, dev *netsim.Device, name string) *netsim.Adapter {
	a, err := dev.Adapter(name)
	require.NoError(t, err)
	return a
}

// lan is a switched LAN with two computers.
type lan struct {
	s      *netsim.Scenario
	a, b   *netsim.Device
	sw     *netsim.Device
	aIP    addr.IP
	bIP    addr.IP
	server addr.SocketAddr
}

// newLAN creates a [*lan]: A (10.0.0.2) and B (10.0.0.3) attached to switch S.
func newLAN(t *testing.T) *lan {
	s := newScenario("lan")
	n := &lan{
		s:      s,
		a:      s.MustNewComputer("A", "10.0.0.2/24", ""),
		b:      s.MustNewComputer("B", "10.0.0.3/24", ""),
		sw:     s.MustNewSwitch("S"),
		aIP:    addr.MustParseIP("10.0.0.2"),
		bIP:    addr.MustParseIP("10.0.0.3"),
		server: addr.MustParseSocketAddr("10.0.0.3:80"),
	}
	s.MustConnect(eth0(t, n.a), eth0(t, n.sw))
	s.MustConnect(eth0(t, n.b), eth0(t, n.sw))
	return n
}

// wan is a routed network: A - R - B.
type wan struct {
	s    *netsim.Scenario
	a, b *netsim.Device
	r    *netsim.Device
	bIP  addr.IP
}

// newWAN creates a [*wan]: A (10.0.0.2/24) and B (10.0.1.2/24) joined
// by router R (10.0.0.1/24, 10.0.1.1/24).
func newWAN(t *testing.T) *wan {
	s := newScenario("wan")
	n := &wan{
		s:   s,
		a:   s.MustNewComputer("A", "10.0.0.2/24", "10.0.0.1"),
		b:   s.MustNewComputer("B", "10.0.1.2/24", "10.0.1.1"),
		r:   s.MustNewRouter("R", "10.0.0.1/24", "10.0.1.1/24"),
		bIP: addr.MustParseIP("10.0.1.2"),
	}
	s.MustConnect(eth0(t, n.a), adapter(t, n.r, "eth0"))
	s.MustConnect(eth0(t, n.b), adapter(t, n.r, "eth1"))
	return n
}

// titles returns the titles of the flattened trace.
func titles(root *netsim.Packet) []string {
	var out []string
	for _, pkt := range root.Flatten(false) {
		out = append(out, pkt.Title)
	}
	return out
}

// sentBy returns whether pkt was transmitted by a computer.
func sentBy(pkt *netsim.Packet) bool {
	dev, ok := pkt.StartPoint().(*netsim.Device)
	return ok && pkt.Transmitted && dev.Kind() == netsim.Computer
}

// segments returns the "title (subtitle)" of the packets of the given
// type transmitted by computers, in depth-first order.
func segments(root *netsim.Packet, typ string) []string {
	var out []string
	for _, pkt := range root.Flatten(false) {
		if sentBy(pkt) && pkt.Type == typ {
			out = append(out, pkt.Title+" ("+pkt.Subtitle+")")
		}
	}
	return out
}

// hasReport returns whether any packet of the trace reported msg.
func hasReport(root *netsim.Packet, msg string) bool {
	for _, pkt := range root.Flatten(false) {
		for _, ev := range pkt.Events() {
			if ev.Msg == msg {
				return true
			}
		}
	}
	return false
}
