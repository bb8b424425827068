// SPDX-License-Identifier: GPL-3.0-or-later

package netsim_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/N1tramPH/network-simulator/netsim"
	"github.com/N1tramPH/network-simulator/netsim/addr"
	"github.com/N1tramPH/network-simulator/netsim/dataunit"
	"github.com/N1tramPH/network-simulator/netsim/link"
	"github.com/N1tramPH/network-simulator/netsim/packet"
	"github.com/N1tramPH/network-simulator/netsim/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPingLAN(t *testing.T) {
	n := newLAN(t)

	pkt, err := n.a.Ping(n.bIP)
	require.NoError(t, err)
	assert.True(t, pkt.Success)
	assert.Equal(t, "Reply received", pkt.Msg)
	assert.True(t, pkt.IsRoot())

	// the echo request waits for exactly one ARP request
	require.Len(t, pkt.Preceding(), 1)
	arpReq := pkt.Preceding()[0]
	assert.Equal(t, netsim.PacketTypeARP, arpReq.Type)
	assert.Equal(t, "ARP request", arpReq.Title)
	assert.Less(t, arpReq.Order(), pkt.Order())
	flat := pkt.Flatten(true)
	assert.Less(t, slices.Index(flat, arpReq), slices.Index(flat, pkt))
	assert.NotEqual(t, -1, slices.Index(flat, arpReq))
	for _, p := range flat {
		if p != pkt {
			assert.Empty(t, p.Preceding())
		}
	}

	// both hosts resolved each other through ARP
	mac, found := n.a.ArpTable().Query(n.bIP)
	require.True(t, found)
	assert.Equal(t, eth0(t, n.b).MAC(), mac)
	mac, found = n.b.ArpTable().Query(n.aIP)
	require.True(t, found)
	assert.Equal(t, eth0(t, n.a).MAC(), mac)

	// the switch learned both hosts
	assert.Equal(t, 2, n.sw.CAMTable().Len())

	// a second ping needs no ARP
	pkt, err = n.a.Ping(n.bIP)
	require.NoError(t, err)
	assert.True(t, pkt.Success)
	for _, p := range pkt.Flatten(true) {
		assert.NotEqual(t, netsim.PacketTypeARP, p.Type)
	}
}

func TestPingUnknownHost(t *testing.T) {
	n := newLAN(t)
	pkt, err := n.a.Ping(addr.MustParseIP("10.0.0.99"))
	require.NoError(t, err)
	assert.False(t, pkt.Success)
	assert.Equal(t, "Destination unreachable", pkt.Msg)
	assert.True(t, hasReport(pkt, "Who has an IP\n10.0.0.99?"))
	assert.True(t, hasReport(pkt, "ARP dropped"))
}

func TestPingNoRoute(t *testing.T) {
	n := newLAN(t)
	pkt, err := n.a.Ping(addr.MustParseIP("192.168.1.1"))
	require.NoError(t, err)
	assert.False(t, pkt.Success)
	assert.Equal(t, "Request timed out", pkt.Msg)
	assert.True(t, hasReport(pkt, "Destination unreachable!"))
	assert.Len(t, pkt.EndEvents, 1)
}

func TestPingSelf(t *testing.T) {
	n := newLAN(t)
	pkt, err := n.a.Ping(n.aIP)
	require.NoError(t, err)
	assert.True(t, pkt.Success)
	for _, p := range pkt.Flatten(true) {
		assert.False(t, p.Transmitted)
	}
}

func TestPingThroughHub(t *testing.T) {
	s := newScenario("hub")
	a := s.MustNewComputer("A", "10.0.0.2/24", "")
	b := s.MustNewComputer("B", "10.0.0.3/24", "")
	c := s.MustNewComputer("C", "10.0.0.4/24", "")
	hub := s.MustNewHub("H")
	for _, dev := range []*netsim.Device{a, b, c} {
		s.MustConnect(eth0(t, dev), eth0(t, hub))
	}

	pkt, err := a.Ping(addr.MustParseIP("10.0.0.3"))
	require.NoError(t, err)
	assert.True(t, pkt.Success)

	// the hub floods frames, so C drops those not addressed to it
	assert.True(t, hasReport(pkt, "Frame dropped"))
	assert.Nil(t, hub.CAMTable())
}

func TestPingRouted(t *testing.T) {
	n := newWAN(t)
	pkt, err := n.a.Ping(n.bIP)
	require.NoError(t, err)
	assert.True(t, pkt.Success, pkt.Msg)
	assert.True(t, hasReport(pkt, "Forwarding..."))

	// TTL decremented once by the router
	var ttls []uint8
	for _, p := range pkt.Flatten(false) {
		if p.Transmitted && p.Type == netsim.PacketTypeICMP {
			ip := p.GetUnit(dataunit.KindIPPacket)
			ttls = append(ttls, dataunit.IPPacket{DataUnit: ip}.TTL())
		}
	}
	assert.Equal(t, []uint8{64, 63, 64, 63}, ttls)
}

func TestPowerOff(t *testing.T) {
	n := newWAN(t)
	n.r.TurnOff()
	pkt, err := n.a.Ping(n.bIP)
	require.NoError(t, err)
	assert.False(t, pkt.Success)
	assert.True(t, hasReport(pkt, "Physical link\nunavailable!"))

	n.r.TurnOn()
	pkt, err = n.a.Ping(n.bIP)
	require.NoError(t, err)
	assert.True(t, pkt.Success)
}

func TestRouterNoRoute(t *testing.T) {
	n := newWAN(t)
	pkt, err := n.a.Ping(addr.MustParseIP("172.16.0.1"))
	require.NoError(t, err)
	assert.False(t, pkt.Success)
	assert.Equal(t, "Destination unreachable", pkt.Msg)
	assert.True(t, hasReport(pkt, "Route\nnot found!"))
}

func TestTTLExceeded(t *testing.T) {
	s := newScenario("triangle")
	s.Settings.TTL = 5
	a := s.MustNewComputer("A", "10.0.0.2/24", "10.0.0.1")
	r1 := s.MustNewRouter("R1", "10.0.0.1/24", "10.1.0.1/24", "10.3.0.2/24")
	r2 := s.MustNewRouter("R2", "10.1.0.2/24", "10.2.0.1/24")
	r3 := s.MustNewRouter("R3", "10.2.0.2/24", "10.3.0.1/24")
	s.MustConnect(eth0(t, a), adapter(t, r1, "eth0"))
	s.MustConnect(adapter(t, r1, "eth1"), adapter(t, r2, "eth0"))
	s.MustConnect(adapter(t, r2, "eth1"), adapter(t, r3, "eth0"))
	s.MustConnect(adapter(t, r3, "eth1"), adapter(t, r1, "eth2"))

	// every router sends unknown traffic around the triangle
	for dev, gw := range map[*netsim.Device]string{r1: "10.1.0.2", r2: "10.2.0.2", r3: "10.3.0.2"} {
		_, err := dev.RoutingTable().AddRecord(router.RouteRecord{
			Destination: "0.0.0.0/0",
			Gateway:     gw,
			Iface:       "eth1",
		})
		require.NoError(t, err)
	}

	pkt, err := a.Ping(addr.MustParseIP("99.9.9.9"))
	require.NoError(t, err)
	assert.False(t, pkt.Success)
	assert.Equal(t, "Time exceeded", pkt.Msg)
	assert.True(t, hasReport(pkt, "TTL exceeded!"))
}

func TestLoopPrevention(t *testing.T) {
	n := newWAN(t)
	// route back through the interface the packet came from
	_, err := n.r.RoutingTable().AddRecord(router.RouteRecord{
		Destination: "172.16.0.0/16",
		Gateway:     "10.0.0.2",
		Iface:       "eth0",
	})
	require.NoError(t, err)
	pkt, err := n.a.Ping(addr.MustParseIP("172.16.0.1"))
	require.NoError(t, err)
	assert.False(t, pkt.Success)
	assert.True(t, hasReport(pkt, "IP packet dropped\n→loop prevention"))
}

func TestSwitchingLoop(t *testing.T) {
	s := newScenario("loop")
	a := s.MustNewComputer("A", "10.0.0.2/24", "")
	s1 := s.MustNewSwitch("S1")
	s2 := s.MustNewSwitch("S2")
	s.MustConnect(eth0(t, a), eth0(t, s1))
	s.MustConnect(eth0(t, s1), eth0(t, s2))
	s.MustConnect(eth0(t, s1), eth0(t, s2))

	pkt, err := a.Ping(addr.MustParseIP("10.0.0.3"))
	require.Error(t, err)
	var exceed *netsim.PacketExceedError
	require.True(t, errors.As(err, &exceed))
	assert.Equal(t, pkt.ID, exceed.Root.ID)
	assert.Equal(t, packet.MaxDescendants+1, pkt.Descendants())
}

func TestPortExclusivity(t *testing.T) {
	n := newLAN(t)
	first, err := n.b.Listen(netsim.TCP, 80)
	require.NoError(t, err)

	_, err = n.b.Listen(netsim.TCP, 80)
	assert.ErrorIs(t, err, netsim.EADDRINUSE)
	_, err = n.b.Listen(netsim.UDP, 80)
	assert.ErrorIs(t, err, netsim.EADDRINUSE)

	sock, err := n.b.InitSocket(netsim.SocketServer, netsim.TCP)
	require.NoError(t, err)
	require.NoError(t, sock.Bind(addr.MustParseSocketAddr("0.0.0.0:80")))
	assert.Nil(t, n.b.OpenSocket(sock))
	assert.Same(t, first, n.b.SocketsTable().Get(80))

	// reopening the same socket is fine
	assert.Same(t, first, n.b.OpenSocket(first))

	// the port becomes free once the socket is destroyed
	first.Destroy()
	assert.Same(t, sock, n.b.OpenSocket(sock))
}

func TestBind(t *testing.T) {
	n := newLAN(t)
	sock, err := n.a.InitSocket(netsim.SocketClient, netsim.TCP)
	require.NoError(t, err)
	port := sock.LocalAddr().Port
	assert.GreaterOrEqual(t, port, uint16(1024))

	// a wildcard port keeps the random one
	require.NoError(t, sock.Bind(addr.MustParseSocketAddr("10.0.0.2:*")))
	assert.Equal(t, port, sock.LocalAddr().Port)

	require.NoError(t, sock.Open())
	assert.True(t, sock.Bound())
	assert.ErrorIs(t, sock.Bind(addr.MustParseSocketAddr("10.0.0.2:8080")), netsim.EINVAL)
}

func TestDeviceLayers(t *testing.T) {
	s := newScenario("layers")
	hub := s.MustNewHub("H")
	sw := s.MustNewSwitch("S")
	r := s.MustNewRouter("R", "10.0.0.1/24")
	c := s.MustNewComputer("C", "10.0.0.2/24", "")

	assert.Nil(t, hub.ArpTable())
	assert.Nil(t, sw.RoutingTable())
	assert.NotNil(t, sw.CAMTable())
	assert.NotNil(t, r.RoutingTable())
	assert.Nil(t, r.SocketsTable())
	assert.NotNil(t, c.SocketsTable())

	_, err := hub.Ping(addr.MustParseIP("10.0.0.1"))
	assert.ErrorIs(t, err, netsim.ErrNotL3)
	_, err = r.InitSocket(netsim.SocketClient, netsim.TCP)
	assert.ErrorIs(t, err, netsim.ErrNotL4)
	assert.ErrorIs(t, hub.AddFilter(nil), netsim.ErrNotL3)

	assert.Len(t, eth0(t, hub).Ports(), 6)
	assert.Len(t, eth0(t, c).Ports(), 1)
	assert.True(t, eth0(t, sw).Promiscuous())

	// devices below the network layer ignore IP addresses
	_, found := eth0(t, sw).IPAddress()
	assert.False(t, found)
}

func TestScenarioDevices(t *testing.T) {
	s := newScenario("devices")
	a := s.MustNewComputer("A", "10.0.0.2/24", "")
	_, err := s.AddDevice(netsim.Computer, "A")
	assert.ErrorIs(t, err, netsim.ErrDeviceNameInUse)
	_, err = s.AddDevice(netsim.Kind(42), "X")
	assert.ErrorIs(t, err, netsim.ErrUnknownKind)

	b := s.MustNewComputer("B", "10.0.0.3/24", "")
	lnk := s.MustConnect(eth0(t, a), eth0(t, b))
	assert.Len(t, s.Links(), 1)

	// a single-port adapter cannot be connected twice
	c := s.MustNewComputer("C", "10.0.0.4/24", "")
	_, err = s.Connect(eth0(t, a), eth0(t, c))
	assert.ErrorIs(t, err, netsim.ErrNoFreePort)

	s.RemoveLink(lnk)
	assert.Empty(t, s.Links())
	assert.True(t, eth0(t, a).Ports()[0].Free())

	s.MustConnect(eth0(t, a), eth0(t, c))
	require.NoError(t, s.RemoveDevice("C"))
	assert.Nil(t, s.Device("C"))
	assert.Empty(t, s.Links())
	assert.ErrorIs(t, s.RemoveDevice("C"), netsim.ErrNoSuchDevice)

	assert.Equal(t, []*netsim.Device{a, b}, s.Devices())
}

func TestAdapters(t *testing.T) {
	s := newScenario("adapters")
	r := s.MustNewRouter("R", "10.0.0.1/24", "10.0.1.1/24", "10.0.2.1/24", "10.0.3.1/24")
	_, err := r.AddAdapter("eth4", addr.MAC{}, addr.Unspecified())
	assert.ErrorIs(t, err, netsim.ErrTooManyAdapters)
	_, err = r.AddAdapter("eth0", addr.MAC{}, addr.Unspecified())
	assert.ErrorIs(t, err, netsim.ErrTooManyAdapters)

	require.NoError(t, r.RemoveAdapter("eth3"))
	_, err = r.AddAdapter("eth0", addr.MAC{}, addr.Unspecified())
	assert.ErrorIs(t, err, netsim.ErrAdapterNameInUse)
	a, err := r.AddAdapter("eth9", addr.MustParseMAC("02:00:00:00:00:09"), addr.MustParseIP("10.0.9.1/24"))
	require.NoError(t, err)
	assert.Equal(t, "02:00:00:00:00:09", a.MAC().String())
	assert.ErrorIs(t, r.RemoveAdapter("nope"), netsim.ErrNoSuchAdapter)

	// one dynamic route per configured adapter
	assert.Len(t, r.RoutingTable().DynamicRoutes(), 4)
}

func TestNewDeviceValidation(t *testing.T) {
	s := newScenario("validation")
	_, err := s.NewDevice(&netsim.DeviceConfig{
		Kind:     "Hub",
		Adapters: []netsim.AdapterConfig{{Name: "eth0", IP: "10.0.0.1/24"}, {}},
		Gateway:  "10.0.0.254",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, netsim.ErrNotL3)
	assert.Contains(t, err.Error(), "the device name is required")
	assert.Contains(t, err.Error(), "the adapter name is required")

	_, err = s.NewDevice(&netsim.DeviceConfig{Kind: "Toaster", Name: "T"})
	assert.ErrorIs(t, err, netsim.ErrUnknownKind)

	_, err = s.NewDevice(&netsim.DeviceConfig{
		Kind:     "Computer",
		Name:     "C",
		Adapters: []netsim.AdapterConfig{{Name: "eth0", IP: "10.0.0.2/24"}},
		Routes:   []router.RouteRecord{{Destination: "0.0.0.0/0", Gateway: "10.0.0.1", Iface: "eth7"}},
	})
	assert.ErrorIs(t, err, router.ErrNoSuchIface)
	assert.Nil(t, s.Device("C"), "a failed setup leaves no device behind")
}

func TestStaticArp(t *testing.T) {
	n := newLAN(t)
	_, err := n.a.ArpTable().Add(n.bIP, eth0(t, n.b).MAC(), link.Static)
	require.NoError(t, err)
	_, err = n.b.ArpTable().Add(n.aIP, eth0(t, n.a).MAC(), link.Static)
	require.NoError(t, err)

	pkt, err := n.a.Ping(n.bIP)
	require.NoError(t, err)
	assert.True(t, pkt.Success)
	for _, p := range pkt.Flatten(true) {
		assert.NotEqual(t, netsim.PacketTypeARP, p.Type)
	}
}
