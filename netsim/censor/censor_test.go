// SPDX-License-Identifier: GPL-3.0-or-later

package censor_test

import (
	"net/netip"
	"testing"

	"github.com/N1tramPH/network-simulator/netsim"
	"github.com/N1tramPH/network-simulator/netsim/addr"
	"github.com/N1tramPH/network-simulator/netsim/censor"
	netsimdns "github.com/N1tramPH/network-simulator/netsim/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// topology is a client and two servers behind a censoring router.
type topology struct {
	s       *netsim.Scenario
	client  *netsim.Device
	dns     *netsim.Device
	example *netsim.Device
	router  *netsim.Device
}

func newTopology(t *testing.T) *topology {
	s := netsim.NewScenario(t.Name())
	s.Settings.MSS = 500
	topo := &topology{
		s:       s,
		client:  s.MustNewClientComputer("client", "193.206.158.1"),
		dns:     s.MustNewGoogleDNSComputer("8.8.8.1"),
		example: s.MustNewExampleComComputer("93.184.216.1"),
		router:  s.MustNewRouter("R", "193.206.158.1/24", "8.8.8.1/24", "93.184.216.1/24"),
	}
	r := topo.router.Adapters()
	s.MustConnect(topo.client.Adapters()[0], r[0])
	s.MustConnect(topo.dns.Adapters()[0], r[1])
	s.MustConnect(topo.example.Adapters()[0], r[2])
	return topo
}

func TestDNSPoisoner(t *testing.T) {
	topo := newTopology(t)
	legit := netsimdns.NewDatabase()
	legit.AddAddresses([]string{"www.example.com"}, []string{"93.184.216.34"})
	_, err := netsimdns.Serve(topo.dns, legit)
	require.NoError(t, err)

	poisoned := censor.NewDNSPoisoner(func() *censor.Database {
		db := netsimdns.NewDatabase()
		db.AddAddresses([]string{"www.example.com"}, []string{"10.10.34.35"})
		return db
	}())
	require.NoError(t, topo.router.AddFilter(poisoned))

	result, err := netsimdns.Lookup(topo.client, addr.MustParseIP("8.8.8.8"), "www.example.com")
	require.NoError(t, err)
	assert.Equal(t, []netip.Addr{netip.MustParseAddr("10.10.34.35")}, result.Addrs)

	// names unknown to the censor are not poisoned
	_, err = netsimdns.Lookup(topo.client, addr.MustParseIP("8.8.8.8"), "www.example.org")
	assert.ErrorIs(t, err, netsimdns.ErrNoName)
}

func TestTCPResetter(t *testing.T) {
	topo := newTopology(t)
	_, err := topo.example.Listen(netsim.TCP, 443)
	require.NoError(t, err)
	rst := censor.NewTCPResetter(netip.MustParseAddrPort("93.184.216.34:443"), []byte("example.com"))
	require.NoError(t, topo.router.AddFilter(rst))

	remote := addr.MustParseSocketAddr("93.184.216.34:443")
	conn, pkt, err := topo.client.Dial(remote)
	require.NoError(t, err)
	require.True(t, pkt.Success, "the handshake carries no payload")

	_, err = conn.SendBytes([]byte("GET / HTTP/1.1\r\nHost: www.example.org\r\n\r\n"))
	require.NoError(t, err)
	assert.Equal(t, netsim.StateEstablished, conn.State())

	pkt, err = conn.SendBytes([]byte("\x16\x03\x01 SNI=www.example.com"))
	require.NoError(t, err)
	assert.Equal(t, netsim.StateClosed, conn.State())
	assert.True(t, hasReport(pkt, "Connection reset"))
}

func TestBlackholer(t *testing.T) {
	topo := newTopology(t)
	server, err := topo.example.Listen(netsim.UDP, 9)
	require.NoError(t, err)
	bh := censor.NewBlackholer(10, netip.AddrPort{}, []byte("forbidden"))
	require.NoError(t, topo.router.AddFilter(bh))

	sock, err := topo.client.InitSocket(netsim.SocketClient, netsim.UDP)
	require.NoError(t, err)
	remote := addr.MustParseSocketAddr("93.184.216.34:9")
	received := func() int {
		count := 0
		for {
			_, found, err := server.ReceiveFrom()
			require.NoError(t, err)
			if !found {
				return count
			}
			count++
		}
	}

	_, err = sock.SendTo([]byte("hello"), remote)
	require.NoError(t, err)
	assert.Equal(t, 1, received())

	pkt, err := sock.SendTo([]byte("forbidden"), remote)
	require.NoError(t, err)
	assert.True(t, hasReport(pkt, "IP packet\nfiltered"))
	assert.Equal(t, 0, received())

	// the flow stays blackholed
	topo.s.Advance(5)
	_, err = sock.SendTo([]byte("hello"), remote)
	require.NoError(t, err)
	assert.Equal(t, 0, received())

	// other flows are not affected
	other, err := topo.client.InitSocket(netsim.SocketClient, netsim.UDP)
	require.NoError(t, err)
	_, err = other.SendTo([]byte("hello"), remote)
	require.NoError(t, err)
	assert.Equal(t, 1, received())

	topo.s.Advance(5)
	_, err = sock.SendTo([]byte("hello"), remote)
	require.NoError(t, err)
	assert.Equal(t, 1, received())
}

func TestDNatter(t *testing.T) {
	topo := newTopology(t)
	echo, err := topo.example.Listen(netsim.UDP, 7)
	require.NoError(t, err)
	echo.Handler = func(_ *netsim.Packet, _ addr.SocketAddr, payload []byte) []byte {
		return payload
	}
	dnat := censor.NewDNatter(
		netip.MustParseAddr("193.206.158.22"),
		netip.MustParseAddrPort("8.8.8.8:53"),
		netip.MustParseAddrPort("93.184.216.34:7"),
	)
	require.NoError(t, topo.router.AddFilter(dnat))

	sock, err := topo.client.InitSocket(netsim.SocketClient, netsim.UDP)
	require.NoError(t, err)
	pkt, err := sock.SendTo([]byte("ping"), addr.MustParseSocketAddr("8.8.8.8:53"))
	require.NoError(t, err)
	assert.True(t, hasReport(pkt, "Address\ntranslated"))

	dgram, found, err := sock.ReceiveFrom()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("ping"), dgram.Payload)
	assert.Equal(t, "8.8.8.8:53", dgram.From.String())
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
