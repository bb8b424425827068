// SPDX-License-Identifier: GPL-3.0-or-later

package netsim_test

import (
	"testing"

	"github.com/N1tramPH/network-simulator/netsim"
	"github.com/N1tramPH/network-simulator/netsim/addr"
	"github.com/N1tramPH/network-simulator/netsim/dataunit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// portFilter drops UDP flows towards drop and redirects those towards
// from to port to. It records the virtual time of each call.
type portFilter struct {
	drop     uint16
	from, to uint16
	times    []float64
}

func (f *portFilter) Filter(now float64, flow *netsim.Flow) (netsim.Target, []netsim.Flow) {
	f.times = append(f.times, now)
	if flow.Protocol != dataunit.IPProtocolUDP {
		return netsim.ACCEPT, nil
	}
	switch flow.DstPort {
	case f.drop:
		return netsim.DROP, nil
	case f.from:
		flow.DstPort = f.to
	}
	return netsim.ACCEPT, nil
}

func TestFilterRequiresForwarding(t *testing.T) {
	n := newWAN(t)
	assert.ErrorIs(t, n.a.AddFilter(&portFilter{}), netsim.ErrNotL3)
	assert.NoError(t, n.r.AddFilter(&portFilter{}))
}

func TestFilterDrop(t *testing.T) {
	n := newWAN(t)
	f := &portFilter{drop: 9}
	require.NoError(t, n.r.AddFilter(f))
	server, err := n.b.Listen(netsim.UDP, 9)
	require.NoError(t, err)

	client, err := n.a.InitSocket(netsim.SocketClient, netsim.UDP)
	require.NoError(t, err)
	pkt, err := client.SendTo([]byte("x"), addr.MustParseSocketAddr("10.0.1.2:9"))
	require.NoError(t, err)
	assert.True(t, hasReport(pkt, "IP packet\nfiltered"))

	_, found, err := server.ReceiveFrom()
	require.NoError(t, err)
	assert.False(t, found)
	assert.NotEmpty(t, f.times)

	// ICMP is not affected
	ping, err := n.a.Ping(n.bIP)
	require.NoError(t, err)
	assert.True(t, ping.Success)
}

func TestFilterRewrite(t *testing.T) {
	n := newWAN(t)
	f := &portFilter{from: 9, to: 7}
	require.NoError(t, n.r.AddFilter(f))
	server, err := n.b.Listen(netsim.UDP, 7)
	require.NoError(t, err)

	n.s.Advance(3)
	client, err := n.a.InitSocket(netsim.SocketClient, netsim.UDP)
	require.NoError(t, err)
	pkt, err := client.SendTo([]byte("x"), addr.MustParseSocketAddr("10.0.1.2:9"))
	require.NoError(t, err)
	assert.True(t, hasReport(pkt, "Address\ntranslated"))

	dgram, found, err := server.ReceiveFrom()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("x"), dgram.Payload)
	assert.Equal(t, "10.0.0.2", dgram.From.IP.HostString())

	require.NotEmpty(t, f.times)
	assert.Equal(t, 3.0, f.times[len(f.times)-1])
}
