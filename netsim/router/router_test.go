// SPDX-License-Identifier: GPL-3.0-or-later

package router_test

import (
	"testing"

	"github.com/N1tramPH/network-simulator/netsim/addr"
	"github.com/N1tramPH/network-simulator/netsim/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type iface struct {
	name string
	ip   string
}

func (i *iface) Name() string { return i.name }

func (i *iface) IPAddress() (addr.IP, bool) {
	if i.ip == "" {
		return addr.IP{}, false
	}
	return addr.MustParseIP(i.ip), true
}

func newTable(ifaces ...*iface) *router.Table[*iface] {
	return router.NewTable(func() []*iface { return ifaces })
}

func TestLongestPrefixMatch(t *testing.T) {
	eth0 := &iface{name: "eth0"}
	eth1 := &iface{name: "eth1"}
	table := newTable(eth0, eth1)
	table.Add(addr.MustParseIP("10.0.0.0/8"), addr.MustParseIP("192.168.0.1"), eth0, 1)
	table.Add(addr.MustParseIP("10.0.1.0/24"), addr.MustParseIP("192.168.0.2"), eth1, 1)

	tests := []struct {
		name    string
		dst     string
		wantDst string
		wantIf  string
	}{
		{"more specific route wins", "10.0.1.5", "10.0.1.0/24", "eth1"},
		{"falls back to the shorter prefix", "10.0.2.5", "10.0.0.0/8", "eth0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			route, found := table.Query(addr.MustParseIP(tt.dst))
			require.True(t, found)
			assert.Equal(t, tt.wantDst, route.Destination.String())
			assert.Equal(t, tt.wantIf, route.Iface.Name())
		})
	}

	_, found := table.Query(addr.MustParseIP("172.16.0.1"))
	assert.False(t, found)
}

func TestDynamicRoutesAreOnLink(t *testing.T) {
	eth0 := &iface{name: "eth0", ip: "192.168.1.1/24"}
	unset := &iface{name: "eth1"}
	table := newTable(eth0, unset)

	require.Len(t, table.DynamicRoutes(), 1)
	route, found := table.Query(addr.MustParseIP("192.168.1.20"))
	require.True(t, found)
	assert.True(t, route.Dynamic)
	assert.Equal(t, "192.168.1.0/24", route.Destination.String())
	assert.Equal(t, "192.168.1.20/32", route.Gateway.String())
	assert.Equal(t, 1, route.Metric)
}

func TestDefaultRoute(t *testing.T) {
	eth0 := &iface{name: "eth0", ip: "192.168.1.1/24"}
	table := newTable(eth0)
	table.Add(addr.MustParseIP("0.0.0.0/0"), addr.MustParseIP("192.168.1.254"), eth0, 10)

	route, found := table.Query(addr.MustParseIP("8.8.8.8"))
	require.True(t, found)
	assert.Equal(t, "192.168.1.254/32", route.Gateway.String())

	route, found = table.Query(addr.MustParseIP("192.168.1.9"))
	require.True(t, found)
	assert.True(t, route.Dynamic)
}

func TestStaticBeforeDynamicOnTies(t *testing.T) {
	eth0 := &iface{name: "eth0", ip: "10.1.0.1/16"}
	eth1 := &iface{name: "eth1", ip: "10.2.0.1/16"}
	table := newTable(eth0, eth1)
	table.Add(addr.MustParseIP("10.1.0.0/16"), addr.MustParseIP("10.2.0.9"), eth1, 5)

	routes := table.Routes()
	require.Len(t, routes, 3)
	assert.False(t, routes[0].Dynamic)

	route, found := table.Query(addr.MustParseIP("10.1.3.3"))
	require.True(t, found)
	assert.Equal(t, "eth1", route.Iface.Name())
}

func TestRemoveUpdate(t *testing.T) {
	eth0 := &iface{name: "eth0", ip: "10.0.0.1/24"}
	table := newTable(eth0)
	id := table.Add(addr.MustParseIP("172.16.0.0/12"), addr.MustParseIP("10.0.0.254"), eth0, 1)

	assert.ErrorIs(t, table.Remove("dyn-eth0"), router.ErrDynamicRoute)

	require.NoError(t, table.Update(id, router.RouteRecord{
		Destination: "172.16.0.0/16",
		Gateway:     router.OnLink,
		Iface:       "eth0",
		Metric:      3,
	}))
	route, found := table.Query(addr.MustParseIP("172.16.4.4"))
	require.True(t, found)
	assert.Equal(t, "172.16.4.4/32", route.Gateway.String())
	assert.Equal(t, 3, route.Metric)

	err := table.Update(id, router.RouteRecord{Destination: "1.0.0.0/8", Gateway: "0.0.0.0/0", Iface: "wlan0"})
	assert.ErrorIs(t, err, router.ErrNoSuchIface)

	require.NoError(t, table.Remove(id))
	assert.Empty(t, table.StaticRoutes())
}

func TestExportImport(t *testing.T) {
	eth0 := &iface{name: "eth0", ip: "10.0.0.1/24"}
	table := newTable(eth0)
	_, err := table.AddRecord(router.RouteRecord{
		Destination: "0.0.0.0/0",
		Gateway:     "10.0.0.254",
		Iface:       "eth0",
	})
	require.NoError(t, err)

	records := table.Export()
	assert.Equal(t, []router.RouteRecord{{
		Destination: "0.0.0.0/0",
		Gateway:     "10.0.0.254/32",
		Iface:       "eth0",
		Metric:      1,
	}}, records)

	other := newTable(eth0)
	require.NoError(t, other.Import(records))
	assert.Equal(t, records, other.Export())

	assert.Error(t, other.Import([]router.RouteRecord{{Destination: "x", Iface: "eth0"}}))
	assert.Equal(t, records, other.Export())
}
