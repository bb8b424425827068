// SPDX-License-Identifier: GPL-3.0-or-later

package persist_test

import (
	"testing"

	"github.com/N1tramPH/network-simulator/netsim"
	"github.com/N1tramPH/network-simulator/netsim/addr"
	"github.com/N1tramPH/network-simulator/netsim/persist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScenario(t *testing.T) *netsim.Scenario {
	s := netsim.NewScenario(t.Name())
	a := s.MustNewComputer("A", "10.0.0.2/24", "10.0.0.1")
	b := s.MustNewComputer("B", "10.0.1.2/24", "10.0.1.1")
	r := s.MustNewRouter("R", "10.0.0.1/24", "10.0.1.1/24")
	s.MustConnect(a.Adapters()[0], r.Adapters()[0])
	s.MustConnect(b.Adapters()[0], r.Adapters()[1])
	_, err := b.Listen(netsim.TCP, 80)
	require.NoError(t, err)
	return s
}

func TestYAMLRoundTrip(t *testing.T) {
	orig := newScenario(t)
	data, err := persist.Marshal(persist.Export(orig))
	require.NoError(t, err)
	assert.Contains(t, string(data), "dstIpAddress: 0.0.0.0/0")
	assert.Contains(t, string(data), "state: LISTEN")

	topo, err := persist.Unmarshal(data)
	require.NoError(t, err)
	again, err := persist.Marshal(topo)
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again))

	s := netsim.NewScenario("copy")
	require.NoError(t, persist.Build(s, topo))
	_, pkt, err := s.Device("A").Dial(addr.MustParseSocketAddr("10.0.1.2:80"))
	require.NoError(t, err)
	assert.True(t, pkt.Success)
}

func TestUnmarshalErrors(t *testing.T) {
	_, err := persist.Unmarshal([]byte("devices: [\n"))
	assert.Error(t, err)

	_, err = persist.Unmarshal([]byte("devices:\n  - name: A\n    type: Computer\n    color: blue\n"))
	assert.Error(t, err)
}

func TestBuildErrors(t *testing.T) {
	s := netsim.NewScenario(t.Name())
	err := persist.Build(s, &persist.Topology{
		Devices: []netsim.DeviceRecord{{Name: "A", Type: "Mainframe"}},
	})
	assert.ErrorIs(t, err, netsim.ErrUnknownKind)

	err = persist.Build(s, &persist.Topology{
		Links: []netsim.LinkRecord{{
			Left:  netsim.PortRef{Device: "A", Adapter: "eth0"},
			Right: netsim.PortRef{Device: "B", Adapter: "eth0"},
		}},
	})
	assert.ErrorIs(t, err, netsim.ErrNoSuchDevice)
}

func TestDecode(t *testing.T) {
	input := map[string]any{
		"name": "lua",
		"devices": []any{
			map[string]any{
				"name": "A",
				"type": "Computer",
				"adapters": []any{
					map[string]any{"name": "eth0", "ipAddress": "10.0.0.2/24", "macAddress": "02:00:00:00:00:01", "ports": []any{map[string]any{"id": "p1"}}},
				},
			},
			map[string]any{
				"name": "B",
				"type": "Computer",
				"adapters": []any{
					map[string]any{"name": "eth0", "ipAddress": "10.0.0.3/24", "macAddress": "02:00:00:00:00:02", "ports": []any{map[string]any{"id": "p2"}}},
				},
			},
		},
		"links": []any{
			map[string]any{
				"left":  map[string]any{"device": "A", "adapter": "eth0", "port": 0.0},
				"right": map[string]any{"device": "B", "adapter": "eth0", "port": 0.0},
			},
		},
	}
	topo, err := persist.Decode(input)
	require.NoError(t, err)
	assert.Equal(t, "lua", topo.Name)
	require.Len(t, topo.Devices, 2)
	require.Len(t, topo.Links, 1)

	s := netsim.NewScenario(t.Name())
	require.NoError(t, persist.Build(s, topo))
	pkt, err := s.Device("A").Ping(addr.MustParseIP("10.0.0.3"))
	require.NoError(t, err)
	assert.True(t, pkt.Success)

	_, err = persist.Decode(map[string]any{"devices": []any{}, "bogus": 1})
	assert.Error(t, err)
}
