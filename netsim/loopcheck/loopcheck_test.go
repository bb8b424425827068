// SPDX-License-Identifier: GPL-3.0-or-later

package loopcheck_test

import (
	"testing"

	"github.com/N1tramPH/network-simulator/netsim"
	"github.com/N1tramPH/network-simulator/netsim/addr"
	"github.com/N1tramPH/network-simulator/netsim/loopcheck"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFind(t *testing.T) {
	t.Run("tree", func(t *testing.T) {
		s := netsim.NewScenario(t.Name())
		s1, s2 := s.MustNewSwitch("S1"), s.MustNewSwitch("S2")
		h := s.MustNewHub("H")
		a := s.MustNewComputer("A", "10.0.0.2/24", "")
		s.MustConnect(s1.Adapters()[0], s2.Adapters()[0])
		s.MustConnect(s2.Adapters()[0], h.Adapters()[0])
		s.MustConnect(a.Adapters()[0], h.Adapters()[0])
		assert.Empty(t, loopcheck.Find(s))
		assert.NoError(t, loopcheck.Check(s))
	})

	t.Run("parallel links", func(t *testing.T) {
		s := netsim.NewScenario(t.Name())
		s1, s2 := s.MustNewSwitch("S1"), s.MustNewSwitch("S2")
		s.MustConnect(s1.Adapters()[0], s2.Adapters()[0])
		s.MustConnect(s1.Adapters()[0], s2.Adapters()[0])
		loops := loopcheck.Find(s)
		require.Len(t, loops, 1)
		assert.Equal(t, []string{"S1", "S2"}, loops[0].Devices)
		assert.Equal(t, 2, loops[0].Links)
		assert.ErrorIs(t, loopcheck.Check(s), loopcheck.ErrSwitchingLoop)
	})

	t.Run("triangle", func(t *testing.T) {
		s := netsim.NewScenario(t.Name())
		s1, s2, h := s.MustNewSwitch("S1"), s.MustNewSwitch("S2"), s.MustNewHub("H")
		s.MustConnect(s1.Adapters()[0], s2.Adapters()[0])
		s.MustConnect(s2.Adapters()[0], h.Adapters()[0])
		s.MustConnect(h.Adapters()[0], s1.Adapters()[0])
		loops := loopcheck.Find(s)
		require.Len(t, loops, 1)
		assert.Equal(t, []string{"H", "S1", "S2"}, loops[0].Devices)
		assert.Equal(t, "H, S1, S2 (3 links)", loops[0].String())
	})

	t.Run("routers break cycles", func(t *testing.T) {
		s := netsim.NewScenario(t.Name())
		s1, s2 := s.MustNewSwitch("S1"), s.MustNewSwitch("S2")
		r := s.MustNewRouter("R", "10.0.0.1/24", "10.0.1.1/24")
		s.MustConnect(s1.Adapters()[0], s2.Adapters()[0])
		s.MustConnect(adapter(t, r, "eth0"), s1.Adapters()[0])
		s.MustConnect(adapter(t, r, "eth1"), s2.Adapters()[0])
		assert.Empty(t, loopcheck.Find(s))
	})
}

func TestFindAgreesWithSimulation(t *testing.T) {
	s := netsim.NewScenario(t.Name())
	a := s.MustNewComputer("A", "10.0.0.2/24", "")
	s1, s2 := s.MustNewSwitch("S1"), s.MustNewSwitch("S2")
	s.MustConnect(a.Adapters()[0], s1.Adapters()[0])
	s.MustConnect(s1.Adapters()[0], s2.Adapters()[0])
	s.MustConnect(s1.Adapters()[0], s2.Adapters()[0])
	require.Error(t, loopcheck.Check(s))

	_, err := a.Ping(addr.MustParseIP("10.0.0.9"))
	var exceed *netsim.PacketExceedError
	assert.ErrorAs(t, err, &exceed)
}

func adapter(t *testing.T, dev *netsim.Device, name string) *netsim.Adapter {
	a, err := dev.Adapter(name)
	require.NoError(t, err)
	return a
}
