// SPDX-License-Identifier: GPL-3.0-or-later

package trace_test

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/N1tramPH/network-simulator/netsim"
	"github.com/N1tramPH/network-simulator/netsim/addr"
	"github.com/N1tramPH/network-simulator/netsim/trace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	s := netsim.NewScenario(t.Name())
	a := s.MustNewComputer("A", "10.0.0.2/24", "")
	b := s.MustNewComputer("B", "10.0.0.3/24", "")
	s.MustConnect(a.Adapters()[0], b.Adapters()[0])
	pkt, err := a.Ping(addr.MustParseIP("10.0.0.3"))
	require.NoError(t, err)

	t.Run("labels", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, trace.Render(&buf, pkt, trace.Options{}))
		assert.Contains(t, buf.String(), "["+pkt.Label()+"] ICMP (Echo request) A -> B\n")
		assert.Contains(t, buf.String(), "    - Who has an IP 10.0.0.3?\n")
		assert.True(t, strings.HasSuffix(buf.String(), "=> Reply received\n"))
	})

	t.Run("breadth first", func(t *testing.T) {
		var depth, breadth bytes.Buffer
		require.NoError(t, trace.Render(&depth, pkt, trace.Options{HideLabels: true}))
		require.NoError(t, trace.Render(&breadth, pkt, trace.Options{Breadth: true, HideLabels: true}))
		assert.Equal(t, lines(depth.String()), lines(breadth.String()))
		assert.True(t, strings.HasPrefix(depth.String(), "ARP request A -> B\n"))
	})

	t.Run("color", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, trace.Render(&buf, pkt, trace.Options{Color: true, HideLabels: true}))
		assert.Contains(t, buf.String(), "Echo reply")
	})
}

func TestRenderStateChanges(t *testing.T) {
	s := netsim.NewScenario(t.Name())
	a := s.MustNewComputer("A", "10.0.0.2/24", "")
	b := s.MustNewComputer("B", "10.0.0.3/24", "")
	s.MustConnect(a.Adapters()[0], b.Adapters()[0])
	_, err := b.Listen(netsim.TCP, 80)
	require.NoError(t, err)
	_, pkt, err := a.Dial(addr.MustParseSocketAddr("10.0.0.3:80"))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, trace.Render(&buf, pkt, trace.Options{HideLabels: true}))
	assert.Contains(t, buf.String(), "    - TCP state: CLOSED -> SYN-SENT\n")
	assert.Contains(t, buf.String(), "    - TCP state: SYN-SENT -> ESTABLISHED\n")
	assert.True(t, strings.HasSuffix(buf.String(), "=> Connection established\n"))
}

// lines returns the sorted set of packet lines of a rendering.
func lines(s string) map[string]int {
	out := make(map[string]int)
	for _, l := range strings.Split(s, "\n") {
		if l != "" && !strings.HasPrefix(l, " ") {
			out[l]++
		}
	}
	return out
}

func Example() {
	s := netsim.NewScenario("example")
	a := s.MustNewComputer("A", "10.0.0.2/24", "")
	pkt, err := a.Ping(addr.MustParseIP("10.0.0.2"))
	if err != nil {
		return
	}
	trace.Render(os.Stdout, pkt, trace.Options{HideLabels: true})

	// Output:
	// ICMP (Echo request) A -> A (not transmitted)
	//     - Responding...
	// ICMP (Echo reply) A -> A (not transmitted)
	//     - Reply received
	// => Reply received
}
