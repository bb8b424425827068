// SPDX-License-Identifier: GPL-3.0-or-later

package netipx_test

import (
	"net/netip"
	"testing"

	"github.com/N1tramPH/network-simulator/netipx"
	"github.com/stretchr/testify/assert"
)

func TestAddrToUint32(t *testing.T) {
	tests := []struct {
		name string
		addr netip.Addr
		want uint32
	}{
		{
			name: "IPv4 address",
			addr: netip.MustParseAddr("192.168.1.1"),
			want: 0xc0a80101,
		},

		{
			name: "IPv4-mapped IPv6 address",
			addr: netip.MustParseAddr("::ffff:10.0.0.1"),
			want: 0x0a000001,
		},

		{
			name: "IPv6 address",
			addr: netip.MustParseAddr("2001:db8::1"),
			want: 0,
		},

		{
			name: "zero value",
			addr: netip.Addr{},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := netipx.AddrToUint32(tt.addr)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUint32ToAddr(t *testing.T) {
	assert.Equal(t, netip.MustParseAddr("10.0.1.5"), netipx.Uint32ToAddr(0x0a000105))
}

func TestNetmask(t *testing.T) {
	tests := []struct {
		bits int
		want string
	}{
		{-1, "0.0.0.0"},
		{0, "0.0.0.0"},
		{8, "255.0.0.0"},
		{20, "255.255.240.0"},
		{32, "255.255.255.255"},
		{40, "255.255.255.255"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, netipx.NetmaskAddr(tt.bits).String())
	}
}

func TestMasked(t *testing.T) {
	got := netipx.Masked(netip.MustParseAddr("192.168.77.130"), 25)
	assert.Equal(t, netip.MustParseAddr("192.168.77.128"), got)
}
