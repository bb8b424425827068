// SPDX-License-Identifier: GPL-3.0-or-later

// Package netipx contains [net/netip] extensions for IPv4 arithmetic.
package netipx

import (
	"encoding/binary"
	"net/netip"
)

// AddrToUint32 converts an IPv4 [netip.Addr] to its numeric value.
//
// If the input is not an IPv4 (or IPv4-mapped IPv6) address, returns zero.
func AddrToUint32(addr netip.Addr) uint32 {
	addr = addr.Unmap()
	if !addr.Is4() {
		return 0
	}
	b := addr.As4()
	return binary.BigEndian.Uint32(b[:])
}

// Uint32ToAddr is the inverse of [AddrToUint32].
func Uint32ToAddr(value uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], value)
	return netip.AddrFrom4(b)
}

// Netmask returns the IPv4 netmask with the given number of leading
// one bits. Lengths outside [0, 32] are clamped.
func Netmask(bits int) uint32 {
	switch {
	case bits <= 0:
		return 0
	case bits >= 32:
		return 0xffffffff
	default:
		return ^uint32(0) << uint(32-bits)
	}
}

// NetmaskAddr is like [Netmask] but returns a dotted [netip.Addr].
func NetmaskAddr(bits int) netip.Addr {
	return Uint32ToAddr(Netmask(bits))
}

// Masked returns addr with the host bits beyond bits cleared.
func Masked(addr netip.Addr, bits int) netip.Addr {
	return Uint32ToAddr(AddrToUint32(addr) & Netmask(bits))
}
