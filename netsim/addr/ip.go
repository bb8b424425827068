// SPDX-License-Identifier: GPL-3.0-or-later

package addr

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/N1tramPH/network-simulator/netipx"
	"github.com/rbmk-project/common/runtimex"
)

// IP is an immutable IPv4 address plus a netmask length in [0, 32].
//
// The zero value is the unspecified wildcard 0.0.0.0/0.
type IP struct {
	addr netip.Addr
	bits int
}

// Unspecified returns the 0.0.0.0/0 wildcard.
func Unspecified() IP {
	return IP{addr: netip.IPv4Unspecified(), bits: 0}
}

// NewIP builds an [IP] from an IPv4 [netip.Addr] and a netmask length.
func NewIP(a netip.Addr, bits int) (IP, error) {
	a = a.Unmap()
	if !a.Is4() {
		return IP{}, fmt.Errorf("%w: %s is not IPv4", ErrInvalidIP, a)
	}
	if bits < 0 || bits > 32 {
		return IP{}, fmt.Errorf("%w: netmask length must range between 0-32", ErrInvalidIP)
	}
	return IP{addr: a, bits: bits}, nil
}

// IPFromUint32 builds an [IP] from its numeric value.
func IPFromUint32(value uint32, bits int) IP {
	if bits < 0 {
		bits = 0
	}
	if bits > 32 {
		bits = 32
	}
	return IP{addr: netipx.Uint32ToAddr(value), bits: bits}
}

// ParseIP parses "a.b.c.d" or "a.b.c.d/n". A missing netmask length
// means /32. An empty string yields the unspecified wildcard.
func ParseIP(s string) (IP, error) {
	if s == "" {
		return Unspecified(), nil
	}
	host, mask, hasMask := strings.Cut(s, "/")
	bits := 32
	if hasMask {
		v, err := strconv.Atoi(mask)
		if err != nil || v < 0 || v > 32 {
			return IP{}, fmt.Errorf("%w: netmask length must range between 0-32: %q", ErrInvalidIP, s)
		}
		bits = v
	}
	a, err := netip.ParseAddr(host)
	if err != nil || !a.Is4() {
		return IP{}, fmt.Errorf("%w: %q", ErrInvalidIP, s)
	}
	return IP{addr: a, bits: bits}, nil
}

// MustParseIP is like [ParseIP] but panics on error.
func MustParseIP(s string) IP {
	return runtimex.Try1(ParseIP(s))
}

// Addr returns the address without netmask.
func (ip IP) Addr() netip.Addr {
	if !ip.addr.IsValid() {
		return netip.IPv4Unspecified()
	}
	return ip.addr
}

// Bits returns the netmask length.
func (ip IP) Bits() int {
	return ip.bits
}

// WithAddr returns a copy using the given IPv4 address and the same
// netmask length. Non IPv4 addresses yield the receiver unchanged.
func (ip IP) WithAddr(a netip.Addr) IP {
	if next, err := NewIP(a, ip.bits); err == nil {
		return next
	}
	return ip
}

// WithBits returns a copy using the given netmask length.
func (ip IP) WithBits(bits int) IP {
	return IPFromUint32(ip.Uint32(), bits)
}

// Uint32 returns the numeric value of the address.
func (ip IP) Uint32() uint32 {
	return netipx.AddrToUint32(ip.Addr())
}

// Netmask returns the netmask as a numeric value.
func (ip IP) Netmask() uint32 {
	return netipx.Netmask(ip.bits)
}

// NetAddress returns the network address with the same netmask length.
func (ip IP) NetAddress() IP {
	return IPFromUint32(ip.Uint32()&ip.Netmask(), ip.bits)
}

// Prefix returns the masked [netip.Prefix] of the address.
func (ip IP) Prefix() netip.Prefix {
	return netip.PrefixFrom(ip.Addr(), ip.bits).Masked()
}

// IsUnspecified reports whether this is the 0.0.0.0/0 wildcard.
func (ip IP) IsUnspecified() bool {
	return ip.Uint32() == 0 && ip.bits == 0
}

// IsZeroAddr reports whether the address part is 0.0.0.0,
// regardless of the netmask length.
func (ip IP) IsZeroAddr() bool {
	return ip.Uint32() == 0
}

// Equal compares the addresses, ignoring netmask lengths.
func (ip IP) Equal(other IP) bool {
	return ip.Uint32() == other.Uint32()
}

// EqualUnder compares both addresses after applying a netmask of the
// given length to each of them.
func (ip IP) EqualUnder(other IP, bits int) bool {
	mask := netipx.Netmask(bits)
	return ip.Uint32()&mask == other.Uint32()&mask
}

// String returns the CIDR representation, e.g. 192.168.1.1/24.
func (ip IP) String() string {
	return fmt.Sprintf("%s/%d", ip.Addr(), ip.bits)
}

// HostString returns the address without the netmask length.
func (ip IP) HostString() string {
	return ip.Addr().String()
}
