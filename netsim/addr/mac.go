// SPDX-License-Identifier: GPL-3.0-or-later

// Package addr contains the simulator's address value types: [MAC],
// [IP] (an IPv4 address carrying a netmask length), and [SocketAddr].
package addr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rbmk-project/common/runtimex"
)

// MACLen is the number of bytes in a [MAC].
const MACLen = 6

var (
	// ErrInvalidMAC indicates a malformed MAC address string.
	ErrInvalidMAC = errors.New("invalid MAC address format")

	// ErrInvalidIP indicates a malformed IPv4 address or netmask.
	ErrInvalidIP = errors.New("invalid IP address format")

	// ErrInvalidSocketAddr indicates a malformed ip:port string.
	ErrInvalidSocketAddr = errors.New("invalid socket address format")
)

// MAC is an immutable link-layer address.
type MAC [MACLen]byte

// Broadcast returns the all-ones broadcast [MAC].
func Broadcast() MAC {
	return MAC{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
}

// ByteSource returns random bytes. [*rngstream.RngStream] is
// adapted to it by the simulator.
type ByteSource interface {
	RandomByte() byte
}

// RandomMAC returns a locally administered unicast [MAC] with a fixed
// 02:00:00 prefix and three bytes drawn from src.
func RandomMAC(src ByteSource) MAC {
	return MAC{0x02, 0x00, 0x00, src.RandomByte(), src.RandomByte(), src.RandomByte()}
}

// ParseMAC parses a MAC address written as six hex bytes separated by
// ':' or '-'. Shorter inputs are padded with zero bytes on the right.
func ParseMAC(s string) (MAC, error) {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ':' || r == '-' })
	if len(parts) == 0 || len(parts) > MACLen {
		return MAC{}, fmt.Errorf("%w: %q", ErrInvalidMAC, s)
	}
	var mac MAC
	for idx, part := range parts {
		v, err := strconv.ParseUint(part, 16, 8)
		if err != nil {
			return MAC{}, fmt.Errorf("%w: %q", ErrInvalidMAC, s)
		}
		mac[idx] = byte(v)
	}
	return mac, nil
}

// MustParseMAC is like [ParseMAC] but panics on error.
func MustParseMAC(s string) MAC {
	return runtimex.Try1(ParseMAC(s))
}

// MACFromUint64 builds a [MAC] from the low 48 bits of value.
func MACFromUint64(value uint64) MAC {
	var mac MAC
	for idx := MACLen - 1; idx >= 0; idx-- {
		mac[idx] = byte(value)
		value >>= 8
	}
	return mac
}

// Uint64 returns the numeric value of the address.
func (m MAC) Uint64() uint64 {
	var value uint64
	for _, b := range m {
		value = (value << 8) | uint64(b)
	}
	return value
}

// IsBroadcast reports whether all bits are set.
func (m MAC) IsBroadcast() bool {
	return m == Broadcast()
}

// IsZero reports whether the address is unset.
func (m MAC) IsZero() bool {
	return m == MAC{}
}

// Equal compares two addresses. A broadcast address on either side is
// a wildcard and matches anything. Use == for strict identity.
func (m MAC) Equal(other MAC) bool {
	return m.IsBroadcast() || other.IsBroadcast() || m == other
}

// String returns the canonical aa:bb:cc:dd:ee:ff representation.
func (m MAC) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}
