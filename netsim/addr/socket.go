// SPDX-License-Identifier: GPL-3.0-or-later

package addr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rbmk-project/common/runtimex"
)

// MaxPort is the largest valid port number.
const MaxPort = 1<<16 - 1

// SocketAddr is an IP address and a port. AnyPort marks the "*"
// wildcard port, which matches every port.
type SocketAddr struct {
	IP      IP
	Port    uint16
	AnyPort bool
}

// NewSocketAddr builds a [SocketAddr] with a concrete port.
func NewSocketAddr(ip IP, port uint16) SocketAddr {
	return SocketAddr{IP: ip, Port: port}
}

// WildcardSocketAddr returns 0.0.0.0/0:*.
func WildcardSocketAddr() SocketAddr {
	return SocketAddr{IP: Unspecified(), AnyPort: true}
}

// ParsePort parses a port number or the "*" wildcard.
func ParsePort(s string) (port uint16, wildcard bool, err error) {
	if s == "*" {
		return 0, true, nil
	}
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, false, fmt.Errorf("%w: invalid port number %q", ErrInvalidSocketAddr, s)
	}
	return uint16(v), false, nil
}

// ParseSocketAddr parses "ip:port", "ip/n:port", or "ip:*".
func ParseSocketAddr(s string) (SocketAddr, error) {
	idx := strings.LastIndexByte(s, ':')
	if idx < 0 {
		return SocketAddr{}, fmt.Errorf("%w: %q", ErrInvalidSocketAddr, s)
	}
	ip, err := ParseIP(s[:idx])
	if err != nil {
		return SocketAddr{}, fmt.Errorf("%w: %w", ErrInvalidSocketAddr, err)
	}
	port, wildcard, err := ParsePort(s[idx+1:])
	if err != nil {
		return SocketAddr{}, err
	}
	return SocketAddr{IP: ip, Port: port, AnyPort: wildcard}, nil
}

// MustParseSocketAddr is like [ParseSocketAddr] but panics on error.
func MustParseSocketAddr(s string) SocketAddr {
	return runtimex.Try1(ParseSocketAddr(s))
}

// PortMatches compares ports, honouring the "*" wildcard on both sides.
func (sa SocketAddr) PortMatches(port uint16) bool {
	return sa.AnyPort || sa.Port == port
}

// Equal compares addresses (netmask ignored) and ports (wildcards match).
func (sa SocketAddr) Equal(other SocketAddr) bool {
	if !sa.IP.Equal(other.IP) {
		return false
	}
	return sa.AnyPort || other.AnyPort || sa.Port == other.Port
}

// PortString renders the port or "*".
func (sa SocketAddr) PortString() string {
	if sa.AnyPort {
		return "*"
	}
	return strconv.Itoa(int(sa.Port))
}

// String returns ip:port without the netmask length.
func (sa SocketAddr) String() string {
	return sa.IP.HostString() + ":" + sa.PortString()
}
