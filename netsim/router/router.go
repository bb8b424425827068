// SPDX-License-Identifier: GPL-3.0-or-later

// Package router provides the routing table of simulated devices.
//
// A [*Table] holds static routes configured by the user and dynamic
// routes synthesized on demand from the subnets of the device's
// interfaces. Queries perform a longest-prefix match.
package router

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/N1tramPH/network-simulator/netsim/addr"
	"github.com/gaissmai/bart"
)

// OnLink is the gateway spelling of the unspecified gateway accepted
// by [*Table.Update].
const OnLink = "On-link"

var (
	// ErrDynamicRoute is returned when removing or updating a route
	// derived from an interface.
	ErrDynamicRoute = errors.New("a dynamic route cannot be modified")

	// ErrNoSuchIface is returned when a route names an unknown interface.
	ErrNoSuchIface = errors.New("no such interface")
)

// Iface is a network interface as seen by the routing table.
type Iface interface {
	// Name returns the interface name, unique per device.
	Name() string

	// IPAddress returns the interface address, if configured.
	IPAddress() (addr.IP, bool)
}

// Route is a row of the routing [*Table].
type Route[I Iface] struct {
	// ID identifies static routes.
	ID string

	// Destination is the destination network.
	Destination addr.IP

	// Gateway is the next hop. The unspecified address means the
	// destination is on-link.
	Gateway addr.IP

	// Iface is the outgoing interface.
	Iface I

	// Metric is the route cost.
	Metric int

	// Dynamic marks routes derived from interface subnets.
	Dynamic bool
}

// RouteRecord is the exported form of a static [Route].
type RouteRecord struct {
	Destination string `yaml:"dstIpAddress" mapstructure:"dstIpAddress"`
	Gateway     string `yaml:"gateway" mapstructure:"gateway"`
	Iface       string `yaml:"iface" mapstructure:"iface"`
	Metric      int    `yaml:"metric" mapstructure:"metric"`
}

// Table is the routing table of a device.
//
// The zero value is not ready to use; construct using [NewTable].
type Table[I Iface] struct {
	ifaces  func() []I
	static  []Route[I]
	counter int
}

// NewTable creates a [*Table] whose dynamic routes follow the
// interfaces returned by ifaces at query time.
func NewTable[I Iface](ifaces func() []I) *Table[I] {
	return &Table[I]{ifaces: ifaces}
}

// DynamicRoutes returns one on-link route per configured interface.
func (t *Table[I]) DynamicRoutes() []Route[I] {
	var out []Route[I]
	for _, iface := range t.ifaces() {
		ip, ok := iface.IPAddress()
		if !ok {
			continue
		}
		out = append(out, Route[I]{
			ID:          "dyn-" + iface.Name(),
			Destination: ip.NetAddress(),
			Gateway:     addr.Unspecified(),
			Iface:       iface,
			Metric:      1,
			Dynamic:     true,
		})
	}
	return out
}

// StaticRoutes returns a copy of the static routes.
func (t *Table[I]) StaticRoutes() []Route[I] {
	return append([]Route[I](nil), t.static...)
}

// Routes returns static and dynamic routes sorted by descending
// netmask length, static first on ties.
func (t *Table[I]) Routes() []Route[I] {
	routes := append(t.StaticRoutes(), t.DynamicRoutes()...)
	slices.SortStableFunc(routes, func(a, b Route[I]) int {
		return cmp.Compare(b.Destination.Bits(), a.Destination.Bits())
	})
	return routes
}

// Query returns the longest-prefix match for dst. An on-link gateway
// is rewritten to dst itself.
func (t *Table[I]) Query(dst addr.IP) (Route[I], bool) {
	routes := t.Routes()
	var trie bart.Table[int]
	for idx, route := range routes {
		pfx := route.Destination.Prefix()
		if _, dup := trie.Get(pfx); dup {
			continue
		}
		trie.Insert(pfx, idx)
	}
	idx, found := trie.Lookup(dst.Addr())
	if !found {
		return Route[I]{}, false
	}
	route := routes[idx]
	if route.Gateway.IsUnspecified() {
		route.Gateway = dst
	}
	return route, true
}

func (t *Table[I]) findIface(name string) (I, error) {
	for _, iface := range t.ifaces() {
		if iface.Name() == name {
			return iface, nil
		}
	}
	var zero I
	return zero, fmt.Errorf("%w: %q", ErrNoSuchIface, name)
}

// Add appends a static route and returns its ID.
func (t *Table[I]) Add(dst, gateway addr.IP, iface I, metric int) string {
	if metric <= 0 {
		metric = 1
	}
	t.counter++
	id := fmt.Sprintf("route-%d", t.counter)
	t.static = append(t.static, Route[I]{
		ID:          id,
		Destination: dst,
		Gateway:     gateway,
		Iface:       iface,
		Metric:      metric,
	})
	return id
}

// AddRecord parses rec and appends it as a static route.
func (t *Table[I]) AddRecord(rec RouteRecord) (string, error) {
	route, err := t.parse(rec)
	if err != nil {
		return "", err
	}
	return t.Add(route.Destination, route.Gateway, route.Iface, route.Metric), nil
}

func (t *Table[I]) parse(rec RouteRecord) (Route[I], error) {
	dst, err := addr.ParseIP(rec.Destination)
	if err != nil {
		return Route[I]{}, err
	}
	gateway := addr.Unspecified()
	if rec.Gateway != OnLink {
		if gateway, err = addr.ParseIP(rec.Gateway); err != nil {
			return Route[I]{}, err
		}
	}
	iface, err := t.findIface(rec.Iface)
	if err != nil {
		return Route[I]{}, err
	}
	return Route[I]{Destination: dst, Gateway: gateway, Iface: iface, Metric: rec.Metric}, nil
}

func (t *Table[I]) indexOf(id string) (int, error) {
	for idx, route := range t.static {
		if route.ID == id {
			return idx, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrDynamicRoute, id)
}

// Remove deletes the static route with the given ID.
func (t *Table[I]) Remove(id string) error {
	idx, err := t.indexOf(id)
	if err != nil {
		return err
	}
	t.static = slices.Delete(t.static, idx, idx+1)
	return nil
}

// Update replaces the static route with the given ID. The gateway
// may be spelled [OnLink].
func (t *Table[I]) Update(id string, rec RouteRecord) error {
	idx, err := t.indexOf(id)
	if err != nil {
		return err
	}
	route, err := t.parse(rec)
	if err != nil {
		return fmt.Errorf("updating route %s: %w", id, err)
	}
	route.ID = id
	if route.Metric <= 0 {
		route.Metric = 1
	}
	t.static[idx] = route
	return nil
}

// Export returns the static routes as plain records.
func (t *Table[I]) Export() []RouteRecord {
	out := make([]RouteRecord, 0, len(t.static))
	for _, route := range t.static {
		out = append(out, RouteRecord{
			Destination: route.Destination.String(),
			Gateway:     route.Gateway.String(),
			Iface:       route.Iface.Name(),
			Metric:      route.Metric,
		})
	}
	return out
}

// Import replaces the static routes. On error the table is unchanged.
func (t *Table[I]) Import(records []RouteRecord) error {
	routes := make([]Route[I], 0, len(records))
	counter := t.counter
	for _, rec := range records {
		route, err := t.parse(rec)
		if err != nil {
			return err
		}
		counter++
		route.ID = fmt.Sprintf("route-%d", counter)
		if route.Metric <= 0 {
			route.Metric = 1
		}
		routes = append(routes, route)
	}
	t.static, t.counter = routes, counter
	return nil
}
