//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Simulation scenario.
//

package netsim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"
	"github.com/iti/rngstream"
	"github.com/rbmk-project/common/runtimex"
)

// Settings contains the simulation-wide protocol settings.
type Settings struct {
	// TTL is the time to live of the IP packets sent by devices.
	TTL uint8

	// ImmediateTCPClose makes a socket receiving a FIN close its side
	// of the connection within the same segment, even when unsent
	// data remains. Otherwise the socket waits in CLOSE-WAIT until
	// its send buffer drains.
	ImmediateTCPClose bool

	// MSS is the size of the TCP segments payload. Zero means random
	// sizes between 100 and 2000 bytes in steps of 100.
	MSS int
}

// DefaultSettings returns the default [Settings].
func DefaultSettings() Settings {
	return Settings{TTL: 64, ImmediateTCPClose: true}
}

// ErrDeviceNameInUse indicates adding a device with a duplicate name.
var ErrDeviceNameInUse = errors.New("device name already in use")

// ErrNoSuchDevice indicates a lookup of an unknown device.
var ErrNoSuchDevice = errors.New("no such device")

// randSource adapts [*rngstream.RngStream] to the simulator.
type randSource struct {
	*rngstream.RngStream
}

// RandomByte implements [addr.ByteSource].
func (r randSource) RandomByte() byte {
	return byte(r.RandInt(0, 255))
}

// Scenario owns the devices and links of a simulated network.
//
// All the actions run synchronously on the calling goroutine: the
// packets caused by an action are all produced when it returns. The
// virtual clock only drives deferred housekeeping such as closing
// sockets in TIME-WAIT; advance it with [*Scenario.Advance].
//
// Construct using [NewScenario].
//
// A Scenario IS NOT goroutine safe.
type Scenario struct {
	// Settings contains the protocol settings.
	Settings Settings

	// ISNFunc optionally overrides the random initial sequence numbers.
	ISNFunc func(sock *Socket) uint32

	// Logger is the optional logger. A nil value disables logging.
	Logger *slog.Logger

	clock    float64
	counters map[string]int
	devices  []*Device
	evtMgr   *evtm.EventManager
	links    []*Link
	name     string
	rand     randSource
}

// NewScenario creates an empty scenario. The name seeds the random
// stream, so scenarios with the same name and the same actions
// produce the same traces.
func NewScenario(name string) *Scenario {
	return &Scenario{
		Settings: DefaultSettings(),
		counters: make(map[string]int),
		evtMgr:   evtm.New(),
		name:     name,
		rand:     randSource{rngstream.New(name)},
	}
}

// Name returns the scenario name.
func (s *Scenario) Name() string {
	return s.name
}

// nextID returns a new identifier with the given prefix.
func (s *Scenario) nextID(prefix string) string {
	s.counters[prefix]++
	return fmt.Sprintf("%s-%d", prefix, s.counters[prefix])
}

// isn returns the initial sequence number of a socket.
func (s *Scenario) isn(sock *Socket) uint32 {
	if s.ISNFunc != nil {
		return s.ISNFunc(sock)
	}
	return uint32(s.rand.RandInt(10, 50)) * 100
}

// chunkSize returns the payload size of the next TCP segment.
func (s *Scenario) chunkSize() int {
	if s.Settings.MSS > 0 {
		return s.Settings.MSS
	}
	return s.rand.RandInt(1, 20) * 100
}

// AddDevice creates a device of the given kind.
func (s *Scenario) AddDevice(kind Kind, name string) (*Device, error) {
	if kind < Hub || kind > Computer {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
	}
	if s.Device(name) != nil {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNameInUse, name)
	}
	dev := newDevice(s, kind, name)
	s.devices = append(s.devices, dev)
	return dev, nil
}

// MustAddDevice is like [*Scenario.AddDevice] but panics on error.
func (s *Scenario) MustAddDevice(kind Kind, name string) *Device {
	return runtimex.Try1(s.AddDevice(kind, name))
}

// RemoveDevice removes a device and destroys its links.
func (s *Scenario) RemoveDevice(name string) error {
	idx := slices.IndexFunc(s.devices, func(d *Device) bool { return d.name == name })
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNoSuchDevice, name)
	}
	dev := s.devices[idx]
	for _, a := range dev.Adapters() {
		runtimex.Try0(dev.RemoveAdapter(a.name))
	}
	s.devices = slices.Delete(s.devices, idx, idx+1)
	return nil
}

// Device returns the device with the given name, or nil.
func (s *Scenario) Device(name string) *Device {
	for _, dev := range s.devices {
		if dev.name == name {
			return dev
		}
	}
	return nil
}

// Devices returns the devices in creation order.
func (s *Scenario) Devices() []*Device {
	return slices.Clone(s.devices)
}

// Connect links the first free ports of two adapters.
func (s *Scenario) Connect(a, b *Adapter) (*Link, error) {
	left, right := a.FreePort(), b.FreePort()
	if left == nil || right == nil {
		return nil, fmt.Errorf("%w: %s <--> %s", ErrNoFreePort, a, b)
	}
	return s.ConnectPorts(left, right)
}

// MustConnect is like [*Scenario.Connect] but panics on error.
func (s *Scenario) MustConnect(a, b *Adapter) *Link {
	return runtimex.Try1(s.Connect(a, b))
}

// ConnectPorts links two free ports.
func (s *Scenario) ConnectPorts(left, right *Port) (*Link, error) {
	lnk, err := newLink(s.nextID("link"), left, right)
	if err != nil {
		return nil, err
	}
	s.links = append(s.links, lnk)
	if s.Logger != nil {
		s.Logger.DebugContext(context.Background(), "linkCreated",
			slog.String("link", lnk.String()),
			slog.String("linkID", lnk.id),
		)
	}
	return lnk, nil
}

// Links returns the links in creation order.
func (s *Scenario) Links() []*Link {
	return slices.Clone(s.links)
}

// RemoveLink unplugs and forgets a link.
func (s *Scenario) RemoveLink(lnk *Link) {
	idx := slices.Index(s.links, lnk)
	if idx < 0 {
		return
	}
	lnk.destroy()
	s.links = slices.Delete(s.links, idx, idx+1)
	if s.Logger != nil {
		s.Logger.DebugContext(context.Background(), "linkRemoved",
			slog.String("linkID", lnk.id),
		)
	}
}

// schedule runs fn after delay seconds of virtual time.
//
// The event manager clock only moves when events fire, so the offset
// is relative to the scenario clock.
func (s *Scenario) schedule(delay float64, fn func()) {
	offset := s.clock - s.evtMgr.CurrentSeconds() + delay
	s.evtMgr.Schedule(s, nil, func(*evtm.EventManager, any, any) any {
		fn()
		return nil
	}, vrtime.SecondsToTime(offset))
}

// Now returns the virtual time in seconds.
func (s *Scenario) Now() float64 {
	return s.clock
}

// Advance moves the virtual clock forward, running the deferred
// events that become due.
func (s *Scenario) Advance(seconds float64) {
	if seconds <= 0 {
		return
	}
	s.clock += seconds
	s.evtMgr.Run(s.clock)
}
