// SPDX-License-Identifier: GPL-3.0-or-later

// Package script loads and runs scenario files.
//
// A scenario file describes the devices, the links, the applications
// (DNS servers), the censorship filters, and a list of actions to
// perform. Files are YAML documents or Lua scripts returning a table
// with the same structure:
//
//	name: lan
//	devices:
//	  - {name: A, type: Computer, adapters: [{name: eth0, ipAddress: 10.0.0.2/24}]}
//	  - {name: B, type: Computer, adapters: [{name: eth0, ipAddress: 10.0.0.3/24}]}
//	links:
//	  - {from: A/eth0, to: B/eth0}
//	actions:
//	  - {do: ping, device: A, target: 10.0.0.3, expect: success}
package script

import (
	"bytes"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"strings"

	"github.com/N1tramPH/network-simulator/netsim"
	"github.com/yuin/gluamapper"
	lua "github.com/yuin/gopher-lua"
	"gopkg.in/yaml.v3"
)

// Settings optionally overrides the simulation settings.
type Settings struct {
	TTL               *int  `yaml:"ttl" mapstructure:"ttl"`
	ImmediateTCPClose *bool `yaml:"immediateTcpClose" mapstructure:"immediateTcpClose"`
	MSS               *int  `yaml:"mss" mapstructure:"mss"`
}

// Apply overrides the fields of s that are set.
func (st Settings) Apply(s *netsim.Settings) {
	if st.TTL != nil {
		s.TTL = uint8(*st.TTL)
	}
	if st.ImmediateTCPClose != nil {
		s.ImmediateTCPClose = *st.ImmediateTCPClose
	}
	if st.MSS != nil {
		s.MSS = *st.MSS
	}
}

// Link connects two adapters named "device/adapter".
type Link struct {
	From string `yaml:"from" mapstructure:"from"`
	To   string `yaml:"to" mapstructure:"to"`
}

// DNSServer runs a DNS server on a device.
type DNSServer struct {
	Device  string              `yaml:"device" mapstructure:"device"`
	Records map[string][]string `yaml:"records" mapstructure:"records"`
	CNAMEs  map[string]string   `yaml:"cnames" mapstructure:"cnames"`
}

// Filter kinds.
const (
	FilterDNSPoison = "dns-poison"
	FilterTCPReset  = "tcp-reset"
	FilterBlackhole = "blackhole"
	FilterDNAT      = "dnat"
)

// Filter installs a censorship filter on a forwarding device.
type Filter struct {
	Device      string              `yaml:"device" mapstructure:"device"`
	Type        string              `yaml:"type" mapstructure:"type"`
	Target      string              `yaml:"target" mapstructure:"target"`
	Pattern     string              `yaml:"pattern" mapstructure:"pattern"`
	Duration    float64             `yaml:"duration" mapstructure:"duration"`
	Source      string              `yaml:"source" mapstructure:"source"`
	Replacement string              `yaml:"replacement" mapstructure:"replacement"`
	Records     map[string][]string `yaml:"records" mapstructure:"records"`
}

// Action kinds.
const (
	ActionPing     = "ping"
	ActionListen   = "listen"
	ActionConnect  = "connect"
	ActionSend     = "send"
	ActionClose    = "close"
	ActionSendTo   = "sendto"
	ActionReceive  = "receive"
	ActionLookup   = "lookup"
	ActionAdvance  = "advance"
	ActionPowerOff = "power-off"
	ActionPowerOn  = "power-on"
)

// Expected outcomes.
const (
	ExpectSuccess = "success"
	ExpectFailure = "failure"
	ExpectError   = "error"
)

// Action is a step of a scenario.
type Action struct {
	// Do is the action kind, e.g. "ping".
	Do string `yaml:"do" mapstructure:"do"`

	// Device is the device performing the action.
	Device string `yaml:"device" mapstructure:"device"`

	// Target is an IP address, a socket address, or a domain name.
	Target string `yaml:"target" mapstructure:"target"`

	// Socket names the socket created or used by the action.
	Socket string `yaml:"socket" mapstructure:"socket"`

	// Protocol is "TCP" or "UDP".
	Protocol string `yaml:"protocol" mapstructure:"protocol"`

	// Port is the listening port.
	Port uint16 `yaml:"port" mapstructure:"port"`

	// Echo makes a UDP server answer datagrams with their payload.
	Echo bool `yaml:"echo" mapstructure:"echo"`

	// Data is the application payload.
	Data string `yaml:"data" mapstructure:"data"`

	// Size is the payload size when Data is empty.
	Size int `yaml:"size" mapstructure:"size"`

	// Server is the DNS server address of a lookup.
	Server string `yaml:"server" mapstructure:"server"`

	// Seconds is the virtual time to advance.
	Seconds float64 `yaml:"seconds" mapstructure:"seconds"`

	// Expect optionally checks the outcome: "success", "failure", or "error".
	Expect string `yaml:"expect" mapstructure:"expect"`
}

// File is a scenario file.
type File struct {
	Name     string                `yaml:"name" mapstructure:"name"`
	Settings Settings              `yaml:"settings" mapstructure:"settings"`
	Devices  []netsim.DeviceConfig `yaml:"devices" mapstructure:"devices"`
	Links    []Link                `yaml:"links" mapstructure:"links"`
	DNS      []DNSServer           `yaml:"dns" mapstructure:"dns"`
	Filters  []Filter              `yaml:"filters" mapstructure:"filters"`
	Actions  []Action              `yaml:"actions" mapstructure:"actions"`
}

// Load reads a scenario file. Files ending in ".lua" are Lua scripts;
// any other file is YAML.
func Load(path string) (*File, error) {
	if strings.EqualFold(filepath.Ext(path), ".lua") {
		return LoadLua(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse parses a YAML scenario. Unknown fields are errors.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

// ErrNotATable indicates a Lua script not returning a table.
var ErrNotATable = errors.New("the lua script did not return a table")

// LoadLua runs a Lua script and maps the table it returns.
func LoadLua(path string) (*File, error) {
	L := lua.NewState()
	defer L.Close()
	if err := L.DoFile(path); err != nil {
		return nil, err
	}
	return fromLua(L)
}

// ParseLua runs Lua source code and maps the table it returns.
func ParseLua(source string) (*File, error) {
	L := lua.NewState()
	defer L.Close()
	if err := L.DoString(source); err != nil {
		return nil, err
	}
	return fromLua(L)
}

func fromLua(L *lua.LState) (*File, error) {
	table, ok := L.Get(-1).(*lua.LTable)
	if !ok {
		return nil, ErrNotATable
	}
	mapper := gluamapper.NewMapper(gluamapper.Option{
		NameFunc:    gluamapper.Id,
		ErrorUnused: true,
		TagName:     "mapstructure",
	})
	var f File
	if err := mapper.Map(table, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

var actionKinds = []string{
	ActionPing, ActionListen, ActionConnect, ActionSend, ActionClose, ActionSendTo,
	ActionReceive, ActionLookup, ActionAdvance, ActionPowerOff, ActionPowerOn,
}

var filterKinds = []string{FilterDNSPoison, FilterTCPReset, FilterBlackhole, FilterDNAT}

// Validate returns the static errors of the file, such as references
// to undeclared devices.
func (f *File) Validate() error {
	var errv []error
	devices := make(map[string]bool)
	for _, dc := range f.Devices {
		if devices[dc.Name] {
			errv = append(errv, fmt.Errorf("%w: %s", netsim.ErrDeviceNameInUse, dc.Name))
		}
		devices[dc.Name] = true
	}
	known := func(where, name string) {
		if !devices[name] {
			errv = append(errv, fmt.Errorf("%s: %w: %q", where, netsim.ErrNoSuchDevice, name))
		}
	}

	for idx, lnk := range f.Links {
		for _, end := range []string{lnk.From, lnk.To} {
			dev, _, err := splitEnd(end)
			if err != nil {
				errv = append(errv, fmt.Errorf("link #%d: %w", idx, err))
				continue
			}
			known(fmt.Sprintf("link #%d", idx), dev)
		}
	}
	for idx, srv := range f.DNS {
		known(fmt.Sprintf("dns #%d", idx), srv.Device)
		errv = append(errv, checkRecords(fmt.Sprintf("dns #%d", idx), srv.Records)...)
	}
	for idx, flt := range f.Filters {
		known(fmt.Sprintf("filter #%d", idx), flt.Device)
		errv = append(errv, checkRecords(fmt.Sprintf("filter #%d", idx), flt.Records)...)
		if !contains(filterKinds, flt.Type) {
			errv = append(errv, fmt.Errorf("filter #%d: %w: %q", idx, ErrUnknownFilter, flt.Type))
		}
	}

	sockets := make(map[string]bool)
	for idx, act := range f.Actions {
		where := fmt.Sprintf("action #%d (%s)", idx, act.Do)
		if !contains(actionKinds, act.Do) {
			errv = append(errv, fmt.Errorf("action #%d: %w: %q", idx, ErrUnknownAction, act.Do))
			continue
		}
		switch act.Do {
		case ActionAdvance:
		case ActionSend, ActionClose, ActionReceive:
			if !sockets[act.Socket] {
				errv = append(errv, fmt.Errorf("%s: %w: %q", where, ErrNoSuchSocket, act.Socket))
			}
		default:
			known(where, act.Device)
		}
		if act.Socket != "" {
			sockets[act.Socket] = true
		}
		switch act.Expect {
		case "", ExpectSuccess, ExpectFailure, ExpectError:
		default:
			errv = append(errv, fmt.Errorf("%s: invalid expectation %q", where, act.Expect))
		}
	}
	return errors.Join(errv...)
}

// ErrInvalidRecord indicates a DNS record not holding an IPv4 address.
var ErrInvalidRecord = errors.New("invalid IPv4 address record")

func checkRecords(where string, records map[string][]string) (errv []error) {
	for name, addrs := range records {
		for _, value := range addrs {
			if a, err := netip.ParseAddr(value); err != nil || !a.Is4() {
				errv = append(errv, fmt.Errorf("%s: %s: %w: %q", where, name, ErrInvalidRecord, value))
			}
		}
	}
	return
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// ErrInvalidLinkEnd indicates a link end not formatted as "device/adapter".
var ErrInvalidLinkEnd = errors.New("link ends must be formatted as device/adapter")

// splitEnd splits "device/adapter". Device names may contain slashes.
func splitEnd(end string) (string, string, error) {
	idx := strings.LastIndex(end, "/")
	if idx <= 0 || idx == len(end)-1 {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidLinkEnd, end)
	}
	return end[:idx], end[idx+1:], nil
}
