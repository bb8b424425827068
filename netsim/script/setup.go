// SPDX-License-Identifier: GPL-3.0-or-later

package script

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/N1tramPH/network-simulator/netsim"
	"github.com/N1tramPH/network-simulator/netsim/censor"
	"github.com/N1tramPH/network-simulator/netsim/dns"
)

var (
	// ErrUnknownFilter indicates an unsupported filter type.
	ErrUnknownFilter = errors.New("unknown filter type")

	// ErrUnknownAction indicates an unsupported action.
	ErrUnknownAction = errors.New("unknown action")

	// ErrNoSuchSocket indicates an action using an undeclared socket.
	ErrNoSuchSocket = errors.New("no such socket")
)

// NewScenario creates a scenario named after the file and sets it up.
func (f *File) NewScenario() (*netsim.Scenario, error) {
	s := netsim.NewScenario(f.Name)
	if err := f.Setup(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Setup applies the settings and creates the devices, the links, the
// DNS servers, and the filters of the file into s.
func (f *File) Setup(s *netsim.Scenario) error {
	if err := f.Validate(); err != nil {
		return err
	}
	f.Settings.Apply(&s.Settings)

	for idx := range f.Devices {
		if _, err := s.NewDevice(&f.Devices[idx]); err != nil {
			return fmt.Errorf("device %s: %w", f.Devices[idx].Name, err)
		}
	}
	for idx, lnk := range f.Links {
		if err := setupLink(s, lnk); err != nil {
			return fmt.Errorf("link #%d: %w", idx, err)
		}
	}
	for _, srv := range f.DNS {
		if _, err := dns.Serve(s.Device(srv.Device), newDatabase(srv.Records, srv.CNAMEs)); err != nil {
			return fmt.Errorf("dns %s: %w", srv.Device, err)
		}
	}
	for idx, flt := range f.Filters {
		filter, err := flt.build()
		if err != nil {
			return fmt.Errorf("filter #%d: %w", idx, err)
		}
		if err := s.Device(flt.Device).AddFilter(filter); err != nil {
			return fmt.Errorf("filter #%d: %w", idx, err)
		}
	}
	return nil
}

func setupLink(s *netsim.Scenario, lnk Link) error {
	var adapters [2]*netsim.Adapter
	for idx, end := range []string{lnk.From, lnk.To} {
		name, adapter, err := splitEnd(end)
		if err != nil {
			return err
		}
		dev := s.Device(name)
		if dev == nil {
			return fmt.Errorf("%w: %s", netsim.ErrNoSuchDevice, name)
		}
		if adapters[idx], err = dev.Adapter(adapter); err != nil {
			return err
		}
	}
	_, err := s.Connect(adapters[0], adapters[1])
	return err
}

func newDatabase(records map[string][]string, cnames map[string]string) *dns.Database {
	db := dns.NewDatabase()
	for name, addrs := range records {
		db.AddAddresses([]string{name}, addrs)
	}
	for name, alias := range cnames {
		db.AddCNAME(name, alias)
	}
	return db
}

// build creates the filter.
func (flt Filter) build() (netsim.Filter, error) {
	switch flt.Type {
	case FilterDNSPoison:
		return censor.NewDNSPoisoner(newDatabase(flt.Records, nil)), nil

	case FilterTCPReset:
		target, err := parseTarget(flt.Target)
		if err != nil {
			return nil, err
		}
		return censor.NewTCPResetter(target, []byte(flt.Pattern)), nil

	case FilterBlackhole:
		target, err := parseTarget(flt.Target)
		if err != nil {
			return nil, err
		}
		return censor.NewBlackholer(flt.Duration, target, []byte(flt.Pattern)), nil

	case FilterDNAT:
		source, err := netip.ParseAddr(flt.Source)
		if err != nil {
			return nil, err
		}
		target, err := netip.ParseAddrPort(flt.Target)
		if err != nil {
			return nil, err
		}
		repl, err := netip.ParseAddrPort(flt.Replacement)
		if err != nil {
			return nil, err
		}
		return censor.NewDNatter(source, target, repl), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFilter, flt.Type)
	}
}

// parseTarget parses an optional "ip:port" target. An empty string
// matches every endpoint.
func parseTarget(s string) (netip.AddrPort, error) {
	if s == "" {
		return netip.AddrPort{}, nil
	}
	return netip.ParseAddrPort(s)
}
