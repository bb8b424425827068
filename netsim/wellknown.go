//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Builders for common device configurations used in
// simulation scenarios and tests.
//

package netsim

import "fmt"

// adapterName returns the conventional name of the idx-th adapter.
func adapterName(idx int) string {
	return fmt.Sprintf("eth%d", idx)
}

// MustNewComputer creates a computer with a single adapter named eth0
// using the given IP address in CIDR notation, e.g. "10.0.0.2/24".
//
// The gateway is optional: when not empty, it becomes the default route.
func (s *Scenario) MustNewComputer(name, ip, gateway string) *Device {
	return s.MustNewDevice(&DeviceConfig{
		Kind:     Computer.String(),
		Name:     name,
		Adapters: []AdapterConfig{{Name: adapterName(0), IP: ip}},
		Gateway:  gateway,
	})
}

// MustNewRouter creates a router with one adapter per IP address,
// named eth0, eth1, and so on.
func (s *Scenario) MustNewRouter(name string, ips ...string) *Device {
	cfg := &DeviceConfig{Kind: Router.String(), Name: name}
	for idx, ip := range ips {
		cfg.Adapters = append(cfg.Adapters, AdapterConfig{Name: adapterName(idx), IP: ip})
	}
	return s.MustNewDevice(cfg)
}

// MustNewSwitch creates a switch with a single six-port adapter named eth0.
func (s *Scenario) MustNewSwitch(name string) *Device {
	return s.mustNewSegment(Switch, name)
}

// MustNewHub creates a hub with a single six-port adapter named eth0.
func (s *Scenario) MustNewHub(name string) *Device {
	return s.mustNewSegment(Hub, name)
}

func (s *Scenario) mustNewSegment(kind Kind, name string) *Device {
	return s.MustNewDevice(&DeviceConfig{
		Kind:     kind.String(),
		Name:     name,
		Adapters: []AdapterConfig{{Name: adapterName(0)}},
	})
}

// MustNewClientComputer creates a computer simulating a client
// attached to the given gateway.
//
// We use GARR's (Italian Research & Education Network) public address
// 193.206.158.22 as the client address. It is chosen over documentation
// ranges (like 192.0.2.0/24) so that scenarios look like the public
// internet, while still being associated with a research institution.
func (s *Scenario) MustNewClientComputer(name, gateway string) *Device {
	return s.MustNewComputer(name, "193.206.158.22/24", gateway)
}

// MustNewGoogleDNSComputer creates a computer using the dns.google
// address 8.8.8.8 attached to the given gateway.
func (s *Scenario) MustNewGoogleDNSComputer(gateway string) *Device {
	return s.MustNewComputer("dns.google", "8.8.8.8/24", gateway)
}

// MustNewExampleComComputer creates a computer using the
// www.example.com address 93.184.216.34 attached to the given gateway.
func (s *Scenario) MustNewExampleComComputer(gateway string) *Device {
	return s.MustNewComputer("www.example.com", "93.184.216.34/24", gateway)
}
