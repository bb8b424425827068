//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Declarative device setup.
//

package netsim

import (
	"errors"
	"fmt"

	"github.com/N1tramPH/network-simulator/netsim/addr"
	"github.com/N1tramPH/network-simulator/netsim/router"
	"github.com/rbmk-project/common/runtimex"
)

// AdapterConfig contains the configuration of a network adapter.
type AdapterConfig struct {
	// Name is the adapter name, unique per device.
	Name string `yaml:"name" mapstructure:"name"`

	// MAC is the optional MAC address. A random one is used if empty.
	MAC string `yaml:"macAddress" mapstructure:"macAddress"`

	// IP is the optional IP address in CIDR notation, e.g. 10.0.0.1/24.
	IP string `yaml:"ipAddress" mapstructure:"ipAddress"`
}

// DeviceConfig contains the configuration for creating a new device.
type DeviceConfig struct {
	// Kind is the device kind, e.g. "Computer".
	Kind string `yaml:"type" mapstructure:"type"`

	// Name is the device name, unique per scenario.
	Name string `yaml:"name" mapstructure:"name"`

	// Adapters contains the adapters to create.
	Adapters []AdapterConfig `yaml:"adapters" mapstructure:"adapters"`

	// Routes contains the optional static routes.
	Routes []router.RouteRecord `yaml:"routes" mapstructure:"routes"`

	// Gateway optionally adds a default route through the first adapter.
	Gateway string `yaml:"gateway" mapstructure:"gateway"`
}

// validate returns an error if the configuration is not valid.
func (cfg *DeviceConfig) validate() error {
	var errv []error
	if cfg.Name == "" {
		errv = append(errv, errors.New("the device name is required"))
	}
	kind, err := ParseKind(cfg.Kind)
	if err != nil {
		errv = append(errv, err)
	}
	if len(cfg.Adapters) > MaxAdapters {
		errv = append(errv, fmt.Errorf("%w: %d adapters", ErrTooManyAdapters, len(cfg.Adapters)))
	}
	for _, ac := range cfg.Adapters {
		if ac.Name == "" {
			errv = append(errv, errors.New("the adapter name is required"))
		}
		if ac.IP != "" && err == nil && !kind.Layers().Has(L3) {
			errv = append(errv, fmt.Errorf("%w: adapter %s of %s", ErrNotL3, ac.Name, cfg.Name))
		}
	}
	if (cfg.Gateway != "" || len(cfg.Routes) > 0) && err == nil && !kind.Layers().Has(L3) {
		errv = append(errv, fmt.Errorf("%w: routes of %s", ErrNotL3, cfg.Name))
	}
	return errors.Join(errv...)
}

// NewDevice creates a new device using the given configuration.
func (s *Scenario) NewDevice(cfg *DeviceConfig) (*Device, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	kind := runtimex.Try1(ParseKind(cfg.Kind))

	adapters := make([]struct {
		mac addr.MAC
		ip  addr.IP
	}, len(cfg.Adapters))
	for idx, ac := range cfg.Adapters {
		if ac.MAC != "" {
			mac, err := addr.ParseMAC(ac.MAC)
			if err != nil {
				return nil, err
			}
			adapters[idx].mac = mac
		}
		ip, err := addr.ParseIP(ac.IP)
		if err != nil {
			return nil, err
		}
		adapters[idx].ip = ip
	}

	dev, err := s.AddDevice(kind, cfg.Name)
	if err != nil {
		return nil, err
	}
	for idx, ac := range cfg.Adapters {
		if _, err := dev.AddAdapter(ac.Name, adapters[idx].mac, adapters[idx].ip); err != nil {
			return nil, s.discard(dev, err)
		}
	}
	if err := cfg.setupRoutes(dev); err != nil {
		return nil, s.discard(dev, err)
	}
	return dev, nil
}

// MustNewDevice is like [*Scenario.NewDevice] but panics on error.
func (s *Scenario) MustNewDevice(cfg *DeviceConfig) *Device {
	return runtimex.Try1(s.NewDevice(cfg))
}

// discard removes a partially configured device and returns err.
func (s *Scenario) discard(dev *Device, err error) error {
	runtimex.Try0(s.RemoveDevice(dev.name))
	return err
}

// setupRoutes configures the static routes of the device.
func (cfg *DeviceConfig) setupRoutes(dev *Device) error {
	table := dev.RoutingTable()
	if cfg.Gateway != "" && len(cfg.Adapters) > 0 {
		rec := router.RouteRecord{
			Destination: "0.0.0.0/0",
			Gateway:     cfg.Gateway,
			Iface:       cfg.Adapters[0].Name,
			Metric:      1,
		}
		if _, err := table.AddRecord(rec); err != nil {
			return err
		}
	}
	for _, rec := range cfg.Routes {
		if _, err := table.AddRecord(rec); err != nil {
			return err
		}
	}
	return nil
}
