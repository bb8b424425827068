//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Export and import of devices and links.
//

package netsim

import (
	"errors"
	"fmt"

	"github.com/N1tramPH/network-simulator/netsim/addr"
	"github.com/N1tramPH/network-simulator/netsim/link"
	"github.com/N1tramPH/network-simulator/netsim/router"
)

// PortRecord is the exported form of a [*Port].
type PortRecord struct {
	ID     string `yaml:"id" mapstructure:"id"`
	LinkID string `yaml:"linkId,omitempty" mapstructure:"linkId"`
}

// AdapterRecord is the exported form of an [*Adapter].
type AdapterRecord struct {
	Name       string       `yaml:"name" mapstructure:"name"`
	IPAddress  string       `yaml:"ipAddress,omitempty" mapstructure:"ipAddress"`
	MACAddress string       `yaml:"macAddress" mapstructure:"macAddress"`
	Ports      []PortRecord `yaml:"ports" mapstructure:"ports"`
}

// NetworkRecord contains the exported tables of a device.
type NetworkRecord struct {
	SocketsTable []SocketRecord       `yaml:"socketsTable,omitempty" mapstructure:"socketsTable"`
	RoutingTable []router.RouteRecord `yaml:"routingTable,omitempty" mapstructure:"routingTable"`
	ArpTable     []link.ArpRecord     `yaml:"arpTable,omitempty" mapstructure:"arpTable"`
}

// DeviceRecord is the exported form of a [*Device].
type DeviceRecord struct {
	Name     string          `yaml:"name" mapstructure:"name"`
	Type     string          `yaml:"type" mapstructure:"type"`
	PowerOff bool            `yaml:"powerOff,omitempty" mapstructure:"powerOff"`
	Adapters []AdapterRecord `yaml:"adapters" mapstructure:"adapters"`
	Network  NetworkRecord   `yaml:"network" mapstructure:"network"`
}

// Export returns the adapter as a plain record.
func (a *Adapter) Export() AdapterRecord {
	rec := AdapterRecord{Name: a.name, MACAddress: a.mac.String()}
	if ip, ok := a.IPAddress(); ok {
		rec.IPAddress = ip.String()
	}
	for _, port := range a.ports {
		prec := PortRecord{ID: port.id}
		if port.link != nil {
			prec.LinkID = port.link.id
		}
		rec.Ports = append(rec.Ports, prec)
	}
	return rec
}

// Export returns the device and its tables as a plain record.
func (d *Device) Export() DeviceRecord {
	rec := DeviceRecord{Name: d.name, Type: d.kind.String(), PowerOff: d.off}
	for _, a := range d.adapters {
		rec.Adapters = append(rec.Adapters, a.Export())
	}
	if d.layers.Has(L3) {
		rec.Network.RoutingTable = d.RoutingTable().Export()
		rec.Network.ArpTable = d.ArpTable().Export()
	}
	if d.layers.Has(L4) {
		rec.Network.SocketsTable = d.SocketsTable().Export()
	}
	return rec
}

// ImportDevice creates a device from a record. Links are not part of
// the record; see [*Scenario.ImportLink].
func (s *Scenario) ImportDevice(rec DeviceRecord) (*Device, error) {
	kind, err := ParseKind(rec.Type)
	if err != nil {
		return nil, err
	}
	dev, err := s.AddDevice(kind, rec.Name)
	if err != nil {
		return nil, err
	}
	if err := dev.importRecord(rec); err != nil {
		return nil, s.discard(dev, fmt.Errorf("importing %s: %w", rec.Name, err))
	}
	return dev, nil
}

func (d *Device) importRecord(rec DeviceRecord) error {
	d.off = rec.PowerOff
	for _, arec := range rec.Adapters {
		mac, err := addr.ParseMAC(arec.MACAddress)
		if err != nil {
			return err
		}
		ip, err := addr.ParseIP(arec.IPAddress)
		if err != nil {
			return err
		}
		if _, err := d.AddAdapter(arec.Name, mac, ip); err != nil {
			return err
		}
	}
	if !d.layers.Has(L3) {
		return nil
	}
	if err := d.RoutingTable().Import(rec.Network.RoutingTable); err != nil {
		return err
	}
	if err := d.ArpTable().Import(rec.Network.ArpTable); err != nil {
		return err
	}
	if !d.layers.Has(L4) {
		return nil
	}
	return d.SocketsTable().Import(rec.Network.SocketsTable)
}

// PortRef names a port by device, adapter, and port index.
type PortRef struct {
	Device  string `yaml:"device" mapstructure:"device"`
	Adapter string `yaml:"adapter" mapstructure:"adapter"`
	Port    int    `yaml:"port" mapstructure:"port"`
}

// LinkRecord is the exported form of a [*Link].
type LinkRecord struct {
	ID    string  `yaml:"id" mapstructure:"id"`
	Left  PortRef `yaml:"left" mapstructure:"left"`
	Right PortRef `yaml:"right" mapstructure:"right"`
}

// ref returns the reference of the port.
func (p *Port) ref() PortRef {
	return PortRef{
		Device:  p.adapter.device.name,
		Adapter: p.adapter.name,
		Port:    p.index(),
	}
}

// index returns the position of the port within its adapter.
func (p *Port) index() int {
	for idx, candidate := range p.adapter.ports {
		if candidate == p {
			return idx
		}
	}
	return -1
}

// Export returns the link as a plain record.
func (lnk *Link) Export() LinkRecord {
	return LinkRecord{ID: lnk.id, Left: lnk.ends[0].ref(), Right: lnk.ends[1].ref()}
}

// ErrNoSuchPort indicates a reference to an unknown port.
var ErrNoSuchPort = errors.New("no such port")

// Port returns the referenced port.
func (s *Scenario) Port(ref PortRef) (*Port, error) {
	dev := s.Device(ref.Device)
	if dev == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchDevice, ref.Device)
	}
	a, err := dev.Adapter(ref.Adapter)
	if err != nil {
		return nil, err
	}
	if ref.Port < 0 || ref.Port >= len(a.ports) {
		return nil, fmt.Errorf("%w: %d on %s", ErrNoSuchPort, ref.Port, a)
	}
	return a.ports[ref.Port], nil
}

// ImportLink plugs a link between the referenced ports.
func (s *Scenario) ImportLink(rec LinkRecord) (*Link, error) {
	left, err := s.Port(rec.Left)
	if err != nil {
		return nil, err
	}
	right, err := s.Port(rec.Right)
	if err != nil {
		return nil, err
	}
	return s.ConnectPorts(left, right)
}
