// SPDX-License-Identifier: GPL-3.0-or-later

// Package persist saves and restores scenario topologies.
//
// A [Topology] contains the exported records of every device, with
// their adapters and tables, and of every link. It serializes to YAML
// and decodes from the generic maps produced by scripting languages.
package persist

import (
	"bytes"
	"fmt"

	"github.com/N1tramPH/network-simulator/netsim"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Topology is the exported form of a scenario.
type Topology struct {
	// Name is the optional scenario name.
	Name string `yaml:"name,omitempty" mapstructure:"name"`

	// Devices contains the device records in creation order.
	Devices []netsim.DeviceRecord `yaml:"devices" mapstructure:"devices"`

	// Links contains the link records in creation order.
	Links []netsim.LinkRecord `yaml:"links,omitempty" mapstructure:"links"`
}

// Export returns the topology of s.
func Export(s *netsim.Scenario) *Topology {
	topo := &Topology{Name: s.Name()}
	for _, dev := range s.Devices() {
		topo.Devices = append(topo.Devices, dev.Export())
	}
	for _, lnk := range s.Links() {
		topo.Links = append(topo.Links, lnk.Export())
	}
	return topo
}

// Build adds the devices and the links of topo to s.
func Build(s *netsim.Scenario, topo *Topology) error {
	for _, rec := range topo.Devices {
		if _, err := s.ImportDevice(rec); err != nil {
			return fmt.Errorf("device %q: %w", rec.Name, err)
		}
	}
	for _, rec := range topo.Links {
		if _, err := s.ImportLink(rec); err != nil {
			return fmt.Errorf("link %s/%s <--> %s/%s: %w",
				rec.Left.Device, rec.Left.Adapter, rec.Right.Device, rec.Right.Adapter, err)
		}
	}
	return nil
}

// Marshal serializes topo as YAML.
func Marshal(topo *Topology) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(topo); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal parses a YAML topology. Unknown fields are errors.
func Unmarshal(data []byte) (*Topology, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var topo Topology
	if err := dec.Decode(&topo); err != nil {
		return nil, fmt.Errorf("parsing topology: %w", err)
	}
	return &topo, nil
}

// Decode converts a generic map, such as a table returned by a Lua
// script, into a [Topology]. Numbers may be floating point.
func Decode(input any) (*Topology, error) {
	var topo Topology
	if err := DecodeInto(input, &topo); err != nil {
		return nil, err
	}
	return &topo, nil
}

// DecodeInto decodes a generic value into the mapstructure-tagged
// struct pointed to by out. Unknown keys are errors.
func DecodeInto(input, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}
