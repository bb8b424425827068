// SPDX-License-Identifier: GPL-3.0-or-later

// Package link contains the link-layer caches of a simulated device:
// the switch [*CAMTable] mapping MAC addresses to ports and the
// [*ArpTable] mapping IP addresses to MAC addresses.
package link

import (
	"errors"
	"fmt"

	"github.com/N1tramPH/network-simulator/netsim/addr"
)

var (
	// ErrInvalidEntryType is returned for ARP entries that are
	// neither static nor dynamic.
	ErrInvalidEntryType = errors.New(`type must be either "static" or "dynamic"`)

	// ErrNoSuchEntry is returned when a table has no entry with the given ID.
	ErrNoSuchEntry = errors.New("no such entry")
)

// CAMTable maps learned MAC addresses to the ports they were seen on.
//
// A port maps to at most one MAC address: learning a new address on a
// port forgets the previous one.
//
// The zero value is not ready to use; construct using [NewCAMTable].
type CAMTable[P comparable] struct {
	byMAC  map[addr.MAC]P
	byPort map[P]addr.MAC
}

// CAMEntry is a MAC to port mapping.
type CAMEntry[P comparable] struct {
	MAC  addr.MAC
	Port P
}

// NewCAMTable creates an empty [*CAMTable].
func NewCAMTable[P comparable]() *CAMTable[P] {
	return &CAMTable[P]{
		byMAC:  make(map[addr.MAC]P),
		byPort: make(map[P]addr.MAC),
	}
}

// Get returns the port mapped to mac.
func (t *CAMTable[P]) Get(mac addr.MAC) (P, bool) {
	port, found := t.byMAC[mac]
	return port, found
}

// MACOf returns the MAC address mapped to port.
func (t *CAMTable[P]) MACOf(port P) (addr.MAC, bool) {
	mac, found := t.byPort[port]
	return mac, found
}

// Set maps mac to port, replacing the previous mapping of the port
// and of the address.
func (t *CAMTable[P]) Set(mac addr.MAC, port P) {
	if old, found := t.byPort[port]; found {
		delete(t.byMAC, old)
	}
	if oldPort, found := t.byMAC[mac]; found {
		delete(t.byPort, oldPort)
	}
	t.byMAC[mac] = port
	t.byPort[port] = mac
}

// Update is an alias for [*CAMTable.Set] keyed by port.
func (t *CAMTable[P]) Update(port P, mac addr.MAC) {
	t.Set(mac, port)
}

// Clear forgets the mapping of port.
func (t *CAMTable[P]) Clear(port P) {
	if mac, found := t.byPort[port]; found {
		delete(t.byMAC, mac)
	}
	delete(t.byPort, port)
}

// Len returns the number of mappings.
func (t *CAMTable[P]) Len() int {
	return len(t.byMAC)
}

// Entries returns the mappings of the given ports in order, skipping
// ports without a mapping.
func (t *CAMTable[P]) Entries(ports []P) []CAMEntry[P] {
	var out []CAMEntry[P]
	for _, port := range ports {
		if mac, found := t.byPort[port]; found {
			out = append(out, CAMEntry[P]{MAC: mac, Port: port})
		}
	}
	return out
}

// EntryType tells static and learned ARP entries apart.
type EntryType string

const (
	// Static entries are configured by the user.
	Static EntryType = "static"

	// Dynamic entries are learned from ARP replies.
	Dynamic EntryType = "dynamic"
)

// ArpEntry is a row of the [*ArpTable].
type ArpEntry struct {
	ID   string
	IP   addr.IP
	MAC  addr.MAC
	Type EntryType
}

// ArpRecord is the exported form of an [ArpEntry].
type ArpRecord struct {
	IPAddress  string `yaml:"ipAddress" mapstructure:"ipAddress"`
	MACAddress string `yaml:"macAddress" mapstructure:"macAddress"`
	Type       string `yaml:"type" mapstructure:"type"`
}

// ArpTable caches IP to MAC resolutions.
//
// The zero value is ready to use.
type ArpTable struct {
	entries []ArpEntry
	nextID  int
}

func (t *ArpTable) newID() string {
	t.nextID++
	return fmt.Sprintf("arp-%d", t.nextID)
}

// Entries returns a copy of the rows.
func (t *ArpTable) Entries() []ArpEntry {
	return append([]ArpEntry(nil), t.entries...)
}

// Add appends a row and returns its ID.
func (t *ArpTable) Add(ip addr.IP, mac addr.MAC, typ EntryType) (string, error) {
	if typ != Static && typ != Dynamic {
		return "", fmt.Errorf("%w: %q", ErrInvalidEntryType, typ)
	}
	id := t.newID()
	t.entries = append(t.entries, ArpEntry{ID: id, IP: ip, MAC: mac, Type: typ})
	return id, nil
}

// Learn records a resolution from an ARP reply, refreshing an
// existing dynamic row for the same address.
func (t *ArpTable) Learn(ip addr.IP, mac addr.MAC) {
	for idx := range t.entries {
		if t.entries[idx].Type == Dynamic && t.entries[idx].IP.Equal(ip) {
			t.entries[idx].MAC = mac
			return
		}
	}
	t.entries = append(t.entries, ArpEntry{ID: t.newID(), IP: ip, MAC: mac, Type: Dynamic})
}

// Remove deletes the row with the given ID.
func (t *ArpTable) Remove(id string) error {
	for idx := range t.entries {
		if t.entries[idx].ID == id {
			t.entries = append(t.entries[:idx], t.entries[idx+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNoSuchEntry, id)
}

// Update replaces the addresses of the row with the given ID. The
// updated row becomes static.
func (t *ArpTable) Update(id string, ip addr.IP, mac addr.MAC) error {
	for idx := range t.entries {
		if t.entries[idx].ID == id {
			t.entries[idx].IP, t.entries[idx].MAC, t.entries[idx].Type = ip, mac, Static
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNoSuchEntry, id)
}

// Query returns the MAC address of the first row matching ip.
func (t *ArpTable) Query(ip addr.IP) (addr.MAC, bool) {
	for _, e := range t.entries {
		if e.IP.Equal(ip) {
			return e.MAC, true
		}
	}
	return addr.MAC{}, false
}

// Export returns the rows as plain records.
func (t *ArpTable) Export() []ArpRecord {
	out := make([]ArpRecord, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, ArpRecord{
			IPAddress:  e.IP.String(),
			MACAddress: e.MAC.String(),
			Type:       string(e.Type),
		})
	}
	return out
}

// Import replaces the rows with the given records. On error the table
// is unchanged.
func (t *ArpTable) Import(records []ArpRecord) error {
	var tmp ArpTable
	tmp.nextID = t.nextID
	for _, rec := range records {
		ip, err := addr.ParseIP(rec.IPAddress)
		if err != nil {
			return err
		}
		mac, err := addr.ParseMAC(rec.MACAddress)
		if err != nil {
			return err
		}
		typ := EntryType(rec.Type)
		if typ == "" {
			typ = Static
		}
		if _, err := tmp.Add(ip, mac, typ); err != nil {
			return err
		}
	}
	*t = tmp
	return nil
}
