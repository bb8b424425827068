// SPDX-License-Identifier: GPL-3.0-or-later

// Package dataunit contains [*DataUnit], a protocol header backed by a
// [bytearray.ByteArray] and laid out by a declarative [*Schema].
//
// A unit's payload is either another unit (forming an encapsulation
// chain), a raw byte count standing in for application data, opaque
// application bytes, or nothing. Typed views such as [LinkFrame] and
// [IPPacket] expose the fields of each header kind.
package dataunit

import (
	"fmt"

	"github.com/N1tramPH/network-simulator/bytearray"
	"github.com/rbmk-project/common/runtimex"
)

// DataUnit is a protocol header plus an optional payload.
//
// Construct using [New] or one of the typed constructors.
type DataUnit struct {
	// Header is the header buffer laid out by the schema.
	Header bytearray.ByteArray

	schema  *Schema
	inner   *DataUnit
	raw     int
	content []byte
}

// New returns a zeroed unit for the given schema without payload.
func New(schema *Schema) *DataUnit {
	return &DataUnit{
		Header: bytearray.New(schema.HeaderBytes()),
		schema: schema,
	}
}

// Schema returns the unit's immutable schema.
func (du *DataUnit) Schema() *Schema {
	return du.schema
}

// Kind returns the schema kind.
func (du *DataUnit) Kind() Kind {
	return du.schema.Kind()
}

// Get returns the value of a non-special field.
func (du *DataUnit) Get(name string) (uint64, error) {
	f, err := du.field(name)
	if err != nil {
		return 0, err
	}
	return du.Header.GetBits(f.Offset, f.Width)
}

// Set assigns the value of a non-special field, truncated to the
// field width.
func (du *DataUnit) Set(name string, value uint64) error {
	f, err := du.field(name)
	if err != nil {
		return err
	}
	if f.Width < 64 {
		value &= uint64(1)<<uint(f.Width) - 1
	}
	return du.Header.SetBits(value, f.Offset, f.Width)
}

func (du *DataUnit) field(name string) (Field, error) {
	f, found := du.schema.Lookup(name)
	if !found {
		return Field{}, fmt.Errorf("%w: %s.%s", ErrUnknownField, du.schema.Name(), name)
	}
	if f.Special {
		return Field{}, fmt.Errorf("%w: %s.%s", ErrSpecialField, du.schema.Name(), name)
	}
	return f, nil
}

// get and set are used by the typed views on fields the schema is
// known to define.
func (du *DataUnit) get(name string) uint64 {
	return runtimex.Try1(du.Get(name))
}

func (du *DataUnit) set(name string, value uint64) {
	runtimex.Try0(du.Set(name, value))
}

// Payload returns the nested unit, if any.
func (du *DataUnit) Payload() *DataUnit {
	return du.inner
}

// SetPayload makes inner the payload of the unit.
func (du *DataUnit) SetPayload(inner *DataUnit) {
	du.inner, du.raw, du.content = inner, 0, nil
}

// Raw returns the size of a raw payload in bytes.
func (du *DataUnit) Raw() int {
	return du.raw
}

// SetRaw makes the payload a raw byte count.
func (du *DataUnit) SetRaw(size int) {
	du.inner, du.raw, du.content = nil, max(size, 0), nil
}

// Content returns opaque application bytes carried as payload.
func (du *DataUnit) Content() []byte {
	return du.content
}

// SetContent makes the payload the given application bytes.
func (du *DataUnit) SetContent(b []byte) {
	du.inner, du.raw, du.content = nil, len(b), b
}

// HeaderBytes returns the header length in bytes.
func (du *DataUnit) HeaderBytes() int {
	return len(du.Header)
}

// DataBytes returns the recursively computed payload size in bytes.
func (du *DataUnit) DataBytes() int {
	if du.inner != nil {
		return du.inner.Size()
	}
	return du.raw
}

// Size returns the header length plus [*DataUnit.DataBytes].
func (du *DataUnit) Size() int {
	return du.HeaderBytes() + du.DataBytes()
}

// Copy returns a unit with an independent header buffer sharing the
// payload of the original.
func (du *DataUnit) Copy() *DataUnit {
	return &DataUnit{
		Header:  du.Header.Clone(),
		schema:  du.schema,
		inner:   du.inner,
		raw:     du.raw,
		content: du.content,
	}
}

// DeepCopy copies the header of every unit in the chain.
func (du *DataUnit) DeepCopy() *DataUnit {
	out := du.Copy()
	if du.inner != nil {
		out.inner = du.inner.DeepCopy()
	}
	return out
}

// Find walks the chain starting with du and returns the first unit
// matching any of the given kinds, or nil.
func (du *DataUnit) Find(kinds ...Kind) *DataUnit {
	for cur := du; cur != nil; cur = cur.inner {
		for _, k := range kinds {
			if cur.Kind() == k {
				return cur
			}
		}
	}
	return nil
}

// Bytes serializes the chain. A raw payload becomes zero bytes.
func (du *DataUnit) Bytes() []byte {
	out := make([]byte, 0, du.Size())
	out = append(out, du.Header...)
	switch {
	case du.inner != nil:
		out = append(out, du.inner.Bytes()...)
	case du.content != nil:
		out = append(out, du.content...)
	default:
		out = append(out, make([]byte, du.raw)...)
	}
	return out
}

// String returns the schema name.
func (du *DataUnit) String() string {
	return du.schema.Name()
}
