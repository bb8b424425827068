// SPDX-License-Identifier: GPL-3.0-or-later

// Package bytearray contains [ByteArray], a fixed-size byte buffer
// addressable both byte-wise and bit-wise.
//
// Byte 0 is the first byte on the wire. Bit index 0 is the
// most-significant bit of byte 0, so absolute bit indexes count from
// the most-significant end of the logical header, the same way
// protocol RFCs draw their header diagrams.
package bytearray

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrOutOfRange indicates that a bit or byte range does not fit
// inside the [ByteArray] or that a field is wider than 64 bits.
var ErrOutOfRange = errors.New("bytearray: range out of bounds")

// ByteArray is a fixed-length sequence of bytes.
//
// Construct using [New] or [FromUint].
type ByteArray []byte

// New returns a zero-filled [ByteArray] of size bytes.
func New(size int) ByteArray {
	return make(ByteArray, size)
}

// FromUint returns a [ByteArray] of size bytes holding value in
// network byte order, zero-padding on the left or truncating the
// most-significant bytes when value does not fit.
func FromUint(value uint64, size int) ByteArray {
	ba := New(size)
	for idx := size - 1; idx >= 0 && value != 0; idx-- {
		ba[idx] = byte(value)
		value >>= 8
	}
	return ba
}

// Len returns the number of bits in the array.
func (ba ByteArray) Len() int {
	return len(ba) * 8
}

// checkRange ensures [start, start+count) is addressable.
func (ba ByteArray) checkRange(start, count int) error {
	if start < 0 || count < 0 || start+count > ba.Len() {
		return fmt.Errorf("%w: bits [%d, %d) of %d", ErrOutOfRange, start, start+count, ba.Len())
	}
	return nil
}

// Bit returns the bit at the given absolute index as 0 or 1.
func (ba ByteArray) Bit(index int) (uint8, error) {
	if err := ba.checkRange(index, 1); err != nil {
		return 0, err
	}
	return (ba[index/8] >> (7 - uint(index%8))) & 1, nil
}

// SetBit sets the bit at the given absolute index to 1 when on is
// true and to 0 otherwise.
func (ba ByteArray) SetBit(index int, on bool) error {
	if err := ba.checkRange(index, 1); err != nil {
		return err
	}
	ba.setBit(index, on)
	return nil
}

func (ba ByteArray) setBit(index int, on bool) {
	mask := byte(1) << (7 - uint(index%8))
	if on {
		ba[index/8] |= mask
	} else {
		ba[index/8] &^= mask
	}
}

// SetBits writes the count least-significant bits of value into the
// range starting at bit start, most-significant bit first.
//
// The count must be in [0, 64]. On error the array is unchanged.
func (ba ByteArray) SetBits(value uint64, start, count int) error {
	if count > 64 {
		return fmt.Errorf("%w: field of %d bits", ErrOutOfRange, count)
	}
	if err := ba.checkRange(start, count); err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		bit := (value >> uint(count-1-i)) & 1
		ba.setBit(start+i, bit == 1)
	}
	return nil
}

// GetBits is the inverse of [ByteArray.SetBits].
func (ba ByteArray) GetBits(start, count int) (uint64, error) {
	if count > 64 {
		return 0, fmt.Errorf("%w: field of %d bits", ErrOutOfRange, count)
	}
	if err := ba.checkRange(start, count); err != nil {
		return 0, err
	}
	var value uint64
	for i := start; i < start+count; i++ {
		value = (value << 1) | uint64((ba[i/8]>>(7-uint(i%8)))&1)
	}
	return value, nil
}

// SetBitsFrom writes count bits taken from the end of src into the
// range starting at bit start. A src shorter than the range is
// zero-extended on the left, so a 6-byte MAC fits a 48-bit field.
func (ba ByteArray) SetBitsFrom(src []byte, start, count int) error {
	if err := ba.checkRange(start, count); err != nil {
		return err
	}
	srcBits := len(src) * 8
	for i := 0; i < count; i++ {
		// Align the last bit of src with the last bit of the range.
		si := srcBits - count + i
		on := false
		if si >= 0 {
			on = (src[si/8]>>(7-uint(si%8)))&1 == 1
		}
		ba.setBit(start+i, on)
	}
	return nil
}

// Slice returns a copy of count bits starting at bit start as a new
// [ByteArray] of ceil(count/8) bytes, right-aligned.
func (ba ByteArray) Slice(start, count int) (ByteArray, error) {
	if err := ba.checkRange(start, count); err != nil {
		return nil, err
	}
	out := New((count + 7) / 8)
	offset := out.Len() - count
	for i := 0; i < count; i++ {
		si := start + i
		out.setBit(offset+i, (ba[si/8]>>(7-uint(si%8)))&1 == 1)
	}
	return out, nil
}

// SetOnes sets count bits starting at start to 1.
func (ba ByteArray) SetOnes(start, count int) error {
	if err := ba.checkRange(start, count); err != nil {
		return err
	}
	for i := start; i < start+count; i++ {
		ba.setBit(i, true)
	}
	return nil
}

// SetZeros sets count bits starting at start to 0.
func (ba ByteArray) SetZeros(start, count int) error {
	if err := ba.checkRange(start, count); err != nil {
		return err
	}
	for i := start; i < start+count; i++ {
		ba.setBit(i, false)
	}
	return nil
}

// HasBits reports whether any bit in the range is set.
func (ba ByteArray) HasBits(start, count int) bool {
	if ba.checkRange(start, count) != nil {
		return false
	}
	for i := start; i < start+count; i++ {
		if (ba[i/8]>>(7-uint(i%8)))&1 == 1 {
			return true
		}
	}
	return false
}

// Uint returns the whole array interpreted as a big-endian unsigned
// integer. Arrays longer than 8 bytes keep their last 8 bytes.
func (ba ByteArray) Uint() uint64 {
	var value uint64
	for _, b := range ba {
		value = (value << 8) | uint64(b)
	}
	return value
}

// Clone returns a deep copy of the array.
func (ba ByteArray) Clone() ByteArray {
	out := New(len(ba))
	copy(out, ba)
	return out
}

// Equal reports whether both arrays contain the same bytes.
func (ba ByteArray) Equal(other ByteArray) bool {
	return bytes.Equal(ba, other)
}

// Format renders every byte in the given radix, padded to the width
// of a byte in that radix and separated by delim.
func (ba ByteArray) Format(radix int, delim string) string {
	width := len(strconv.FormatUint(0xff, radix))
	parts := make([]string, 0, len(ba))
	for _, b := range ba {
		s := strconv.FormatUint(uint64(b), radix)
		parts = append(parts, strings.Repeat("0", width-len(s))+s)
	}
	return strings.Join(parts, delim)
}

// String returns the binary rendering of the array.
func (ba ByteArray) String() string {
	return ba.Format(2, " ")
}
