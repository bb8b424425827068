// SPDX-License-Identifier: GPL-3.0-or-later

package dataunit

// Checksum computes the RFC 1071 Internet checksum of b: the ones'
// complement of the ones' complement sum of its big-endian 16-bit
// words. An odd trailing byte is padded with zero.
func Checksum(b []byte) uint16 {
	var sum uint32
	for len(b) >= 2 {
		sum += uint32(b[0])<<8 | uint32(b[1])
		b = b[2:]
	}
	if len(b) == 1 {
		sum += uint32(b[0]) << 8
	}
	for sum>>16 != 0 {
		sum = sum&0xffff + sum>>16
	}
	return ^uint16(sum)
}

// headerChecksum computes [Checksum] over a copy of the header with the
// checksum field zeroed.
func headerChecksum(du *DataUnit, extra []byte) uint16 {
	tmp := du.Copy()
	tmp.set(FieldChecksum, 0)
	return Checksum(append(tmp.Header, extra...))
}
