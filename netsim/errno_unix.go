//go:build unix

//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// UNIX errno definitions.
//

package netsim

import "golang.org/x/sys/unix"

const (
	// EADDRINUSE is the address in use error.
	EADDRINUSE = unix.EADDRINUSE

	// EBUSY is the device or resource busy error.
	EBUSY = unix.EBUSY

	// EINVAL is the invalid argument error.
	EINVAL = unix.EINVAL

	// EISCONN is the already connected error.
	EISCONN = unix.EISCONN

	// ENOBUFS is the no buffer space available error.
	ENOBUFS = unix.ENOBUFS

	// ENOTCONN is the not connected error.
	ENOTCONN = unix.ENOTCONN

	// EPROTONOSUPPORT is the protocol not supported error.
	EPROTONOSUPPORT = unix.EPROTONOSUPPORT

	// EPROTOTYPE is the wrong protocol type for socket error.
	EPROTOTYPE = unix.EPROTOTYPE
)
