//go:build windows

//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Windows errno definitions.
//

package netsim

import (
	"syscall"

	"golang.org/x/sys/windows"
)

const (
	// EADDRINUSE is the address in use error.
	EADDRINUSE = windows.WSAEADDRINUSE

	// EBUSY is the device or resource busy error.
	EBUSY = syscall.EBUSY

	// EINVAL is the invalid argument error.
	EINVAL = windows.WSAEINVAL

	// EISCONN is the already connected error.
	EISCONN = syscall.EISCONN

	// ENOBUFS is the no buffer space available error.
	ENOBUFS = windows.WSAENOBUFS

	// ENOTCONN is the not connected error.
	ENOTCONN = windows.WSAENOTCONN

	// EPROTONOSUPPORT is the protocol not supported error.
	EPROTONOSUPPORT = windows.WSAEPROTONOSUPPORT

	// EPROTOTYPE is the wrong protocol type for socket error.
	EPROTOTYPE = syscall.EPROTOTYPE
)
