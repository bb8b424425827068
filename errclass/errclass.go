// SPDX-License-Identifier: GPL-3.0-or-later

/*
Package errclass implements error classification.

The general idea is to classify golang errors to an enum of strings
with names resembling standard Unix error names.

# Design Principles

1. Preserve original error in `err` in the structured logs.

2. Add the classified error as the `errClass` field.

3. Use [errors.Is] and [errors.As] for classification.

4. Use string-based classification for readability.

5. Follow Unix-like naming where appropriate.

6. Map the nil error to an empty string.

# Simulator Errors

- [EPACKETEXCEED] for an action producing too many packets

- [EISCONN], [EBUSY], [EPROTOTYPE] for the socket misuse errors the
standard classifier does not know about

The actual system error constants are defined in platform-specific files:

- unix.go for Unix-like systems using x/sys/unix

- windows.go for Windows systems using x/sys/windows

# Fallback

Every other error, including [EADDRINUSE], [ENOTCONN], and the other
errno values, is classified by [github.com/rbmk-project/common/errclass],
which returns [EGENERIC] for unclassified errors.
*/
package errclass

import (
	"errors"

	"github.com/N1tramPH/network-simulator/netsim/packet"
	"github.com/rbmk-project/common/errclass"
)

const (
	// EPACKETEXCEED indicates an action producing too many packets,
	// usually because of a switching loop.
	EPACKETEXCEED = "EPACKETEXCEED"

	// EISCONN is the already connected error.
	EISCONN = "EISCONN"

	// EBUSY is the device or resource busy error.
	EBUSY = "EBUSY"

	// EPROTOTYPE is the wrong protocol type for socket error.
	EPROTOTYPE = "EPROTOTYPE"

	// EADDRINUSE is the address in use error.
	EADDRINUSE = errclass.EADDRINUSE

	// EINVAL is the invalid argument error.
	EINVAL = errclass.EINVAL

	// ENOBUFS is the no buffer space available error.
	ENOBUFS = errclass.ENOBUFS

	// ENOTCONN is the not connected error.
	ENOTCONN = errclass.ENOTCONN

	// EPROTONOSUPPORT is the protocol not supported error.
	EPROTONOSUPPORT = errclass.EPROTONOSUPPORT

	// EGENERIC is the generic, unclassified error.
	EGENERIC = errclass.EGENERIC
)

// errorsIsMap contains the errors we can classify using [errors.Is].
var errorsIsMap = map[error]string{
	packet.ErrExceeded: EPACKETEXCEED,
	errEISCONN:         EISCONN,
	errEBUSY:           EBUSY,
	errEPROTOTYPE:      EPROTOTYPE,
}

// New classifies the error. It returns an empty string for a nil error.
func New(err error) string {
	if err == nil {
		return ""
	}
	for candidate, class := range errorsIsMap {
		if errors.Is(err, candidate) {
			return class
		}
	}
	return errclass.New(err)
}
