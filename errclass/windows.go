//go:build windows

// SPDX-License-Identifier: GPL-3.0-or-later

package errclass

import "syscall"

const (
	errEBUSY      = syscall.EBUSY
	errEISCONN    = syscall.EISCONN
	errEPROTOTYPE = syscall.EPROTOTYPE
)
