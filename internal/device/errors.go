// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package device

import (
	"errors"
	"fmt"

	"github.com/tomtom215/attendsync/internal/zk"
)

// ConnectionError reports that the terminal could not be reached or the
// session broke. Attempts is the number of connect attempts made.
type ConnectionError struct {
	Address  string
	Attempts int
	Err      error
}

func (e *ConnectionError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("device %s unreachable after %d attempt(s): %v", e.Address, e.Attempts, e.Err)
	}
	return fmt.Sprintf("device %s unavailable: %v", e.Address, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ProtocolError reports a malformed or unexpected device response.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("device protocol error during %s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// IsConnectionError reports whether err is or wraps a *ConnectionError.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// IsProtocolError reports whether err is or wraps a *ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// isWireFault reports whether err came from decoding rather than transport.
func isWireFault(err error) bool {
	for _, target := range []error{
		zk.ErrBadHeader,
		zk.ErrChecksum,
		zk.ErrShortPayload,
		zk.ErrUnexpectedReply,
		zk.ErrDeviceError,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
