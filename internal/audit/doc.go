// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

// Package audit keeps a trail of control operations requested over the
// API: manual syncs, connection tests and auto-sync start/stop.
//
// # Architecture
//
//	Logger.Record() -> buffer (chan) -> writer goroutine -> Store
//	       |                                  |
//	  never blocks                      5s per write
//
// Record never blocks the request. When the buffer is full the event is
// dropped with a warning; every event is also written to the application
// log, so a dropped event is still visible there.
//
// Logger.Serve runs retention cleanup and is meant to be added to the
// supervisor tree. Close drains the buffer.
package audit
