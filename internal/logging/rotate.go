// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package logging

import (
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogFileName is the active log file inside the configured log directory.
const LogFileName = "attendsync.log"

const defaultMaxSizeMB = 50

// newRotatingFile returns a lumberjack writer for dir. Rotated segments are
// gzip-compressed and removed once older than retentionDays.
func newRotatingFile(dir string, maxSizeMB, retentionDays int) *lumberjack.Logger {
	if maxSizeMB <= 0 {
		maxSizeMB = defaultMaxSizeMB
	}
	if retentionDays < 0 {
		retentionDays = 0
	}
	return &lumberjack.Logger{
		Filename:  filepath.Join(dir, LogFileName),
		MaxSize:   maxSizeMB,
		MaxAge:    retentionDays,
		Compress:  true,
		LocalTime: true,
	}
}
