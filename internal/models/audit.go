// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package models

import "time"

// AuditAction names a control operation.
type AuditAction string

const (
	AuditActionManualSync     AuditAction = "sync.manual"
	AuditActionTestConnection AuditAction = "sync.test_connection"
	AuditActionAutoSyncStart  AuditAction = "sync.auto_start"
	AuditActionAutoSyncStop   AuditAction = "sync.auto_stop"
	AuditActionBackupCreate   AuditAction = "backup.create"
	AuditActionBackupVerify   AuditAction = "backup.verify"
)

// AuditEvent records one control operation requested over the API.
type AuditEvent struct {
	ID         string      `json:"id"`
	Timestamp  time.Time   `json:"timestamp"`
	Action     AuditAction `json:"action"`
	Success    bool        `json:"success"`
	Message    string      `json:"message"`
	RemoteAddr string      `json:"remote_addr,omitempty"`
	RequestID  string      `json:"request_id,omitempty"`
	DurationMs int64       `json:"duration_ms"`
}
