// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package models

import (
	"time"
)

// RoleHRManager is the HRMS role that receives attendance notifications alongside admins.
const RoleHRManager = "hr_manager"

// NotificationTypeAttendanceSync tags notifications created for newly synced attendance.
const NotificationTypeAttendanceSync = "attendance_sync"

// User is an HRMS portal account. The sync core only reads it.
type User struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
	Role    string `json:"role"`
}

// Notification is an in-app notification addressed to one HRMS user.
type Notification struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"user_id"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Type      string                 `json:"type"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Read      bool                   `json:"read"`
	CreatedAt time.Time              `json:"created_at"`
}
