// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package models

import (
	"time"
)

// AttendanceStatus is the HR classification of an attendance record.
type AttendanceStatus string

const (
	AttendanceStatusPresent  AttendanceStatus = "present"
	AttendanceStatusLate     AttendanceStatus = "late"
	AttendanceStatusHalfDay  AttendanceStatus = "half-day"
	AttendanceStatusAdjusted AttendanceStatus = "adjusted"
)

// DefaultEmployeeName is used when a punch references a user missing from the directory.
const DefaultEmployeeName = "Unknown"

// AttendanceRecord is the canonical per-day attendance row.
//
// Identity is (DeviceUserID, Date) where Date is local midnight of the punch.
// TimeIn is the first punch seen for the day; TimeOut is the latest later punch.
type AttendanceRecord struct {
	DeviceUserID   int              `json:"device_user_id"`
	EmployeeName   string           `json:"employee_name"`
	EmployeeNumber string           `json:"employee_number"`
	Department     string           `json:"department"`
	Date           time.Time        `json:"date"`
	TimeIn         time.Time        `json:"time_in"`
	TimeOut        *time.Time       `json:"time_out,omitempty"`
	Location       string           `json:"location"`
	VerifyMethod   int              `json:"verify_method"`
	Status         AttendanceStatus `json:"status"`
	Notes          *string          `json:"notes,omitempty"`
	Modified       bool             `json:"modified"`
	RawData        *string          `json:"raw_data,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// PunchEvent is a single clock event reported by the terminal.
//
// Timestamp is kept as reported so that malformed values can be counted
// and skipped by the upsert engine instead of failing the whole fetch.
type PunchEvent struct {
	DeviceUserID string `json:"device_user_id"`
	Timestamp    string `json:"timestamp"`
	TypeCode     int    `json:"type_code"`
	State        int    `json:"state,omitempty"`
	RawData      string `json:"raw_data,omitempty"`
}

// DeviceUser is an enrolled user in the terminal's directory.
type DeviceUser struct {
	DeviceUserID int       `json:"device_user_id"`
	Name         string    `json:"name"`
	Role         int       `json:"role"`
	CardNumber   *string   `json:"card_number,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// DeviceInfo identifies the terminal a sync cycle talked to.
type DeviceInfo struct {
	IP        string `json:"ip"`
	Port      int    `json:"port"`
	UserCount int    `json:"user_count"`
}

// AttendanceUpsert is one punch resolved to its (DeviceUserID, Date) key,
// ready for the bulk write.
type AttendanceUpsert struct {
	DeviceUserID int
	EmployeeName string
	Department   string
	Date         time.Time
	Punch        time.Time
	Location     string
	VerifyMethod int
	RawData      string
	SeenAt       time.Time
}

// BulkResult reports what one bulk write did.
type BulkResult struct {
	Added   int
	Updated int
	// AddedEmployeeNumbers lists the employee numbers of inserted rows in write order.
	AddedEmployeeNumbers []string
}
