// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

// Package validation validates HTTP request parameters with
// go-playground/validator v10.
//
// A single validator instance is shared process-wide. Field names in error
// messages come from the `query` struct tag so clients see the parameter
// they sent:
//
//	type dayRequest struct {
//	    Date string `query:"date" validate:"omitempty,day"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    ...
//	}
//
// Custom tags:
//   - day: calendar date in YYYY-MM-DD form
package validation
