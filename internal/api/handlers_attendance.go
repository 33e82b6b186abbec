// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/attendsync/internal/attendance"
	"github.com/tomtom215/attendsync/internal/models"
)

// Attendance handles GET /api/v1/attendance?date=YYYY-MM-DD.
func (h *Handler) Attendance(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	day, apiErr := h.parseDay(r)
	if apiErr != nil {
		respondJSONError(w, http.StatusBadRequest, apiErr)
		return
	}
	from, to := attendance.DayBounds(day, h.loc)
	records, err := h.store.ListAttendanceInRange(r.Context(), from, to)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeDatabase, "Failed to load attendance", err)
		return
	}
	if records == nil {
		records = []models.AttendanceRecord{}
	}
	respondData(w, http.StatusOK, records, start)
}

// DeviceUsers handles GET /api/v1/device/users.
func (h *Handler) DeviceUsers(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	users, err := h.store.ListDeviceUsers(r.Context())
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeDatabase, "Failed to load device users", err)
		return
	}
	if users == nil {
		users = []models.DeviceUser{}
	}
	respondData(w, http.StatusOK, users, start)
}
