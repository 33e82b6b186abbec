// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/tomtom215/attendsync/internal/models"
	"github.com/tomtom215/attendsync/internal/validation"
)

// dayRequest selects one calendar day. An empty date means today.
type dayRequest struct {
	Date string `query:"date" validate:"omitempty,day"`
}

// parseDay reads ?date= in loc. It returns a non-nil APIError when the
// parameter is malformed.
func (h *Handler) parseDay(r *http.Request) (time.Time, *models.APIError) {
	req := dayRequest{Date: r.URL.Query().Get("date")}
	if verr := validation.ValidateStruct(&req); verr != nil {
		e := verr.ToAPIError()
		return time.Time{}, &models.APIError{Code: e.Code, Message: e.Message, Details: e.Details}
	}
	if req.Date == "" {
		return h.now().In(h.loc), nil
	}
	day, err := time.ParseInLocation(validation.DayLayout, req.Date, h.loc)
	if err != nil {
		return time.Time{}, &models.APIError{Code: ErrCodeValidation, Message: "date must be a date in YYYY-MM-DD format"}
	}
	return day, nil
}

// defaultAuditLimit applies when ?limit= is absent.
const defaultAuditLimit = 50

type limitRequest struct {
	Limit int `query:"limit" validate:"min=1,max=500"`
}

// parseLimit reads ?limit=. A non-numeric value is a validation error.
func parseLimit(r *http.Request) (int, *models.APIError) {
	req := limitRequest{Limit: defaultAuditLimit}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return 0, &models.APIError{Code: ErrCodeValidation, Message: "limit must be an integer"}
		}
		req.Limit = n
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		e := verr.ToAPIError()
		return 0, &models.APIError{Code: e.Code, Message: e.Message, Details: e.Details}
	}
	return req.Limit, nil
}
