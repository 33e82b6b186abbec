// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

/*
Package middleware provides the HTTP middleware shared by the control API.

Components:

  - RequestID: propagates or generates X-Request-ID and seeds the logging context
  - Metrics: Prometheus request counters and latency labeled by chi route pattern
  - AccessLog: one structured log line per request, warning on slow requests
  - RateLimitExceeded: httprate limit handler that counts rejections

Typical chi stack:

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.AccessLog(time.Second))
	r.Use(middleware.Metrics)
	r.Use(chimiddleware.Recoverer)

Metrics and AccessLog read the route pattern after the handler runs, so they
must be registered on the router itself, not on a sub-router.
*/
package middleware
