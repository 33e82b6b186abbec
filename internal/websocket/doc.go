// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

/*
Package websocket pushes live sync cycle events to connected dashboards.

A single Hub owns the client set and fans out every broadcast. Each Client
runs two goroutines:

  - readPump: reads client frames, answers application pings, extends the read deadline on pong
  - writePump: writes queued messages and sends protocol pings every pingPeriod

Messages are JSON envelopes:

	{"type": "sync_completed", "data": {...}}

The sync orchestrator publishes sync_completed and sync_failed through
Hub.BroadcastJSON. Broadcasting never blocks the caller: when the hub's
queue is full the message is dropped and logged, and a client whose own
queue is full is disconnected.

Usage:

	hub := websocket.NewHub()
	go hub.RunWithContext(ctx)
	r.Get("/api/v1/ws", websocket.Handler(hub, allowedOrigins))
*/
package websocket
