// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

/*
Package events publishes sync cycle events to NATS through Watermill so
HRMS services can react to new attendance without polling.

Each event the orchestrator emits (sync_completed, sync_failed) becomes one
message on subject <prefix>.<type>, for example attendsync.sync.sync_completed.
The payload is the JSON CycleEvent; the message metadata carries the type
and is sent as NATS headers.

Publishing is core NATS, fire-and-forget, behind a circuit breaker. A
broker outage never delays a cycle: publish failures are logged and
counted, and once the breaker opens messages are dropped until it
half-opens.

For single-host deployments NewEmbeddedServer runs an in-process NATS
server, and Fanout lets the websocket hub and the publisher share one
event stream:

	pub, err := events.NewPublisher(events.DefaultConfig(url))
	deps.Events = events.Fanout(hub, pub)
*/
package events
