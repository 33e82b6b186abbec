// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

/*
Package supervisor runs AttendSync's long-lived services under suture v4.

The tree has three layers so a failing layer restarts without taking the
others down:

	RootSupervisor ("attendsync")
	├── DataSupervisor ("data-layer")
	│   └── SpoolMaintenanceService (if WAL_ENABLED)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── WebSocketHubService
	│   └── SyncService
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Supervisor events (service start, failure, backoff, restart) are logged
through sutureslog onto the slog adapter of the zerolog logger.

Usage:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	tree.AddMessagingService(services.NewSyncService(orchestrator, 30*time.Second))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	errCh := tree.ServeBackground(ctx)

Canceling ctx stops every service in reverse order of addition.
UnstoppedServiceReport lists services that missed ShutdownTimeout.
*/
package supervisor
