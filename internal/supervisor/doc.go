// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

/*
Package supervisor runs fieldtrack's long-lived services under a suture v4
tree.

The tree has three layers, each with its own restart budget:

	fieldtrack
	├── data-layer
	│   ├── maintenance-runner
	│   └── retention-scheduler (when an interval is configured)
	├── messaging-layer
	│   ├── websocket-hub
	│   └── event-bus (when nats.enabled)
	└── api-layer
	    ├── http-server
	    └── user-rate-limiter

A viewer hub crash restarts the hub without dropping the HTTP listener, and a
failing scheduled purge cannot take ingestion down with it.

Supervisor events (restarts, backoff, stop timeouts) are logged through
sutureslog into the zerolog-backed slog handler from internal/logging.
*/
package supervisor
