// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

// Command server runs the fieldtrack location service.
//
// Field devices post GPS fixes over HTTP; dispatchers and admins watch them
// arrive over a websocket; admins compress and purge old history through
// maintenance jobs.
//
// # Startup order
//
//  1. Configuration (koanf: defaults, config.yaml, environment)
//  2. Fix store (DuckDB by default, SQLite via database.driver)
//  3. Live viewer hub, plus the NATS event bus when nats.enabled
//  4. Retention service, optional S3 archive, maintenance runner and scheduler
//  5. JWT authentication, casbin authorization, rate limiters
//  6. HTTP API, then the supervisor tree
//
// # Configuration
//
// The essentials, as environment variables:
//
//	JWT_SECRET=$(openssl rand -base64 32)
//	DATABASE_DRIVER=duckdb            # or sqlite3, sqlite
//	DATABASE_PATH=/data/fieldtrack.duckdb
//	MAINTENANCE_JOBS_PATH=/data/jobs  # empty keeps job history in memory
//	NATS_ENABLED=true                 # fan out to other instances
//
// # Signals
//
// SIGINT and SIGTERM stop the supervisor tree: the HTTP server drains for
// server.shutdown_timeout, viewers are closed, a running maintenance job is
// canceled and recorded as such.
package main
