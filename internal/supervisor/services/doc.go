// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

// Package services adapts components whose lifecycle is not already
// Serve(ctx) error into suture services: the HTTP listener and the
// websocket hub. The maintenance runner, scheduler, event bus and user rate
// limiter implement suture.Service themselves and are added to the tree
// directly.
package services
