// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

package models

// Roles known to the embedded authorization policy.
const (
	RoleUser       = "user"
	RoleDispatcher = "dispatcher"
	RoleAdmin      = "admin"
)

// Principal is the authenticated caller.
type Principal struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}
