// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

package authz

import (
	"errors"

	"github.com/tomtom215/fieldtrack/internal/logging"
	"github.com/tomtom215/fieldtrack/internal/models"
)

// ErrForbidden is returned when a principal lacks a permission.
var ErrForbidden = errors.New("forbidden")

// Require returns ErrForbidden unless p may perform action on object.
func (e *Enforcer) Require(p models.Principal, object, action string) error {
	allowed, err := e.Enforce(p.Role, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		logging.Debug().
			Str("user_id", p.ID).
			Str("role", p.Role).
			Str("object", object).
			Str("action", action).
			Msg("Authorization denied")
		return ErrForbidden
	}
	return nil
}

// RequireUserAccess checks that p may perform action on targetUserID's
// locations: its own through locations:own, anyone else's through
// locations:any.
func (e *Enforcer) RequireUserAccess(p models.Principal, targetUserID, action string) error {
	if targetUserID == p.ID {
		return e.Require(p, ObjectOwnLocations, action)
	}
	return e.Require(p, ObjectAnyLocations, action)
}

// CanViewAll reports whether p receives every user's live updates.
func (e *Enforcer) CanViewAll(p models.Principal) bool {
	allowed, err := e.Enforce(p.Role, ObjectLiveAll, ActionRead)
	if err != nil {
		logging.Warn().Err(err).Msg("Live scope check failed")
		return false
	}
	return allowed
}
