// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/tomtom215/fieldtrack/internal/auth"
	"github.com/tomtom215/fieldtrack/internal/authz"
	"github.com/tomtom215/fieldtrack/internal/database"
	"github.com/tomtom215/fieldtrack/internal/ingest"
	"github.com/tomtom215/fieldtrack/internal/logging"
	"github.com/tomtom215/fieldtrack/internal/maintenance"
	"github.com/tomtom215/fieldtrack/internal/retention"
	"github.com/tomtom215/fieldtrack/internal/validation"
)

// RespondError maps a domain error onto its HTTP status and error code. It
// is also the error writer handed to the auth and authz middleware.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ingestErr   *ingest.ValidationError
		requestErr  *validation.RequestValidationError
		conflictErr *maintenance.ConflictError
		storeErr    *database.StoreError
	)

	switch {
	case errors.As(err, &ingestErr):
		respondError(w, r, http.StatusBadRequest, ErrCodeValidation, ingestErr.Error(), map[string]interface{}{
			"errors":  ingestErr.Items,
			"indexes": ingestErr.Indexes(),
		})

	case errors.As(err, &requestErr):
		apiErr := requestErr.ToAPIError()
		respondError(w, r, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)

	case errors.Is(err, retention.ErrInvalidParameter):
		respondError(w, r, http.StatusBadRequest, ErrCodeValidation, err.Error(), nil)

	case errors.Is(err, auth.ErrMissingToken):
		respondError(w, r, http.StatusUnauthorized, ErrCodeUnauthorized, "Authentication required", nil)

	case errors.Is(err, auth.ErrInvalidToken):
		respondError(w, r, http.StatusUnauthorized, ErrCodeUnauthorized, "Invalid or expired token", nil)

	case errors.Is(err, authz.ErrForbidden):
		respondError(w, r, http.StatusForbidden, ErrCodeForbidden, "Insufficient permissions", nil)

	case errors.As(err, &conflictErr):
		respondError(w, r, http.StatusConflict, ErrCodeMaintenanceConflict, "A maintenance job is already running", map[string]string{
			"runningJobId": conflictErr.RunningJobID,
		})

	case errors.Is(err, maintenance.ErrJobFinished):
		respondError(w, r, http.StatusConflict, ErrCodeJobFinished, "Maintenance job has already finished", nil)

	case errors.Is(err, maintenance.ErrJobNotFound), errors.Is(err, database.ErrNotFound):
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Resource not found", nil)

	case errors.Is(err, maintenance.ErrRunnerStopped):
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Server is shutting down", nil)

	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		logging.Ctx(r.Context()).Debug().Err(err).Msg("Request ended before completion")
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Request canceled", nil)

	case errors.As(err, &storeErr):
		logging.Ctx(r.Context()).Error().
			Str("op", storeErr.Op).
			Str("error", sanitizeLogValue(storeErr.Err.Error())).
			Msg("Database error")
		respondError(w, r, http.StatusInternalServerError, ErrCodeDatabase, "Database error", nil)

	default:
		logging.Ctx(r.Context()).Error().
			Str("error", sanitizeLogValue(err.Error())).
			Msg("Unhandled API error")
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Internal server error", nil)
	}
}

// RespondRateLimited is the 429 writer shared by the per-IP and per-user
// limiters.
func RespondRateLimited(w http.ResponseWriter, r *http.Request) {
	respondError(w, r, http.StatusTooManyRequests, ErrCodeRateLimited, "Too many requests", nil)
}
