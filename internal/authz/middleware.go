// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

package authz

import (
	"errors"
	"net/http"

	"github.com/tomtom215/fieldtrack/internal/auth"
	"github.com/tomtom215/fieldtrack/internal/logging"
)

// ErrorWriter renders an authorization failure.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Middleware guards routes with fixed object/action permissions.
type Middleware struct {
	enforcer *Enforcer
	onError  ErrorWriter
}

// NewMiddleware creates the middleware. A nil onError writes plain text.
func NewMiddleware(enforcer *Enforcer, onError ErrorWriter) *Middleware {
	if onError == nil {
		onError = func(w http.ResponseWriter, _ *http.Request, err error) {
			if errors.Is(err, ErrForbidden) {
				http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
				return
			}
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
	}
	return &Middleware{enforcer: enforcer, onError: onError}
}

// Authorize returns chi-compatible middleware requiring object/action.
func (m *Middleware) Authorize(object, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				m.onError(w, r, ErrForbidden)
				return
			}
			if err := m.enforcer.Require(p, object, action); err != nil {
				if !errors.Is(err, ErrForbidden) {
					logging.Ctx(r.Context()).Error().Err(err).Msg("Authorization error")
				}
				m.onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
