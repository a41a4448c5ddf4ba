// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

package authz

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tomtom215/fieldtrack/internal/auth"
	"github.com/tomtom215/fieldtrack/internal/config"
	"github.com/tomtom215/fieldtrack/internal/models"
)

func TestAuthorizeMiddleware(t *testing.T) {
	e := newTestEnforcer(t, config.AuthzConfig{})
	mw := NewMiddleware(e, nil)
	handler := mw.Authorize(ObjectMaintenance, ActionWrite)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name      string
		principal *models.Principal
		want      int
	}{
		{"admin", &models.Principal{ID: "a", Role: models.RoleAdmin}, http.StatusOK},
		{"dispatcher", &models.Principal{ID: "d", Role: models.RoleDispatcher}, http.StatusForbidden},
		{"user", &models.Principal{ID: "u", Role: models.RoleUser}, http.StatusForbidden},
		{"anonymous", nil, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/locations/compress", nil)
			if tt.principal != nil {
				req = req.WithContext(auth.WithPrincipal(req.Context(), *tt.principal))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
