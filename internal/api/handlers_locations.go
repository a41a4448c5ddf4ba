// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/fieldtrack/internal/authz"
	"github.com/tomtom215/fieldtrack/internal/logging"
	"github.com/tomtom215/fieldtrack/internal/models"
)

// CreateLocation stores one fix for the caller.
//
// @Summary Submit a location fix
// @Tags Locations
// @Accept json
// @Produce json
// @Param fix body models.FixInput true "Location fix"
// @Success 201 {object} APIResponse{data=models.FixRecord}
// @Failure 400 {object} APIResponse "Validation error"
// @Failure 429 {object} APIResponse "Rate limited"
// @Router /locations [post]
func (h *Handler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var in models.FixInput
	if err := decodeJSON(w, r, &in); err != nil {
		RespondError(w, r, err)
		return
	}

	record, err := h.ingest.StoreSingle(r.Context(), p.ID, in)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, record)
}

// CreateLocationBatch stores up to the configured number of fixes atomically.
//
// @Summary Submit a batch of location fixes
// @Description Every item is validated first; one invalid item rejects the whole batch.
// @Tags Locations
// @Accept json
// @Produce json
// @Param batch body BatchRequest true "Fixes"
// @Success 201 {object} APIResponse{data=models.BatchResult}
// @Failure 400 {object} APIResponse "Validation error naming failing indexes"
// @Router /locations/batch [post]
func (h *Handler) CreateLocationBatch(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req BatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		RespondError(w, r, err)
		return
	}

	result, err := h.ingest.StoreBatch(r.Context(), p.ID, req.Locations)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, result)
}

// LocationHistory returns a page of one user's fixes, newest first. Without
// a userId path segment the caller's own history is returned.
//
// @Summary Location history
// @Tags Locations
// @Produce json
// @Param userId path string false "User id (defaults to the caller)"
// @Param startDate query string false "Inclusive lower bound (ISO 8601)"
// @Param endDate query string false "Inclusive upper bound (ISO 8601)"
// @Param limit query int false "Page size (1..1000)" default(100)
// @Param offset query int false "Rows to skip" default(0)
// @Param source query string false "gps, network or passive"
// @Success 200 {object} APIResponse{data=models.HistoryPage}
// @Failure 403 {object} APIResponse "Not allowed to read this user"
// @Router /locations/history/{userId} [get]
func (h *Handler) LocationHistory(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	target := targetUser(r, p)
	if err := h.enforcer.RequireUserAccess(p, target, authz.ActionRead); err != nil {
		RespondError(w, r, err)
		return
	}

	q, err := parseHistoryQuery(r, h.cfg.Locations)
	if err != nil {
		RespondError(w, r, err)
		return
	}

	page, err := h.store.LocationHistory(r.Context(), models.HistoryFilter{
		UserID:    target,
		StartDate: q.StartDate,
		EndDate:   q.EndDate,
		Source:    models.FixSource(q.Source),
		Limit:     q.Limit,
		Offset:    q.Offset,
	})
	if err != nil {
		RespondError(w, r, err)
		return
	}

	respondPage(w, r, page, Pagination{
		Total:   page.Total,
		Limit:   page.Limit,
		Offset:  page.Offset,
		HasMore: int64(page.Offset+len(page.Locations)) < page.Total,
	})
}

// CurrentLocations returns the latest fix of every recently active user.
//
// @Summary Current locations
// @Tags Locations
// @Produce json
// @Success 200 {object} APIResponse{data=object{locations=[]models.LocationFix}}
// @Failure 403 {object} APIResponse "Not allowed to read other users"
// @Router /locations/current [get]
func (h *Handler) CurrentLocations(w http.ResponseWriter, r *http.Request) {
	since := h.now().Add(-h.cfg.Locations.ActiveWindow)
	fixes, err := h.store.CurrentLocations(r.Context(), since)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]interface{}{"locations": fixes})
}

// LocationStats summarises one user's fixes over an optional window.
//
// @Summary Location statistics
// @Tags Locations
// @Produce json
// @Param userId path string false "User id (defaults to the caller)"
// @Param startDate query string false "Inclusive lower bound (ISO 8601)"
// @Param endDate query string false "Inclusive upper bound (ISO 8601)"
// @Success 200 {object} APIResponse{data=models.LocationStats}
// @Router /locations/stats/{userId} [get]
func (h *Handler) LocationStats(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	target := targetUser(r, p)
	if err := h.enforcer.RequireUserAccess(p, target, authz.ActionRead); err != nil {
		RespondError(w, r, err)
		return
	}

	start, end, err := parseStatsWindow(r)
	if err != nil {
		RespondError(w, r, err)
		return
	}

	stats, err := h.store.LocationStats(r.Context(), target, start, end)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	logging.Ctx(r.Context()).Debug().
		Str("target_user", sanitizeLogValue(target)).
		Int64("total", stats.TotalLocations).
		Msg("Location stats served")
	respondJSON(w, r, http.StatusOK, stats)
}

func targetUser(r *http.Request, p models.Principal) string {
	if id := chi.URLParam(r, "userId"); id != "" {
		return id
	}
	return p.ID
}
