// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/fieldtrack/internal/ledger"
	"github.com/tomtom215/fieldtrack/internal/logging"
)

// Version is reported by the health endpoint; set at build time.
var Version = "dev"

// HealthStatus is the body of the health endpoints.
type HealthStatus struct {
	Status            string          `json:"status"`
	Version           string          `json:"version"`
	DatabaseConnected bool            `json:"databaseConnected"`
	LiveViewers       int             `json:"liveViewers"`
	RunningJobID      string          `json:"runningJobId,omitempty"`
	SyncBacklog       *ledger.Backlog `json:"syncBacklog,omitempty"`
	Uptime            float64         `json:"uptime"`
}

// Health reports process health. It always answers 200; Status is degraded
// when the database is unreachable.
//
// @Summary Health status
// @Tags Health
// @Produce json
// @Success 200 {object} APIResponse{data=HealthStatus}
// @Router /health [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, h.healthStatus(r.Context()))
}

// HealthReady answers 200 only when the database is reachable.
//
// @Summary Readiness probe
// @Tags Health
// @Produce json
// @Success 200 {object} APIResponse{data=HealthStatus}
// @Failure 503 {object} APIResponse "Not ready"
// @Router /health/ready [get]
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	status := h.healthStatus(r.Context())
	if !status.DatabaseConnected {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Database unavailable", status)
		return
	}
	respondJSON(w, r, http.StatusOK, status)
}

func (h *Handler) healthStatus(ctx context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	status := HealthStatus{
		Status:            "healthy",
		Version:           Version,
		DatabaseConnected: h.store != nil && h.store.Ping(ctx) == nil,
		Uptime:            time.Since(h.startTime).Seconds(),
	}
	if !status.DatabaseConnected {
		status.Status = "degraded"
	}
	if h.hub != nil {
		status.LiveViewers = h.hub.GetClientCount()
	}
	if h.runner != nil {
		status.RunningJobID, _ = h.runner.Running()
	}
	if h.ledger != nil && status.DatabaseConnected {
		if backlog, err := h.ledger.Backlog(ctx); err == nil {
			status.SyncBacklog = &backlog
		} else {
			logging.Ctx(ctx).Warn().Err(err).Msg("Failed to count sync ledger backlog")
		}
	}
	return status
}
