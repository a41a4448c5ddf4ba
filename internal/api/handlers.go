// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/fieldtrack/internal/auth"
	"github.com/tomtom215/fieldtrack/internal/authz"
	"github.com/tomtom215/fieldtrack/internal/config"
	"github.com/tomtom215/fieldtrack/internal/ledger"
	"github.com/tomtom215/fieldtrack/internal/maintenance"
	"github.com/tomtom215/fieldtrack/internal/models"
	ws "github.com/tomtom215/fieldtrack/internal/websocket"
)

// Ingestor stores fixes submitted by devices.
type Ingestor interface {
	StoreSingle(ctx context.Context, userID string, in models.FixInput) (*models.FixRecord, error)
	StoreBatch(ctx context.Context, userID string, inputs []models.FixInput) (*models.BatchResult, error)
}

// LocationStore answers the read endpoints.
type LocationStore interface {
	LocationHistory(ctx context.Context, filter models.HistoryFilter) (*models.HistoryPage, error)
	CurrentLocations(ctx context.Context, activeSince time.Time) ([]models.LocationFix, error)
	LocationStats(ctx context.Context, userID string, start, end *time.Time) (*models.LocationStats, error)
	Ping(ctx context.Context) error
}

// JobRunner runs compress and purge jobs one at a time.
type JobRunner interface {
	Submit(req maintenance.Request) (*maintenance.Handle, error)
	Wait(ctx context.Context, h *maintenance.Handle) (*models.MaintenanceJob, error)
	Get(id string) (*models.MaintenanceJob, error)
	List(limit int) ([]models.MaintenanceJob, error)
	Cancel(id string) (*models.MaintenanceJob, error)
	Running() (string, bool)
}

// SyncBacklog reports the sync ledger entries awaiting reconciliation.
type SyncBacklog interface {
	Backlog(ctx context.Context) (ledger.Backlog, error)
}

// Handler contains dependencies for API handlers.
//
// Handler methods are split across files:
//   - handlers_locations.go: ingestion, history, current and stats
//   - handlers_maintenance.go: cleanup, compress and the job endpoints
//   - handlers_websocket.go: the live location stream
//   - handlers_health.go: liveness and readiness
type Handler struct {
	cfg       *config.Config
	ingest    Ingestor
	store     LocationStore
	runner    JobRunner
	enforcer  *authz.Enforcer
	hub       *ws.Hub
	ledger    SyncBacklog
	startTime time.Time
	now       func() time.Time
}

// NewHandler creates the API handler.
func NewHandler(cfg *config.Config, ingestor Ingestor, store LocationStore, runner JobRunner, enforcer *authz.Enforcer, hub *ws.Hub) *Handler {
	return &Handler{
		cfg:       cfg,
		ingest:    ingestor,
		store:     store,
		runner:    runner,
		enforcer:  enforcer,
		hub:       hub,
		startTime: time.Now(),
		now:       time.Now,
	}
}

// SetLedger adds the sync ledger backlog to the health report.
func (h *Handler) SetLedger(l SyncBacklog) {
	h.ledger = l
}

// principal returns the authenticated caller. Every route that calls it sits
// behind auth.Middleware, so a missing principal is answered as 401.
func principal(w http.ResponseWriter, r *http.Request) (models.Principal, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		RespondError(w, r, auth.ErrMissingToken)
	}
	return p, ok
}
